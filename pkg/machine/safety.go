package machine

import (
	"context"
	"time"

	log "github.com/sirupsen/logrus"
)

// estopStopTimeout bounds each axis's stop during the sweep. The
// sweep itself never blocks on anything else.
const estopStopTimeout = 2 * time.Second

// Safety is the emergency-stop coordinator. It outranks normal
// dispatch: the sweep stops every registered axis best-effort and
// forces any active path run to Stopped.
type Safety struct {
	reg  *Registry
	exec *Executor
}

func NewSafety(reg *Registry, exec *Executor) *Safety {
	return &Safety{reg: reg, exec: exec}
}

// EmergencyStop halts everything. Safe to call concurrently with any
// other operation, any number of times. Per-axis stop failures are
// logged and never abort the sweep.
func (s *Safety) EmergencyStop() {
	log.Warn("EMERGENCY STOP")

	// Cancel the path run first so it cannot dispatch new moves
	// behind the sweep.
	if s.exec != nil {
		if err := s.exec.Stop(); err != nil {
			log.WithError(err).Error("failed to stop path run")
		}
	}

	for name, ctrl := range s.reg.Controllers() {
		ctx, cancel := context.WithTimeout(context.Background(), estopStopTimeout)
		if err := ctrl.Stop(ctx); err != nil {
			log.WithField("axis", name).WithError(err).Error("emergency stop failed for axis")
		}
		cancel()
	}
}
