package axis

import (
	"context"
	"fmt"
	"math"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gwillem/motionctl/pkg/command"
)

// speedTolerance is how close current speed must be to target speed
// (in rps) before the axis counts as settled.
const speedTolerance = 0.05

// statusMaxAge caches a STATUS response so that a poll cycle reading
// position, speed and busy costs one round trip, not three.
const statusMaxAge = 50 * time.Millisecond

type rotaryStatus struct {
	current  float64
	target   float64
	position int64
	read     time.Time
}

// RotaryAxis drives a stepper controller through a command channel.
// A "move" sets a target speed: the motor runs a continuous profile
// and Position reports the controller's free-running signed step
// count. The counter has no zero reference, so Home is unsupported.
type RotaryAxis struct {
	mu        sync.Mutex
	ch        *command.Channel
	targetRps float64
	status    rotaryStatus
}

// NewRotary wraps an open command channel.
func NewRotary(ch *command.Channel) *RotaryAxis {
	return &RotaryAxis{ch: ch}
}

func (a *RotaryAxis) Kind() Kind { return Rotary }

// exec sends one command and folds an ERROR response into a Go error.
// Caller holds mu.
func (a *RotaryAxis) exec(cmd string) error {
	if a.ch == nil {
		return fmt.Errorf("%s: channel closed", cmd)
	}
	resp, err := a.ch.Send(cmd)
	if err != nil {
		return err
	}
	if resp.Kind == command.Error {
		return fmt.Errorf("%s: device error: %s", cmd, resp.Detail)
	}
	return nil
}

func (a *RotaryAxis) Enable(ctx context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.exec("ENABLE")
}

func (a *RotaryAxis) Disable(ctx context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.exec("DISABLE")
}

// Home is unsupported: the step counter is free-running with no
// defined zero.
func (a *RotaryAxis) Home(ctx context.Context) error {
	return ErrUnsupported
}

// MoveAbsolute sets the target speed in revolutions per second. The
// rotary profile is continuous motion, not a discrete destination.
func (a *RotaryAxis) MoveAbsolute(ctx context.Context, target float64) error {
	return a.SetSpeedRps(target)
}

// MoveRelative adjusts the target speed by delta rps.
func (a *RotaryAxis) MoveRelative(ctx context.Context, delta float64) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.setSpeedLocked(a.targetRps + delta)
}

// SetSpeedRps sets the target speed in revolutions per second.
// Negative values reverse direction.
func (a *RotaryAxis) SetSpeedRps(rps float64) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.setSpeedLocked(rps)
}

func (a *RotaryAxis) setSpeedLocked(rps float64) error {
	if err := a.exec(fmt.Sprintf("SPEED_RPS:%g", rps)); err != nil {
		return err
	}
	a.targetRps = rps
	a.status.read = time.Time{} // force refresh on next read
	return nil
}

// SetSpeedSteps sets the target speed in steps per second.
func (a *RotaryAxis) SetSpeedSteps(stepsPerSec float64) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if err := a.exec(fmt.Sprintf("SPEED_STEPS:%g", stepsPerSec)); err != nil {
		return err
	}
	a.status.read = time.Time{}
	return nil
}

// SetRampRate sets acceleration/deceleration in steps/s^2.
func (a *RotaryAxis) SetRampRate(rate float64) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.exec(fmt.Sprintf("RAMP:%g", rate))
}

// Stop ramps the motor down to zero. Safe on a closed axis.
func (a *RotaryAxis) Stop(ctx context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.ch == nil {
		return nil
	}
	if err := a.exec("STOP"); err != nil {
		return err
	}
	a.targetRps = 0
	a.status.read = time.Time{}
	return nil
}

// refresh issues STATUS unless a recent response is cached. Caller
// holds mu.
func (a *RotaryAxis) refresh() (rotaryStatus, error) {
	if time.Since(a.status.read) < statusMaxAge {
		return a.status, nil
	}
	if a.ch == nil {
		return rotaryStatus{}, fmt.Errorf("STATUS: channel closed")
	}
	resp, err := a.ch.Send("STATUS")
	if err != nil {
		return rotaryStatus{}, err
	}
	if resp.Kind != command.Status {
		return rotaryStatus{}, fmt.Errorf("%w: expected STATUS, got kind %d", command.ErrProtocol, resp.Kind)
	}
	st, err := parseStatus(resp.Detail)
	if err != nil {
		return rotaryStatus{}, err
	}
	st.read = time.Now()
	a.status = st
	return st, nil
}

// parseStatus decodes "<current_rps>,<target_rps>,<position_int>".
func parseStatus(detail string) (rotaryStatus, error) {
	parts := strings.Split(detail, ",")
	if len(parts) != 3 {
		return rotaryStatus{}, fmt.Errorf("%w: STATUS:%s", command.ErrProtocol, detail)
	}
	cur, err1 := strconv.ParseFloat(strings.TrimSpace(parts[0]), 64)
	tgt, err2 := strconv.ParseFloat(strings.TrimSpace(parts[1]), 64)
	pos, err3 := strconv.ParseInt(strings.TrimSpace(parts[2]), 10, 64)
	if err1 != nil || err2 != nil || err3 != nil {
		return rotaryStatus{}, fmt.Errorf("%w: STATUS:%s", command.ErrProtocol, detail)
	}
	return rotaryStatus{current: cur, target: tgt, position: pos}, nil
}

// Position returns the accumulated signed step count.
func (a *RotaryAxis) Position() (float64, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	st, err := a.refresh()
	if err != nil {
		return 0, err
	}
	return float64(st.position), nil
}

func (a *RotaryAxis) Speed() (Speed, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	st, err := a.refresh()
	if err != nil {
		return Speed{}, err
	}
	return Speed{Current: st.current, Target: st.target}, nil
}

// Busy reports whether the motor is still ramping toward its target
// speed.
func (a *RotaryAxis) Busy() (bool, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	st, err := a.refresh()
	if err != nil {
		return false, err
	}
	return math.Abs(st.current-st.target) > speedTolerance, nil
}

// Close releases the channel. Further commands fail except Stop,
// which becomes a no-op.
func (a *RotaryAxis) Close() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.ch == nil {
		return nil
	}
	err := a.ch.Close()
	a.ch = nil
	return err
}
