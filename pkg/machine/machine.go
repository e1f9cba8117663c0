package machine

import (
	"context"
	"fmt"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/gwillem/motionctl/pkg/axis"
	"github.com/gwillem/motionctl/pkg/command"
	"github.com/gwillem/motionctl/pkg/stage"
)

// Machine ties the registry, poller, executor and safety coordinator
// together and mediates the operations that need to see more than one
// of them, such as the detach busy guard.
type Machine struct {
	reg    *Registry
	poller *Poller
	exec   *Executor
	safety *Safety
}

// New creates an empty machine polling at the given interval.
func New(pollInterval time.Duration) *Machine {
	reg := NewRegistry()
	poller := NewPoller(reg, pollInterval)
	exec := NewExecutor(reg, poller)
	return &Machine{
		reg:    reg,
		poller: poller,
		exec:   exec,
		safety: NewSafety(reg, exec),
	}
}

// FromConfig creates a machine and attaches every configured axis.
// On any attach failure the already-attached axes are released and
// the error returned.
func FromConfig(ctx context.Context, cfg *Config) (*Machine, error) {
	m := New(cfg.PollInterval())
	for name, acfg := range cfg.Axes {
		if err := m.Attach(ctx, name, acfg); err != nil {
			m.Close()
			return nil, fmt.Errorf("attach %s: %w", name, err)
		}
	}
	return m, nil
}

func (m *Machine) Registry() *Registry { return m.reg }
func (m *Machine) Poller() *Poller     { return m.poller }
func (m *Machine) Executor() *Executor { return m.exec }

// Run runs the status poll loop until ctx is canceled.
func (m *Machine) Run(ctx context.Context) error {
	return m.poller.Run(ctx)
}

// Attach connects a new axis and registers it. Registry state is
// unchanged when the connect fails.
func (m *Machine) Attach(ctx context.Context, name string, cfg AxisConfig) error {
	if _, ok := m.reg.Get(name); ok {
		return fmt.Errorf("%w: %s", ErrAlreadyAttached, name)
	}

	ctrl, err := buildController(ctx, cfg)
	if err != nil {
		return fmt.Errorf("%w: %s: %v", ErrConnect, name, err)
	}
	if err := m.reg.Attach(name, ctrl); err != nil {
		ctrl.Close()
		return err
	}
	log.WithFields(log.Fields{
		"axis":   name,
		"kind":   cfg.Kind,
		"driver": cfg.Driver,
	}).Info("axis attached")
	return nil
}

// Detach stops and releases an axis. Refused while a running path
// references it.
func (m *Machine) Detach(name string) error {
	if m.exec.UsesAxis(name) {
		return fmt.Errorf("%w: %s", ErrAxisBusy, name)
	}
	if err := m.reg.Detach(name); err != nil {
		return err
	}
	log.WithField("axis", name).Info("axis detached")
	return nil
}

// Controller looks up an attached axis.
func (m *Machine) Controller(name string) (axis.Controller, error) {
	ctrl, ok := m.reg.Get(name)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotAttached, name)
	}
	return ctrl, nil
}

// EmergencyStop halts every axis and any running path.
func (m *Machine) EmergencyStop() {
	m.safety.EmergencyStop()
}

// Close shuts the machine down: everything stops, then every axis is
// released.
func (m *Machine) Close() error {
	m.safety.EmergencyStop()
	var firstErr error
	for _, name := range m.reg.Names() {
		if err := m.reg.Detach(name); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// buildController constructs and connects the controller an axis
// config describes.
func buildController(ctx context.Context, cfg AxisConfig) (axis.Controller, error) {
	switch cfg.Kind {
	case axis.Linear:
		var dev stage.Device
		switch cfg.Driver {
		case DriverSim, "":
			dev = stage.NewSimStage(0)
		case DriverFeetech:
			dev = stage.NewFeetechStage(stage.FeetechConfig{
				Port:        cfg.Port,
				BaudRate:    cfg.BaudRate,
				ServoID:     cfg.ServoID,
				CountsPerMm: cfg.CountsPerMm,
			})
		default:
			return nil, fmt.Errorf("unknown linear driver %q", cfg.Driver)
		}
		if err := dev.Connect(ctx); err != nil {
			return nil, err
		}
		return axis.NewLinear(dev), nil

	case axis.Rotary:
		switch cfg.Driver {
		case DriverSim, "":
			return axis.NewSimulated(axis.Rotary), nil
		case DriverSerial:
			ch, err := command.Open(cfg.Port, cfg.BaudRate)
			if err != nil {
				return nil, err
			}
			rot := axis.NewRotary(ch)
			if cfg.RampRate > 0 {
				if err := rot.SetRampRate(cfg.RampRate); err != nil {
					rot.Close()
					return nil, err
				}
			}
			return rot, nil
		default:
			return nil, fmt.Errorf("unknown rotary driver %q", cfg.Driver)
		}
	}
	return nil, fmt.Errorf("unknown axis kind %q", cfg.Kind)
}
