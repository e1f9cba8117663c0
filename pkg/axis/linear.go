package axis

import (
	"context"
	"errors"
	"fmt"

	"github.com/gwillem/motionctl/pkg/stage"
)

// LinearAxis adapts a stage.Device to the Controller contract.
// Positions are millimeters at this boundary; the device hides its
// native units.
type LinearAxis struct {
	dev stage.Device
}

// NewLinear wraps an already-connected stage device.
func NewLinear(dev stage.Device) *LinearAxis {
	return &LinearAxis{dev: dev}
}

func (a *LinearAxis) Kind() Kind { return Linear }

// Enable is a no-op: stage power is managed by the device connection.
func (a *LinearAxis) Enable(ctx context.Context) error  { return nil }
func (a *LinearAxis) Disable(ctx context.Context) error { return nil }

// Home blocks until the stage reports home or the 60s bound elapses.
// On timeout the axis is stopped before the error returns.
func (a *LinearAxis) Home(ctx context.Context) error {
	hctx, cancel := context.WithTimeout(ctx, homeTimeout)
	defer cancel()

	err := a.dev.Home(hctx)
	if err == nil {
		return nil
	}
	if errors.Is(err, context.DeadlineExceeded) {
		if serr := a.dev.Stop(context.Background()); serr != nil {
			return fmt.Errorf("%w (stop after timeout failed: %v)", ErrTimeout, serr)
		}
		return ErrTimeout
	}
	return fmt.Errorf("home: %w", err)
}

func (a *LinearAxis) MoveAbsolute(ctx context.Context, target float64) error {
	if err := a.dev.MoveAbsolute(ctx, target); err != nil {
		return fmt.Errorf("move to %.3fmm: %w", target, err)
	}
	return nil
}

func (a *LinearAxis) MoveRelative(ctx context.Context, delta float64) error {
	if err := a.dev.MoveRelative(ctx, delta); err != nil {
		return fmt.Errorf("move %+.3fmm: %w", delta, err)
	}
	return nil
}

func (a *LinearAxis) Stop(ctx context.Context) error {
	return a.dev.Stop(ctx)
}

func (a *LinearAxis) Position() (float64, error) {
	return a.dev.PositionMm()
}

// Speed reports zeros: the stage boundary exposes no velocity
// telemetry, and consumers key on Busy for linear axes.
func (a *LinearAxis) Speed() (Speed, error) {
	return Speed{}, nil
}

func (a *LinearAxis) Busy() (bool, error) {
	return a.dev.IsMoving()
}

func (a *LinearAxis) Close() error {
	return a.dev.Disconnect()
}
