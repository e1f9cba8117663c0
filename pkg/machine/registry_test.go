package machine

import (
	"context"
	"errors"
	"testing"

	"github.com/gwillem/motionctl/pkg/axis"
)

func TestRegistry_UniqueNames(t *testing.T) {
	reg := NewRegistry()

	if err := reg.Attach("X", axis.NewSimulated(axis.Linear)); err != nil {
		t.Fatalf("first Attach: %v", err)
	}
	err := reg.Attach("X", axis.NewSimulated(axis.Linear))
	if !errors.Is(err, ErrAlreadyAttached) {
		t.Errorf("second Attach = %v, want ErrAlreadyAttached", err)
	}
	if reg.Len() != 1 {
		t.Errorf("Len = %d, want 1", reg.Len())
	}
}

func TestRegistry_DetachStopsAxis(t *testing.T) {
	reg := NewRegistry()
	sim := axis.NewSimulated(axis.Linear)
	reg.Attach("X", sim)

	if err := reg.Detach("X"); err != nil {
		t.Fatalf("Detach: %v", err)
	}
	if sim.StopCalls() != 1 {
		t.Errorf("StopCalls = %d, want 1 (stop before release)", sim.StopCalls())
	}
	if _, ok := reg.Get("X"); ok {
		t.Error("axis still attached after Detach")
	}

	if err := reg.Detach("X"); !errors.Is(err, ErrNotAttached) {
		t.Errorf("second Detach = %v, want ErrNotAttached", err)
	}
}

func TestMachine_AttachConnectError(t *testing.T) {
	m := New(0)
	err := m.Attach(context.Background(), "X", AxisConfig{
		Kind:   axis.Linear,
		Driver: DriverFeetech,
		Port:   "/dev/does-not-exist",
	})
	if !errors.Is(err, ErrConnect) {
		t.Fatalf("Attach = %v, want ErrConnect", err)
	}
	if m.Registry().Len() != 0 {
		t.Error("registry changed after failed attach")
	}
}

func TestMachine_AttachSimAxes(t *testing.T) {
	m := New(0)
	ctx := context.Background()

	if err := m.Attach(ctx, "X", AxisConfig{Kind: axis.Linear, Driver: DriverSim}); err != nil {
		t.Fatalf("attach linear: %v", err)
	}
	if err := m.Attach(ctx, "Rotation", AxisConfig{Kind: axis.Rotary, Driver: DriverSim}); err != nil {
		t.Fatalf("attach rotary: %v", err)
	}
	if err := m.Attach(ctx, "X", AxisConfig{Kind: axis.Linear, Driver: DriverSim}); !errors.Is(err, ErrAlreadyAttached) {
		t.Errorf("duplicate attach = %v, want ErrAlreadyAttached", err)
	}

	ctrl, err := m.Controller("Rotation")
	if err != nil {
		t.Fatalf("Controller: %v", err)
	}
	if ctrl.Kind() != axis.Rotary {
		t.Errorf("kind = %v, want rotary", ctrl.Kind())
	}
}
