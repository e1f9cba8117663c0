package axis

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestSimulated_RotaryRampAndCount(t *testing.T) {
	ctx := context.Background()
	a := NewSimulated(Rotary)
	a.SetRamp(200)

	if err := a.MoveAbsolute(ctx, 2.0); err != nil {
		t.Fatalf("MoveAbsolute: %v", err)
	}

	deadline := time.Now().Add(time.Second)
	for {
		busy, err := a.Busy()
		if err != nil {
			t.Fatalf("Busy: %v", err)
		}
		if !busy {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("rotary never reached target speed")
		}
		time.Sleep(2 * time.Millisecond)
	}

	spd, _ := a.Speed()
	if spd.Target != 2.0 {
		t.Errorf("target speed = %v, want 2.0", spd.Target)
	}

	time.Sleep(20 * time.Millisecond)
	pos, _ := a.Position()
	if pos <= 0 {
		t.Errorf("step count = %v, want accumulation while spinning", pos)
	}
}

func TestSimulated_FailingMode(t *testing.T) {
	ctx := context.Background()
	a := NewSimulated(Linear)
	a.Fail(true)

	if _, err := a.Position(); !errors.Is(err, ErrSimulatedFailure) {
		t.Errorf("Position = %v, want ErrSimulatedFailure", err)
	}
	if err := a.MoveAbsolute(ctx, 5); !errors.Is(err, ErrSimulatedFailure) {
		t.Errorf("MoveAbsolute = %v, want ErrSimulatedFailure", err)
	}
	// Stop stays safe even when everything else fails.
	if err := a.Stop(ctx); err != nil {
		t.Errorf("Stop = %v, want nil", err)
	}
	if a.StopCalls() != 1 {
		t.Errorf("StopCalls = %d, want 1", a.StopCalls())
	}
}
