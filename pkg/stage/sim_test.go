package stage

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"
)

func TestSimStage_MoveAndSettle(t *testing.T) {
	ctx := context.Background()
	s := NewSimStage(1000) // fast sim so the test settles quickly
	if err := s.Connect(ctx); err != nil {
		t.Fatalf("Connect: %v", err)
	}

	if err := s.MoveAbsolute(ctx, 10.0); err != nil {
		t.Fatalf("MoveAbsolute: %v", err)
	}

	deadline := time.Now().Add(2 * time.Second)
	for {
		moving, err := s.IsMoving()
		if err != nil {
			t.Fatalf("IsMoving: %v", err)
		}
		if !moving {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("stage never settled")
		}
		time.Sleep(2 * time.Millisecond)
	}

	pos, err := s.PositionMm()
	if err != nil {
		t.Fatalf("PositionMm: %v", err)
	}
	if math.Abs(pos-10.0) > 0.05 {
		t.Errorf("settled at %v mm, want 10.0 ±0.05", pos)
	}
}

func TestSimStage_StopHoldsPosition(t *testing.T) {
	ctx := context.Background()
	s := NewSimStage(5) // slow enough to catch mid-move
	s.Connect(ctx)

	s.MoveAbsolute(ctx, 100.0)
	time.Sleep(20 * time.Millisecond)
	if err := s.Stop(ctx); err != nil {
		t.Fatalf("Stop: %v", err)
	}

	moving, _ := s.IsMoving()
	if moving {
		t.Error("stage still moving after Stop")
	}
	pos, _ := s.PositionMm()
	if pos >= 100.0 {
		t.Errorf("position %v mm, expected stop short of target", pos)
	}
}

func TestSimStage_Disconnected(t *testing.T) {
	ctx := context.Background()
	s := NewSimStage(10)

	if _, err := s.PositionMm(); !errors.Is(err, ErrNotConnected) {
		t.Errorf("PositionMm = %v, want ErrNotConnected", err)
	}
	if err := s.MoveAbsolute(ctx, 1); !errors.Is(err, ErrNotConnected) {
		t.Errorf("MoveAbsolute = %v, want ErrNotConnected", err)
	}
	// Stop must stay safe on a disconnected stage.
	if err := s.Stop(ctx); err != nil {
		t.Errorf("Stop on disconnected stage = %v, want nil", err)
	}
}
