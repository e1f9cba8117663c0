package axis

import (
	"context"
	"errors"
	"math"
	"sync"
	"time"
)

// simStepsPerRev matches the stepper firmware's full-step count.
const simStepsPerRev = 200

// ErrSimulatedFailure is the injected fault returned by a Simulated
// axis put into failing mode.
var ErrSimulatedFailure = errors.New("axis: simulated failure")

// Simulated is an in-memory Controller for either kind. Linear mode
// converges on its target at a fixed velocity; rotary mode ramps
// toward its target speed while accumulating a step counter.
// A failing flag injects transport-style faults into everything
// except Stop, which stays safe like the real thing.
type Simulated struct {
	kind Kind

	mu   sync.Mutex
	last time.Time

	// linear
	posMm    float64
	targetMm float64
	velocity float64 // mm/s

	// rotary
	curRps    float64
	targetRps float64
	ramp      float64 // rps/s
	steps     float64

	enabled   bool
	failing   bool
	stopCalls int
}

// NewSimulated returns a simulated axis of the given kind with
// bench-scale defaults.
func NewSimulated(kind Kind) *Simulated {
	return &Simulated{
		kind:     kind,
		velocity: 50,
		ramp:     10,
		last:     time.Now(),
	}
}

// SetVelocity overrides the linear travel speed in mm/s.
func (s *Simulated) SetVelocity(mmPerSec float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.advance()
	s.velocity = mmPerSec
}

// SetRamp overrides the rotary acceleration in rps/s.
func (s *Simulated) SetRamp(rpsPerSec float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.advance()
	s.ramp = rpsPerSec
}

// Fail toggles fault injection.
func (s *Simulated) Fail(fail bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failing = fail
}

// StopCalls reports how many times Stop has been invoked.
func (s *Simulated) StopCalls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stopCalls
}

// advance integrates motion since the last observation. Caller holds mu.
func (s *Simulated) advance() {
	now := time.Now()
	dt := now.Sub(s.last).Seconds()
	s.last = now

	switch s.kind {
	case Linear:
		step := s.velocity * dt
		diff := s.targetMm - s.posMm
		if math.Abs(diff) <= step {
			s.posMm = s.targetMm
		} else if diff > 0 {
			s.posMm += step
		} else {
			s.posMm -= step
		}
	case Rotary:
		step := s.ramp * dt
		diff := s.targetRps - s.curRps
		if math.Abs(diff) <= step {
			s.curRps = s.targetRps
		} else if diff > 0 {
			s.curRps += step
		} else {
			s.curRps -= step
		}
		s.steps += s.curRps * simStepsPerRev * dt
	}
}

func (s *Simulated) Kind() Kind { return s.kind }

func (s *Simulated) Enable(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failing {
		return ErrSimulatedFailure
	}
	s.enabled = true
	return nil
}

func (s *Simulated) Disable(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failing {
		return ErrSimulatedFailure
	}
	s.enabled = false
	return nil
}

func (s *Simulated) Home(ctx context.Context) error {
	if s.kind == Rotary {
		return ErrUnsupported
	}
	s.mu.Lock()
	if s.failing {
		s.mu.Unlock()
		return ErrSimulatedFailure
	}
	s.advance()
	s.targetMm = 0
	s.mu.Unlock()

	for {
		busy, err := s.Busy()
		if err != nil {
			return err
		}
		if !busy {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(5 * time.Millisecond):
		}
	}
}

func (s *Simulated) MoveAbsolute(ctx context.Context, target float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failing {
		return ErrSimulatedFailure
	}
	s.advance()
	if s.kind == Rotary {
		s.targetRps = target
	} else {
		s.targetMm = target
	}
	return nil
}

func (s *Simulated) MoveRelative(ctx context.Context, delta float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failing {
		return ErrSimulatedFailure
	}
	s.advance()
	if s.kind == Rotary {
		s.targetRps += delta
	} else {
		s.targetMm += delta
	}
	return nil
}

// Stop always succeeds, matching the contract that a stop must be
// safe in any state.
func (s *Simulated) Stop(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopCalls++
	s.advance()
	if s.kind == Rotary {
		s.targetRps = 0
	} else {
		s.targetMm = s.posMm
	}
	return nil
}

func (s *Simulated) Position() (float64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failing {
		return 0, ErrSimulatedFailure
	}
	s.advance()
	if s.kind == Rotary {
		return math.Trunc(s.steps), nil
	}
	return s.posMm, nil
}

func (s *Simulated) Speed() (Speed, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failing {
		return Speed{}, ErrSimulatedFailure
	}
	s.advance()
	if s.kind == Rotary {
		return Speed{Current: s.curRps, Target: s.targetRps}, nil
	}
	return Speed{}, nil
}

func (s *Simulated) Busy() (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failing {
		return false, ErrSimulatedFailure
	}
	s.advance()
	if s.kind == Rotary {
		return math.Abs(s.curRps-s.targetRps) > speedTolerance, nil
	}
	return s.posMm != s.targetMm, nil
}

func (s *Simulated) Close() error { return nil }
