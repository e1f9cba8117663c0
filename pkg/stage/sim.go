package stage

import (
	"context"
	"math"
	"sync"
	"time"
)

// SimStage is an in-memory Device for tests and offline bring-up. It
// models a stage that travels toward its target at a constant
// velocity, tracking position in encoder counts like the real
// hardware does.
type SimStage struct {
	mu        sync.Mutex
	connected bool
	velocity  float64 // mm/s
	pos       float64 // counts
	target    float64 // counts
	last      time.Time
}

// NewSimStage returns a simulated stage moving at velocity mm/s.
func NewSimStage(velocity float64) *SimStage {
	if velocity <= 0 {
		velocity = 10
	}
	return &SimStage{velocity: velocity}
}

// advance integrates motion since the last observation. Caller holds mu.
func (s *SimStage) advance() {
	now := time.Now()
	dt := now.Sub(s.last).Seconds()
	s.last = now

	step := s.velocity * CountsPerMm * dt
	diff := s.target - s.pos
	if math.Abs(diff) <= step {
		s.pos = s.target
		return
	}
	if diff > 0 {
		s.pos += step
	} else {
		s.pos -= step
	}
}

func (s *SimStage) Connect(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.connected = true
	s.last = time.Now()
	return nil
}

func (s *SimStage) Home(ctx context.Context) error {
	s.mu.Lock()
	s.target = 0
	s.mu.Unlock()
	for {
		moving, err := s.IsMoving()
		if err != nil {
			return err
		}
		if !moving {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(5 * time.Millisecond):
		}
	}
}

func (s *SimStage) MoveAbsolute(ctx context.Context, posMm float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.connected {
		return ErrNotConnected
	}
	s.advance()
	s.target = float64(MmToCounts(posMm))
	return nil
}

func (s *SimStage) MoveRelative(ctx context.Context, deltaMm float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.connected {
		return ErrNotConnected
	}
	s.advance()
	s.target += deltaMm * CountsPerMm
	return nil
}

func (s *SimStage) Stop(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.connected {
		return nil
	}
	s.advance()
	s.target = s.pos
	return nil
}

func (s *SimStage) PositionMm() (float64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.connected {
		return 0, ErrNotConnected
	}
	s.advance()
	return CountsToMm(int(math.Round(s.pos))), nil
}

func (s *SimStage) IsMoving() (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.connected {
		return false, ErrNotConnected
	}
	s.advance()
	return s.pos != s.target, nil
}

func (s *SimStage) Disconnect() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.connected = false
	return nil
}
