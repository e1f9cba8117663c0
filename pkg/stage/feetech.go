package stage

import (
	"context"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/hipsterbrown/feetech-servo/feetech"
)

// Default geometry for an STS3215 on a 2mm-pitch leadscrew:
// 4096 counts per revolution / 2mm travel per revolution.
const DefaultServoCountsPerMm = 2048

// movingToleranceCounts is how close to target counts as "in position".
const movingToleranceCounts = 8

// FeetechConfig configures a servo-driven leadscrew stage.
type FeetechConfig struct {
	Port        string
	BaudRate    int     // default 1_000_000
	ServoID     int     // bus ID of the drive servo
	CountsPerMm float64 // default DefaultServoCountsPerMm
}

// FeetechStage drives a short-travel linear stage through a single
// Feetech STS servo on a half-duplex serial bus. The servo's absolute
// encoder count at connect time becomes the stage zero until Home
// re-references it.
type FeetechStage struct {
	cfg FeetechConfig

	mu     sync.Mutex
	bus    *feetech.Bus
	servo  *feetech.Servo
	zero   int // encoder count corresponding to 0mm
	target int // last commanded encoder count
}

// NewFeetechStage returns an unconnected stage.
func NewFeetechStage(cfg FeetechConfig) *FeetechStage {
	if cfg.BaudRate <= 0 {
		cfg.BaudRate = 1_000_000
	}
	if cfg.CountsPerMm <= 0 {
		cfg.CountsPerMm = DefaultServoCountsPerMm
	}
	return &FeetechStage{cfg: cfg}
}

// Connect opens the bus, locates the drive servo and enables torque.
func (s *FeetechStage) Connect(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.bus != nil {
		return nil
	}

	bus, err := feetech.NewBus(feetech.BusConfig{
		Port:     s.cfg.Port,
		BaudRate: s.cfg.BaudRate,
		Protocol: feetech.ProtocolSTS,
		Timeout:  100 * time.Millisecond,
	})
	if err != nil {
		return fmt.Errorf("open bus %s: %w", s.cfg.Port, err)
	}

	found, err := bus.Scan(ctx, s.cfg.ServoID, s.cfg.ServoID)
	if err != nil || len(found) == 0 {
		bus.Close()
		return fmt.Errorf("servo %d not found on %s: %w", s.cfg.ServoID, s.cfg.Port, err)
	}

	servo := feetech.NewServo(bus, found[0].ID, found[0].Model)
	pos, err := servo.Position(ctx)
	if err != nil {
		bus.Close()
		return fmt.Errorf("read position: %w", err)
	}
	if err := servo.Enable(ctx); err != nil {
		bus.Close()
		return fmt.Errorf("enable torque: %w", err)
	}

	s.bus = bus
	s.servo = servo
	s.zero = pos
	s.target = pos
	return nil
}

// Home drives the stage to its zero reference and blocks until it
// arrives or ctx expires.
func (s *FeetechStage) Home(ctx context.Context) error {
	s.mu.Lock()
	if s.servo == nil {
		s.mu.Unlock()
		return ErrNotConnected
	}
	s.target = s.zero
	s.servo.SetPosition(ctx, s.zero)
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
		case <-time.After(50 * time.Millisecond):
		}
	}
}

func (s *FeetechStage) MoveAbsolute(ctx context.Context, posMm float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.servo == nil {
		return ErrNotConnected
	}
	s.target = s.zero + int(math.Round(posMm*s.cfg.CountsPerMm))
	s.servo.SetPosition(ctx, s.target)
	return nil
}

func (s *FeetechStage) MoveRelative(ctx context.Context, deltaMm float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.servo == nil {
		return ErrNotConnected
	}
	s.target += int(math.Round(deltaMm * s.cfg.CountsPerMm))
	s.servo.SetPosition(ctx, s.target)
	return nil
}

// Stop rewrites the current position as the target, halting motion.
// A stop on a disconnected stage is a no-op.
func (s *FeetechStage) Stop(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.servo == nil {
		return nil
	}
	pos, err := s.servo.Position(ctx)
	if err != nil {
		return fmt.Errorf("read position: %w", err)
	}
	s.target = pos
	s.servo.SetPosition(ctx, pos)
	return nil
}

func (s *FeetechStage) PositionMm() (float64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.servo == nil {
		return 0, ErrNotConnected
	}
	pos, err := s.servo.Position(context.Background())
	if err != nil {
		return 0, fmt.Errorf("read position: %w", err)
	}
	return float64(pos-s.zero) / s.cfg.CountsPerMm, nil
}

func (s *FeetechStage) IsMoving() (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.servo == nil {
		return false, ErrNotConnected
	}
	pos, err := s.servo.Position(context.Background())
	if err != nil {
		return false, fmt.Errorf("read position: %w", err)
	}
	diff := pos - s.target
	if diff < 0 {
		diff = -diff
	}
	return diff > movingToleranceCounts, nil
}

// Disconnect disables torque and closes the bus.
func (s *FeetechStage) Disconnect() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.bus == nil {
		return nil
	}
	s.servo.Disable(context.Background())
	err := s.bus.Close()
	s.bus = nil
	s.servo = nil
	return err
}
