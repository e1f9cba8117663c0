// Package axis provides a uniform controller abstraction over
// independently addressable motion axes. A linear translation stage
// and a rotary stepper expose the same capability set; callers never
// need to know which transport sits underneath.
package axis

import (
	"context"
	"errors"
	"time"
)

// Kind discriminates axis behavior. Linear axes move to discrete
// millimeter targets; rotary axes run a continuous speed profile and
// report an accumulating signed step count as "position".
type Kind string

const (
	Linear Kind = "linear"
	Rotary Kind = "rotary"
)

var (
	// ErrTimeout is returned when a bounded operation (homing) did
	// not finish in time. The axis has been told to stop before the
	// error surfaces.
	ErrTimeout = errors.New("axis: operation timed out")

	// ErrUnsupported is returned for operations an axis kind cannot
	// perform, such as homing a free-running rotary counter.
	ErrUnsupported = errors.New("axis: operation not supported")
)

// homeTimeout bounds a homing run.
const homeTimeout = 60 * time.Second

// Speed is a current/target speed pair. Units are mm/s for linear
// axes and revolutions per second for rotary ones.
type Speed struct {
	Current float64
	Target  float64
}

// Controller is the capability contract every axis implements.
//
// Move calls start motion and return; completion is observed through
// Busy. Home blocks until the device reports done or its internal
// timeout fires. Stop is idempotent and safe in any state, including
// disconnected. Position, Speed and Busy are best-effort reads whose
// errors the status layer converts into staleness rather than
// surfacing mid-motion.
type Controller interface {
	Kind() Kind
	Enable(ctx context.Context) error
	Disable(ctx context.Context) error
	Home(ctx context.Context) error
	MoveAbsolute(ctx context.Context, target float64) error
	MoveRelative(ctx context.Context, delta float64) error
	Stop(ctx context.Context) error
	Position() (float64, error)
	Speed() (Speed, error)
	Busy() (bool, error)
	Close() error
}
