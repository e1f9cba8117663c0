// Package stage defines the device boundary for linear translation
// stages. The motion layer talks to stages only through the Device
// interface; whether the other side is a vendor SDK binding, a
// servo-driven leadscrew or a simulator is decided at attach time.
package stage

import (
	"context"
	"errors"
)

// ErrNotConnected is returned by operations on a stage that has not
// been connected or has been disconnected.
var ErrNotConnected = errors.New("stage: not connected")

// Device is the capability set the motion layer needs from a linear
// stage. Positions cross this boundary in millimeters; any native
// unit conversion is the implementation's private concern.
//
// Move calls start motion and return; callers poll IsMoving for
// completion. Timeouts ride on the context.
type Device interface {
	Connect(ctx context.Context) error
	Home(ctx context.Context) error
	MoveAbsolute(ctx context.Context, posMm float64) error
	MoveRelative(ctx context.Context, deltaMm float64) error
	Stop(ctx context.Context) error
	PositionMm() (float64, error)
	IsMoving() (bool, error)
	Disconnect() error
}
