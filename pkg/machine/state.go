// Package machine coordinates a set of motion axes into one logical
// multi-axis machine: a registry of attached controllers, a status
// poller publishing a shared snapshot, a path executor that walks
// recorded multi-axis waypoints, and an emergency-stop sweep that
// outranks everything else.
package machine

import (
	"time"

	"github.com/gwillem/motionctl/pkg/axis"
)

// AxisState is one axis's last polled status. Stale means the last
// poll failed: the values are the previous known ones and must be
// treated as unknown, not current.
type AxisState struct {
	Name        string
	Kind        axis.Kind
	Position    float64 // mm for linear, signed step count for rotary
	Speed       axis.Speed
	Busy        bool
	LastUpdated time.Time
	Stale       bool
}

// Snapshot is an immutable view of every attached axis at one poll
// tick. The poller builds a fresh map per tick, so holding a snapshot
// never races with the next one.
type Snapshot struct {
	Version uint64
	Taken   time.Time
	Axes    map[string]AxisState
}

// Get returns the state for name, with ok=false if the axis was not
// attached at poll time.
func (s Snapshot) Get(name string) (AxisState, bool) {
	st, ok := s.Axes[name]
	return st, ok
}
