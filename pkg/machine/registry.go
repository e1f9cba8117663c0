package machine

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/gwillem/motionctl/pkg/axis"
)

var (
	// ErrAlreadyAttached is returned when attaching a name already in
	// use.
	ErrAlreadyAttached = errors.New("machine: axis already attached")

	// ErrNotAttached is returned for operations on an unknown axis.
	ErrNotAttached = errors.New("machine: axis not attached")

	// ErrAxisBusy is returned when detaching an axis referenced by a
	// running path.
	ErrAxisBusy = errors.New("machine: axis in use by running path")

	// ErrConnect wraps transport or device failures during attach.
	// The registry is unchanged when it surfaces.
	ErrConnect = errors.New("machine: connect failed")
)

// detachStopTimeout bounds the stop issued before releasing an axis.
const detachStopTimeout = 2 * time.Second

// Registry owns the set of attached axis controllers, keyed by
// logical axis name. The executor's busy guard lives one layer up in
// Machine, which can see both registry and executor.
type Registry struct {
	mu   sync.RWMutex
	axes map[string]axis.Controller
}

func NewRegistry() *Registry {
	return &Registry{axes: make(map[string]axis.Controller)}
}

// Attach registers an already-connected controller under name.
func (r *Registry) Attach(name string, ctrl axis.Controller) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.axes[name]; ok {
		return fmt.Errorf("%w: %s", ErrAlreadyAttached, name)
	}
	r.axes[name] = ctrl
	return nil
}

// Detach stops the axis, closes its controller and removes it. The
// stop is bounded; a stop failure is logged but does not keep a dead
// axis attached.
func (r *Registry) Detach(name string) error {
	r.mu.Lock()
	ctrl, ok := r.axes[name]
	if !ok {
		r.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrNotAttached, name)
	}
	delete(r.axes, name)
	r.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), detachStopTimeout)
	defer cancel()
	if err := ctrl.Stop(ctx); err != nil {
		log.WithField("axis", name).WithError(err).Warn("stop before detach failed")
	}
	if err := ctrl.Close(); err != nil {
		return fmt.Errorf("close %s: %w", name, err)
	}
	return nil
}

// Get returns the controller for name.
func (r *Registry) Get(name string) (axis.Controller, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ctrl, ok := r.axes[name]
	return ctrl, ok
}

// Names returns the attached axis names, sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.axes))
	for name := range r.axes {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Controllers returns a point-in-time copy of the registry contents,
// safe to iterate while attaches and detaches continue.
func (r *Registry) Controllers() map[string]axis.Controller {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make(map[string]axis.Controller, len(r.axes))
	for name, ctrl := range r.axes {
		out[name] = ctrl
	}
	return out
}

// Len reports the number of attached axes.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.axes)
}
