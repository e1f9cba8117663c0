package machine

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/gwillem/motionctl/pkg/axis"
)

// ErrAlreadyRunning is returned by Start while a run is active.
// Exactly one path may execute at a time, system-wide.
var ErrAlreadyRunning = errors.New("machine: path already running")

// Status is the path executor's lifecycle state.
type Status string

const (
	StatusIdle      Status = "idle"
	StatusRunning   Status = "running"
	StatusPaused    Status = "paused"
	StatusStopping  Status = "stopping"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
	StatusStopped   Status = "stopped"
)

// active reports whether a run owns the executor in this state.
func (s Status) active() bool {
	return s == StatusRunning || s == StatusPaused || s == StatusStopping
}

// EventKind discriminates executor events.
type EventKind int

const (
	EventProgress EventKind = iota
	EventCompleted
	EventFailed
	EventStopped
)

// Event is what the executor reports to any consumer: progress after
// each completed waypoint, then exactly one terminal event.
type Event struct {
	Kind    EventKind
	Percent int
	Message string
	Err     error
}

// defaultStepTimeout bounds the completion wait of a single waypoint.
const defaultStepTimeout = 60 * time.Second

// pauseGateInterval is how often a paused run rechecks for resume or
// stop.
const pauseGateInterval = 20 * time.Millisecond

// Executor drives a recorded path: for every waypoint it dispatches
// all axis moves concurrently, waits for every axis to settle via the
// poller's snapshot, then advances. Pause takes effect at waypoint
// boundaries; stop is honored within one poll interval.
type Executor struct {
	reg         *Registry
	poller      *Poller
	stepTimeout time.Duration

	mu        sync.Mutex
	status    Status
	path      *Path
	repeat    int
	stepDelay time.Duration
	curRepeat int
	curStep   int
	failure   error
	cancel    context.CancelFunc
	done      chan struct{}

	events chan Event
}

func NewExecutor(reg *Registry, poller *Poller) *Executor {
	return &Executor{
		reg:         reg,
		poller:      poller,
		stepTimeout: defaultStepTimeout,
		status:      StatusIdle,
		events:      make(chan Event, 16),
	}
}

// SetStepTimeout overrides the per-waypoint completion bound.
func (e *Executor) SetStepTimeout(d time.Duration) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if d > 0 {
		e.stepTimeout = d
	}
}

// Events delivers progress and terminal events. When the consumer
// lags, the oldest events are dropped first.
func (e *Executor) Events() <-chan Event {
	return e.events
}

// Status returns the current lifecycle state.
func (e *Executor) Status() Status {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.status
}

// Progress returns the current repeat and step indices (1-based
// repeat, 0-based step).
func (e *Executor) Progress() (repeat, step int) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.curRepeat, e.curStep
}

// Failure returns the error that ended the last run, if any.
func (e *Executor) Failure() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.failure
}

// UsesAxis reports whether an active run references the named axis.
func (e *Executor) UsesAxis(name string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.status.active() || e.path == nil {
		return false
	}
	for _, n := range e.path.AxisNames() {
		if n == name {
			return true
		}
	}
	return false
}

// Start begins executing path. Legal only when no run is active;
// terminal states reset to a fresh run implicitly.
func (e *Executor) Start(path *Path, repeat int, stepDelay time.Duration) error {
	if path == nil || path.Len() == 0 {
		return fmt.Errorf("machine: empty path")
	}
	if repeat < 1 {
		repeat = 1
	}
	if stepDelay < 0 {
		stepDelay = 0
	}

	e.mu.Lock()
	if e.status.active() {
		e.mu.Unlock()
		return ErrAlreadyRunning
	}
	ctx, cancel := context.WithCancel(context.Background())
	e.status = StatusRunning
	e.path = path
	e.repeat = repeat
	e.stepDelay = stepDelay
	e.curRepeat = 1
	e.curStep = 0
	e.failure = nil
	e.cancel = cancel
	e.done = make(chan struct{})
	done := e.done
	e.mu.Unlock()

	log.WithFields(log.Fields{
		"steps":  path.Len(),
		"repeat": repeat,
	}).Info("path execution started")

	go func() {
		defer close(done)
		e.run(ctx, path, repeat, stepDelay)
	}()
	return nil
}

// Pause requests a pause; the in-flight step finishes first.
func (e *Executor) Pause() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.status != StatusRunning {
		return fmt.Errorf("machine: cannot pause from %s", e.status)
	}
	e.status = StatusPaused
	return nil
}

// Resume continues a paused run.
func (e *Executor) Resume() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.status != StatusPaused {
		return fmt.Errorf("machine: cannot resume from %s", e.status)
	}
	e.status = StatusRunning
	return nil
}

// Stop cancels the run, issues a stop to every axis the path
// references, and returns once the run goroutine has wound down.
// Stopping an inactive executor is a no-op.
func (e *Executor) Stop() error {
	e.mu.Lock()
	if e.status != StatusRunning && e.status != StatusPaused {
		e.mu.Unlock()
		return nil
	}
	e.status = StatusStopping
	cancel := e.cancel
	path := e.path
	done := e.done
	e.mu.Unlock()

	cancel()
	for _, name := range path.AxisNames() {
		ctrl, ok := e.reg.Get(name)
		if !ok {
			continue
		}
		ctx, cancelStop := context.WithTimeout(context.Background(), detachStopTimeout)
		if err := ctrl.Stop(ctx); err != nil {
			log.WithField("axis", name).WithError(err).Warn("stop failed during path stop")
		}
		cancelStop()
	}

	<-done
	return nil
}

func (e *Executor) run(ctx context.Context, path *Path, repeat int, stepDelay time.Duration) {
	total := repeat * path.Len()
	completed := 0

	for r := 1; r <= repeat; r++ {
		for i, wp := range path.Steps {
			e.mu.Lock()
			e.curRepeat = r
			e.curStep = i
			e.mu.Unlock()

			if err := e.gate(ctx); err != nil {
				e.finish(StatusStopped, nil)
				return
			}
			if err := e.dispatch(ctx, wp); err != nil {
				if ctx.Err() != nil {
					e.finish(StatusStopped, nil)
					return
				}
				e.finish(StatusFailed, err)
				return
			}
			dispatched := time.Now()
			if err := e.awaitSettled(ctx, wp, dispatched); err != nil {
				if ctx.Err() != nil {
					e.finish(StatusStopped, nil)
					return
				}
				e.finish(StatusFailed, err)
				return
			}

			completed++
			e.emit(Event{
				Kind:    EventProgress,
				Percent: completed * 100 / total,
				Message: fmt.Sprintf("step %d/%d (repeat %d/%d)", i+1, path.Len(), r, repeat),
			})

			if stepDelay > 0 {
				select {
				case <-ctx.Done():
					e.finish(StatusStopped, nil)
					return
				case <-time.After(stepDelay):
				}
			}
		}
	}
	e.finish(StatusCompleted, nil)
}

// gate blocks while paused, waking to recheck for resume or stop.
func (e *Executor) gate(ctx context.Context) error {
	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		e.mu.Lock()
		paused := e.status == StatusPaused
		e.mu.Unlock()
		if !paused {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(pauseGateInterval):
		}
	}
}

// dispatch fires every axis move in the waypoint concurrently. Axes
// are physically independent and each controller serializes its own
// transport.
func (e *Executor) dispatch(ctx context.Context, wp Waypoint) error {
	type result struct {
		name string
		err  error
	}
	results := make(chan result, len(wp.Targets))

	var wg sync.WaitGroup
	for name, target := range wp.Targets {
		ctrl, ok := e.reg.Get(name)
		if !ok {
			return fmt.Errorf("step %d: %w: %s", wp.Index+1, ErrNotAttached, name)
		}
		wg.Add(1)
		go func(name string, ctrl axis.Controller, target float64) {
			defer wg.Done()
			if err := ctrl.MoveAbsolute(ctx, target); err != nil {
				results <- result{name: name, err: err}
			}
		}(name, ctrl, target)
	}
	wg.Wait()
	close(results)

	for res := range results {
		if res.err != nil {
			return fmt.Errorf("step %d, axis %s: %w", wp.Index+1, res.name, res.err)
		}
	}
	return nil
}

// awaitSettled polls the shared snapshot until every axis in the
// waypoint reports settled, bounded by the per-step timeout. Stale
// axes never count as settled, and snapshots taken before the
// dispatch are ignored so a pre-move reading cannot complete the
// step early.
func (e *Executor) awaitSettled(ctx context.Context, wp Waypoint, dispatched time.Time) error {
	e.mu.Lock()
	stepTimeout := e.stepTimeout
	e.mu.Unlock()

	interval := e.poller.Interval()
	deadline := time.Now().Add(stepTimeout)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(interval):
		}

		snap := e.poller.Snapshot()
		fresh := snap.Taken.After(dispatched)
		var unsettled []string
		if fresh {
			for name := range wp.Targets {
				st, ok := snap.Get(name)
				if !ok || st.Stale || st.Busy {
					unsettled = append(unsettled, name)
				}
			}
			if len(unsettled) == 0 {
				return nil
			}
		}
		if time.Now().After(deadline) {
			if !fresh {
				return fmt.Errorf("step %d: %w after %s: no status updates",
					wp.Index+1, axis.ErrTimeout, stepTimeout)
			}
			sort.Strings(unsettled)
			return fmt.Errorf("step %d: %w after %s waiting for %s",
				wp.Index+1, axis.ErrTimeout, stepTimeout, strings.Join(unsettled, ", "))
		}
	}
}

// finish records the terminal state and emits the terminal event. A
// stop request that raced a normal completion wins unless the run
// actually failed.
func (e *Executor) finish(status Status, err error) {
	e.mu.Lock()
	if e.status == StatusStopping && status != StatusFailed {
		status = StatusStopped
	}
	e.status = status
	e.failure = err
	e.mu.Unlock()

	switch status {
	case StatusCompleted:
		log.Info("path execution completed")
		e.emit(Event{Kind: EventCompleted, Percent: 100, Message: "path completed"})
	case StatusFailed:
		log.WithError(err).Error("path execution failed")
		e.emit(Event{Kind: EventFailed, Message: err.Error(), Err: err})
	case StatusStopped:
		log.Info("path execution stopped")
		e.emit(Event{Kind: EventStopped, Message: "path stopped"})
	}
}

// emit pushes an event without blocking, dropping the oldest when the
// consumer lags.
func (e *Executor) emit(ev Event) {
	select {
	case e.events <- ev:
	default:
		select {
		case <-e.events:
		default:
		}
		select {
		case e.events <- ev:
		default:
		}
	}
}
