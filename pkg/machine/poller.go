package machine

import (
	"context"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"
)

// DefaultPollInterval is the status poll period.
const DefaultPollInterval = 150 * time.Millisecond

// Poller periodically reads position, speed and busy from every
// attached axis and publishes an atomic snapshot. One axis failing a
// read only marks that axis stale; the rest keep polling.
type Poller struct {
	reg      *Registry
	interval time.Duration

	mu   sync.RWMutex
	snap Snapshot

	updates chan Snapshot
}

func NewPoller(reg *Registry, interval time.Duration) *Poller {
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	return &Poller{
		reg:      reg,
		interval: interval,
		snap:     Snapshot{Axes: map[string]AxisState{}},
		updates:  make(chan Snapshot, 1),
	}
}

// Interval returns the poll period.
func (p *Poller) Interval() time.Duration { return p.interval }

// Run polls until ctx is canceled. It performs one poll immediately
// so a snapshot exists before the first tick.
func (p *Poller) Run(ctx context.Context) error {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	p.poll()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			p.poll()
		}
	}
}

// Snapshot returns the latest published snapshot. The contained map
// is never mutated after publication.
func (p *Poller) Snapshot() Snapshot {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.snap
}

// Updates delivers snapshots to a front end. When the consumer lags,
// older snapshots are dropped in favor of the newest.
func (p *Poller) Updates() <-chan Snapshot {
	return p.updates
}

func (p *Poller) poll() {
	prev := p.Snapshot()
	now := time.Now()
	next := Snapshot{
		Version: prev.Version + 1,
		Taken:   now,
		Axes:    make(map[string]AxisState, p.reg.Len()),
	}

	for name, ctrl := range p.reg.Controllers() {
		st := AxisState{Name: name, Kind: ctrl.Kind(), LastUpdated: now}

		pos, perr := ctrl.Position()
		spd, serr := ctrl.Speed()
		busy, berr := ctrl.Busy()

		if perr != nil || serr != nil || berr != nil {
			// Keep the previous known values and flag them unknown.
			// Reads may also fail because the axis detached mid-poll.
			if old, ok := prev.Axes[name]; ok {
				st = old
			}
			st.Stale = true
			err := perr
			if err == nil {
				err = serr
			}
			if err == nil {
				err = berr
			}
			log.WithField("axis", name).WithError(err).Debug("status read failed, marking stale")
		} else {
			st.Position = pos
			st.Speed = spd
			st.Busy = busy
		}
		next.Axes[name] = st
	}

	p.mu.Lock()
	p.snap = next
	p.mu.Unlock()

	p.publish(next)
}

// publish pushes a snapshot without ever blocking the poll loop.
func (p *Poller) publish(s Snapshot) {
	select {
	case p.updates <- s:
	default:
		select {
		case <-p.updates:
		default:
		}
		select {
		case p.updates <- s:
		default:
		}
	}
}
