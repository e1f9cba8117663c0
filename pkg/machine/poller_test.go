package machine

import (
	"context"
	"testing"
	"time"

	"github.com/gwillem/motionctl/pkg/axis"
)

func TestPoller_SnapshotCoversAllAxes(t *testing.T) {
	reg := NewRegistry()
	reg.Attach("X", axis.NewSimulated(axis.Linear))
	reg.Attach("Rotation", axis.NewSimulated(axis.Rotary))

	p := NewPoller(reg, 10*time.Millisecond)
	p.poll()

	snap := p.Snapshot()
	if len(snap.Axes) != 2 {
		t.Fatalf("snapshot has %d axes, want 2", len(snap.Axes))
	}
	for _, name := range []string{"X", "Rotation"} {
		st, ok := snap.Get(name)
		if !ok {
			t.Fatalf("axis %q missing from snapshot", name)
		}
		if st.Stale {
			t.Errorf("axis %q marked stale", name)
		}
		if st.LastUpdated.IsZero() {
			t.Errorf("axis %q has zero LastUpdated", name)
		}
	}
}

func TestPoller_FailingAxisGoesStale(t *testing.T) {
	reg := NewRegistry()
	good := axis.NewSimulated(axis.Linear)
	good.SetVelocity(1000)
	bad := axis.NewSimulated(axis.Rotary)
	reg.Attach("X", good)
	reg.Attach("Rotation", bad)

	p := NewPoller(reg, 10*time.Millisecond)
	ctx := context.Background()

	bad.MoveAbsolute(ctx, 3) // last good reading: target 3 rps
	p.poll()
	before, _ := p.Snapshot().Get("Rotation")
	if before.Stale {
		t.Fatal("rotary stale before fault injection")
	}

	bad.Fail(true)
	good.MoveAbsolute(ctx, 5)
	time.Sleep(20 * time.Millisecond)
	p.poll()

	snap := p.Snapshot()
	rot, _ := snap.Get("Rotation")
	if !rot.Stale {
		t.Error("rotary not marked stale after read failures")
	}
	if rot.Speed.Target != before.Speed.Target {
		t.Errorf("stale axis target = %v, want last known %v", rot.Speed.Target, before.Speed.Target)
	}
	lin, _ := snap.Get("X")
	if lin.Stale {
		t.Error("healthy axis marked stale alongside the failing one")
	}
	if lin.Position == 0 {
		t.Error("healthy axis stopped updating")
	}
}

func TestPoller_VersionAdvances(t *testing.T) {
	reg := NewRegistry()
	reg.Attach("X", axis.NewSimulated(axis.Linear))

	p := NewPoller(reg, 10*time.Millisecond)
	p.poll()
	v1 := p.Snapshot().Version
	p.poll()
	v2 := p.Snapshot().Version
	if v2 <= v1 {
		t.Errorf("version did not advance: %d then %d", v1, v2)
	}
}

func TestPoller_UpdatesDropOldest(t *testing.T) {
	reg := NewRegistry()
	reg.Attach("X", axis.NewSimulated(axis.Linear))

	p := NewPoller(reg, 10*time.Millisecond)
	// Nobody drains the channel; polling must never block.
	for i := 0; i < 10; i++ {
		p.poll()
	}

	select {
	case snap := <-p.Updates():
		if len(snap.Axes) != 1 {
			t.Errorf("published snapshot has %d axes, want 1", len(snap.Axes))
		}
	default:
		t.Fatal("no snapshot published")
	}
}
