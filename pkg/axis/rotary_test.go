package axis

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gwillem/motionctl/pkg/command"
)

// fakePort scripts one response per command line.
type fakePort struct {
	mu     sync.Mutex
	rx     []byte
	writes []string
	script map[string]string
}

func (p *fakePort) Read(b []byte) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.rx) == 0 {
		return 0, nil
	}
	n := copy(b, p.rx)
	p.rx = p.rx[n:]
	return n, nil
}

func (p *fakePort) Write(b []byte) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	cmd := strings.TrimSuffix(string(b), "\n")
	p.writes = append(p.writes, cmd)
	if resp, ok := p.script[cmd]; ok {
		p.rx = append(p.rx, []byte(resp+"\n")...)
	}
	return len(b), nil
}

func (p *fakePort) Close() error { return nil }

func (p *fakePort) sent() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.writes...)
}

func newRotaryWithScript(script map[string]string) (*RotaryAxis, *fakePort) {
	port := &fakePort{script: script}
	return NewRotary(command.New(port, 100*time.Millisecond)), port
}

func TestRotary_Status(t *testing.T) {
	a, port := newRotaryWithScript(map[string]string{
		"STATUS": "STATUS:1.50,1.50,4800",
	})

	pos, err := a.Position()
	if err != nil {
		t.Fatalf("Position: %v", err)
	}
	if pos != 4800 {
		t.Errorf("Position = %v, want 4800", pos)
	}

	spd, err := a.Speed()
	if err != nil {
		t.Fatalf("Speed: %v", err)
	}
	if spd.Current != 1.5 || spd.Target != 1.5 {
		t.Errorf("Speed = %+v, want 1.5/1.5", spd)
	}

	busy, err := a.Busy()
	if err != nil {
		t.Fatalf("Busy: %v", err)
	}
	if busy {
		t.Error("Busy = true at target speed")
	}

	// The cached status should have served all three reads.
	if n := len(port.sent()); n != 1 {
		t.Errorf("STATUS sent %d times, want 1", n)
	}
}

func TestRotary_BusyWhileRamping(t *testing.T) {
	a, _ := newRotaryWithScript(map[string]string{
		"STATUS": "STATUS:0.50,2.00,100",
	})

	busy, err := a.Busy()
	if err != nil {
		t.Fatalf("Busy: %v", err)
	}
	if !busy {
		t.Error("Busy = false while ramping to target speed")
	}
}

func TestRotary_MalformedStatus(t *testing.T) {
	tests := []string{
		"STATUS:garbage",
		"STATUS:1.0,2.0",
		"WHAT:1.0,2.0,3",
	}
	for _, resp := range tests {
		a, _ := newRotaryWithScript(map[string]string{"STATUS": resp})
		if _, err := a.Position(); !errors.Is(err, command.ErrProtocol) {
			t.Errorf("Position with %q = %v, want ErrProtocol", resp, err)
		}
	}
}

func TestRotary_SpeedDispatch(t *testing.T) {
	ctx := context.Background()
	a, port := newRotaryWithScript(map[string]string{
		"SPEED_RPS:2":   "OK:2.00",
		"SPEED_RPS:2.5": "OK:2.50",
	})

	if err := a.MoveAbsolute(ctx, 2); err != nil {
		t.Fatalf("MoveAbsolute: %v", err)
	}
	if err := a.MoveRelative(ctx, 0.5); err != nil {
		t.Fatalf("MoveRelative: %v", err)
	}

	want := []string{"SPEED_RPS:2", "SPEED_RPS:2.5"}
	got := port.sent()
	if len(got) != len(want) {
		t.Fatalf("sent %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("sent[%d] = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestRotary_DeviceError(t *testing.T) {
	ctx := context.Background()
	a, _ := newRotaryWithScript(map[string]string{
		"ENABLE": "ERROR:driver fault",
	})

	err := a.Enable(ctx)
	if err == nil || !strings.Contains(err.Error(), "driver fault") {
		t.Errorf("Enable = %v, want device error with reason", err)
	}
}

func TestRotary_StopIdempotent(t *testing.T) {
	ctx := context.Background()
	a, _ := newRotaryWithScript(map[string]string{"STOP": "OK"})

	if err := a.Stop(ctx); err != nil {
		t.Fatalf("first Stop: %v", err)
	}
	if err := a.Stop(ctx); err != nil {
		t.Fatalf("second Stop: %v", err)
	}

	// After close a stop is a no-op, not an error.
	if err := a.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if err := a.Stop(ctx); err != nil {
		t.Errorf("Stop after Close = %v, want nil", err)
	}
}

func TestRotary_HomeUnsupported(t *testing.T) {
	a, _ := newRotaryWithScript(nil)
	if err := a.Home(context.Background()); !errors.Is(err, ErrUnsupported) {
		t.Errorf("Home = %v, want ErrUnsupported", err)
	}
}
