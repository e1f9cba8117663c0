package command

import (
	"errors"
	"strings"
	"sync"
	"testing"
	"time"
)

// fakePort scripts responses per command line. Reads return (0, nil)
// when no data is pending, matching serial port timeout behavior.
type fakePort struct {
	mu     sync.Mutex
	rx     []byte
	writes []string
	script map[string]string
	closed bool
}

func newFakePort(script map[string]string) *fakePort {
	return &fakePort{script: script}
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

func (p *fakePort) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closed = true
	return nil
}

func (p *fakePort) push(line string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.rx = append(p.rx, []byte(line+"\n")...)
}

func TestSend_Classification(t *testing.T) {
	tests := []struct {
		cmd    string
		resp   string
		kind   Kind
		detail string
	}{
		{"ENABLE", "OK", OK, ""},
		{"SPEED_RPS:2.5", "OK:2.50", OK, "2.50"},
		{"SPEED_RPS:9999", "ERROR:speed out of range", Error, "speed out of range"},
		{"STATUS", "STATUS:1.00,2.00,4800", Status, "1.00,2.00,4800"},
	}

	for _, tt := range tests {
		port := newFakePort(map[string]string{tt.cmd: tt.resp})
		ch := New(port, time.Second)

		got, err := ch.Send(tt.cmd)
		if err != nil {
			t.Fatalf("Send(%q) error: %v", tt.cmd, err)
		}
		if got.Kind != tt.kind {
			t.Errorf("Send(%q) kind = %v, want %v", tt.cmd, got.Kind, tt.kind)
		}
		if got.Detail != tt.detail {
			t.Errorf("Send(%q) detail = %q, want %q", tt.cmd, got.Detail, tt.detail)
		}
	}
}

func TestSend_CRLF(t *testing.T) {
	port := newFakePort(map[string]string{"STATUS": "STATUS:0.00,0.00,0\r"})
	ch := New(port, time.Second)

	got, err := ch.Send("STATUS")
	if err != nil {
		t.Fatalf("Send error: %v", err)
	}
	if got.Detail != "0.00,0.00,0" {
		t.Errorf("Detail = %q, want CR stripped", got.Detail)
	}
}

func TestSend_MalformedResponse(t *testing.T) {
	port := newFakePort(map[string]string{"STATUS": "garbage without prefix"})
	ch := New(port, time.Second)

	_, err := ch.Send("STATUS")
	if !errors.Is(err, ErrProtocol) {
		t.Errorf("Send with malformed response = %v, want ErrProtocol", err)
	}
}

func TestSend_Timeout(t *testing.T) {
	port := newFakePort(nil) // never responds
	ch := New(port, 20*time.Millisecond)

	_, err := ch.Send("STATUS")
	if !errors.Is(err, ErrTimeout) {
		t.Errorf("Send without response = %v, want ErrTimeout", err)
	}
}

func TestSend_RejectsEmbeddedTerminator(t *testing.T) {
	port := newFakePort(nil)
	ch := New(port, time.Second)

	for _, cmd := range []string{"STOP\n", "STOP\r\nENABLE"} {
		if _, err := ch.Send(cmd); err == nil {
			t.Errorf("Send(%q) succeeded, want error", cmd)
		}
	}
	if len(port.writes) != 0 {
		t.Errorf("rejected commands reached the port: %v", port.writes)
	}
}

func TestSend_SerializesConcurrentCallers(t *testing.T) {
	port := newFakePort(map[string]string{"STATUS": "STATUS:0.00,0.00,0"})
	ch := New(port, time.Second)

	const n = 20
	var wg sync.WaitGroup
	errs := make(chan error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := ch.Send("STATUS"); err != nil {
				errs <- err
			}
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Errorf("concurrent Send error: %v", err)
	}
	if len(port.writes) != n {
		t.Errorf("port saw %d commands, want %d", len(port.writes), n)
	}
}

func TestWaitReady(t *testing.T) {
	port := newFakePort(nil)
	port.push("boot noise")
	port.push("READY")
	ch := New(port, time.Second)

	if !ch.WaitReady(200 * time.Millisecond) {
		t.Error("WaitReady = false, want true")
	}
}

func TestWaitReady_Absent(t *testing.T) {
	port := newFakePort(nil)
	ch := New(port, time.Second)

	if ch.WaitReady(30 * time.Millisecond) {
		t.Error("WaitReady = true without sentinel")
	}
}
