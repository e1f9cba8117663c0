// Package command implements the line-oriented request/response
// protocol spoken by serial motion controllers. Commands are UTF-8
// text terminated by a newline; every response starts with OK:,
// ERROR: or STATUS:.
package command

import (
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"
	"go.bug.st/serial"
)

const (
	// DefaultBaudRate matches the stepper controller firmware.
	DefaultBaudRate = 115200

	// DefaultTimeout bounds a single response read.
	DefaultTimeout = 1 * time.Second

	// readyWait bounds the wait for the READY sentinel on connect.
	readyWait = 5 * time.Second

	// pollInterval is how long a single port read may block before we
	// recheck the response deadline.
	pollInterval = 50 * time.Millisecond
)

var (
	// ErrTimeout is returned when the device produces no response
	// within the channel's read timeout.
	ErrTimeout = errors.New("command: response timeout")

	// ErrProtocol is returned for responses that do not start with a
	// known prefix. The caller decides whether to retry.
	ErrProtocol = errors.New("command: malformed response")
)

// Kind classifies a device response.
type Kind int

const (
	OK Kind = iota
	Error
	Status
)

// Response is one parsed response line.
type Response struct {
	Kind   Kind
	Detail string // text after the prefix, empty for bare "OK"
}

// Channel is a request/response engine over a byte stream. A channel
// allows exactly one in-flight request; concurrent senders serialize
// on an internal mutex so bytes from two commands never interleave.
type Channel struct {
	mu      sync.Mutex
	port    io.ReadWriteCloser
	timeout time.Duration
}

// New wraps an already-open transport. Used directly by tests and by
// Open for real serial ports.
func New(port io.ReadWriteCloser, timeout time.Duration) *Channel {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Channel{port: port, timeout: timeout}
}

// Open connects to a serial device and waits briefly for its READY
// line. A missing READY is only a warning: the device may have been
// powered long before we connected.
func Open(portName string, baudRate int) (*Channel, error) {
	if baudRate <= 0 {
		baudRate = DefaultBaudRate
	}
	port, err := serial.Open(portName, &serial.Mode{BaudRate: baudRate})
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", portName, err)
	}
	if err := port.SetReadTimeout(pollInterval); err != nil {
		port.Close()
		return nil, fmt.Errorf("set read timeout on %s: %w", portName, err)
	}

	c := New(port, DefaultTimeout)
	if !c.WaitReady(readyWait) {
		log.WithField("port", portName).Warn("no READY from device, assuming already initialized")
	}
	return c, nil
}

// Close closes the underlying transport. Safe to call more than once
// on serial ports; a nil channel is a no-op.
func (c *Channel) Close() error {
	if c == nil || c.port == nil {
		return nil
	}
	return c.port.Close()
}

// Send writes one command line and blocks for its response. The line
// terminator is appended here; cmd must not contain one already.
func (c *Channel) Send(cmd string) (Response, error) {
	if strings.ContainsAny(cmd, "\r\n") {
		return Response{}, fmt.Errorf("command %q contains line terminator", cmd)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if _, err := c.port.Write([]byte(cmd + "\n")); err != nil {
		return Response{}, fmt.Errorf("write %q: %w", cmd, err)
	}
	line, err := c.readLine(c.timeout)
	if err != nil {
		return Response{}, fmt.Errorf("%s: %w", cmd, err)
	}
	return parse(line)
}

// WaitReady consumes lines until READY arrives or the deadline
// passes. Returns false if the sentinel never showed up.
func (c *Channel) WaitReady(wait time.Duration) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	deadline := time.Now().Add(wait)
	for time.Now().Before(deadline) {
		line, err := c.readLine(time.Until(deadline))
		if err != nil {
			return false
		}
		if line == "READY" {
			return true
		}
	}
	return false
}

// readLine accumulates bytes until a newline. Serial reads return
// (0, nil) on their own short timeout, which lets us enforce the
// wall-clock deadline here.
func (c *Channel) readLine(timeout time.Duration) (string, error) {
	deadline := time.Now().Add(timeout)
	var sb strings.Builder
	buf := make([]byte, 1)
	for {
		n, err := c.port.Read(buf)
		if err != nil {
			return "", err
		}
		if n == 0 {
			if time.Now().After(deadline) {
				return "", ErrTimeout
			}
			continue
		}
		switch buf[0] {
		case '\n':
			return strings.TrimSuffix(sb.String(), "\r"), nil
		default:
			sb.WriteByte(buf[0])
		}
	}
}

func parse(line string) (Response, error) {
	switch {
	case line == "OK":
		return Response{Kind: OK}, nil
	case strings.HasPrefix(line, "OK:"):
		return Response{Kind: OK, Detail: line[len("OK:"):]}, nil
	case strings.HasPrefix(line, "ERROR:"):
		return Response{Kind: Error, Detail: line[len("ERROR:"):]}, nil
	case strings.HasPrefix(line, "STATUS:"):
		return Response{Kind: Status, Detail: line[len("STATUS:"):]}, nil
	}
	return Response{}, fmt.Errorf("%w: %q", ErrProtocol, line)
}
