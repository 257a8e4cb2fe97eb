// Package device talks to a pulse generator over its text console.
package device

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/golang/glog"
)

// DefaultTimeout bounds the wait for one reply line.
const DefaultTimeout = 2 * time.Second

// ErrTimeout is returned when the device does not answer in time.
var ErrTimeout = errors.New("device: reply timeout")

// DeviceError is an "err <code>" reply.
type DeviceError struct {
	Command string
	Code    string
}

func (e *DeviceError) Error() string {
	return fmt.Sprintf("%s: device error %s", e.Command, e.Code)
}

// CodeOf returns the device error code carried by err, or "".
func CodeOf(err error) string {
	var de *DeviceError
	if errors.As(err, &de) {
		return de.Code
	}
	return ""
}

// Client sends command lines and reads their replies. Diagnostic lines the
// firmware interleaves (starting with '[') are logged and skipped.
type Client struct {
	mu      sync.Mutex
	rw      io.ReadWriter
	r       *bufio.Reader
	timeout time.Duration

	// Diagnostics receives every skipped diagnostic line when set.
	Diagnostics func(line string)
}

// NewClient wraps an open port.
func NewClient(rw io.ReadWriter) *Client {
	return &Client{
		rw:      rw,
		r:       bufio.NewReader(rw),
		timeout: DefaultTimeout,
	}
}

// SetTimeout changes the per-reply timeout.
func (c *Client) SetTimeout(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.timeout = d
}

// Command sends one line and returns the reply value. "ok" replies return
// "ok"; "err <code>" replies return a *DeviceError.
func (c *Client) Command(line string) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	line = strings.TrimSpace(line)
	if line == "" {
		return "", fmt.Errorf("empty command")
	}
	glog.V(2).Infof("-> %s", line)
	if _, err := io.WriteString(c.rw, line+"\r\n"); err != nil {
		return "", fmt.Errorf("write %q: %w", line, err)
	}

	reply, err := c.readReply()
	if err != nil {
		return "", fmt.Errorf("%s: %w", verb(line), err)
	}
	glog.V(2).Infof("<- %s", reply)

	if code, ok := strings.CutPrefix(reply, "err "); ok {
		return "", &DeviceError{Command: verb(line), Code: code}
	}
	return reply, nil
}

// readReply returns the next non-diagnostic line. Reads that time out at
// the port level come back empty and are retried until the deadline.
func (c *Client) readReply() (string, error) {
	deadline := time.Now().Add(c.timeout)
	var buf strings.Builder
	for {
		b, err := c.r.ReadByte()
		if err != nil {
			if !errors.Is(err, io.EOF) && !errors.Is(err, io.ErrNoProgress) {
				return "", err
			}
			if time.Now().After(deadline) {
				return "", ErrTimeout
			}
			time.Sleep(time.Millisecond)
			continue
		}
		if b != '\n' && b != '\r' {
			buf.WriteByte(b)
			continue
		}
		line := buf.String()
		buf.Reset()
		if line == "" {
			continue
		}
		if strings.HasPrefix(line, "[") {
			glog.V(1).Infof("device: %s", line)
			if c.Diagnostics != nil {
				c.Diagnostics(line)
			}
			continue
		}
		return line, nil
	}
}

func verb(line string) string {
	if i := strings.IndexByte(line, ' '); i >= 0 {
		return line[:i]
	}
	return line
}

// expectOK runs a command whose only good reply is "ok".
func (c *Client) expectOK(line string) error {
	reply, err := c.Command(line)
	if err != nil {
		return err
	}
	if reply != "ok" {
		return fmt.Errorf("%s: unexpected reply %q", verb(line), reply)
	}
	return nil
}

// Status returns the system status name.
func (c *Client) Status() (string, error) { return c.Command("stat") }

// Version returns the firmware version string.
func (c *Client) Version() (string, error) { return c.Command("vers") }

// Fire arms the sequencer.
func (c *Client) Fire() error { return c.expectOK("fire") }

// Stop requests an abort.
func (c *Client) Stop() error { return c.expectOK("stop") }

// Reset restores every channel to its power-on state.
func (c *Client) Reset() error { return c.expectOK("rst") }

// SetDebug sets the firmware debug level (0-2).
func (c *Client) SetDebug(level int) error {
	return c.expectOK("dbg " + strconv.Itoa(level))
}

// Frequency returns the system clock in Hz.
func (c *Client) Frequency() (uint32, error) {
	reply, err := c.Command("freq")
	if err != nil {
		return 0, err
	}
	hz, err := strconv.ParseUint(reply, 10, 32)
	if err != nil {
		return 0, fmt.Errorf("freq: bad reply %q: %w", reply, err)
	}
	return uint32(hz), nil
}

// WaitIdle polls the status until the sequencer is idle or aborted and
// returns the final status.
func (c *Client) WaitIdle(poll, limit time.Duration) (string, error) {
	deadline := time.Now().Add(limit)
	for {
		status, err := c.Status()
		if err != nil {
			return "", err
		}
		if status == "IDLE" || status == "ABORTED" {
			return status, nil
		}
		if time.Now().After(deadline) {
			return status, ErrTimeout
		}
		time.Sleep(poll)
	}
}
