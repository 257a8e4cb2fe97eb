package device

import (
	"bytes"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakePort answers each written line from a script. Reads of an empty
// buffer return io.EOF, the way a serial port reports a read timeout.
type fakePort struct {
	mu      sync.Mutex
	in      bytes.Buffer
	sent    []string
	replies map[string]string
}

func newFakePort(replies map[string]string) *fakePort {
	return &fakePort{replies: replies}
}

func (f *fakePort) Write(b []byte) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	line := strings.TrimRight(string(b), "\r\n")
	f.sent = append(f.sent, line)
	if reply, ok := f.replies[line]; ok {
		f.in.WriteString(reply)
	}
	return len(b), nil
}

func (f *fakePort) Read(b []byte) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.in.Len() == 0 {
		return 0, io.EOF
	}
	return f.in.Read(b)
}

func (f *fakePort) lines() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.sent...)
}

func TestCommandOK(t *testing.T) {
	port := newFakePort(map[string]string{
		"cact 0 1": "ok\r\n",
		"stat":     "IDLE\r\n",
	})
	c := NewClient(port)

	reply, err := c.Command("cact 0 1")
	require.NoError(t, err)
	assert.Equal(t, "ok", reply)

	status, err := c.Status()
	require.NoError(t, err)
	assert.Equal(t, "IDLE", status)
	assert.Equal(t, []string{"cact 0 1", "stat"}, port.lines())
}

func TestCommandDeviceError(t *testing.T) {
	port := newFakePort(map[string]string{
		"cdiv 0 70000": "err out_of_range\r\n",
	})
	c := NewClient(port)

	_, err := c.Command("cdiv 0 70000")
	require.Error(t, err)
	assert.Equal(t, "out_of_range", CodeOf(err))
	assert.Contains(t, err.Error(), "cdiv")
}

func TestCommandSkipsDiagnostics(t *testing.T) {
	port := newFakePort(map[string]string{
		"fire": "[CFG] clock 0 mode=freerun pin=16 div=1\r\n[SEQ] start clocks=1 pulses=0\r\nok\r\n",
	})
	c := NewClient(port)

	var diag []string
	c.Diagnostics = func(line string) { diag = append(diag, line) }

	require.NoError(t, c.Fire())
	assert.Len(t, diag, 2)
	assert.True(t, strings.HasPrefix(diag[0], "[CFG]"))
}

func TestCommandTimeout(t *testing.T) {
	c := NewClient(newFakePort(nil))
	c.SetTimeout(20 * time.Millisecond)

	_, err := c.Command("stat")
	assert.ErrorIs(t, err, ErrTimeout)
	assert.Equal(t, "", CodeOf(err))
}

func TestFrequency(t *testing.T) {
	c := NewClient(newFakePort(map[string]string{"freq": "125000000\r\n"}))

	hz, err := c.Frequency()
	require.NoError(t, err)
	assert.Equal(t, uint32(125000000), hz)
}

func TestUnexpectedReply(t *testing.T) {
	c := NewClient(newFakePort(map[string]string{"stop": "IDLE\r\n"}))
	assert.Error(t, c.Stop())
}

func TestEmptyCommand(t *testing.T) {
	c := NewClient(newFakePort(nil))
	_, err := c.Command("   ")
	assert.Error(t, err)
}
