package serial

import (
	"io"
	"strings"
	"time"
)

// Port represents a serial port interface
// This abstraction allows for different implementations:
// - Native serial (using github.com/tarm/serial)
// - Fake ports in tests
type Port interface {
	io.ReadWriteCloser

	// Flush flushes any buffered data
	Flush() error
}

// Config holds serial port configuration
type Config struct {
	// Device path (e.g., "/dev/ttyACM0", "COM3")
	Device string

	// Baud rate (USB CDC ignores this; it matters for the UART console)
	Baud int

	// ReadTimeout bounds each read (0 = blocking)
	ReadTimeout time.Duration
}

// DefaultConfig returns the configuration for the USB console
func DefaultConfig(device string) *Config {
	return &Config{
		Device:      device,
		Baud:        115200,
		ReadTimeout: 100 * time.Millisecond,
	}
}

// PortInfo describes a candidate device port.
type PortInfo struct {
	Name    string
	IsUSB   bool
	VID     string
	PID     string
	Serial  string
	Product string
}

// Raspberry Pi's USB vendor ID, used by RP2040 boards running TinyGo.
const rp2040VID = "2E8A"

// LikelyDevice reports whether the port looks like a pulse generator.
func (p PortInfo) LikelyDevice() bool {
	return p.IsUSB && strings.EqualFold(p.VID, rp2040VID)
}
