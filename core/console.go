package core

import (
	"strconv"
	"strings"
)

// SystemInfo supplies the console's target-specific answers.
type SystemInfo struct {
	Version string
	CPUFreq func() uint32
}

// Console is the text front end over a Device. It is used from the command
// side only.
type Console struct {
	dev      *Device
	info     SystemInfo
	registry *CommandRegistry
}

// NewConsole creates a console with every verb registered.
func NewConsole(dev *Device, info SystemInfo) *Console {
	c := &Console{
		dev:      dev,
		info:     info,
		registry: NewCommandRegistry(),
	}
	c.registerCommands()
	return c
}

// Registry exposes the verb table.
func (c *Console) Registry() *CommandRegistry { return c.registry }

// Execute runs one line and returns its reply.
func (c *Console) Execute(line string) string {
	return c.registry.Dispatch(strings.TrimSpace(line))
}

func parseID(s string) (uint8, error) {
	v, err := strconv.ParseUint(s, 10, 8)
	if err != nil {
		return 0, fail(BadArgs, "id", s)
	}
	if !ValidID(uint8(v)) {
		return 0, fail(InvalidID, "id", s)
	}
	return uint8(v), nil
}

func parseU32(s string) (uint32, error) {
	v, err := strconv.ParseUint(s, 10, 32)
	if err != nil {
		return 0, fail(BadArgs, "uint", s)
	}
	return uint32(v), nil
}

// parseOutput accepts decimal, 0x hex or 0b binary output masks.
func parseOutput(s string) (uint32, error) {
	v, err := strconv.ParseUint(s, 0, 32)
	if err != nil {
		return 0, fail(BadArgs, "output", s)
	}
	return uint32(v), nil
}

func parseFloat(s string) (float64, error) {
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fail(BadArgs, "number", s)
	}
	return v, nil
}

func parseBool(s string) (bool, error) {
	switch s {
	case "1", "on", "true":
		return true, nil
	case "0", "off", "false":
		return false, nil
	}
	return false, fail(BadArgs, "bool", s)
}

func formatBool(b bool) string {
	if b {
		return "1"
	}
	return "0"
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}

// pairArgs checks that args holds whole pairs.
func pairArgs(op string, args []string) error {
	if len(args)%2 != 0 {
		return fail(BadArgs, op, "odd number of pair values")
	}
	return nil
}

// clockDelayNanos converts a clock delay in user time units. The clock's
// unit offset maps its frequency unit to Hz, so its time unit is the
// reciprocal: with the default offset a delay is in seconds.
func clockDelayNanos(value, unitOffset float64) (uint64, error) {
	if !(unitOffset > 0) {
		return 0, fail(OutOfRange, "units", "unit offset")
	}
	return UserToNanos(value, 1e9/unitOffset)
}

func joinWords(words []uint32) string {
	var b strings.Builder
	for i, w := range words {
		if i > 0 {
			b.WriteByte(' ')
		}
		b.WriteString(utoa(w))
	}
	return b.String()
}
