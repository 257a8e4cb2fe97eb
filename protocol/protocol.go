// Package protocol holds the byte plumbing of the text console: a FIFO
// fed by the transport, line assembly, and the reply scratch buffer.
package protocol

// Version is the firmware version reported by the console.
const Version = "pulsegen 0.1.0"

// Protocol constants
const (
	MessageMax = 512 // Maximum reply buffer size
	LineMax    = 256 // Longest accepted command line, terminator excluded
)
