package core

import "sync"

// DebugWriter is a function type for writing debug messages
type DebugWriter func(string)

// SequencerEvent captures one step of an arm cycle for post-mortem dumps.
type SequencerEvent struct {
	EventType uint8
	Channel   uint8
	Clock     uint32 // system ticks at the event
	Value1    uint32
	Value2    uint32
}

// Event type codes
const (
	EvtArm         = 1 // arm token accepted, Value1 = debug level
	EvtConfigure   = 2 // channel bound, Value1 = kind, Value2 = unit
	EvtReject      = 3 // pulse program failed validation
	EvtConflict    = 4 // output conflict between pulse channels
	EvtStart       = 5 // units enabled, Value1 = clock mask, Value2 = pulse mask
	EvtAbortSeen   = 6 // abort request observed by the sequencer
	EvtTeardown    = 7 // channel released, Value1 = kind
	EvtFinish      = 8 // cycle finished, Value1 = final status
	EvtConfigError = 9 // unit setup failed, Value1 = kind
)

const (
	EventRingSize = 32 // Keep last 32 events for post-mortem
)

var (
	// debugPrintln is the global debug print function (can be set by platform code)
	debugPrintln DebugWriter = func(s string) {} // No-op by default

	// debugEnabled controls whether DebugPrintln output is active
	debugEnabled bool = false

	// Async debug output channel
	debugChan chan string
)

// SetDebugWriter sets the platform-specific debug output function
// This allows platforms to redirect debug output to UART, USB, etc.
func SetDebugWriter(writer DebugWriter) {
	debugPrintln = writer
}

// SetDebugEnabled enables or disables DebugPrintln output
func SetDebugEnabled(enabled bool) {
	debugEnabled = enabled
}

// InitAsyncDebug starts the async debug output goroutine
// Call this from main() after SetDebugWriter
func InitAsyncDebug() {
	debugChan = make(chan string, 16) // Buffer 16 messages
	go debugOutputWorker()
}

// debugOutputWorker runs in background, drains debug channel
func debugOutputWorker() {
	for msg := range debugChan {
		if debugPrintln != nil {
			debugPrintln(msg)
		}
	}
}

// DebugPrintln writes a debug message using the platform-specific writer
// Blocks if debug is enabled (use DebugAsync for non-blocking)
func DebugPrintln(msg string) {
	if debugEnabled && debugPrintln != nil {
		debugPrintln(msg)
	}
}

// DebugAsync queues a debug message for async output (non-blocking)
// Returns immediately even if channel is full (drops message).
// Without InitAsyncDebug the message is written synchronously.
func DebugAsync(msg string) {
	if debugChan == nil {
		if debugPrintln != nil {
			debugPrintln(msg)
		}
		return
	}
	select {
	case debugChan <- msg:
	default:
		// Channel full, drop message (non-blocking)
	}
}

// EventRing keeps the most recent sequencer events. The sequencer writes,
// the console reads; both may run on different cores.
type EventRing struct {
	mu     sync.Mutex
	events [EventRingSize]SequencerEvent
	head   uint8
	count  uint8
}

// Record captures an event. It never blocks on I/O.
func (r *EventRing) Record(eventType, channel uint8, value1, value2 uint32) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events[r.head] = SequencerEvent{
		EventType: eventType,
		Channel:   channel,
		Clock:     GetTime(),
		Value1:    value1,
		Value2:    value2,
	}
	r.head = (r.head + 1) % EventRingSize
	if r.count < EventRingSize {
		r.count++
	}
}

// Snapshot returns the recorded events, oldest first.
func (r *EventRing) Snapshot() []SequencerEvent {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]SequencerEvent, 0, r.count)
	start := (r.head + EventRingSize - r.count) % EventRingSize
	for i := uint8(0); i < r.count; i++ {
		out = append(out, r.events[(start+i)%EventRingSize])
	}
	return out
}

// Clear empties the ring.
func (r *EventRing) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = [EventRingSize]SequencerEvent{}
	r.head = 0
	r.count = 0
}

// EventName returns the short name printed by event dumps.
func EventName(eventType uint8) string {
	switch eventType {
	case EvtArm:
		return "ARM"
	case EvtConfigure:
		return "CONFIGURE"
	case EvtReject:
		return "REJECT"
	case EvtConflict:
		return "CONFLICT"
	case EvtStart:
		return "START"
	case EvtAbortSeen:
		return "ABORT_SEEN"
	case EvtTeardown:
		return "TEARDOWN"
	case EvtFinish:
		return "FINISH"
	case EvtConfigError:
		return "CONFIG_ERROR"
	}
	return "UNKNOWN"
}

// FormatEvent renders one event as a single line.
func FormatEvent(evt SequencerEvent) string {
	return EventName(evt.EventType) +
		" ch=" + itoa(int(evt.Channel)) +
		" clock=" + utoa(evt.Clock) +
		" v1=" + utoa(evt.Value1) +
		" v2=" + utoa(evt.Value2)
}
