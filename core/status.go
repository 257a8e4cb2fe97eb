package core

import "sync"

// SystemStatus is the run state shared between the command side and the
// sequencer. Numeric values are reported by the console and must not change.
type SystemStatus uint32

const (
	StatusIdle SystemStatus = iota
	StatusArming
	StatusRunning
	StatusAbortRequested
	StatusAborting
	StatusAborted
	StatusDisarming
)

var statusNames = [...]string{
	StatusIdle:           "IDLE",
	StatusArming:         "ARMING",
	StatusRunning:        "RUNNING",
	StatusAbortRequested: "ABORT_REQUESTED",
	StatusAborting:       "ABORTING",
	StatusAborted:        "ABORTED",
	StatusDisarming:      "DISARMING",
}

func (s SystemStatus) String() string {
	if int(s) < len(statusNames) {
		return statusNames[s]
	}
	return "UNKNOWN"
}

// DebugLevel controls sequencer narration. DebugVerbose is a dry run: the
// configuration is printed and the arm cycle ends in StatusAborted without
// touching hardware.
type DebugLevel uint32

const (
	DebugQuiet DebugLevel = iota
	DebugVerbose
	DebugVeryVerbose
)

func (d DebugLevel) String() string {
	switch d {
	case DebugQuiet:
		return "QUIET"
	case DebugVerbose:
		return "VERBOSE"
	case DebugVeryVerbose:
		return "VERY_VERBOSE"
	}
	return "UNKNOWN"
}

// StatusHook observes every status write. It runs outside the lock.
type StatusHook func(SystemStatus)

// Registers holds the status and debug registers. Every access takes the
// mutex; nothing blocks while it is held.
type Registers struct {
	mu     sync.Mutex
	status SystemStatus
	debug  DebugLevel
	hook   StatusHook
}

func NewRegisters() *Registers {
	return &Registers{}
}

// SetHook installs fn as the status observer (nil removes it).
func (r *Registers) SetHook(fn StatusHook) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.hook = fn
}

func (r *Registers) Status() SystemStatus {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.status
}

func (r *Registers) SetStatus(s SystemStatus) {
	r.mu.Lock()
	r.status = s
	hook := r.hook
	r.mu.Unlock()
	if hook != nil {
		hook(s)
	}
}

// Advance moves to next unless an abort request is pending, in which case
// the request is left in place and false is returned.
func (r *Registers) Advance(next SystemStatus) bool {
	r.mu.Lock()
	if r.status == StatusAbortRequested {
		r.mu.Unlock()
		return false
	}
	r.status = next
	hook := r.hook
	r.mu.Unlock()
	if hook != nil {
		hook(next)
	}
	return true
}

// RequestAbort flags a pending abort. It only has an effect while the
// sequencer is arming or running.
func (r *Registers) RequestAbort() bool {
	r.mu.Lock()
	if r.status != StatusArming && r.status != StatusRunning {
		r.mu.Unlock()
		return false
	}
	r.status = StatusAbortRequested
	hook := r.hook
	r.mu.Unlock()
	if hook != nil {
		hook(StatusAbortRequested)
	}
	return true
}

// IsRunning reports whether an arm cycle is in progress, i.e. the status is
// neither Idle nor Aborted.
func (r *Registers) IsRunning() bool {
	s := r.Status()
	return s != StatusIdle && s != StatusAborted
}

func (r *Registers) Debug() DebugLevel {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.debug
}

func (r *Registers) SetDebug(level DebugLevel) error {
	if level > DebugVeryVerbose {
		return fail(OutOfRange, "set_debug", "level "+utoa(uint32(level)))
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.debug = level
	return nil
}
