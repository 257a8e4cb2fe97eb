package core

import (
	"errors"
	"testing"
)

func TestStatusNames(t *testing.T) {
	want := map[SystemStatus]string{
		StatusIdle:           "IDLE",
		StatusArming:         "ARMING",
		StatusRunning:        "RUNNING",
		StatusAbortRequested: "ABORT_REQUESTED",
		StatusAborting:       "ABORTING",
		StatusAborted:        "ABORTED",
		StatusDisarming:      "DISARMING",
	}
	for s, name := range want {
		if s.String() != name {
			t.Errorf("status %d = %q, want %q", s, s.String(), name)
		}
	}
	if StatusDisarming != 6 || StatusAborted != 5 {
		t.Error("status numbering changed")
	}
}

func TestRequestAbortOnlyWhileActive(t *testing.T) {
	r := NewRegisters()
	if r.RequestAbort() {
		t.Error("abort accepted while idle")
	}

	r.SetStatus(StatusRunning)
	if !r.RequestAbort() {
		t.Fatal("abort rejected while running")
	}
	if r.Status() != StatusAbortRequested {
		t.Errorf("status = %v, want ABORT_REQUESTED", r.Status())
	}
}

func TestAdvanceKeepsPendingAbort(t *testing.T) {
	r := NewRegisters()
	r.SetStatus(StatusArming)
	r.RequestAbort()

	if r.Advance(StatusRunning) {
		t.Error("advance overwrote a pending abort")
	}
	if r.Status() != StatusAbortRequested {
		t.Errorf("status = %v, want ABORT_REQUESTED", r.Status())
	}

	r.SetStatus(StatusArming)
	if !r.Advance(StatusRunning) || r.Status() != StatusRunning {
		t.Error("advance without abort failed")
	}
}

func TestStatusHook(t *testing.T) {
	r := NewRegisters()
	var seen []SystemStatus
	r.SetHook(func(s SystemStatus) {
		// The hook runs unlocked, so reading back must not deadlock.
		_ = r.Status()
		seen = append(seen, s)
	})
	r.SetStatus(StatusArming)
	r.Advance(StatusRunning)
	r.RequestAbort()

	want := []SystemStatus{StatusArming, StatusRunning, StatusAbortRequested}
	if len(seen) != len(want) {
		t.Fatalf("hook saw %v, want %v", seen, want)
	}
	for i := range want {
		if seen[i] != want[i] {
			t.Errorf("hook[%d] = %v, want %v", i, seen[i], want[i])
		}
	}
}

func TestSetDebug(t *testing.T) {
	r := NewRegisters()
	if r.Debug() != DebugQuiet {
		t.Errorf("default debug = %v", r.Debug())
	}
	if err := r.SetDebug(DebugVeryVerbose); err != nil || r.Debug() != DebugVeryVerbose {
		t.Errorf("SetDebug(VeryVerbose) = %v, level %v", err, r.Debug())
	}
	if err := r.SetDebug(3); !errors.Is(err, OutOfRange) {
		t.Errorf("SetDebug(3) = %v, want out_of_range", err)
	}
	if r.Debug() != DebugVeryVerbose {
		t.Error("rejected level changed the register")
	}
}

func TestIsRunning(t *testing.T) {
	r := NewRegisters()
	for _, s := range []SystemStatus{StatusIdle, StatusAborted} {
		r.SetStatus(s)
		if r.IsRunning() {
			t.Errorf("IsRunning in %v", s)
		}
	}
	for _, s := range []SystemStatus{StatusArming, StatusRunning, StatusAbortRequested, StatusAborting, StatusDisarming} {
		r.SetStatus(s)
		if !r.IsRunning() {
			t.Errorf("!IsRunning in %v", s)
		}
	}
}

func TestCodeOf(t *testing.T) {
	if CodeOf(nil) != "" {
		t.Error("CodeOf(nil) not empty")
	}
	if CodeOf(Busy) != Busy {
		t.Error("bare code lost")
	}
	err := fail(Conflict, "arm", "bit 3")
	if CodeOf(err) != Conflict {
		t.Errorf("CodeOf(%v) = %v", err, CodeOf(err))
	}
	if err.Error() != "arm: conflict: bit 3" {
		t.Errorf("Error() = %q", err.Error())
	}
	if CodeOf(errors.New("x")) != Failed {
		t.Error("foreign error not mapped to Failed")
	}
}
