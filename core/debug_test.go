package core

import (
	"strings"
	"testing"
)

func TestEventRingOrder(t *testing.T) {
	var r EventRing
	SetTime(1000)
	r.Record(EvtArm, 0, 0, 0)
	SetTime(1010)
	r.Record(EvtFinish, 0, uint32(StatusIdle), 0)

	got := r.Snapshot()
	if len(got) != 2 {
		t.Fatalf("snapshot has %d events, want 2", len(got))
	}
	if got[0].EventType != EvtArm || got[0].Clock != 1000 {
		t.Errorf("first event = %+v", got[0])
	}
	if got[1].EventType != EvtFinish || got[1].Clock != 1010 {
		t.Errorf("second event = %+v", got[1])
	}
}

func TestEventRingWraps(t *testing.T) {
	var r EventRing
	for i := 0; i < EventRingSize+5; i++ {
		r.Record(EvtConfigure, uint8(i), uint32(i), 0)
	}
	got := r.Snapshot()
	if len(got) != EventRingSize {
		t.Fatalf("snapshot has %d events, want %d", len(got), EventRingSize)
	}
	if got[0].Value1 != 5 || got[len(got)-1].Value1 != EventRingSize+4 {
		t.Errorf("oldest %d newest %d", got[0].Value1, got[len(got)-1].Value1)
	}

	r.Clear()
	if len(r.Snapshot()) != 0 {
		t.Error("clear left events behind")
	}
}

func TestFormatEvent(t *testing.T) {
	line := FormatEvent(SequencerEvent{EventType: EvtStart, Channel: 1, Clock: 42, Value1: 3, Value2: 5})
	if !strings.HasPrefix(line, "START ch=1 clock=42") || !strings.HasSuffix(line, "v1=3 v2=5") {
		t.Errorf("FormatEvent = %q", line)
	}
}

func TestEventRingTickSource(t *testing.T) {
	ticks := uint32(500)
	SetTickSource(func() uint32 { ticks += 7; return ticks })
	defer SetTickSource(nil)

	var r EventRing
	r.Record(EvtStart, 1, 0, 0)
	r.Record(EvtFinish, 1, 0, 0)

	got := r.Snapshot()
	if got[0].Clock != 507 || got[1].Clock != 514 {
		t.Errorf("clocks = %d, %d, want 507, 514", got[0].Clock, got[1].Clock)
	}
}
