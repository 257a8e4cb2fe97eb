package core

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"
)

type testRig struct {
	dev    *Device
	hal    *fakeHAL
	trace  *statusTrace
	cancel context.CancelFunc
	done   chan struct{}
}

func newTestRig(t *testing.T, hal *fakeHAL) *testRig {
	t.Helper()
	board := DefaultBoardConfig()
	board.PollMicros = 10
	dev := NewDevice(board, hal)
	dev.Sequencer().SetOutput(nil)

	ctx, cancel := context.WithCancel(context.Background())
	rig := &testRig{
		dev:    dev,
		hal:    hal,
		trace:  newStatusTrace(dev.Registers()),
		cancel: cancel,
		done:   make(chan struct{}),
	}
	go func() {
		defer close(rig.done)
		dev.Sequencer().Run(ctx)
	}()
	t.Cleanup(func() {
		cancel()
		<-rig.done
	})
	return rig
}

// wait returns the status that ended the next arm cycle.
func (r *testRig) wait(t *testing.T) SystemStatus {
	t.Helper()
	select {
	case s := <-r.trace.done:
		return s
	case <-time.After(2 * time.Second):
		t.Fatalf("arm cycle did not finish, trace %v", r.trace.snapshot())
	}
	return 0
}

func (r *testRig) waitFor(t *testing.T, want SystemStatus) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for r.dev.Status() != want {
		if time.Now().After(deadline) {
			t.Fatalf("status %v never reached, trace %v", want, r.trace.snapshot())
		}
		time.Sleep(time.Millisecond)
	}
}

func (r *testRig) assertTornDown(t *testing.T) {
	t.Helper()
	for id := uint8(0); id < ClocksMax; id++ {
		c, _ := r.dev.ClockChannel(id)
		p, _ := r.dev.PulseChannel(id)
		if c.Configured || c.Unit != noUnit || c.DMA != noUnit {
			t.Errorf("clock %d still configured: unit %d dma %d", id, c.Unit, c.DMA)
		}
		if p.Configured || p.Unit != noUnit || p.DMA != noUnit {
			t.Errorf("pulse %d still configured: unit %d dma %d", id, p.Unit, p.DMA)
		}
	}
	if units, dmas := r.hal.claimed(); units != 0 || dmas != 0 {
		t.Errorf("hardware still claimed: %d units, %d dma", units, dmas)
	}
	if r.dev.store.AnyConfigured() {
		t.Error("store still reports a configured channel")
	}
	if n := r.dev.seq.res.slots.inUse(); n != 0 {
		t.Errorf("%d timing unit slots still allocated", n)
	}
}

func mustOK(t *testing.T, err error) {
	t.Helper()
	if err != nil {
		t.Fatal(err)
	}
}

func TestSingleClockRunsToIdle(t *testing.T) {
	rig := newTestRig(t, newFakeHAL())
	mustOK(t, rig.dev.SetDivider(KindClock, 0, 1))
	mustOK(t, rig.dev.LoadClockProgram(0, []ClockPair{{Reps: 1, DelayNs: 100000}}))
	mustOK(t, rig.dev.SetActive(KindClock, 0, true))

	mustOK(t, rig.dev.Arm())
	if got := rig.wait(t); got != StatusIdle {
		t.Fatalf("cycle ended in %v, want IDLE", got)
	}
	if !rig.trace.seen(StatusRunning) {
		t.Error("RUNNING never reached")
	}
	if rig.trace.seen(StatusAbortRequested) || rig.trace.seen(StatusAborting) {
		t.Errorf("abort observed: %v", rig.trace.snapshot())
	}
	if !rig.trace.seen(StatusDisarming) {
		t.Error("DISARMING never reached")
	}
	rig.assertTornDown(t)

	if rig.hal.count("start_feed") != 1 || rig.hal.count("enable") != 1 {
		t.Errorf("feeds %d enables %d, want 1 and 1", rig.hal.count("start_feed"), rig.hal.count("enable"))
	}
}

func TestPulseConflictAborts(t *testing.T) {
	rig := newTestRig(t, newFakeHAL())
	bit3 := []PulsePair{{Output: 1 << 3, DelayNs: 1000}}
	for id := uint8(0); id < 2; id++ {
		mustOK(t, rig.dev.LoadPulseProgram(id, bit3))
		mustOK(t, rig.dev.SetActive(KindPulse, id, true))
	}
	mustOK(t, rig.dev.SetActive(KindClock, 0, true))
	mustOK(t, rig.dev.LoadClockProgram(0, []ClockPair{{Reps: 1, DelayNs: 1000}}))

	mustOK(t, rig.dev.Arm())
	if got := rig.wait(t); got != StatusAborted {
		t.Fatalf("cycle ended in %v, want ABORTED", got)
	}
	if rig.trace.seen(StatusRunning) {
		t.Error("RUNNING reached despite conflict")
	}
	if !rig.trace.seen(StatusArming) || !rig.trace.seen(StatusAborting) {
		t.Errorf("trace %v missing ARMING or ABORTING", rig.trace.snapshot())
	}
	if rig.hal.count("setup_pulse") != 0 {
		t.Error("pulse unit configured despite conflict")
	}
	rig.assertTornDown(t)
}

func TestAbortDuringArming(t *testing.T) {
	hal := newFakeHAL()
	entered := make(chan struct{})
	release := make(chan struct{})
	var once sync.Once
	hal.setupHook = func(Block, uint8) {
		once.Do(func() {
			close(entered)
			<-release
		})
	}
	rig := newTestRig(t, hal)
	for id := uint8(0); id < 2; id++ {
		mustOK(t, rig.dev.LoadClockProgram(id, []ClockPair{{Reps: 2, DelayNs: 1000}}))
		mustOK(t, rig.dev.SetActive(KindClock, id, true))
	}

	mustOK(t, rig.dev.Arm())
	<-entered
	if !rig.dev.RequestAbort() {
		t.Fatal("abort rejected while arming")
	}
	close(release)

	if got := rig.wait(t); got != StatusAborted {
		t.Fatalf("cycle ended in %v, want ABORTED", got)
	}
	if rig.trace.seen(StatusRunning) {
		t.Error("RUNNING reached after abort")
	}
	if hal.count("setup_freerun") != 1 {
		t.Errorf("%d clocks configured, want the abort to stop after 1", hal.count("setup_freerun"))
	}
	if hal.count("enable") != 0 {
		t.Error("units enabled after abort")
	}
	rig.assertTornDown(t)
}

func TestAbortWhileRunning(t *testing.T) {
	hal := newFakeHAL()
	hal.foreverBusy = true
	rig := newTestRig(t, hal)
	mustOK(t, rig.dev.LoadClockProgram(0, []ClockPair{{Reps: 10, DelayNs: 1000}}))
	mustOK(t, rig.dev.SetActive(KindClock, 0, true))
	mustOK(t, rig.dev.LoadPulseProgram(0, []PulsePair{{Output: 1, DelayNs: 1000}}))
	mustOK(t, rig.dev.SetActive(KindPulse, 0, true))

	mustOK(t, rig.dev.Arm())
	rig.waitFor(t, StatusRunning)

	if err := rig.dev.SetDivider(KindClock, 0, 10); CodeOf(err) != Busy {
		t.Errorf("mutation while running = %v, want busy", err)
	}
	if err := rig.dev.Arm(); CodeOf(err) != Busy {
		t.Errorf("arm while running = %v, want busy", err)
	}

	rig.dev.RequestAbort()
	if got := rig.wait(t); got != StatusAborted {
		t.Fatalf("cycle ended in %v, want ABORTED", got)
	}
	rig.assertTornDown(t)
	if n := hal.count("release_unit"); n != 2 {
		t.Errorf("%d units released, want 2", n)
	}

	// Aborted is a resting state: configuration is accepted again.
	mustOK(t, rig.dev.SetDivider(KindClock, 0, 10))
}

func TestTeardownOrder(t *testing.T) {
	hal := newFakeHAL()
	rig := newTestRig(t, hal)
	mustOK(t, rig.dev.LoadClockProgram(0, []ClockPair{{Reps: 1, DelayNs: 1000}}))
	mustOK(t, rig.dev.SetActive(KindClock, 0, true))
	mustOK(t, rig.dev.Arm())
	rig.wait(t)

	want := []string{"stop_unit", "abort_dma", "release_dma", "drain_unit", "release_outputs", "release_unit"}
	hal.mu.Lock()
	calls := append([]string(nil), hal.calls...)
	hal.mu.Unlock()
	if len(calls) < len(want) {
		t.Fatalf("calls %v", calls)
	}
	tail := calls[len(calls)-len(want):]
	for i := range want {
		if tail[i] != want[i] {
			t.Errorf("teardown step %d = %s, want %s", i, tail[i], want[i])
		}
	}
}

func TestInvalidPulseProgramAborts(t *testing.T) {
	rig := newTestRig(t, newFakeHAL())
	// The reset program has no terminator padding and fails validation.
	mustOK(t, rig.dev.SetActive(KindPulse, 2, true))
	mustOK(t, rig.dev.Arm())
	if got := rig.wait(t); got != StatusAborted {
		t.Fatalf("cycle ended in %v, want ABORTED", got)
	}
	found := false
	for _, evt := range rig.dev.Events() {
		if evt.EventType == EvtReject && evt.Channel == 2 {
			found = true
		}
	}
	if !found {
		t.Error("no reject event for pulse 2")
	}
	rig.assertTornDown(t)
}

func TestSetupFailureReleasesEverything(t *testing.T) {
	hal := newFakeHAL()
	hal.failSetup[ProgramPulse] = true
	rig := newTestRig(t, hal)
	mustOK(t, rig.dev.LoadClockProgram(0, []ClockPair{{Reps: 1, DelayNs: 1000}}))
	mustOK(t, rig.dev.SetActive(KindClock, 0, true))
	mustOK(t, rig.dev.LoadPulseProgram(0, []PulsePair{{Output: 1, DelayNs: 1000}}))
	mustOK(t, rig.dev.SetActive(KindPulse, 0, true))

	mustOK(t, rig.dev.Arm())
	if got := rig.wait(t); got != StatusAborted {
		t.Fatalf("cycle ended in %v, want ABORTED", got)
	}
	rig.assertTornDown(t)
}

func TestDryRun(t *testing.T) {
	hal := newFakeHAL()
	rig := newTestRig(t, hal)
	var mu sync.Mutex
	var lines []string
	rig.dev.Sequencer().SetOutput(func(s string) {
		mu.Lock()
		lines = append(lines, s)
		mu.Unlock()
	})
	mustOK(t, rig.dev.SetDebug(DebugVerbose))
	mustOK(t, rig.dev.LoadClockProgram(1, []ClockPair{{Reps: 3, DelayNs: 4000}}))
	mustOK(t, rig.dev.SetActive(KindClock, 1, true))

	mustOK(t, rig.dev.Arm())
	if got := rig.wait(t); got != StatusAborted {
		t.Fatalf("dry run ended in %v, want ABORTED", got)
	}
	if hal.count("claim_unit") != 0 {
		t.Error("dry run claimed hardware")
	}

	mu.Lock()
	defer mu.Unlock()
	out := strings.Join(lines, "\n")
	if !strings.Contains(out, "[CFG] clock 1 mode=freerun") || !strings.Contains(out, "0: reps=2 delay=1000") {
		t.Errorf("config dump:\n%s", out)
	}
}

func TestIgnoresUnknownToken(t *testing.T) {
	rig := newTestRig(t, newFakeHAL())
	rig.dev.Sequencer().Signal(7)
	rig.dev.Sequencer().Signal(ArmSequencer)
	if got := rig.wait(t); got != StatusIdle {
		t.Fatalf("cycle ended in %v", got)
	}
	arms := 0
	for _, evt := range rig.dev.Events() {
		if evt.EventType == EvtArm {
			arms++
		}
	}
	if arms != 1 {
		t.Errorf("%d arm cycles, want 1", arms)
	}
}

func TestTriggeredClockFeed(t *testing.T) {
	hal := newFakeHAL()
	rig := newTestRig(t, hal)
	mustOK(t, rig.dev.SetClockMode(0, Triggered{Edge: EdgeAny}))
	mustOK(t, rig.dev.LoadTriggerProgram(0, 2, 4000))
	mustOK(t, rig.dev.SetTriggerReps(0, 50))
	mustOK(t, rig.dev.SetActive(KindClock, 0, true))

	mustOK(t, rig.dev.Arm())
	rig.wait(t)

	hal.mu.Lock()
	feed, setup := hal.lastFeed, hal.lastSetup
	hal.mu.Unlock()

	if feed.RingBits != 3 || feed.Count != ClockTriggersMax*50 {
		t.Errorf("trigger feed ring %d count %d", feed.RingBits, feed.Count)
	}
	if setup.Program != ProgramTriggered || !setup.UsesInput || setup.InPin != 13 {
		t.Errorf("triggered setup %+v", setup)
	}
}
