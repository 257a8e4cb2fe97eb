package core

import (
	"errors"
	"sync"
)

// fakeHAL records every call and simulates DMA completion after a number
// of busy polls.
type fakeHAL struct {
	mu sync.Mutex

	units    [2][UnitsPerBlock]bool
	dma      [12]bool
	setups   [2][UnitsPerBlock]UnitSetup
	feeds    map[uint8]FeedSetup
	busyLeft map[uint8]int
	enabled  [2]uint8
	calls    []string

	// last setup and feed seen, kept after release
	lastSetup UnitSetup
	lastFeed  FeedSetup

	// busyPolls is how many DMABusy calls report busy for each feed.
	busyPolls int
	// foreverBusy keeps every feed busy until aborted.
	foreverBusy bool
	// setupHook runs inside SetupUnit, before it returns.
	setupHook func(block Block, unit uint8)
	// failSetup makes SetupUnit fail for the given program.
	failSetup map[UnitProgram]bool
}

func newFakeHAL() *fakeHAL {
	return &fakeHAL{
		feeds:     make(map[uint8]FeedSetup),
		busyLeft:  make(map[uint8]int),
		busyPolls: 3,
		failSetup: make(map[UnitProgram]bool),
	}
}

func (f *fakeHAL) record(call string) {
	f.calls = append(f.calls, call)
}

func (f *fakeHAL) ClaimUnit(block Block, unit uint8) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.units[block][unit] {
		return errors.New("unit already claimed")
	}
	f.units[block][unit] = true
	f.record("claim_unit")
	return nil
}

func (f *fakeHAL) SetupUnit(block Block, unit uint8, setup UnitSetup) error {
	if f.setupHook != nil {
		f.setupHook(block, unit)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("setup_" + setup.Program.String())
	if f.failSetup[setup.Program] {
		return errors.New("setup failed")
	}
	f.setups[block][unit] = setup
	f.lastSetup = setup
	return nil
}

func (f *fakeHAL) ClaimDMA() (uint8, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := range f.dma {
		if !f.dma[i] {
			f.dma[i] = true
			f.record("claim_dma")
			return uint8(i), nil
		}
	}
	return 0, errors.New("no dma channel")
}

func (f *fakeHAL) StartFeed(dma uint8, block Block, unit uint8, feed FeedSetup) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.feeds[dma] = feed
	f.lastFeed = feed
	f.busyLeft[dma] = f.busyPolls
	f.record("start_feed")
	return nil
}

func (f *fakeHAL) EnableUnits(block Block, mask uint8) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.enabled[block] |= mask
	f.record("enable")
}

func (f *fakeHAL) DMABusy(dma uint8) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.foreverBusy {
		return true
	}
	if f.busyLeft[dma] > 0 {
		f.busyLeft[dma]--
		return true
	}
	return false
}

func (f *fakeHAL) UnitIdle(block Block, unit uint8) bool { return true }

func (f *fakeHAL) AbortDMA(dma uint8) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.busyLeft[dma] = 0
	f.record("abort_dma")
}

func (f *fakeHAL) ReleaseDMA(dma uint8) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.dma[dma] = false
	delete(f.feeds, dma)
	f.record("release_dma")
}

func (f *fakeHAL) StopUnit(block Block, unit uint8) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.enabled[block] &^= 1 << unit
	f.record("stop_unit")
}

func (f *fakeHAL) DrainUnit(block Block, unit uint8) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("drain_unit")
}

func (f *fakeHAL) ReleaseOutputs(block Block, unit uint8, setup UnitSetup) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("release_outputs")
}

func (f *fakeHAL) ReleaseUnit(block Block, unit uint8) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.units[block][unit] = false
	f.setups[block][unit] = UnitSetup{}
	f.record("release_unit")
}

// claimed returns the number of units and DMA channels still held.
func (f *fakeHAL) claimed() (units, dmas int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for b := range f.units {
		for _, u := range f.units[b] {
			if u {
				units++
			}
		}
	}
	for _, d := range f.dma {
		if d {
			dmas++
		}
	}
	return units, dmas
}

func (f *fakeHAL) count(call string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, c := range f.calls {
		if c == call {
			n++
		}
	}
	return n
}

// statusTrace collects every status written through the registers' hook.
type statusTrace struct {
	mu     sync.Mutex
	states []SystemStatus
	done   chan SystemStatus
}

func newStatusTrace(regs *Registers) *statusTrace {
	tr := &statusTrace{done: make(chan SystemStatus, 16)}
	regs.SetHook(func(s SystemStatus) {
		tr.mu.Lock()
		tr.states = append(tr.states, s)
		tr.mu.Unlock()
		if s == StatusIdle || s == StatusAborted {
			tr.done <- s
		}
	})
	return tr
}

func (tr *statusTrace) seen(s SystemStatus) bool {
	tr.mu.Lock()
	defer tr.mu.Unlock()
	for _, st := range tr.states {
		if st == s {
			return true
		}
	}
	return false
}

func (tr *statusTrace) snapshot() []SystemStatus {
	tr.mu.Lock()
	defer tr.mu.Unlock()
	return append([]SystemStatus(nil), tr.states...)
}
