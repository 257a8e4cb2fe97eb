//go:build rp2040

package pio

import (
	"errors"
	"machine"

	"pulsegen/core"

	rp2pio "github.com/tinygo-org/pio/rp2-pio"
)

// RP2040 has 2 PIO blocks (PIO0, PIO1) with 4 state machines each. The
// clock block is PIO0, the pulse block PIO1.
var blocks = [2]*rp2pio.PIO{rp2pio.PIO0, rp2pio.PIO1}

// feedWords is the per-unit DMA source buffer. It is sized and aligned for
// the largest ring, the 64-word pulse program.
const (
	feedWords = core.PulseInstructionsMax
	feedAlign = feedWords * 4
)

var (
	errUnitClaimed = errors.New("pio: state machine already claimed")
	errBadUnit     = errors.New("pio: invalid unit")
)

// Timing drives the timing units and their DMA feeders. It implements
// core.TimingHAL.
type Timing struct {
	dma   dmaArbiter
	feeds [2][core.UnitsPerBlock][]uint32
}

// NewTiming loads the resident programs and allocates the feed buffers.
func NewTiming() (*Timing, error) {
	if err := loadPrograms(); err != nil {
		return nil, err
	}
	t := &Timing{}
	for b := range t.feeds {
		for u := range t.feeds[b] {
			backing := make([]uint32, feedWords+feedAlign/4)
			t.feeds[b][u] = alignedWords(backing, feedAlign, feedWords)
		}
	}
	return t, nil
}

func stateMachine(block core.Block, unit uint8) rp2pio.StateMachine {
	return blocks[block].StateMachine(unit)
}

func validUnit(block core.Block, unit uint8) bool {
	return int(block) < len(blocks) && unit < core.UnitsPerBlock
}

func (t *Timing) ClaimUnit(block core.Block, unit uint8) error {
	if !validUnit(block, unit) {
		return errBadUnit
	}
	sm := stateMachine(block, unit)
	if !sm.TryClaim() {
		return errUnitClaimed
	}
	sm.SetEnabled(false)
	sm.Restart()
	return nil
}

// SetupUnit configures the pins, joins the FIFOs for an 8-deep TX queue and
// parks the state machine at its program's entry point.
func (t *Timing) SetupUnit(block core.Block, unit uint8, setup core.UnitSetup) error {
	if !validUnit(block, unit) || int(setup.Program) >= len(programs) {
		return errBadUnit
	}
	prog := &programs[setup.Program]
	if prog.block != block {
		return errProgramBlock
	}
	sm := stateMachine(block, unit)
	base := machine.Pin(setup.OutBase)

	for i := uint8(0); i < setup.OutCount; i++ {
		machine.Pin(setup.OutBase + i).Configure(machine.PinConfig{Mode: blocks[block].PinMode()})
	}

	cfg := rp2pio.DefaultStateMachineConfig()
	switch setup.Program {
	case core.ProgramPulse:
		cfg.SetOutPins(base, setup.OutCount)
	default:
		cfg.SetSetPins(base, setup.OutCount)
	}
	if setup.UsesInput {
		// Pulse sources are clock outputs; only an external trigger pin is
		// switched to a plain input.
		if setup.Program == core.ProgramTriggered {
			machine.Pin(setup.InPin).Configure(machine.PinConfig{Mode: machine.PinInput})
		}
		cfg.SetInPins(machine.Pin(setup.InPin))
	}
	cfg.SetOutShift(true, false, 32)
	cfg.SetFIFOJoin(rp2pio.FifoJoinTx)
	cfg.SetWrap(prog.offset, prog.wrap())
	cfg.SetClkDivIntFrac(uint16(setup.Divider), 0)

	// Initialize state machine FIRST
	sm.Init(prog.offset, cfg)

	// THEN set pin directions (must be after Init!)
	sm.SetPindirsConsecutive(base, setup.OutCount, true)
	sm.SetPinsConsecutive(base, setup.OutCount, false)
	return nil
}

func (t *Timing) ClaimDMA() (uint8, error) {
	return t.dma.claim()
}

// StartFeed copies the feed into the unit's aligned buffer and triggers the
// channel. The FIFO fills and the channel stalls until the unit runs.
func (t *Timing) StartFeed(dma uint8, block core.Block, unit uint8, feed core.FeedSetup) error {
	if !validUnit(block, unit) {
		return errBadUnit
	}
	if len(feed.Words) == 0 || len(feed.Words) > feedWords || feed.Count == 0 {
		return errFeedTooLong
	}
	if feed.RingBits != 0 && 1<<feed.RingBits != len(feed.Words)*4 {
		return errFeedTooLong
	}
	if feed.RingBits == 0 && feed.Count > uint32(len(feed.Words)) {
		return errFeedTooLong
	}
	buf := t.feeds[block][unit]
	copy(buf, feed.Words)

	sm := stateMachine(block, unit)
	cc := feedConfig(dma, txDREQ(sm), feed.RingBits)
	return t.dma.start(dma, sm.TxReg(), buf, feed.Count, cc)
}

// EnableUnits sets the enable bits of every unit in mask in one write, so
// the units start on the same system clock.
func (t *Timing) EnableUnits(block core.Block, mask uint8) {
	if int(block) >= len(blocks) {
		return
	}
	blocks[block].HW().CTRL.SetBits(uint32(mask & 0xf))
}

func (t *Timing) DMABusy(dma uint8) bool {
	return t.dma.busy(dma)
}

// UnitIdle reports a unit parked on its first pull with nothing queued.
func (t *Timing) UnitIdle(block core.Block, unit uint8) bool {
	if !validUnit(block, unit) {
		return true
	}
	sm := stateMachine(block, unit)
	pc := uint8(sm.HW().ADDR.Get() & 0x1f)
	for i := range programs {
		p := &programs[i]
		if p.block == block && pc == p.idlePC() {
			return sm.IsTxFIFOEmpty()
		}
	}
	return false
}

func (t *Timing) AbortDMA(dma uint8) {
	t.dma.abort(dma)
}

func (t *Timing) ReleaseDMA(dma uint8) {
	t.dma.release(dma)
}

func (t *Timing) StopUnit(block core.Block, unit uint8) {
	if validUnit(block, unit) {
		stateMachine(block, unit).SetEnabled(false)
	}
}

// DrainUnit empties the FIFOs and clears shift counters and the divider
// phase. See StateMachine.Init for reference on this sequence.
func (t *Timing) DrainUnit(block core.Block, unit uint8) {
	if !validUnit(block, unit) {
		return
	}
	sm := stateMachine(block, unit)
	sm.ClearFIFOs()
	sm.Restart()
	sm.ClkDivRestart()
}

func (t *Timing) ReleaseOutputs(block core.Block, unit uint8, setup core.UnitSetup) {
	if !validUnit(block, unit) || setup.OutCount == 0 {
		return
	}
	sm := stateMachine(block, unit)
	base := machine.Pin(setup.OutBase)
	sm.SetPinsConsecutive(base, setup.OutCount, false)
	sm.SetPindirsConsecutive(base, setup.OutCount, false)
	for i := uint8(0); i < setup.OutCount; i++ {
		machine.Pin(setup.OutBase + i).Configure(machine.PinConfig{Mode: machine.PinInput})
	}
}

func (t *Timing) ReleaseUnit(block core.Block, unit uint8) {
	if validUnit(block, unit) {
		stateMachine(block, unit).Unclaim()
	}
}
