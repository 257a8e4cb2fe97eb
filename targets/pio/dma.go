//go:build rp2040

package pio

import (
	"device/rp"
	"errors"
	"runtime/volatile"
	"unsafe"

	rp2pio "github.com/tinygo-org/pio/rp2-pio"
)

const dmaChannels = 12

var (
	errNoDMA       = errors.New("dma: no free channel")
	errDMAIndex    = errors.New("dma: invalid channel")
	errFeedTooLong = errors.New("dma: feed exceeds unit buffer")
)

// dmaChannelHW overlays one channel's registers in rp.DMA.
type dmaChannelHW struct {
	READ_ADDR   volatile.Register32
	WRITE_ADDR  volatile.Register32
	TRANS_COUNT volatile.Register32
	CTRL_TRIG   volatile.Register32
	_           [12]volatile.Register32 // aliases
}

// dmaArbiter tracks which channels are claimed by software.
type dmaArbiter struct {
	claimed uint16
}

func (arb *dmaArbiter) hw(idx uint8) *dmaChannelHW {
	chans := (*[dmaChannels]dmaChannelHW)(unsafe.Pointer(rp.DMA))
	return &chans[idx]
}

func (arb *dmaArbiter) claim() (uint8, error) {
	for i := uint8(0); i < dmaChannels; i++ {
		if arb.claimed&(1<<i) == 0 {
			arb.claimed |= 1 << i
			return i, nil
		}
	}
	return 0, errNoDMA
}

func (arb *dmaArbiter) release(idx uint8) {
	if idx < dmaChannels {
		arb.claimed &^= 1 << idx
	}
}

func (arb *dmaArbiter) busy(idx uint8) bool {
	if idx >= dmaChannels {
		return false
	}
	return arb.hw(idx).CTRL_TRIG.Get()&rp.DMA_CH0_CTRL_TRIG_BUSY != 0
}

// abort stops idx and waits for in-flight transfers to flush.
func (arb *dmaArbiter) abort(idx uint8) {
	if idx >= dmaChannels {
		return
	}
	hw := arb.hw(idx)
	hw.CTRL_TRIG.ClearBits(rp.DMA_CH0_CTRL_TRIG_EN_Msk)

	mask := uint32(1) << idx
	rp.DMA.CHAN_ABORT.Set(mask)
	for spins := 0; rp.DMA.CHAN_ABORT.Get()&mask != 0; spins++ {
		if spins > 100000 {
			println("dma: abort timeout")
			break
		}
	}
}

// txDREQ is the TX data request of a state machine: 8 per block, one per
// state machine.
func txDREQ(sm rp2pio.StateMachine) uint32 {
	return uint32(sm.PIO().BlockIndex())*8 + uint32(sm.StateMachineIndex())
}

// dmaConfig is a CTRL_TRIG value under construction.
type dmaConfig struct {
	CTRL uint32
}

// feedConfig builds a 32-bit memory-to-FIFO transfer paced by dreq. The
// read side wraps on a 1<<ringBits byte boundary when ringBits is set.
func feedConfig(idx uint8, dreq uint32, ringBits uint8) dmaConfig {
	var cc dmaConfig
	cc.setField(rp.DMA_CH0_CTRL_TRIG_TREQ_SEL_Msk, rp.DMA_CH0_CTRL_TRIG_TREQ_SEL_Pos, dreq)
	cc.setField(rp.DMA_CH0_CTRL_TRIG_CHAIN_TO_Msk, rp.DMA_CH0_CTRL_TRIG_CHAIN_TO_Pos, uint32(idx)) // chain to self disables chaining
	cc.setField(rp.DMA_CH0_CTRL_TRIG_DATA_SIZE_Msk, rp.DMA_CH0_CTRL_TRIG_DATA_SIZE_Pos, 2)         // 32-bit
	cc.setField(rp.DMA_CH0_CTRL_TRIG_RING_SIZE_Msk, rp.DMA_CH0_CTRL_TRIG_RING_SIZE_Pos, uint32(ringBits))
	cc.setBit(rp.DMA_CH0_CTRL_TRIG_RING_SEL_Pos, false) // wrap the read address
	cc.setBit(rp.DMA_CH0_CTRL_TRIG_INCR_READ_Pos, true)
	cc.setBit(rp.DMA_CH0_CTRL_TRIG_INCR_WRITE_Pos, false)
	cc.setBit(rp.DMA_CH0_CTRL_TRIG_IRQ_QUIET_Pos, true)
	cc.setBit(rp.DMA_CH0_CTRL_TRIG_EN_Pos, true)
	return cc
}

func (cc *dmaConfig) setField(msk, pos, value uint32) {
	cc.CTRL = (cc.CTRL &^ msk) | ((value << pos) & msk)
}

func (cc *dmaConfig) setBit(pos uint32, bit bool) {
	if bit {
		cc.CTRL |= 1 << pos
	} else {
		cc.CTRL &^= 1 << pos
	}
}

// start streams count words from src into dst. Writing CTRL_TRIG last
// triggers the channel.
func (arb *dmaArbiter) start(idx uint8, dst *volatile.Register32, src []uint32, count uint32, cc dmaConfig) error {
	if idx >= dmaChannels {
		return errDMAIndex
	}
	hw := arb.hw(idx)
	hw.CTRL_TRIG.ClearBits(rp.DMA_CH0_CTRL_TRIG_EN_Msk)
	hw.READ_ADDR.Set(uint32(uintptr(unsafe.Pointer(&src[0]))))
	hw.WRITE_ADDR.Set(uint32(uintptr(unsafe.Pointer(dst))))
	hw.TRANS_COUNT.Set(count)
	hw.CTRL_TRIG.Set(cc.CTRL)
	return nil
}

// alignedWords returns n words from backing starting on an align-byte
// boundary. backing must hold n+align/4 words.
func alignedWords(backing []uint32, align uintptr, n int) []uint32 {
	addr := uintptr(unsafe.Pointer(&backing[0]))
	skip := int(((align - addr%align) % align) / 4)
	return backing[skip : skip+n : skip+n]
}
