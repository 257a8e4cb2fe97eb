//go:build rp2040

package pio

import (
	"errors"

	"pulsegen/core"

	rp2pio "github.com/tinygo-org/pio/rp2-pio"
)

// Resident programs. Each one is loaded at a fixed offset so the idle PC
// and wrap points are known without bookkeeping. Jump targets are written
// program-relative and patched by the loader.
//
// Clock block (PIO0):
//
//	freerun   at 0:  pairs of (reps, half-period) words; a zero word parks
//	                 the unit back on the first pull
//	triggered at 16: pairs of (skips, high time); counts skips+1 rising
//	                 edges on the input pin, then emits one high pulse
//
// Pulse block (PIO1):
//
//	pulse     at 0:  waits for a rising edge, then streams (output, delay)
//	                 pairs onto the output pins until a zero delay
const (
	freerunOffset   = 0
	triggeredOffset = 16
	pulseOffset     = 0
)

var errProgramBlock = errors.New("pio: program not resident in block")

// program is one resident micro-program.
type program struct {
	block  core.Block
	offset uint8
	instrs []uint16
}

func (p *program) wrap() uint8 { return p.offset + uint8(len(p.instrs)) - 1 }

// idlePC is where the program parks once its feed has run dry.
func (p *program) idlePC() uint8 { return p.offset }

var programs = [...]program{
	core.ProgramFreerun:   {block: core.ClockBlock, offset: freerunOffset, instrs: buildFreerunProgram()},
	core.ProgramTriggered: {block: core.ClockBlock, offset: triggeredOffset, instrs: buildTriggeredProgram()},
	core.ProgramPulse:     {block: core.PulseBlock, offset: pulseOffset, instrs: buildPulseProgram()},
}

func buildFreerunProgram() []uint16 {
	return []uint16{
		// .wrap_target
		rp2pio.EncodePull(false, true),                       // 0: pull block (reps)
		rp2pio.EncodeOut(rp2pio.SrcDestX, 32),                // 1: out x, 32
		rp2pio.EncodePull(false, true),                       // 2: pull block (half period)
		rp2pio.EncodeJmp(0, rp2pio.JmpXZero),                 // 3: jmp !x, 0
		rp2pio.EncodeMov(rp2pio.SrcDestY, rp2pio.SrcDestOSR), // 4: mov y, osr
		rp2pio.EncodeJmp(0, rp2pio.JmpYZero),                 // 5: jmp !y, 0
		// cycle:
		rp2pio.EncodeSet(rp2pio.SrcDestPins, 1),              // 6: set pins, 1
		rp2pio.EncodeJmp(7, rp2pio.JmpYNZeroDec),             // 7: jmp y--, 7
		rp2pio.EncodeMov(rp2pio.SrcDestY, rp2pio.SrcDestOSR), // 8: mov y, osr
		rp2pio.EncodeSet(rp2pio.SrcDestPins, 0),              // 9: set pins, 0
		rp2pio.EncodeJmp(10, rp2pio.JmpYNZeroDec),            // 10: jmp y--, 10
		rp2pio.EncodeMov(rp2pio.SrcDestY, rp2pio.SrcDestOSR), // 11: mov y, osr
		rp2pio.EncodeJmp(6, rp2pio.JmpXNZeroDec),             // 12: jmp x--, 6
		// .wrap
	}
}

func buildTriggeredProgram() []uint16 {
	return []uint16{
		// .wrap_target
		rp2pio.EncodePull(false, true),        // 0: pull block (skips)
		rp2pio.EncodeOut(rp2pio.SrcDestX, 32), // 1: out x, 32
		rp2pio.EncodePull(false, true),        // 2: pull block (high time)
		// edge:
		rp2pio.EncodeWaitPin(false, 0),                       // 3: wait 0 pin 0
		rp2pio.EncodeWaitPin(true, 0),                        // 4: wait 1 pin 0
		rp2pio.EncodeJmp(3, rp2pio.JmpXNZeroDec),             // 5: jmp x--, 3
		rp2pio.EncodeMov(rp2pio.SrcDestY, rp2pio.SrcDestOSR), // 6: mov y, osr
		rp2pio.EncodeSet(rp2pio.SrcDestPins, 1),              // 7: set pins, 1
		rp2pio.EncodeJmp(8, rp2pio.JmpYNZeroDec),             // 8: jmp y--, 8
		rp2pio.EncodeSet(rp2pio.SrcDestPins, 0),              // 9: set pins, 0
		// .wrap
	}
}

func buildPulseProgram() []uint16 {
	return []uint16{
		// .wrap_target
		rp2pio.EncodeWaitPin(false, 0), // 0: wait 0 pin 0
		rp2pio.EncodeWaitPin(true, 0),  // 1: wait 1 pin 0
		// step:
		rp2pio.EncodePull(false, true),                        // 2: pull block (outputs)
		rp2pio.EncodeOut(rp2pio.SrcDestX, 32),                 // 3: out x, 32
		rp2pio.EncodePull(false, true),                        // 4: pull block (delay)
		rp2pio.EncodeOut(rp2pio.SrcDestY, 32),                 // 5: out y, 32
		rp2pio.EncodeMov(rp2pio.SrcDestPins, rp2pio.SrcDestX), // 6: mov pins, x
		rp2pio.EncodeJmp(0, rp2pio.JmpYZero),                  // 7: jmp !y, 0
		rp2pio.EncodeJmp(8, rp2pio.JmpYNZeroDec),              // 8: jmp y--, 8
		rp2pio.EncodeJmp(2, rp2pio.JmpAlways),                 // 9: jmp 2
		// .wrap
	}
}

// loadPrograms writes every resident program into instruction memory.
func loadPrograms() error {
	for i := range programs {
		p := &programs[i]
		if err := blocks[p.block].AddProgramAtOffset(p.instrs, int8(p.offset), p.offset); err != nil {
			return err
		}
	}
	return nil
}
