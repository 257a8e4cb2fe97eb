//go:build rp2040

package main

import (
	"context"
	_ "embed"
	"machine"
	"time"

	"pulsegen/core"
	"pulsegen/protocol"
	"pulsegen/targets/pio"
)

//go:embed board.json
var boardJSON []byte

func main() {
	// CRITICAL: Disable watchdog on boot to clear any previous state
	err := machine.Watchdog.Configure(machine.WatchdogConfig{TimeoutMillis: 0})
	if err != nil {
		return
	}

	// Initialize USB CDC immediately
	InitUSB()
	core.SetTickSource(GetHardwareTime)

	board, err := core.LoadBoardConfig(boardJSON)
	if err != nil {
		board = core.DefaultBoardConfig()
	}

	timing, err := pio.NewTiming()
	if err != nil {
		fatalBlink()
	}
	core.SetTimingHAL(timing)

	dev := core.NewDevice(board, nil)
	initIndicator(board, dev.Registers())

	core.SetDebugWriter(usbDebugWriter)
	core.SetDebugEnabled(true)
	core.InitAsyncDebug()
	dev.Sequencer().SetOutput(core.DebugAsync)

	// The sequencer owns the timing units; with -scheduler=cores it gets
	// the second core to itself.
	ctx := context.Background()
	go runSequencer(ctx, dev.Sequencer())

	console := core.NewConsole(dev, core.SystemInfo{
		Version: protocol.Version,
		CPUFreq: CPUFrequency,
	})

	registerLinkVerb(console)

	go usbReaderLoop()
	startUARTConsole(ctx, console)

	for {
		// A panicking command must not take the console down
		func() {
			defer func() {
				if r := recover(); r != nil {
					usb.in.Reset()
				}
			}()
			usb.serve(console)
		}()
		time.Sleep(10 * time.Microsecond)
	}
}

// runSequencer runs the engine loop. The engine panics only when the
// timing resources are exhausted, which leaves the hardware in an unknown
// state, so the board is reset.
func runSequencer(ctx context.Context, seq *core.Sequencer) {
	defer func() {
		if r := recover(); r != nil {
			core.DebugPrintln("sequencer panic, resetting")
			resetMCU()
		}
	}()
	seq.Run(ctx)
}

// resetMCU uses a watchdog reset, which is more reliable on RP2040 than
// SYSRESETREQ and handles USB re-enumeration better.
func resetMCU() {
	if err := machine.Watchdog.Configure(machine.WatchdogConfig{TimeoutMillis: 1}); err != nil {
		return
	}
	if err := machine.Watchdog.Start(); err != nil {
		return
	}
	// Wait for reset (should happen in ~1ms)
	for {
		time.Sleep(1 * time.Millisecond)
	}
}

// fatalBlink flashes the on-board LED forever when bring-up fails.
func fatalBlink() {
	led := machine.LED
	led.Configure(machine.PinConfig{Mode: machine.PinOutput})
	for {
		led.High()
		time.Sleep(100 * time.Millisecond)
		led.Low()
		time.Sleep(100 * time.Millisecond)
	}
}
