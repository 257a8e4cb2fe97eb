//go:build rp2040

package main

import (
	"image/color"
	"machine"

	"pulsegen/core"

	"tinygo.org/x/drivers/ws2812"
)

// statusColors maps each system status to the indicator colour.
var statusColors = [...]color.RGBA{
	core.StatusIdle:           {R: 0, G: 16, B: 0},
	core.StatusArming:         {R: 16, G: 16, B: 0},
	core.StatusRunning:        {R: 0, G: 0, B: 32},
	core.StatusAbortRequested: {R: 32, G: 8, B: 0},
	core.StatusDisarming:      {R: 0, G: 16, B: 16},
	core.StatusAborting:       {R: 32, G: 0, B: 16},
	core.StatusAborted:        {R: 32, G: 0, B: 0},
}

// initIndicator drives a ws2812 LED from the status register. It does
// nothing when the board has no LED.
func initIndicator(board *core.BoardConfig, regs *core.Registers) {
	if board.StatusLEDPin < 0 {
		return
	}
	pin := machine.Pin(board.StatusLEDPin)
	pin.Configure(machine.PinConfig{Mode: machine.PinOutput})
	led := ws2812.New(pin)

	show := func(s core.SystemStatus) {
		if int(s) < len(statusColors) {
			led.WriteColors([]color.RGBA{statusColors[s]})
		}
	}
	regs.SetHook(show)
	show(regs.Status())
}
