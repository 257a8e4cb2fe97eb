//go:build rp2040 && uartconsole

package main

import (
	"context"
	"machine"
	"time"

	"pulsegen/core"

	"github.com/jangala-dev/tinygo-uartx/uartx"
)

const (
	uartBaud = 115200
	uartTX   = machine.GPIO28
	uartRX   = machine.GPIO29
)

// startUARTConsole serves the same console on UART0, for rigs where USB
// is busy or noisy.
func startUARTConsole(ctx context.Context, console *core.Console) {
	uart := uartx.UART0
	err := uart.Configure(uartx.UARTConfig{
		BaudRate: uartBaud,
		TX:       uartTX,
		RX:       uartRX,
	})
	if err != nil {
		usb.writeLine("[CFG] uart console: " + err.Error())
		return
	}
	l := newLink("uart", 512, uart.Write)
	go uartConsoleLoop(ctx, uart, l, console)
}

func uartConsoleLoop(ctx context.Context, uart *uartx.UART, l *link, console *core.Console) {
	buf := make([]byte, 64)
	for ctx.Err() == nil {
		n, err := uart.RecvSomeContext(ctx, buf)
		if err != nil {
			time.Sleep(time.Millisecond)
			continue
		}
		l.feed(buf[:n])
		l.serve(console)
	}
}
