//go:build rp2040 && !uartconsole

package main

import (
	"context"

	"pulsegen/core"
)

func startUARTConsole(ctx context.Context, console *core.Console) {}
