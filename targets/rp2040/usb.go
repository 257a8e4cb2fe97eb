//go:build rp2040

package main

import (
	"machine"
	"time"
)

var usb *link

// InitUSB configures the CDC-ACM console. On RP2040 machine.Serial is the
// USB device, the config is ignored.
func InitUSB() {
	machine.Serial.Configure(machine.UARTConfig{})
	usb = newLink("usb", 1024, machine.Serial.Write)
}

// usbReaderLoop moves CDC bytes into the usb link in chunks.
func usbReaderLoop() {
	defer func() {
		if r := recover(); r != nil {
			time.Sleep(100 * time.Millisecond)
			go usbReaderLoop()
		}
	}()

	var chunk [64]byte
	for {
		n := 0
		for n < len(chunk) && machine.Serial.Buffered() > 0 {
			b, err := machine.Serial.ReadByte()
			if err != nil {
				break
			}
			chunk[n] = b
			n++
		}
		if n > 0 {
			usb.feed(chunk[:n])
		}
		time.Sleep(100 * time.Microsecond)
	}
}

// usbDebugWriter sends sequencer diagnostics to the USB console.
func usbDebugWriter(msg string) {
	usb.writeLine(msg)
}
