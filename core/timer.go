package core

import "sync/atomic"

// TimerFreq is the rate of the system tick counter (1 MHz microsecond timer).
const TimerFreq = 1000000

var (
	systemTicks atomic.Uint32
	tickSource  func() uint32
)

// SetTickSource installs a free-running counter read by GetTime. Targets
// pass the hardware timer so events recorded off the main loop carry the
// current time. Call it before starting the sequencer.
func SetTickSource(src func() uint32) {
	tickSource = src
}

// GetTime returns the current system time in timer ticks
func GetTime() uint32 {
	if tickSource != nil {
		return tickSource()
	}
	return systemTicks.Load()
}

// SetTime sets the stored system time. It is only read when no tick
// source is installed; tests set it directly.
func SetTime(ticks uint32) {
	systemTicks.Store(ticks)
}
