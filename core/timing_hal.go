package core

// Block selects one of the two timing-unit blocks. Clock channels run in
// ClockBlock, pulse channels in PulseBlock, so a single register write per
// block starts every unit of that kind.
type Block uint8

const (
	ClockBlock Block = 0
	PulseBlock Block = 1
)

// UnitsPerBlock is the number of timing units in each block.
const UnitsPerBlock = 4

// UnitProgram names the resident micro-program a unit executes.
type UnitProgram uint8

const (
	ProgramFreerun UnitProgram = iota
	ProgramTriggered
	ProgramPulse
)

func (p UnitProgram) String() string {
	switch p {
	case ProgramFreerun:
		return "freerun"
	case ProgramTriggered:
		return "triggered"
	case ProgramPulse:
		return "pulse"
	}
	return "unknown"
}

// UnitSetup is everything a unit needs before it can be enabled.
type UnitSetup struct {
	Program UnitProgram

	// OutBase/OutCount are the pins the program drives.
	OutBase  uint8
	OutCount uint8

	// InPin is the pin the program waits on. Ignored when !UsesInput.
	InPin     uint8
	UsesInput bool

	Divider uint32
}

// FeedSetup describes a DMA stream into a unit's TX FIFO.
type FeedSetup struct {
	// Words is the source buffer. The HAL may copy it into an aligned
	// buffer when RingBits is set.
	Words []uint32

	// RingBits wraps the read address on a 1<<RingBits byte boundary.
	// Zero disables wrapping.
	RingBits uint8

	// Count is the number of 32-bit transfers.
	Count uint32
}

// TimingHAL abstracts the timing units and their DMA feeders.
// Implementations only run on the sequencing side.
type TimingHAL interface {
	// ClaimUnit reserves a unit, then disables and restarts it.
	ClaimUnit(block Block, unit uint8) error

	// SetupUnit sets pin directions, loads the program and divider.
	SetupUnit(block Block, unit uint8, setup UnitSetup) error

	// ClaimDMA reserves a free DMA channel.
	ClaimDMA() (uint8, error)

	// StartFeed configures dma to stream feed into the unit's TX FIFO
	// paced by the unit's data request. Transfers begin immediately and
	// stall until the unit is enabled.
	StartFeed(dma uint8, block Block, unit uint8, feed FeedSetup) error

	// EnableUnits enables every unit in mask with one register write.
	EnableUnits(block Block, mask uint8)

	DMABusy(dma uint8) bool

	// UnitIdle reports whether the unit has drained its FIFO and is
	// parked waiting for more data.
	UnitIdle(block Block, unit uint8) bool

	AbortDMA(dma uint8)
	ReleaseDMA(dma uint8)

	// StopUnit disables the unit.
	StopUnit(block Block, unit uint8)

	// DrainUnit clears the unit's FIFOs.
	DrainUnit(block Block, unit uint8)

	// ReleaseOutputs drives the unit's pins low and returns them to input.
	ReleaseOutputs(block Block, unit uint8, setup UnitSetup)

	ReleaseUnit(block Block, unit uint8)
}

// Global singleton used when no HAL is passed explicitly.
var timingHAL TimingHAL

// SetTimingHAL is called by target-specific code to register its driver.
func SetTimingHAL(h TimingHAL) {
	timingHAL = h
}

// MustTiming returns the configured HAL or panics if missing.
func MustTiming() TimingHAL {
	if timingHAL == nil {
		panic("timing HAL not configured")
	}
	return timingHAL
}
