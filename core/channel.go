package core

import "sync"

// Channel and buffer capacities. These are hardware constants.
const (
	ClocksMax            = 3
	TriggersMax          = 1
	ClockInstructionsMax = 16 // words: 8 (reps, delay) pairs
	ClockTriggersMax     = 2  // words: one (skips, delay) pair
	PulseInstructionsMax = 64 // words: 31 user pairs + terminator

	// PulsePairsMax is the number of pairs a caller may load; the last
	// pair of the buffer is reserved for the terminator.
	PulsePairsMax = PulseInstructionsMax/2 - 1
	ClockPairsMax = ClockInstructionsMax / 2

	OutputPinBase  = 0
	OutputPinCount = 12

	ClockDividerDefault = 1
	ClockDividerMax     = 65500
	IterationsMax       = 500000
	TriggerSkipsMax     = 500

	PulseInstructionOffset = 4
	ClockInstructionOffset = 1

	// ArmSequencer is the only token the sequencer acts on.
	ArmSequencer uint32 = 1
)

// noUnit marks an unassigned timing unit or DMA channel.
const noUnit = -1

// ChannelKind selects between the two descriptor arrays.
type ChannelKind uint8

const (
	KindClock ChannelKind = iota
	KindPulse
)

func (k ChannelKind) String() string {
	if k == KindPulse {
		return "pulse"
	}
	return "clock"
}

// ClockMode is the clock channel's pacing variant: Freerun or Triggered.
type ClockMode interface {
	modeName() string
}

// Freerun clocks emit their program immediately after start.
type Freerun struct{}

func (Freerun) modeName() string { return "freerun" }

// TriggerEdge selects how an external trigger gates a clock. Only
// EdgeAny is implemented; the others are reserved.
type TriggerEdge uint8

const (
	EdgeAny TriggerEdge = iota
	EdgeRising
	EdgeHigh
	EdgeFalling
	EdgeSniffer
)

// Triggered clocks replay their trigger program against edges on the
// channel's trigger pin.
type Triggered struct {
	Edge TriggerEdge
}

func (Triggered) modeName() string { return "triggered" }

// ModeName returns "freerun" or "triggered".
func ModeName(m ClockMode) string {
	if m == nil {
		return Freerun{}.modeName()
	}
	return m.modeName()
}

// ClockPair is one caller-supplied clock instruction. DelayNs is the
// half-period in nanoseconds.
type ClockPair struct {
	Reps    uint32
	DelayNs uint64
}

// PulsePair is one caller-supplied pulse instruction: drive Output on the
// output bank, then hold for DelayNs.
type PulsePair struct {
	Output  uint32
	DelayNs uint64
}

// ClockChannel describes one internal clock generator.
type ClockChannel struct {
	ID   uint8
	Unit int8 // timing unit index, noUnit when unconfigured
	DMA  int8 // DMA channel, noUnit when unconfigured

	OutputPin  uint8
	TriggerPin uint8
	Mode       ClockMode

	Divider    uint32
	UnitOffset float64

	Instructions [ClockInstructionsMax]uint32
	Trigger      [ClockTriggersMax]uint32
	TriggerReps  uint32

	Active     bool
	Configured bool
}

// Pairs returns the stored (reps, delay cycles) words as pairs.
func (c *ClockChannel) Pairs() [ClockPairsMax][2]uint32 {
	var out [ClockPairsMax][2]uint32
	for i := range out {
		out[i] = [2]uint32{c.Instructions[2*i], c.Instructions[2*i+1]}
	}
	return out
}

// PulseChannel describes one pulse output sequencer.
type PulseChannel struct {
	ID   uint8
	Unit int8
	DMA  int8

	OutputBase  uint8
	OutputCount uint8
	SourcePin   uint8 // internal clock pin supplying the start edge

	Divider    uint32
	UnitOffset float64

	Instructions [PulseInstructionsMax]uint32
	Loaded       uint8 // pairs supplied by the last load, padding excluded

	Active     bool
	Configured bool
}

// PinMask is the set of output bits this channel's bank can drive.
func (p *PulseChannel) PinMask() uint32 {
	return 1<<p.OutputCount - 1
}

// Pairs returns the stored (output, delay cycles) words as pairs.
func (p *PulseChannel) Pairs() [PulseInstructionsMax / 2][2]uint32 {
	var out [PulseInstructionsMax / 2][2]uint32
	for i := range out {
		out[i] = [2]uint32{p.Instructions[2*i], p.Instructions[2*i+1]}
	}
	return out
}

// ChannelStore holds every channel descriptor. Capacity is fixed.
type ChannelStore struct {
	Clocks [ClocksMax]ClockChannel
	Pulses [ClocksMax]PulseChannel

	// mu serialises descriptor writes between the command side and the
	// sequencer's configure and teardown phases.
	mu    sync.Mutex
	board *BoardConfig
}

// NewChannelStore creates the descriptors in their reset state.
func NewChannelStore(board *BoardConfig) *ChannelStore {
	if board == nil {
		board = DefaultBoardConfig()
	}
	s := &ChannelStore{board: board}
	for i := uint8(0); i < ClocksMax; i++ {
		s.ResetClock(i)
		s.ResetPulse(i)
	}
	return s
}

// Board returns the routing the store was created with.
func (s *ChannelStore) Board() *BoardConfig { return s.board }

// ValidID reports whether id names a channel.
func ValidID(id uint8) bool {
	return id < ClocksMax
}

// ResetClock restores clock id to its power-on state. Hardware claims are
// not touched; callers reset only unconfigured channels.
func (s *ChannelStore) ResetClock(id uint8) {
	s.Clocks[id] = ClockChannel{
		ID:         id,
		Unit:       noUnit,
		DMA:        noUnit,
		OutputPin:  s.board.ClockPins[id],
		TriggerPin: s.board.TriggerPins[0],
		Mode:       Freerun{},
		Divider:    ClockDividerDefault,
		UnitOffset: 1.0,
	}
}

// ResetPulse restores pulse id to its power-on state. Every pulse channel
// starts on the first internal clock.
func (s *ChannelStore) ResetPulse(id uint8) {
	s.Pulses[id] = PulseChannel{
		ID:          id,
		Unit:        noUnit,
		DMA:         noUnit,
		OutputBase:  s.board.OutputBase,
		OutputCount: s.board.OutputCount,
		SourcePin:   s.board.ClockPins[0],
		Divider:     ClockDividerDefault,
		UnitOffset:  1.0,
	}
}

// AnyConfigured reports whether any descriptor still holds hardware.
func (s *ChannelStore) AnyConfigured() bool {
	for i := range s.Clocks {
		if s.Clocks[i].Configured {
			return true
		}
	}
	for i := range s.Pulses {
		if s.Pulses[i].Configured {
			return true
		}
	}
	return false
}
