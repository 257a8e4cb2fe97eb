package core

import "math"

// Base clock domain. One cycle is CycleNanos nanoseconds at a divider of 1.
const (
	CycleNanos = 4

	// ClockCyclesMax leaves headroom for the unit programs' own latency.
	ClockCyclesMax = (1 << 32) - 96
)

// ConvertDurationToCycles converts ns into timing-unit cycles under divider.
// The result truncates toward zero.
func ConvertDurationToCycles(ns uint64, divider uint32) (uint32, error) {
	if divider == 0 {
		return 0, fail(OutOfRange, "convert", "zero divider")
	}
	cycles := ns / (uint64(divider) * CycleNanos)
	if cycles > ClockCyclesMax {
		return 0, fail(OutOfRange, "convert", "cycles above "+utoa(ClockCyclesMax))
	}
	return uint32(cycles), nil
}

// UserToNanos scales a user quantity into nanoseconds.
func UserToNanos(value, unitOffset float64) (uint64, error) {
	ns := value * unitOffset
	if math.IsNaN(ns) || math.IsInf(ns, 0) || ns < 0 {
		return 0, fail(OutOfRange, "units", "not a duration")
	}
	if ns >= math.MaxUint64 {
		return 0, fail(OutOfRange, "units", "duration too long")
	}
	return uint64(ns), nil
}

// FrequencyToHalfPeriodNanos converts a user frequency into the half period
// of a square wave, which is the delay a clock pair holds each level.
func FrequencyToHalfPeriodNanos(freq, unitOffset float64) (uint64, error) {
	hz := freq * unitOffset
	if math.IsNaN(hz) || math.IsInf(hz, 0) || hz <= 0 {
		return 0, fail(OutOfRange, "units", "not a frequency")
	}
	return UserToNanos(1e9/(2*hz), 1)
}

// LoadClockInstructions encodes pairs into ch's program. Repetitions above
// one are stored less one: the unit program emits the first cycle before it
// starts counting. A pair with zero reps or a zero delay is a no-op slot
// the unit skips.
func LoadClockInstructions(ch *ClockChannel, pairs []ClockPair) error {
	const op = "load_clock"
	if len(pairs) > ClockPairsMax {
		return fail(Malformed, op, "more than "+itoa(ClockPairsMax)+" pairs")
	}

	var buf [ClockInstructionsMax]uint32
	for i, p := range pairs {
		reps := p.Reps
		if reps > 1 {
			reps -= ClockInstructionOffset
		}
		if p.DelayNs == 0 {
			buf[2*i] = reps
			continue
		}
		cycles, err := ConvertDurationToCycles(p.DelayNs, ch.Divider)
		if err != nil {
			return err
		}
		if cycles < 1 {
			return fail(Malformed, op, "pair "+itoa(i)+" delay under one cycle")
		}
		buf[2*i] = reps
		buf[2*i+1] = cycles
	}

	ch.Instructions = buf
	return nil
}

// LoadPulseInstructions encodes pairs into ch's program. Delays are stored
// minus the fetch latency of the pulse program. Unused slots hold the
// shortest legal delay and the final pair is always the (0, 0) terminator.
func LoadPulseInstructions(ch *PulseChannel, pairs []PulsePair) error {
	const op = "load_pulse"
	if len(pairs) > PulsePairsMax {
		return fail(Malformed, op, "more than "+itoa(PulsePairsMax)+" pairs")
	}

	var buf [PulseInstructionsMax]uint32
	for i := 1; i < PulseInstructionsMax; i += 2 {
		buf[i] = 1
	}

	mask := ch.PinMask()
	for i, p := range pairs {
		if p.Output&^mask != 0 {
			return fail(OutOfRange, op, "pair "+itoa(i)+" output outside bank")
		}
		cycles, err := ConvertDurationToCycles(p.DelayNs, ch.Divider)
		if err != nil {
			return err
		}
		if cycles < PulseInstructionOffset+1 {
			return fail(Malformed, op, "pair "+itoa(i)+" delay under "+itoa(PulseInstructionOffset+1)+" cycles")
		}
		buf[2*i] = p.Output
		buf[2*i+1] = cycles - PulseInstructionOffset
	}

	buf[PulseInstructionsMax-2] = 0
	buf[PulseInstructionsMax-1] = 0
	ch.Instructions = buf
	ch.Loaded = uint8(len(pairs))
	return nil
}

// LoadTriggerInstructions stores the (skips, delay) trigger program.
func LoadTriggerInstructions(ch *ClockChannel, skips uint32, delayNs uint64) error {
	if skips > TriggerSkipsMax {
		return fail(OutOfRange, "load_trigger", "skips above "+itoa(TriggerSkipsMax))
	}
	cycles, err := ConvertDurationToCycles(delayNs, ch.Divider)
	if err != nil {
		return err
	}
	ch.Trigger = [ClockTriggersMax]uint32{skips, cycles}
	return nil
}

// SetTriggerReps sets how many times the trigger program is replayed.
func SetTriggerReps(ch *ClockChannel, reps uint32) error {
	if reps < 1 || reps > IterationsMax {
		return fail(OutOfRange, "trigger_reps", "reps "+utoa(reps))
	}
	ch.TriggerReps = reps
	return nil
}

// SetDivider validates and stores a divider.
func SetDivider(div *uint32, value uint32) error {
	if value < 1 || value > ClockDividerMax {
		return fail(OutOfRange, "divider", utoa(value))
	}
	*div = value
	return nil
}
