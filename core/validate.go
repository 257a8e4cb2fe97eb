package core

// PulseProgramValidate reports whether ch's program can be replayed: every
// delay word before the terminator is non-zero and the terminator pair is
// (0, 0).
func PulseProgramValidate(ch *PulseChannel) bool {
	for i := 1; i < PulseInstructionsMax-2; i += 2 {
		if ch.Instructions[i] == 0 {
			return false
		}
	}
	return ch.Instructions[PulseInstructionsMax-2] == 0 &&
		ch.Instructions[PulseInstructionsMax-1] == 0
}

// PulseConflictCheck reports whether two active pulse channels drive the
// same output bit in the same instruction slot. Only bits inside each
// channel's bank count, since the unit drives no others. Clock pins are not
// checked.
func PulseConflictCheck(store *ChannelStore) bool {
	var counts [PulseInstructionsMax / 2][OutputPinCount]uint8

	for i := range store.Pulses {
		p := &store.Pulses[i]
		if !p.Active {
			continue
		}
		bank := int(p.OutputCount)
		if bank > OutputPinCount {
			bank = OutputPinCount
		}
		for slot := range counts {
			out := p.Instructions[2*slot]
			for bit := 0; bit < bank; bit++ {
				if out&(1<<bit) == 0 {
					continue
				}
				counts[slot][bit]++
				if counts[slot][bit] > 1 {
					return true
				}
			}
		}
	}
	return false
}
