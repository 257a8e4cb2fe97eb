package core

import "testing"

func TestPulseProgramValidate(t *testing.T) {
	ch := newTestPulse()
	if PulseProgramValidate(ch) {
		t.Error("zeroed program passed validation")
	}

	if err := LoadPulseInstructions(ch, []PulsePair{{Output: 1, DelayNs: 100}}); err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if !PulseProgramValidate(ch) {
		t.Fatal("loaded program failed validation")
	}

	ch.Instructions[7] = 0
	if PulseProgramValidate(ch) {
		t.Error("zero delay before terminator passed validation")
	}
	ch.Instructions[7] = 1
	ch.Instructions[PulseInstructionsMax-1] = 3
	if PulseProgramValidate(ch) {
		t.Error("non-zero terminator passed validation")
	}
}

func TestPulseConflictCheck(t *testing.T) {
	s := NewChannelStore(nil)
	bit3 := []PulsePair{{Output: 1 << 3, DelayNs: 100}}
	other := []PulsePair{{Output: 1 << 4, DelayNs: 100}, {Output: 1 << 3, DelayNs: 100}}

	if err := LoadPulseInstructions(&s.Pulses[0], bit3); err != nil {
		t.Fatal(err)
	}
	if err := LoadPulseInstructions(&s.Pulses[1], bit3); err != nil {
		t.Fatal(err)
	}
	if err := LoadPulseInstructions(&s.Pulses[2], other); err != nil {
		t.Fatal(err)
	}

	s.Pulses[0].Active = true
	if PulseConflictCheck(s) {
		t.Error("single channel reported a conflict")
	}

	// Same bit, different slot.
	s.Pulses[2].Active = true
	if PulseConflictCheck(s) {
		t.Error("bit 3 in slots 0 and 1 reported a conflict")
	}

	// Inactive channels are ignored.
	if PulseConflictCheck(s) {
		t.Error("inactive channel counted")
	}

	s.Pulses[1].Active = true
	if !PulseConflictCheck(s) {
		t.Error("bit 3 in slot 0 on two channels not reported")
	}
}

func TestPulseConflictCheckNarrowBank(t *testing.T) {
	board := DefaultBoardConfig()
	board.OutputCount = 4
	s := NewChannelStore(board)
	s.Pulses[0].Active = true
	s.Pulses[1].Active = true

	// Bits past the bank are never driven, so sharing them is harmless.
	s.Pulses[0].Instructions[0] = 1 << 10
	s.Pulses[1].Instructions[0] = 1 << 10
	if PulseConflictCheck(s) {
		t.Error("bit outside the bank reported a conflict")
	}

	s.Pulses[1].Instructions[0] |= 1 << 2
	s.Pulses[0].Instructions[0] |= 1 << 2
	if !PulseConflictCheck(s) {
		t.Error("shared bit 2 not reported")
	}
}
