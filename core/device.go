package core

// Device is the command-side view of the engine. Every mutation validates
// its arguments, then refuses with Busy unless the system is Idle or
// Aborted and no arm token is queued. Failed calls change nothing.
type Device struct {
	regs  *Registers
	store *ChannelStore
	seq   *Sequencer
}

// NewDevice builds the engine around hal. The caller runs Sequencer().Run
// on the sequencing core.
func NewDevice(board *BoardConfig, hal TimingHAL) *Device {
	regs := NewRegisters()
	store := NewChannelStore(board)
	return &Device{
		regs:  regs,
		store: store,
		seq:   NewSequencer(regs, store, hal),
	}
}

func (d *Device) Registers() *Registers { return d.regs }

func (d *Device) Sequencer() *Sequencer { return d.seq }

func (d *Device) Board() *BoardConfig { return d.store.Board() }

// Events returns the sequencer's recent events, oldest first.
func (d *Device) Events() []SequencerEvent { return d.seq.Events().Snapshot() }

// Arm queues the arm token.
func (d *Device) Arm() error {
	d.store.mu.Lock()
	defer d.store.mu.Unlock()
	if d.regs.IsRunning() || !d.seq.TrySignal(ArmSequencer) {
		return fail(Busy, "arm", d.regs.Status().String())
	}
	return nil
}

// RequestAbort asks a running or arming sequencer to stop.
func (d *Device) RequestAbort() bool {
	return d.regs.RequestAbort()
}

func (d *Device) Status() SystemStatus { return d.regs.Status() }

func (d *Device) StatusName() string { return d.regs.Status().String() }

func (d *Device) SetDebug(level DebugLevel) error { return d.regs.SetDebug(level) }

func (d *Device) Debug() DebugLevel { return d.regs.Debug() }

// mutate runs fn under the store lock if id is valid and the system is
// idle. op names the call in errors.
func (d *Device) mutate(op string, id uint8, fn func() error) error {
	if !ValidID(id) {
		return fail(InvalidID, op, "channel "+itoa(int(id)))
	}
	d.store.mu.Lock()
	defer d.store.mu.Unlock()
	if d.regs.IsRunning() || d.seq.pending() {
		return fail(Busy, op, d.regs.Status().String())
	}
	return fn()
}

// SetActive selects whether a channel runs on the next arm.
func (d *Device) SetActive(kind ChannelKind, id uint8, active bool) error {
	return d.mutate("set_active", id, func() error {
		if kind == KindPulse {
			d.store.Pulses[id].Active = active
		} else {
			d.store.Clocks[id].Active = active
		}
		return nil
	})
}

// SetDivider sets a channel's divider. Programs already loaded keep the
// cycle counts they were converted with.
func (d *Device) SetDivider(kind ChannelKind, id uint8, div uint32) error {
	return d.mutate("set_divider", id, func() error {
		if kind == KindPulse {
			return SetDivider(&d.store.Pulses[id].Divider, div)
		}
		return SetDivider(&d.store.Clocks[id].Divider, div)
	})
}

// SetDividerPreset sets the divider from the board's resolution presets.
func (d *Device) SetDividerPreset(kind ChannelKind, id uint8, index int) error {
	presets := d.store.Board().DividerPresets
	if index < 0 || index >= len(presets) {
		return fail(OutOfRange, "set_resolution", "preset "+itoa(index))
	}
	return d.SetDivider(kind, id, presets[index])
}

// SetClockMode switches a clock between free-running and triggered.
func (d *Device) SetClockMode(id uint8, mode ClockMode) error {
	return d.mutate("set_mode", id, func() error {
		switch m := mode.(type) {
		case Freerun:
		case Triggered:
			if m.Edge != EdgeAny {
				return fail(OutOfRange, "set_mode", "edge not supported")
			}
		default:
			return fail(BadArgs, "set_mode", "unknown mode")
		}
		d.store.Clocks[id].Mode = mode
		return nil
	})
}

// SetTriggerInput routes external trigger trig to clock id.
func (d *Device) SetTriggerInput(id uint8, trig uint8) error {
	return d.mutate("set_trigger", id, func() error {
		if int(trig) >= TriggersMax {
			return fail(InvalidID, "set_trigger", "trigger "+itoa(int(trig)))
		}
		d.store.Clocks[id].TriggerPin = d.store.Board().TriggerPins[trig]
		return nil
	})
}

// SetPulseSource makes pulse id start on edges of internal clock clockID.
func (d *Device) SetPulseSource(id uint8, clockID uint8) error {
	return d.mutate("set_source", id, func() error {
		if !ValidID(clockID) {
			return fail(InvalidID, "set_source", "clock "+itoa(int(clockID)))
		}
		d.store.Pulses[id].SourcePin = d.store.Board().ClockPins[clockID]
		return nil
	})
}

// SetUnitOffset sets the scale from user units to Hz (clocks) or ns (pulses).
func (d *Device) SetUnitOffset(kind ChannelKind, id uint8, scalar float64) error {
	return d.mutate("set_units", id, func() error {
		if !(scalar > 0) || scalar > 1e18 {
			return fail(OutOfRange, "set_units", "scalar must be positive")
		}
		if kind == KindPulse {
			d.store.Pulses[id].UnitOffset = scalar
		} else {
			d.store.Clocks[id].UnitOffset = scalar
		}
		return nil
	})
}

// LoadClockProgram replaces clock id's program.
func (d *Device) LoadClockProgram(id uint8, pairs []ClockPair) error {
	return d.mutate("load_clock", id, func() error {
		return LoadClockInstructions(&d.store.Clocks[id], pairs)
	})
}

// LoadTriggerProgram replaces clock id's trigger program.
func (d *Device) LoadTriggerProgram(id uint8, skips uint32, delayNs uint64) error {
	return d.mutate("load_trigger", id, func() error {
		return LoadTriggerInstructions(&d.store.Clocks[id], skips, delayNs)
	})
}

func (d *Device) SetTriggerReps(id uint8, reps uint32) error {
	return d.mutate("trigger_reps", id, func() error {
		return SetTriggerReps(&d.store.Clocks[id], reps)
	})
}

// LoadPulseProgram replaces pulse id's program.
func (d *Device) LoadPulseProgram(id uint8, pairs []PulsePair) error {
	return d.mutate("load_pulse", id, func() error {
		return LoadPulseInstructions(&d.store.Pulses[id], pairs)
	})
}

// ResetChannel restores a channel to its power-on state.
func (d *Device) ResetChannel(kind ChannelKind, id uint8) error {
	return d.mutate("reset", id, func() error {
		if kind == KindPulse {
			d.store.ResetPulse(id)
		} else {
			d.store.ResetClock(id)
		}
		return nil
	})
}

// ResetAll restores every channel and the debug level.
func (d *Device) ResetAll() error {
	for id := uint8(0); id < ClocksMax; id++ {
		if err := d.ResetChannel(KindClock, id); err != nil {
			return err
		}
		if err := d.ResetChannel(KindPulse, id); err != nil {
			return err
		}
	}
	d.seq.Events().Clear()
	return d.regs.SetDebug(DebugQuiet)
}

// ClockChannel returns a copy of clock id.
func (d *Device) ClockChannel(id uint8) (ClockChannel, error) {
	if !ValidID(id) {
		return ClockChannel{}, fail(InvalidID, "clock", "channel "+itoa(int(id)))
	}
	d.store.mu.Lock()
	defer d.store.mu.Unlock()
	return d.store.Clocks[id], nil
}

// PulseChannel returns a copy of pulse id.
func (d *Device) PulseChannel(id uint8) (PulseChannel, error) {
	if !ValidID(id) {
		return PulseChannel{}, fail(InvalidID, "pulse", "channel "+itoa(int(id)))
	}
	d.store.mu.Lock()
	defer d.store.mu.Unlock()
	return d.store.Pulses[id], nil
}
