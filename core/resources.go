package core

// resources binds channel descriptors to timing units and DMA feeders.
// It is owned by the sequencer; nothing else calls the HAL.
type resources struct {
	hal   TimingHAL
	slots unitSlots
}

func newResources(hal TimingHAL) *resources {
	return &resources{hal: hal}
}

func clockSetup(ch *ClockChannel) UnitSetup {
	setup := UnitSetup{
		OutBase:  ch.OutputPin,
		OutCount: 1,
		Divider:  ch.Divider,
	}
	switch ch.Mode.(type) {
	case Triggered:
		setup.Program = ProgramTriggered
		setup.InPin = ch.TriggerPin
		setup.UsesInput = true
	default:
		setup.Program = ProgramFreerun
	}
	return setup
}

func clockFeed(ch *ClockChannel) FeedSetup {
	switch ch.Mode.(type) {
	case Triggered:
		return FeedSetup{
			Words:    ch.Trigger[:],
			RingBits: 3,
			Count:    ClockTriggersMax * ch.TriggerReps,
		}
	default:
		return FeedSetup{
			Words: ch.Instructions[:],
			Count: ClockInstructionsMax,
		}
	}
}

func pulseSetup(ch *PulseChannel) UnitSetup {
	return UnitSetup{
		Program:   ProgramPulse,
		OutBase:   ch.OutputBase,
		OutCount:  ch.OutputCount,
		InPin:     ch.SourcePin,
		UsesInput: true,
		Divider:   ch.Divider,
	}
}

func pulseFeed(ch *PulseChannel) FeedSetup {
	return FeedSetup{
		Words:    ch.Instructions[:],
		RingBits: 8,
		Count:    PulseInstructionsMax * IterationsMax,
	}
}

// bind claims a unit and a DMA channel, programs the unit and starts the
// feed. On a setup error everything claimed so far is released.
func (r *resources) bind(block Block, setup UnitSetup, feed FeedSetup) (unit, dma uint8, err error) {
	unit = r.slots.allocate(block)
	if err = r.hal.ClaimUnit(block, unit); err != nil {
		panic("claim unit: " + err.Error())
	}
	if err = r.hal.SetupUnit(block, unit, setup); err != nil {
		r.hal.ReleaseOutputs(block, unit, setup)
		r.hal.ReleaseUnit(block, unit)
		r.slots.release(block, unit)
		return 0, 0, err
	}
	dma, err = r.hal.ClaimDMA()
	if err != nil {
		panic("claim dma: " + err.Error())
	}
	if err = r.hal.StartFeed(dma, block, unit, feed); err != nil {
		r.hal.AbortDMA(dma)
		r.hal.ReleaseDMA(dma)
		r.hal.ReleaseOutputs(block, unit, setup)
		r.hal.ReleaseUnit(block, unit)
		r.slots.release(block, unit)
		return 0, 0, err
	}
	return unit, dma, nil
}

// unbind is the inverse of bind. Every step runs regardless of the others.
func (r *resources) unbind(block Block, unit, dma uint8, setup UnitSetup) {
	r.hal.StopUnit(block, unit)
	r.hal.AbortDMA(dma)
	r.hal.ReleaseDMA(dma)
	r.hal.DrainUnit(block, unit)
	r.hal.ReleaseOutputs(block, unit, setup)
	r.hal.ReleaseUnit(block, unit)
	r.slots.release(block, unit)
}

// ConfigureClock binds ch to a unit in the clock block.
func (r *resources) ConfigureClock(ch *ClockChannel) error {
	unit, dma, err := r.bind(ClockBlock, clockSetup(ch), clockFeed(ch))
	if err != nil {
		return &E{C: Failed, Op: "configure_clock", Msg: "clock " + itoa(int(ch.ID)), Err: err}
	}
	ch.Unit = int8(unit)
	ch.DMA = int8(dma)
	ch.Configured = true
	return nil
}

// ConfigurePulse binds ch to a unit in the pulse block.
func (r *resources) ConfigurePulse(ch *PulseChannel) error {
	unit, dma, err := r.bind(PulseBlock, pulseSetup(ch), pulseFeed(ch))
	if err != nil {
		return &E{C: Failed, Op: "configure_pulse", Msg: "pulse " + itoa(int(ch.ID)), Err: err}
	}
	ch.Unit = int8(unit)
	ch.DMA = int8(dma)
	ch.Configured = true
	return nil
}

// FreeClock releases ch's hardware. It is a no-op for unconfigured channels.
func (r *resources) FreeClock(ch *ClockChannel) {
	if !ch.Configured {
		return
	}
	r.unbind(ClockBlock, uint8(ch.Unit), uint8(ch.DMA), clockSetup(ch))
	ch.Unit, ch.DMA = noUnit, noUnit
	ch.Configured = false
}

// FreePulse releases ch's hardware. It is a no-op for unconfigured channels.
func (r *resources) FreePulse(ch *PulseChannel) {
	if !ch.Configured {
		return
	}
	r.unbind(PulseBlock, uint8(ch.Unit), uint8(ch.DMA), pulseSetup(ch))
	ch.Unit, ch.DMA = noUnit, noUnit
	ch.Configured = false
}

// unitMasks returns the enable masks of every configured unit.
func unitMasks(store *ChannelStore) (clockMask, pulseMask uint8) {
	for i := range store.Clocks {
		if c := &store.Clocks[i]; c.Configured {
			clockMask |= 1 << uint8(c.Unit)
		}
	}
	for i := range store.Pulses {
		if p := &store.Pulses[i]; p.Configured {
			pulseMask |= 1 << uint8(p.Unit)
		}
	}
	return clockMask, pulseMask
}

// StartSynchronized enables every configured unit. The pulse block goes
// first so its units are already waiting for the clock edges.
func (r *resources) StartSynchronized(clockMask, pulseMask uint8) {
	if pulseMask != 0 {
		r.hal.EnableUnits(PulseBlock, pulseMask)
	}
	if clockMask != 0 {
		r.hal.EnableUnits(ClockBlock, clockMask)
	}
}

// busy reports whether any watched feeder still has work. Clocks are
// watched when any is configured; otherwise the pulse feeders are.
func (r *resources) busy(store *ChannelStore) bool {
	watchedClocks := false
	for i := range store.Clocks {
		c := &store.Clocks[i]
		if !c.Configured {
			continue
		}
		watchedClocks = true
		if r.hal.DMABusy(uint8(c.DMA)) || !r.hal.UnitIdle(ClockBlock, uint8(c.Unit)) {
			return true
		}
	}
	if watchedClocks {
		return false
	}
	for i := range store.Pulses {
		p := &store.Pulses[i]
		if p.Configured && r.hal.DMABusy(uint8(p.DMA)) {
			return true
		}
	}
	return false
}
