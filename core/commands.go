package core

import "strings"

// registerCommands installs the text dialect. Query verbs end in '?'.
func (c *Console) registerCommands() {
	r := c.registry

	// System
	r.Register("stat", "", 0, c.handleStatus)
	r.Register("fire", "", 0, c.handleFire)
	r.Register("stop", "", 0, c.handleStop)
	r.Register("dbg", "level", 1, c.handleSetDebug)
	r.Register("dbg?", "", 0, c.handleGetDebug)
	r.Register("vers", "", 0, c.handleVersion)
	r.Register("freq", "", 0, c.handleFreq)
	r.Register("rst", "", 0, c.handleReset)
	r.Register("evts", "", 0, c.handleEvents)
	r.Register("help", "", 0, c.handleHelp)

	// Clock channels
	r.Register("cact", "id 0|1", 2, c.activeSetter(KindClock))
	r.Register("cact?", "id", 1, c.activeGetter(KindClock))
	r.Register("cdiv", "id divider", 2, c.dividerSetter(KindClock))
	r.Register("cdiv?", "id", 1, c.dividerGetter(KindClock))
	r.Register("cres", "id preset", 2, c.presetSetter(KindClock))
	r.Register("cuni", "id scalar", 2, c.unitSetter(KindClock))
	r.Register("cuni?", "id", 1, c.unitGetter(KindClock))
	r.Register("crst", "id", 1, c.resetter(KindClock))
	r.Register("ctyp", "id freerun|triggered", 2, c.handleSetMode)
	r.Register("ctyp?", "id", 1, c.handleGetMode)
	r.Register("cldi", "id reps delay [reps delay ...]", 1, c.handleLoadClock)
	r.Register("cldi?", "id", 1, c.handleGetClockProgram)
	r.Register("cfrq", "id reps freq [reps freq ...]", 1, c.handleLoadClockFreq)
	r.Register("tset", "id trigger", 2, c.handleSetTrigger)
	r.Register("tldi", "id skips delay reps", 4, c.handleLoadTrigger)
	r.Register("tldi?", "id", 1, c.handleGetTrigger)
	r.Register("treps", "id reps", 2, c.handleTriggerReps)

	// Pulse channels
	r.Register("pact", "id 0|1", 2, c.activeSetter(KindPulse))
	r.Register("pact?", "id", 1, c.activeGetter(KindPulse))
	r.Register("pdiv", "id divider", 2, c.dividerSetter(KindPulse))
	r.Register("pdiv?", "id", 1, c.dividerGetter(KindPulse))
	r.Register("pres", "id preset", 2, c.presetSetter(KindPulse))
	r.Register("puni", "id scalar", 2, c.unitSetter(KindPulse))
	r.Register("puni?", "id", 1, c.unitGetter(KindPulse))
	r.Register("prst", "id", 1, c.resetter(KindPulse))
	r.Register("pset", "id clock", 2, c.handleSetSource)
	r.Register("pset?", "id", 1, c.handleGetSource)
	r.Register("pldi", "id output delay [output delay ...]", 1, c.handleLoadPulse)
	r.Register("pldi?", "id", 1, c.handleGetPulseProgram)
}

func (c *Console) handleStatus(args []string) (string, error) {
	return c.dev.StatusName(), nil
}

func (c *Console) handleFire(args []string) (string, error) {
	return "", c.dev.Arm()
}

// handleStop is accepted in any state; it only has an effect while arming
// or running.
func (c *Console) handleStop(args []string) (string, error) {
	c.dev.RequestAbort()
	return "", nil
}

func (c *Console) handleSetDebug(args []string) (string, error) {
	level, err := parseU32(args[0])
	if err != nil {
		return "", err
	}
	return "", c.dev.SetDebug(DebugLevel(level))
}

func (c *Console) handleGetDebug(args []string) (string, error) {
	return utoa(uint32(c.dev.Debug())), nil
}

func (c *Console) handleVersion(args []string) (string, error) {
	if c.info.Version == "" {
		return "unknown", nil
	}
	return c.info.Version, nil
}

func (c *Console) handleFreq(args []string) (string, error) {
	if c.info.CPUFreq == nil {
		return "0", nil
	}
	return utoa(c.info.CPUFreq()), nil
}

func (c *Console) handleReset(args []string) (string, error) {
	return "", c.dev.ResetAll()
}

// handleEvents dumps the event ring on one line, events separated by ';'.
func (c *Console) handleEvents(args []string) (string, error) {
	events := c.dev.Events()
	if len(events) == 0 {
		return "none", nil
	}
	lines := make([]string, len(events))
	for i, evt := range events {
		lines[i] = FormatEvent(evt)
	}
	return strings.Join(lines, "; "), nil
}

func (c *Console) handleHelp(args []string) (string, error) {
	return strings.Join(c.registry.Names(), " "), nil
}

func (c *Console) activeSetter(kind ChannelKind) CommandHandler {
	return func(args []string) (string, error) {
		id, err := parseID(args[0])
		if err != nil {
			return "", err
		}
		on, err := parseBool(args[1])
		if err != nil {
			return "", err
		}
		return "", c.dev.SetActive(kind, id, on)
	}
}

func (c *Console) activeGetter(kind ChannelKind) CommandHandler {
	return func(args []string) (string, error) {
		id, err := parseID(args[0])
		if err != nil {
			return "", err
		}
		if kind == KindPulse {
			ch, err := c.dev.PulseChannel(id)
			return formatBool(ch.Active), err
		}
		ch, err := c.dev.ClockChannel(id)
		return formatBool(ch.Active), err
	}
}

func (c *Console) dividerSetter(kind ChannelKind) CommandHandler {
	return func(args []string) (string, error) {
		id, err := parseID(args[0])
		if err != nil {
			return "", err
		}
		div, err := parseU32(args[1])
		if err != nil {
			return "", err
		}
		return "", c.dev.SetDivider(kind, id, div)
	}
}

func (c *Console) dividerGetter(kind ChannelKind) CommandHandler {
	return func(args []string) (string, error) {
		id, err := parseID(args[0])
		if err != nil {
			return "", err
		}
		if kind == KindPulse {
			ch, err := c.dev.PulseChannel(id)
			return utoa(ch.Divider), err
		}
		ch, err := c.dev.ClockChannel(id)
		return utoa(ch.Divider), err
	}
}

func (c *Console) presetSetter(kind ChannelKind) CommandHandler {
	return func(args []string) (string, error) {
		id, err := parseID(args[0])
		if err != nil {
			return "", err
		}
		idx, err := parseU32(args[1])
		if err != nil {
			return "", err
		}
		return "", c.dev.SetDividerPreset(kind, id, int(idx))
	}
}

func (c *Console) unitSetter(kind ChannelKind) CommandHandler {
	return func(args []string) (string, error) {
		id, err := parseID(args[0])
		if err != nil {
			return "", err
		}
		scalar, err := parseFloat(args[1])
		if err != nil {
			return "", err
		}
		return "", c.dev.SetUnitOffset(kind, id, scalar)
	}
}

func (c *Console) unitGetter(kind ChannelKind) CommandHandler {
	return func(args []string) (string, error) {
		id, err := parseID(args[0])
		if err != nil {
			return "", err
		}
		if kind == KindPulse {
			ch, err := c.dev.PulseChannel(id)
			return formatFloat(ch.UnitOffset), err
		}
		ch, err := c.dev.ClockChannel(id)
		return formatFloat(ch.UnitOffset), err
	}
}

func (c *Console) resetter(kind ChannelKind) CommandHandler {
	return func(args []string) (string, error) {
		id, err := parseID(args[0])
		if err != nil {
			return "", err
		}
		return "", c.dev.ResetChannel(kind, id)
	}
}

func (c *Console) handleSetMode(args []string) (string, error) {
	id, err := parseID(args[0])
	if err != nil {
		return "", err
	}
	var mode ClockMode
	switch args[1] {
	case "freerun", "0":
		mode = Freerun{}
	case "triggered", "1":
		mode = Triggered{Edge: EdgeAny}
	default:
		return "", fail(BadArgs, "ctyp", args[1])
	}
	return "", c.dev.SetClockMode(id, mode)
}

func (c *Console) handleGetMode(args []string) (string, error) {
	id, err := parseID(args[0])
	if err != nil {
		return "", err
	}
	ch, err := c.dev.ClockChannel(id)
	return ModeName(ch.Mode), err
}

// handleLoadClock takes (reps, delay) pairs, delays in the clock's time unit.
func (c *Console) handleLoadClock(args []string) (string, error) {
	id, err := parseID(args[0])
	if err != nil {
		return "", err
	}
	ch, err := c.dev.ClockChannel(id)
	if err != nil {
		return "", err
	}
	rest := args[1:]
	if err := pairArgs("cldi", rest); err != nil {
		return "", err
	}
	pairs := make([]ClockPair, 0, len(rest)/2)
	for i := 0; i < len(rest); i += 2 {
		reps, err := parseU32(rest[i])
		if err != nil {
			return "", err
		}
		delay, err := parseFloat(rest[i+1])
		if err != nil {
			return "", err
		}
		ns, err := clockDelayNanos(delay, ch.UnitOffset)
		if err != nil {
			return "", err
		}
		pairs = append(pairs, ClockPair{Reps: reps, DelayNs: ns})
	}
	return "", c.dev.LoadClockProgram(id, pairs)
}

// handleLoadClockFreq takes (reps, frequency) pairs and emits square waves.
func (c *Console) handleLoadClockFreq(args []string) (string, error) {
	id, err := parseID(args[0])
	if err != nil {
		return "", err
	}
	ch, err := c.dev.ClockChannel(id)
	if err != nil {
		return "", err
	}
	rest := args[1:]
	if err := pairArgs("cfrq", rest); err != nil {
		return "", err
	}
	pairs := make([]ClockPair, 0, len(rest)/2)
	for i := 0; i < len(rest); i += 2 {
		reps, err := parseU32(rest[i])
		if err != nil {
			return "", err
		}
		freq, err := parseFloat(rest[i+1])
		if err != nil {
			return "", err
		}
		ns, err := FrequencyToHalfPeriodNanos(freq, ch.UnitOffset)
		if err != nil {
			return "", err
		}
		pairs = append(pairs, ClockPair{Reps: reps, DelayNs: ns})
	}
	return "", c.dev.LoadClockProgram(id, pairs)
}

// handleGetClockProgram returns the stored words, reps already adjusted.
func (c *Console) handleGetClockProgram(args []string) (string, error) {
	id, err := parseID(args[0])
	if err != nil {
		return "", err
	}
	ch, err := c.dev.ClockChannel(id)
	if err != nil {
		return "", err
	}
	return joinWords(ch.Instructions[:]), nil
}

func (c *Console) handleSetTrigger(args []string) (string, error) {
	id, err := parseID(args[0])
	if err != nil {
		return "", err
	}
	trig, err := parseU32(args[1])
	if err != nil {
		return "", err
	}
	if trig >= TriggersMax {
		return "", fail(InvalidID, "tset", args[1])
	}
	return "", c.dev.SetTriggerInput(id, uint8(trig))
}

func (c *Console) handleLoadTrigger(args []string) (string, error) {
	id, err := parseID(args[0])
	if err != nil {
		return "", err
	}
	ch, err := c.dev.ClockChannel(id)
	if err != nil {
		return "", err
	}
	skips, err := parseU32(args[1])
	if err != nil {
		return "", err
	}
	delay, err := parseFloat(args[2])
	if err != nil {
		return "", err
	}
	reps, err := parseU32(args[3])
	if err != nil {
		return "", err
	}
	ns, err := clockDelayNanos(delay, ch.UnitOffset)
	if err != nil {
		return "", err
	}
	// Check reps first so a bad count leaves the trigger program alone.
	if reps < 1 || reps > IterationsMax {
		return "", fail(OutOfRange, "tldi", "reps "+utoa(reps))
	}
	if err := c.dev.LoadTriggerProgram(id, skips, ns); err != nil {
		return "", err
	}
	return "", c.dev.SetTriggerReps(id, reps)
}

func (c *Console) handleGetTrigger(args []string) (string, error) {
	id, err := parseID(args[0])
	if err != nil {
		return "", err
	}
	ch, err := c.dev.ClockChannel(id)
	if err != nil {
		return "", err
	}
	return joinWords([]uint32{ch.Trigger[0], ch.Trigger[1], ch.TriggerReps}), nil
}

func (c *Console) handleTriggerReps(args []string) (string, error) {
	id, err := parseID(args[0])
	if err != nil {
		return "", err
	}
	reps, err := parseU32(args[1])
	if err != nil {
		return "", err
	}
	return "", c.dev.SetTriggerReps(id, reps)
}

func (c *Console) handleSetSource(args []string) (string, error) {
	id, err := parseID(args[0])
	if err != nil {
		return "", err
	}
	clock, err := parseID(args[1])
	if err != nil {
		return "", err
	}
	return "", c.dev.SetPulseSource(id, clock)
}

// handleGetSource reports the clock channel whose pin feeds pulse id.
func (c *Console) handleGetSource(args []string) (string, error) {
	id, err := parseID(args[0])
	if err != nil {
		return "", err
	}
	ch, err := c.dev.PulseChannel(id)
	if err != nil {
		return "", err
	}
	for i, pin := range c.dev.Board().ClockPins {
		if pin == ch.SourcePin {
			return itoa(i), nil
		}
	}
	return "", fail(Failed, "pset?", "source pin "+itoa(int(ch.SourcePin)))
}

// handleLoadPulse takes (output, delay) pairs, delays in the pulse's unit.
func (c *Console) handleLoadPulse(args []string) (string, error) {
	id, err := parseID(args[0])
	if err != nil {
		return "", err
	}
	ch, err := c.dev.PulseChannel(id)
	if err != nil {
		return "", err
	}
	rest := args[1:]
	if err := pairArgs("pldi", rest); err != nil {
		return "", err
	}
	pairs := make([]PulsePair, 0, len(rest)/2)
	for i := 0; i < len(rest); i += 2 {
		out, err := parseOutput(rest[i])
		if err != nil {
			return "", err
		}
		delay, err := parseFloat(rest[i+1])
		if err != nil {
			return "", err
		}
		ns, err := UserToNanos(delay, ch.UnitOffset)
		if err != nil {
			return "", err
		}
		pairs = append(pairs, PulsePair{Output: out, DelayNs: ns})
	}
	return "", c.dev.LoadPulseProgram(id, pairs)
}

// handleGetPulseProgram returns the loaded pairs followed by the
// terminator pair. Padding between them is not shown.
func (c *Console) handleGetPulseProgram(args []string) (string, error) {
	id, err := parseID(args[0])
	if err != nil {
		return "", err
	}
	ch, err := c.dev.PulseChannel(id)
	if err != nil {
		return "", err
	}
	words := make([]uint32, 0, 2*int(ch.Loaded)+2)
	words = append(words, ch.Instructions[:2*int(ch.Loaded)]...)
	words = append(words, ch.Instructions[PulseInstructionsMax-2:]...)
	return joinWords(words), nil
}
