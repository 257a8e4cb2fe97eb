package core

import (
	"context"
	"time"
)

// DefaultPollInterval is the stall-loop sleep between DMA checks.
const DefaultPollInterval = 100 * time.Microsecond

// Sequencer owns every hardware claim. Run is its only entry point and is
// meant to be the whole life of the sequencing core.
type Sequencer struct {
	regs   *Registers
	store  *ChannelStore
	res    *resources
	events *EventRing

	arm  chan uint32
	poll time.Duration
	out  DebugWriter
}

// NewSequencer wires the sequencer to the shared registers and store. A nil
// hal falls back to the registered one.
func NewSequencer(regs *Registers, store *ChannelStore, hal TimingHAL) *Sequencer {
	if hal == nil {
		hal = MustTiming()
	}
	poll := DefaultPollInterval
	if us := store.Board().PollMicros; us > 0 {
		poll = time.Duration(us) * time.Microsecond
	}
	return &Sequencer{
		regs:   regs,
		store:  store,
		res:    newResources(hal),
		events: &EventRing{},
		arm:    make(chan uint32, 1),
		poll:   poll,
		out:    DebugAsync,
	}
}

// SetOutput redirects configuration dumps and narration.
func (s *Sequencer) SetOutput(w DebugWriter) {
	if w == nil {
		w = func(string) {}
	}
	s.out = w
}

// Events returns the sequencer's event ring.
func (s *Sequencer) Events() *EventRing { return s.events }

// Signal pushes token, blocking while a previous token is still queued.
func (s *Sequencer) Signal(token uint32) {
	s.arm <- token
}

// TrySignal pushes token unless the queue is full.
func (s *Sequencer) TrySignal(token uint32) bool {
	select {
	case s.arm <- token:
		return true
	default:
		return false
	}
}

// pending reports whether a token is queued but not yet taken.
func (s *Sequencer) pending() bool {
	return len(s.arm) > 0
}

// Run processes arm tokens until ctx is cancelled. Tokens other than
// ArmSequencer are ignored.
func (s *Sequencer) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case token := <-s.arm:
			if token != ArmSequencer {
				continue
			}
			s.cycle(ctx)
		}
	}
}

// cycle runs one arm cycle. Whatever happens, every configured channel is
// released before the final status is written.
func (s *Sequencer) cycle(ctx context.Context) {
	s.store.mu.Lock()
	s.regs.SetStatus(StatusArming)
	level := s.regs.Debug()
	s.events.Record(EvtArm, 0, uint32(level), 0)

	if level >= DebugVerbose {
		s.dumpConfig()
	}
	if level == DebugVerbose {
		s.store.mu.Unlock()
		s.regs.SetStatus(StatusAborted)
		s.events.Record(EvtFinish, 0, uint32(StatusAborted), 0)
		return
	}

	armed := s.configure()
	s.store.mu.Unlock()

	aborted := true
	if armed && s.regs.Advance(StatusRunning) {
		clockMask, pulseMask := unitMasks(s.store)
		s.events.Record(EvtStart, 0, uint32(clockMask), uint32(pulseMask))
		s.narrate("start clocks=" + utoa(uint32(clockMask)) + " pulses=" + utoa(uint32(pulseMask)))
		s.res.StartSynchronized(clockMask, pulseMask)
		aborted = s.stall(ctx)
	}

	if aborted || !s.regs.Advance(StatusDisarming) {
		aborted = true
		s.regs.SetStatus(StatusAborting)
	}

	s.store.mu.Lock()
	s.teardown()
	s.store.mu.Unlock()

	final := StatusIdle
	if aborted {
		final = StatusAborted
	}
	s.regs.SetStatus(final)
	s.events.Record(EvtFinish, 0, uint32(final), 0)
	s.narrate("finished " + final.String())
}

// configure binds every active channel. It returns false, leaving
// AbortRequested set, when arming must not proceed. An abort request is
// sampled between channels.
func (s *Sequencer) configure() bool {
	for i := range s.store.Clocks {
		ch := &s.store.Clocks[i]
		if !ch.Active {
			continue
		}
		if s.abortPending() {
			return false
		}
		if err := s.res.ConfigureClock(ch); err != nil {
			s.events.Record(EvtConfigError, ch.ID, uint32(KindClock), 0)
			s.narrate(err.Error())
			s.regs.SetStatus(StatusAbortRequested)
			return false
		}
		s.events.Record(EvtConfigure, ch.ID, uint32(KindClock), uint32(ch.Unit))
		s.narrate("clock " + itoa(int(ch.ID)) + " on unit " + itoa(int(ch.Unit)))
	}

	if PulseConflictCheck(s.store) {
		s.events.Record(EvtConflict, 0, 0, 0)
		s.narrate("pulse output conflict")
		s.regs.SetStatus(StatusAbortRequested)
		return false
	}

	for i := range s.store.Pulses {
		ch := &s.store.Pulses[i]
		if !ch.Active {
			continue
		}
		if s.abortPending() {
			return false
		}
		if !PulseProgramValidate(ch) {
			s.events.Record(EvtReject, ch.ID, 0, 0)
			s.narrate("pulse " + itoa(int(ch.ID)) + " program invalid")
			s.regs.SetStatus(StatusAbortRequested)
			return false
		}
		if err := s.res.ConfigurePulse(ch); err != nil {
			s.events.Record(EvtConfigError, ch.ID, uint32(KindPulse), 0)
			s.narrate(err.Error())
			s.regs.SetStatus(StatusAbortRequested)
			return false
		}
		s.events.Record(EvtConfigure, ch.ID, uint32(KindPulse), uint32(ch.Unit))
		s.narrate("pulse " + itoa(int(ch.ID)) + " on unit " + itoa(int(ch.Unit)))
	}
	return !s.abortPending()
}

func (s *Sequencer) abortPending() bool {
	if s.regs.Status() == StatusAbortRequested {
		s.events.Record(EvtAbortSeen, 0, 0, 0)
		return true
	}
	return false
}

// stall polls the watched feeders until they finish. It returns true when
// an abort request (or cancellation) ended the wait.
func (s *Sequencer) stall(ctx context.Context) bool {
	for s.res.busy(s.store) {
		if s.abortPending() {
			return true
		}
		if ctx.Err() != nil {
			return true
		}
		time.Sleep(s.poll)
	}
	return s.abortPending()
}

// teardown frees every configured channel without stopping at the first.
func (s *Sequencer) teardown() {
	for i := range s.store.Clocks {
		ch := &s.store.Clocks[i]
		if ch.Configured {
			s.res.FreeClock(ch)
			s.events.Record(EvtTeardown, ch.ID, uint32(KindClock), 0)
		}
	}
	for i := range s.store.Pulses {
		ch := &s.store.Pulses[i]
		if ch.Configured {
			s.res.FreePulse(ch)
			s.events.Record(EvtTeardown, ch.ID, uint32(KindPulse), 0)
		}
	}
}

func (s *Sequencer) narrate(msg string) {
	if s.regs.Debug() == DebugVeryVerbose {
		s.out("[SEQ] " + msg)
	}
}

// dumpConfig prints every active channel and its program.
func (s *Sequencer) dumpConfig() {
	for i := range s.store.Clocks {
		ch := &s.store.Clocks[i]
		if !ch.Active {
			continue
		}
		s.out("[CFG] clock " + itoa(int(ch.ID)) +
			" mode=" + ModeName(ch.Mode) +
			" pin=" + itoa(int(ch.OutputPin)) +
			" div=" + utoa(ch.Divider))
		if _, ok := ch.Mode.(Triggered); ok {
			s.out("[CFG]   trigger pin=" + itoa(int(ch.TriggerPin)) +
				" skips=" + utoa(ch.Trigger[0]) +
				" delay=" + utoa(ch.Trigger[1]) +
				" reps=" + utoa(ch.TriggerReps))
			continue
		}
		for n, p := range ch.Pairs() {
			s.out("[CFG]   " + itoa(n) + ": reps=" + utoa(p[0]) + " delay=" + utoa(p[1]))
		}
	}
	for i := range s.store.Pulses {
		ch := &s.store.Pulses[i]
		if !ch.Active {
			continue
		}
		s.out("[CFG] pulse " + itoa(int(ch.ID)) +
			" source=" + itoa(int(ch.SourcePin)) +
			" div=" + utoa(ch.Divider))
		for n, p := range ch.Pairs() {
			s.out("[CFG]   " + itoa(n) + ": out=" + hex32(p[0]) + " delay=" + utoa(p[1]))
			if p[0] == 0 && p[1] == 0 {
				break
			}
		}
	}
}
