package plan

import (
	"fmt"
	"strconv"
	"strings"
)

// Commander sends one console line and returns its reply.
type Commander interface {
	Command(line string) (string, error)
}

// Compile returns the command lines that configure the device for p. Unit
// offsets and dividers are sent before programs, since the firmware
// converts program delays when they are loaded.
func (p *Plan) Compile() ([]string, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	var lines []string
	add := func(parts ...string) { lines = append(lines, strings.Join(parts, " ")) }

	if p.Reset {
		add("rst")
	}
	if p.Debug != nil {
		add("dbg", strconv.Itoa(*p.Debug))
	}

	for i := range p.Clocks {
		c := &p.Clocks[i]
		id := strconv.Itoa(c.ID)
		add("crst", id)
		if c.triggered() {
			add("ctyp", id, "triggered")
		} else {
			add("ctyp", id, "freerun")
		}
		timing(add, "c", id, c.Divider, c.Resolution, c.UnitOffset)

		switch {
		case len(c.Program) > 0:
			args := []string{"cldi", id}
			for _, s := range c.Program {
				args = append(args, fmtUint(s.Reps), fmtFloat(s.Delay))
			}
			add(args...)
		case len(c.Frequencies) > 0:
			args := []string{"cfrq", id}
			for _, f := range c.Frequencies {
				args = append(args, fmtUint(f.Reps), fmtFloat(f.Hz))
			}
			add(args...)
		}
		if c.triggered() {
			tr := c.Trigger
			add("tset", id, strconv.Itoa(tr.Input))
			add("tldi", id, fmtUint(tr.Skips), fmtFloat(tr.Delay), fmtUint(tr.Reps))
		}
		add("cact", id, "1")
	}

	for i := range p.Pulses {
		ps := &p.Pulses[i]
		id := strconv.Itoa(ps.ID)
		steps := ps.Program
		if len(ps.Edges) > 0 {
			var err error
			if steps, err = CompileEdges(ps.Edges); err != nil {
				return nil, fmt.Errorf("pulse %d: %w", ps.ID, err)
			}
			if len(steps) == 0 {
				return nil, fmt.Errorf("pulse %d: edges produce no steps", ps.ID)
			}
		}

		add("prst", id)
		add("pset", id, strconv.Itoa(ps.Source))
		timing(add, "p", id, ps.Divider, ps.Resolution, ps.UnitOffset)
		args := []string{"pldi", id}
		for _, s := range steps {
			args = append(args, "0x"+strconv.FormatUint(uint64(s.Output), 16), fmtFloat(s.Delay))
		}
		add(args...)
		add("pact", id, "1")
	}
	return lines, nil
}

// timing emits the divider (or preset) and unit offset lines for a channel.
func timing(add func(...string), prefix, id string, divider uint32, resolution *int, unitOffset float64) {
	switch {
	case resolution != nil:
		add(prefix+"res", id, strconv.Itoa(*resolution))
	case divider != 0:
		add(prefix+"div", id, fmtUint(divider))
	}
	if unitOffset != 0 {
		add(prefix+"uni", id, fmtFloat(unitOffset))
	}
}

// Apply compiles p and sends it, stopping at the first failing line.
func (p *Plan) Apply(dev Commander) error {
	lines, err := p.Compile()
	if err != nil {
		return err
	}
	for i, line := range lines {
		if _, err := dev.Command(line); err != nil {
			return fmt.Errorf("plan line %d %q: %w", i+1, line, err)
		}
	}
	return nil
}

func fmtUint(v uint32) string { return strconv.FormatUint(uint64(v), 10) }

func fmtFloat(v float64) string { return strconv.FormatFloat(v, 'g', -1, 64) }
