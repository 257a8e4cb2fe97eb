// Package plan describes a run in YAML and compiles it into console
// command lines.
package plan

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Device limits mirrored from the firmware.
const (
	Channels       = 3
	Triggers       = 1
	OutputPins     = 12
	ClockPairsMax  = 8
	PulsePairsMax  = 31
	IterationsMax  = 500000
	TriggerSkipMax = 500
)

// Plan is one complete device configuration.
type Plan struct {
	Name   string  `yaml:"name"`
	Reset  bool    `yaml:"reset"` // send "rst" before anything else
	Debug  *int    `yaml:"debug"`
	Clocks []Clock `yaml:"clocks"`
	Pulses []Pulse `yaml:"pulses"`
}

// Clock configures one clock channel.
type Clock struct {
	ID         int     `yaml:"id"`
	Mode       string  `yaml:"mode"` // freerun (default) or triggered
	Divider    uint32  `yaml:"divider"`
	Resolution *int    `yaml:"resolution"` // divider preset index, instead of divider
	UnitOffset float64 `yaml:"unit_offset"`

	// Program and Frequencies are alternatives.
	Program     []ClockStep     `yaml:"program"`
	Frequencies []FrequencyStep `yaml:"frequencies"`

	Trigger *Trigger `yaml:"trigger"`
}

// ClockStep repeats a square wave Reps times, holding each level for Delay.
// Clock delays are seconds divided by the unit offset.
type ClockStep struct {
	Reps  uint32  `yaml:"reps"`
	Delay float64 `yaml:"delay"`
}

// FrequencyStep repeats Reps cycles at Hz (scaled by the unit offset).
type FrequencyStep struct {
	Reps uint32  `yaml:"reps"`
	Hz   float64 `yaml:"hz"`
}

// Trigger configures a triggered clock.
type Trigger struct {
	Input int     `yaml:"input"`
	Skips uint32  `yaml:"skips"`
	Delay float64 `yaml:"delay"` // high time of the emitted pulse
	Reps  uint32  `yaml:"reps"`
}

// Pulse configures one pulse channel.
type Pulse struct {
	ID         int     `yaml:"id"`
	Source     int     `yaml:"source"` // clock channel whose edges start the program
	Divider    uint32  `yaml:"divider"`
	Resolution *int    `yaml:"resolution"`
	UnitOffset float64 `yaml:"unit_offset"`

	// Program and Edges are alternatives. Edges maps an output pin to its
	// alternating rise/fall times.
	Program []PulseStep       `yaml:"program"`
	Edges   map[int][]float64 `yaml:"edges"`
}

// PulseStep drives Output onto the pins, then waits Delay. Pulse delays are
// nanoseconds times the unit offset.
type PulseStep struct {
	Output uint32  `yaml:"output"`
	Delay  float64 `yaml:"delay"`
}

// Parse decodes and validates a YAML plan.
func Parse(data []byte) (*Plan, error) {
	var p Plan
	if err := yaml.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("failed to parse plan: %w", err)
	}
	if err := p.Validate(); err != nil {
		return nil, err
	}
	return &p, nil
}

// Load reads a plan file.
func Load(filename string) (*Plan, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to read plan: %w", err)
	}
	p, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", filename, err)
	}
	return p, nil
}

// Validate checks everything the host can check without the device.
func (p *Plan) Validate() error {
	if p.Debug != nil && (*p.Debug < 0 || *p.Debug > 2) {
		return fmt.Errorf("debug must be 0, 1 or 2, got %d", *p.Debug)
	}
	seen := map[int]bool{}
	for i := range p.Clocks {
		c := &p.Clocks[i]
		if err := c.validate(); err != nil {
			return fmt.Errorf("clock %d: %w", c.ID, err)
		}
		if seen[c.ID] {
			return fmt.Errorf("clock %d: listed twice", c.ID)
		}
		seen[c.ID] = true
	}
	seen = map[int]bool{}
	for i := range p.Pulses {
		ps := &p.Pulses[i]
		if err := ps.validate(); err != nil {
			return fmt.Errorf("pulse %d: %w", ps.ID, err)
		}
		if seen[ps.ID] {
			return fmt.Errorf("pulse %d: listed twice", ps.ID)
		}
		seen[ps.ID] = true
	}
	return nil
}

func validateCommon(id int, divider uint32, resolution *int, unitOffset float64) error {
	if id < 0 || id >= Channels {
		return fmt.Errorf("id out of range 0..%d", Channels-1)
	}
	if divider != 0 && resolution != nil {
		return fmt.Errorf("set divider or resolution, not both")
	}
	if resolution != nil && *resolution < 0 {
		return fmt.Errorf("resolution must not be negative")
	}
	if unitOffset < 0 {
		return fmt.Errorf("unit_offset must be positive")
	}
	return nil
}

func (c *Clock) triggered() bool { return c.Mode == "triggered" }

func (c *Clock) validate() error {
	if err := validateCommon(c.ID, c.Divider, c.Resolution, c.UnitOffset); err != nil {
		return err
	}
	switch c.Mode {
	case "", "freerun":
		if len(c.Program) == 0 && len(c.Frequencies) == 0 {
			return fmt.Errorf("freerun clock needs a program or frequencies")
		}
	case "triggered":
		if c.Trigger == nil {
			return fmt.Errorf("triggered clock needs a trigger")
		}
		if c.Trigger.Input < 0 || c.Trigger.Input >= Triggers {
			return fmt.Errorf("trigger input out of range")
		}
		if c.Trigger.Skips > TriggerSkipMax {
			return fmt.Errorf("trigger skips above %d", TriggerSkipMax)
		}
		if c.Trigger.Reps < 1 || c.Trigger.Reps > IterationsMax {
			return fmt.Errorf("trigger reps out of range 1..%d", IterationsMax)
		}
	default:
		return fmt.Errorf("unknown mode %q", c.Mode)
	}
	if len(c.Program) > 0 && len(c.Frequencies) > 0 {
		return fmt.Errorf("set program or frequencies, not both")
	}
	if len(c.Program) > ClockPairsMax || len(c.Frequencies) > ClockPairsMax {
		return fmt.Errorf("more than %d steps", ClockPairsMax)
	}
	for _, f := range c.Frequencies {
		if f.Hz <= 0 {
			return fmt.Errorf("frequency must be positive")
		}
	}
	return nil
}

func (ps *Pulse) validate() error {
	if err := validateCommon(ps.ID, ps.Divider, ps.Resolution, ps.UnitOffset); err != nil {
		return err
	}
	if ps.Source < 0 || ps.Source >= Channels {
		return fmt.Errorf("source clock out of range 0..%d", Channels-1)
	}
	if len(ps.Program) > 0 && len(ps.Edges) > 0 {
		return fmt.Errorf("set program or edges, not both")
	}
	if len(ps.Program) == 0 && len(ps.Edges) == 0 {
		return fmt.Errorf("needs a program or edges")
	}
	if len(ps.Program) > PulsePairsMax {
		return fmt.Errorf("more than %d steps", PulsePairsMax)
	}
	for _, s := range ps.Program {
		if s.Output>>OutputPins != 0 {
			return fmt.Errorf("output 0x%x drives pins past %d", s.Output, OutputPins-1)
		}
	}
	return nil
}
