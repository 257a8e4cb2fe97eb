package core

import "encoding/json"

// BoardConfig describes the pin routing and tunables of a board. Everything
// here is data; the engine never hard-codes a pin number.
type BoardConfig struct {
	// ClockPins are the internal clock outputs, one per clock channel.
	// Pulse channels pick their source edge from this set.
	ClockPins [ClocksMax]uint8 `json:"clock_pins"`

	// TriggerPins are the external trigger inputs.
	TriggerPins [TriggersMax]uint8 `json:"trigger_pins"`

	// OutputBase and OutputCount describe the pulse output bank.
	OutputBase  uint8 `json:"output_base"`
	OutputCount uint8 `json:"output_count"`

	// DividerPresets maps resolution indices (0 = finest) to dividers.
	DividerPresets []uint32 `json:"divider_presets"`

	// PollMicros is the stall-loop poll period.
	PollMicros uint32 `json:"poll_micros"`

	// StatusLEDPin drives the ws2812 status indicator; negative disables it.
	StatusLEDPin int `json:"status_led_pin"`
}

// DefaultBoardConfig returns the routing of the reference board.
func DefaultBoardConfig() *BoardConfig {
	return &BoardConfig{
		ClockPins:      [ClocksMax]uint8{16, 17, 18},
		TriggerPins:    [TriggersMax]uint8{13},
		OutputBase:     OutputPinBase,
		OutputCount:    OutputPinCount,
		DividerPresets: []uint32{1, 25, 250, 2500, 25000},
		PollMicros:     100,
		StatusLEDPin:   -1,
	}
}

// LoadBoardConfig parses a JSON board description and fills missing values
// from DefaultBoardConfig.
func LoadBoardConfig(jsonData []byte) (*BoardConfig, error) {
	cfg := BoardConfig{StatusLEDPin: -1}
	if err := json.Unmarshal(jsonData, &cfg); err != nil {
		return nil, err
	}
	applyDefaults(&cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func applyDefaults(cfg *BoardConfig) {
	def := DefaultBoardConfig()

	if cfg.ClockPins == [ClocksMax]uint8{} {
		cfg.ClockPins = def.ClockPins
	}
	if cfg.TriggerPins == [TriggersMax]uint8{} {
		cfg.TriggerPins = def.TriggerPins
	}
	if cfg.OutputCount == 0 {
		cfg.OutputBase = def.OutputBase
		cfg.OutputCount = def.OutputCount
	}
	if len(cfg.DividerPresets) == 0 {
		cfg.DividerPresets = def.DividerPresets
	}
	if cfg.PollMicros == 0 {
		cfg.PollMicros = def.PollMicros
	}
}

// Validate rejects routings the engine cannot drive.
func (cfg *BoardConfig) Validate() error {
	if cfg.OutputCount > OutputPinCount {
		return fail(OutOfRange, "board", "output_count above "+itoa(OutputPinCount))
	}
	if int(cfg.OutputBase)+int(cfg.OutputCount) > 30 {
		return fail(OutOfRange, "board", "output bank past gpio29")
	}
	for _, pin := range cfg.TriggerPins {
		if cfg.IsClockPin(pin) {
			return fail(OutOfRange, "board", "trigger pin "+itoa(int(pin))+" is a clock pin")
		}
	}
	for pin := cfg.OutputBase; pin < cfg.OutputBase+cfg.OutputCount; pin++ {
		if cfg.IsClockPin(pin) {
			return fail(OutOfRange, "board", "output bank overlaps clock pin "+itoa(int(pin)))
		}
	}
	for _, div := range cfg.DividerPresets {
		if div == 0 || div > ClockDividerMax {
			return fail(OutOfRange, "board", "divider preset "+utoa(div))
		}
	}
	return nil
}

// IsClockPin reports whether pin is one of the internal clock outputs.
func (cfg *BoardConfig) IsClockPin(pin uint8) bool {
	for _, p := range cfg.ClockPins {
		if p == pin {
			return true
		}
	}
	return false
}
