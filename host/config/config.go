// Package config holds the host tool's YAML configuration.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents the host configuration.
type Config struct {
	Serial SerialConfig `yaml:"serial"`
	Run    RunConfig    `yaml:"run"`
}

// SerialConfig contains serial port configuration.
type SerialConfig struct {
	Port         string        `yaml:"port"` // empty = first likely device
	Baud         int           `yaml:"baud"`
	ReadTimeout  time.Duration `yaml:"read_timeout"`
	ReplyTimeout time.Duration `yaml:"reply_timeout"`
}

// RunConfig contains defaults for loading and firing plans.
type RunConfig struct {
	Plan         string        `yaml:"plan"`          // plan loaded by "load" without an argument
	PollInterval time.Duration `yaml:"poll_interval"` // status poll while waiting for a run
	WaitLimit    time.Duration `yaml:"wait_limit"`    // give up waiting after this long
	Debug        int           `yaml:"debug"`         // firmware debug level set on connect
}

// Default returns a default configuration with sensible values.
func Default() *Config {
	return &Config{
		Serial: SerialConfig{
			Port:         "",
			Baud:         115200,
			ReadTimeout:  100 * time.Millisecond,
			ReplyTimeout: 2 * time.Second,
		},
		Run: RunConfig{
			Plan:         "plan.yaml",
			PollInterval: 100 * time.Millisecond,
			WaitLimit:    time.Minute,
		},
	}
}

// Load loads configuration from a YAML file. If the file doesn't exist or
// fields are missing, it uses default values.
func Load(filename string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(filename)
	if err != nil {
		if os.IsNotExist(err) {
			// File doesn't exist, return defaults
			return cfg, nil
		}
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	cfg.ensureDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Save saves the configuration to a YAML file.
func (c *Config) Save(filename string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(filename, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// Validate rejects values the tool cannot use.
func (c *Config) Validate() error {
	if c.Run.Debug < 0 || c.Run.Debug > 2 {
		return fmt.Errorf("run.debug must be 0, 1 or 2, got %d", c.Run.Debug)
	}
	if c.Serial.Baud < 0 {
		return fmt.Errorf("serial.baud must be positive, got %d", c.Serial.Baud)
	}
	return nil
}

// ensureDefaults ensures that all required fields have default values if missing.
func (c *Config) ensureDefaults() {
	def := Default()

	if c.Serial.Baud == 0 {
		c.Serial.Baud = def.Serial.Baud
	}
	if c.Serial.ReadTimeout == 0 {
		c.Serial.ReadTimeout = def.Serial.ReadTimeout
	}
	if c.Serial.ReplyTimeout == 0 {
		c.Serial.ReplyTimeout = def.Serial.ReplyTimeout
	}

	if c.Run.Plan == "" {
		c.Run.Plan = def.Run.Plan
	}
	if c.Run.PollInterval == 0 {
		c.Run.PollInterval = def.Run.PollInterval
	}
	if c.Run.WaitLimit == 0 {
		c.Run.WaitLimit = def.Run.WaitLimit
	}
}
