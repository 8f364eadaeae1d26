package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Config is the top-level gateway configuration: where frames come from,
// how big the ingest ring is, and what to do with parsed frames.
type Config struct {
	Link      LinkConfig      `yaml:"link"`
	Ring      RingConfig      `yaml:"ring"`
	Indicator IndicatorConfig `yaml:"indicator"`
	Record    RecordConfig    `yaml:"record"`
	Replay    ReplayConfig    `yaml:"replay"`
}

// LinkConfig describes the serial device the gateway reads frames from.
type LinkConfig struct {
	Device   string `yaml:"device"`
	BaudRate int    `yaml:"baud_rate"`
}

// RingConfig sizes the ingest ring buffer sitting between the link and the
// frame parser.
type RingConfig struct {
	CapacityBytes int `yaml:"capacity_bytes"`
}

// IndicatorConfig names the GPIO line set high on each successfully parsed
// frame. The indicator is driven only when Enable is true and Line is
// positive (Line defaults to 0, disabled). On hosts other than Linux on
// ARM the GPIO backend is a stub, and opening an enabled indicator fails.
type IndicatorConfig struct {
	Enable bool   `yaml:"enable"`
	Chip   string `yaml:"chip"`
	Line   int    `yaml:"line"`
}

// RecordConfig captures every frame the gateway parses off the link to a
// text log for later replay.
type RecordConfig struct {
	Enable bool   `yaml:"enable"`
	Path   string `yaml:"path"`
}

// ReplayConfig substitutes a previously recorded frame log for the live
// serial link.
type ReplayConfig struct {
	Enable bool    `yaml:"enable"`
	Path   string  `yaml:"path"`
	Speed  float64 `yaml:"speed"`
	Loop   bool    `yaml:"loop"`
}

const (
	defaultBaudRate      = 115200
	defaultRingCapacity  = 4096
	defaultIndicatorLine = 0
)

// Load reads and validates a gateway configuration file, filling in
// defaults for anything the file leaves unset.
func Load(path string) (Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return Config{}, err
	}

	var cfg Config
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return Config{}, err
	}

	if cfg.Replay.Enable {
		if cfg.Replay.Path == "" {
			return Config{}, fmt.Errorf("replay.path is required when replay.enable is true")
		}
		if cfg.Replay.Speed == 0 {
			cfg.Replay.Speed = 1
		}
		if cfg.Replay.Speed < 0 {
			return Config{}, fmt.Errorf("replay.speed must be > 0")
		}
	} else if cfg.Link.Device == "" {
		return Config{}, fmt.Errorf("link.device is required unless replay.enable is true")
	}

	if cfg.Link.BaudRate <= 0 {
		cfg.Link.BaudRate = defaultBaudRate
	}

	if cfg.Ring.CapacityBytes <= 0 {
		cfg.Ring.CapacityBytes = defaultRingCapacity
	}

	if cfg.Indicator.Enable && cfg.Indicator.Chip == "" {
		return Config{}, fmt.Errorf("indicator.chip is required when indicator.enable is true")
	}

	if cfg.Record.Enable {
		if cfg.Replay.Enable {
			return Config{}, fmt.Errorf("record and replay cannot both be enabled")
		}
		if cfg.Record.Path == "" {
			return Config{}, fmt.Errorf("record.path is required when record.enable is true")
		}
	}

	return cfg, nil
}
