// Package config loads freebudsctl configuration from YAML with
// defaults and validation.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"regexp"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration structure.
type Config struct {
	Device  DeviceConfig  `yaml:"device"`
	Driver  DriverConfig  `yaml:"driver"`
	Events  EventsConfig  `yaml:"events"`
	Logging LoggingConfig `yaml:"logging"`
	Trace   TraceConfig   `yaml:"trace"`
}

// DeviceConfig identifies the device to connect to.
type DeviceConfig struct {
	// Address is the Bluetooth MAC address, e.g. "AA:BB:CC:DD:EE:FF".
	Address string `yaml:"address"`

	// DualEarbud enables per-earbud battery decoding. True for TWS
	// variants, false for headset-style devices with a single cell.
	DualEarbud bool `yaml:"dual_earbud"`
}

// DriverConfig tunes the driver session. Intervals and timeouts are in
// seconds.
type DriverConfig struct {
	// RequestTimeout bounds each correlated request.
	RequestTimeout int `yaml:"request_timeout"`

	// PeriodicBatteryUpdate enables background battery polling.
	PeriodicBatteryUpdate bool `yaml:"periodic_battery_update"`

	// BatteryUpdateInterval is the polling interval.
	BatteryUpdateInterval int `yaml:"battery_update_interval"`

	// StopTimeout bounds how long Stop waits for periodic tasks.
	StopTimeout int `yaml:"stop_timeout"`
}

// EventsConfig tunes the consumer event bus.
type EventsConfig struct {
	// QueueLen bounds each subscriber's queue; oldest events are
	// dropped past the bound. 0 means unbounded.
	QueueLen int `yaml:"queue_len"`
}

// LoggingConfig contains operational logging settings.
type LoggingConfig struct {
	// Level is one of debug, info, warn, error.
	Level string `yaml:"level"`
}

// TraceConfig controls protocol event capture.
type TraceConfig struct {
	// File is the CBOR trace output path. Empty disables capture.
	File string `yaml:"file"`

	// Console mirrors protocol events to the operational log at
	// debug level.
	Console bool `yaml:"console"`
}

// macPattern matches a colon-separated Bluetooth MAC address.
var macPattern = regexp.MustCompile(`^([0-9A-Fa-f]{2}:){5}[0-9A-Fa-f]{2}$`)

// DefaultConfig returns a Config with defaults for everything except
// the device address, which has no sensible default.
func DefaultConfig() *Config {
	return &Config{
		Device: DeviceConfig{
			DualEarbud: true,
		},
		Driver: DriverConfig{
			RequestTimeout:        5,
			PeriodicBatteryUpdate: true,
			BatteryUpdateInterval: 30,
			StopTimeout:           5,
		},
		Events: EventsConfig{
			QueueLen: 64,
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// Load reads configuration from a YAML file on top of the defaults and
// validates the result.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}
	return cfg, nil
}

// Validate checks the configuration for consistency.
func (c *Config) Validate() error {
	if c.Device.Address != "" && !macPattern.MatchString(c.Device.Address) {
		return fmt.Errorf("invalid device address %q", c.Device.Address)
	}
	if c.Driver.RequestTimeout <= 0 {
		return fmt.Errorf("request_timeout must be positive, got %d", c.Driver.RequestTimeout)
	}
	if c.Driver.PeriodicBatteryUpdate && c.Driver.BatteryUpdateInterval <= 0 {
		return fmt.Errorf("battery_update_interval must be positive, got %d", c.Driver.BatteryUpdateInterval)
	}
	if c.Driver.StopTimeout <= 0 {
		return fmt.Errorf("stop_timeout must be positive, got %d", c.Driver.StopTimeout)
	}
	if c.Events.QueueLen < 0 {
		return fmt.Errorf("queue_len must not be negative, got %d", c.Events.QueueLen)
	}
	if _, err := ParseLevel(c.Logging.Level); err != nil {
		return err
	}
	return nil
}

// GetRequestTimeout returns the request timeout as a duration.
func (c *Config) GetRequestTimeout() time.Duration {
	return time.Duration(c.Driver.RequestTimeout) * time.Second
}

// GetBatteryUpdateInterval returns the polling interval as a duration.
func (c *Config) GetBatteryUpdateInterval() time.Duration {
	return time.Duration(c.Driver.BatteryUpdateInterval) * time.Second
}

// GetStopTimeout returns the stop bound as a duration.
func (c *Config) GetStopTimeout() time.Duration {
	return time.Duration(c.Driver.StopTimeout) * time.Second
}

// ParseLevel maps a config level name to an slog level.
func ParseLevel(level string) (slog.Level, error) {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug, nil
	case "info", "":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return 0, fmt.Errorf("unknown log level %q", level)
	}
}
