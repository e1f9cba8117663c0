package machine

import (
	"encoding/json"
	"os"
	"time"

	"github.com/gwillem/motionctl/pkg/axis"
)

const DefaultConfigFile = "motionctl.json"

// Driver selects the backend for an axis.
type Driver string

const (
	// DriverSim is an in-memory axis for tests and offline bring-up.
	DriverSim Driver = "sim"
	// DriverFeetech is a linear stage on a Feetech servo bus.
	DriverFeetech Driver = "feetech"
	// DriverSerial is the rotary stepper's line protocol over serial.
	DriverSerial Driver = "serial"
)

// AxisConfig holds connection settings for a single axis.
type AxisConfig struct {
	Kind        axis.Kind `json:"kind"`
	Driver      Driver    `json:"driver"`
	Port        string    `json:"port,omitempty"`
	BaudRate    int       `json:"baud_rate,omitempty"`
	ServoID     int       `json:"servo_id,omitempty"`
	CountsPerMm float64   `json:"counts_per_mm,omitempty"`
	RampRate    float64   `json:"ramp_rate,omitempty"` // rotary, steps/s^2
}

// Config holds the machine configuration.
type Config struct {
	Axes           map[string]AxisConfig `json:"axes"`
	PollIntervalMs int                   `json:"poll_interval_ms,omitempty"`
}

// PollInterval returns the configured poll period, or the default.
func (c *Config) PollInterval() time.Duration {
	if c.PollIntervalMs <= 0 {
		return DefaultPollInterval
	}
	return time.Duration(c.PollIntervalMs) * time.Millisecond
}

// LoadConfig loads configuration from the default config file.
func LoadConfig() (*Config, error) {
	return LoadConfigFrom(DefaultConfigFile)
}

// LoadConfigFrom loads configuration from a specific file.
func LoadConfigFrom(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Save saves configuration to the default config file.
func (c *Config) Save() error {
	return c.SaveTo(DefaultConfigFile)
}

// SaveTo saves configuration to a specific file.
func (c *Config) SaveTo(path string) error {
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

// ConfigExists returns true if the default config file exists.
func ConfigExists() bool {
	_, err := os.Stat(DefaultConfigFile)
	return err == nil
}
