package machine

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/gwillem/motionctl/pkg/axis"
)

func TestConfigRoundTrip(t *testing.T) {
	file := filepath.Join(t.TempDir(), "motionctl.json")

	cfg := &Config{
		Axes: map[string]AxisConfig{
			"X": {
				Kind:        axis.Linear,
				Driver:      DriverFeetech,
				Port:        "/dev/ttyACM0",
				ServoID:     1,
				CountsPerMm: 2048,
			},
			"Rotation": {
				Kind:     axis.Rotary,
				Driver:   DriverSerial,
				Port:     "/dev/ttyUSB0",
				BaudRate: 115200,
				RampRate: 500,
			},
		},
		PollIntervalMs: 100,
	}
	if err := cfg.SaveTo(file); err != nil {
		t.Fatalf("SaveTo: %v", err)
	}

	loaded, err := LoadConfigFrom(file)
	if err != nil {
		t.Fatalf("LoadConfigFrom: %v", err)
	}
	if len(loaded.Axes) != 2 {
		t.Fatalf("loaded %d axes, want 2", len(loaded.Axes))
	}
	if got := loaded.Axes["X"]; got != cfg.Axes["X"] {
		t.Errorf("X axis = %+v, want %+v", got, cfg.Axes["X"])
	}
	if loaded.PollInterval() != 100*time.Millisecond {
		t.Errorf("PollInterval = %v, want 100ms", loaded.PollInterval())
	}
}

func TestConfigPollIntervalDefault(t *testing.T) {
	cfg := &Config{}
	if cfg.PollInterval() != DefaultPollInterval {
		t.Errorf("PollInterval = %v, want default", cfg.PollInterval())
	}
}

func TestLoadConfigFrom_Missing(t *testing.T) {
	if _, err := LoadConfigFrom(filepath.Join(t.TempDir(), "nope.json")); err == nil {
		t.Error("expected error for missing file")
	}
}
