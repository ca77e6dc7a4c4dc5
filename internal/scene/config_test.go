package scene

import (
	"context"
	"errors"
	"math"
	"math/rand"
	"testing"
	"time"

	"github.com/signalsfoundry/threatglobe/internal/surface"
	"github.com/signalsfoundry/threatglobe/timectrl"
)

func TestDefaultConfigValid(t *testing.T) {
	if err := DefaultConfig().Validate(); err != nil {
		t.Fatalf("DefaultConfig().Validate() = %v", err)
	}
}

func TestConfigValidateRejects(t *testing.T) {
	cases := map[string]func(*Config){
		"negative stars":      func(c *Config) { c.Stars = -1 },
		"negative atmosphere": func(c *Config) { c.AtmosphereScale = -1.1 },
		"nan atmosphere":      func(c *Config) { c.AtmosphereScale = math.NaN() },
		"inf atmosphere":      func(c *Config) { c.AtmosphereScale = math.Inf(1) },
		"variance above one":  func(c *Config) { c.Spikes.Variance = 1.5 },
		"negative variance":   func(c *Config) { c.Spikes.Variance = -0.1 },
		"nan variance":        func(c *Config) { c.Spikes.Variance = math.NaN() },
		"spike segments":      func(c *Config) { c.SpikeSegments = -3 },
		"cluster size":        func(c *Config) { c.Spikes.ClusterSize = 0 },
		"globe segments":      func(c *Config) { c.GlobeSegments = 2 },
		"fov":                 func(c *Config) { c.FOV = 180 },
		"damping":             func(c *Config) { c.Damping = 2 },
		"rotation":            func(c *Config) { c.Rotation = "backwards" },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			cfg := DefaultConfig()
			mutate(&cfg)
			if err := cfg.Validate(); !errors.Is(err, ErrInvalidConfig) {
				t.Fatalf("Validate = %v, want ErrInvalidConfig", err)
			}
		})
	}
}

func TestMountWithoutStars(t *testing.T) {
	cfg := testConfig()
	cfg.Stars = 0
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}
	clock := timectrl.NewManual(time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC), 33*time.Millisecond)
	m := New(cfg, WithFrameSource(clock), WithRand(rand.New(rand.NewSource(7))))
	mustMount(t, m, surface.NewMemory(16, 16))

	if st := m.Stats(); st.State != Running {
		t.Fatalf("state = %v, want running", st.State)
	}
	clock.Step()
	if err := m.Unmount(context.Background()); err != nil {
		t.Fatalf("Unmount: %v", err)
	}
	if live := m.Device().Stats().LiveTotal(); live != 0 {
		t.Fatalf("live resources after unmount = %d", live)
	}
}
