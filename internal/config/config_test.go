package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/signalsfoundry/threatglobe/internal/scene"
)

func TestDefaultsAreValidAndMatchScene(t *testing.T) {
	cfg := Default()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate(Default()) = %v", err)
	}
	if got, want := cfg.Scene(), scene.DefaultConfig(); got != want {
		t.Fatalf("Default().Scene() = %+v, want %+v", got, want)
	}
}

func TestLoadLayersFileAndEnv(t *testing.T) {
	t.Setenv(PathEnvVar, "")
	dir := t.TempDir()
	path := filepath.Join(dir, "threatglobe.yaml")
	yaml := `
spikes:
  cluster_size: 6
render:
  fps: 20
feed:
  mode: http
  url: http://localhost:9000/attacks
bloom:
  strength: 0.8
`
	if err := os.WriteFile(path, []byte(yaml), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	t.Setenv("THREATGLOBE_RENDER_FPS", "60")
	t.Setenv("THREATGLOBE_FEED_POLL_INTERVAL", "5s")
	t.Setenv("THREATGLOBE_GLOBE_ROTATION", "sidereal")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Spikes.ClusterSize != 6 {
		t.Fatalf("cluster size = %d, want 6 from file", cfg.Spikes.ClusterSize)
	}
	if cfg.Render.FPS != 60 {
		t.Fatalf("fps = %d, want 60 from env", cfg.Render.FPS)
	}
	if cfg.Feed.PollInterval != 5*time.Second {
		t.Fatalf("poll interval = %v, want 5s", cfg.Feed.PollInterval)
	}
	if cfg.Bloom.Strength != 0.8 || cfg.Bloom.Threshold != 0.6 {
		t.Fatalf("bloom = %+v, want strength from file and default threshold", cfg.Bloom)
	}
	sc := cfg.Scene()
	if sc.Spikes.ClusterSize != 6 || sc.Rotation != scene.RotateSidereal {
		t.Fatalf("scene config = %+v", sc)
	}
	if hc := cfg.HTTP(); hc.URL != "http://localhost:9000/attacks" || hc.CacheTTL != cfg.Cache.TTL {
		t.Fatalf("http config = %+v", hc)
	}
}

func TestSceneSharesDefaultIntensity(t *testing.T) {
	cfg := Default()
	cfg.Spikes.DefaultIntensity = 0.8
	sc := cfg.Scene()
	if sc.Arcs.DefaultIntensity != 0.8 || sc.Spikes.DefaultIntensity != 0.8 {
		t.Fatalf("default intensity arcs=%v spikes=%v, want 0.8", sc.Arcs.DefaultIntensity, sc.Spikes.DefaultIntensity)
	}
}

func TestLoadWithoutFile(t *testing.T) {
	t.Setenv(PathEnvVar, "")
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Feed.Mode != FeedSample {
		t.Fatalf("feed mode = %q, want sample", cfg.Feed.Mode)
	}
}

func TestValidateRejects(t *testing.T) {
	cases := map[string]func(*Config){
		"fps":          func(c *Config) { c.Render.FPS = 0 },
		"colour":       func(c *Config) { c.Globe.Color = "blue" },
		"file mode":    func(c *Config) { c.Feed.Mode = FeedFile },
		"http mode":    func(c *Config) { c.Feed.Mode = FeedHTTP },
		"mode":         func(c *Config) { c.Feed.Mode = "carrier-pigeon" },
		"cluster size": func(c *Config) { c.Spikes.ClusterSize = 0 },
		"rotation":     func(c *Config) { c.Globe.Rotation = "backwards" },
		"segments":     func(c *Config) { c.Arcs.Segments = 0 },
		"exporter":     func(c *Config) { c.Tracing.Exporter = "zipkin" },
		"stars":        func(c *Config) { c.Globe.Stars = -1 },
		"atmosphere":   func(c *Config) { c.Globe.AtmosphereScale = -1 },
		"variance":     func(c *Config) { c.Spikes.Variance = 1.5 },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			cfg := Default()
			mutate(&cfg)
			if err := cfg.Validate(); !errors.Is(err, ErrInvalid) {
				t.Fatalf("Validate = %v, want ErrInvalid", err)
			}
		})
	}
}

func TestEnvKey(t *testing.T) {
	cases := map[string]string{
		"THREATGLOBE_SPIKES_CLUSTER_SIZE": "spikes.cluster_size",
		"THREATGLOBE_METRICS_ADDR":        "metrics.addr",
		"THREATGLOBE_CONFIG":              "",
	}
	for in, want := range cases {
		if got := envKey(in); got != want {
			t.Fatalf("envKey(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestParseColor(t *testing.T) {
	c, err := ParseColor("#ff0000")
	if err != nil || c.R != 1 || c.G != 0 {
		t.Fatalf("ParseColor = %+v, %v", c, err)
	}
}

func TestExampleConfigMatchesDefaults(t *testing.T) {
	t.Setenv(PathEnvVar, "")
	cfg, err := Load(filepath.Join("..", "..", "configs", "threatglobe.yaml"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if want := Default(); cfg != want {
		t.Fatalf("example config drifted from defaults:\n got %+v\nwant %+v", cfg, want)
	}
}
