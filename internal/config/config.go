// Package config loads threatglobe settings from defaults, an optional YAML
// file and THREATGLOBE_* environment variables, in that order of precedence.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"

	"github.com/signalsfoundry/threatglobe/core"
	"github.com/signalsfoundry/threatglobe/internal/alert"
	"github.com/signalsfoundry/threatglobe/internal/asset"
	"github.com/signalsfoundry/threatglobe/internal/feed"
	"github.com/signalsfoundry/threatglobe/internal/gpu"
	"github.com/signalsfoundry/threatglobe/internal/logging"
	"github.com/signalsfoundry/threatglobe/internal/observability"
	"github.com/signalsfoundry/threatglobe/internal/render"
	"github.com/signalsfoundry/threatglobe/internal/scene"
)

const (
	// EnvPrefix prefixes every environment override.
	EnvPrefix = "THREATGLOBE_"
	// PathEnvVar names the config file when no path is passed explicitly.
	PathEnvVar = "THREATGLOBE_CONFIG"
)

// ErrInvalid wraps every validation failure.
var ErrInvalid = errors.New("config: invalid")

// Feed modes.
const (
	FeedSample = "sample"
	FeedFile   = "file"
	FeedHTTP   = "http"
)

// Config is the full threatglobe configuration.
type Config struct {
	Globe   GlobeConfig                 `koanf:"globe"`
	Spikes  SpikesConfig                `koanf:"spikes"`
	Arcs    ArcsConfig                  `koanf:"arcs"`
	Bloom   render.BloomPass            `koanf:"bloom"`
	Render  RenderConfig                `koanf:"render"`
	Feed    FeedConfig                  `koanf:"feed"`
	Cache   CacheConfig                 `koanf:"cache"`
	Logging LoggingConfig               `koanf:"logging"`
	Metrics MetricsConfig               `koanf:"metrics"`
	Tracing observability.TracingConfig `koanf:"tracing"`
	Alert   alert.Config                `koanf:"alert"`
}

// GlobeConfig describes the globe body.
type GlobeConfig struct {
	Texture         string  `koanf:"texture"`
	TextureMaxWidth int     `koanf:"texture_max_width"`
	Segments        int     `koanf:"segments"`
	Color           string  `koanf:"color"`
	AtmosphereScale float64 `koanf:"atmosphere_scale"`
	Stars           int     `koanf:"stars"`
	Rotation        string  `koanf:"rotation"`
}

// SpikesConfig describes spike clusters and their pulse.
type SpikesConfig struct {
	ClusterSize      int     `koanf:"cluster_size"`
	Spread           float64 `koanf:"spread"`
	MinHeight        float64 `koanf:"min_height"`
	MaxHeight        float64 `koanf:"max_height"`
	Radius           float64 `koanf:"radius"`
	Variance         float64 `koanf:"variance"`
	DefaultIntensity float64 `koanf:"default_intensity"`
	Segments         int     `koanf:"segments"`
	PulseAmplitude   float64 `koanf:"pulse_amplitude"`
	PulseSpeed       float64 `koanf:"pulse_speed"`
}

// ArcsConfig describes source to target arcs.
type ArcsConfig struct {
	Segments  int     `koanf:"segments"`
	Bow       float64 `koanf:"bow"`
	Elevation float64 `koanf:"elevation"`
}

// RenderConfig describes the camera and frame loop.
type RenderConfig struct {
	FPS             int     `koanf:"fps"`
	Width           int     `koanf:"width"`
	Height          int     `koanf:"height"`
	FOV             float64 `koanf:"fov"`
	CameraDistance  float64 `koanf:"camera_distance"`
	MinDistance     float64 `koanf:"min_distance"`
	MaxDistance     float64 `koanf:"max_distance"`
	Damping         float64 `koanf:"damping"`
	AutoRotateSpeed float64 `koanf:"auto_rotate_speed"`
}

// FeedConfig selects where attack events come from.
type FeedConfig struct {
	Mode             string        `koanf:"mode"`
	Samples          int           `koanf:"samples"`
	File             string        `koanf:"file"`
	URL              string        `koanf:"url"`
	PollInterval     time.Duration `koanf:"poll_interval"`
	Timeout          time.Duration `koanf:"timeout"`
	RatePerSecond    float64       `koanf:"rate_per_second"`
	Burst            int           `koanf:"burst"`
	FailureThreshold uint32        `koanf:"failure_threshold"`
	OpenTimeout      time.Duration `koanf:"open_timeout"`
	MaxEvents        int           `koanf:"max_events"`
}

// CacheConfig configures the feed response cache. An empty Dir keeps it in
// memory.
type CacheConfig struct {
	Enabled bool          `koanf:"enabled"`
	Dir     string        `koanf:"dir"`
	TTL     time.Duration `koanf:"ttl"`
}

// LoggingConfig mirrors logging.Config.
type LoggingConfig struct {
	Level     string `koanf:"level"`
	Format    string `koanf:"format"`
	File      string `koanf:"file"`
	AddSource bool   `koanf:"add_source"`
}

// MetricsConfig enables the Prometheus endpoint when Addr is set.
type MetricsConfig struct {
	Addr string `koanf:"addr"`
}

// Default returns the built-in configuration.
func Default() Config {
	sc := scene.DefaultConfig()
	hc := feed.DefaultHTTPConfig()
	return Config{
		Globe: GlobeConfig{
			TextureMaxWidth: asset.DefaultMaxWidth,
			Segments:        sc.GlobeSegments,
			Color:           "#1a3a5c",
			AtmosphereScale: sc.AtmosphereScale,
			Stars:           sc.Stars,
			Rotation:        string(sc.Rotation),
		},
		Spikes: SpikesConfig{
			ClusterSize:      sc.Spikes.ClusterSize,
			Spread:           sc.Spikes.Spread,
			MinHeight:        sc.Spikes.MinHeight,
			MaxHeight:        sc.Spikes.MaxHeight,
			Radius:           sc.Spikes.Radius,
			Variance:         sc.Spikes.Variance,
			DefaultIntensity: sc.Spikes.DefaultIntensity,
			Segments:         sc.SpikeSegments,
			PulseAmplitude:   sc.PulseAmplitude,
			PulseSpeed:       sc.PulseSpeed,
		},
		Arcs: ArcsConfig{
			Segments:  sc.Arcs.Segments,
			Bow:       sc.Arcs.Bow,
			Elevation: sc.Arcs.Elevation,
		},
		Bloom: sc.Bloom,
		Render: RenderConfig{
			FPS:             30,
			Width:           800,
			Height:          600,
			FOV:             sc.FOV,
			CameraDistance:  sc.CameraDistance,
			MinDistance:     sc.MinDistance,
			MaxDistance:     sc.MaxDistance,
			Damping:         sc.Damping,
			AutoRotateSpeed: sc.AutoRotateSpeed,
		},
		Feed: FeedConfig{
			Mode:             FeedSample,
			Samples:          40,
			PollInterval:     time.Minute,
			Timeout:          hc.Timeout,
			RatePerSecond:    hc.RatePerSecond,
			Burst:            hc.Burst,
			FailureThreshold: hc.FailureThreshold,
			OpenTimeout:      hc.OpenTimeout,
			MaxEvents:        500,
		},
		Cache: CacheConfig{
			Enabled: true,
			TTL:     hc.CacheTTL,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			File:   "threatglobe.log",
		},
		Tracing: observability.DefaultTracingConfig(),
		Alert: alert.DefaultConfig(),
	}
}

// Load layers defaults, the YAML file at path (or $THREATGLOBE_CONFIG when
// path is empty; no file is fine) and THREATGLOBE_* variables, then
// validates the result.
func Load(path string) (Config, error) {
	k := koanf.New(".")
	if err := k.Load(structs.Provider(Default(), "koanf"), nil); err != nil {
		return Config{}, fmt.Errorf("load defaults: %w", err)
	}

	if path == "" {
		path = os.Getenv(PathEnvVar)
	}
	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return Config{}, fmt.Errorf("load config file %s: %w", path, err)
		}
	}

	if err := k.Load(env.Provider(EnvPrefix, ".", envKey), nil); err != nil {
		return Config{}, fmt.Errorf("load environment: %w", err)
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// envKey maps THREATGLOBE_SPIKES_CLUSTER_SIZE to spikes.cluster_size: the
// first word is the section, the rest is the key.
func envKey(s string) string {
	s = strings.ToLower(strings.TrimPrefix(s, EnvPrefix))
	if s == "config" {
		return ""
	}
	section, key, ok := strings.Cut(s, "_")
	if !ok {
		return s
	}
	return section + "." + key
}

// Validate reports the first unusable setting.
func (c Config) Validate() error {
	if c.Render.FPS <= 0 {
		return fmt.Errorf("%w: render.fps must be positive, got %d", ErrInvalid, c.Render.FPS)
	}
	if c.Render.Width <= 0 || c.Render.Height <= 0 {
		return fmt.Errorf("%w: render size %dx%d", ErrInvalid, c.Render.Width, c.Render.Height)
	}
	if _, err := ParseColor(c.Globe.Color); err != nil {
		return fmt.Errorf("%w: globe.color: %v", ErrInvalid, err)
	}
	switch c.Feed.Mode {
	case FeedSample:
	case FeedFile:
		if c.Feed.File == "" {
			return fmt.Errorf("%w: feed.file is required in file mode", ErrInvalid)
		}
	case FeedHTTP:
		if c.Feed.URL == "" {
			return fmt.Errorf("%w: feed.url is required in http mode", ErrInvalid)
		}
		if c.Feed.PollInterval <= 0 {
			return fmt.Errorf("%w: feed.poll_interval must be positive", ErrInvalid)
		}
	default:
		return fmt.Errorf("%w: feed.mode %q", ErrInvalid, c.Feed.Mode)
	}
	if c.Feed.Samples < 0 {
		return fmt.Errorf("%w: feed.samples %d", ErrInvalid, c.Feed.Samples)
	}
	if err := c.Tracing.Validate(); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	if err := c.Scene().Validate(); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	return nil
}

// Scene converts the settings into a scene configuration.
func (c Config) Scene() scene.Config {
	color, err := ParseColor(c.Globe.Color)
	if err != nil {
		color = scene.DefaultConfig().GlobeColor
	}
	sc := scene.DefaultConfig()
	sc.Spikes = core.SpikeConfig{
		ClusterSize:      c.Spikes.ClusterSize,
		Spread:           c.Spikes.Spread,
		MinHeight:        c.Spikes.MinHeight,
		MaxHeight:        c.Spikes.MaxHeight,
		Radius:           c.Spikes.Radius,
		Variance:         c.Spikes.Variance,
		DefaultIntensity: c.Spikes.DefaultIntensity,
	}
	// One default intensity drives both the spikes and the arc of an event.
	sc.Arcs = core.ArcConfig{
		Segments:         c.Arcs.Segments,
		Bow:              c.Arcs.Bow,
		Elevation:        c.Arcs.Elevation,
		DefaultIntensity: c.Spikes.DefaultIntensity,
	}
	sc.Bloom = c.Bloom
	sc.GlobeSegments = c.Globe.Segments
	sc.GlobeColor = color
	sc.AtmosphereScale = c.Globe.AtmosphereScale
	sc.SpikeSegments = c.Spikes.Segments
	sc.Stars = c.Globe.Stars
	sc.FOV = c.Render.FOV
	sc.CameraDistance = c.Render.CameraDistance
	sc.MinDistance = c.Render.MinDistance
	sc.MaxDistance = c.Render.MaxDistance
	sc.Damping = c.Render.Damping
	sc.Rotation = scene.RotationMode(c.Globe.Rotation)
	sc.AutoRotateSpeed = c.Render.AutoRotateSpeed
	sc.PulseAmplitude = c.Spikes.PulseAmplitude
	sc.PulseSpeed = c.Spikes.PulseSpeed
	return sc
}

// HTTP returns the REST feed settings.
func (c Config) HTTP() feed.HTTPConfig {
	return feed.HTTPConfig{
		URL:              c.Feed.URL,
		Timeout:          c.Feed.Timeout,
		RatePerSecond:    c.Feed.RatePerSecond,
		Burst:            c.Feed.Burst,
		FailureThreshold: c.Feed.FailureThreshold,
		OpenTimeout:      c.Feed.OpenTimeout,
		CacheTTL:         c.Cache.TTL,
	}
}

// Log returns the logger settings.
func (c Config) Log() logging.Config {
	return logging.Config{
		Level:     c.Logging.Level,
		Format:    c.Logging.Format,
		File:      c.Logging.File,
		AddSource: c.Logging.AddSource,
	}
}

// ParseColor accepts #rrggbb or rrggbb.
func ParseColor(s string) (gpu.Color, error) {
	s = strings.TrimPrefix(strings.TrimSpace(s), "#")
	if len(s) != 6 {
		return gpu.Color{}, fmt.Errorf("colour %q: want rrggbb", s)
	}
	v, err := strconv.ParseUint(s, 16, 32)
	if err != nil {
		return gpu.Color{}, fmt.Errorf("colour %q: %w", s, err)
	}
	return gpu.Hex(uint32(v)), nil
}
