package scene

import (
	"errors"
	"fmt"
	"math"

	"github.com/signalsfoundry/threatglobe/core"
	"github.com/signalsfoundry/threatglobe/internal/gpu"
	"github.com/signalsfoundry/threatglobe/internal/render"
)

// RotationMode selects how the globe turns when nobody drags it.
type RotationMode string

const (
	// RotateAuto orbits the camera at AutoRotateSpeed.
	RotateAuto RotationMode = "auto"
	// RotateSidereal turns the globe to the current Greenwich sidereal angle.
	RotateSidereal RotationMode = "sidereal"
	// RotateNone keeps the globe still.
	RotateNone RotationMode = "none"
)

// Config holds every tunable of a scene.
type Config struct {
	Spikes core.SpikeConfig
	Arcs   core.ArcConfig
	Bloom  render.BloomPass

	GlobeSegments   int
	GlobeColor      gpu.Color // shown until the texture arrives, or forever if it fails
	AtmosphereScale float64
	AtmosphereColor gpu.Color
	SpikeSegments   int
	Stars           int

	FOV             float64
	CameraDistance  float64
	MinDistance     float64
	MaxDistance     float64
	Damping         float64
	Rotation        RotationMode
	AutoRotateSpeed float64 // radians per second

	PulseAmplitude float64
	PulseSpeed     float64 // radians per second
}

// DefaultConfig returns the stock scene parameters.
func DefaultConfig() Config {
	return Config{
		Spikes: core.DefaultSpikeConfig(),
		Arcs:   core.DefaultArcConfig(),
		Bloom:  render.DefaultBloom(),

		GlobeSegments:   48,
		GlobeColor:      gpu.Hex(0x1a3a5c),
		AtmosphereScale: 1.12,
		AtmosphereColor: gpu.Color{R: 0.3, G: 0.6, B: 1.0},
		SpikeSegments:   8,
		Stars:           1200,

		FOV:             45,
		CameraDistance:  300,
		MinDistance:     150,
		MaxDistance:     600,
		Damping:         0.08,
		Rotation:        RotateAuto,
		AutoRotateSpeed: 0.15,

		PulseAmplitude: 0.15,
		PulseSpeed:     3,
	}
}

// ErrInvalidConfig wraps every Validate failure.
var ErrInvalidConfig = errors.New("scene: invalid config")

// Validate reports the first unusable value.
func (c Config) Validate() error {
	switch {
	case c.Spikes.ClusterSize <= 0:
		return fmt.Errorf("%w: spike cluster size %d", ErrInvalidConfig, c.Spikes.ClusterSize)
	case c.Spikes.MinHeight <= 0 || c.Spikes.MaxHeight < c.Spikes.MinHeight:
		return fmt.Errorf("%w: spike heights %v..%v", ErrInvalidConfig, c.Spikes.MinHeight, c.Spikes.MaxHeight)
	case !(c.Spikes.Variance >= 0 && c.Spikes.Variance <= 1):
		// Above 1 the low end of the jitter flips cones inside the globe.
		return fmt.Errorf("%w: spike variance %v", ErrInvalidConfig, c.Spikes.Variance)
	case c.SpikeSegments < 0:
		return fmt.Errorf("%w: spike segments %d", ErrInvalidConfig, c.SpikeSegments)
	case c.Arcs.Segments <= 0:
		return fmt.Errorf("%w: arc segments %d", ErrInvalidConfig, c.Arcs.Segments)
	case c.GlobeSegments < 3:
		return fmt.Errorf("%w: globe segments %d", ErrInvalidConfig, c.GlobeSegments)
	case c.AtmosphereScale < 0 || math.IsNaN(c.AtmosphereScale) || math.IsInf(c.AtmosphereScale, 0):
		return fmt.Errorf("%w: atmosphere scale %v", ErrInvalidConfig, c.AtmosphereScale)
	case c.Stars < 0:
		return fmt.Errorf("%w: star count %d", ErrInvalidConfig, c.Stars)
	case c.FOV <= 0 || c.FOV >= 180:
		return fmt.Errorf("%w: fov %v", ErrInvalidConfig, c.FOV)
	case c.MinDistance <= core.GlobeRadius || c.MaxDistance < c.MinDistance:
		return fmt.Errorf("%w: camera distance bounds %v..%v", ErrInvalidConfig, c.MinDistance, c.MaxDistance)
	case c.Damping < 0 || c.Damping > 1:
		return fmt.Errorf("%w: damping %v", ErrInvalidConfig, c.Damping)
	}
	switch c.Rotation {
	case RotateAuto, RotateSidereal, RotateNone, "":
	default:
		return fmt.Errorf("%w: rotation mode %q", ErrInvalidConfig, c.Rotation)
	}
	return nil
}
