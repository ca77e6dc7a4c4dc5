package core

import (
	"math"
	"math/rand"

	"github.com/signalsfoundry/threatglobe/model"
)

// SpikeConfig controls how attack sources are turned into spike clusters.
type SpikeConfig struct {
	// ClusterSize is the number of spikes generated per event.
	ClusterSize int
	// Spread is the maximum jitter, in degrees, applied to each spike's
	// latitude and longitude around the event source.
	Spread float64
	// MinHeight and MaxHeight bound the pre-variance spike height.
	MinHeight float64
	MaxHeight float64
	// Radius is the base radius of each spike cone.
	Radius float64
	// Variance is the relative random height variation (0.2 = ±20%).
	Variance float64
	// DefaultIntensity is used for events without an intensity.
	DefaultIntensity float64
}

// DefaultSpikeConfig returns the stock spike parameters.
func DefaultSpikeConfig() SpikeConfig {
	return SpikeConfig{
		ClusterSize:      4,
		Spread:           2.0,
		MinHeight:        4,
		MaxHeight:        30,
		Radius:           0.8,
		Variance:         0.2,
		DefaultIntensity: model.DefaultIntensity,
	}
}

// ArcConfig controls how source/target pairs are turned into arcs.
type ArcConfig struct {
	// Segments is the number of line segments each arc is sampled into.
	Segments int
	// Bow is the outward offset of the control point as a fraction of the
	// source-target distance.
	Bow float64
	// Elevation lifts both endpoints above the globe surface so the arc
	// does not z-fight with it.
	Elevation float64
	// DefaultIntensity stands in for a missing event intensity. Keep it equal
	// to SpikeConfig.DefaultIntensity so both halves of an event agree.
	DefaultIntensity float64
}

// DefaultArcConfig returns the stock arc parameters.
func DefaultArcConfig() ArcConfig {
	return ArcConfig{
		Segments:         50,
		Bow:              0.4,
		Elevation:        0,
		DefaultIntensity: model.DefaultIntensity,
	}
}

// Spike is one cone rising from the globe surface.
type Spike struct {
	// Position is the centre of the spike base on the globe surface.
	Position Vec3
	// Normal is the outward unit surface normal; the spike's long axis.
	Normal    Vec3
	Height    float64
	Radius    float64
	Intensity float64
	// Phase offsets the per-frame pulse so clustered spikes do not beat in
	// unison.
	Phase float64
	// EventIndex is the index of the originating event in the input slice.
	EventIndex int
}

// Tip returns the apex of the spike.
func (s Spike) Tip() Vec3 {
	return s.Position.Add(s.Normal.Scale(s.Height))
}

// Arc is a quadratic Bézier curve from an attack source to its target,
// sampled into a polyline.
type Arc struct {
	Source, Control, Target Vec3
	// Points holds Segments+1 samples, Points[0] == Source and
	// Points[len-1] == Target.
	Points     []Vec3
	Intensity  float64
	EventIndex int
}

// BuildSpikes returns cfg.ClusterSize spikes for every event with source
// coordinates. Events without a source are skipped. rng supplies jitter,
// height variance and pulse phase; callers pass a seeded source for
// reproducible output.
func BuildSpikes(events []model.AttackEvent, cfg SpikeConfig, rng *rand.Rand) []Spike {
	if cfg.ClusterSize <= 0 {
		return nil
	}
	spikes := make([]Spike, 0, len(events)*cfg.ClusterSize)
	for i, ev := range events {
		if !ev.HasSource() {
			continue
		}
		lat, lng := ev.Source()
		intensity := ev.IntensityOr(cfg.DefaultIntensity)
		base := SpikeBaseHeight(intensity, cfg)

		for j := 0; j < cfg.ClusterSize; j++ {
			jLat := lat + (rng.Float64()-0.5)*2*cfg.Spread
			jLng := lng + (rng.Float64()-0.5)*2*cfg.Spread
			variance := 1 + (rng.Float64()*2-1)*cfg.Variance

			pos := Project(jLat, jLng, GlobeRadius, 0)
			spikes = append(spikes, Spike{
				Position:   pos,
				Normal:     pos.Normalize(),
				Height:     base * variance,
				Radius:     cfg.Radius,
				Intensity:  intensity,
				Phase:      rng.Float64() * 2 * math.Pi,
				EventIndex: i,
			})
		}
	}
	return spikes
}

// SpikeBaseHeight maps an intensity to a spike height before random
// variance: proportional to intensity, floored at MinHeight so weak attacks
// stay visible, capped at MaxHeight.
func SpikeBaseHeight(intensity float64, cfg SpikeConfig) float64 {
	h := intensity * cfg.MaxHeight
	if h < cfg.MinHeight {
		h = cfg.MinHeight
	}
	if h > cfg.MaxHeight {
		h = cfg.MaxHeight
	}
	return h
}

// BuildArcs returns one arc per event that has both source and target
// coordinates. Everything else contributes nothing.
func BuildArcs(events []model.AttackEvent, cfg ArcConfig) []Arc {
	if cfg.Segments <= 0 {
		return nil
	}
	arcs := make([]Arc, 0, len(events))
	for i, ev := range events {
		if !ev.HasSource() || !ev.HasTarget() {
			continue
		}
		sLat, sLng := ev.Source()
		tLat, tLng := ev.Target()
		src := Project(sLat, sLng, GlobeRadius, cfg.Elevation)
		dst := Project(tLat, tLng, GlobeRadius, cfg.Elevation)

		ctrl := ArcControlPoint(src, dst, cfg.Bow)
		arcs = append(arcs, Arc{
			Source:     src,
			Control:    ctrl,
			Target:     dst,
			Points:     SampleQuadratic(src, ctrl, dst, cfg.Segments),
			Intensity:  ev.IntensityOr(cfg.DefaultIntensity),
			EventIndex: i,
		})
	}
	return arcs
}

// ArcControlPoint returns the Bézier control point for an arc from src to
// dst: the chord midpoint pushed outward by bow times the chord length.
// For antipodal endpoints the midpoint is the origin and has no outward
// direction, so the arc bows perpendicular to src instead.
func ArcControlPoint(src, dst Vec3, bow float64) Vec3 {
	mid := src.Lerp(dst, 0.5)
	dir := mid.Normalize()
	if mid.Norm() < 1e-9*math.Max(1, src.Norm()) {
		dir = anyPerpendicular(src)
	}
	return mid.Add(dir.Scale(bow * src.DistanceTo(dst)))
}

// SampleQuadratic samples the quadratic Bézier (p0, p1, p2) at segments+1
// evenly spaced parameter values, endpoints included.
func SampleQuadratic(p0, p1, p2 Vec3, segments int) []Vec3 {
	pts := make([]Vec3, segments+1)
	for i := 0; i <= segments; i++ {
		t := float64(i) / float64(segments)
		u := 1 - t
		pts[i] = p0.Scale(u * u).Add(p1.Scale(2 * u * t)).Add(p2.Scale(t * t))
	}
	// Pin the endpoints exactly; the blend above can drift by an ulp.
	pts[0] = p0
	pts[segments] = p2
	return pts
}

// CountSkipped returns how many events lack source coordinates.
func CountSkipped(events []model.AttackEvent) int {
	n := 0
	for _, ev := range events {
		if !ev.HasSource() {
			n++
		}
	}
	return n
}
