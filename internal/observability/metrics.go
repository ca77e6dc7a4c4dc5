package observability

import (
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// SceneCollector bundles Prometheus metrics for the globe scene: GPU resource
// lifetimes, frame timing and attack-epoch sizes. All methods tolerate a nil
// receiver so callers can run without metrics.
type SceneCollector struct {
	gatherer prometheus.Gatherer

	ResourcesLive    *prometheus.GaugeVec
	Allocations      *prometheus.CounterVec
	Disposals        *prometheus.CounterVec
	DisposeFailures  *prometheus.CounterVec
	Frames           prometheus.Counter
	FrameDurations   prometheus.Histogram
	Epochs           prometheus.Counter
	EventsSkipped    prometheus.Counter
	TextureLoads     *prometheus.CounterVec
	Spikes           prometheus.Gauge
	Arcs             prometheus.Gauge
	SceneTransitions *prometheus.CounterVec
}

// NewSceneCollector registers scene metrics against the provided registerer,
// defaulting to the global Prometheus registry when nil.
func NewSceneCollector(reg prometheus.Registerer) (*SceneCollector, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	gatherer := prometheus.DefaultGatherer
	if g, ok := reg.(prometheus.Gatherer); ok {
		gatherer = g
	}

	c := &SceneCollector{gatherer: gatherer}
	var err error

	if c.ResourcesLive, err = register(reg, prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "threatglobe_scene_resources_live",
		Help: "GPU resources currently allocated and not yet disposed, by kind.",
	}, []string{"kind"}), "threatglobe_scene_resources_live"); err != nil {
		return nil, err
	}
	if c.Allocations, err = register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "threatglobe_scene_allocations_total",
		Help: "GPU resources allocated, by kind.",
	}, []string{"kind"}), "threatglobe_scene_allocations_total"); err != nil {
		return nil, err
	}
	if c.Disposals, err = register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "threatglobe_scene_disposals_total",
		Help: "GPU resources disposed, by kind.",
	}, []string{"kind"}), "threatglobe_scene_disposals_total"); err != nil {
		return nil, err
	}
	if c.DisposeFailures, err = register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "threatglobe_scene_dispose_failures_total",
		Help: "Dispose calls that returned an error, by kind.",
	}, []string{"kind"}), "threatglobe_scene_dispose_failures_total"); err != nil {
		return nil, err
	}
	if c.Frames, err = register(reg, prometheus.NewCounter(prometheus.CounterOpts{
		Name: "threatglobe_scene_frames_total",
		Help: "Frames rendered and presented.",
	}), "threatglobe_scene_frames_total"); err != nil {
		return nil, err
	}
	if c.FrameDurations, err = register(reg, prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "threatglobe_scene_frame_duration_seconds",
		Help:    "Time spent updating, rendering and presenting one frame.",
		Buckets: []float64{0.001, 0.0025, 0.005, 0.01, 0.02, 0.033, 0.05, 0.1, 0.25, 0.5},
	}), "threatglobe_scene_frame_duration_seconds"); err != nil {
		return nil, err
	}
	if c.Epochs, err = register(reg, prometheus.NewCounter(prometheus.CounterOpts{
		Name: "threatglobe_scene_epochs_total",
		Help: "Attack epochs built from an event list.",
	}), "threatglobe_scene_epochs_total"); err != nil {
		return nil, err
	}
	if c.EventsSkipped, err = register(reg, prometheus.NewCounter(prometheus.CounterOpts{
		Name: "threatglobe_scene_attack_events_skipped_total",
		Help: "Attack events dropped for lacking source coordinates.",
	}), "threatglobe_scene_attack_events_skipped_total"); err != nil {
		return nil, err
	}
	if c.TextureLoads, err = register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "threatglobe_scene_texture_loads_total",
		Help: "Globe texture loads, by result (applied, failed, dropped).",
	}, []string{"result"}), "threatglobe_scene_texture_loads_total"); err != nil {
		return nil, err
	}
	if c.Spikes, err = register(reg, prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "threatglobe_scene_spikes",
		Help: "Spikes in the current attack epoch.",
	}), "threatglobe_scene_spikes"); err != nil {
		return nil, err
	}
	if c.Arcs, err = register(reg, prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "threatglobe_scene_arcs",
		Help: "Arcs in the current attack epoch.",
	}), "threatglobe_scene_arcs"); err != nil {
		return nil, err
	}
	if c.SceneTransitions, err = register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "threatglobe_scene_transitions_total",
		Help: "Scene lifecycle transitions, by target state.",
	}, []string{"state"}), "threatglobe_scene_transitions_total"); err != nil {
		return nil, err
	}

	return c, nil
}

// Handler exposes a ready-to-use /metrics handler.
func (c *SceneCollector) Handler() http.Handler {
	gatherer := prometheus.DefaultGatherer
	if c != nil && c.gatherer != nil {
		gatherer = c.gatherer
	}
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

// ResourceAllocated records a GPU allocation of the given kind.
func (c *SceneCollector) ResourceAllocated(kind string) {
	if c == nil {
		return
	}
	c.Allocations.WithLabelValues(kind).Inc()
	c.ResourcesLive.WithLabelValues(kind).Inc()
}

// ResourceDisposed records a dispose call. A failed dispose still counts the
// resource as released.
func (c *SceneCollector) ResourceDisposed(kind string, err error) {
	if c == nil {
		return
	}
	c.Disposals.WithLabelValues(kind).Inc()
	c.ResourcesLive.WithLabelValues(kind).Dec()
	if err != nil {
		c.DisposeFailures.WithLabelValues(kind).Inc()
	}
}

// FrameRendered records one presented frame.
func (c *SceneCollector) FrameRendered(d time.Duration) {
	if c == nil {
		return
	}
	c.Frames.Inc()
	c.FrameDurations.Observe(d.Seconds())
}

// EpochBuilt records a freshly built attack epoch.
func (c *SceneCollector) EpochBuilt(spikes, arcs, skipped int) {
	if c == nil {
		return
	}
	c.Epochs.Inc()
	c.Spikes.Set(float64(spikes))
	c.Arcs.Set(float64(arcs))
	c.EventsSkipped.Add(float64(skipped))
}

// TextureLoaded records the outcome of a texture load.
func (c *SceneCollector) TextureLoaded(result string) {
	if c == nil {
		return
	}
	c.TextureLoads.WithLabelValues(result).Inc()
}

// StateChanged records a scene lifecycle transition.
func (c *SceneCollector) StateChanged(state string) {
	if c == nil {
		return
	}
	c.SceneTransitions.WithLabelValues(state).Inc()
}

// register adds col to reg, returning the already-registered collector when an
// identical one exists.
func register[T prometheus.Collector](reg prometheus.Registerer, col T, name string) (T, error) {
	if err := reg.Register(col); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(T); ok {
				return existing, nil
			}
			var zero T
			return zero, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		var zero T
		return zero, err
	}
	return col, nil
}
