package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// FeedCollector exposes metrics for attack feeds (file watch and REST poll).
type FeedCollector struct {
	gatherer prometheus.Gatherer

	Fetches         *prometheus.CounterVec
	FetchDuration   prometheus.Histogram
	EventsIngested  prometheus.Counter
	CacheFallbacks  prometheus.Counter
	BreakerOpen     prometheus.Gauge
	RateLimitWaited prometheus.Counter
}

// NewFeedCollector registers feed metrics against the provided registerer.
func NewFeedCollector(reg prometheus.Registerer) (*FeedCollector, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	gatherer := prometheus.DefaultGatherer
	if g, ok := reg.(prometheus.Gatherer); ok {
		gatherer = g
	}

	c := &FeedCollector{gatherer: gatherer}
	var err error

	if c.Fetches, err = register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "threatglobe_feed_fetches_total",
		Help: "Feed fetch attempts, by source and result.",
	}, []string{"source", "result"}), "threatglobe_feed_fetches_total"); err != nil {
		return nil, err
	}
	if c.FetchDuration, err = register(reg, prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "threatglobe_feed_fetch_duration_seconds",
		Help:    "Duration of feed fetches.",
		Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10},
	}), "threatglobe_feed_fetch_duration_seconds"); err != nil {
		return nil, err
	}
	if c.EventsIngested, err = register(reg, prometheus.NewCounter(prometheus.CounterOpts{
		Name: "threatglobe_feed_events_ingested_total",
		Help: "Attack events delivered to the event store.",
	}), "threatglobe_feed_events_ingested_total"); err != nil {
		return nil, err
	}
	if c.CacheFallbacks, err = register(reg, prometheus.NewCounter(prometheus.CounterOpts{
		Name: "threatglobe_feed_cache_fallbacks_total",
		Help: "Fetches served from the local cache after the upstream failed.",
	}), "threatglobe_feed_cache_fallbacks_total"); err != nil {
		return nil, err
	}
	if c.BreakerOpen, err = register(reg, prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "threatglobe_feed_breaker_open",
		Help: "1 when the feed circuit breaker is open, 0.5 when half-open, 0 when closed.",
	}), "threatglobe_feed_breaker_open"); err != nil {
		return nil, err
	}
	if c.RateLimitWaited, err = register(reg, prometheus.NewCounter(prometheus.CounterOpts{
		Name: "threatglobe_feed_rate_limit_wait_seconds_total",
		Help: "Cumulative time spent waiting on the feed rate limiter.",
	}), "threatglobe_feed_rate_limit_wait_seconds_total"); err != nil {
		return nil, err
	}

	return c, nil
}

// Gatherer returns the Prometheus gatherer associated with the collector.
func (c *FeedCollector) Gatherer() prometheus.Gatherer {
	if c == nil {
		return nil
	}
	return c.gatherer
}

// ObserveFetch records one fetch attempt.
func (c *FeedCollector) ObserveFetch(source, result string, d time.Duration) {
	if c == nil {
		return
	}
	c.Fetches.WithLabelValues(source, result).Inc()
	c.FetchDuration.Observe(d.Seconds())
}

// AddIngested counts events handed to the store.
func (c *FeedCollector) AddIngested(n int) {
	if c == nil || n <= 0 {
		return
	}
	c.EventsIngested.Add(float64(n))
}

// IncCacheFallback counts a cache-served fetch.
func (c *FeedCollector) IncCacheFallback() {
	if c == nil {
		return
	}
	c.CacheFallbacks.Inc()
}

// SetBreakerState maps a breaker state name to the gauge value.
func (c *FeedCollector) SetBreakerState(state string) {
	if c == nil {
		return
	}
	switch state {
	case "open":
		c.BreakerOpen.Set(1)
	case "half-open":
		c.BreakerOpen.Set(0.5)
	default:
		c.BreakerOpen.Set(0)
	}
}

// AddRateLimitWait accumulates time spent blocked on the limiter.
func (c *FeedCollector) AddRateLimitWait(d time.Duration) {
	if c == nil || d <= 0 {
		return
	}
	c.RateLimitWaited.Add(d.Seconds())
}
