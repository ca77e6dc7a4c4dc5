package feed

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	gobreaker "github.com/sony/gobreaker/v2"
	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/time/rate"

	"github.com/signalsfoundry/threatglobe/internal/logging"
	"github.com/signalsfoundry/threatglobe/internal/observability"
	"github.com/signalsfoundry/threatglobe/model"
)

const maxBody = 8 << 20

// Source is anything that can be polled for the current attack list.
type Source interface {
	Fetch(ctx context.Context) ([]model.AttackEvent, error)
}

// HTTPConfig configures an HTTPSource.
type HTTPConfig struct {
	URL     string        `koanf:"url"`
	Timeout time.Duration `koanf:"timeout"`

	// RatePerSecond and Burst bound outgoing requests.
	RatePerSecond float64 `koanf:"rate_per_second"`
	Burst         int     `koanf:"burst"`

	// The breaker opens after FailureThreshold consecutive failures and
	// half-opens after OpenTimeout.
	FailureThreshold uint32        `koanf:"failure_threshold"`
	OpenTimeout      time.Duration `koanf:"open_timeout"`

	// CacheTTL is how long a good response may stand in for a failed one.
	CacheTTL time.Duration `koanf:"cache_ttl"`
}

// DefaultHTTPConfig returns conservative polling defaults.
func DefaultHTTPConfig() HTTPConfig {
	return HTTPConfig{
		Timeout:          10 * time.Second,
		RatePerSecond:    1,
		Burst:            1,
		FailureThreshold: 3,
		OpenTimeout:      30 * time.Second,
		CacheTTL:         15 * time.Minute,
	}
}

// HTTPSource fetches attack documents from a REST endpoint. Requests are rate
// limited and go through a circuit breaker; the last good body is cached and
// served while the endpoint is failing.
type HTTPSource struct {
	cfg     HTTPConfig
	client  *http.Client
	limiter *rate.Limiter
	breaker *gobreaker.CircuitBreaker[[]byte]
	cache   *Cache
	metrics *observability.FeedCollector
	log     logging.Logger
}

// HTTPOption configures an HTTPSource.
type HTTPOption func(*HTTPSource)

// WithHTTPClient replaces the default client.
func WithHTTPClient(c *http.Client) HTTPOption {
	return func(s *HTTPSource) { s.client = c }
}

// WithCache enables fallback to cached responses.
func WithCache(c *Cache) HTTPOption {
	return func(s *HTTPSource) { s.cache = c }
}

// WithFeedMetrics records fetch outcomes.
func WithFeedMetrics(m *observability.FeedCollector) HTTPOption {
	return func(s *HTTPSource) { s.metrics = m }
}

// WithFeedLogger sets the logger.
func WithFeedLogger(l logging.Logger) HTTPOption {
	return func(s *HTTPSource) { s.log = l }
}

// NewHTTPSource builds a source for cfg.URL.
func NewHTTPSource(cfg HTTPConfig, opts ...HTTPOption) *HTTPSource {
	s := &HTTPSource{cfg: cfg, log: logging.Noop()}
	for _, opt := range opts {
		opt(s)
	}
	if s.client == nil {
		s.client = &http.Client{Timeout: cfg.Timeout}
	}

	limit := rate.Inf
	if cfg.RatePerSecond > 0 {
		limit = rate.Limit(cfg.RatePerSecond)
	}
	s.limiter = rate.NewLimiter(limit, max(1, cfg.Burst))

	threshold := cfg.FailureThreshold
	if threshold == 0 {
		threshold = 1
	}
	s.breaker = gobreaker.NewCircuitBreaker[[]byte](gobreaker.Settings{
		Name:    "feed:" + cfg.URL,
		Timeout: cfg.OpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= threshold
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			s.metrics.SetBreakerState(to.String())
			s.log.Warn(context.Background(), "feed circuit breaker state changed",
				logging.String("breaker", name),
				logging.String("from", from.String()),
				logging.String("to", to.String()),
			)
		},
	})
	return s
}

// BreakerState reports the circuit breaker state: closed, half-open or open.
func (s *HTTPSource) BreakerState() string {
	return s.breaker.State().String()
}

// Fetch returns the endpoint's current events, or the cached copy when the
// endpoint fails and a fresh enough copy exists.
func (s *HTTPSource) Fetch(ctx context.Context) (events []model.AttackEvent, err error) {
	ctx, span := observability.StartSpan(ctx, "feed.Fetch", attribute.String("feed.url", s.cfg.URL))
	start := time.Now()
	result := "ok"
	defer func() {
		s.metrics.ObserveFetch("http", result, time.Since(start))
		span.SetAttributes(attribute.String("feed.result", result), attribute.Int("feed.events", len(events)))
		observability.EndSpan(span, err)
	}()

	waitStart := time.Now()
	if err := s.limiter.Wait(ctx); err != nil {
		result = "canceled"
		return nil, fmt.Errorf("rate limit wait: %w", err)
	}
	s.metrics.AddRateLimitWait(time.Since(waitStart))

	body, fetchErr := s.breaker.Execute(func() ([]byte, error) {
		body, err := s.get(ctx)
		if err != nil {
			return nil, err
		}
		if _, err := decodeBytes(body); err != nil {
			return nil, err
		}
		return body, nil
	})
	if fetchErr == nil {
		events, _ = decodeBytes(body)
		if s.cache != nil {
			if err := s.cache.Put(s.cacheKey(), body, s.cfg.CacheTTL); err != nil {
				s.log.Warn(ctx, "feed cache write failed", logging.Err(err))
			}
		}
		s.metrics.AddIngested(len(events))
		return events, nil
	}

	if cached, ok := s.fromCache(ctx); ok {
		result = "cached"
		s.metrics.IncCacheFallback()
		s.log.Warn(ctx, "feed fetch failed, serving cached events",
			logging.Int("events", len(cached)),
			logging.Err(fetchErr),
		)
		return cached, nil
	}

	result = "error"
	if errors.Is(fetchErr, gobreaker.ErrOpenState) || errors.Is(fetchErr, gobreaker.ErrTooManyRequests) {
		result = "rejected"
	}
	return nil, fmt.Errorf("fetch %s: %w", s.cfg.URL, fetchErr)
}

func (s *HTTPSource) get(ctx context.Context) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.cfg.URL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	resp, err := s.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxBody))
		return nil, fmt.Errorf("unexpected status %s", resp.Status)
	}
	return io.ReadAll(io.LimitReader(resp.Body, maxBody))
}

func (s *HTTPSource) fromCache(ctx context.Context) ([]model.AttackEvent, bool) {
	if s.cache == nil {
		return nil, false
	}
	body, err := s.cache.Get(s.cacheKey())
	if err != nil {
		if !errors.Is(err, ErrCacheMiss) {
			s.log.Warn(ctx, "feed cache read failed", logging.Err(err))
		}
		return nil, false
	}
	events, err := decodeBytes(body)
	if err != nil {
		return nil, false
	}
	return events, true
}

func (s *HTTPSource) cacheKey() string {
	return "feed:" + s.cfg.URL
}

// Poll fetches from src immediately and then every interval, passing each
// successful result to fn. Failures are logged and polling continues. Poll
// returns ctx.Err() once ctx is done.
func Poll(ctx context.Context, interval time.Duration, src Source, log logging.Logger, fn func([]model.AttackEvent)) error {
	if log == nil {
		log = logging.Noop()
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		events, err := src.Fetch(ctx)
		switch {
		case err == nil:
			fn(events)
		case ctx.Err() != nil:
			return ctx.Err()
		default:
			log.Warn(ctx, "feed poll failed", logging.Duration("retry_in", interval), logging.Err(err))
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}
