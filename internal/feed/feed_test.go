package feed

import (
	"context"
	"errors"
	"math/rand"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/signalsfoundry/threatglobe/internal/observability"
	"github.com/signalsfoundry/threatglobe/model"
)

const twoAttacks = `[
  {"sourceCountry":"US","sourceLat":37.09,"sourceLng":-95.71,"targetCountry":"CN","targetLat":35.86,"targetLng":104.19,"intensity":0.9},
  {"sourceCountry":"BR","sourceLat":-14.24,"sourceLng":-51.93}
]`

func TestDecodeArrayAndEnvelope(t *testing.T) {
	events, err := Decode(strings.NewReader(twoAttacks))
	if err != nil {
		t.Fatalf("Decode array: %v", err)
	}
	if len(events) != 2 || !events[0].HasTarget() || events[1].HasTarget() {
		t.Fatalf("events = %+v", events)
	}
	if events[1].Intensity != nil {
		t.Fatalf("missing intensity decoded as %v", *events[1].Intensity)
	}

	events, err = Decode(strings.NewReader(`{"attacks":` + twoAttacks + `}`))
	if err != nil || len(events) != 2 {
		t.Fatalf("Decode envelope = %d events, %v", len(events), err)
	}

	for _, doc := range []string{"", "42", "[{", `{"attacks": 3}`} {
		if _, err := Decode(strings.NewReader(doc)); !errors.Is(err, ErrMalformed) {
			t.Fatalf("Decode(%q) = %v, want ErrMalformed", doc, err)
		}
	}
}

func TestLoadFileMissing(t *testing.T) {
	if _, err := LoadFile(filepath.Join(t.TempDir(), "nope.json")); !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("LoadFile = %v, want ErrNotExist", err)
	}
}

func TestSampleIsDeterministic(t *testing.T) {
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	a := Sample(rand.New(rand.NewSource(3)), 50, now)
	b := Sample(rand.New(rand.NewSource(3)), 50, now)
	if len(a) != 50 {
		t.Fatalf("len = %d, want 50", len(a))
	}
	targets := 0
	for i := range a {
		if a[i].SourceCountry != b[i].SourceCountry || *a[i].Intensity != *b[i].Intensity {
			t.Fatalf("event %d differs between equal seeds", i)
		}
		if !a[i].HasSource() {
			t.Fatalf("event %d has no source", i)
		}
		if a[i].HasTarget() {
			targets++
			if a[i].TargetCountry == a[i].SourceCountry {
				t.Fatalf("event %d targets its own source %s", i, a[i].SourceCountry)
			}
		}
		if in := *a[i].Intensity; in < 0.1 || in > 1 {
			t.Fatalf("intensity %v out of range", in)
		}
	}
	if targets == 0 || targets == 50 {
		t.Fatalf("targets = %d, want a mix of arcs and spike-only events", targets)
	}
}

func TestWatchReloadsOnReplace(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "attacks.json")
	if err := os.WriteFile(path, []byte(twoAttacks), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	loads := make(chan []model.AttackEvent, 8)
	done := make(chan error, 1)
	go func() {
		done <- Watch(ctx, path, nil, func(ev []model.AttackEvent) { loads <- ev })
	}()

	select {
	case ev := <-loads:
		if len(ev) != 2 {
			t.Fatalf("initial load = %d events, want 2", len(ev))
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("no initial load")
	}

	// Give the watcher a moment to register before replacing the file.
	time.Sleep(100 * time.Millisecond)
	tmp := filepath.Join(dir, "attacks.json.tmp")
	if err := os.WriteFile(tmp, []byte(`[{"sourceCountry":"JP","sourceLat":36.2,"sourceLng":138.25}]`), 0o644); err != nil {
		t.Fatalf("write tmp: %v", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		t.Fatalf("rename: %v", err)
	}

	deadline := time.After(3 * time.Second)
	for {
		select {
		case ev := <-loads:
			if len(ev) == 1 && ev[0].SourceCountry == "JP" {
				cancel()
				if err := <-done; !errors.Is(err, context.Canceled) {
					t.Fatalf("Watch = %v, want context.Canceled", err)
				}
				return
			}
		case <-deadline:
			t.Fatalf("replacement was not reloaded")
		}
	}
}

func newFeedMetrics(t *testing.T) *observability.FeedCollector {
	t.Helper()
	m, err := observability.NewFeedCollector(prometheus.NewRegistry())
	if err != nil {
		t.Fatalf("NewFeedCollector: %v", err)
	}
	return m
}

func TestHTTPSourceFallsBackToCache(t *testing.T) {
	var failing atomic.Bool
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if failing.Load() {
			http.Error(w, "down", http.StatusBadGateway)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(twoAttacks))
	}))
	defer srv.Close()

	cache, err := OpenCache("")
	if err != nil {
		t.Fatalf("OpenCache: %v", err)
	}
	defer cache.Close()

	metrics := newFeedMetrics(t)
	cfg := DefaultHTTPConfig()
	cfg.URL = srv.URL
	cfg.RatePerSecond = 0
	cfg.FailureThreshold = 2
	cfg.OpenTimeout = time.Hour
	src := NewHTTPSource(cfg, WithCache(cache), WithFeedMetrics(metrics))
	ctx := context.Background()

	events, err := src.Fetch(ctx)
	if err != nil || len(events) != 2 {
		t.Fatalf("Fetch = %d events, %v", len(events), err)
	}

	failing.Store(true)
	for i := 0; i < 3; i++ {
		events, err = src.Fetch(ctx)
		if err != nil || len(events) != 2 {
			t.Fatalf("Fetch #%d while failing = %d events, %v; want cached 2", i, len(events), err)
		}
	}
	if got := src.BreakerState(); got != "open" {
		t.Fatalf("breaker = %s, want open", got)
	}
	if got := testutil.ToFloat64(metrics.CacheFallbacks); got != 3 {
		t.Fatalf("cache fallbacks = %v, want 3", got)
	}
	if got := testutil.ToFloat64(metrics.BreakerOpen); got != 1 {
		t.Fatalf("breaker gauge = %v, want 1", got)
	}
	if got := testutil.ToFloat64(metrics.EventsIngested); got != 2 {
		t.Fatalf("ingested = %v, want 2", got)
	}
}

func TestHTTPSourceWithoutCacheReportsError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("not json"))
	}))
	defer srv.Close()

	cfg := DefaultHTTPConfig()
	cfg.URL = srv.URL
	cfg.RatePerSecond = 0
	src := NewHTTPSource(cfg)
	if _, err := src.Fetch(context.Background()); !errors.Is(err, ErrMalformed) {
		t.Fatalf("Fetch = %v, want ErrMalformed", err)
	}
}

type stubSource struct {
	calls atomic.Int32
}

func (s *stubSource) Fetch(context.Context) ([]model.AttackEvent, error) {
	if s.calls.Add(1)%2 == 0 {
		return nil, errors.New("flaky")
	}
	return []model.AttackEvent{model.NewEvent("US", 1, 2, 0.5)}, nil
}

func TestPollContinuesPastFailures(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	src := &stubSource{}
	var got atomic.Int32
	done := make(chan error, 1)
	go func() {
		done <- Poll(ctx, 5*time.Millisecond, src, nil, func([]model.AttackEvent) {
			if got.Add(1) == 3 {
				cancel()
			}
		})
	}()

	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Fatalf("Poll = %v, want context.Canceled", err)
		}
	case <-time.After(3 * time.Second):
		cancel()
		t.Fatalf("Poll did not deliver three results")
	}
	if src.calls.Load() < 5 {
		t.Fatalf("calls = %d, want at least 5", src.calls.Load())
	}
}

func TestCacheMiss(t *testing.T) {
	c, err := OpenCache("")
	if err != nil {
		t.Fatalf("OpenCache: %v", err)
	}
	defer c.Close()
	if _, err := c.Get("absent"); !errors.Is(err, ErrCacheMiss) {
		t.Fatalf("Get = %v, want ErrCacheMiss", err)
	}
	if err := c.Put("k", []byte("v"), time.Minute); err != nil {
		t.Fatalf("Put: %v", err)
	}
	if v, err := c.Get("k"); err != nil || string(v) != "v" {
		t.Fatalf("Get = %q, %v", v, err)
	}
}
