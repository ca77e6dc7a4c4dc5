package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/signalsfoundry/threatglobe/internal/alert"
	"github.com/signalsfoundry/threatglobe/internal/asset"
	"github.com/signalsfoundry/threatglobe/internal/config"
	"github.com/signalsfoundry/threatglobe/internal/feed"
	"github.com/signalsfoundry/threatglobe/internal/host"
	"github.com/signalsfoundry/threatglobe/internal/logging"
	"github.com/signalsfoundry/threatglobe/internal/observability"
	"github.com/signalsfoundry/threatglobe/internal/scene"
	"github.com/signalsfoundry/threatglobe/internal/surface"
	"github.com/signalsfoundry/threatglobe/kb"
	"github.com/signalsfoundry/threatglobe/timectrl"
)

func main() {
	configPath := flag.String("config", "", "YAML config file (defaults to $THREATGLOBE_CONFIG)")
	feedMode := flag.String("feed", "", "override feed.mode: sample, file or http")
	feedFile := flag.String("file", "", "override feed.file")
	feedURL := flag.String("url", "", "override feed.url")
	texture := flag.String("texture", "", "override globe.texture")
	metricsAddr := flag.String("metrics-addr", "", "override metrics.addr, e.g. :9090")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}
	override(&cfg.Feed.Mode, *feedMode)
	override(&cfg.Feed.File, *feedFile)
	override(&cfg.Feed.URL, *feedURL)
	override(&cfg.Globe.Texture, *texture)
	override(&cfg.Metrics.Addr, *metricsAddr)
	if err := cfg.Validate(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}

	if err := run(cfg); err != nil && !errors.Is(err, context.Canceled) {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func override(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

func run(cfg config.Config) error {
	log, logCloser, err := logging.New(cfg.Log())
	if err != nil {
		return err
	}
	defer logCloser.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	traceOut, err := traceWriter(cfg)
	if err != nil {
		return err
	}
	defer traceOut.Close()
	cfg.Tracing.Writer = traceOut
	shutdownTracing, err := observability.InitTracing(ctx, cfg.Tracing, log)
	if err != nil {
		return fmt.Errorf("init tracing: %w", err)
	}
	defer observability.ShutdownWithTimeout(context.Background(), shutdownTracing, log)

	reg := prometheus.NewRegistry()
	sceneMetrics, err := observability.NewSceneCollector(reg)
	if err != nil {
		return fmt.Errorf("scene metrics: %w", err)
	}
	feedMetrics, err := observability.NewFeedCollector(reg)
	if err != nil {
		return fmt.Errorf("feed metrics: %w", err)
	}
	if srv := serveMetrics(cfg.Metrics.Addr, sceneMetrics.Handler(), log); srv != nil {
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = srv.Shutdown(shutdownCtx)
		}()
	}

	term, err := surface.NewTerminal(nil)
	if err != nil {
		return err
	}
	defer term.Close()

	opts := []scene.Option{
		scene.WithLogger(log),
		scene.WithMetrics(sceneMetrics),
		scene.WithFrameSource(timectrl.NewTicker(cfg.Render.FPS)),
	}
	if cfg.Globe.Texture != "" {
		opts = append(opts, scene.WithTextureLoader(asset.FileLoader{Path: cfg.Globe.Texture, MaxWidth: cfg.Globe.TextureMaxWidth}))
	}
	manager := scene.New(cfg.Scene(), opts...)

	sampleRNG, feedRNG := newSources(time.Now().UnixNano())
	store := kb.NewEventStore()
	hostOpts := []host.Option{host.WithLogger(log)}
	if cfg.Feed.Mode == config.FeedSample {
		hostOpts = append(hostOpts, host.WithSamples(cfg.Feed.Samples, sampleRNG))
	}
	if cfg.Alert.Enabled {
		spk, err := alert.NewSpeaker()
		if err != nil {
			log.Warn(ctx, "audio unavailable, alerts disabled", logging.Err(err))
		} else {
			defer spk.Close()
			hostOpts = append(hostOpts, host.WithAlerter(alert.New(cfg.Alert, spk, log)))
		}
	}
	globe := host.New(term, store, manager, hostOpts...)

	term.AddListener(surface.EventKey, func(ev surface.Event) {
		switch keyAction(ev) {
		case actionQuit:
			stop()
		case actionZoomIn:
			manager.Zoom(1)
		case actionZoomOut:
			manager.Zoom(-1)
		case actionRemount:
			if err := globe.Remount(ctx); err != nil {
				log.Warn(ctx, "remount failed", logging.Err(err))
			}
		}
	})

	go func() {
		if err := term.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			log.Error(ctx, "terminal event loop failed", logging.Err(err))
		}
		stop()
	}()
	go runFeed(ctx, cfg, store, feedRNG, feedMetrics, log)
	go func() {
		ticker := time.NewTicker(time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				term.SetStatus(statusLine(manager.Stats(), store.Len()))
			}
		}
	}()

	log.Info(ctx, "threatglobe started", logging.String("feed", cfg.Feed.Mode))
	return globe.Run(ctx)
}

// newSources returns two independently seeded generators. Host remounts draw
// samples on the caller's goroutine while the feed trickle runs on its own,
// and a *rand.Rand must not be shared between them.
func newSources(seed int64) (samples, trickle *rand.Rand) {
	return rand.New(rand.NewSource(seed)), rand.New(rand.NewSource(seed ^ 0x5eed))
}

// runFeed keeps store current from the configured source until ctx is done.
func runFeed(ctx context.Context, cfg config.Config, store *kb.EventStore, rng *rand.Rand, metrics *observability.FeedCollector, log logging.Logger) {
	switch cfg.Feed.Mode {
	case config.FeedFile:
		err := feed.Watch(ctx, cfg.Feed.File, log, store.Replace)
		if err != nil && !errors.Is(err, context.Canceled) {
			log.Error(ctx, "attack file feed stopped", logging.String("path", cfg.Feed.File), logging.Err(err))
		}

	case config.FeedHTTP:
		httpOpts := []feed.HTTPOption{feed.WithFeedMetrics(metrics), feed.WithFeedLogger(log)}
		if cfg.Cache.Enabled {
			cache, err := feed.OpenCache(cfg.Cache.Dir)
			if err != nil {
				log.Warn(ctx, "feed cache unavailable", logging.Err(err))
			} else {
				defer cache.Close()
				httpOpts = append(httpOpts, feed.WithCache(cache))
			}
		}
		src := feed.NewHTTPSource(cfg.HTTP(), httpOpts...)
		_ = feed.Poll(ctx, cfg.Feed.PollInterval, src, log, store.Replace)

	default:
		// Trickle new synthetic attacks in so the globe keeps changing.
		ticker := time.NewTicker(5 * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case now := <-ticker.C:
				batch := feed.Sample(rng, 1+rng.Intn(4), now)
				store.Append(batch, cfg.Feed.MaxEvents)
				metrics.AddIngested(len(batch))
			}
		}
	}
}

func traceWriter(cfg config.Config) (io.WriteCloser, error) {
	if !cfg.Tracing.Enabled || cfg.Tracing.Exporter != observability.ExporterStdout {
		return nopWriteCloser{io.Discard}, nil
	}
	f, err := os.OpenFile("threatglobe-traces.jsonl", os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open trace file: %w", err)
	}
	return f, nil
}

type nopWriteCloser struct{ io.Writer }

func (nopWriteCloser) Close() error { return nil }

func serveMetrics(addr string, handler http.Handler, log logging.Logger) *http.Server {
	if addr == "" {
		return nil
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", handler)

	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Warn(context.Background(), "metrics server exited", logging.Err(err))
		}
	}()

	log.Info(context.Background(), "serving Prometheus metrics", logging.String("addr", addr))
	return srv
}

type action int

const (
	actionNone action = iota
	actionQuit
	actionZoomIn
	actionZoomOut
	actionRemount
)

func keyAction(ev surface.Event) action {
	switch {
	case ev.Rune == 'q' || ev.Rune == 'Q' || ev.Name == "Esc" || ev.Name == "Ctrl+C":
		return actionQuit
	case ev.Rune == '+' || ev.Rune == '=':
		return actionZoomIn
	case ev.Rune == '-' || ev.Rune == '_':
		return actionZoomOut
	case ev.Rune == 'r':
		return actionRemount
	default:
		return actionNone
	}
}

func statusLine(st scene.Stats, stored int) string {
	return fmt.Sprintf(" %s  events %d  spikes %d  arcs %d  epoch %d  frames %d  resources %d   q quit  +/- zoom  r remount",
		st.State, stored, st.Spikes, st.Arcs, st.Epoch, st.Frames, st.Resources.LiveTotal())
}
