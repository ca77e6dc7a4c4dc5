// Package host wires an event store to a scene mounted in a container.
package host

import (
	"context"
	"errors"
	"math/rand"
	"sync"
	"time"

	"github.com/signalsfoundry/threatglobe/internal/alert"
	"github.com/signalsfoundry/threatglobe/internal/feed"
	"github.com/signalsfoundry/threatglobe/internal/logging"
	"github.com/signalsfoundry/threatglobe/internal/scene"
	"github.com/signalsfoundry/threatglobe/kb"
	"github.com/signalsfoundry/threatglobe/model"
)

// ErrStarted is returned by Start when the globe is already started.
var ErrStarted = errors.New("host: already started")

// Option configures a Globe.
type Option func(*Globe)

// WithLogger sets the logger.
func WithLogger(l logging.Logger) Option {
	return func(g *Globe) { g.log = l }
}

// WithAlerter sounds alerts for every applied event set.
func WithAlerter(a *alert.Alerter) Option {
	return func(g *Globe) { g.alert = a }
}

// WithSamples seeds an empty store with n synthetic events on Start.
func WithSamples(n int, rng *rand.Rand) Option {
	return func(g *Globe) { g.samples, g.rng = n, rng }
}

// Globe keeps a scene in sync with an event store for as long as it runs.
type Globe struct {
	container scene.Container
	store     *kb.EventStore
	manager   *scene.Manager
	alert     *alert.Alerter
	log       logging.Logger
	samples   int
	rng       *rand.Rand

	mu      sync.Mutex
	started bool
	unsub   func()
	applied uint64
}

// New returns a stopped globe.
func New(c scene.Container, store *kb.EventStore, mgr *scene.Manager, opts ...Option) *Globe {
	g := &Globe{container: c, store: store, manager: mgr, log: logging.Noop()}
	for _, opt := range opts {
		opt(g)
	}
	if g.rng == nil {
		g.rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	return g
}

// Start mounts the scene and begins forwarding store changes to it.
func (g *Globe) Start(ctx context.Context) error {
	g.mu.Lock()
	if g.started {
		g.mu.Unlock()
		return ErrStarted
	}
	if g.samples > 0 && g.store.Len() == 0 {
		g.store.Replace(feed.Sample(g.rng, g.samples, time.Now()))
		g.log.Info(ctx, "seeded store with sample attacks", logging.Int("events", g.samples))
	}
	if err := g.manager.Mount(ctx, g.container); err != nil {
		g.mu.Unlock()
		return err
	}

	applyCtx := context.WithoutCancel(ctx)
	g.started = true
	g.applied = 0
	g.unsub = g.store.Subscribe(func(ev kb.Event) {
		g.apply(applyCtx, ev.Version, ev.Attacks)
	})
	g.mu.Unlock()

	events, version := g.store.Snapshot()
	g.apply(applyCtx, version, events)
	return nil
}

// apply forwards one store version, ignoring versions older than the last
// one applied.
func (g *Globe) apply(ctx context.Context, version uint64, events []model.AttackEvent) {
	g.mu.Lock()
	if !g.started || version < g.applied || (version == g.applied && version != 0) {
		g.mu.Unlock()
		return
	}
	g.applied = version
	// Held across the call so two store versions cannot reach the scene out
	// of order.
	defer g.mu.Unlock()

	if err := g.manager.SetAttackEvents(ctx, events); err != nil {
		g.log.Warn(ctx, "attack events applied with disposal errors", logging.Err(err))
	}
	if g.alert != nil {
		g.alert.Notify(ctx, events)
	}
}

// Stop unsubscribes from the store and unmounts the scene.
func (g *Globe) Stop(ctx context.Context) error {
	g.mu.Lock()
	if !g.started {
		g.mu.Unlock()
		return nil
	}
	g.started = false
	unsub := g.unsub
	g.unsub = nil
	g.mu.Unlock()

	if unsub != nil {
		unsub()
	}
	return g.manager.Unmount(ctx)
}

// Remount tears the scene down and builds it again from the store.
func (g *Globe) Remount(ctx context.Context) error {
	if err := g.Stop(ctx); err != nil {
		g.log.Warn(ctx, "unmount before remount reported errors", logging.Err(err))
	}
	return g.Start(ctx)
}

// Run starts the globe, blocks until ctx is done, then stops it.
func (g *Globe) Run(ctx context.Context) error {
	if err := g.Start(ctx); err != nil {
		return err
	}
	<-ctx.Done()
	return g.Stop(context.WithoutCancel(ctx))
}
