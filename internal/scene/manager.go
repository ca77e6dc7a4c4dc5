// Package scene owns one mounted attack globe: its resources, its frame loop
// and the replacement of attack geometry when a new event set arrives.
package scene

import (
	"context"
	"errors"
	"fmt"
	"image"
	"math"
	"math/rand"
	"sync"
	"time"

	"github.com/go-gl/mathgl/mgl64"
	"go.opentelemetry.io/otel/attribute"

	"github.com/signalsfoundry/threatglobe/core"
	"github.com/signalsfoundry/threatglobe/internal/asset"
	"github.com/signalsfoundry/threatglobe/internal/gpu"
	"github.com/signalsfoundry/threatglobe/internal/logging"
	"github.com/signalsfoundry/threatglobe/internal/observability"
	"github.com/signalsfoundry/threatglobe/internal/render"
	"github.com/signalsfoundry/threatglobe/internal/surface"
	"github.com/signalsfoundry/threatglobe/model"
	"github.com/signalsfoundry/threatglobe/timectrl"
)

// Container is where a scene draws and where its input comes from.
type Container = surface.Container

// State is the lifecycle position of a Manager.
type State int

const (
	Unmounted State = iota
	Mounting
	Running
	Unmounting
)

func (s State) String() string {
	switch s {
	case Unmounted:
		return "unmounted"
	case Mounting:
		return "mounting"
	case Running:
		return "running"
	case Unmounting:
		return "unmounting"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

var (
	// ErrMounted is returned by Mount when the manager is not Unmounted.
	ErrMounted = errors.New("scene: already mounted")
)

const (
	starInner     = 400.0
	starOuter     = 900.0
	camNear       = 0.1
	camFar        = 2000.0
	maxFrameDelta = 250 * time.Millisecond
)

// Metrics receives scene-level measurements. *observability.SceneCollector
// implements it.
type Metrics interface {
	FrameRendered(d time.Duration)
	EpochBuilt(spikes, arcs, skipped int)
	TextureLoaded(result string)
	StateChanged(state string)
}

type noopMetrics struct{}

func (noopMetrics) FrameRendered(time.Duration) {}
func (noopMetrics) EpochBuilt(int, int, int)    {}
func (noopMetrics) TextureLoaded(string)        {}
func (noopMetrics) StateChanged(string)         {}

// Option configures a Manager.
type Option func(*Manager)

// WithDevice sets the resource device. Without it the manager creates one,
// reporting to the metrics sink when that sink is also a gpu.Observer.
func WithDevice(d *gpu.Device) Option {
	return func(m *Manager) { m.dev = d }
}

// WithLogger sets the base logger.
func WithLogger(l logging.Logger) Option {
	return func(m *Manager) { m.baseLog = l }
}

// WithMetrics sets the metrics sink.
func WithMetrics(mt Metrics) Option {
	return func(m *Manager) { m.metrics = mt }
}

// WithTextureLoader sets where the globe texture comes from. Without one the
// globe keeps its fallback colour.
func WithTextureLoader(l asset.Loader) Option {
	return func(m *Manager) { m.loader = l }
}

// WithFrameSource sets the frame clock.
func WithFrameSource(fs timectrl.FrameSource) Option {
	return func(m *Manager) { m.frames = fs }
}

// WithRand sets the random source used for spike jitter and the starfield.
func WithRand(r *rand.Rand) Option {
	return func(m *Manager) { m.rng = r }
}

// WithClock sets the clock used to time frames.
func WithClock(now func() time.Time) Option {
	return func(m *Manager) { m.now = now }
}

// liveness is handed to every callback a mount registers. Unmount marks it
// dead before tearing anything down, so a callback already in flight becomes
// a no-op.
type liveness struct {
	dead bool
}

// Manager mounts a globe into a Container and keeps it in sync with the
// latest attack events. All methods are safe for concurrent use.
type Manager struct {
	cfg     Config
	dev     *gpu.Device
	baseLog logging.Logger
	metrics Metrics
	loader  asset.Loader
	frames  timectrl.FrameSource
	rng     *rand.Rand
	now     func() time.Time

	loads sync.WaitGroup

	mu    sync.Mutex
	state State
	gen   uint64
	live  *liveness
	log   logging.Logger
	ctx   context.Context

	container  Container
	unlisten   []func()
	stopFrames func()
	cancelLoad context.CancelFunc

	base     *gpu.Arena
	epoch    *gpu.Arena
	epochNum uint64

	pending    []model.AttackEvent
	hasPending bool
	current    []model.AttackEvent

	scn       *render.Scene
	camera    *render.Camera
	composer  *render.Composer
	controls  *Controls
	world     *render.Node
	globeMat  *gpu.Material
	spikes    *render.Node
	arcs      *render.Node
	phases    []float64
	canvas    *image.RGBA
	started   time.Time
	lastFrame time.Time
	frameNum  uint64
}

// New returns an unmounted manager.
func New(cfg Config, opts ...Option) *Manager {
	m := &Manager{cfg: cfg}
	for _, opt := range opts {
		opt(m)
	}
	if m.baseLog == nil {
		m.baseLog = logging.Noop()
	}
	if m.metrics == nil {
		m.metrics = noopMetrics{}
	}
	if m.dev == nil {
		var devOpts []gpu.Option
		if obs, ok := m.metrics.(gpu.Observer); ok {
			devOpts = append(devOpts, gpu.WithObserver(obs))
		}
		m.dev = gpu.NewDevice(devOpts...)
	}
	if m.frames == nil {
		m.frames = timectrl.NewTicker(timectrl.DefaultFPS)
	}
	if m.rng == nil {
		m.rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	if m.now == nil {
		m.now = time.Now
	}
	m.log = m.baseLog
	m.ctx = context.Background()
	return m
}

// Device returns the device scene resources are allocated from.
func (m *Manager) Device() *gpu.Device { return m.dev }

// Mount builds the scene into c and starts rendering.
func (m *Manager) Mount(ctx context.Context, c Container) (err error) {
	ctx, span := observability.StartSpan(ctx, "scene.Mount")
	defer func() { observability.EndSpan(span, err) }()

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.state != Unmounted {
		return ErrMounted
	}
	w, h := c.Size()
	if w <= 0 || h <= 0 {
		return fmt.Errorf("mount %dx%d: %w", w, h, gpu.ErrInvalidSize)
	}
	span.SetAttributes(attribute.Int("scene.width", w), attribute.Int("scene.height", h))

	ctx, log := logging.WithSceneLogger(ctx, m.baseLog)
	m.ctx = context.WithoutCancel(ctx)
	m.log = log
	m.setState(Mounting)

	m.gen++
	tok := &liveness{}
	m.live = tok
	m.base = m.dev.NewArena("base")

	composer, err := render.NewComposer(m.dev, w, h, m.cfg.Bloom)
	if err != nil {
		relErr := m.base.Release()
		m.base = nil
		m.live = nil
		m.setState(Unmounted)
		return errors.Join(fmt.Errorf("mount: %w", err), relErr)
	}
	m.composer = composer
	m.buildBase(w, h)

	m.container = c
	m.canvas = image.NewRGBA(image.Rect(0, 0, w, h))
	c.AttachCanvas(m.canvas)
	m.unlisten = []func(){
		c.AddListener(surface.EventResize, func(ev surface.Event) { m.onResize(tok, ev) }),
		c.AddListener(surface.EventPointer, func(ev surface.Event) { m.onPointer(tok, ev) }),
	}

	if m.loader != nil {
		loadCtx, cancel := context.WithCancel(m.ctx)
		m.cancelLoad = cancel
		m.loads.Add(1)
		go m.loadTexture(loadCtx, tok, m.gen)
	}

	events := m.current
	if m.hasPending {
		events = m.pending
		m.pending, m.hasPending = nil, false
	}
	if events != nil {
		if err := m.applyLocked(ctx, events); err != nil {
			m.log.Warn(ctx, "initial epoch disposal failed", logging.Err(err))
		}
	}

	m.started = time.Time{}
	m.lastFrame = time.Time{}
	m.setState(Running)
	m.stopFrames = m.frames.Start(func(now time.Time) { m.frame(tok, now) })

	m.log.Info(ctx, "scene mounted",
		logging.Int("width", w),
		logging.Int("height", h),
		logging.Int("resources", m.dev.Stats().LiveTotal()),
	)
	return nil
}

// buildBase allocates the long-lived part of the scene from the base arena.
func (m *Manager) buildBase(w, h int) {
	cfg := m.cfg
	m.scn = render.NewScene()
	m.camera = render.NewPerspectiveCamera(cfg.FOV, float64(w)/float64(h), camNear, camFar)
	m.controls = NewControls(cfg.CameraDistance, cfg.MinDistance, cfg.MaxDistance, cfg.Damping)
	m.controls.AutoRotate = cfg.Rotation == RotateAuto || cfg.Rotation == ""
	m.controls.AutoRotateSpeed = cfg.AutoRotateSpeed
	m.controls.Apply(m.camera)

	m.globeMat = m.base.Material(gpu.MaterialParams{
		Shading:    gpu.Lambert,
		Color:      cfg.GlobeColor,
		Opacity:    1,
		DepthWrite: true,
		DepthTest:  true,
	})
	globe := render.NewMesh("globe",
		m.base.Geometry(core.SphereMesh(core.GlobeRadius, cfg.GlobeSegments, cfg.GlobeSegments/2)),
		m.globeMat,
	)

	atmosphere := render.NewMesh("atmosphere",
		m.base.Geometry(core.SphereMesh(core.GlobeRadius*cfg.AtmosphereScale, cfg.GlobeSegments, cfg.GlobeSegments/2)),
		m.base.Material(gpu.MaterialParams{
			Shading:      gpu.Fresnel,
			Color:        cfg.AtmosphereColor,
			Opacity:      1,
			Transparent:  true,
			Blending:     gpu.AdditiveBlending,
			Side:         gpu.BackSide,
			DepthTest:    true,
			FresnelBias:  0.65,
			FresnelPower: 2,
		}),
	)
	atmosphere.RenderOrder = -1

	stars := render.NewMesh("stars",
		m.base.Geometry(core.StarfieldMesh(m.rng, cfg.Stars, starInner, starOuter)),
		m.base.Material(gpu.MaterialParams{
			Shading:    gpu.Unlit,
			Color:      gpu.Color{R: 0.8, G: 0.8, B: 0.9},
			Opacity:    1,
			DepthWrite: true,
			DepthTest:  true,
			PointSize:  1,
		}),
	)

	m.spikes = render.NewNode("spikes")
	m.arcs = render.NewNode("arcs")
	m.world = render.NewNode("world")
	m.world.Add(globe, m.spikes, m.arcs)
	m.scn.Root.Add(stars, m.world, atmosphere)
}

// loadTexture fetches the globe texture off the frame path. The result is
// applied only if the mount that started the load is still the live one.
func (m *Manager) loadTexture(ctx context.Context, tok *liveness, gen uint64) {
	defer m.loads.Done()
	img, err := m.loader.Load(ctx)

	m.mu.Lock()
	defer m.mu.Unlock()
	if tok.dead || m.live != tok || m.gen != gen {
		m.metrics.TextureLoaded("dropped")
		return
	}
	switch {
	case errors.Is(err, asset.ErrNoSource):
		m.metrics.TextureLoaded("skipped")
		m.log.Debug(ctx, "no globe texture configured")
		return
	case err != nil:
		m.metrics.TextureLoaded("failed")
		m.log.Warn(ctx, "globe texture load failed, keeping fallback colour", logging.Err(err))
		return
	case img == nil:
		m.metrics.TextureLoaded("failed")
		m.log.Warn(ctx, "globe texture load failed, keeping fallback colour", logging.String("reason", "loader returned no image"))
		return
	}

	m.globeMat.Map = m.base.Texture(img)
	m.globeMat.Color = gpu.Color{R: 1, G: 1, B: 1}
	m.metrics.TextureLoaded("ok")
	b := img.Bounds()
	m.log.Debug(ctx, "globe texture applied", logging.Int("width", b.Dx()), logging.Int("height", b.Dy()))
}

// SetAttackEvents replaces the visualised event set. While not running the
// events are held and applied on the next Mount; only the latest set is
// kept. The returned error reports resources of the previous epoch that
// failed to dispose; the new epoch is in place regardless.
func (m *Manager) SetAttackEvents(ctx context.Context, events []model.AttackEvent) (err error) {
	ctx, span := observability.StartSpan(ctx, "scene.SetAttackEvents",
		attribute.Int("scene.events", len(events)))
	defer func() { observability.EndSpan(span, err) }()

	cp := append([]model.AttackEvent(nil), events...)

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state != Running {
		m.pending, m.hasPending = cp, true
		m.log.Debug(ctx, "attack events queued until mount", logging.Int("events", len(cp)))
		return nil
	}
	return m.applyLocked(ctx, cp)
}

// applyLocked swaps the epoch: detach and release the old attack geometry,
// then build and insert the new one.
func (m *Manager) applyLocked(ctx context.Context, events []model.AttackEvent) error {
	m.spikes.Clear()
	m.arcs.Clear()
	m.phases = nil
	var relErr error
	if m.epoch != nil {
		relErr = m.epoch.Release()
		m.epoch = nil
	}

	m.epochNum++
	arena := m.dev.NewArena(fmt.Sprintf("epoch-%d", m.epochNum))

	spikes := core.BuildSpikes(events, m.cfg.Spikes, m.rng)
	m.phases = make([]float64, 0, len(spikes))
	for i, s := range spikes {
		node := render.NewMesh(fmt.Sprintf("spike-%d", i),
			arena.Geometry(core.ConeMesh(s.Radius, s.Height, m.cfg.SpikeSegments)),
			arena.Material(spikeMaterial(s.Intensity)),
		)
		node.Position = s.Position
		node.Rotation = render.Basis(core.SpikeFrame(s))
		m.spikes.Add(node)
		m.phases = append(m.phases, s.Phase)
	}

	arcs := core.BuildArcs(events, m.cfg.Arcs)
	for i, a := range arcs {
		node := render.NewMesh(fmt.Sprintf("arc-%d", i),
			arena.Geometry(core.ArcMesh(a)),
			arena.Material(arcMaterial(a.Intensity)),
		)
		node.RenderOrder = 1
		m.arcs.Add(node)
	}

	m.epoch = arena
	m.current = events
	skipped := core.CountSkipped(events)
	m.metrics.EpochBuilt(len(spikes), len(arcs), skipped)

	fields := []logging.Field{
		logging.Int("epoch", int(m.epochNum)),
		logging.Int("events", len(events)),
		logging.Int("spikes", len(spikes)),
		logging.Int("arcs", len(arcs)),
		logging.Int("skipped", skipped),
	}
	if relErr != nil {
		m.log.Warn(ctx, "previous epoch released with errors", append(fields, logging.Err(relErr))...)
	} else {
		m.log.Debug(ctx, "epoch built", fields...)
	}
	return relErr
}

var (
	spikeLow  = gpu.Hex(0xffcc00)
	spikeHigh = gpu.Hex(0xff2200)
	arcColor  = gpu.Hex(0xff5544)
)

func spikeMaterial(intensity float64) gpu.MaterialParams {
	c := spikeLow.Lerp(spikeHigh, clamp(intensity, 0, 1))
	return gpu.MaterialParams{
		Shading:    gpu.Lambert,
		Color:      c,
		Emissive:   c.Scale(0.6),
		Opacity:    1,
		DepthWrite: true,
		DepthTest:  true,
	}
}

func arcMaterial(intensity float64) gpu.MaterialParams {
	return gpu.MaterialParams{
		Shading:     gpu.Unlit,
		Color:       arcColor,
		Opacity:     clamp(0.35+0.5*intensity, 0, 1),
		Transparent: true,
		Blending:    gpu.AdditiveBlending,
		DepthTest:   true,
	}
}

// Resize updates camera, canvas and post-processing targets. It does nothing
// unless the scene is running.
func (m *Manager) Resize(width, height int) error {
	if width <= 0 || height <= 0 {
		return fmt.Errorf("resize %dx%d: %w", width, height, gpu.ErrInvalidSize)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state != Running {
		return nil
	}
	return m.resizeLocked(width, height)
}

func (m *Manager) resizeLocked(width, height int) error {
	m.camera.SetAspect(float64(width) / float64(height))
	if err := m.composer.SetSize(width, height); err != nil {
		return fmt.Errorf("resize composer: %w", err)
	}
	m.container.DetachCanvas(m.canvas)
	m.canvas = image.NewRGBA(image.Rect(0, 0, width, height))
	m.container.AttachCanvas(m.canvas)
	m.log.Debug(m.ctx, "scene resized", logging.Int("width", width), logging.Int("height", height))
	return nil
}

func (m *Manager) onResize(tok *liveness, ev surface.Event) {
	if ev.Width <= 0 || ev.Height <= 0 {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if tok.dead || m.state != Running {
		return
	}
	if err := m.resizeLocked(ev.Width, ev.Height); err != nil {
		m.log.Warn(m.ctx, "resize failed", logging.Err(err))
	}
}

func (m *Manager) onPointer(tok *liveness, ev surface.Event) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if tok.dead || m.state != Running {
		return
	}
	m.controls.Pointer(ev)
}

// Zoom moves the camera steps notches closer, or farther when negative.
func (m *Manager) Zoom(steps int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state == Running {
		m.controls.Zoom(steps)
	}
}

// frame advances animation by one tick and presents the result.
func (m *Manager) frame(tok *liveness, now time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if tok.dead || m.state != Running {
		return
	}
	start := m.now()

	if m.started.IsZero() {
		m.started, m.lastFrame = now, now
	}
	dt := now.Sub(m.lastFrame)
	if dt > maxFrameDelta {
		dt = maxFrameDelta
	}
	m.lastFrame = now

	m.controls.Update(dt)
	m.controls.Apply(m.camera)
	if m.cfg.Rotation == RotateSidereal {
		m.world.Rotation = mgl64.HomogRotate3DY(core.SiderealAngle(now))
	}

	t := now.Sub(m.started).Seconds()
	for i, node := range m.spikes.Children {
		s := 1 + m.cfg.PulseAmplitude*math.Sin(m.cfg.PulseSpeed*t+m.phases[i])
		node.Scale = core.Vec3{X: 1, Y: s, Z: 1}
	}

	if err := m.composer.Render(render.RenderPass{Scene: m.scn, Camera: m.camera}, m.canvas); err != nil {
		m.log.Warn(m.ctx, "frame rendered with errors", logging.Err(err))
	}
	if err := m.container.Present(m.canvas); err != nil {
		m.log.Warn(m.ctx, "present failed", logging.Err(err))
	}
	m.frameNum++
	m.metrics.FrameRendered(m.now().Sub(start))
}

// Unmount stops rendering and releases every resource of the mount. It is
// idempotent and safe to call concurrently with frames and texture loads.
func (m *Manager) Unmount(ctx context.Context) (err error) {
	ctx, span := observability.StartSpan(ctx, "scene.Unmount")
	defer func() { observability.EndSpan(span, err) }()

	m.mu.Lock()
	if m.state != Running {
		m.mu.Unlock()
		return nil
	}
	m.setState(Unmounting)
	m.live.dead = true
	stop := m.stopFrames
	cancel := m.cancelLoad
	unlisten := m.unlisten
	m.stopFrames, m.cancelLoad, m.unlisten = nil, nil, nil
	m.mu.Unlock()

	// The frame callback takes m.mu, so the source must be stopped unlocked.
	if stop != nil {
		stop()
	}
	if cancel != nil {
		cancel()
	}
	for _, remove := range unlisten {
		remove()
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	var errs []error
	if m.epoch != nil {
		errs = append(errs, m.epoch.Release())
		m.epoch = nil
	}
	errs = append(errs, m.composer.Dispose(), m.base.Release())
	m.container.DetachCanvas(m.canvas)

	// Keep the last event set so a remount shows the same picture.
	if !m.hasPending && m.current != nil {
		m.pending, m.hasPending = m.current, true
	}
	m.current = nil
	m.base, m.composer, m.container, m.canvas = nil, nil, nil, nil
	m.scn, m.world, m.spikes, m.arcs, m.globeMat, m.phases = nil, nil, nil, nil, nil, nil
	m.live = nil
	m.setState(Unmounted)

	err = errors.Join(errs...)
	if err != nil {
		m.log.Warn(ctx, "scene unmounted with disposal errors", logging.Err(err))
	} else {
		m.log.Info(ctx, "scene unmounted", logging.Int("frames", int(m.frameNum)))
	}
	return err
}

func (m *Manager) setState(s State) {
	m.state = s
	m.metrics.StateChanged(s.String())
}

// Stats is a point-in-time view of a Manager.
type Stats struct {
	State         State
	Epoch         uint64
	Spikes        int
	Arcs          int
	Aspect        float64
	Width, Height int
	Frames        uint64
	Textured      bool
	Yaw           float64
	Distance      float64
	RenderTargets int
	Resources     gpu.Stats
}

// Stats returns a snapshot of the manager and its device.
func (m *Manager) Stats() Stats {
	m.mu.Lock()
	defer m.mu.Unlock()
	st := Stats{
		State:     m.state,
		Epoch:     m.epochNum,
		Frames:    m.frameNum,
		Resources: m.dev.Stats(),
	}
	if m.state != Running {
		return st
	}
	st.Spikes = len(m.spikes.Children)
	st.Arcs = len(m.arcs.Children)
	st.Aspect = m.camera.Aspect
	st.Width, st.Height = m.composer.Size()
	st.Textured = m.globeMat.Map != nil
	st.Yaw = m.controls.Yaw
	st.Distance = m.controls.Distance
	st.RenderTargets = m.composer.TargetCount()
	return st
}

// waitPendingLoads blocks until every texture load started so far has
// returned and been applied or dropped.
func (m *Manager) waitPendingLoads() {
	m.loads.Wait()
}
