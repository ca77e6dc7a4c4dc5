// Package gpu is a software stand-in for a graphics device. It owns every
// geometry, material, texture and render target the globe allocates and
// keeps exact allocation accounting, so leaks and use-after-dispose are
// observable.
package gpu

import (
	"errors"
	"fmt"
	"image"
	"sync"
	"sync/atomic"

	"github.com/signalsfoundry/threatglobe/core"
)

// Kind identifies a resource class.
type Kind string

const (
	KindGeometry     Kind = "geometry"
	KindMaterial     Kind = "material"
	KindTexture      Kind = "texture"
	KindRenderTarget Kind = "render_target"
)

// Kinds lists every resource kind in allocation-report order.
var Kinds = []Kind{KindGeometry, KindMaterial, KindTexture, KindRenderTarget}

var (
	// ErrDisposed is returned when a disposed resource is disposed again or
	// bound for drawing.
	ErrDisposed = errors.New("gpu: resource already disposed")
	// ErrForeignResource is returned when a resource from another device is
	// handed to this one.
	ErrForeignResource = errors.New("gpu: resource belongs to a different device")
	// ErrInvalidSize is returned for non-positive surface dimensions.
	ErrInvalidSize = errors.New("gpu: invalid size")
)

// Observer is notified of allocations and disposals. The Prometheus scene
// collector satisfies it.
type Observer interface {
	ResourceAllocated(kind string)
	ResourceDisposed(kind string, err error)
}

// Resource is anything allocated on a Device.
type Resource interface {
	Kind() Kind
	ID() uint64
	Dispose() error
	Disposed() bool
}

// Stats is a point-in-time copy of device accounting.
type Stats struct {
	Allocated       map[Kind]int
	Disposed        map[Kind]int
	Live            map[Kind]int
	DisposeFailures int
	DrawCalls       uint64
	UseAfterDispose uint64
}

// LiveTotal sums live resources across kinds.
func (s Stats) LiveTotal() int {
	n := 0
	for _, v := range s.Live {
		n += v
	}
	return n
}

// Option configures a Device.
type Option func(*Device)

// WithObserver forwards accounting events to o.
func WithObserver(o Observer) Option {
	return func(d *Device) { d.observer = o }
}

// WithDisposeHook installs fn to run on every first-time dispose. A non-nil
// return is reported as that resource's dispose error. Tests use it to inject
// failures.
func WithDisposeHook(fn func(Resource) error) Option {
	return func(d *Device) { d.disposeHook = fn }
}

// Device allocates and tracks resources. It is safe for concurrent use.
type Device struct {
	mu sync.Mutex

	nextID          uint64
	allocated       map[Kind]int
	disposed        map[Kind]int
	live            map[Kind]int
	disposeFailures int

	drawCalls       atomic.Uint64
	useAfterDispose atomic.Uint64

	observer    Observer
	disposeHook func(Resource) error
}

// NewDevice constructs an empty device.
func NewDevice(opts ...Option) *Device {
	d := &Device{
		allocated: make(map[Kind]int),
		disposed:  make(map[Kind]int),
		live:      make(map[Kind]int),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Stats returns a copy of current accounting.
func (d *Device) Stats() Stats {
	d.mu.Lock()
	defer d.mu.Unlock()
	s := Stats{
		Allocated:       make(map[Kind]int, len(Kinds)),
		Disposed:        make(map[Kind]int, len(Kinds)),
		Live:            make(map[Kind]int, len(Kinds)),
		DisposeFailures: d.disposeFailures,
		DrawCalls:       d.drawCalls.Load(),
		UseAfterDispose: d.useAfterDispose.Load(),
	}
	for _, k := range Kinds {
		s.Allocated[k] = d.allocated[k]
		s.Disposed[k] = d.disposed[k]
		s.Live[k] = d.live[k]
	}
	return s
}

// NewGeometry uploads a copy-free reference to mesh. The mesh must not be
// mutated afterwards.
func (d *Device) NewGeometry(mesh core.Mesh) *Geometry {
	g := &Geometry{Mesh: mesh}
	d.track(&g.base, KindGeometry)
	return g
}

// NewMaterial allocates a material from params.
func (d *Device) NewMaterial(params MaterialParams) *Material {
	m := &Material{MaterialParams: params}
	d.track(&m.base, KindMaterial)
	return m
}

// NewTexture wraps img. The image must not be mutated afterwards.
func (d *Device) NewTexture(img *image.RGBA) *Texture {
	t := &Texture{Image: img}
	d.track(&t.base, KindTexture)
	return t
}

// NewRenderTarget allocates a w x h HDR color buffer with depth.
func (d *Device) NewRenderTarget(w, h int) *RenderTarget {
	if w < 1 {
		w = 1
	}
	if h < 1 {
		h = 1
	}
	rt := &RenderTarget{
		Width:  w,
		Height: h,
		Color:  make([]Color, w*h),
		Depth:  make([]float64, w*h),
	}
	d.track(&rt.base, KindRenderTarget)
	return rt
}

// Bind validates that every resource is live and belongs to d, and counts a
// draw call. Renderers call it before touching resource data.
func (d *Device) Bind(resources ...Resource) error {
	for _, r := range resources {
		if r == nil {
			continue
		}
		b := baseOf(r)
		if b == nil || b.dev != d {
			return fmt.Errorf("bind %s %d: %w", r.Kind(), r.ID(), ErrForeignResource)
		}
		if r.Disposed() {
			d.useAfterDispose.Add(1)
			return fmt.Errorf("bind %s %d: %w", r.Kind(), r.ID(), ErrDisposed)
		}
	}
	d.drawCalls.Add(1)
	return nil
}

func (d *Device) track(b *base, kind Kind) {
	d.mu.Lock()
	d.nextID++
	b.dev, b.id, b.kind = d, d.nextID, kind
	d.allocated[kind]++
	d.live[kind]++
	obs := d.observer
	d.mu.Unlock()

	if obs != nil {
		obs.ResourceAllocated(string(kind))
	}
}

func (d *Device) dispose(r Resource, b *base) error {
	if !b.disposed.CompareAndSwap(false, true) {
		return fmt.Errorf("dispose %s %d: %w", b.kind, b.id, ErrDisposed)
	}

	var err error
	if d.disposeHook != nil {
		err = d.disposeHook(r)
	}

	d.mu.Lock()
	d.disposed[b.kind]++
	d.live[b.kind]--
	if err != nil {
		d.disposeFailures++
	}
	obs := d.observer
	d.mu.Unlock()

	if obs != nil {
		obs.ResourceDisposed(string(b.kind), err)
	}
	if err != nil {
		return fmt.Errorf("dispose %s %d: %w", b.kind, b.id, err)
	}
	return nil
}

// base carries identity and the disposed flag shared by every resource.
type base struct {
	dev      *Device
	id       uint64
	kind     Kind
	disposed atomic.Bool
}

func (b *base) Kind() Kind     { return b.kind }
func (b *base) ID() uint64     { return b.id }
func (b *base) Disposed() bool { return b.disposed.Load() }

func baseOf(r Resource) *base {
	switch v := r.(type) {
	case *Geometry:
		return &v.base
	case *Material:
		return &v.base
	case *Texture:
		return &v.base
	case *RenderTarget:
		return &v.base
	default:
		return nil
	}
}
