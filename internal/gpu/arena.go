package gpu

import (
	"errors"
	"image"
	"sync"

	"github.com/signalsfoundry/threatglobe/core"
)

// Arena groups resources that share a lifetime. Everything allocated through
// or adopted by an arena is disposed together by Release.
type Arena struct {
	dev  *Device
	name string

	mu    sync.Mutex
	items []Resource
}

// NewArena returns an empty arena allocating on d.
func (d *Device) NewArena(name string) *Arena {
	return &Arena{dev: d, name: name}
}

// Name returns the label given at construction.
func (a *Arena) Name() string { return a.name }

// Device returns the owning device.
func (a *Arena) Device() *Device { return a.dev }

// Geometry allocates and tracks a geometry.
func (a *Arena) Geometry(mesh core.Mesh) *Geometry {
	g := a.dev.NewGeometry(mesh)
	a.Track(g)
	return g
}

// Material allocates and tracks a material.
func (a *Arena) Material(params MaterialParams) *Material {
	m := a.dev.NewMaterial(params)
	a.Track(m)
	return m
}

// Texture allocates and tracks a texture.
func (a *Arena) Texture(img *image.RGBA) *Texture {
	t := a.dev.NewTexture(img)
	a.Track(t)
	return t
}

// RenderTarget allocates and tracks a render target.
func (a *Arena) RenderTarget(w, h int) *RenderTarget {
	rt := a.dev.NewRenderTarget(w, h)
	a.Track(rt)
	return rt
}

// Track adopts r so that Release disposes it.
func (a *Arena) Track(r Resource) {
	a.mu.Lock()
	a.items = append(a.items, r)
	a.mu.Unlock()
}

// Len returns the number of tracked resources.
func (a *Arena) Len() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.items)
}

// Release disposes every tracked resource in reverse allocation order. A
// failing dispose does not stop the rest; all failures are joined into the
// returned error. The arena is empty and reusable afterwards.
func (a *Arena) Release() error {
	a.mu.Lock()
	items := a.items
	a.items = nil
	a.mu.Unlock()

	var errs []error
	for i := len(items) - 1; i >= 0; i-- {
		if err := items[i].Dispose(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
