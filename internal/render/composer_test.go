package render

import (
	"errors"
	"image"
	"testing"

	"github.com/signalsfoundry/threatglobe/core"
	"github.com/signalsfoundry/threatglobe/internal/gpu"
)

func TestComposerResizeKeepsTargetCount(t *testing.T) {
	dev := gpu.NewDevice()
	c, err := NewComposer(dev, 800, 600, DefaultBloom())
	if err != nil {
		t.Fatalf("NewComposer: %v", err)
	}
	if c.TargetCount() != 4 {
		t.Fatalf("TargetCount = %d, want 4", c.TargetCount())
	}

	if err := c.SetSize(400, 300); err != nil {
		t.Fatalf("SetSize: %v", err)
	}
	if w, h := c.Size(); w != 400 || h != 300 {
		t.Fatalf("Size = %dx%d, want 400x300", w, h)
	}
	s := dev.Stats()
	if s.Live[gpu.KindRenderTarget] != 4 || c.TargetCount() != 4 {
		t.Fatalf("live render targets = %d (composer %d), want 4", s.Live[gpu.KindRenderTarget], c.TargetCount())
	}
	if s.Allocated[gpu.KindRenderTarget] != 8 || s.Disposed[gpu.KindRenderTarget] != 4 {
		t.Fatalf("allocated=%d disposed=%d, want 8/4", s.Allocated[gpu.KindRenderTarget], s.Disposed[gpu.KindRenderTarget])
	}

	if err := c.SetSize(0, 300); !errors.Is(err, gpu.ErrInvalidSize) {
		t.Fatalf("SetSize(0, 300) = %v, want ErrInvalidSize", err)
	}

	if err := c.Dispose(); err != nil {
		t.Fatalf("Dispose: %v", err)
	}
	if err := c.Dispose(); err != nil {
		t.Fatalf("second Dispose: %v", err)
	}
	if got := dev.Stats().Live[gpu.KindRenderTarget]; got != 0 {
		t.Fatalf("live render targets after Dispose = %d", got)
	}
	out := image.NewRGBA(image.Rect(0, 0, 400, 300))
	if err := c.Render(RenderPass{Scene: NewScene(), Camera: testCamera()}, out); !errors.Is(err, gpu.ErrDisposed) {
		t.Fatalf("Render after Dispose = %v, want ErrDisposed", err)
	}
	if err := c.SetSize(10, 10); !errors.Is(err, gpu.ErrDisposed) {
		t.Fatalf("SetSize after Dispose = %v, want ErrDisposed", err)
	}
}

func TestBloomSpreadsBrightPixels(t *testing.T) {
	render := func(bloom BloomPass) *image.RGBA {
		dev := gpu.NewDevice()
		c, err := NewComposer(dev, 32, 32, bloom)
		if err != nil {
			t.Fatalf("NewComposer: %v", err)
		}
		defer c.Dispose()

		s := NewScene()
		s.Background = gpu.Color{}
		star := core.Mesh{Primitive: core.Points, Positions: []core.Vec3{{}}}
		s.Root.Add(NewMesh("star", dev.NewGeometry(star), dev.NewMaterial(gpu.MaterialParams{
			Color: gpu.Color{R: 1, G: 1, B: 1}, PointSize: 4,
		})))

		out := image.NewRGBA(image.Rect(0, 0, 32, 32))
		if err := c.Render(RenderPass{Scene: s, Camera: testCamera()}, out); err != nil {
			t.Fatalf("Render: %v", err)
		}
		return out
	}

	plain := render(BloomPass{})
	glowing := render(DefaultBloom())

	if got := plain.RGBAAt(16, 16); got.R != 0xff {
		t.Fatalf("star pixel = %v, want white", got)
	}
	if got := plain.RGBAAt(20, 16); got.R != 0 {
		t.Fatalf("pixel next to star without bloom = %v, want black", got)
	}
	if got := glowing.RGBAAt(20, 16); got.R == 0 {
		t.Fatalf("pixel next to star with bloom = %v, want glow", got)
	}
	if got := glowing.RGBAAt(16, 16); got.A != 0xff {
		t.Fatalf("alpha = %d, want opaque", got.A)
	}
}

func TestGaussianKernelNormalized(t *testing.T) {
	for _, r := range []float64{0, 0.5, 1} {
		k := gaussianKernel(r)
		if len(k)%2 != 1 {
			t.Fatalf("kernel for radius %v has even length %d", r, len(k))
		}
		sum := 0.0
		for _, w := range k {
			sum += w
		}
		if sum < 1-1e-9 || sum > 1+1e-9 {
			t.Fatalf("kernel for radius %v sums to %v", r, sum)
		}
	}
}
