package render

import (
	"errors"
	"fmt"
	"image"
	"math"

	"github.com/signalsfoundry/threatglobe/internal/gpu"
)

// BloomPass adds a glow halo around pixels brighter than Threshold.
type BloomPass struct {
	Strength  float64 `koanf:"strength"`
	Radius    float64 `koanf:"radius"`
	Threshold float64 `koanf:"threshold"`
}

// DefaultBloom returns the stock bloom parameters.
func DefaultBloom() BloomPass {
	return BloomPass{Strength: 1.2, Radius: 0.5, Threshold: 0.6}
}

// RenderPass draws Scene from Camera into the composer's scene target.
type RenderPass struct {
	Scene  *Scene
	Camera *Camera
}

// Composer runs a RenderPass followed by a BloomPass and tone-maps the result
// into an 8-bit canvas. It owns four render targets (scene, bright, ping,
// pong) allocated from its own arena.
type Composer struct {
	renderer *Renderer
	arena    *gpu.Arena
	bloom    BloomPass
	kernel   []float64

	width, height int
	disposed      bool

	scene, bright, ping, pong *gpu.RenderTarget
}

// NewComposer allocates a composer of the given size.
func NewComposer(dev *gpu.Device, width, height int, bloom BloomPass) (*Composer, error) {
	c := &Composer{
		renderer: NewRenderer(dev),
		arena:    dev.NewArena("composer"),
		bloom:    bloom,
		kernel:   gaussianKernel(bloom.Radius),
	}
	if err := c.SetSize(width, height); err != nil {
		return nil, err
	}
	return c, nil
}

// Size returns the output size in pixels.
func (c *Composer) Size() (int, int) { return c.width, c.height }

// Bloom returns the bloom parameters.
func (c *Composer) Bloom() BloomPass { return c.bloom }

// TargetCount returns the number of live render targets owned by the
// composer.
func (c *Composer) TargetCount() int { return c.arena.Len() }

// SetSize releases the current render targets and allocates new ones of the
// given size. Release failures are returned but do not prevent the new
// targets from being allocated.
func (c *Composer) SetSize(width, height int) error {
	if width <= 0 || height <= 0 {
		return fmt.Errorf("composer size %dx%d: %w", width, height, gpu.ErrInvalidSize)
	}
	if c.disposed {
		return fmt.Errorf("composer resize: %w", gpu.ErrDisposed)
	}
	err := c.arena.Release()

	hw, hh := max(1, width/2), max(1, height/2)
	c.scene = c.arena.RenderTarget(width, height)
	c.bright = c.arena.RenderTarget(hw, hh)
	c.ping = c.arena.RenderTarget(hw, hh)
	c.pong = c.arena.RenderTarget(hw, hh)
	c.width, c.height = width, height
	return err
}

// Dispose releases every render target. Further Render or SetSize calls fail
// with gpu.ErrDisposed; Dispose itself is idempotent.
func (c *Composer) Dispose() error {
	if c.disposed {
		return nil
	}
	c.disposed = true
	c.scene, c.bright, c.ping, c.pong = nil, nil, nil, nil
	return c.arena.Release()
}

// Render draws pass through the chain into out. Pixels outside out's bounds
// are dropped.
func (c *Composer) Render(pass RenderPass, out *image.RGBA) error {
	if c.disposed {
		return fmt.Errorf("composer render: %w", gpu.ErrDisposed)
	}
	var errs []error
	if err := c.renderer.Render(pass.Scene, pass.Camera, c.scene); err != nil {
		errs = append(errs, err)
	}

	useBloom := c.bloom.Strength > 0
	if useBloom {
		if err := c.renderer.dev.Bind(c.scene, c.bright, c.ping, c.pong); err != nil {
			return errors.Join(append(errs, err)...)
		}
		c.brightPass()
		c.blur(c.bright, c.ping, 1, 0)
		c.blur(c.ping, c.pong, 0, 1)
	}

	b := out.Bounds()
	for y := 0; y < c.height && y < b.Dy(); y++ {
		for x := 0; x < c.width && x < b.Dx(); x++ {
			col := c.scene.At(x, y)
			if useBloom {
				glow := sampleBilinear(c.pong, (float64(x)+0.5)/2-0.5, (float64(y)+0.5)/2-0.5)
				col = col.Add(glow.Scale(c.bloom.Strength))
			}
			off := out.PixOffset(b.Min.X+x, b.Min.Y+y)
			out.Pix[off+0] = toByte(col.R)
			out.Pix[off+1] = toByte(col.G)
			out.Pix[off+2] = toByte(col.B)
			out.Pix[off+3] = 0xff
		}
	}
	return errors.Join(errs...)
}

// brightPass downsamples the scene 2x into bright, keeping only the part of
// each pixel's luminance above the threshold.
func (c *Composer) brightPass() {
	src, dst := c.scene, c.bright
	for y := 0; y < dst.Height; y++ {
		for x := 0; x < dst.Width; x++ {
			var sum gpu.Color
			for dy := 0; dy < 2; dy++ {
				for dx := 0; dx < 2; dx++ {
					sx := min(src.Width-1, 2*x+dx)
					sy := min(src.Height-1, 2*y+dy)
					sum = sum.Add(src.At(sx, sy))
				}
			}
			avg := sum.Scale(0.25)
			lum := avg.Luminance()
			k := 0.0
			if lum > c.bloom.Threshold {
				k = (lum - c.bloom.Threshold) / lum
			}
			dst.Color[y*dst.Width+x] = avg.Scale(k)
		}
	}
}

// blur applies the separable Gaussian along (dx, dy).
func (c *Composer) blur(src, dst *gpu.RenderTarget, dx, dy int) {
	half := len(c.kernel) / 2
	for y := 0; y < dst.Height; y++ {
		for x := 0; x < dst.Width; x++ {
			var acc gpu.Color
			for i, w := range c.kernel {
				o := i - half
				sx := clampInt(x+o*dx, 0, src.Width-1)
				sy := clampInt(y+o*dy, 0, src.Height-1)
				acc = acc.Add(src.At(sx, sy).Scale(w))
			}
			dst.Color[y*dst.Width+x] = acc
		}
	}
}

// gaussianKernel maps the bloom radius (0..1) to a normalized 1D kernel.
func gaussianKernel(radius float64) []float64 {
	sigma := 0.5 + math.Max(0, radius)*3
	half := int(math.Ceil(2 * sigma))
	k := make([]float64, 2*half+1)
	sum := 0.0
	for i := range k {
		x := float64(i - half)
		k[i] = math.Exp(-x * x / (2 * sigma * sigma))
		sum += k[i]
	}
	for i := range k {
		k[i] /= sum
	}
	return k
}

func sampleBilinear(rt *gpu.RenderTarget, fx, fy float64) gpu.Color {
	x0, y0 := int(math.Floor(fx)), int(math.Floor(fy))
	tx, ty := fx-float64(x0), fy-float64(y0)
	at := func(x, y int) gpu.Color {
		return rt.At(clampInt(x, 0, rt.Width-1), clampInt(y, 0, rt.Height-1))
	}
	top := at(x0, y0).Lerp(at(x0+1, y0), tx)
	bot := at(x0, y0+1).Lerp(at(x0+1, y0+1), tx)
	return top.Lerp(bot, ty)
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func toByte(v float64) uint8 {
	if v <= 0 {
		return 0
	}
	if v >= 1 {
		return 0xff
	}
	return uint8(v*255 + 0.5)
}
