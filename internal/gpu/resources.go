package gpu

import (
	"image"
	"math"

	"github.com/signalsfoundry/threatglobe/core"
)

// Color is a linear RGB triple. Components may exceed 1 in HDR targets.
type Color struct {
	R, G, B float64
}

// RGB builds a Color from 0..255 components.
func RGB(r, g, b uint8) Color {
	return Color{R: float64(r) / 255, G: float64(g) / 255, B: float64(b) / 255}
}

// Hex builds a Color from a 0xRRGGBB value.
func Hex(v uint32) Color {
	return RGB(uint8(v>>16), uint8(v>>8), uint8(v))
}

func (c Color) Add(o Color) Color     { return Color{c.R + o.R, c.G + o.G, c.B + o.B} }
func (c Color) Scale(k float64) Color { return Color{c.R * k, c.G * k, c.B * k} }
func (c Color) Mul(o Color) Color     { return Color{c.R * o.R, c.G * o.G, c.B * o.B} }

func (c Color) Lerp(o Color, t float64) Color {
	return Color{c.R + (o.R-c.R)*t, c.G + (o.G-c.G)*t, c.B + (o.B-c.B)*t}
}

// Luminance is the Rec. 709 relative luminance.
func (c Color) Luminance() float64 {
	return 0.2126*c.R + 0.7152*c.G + 0.0722*c.B
}

// Blending selects how a fragment combines with the target.
type Blending int

const (
	NormalBlending Blending = iota
	AdditiveBlending
)

// Side selects which triangle faces are rasterized.
type Side int

const (
	FrontSide Side = iota
	BackSide
	DoubleSide
)

// Shading selects the fragment program.
type Shading int

const (
	// Unlit outputs Color (or the texture) unchanged.
	Unlit Shading = iota
	// Lambert applies a directional plus ambient term.
	Lambert
	// Fresnel glows toward silhouettes: intensity = pow(Bias - dot(n, view), Power).
	Fresnel
)

// MaterialParams describe a material at creation time.
type MaterialParams struct {
	Shading     Shading
	Color       Color
	Emissive    Color
	Opacity     float64
	Transparent bool
	Blending    Blending
	Side        Side
	DepthWrite  bool
	DepthTest   bool
	Map         *Texture

	// Fresnel parameters.
	FresnelBias  float64
	FresnelPower float64

	// PointSize is the splat size in pixels for point primitives.
	PointSize float64
}

// Geometry holds an immutable mesh.
type Geometry struct {
	base
	Mesh core.Mesh
}

// Dispose releases the geometry.
func (g *Geometry) Dispose() error { return g.dev.dispose(g, &g.base) }

// Material is a set of shading parameters. Disposing a material does not
// dispose its Map.
type Material struct {
	base
	MaterialParams
}

// Dispose releases the material.
func (m *Material) Dispose() error { return m.dev.dispose(m, &m.base) }

// Texture is an immutable RGBA image sampled with wrapping in u and clamping
// in v.
type Texture struct {
	base
	Image *image.RGBA
}

// Dispose releases the texture.
func (t *Texture) Dispose() error { return t.dev.dispose(t, &t.base) }

// Sample returns the bilinearly filtered color at (u, v).
func (t *Texture) Sample(u, v float64) Color {
	img := t.Image
	if img == nil {
		return Color{1, 1, 1}
	}
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	if w == 0 || h == 0 {
		return Color{1, 1, 1}
	}

	u -= math.Floor(u)
	v = math.Max(0, math.Min(1, v))

	fx := u*float64(w) - 0.5
	fy := v*float64(h) - 0.5
	x0 := int(math.Floor(fx))
	y0 := int(math.Floor(fy))
	tx := fx - float64(x0)
	ty := fy - float64(y0)

	texel := func(x, y int) Color {
		x = ((x % w) + w) % w
		if y < 0 {
			y = 0
		} else if y >= h {
			y = h - 1
		}
		off := img.PixOffset(b.Min.X+x, b.Min.Y+y)
		return RGB(img.Pix[off], img.Pix[off+1], img.Pix[off+2])
	}

	top := texel(x0, y0).Lerp(texel(x0+1, y0), tx)
	bot := texel(x0, y0+1).Lerp(texel(x0+1, y0+1), tx)
	return top.Lerp(bot, ty)
}

// RenderTarget is an off-screen HDR color buffer with a depth buffer.
type RenderTarget struct {
	base
	Width, Height int
	Color         []Color
	Depth         []float64
}

// Dispose releases the render target.
func (rt *RenderTarget) Dispose() error { return rt.dev.dispose(rt, &rt.base) }

// Clear fills color with c and resets depth to the far plane.
func (rt *RenderTarget) Clear(c Color) {
	for i := range rt.Color {
		rt.Color[i] = c
		rt.Depth[i] = math.Inf(1)
	}
}

// At returns the color at (x, y).
func (rt *RenderTarget) At(x, y int) Color {
	return rt.Color[y*rt.Width+x]
}
