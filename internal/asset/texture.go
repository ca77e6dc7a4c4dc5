// Package asset loads the equirectangular globe surface image.
package asset

import (
	"context"
	"errors"
	"fmt"
	"image"
	"image/color"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"math"
	"os"

	"golang.org/x/image/draw"
	_ "golang.org/x/image/webp"
)

// DefaultMaxWidth bounds the decoded texture width; wider images are
// downscaled on load.
const DefaultMaxWidth = 1024

// ErrNoSource is returned by a loader with nothing to load.
var ErrNoSource = errors.New("asset: no texture source configured")

// Loader produces the globe surface texture. Implementations must honour ctx
// cancellation.
type Loader interface {
	Load(ctx context.Context) (*image.RGBA, error)
}

// LoaderFunc adapts a function to Loader.
type LoaderFunc func(ctx context.Context) (*image.RGBA, error)

// Load calls f.
func (f LoaderFunc) Load(ctx context.Context) (*image.RGBA, error) { return f(ctx) }

// FileLoader decodes a PNG, JPEG or WebP file.
type FileLoader struct {
	Path     string
	MaxWidth int
}

// Load reads and decodes the file.
func (l FileLoader) Load(ctx context.Context) (*image.RGBA, error) {
	if l.Path == "" {
		return nil, ErrNoSource
	}
	f, err := os.Open(l.Path)
	if err != nil {
		return nil, fmt.Errorf("open texture: %w", err)
	}
	defer f.Close()

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	img, err := Decode(f, l.MaxWidth)
	if err != nil {
		return nil, fmt.Errorf("texture %s: %w", l.Path, err)
	}
	return img, ctx.Err()
}

// Decode reads an image and returns it as RGBA no wider than maxWidth
// (DefaultMaxWidth when maxWidth <= 0).
func Decode(r io.Reader, maxWidth int) (*image.RGBA, error) {
	src, _, err := image.Decode(r)
	if err != nil {
		return nil, fmt.Errorf("decode: %w", err)
	}
	return Downscale(src, maxWidth), nil
}

// Downscale converts src to RGBA, bilinearly shrinking it to maxWidth while
// keeping the aspect ratio. Images already within bounds are copied.
func Downscale(src image.Image, maxWidth int) *image.RGBA {
	if maxWidth <= 0 {
		maxWidth = DefaultMaxWidth
	}
	b := src.Bounds()
	w, h := b.Dx(), b.Dy()
	if w > maxWidth {
		h = max(1, int(math.Round(float64(h)*float64(maxWidth)/float64(w))))
		w = maxWidth
	}
	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	if w == b.Dx() && h == b.Dy() {
		draw.Draw(dst, dst.Bounds(), src, b.Min, draw.Src)
		return dst
	}
	draw.BiLinear.Scale(dst, dst.Bounds(), src, b, draw.Src, nil)
	return dst
}

// Graticule renders a stand-in equirectangular texture: ocean, a latitude and
// longitude grid every 30 degrees, and brighter equator and prime meridian.
func Graticule(w, h int) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	ocean := color.RGBA{R: 0x0b, G: 0x1e, B: 0x3c, A: 0xff}
	grid := color.RGBA{R: 0x1f, G: 0x4e, B: 0x79, A: 0xff}
	axis := color.RGBA{R: 0x3a, G: 0x86, B: 0xb8, A: 0xff}
	draw.Draw(img, img.Bounds(), &image.Uniform{C: ocean}, image.Point{}, draw.Src)

	for x := 0; x < w; x++ {
		lng := float64(x)/float64(w)*360 - 180
		for y := 0; y < h; y++ {
			lat := 90 - float64(y)/float64(h)*180
			switch {
			case nearLine(lat, 0, h, 180) || nearLine(lng, 0, w, 360):
				img.SetRGBA(x, y, axis)
			case nearGrid(lat, h, 180) || nearGrid(lng, w, 360):
				img.SetRGBA(x, y, grid)
			}
		}
	}
	return img
}

// nearLine reports whether v is within half a pixel of target, given an axis
// of n pixels spanning span degrees.
func nearLine(v, target float64, n int, span float64) bool {
	return math.Abs(v-target) < span/float64(n)/2
}

func nearGrid(v float64, n int, span float64) bool {
	r := math.Mod(math.Abs(v), 30)
	half := span / float64(n) / 2
	return r < half || 30-r < half
}
