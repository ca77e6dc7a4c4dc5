package asset

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"
)

func writePNG(t *testing.T, w, h int) string {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetRGBA(x, y, color.RGBA{R: 200, G: 10, B: 10, A: 255})
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("encode: %v", err)
	}
	path := filepath.Join(t.TempDir(), "earth.png")
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	return path
}

func TestFileLoaderDownscales(t *testing.T) {
	path := writePNG(t, 400, 200)
	img, err := FileLoader{Path: path, MaxWidth: 100}.Load(context.Background())
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if b := img.Bounds(); b.Dx() != 100 || b.Dy() != 50 {
		t.Fatalf("bounds = %v, want 100x50", b)
	}
	if got := img.RGBAAt(50, 25); got.R < 190 || got.G > 20 {
		t.Fatalf("colour lost in scaling: %v", got)
	}
}

func TestFileLoaderKeepsSmallImages(t *testing.T) {
	path := writePNG(t, 64, 32)
	img, err := FileLoader{Path: path}.Load(context.Background())
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if b := img.Bounds(); b.Dx() != 64 || b.Dy() != 32 {
		t.Fatalf("bounds = %v, want 64x32", b)
	}
}

func TestFileLoaderErrors(t *testing.T) {
	if _, err := (FileLoader{}).Load(context.Background()); !errors.Is(err, ErrNoSource) {
		t.Fatalf("empty path error = %v, want ErrNoSource", err)
	}
	if _, err := (FileLoader{Path: filepath.Join(t.TempDir(), "missing.png")}).Load(context.Background()); !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("missing file error = %v, want ErrNotExist", err)
	}

	bad := filepath.Join(t.TempDir(), "bad.png")
	if err := os.WriteFile(bad, []byte("not an image"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, err := (FileLoader{Path: bad}).Load(context.Background()); err == nil {
		t.Fatalf("expected decode error")
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := (FileLoader{Path: writePNG(t, 4, 2)}).Load(ctx); !errors.Is(err, context.Canceled) {
		t.Fatalf("cancelled load error = %v, want context.Canceled", err)
	}
}

func TestGraticuleMarksEquator(t *testing.T) {
	img := Graticule(360, 180)
	equator := img.RGBAAt(10, 90)
	ocean := img.RGBAAt(10, 100)
	if equator == ocean {
		t.Fatalf("equator row not highlighted: %v", equator)
	}
	if meridian := img.RGBAAt(180, 100); meridian != equator {
		t.Fatalf("prime meridian = %v, want axis colour %v", meridian, equator)
	}
}
