package core

import (
	"math"
	"testing"
)

const eps = 1e-9

func approxEqual(a, b, tol float64) bool {
	return math.Abs(a-b) <= tol
}

func vecApproxEqual(a, b Vec3, tol float64) bool {
	return approxEqual(a.X, b.X, tol) && approxEqual(a.Y, b.Y, tol) && approxEqual(a.Z, b.Z, tol)
}

func TestProject_DistanceFromOrigin(t *testing.T) {
	for lat := -90.0; lat <= 90; lat += 7.5 {
		for lng := -180.0; lng <= 180; lng += 11.25 {
			for _, elev := range []float64{0, 0.5, 12} {
				p := Project(lat, lng, GlobeRadius, elev)
				if got, want := p.Norm(), GlobeRadius+elev; !approxEqual(got, want, 1e-9) {
					t.Fatalf("|Project(%v, %v, %v, %v)| = %v, want %v", lat, lng, GlobeRadius, elev, got, want)
				}
			}
		}
	}
}

func TestProject_Deterministic(t *testing.T) {
	a := Project(40.7128, -74.006, GlobeRadius, 0)
	b := Project(40.7128, -74.006, GlobeRadius, 0)
	if a != b {
		t.Fatalf("Project not deterministic: %+v != %+v", a, b)
	}
}

func TestProject_Axes(t *testing.T) {
	cases := []struct {
		name     string
		lat, lng float64
		want     Vec3
	}{
		{"north pole", 90, 0, Vec3{Y: 1}},
		{"south pole", -90, 0, Vec3{Y: -1}},
		{"prime meridian", 0, 0, Vec3{X: 1}},
		{"antimeridian", 0, 180, Vec3{X: -1}},
		{"antimeridian west", 0, -180, Vec3{X: -1}},
		{"90 east", 0, 90, Vec3{Z: -1}},
		{"90 west", 0, -90, Vec3{Z: 1}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := Project(tc.lat, tc.lng, 1, 0)
			if !vecApproxEqual(got, tc.want, eps) {
				t.Fatalf("Project(%v, %v) = %+v, want %+v", tc.lat, tc.lng, got, tc.want)
			}
		})
	}
}

func TestProject_NaNPassesThrough(t *testing.T) {
	p := Project(math.NaN(), 0, GlobeRadius, 0)
	if !math.IsNaN(p.X) || !math.IsNaN(p.Y) {
		t.Fatalf("Project(NaN) = %+v, want NaN components", p)
	}
}

func TestProject_OutOfRangeDoesNotPanic(t *testing.T) {
	p := Project(135, 540, GlobeRadius, 0)
	if got := p.Norm(); !approxEqual(got, GlobeRadius, 1e-9) {
		t.Fatalf("out-of-range projection left the sphere: |p| = %v", got)
	}
}

func TestTextureCoord(t *testing.T) {
	u, v := TextureCoord(90, -180)
	if u != 0 || v != 0 {
		t.Fatalf("TextureCoord(90, -180) = (%v, %v), want (0, 0)", u, v)
	}
	u, v = TextureCoord(0, 0)
	if u != 0.5 || v != 0.5 {
		t.Fatalf("TextureCoord(0, 0) = (%v, %v), want (0.5, 0.5)", u, v)
	}
}

func TestVec3Ops(t *testing.T) {
	a := Vec3{1, 2, 3}
	b := Vec3{4, 5, 6}
	if got := a.Dot(b); got != 32 {
		t.Fatalf("Dot = %v, want 32", got)
	}
	if got := a.Cross(b); got != (Vec3{-3, 6, -3}) {
		t.Fatalf("Cross = %+v, want (-3, 6, -3)", got)
	}
	if got := (Vec3{3, 4, 0}).Normalize(); !vecApproxEqual(got, Vec3{0.6, 0.8, 0}, eps) {
		t.Fatalf("Normalize = %+v", got)
	}
	if got := (Vec3{}).Normalize(); got != (Vec3{}) {
		t.Fatalf("Normalize(zero) = %+v, want zero", got)
	}
	if got := a.Lerp(b, 0.5); got != (Vec3{2.5, 3.5, 4.5}) {
		t.Fatalf("Lerp = %+v", got)
	}
	if got := (Vec3{}).DistanceTo(Vec3{3, 4, 0}); got != 5 {
		t.Fatalf("DistanceTo = %v, want 5", got)
	}
}

func TestAnyPerpendicular(t *testing.T) {
	for _, v := range []Vec3{{X: 1}, {Y: 1}, {Z: 1}, {1, 1, 1}, {0, -3, 0.01}} {
		p := anyPerpendicular(v)
		if !approxEqual(p.Norm(), 1, 1e-9) {
			t.Fatalf("anyPerpendicular(%+v) not unit: %+v", v, p)
		}
		if !approxEqual(p.Dot(v), 0, 1e-9) {
			t.Fatalf("anyPerpendicular(%+v) = %+v is not perpendicular", v, p)
		}
	}
}
