package core

import (
	"math/rand"
	"testing"
)

func TestSphereMesh_OutwardWinding(t *testing.T) {
	m := SphereMesh(GlobeRadius, 24, 12)
	if got, want := m.VertexCount(), 25*13; got != want {
		t.Fatalf("VertexCount = %d, want %d", got, want)
	}
	// Pole rows contribute one triangle per column, others two.
	if got, want := m.TriangleCount(), 24*12*2-2*24; got != want {
		t.Fatalf("TriangleCount = %d, want %d", got, want)
	}
	for f := 0; f < m.TriangleCount(); f++ {
		p0 := m.Positions[m.Indices[3*f]]
		p1 := m.Positions[m.Indices[3*f+1]]
		p2 := m.Positions[m.Indices[3*f+2]]
		n := p1.Sub(p0).Cross(p2.Sub(p0))
		centroid := p0.Add(p1).Add(p2).Scale(1.0 / 3)
		if n.Dot(centroid) <= 0 {
			t.Fatalf("face %d winds inward", f)
		}
	}
}

func TestSphereMesh_UVsMatchProjection(t *testing.T) {
	m := SphereMesh(1, 8, 4)
	for i, p := range m.Positions {
		uv := m.UVs[i]
		lat := 90 - uv[1]*180
		lng := uv[0]*360 - 180
		if want := Project(lat, lng, 1, 0); !vecApproxEqual(p, want, 1e-9) {
			t.Fatalf("vertex %d at %+v, uv maps to %+v", i, p, want)
		}
	}
}

func TestConeMesh_ApexAndWinding(t *testing.T) {
	m := ConeMesh(1, 5, 8)
	if got := m.TriangleCount(); got != 16 {
		t.Fatalf("TriangleCount = %d, want 16", got)
	}
	var top float64
	for _, p := range m.Positions {
		if p.Y > top {
			top = p.Y
		}
	}
	if top != 5 {
		t.Fatalf("apex height = %v, want 5", top)
	}
	// Side faces point away from the axis, cap faces point down.
	for f := 0; f < m.TriangleCount(); f++ {
		n := m.Normals[3*f]
		p0 := m.Positions[3*f]
		p1 := m.Positions[3*f+1]
		p2 := m.Positions[3*f+2]
		c := p0.Add(p1).Add(p2).Scale(1.0 / 3)
		if f%2 == 0 {
			if radial := (Vec3{X: c.X, Z: c.Z}); n.Dot(radial) <= 0 {
				t.Fatalf("side face %d points inward", f)
			}
		} else if n.Y >= 0 {
			t.Fatalf("cap face %d normal %+v does not point down", f, n)
		}
	}
}

func TestSpikeFrame_Orthonormal(t *testing.T) {
	spikes := BuildSpikes(nil, DefaultSpikeConfig(), newRand())
	if len(spikes) != 0 {
		t.Fatalf("BuildSpikes(nil) = %d spikes", len(spikes))
	}
	for _, pos := range []Vec3{Project(10, 20, GlobeRadius, 0), Project(90, 0, GlobeRadius, 0), Project(-45, 170, GlobeRadius, 0)} {
		s := Spike{Position: pos, Normal: pos.Normalize()}
		x, y, z := SpikeFrame(s)
		for _, v := range []Vec3{x, y, z} {
			if !approxEqual(v.Norm(), 1, 1e-9) {
				t.Fatalf("basis vector %+v not unit", v)
			}
		}
		if !approxEqual(x.Dot(y), 0, 1e-9) || !approxEqual(y.Dot(z), 0, 1e-9) || !approxEqual(x.Dot(z), 0, 1e-9) {
			t.Fatalf("basis not orthogonal: %+v %+v %+v", x, y, z)
		}
		if !vecApproxEqual(x.Cross(y), z, 1e-9) {
			t.Fatalf("basis not right-handed")
		}
		if !vecApproxEqual(y, s.Normal, 1e-12) {
			t.Fatalf("frame Y %+v != spike normal %+v", y, s.Normal)
		}
	}
}

func TestArcMesh_CopiesPoints(t *testing.T) {
	arc := Arc{Points: []Vec3{{1, 0, 0}, {0, 1, 0}}}
	m := ArcMesh(arc)
	m.Positions[0] = Vec3{}
	if arc.Points[0] != (Vec3{1, 0, 0}) {
		t.Fatalf("ArcMesh aliases arc points")
	}
	if m.Primitive != LineStrip {
		t.Fatalf("Primitive = %v, want line_strip", m.Primitive)
	}
}

func TestStarfieldMesh_Shell(t *testing.T) {
	m := StarfieldMesh(rand.New(rand.NewSource(1)), 500, 600, 900)
	if got := m.VertexCount(); got != 500 {
		t.Fatalf("VertexCount = %d, want 500", got)
	}
	for i, p := range m.Positions {
		if d := p.Norm(); d < 600-1e-9 || d >= 900 {
			t.Fatalf("star %d at distance %v outside [600, 900)", i, d)
		}
	}
}

func TestStarfieldMesh_NonPositiveCount(t *testing.T) {
	for _, n := range []int{0, -1, -500} {
		m := StarfieldMesh(rand.New(rand.NewSource(1)), n, 600, 900)
		if got := m.VertexCount(); got != 0 {
			t.Fatalf("StarfieldMesh(%d) VertexCount = %d, want 0", n, got)
		}
	}
}
