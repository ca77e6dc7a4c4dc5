package core

import (
	"math"
	"math/rand"
)

// Primitive selects how a Mesh's vertices are assembled.
type Primitive uint8

const (
	// Triangles draws indexed triangles, three indices per face.
	Triangles Primitive = iota
	// LineStrip joins consecutive positions with line segments.
	LineStrip
	// Points draws every position as a single point.
	Points
)

func (p Primitive) String() string {
	switch p {
	case Triangles:
		return "triangles"
	case LineStrip:
		return "line_strip"
	case Points:
		return "points"
	default:
		return "unknown"
	}
}

// Mesh is CPU-side vertex data produced by the procedural generators below.
// Triangle faces wind counter-clockwise when seen from the side their normal
// points to.
type Mesh struct {
	Primitive Primitive
	Positions []Vec3
	Normals   []Vec3       // optional
	UVs       [][2]float64 // optional
	Indices   []uint32     // Triangles only
}

// VertexCount returns the number of vertices.
func (m *Mesh) VertexCount() int { return len(m.Positions) }

// TriangleCount returns the number of triangle faces, or 0 for non-triangle
// primitives.
func (m *Mesh) TriangleCount() int {
	if m.Primitive != Triangles {
		return 0
	}
	return len(m.Indices) / 3
}

// SphereMesh builds a UV sphere whose vertices are placed by Project and
// textured by TextureCoord, so an equirectangular image lines up with the
// attack geometry.
func SphereMesh(radius float64, widthSegments, heightSegments int) Mesh {
	if widthSegments < 3 {
		widthSegments = 3
	}
	if heightSegments < 2 {
		heightSegments = 2
	}
	cols := widthSegments + 1
	n := cols * (heightSegments + 1)
	m := Mesh{
		Primitive: Triangles,
		Positions: make([]Vec3, 0, n),
		Normals:   make([]Vec3, 0, n),
		UVs:       make([][2]float64, 0, n),
		Indices:   make([]uint32, 0, widthSegments*heightSegments*6),
	}

	for iy := 0; iy <= heightSegments; iy++ {
		lat := 90 - 180*float64(iy)/float64(heightSegments)
		for ix := 0; ix <= widthSegments; ix++ {
			lng := -180 + 360*float64(ix)/float64(widthSegments)
			p := Project(lat, lng, radius, 0)
			u, v := TextureCoord(lat, lng)
			m.Positions = append(m.Positions, p)
			m.Normals = append(m.Normals, p.Normalize())
			m.UVs = append(m.UVs, [2]float64{u, v})
		}
	}

	for iy := 0; iy < heightSegments; iy++ {
		for ix := 0; ix < widthSegments; ix++ {
			a := uint32(iy*cols + ix)
			b := a + uint32(cols)
			c := b + 1
			d := a + 1
			if iy != 0 {
				m.Indices = append(m.Indices, a, b, d)
			}
			if iy != heightSegments-1 {
				m.Indices = append(m.Indices, b, c, d)
			}
		}
	}
	return m
}

// ConeMesh builds a flat-shaded cone in local space: base centred at the
// origin on the XZ plane, apex at (0, height, 0).
func ConeMesh(radius, height float64, segments int) Mesh {
	if segments < 3 {
		segments = 3
	}
	apex := Vec3{Y: height}
	ring := make([]Vec3, segments+1)
	for i := 0; i <= segments; i++ {
		a := 2 * math.Pi * float64(i) / float64(segments)
		ring[i] = Vec3{X: radius * math.Cos(a), Z: -radius * math.Sin(a)}
	}

	m := Mesh{Primitive: Triangles}
	face := func(p0, p1, p2 Vec3) {
		n := p1.Sub(p0).Cross(p2.Sub(p0)).Normalize()
		base := uint32(len(m.Positions))
		m.Positions = append(m.Positions, p0, p1, p2)
		m.Normals = append(m.Normals, n, n, n)
		m.Indices = append(m.Indices, base, base+1, base+2)
	}
	for i := 0; i < segments; i++ {
		face(ring[i], ring[i+1], apex)
		face(Vec3{}, ring[i+1], ring[i])
	}
	return m
}

// SpikeFrame returns a right-handed orthonormal basis whose Y axis is the
// spike's outward normal. Placing a ConeMesh in this frame at the spike's
// position stands it upright on the globe.
func SpikeFrame(s Spike) (x, y, z Vec3) {
	y = s.Normal
	if y.Norm() == 0 {
		y = s.Position.Normalize()
	}
	x = anyPerpendicular(y)
	z = x.Cross(y)
	return x, y, z
}

// ArcMesh turns a sampled arc into a line strip.
func ArcMesh(a Arc) Mesh {
	pts := make([]Vec3, len(a.Points))
	copy(pts, a.Points)
	return Mesh{Primitive: LineStrip, Positions: pts}
}

// StarfieldMesh scatters count points uniformly over directions at a random
// distance in [inner, outer). A non-positive count yields an empty mesh.
func StarfieldMesh(rng *rand.Rand, count int, inner, outer float64) Mesh {
	if count < 0 {
		count = 0
	}
	m := Mesh{Primitive: Points, Positions: make([]Vec3, 0, count)}
	for i := 0; i < count; i++ {
		// Uniform on the sphere: z uniform in [-1,1], azimuth uniform.
		z := rng.Float64()*2 - 1
		az := rng.Float64() * 2 * math.Pi
		r := math.Sqrt(1 - z*z)
		dist := inner + rng.Float64()*(outer-inner)
		m.Positions = append(m.Positions, Vec3{X: r * math.Cos(az), Y: z, Z: r * math.Sin(az)}.Scale(dist))
	}
	return m
}
