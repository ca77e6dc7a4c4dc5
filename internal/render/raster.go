package render

import (
	"errors"
	"fmt"
	"math"
	"sort"

	"github.com/go-gl/mathgl/mgl64"

	"github.com/signalsfoundry/threatglobe/core"
	"github.com/signalsfoundry/threatglobe/internal/gpu"
)

const minW = 1e-6

// Renderer rasterizes a Scene into a RenderTarget. Front faces wind
// counter-clockwise in normalized device coordinates.
type Renderer struct {
	dev *gpu.Device
}

// NewRenderer returns a renderer drawing resources owned by dev.
func NewRenderer(dev *gpu.Device) *Renderer {
	return &Renderer{dev: dev}
}

type drawItem struct {
	node  *Node
	world mgl64.Mat4
	seq   int
}

type vertex struct {
	ndc    mgl64.Vec3
	invW   float64
	sx, sy float64
	world  core.Vec3
	normal core.Vec3
	uv     [2]float64
	ok     bool
}

// Render clears target and draws every visible drawable node: opaque nodes
// in graph order, then transparent nodes by RenderOrder. A node whose
// resources fail to bind is skipped; the remaining nodes are still drawn and
// the failures are joined into the returned error.
func (r *Renderer) Render(s *Scene, cam *Camera, target *gpu.RenderTarget) error {
	if target.Disposed() {
		return fmt.Errorf("render target %d: %w", target.ID(), gpu.ErrDisposed)
	}
	target.Clear(s.Background)

	var items []drawItem
	s.Root.Walk(mgl64.Ident4(), func(n *Node, world mgl64.Mat4) {
		if n.Geometry != nil && n.Material != nil {
			items = append(items, drawItem{node: n, world: world, seq: len(items)})
		}
	})
	sort.SliceStable(items, func(i, j int) bool {
		a, b := items[i].node.Material, items[j].node.Material
		if a.Transparent != b.Transparent {
			return !a.Transparent
		}
		if a.Transparent {
			return items[i].node.RenderOrder < items[j].node.RenderOrder
		}
		return false
	})

	vp := cam.ViewProjection()
	light := lighting{eye: cam.Position, ambient: s.Ambient, sun: s.Sun}

	var errs []error
	for _, it := range items {
		g, m := it.node.Geometry, it.node.Material
		res := []gpu.Resource{g, m}
		if m.Map != nil {
			res = append(res, m.Map)
		}
		if err := r.dev.Bind(res...); err != nil {
			errs = append(errs, fmt.Errorf("draw %q: %w", it.node.Name, err))
			continue
		}

		verts := transform(&g.Mesh, it.world, vp, target.Width, target.Height)
		switch g.Mesh.Primitive {
		case core.Triangles:
			drawTriangles(target, &g.Mesh, verts, m, light)
		case core.LineStrip:
			drawLineStrip(target, verts, m, light)
		case core.Points:
			drawPoints(target, verts, m, light)
		}
	}
	return errors.Join(errs...)
}

func transform(mesh *core.Mesh, world, vp mgl64.Mat4, w, h int) []vertex {
	normalMat := world.Mat3().Inv().Transpose()
	mvp := vp.Mul4(world)

	out := make([]vertex, len(mesh.Positions))
	for i, p := range mesh.Positions {
		clip := mvp.Mul4x1(mgl64.Vec4{p.X, p.Y, p.Z, 1})
		wp := world.Mul4x1(mgl64.Vec4{p.X, p.Y, p.Z, 1})
		v := vertex{world: core.Vec3{X: wp[0], Y: wp[1], Z: wp[2]}}
		if i < len(mesh.Normals) {
			v.normal = fromMgl(normalMat.Mul3x1(toMgl(mesh.Normals[i])))
		}
		if i < len(mesh.UVs) {
			v.uv = mesh.UVs[i]
		}
		if clip[3] > minW {
			v.invW = 1 / clip[3]
			v.ndc = mgl64.Vec3{clip[0] * v.invW, clip[1] * v.invW, clip[2] * v.invW}
			v.sx = (v.ndc[0] + 1) * 0.5 * float64(w)
			v.sy = (1 - v.ndc[1]) * 0.5 * float64(h)
			v.ok = v.ndc[2] >= -1
		}
		out[i] = v
	}
	return out
}

func edge(ax, ay, bx, by, px, py float64) float64 {
	return (bx-ax)*(py-ay) - (by-ay)*(px-ax)
}

func drawTriangles(rt *gpu.RenderTarget, mesh *core.Mesh, verts []vertex, m *gpu.Material, l lighting) {
	for t := 0; t+2 < len(mesh.Indices); t += 3 {
		v0, v1, v2 := verts[mesh.Indices[t]], verts[mesh.Indices[t+1]], verts[mesh.Indices[t+2]]
		if !v0.ok || !v1.ok || !v2.ok {
			continue
		}

		ndcArea := (v1.ndc[0]-v0.ndc[0])*(v2.ndc[1]-v0.ndc[1]) - (v2.ndc[0]-v0.ndc[0])*(v1.ndc[1]-v0.ndc[1])
		if ndcArea == 0 {
			continue
		}
		front := ndcArea > 0
		switch m.Side {
		case gpu.FrontSide:
			if !front {
				continue
			}
		case gpu.BackSide:
			if front {
				continue
			}
		}

		area := edge(v0.sx, v0.sy, v1.sx, v1.sy, v2.sx, v2.sy)
		minX := int(math.Max(0, math.Floor(math.Min(v0.sx, math.Min(v1.sx, v2.sx)))))
		maxX := int(math.Min(float64(rt.Width-1), math.Ceil(math.Max(v0.sx, math.Max(v1.sx, v2.sx)))))
		minY := int(math.Max(0, math.Floor(math.Min(v0.sy, math.Min(v1.sy, v2.sy)))))
		maxY := int(math.Min(float64(rt.Height-1), math.Ceil(math.Max(v0.sy, math.Max(v1.sy, v2.sy)))))

		for y := minY; y <= maxY; y++ {
			py := float64(y) + 0.5
			for x := minX; x <= maxX; x++ {
				px := float64(x) + 0.5
				w0 := edge(v1.sx, v1.sy, v2.sx, v2.sy, px, py) / area
				w1 := edge(v2.sx, v2.sy, v0.sx, v0.sy, px, py) / area
				w2 := edge(v0.sx, v0.sy, v1.sx, v1.sy, px, py) / area
				if w0 < 0 || w1 < 0 || w2 < 0 {
					continue
				}

				z := w0*v0.ndc[2] + w1*v1.ndc[2] + w2*v2.ndc[2]
				if z > 1 {
					continue
				}
				idx := y*rt.Width + x
				if m.DepthTest && z >= rt.Depth[idx] {
					continue
				}

				// Perspective-correct weights.
				iw := w0*v0.invW + w1*v1.invW + w2*v2.invW
				p0, p1, p2 := w0*v0.invW/iw, w1*v1.invW/iw, w2*v2.invW/iw
				f := fragment{
					world:  v0.world.Scale(p0).Add(v1.world.Scale(p1)).Add(v2.world.Scale(p2)),
					normal: v0.normal.Scale(p0).Add(v1.normal.Scale(p1)).Add(v2.normal.Scale(p2)),
					uv: [2]float64{
						v0.uv[0]*p0 + v1.uv[0]*p1 + v2.uv[0]*p2,
						v0.uv[1]*p0 + v1.uv[1]*p1 + v2.uv[1]*p2,
					},
				}
				c, a := shade(m, f, l)
				rt.Color[idx] = blend(rt.Color[idx], c, a, m.Blending)
				if m.DepthWrite {
					rt.Depth[idx] = z
				}
			}
		}
	}
}

func drawLineStrip(rt *gpu.RenderTarget, verts []vertex, m *gpu.Material, l lighting) {
	for i := 0; i+1 < len(verts); i++ {
		a, b := verts[i], verts[i+1]
		if !a.ok || !b.ok {
			continue
		}
		steps := int(math.Ceil(math.Max(math.Abs(b.sx-a.sx), math.Abs(b.sy-a.sy))))
		if steps < 1 {
			steps = 1
		}
		for s := 0; s <= steps; s++ {
			// The shared endpoint is drawn by the next segment.
			if s == steps && i+2 < len(verts) {
				break
			}
			t := float64(s) / float64(steps)
			x := int(math.Floor(a.sx + (b.sx-a.sx)*t))
			y := int(math.Floor(a.sy + (b.sy-a.sy)*t))
			z := a.ndc[2] + (b.ndc[2]-a.ndc[2])*t
			plot(rt, x, y, z, m, fragment{world: a.world.Lerp(b.world, t)}, l)
		}
	}
}

func drawPoints(rt *gpu.RenderTarget, verts []vertex, m *gpu.Material, l lighting) {
	size := int(math.Max(1, math.Round(m.PointSize)))
	half := size / 2
	for _, v := range verts {
		if !v.ok || v.ndc[2] > 1 {
			continue
		}
		cx, cy := int(math.Floor(v.sx)), int(math.Floor(v.sy))
		for dy := 0; dy < size; dy++ {
			for dx := 0; dx < size; dx++ {
				plot(rt, cx-half+dx, cy-half+dy, v.ndc[2], m, fragment{world: v.world}, l)
			}
		}
	}
}

func plot(rt *gpu.RenderTarget, x, y int, z float64, m *gpu.Material, f fragment, l lighting) {
	if x < 0 || y < 0 || x >= rt.Width || y >= rt.Height || z > 1 {
		return
	}
	idx := y*rt.Width + x
	if m.DepthTest && z >= rt.Depth[idx] {
		return
	}
	c, a := shade(m, f, l)
	rt.Color[idx] = blend(rt.Color[idx], c, a, m.Blending)
	if m.DepthWrite {
		rt.Depth[idx] = z
	}
}
