package render

import (
	"github.com/go-gl/mathgl/mgl64"

	"github.com/signalsfoundry/threatglobe/core"
	"github.com/signalsfoundry/threatglobe/internal/gpu"
)

// Node is a scene-graph element. A node with both Geometry and Material is
// drawn; any node may carry children that inherit its transform.
type Node struct {
	Name     string
	Geometry *gpu.Geometry
	Material *gpu.Material
	Visible  bool

	Position core.Vec3
	Rotation mgl64.Mat4 // orientation; zero value means identity
	Scale    core.Vec3  // zero value means (1, 1, 1)

	// RenderOrder sorts transparent nodes; lower draws first.
	RenderOrder int

	Children []*Node
}

// NewNode returns a visible node with identity transform.
func NewNode(name string) *Node {
	return &Node{Name: name, Visible: true, Rotation: mgl64.Ident4(), Scale: core.Vec3{X: 1, Y: 1, Z: 1}}
}

// NewMesh returns a visible drawable node.
func NewMesh(name string, g *gpu.Geometry, m *gpu.Material) *Node {
	n := NewNode(name)
	n.Geometry = g
	n.Material = m
	return n
}

// Add appends children.
func (n *Node) Add(children ...*Node) {
	n.Children = append(n.Children, children...)
}

// Clear drops every child. It does not dispose their resources.
func (n *Node) Clear() {
	n.Children = nil
}

// Local returns Translate * Rotation * Scale.
func (n *Node) Local() mgl64.Mat4 {
	rot := n.Rotation
	if rot == (mgl64.Mat4{}) {
		rot = mgl64.Ident4()
	}
	s := n.Scale
	if s == (core.Vec3{}) {
		s = core.Vec3{X: 1, Y: 1, Z: 1}
	}
	return mgl64.Translate3D(n.Position.X, n.Position.Y, n.Position.Z).
		Mul4(rot).
		Mul4(mgl64.Scale3D(s.X, s.Y, s.Z))
}

// Walk visits n and its visible descendants depth first with their world
// matrices.
func (n *Node) Walk(parent mgl64.Mat4, fn func(*Node, mgl64.Mat4)) {
	if !n.Visible {
		return
	}
	world := parent.Mul4(n.Local())
	fn(n, world)
	for _, c := range n.Children {
		c.Walk(world, fn)
	}
}

// Count returns the number of drawable descendants of n, including n.
func (n *Node) Count() int {
	c := 0
	if n.Geometry != nil && n.Material != nil {
		c++
	}
	for _, ch := range n.Children {
		c += ch.Count()
	}
	return c
}

// Basis builds a rotation matrix whose columns are x, y and z.
func Basis(x, y, z core.Vec3) mgl64.Mat4 {
	return mgl64.Mat4FromCols(
		mgl64.Vec4{x.X, x.Y, x.Z, 0},
		mgl64.Vec4{y.X, y.Y, y.Z, 0},
		mgl64.Vec4{z.X, z.Y, z.Z, 0},
		mgl64.Vec4{0, 0, 0, 1},
	)
}

// DirectionalLight shines along -Direction (Direction points toward the
// light).
type DirectionalLight struct {
	Direction core.Vec3
	Color     gpu.Color
	Intensity float64
}

// Scene is the root of a drawable graph plus its lighting.
type Scene struct {
	Root       *Node
	Background gpu.Color
	Ambient    gpu.Color
	Sun        DirectionalLight
}

// NewScene returns an empty scene with a dark background.
func NewScene() *Scene {
	return &Scene{
		Root:       NewNode("root"),
		Background: gpu.Hex(0x000008),
		Ambient:    gpu.Color{R: 0.35, G: 0.35, B: 0.4},
		Sun: DirectionalLight{
			Direction: core.Vec3{X: 1, Y: 0.6, Z: 1}.Normalize(),
			Color:     gpu.Color{R: 1, G: 1, B: 1},
			Intensity: 0.9,
		},
	}
}
