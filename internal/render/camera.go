// Package render draws a scene graph of gpu resources with a CPU rasterizer
// and runs the bloom post-processing chain into an 8-bit canvas.
package render

import (
	"github.com/go-gl/mathgl/mgl64"

	"github.com/signalsfoundry/threatglobe/core"
)

// Camera is a perspective camera looking from Position at Target.
type Camera struct {
	FOV    float64 // vertical field of view, degrees
	Aspect float64
	Near   float64
	Far    float64

	Position core.Vec3
	Target   core.Vec3
	Up       core.Vec3
}

// NewPerspectiveCamera returns a camera at the origin looking down -Z.
func NewPerspectiveCamera(fov, aspect, near, far float64) *Camera {
	return &Camera{
		FOV:      fov,
		Aspect:   aspect,
		Near:     near,
		Far:      far,
		Position: core.Vec3{},
		Target:   core.Vec3{Z: -1},
		Up:       core.Vec3{Y: 1},
	}
}

// SetAspect updates the aspect ratio; non-positive values are ignored.
func (c *Camera) SetAspect(aspect float64) {
	if aspect > 0 {
		c.Aspect = aspect
	}
}

// View returns the world-to-camera matrix.
func (c *Camera) View() mgl64.Mat4 {
	return mgl64.LookAtV(toMgl(c.Position), toMgl(c.Target), toMgl(c.Up))
}

// Projection returns the camera-to-clip matrix.
func (c *Camera) Projection() mgl64.Mat4 {
	return mgl64.Perspective(mgl64.DegToRad(c.FOV), c.Aspect, c.Near, c.Far)
}

// ViewProjection returns Projection * View.
func (c *Camera) ViewProjection() mgl64.Mat4 {
	return c.Projection().Mul4(c.View())
}

func toMgl(v core.Vec3) mgl64.Vec3 { return mgl64.Vec3{v.X, v.Y, v.Z} }

func fromMgl(v mgl64.Vec3) core.Vec3 { return core.Vec3{X: v[0], Y: v[1], Z: v[2]} }
