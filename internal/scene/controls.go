package scene

import (
	"math"
	"time"

	"github.com/signalsfoundry/threatglobe/core"
	"github.com/signalsfoundry/threatglobe/internal/render"
	"github.com/signalsfoundry/threatglobe/internal/surface"
)

const maxPitch = math.Pi/2 - 0.05

// Controls is an orbit camera: yaw and pitch around the origin at a distance,
// eased toward their targets with exponential damping.
type Controls struct {
	Yaw, Pitch, Distance float64

	MinDistance, MaxDistance float64
	Damping                  float64 // fraction of the remaining gap closed per 1/60 s
	AutoRotate               bool
	AutoRotateSpeed          float64 // radians per second
	RotateSpeed              float64 // radians per pixel dragged
	ZoomStep                 float64 // distance factor per wheel step

	targetYaw, targetPitch, targetDistance float64

	dragging     bool
	lastX, lastY int
}

// NewControls returns controls at distance looking at longitude -90.
func NewControls(distance, minDistance, maxDistance, damping float64) *Controls {
	c := &Controls{
		MinDistance: minDistance,
		MaxDistance: maxDistance,
		Damping:     damping,
		RotateSpeed: 0.01,
		ZoomStep:    0.9,
	}
	d := c.clampDistance(distance)
	c.Distance, c.targetDistance = d, d
	return c
}

// Pointer applies a drag or wheel event.
func (c *Controls) Pointer(ev surface.Event) {
	if ev.Wheel != 0 {
		c.Zoom(ev.Wheel)
	}
	if !ev.Pressed {
		c.dragging = false
		return
	}
	if c.dragging {
		dx, dy := ev.X-c.lastX, ev.Y-c.lastY
		c.targetYaw -= float64(dx) * c.RotateSpeed
		c.targetPitch = clamp(c.targetPitch+float64(dy)*c.RotateSpeed, -maxPitch, maxPitch)
	}
	c.dragging = true
	c.lastX, c.lastY = ev.X, ev.Y
}

// Zoom moves the camera steps wheel notches closer (positive) or farther.
func (c *Controls) Zoom(steps int) {
	c.targetDistance = c.clampDistance(c.targetDistance * math.Pow(c.ZoomStep, float64(steps)))
}

// Update advances auto-rotation and damping by dt.
func (c *Controls) Update(dt time.Duration) {
	sec := dt.Seconds()
	if sec <= 0 {
		return
	}
	if c.AutoRotate && !c.dragging {
		c.targetYaw += c.AutoRotateSpeed * sec
	}
	k := 1.0
	if c.Damping > 0 {
		k = 1 - math.Pow(1-c.Damping, sec*60)
	}
	c.Yaw += (c.targetYaw - c.Yaw) * k
	c.Pitch += (c.targetPitch - c.Pitch) * k
	c.Distance += (c.targetDistance - c.Distance) * k
}

// Apply positions cam on the orbit looking at the origin.
func (c *Controls) Apply(cam *render.Camera) {
	cp := math.Cos(c.Pitch)
	cam.Position = core.Vec3{
		X: c.Distance * cp * math.Sin(c.Yaw),
		Y: c.Distance * math.Sin(c.Pitch),
		Z: c.Distance * cp * math.Cos(c.Yaw),
	}
	cam.Target = core.Vec3{}
	cam.Up = core.Vec3{Y: 1}
}

func (c *Controls) clampDistance(d float64) float64 {
	return clamp(d, c.MinDistance, c.MaxDistance)
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}
