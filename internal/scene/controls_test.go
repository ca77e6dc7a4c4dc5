package scene

import (
	"math"
	"testing"
	"time"

	"github.com/signalsfoundry/threatglobe/internal/render"
	"github.com/signalsfoundry/threatglobe/internal/surface"
)

func TestControlsZoomIsClamped(t *testing.T) {
	c := NewControls(300, 150, 600, 0)
	c.Zoom(50)
	c.Update(time.Second)
	if c.Distance != 150 {
		t.Fatalf("Distance = %v, want 150", c.Distance)
	}
	c.Zoom(-50)
	c.Update(time.Second)
	if c.Distance != 600 {
		t.Fatalf("Distance = %v, want 600", c.Distance)
	}
}

func TestControlsPitchIsClamped(t *testing.T) {
	c := NewControls(300, 150, 600, 0)
	c.Pointer(surface.Event{Pressed: true})
	c.Pointer(surface.Event{Pressed: true, Y: 10000})
	c.Update(time.Second)
	if math.Abs(c.Pitch-maxPitch) > 1e-12 {
		t.Fatalf("Pitch = %v, want %v", c.Pitch, maxPitch)
	}
}

func TestControlsAutoRotatePausesWhileDragging(t *testing.T) {
	c := NewControls(300, 150, 600, 0)
	c.AutoRotate = true
	c.AutoRotateSpeed = 0.5
	c.Update(2 * time.Second)
	if math.Abs(c.Yaw-1) > 1e-12 {
		t.Fatalf("Yaw = %v, want 1", c.Yaw)
	}
	c.Pointer(surface.Event{Pressed: true})
	c.Update(2 * time.Second)
	if math.Abs(c.Yaw-1) > 1e-12 {
		t.Fatalf("Yaw moved while dragging: %v", c.Yaw)
	}
}

func TestControlsDampingEasesTowardTarget(t *testing.T) {
	c := NewControls(300, 150, 600, 0.1)
	c.Zoom(1)
	c.Update(time.Second / 60)
	if got, want := c.Distance, 300-0.1*30; math.Abs(got-want) > 1e-5 {
		t.Fatalf("Distance after one tick = %v, want %v", got, want)
	}
	c.Update(0)
	if got := c.Distance; math.Abs(got-297) > 1e-5 {
		t.Fatalf("zero dt moved the camera: %v", got)
	}
}

func TestControlsApplyOrbitsOrigin(t *testing.T) {
	c := NewControls(200, 150, 600, 0)
	c.Yaw, c.Pitch = math.Pi/2, 0
	cam := render.NewPerspectiveCamera(45, 1, 0.1, 1000)
	c.Apply(cam)
	if math.Abs(cam.Position.X-200) > 1e-9 || math.Abs(cam.Position.Z) > 1e-9 {
		t.Fatalf("Position = %+v, want (200, 0, 0)", cam.Position)
	}
	if cam.Target.Norm() != 0 {
		t.Fatalf("Target = %+v, want origin", cam.Target)
	}
}
