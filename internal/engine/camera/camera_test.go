package camera

import (
	"testing"

	"github.com/Faultbox/midgard-lighting/pkg/math"
)

func TestOrbitPosition(t *testing.T) {
	c := NewOrbitCamera()
	c.Center = math.Vec3{X: 1, Y: 2, Z: 3}
	c.Distance = 10
	c.Yaw = 0
	c.Pitch = 0

	p := c.Position()
	if math.Abs(p.X-11) > 1e-4 || math.Abs(p.Y-2) > 1e-4 || math.Abs(p.Z-3) > 1e-4 {
		t.Errorf("position = %+v, want (11, 2, 3)", p)
	}

	c.Pitch = 1.5
	if p := c.Position(); p.Z <= 12 {
		t.Errorf("high pitch should look down from above, z = %v", p.Z)
	}
}

func TestOrbitClamps(t *testing.T) {
	c := NewOrbitCamera()
	c.Orbit(0, 10)
	if c.Pitch != c.MaxPitch {
		t.Errorf("pitch = %v, want %v", c.Pitch, c.MaxPitch)
	}
	c.Orbit(0, -10)
	if c.Pitch != c.MinPitch {
		t.Errorf("pitch = %v, want %v", c.Pitch, c.MinPitch)
	}

	c.Distance = 2
	c.Zoom(0.1)
	if c.Distance != c.MinDistance {
		t.Errorf("distance = %v, want %v", c.Distance, c.MinDistance)
	}
}

func TestFitToBox(t *testing.T) {
	c := NewOrbitCamera()
	box := math.Box{Min: math.Vec3{X: -4, Y: -4, Z: 0}, Max: math.Vec3{X: 4, Y: 4, Z: 2}}
	c.FitToBox(box)

	if c.Center != (math.Vec3{Z: 1}) {
		t.Errorf("center = %+v", c.Center)
	}
	if c.Distance < box.Radius() {
		t.Errorf("distance %v does not clear the box radius %v", c.Distance, box.Radius())
	}
}
