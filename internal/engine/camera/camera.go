// Package camera provides the orbit camera used by the scene viewer.
package camera

import (
	"github.com/Faultbox/midgard-lighting/pkg/math"
)

// OrbitCamera orbits around a center point. Z is up.
type OrbitCamera struct {
	Center math.Vec3

	// Spherical coordinates
	Distance float32
	Pitch    float32 // elevation above the XY plane, radians
	Yaw      float32 // angle from +X around Z, radians

	// Constraints
	MinDistance float32
	MaxDistance float32
	MinPitch    float32
	MaxPitch    float32

	FovY float32 // degrees
}

// NewOrbitCamera creates a new orbit camera with default settings.
func NewOrbitCamera() *OrbitCamera {
	return &OrbitCamera{
		Distance:    20,
		Pitch:       0.6,
		Yaw:         -1.57,
		MinDistance: 1,
		MaxDistance: 5000,
		MinPitch:    0.05,
		MaxPitch:    1.5,
		FovY:        45,
	}
}

// Position returns the camera position in world space.
func (c *OrbitCamera) Position() math.Vec3 {
	cp := math.Cos(c.Pitch)
	return math.Vec3{
		X: c.Center.X + c.Distance*cp*math.Cos(c.Yaw),
		Y: c.Center.Y + c.Distance*cp*math.Sin(c.Yaw),
		Z: c.Center.Z + c.Distance*math.Sin(c.Pitch),
	}
}

// ViewMatrix returns the view matrix for this camera.
func (c *OrbitCamera) ViewMatrix() math.Mat4 {
	return math.LookAt(c.Position(), c.Center, math.Vec3{Z: 1})
}

// ProjectionMatrix returns a perspective projection whose far plane keeps
// the whole orbit in view.
func (c *OrbitCamera) ProjectionMatrix(aspect float32) math.Mat4 {
	return math.Perspective(c.FovY*3.14159265/180, aspect, c.Distance*0.01, c.Distance*10)
}

// Orbit rotates the camera. Pitch is clamped to the configured range.
func (c *OrbitCamera) Orbit(dYaw, dPitch float32) {
	c.Yaw += dYaw
	c.Pitch = math.Clamp(c.Pitch+dPitch, c.MinPitch, c.MaxPitch)
}

// Zoom scales the distance by factor, so factor < 1 moves closer.
func (c *OrbitCamera) Zoom(factor float32) {
	c.Distance = math.Clamp(c.Distance*factor, c.MinDistance, c.MaxDistance)
}

// FitToBox centers the camera on box at a distance that shows all of it.
func (c *OrbitCamera) FitToBox(box math.Box) {
	c.Center = box.Center()
	c.Distance = math.Clamp(box.Radius()*2.5, c.MinDistance, c.MaxDistance)
}
