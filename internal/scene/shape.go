package scene

import (
	"github.com/google/uuid"

	"github.com/Faultbox/midgard-lighting/pkg/math"
)

var unitBox = math.Box{
	Min: math.Vec3{X: -0.5, Y: -0.5, Z: -0.5},
	Max: math.Vec3{X: 0.5, Y: 0.5, Z: 0.5},
}

// boxFaces index Box.Corners, counter-clockwise seen from outside.
var boxFaces = [6][4]int{
	{0, 2, 3, 1}, {4, 5, 7, 6}, {0, 1, 5, 4},
	{2, 6, 7, 3}, {0, 4, 6, 2}, {1, 3, 7, 5},
}

// Shape is a moving box-shaped object that casts dynamic shadows.
type Shape struct {
	ID    uuid.UUID
	Name  string
	Zones []int32

	// Mesh is optional object-space geometry inside the unit box; a plain
	// box is used when empty.
	Mesh []math.Vec3

	pos   math.Vec3
	size  math.Vec3
	yaw   float32
	dirty bool
}

// NewShape places a shape of the given size with its center at pos.
func NewShape(name string, pos, size math.Vec3) *Shape {
	return &Shape{ID: uuid.New(), Name: name, Zones: []int32{OutdoorZone}, pos: pos, size: size, dirty: true}
}

// Position returns the shape's center.
func (s *Shape) Position() math.Vec3 { return s.pos }

// SetPosition moves the shape and marks its shadow dirty.
func (s *Shape) SetPosition(p math.Vec3) {
	if p != s.pos {
		s.pos = p
		s.dirty = true
	}
}

// SetYaw rotates the shape around Z, in degrees.
func (s *Shape) SetYaw(deg float32) {
	if deg != s.yaw {
		s.yaw = deg
		s.dirty = true
	}
}

func (s *Shape) CurrentZones() []int32 { return s.Zones }
func (s *Shape) ShapeBounds() math.Box { return unitBox }
func (s *Shape) ShadowDirty() bool     { return s.dirty }
func (s *Shape) ClearShadowDirty()     { s.dirty = false }

func (s *Shape) RenderTransform() math.Mat4 {
	t := math.Translate(s.pos.X, s.pos.Y, s.pos.Z)
	r := math.RotateZ(math.DegToRad(s.yaw))
	return t.Mul(r).Mul(math.Scale(s.size.X, s.size.Y, s.size.Z))
}

func (s *Shape) WorldBox() math.Box       { return unitBox.Transform(s.RenderTransform()) }
func (s *Shape) WorldSphere() math.Sphere { return s.WorldBox().Sphere() }

func (s *Shape) Triangles() []math.Vec3 {
	if len(s.Mesh) > 0 {
		return s.Mesh
	}
	k := unitBox.Corners()
	out := make([]math.Vec3, 0, 36)
	for _, f := range boxFaces {
		out = append(out, k[f[0]], k[f[1]], k[f[2]], k[f[0]], k[f[2]], k[f[3]])
	}
	return out
}
