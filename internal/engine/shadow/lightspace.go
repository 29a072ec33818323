package shadow

import (
	"github.com/Faultbox/midgard-lighting/pkg/math"
)

// LightSpace holds the transforms between world space and a projector's
// light space. Light-space Y runs along the light vector; X and Z span the
// shadow texture.
type LightSpace struct {
	LightToWorld math.Mat4
	WorldToLight math.Mat4
	// LightProjToWorld is LightToWorld anchored at the projection origin.
	LightProjToWorld math.Mat4
	WorldToLightProj math.Mat4
}

// lightBasis returns the texture axes s and t for light vector v, chosen so
// neither is parallel to v.
func lightBasis(v math.Vec3) (s, t math.Vec3) {
	if math.Abs(v.X) > math.Abs(v.Z) {
		t = v.Cross(math.Vec3{Z: 1}).Normalize()
	} else {
		t = v.Cross(math.Vec3{X: 1}).Normalize()
	}
	s = v.Cross(t).Normalize()
	return s, t
}

func fromColumns(x, y, z, pos math.Vec3) math.Mat4 {
	return math.Mat4{
		x.X, x.Y, x.Z, 0,
		y.X, y.Y, y.Z, 0,
		z.X, z.Y, z.Z, 0,
		pos.X, pos.Y, pos.Z, 1,
	}
}

// NewLightSpace builds the light space for light vector v centered on the
// object's render position, plus the projection frame at projPos.
func NewLightSpace(v, renderPos, projPos math.Vec3) LightSpace {
	v = v.Normalize()
	s, t := lightBasis(v)
	ls := LightSpace{
		LightToWorld:     fromColumns(s, v, t, renderPos),
		LightProjToWorld: fromColumns(s, v, t, projPos),
	}
	ls.WorldToLight = ls.LightToWorld.Inverse()
	ls.WorldToLightProj = ls.LightProjToWorld.Inverse()
	return ls
}

// OccluderProjection maps light space onto the occluder texture: X and Z
// of a sphere of radius r fill the texture and Y from -r to r+projDist
// becomes depth.
func OccluderProjection(r, projDist float32) math.Mat4 {
	if r <= 0 {
		r = 1
	}
	ymin, ymax := -r, r+projDist
	var m math.Mat4
	m[0] = 1 / r
	m[6] = 2 / (ymax - ymin)
	m[9] = 1 / r
	m[14] = -(ymax + ymin) / (ymax - ymin)
	m[15] = 1
	return m
}

// blobLightSpace is the frame a blob shadow projects in. Unlike the
// projector's it keeps X horizontal whenever the light has a vertical
// component.
func blobLightSpace(dir, pos math.Vec3) (lightToWorld, worldToLight math.Mat4) {
	var x, z math.Vec3
	if math.Abs(dir.Z) > 0.001 {
		z = math.Vec3{Y: dir.Z, Z: -dir.Y}.Normalize()
		x = dir.Cross(z)
	} else {
		x = dir.Cross(math.Vec3{Z: 1}).Normalize()
		z = x.Cross(dir)
	}
	lightToWorld = fromColumns(x, dir, z, pos)
	return lightToWorld, lightToWorld.Inverse()
}
