package math

// Plane is the set of points p with Normal·p + D == 0.
type Plane struct {
	Normal Vec3
	D      float32
}

// Side classifies a point against a plane.
type Side int8

const (
	Back Side = iota - 1
	On
	Front
)

// PlaneFromPoints builds a plane from three counter-clockwise points.
// ok is false when the points are collinear.
func PlaneFromPoints(a, b, c Vec3) (Plane, bool) {
	n := b.Sub(a).Cross(c.Sub(a))
	l := n.Length()
	if l < 1e-8 {
		return Plane{}, false
	}
	n = n.Scale(1 / l)
	return Plane{Normal: n, D: -n.Dot(a)}, true
}

// PlaneFromNormal builds a plane through p with the given normal.
func PlaneFromNormal(p, normal Vec3) Plane {
	n := normal.Normalize()
	return Plane{Normal: n, D: -n.Dot(p)}
}

// Distance returns the signed distance from p to the plane.
func (p Plane) Distance(pt Vec3) float32 {
	return p.Normal.Dot(pt) + p.D
}

// Classify returns which side of the plane pt lies on, within eps.
func (p Plane) Classify(pt Vec3, eps float32) Side {
	d := p.Distance(pt)
	switch {
	case d > eps:
		return Front
	case d < -eps:
		return Back
	}
	return On
}

// Flip returns the plane facing the other way.
func (p Plane) Flip() Plane {
	return Plane{Normal: p.Normal.Neg(), D: -p.D}
}

// Box is an axis-aligned bounding box.
type Box struct {
	Min, Max Vec3
}

// BoxAround returns the smallest box containing every point.
func BoxAround(points ...Vec3) Box {
	if len(points) == 0 {
		return Box{}
	}
	b := Box{Min: points[0], Max: points[0]}
	for _, p := range points[1:] {
		b = b.Extend(p)
	}
	return b
}

// Center returns the center point of the box.
func (b Box) Center() Vec3 {
	return b.Min.Add(b.Max).Scale(0.5)
}

// Extents returns Max - Min.
func (b Box) Extents() Vec3 {
	return b.Max.Sub(b.Min)
}

// Radius returns the distance from center to corner (half-diagonal).
func (b Box) Radius() float32 {
	return b.Max.Sub(b.Center()).Length()
}

// Extend grows the box to contain p.
func (b Box) Extend(p Vec3) Box {
	return Box{Min: b.Min.Min(p), Max: b.Max.Max(p)}
}

// Union returns the box containing both boxes.
func (b Box) Union(other Box) Box {
	return Box{Min: b.Min.Min(other.Min), Max: b.Max.Max(other.Max)}
}

// Expand grows the box by d on every side.
func (b Box) Expand(d float32) Box {
	e := Vec3{d, d, d}
	return Box{Min: b.Min.Sub(e), Max: b.Max.Add(e)}
}

// Overlaps reports whether two boxes intersect (touching counts).
func (b Box) Overlaps(other Box) bool {
	return b.Min.X <= other.Max.X && b.Max.X >= other.Min.X &&
		b.Min.Y <= other.Max.Y && b.Max.Y >= other.Min.Y &&
		b.Min.Z <= other.Max.Z && b.Max.Z >= other.Min.Z
}

// Contains reports whether p lies inside the box.
func (b Box) Contains(p Vec3) bool {
	return p.X >= b.Min.X && p.X <= b.Max.X &&
		p.Y >= b.Min.Y && p.Y <= b.Max.Y &&
		p.Z >= b.Min.Z && p.Z <= b.Max.Z
}

// ClosestPoint returns the point of the box nearest to p.
func (b Box) ClosestPoint(p Vec3) Vec3 {
	return Vec3{
		Clamp(p.X, b.Min.X, b.Max.X),
		Clamp(p.Y, b.Min.Y, b.Max.Y),
		Clamp(p.Z, b.Min.Z, b.Max.Z),
	}
}

// Corners returns the eight corners of the box.
func (b Box) Corners() [8]Vec3 {
	return [8]Vec3{
		{b.Min.X, b.Min.Y, b.Min.Z},
		{b.Max.X, b.Min.Y, b.Min.Z},
		{b.Min.X, b.Max.Y, b.Min.Z},
		{b.Max.X, b.Max.Y, b.Min.Z},
		{b.Min.X, b.Min.Y, b.Max.Z},
		{b.Max.X, b.Min.Y, b.Max.Z},
		{b.Min.X, b.Max.Y, b.Max.Z},
		{b.Max.X, b.Max.Y, b.Max.Z},
	}
}

// Sphere returns the bounding sphere used by light scoring:
// center of the box, radius to the max corner.
func (b Box) Sphere() Sphere {
	c := b.Center()
	return Sphere{Center: c, Radius: b.Max.Sub(c).Length()}
}

// Transform returns the box enclosing the transformed corners.
func (b Box) Transform(m Mat4) Box {
	corners := b.Corners()
	out := BoxAround(m.TransformVec3(corners[0]))
	for _, c := range corners[1:] {
		out = out.Extend(m.TransformVec3(c))
	}
	return out
}

// Sphere is a bounding sphere.
type Sphere struct {
	Center Vec3
	Radius float32
}
