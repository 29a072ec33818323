package scene

import (
	"hash/crc32"

	"github.com/Faultbox/midgard-lighting/pkg/math"
)

// Lightmap dimension limits for one interior surface.
const (
	MaxSurfaceLightmap = 256
	DefaultLexelSize   = 0.5
)

// Surface is one convex interior polygon with its own lightmap.
type Surface struct {
	Verts []math.Vec3
	Plane math.Plane
	Zone  int32

	// Lightmap basis: texel (x, y) has its corner at Origin + S*x + T*y.
	Origin, S, T  math.Vec3
	Width, Height int

	box math.Box
}

// NewSurface builds a surface from a convex polygon wound counter-clockwise
// seen from the lit side. It returns false for degenerate polygons.
func NewSurface(verts []math.Vec3, zone int32, lexelSize float32) (Surface, bool) {
	if len(verts) < 3 {
		return Surface{}, false
	}
	plane, ok := polyPlane(verts)
	if !ok {
		return Surface{}, false
	}
	if lexelSize <= 0 {
		lexelSize = DefaultLexelSize
	}
	sDir, tDir := tangentBasis(plane.Normal)

	minS, maxS := sDir.Dot(verts[0]), sDir.Dot(verts[0])
	minT, maxT := tDir.Dot(verts[0]), tDir.Dot(verts[0])
	for _, v := range verts[1:] {
		s, t := sDir.Dot(v), tDir.Dot(v)
		minS, maxS = min(minS, s), max(maxS, s)
		minT, maxT = min(minT, t), max(maxT, t)
	}
	w := clampDim(int((maxS-minS)/lexelSize) + 1)
	h := clampDim(int((maxT-minT)/lexelSize) + 1)

	// Stretch the texels so the map covers the polygon exactly.
	stepS := (maxS - minS) / float32(w)
	stepT := (maxT - minT) / float32(h)
	origin := plane.Normal.Scale(-plane.D).Add(sDir.Scale(minS)).Add(tDir.Scale(minT))

	return Surface{
		Verts:  verts,
		Plane:  plane,
		Zone:   zone,
		Origin: origin,
		S:      sDir.Scale(stepS),
		T:      tDir.Scale(stepT),
		Width:  w,
		Height: h,
		box:    math.BoxAround(verts...),
	}, true
}

func clampDim(n int) int {
	return max(1, min(n, MaxSurfaceLightmap))
}

// polyPlane returns the plane of a convex polygon using Newell's method.
func polyPlane(verts []math.Vec3) (math.Plane, bool) {
	var n math.Vec3
	for i, a := range verts {
		b := verts[(i+1)%len(verts)]
		n.X += (a.Y - b.Y) * (a.Z + b.Z)
		n.Y += (a.Z - b.Z) * (a.X + b.X)
		n.Z += (a.X - b.X) * (a.Y + b.Y)
	}
	if n.Length() < 1e-6 {
		return math.Plane{}, false
	}
	return math.PlaneFromNormal(verts[0], n.Normalize()), true
}

// tangentBasis returns two unit axes spanning the plane with normal n such
// that s x t == n.
func tangentBasis(n math.Vec3) (s, t math.Vec3) {
	ref := math.Vec3{X: 0, Y: 0, Z: 1}
	a := n.Abs()
	if a.Z >= a.X && a.Z >= a.Y {
		ref = math.Vec3{X: 0, Y: 1, Z: 0}
	}
	s = ref.Cross(n).Normalize()
	t = n.Cross(s)
	return s, t
}

// Interior is a set of surfaces lit as one object. Interiors manage their
// own zone lighting.
type Interior struct {
	name     string
	Surfaces []Surface
	Zones    []int32
	Base     math.Color
	// NormalMaps requests a lighting-direction map per surface.
	NormalMaps bool

	box math.Box
	crc uint32
}

// NewInterior builds an interior from surfaces.
func NewInterior(name string, surfaces []Surface, zones []int32, base math.Color) *Interior {
	in := &Interior{name: name, Surfaces: surfaces, Zones: zones, Base: base}
	for i, s := range surfaces {
		if i == 0 {
			in.box = s.box
		} else {
			in.box = in.box.Union(s.box)
		}
	}
	in.crc = in.computeCRC()
	return in
}

func (in *Interior) Name() string                  { return in.name }
func (in *Interior) Kind() ObjectKind              { return KindInterior }
func (in *Interior) WorldBox() math.Box            { return in.box }
func (in *Interior) BaseColor() math.Color         { return in.Base }
func (in *Interior) CRC() uint32                   { return in.crc }
func (in *Interior) CurrentZones() []int32         { return in.Zones }
func (in *Interior) ExemptFromZoneFiltering() bool { return true }
func (in *Interior) WantsNormalMaps() bool         { return in.NormalMaps }

// SurfaceZone returns the zone surface i belongs to.
func (in *Interior) SurfaceZone(i int32) int32 {
	return in.Surfaces[i].Zone
}

// Lightmaps returns one lightmap per surface.
func (in *Interior) Lightmaps() []LightmapSize {
	out := make([]LightmapSize, len(in.Surfaces))
	for i, s := range in.Surfaces {
		out[i] = LightmapSize{s.Width, s.Height}
	}
	return out
}

func (in *Interior) Lexels(i, step int, fn func(Lexel)) {
	s := &in.Surfaces[i]
	step = max(step, 1)
	for y := 0; y < s.Height; y += step {
		for x := 0; x < s.Width; x += step {
			c := s.Origin.Add(s.S.Scale(float32(x))).Add(s.T.Scale(float32(y)))
			fn(Lexel{
				Map:     i,
				X:       x,
				Y:       y,
				Pos:     c.Add(s.S.Scale(0.5)).Add(s.T.Scale(0.5)),
				Normal:  s.Plane.Normal,
				Quad:    [4]math.Vec3{c, c.Add(s.S), c.Add(s.S).Add(s.T), c.Add(s.T)},
				Surface: int32(i),
			})
		}
	}
}

func (in *Interior) ShadowPolys(box math.Box, fn func([]math.Vec3, int32)) {
	for i := range in.Surfaces {
		if in.Surfaces[i].box.Overlaps(box) {
			fn(in.Surfaces[i].Verts, int32(i))
		}
	}
}

func (in *Interior) computeCRC() uint32 {
	h := crc32.NewIEEE()
	writeColor(h, in.Base)
	for _, s := range in.Surfaces {
		writeInts(h, int32(len(s.Verts)), int32(s.Width), int32(s.Height), s.Zone)
		for _, v := range s.Verts {
			writeVec(h, v)
		}
	}
	return h.Sum32()
}
