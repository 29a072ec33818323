// Package scene holds the objects the lighting system works on: static
// light receivers (interiors, terrain, atlas meshes), moving shadow casters
// and the lights themselves.
package scene

import (
	"encoding/binary"
	"errors"
	"fmt"
	"hash"
	"hash/crc32"
	gomath "math"
	"slices"

	"github.com/Faultbox/midgard-lighting/internal/engine/lighting"
	"github.com/Faultbox/midgard-lighting/pkg/math"
)

var ErrUnknownKind = errors.New("unknown object kind")

// ObjectKind selects how an object is lit and persisted.
type ObjectKind uint8

const (
	KindInterior ObjectKind = iota
	KindTerrain
	KindAtlas
)

var kindNames = [...]string{"interior", "terrain", "atlas"}

func (k ObjectKind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return fmt.Sprintf("ObjectKind(%d)", k)
}

// ParseObjectKind converts a kind name.
func ParseObjectKind(s string) (ObjectKind, error) {
	for i, n := range kindNames {
		if n == s {
			return ObjectKind(i), nil
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownKind, s)
}

// OutdoorZone is the zone terrain and atlas meshes live in.
const OutdoorZone int32 = 0

// LightmapSize is the texel size of one lightmap owned by an object.
type LightmapSize struct {
	Width, Height int
}

// Lexel is one lightmap texel to be lit.
type Lexel struct {
	Map    int
	X, Y   int
	Pos    math.Vec3
	Normal math.Vec3
	// Quad is the texel's world-space footprint. Its lit area decides how
	// much of the diffuse term reaches the texel.
	Quad [4]math.Vec3
	// Surface is the object-local surface the texel lies on.
	Surface int32
}

// Receiver is a static object that gets baked lightmaps.
type Receiver interface {
	lighting.Zoned
	Name() string
	Kind() ObjectKind
	WorldBox() math.Box
	Lightmaps() []LightmapSize
	// Lexels calls fn for every step-th texel in both axes of lightmap i.
	Lexels(i, step int, fn func(Lexel))
	// BaseColor is the unlit surface color lightmaps are diff-encoded against.
	BaseColor() math.Color
	// CRC identifies the object's geometry and lightmap layout.
	CRC() uint32
}

// Occluder contributes static shadow-casting polygons.
type Occluder interface {
	WorldBox() math.Box
	// ShadowPolys calls fn for each convex polygon overlapping box.
	ShadowPolys(box math.Box, fn func(verts []math.Vec3, surface int32))
}

// Scene is everything one bake or viewer session works on.
type Scene struct {
	Name   string
	Sun    *lighting.Light
	Lights []*lighting.Light

	Interiors []*Interior
	Terrains  []*Terrain
	Atlases   []*Atlas
	Shapes    []*Shape
}

// Receivers returns the static objects in persist order.
func (s *Scene) Receivers() []Receiver {
	out := make([]Receiver, 0, len(s.Interiors)+len(s.Terrains)+len(s.Atlases))
	for _, o := range s.Interiors {
		out = append(out, o)
	}
	for _, o := range s.Terrains {
		out = append(out, o)
	}
	for _, o := range s.Atlases {
		out = append(out, o)
	}
	return out
}

// Occluders returns the static shadow casters, in the same order as
// Receivers.
func (s *Scene) Occluders() []Occluder {
	out := make([]Occluder, 0, len(s.Interiors)+len(s.Terrains)+len(s.Atlases))
	for _, o := range s.Interiors {
		out = append(out, o)
	}
	for _, o := range s.Terrains {
		out = append(out, o)
	}
	for _, o := range s.Atlases {
		out = append(out, o)
	}
	return out
}

// BakeLights returns the lights baked into lightmaps: the sun, ambient and
// static lights. Dynamic point and spot lights are lit per frame.
func (s *Scene) BakeLights() []*lighting.Light {
	var out []*lighting.Light
	if s.Sun != nil {
		out = append(out, s.Sun)
	}
	for _, l := range s.Lights {
		if l != s.Sun && (l.Kind.IsStatic() || l.Kind.IsDirectional()) {
			out = append(out, l)
		}
	}
	return out
}

// Register hands every light to m and installs the sun.
func (s *Scene) Register(m *lighting.Manager) {
	for _, l := range s.Lights {
		m.RegisterGlobal(l)
	}
	if s.Sun != nil {
		m.RegisterGlobal(s.Sun)
		m.SetSpecialLight(lighting.SunLight, s.Sun)
	}
}

// ShadowReceivers returns static polygons overlapping box that dynamic
// shadows may be drawn onto.
func (s *Scene) ShadowReceivers(box math.Box) [][]math.Vec3 {
	var out [][]math.Vec3
	for _, o := range s.Occluders() {
		if !o.WorldBox().Overlaps(box) {
			continue
		}
		o.ShadowPolys(box, func(verts []math.Vec3, _ int32) {
			out = append(out, verts)
		})
	}
	return out
}

// LightsCRC identifies the baked light configuration.
func (s *Scene) LightsCRC() uint32 {
	var crcs []uint32
	for _, l := range s.BakeLights() {
		h := crc32.NewIEEE()
		h.Write([]byte(l.Name))
		h.Write([]byte(l.Model))
		h.Write([]byte{byte(l.Kind), boolByte(l.CastsShadows), boolByte(l.UseNormals),
			boolByte(l.DoubleSidedAmbient), boolByte(l.SmoothSpot),
			boolByte(l.DiffuseRestrictZone), boolByte(l.AmbientRestrictZone)})
		writeVec(h, l.Position)
		writeVec(h, l.Direction)
		writeColor(h, l.Color)
		writeColor(h, l.Ambient)
		writeFloats(h, l.Radius, l.SpotHalfAngle, l.LocalAmbient)
		writeInts(h, l.Zones[0], l.Zones[1])
		crcs = append(crcs, h.Sum32())
	}
	slices.Sort(crcs)

	h := crc32.NewIEEE()
	for _, c := range crcs {
		writeInts(h, int32(c))
	}
	return h.Sum32()
}

// MissionCRC combines the scene name, the light configuration and every
// receiver CRC. The receiver CRCs are sorted first, so reordering objects
// keeps the cache valid.
func (s *Scene) MissionCRC() uint32 {
	receivers := s.Receivers()
	crcs := make([]uint64, 0, len(receivers))
	for _, r := range receivers {
		crcs = append(crcs, uint64(r.Kind())<<32|uint64(r.CRC()))
	}
	slices.Sort(crcs)

	h := crc32.NewIEEE()
	h.Write([]byte(s.Name))
	writeInts(h, int32(s.LightsCRC()))
	for _, c := range crcs {
		writeInts(h, int32(c>>32), int32(uint32(c)))
	}
	return h.Sum32()
}

// Find returns the receiver with the given name.
func (s *Scene) Find(name string) (Receiver, bool) {
	for _, r := range s.Receivers() {
		if r.Name() == name {
			return r, true
		}
	}
	return nil, false
}

func boolByte(b bool) byte {
	if b {
		return 1
	}
	return 0
}

func writeFloats(h hash.Hash32, fs ...float32) {
	var buf [4]byte
	for _, f := range fs {
		binary.LittleEndian.PutUint32(buf[:], gomath.Float32bits(f))
		h.Write(buf[:])
	}
}

func writeInts(h hash.Hash32, vs ...int32) {
	var buf [4]byte
	for _, v := range vs {
		binary.LittleEndian.PutUint32(buf[:], uint32(v))
		h.Write(buf[:])
	}
}

func writeVec(h hash.Hash32, v math.Vec3) { writeFloats(h, v.X, v.Y, v.Z) }

func writeColor(h hash.Hash32, c math.Color) { writeFloats(h, c.R, c.G, c.B) }
