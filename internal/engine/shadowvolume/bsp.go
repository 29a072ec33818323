// Package shadowvolume implements a shadow-volume BSP tree for one light.
//
// Caster polygons are inserted nearest-to-light first. Each fragment that
// reaches an unshadowed (OUT) leaf is extruded away from the light into a
// volume: a chain of planes whose innermost back leaf is IN. Queries clip a
// receiver polygon through the tree and measure the area that ends in OUT
// leaves.
//
// A tree is built for one light, queried, then thrown away with Reset.
// Nodes, polygons and planes live in arenas indexed by integer handles;
// Reset bumps a generation counter so stale poly handles are caught.
package shadowvolume

import (
	"fmt"
	"sort"

	"github.com/Faultbox/midgard-lighting/internal/engine/lighting"
	"github.com/Faultbox/midgard-lighting/pkg/math"
)

// Rejection thresholds for degenerate casters.
const (
	minPolyArea        = Epsilon
	minParallelDot     = 0.01
	minLightPlaneDist  = 0.001
	VirtualLightOffset = 100
)

// NoSurface marks polygons that do not belong to a lit surface.
const NoSurface int32 = -1

// Source is the light a tree is built for.
type Source struct {
	Position    math.Vec3
	Direction   math.Vec3 // travel direction, normalized
	Directional bool
}

// PointSource returns a source at p.
func PointSource(p math.Vec3) Source {
	return Source{Position: p}
}

// DirectionalSource returns a parallel source traveling along dir.
func DirectionalSource(dir math.Vec3) Source {
	return Source{Direction: dir.Normalize(), Directional: true}
}

// SourceFor returns the source matching a light. Directional lights also
// get a virtual position far back along their direction from origin, used
// for ordering and for callers that need a finite position.
func SourceFor(l *lighting.Light, origin math.Vec3) Source {
	if l.Kind.IsDirectional() {
		s := DirectionalSource(l.Direction)
		s.Position = origin.Sub(s.Direction.Scale(VirtualLightOffset))
		return s
	}
	return Source{Position: l.Position, Direction: l.Direction.Normalize()}
}

// NodeRef indexes a tree node. OutLeaf is the unshadowed leaf.
type NodeRef int32

const OutLeaf NodeRef = -1

// VolumeID identifies one extruded shadow volume.
type VolumeID int32

const NoVolume VolumeID = -1

// PolyHandle refers to a polygon in the current tree generation.
type PolyHandle struct {
	idx int32
	gen uint32
}

// node is a plane node, or an IN leaf when plane < 0.
type node struct {
	plane  int32
	front  NodeRef
	back   NodeRef
	volume VolumeID
}

type poly struct {
	verts   []math.Vec3
	plane   math.Plane
	surface int32
	volume  VolumeID
	// attached is set once the poly's own chain is grafted into the tree.
	attached bool
}

type volume struct {
	root    NodeRef
	caster  int32 // plane index of the caster node
	surface int32
}

// BSP is a shadow-volume tree for a single light.
type BSP struct {
	src  Source
	gen  uint32
	root NodeRef

	nodes   []node
	planes  []math.Plane
	polys   []poly
	volumes []volume

	shadowed map[int32]bool
}

// New returns an empty tree. Call Reset before use.
func New() *BSP {
	return &BSP{root: OutLeaf, shadowed: make(map[int32]bool)}
}

// Reset discards the tree and prepares it for src. Arena storage is kept.
func (b *BSP) Reset(src Source) {
	b.src = src
	b.gen++
	b.root = OutLeaf
	b.nodes = b.nodes[:0]
	b.planes = b.planes[:0]
	b.polys = b.polys[:0]
	b.volumes = b.volumes[:0]
	clear(b.shadowed)
}

// Source returns the light the tree is built for.
func (b *BSP) Source() Source { return b.src }

// NodeCount returns the number of allocated nodes.
func (b *BSP) NodeCount() int { return len(b.nodes) }

// VolumeCount returns the number of volumes built so far.
func (b *BSP) VolumeCount() int { return len(b.volumes) }

// PolyCount returns the number of polygons in the arena.
func (b *BSP) PolyCount() int { return len(b.polys) }

// Empty reports whether nothing has been inserted.
func (b *BSP) Empty() bool { return b.root == OutLeaf }

// Plane returns a stored plane by index.
func (b *BSP) Plane(i int32) math.Plane { return b.planes[i] }

// ShadowVolume returns the root node of a volume's chain.
func (b *BSP) ShadowVolume(v VolumeID) NodeRef { return b.volumes[v].root }

// VolumeSurface returns the surface id a volume was built from.
func (b *BSP) VolumeSurface(v VolumeID) int32 { return b.volumes[v].surface }

// Shadowed reports whether any part of surface landed in another volume
// during insertion. Unshadowed surfaces can skip per-lexel queries.
func (b *BSP) Shadowed(surface int32) bool { return b.shadowed[surface] }

// Valid reports whether h belongs to the current generation.
func (b *BSP) Valid(h PolyHandle) bool {
	return h.gen == b.gen && h.idx >= 0 && int(h.idx) < len(b.polys)
}

func (b *BSP) poly(h PolyHandle) *poly {
	if !b.Valid(h) {
		panic(fmt.Sprintf("shadowvolume: stale poly handle %d/%d (generation %d)", h.idx, h.gen, b.gen))
	}
	return &b.polys[h.idx]
}

// Winding returns the vertices of h. The slice must not be modified.
func (b *BSP) Winding(h PolyHandle) []math.Vec3 { return b.poly(h).verts }

// PolyPlane returns the plane of h.
func (b *BSP) PolyPlane(h PolyHandle) math.Plane { return b.poly(h).plane }

// CreatePoly stores a polygon. ok is false for fewer than three vertices,
// more than MaxWinding, or an area below Epsilon.
func (b *BSP) CreatePoly(verts []math.Vec3, plane math.Plane, surface int32) (PolyHandle, bool) {
	if len(verts) < 3 || len(verts) > MaxWinding || WindingArea(verts) < minPolyArea {
		return PolyHandle{}, false
	}
	idx := len(b.polys)
	b.polys = append(b.polys, poly{
		verts:   append([]math.Vec3(nil), verts...),
		plane:   plane,
		surface: surface,
		volume:  NoVolume,
	})
	return PolyHandle{idx: int32(idx), gen: b.gen}, true
}

// CopyPoly duplicates h without its volume.
func (b *BSP) CopyPoly(h PolyHandle) PolyHandle {
	p := b.poly(h)
	c, _ := b.CreatePoly(p.verts, p.plane, p.surface)
	return c
}

// PolySurfaceArea returns the full area of h.
func (b *BSP) PolySurfaceArea(h PolyHandle) float32 {
	return WindingArea(b.poly(h).verts)
}

func (b *BSP) addPlane(p math.Plane) int32 {
	b.planes = append(b.planes, p)
	return int32(len(b.planes) - 1)
}

func (b *BSP) addNode(n node) NodeRef {
	b.nodes = append(b.nodes, n)
	return NodeRef(len(b.nodes) - 1)
}

// lightDistance orders casters nearest-first.
func (b *BSP) lightDistance(w []math.Vec3) float32 {
	c := WindingCentroid(w)
	if b.src.Directional {
		return c.Dot(b.src.Direction)
	}
	return c.DistanceSquared(b.src.Position)
}

// SortNearestFirst orders handles by distance from the light, the order
// InsertPoly expects.
func (b *BSP) SortNearestFirst(hs []PolyHandle) {
	sort.SliceStable(hs, func(i, j int) bool {
		return b.lightDistance(b.poly(hs[i]).verts) < b.lightDistance(b.poly(hs[j]).verts)
	})
}
