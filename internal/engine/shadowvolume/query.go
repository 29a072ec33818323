package shadowvolume

import "github.com/Faultbox/midgard-lighting/pkg/math"

// LitSurfaceArea returns the area of h outside every shadow volume. Volumes
// built from the same surface do not shadow it. The result is within
// [0, PolySurfaceArea(h)].
func (b *BSP) LitSurfaceArea(h PolyHandle, surface int32) float32 {
	return b.WindingLitArea(b.poly(h).verts, surface)
}

// WindingLitArea is LitSurfaceArea for a winding kept outside the arena.
// w is not retained.
func (b *BSP) WindingLitArea(w []math.Vec3, surface int32) float32 {
	return math.Clamp(b.litArea(b.root, w, surface), 0, WindingArea(w))
}

// ClippedSurfaceArea is the area of h outside every shadow volume,
// regardless of surface.
func (b *BSP) ClippedSurfaceArea(h PolyHandle) float32 {
	return b.LitSurfaceArea(h, NoSurface)
}

func (b *BSP) litArea(ref NodeRef, w []math.Vec3, surface int32) float32 {
	if ref == OutLeaf {
		return WindingArea(w)
	}
	n := &b.nodes[ref]
	if n.plane < 0 {
		if surface != NoSurface && b.volumes[n.volume].surface == surface {
			return WindingArea(w)
		}
		return 0
	}
	front, back := splitWinding(w, b.planes[n.plane])
	var area float32
	if front != nil {
		area += b.litArea(n.front, front, surface)
	}
	if back != nil {
		area += b.litArea(n.back, back, surface)
	}
	return area
}

// TestPoly reports whether any part of h lies inside a shadow volume.
func (b *BSP) TestPoly(h PolyHandle) bool {
	return b.testWinding(b.root, b.poly(h).verts)
}

func (b *BSP) testWinding(ref NodeRef, w []math.Vec3) bool {
	if ref == OutLeaf {
		return false
	}
	n := &b.nodes[ref]
	if n.plane < 0 {
		return true
	}
	front, back := splitWinding(w, b.planes[n.plane])
	if front != nil && b.testWinding(n.front, front) {
		return true
	}
	return back != nil && b.testWinding(n.back, back)
}

// ClipToVolume returns the fragments of h that lie outside volume v, as new
// polygons. A polygon entirely inside v yields none.
func (b *BSP) ClipToVolume(h PolyHandle, v VolumeID) []PolyHandle {
	p := b.poly(h)
	plane, surface := p.plane, p.surface
	w := p.verts

	var out []PolyHandle
	ref := b.volumes[v].root
	for ref != OutLeaf {
		n := b.nodes[ref]
		if n.plane < 0 {
			break
		}
		front, back := splitWinding(w, b.planes[n.plane])
		if front != nil {
			if c, ok := b.CreatePoly(front, plane, surface); ok {
				out = append(out, c)
			}
		}
		if back == nil {
			break
		}
		w = back
		ref = n.back
	}
	return out
}

// collectLit appends every fragment of w lying outside all volumes.
func (b *BSP) collectLit(ref NodeRef, w []math.Vec3, out [][]math.Vec3) [][]math.Vec3 {
	if ref == OutLeaf {
		return append(out, w)
	}
	n := &b.nodes[ref]
	if n.plane < 0 {
		return out
	}
	front, back := splitWinding(w, b.planes[n.plane])
	if front != nil {
		out = b.collectLit(n.front, front, out)
	}
	if back != nil {
		out = b.collectLit(n.back, back, out)
	}
	return out
}
