package shadowvolume

import "github.com/Faultbox/midgard-lighting/pkg/math"

// orientCaster flips plane so the light is in front of it. ok is false
// when the light grazes the plane.
func (b *BSP) orientCaster(plane math.Plane) (math.Plane, bool) {
	if b.src.Directional {
		dot := plane.Normal.Dot(b.src.Direction)
		if math.Abs(dot) < minParallelDot {
			return plane, false
		}
		if dot > 0 {
			plane = plane.Flip()
		}
		return plane, true
	}
	d := plane.Distance(b.src.Position)
	if math.Abs(d) < minLightPlaneDist {
		return plane, false
	}
	if d < 0 {
		plane = plane.Flip()
	}
	return plane, true
}

// edgePlanes returns one plane per edge containing the edge and the light
// (or the light direction), each facing away from the polygon interior.
func (b *BSP) edgePlanes(w []math.Vec3) []math.Plane {
	centroid := WindingCentroid(w)
	planes := make([]math.Plane, 0, len(w))
	for i := range w {
		a, c := w[i], w[(i+1)%len(w)]
		var n math.Vec3
		if b.src.Directional {
			n = c.Sub(a).Cross(b.src.Direction)
		} else {
			n = c.Sub(a).Cross(b.src.Position.Sub(a))
		}
		// zero-length edge
		if n.LengthSquared() < 1e-12 {
			continue
		}
		p := math.PlaneFromNormal(a, n)
		if p.Distance(centroid) > 0 {
			p = p.Flip()
		}
		planes = append(planes, p)
	}
	return planes
}

// buildChain extrudes w into a volume: caster node, then one node per edge,
// each with an OUT front and the next node behind, ending in an IN leaf.
func (b *BSP) buildChain(w []math.Vec3, caster int32, surface int32) VolumeID {
	vid := VolumeID(len(b.volumes))
	next := b.addNode(node{plane: -1, front: OutLeaf, back: OutLeaf, volume: vid})
	edges := b.edgePlanes(w)
	for i := len(edges) - 1; i >= 0; i-- {
		next = b.addNode(node{plane: b.addPlane(edges[i]), front: OutLeaf, back: next, volume: vid})
	}
	root := b.addNode(node{plane: caster, front: OutLeaf, back: next, volume: vid})
	b.volumes = append(b.volumes, volume{root: root, caster: caster, surface: surface})
	return vid
}

// BuildVolume extrudes h away from the light into a standalone volume.
// It returns false for polygons nearly edge-on to the light, which are
// never inserted.
func (b *BSP) BuildVolume(h PolyHandle) bool {
	p := b.poly(h)
	if p.volume != NoVolume {
		return true
	}
	plane, ok := b.orientCaster(p.plane)
	if !ok {
		return false
	}
	p.plane = plane
	caster := b.addPlane(plane)
	p.volume = b.buildChain(p.verts, caster, p.surface)
	return true
}

// Volume returns the volume built for h, or NoVolume.
func (b *BSP) Volume(h PolyHandle) VolumeID {
	return b.poly(h).volume
}

// InsertPoly merges h's shadow into the tree. Fragments already in shadow
// are discarded; every fragment reaching an OUT leaf is extruded there.
// Insert casters nearest to the light first.
func (b *BSP) InsertPoly(h PolyHandle) bool {
	if !b.BuildVolume(h) {
		return false
	}
	p := b.poly(h)
	b.root = b.insert(b.root, p.verts, h, false)
	return true
}

func (b *BSP) insert(ref NodeRef, w []math.Vec3, h PolyHandle, split bool) NodeRef {
	p := &b.polys[h.idx]
	if ref == OutLeaf {
		if !split && !p.attached {
			p.attached = true
			return b.volumes[p.volume].root
		}
		if WindingArea(w) < minPolyArea {
			return OutLeaf
		}
		v := b.buildChain(w, b.volumes[p.volume].caster, p.surface)
		return b.volumes[v].root
	}

	n := b.nodes[ref]
	if n.plane < 0 {
		if p.surface != NoSurface && b.volumes[n.volume].surface != p.surface {
			b.shadowed[p.surface] = true
		}
		return ref
	}

	plane := b.planes[n.plane]
	front, back := splitWinding(w, plane)
	if back == nil && onPlane(w, plane) {
		// A caster in the plane of one already inserted shares its shadow
		// side.
		front, back = nil, front
	}
	didSplit := split || (front != nil && back != nil)
	if front != nil {
		r := b.insert(n.front, front, h, didSplit)
		b.nodes[ref].front = r
	}
	if back != nil {
		r := b.insert(n.back, back, h, didSplit)
		b.nodes[ref].back = r
	}
	return ref
}

func onPlane(w []math.Vec3, p math.Plane) bool {
	for _, v := range w {
		if p.Classify(v, Epsilon) != math.On {
			return false
		}
	}
	return true
}
