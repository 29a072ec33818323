package shadowvolume

import "github.com/Faultbox/midgard-lighting/pkg/math"

// Partition is the receiver mesh a projected shadow is drawn onto: the
// parts of nearby geometry that are nearest the light inside the shadow
// prism.
type Partition struct {
	Verts []math.Vec3
	Polys []PartitionPoly
}

// PartitionPoly is one convex polygon of a Partition.
type PartitionPoly struct {
	Start int
	Count int
	Plane math.Plane
}

// Empty reports whether there is nothing to draw onto.
func (p *Partition) Empty() bool { return len(p.Polys) == 0 }

// Reset clears the partition keeping its storage.
func (p *Partition) Reset() {
	p.Verts = p.Verts[:0]
	p.Polys = p.Polys[:0]
}

// Triangles returns fan-triangulated vertex indices.
func (p *Partition) Triangles() []uint32 {
	var idx []uint32
	for _, poly := range p.Polys {
		for i := 1; i+1 < poly.Count; i++ {
			idx = append(idx,
				uint32(poly.Start),
				uint32(poly.Start+i),
				uint32(poly.Start+i+1))
		}
	}
	return idx
}

func (p *Partition) add(w []math.Vec3, plane math.Plane) {
	p.Polys = append(p.Polys, PartitionPoly{Start: len(p.Verts), Count: len(w), Plane: plane})
	p.Verts = append(p.Verts, w...)
}

// prismPlanes bounds the region swept by boundary along dir, up to depth
// (unbounded when depth <= 0). Inside is in front of every plane.
func prismPlanes(boundary []math.Vec3, dir math.Vec3, depth float32) []math.Plane {
	c := WindingCentroid(boundary)
	planes := []math.Plane{math.PlaneFromNormal(c, dir)}
	if depth > 0 {
		planes = append(planes, math.PlaneFromNormal(c.Add(dir.Scale(depth)), dir.Neg()))
	}
	for i := range boundary {
		a, b := boundary[i], boundary[(i+1)%len(boundary)]
		n := b.Sub(a).Cross(dir)
		if n.LengthSquared() < 1e-12 {
			continue
		}
		p := math.PlaneFromNormal(a, n)
		if p.Distance(c) < 0 {
			p = p.Flip()
		}
		planes = append(planes, p)
	}
	return planes
}

// DepthPartition resets the tree for a parallel light along dir and
// returns the parts of receivers visible from the light within the prism
// swept by boundary. Receivers facing away from the light are skipped. An
// empty result means nothing to shadow.
func (b *BSP) DepthPartition(boundary []math.Vec3, dir math.Vec3, depth float32, receivers [][]math.Vec3) Partition {
	dir = dir.Normalize()
	b.Reset(DirectionalSource(dir))

	var out Partition
	if len(boundary) < 3 || dir.LengthSquared() == 0 {
		return out
	}
	prism := prismPlanes(boundary, dir, depth)

	handles := make([]PolyHandle, 0, len(receivers))
	for i, r := range receivers {
		if len(r) > MaxWinding {
			continue
		}
		w := r
		for _, p := range prism {
			if w = clipWinding(w, p); w == nil {
				break
			}
		}
		if w == nil {
			continue
		}
		plane, ok := WindingPlane(w)
		if !ok || plane.Normal.Dot(dir) > -minParallelDot {
			continue
		}
		if h, ok := b.CreatePoly(w, plane, int32(i)); ok {
			handles = append(handles, h)
		}
	}
	b.SortNearestFirst(handles)

	var frags [][]math.Vec3
	for _, h := range handles {
		p := b.poly(h)
		frags = b.collectLit(b.root, p.verts, frags[:0])
		for _, f := range frags {
			if WindingArea(f) >= minPolyArea {
				out.add(f, p.plane)
			}
		}
		b.InsertPoly(h)
	}
	return out
}
