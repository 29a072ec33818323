package shadowvolume

import "github.com/Faultbox/midgard-lighting/pkg/math"

// Epsilon is the plane classification tolerance. Points within it count as
// on the plane, and on-plane points are lit.
const Epsilon = 0.001

// MaxWinding is the largest polygon the BSP stores. Fragments that grow
// past it while splitting are dropped.
const MaxWinding = 32

// WindingArea returns the area of a convex planar polygon.
func WindingArea(w []math.Vec3) float32 {
	if len(w) < 3 {
		return 0
	}
	var sum math.Vec3
	for i := 1; i+1 < len(w); i++ {
		sum = sum.Add(w[i].Sub(w[0]).Cross(w[i+1].Sub(w[0])))
	}
	return sum.Length() * 0.5
}

// WindingCentroid returns the vertex average.
func WindingCentroid(w []math.Vec3) math.Vec3 {
	var c math.Vec3
	if len(w) == 0 {
		return c
	}
	for _, v := range w {
		c = c.Add(v)
	}
	return c.Scale(1 / float32(len(w)))
}

// WindingPlane derives a plane from the first non-degenerate vertex triple.
func WindingPlane(w []math.Vec3) (math.Plane, bool) {
	for i := 1; i+1 < len(w); i++ {
		if p, ok := math.PlaneFromPoints(w[0], w[i], w[i+1]); ok {
			return p, true
		}
	}
	return math.Plane{}, false
}

// splitWinding divides w by p. On-plane vertices go to both sides; a fully
// coplanar polygon goes to the front. A nil side means nothing landed there.
func splitWinding(w []math.Vec3, p math.Plane) (front, back []math.Vec3) {
	if len(w) > MaxWinding {
		return nil, nil
	}
	var sides [MaxWinding]math.Side
	var dists [MaxWinding]float32
	nFront, nBack := 0, 0
	for i, v := range w {
		dists[i] = p.Distance(v)
		sides[i] = p.Classify(v, Epsilon)
		switch sides[i] {
		case math.Front:
			nFront++
		case math.Back:
			nBack++
		}
	}

	if nBack == 0 {
		return w, nil
	}
	if nFront == 0 {
		return nil, w
	}

	front = make([]math.Vec3, 0, len(w)+1)
	back = make([]math.Vec3, 0, len(w)+1)
	for i := range w {
		j := (i + 1) % len(w)
		cur := w[i]
		if sides[i] != math.Back {
			front = append(front, cur)
		}
		if sides[i] != math.Front {
			back = append(back, cur)
		}
		if (sides[i] == math.Front && sides[j] == math.Back) ||
			(sides[i] == math.Back && sides[j] == math.Front) {
			t := dists[i] / (dists[i] - dists[j])
			mid := cur.Add(w[j].Sub(cur).Scale(t))
			front = append(front, mid)
			back = append(back, mid)
		}
	}

	if len(front) < 3 || len(front) > MaxWinding {
		front = nil
	}
	if len(back) < 3 || len(back) > MaxWinding {
		back = nil
	}
	return front, back
}

// clipWinding keeps the part of w in front of (or on) p.
func clipWinding(w []math.Vec3, p math.Plane) []math.Vec3 {
	f, _ := splitWinding(w, p)
	return f
}
