package shadow

import (
	"github.com/charmbracelet/harmonica"

	"github.com/Faultbox/midgard-lighting/internal/engine/lighting"
	"github.com/Faultbox/midgard-lighting/pkg/math"
)

// CompositeUpdateMS is the minimum time between composite direction
// updates, so fast frame rates do not snap shadows into place.
const CompositeUpdateMS = 100

// CompositeDirection blends the two strongest best lights into one shadow
// direction for objects limited to a single dynamic shadow. The result
// follows its target on a critically damped spring.
type CompositeDirection struct {
	last   uint32
	vec    math.Vec3
	vel    [3]float64
	spring harmonica.Spring
}

// NewCompositeDirection starts pointing straight down.
func NewCompositeDirection() *CompositeDirection {
	return &CompositeDirection{
		vec:    math.Vec3{Z: -1},
		spring: harmonica.NewSpring(harmonica.FPS(1000/CompositeUpdateMS), 6.0, 1.0),
	}
}

// Current returns the last direction without updating it.
func (c *CompositeDirection) Current() math.Vec3 { return c.vec }

// bandScore removes the priority weight so lights of different bands
// compare on photometry alone.
func bandScore(l *lighting.Light) int32 {
	switch {
	case l.Kind.IsDirectional():
		return l.Score / lighting.SunPriority
	case l.Kind.IsStatic():
		return l.Score / lighting.StaticPriority
	}
	return l.Score / lighting.DynamicPriority
}

// Target computes the unsmoothed blend for an object at pos in zone. Sun
// and ambient lights only lend their direction outdoors (zone 0).
func Target(best []*lighting.Light, pos math.Vec3, zone int32) math.Vec3 {
	var top [2]*lighting.Light
	var score [2]int32
	for _, l := range best {
		s := bandScore(l)
		switch {
		case s > score[0]:
			top[1], score[1] = top[0], score[0]
			top[0], score[0] = l, s
		case s > score[1]:
			top[1], score[1] = l, s
		}
	}

	down := math.Vec3{Z: -1}
	var vec [2]math.Vec3
	for i, l := range top {
		if l == nil {
			break
		}
		switch {
		case !l.Kind.IsDirectional():
			vec[i] = pos.Sub(l.Position).Normalize()
		case zone == 0:
			vec[i] = l.Direction.Normalize()
		default:
			vec[i] = down
		}
	}

	switch {
	case top[0] == nil:
		return down
	case top[1] == nil:
		return vec[0]
	}
	ratio := float32(score[0]) / float32(score[0]+score[1])
	return vec[0].Scale(ratio).Add(vec[1].Scale(1 - ratio))
}

// Update advances the direction toward Target at most once per
// CompositeUpdateMS and returns the normalized result.
func (c *CompositeDirection) Update(now uint32, best []*lighting.Light, pos math.Vec3, zone int32) math.Vec3 {
	if now-c.last < CompositeUpdateMS {
		return c.vec
	}
	c.last = now

	target := Target(best, pos, zone)
	cur := [3]float64{float64(c.vec.X), float64(c.vec.Y), float64(c.vec.Z)}
	want := [3]float64{float64(target.X), float64(target.Y), float64(target.Z)}
	for i := range cur {
		cur[i], c.vel[i] = c.spring.Update(cur[i], c.vel[i], want[i])
	}
	next := math.Vec3{X: float32(cur[0]), Y: float32(cur[1]), Z: float32(cur[2])}.Normalize()
	if next.LengthSquared() == 0 {
		next = math.Vec3{Z: -1}
	}
	c.vec = next
	return c.vec
}
