package shadow

import (
	"testing"

	"github.com/Faultbox/midgard-lighting/internal/engine/lighting"
	"github.com/Faultbox/midgard-lighting/pkg/math"
)

func scored(kind lighting.Kind, score int32) *lighting.Light {
	l := lighting.NewLight(kind)
	l.Score = score
	return l
}

func TestCompositeTarget(t *testing.T) {
	pos := math.Vec3{Z: 1}
	down := math.Vec3{Z: -1}

	sun := scored(lighting.Vector, 100*lighting.SunPriority)
	sun.Direction = math.Vec3{X: 1, Z: -1}

	left := scored(lighting.Point, 10)
	left.Position = math.Vec3{X: -4, Z: 1}
	right := scored(lighting.StaticPoint, 10*lighting.StaticPriority)
	right.Position = math.Vec3{X: 4, Z: 1}

	tests := []struct {
		name string
		best []*lighting.Light
		zone int32
		want math.Vec3
	}{
		{"no lights", nil, 0, down},
		{"sun outdoors", []*lighting.Light{sun}, 0, sun.Direction.Normalize()},
		{"sun indoors", []*lighting.Light{sun}, 3, down},
		{"balanced bands cancel", []*lighting.Light{left, right}, 0, math.Vec3{}},
		{"single point", []*lighting.Light{right}, 0, math.Vec3{X: -1}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Target(tt.best, pos, tt.zone)
			if !got.ApproxEqual(tt.want, 1e-5) {
				t.Errorf("Target = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestCompositeTargetWeightsTopTwo(t *testing.T) {
	a := scored(lighting.Point, 30)
	a.Position = math.Vec3{X: -1}
	b := scored(lighting.Point, 10)
	b.Position = math.Vec3{Y: -1}
	weak := scored(lighting.Point, 1)
	weak.Position = math.Vec3{X: 1}

	got := Target([]*lighting.Light{weak, b, a}, math.Vec3{}, 0)
	want := math.Vec3{X: 0.75, Y: 0.25}
	if !got.ApproxEqual(want, 1e-5) {
		t.Errorf("Target = %v, want %v", got, want)
	}
}

func TestCompositeDirectionConverges(t *testing.T) {
	c := NewCompositeDirection()
	l := scored(lighting.Point, 10)
	l.Position = math.Vec3{X: -10, Z: 1}
	best := []*lighting.Light{l}
	pos := math.Vec3{Z: 1}

	// Updates inside the gate are ignored.
	first := c.Update(CompositeUpdateMS, best, pos, 0)
	if got := c.Update(CompositeUpdateMS+10, best, pos, 0); got != first {
		t.Errorf("gated update moved: %v -> %v", first, got)
	}

	now := uint32(CompositeUpdateMS)
	for range 100 {
		now += CompositeUpdateMS
		c.Update(now, best, pos, 0)
	}
	got := c.Current()
	if !got.ApproxEqual(math.Vec3{X: 1}, 0.01) {
		t.Errorf("direction = %v, want (1,0,0)", got)
	}
	if l := got.Length(); math.Abs(l-1) > 1e-4 {
		t.Errorf("|direction| = %v, want 1", l)
	}
}
