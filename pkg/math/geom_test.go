package math

import "testing"

func TestPlaneFromPoints(t *testing.T) {
	p, ok := PlaneFromPoints(Vec3{0, 0, 1}, Vec3{1, 0, 1}, Vec3{0, 1, 1})
	if !ok {
		t.Fatal("expected valid plane")
	}
	if !p.Normal.ApproxEqual(Vec3{0, 0, 1}, 1e-6) {
		t.Errorf("normal = %v, want (0,0,1)", p.Normal)
	}
	if d := p.Distance(Vec3{5, 5, 3}); Abs(d-2) > 1e-5 {
		t.Errorf("Distance() = %v, want 2", d)
	}

	if _, ok := PlaneFromPoints(Vec3{0, 0, 0}, Vec3{1, 0, 0}, Vec3{2, 0, 0}); ok {
		t.Error("collinear points should not produce a plane")
	}
}

func TestPlaneClassify(t *testing.T) {
	p := PlaneFromNormal(Vec3{}, Vec3{0, 1, 0})
	tests := []struct {
		pt   Vec3
		want Side
	}{
		{Vec3{0, 1, 0}, Front},
		{Vec3{0, -1, 0}, Back},
		{Vec3{3, 0.0001, 0}, On},
	}
	for _, tt := range tests {
		if got := p.Classify(tt.pt, 0.001); got != tt.want {
			t.Errorf("Classify(%v) = %v, want %v", tt.pt, got, tt.want)
		}
	}
	if p.Flip().Classify(Vec3{0, 1, 0}, 0.001) != Back {
		t.Error("flipped plane should put +Y behind")
	}
}

func TestBoxClosestPoint(t *testing.T) {
	b := Box{Min: Vec3{-1, -1, -1}, Max: Vec3{1, 1, 1}}
	got := b.ClosestPoint(Vec3{5, 0, -3})
	want := Vec3{1, 0, -1}
	if got != want {
		t.Errorf("ClosestPoint() = %v, want %v", got, want)
	}
	if b.ClosestPoint(Vec3{0.5, 0, 0}) != (Vec3{0.5, 0, 0}) {
		t.Error("inside point should be returned unchanged")
	}
}

func TestBoxSphere(t *testing.T) {
	b := Box{Min: Vec3{0, 0, 0}, Max: Vec3{2, 2, 2}}
	s := b.Sphere()
	if s.Center != (Vec3{1, 1, 1}) {
		t.Errorf("center = %v", s.Center)
	}
	if Abs(s.Radius-Sqrt(3)) > 1e-5 {
		t.Errorf("radius = %v, want sqrt(3)", s.Radius)
	}
}

func TestBoxOverlaps(t *testing.T) {
	a := Box{Min: Vec3{0, 0, 0}, Max: Vec3{1, 1, 1}}
	tests := []struct {
		name string
		b    Box
		want bool
	}{
		{"overlap", Box{Min: Vec3{0.5, 0.5, 0.5}, Max: Vec3{2, 2, 2}}, true},
		{"touch", Box{Min: Vec3{1, 0, 0}, Max: Vec3{2, 1, 1}}, true},
		{"apart", Box{Min: Vec3{3, 3, 3}, Max: Vec3{4, 4, 4}}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := a.Overlaps(tt.b); got != tt.want {
				t.Errorf("Overlaps() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestColorLuminance(t *testing.T) {
	c := Gray(1)
	if l := c.Luminance(); Abs(l-1.004) > 1e-4 {
		t.Errorf("Luminance() = %v, want 1.004", l)
	}
	r, g, b := Color{0.5, 1.5, -1}.Bytes()
	if r != 128 || g != 255 || b != 0 {
		t.Errorf("Bytes() = %d %d %d", r, g, b)
	}
}
