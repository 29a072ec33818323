package scene

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/Faultbox/midgard-lighting/internal/engine/lighting"
	"github.com/Faultbox/midgard-lighting/pkg/math"
)

func approx(a, b, eps float32) bool {
	return math.Abs(a-b) <= eps
}

func quadArea(q [4]math.Vec3) float32 {
	return q[1].Sub(q[0]).Cross(q[3].Sub(q[0])).Length()
}

func floor(size float32) []math.Vec3 {
	return []math.Vec3{{X: 0, Y: 0}, {X: size, Y: 0}, {X: size, Y: size}, {X: 0, Y: size}}
}

func TestParseObjectKind(t *testing.T) {
	for _, k := range []ObjectKind{KindInterior, KindTerrain, KindAtlas} {
		got, err := ParseObjectKind(k.String())
		if err != nil || got != k {
			t.Errorf("ParseObjectKind(%q) = %v, %v", k.String(), got, err)
		}
	}
	if _, err := ParseObjectKind("vehicle"); !errors.Is(err, ErrUnknownKind) {
		t.Errorf("expected ErrUnknownKind, got %v", err)
	}
}

func TestSurfaceBasis(t *testing.T) {
	s, ok := NewSurface(floor(2), 1, 0.5)
	if !ok {
		t.Fatal("NewSurface rejected a square")
	}
	if !s.Plane.Normal.ApproxEqual(math.Vec3{X: 0, Y: 0, Z: 1}, 1e-5) {
		t.Errorf("normal = %v, want +Z", s.Plane.Normal)
	}
	if s.Width != 5 || s.Height != 5 {
		t.Errorf("lightmap = %dx%d, want 5x5", s.Width, s.Height)
	}
	if n := s.S.Cross(s.T).Normalize(); !n.ApproxEqual(s.Plane.Normal, 1e-5) {
		t.Errorf("S x T = %v, not the surface normal", n)
	}

	in := NewInterior("room", []Surface{s}, []int32{1}, math.Gray(0.5))
	var count int
	var area float32
	in.Lexels(0, 1, func(l Lexel) {
		count++
		area += quadArea(l.Quad)
		if math.Abs(s.Plane.Distance(l.Pos)) > 1e-4 {
			t.Errorf("lexel %d,%d off the surface plane", l.X, l.Y)
		}
	})
	if count != 25 {
		t.Errorf("visited %d lexels, want 25", count)
	}
	if !approx(area, 4, 1e-3) {
		t.Errorf("lexel footprints cover %v, want 4", area)
	}

	var sub int
	in.Lexels(0, 2, func(Lexel) { sub++ })
	if sub != 9 {
		t.Errorf("step 2 visited %d lexels, want 9", sub)
	}
}

func TestSurfaceDegenerate(t *testing.T) {
	line := []math.Vec3{{X: 0}, {X: 1}, {X: 2}}
	if _, ok := NewSurface(line, 0, 1); ok {
		t.Error("collinear polygon accepted")
	}
	if _, ok := NewSurface(line[:2], 0, 1); ok {
		t.Error("two-point polygon accepted")
	}
}

func TestBoxFacesPointOutward(t *testing.T) {
	b := math.Box{Min: math.Vec3{X: -1, Y: -1, Z: -1}, Max: math.Vec3{X: 1, Y: 1, Z: 1}}
	for _, inward := range []bool{false, true} {
		for i, f := range BoxFaces(b, inward) {
			p, ok := polyPlane(f)
			if !ok {
				t.Fatalf("face %d degenerate", i)
			}
			outside := p.Distance(math.Vec3{}) < 0
			if outside == inward {
				t.Errorf("inward=%v face %d faces the wrong way", inward, i)
			}
		}
	}
}

func TestTerrainHeights(t *testing.T) {
	// 2x2 squares, a ridge along x=1.
	heights := []float32{
		0, 2, 0,
		0, 2, 0,
		0, 2, 0,
	}
	ter, err := NewTerrain("hill", math.Vec3{}, 1, 2, heights, math.Gray(1))
	if err != nil {
		t.Fatal(err)
	}
	tests := []struct {
		x, y, want float32
	}{
		{0, 0, 0},
		{1, 1, 2},
		{0.5, 0.5, 1},
		{1.5, 2, 1},
		{-5, -5, 0},
	}
	for _, tt := range tests {
		if got := ter.HeightAt(tt.x, tt.y); !approx(got, tt.want, 1e-5) {
			t.Errorf("HeightAt(%v, %v) = %v, want %v", tt.x, tt.y, got, tt.want)
		}
	}

	var normals []math.Vec3
	ter.Lexels(0, 1, func(l Lexel) { normals = append(normals, l.Normal) })
	if len(normals) != 4 {
		t.Fatalf("got %d lexels, want 4", len(normals))
	}
	// The west squares rise toward +X so their normals lean toward -X.
	if normals[0].X >= 0 || normals[1].X <= 0 || normals[0].Z <= 0 {
		t.Errorf("unexpected slope normals %v %v", normals[0], normals[1])
	}

	var polys int
	ter.ShadowPolys(ter.WorldBox(), func([]math.Vec3, int32) { polys++ })
	if polys != 8 {
		t.Errorf("ShadowPolys emitted %d triangles, want 8", polys)
	}

	if _, err := NewTerrain("bad", math.Vec3{}, 1, 2, heights[:5], math.Gray(1)); err == nil {
		t.Error("short height list accepted")
	}

	flat, err := NewTerrain("flat", math.Vec3{Z: 3}, 1, 2, nil, math.Gray(1))
	if err != nil {
		t.Fatal(err)
	}
	if len(flat.Heights) != 9 || !approx(flat.HeightAt(1, 1), 3, 1e-5) {
		t.Errorf("flat terrain: %d heights, height %v", len(flat.Heights), flat.HeightAt(1, 1))
	}
}

func TestAtlasLexels(t *testing.T) {
	// Unit quad at z=1 plus a vertical wall that must not receive lexels.
	tris := []math.Vec3{
		{X: 0, Y: 0, Z: 1}, {X: 4, Y: 0, Z: 1}, {X: 4, Y: 4, Z: 1},
		{X: 0, Y: 0, Z: 1}, {X: 4, Y: 4, Z: 1}, {X: 0, Y: 4, Z: 1},
		{X: 2, Y: 0, Z: 0}, {X: 2, Y: 4, Z: 0}, {X: 2, Y: 4, Z: 1},
	}
	a, err := NewAtlas("deck", tris, 4, math.Gray(1))
	if err != nil {
		t.Fatal(err)
	}
	var count int
	var area float32
	a.Lexels(0, 1, func(l Lexel) {
		count++
		area += quadArea(l.Quad)
		if !approx(l.Pos.Z, 1, 1e-5) || l.Normal.Z < 0.99 {
			t.Errorf("lexel %d,%d at %v normal %v", l.X, l.Y, l.Pos, l.Normal)
		}
	})
	if count != 16 || !approx(area, 16, 1e-3) {
		t.Errorf("got %d lexels covering %v, want 16 covering 16", count, area)
	}

	if _, err := NewAtlas("bad", tris[:4], 4, math.Gray(1)); err == nil {
		t.Error("partial triangle list accepted")
	}
}

func TestShapeCaster(t *testing.T) {
	s := NewShape("crate", math.Vec3{X: 3, Y: 0, Z: 1}, math.Vec3{X: 2, Y: 2, Z: 2})
	if !s.ShadowDirty() {
		t.Error("new shape should be dirty")
	}
	s.ClearShadowDirty()
	s.SetPosition(s.Position())
	if s.ShadowDirty() {
		t.Error("no-op move marked the shape dirty")
	}
	s.SetPosition(math.Vec3{X: 4, Y: 0, Z: 1})
	if !s.ShadowDirty() {
		t.Error("move did not mark the shape dirty")
	}

	box := s.WorldBox()
	want := math.Box{Min: math.Vec3{X: 3, Y: -1, Z: 0}, Max: math.Vec3{X: 5, Y: 1, Z: 2}}
	if !box.Min.ApproxEqual(want.Min, 1e-5) || !box.Max.ApproxEqual(want.Max, 1e-5) {
		t.Errorf("WorldBox = %v, want %v", box, want)
	}

	tris := s.Triangles()
	if len(tris) != 36 {
		t.Fatalf("got %d triangle vertices, want 36", len(tris))
	}
	for i := 0; i < len(tris); i += 3 {
		p, ok := math.PlaneFromPoints(tris[i], tris[i+1], tris[i+2])
		if !ok || p.Distance(math.Vec3{}) >= 0 {
			t.Errorf("triangle %d faces inward", i/3)
		}
	}
}

const testSceneYAML = `
name: courtyard
sun:
  azimuth: 45
  elevation: 60
  color: [0.8, 0.8, 0.7]
  ambient: [0.2, 0.2, 0.2]
lights:
  - name: lamp
    kind: static_point
    model: inverse_square
    position: [2, 2, 3]
    color: [1, 0.9, 0.7]
    radius: 8
  - name: torch
    kind: point
    position: [0, 0, 2]
    color: [1, 0.5, 0]
    zones: [1]
    restrict_zones: diffuse
interiors:
  - name: hut
    zones: [1]
    base_color: [0.5, 0.5, 0.5]
    lexel_size: 1
    boxes:
      - min: [0, 0, 0]
        max: [2, 2, 2]
        inward: true
        zone: 1
terrains:
  - name: ground
    origin: [-8, -8, 0]
    square_size: 2
    size: 8
shapes:
  - name: crate
    position: [4, 4, 0.5]
    size: [1, 1, 1]
`

func writeScene(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "scene.yaml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadYAML(t *testing.T) {
	s, err := Load(writeScene(t, testSceneYAML))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if s.Name != "courtyard" || s.Sun == nil || len(s.Lights) != 2 {
		t.Fatalf("scene = %q sun=%v lights=%d", s.Name, s.Sun, len(s.Lights))
	}
	if len(s.Interiors) != 1 || len(s.Interiors[0].Surfaces) != 6 {
		t.Fatalf("interior surfaces = %d", len(s.Interiors[0].Surfaces))
	}
	if len(s.Terrains) != 1 || len(s.Terrains[0].Heights) != 81 {
		t.Errorf("flat terrain not expanded")
	}
	if len(s.Shapes) != 1 {
		t.Errorf("shapes = %d", len(s.Shapes))
	}

	torch := s.Lights[1]
	if torch.Kind != lighting.Point || !torch.DiffuseRestrictZone || torch.Zones[0] != 1 {
		t.Errorf("torch = %+v", torch)
	}

	// The dynamic torch is not baked.
	bake := s.BakeLights()
	if len(bake) != 2 || bake[0] != s.Sun || bake[1].Name != "lamp" {
		t.Errorf("BakeLights = %v", bake)
	}

	recv := s.Receivers()
	if len(recv) != 2 || recv[0].Kind() != KindInterior || recv[1].Kind() != KindTerrain {
		t.Errorf("Receivers order = %v", recv)
	}
	if r, ok := s.Find("ground"); !ok || r.Kind() != KindTerrain {
		t.Error("Find(ground) failed")
	}

	m := lighting.NewManager(lighting.ModelStock, 4)
	s.Register(m)
	if m.SpecialLight(lighting.SunLight) != s.Sun {
		t.Error("sun not installed")
	}
}

func TestLoadYAMLErrors(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"bad kind", "lights:\n  - kind: laser\n"},
		{"bad model", "lights:\n  - kind: point\n    model: fancy\n"},
		{"bad zones", "lights:\n  - kind: point\n    restrict_zones: attic\n"},
		{"empty interior", "interiors:\n  - name: void\n"},
		{"bad terrain", "terrains:\n  - name: t\n    size: 2\n    square_size: 1\n    heights: [1, 2]\n"},
		{"not yaml", "lights: [\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := Load(writeScene(t, tt.body)); err == nil {
				t.Error("expected an error")
			}
		})
	}
}

func TestMissionCRC(t *testing.T) {
	load := func() *Scene {
		s, err := Load(writeScene(t, testSceneYAML))
		if err != nil {
			t.Fatal(err)
		}
		return s
	}
	a, b := load(), load()
	if a.MissionCRC() != b.MissionCRC() {
		t.Fatal("same scene produced different CRCs")
	}

	b.Lights[0].Radius = 9
	if a.MissionCRC() == b.MissionCRC() {
		t.Error("changing a baked light kept the CRC")
	}

	c := load()
	c.Lights[1].Radius = 50 // dynamic light
	if a.MissionCRC() != c.MissionCRC() {
		t.Error("changing a dynamic light changed the CRC")
	}

	d := load()
	d.Terrains[0].Heights[3] = 1
	d.Terrains[0], _ = NewTerrain("ground", d.Terrains[0].Origin, 2, 8, d.Terrains[0].Heights, math.Gray(0))
	if a.MissionCRC() == d.MissionCRC() {
		t.Error("changing terrain kept the CRC")
	}
}

func TestMissionCRCOrderIndependent(t *testing.T) {
	atlas := func(name string, z float32) *Atlas {
		a, err := NewAtlas(name, []math.Vec3{{Z: z}, {X: 1, Z: z}, {Y: 1, Z: z}}, 4, math.Gray(1))
		if err != nil {
			t.Fatal(err)
		}
		return a
	}
	light := func(name string, x float32) *lighting.Light {
		l := lighting.NewLight(lighting.StaticPoint)
		l.Name = name
		l.Position = math.Vec3{X: x}
		l.Radius = 5
		return l
	}
	a1, a2 := atlas("low", 0), atlas("high", 3)
	l1, l2 := light("west", -4), light("east", 4)

	s := &Scene{Name: "yard", Atlases: []*Atlas{a1, a2}, Lights: []*lighting.Light{l1, l2}}
	swapped := &Scene{Name: "yard", Atlases: []*Atlas{a2, a1}, Lights: []*lighting.Light{l2, l1}}
	if s.MissionCRC() != swapped.MissionCRC() {
		t.Error("reordering objects and lights changed the CRC")
	}

	moved := &Scene{Name: "yard", Atlases: []*Atlas{a1, atlas("high", 4)}, Lights: []*lighting.Light{l1, l2}}
	if s.MissionCRC() == moved.MissionCRC() {
		t.Error("moving an object kept the CRC")
	}
}

func TestShadowReceivers(t *testing.T) {
	s, err := Load(writeScene(t, testSceneYAML))
	if err != nil {
		t.Fatal(err)
	}
	box := math.Box{Min: math.Vec3{X: 3, Y: 3, Z: -1}, Max: math.Vec3{X: 5, Y: 5, Z: 1}}
	polys := s.ShadowReceivers(box)
	// Terrain squares under the box only; the hut is elsewhere.
	if len(polys) != 8 {
		t.Errorf("got %d receiver polygons, want 8", len(polys))
	}
}
