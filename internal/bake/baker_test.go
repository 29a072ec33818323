package bake

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/Faultbox/midgard-lighting/internal/engine/lighting"
	"github.com/Faultbox/midgard-lighting/internal/engine/shadowvolume"
	"github.com/Faultbox/midgard-lighting/internal/scene"
	"github.com/Faultbox/midgard-lighting/pkg/formats"
	"github.com/Faultbox/midgard-lighting/pkg/math"
)

func downLight() *lighting.Light {
	l := lighting.NewLight(lighting.Vector)
	l.Name = "sun"
	l.Direction = math.Vec3{X: 0, Y: 0, Z: -1}
	l.Color = math.Gray(0.7)
	l.Ambient = math.Gray(0.3)
	return l
}

func flatTerrain(t *testing.T, name string, origin math.Vec3) *scene.Terrain {
	t.Helper()
	tr, err := scene.NewTerrain(name, origin, 1, 4, nil, math.Gray(0.5))
	if err != nil {
		t.Fatal(err)
	}
	return tr
}

// plate is a 2x4 roof at height 2 over the left half of a 4x4 terrain.
func plate(t *testing.T) *scene.Atlas {
	t.Helper()
	a := math.Vec3{X: 0, Y: 0, Z: 2}
	b := math.Vec3{X: 2, Y: 0, Z: 2}
	c := math.Vec3{X: 2, Y: 4, Z: 2}
	d := math.Vec3{X: 0, Y: 4, Z: 2}
	at, err := scene.NewAtlas("roof", []math.Vec3{a, b, c, a, c, d}, 4, math.Gray(1))
	if err != nil {
		t.Fatal(err)
	}
	return at
}

func hut(t *testing.T) *scene.Interior {
	t.Helper()
	box := math.Box{Max: math.Vec3{X: 2, Y: 2, Z: 2}}
	var surfaces []scene.Surface
	for _, f := range scene.BoxFaces(box, true) {
		s, ok := scene.NewSurface(f, 1, 0.5)
		if !ok {
			t.Fatal("bad hut face")
		}
		surfaces = append(surfaces, s)
	}
	return scene.NewInterior("hut", surfaces, []int32{1}, math.Color{R: 0.2, G: 0.15, B: 0.1})
}

func lamp() *lighting.Light {
	l := lighting.NewLight(lighting.StaticPoint)
	l.Name = "lamp"
	l.Position = math.Vec3{X: 1, Y: 1, Z: 1.5}
	l.Color = math.Color{R: 1, G: 0.8, B: 0.5}
	l.Radius = 3
	return l
}

func texel(lm *formats.Lightmap, x, y int) byte {
	return lm.Pix[(y*lm.Width+x)*3]
}

func TestBakeTerrainUnderRoof(t *testing.T) {
	sc := &scene.Scene{
		Name:     "roofed",
		Sun:      downLight(),
		Terrains: []*scene.Terrain{flatTerrain(t, "ground", math.Vec3{})},
		Atlases:  []*scene.Atlas{plate(t)},
	}
	b, err := New(sc, shadowvolume.New(), Options{})
	if err != nil {
		t.Fatal(err)
	}
	if err := b.Run(); err != nil {
		t.Fatal(err)
	}
	if b.Progress() != 1 {
		t.Errorf("progress = %v after completion", b.Progress())
	}

	ground, ok := b.Result("ground")
	if !ok {
		t.Fatal("no lightmap for ground")
	}
	lm := ground[0]
	for y := range 4 {
		// Under the roof only the ambient term remains.
		if got := texel(lm, 0, y); got != 77 {
			t.Errorf("shadowed texel 0,%d = %d, want 77", y, got)
		}
		// diffuse 0.7 + ambient 0.3
		if got := texel(lm, 3, y); got != 255 {
			t.Errorf("lit texel 3,%d = %d, want 255", y, got)
		}
	}

	roof, _ := b.Result("roof")
	if got := texel(roof[0], 1, 1); got != 255 {
		t.Errorf("roof texel = %d, want 255", got)
	}
}

func TestBakeNoShadows(t *testing.T) {
	sc := &scene.Scene{
		Name:     "roofed",
		Sun:      downLight(),
		Terrains: []*scene.Terrain{flatTerrain(t, "ground", math.Vec3{})},
		Atlases:  []*scene.Atlas{plate(t)},
	}
	b, err := New(sc, shadowvolume.New(), Options{NoShadows: true, Quality: QualityDesign})
	if err != nil {
		t.Fatal(err)
	}
	if err := b.Run(); err != nil {
		t.Fatal(err)
	}
	ground, _ := b.Result("ground")
	for i, p := range ground[0].Pix {
		if p != 255 {
			t.Fatalf("byte %d = %d, want every texel fully lit", i, p)
		}
	}
}

func TestNewErrors(t *testing.T) {
	noLights := &scene.Scene{Terrains: []*scene.Terrain{flatTerrain(t, "ground", math.Vec3{})}}
	if _, err := New(noLights, shadowvolume.New(), Options{}); !errors.Is(err, ErrNoLights) {
		t.Errorf("expected ErrNoLights, got %v", err)
	}
	noObjects := &scene.Scene{Sun: downLight()}
	if _, err := New(noObjects, shadowvolume.New(), Options{}); !errors.Is(err, ErrNoObjects) {
		t.Errorf("expected ErrNoObjects, got %v", err)
	}

	file := filepath.Join(t.TempDir(), "file")
	if err := os.WriteFile(file, nil, 0o644); err != nil {
		t.Fatal(err)
	}
	sc := &scene.Scene{Sun: downLight(), Terrains: noLights.Terrains}
	opts := Options{Persist: true, RequirePersist: true, CacheDir: filepath.Join(file, "cache")}
	if _, err := New(sc, shadowvolume.New(), opts); !errors.Is(err, ErrCacheNotWritable) {
		t.Errorf("expected ErrCacheNotWritable, got %v", err)
	}

	opts.RequirePersist = false
	b, err := New(sc, shadowvolume.New(), opts)
	if err != nil {
		t.Fatalf("optional persistence should degrade, got %v", err)
	}
	if b.CachePath() != "" {
		t.Errorf("cache path = %q, want none", b.CachePath())
	}
}

func TestTerminateKeepsFinishedObjects(t *testing.T) {
	dir := t.TempDir()
	sc := &scene.Scene{Name: "five", Sun: downLight()}
	for i := range 5 {
		origin := math.Vec3{X: float32(i) * 10}
		sc.Terrains = append(sc.Terrains, flatTerrain(t, string(rune('a'+i)), origin))
	}
	completed := 0
	b, err := New(sc, shadowvolume.New(), Options{
		Persist:    true,
		CacheDir:   dir,
		OnComplete: func(*Baker) { completed++ },
	})
	if err != nil {
		t.Fatal(err)
	}

	// start, preprocess, then two objects
	for range 4 {
		if !b.Step() {
			t.Fatal("bake ended early")
		}
	}
	b.Terminate()
	if b.Step() {
		t.Fatal("Step continued after Terminate")
	}
	if !b.Terminated() || b.Running() {
		t.Error("bake should be terminated and idle")
	}
	if completed != 1 {
		t.Errorf("OnComplete ran %d times", completed)
	}

	for i, p := range b.Proxies() {
		want := 0
		if i < 2 {
			want = 1
		}
		if len(p.Lights) != want {
			t.Errorf("object %d has %d lights finalized, want %d", i, len(p.Lights), want)
		}
	}
	if got := texel(b.Proxies()[0].Final[0], 1, 1); got != 255 {
		t.Errorf("finished object texel = %d, want 255", got)
	}
	if got := texel(b.Proxies()[4].Final[0], 1, 1); got != 0 {
		t.Errorf("unfinished object texel = %d, want 0", got)
	}

	matches, _ := filepath.Glob(filepath.Join(dir, "*"+formats.MLExt))
	if len(matches) != 0 {
		t.Errorf("terminated bake wrote %v", matches)
	}
}

func cachedScene(t *testing.T) *scene.Scene {
	return &scene.Scene{
		Name:      "village",
		Sun:       downLight(),
		Lights:    []*lighting.Light{lamp()},
		Interiors: []*scene.Interior{hut(t)},
		Terrains:  []*scene.Terrain{flatTerrain(t, "ground", math.Vec3{X: -1, Y: -1, Z: -0.5})},
		Atlases:   []*scene.Atlas{plate(t)},
	}
}

func TestCacheRoundTrip(t *testing.T) {
	dir := t.TempDir()
	sc := cachedScene(t)
	opts := Options{Persist: true, CacheDir: dir, Blur: true}

	first, err := New(sc, shadowvolume.New(), opts)
	if err != nil {
		t.Fatal(err)
	}
	if err := first.Run(); err != nil {
		t.Fatal(err)
	}
	if first.FromCache() {
		t.Fatal("first bake cannot come from cache")
	}
	if _, err := os.Stat(first.CachePath()); err != nil {
		t.Fatalf("cache file not written: %v", err)
	}

	second, err := New(sc, shadowvolume.New(), opts)
	if err != nil {
		t.Fatal(err)
	}
	steps := 0
	for second.Step() {
		steps++
	}
	if !second.FromCache() {
		t.Fatal("second bake did not use the cache")
	}
	if steps != 1 {
		t.Errorf("cached bake took %d continuing steps, want 1", steps)
	}

	for i, p := range first.Proxies() {
		q := second.Proxies()[i]
		if len(p.Final) != len(q.Final) {
			t.Fatalf("%s: %d maps, reloaded %d", p.Name(), len(p.Final), len(q.Final))
		}
		for j := range p.Final {
			a, b := p.Final[j].Pix, q.Final[j].Pix
			for k := range a {
				if a[k] != b[k] {
					t.Fatalf("%s map %d differs at byte %d: %d vs %d", p.Name(), j, k, a[k], b[k])
				}
			}
		}
	}
}

func TestCacheInvalidatedByLightChange(t *testing.T) {
	dir := t.TempDir()
	sc := cachedScene(t)
	opts := Options{Persist: true, CacheDir: dir}

	b, err := New(sc, shadowvolume.New(), opts)
	if err != nil {
		t.Fatal(err)
	}
	if err := b.Run(); err != nil {
		t.Fatal(err)
	}

	sc.Lights[0].Color = math.Gray(0.2)
	again, err := New(sc, shadowvolume.New(), opts)
	if err != nil {
		t.Fatal(err)
	}
	if err := again.Run(); err != nil {
		t.Fatal(err)
	}
	if again.FromCache() {
		t.Error("changed light reused the old cache")
	}
	if again.MissionCRC() == b.MissionCRC() {
		t.Error("mission CRC did not change")
	}
}

func TestInteriorZones(t *testing.T) {
	in := hut(t)
	p, err := newProxy(in, 0)
	if err != nil {
		t.Fatal(err)
	}
	l := lamp()
	l.DiffuseRestrictZone = true
	l.Zones = [2]int32{2, lighting.NoZone}
	if d, a := p.zones(l, 0); d || !a {
		t.Errorf("zone 2 light in zone 1 hut: diffuse=%v ambient=%v", d, a)
	}
	l.Zones[1] = 1
	if d, _ := p.zones(l, 0); !d {
		t.Error("light sharing zone 1 should reach the hut")
	}
}

func TestCachePath(t *testing.T) {
	tests := []struct {
		name string
		q    Quality
		want string
	}{
		{"village", QualityFull, "village.ml"},
		{"village", QualityDraft, "village-raw.ml"},
		{"a/b:c", QualityFull, "a_b_c.ml"},
		{"", QualityDesign, "scene-raw.ml"},
	}
	for _, tt := range tests {
		if got := filepath.Base(CachePath("cache", tt.name, tt.q)); got != tt.want {
			t.Errorf("CachePath(%q, %v) = %q, want %q", tt.name, tt.q, got, tt.want)
		}
	}
}
