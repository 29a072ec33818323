package export

import (
	"bytes"
	"errors"
	"image"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/HugoSmits86/nativewebp"
	"github.com/ftrvxmtrx/tga"
	"golang.org/x/image/bmp"

	"github.com/Faultbox/midgard-lighting/internal/bake"
	"github.com/Faultbox/midgard-lighting/pkg/formats"
	"github.com/Faultbox/midgard-lighting/pkg/math"
)

func gradient(w, h int, seed byte) *formats.Lightmap {
	lm := formats.NewLightmap(w, h)
	for i := range lm.Pix {
		lm.Pix[i] = byte(i)*7 + seed
	}
	return lm
}

func TestParseFormat(t *testing.T) {
	tests := []struct {
		in   string
		want Format
	}{
		{"png", PNG},
		{".TGA", TGA},
		{"bmp", BMP},
		{"WebP", WebP},
	}
	for _, tt := range tests {
		got, err := ParseFormat(tt.in)
		if err != nil || got != tt.want {
			t.Errorf("ParseFormat(%q) = %v, %v", tt.in, got, err)
		}
	}
	if _, err := ParseFormat("jpeg"); !errors.Is(err, ErrUnknownFormat) {
		t.Errorf("expected ErrUnknownFormat, got %v", err)
	}
}

func TestEncodeLossless(t *testing.T) {
	lm := gradient(5, 3, 11)
	decoders := map[Format]func(*bytes.Reader) (image.Image, error){
		PNG:  func(r *bytes.Reader) (image.Image, error) { return png.Decode(r) },
		TGA:  func(r *bytes.Reader) (image.Image, error) { return tga.Decode(r) },
		BMP:  func(r *bytes.Reader) (image.Image, error) { return bmp.Decode(r) },
		WebP: func(r *bytes.Reader) (image.Image, error) { return nativewebp.Decode(r) },
	}
	for f, decode := range decoders {
		t.Run(f.String(), func(t *testing.T) {
			var buf bytes.Buffer
			if err := Encode(&buf, lm.Image(), f); err != nil {
				t.Fatal(err)
			}
			img, err := decode(bytes.NewReader(buf.Bytes()))
			if err != nil {
				t.Fatal(err)
			}
			back := formats.LightmapFromImage(img)
			if back.Width != lm.Width || back.Height != lm.Height {
				t.Fatalf("size = %dx%d", back.Width, back.Height)
			}
			if !bytes.Equal(back.Pix, lm.Pix) {
				t.Errorf("pixels changed through %s", f)
			}
		})
	}
}

func TestBuildAtlas(t *testing.T) {
	maps := []*formats.Lightmap{gradient(4, 4, 1), gradient(8, 2, 2), gradient(3, 5, 3)}
	a := BuildAtlas(maps)

	if a.Size != 64 {
		t.Errorf("size = %d, want 64", a.Size)
	}
	if a.TileWidth != 8 || a.TileHeight != 5 {
		t.Errorf("tile = %dx%d, want 8x5", a.TileWidth, a.TileHeight)
	}
	if a.TilesPerRow != 8 || a.Count != 3 {
		t.Errorf("tiles per row %d, count %d", a.TilesPerRow, a.Count)
	}

	// Third tile starts at x=16.
	off := a.Image.PixOffset(16, 0)
	if got := a.Image.Pix[off : off+3]; !bytes.Equal(got, maps[2].Pix[:3]) {
		t.Errorf("tile 2 origin = %v, want %v", got, maps[2].Pix[:3])
	}
	// Unused texels stay white.
	off = a.Image.PixOffset(63, 63)
	if a.Image.Pix[off] != 0xff {
		t.Error("padding is not white")
	}

	uv := a.UV(1, 0)
	if want := float32(8.5) / 64; math.Abs(uv[0]-want) > 1e-6 {
		t.Errorf("tile 1 u = %v, want %v", uv[0], want)
	}
	if uv := a.UV(9, 0); uv != [2]float32{0.5, 0.5} {
		t.Errorf("missing tile uv = %v", uv)
	}
}

func TestBuildAtlasEmpty(t *testing.T) {
	a := BuildAtlas(nil)
	if a.Size != 8 || a.Image.Pix[0] != 0xff {
		t.Errorf("empty atlas = %d, first byte %d", a.Size, a.Image.Pix[0])
	}
}

func TestExportML(t *testing.T) {
	dir := t.TempDir()
	base := math.Color{R: 0.2, G: 0.4, B: 0.6}
	room := []*formats.Lightmap{gradient(4, 4, 5), gradient(4, 4, 9)}

	ml := formats.NewML(1)
	ml.Chunks = append(ml.Chunks,
		formats.Chunk{Type: formats.InteriorChunk, CRC: 2, Interior: &formats.InteriorData{
			DetailLightmapCounts:  []uint32{2},
			DetailLightmapIndices: []uint32{0, 1},
			Lightmaps:             []*formats.Lightmap{bake.DiffEncode(room[0], base), bake.DiffEncode(room[1], base)},
		}},
		formats.Chunk{Type: formats.TerrainChunk, CRC: 3, Lightmap: gradient(8, 8, 0)},
	)

	paths, err := ML(ml, dir, PNG, []ObjectInfo{{Name: "room", Base: &base}, {Name: "ground"}}, true)
	if err != nil {
		t.Fatal(err)
	}
	want := []string{"room_000.png", "room_001.png", "ground.png"}
	if len(paths) != len(want) {
		t.Fatalf("wrote %v", paths)
	}
	for i, p := range paths {
		if filepath.Base(p) != want[i] {
			t.Errorf("path %d = %s, want %s", i, filepath.Base(p), want[i])
		}
	}

	f, err := os.Open(filepath.Join(dir, "room_001.png"))
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	img, err := png.Decode(f)
	if err != nil {
		t.Fatal(err)
	}
	if got := formats.LightmapFromImage(img); !bytes.Equal(got.Pix, room[1].Pix) {
		t.Error("interior lightmap was not decoded against its base color")
	}

	// Without object names interiors keep their stored difference maps.
	paths, err = ML(ml, t.TempDir(), BMP, nil, false)
	if err != nil {
		t.Fatal(err)
	}
	if filepath.Base(paths[0]) != "00_interior_diff_atlas.bmp" {
		t.Errorf("unnamed interior written as %s", filepath.Base(paths[0]))
	}
}
