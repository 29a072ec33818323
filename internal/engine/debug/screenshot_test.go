package debug

import (
	"image/png"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/Faultbox/midgard-lighting/internal/engine/pool"
	"github.com/Faultbox/midgard-lighting/internal/export"
)

func fixedCapture(dir string) *ScreenshotCapture {
	sc := NewScreenshotCapture(dir, "shot", export.PNG)
	sc.now = func() time.Time { return time.Date(2024, 5, 1, 12, 30, 0, 0, time.UTC) }
	return sc
}

func TestGenerateFilename(t *testing.T) {
	sc := fixedCapture("out")
	want := filepath.Join("out", "shot_2024-05-01_12-30-00.000_x.png")
	if got := sc.GenerateFilename("_x"); got != want {
		t.Errorf("GenerateFilename = %q, want %q", got, want)
	}
}

func TestCaptureFromPixelsFlips(t *testing.T) {
	sc := fixedCapture(t.TempDir())
	// 1x2: bottom row red, top row blue as OpenGL returns them.
	pixels := []byte{
		255, 0, 0, 255,
		0, 0, 255, 255,
	}
	path, err := sc.CaptureFromPixels(pixels, 1, 2)
	if err != nil {
		t.Fatal(err)
	}

	f, err := os.Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	img, err := png.Decode(f)
	if err != nil {
		t.Fatal(err)
	}
	if r, _, b, _ := img.At(0, 0).RGBA(); r != 0 || b != 0xffff {
		t.Errorf("top pixel = r%d b%d, want blue", r, b)
	}

	if _, err := sc.CaptureFromPixels(pixels, 2, 2); err == nil {
		t.Error("expected size mismatch error")
	}
}

func TestCaptureTextures(t *testing.T) {
	p := pool.New(&pool.SoftwareAllocator{}, pool.Options{})
	color, err := p.Acquire(pool.Key{Width: 4, Height: 4, Format: pool.FormatR8})
	if err != nil {
		t.Fatal(err)
	}
	color.Resource.(*pool.Image).Pix[0] = 200
	depth, err := p.Acquire(pool.Key{Width: 4, Height: 4, Format: pool.FormatDepth24})
	if err != nil {
		t.Fatal(err)
	}

	sc := fixedCapture(t.TempDir())
	paths, err := sc.CaptureTextures([]*pool.Texture{color, depth})
	if err != nil {
		t.Fatal(err)
	}
	if len(paths) != 1 {
		t.Fatalf("captured %d textures, want 1 (depth is skipped)", len(paths))
	}
	if filepath.Base(paths[0]) != "shot_2024-05-01_12-30-00.000_r8_00.png" {
		t.Errorf("path = %s", filepath.Base(paths[0]))
	}
}
