// Package debug provides capture utilities for the viewer.
package debug

import (
	"fmt"
	"image"
	"path/filepath"
	"time"

	"github.com/Faultbox/midgard-lighting/internal/engine/pool"
	"github.com/Faultbox/midgard-lighting/internal/export"
)

// ScreenshotCapture writes frames and pool textures into a directory.
type ScreenshotCapture struct {
	outputDir string
	prefix    string
	format    export.Format
	now       func() time.Time
}

// NewScreenshotCapture creates a new screenshot capture handler.
func NewScreenshotCapture(outputDir, prefix string, format export.Format) *ScreenshotCapture {
	return &ScreenshotCapture{
		outputDir: outputDir,
		prefix:    prefix,
		format:    format,
		now:       time.Now,
	}
}

// GenerateFilename generates a screenshot filename without saving.
func (sc *ScreenshotCapture) GenerateFilename(suffix string) string {
	name := fmt.Sprintf("%s_%s%s%s", sc.prefix, sc.now().Format("2006-01-02_15-04-05.000"), suffix, sc.format.Ext())
	return filepath.Join(sc.outputDir, name)
}

// CaptureFromPixels saves RGBA pixels read back from OpenGL. Rows are
// flipped since OpenGL has its origin at the bottom left.
func (sc *ScreenshotCapture) CaptureFromPixels(pixels []byte, width, height int) (string, error) {
	if len(pixels) != width*height*4 {
		return "", fmt.Errorf("pixel data size mismatch: expected %d, got %d", width*height*4, len(pixels))
	}

	img := image.NewNRGBA(image.Rect(0, 0, width, height))
	rowSize := width * 4
	for y := 0; y < height; y++ {
		src := (height - 1 - y) * rowSize
		copy(img.Pix[y*img.Stride:y*img.Stride+rowSize], pixels[src:src+rowSize])
	}
	return sc.CaptureFromImage(img, "")
}

// CaptureFromImage saves img with an optional filename suffix.
func (sc *ScreenshotCapture) CaptureFromImage(img image.Image, suffix string) (string, error) {
	filename := sc.GenerateFilename(suffix)
	if err := export.WriteImage(filename, img, sc.format); err != nil {
		return "", err
	}
	return filename, nil
}

// PixelReader is a render target that can read its pixels back, top row
// first. framebuffer.Target implements it.
type PixelReader interface {
	ReadPixels() []byte
	Size() (width, height int32)
	Format() pool.Format
}

// TextureImage converts a pooled render target to an image. Depth targets
// are not convertible.
func TextureImage(res pool.Resource) (image.Image, bool) {
	var (
		w, h   int
		format pool.Format
		pix    []byte
	)
	switch r := res.(type) {
	case *pool.Image:
		w, h, format, pix = int(r.Width), int(r.Height), r.Format, r.Pix
	case PixelReader:
		rw, rh := r.Size()
		w, h, format, pix = int(rw), int(rh), r.Format(), r.ReadPixels()
	default:
		return nil, false
	}

	switch format {
	case pool.FormatR8:
		g := image.NewGray(image.Rect(0, 0, w, h))
		copy(g.Pix, pix)
		return g, true
	case pool.FormatRGBA8:
		img := image.NewNRGBA(image.Rect(0, 0, w, h))
		copy(img.Pix, pix)
		return img, true
	}
	return nil, false
}

// CaptureTextures saves every convertible texture and returns the paths.
func (sc *ScreenshotCapture) CaptureTextures(textures []*pool.Texture) ([]string, error) {
	var paths []string
	for i, t := range textures {
		img, ok := TextureImage(t.Resource)
		if !ok {
			continue
		}
		path, err := sc.CaptureFromImage(img, fmt.Sprintf("_%s_%02d", t.Key().Format, i))
		if err != nil {
			return paths, err
		}
		paths = append(paths, path)
	}
	return paths, nil
}
