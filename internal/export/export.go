// Package export writes baked lightmaps as ordinary images for inspection.
package export

import (
	"errors"
	"fmt"
	"image"
	"image/png"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/HugoSmits86/nativewebp"
	"github.com/ftrvxmtrx/tga"
	"golang.org/x/image/bmp"

	"github.com/Faultbox/midgard-lighting/internal/bake"
	"github.com/Faultbox/midgard-lighting/pkg/formats"
	"github.com/Faultbox/midgard-lighting/pkg/math"
)

var ErrUnknownFormat = errors.New("unknown image format")

// Format is an output image encoding.
type Format uint8

const (
	PNG Format = iota
	TGA
	BMP
	WebP
)

var formatNames = [...]string{"png", "tga", "bmp", "webp"}

func (f Format) String() string {
	if int(f) < len(formatNames) {
		return formatNames[f]
	}
	return fmt.Sprintf("Format(%d)", f)
}

// Ext is the file extension including the dot.
func (f Format) Ext() string { return "." + f.String() }

// ParseFormat accepts a format name or extension, case-insensitively.
func ParseFormat(s string) (Format, error) {
	s = strings.TrimPrefix(strings.ToLower(s), ".")
	for i, n := range formatNames {
		if n == s {
			return Format(i), nil
		}
	}
	return PNG, fmt.Errorf("%w: %q", ErrUnknownFormat, s)
}

// Encode writes img in format f. WebP output is lossless.
func Encode(w io.Writer, img image.Image, f Format) error {
	switch f {
	case PNG:
		return png.Encode(w, img)
	case TGA:
		return tga.Encode(w, img)
	case BMP:
		return bmp.Encode(w, img)
	case WebP:
		return nativewebp.Encode(w, img, nil)
	}
	return fmt.Errorf("%w: %v", ErrUnknownFormat, f)
}

// WriteImage encodes img into path, creating parent directories.
func WriteImage(path string, img image.Image, f Format) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	out, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := Encode(out, img, f); err != nil {
		out.Close()
		os.Remove(path)
		return fmt.Errorf("%s: %w", filepath.Base(path), err)
	}
	return out.Close()
}

// Object writes an object's lightmaps into dir. A single map is written as
// name.ext; several are packed into one atlas image unless separate is
// set, in which case they become name_000.ext and so on. It returns the
// written paths.
func Object(dir, name string, maps []*formats.Lightmap, f Format, separate bool) ([]string, error) {
	name = safeName(name)
	switch {
	case len(maps) == 0:
		return nil, nil
	case len(maps) == 1:
		path := filepath.Join(dir, name+f.Ext())
		return []string{path}, WriteImage(path, maps[0].Image(), f)
	case !separate:
		a := BuildAtlas(maps)
		if a.Count < len(maps) {
			return nil, fmt.Errorf("%s: %d lightmaps do not fit a %d atlas", name, len(maps), a.Size)
		}
		path := filepath.Join(dir, name+"_atlas"+f.Ext())
		return []string{path}, WriteImage(path, a.Image, f)
	}
	var paths []string
	for i, lm := range maps {
		path := filepath.Join(dir, fmt.Sprintf("%s_%03d%s", name, i, f.Ext()))
		if err := WriteImage(path, lm.Image(), f); err != nil {
			return paths, err
		}
		paths = append(paths, path)
	}
	return paths, nil
}

// ObjectInfo names a cache chunk's object. Base decodes interior maps;
// without it they are written as stored, relative to the base color.
type ObjectInfo struct {
	Name string
	Base *math.Color
}

// ML writes every lightmap stored in a cache file. objects, if not nil,
// names the chunks in order.
func ML(ml *formats.ML, dir string, f Format, objects []ObjectInfo, separate bool) ([]string, error) {
	var written []string
	for i, c := range ml.Objects() {
		name := fmt.Sprintf("%02d_%s", i, c.Type)
		var base *math.Color
		if i < len(objects) {
			name, base = objects[i].Name, objects[i].Base
		}
		var maps []*formats.Lightmap
		if c.Interior != nil {
			maps = c.Interior.Lightmaps
			if base != nil {
				decoded := make([]*formats.Lightmap, len(maps))
				for j, d := range maps {
					decoded[j] = bake.DiffDecode(d, *base)
				}
				maps = decoded
			} else {
				name += "_diff"
			}
		} else if c.Lightmap != nil {
			maps = []*formats.Lightmap{c.Lightmap}
		}
		paths, err := Object(dir, name, maps, f, separate)
		written = append(written, paths...)
		if err != nil {
			return written, err
		}
		if c.Interior != nil && len(c.Interior.NormalLightmaps) > 0 {
			var normals []*formats.Lightmap
			for _, n := range c.Interior.NormalLightmaps {
				if n != nil {
					normals = append(normals, n)
				}
			}
			paths, err := Object(dir, name+"_normal", normals, f, separate)
			written = append(written, paths...)
			if err != nil {
				return written, err
			}
		}
	}
	return written, nil
}

func safeName(s string) string {
	s = strings.Map(func(r rune) rune {
		switch r {
		case '/', '\\', ':', '*', '?', '"', '<', '>', '|', ' ':
			return '_'
		}
		return r
	}, s)
	if s == "" {
		return "lightmap"
	}
	return s
}
