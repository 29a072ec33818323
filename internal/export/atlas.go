package export

import (
	"image"

	"github.com/Faultbox/midgard-lighting/pkg/formats"
)

// MaxAtlasSize caps the packed image edge.
const MaxAtlasSize = 4096

// Atlas packs an object's lightmaps into one square power-of-two image.
// Tiles share the size of the largest lightmap and are laid out row by
// row.
type Atlas struct {
	Image       *image.NRGBA
	Size        int
	TilesPerRow int
	TileWidth   int
	TileHeight  int
	// Count is the number of tiles that fit; lightmaps past it are dropped.
	Count int
}

// BuildAtlas packs maps. An empty list yields an 8x8 white atlas.
func BuildAtlas(maps []*formats.Lightmap) *Atlas {
	if len(maps) == 0 {
		img := image.NewNRGBA(image.Rect(0, 0, 8, 8))
		for i := range img.Pix {
			img.Pix[i] = 0xff
		}
		return &Atlas{Image: img, Size: 8, TilesPerRow: 1, TileWidth: 8, TileHeight: 8}
	}

	tw, th := 1, 1
	for _, lm := range maps {
		tw = max(tw, lm.Width)
		th = max(th, lm.Height)
	}

	tilesPerRow := 1
	for tilesPerRow*tilesPerRow < len(maps) {
		tilesPerRow *= 2
	}
	size := 64
	for size < tilesPerRow*max(tw, th) {
		size *= 2
	}
	size = min(size, MaxAtlasSize)

	a := &Atlas{
		Image:       image.NewNRGBA(image.Rect(0, 0, size, size)),
		Size:        size,
		TilesPerRow: max(size/tw, 1),
		TileWidth:   tw,
		TileHeight:  th,
	}
	rows := max(size/th, 1)
	a.Count = min(len(maps), a.TilesPerRow*rows)

	for i := range a.Image.Pix {
		a.Image.Pix[i] = 0xff
	}
	for i, lm := range maps[:a.Count] {
		bx := (i % a.TilesPerRow) * tw
		by := (i / a.TilesPerRow) * th
		for y := range min(lm.Height, size-by) {
			for x := range min(lm.Width, size-bx) {
				src := (y*lm.Width + x) * 3
				dst := a.Image.PixOffset(bx+x, by+y)
				copy(a.Image.Pix[dst:dst+3], lm.Pix[src:src+3])
			}
		}
	}
	return a
}

// UV returns the texture coordinates of a tile corner, inset by half a
// texel so bilinear sampling stays inside the tile. Corners are 0 top-left,
// 1 top-right, 2 bottom-left, 3 bottom-right.
func (a *Atlas) UV(tile, corner int) [2]float32 {
	if a == nil || tile < 0 || tile >= max(a.Count, 1) || a.TilesPerRow == 0 {
		return [2]float32{0.5, 0.5}
	}
	size := float32(a.Size)
	u0 := float32((tile%a.TilesPerRow)*a.TileWidth) / size
	v0 := float32((tile/a.TilesPerRow)*a.TileHeight) / size
	half := 0.5 / size
	u1 := u0 + float32(a.TileWidth)/size - half
	v1 := v0 + float32(a.TileHeight)/size - half
	u0 += half
	v0 += half

	switch corner {
	case 0:
		return [2]float32{u0, v0}
	case 1:
		return [2]float32{u1, v0}
	case 2:
		return [2]float32{u0, v1}
	default:
		return [2]float32{u1, v1}
	}
}
