package scene

import (
	"fmt"
	"hash/crc32"

	"github.com/Faultbox/midgard-lighting/pkg/math"
)

// DefaultAtlasLightmap is the atlas lightmap size when none is given.
const DefaultAtlasLightmap = 64

// Atlas is a world-space triangle mesh lit through a top-down planar
// lightmap covering its XY bounds.
type Atlas struct {
	name      string
	Triangles []math.Vec3 // three per face
	Size      int
	Base      math.Color

	normals []math.Vec3
	boxes   []math.Box
	box     math.Box
	crc     uint32
}

// NewAtlas builds an atlas mesh. Faces that are vertical or degenerate
// still cast shadows but never receive lexels.
func NewAtlas(name string, tris []math.Vec3, size int, base math.Color) (*Atlas, error) {
	if len(tris) < 3 || len(tris)%3 != 0 {
		return nil, fmt.Errorf("atlas %q: %d vertices is not a triangle list", name, len(tris))
	}
	if size <= 0 {
		size = DefaultAtlasLightmap
	}
	a := &Atlas{name: name, Triangles: tris, Size: size, Base: base}
	a.box = math.BoxAround(tris...)
	for i := 0; i < len(tris); i += 3 {
		n := tris[i+1].Sub(tris[i]).Cross(tris[i+2].Sub(tris[i]))
		a.normals = append(a.normals, n.Normalize())
		a.boxes = append(a.boxes, math.BoxAround(tris[i:i+3]...))
	}
	a.crc = a.computeCRC()
	return a, nil
}

func (a *Atlas) Name() string          { return a.name }
func (a *Atlas) Kind() ObjectKind      { return KindAtlas }
func (a *Atlas) WorldBox() math.Box    { return a.box }
func (a *Atlas) BaseColor() math.Color { return a.Base }
func (a *Atlas) CRC() uint32           { return a.crc }
func (a *Atlas) CurrentZones() []int32 { return []int32{OutdoorZone} }

func (a *Atlas) Lightmaps() []LightmapSize {
	return []LightmapSize{{a.Size, a.Size}}
}

// texel returns the XY extent of one lightmap texel.
func (a *Atlas) texel() (float32, float32) {
	e := a.box.Extents()
	return e.X / float32(a.Size), e.Y / float32(a.Size)
}

// surfaceAt finds the topmost upward-facing face above (x, y).
func (a *Atlas) surfaceAt(x, y float32) (face int, z float32, ok bool) {
	for f := range a.normals {
		n := a.normals[f]
		if n.Z < 0.01 {
			continue
		}
		b := a.boxes[f]
		if x < b.Min.X || x > b.Max.X || y < b.Min.Y || y > b.Max.Y {
			continue
		}
		t := a.Triangles[f*3 : f*3+3]
		if !insideXY(t, x, y) {
			continue
		}
		// Solve the face plane for z.
		h := t[0].Z - (n.X*(x-t[0].X)+n.Y*(y-t[0].Y))/n.Z
		if !ok || h > z {
			face, z, ok = f, h, true
		}
	}
	return face, z, ok
}

func insideXY(t []math.Vec3, x, y float32) bool {
	edge := func(a, b math.Vec3) float32 {
		return (b.X-a.X)*(y-a.Y) - (b.Y-a.Y)*(x-a.X)
	}
	d0, d1, d2 := edge(t[0], t[1]), edge(t[1], t[2]), edge(t[2], t[0])
	return (d0 >= 0 && d1 >= 0 && d2 >= 0) || (d0 <= 0 && d1 <= 0 && d2 <= 0)
}

// Lexels visits texels whose center lies over an upward-facing face. The
// footprint is the texel square projected onto that face's plane.
func (a *Atlas) Lexels(_, step int, fn func(Lexel)) {
	step = max(step, 1)
	tw, th := a.texel()
	for y := 0; y < a.Size; y += step {
		for x := 0; x < a.Size; x += step {
			x0 := a.box.Min.X + float32(x)*tw
			y0 := a.box.Min.Y + float32(y)*th
			face, z, ok := a.surfaceAt(x0+tw*0.5, y0+th*0.5)
			if !ok {
				continue
			}
			n := a.normals[face]
			p := a.Triangles[face*3]
			onFace := func(px, py float32) math.Vec3 {
				return math.Vec3{X: px, Y: py, Z: p.Z - (n.X*(px-p.X)+n.Y*(py-p.Y))/n.Z}
			}
			fn(Lexel{
				X:      x,
				Y:      y,
				Pos:    math.Vec3{X: x0 + tw*0.5, Y: y0 + th*0.5, Z: z},
				Normal: n,
				Quad: [4]math.Vec3{
					onFace(x0, y0), onFace(x0+tw, y0),
					onFace(x0+tw, y0+th), onFace(x0, y0+th),
				},
				Surface: int32(face),
			})
		}
	}
}

func (a *Atlas) ShadowPolys(box math.Box, fn func([]math.Vec3, int32)) {
	for f, b := range a.boxes {
		if b.Overlaps(box) {
			fn(a.Triangles[f*3:f*3+3], int32(f))
		}
	}
}

func (a *Atlas) computeCRC() uint32 {
	h := crc32.NewIEEE()
	writeColor(h, a.Base)
	writeInts(h, int32(a.Size))
	for _, v := range a.Triangles {
		writeVec(h, v)
	}
	return h.Sum32()
}
