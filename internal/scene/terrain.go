package scene

import (
	"fmt"
	"hash/crc32"

	"github.com/Faultbox/midgard-lighting/pkg/math"
)

// Terrain is a square heightfield lit with one texel per grid square.
type Terrain struct {
	name       string
	Origin     math.Vec3 // world position of grid corner (0, 0)
	SquareSize float32
	Size       int       // squares per side
	Heights    []float32 // (Size+1)^2 corner heights, row-major
	Base       math.Color

	box math.Box
	crc uint32
}

// NewTerrain builds a terrain. heights must hold (size+1)^2 values; none
// means flat.
func NewTerrain(name string, origin math.Vec3, squareSize float32, size int, heights []float32, base math.Color) (*Terrain, error) {
	if size <= 0 || squareSize <= 0 {
		return nil, fmt.Errorf("terrain %q: invalid size %d x %g", name, size, squareSize)
	}
	want := (size + 1) * (size + 1)
	if len(heights) == 0 {
		heights = make([]float32, want)
	}
	if len(heights) != want {
		return nil, fmt.Errorf("terrain %q: %d heights, want %d", name, len(heights), want)
	}
	t := &Terrain{name: name, Origin: origin, SquareSize: squareSize, Size: size, Heights: heights, Base: base}

	lo, hi := heights[0], heights[0]
	for _, h := range heights {
		lo, hi = min(lo, h), max(hi, h)
	}
	length := squareSize * float32(size)
	t.box = math.Box{
		Min: origin.Add(math.Vec3{X: 0, Y: 0, Z: lo}),
		Max: origin.Add(math.Vec3{X: length, Y: length, Z: hi}),
	}
	t.crc = t.computeCRC()
	return t, nil
}

func (t *Terrain) Name() string          { return t.name }
func (t *Terrain) Kind() ObjectKind      { return KindTerrain }
func (t *Terrain) WorldBox() math.Box    { return t.box }
func (t *Terrain) BaseColor() math.Color { return t.Base }
func (t *Terrain) CRC() uint32           { return t.crc }
func (t *Terrain) CurrentZones() []int32 { return []int32{OutdoorZone} }

func (t *Terrain) Lightmaps() []LightmapSize {
	return []LightmapSize{{t.Size, t.Size}}
}

// Corner returns the world position of grid corner (gx, gy).
func (t *Terrain) Corner(gx, gy int) math.Vec3 {
	gx = max(0, min(gx, t.Size))
	gy = max(0, min(gy, t.Size))
	return math.Vec3{
		X: t.Origin.X + float32(gx)*t.SquareSize,
		Y: t.Origin.Y + float32(gy)*t.SquareSize,
		Z: t.Origin.Z + t.Heights[gy*(t.Size+1)+gx],
	}
}

// HeightAt returns the bilinearly interpolated height at a world position,
// clamped to the terrain edges.
func (t *Terrain) HeightAt(x, y float32) float32 {
	fx := math.Clamp((x-t.Origin.X)/t.SquareSize, 0, float32(t.Size))
	fy := math.Clamp((y-t.Origin.Y)/t.SquareSize, 0, float32(t.Size))
	gx := min(int(fx), t.Size-1)
	gy := min(int(fy), t.Size-1)
	fracX := fx - float32(gx)
	fracY := fy - float32(gy)

	// South edge then north edge, then between them.
	south := t.Corner(gx, gy).Z*(1-fracX) + t.Corner(gx+1, gy).Z*fracX
	north := t.Corner(gx, gy+1).Z*(1-fracX) + t.Corner(gx+1, gy+1).Z*fracX
	return south*(1-fracY) + north*fracY
}

// square returns the corners of grid square (x, y), counter-clockwise from
// above.
func (t *Terrain) square(x, y int) [4]math.Vec3 {
	return [4]math.Vec3{t.Corner(x, y), t.Corner(x+1, y), t.Corner(x+1, y+1), t.Corner(x, y+1)}
}

func (t *Terrain) Lexels(_, step int, fn func(Lexel)) {
	step = max(step, 1)
	for y := 0; y < t.Size; y += step {
		for x := 0; x < t.Size; x += step {
			q := t.square(x, y)
			center := q[0].Add(q[1]).Add(q[2]).Add(q[3]).Scale(0.25)
			normal := q[2].Sub(q[0]).Cross(q[3].Sub(q[1])).Normalize()
			fn(Lexel{
				X:       x,
				Y:       y,
				Pos:     center,
				Normal:  normal,
				Quad:    q,
				Surface: int32(y*t.Size + x),
			})
		}
	}
}

// ShadowPolys emits two triangles per grid square overlapping box.
func (t *Terrain) ShadowPolys(box math.Box, fn func([]math.Vec3, int32)) {
	x0, y0, x1, y1, ok := t.gridRange(box)
	if !ok {
		return
	}
	for y := y0; y <= y1; y++ {
		for x := x0; x <= x1; x++ {
			q := t.square(x, y)
			id := int32(y*t.Size + x)
			fn([]math.Vec3{q[0], q[1], q[2]}, id)
			fn([]math.Vec3{q[0], q[2], q[3]}, id)
		}
	}
}

func (t *Terrain) gridRange(box math.Box) (x0, y0, x1, y1 int, ok bool) {
	if !t.box.Overlaps(box) {
		return 0, 0, 0, 0, false
	}
	cell := func(v, origin float32) int {
		return max(0, min(int((v-origin)/t.SquareSize), t.Size-1))
	}
	return cell(box.Min.X, t.Origin.X), cell(box.Min.Y, t.Origin.Y),
		cell(box.Max.X, t.Origin.X), cell(box.Max.Y, t.Origin.Y), true
}

func (t *Terrain) computeCRC() uint32 {
	h := crc32.NewIEEE()
	writeColor(h, t.Base)
	writeVec(h, t.Origin)
	writeFloats(h, t.SquareSize)
	writeInts(h, int32(t.Size))
	writeFloats(h, t.Heights...)
	return h.Sum32()
}
