package bake

import (
	"github.com/Faultbox/midgard-lighting/pkg/formats"
	"github.com/Faultbox/midgard-lighting/pkg/math"
)

// blurKernel is applied to interior texels after each light.
var blurKernel = [3][3]float32{
	{0.1, 0.125, 0.1},
	{0.125, 0.1, 0.125},
	{0.1, 0.125, 0.1},
}

// ColorMap is a floating-point lightmap accumulator.
type ColorMap struct {
	Width, Height int
	Data          []math.Color
}

// NewColorMap allocates a black map.
func NewColorMap(w, h int) *ColorMap {
	return &ColorMap{Width: w, Height: h, Data: make([]math.Color, w*h)}
}

// At returns texel (x, y).
func (m *ColorMap) At(x, y int) math.Color { return m.Data[y*m.Width+x] }

// Add accumulates c into texel (x, y).
func (m *ColorMap) Add(x, y int, c math.Color) {
	i := y*m.Width + x
	m.Data[i] = m.Data[i].Add(c)
}

// FillIn copies each lit texel over the unlit texels of its scale x scale
// block. Texels on rows that were never lit take the value of the last lit
// row.
func (m *ColorMap) FillIn(scale int) {
	if scale <= 1 {
		return
	}
	mask := scale - 1
	var goodY int
	for y := range m.Height {
		if y&mask == 0 {
			goodY = y
		}
		var goodX int
		for x := range m.Width {
			if x&mask == 0 {
				goodX = x
				if y&mask == 0 {
					continue
				}
			}
			m.Data[y*m.Width+x] = m.Data[goodY*m.Width+goodX]
		}
	}
}

// Blur applies blurKernel to every texel not on the border.
func (m *ColorMap) Blur() {
	if m.Width < 3 || m.Height < 3 {
		return
	}
	out := make([]math.Color, len(m.Data))
	copy(out, m.Data)
	for y := 1; y < m.Height-1; y++ {
		for x := 1; x < m.Width-1; x++ {
			var c math.Color
			for by := -1; by <= 1; by++ {
				for bx := -1; bx <= 1; bx++ {
					c = c.Add(m.At(x+bx, y+by).Scale(blurKernel[bx+1][by+1]))
				}
			}
			out[y*m.Width+x] = c
		}
	}
	m.Data = out
}

// AddTo accumulates m into dst, which must have the same size.
func (m *ColorMap) AddTo(dst *ColorMap) {
	for i, c := range m.Data {
		dst.Data[i] = dst.Data[i].Add(c)
	}
}

// Lightmap converts base + m to 8-bit texels with clamping.
func (m *ColorMap) Lightmap(base math.Color) *formats.Lightmap {
	l := formats.NewLightmap(m.Width, m.Height)
	for i, c := range m.Data {
		l.Pix[i*3], l.Pix[i*3+1], l.Pix[i*3+2] = base.Add(c).Bytes()
	}
	return l
}

// DiffEncode stores lm relative to a flat base color. Channels wrap, so
// DiffDecode restores lm exactly.
func DiffEncode(lm *formats.Lightmap, base math.Color) *formats.Lightmap {
	r, g, b := base.Bytes()
	out := formats.NewLightmap(lm.Width, lm.Height)
	for i := 0; i < len(lm.Pix); i += 3 {
		out.Pix[i] = lm.Pix[i] - r
		out.Pix[i+1] = lm.Pix[i+1] - g
		out.Pix[i+2] = lm.Pix[i+2] - b
	}
	return out
}

// DiffDecode reverses DiffEncode.
func DiffDecode(diff *formats.Lightmap, base math.Color) *formats.Lightmap {
	r, g, b := base.Bytes()
	out := formats.NewLightmap(diff.Width, diff.Height)
	for i := 0; i < len(diff.Pix); i += 3 {
		out.Pix[i] = diff.Pix[i] + r
		out.Pix[i+1] = diff.Pix[i+1] + g
		out.Pix[i+2] = diff.Pix[i+2] + b
	}
	return out
}

// NormalMap accumulates lighting directions weighted by diffuse intensity.
type NormalMap struct {
	Width, Height int
	Data          []math.Vec3
}

// NewNormalMap allocates an empty direction map.
func NewNormalMap(w, h int) *NormalMap {
	return &NormalMap{Width: w, Height: h, Data: make([]math.Vec3, w*h)}
}

func (m *NormalMap) Add(x, y int, v math.Vec3) {
	i := y*m.Width + x
	m.Data[i] = m.Data[i].Add(v)
}

// Lightmap packs normalized directions into RGB as n*0.5+0.5. Texels that
// received no light point along fallback.
func (m *NormalMap) Lightmap(fallback math.Vec3) *formats.Lightmap {
	l := formats.NewLightmap(m.Width, m.Height)
	for i, v := range m.Data {
		if v.LengthSquared() < 1e-12 {
			v = fallback
		}
		n := v.Normalize()
		c := math.Color{R: n.X*0.5 + 0.5, G: n.Y*0.5 + 0.5, B: n.Z*0.5 + 0.5}
		l.Pix[i*3], l.Pix[i*3+1], l.Pix[i*3+2] = c.Bytes()
	}
	return l
}
