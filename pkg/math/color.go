package math

// Color is a linear floating-point RGB color.
type Color struct {
	R, G, B float32
}

// Gray returns a color with all channels set to v.
func Gray(v float32) Color {
	return Color{v, v, v}
}

// Add returns c + other.
func (c Color) Add(other Color) Color {
	return Color{c.R + other.R, c.G + other.G, c.B + other.B}
}

// Scale returns c * s.
func (c Color) Scale(s float32) Color {
	return Color{c.R * s, c.G * s, c.B * s}
}

// Mul returns the channel-wise product.
func (c Color) Mul(other Color) Color {
	return Color{c.R * other.R, c.G * other.G, c.B * other.B}
}

// Clamp restricts every channel to [0, 1].
func (c Color) Clamp() Color {
	return Color{Clamp(c.R, 0, 1), Clamp(c.G, 0, 1), Clamp(c.B, 0, 1)}
}

// Average returns the mean of the three channels.
func (c Color) Average() float32 {
	return (c.R + c.G + c.B) / 3
}

// Luminance returns the weighted intensity used to rank sun and ambient lights.
func (c Color) Luminance() float32 {
	return c.R*0.346 + c.G*0.588 + c.B*0.070
}

// Below reports whether every channel is under v.
func (c Color) Below(v float32) bool {
	return c.R < v && c.G < v && c.B < v
}

// IsBlack reports whether all channels are zero.
func (c Color) IsBlack() bool {
	return c.R == 0 && c.G == 0 && c.B == 0
}

// Bytes converts to 8-bit channels with clamping and rounding.
func (c Color) Bytes() (r, g, b uint8) {
	cc := c.Clamp()
	return uint8(cc.R*255 + 0.5), uint8(cc.G*255 + 0.5), uint8(cc.B*255 + 0.5)
}
