package lighting

import (
	gomath "math"

	"github.com/Faultbox/midgard-lighting/pkg/math"
)

// SunDirection converts azimuth/elevation angles in degrees to the
// direction sunlight travels. Azimuth rotates around Z, elevation is
// measured up from the horizon, so the result always points downward for
// elevations above zero.
func SunDirection(azimuth, elevation float32) math.Vec3 {
	az := float64(azimuth) * gomath.Pi / 180.0
	el := float64(elevation) * gomath.Pi / 180.0

	// Spherical to Cartesian, pointing toward the sun
	toSun := math.Vec3{
		X: float32(gomath.Cos(el) * gomath.Sin(az)),
		Y: float32(gomath.Cos(el) * gomath.Cos(az)),
		Z: float32(gomath.Sin(el)),
	}
	return toSun.Neg()
}

// NewSun creates a vector light from azimuth/elevation.
func NewSun(azimuth, elevation float32, color, ambient math.Color) *Light {
	l := NewLight(Vector)
	l.Name = "sun"
	l.Direction = SunDirection(azimuth, elevation)
	l.Color = color
	l.Ambient = ambient
	return l
}
