package lighting

import "github.com/Faultbox/midgard-lighting/pkg/math"

// AttenuationVolumeSize is the edge length of the falloff volume textures.
const AttenuationVolumeSize = 16

// AttenuationVolume holds L8 falloff volumes sampled by per-pixel dynamic
// lighting. Texel (x, y, z) is at index (x*Size+y)*Size+z.
type AttenuationVolume struct {
	Size int
	Omni []uint8
	Spot []uint8
}

// At returns the omni and spot texels at (x, y, z).
func (v *AttenuationVolume) At(x, y, z int) (omni, spot uint8) {
	i := (x*v.Size+y)*v.Size + z
	return v.Omni[i], v.Spot[i]
}

// BuildAttenuationVolume samples a unit ambient-only light of the given
// model over a cube spanning its fast max radius.
func BuildAttenuationVolume(kind ModelKind) *AttenuationVolume {
	const size = AttenuationVolumeSize
	half := float32(size) / 2

	l := NewLight(Point)
	l.Radius = 10
	l.Color = math.Gray(1)
	l.LocalAmbient = 1
	l.DoubleSidedAmbient = true
	l.UseNormals = false

	vol := &AttenuationVolume{
		Size: size,
		Omni: make([]uint8, size*size*size),
		Spot: make([]uint8, size*size*size),
	}

	fill := func(dst []uint8, s State) {
		dist := s.MaxRadius(true)
		normal := math.Vec3{X: 0, Y: 0, Z: 1}
		for x := 0; x < size; x++ {
			for y := 0; y < size; y++ {
				for z := 0; z < size; z++ {
					pos := math.Vec3{
						X: (float32(x) + 0.5 - half) / half * dist,
						Y: (float32(y) + 0.5 - half) / half * dist,
						Z: (float32(z) + 0.5 - half) / half * dist,
					}
					a := s.Illuminate(pos, normal).Ambient.R * 255
					dst[(x*size+y)*size+z] = uint8(math.Clamp(a, 0, 255))
				}
			}
		}
	}

	fill(vol.Omni, Bind(kind, l))

	l.Kind = StaticSpot
	l.Direction = math.Vec3{X: 1, Y: 0, Z: 0}
	l.SpotHalfAngle = 45
	fill(vol.Spot, Bind(kind, l))

	return vol
}
