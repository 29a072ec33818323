package lighting

// MaxUniformLights is the largest light array the shaders declare.
const MaxUniformLights = 32

// UniformLight is one light flattened for GPU upload.
type UniformLight struct {
	Position    [3]float32
	Direction   [3]float32
	Color       [3]float32
	Ambient     [3]float32
	Attenuation [3]float32 // constant, linear, quadratic
	SpotCos     float32
	Kind        int32
}

// UniformBuffer holds the best-light list in upload order.
type UniformBuffer struct {
	Lights []UniformLight
	Count  int
}

// NewUniformBuffer creates an empty buffer.
func NewUniformBuffer() *UniformBuffer {
	return &UniformBuffer{
		Lights: make([]UniformLight, 0, MaxUniformLights),
	}
}

// Clear removes all lights from the buffer.
func (b *UniformBuffer) Clear() {
	b.Lights = b.Lights[:0]
	b.Count = 0
}

// Add appends a bound light. Returns false if the buffer is full.
func (b *UniformBuffer) Add(s State) bool {
	if b.Count >= MaxUniformLights {
		return false
	}
	l := s.Light
	u := UniformLight{
		Position:    l.Position.Array(),
		Direction:   s.dir.Array(),
		Color:       [3]float32{clamp01(l.Color.R), clamp01(l.Color.G), clamp01(l.Color.B)},
		Ambient:     [3]float32{clamp01(l.Ambient.R), clamp01(l.Ambient.G), clamp01(l.Ambient.B)},
		Attenuation: [3]float32{s.Params.Constant, s.Params.Linear, s.Params.Quadratic},
		SpotCos:     -1,
		Kind:        int32(l.Kind),
	}
	if l.Kind.IsSpot() {
		u.SpotCos = s.Params.SpotCos
	}
	b.Lights = append(b.Lights, u)
	b.Count++
	return true
}

// SetLights replaces the buffer contents with the given ranked lights,
// truncating to MaxUniformLights.
func (b *UniformBuffer) SetLights(m *Manager, lights []*Light) {
	b.Clear()
	for _, l := range lights {
		if !b.Add(m.Bind(l)) {
			break
		}
	}
}

// Positions returns positions as a flat slice sized for the full array.
// Format: [x0, y0, z0, x1, y1, z1, ...]
func (b *UniformBuffer) Positions() []float32 {
	return b.flatten3(func(u *UniformLight) [3]float32 { return u.Position })
}

// Directions returns normalized directions as a flat slice.
func (b *UniformBuffer) Directions() []float32 {
	return b.flatten3(func(u *UniformLight) [3]float32 { return u.Direction })
}

// Colors returns diffuse colors as a flat slice.
func (b *UniformBuffer) Colors() []float32 {
	return b.flatten3(func(u *UniformLight) [3]float32 { return u.Color })
}

// Ambients returns ambient colors as a flat slice.
func (b *UniformBuffer) Ambients() []float32 {
	return b.flatten3(func(u *UniformLight) [3]float32 { return u.Ambient })
}

// Attenuations returns (constant, linear, quadratic) triples.
func (b *UniformBuffer) Attenuations() []float32 {
	return b.flatten3(func(u *UniformLight) [3]float32 { return u.Attenuation })
}

// SpotCosines returns the cone cosine per light, -1 for non-spots.
func (b *UniformBuffer) SpotCosines() []float32 {
	result := make([]float32, MaxUniformLights)
	for i := range b.Lights {
		result[i] = b.Lights[i].SpotCos
	}
	return result
}

// Kinds returns the light kinds as shader integers.
func (b *UniformBuffer) Kinds() []int32 {
	result := make([]int32, MaxUniformLights)
	for i := range b.Lights {
		result[i] = b.Lights[i].Kind
	}
	return result
}

func (b *UniformBuffer) flatten3(get func(*UniformLight) [3]float32) []float32 {
	result := make([]float32, MaxUniformLights*3)
	for i := range b.Lights {
		v := get(&b.Lights[i])
		result[i*3+0] = v[0]
		result[i*3+1] = v[1]
		result[i*3+2] = v[2]
	}
	return result
}

// Some scene files carry colors above 1.
func clamp01(v float32) float32 {
	if v > 1 {
		return 1
	}
	if v < 0 {
		return 0
	}
	return v
}
