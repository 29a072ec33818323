package lighting

import (
	"fmt"

	"github.com/Faultbox/midgard-lighting/pkg/math"
)

// Intensity cutoffs. Anything dimmer than MinLexelIntensity rounds to zero in
// an 8-bit lightmap; FastLexelIntensity trades range for speed.
const (
	MinLexelIntensity  = 1.0 / 255
	FastLexelIntensity = 3.0 / 255

	// Infinity stands in for unbounded radii. It is added to other
	// distances, so it must stay finite.
	Infinity float32 = 1e6
)

// ModelKind selects a photometric falloff model.
type ModelKind uint8

const (
	ModelStock ModelKind = iota
	ModelInverseSquare
	ModelInverseSquareFast
	ModelNearLinear
	ModelNearLinearFast
	ModelAdvanced
	modelCount
)

var modelNames = [modelCount]string{
	"stock",
	"inverse_square",
	"inverse_square_fast",
	"near_linear",
	"near_linear_fast",
	"advanced",
}

func (k ModelKind) String() string {
	if k < modelCount {
		return modelNames[k]
	}
	return fmt.Sprintf("ModelKind(%d)", k)
}

// ParseModel looks up a model by name.
func ParseModel(name string) (ModelKind, bool) {
	for i, n := range modelNames {
		if n == name {
			return ModelKind(i), true
		}
	}
	return ModelStock, false
}

// ModelNames lists the registered models in selection order.
func ModelNames() []string {
	return modelNames[:]
}

// Params holds the per-light constants derived when a light is bound.
// All coefficients are non-negative.
type Params struct {
	Constant  float32
	Linear    float32
	Quadratic float32

	SpotCos   float32 // cos(half angle)
	SpotInner float32 // 1 - SpotCos
	SpotOuter float32 // SpotCos

	MaxDistSq float32 // advanced model only
}

// Sample is the result of illuminating one point.
type Sample struct {
	Diffuse math.Color
	Ambient math.Color
	// Normal points from the surface toward the light.
	Normal math.Vec3
}

type modelFuncs struct {
	params        func(r float32) Params
	illuminate    func(s *State, pt, normal math.Vec3) Sample
	maxRadius     func(s *State, fast, glStyle bool) float32
	canIlluminate func(s *State, box math.Box) bool
	score         func(s *State, sphere math.Sphere) float32
}

var models = [modelCount]modelFuncs{
	ModelStock: glModel(func(r float32) Params {
		return Params{Quadratic: invSq(r, 1)}
	}),
	ModelInverseSquare: glModel(func(r float32) Params {
		return Params{Constant: 1, Quadratic: invSq(r, 1)}
	}),
	ModelInverseSquareFast: glModel(func(r float32) Params {
		return Params{Constant: 1, Quadratic: invSq(r, 10)}
	}),
	ModelNearLinear: glModel(func(r float32) Params {
		return Params{Constant: 1, Linear: inv(r, 1)}
	}),
	ModelNearLinearFast: glModel(func(r float32) Params {
		return Params{Constant: 1, Linear: inv(r, 10)}
	}),
	ModelAdvanced: {
		params: func(r float32) Params {
			return Params{Linear: inv(r, 6), MaxDistSq: r * r}
		},
		illuminate:    illuminateAdvanced,
		maxRadius:     maxRadiusAdvanced,
		canIlluminate: canIlluminateAdvanced,
		score:         scoreAdvanced,
	},
}

func glModel(params func(r float32) Params) modelFuncs {
	return modelFuncs{
		params:        params,
		illuminate:    illuminateGL,
		maxRadius:     maxRadiusGL,
		canIlluminate: canIlluminateGL,
		score:         scoreGL,
	}
}

func inv(r, k float32) float32 {
	if r > 0 {
		return k / r
	}
	return 0
}

func invSq(r, k float32) float32 {
	if r > 0 {
		return k / (r * r)
	}
	return 0
}

// State is a light bound to a model. It is a value type; binding is cheap
// and holds no resources.
type State struct {
	Model  ModelKind
	Light  *Light
	Params Params

	dir math.Vec3
	fn  *modelFuncs
}

// Bind derives the model constants for l.
func Bind(kind ModelKind, l *Light) State {
	if kind >= modelCount {
		kind = ModelStock
	}
	fn := &models[kind]
	p := fn.params(l.Radius)
	p.SpotCos = math.Cos(math.DegToRad(l.SpotHalfAngle))
	p.SpotInner = 1 - p.SpotCos
	p.SpotOuter = p.SpotCos
	return State{
		Model:  kind,
		Light:  l,
		Params: p,
		dir:    l.Direction.Normalize(),
		fn:     fn,
	}
}

// BindLight binds l to the model it names, or to fallback when it names
// none or an unknown one.
func BindLight(l *Light, fallback ModelKind) State {
	kind := fallback
	if l.Model != "" {
		if k, ok := ParseModel(l.Model); ok {
			kind = k
		}
	}
	return Bind(kind, l)
}

// Illuminate computes the light reaching pt on a surface with the given
// normal. Terrain normals need not be unit length.
func (s *State) Illuminate(pt, normal math.Vec3) Sample {
	return s.fn.illuminate(s, pt, normal)
}

// MaxRadius is the distance beyond which the light contributes less than
// the intensity cutoff. fast selects the relaxed cutoff.
func (s *State) MaxRadius(fast bool) float32 {
	return s.fn.maxRadius(s, fast, false)
}

// MaxRadiusGL is MaxRadius computed from the attenuation coefficients even
// for models that clip at the light radius.
func (s *State) MaxRadiusGL(fast bool) float32 {
	return s.fn.maxRadius(s, fast, true)
}

// CanIlluminate is a conservative test against the closest point of box.
func (s *State) CanIlluminate(box math.Box) bool {
	return s.fn.canIlluminate(s, box)
}

// Score rates the light's importance at sphere.
func (s *State) Score(sphere math.Sphere) float32 {
	return s.fn.score(s, sphere)
}

// Attenuation returns the distance falloff at distance d, before spot and
// angle terms. Directional lights never attenuate.
func (s *State) Attenuation(d float32) float32 {
	if s.Light.Kind.IsDirectional() {
		return 1
	}
	if s.Model == ModelAdvanced {
		if s.Params.MaxDistSq <= 0 {
			return 0
		}
		return max(1-d*d/s.Params.MaxDistSq, 0)
	}
	p := &s.Params
	a := p.Constant + p.Linear*d + p.Quadratic*d*d
	if a <= 0 {
		return 0
	}
	return min(1/a, 1)
}

// spotFactor maps the cone cosine to a 0..1 spot falloff.
func (s *State) spotFactor(cos float32) float32 {
	p := &s.Params
	if p.SpotInner <= 0 {
		return 1
	}
	f := math.Clamp((cos-p.SpotOuter)/p.SpotInner, 0, 1)
	if s.Light.SmoothSpot {
		f *= min(f*1.2, 1)
	}
	return f
}

func illuminateGL(s *State, pt, normal math.Vec3) Sample {
	l := s.Light
	p := &s.Params
	directional := l.Kind.IsDirectional()

	var ln math.Vec3
	if directional {
		ln = s.dir.Neg()
	} else {
		ln = l.Position.Sub(pt)
	}

	angle := ln.Dot(normal)
	if angle <= 0 && !(l.DoubleSidedAmbient && (l.LocalAmbient >= MinLexelIntensity || directional)) {
		return Sample{}
	}

	distFalloff := float32(1)
	spot := float32(1)
	if !directional {
		distSq := ln.LengthSquared()
		dist := math.Sqrt(distSq)
		if dist != 0 {
			ln = ln.Scale(1 / dist)
		}

		// Reject outside the cone before the falloff terms.
		if l.Kind.IsSpot() {
			spot = -ln.Dot(s.dir)
			if spot < p.SpotCos {
				return Sample{}
			}
		}

		distFalloff = p.Constant + p.Linear*dist + p.Quadratic*distSq
		if distFalloff > 0 {
			distFalloff = 1 / distFalloff
		}
		distFalloff = max(distFalloff, 0)
		if distFalloff <= MinLexelIntensity {
			return Sample{}
		}
	}

	if angle > 0 && l.UseNormals {
		angle = ln.Dot(normal.Normalize())
	}
	angle = math.Clamp(angle, 0, 1)

	if l.Kind.IsSpot() {
		spot = s.spotFactor(spot)
	}

	out := Sample{Normal: ln}
	amount := distFalloff * spot
	if angle > 0 {
		d := amount
		if l.UseNormals {
			d *= angle
		}
		d *= 1 - l.LocalAmbient
		out.Diffuse = l.Color.Scale(math.Clamp(d, 0, 1))
	}
	if l.DoubleSidedAmbient || angle > 0 {
		if directional {
			out.Ambient = l.Ambient
		} else {
			out.Ambient = l.Color.Scale(math.Clamp(amount*l.LocalAmbient, 0, 1))
		}
	}
	return out
}

func maxRadiusGL(s *State, fast, _ bool) float32 {
	if s.Light.Kind.IsDirectional() {
		return Infinity
	}
	p := &s.Params
	cutoff := float32(MinLexelIntensity)
	if fast {
		cutoff = FastLexelIntensity
	}
	adj := 1/cutoff - p.Constant
	if adj <= 0 {
		return 0
	}
	// Linear wins even when both terms are present.
	if p.Linear > 0 {
		return adj / p.Linear
	}
	if p.Quadratic > 0 {
		return math.Sqrt(adj / p.Quadratic)
	}
	if p.Constant > 0 {
		return Infinity
	}
	return 0
}

func canIlluminateGL(s *State, box math.Box) bool {
	l := s.Light
	if l.Kind.IsDirectional() {
		return true
	}
	p := &s.Params
	distSq := box.ClosestPoint(l.Position).DistanceSquared(l.Position)
	intensity := float32(1)
	if distSq > 0 {
		intensity = p.Constant + p.Quadratic*distSq
		if p.Linear > 0 {
			intensity += p.Linear * math.Sqrt(distSq)
		}
	}
	if intensity <= 0 {
		return false
	}
	return !l.Color.Scale(1 / intensity).Below(MinLexelIntensity)
}

func scoreGL(s *State, sphere math.Sphere) float32 {
	l := s.Light
	if l.Kind.IsDirectional() {
		return 0.5
	}
	p := &s.Params
	distSq := l.Position.DistanceSquared(sphere.Center)
	var dist float32
	if p.Linear > 0 {
		dist = math.Sqrt(distSq)
	}
	amount := max(p.Constant+p.Linear*dist+p.Quadratic*distSq, 1e-6)
	return 1 / amount
}

func illuminateAdvanced(s *State, pt, normal math.Vec3) Sample {
	l := s.Light
	p := &s.Params
	directional := l.Kind.IsDirectional()

	var ln math.Vec3
	var distSq float32
	if directional {
		ln = s.dir.Neg()
	} else {
		ln = l.Position.Sub(pt)
		distSq = ln.LengthSquared()
		if distSq >= p.MaxDistSq {
			return Sample{}
		}
		ln = ln.Normalize()
	}

	spot := float32(1)
	if l.Kind.IsSpot() {
		spot = -ln.Dot(s.dir)
		if spot < p.SpotCos {
			return Sample{}
		}
	}

	angle := ln.Dot(normal.Normalize())
	amount := float32(1)
	if l.UseNormals {
		amount *= angle
	}
	amount = math.Clamp(amount, 0, 1)

	falloff := float32(1)
	if !directional {
		falloff = max(1-distSq/p.MaxDistSq, 0)
		if l.Kind.IsSpot() {
			falloff *= s.spotFactor(spot)
		}
		amount *= falloff
	}

	amount *= 1 - l.LocalAmbient
	out := Sample{Normal: ln}
	out.Diffuse = l.Color.Scale(math.Clamp(amount, 0, 1))
	if l.DoubleSidedAmbient || angle > 0 {
		out.Ambient = l.Color.Scale(math.Clamp(falloff*l.LocalAmbient, 0, 1))
	}
	return out
}

func maxRadiusAdvanced(s *State, fast, glStyle bool) float32 {
	if glStyle {
		return maxRadiusGL(s, fast, true)
	}
	if s.Light.Kind.IsDirectional() {
		return Infinity
	}
	return s.Light.Radius
}

func canIlluminateAdvanced(s *State, box math.Box) bool {
	l := s.Light
	if l.Kind.IsDirectional() {
		return true
	}
	distSq := box.ClosestPoint(l.Position).DistanceSquared(l.Position)
	return distSq < l.Radius*l.Radius
}

func scoreAdvanced(s *State, sphere math.Sphere) float32 {
	l := s.Light
	if l.Kind.IsDirectional() {
		return 0.5
	}
	radSq := l.Radius * l.Radius
	if radSq <= 0 {
		return 0
	}
	distSq := l.Position.DistanceSquared(sphere.Center)
	return max(1-distSq/radSq, 0)
}
