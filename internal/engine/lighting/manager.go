package lighting

import (
	gomath "math"
	"slices"

	"go.uber.org/zap"

	"github.com/Faultbox/midgard-lighting/internal/logger"
	"github.com/Faultbox/midgard-lighting/pkg/math"
)

// Priority bands keep a few strong static lights from being crowded out by
// many weak dynamic ones.
const (
	SunPriority      = 100
	AssignedPriority = 50
	StaticPriority   = 2
	DynamicPriority  = 1
)

// DefaultMaxBestLights is the best-light list length when none is configured.
const DefaultMaxBestLights = 10

// SpecialKind names a scene-wide light slot.
type SpecialKind int

const (
	SunLight SpecialKind = iota
	SceneAmbient
	specialCount
)

// Zoned is implemented by objects that live in zones.
type Zoned interface {
	CurrentZones() []int32
}

// zoneExempt is implemented by objects that never filter by zone (interiors
// manage their own zone lighting).
type zoneExempt interface {
	ExemptFromZoneFiltering() bool
}

// DualLight pairs a primary light with an optional secondary for two-light
// shader passes.
type DualLight struct {
	Primary   *Light
	Secondary *Light
}

// Manager maintains the registered lights and ranks them per query region.
// It never owns light lifetime.
type Manager struct {
	globals []*Light
	locals  []*Light
	special [specialCount]*Light

	defaultLight *Light
	defaultModel ModelKind
	maxBest      int

	filterZones bool
	zones       [2]int32

	best []*Light
	log  *zap.Logger
}

// NewManager creates an empty manager. maxBest <= 0 selects
// DefaultMaxBestLights.
func NewManager(defaultModel ModelKind, maxBest int) *Manager {
	if maxBest <= 0 {
		maxBest = DefaultMaxBestLights
	}
	def := NewLight(Vector)
	def.Name = "default"
	def.Color = math.Gray(0.5)
	def.Ambient = math.Gray(0.5)
	def.Direction = math.Vec3{X: 0.57, Y: 0.57, Z: -0.57}.Normalize()

	return &Manager{
		defaultLight: def,
		defaultModel: defaultModel,
		maxBest:      maxBest,
		zones:        [2]int32{-2, -2},
		log:          logger.Named("lighting"),
	}
}

// DefaultModel returns the model used for lights that name none.
func (m *Manager) DefaultModel() ModelKind { return m.defaultModel }

// MaxBestLights returns the configured best-light list length.
func (m *Manager) MaxBestLights() int { return m.maxBest }

// Bind binds l to its model.
func (m *Manager) Bind(l *Light) State {
	return BindLight(l, m.defaultModel)
}

// RegisterGlobal adds a scene light. Duplicates are removed at query time.
func (m *Manager) RegisterGlobal(l *Light) {
	if l == nil {
		return
	}
	m.globals = append(m.globals, l)
}

// RegisterLocal adds a light for the current object only, such as an
// assigned baked light or an object's ambient light.
func (m *Manager) RegisterLocal(l *Light) {
	if l == nil {
		return
	}
	m.locals = append(m.locals, l)
}

// Unregister removes every registration of l.
func (m *Manager) Unregister(l *Light) {
	m.globals = slices.DeleteFunc(m.globals, func(x *Light) bool { return x == l })
	m.locals = slices.DeleteFunc(m.locals, func(x *Light) bool { return x == l })
	for i := range m.special {
		if m.special[i] == l {
			m.special[i] = nil
		}
	}
}

// UnregisterAll drops all lights, including the special slots.
func (m *Manager) UnregisterAll() {
	m.globals = m.globals[:0]
	m.locals = m.locals[:0]
	m.special = [specialCount]*Light{}
	m.best = m.best[:0]
}

// ResetLights clears per-object state: local lights, zone filter and the
// last best list.
func (m *Manager) ResetLights() {
	m.SetupZoneFiltering(false, nil)
	m.locals = m.locals[:0]
	m.best = m.best[:0]
}

// SetSpecialLight installs l in a special slot.
func (m *Manager) SetSpecialLight(kind SpecialKind, l *Light) {
	m.special[kind] = l
}

// SpecialLight returns the light in a slot, or a default light when the
// slot is empty. It never returns nil.
func (m *Manager) SpecialLight(kind SpecialKind) *Light {
	if l := m.special[kind]; l != nil {
		return l
	}
	return m.defaultLight
}

// HasSpecialLight reports whether a slot was explicitly filled.
func (m *Manager) HasSpecialLight(kind SpecialKind) bool {
	return m.special[kind] != nil
}

// SetupZoneFiltering restricts diffuse scoring to lights allowed in the
// object's first two zones. Passing enabled=false or a nil object turns
// filtering off.
func (m *Manager) SetupZoneFiltering(enabled bool, obj Zoned) {
	m.filterZones = false
	m.zones = [2]int32{-2, -2}
	if !enabled || obj == nil {
		return
	}
	if ex, ok := obj.(zoneExempt); ok && ex.ExemptFromZoneFiltering() {
		return
	}
	m.filterZones = true
	for i, z := range obj.CurrentZones() {
		if i >= len(m.zones) {
			break
		}
		m.zones[i] = z
	}
}

// ZoneFiltering reports whether zone filtering is active.
func (m *Manager) ZoneFiltering() bool { return m.filterZones }

// AllLights returns global then local lights with duplicates removed,
// keeping first registration order.
func (m *Manager) AllLights() []*Light {
	out := make([]*Light, 0, len(m.globals)+len(m.locals))
	seen := make(map[*Light]struct{}, cap(out))
	for _, list := range [][]*Light{m.globals, m.locals} {
		for _, l := range list {
			if _, dup := seen[l]; dup {
				continue
			}
			seen[l] = struct{}{}
			out = append(out, l)
		}
	}
	return out
}

// BestLights ranks all registered lights against region and returns at most
// maxCount of them by descending score. Lights scoring zero are never
// returned. cameraBased scores by view distance instead of photometry.
func (m *Manager) BestLights(region math.Box, maxCount int, cameraBased bool) []*Light {
	c := region.Center()
	sphere := math.Sphere{Center: c, Radius: region.Max.Sub(c).Length()}
	return m.findBest(region, sphere, maxCount, cameraBased)
}

// BestLightsSphere is BestLights for a spherical region.
func (m *Manager) BestLightsSphere(sphere math.Sphere, maxCount int, cameraBased bool) []*Light {
	r := math.Vec3{X: sphere.Radius, Y: sphere.Radius, Z: sphere.Radius}
	box := math.Box{Min: sphere.Center.Sub(r), Max: sphere.Center.Add(r)}
	return m.findBest(box, sphere, maxCount, cameraBased)
}

// BestLightsForCamera scores lights in a cube of half-size viewDist around
// the camera.
func (m *Manager) BestLightsForCamera(obj Zoned, cameraPos math.Vec3, viewDist float32, maxCount int) []*Light {
	m.ResetLights()
	m.SetupZoneFiltering(true, obj)
	box := math.Box{Min: cameraPos, Max: cameraPos}.Expand(viewDist)
	return m.BestLights(box, maxCount, true)
}

// Best returns the list produced by the last query.
func (m *Manager) Best() []*Light {
	return m.best
}

func (m *Manager) findBest(box math.Box, sphere math.Sphere, maxCount int, cameraBased bool) []*Light {
	lights := m.AllLights()
	for _, l := range lights {
		m.ScoreLight(l, box, sphere, cameraBased)
	}
	slices.SortStableFunc(lights, func(a, b *Light) int {
		switch {
		case a.Score > b.Score:
			return -1
		case a.Score < b.Score:
			return 1
		}
		return 0
	})
	for i, l := range lights {
		if l.Score <= 0 || i >= maxCount {
			lights = lights[:i]
			break
		}
	}
	m.best = lights
	return lights
}

// ScoreLight computes and stores l.Score for the region.
func (m *Manager) ScoreLight(l *Light, box math.Box, sphere math.Sphere, cameraBased bool) int32 {
	l.Score = 0
	if m.filterZones && l.DiffuseRestrictZone {
		allowed := (m.zones[0] > -1 && l.AllowDiffuse(m.zones[0])) ||
			(m.zones[0] > -1 && m.zones[1] > -1 && l.AllowDiffuse(m.zones[1]))
		if !allowed {
			return 0
		}
	}

	distIntensity := float32(1)
	colorIntensity := float32(1)
	weight := float32(DynamicPriority)

	if cameraBased {
		st := m.Bind(l)
		maxRad := st.MaxRadius(true)
		dist := sphere.Center.Distance(l.Position)
		span := sphere.Radius + maxRad
		if span <= 0 {
			distIntensity = 0
		} else {
			distIntensity = math.Clamp(1-dist/span, 0, 1)
		}
	} else {
		if l.Kind.IsSpot() && !anyInFront(l.SpotPlane(), box) {
			return 0
		}
		if l.Kind.IsDirectional() {
			colorIntensity = l.Color.Add(l.Ambient).Luminance()
			weight = SunPriority
		} else {
			colorIntensity = l.Color.Average()
			st := m.Bind(l)
			distIntensity = st.Score(sphere)
			if l.AssignedToObject {
				weight = AssignedPriority
			} else if l.Kind.IsStatic() {
				weight = StaticPriority
			}
		}
	}

	intensity := colorIntensity * distIntensity
	if intensity < MinLexelIntensity {
		intensity = 0
	}
	// Inverse attenuation near a light is unbounded; saturate instead of
	// wrapping negative.
	l.Score = int32(min(float64(intensity)*float64(weight)*1024, gomath.MaxInt32))
	return l.Score
}

func anyInFront(p math.Plane, box math.Box) bool {
	for _, c := range box.Corners() {
		if p.Distance(c) >= 0 {
			return true
		}
	}
	return false
}

// BestLightsDual groups a ranked list into primary/secondary pairs.
// Directional lights always stand alone; lights that can be secondary ride
// along with primaries first, then pair up among themselves.
func BestLightsDual(list []*Light) []DualLight {
	var out []DualLight
	var pri, sec []*Light
	for _, l := range list {
		switch {
		case l.Kind.IsDirectional():
			out = append(out, DualLight{Primary: l})
		case l.CanBeSecondary():
			sec = append(sec, l)
		default:
			pri = append(pri, l)
		}
	}
	for _, p := range pri {
		d := DualLight{Primary: p}
		if len(sec) > 0 {
			d.Secondary, sec = sec[0], sec[1:]
		}
		out = append(out, d)
	}
	for len(sec) > 0 {
		d := DualLight{Primary: sec[0]}
		sec = sec[1:]
		if len(sec) > 0 {
			d.Secondary, sec = sec[0], sec[1:]
		}
		out = append(out, d)
	}
	return out
}

// LogBest writes the last ranked list at debug level.
func (m *Manager) LogBest() {
	for i, l := range m.best {
		m.log.Debug("best light",
			zap.Int("rank", i),
			zap.Stringer("light", l),
			zap.Int32("score", l.Score))
	}
}
