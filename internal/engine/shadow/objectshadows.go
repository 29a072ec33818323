package shadow

import (
	"slices"
	"strings"

	"go.uber.org/zap"

	"github.com/Faultbox/midgard-lighting/internal/engine/lighting"
	"github.com/Faultbox/midgard-lighting/internal/engine/pool"
	"github.com/Faultbox/midgard-lighting/internal/logger"
	"github.com/Faultbox/midgard-lighting/pkg/math"
)

// MonitorIntervalMS is how often a Monitor looks for idle shadows.
const MonitorIntervalMS = 2000

// ObjectShadows holds the shadows of one casting object, one per light.
type ObjectShadows struct {
	env      *Env
	monitor  *Monitor
	caster   Caster
	settings Settings

	shadows    map[*lighting.Light]Shadow
	single     *lighting.Light
	composite  *CompositeDirection
	registered bool
	lastRender uint32
}

// NewObjectShadows creates the shadow set for caster. monitor may be nil.
func NewObjectShadows(env *Env, monitor *Monitor, caster Caster, settings Settings) *ObjectShadows {
	return &ObjectShadows{
		env:      env,
		monitor:  monitor,
		caster:   caster,
		settings: settings,
		shadows:  make(map[*lighting.Light]Shadow),
	}
}

// Len returns the number of live shadows.
func (o *ObjectShadows) Len() int { return len(o.shadows) }

// Shadow returns the shadow for l, or nil.
func (o *ObjectShadows) Shadow(l *lighting.Light) Shadow { return o.shadows[l] }

// Textures returns the pooled textures of the set's projected shadows,
// ordered by light name.
func (o *ObjectShadows) Textures() []*pool.Texture {
	lights := make([]*lighting.Light, 0, len(o.shadows))
	for l := range o.shadows {
		lights = append(lights, l)
	}
	slices.SortFunc(lights, func(a, b *lighting.Light) int { return strings.Compare(a.Name, b.Name) })

	var out []*pool.Texture
	for _, l := range lights {
		if p, ok := o.shadows[l].(*Projector); ok && p.Texture() != nil {
			out = append(out, p.Texture())
		}
	}
	return out
}

// CameraDistance is how far eye is from the caster's bounding sphere.
func (o *ObjectShadows) CameraDistance(eye math.Vec3) float32 {
	s := o.caster.WorldSphere()
	return max(s.Center.Distance(eye)-s.Radius, 0)
}

// LastRenderTime returns when any shadow of the set last rendered.
func (o *ObjectShadows) LastRenderTime() uint32 { return o.lastRender }

// singleSource is the stand-in light for the composite shadow used when
// only one dynamic shadow per object is allowed.
func (o *ObjectShadows) singleSource() *lighting.Light {
	if o.single == nil {
		o.single = lighting.NewLight(lighting.Vector)
		o.single.Name = "composite"
		o.single.Color = math.Gray(0.5)
		o.composite = NewCompositeDirection()
	}
	return o.single
}

func (o *ObjectShadows) createNewShadow(l *lighting.Light) Shadow {
	if !o.env.shaderSupport() {
		return NewBlob(o.env, o.caster, l, o.settings)
	}
	p := NewProjector(o.env, o.caster, l, o.settings)
	if l == o.single {
		p.composite = o.composite
	}
	return p
}

func (o *ObjectShadows) shadow(l *lighting.Light) Shadow {
	s, ok := o.shadows[l]
	if !ok {
		s = o.createNewShadow(l)
		o.shadows[l] = s
	}
	return s
}

func (o *ObjectShadows) renderLight(l *lighting.Light, camDist float32) bool {
	s := o.shadow(l)
	if !s.ShouldRender(camDist) {
		return false
	}
	s.Render(camDist)
	return true
}

// Render draws the object's shadows and returns how many were drawn. When
// multiple dynamic shadows are enabled every shadow casting best light gets
// one, falling back to the sun when none rendered.
func (o *ObjectShadows) Render(camDist float32) int {
	if !o.registered && o.monitor != nil {
		o.monitor.Register(o)
		o.registered = true
	}

	lights := o.env.Lights
	lights.SetupZoneFiltering(true, o.caster)
	best := lights.BestLightsSphere(o.caster.WorldSphere(), lights.MaxBestLights(), false)
	lights.SetupZoneFiltering(false, nil)

	rendered := 0
	if !o.env.MultipleDynamicShadows {
		if o.renderLight(o.singleSource(), camDist) {
			rendered++
		}
	} else {
		for _, l := range best {
			if l.CastsShadows && o.renderLight(l, camDist) {
				rendered++
			}
		}
		if rendered == 0 && o.renderLight(lights.SpecialLight(lighting.SunLight), camDist) {
			rendered++
		}
	}
	if rendered > 0 {
		o.lastRender = o.env.now()
	}
	o.caster.ClearShadowDirty()
	return rendered
}

// CleanupUnused drops shadows idle longer than the settings timeout, or the
// whole set when the object itself stopped rendering.
func (o *ObjectShadows) CleanupUnused(now uint32) {
	if now < o.lastRender {
		o.lastRender = 0
		return
	}
	timeout := o.settings.IdleTimeoutMS
	if now-o.lastRender > timeout {
		o.clear()
		return
	}
	for l, s := range o.shadows {
		if last := s.LastRenderTime(); now >= last && now-last > timeout {
			s.Release()
			delete(o.shadows, l)
		}
	}
}

func (o *ObjectShadows) clear() {
	for l, s := range o.shadows {
		s.Release()
		delete(o.shadows, l)
	}
}

// Release frees every shadow and leaves the monitor.
func (o *ObjectShadows) Release() {
	o.clear()
	if o.registered {
		o.monitor.Unregister(o)
		o.registered = false
	}
}

// Monitor tracks live shadow sets and periodically drops idle shadows.
type Monitor struct {
	sets map[*ObjectShadows]struct{}
	last uint32
	log  *zap.Logger
}

// NewMonitor creates an empty monitor.
func NewMonitor() *Monitor {
	return &Monitor{
		sets: make(map[*ObjectShadows]struct{}),
		log:  logger.Named("shadow"),
	}
}

// Register adds a shadow set.
func (m *Monitor) Register(s *ObjectShadows) { m.sets[s] = struct{}{} }

// Unregister removes a shadow set.
func (m *Monitor) Unregister(s *ObjectShadows) { delete(m.sets, s) }

// Len returns the number of registered sets.
func (m *Monitor) Len() int { return len(m.sets) }

// Shadows returns the number of live shadows across all sets.
func (m *Monitor) Shadows() int {
	n := 0
	for s := range m.sets {
		n += s.Len()
	}
	return n
}

// CleanupUnused runs ObjectShadows.CleanupUnused on every set, at most once
// per MonitorIntervalMS.
func (m *Monitor) CleanupUnused(now uint32) {
	if !pool.TimeElapsed(now, &m.last, MonitorIntervalMS) {
		return
	}
	before := m.Shadows()
	for s := range m.sets {
		s.CleanupUnused(now)
	}
	if after := m.Shadows(); after != before {
		m.log.Debug("dropped idle shadows", zap.Int("dropped", before-after), zap.Int("live", after))
	}
}
