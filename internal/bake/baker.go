// Package bake computes static lightmaps for a scene.
//
// A Baker is a cooperative state machine. Each call to Step performs one
// phase (cache check, per-light preprocess, one object illuminated by one
// light, per-light finalize, completion) so a caller can spread the work
// over frames and poll Progress in between. Terminate stops the run at the
// next step; lightmaps already illuminated by the current light are
// finalized and no cache file is written.
package bake

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/Faultbox/midgard-lighting/internal/engine/lighting"
	"github.com/Faultbox/midgard-lighting/internal/engine/shadowvolume"
	"github.com/Faultbox/midgard-lighting/internal/logger"
	"github.com/Faultbox/midgard-lighting/internal/scene"
	"github.com/Faultbox/midgard-lighting/pkg/formats"
	"github.com/Faultbox/midgard-lighting/pkg/math"
)

var (
	ErrNoLights       = errors.New("scene has no static lights")
	ErrNoObjects      = errors.New("scene has no lightmapped objects")
	ErrAlreadyRunning = errors.New("a bake is already running")
)

// lexelLift moves texel quads off their surface before shadow queries.
const lexelLift = 0.01

// surfaceBits is the width of the object-local part of a surface id.
const surfaceBits = 20

// Options configures a bake.
type Options struct {
	Quality  Quality
	CacheDir string
	// Persist writes a cache file on completion and loads a matching one
	// at start.
	Persist bool
	// RequirePersist makes an unwritable cache directory fatal instead of
	// disabling persistence.
	RequirePersist bool

	// QuotaKB bounds the cache directory after a save; negative means
	// unlimited.
	QuotaKB      int64
	Purge        PurgeMethod
	Blur         bool
	NoShadows    bool
	DefaultModel lighting.ModelKind
	// OnComplete runs once when the bake finishes or is terminated.
	OnComplete func(*Baker)
}

// caster is a static polygon gathered for one light and one object.
type caster struct {
	verts   []math.Vec3
	surface int32
}

// phase is one state of the bake.
type phase interface {
	name() string
	run(b *Baker) error
}

// Baker runs one bake.
type Baker struct {
	ID   uuid.UUID
	log  *zap.Logger
	opts Options

	scene      *scene.Scene
	bsp        *shadowvolume.BSP
	quad       [4]math.Vec3 // litFraction scratch
	lights     []*lighting.Light
	proxies    []*Proxy
	occluders  []scene.Occluder
	objectIDs  map[scene.Occluder]int32
	missionCRC uint32
	cachePath  string
	persist    bool

	current, next phase

	// per-light working set
	state   lighting.State
	targets []*Proxy
	casters [][]caster

	progress   float64
	running    bool
	terminated bool
	fromCache  bool
	err        error
	started    time.Time
}

// New prepares a bake of sc. Objects whose lightmaps fail validation are
// dropped with a warning. bsp is reused for every (light, object) pair.
func New(sc *scene.Scene, bsp *shadowvolume.BSP, opts Options) (*Baker, error) {
	b := &Baker{
		ID:        uuid.New(),
		log:       logger.Named("bake"),
		opts:      opts,
		scene:     sc,
		bsp:       bsp,
		lights:    sc.BakeLights(),
		occluders: sc.Occluders(),
		objectIDs: make(map[scene.Occluder]int32),
		persist:   opts.Persist,
	}
	if len(b.lights) == 0 {
		return nil, ErrNoLights
	}
	for i, o := range b.occluders {
		b.objectIDs[o] = int32(i)
	}
	for _, obj := range sc.Receivers() {
		p, err := newProxy(obj, len(b.proxies))
		if err != nil {
			b.log.Warn("dropping object", zap.Error(err))
			continue
		}
		b.proxies = append(b.proxies, p)
	}
	if len(b.proxies) == 0 {
		return nil, ErrNoObjects
	}
	if b.persist {
		if err := CheckWritable(opts.CacheDir); err != nil {
			if opts.RequirePersist {
				return nil, err
			}
			b.log.Warn("lightmaps will not be saved", zap.Error(err))
			b.persist = false
		}
		b.cachePath = CachePath(opts.CacheDir, sc.Name, opts.Quality)
	}
	b.missionCRC = sc.MissionCRC()
	b.change(startPhase{})
	b.running = true
	return b, nil
}

// change schedules the next phase. It takes effect on the next Step.
func (b *Baker) change(next phase) {
	b.next = next
}

// Step advances the bake by one phase and reports whether more work
// remains.
func (b *Baker) Step() bool {
	if !b.running {
		return false
	}
	if b.terminated {
		b.abort()
		return false
	}
	if b.next != nil {
		b.current = b.next
		b.next = nil
	}
	if b.current == nil {
		b.running = false
		return false
	}
	if err := b.current.run(b); err != nil {
		b.err = fmt.Errorf("%s: %w", b.current.name(), err)
		b.log.Error("bake failed", zap.String("phase", b.current.name()), zap.Error(err))
		b.finish()
		return false
	}
	if b.next == nil {
		b.finish()
		return false
	}
	return true
}

// Run steps until the bake finishes and returns its error.
func (b *Baker) Run() error {
	for b.Step() {
	}
	return b.err
}

// Terminate stops the bake at the next Step.
func (b *Baker) Terminate() { b.terminated = true }

// Running reports whether Step has work left.
func (b *Baker) Running() bool { return b.running }

// Progress is the completed fraction, 0..1.
func (b *Baker) Progress() float64 { return b.progress }

// Err returns the error that stopped the bake, if any.
func (b *Baker) Err() error { return b.err }

// Terminated reports whether the bake was stopped early.
func (b *Baker) Terminated() bool { return b.terminated }

// FromCache reports whether the lightmaps were loaded instead of baked.
func (b *Baker) FromCache() bool { return b.fromCache }

// Proxies returns the baked objects in persist order.
func (b *Baker) Proxies() []*Proxy { return b.proxies }

// Lights returns the lights the bake applies, in order.
func (b *Baker) Lights() []*lighting.Light { return b.lights }

// CachePath is the file the bake loads and saves, or "" when not
// persisting.
func (b *Baker) CachePath() string {
	if !b.persist {
		return ""
	}
	return b.cachePath
}

// MissionCRC identifies the scene state the lightmaps belong to.
func (b *Baker) MissionCRC() uint32 { return b.missionCRC }

// Result returns the final lightmaps of an object by name.
func (b *Baker) Result(name string) ([]*formats.Lightmap, bool) {
	for _, p := range b.proxies {
		if p.Name() == name {
			return p.Final, p.Final != nil
		}
	}
	return nil, false
}

func (b *Baker) finish() {
	b.running = false
	b.current, b.next = nil, nil
	b.targets, b.casters = nil, nil
	if b.opts.OnComplete != nil {
		b.opts.OnComplete(b)
	}
}

// abort finalizes whatever the current light already illuminated. The
// partial lightmaps stay readable but are never saved.
func (b *Baker) abort() {
	finalized := 0
	for _, p := range b.proxies {
		if p.lit() {
			p.finalizeLight(b.state.Light, b.opts.Quality.FillScale(), b.opts.Blur)
			finalized++
		}
	}
	for _, p := range b.proxies {
		p.bakeFinal()
	}
	b.bsp.Reset(shadowvolume.Source{})
	b.log.Info("bake terminated",
		zap.String("run", b.ID.String()),
		zap.Int("finalized", finalized),
		zap.Float64("progress", b.progress),
		zap.Duration("elapsed", time.Since(b.started)))
	b.finish()
}

func (b *Baker) setProgress(light, object, objects int) {
	frac := 0.0
	if objects > 0 {
		frac = float64(object) / float64(objects)
	}
	b.progress = (float64(light) + frac) / float64(len(b.lights))
}

type startPhase struct{}

func (startPhase) name() string { return "start" }

func (startPhase) run(b *Baker) error {
	b.started = time.Now()
	if b.persist {
		err := loadCache(b.cachePath, b.missionCRC, b.proxies)
		if err == nil {
			b.fromCache = true
			if err := touch(b.cachePath); err != nil {
				b.log.Warn("cache touch failed", zap.Error(err))
			}
			b.log.Info("lightmaps loaded from cache",
				zap.String("file", b.cachePath),
				zap.Uint32("crc", b.missionCRC))
			b.change(completePhase{})
			return nil
		}
		b.log.Debug("cache not usable", zap.String("file", b.cachePath), zap.Error(err))
	}
	b.log.Info("bake started",
		zap.String("run", b.ID.String()),
		zap.String("scene", b.scene.Name),
		zap.Stringer("quality", b.opts.Quality),
		zap.Int("lights", len(b.lights)),
		zap.Int("objects", len(b.proxies)))
	b.change(preprocessPhase{light: 0})
	return nil
}

type preprocessPhase struct{ light int }

func (preprocessPhase) name() string { return "preprocess" }

// run selects the objects the light reaches and gathers their casters.
func (ph preprocessPhase) run(b *Baker) error {
	l := b.lights[ph.light]
	b.state = lighting.BindLight(l, b.opts.DefaultModel)
	b.targets = b.targets[:0]
	b.casters = b.casters[:0]
	shadows := b.shadows(l)
	for _, p := range b.proxies {
		box := p.Object.WorldBox()
		if l.Kind != lighting.Ambient && !b.state.CanIlluminate(box) {
			continue
		}
		b.targets = append(b.targets, p)
		var cs []caster
		if shadows {
			cs = b.gatherCasters(l, box)
		}
		b.casters = append(b.casters, cs)
	}
	b.log.Debug("light preprocessed",
		zap.String("light", l.String()),
		zap.Int("objects", len(b.targets)))
	b.setProgress(ph.light, 0, len(b.targets))
	if len(b.targets) == 0 {
		b.change(finalizePhase{light: ph.light})
		return nil
	}
	b.change(illuminatePhase{light: ph.light, object: 0})
	return nil
}

type illuminatePhase struct{ light, object int }

func (illuminatePhase) name() string { return "illuminate" }

func (ph illuminatePhase) run(b *Baker) error {
	p := b.targets[ph.object]
	b.illuminate(p, b.casters[ph.object])
	b.setProgress(ph.light, ph.object+1, len(b.targets))
	if ph.object+1 < len(b.targets) {
		b.change(illuminatePhase{light: ph.light, object: ph.object + 1})
	} else {
		b.change(finalizePhase{light: ph.light})
	}
	return nil
}

type finalizePhase struct{ light int }

func (finalizePhase) name() string { return "finalize" }

func (ph finalizePhase) run(b *Baker) error {
	l := b.lights[ph.light]
	for _, p := range b.targets {
		p.finalizeLight(l, b.opts.Quality.FillScale(), b.opts.Blur)
	}
	b.bsp.Reset(shadowvolume.Source{})
	b.setProgress(ph.light+1, 0, 0)
	if ph.light+1 < len(b.lights) {
		b.change(preprocessPhase{light: ph.light + 1})
	} else {
		b.change(completePhase{})
	}
	return nil
}

type completePhase struct{}

func (completePhase) name() string { return "complete" }

func (completePhase) run(b *Baker) error {
	b.progress = 1
	if b.fromCache {
		return nil
	}
	for _, p := range b.proxies {
		p.bakeFinal()
	}
	if b.persist {
		ml := encode(b.missionCRC, b.proxies)
		if err := ml.SaveML(b.cachePath); err != nil {
			// The lightmaps are still usable.
			b.log.Error("saving lightmaps failed", zap.String("file", b.cachePath), zap.Error(err))
		} else if removed, err := GC(b.opts.CacheDir, b.cachePath, b.opts.QuotaKB, b.opts.Purge); err != nil {
			b.log.Warn("cache collection failed", zap.Error(err))
		} else if len(removed) > 0 {
			b.log.Info("stale lightmaps removed", zap.Strings("files", removed))
		}
	}
	b.log.Info("bake complete",
		zap.String("run", b.ID.String()),
		zap.Uint32("crc", b.missionCRC),
		zap.Duration("elapsed", time.Since(b.started)))
	return nil
}

func (b *Baker) shadows(l *lighting.Light) bool {
	return !b.opts.NoShadows && l.CastsShadows && l.Kind != lighting.Ambient
}

// casterBox is the region whose polygons can shadow box from l.
func casterBox(l *lighting.Light, box math.Box) math.Box {
	if l.Kind.IsDirectional() {
		back := l.Direction.Normalize().Scale(-shadowvolume.VirtualLightOffset)
		return box.Union(math.Box{Min: box.Min.Add(back), Max: box.Max.Add(back)})
	}
	return box.Extend(l.Position)
}

func (b *Baker) gatherCasters(l *lighting.Light, box math.Box) []caster {
	region := casterBox(l, box)
	var out []caster
	for _, o := range b.occluders {
		if !o.WorldBox().Overlaps(region) {
			continue
		}
		id := b.objectIDs[o]
		o.ShadowPolys(region, func(verts []math.Vec3, surface int32) {
			out = append(out, caster{
				verts:   append([]math.Vec3(nil), verts...),
				surface: globalSurface(id, surface),
			})
		})
	}
	return out
}

func globalSurface(object, local int32) int32 {
	return object<<surfaceBits | local&(1<<surfaceBits-1)
}

// illuminate lights every sampled texel of p with the bound light.
func (b *Baker) illuminate(p *Proxy, casters []caster) {
	l := b.state.Light
	shadowed := len(casters) > 0
	if shadowed {
		b.bsp.Reset(shadowvolume.SourceFor(l, p.Object.WorldBox().Center()))
		hs := make([]shadowvolume.PolyHandle, 0, len(casters))
		for _, c := range casters {
			plane, ok := shadowvolume.WindingPlane(c.verts)
			if !ok {
				continue
			}
			if h, ok := b.bsp.CreatePoly(c.verts, plane, c.surface); ok {
				hs = append(hs, h)
			}
		}
		b.bsp.SortNearestFirst(hs)
		for _, h := range hs {
			b.bsp.InsertPoly(h)
		}
		shadowed = !b.bsp.Empty()
	}
	var id int32
	if o, ok := p.Object.(scene.Occluder); ok {
		id = b.objectIDs[o]
	}
	terrain := p.Object.Kind() == scene.KindTerrain
	step := b.opts.Quality.FillScale()

	p.beginLight()
	for m := range p.Maps {
		work := p.working[m]
		p.Object.Lexels(m, step, func(lx scene.Lexel) {
			s := b.state.Illuminate(lx.Pos, lx.Normal)
			diffuseOK, ambientOK := p.zones(l, lx.Surface)
			var c math.Color
			if diffuseOK && !s.Diffuse.Below(lighting.MinLexelIntensity) {
				d := s.Diffuse
				if shadowed {
					surface := globalSurface(id, lx.Surface)
					if terrain {
						surface = shadowvolume.NoSurface
					}
					d = d.Scale(b.litFraction(lx, surface))
				}
				c = c.Add(d)
				if p.Normals != nil && !d.IsBlack() {
					p.Normals[m].Add(lx.X, lx.Y, s.Normal.Scale(d.Average()))
				}
			}
			if ambientOK {
				c = c.Add(s.Ambient)
			}
			if !c.IsBlack() {
				work.Add(lx.X, lx.Y, c)
			}
		})
	}
}

// litFraction is the share of the texel footprint outside every shadow
// volume. Volumes of surface itself are ignored.
func (b *Baker) litFraction(lx scene.Lexel, surface int32) float32 {
	lift := lx.Normal.Normalize().Scale(lexelLift)
	quad := b.quad[:]
	for i, v := range lx.Quad {
		quad[i] = v.Add(lift)
	}
	area := shadowvolume.WindingArea(quad)
	if area <= 0 {
		return 1
	}
	return b.bsp.WindingLitArea(quad, surface) / area
}
