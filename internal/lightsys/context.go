// Package lightsys ties the lighting pieces into one owned context: the
// light manager, the render target pool with its shared depth buffer, the
// dynamic shadows of moving objects and the static lightmap bake.
//
// A Context is single-threaded. Tools create one per process (or per
// test), call SetScene, then drive StepBake and RenderShadows from their
// frame loop and Close it on exit.
package lightsys

import (
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/Faultbox/midgard-lighting/internal/bake"
	"github.com/Faultbox/midgard-lighting/internal/config"
	"github.com/Faultbox/midgard-lighting/internal/engine/lighting"
	"github.com/Faultbox/midgard-lighting/internal/engine/pool"
	"github.com/Faultbox/midgard-lighting/internal/engine/shadow"
	"github.com/Faultbox/midgard-lighting/internal/engine/shadowvolume"
	"github.com/Faultbox/midgard-lighting/internal/logger"
	"github.com/Faultbox/midgard-lighting/internal/scene"
	"github.com/Faultbox/midgard-lighting/pkg/math"
)

var (
	ErrClosed  = errors.New("lighting context is closed")
	ErrNoScene = errors.New("lighting context has no scene")
)

// Context owns the shared lighting state.
type Context struct {
	cfg *config.Config
	log *zap.Logger

	Pool    *pool.Pool
	ZBuffer *pool.ZBuffer
	Lights  *lighting.Manager
	Monitor *shadow.Monitor
	Shadows *shadow.Env

	// The bake keeps its own tree so shadow partitioning can run between
	// bake steps.
	bakeBSP *shadowvolume.BSP

	scene   *scene.Scene
	casters []*shadow.ObjectShadows
	baker   *bake.Baker
	clock   func() uint32
	closed  bool
}

// New creates a context. A nil cfg selects config.Default(), a nil alloc
// the CPU allocator and a nil renderer the software rasterizer.
func New(cfg *config.Config, alloc pool.Allocator, renderer shadow.Renderer) (*Context, error) {
	if cfg == nil {
		cfg = config.Default()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	model, ok := lighting.ParseModel(cfg.Lighting.DefaultModel)
	if !ok {
		return nil, fmt.Errorf("unknown lighting model %q", cfg.Lighting.DefaultModel)
	}
	if alloc == nil {
		alloc = &pool.SoftwareAllocator{}
	}
	if renderer == nil {
		renderer = shadow.NewSoftwareRenderer()
	}

	c := &Context{
		cfg: cfg,
		log: logger.Named("lightsys"),
		Pool: pool.New(alloc, pool.Options{
			CleanupInterval: cfg.Pool.CleanupInterval,
			IdleTimeout:     cfg.Pool.IdleTimeout,
		}),
		ZBuffer: pool.NewZBuffer(alloc),
		Lights:  lighting.NewManager(model, cfg.Lighting.MaxBestLights),
		Monitor: shadow.NewMonitor(),
		bakeBSP: shadowvolume.New(),
		clock:   pool.Millis,
	}
	c.Shadows = &shadow.Env{
		Pool:                   c.Pool,
		ZBuffer:                c.ZBuffer,
		Lights:                 c.Lights,
		Renderer:               renderer,
		BSP:                    shadowvolume.New(),
		Clock:                  c.now,
		DynamicShadows:         cfg.Lighting.DynamicShadows,
		MultipleDynamicShadows: cfg.Lighting.MultipleDynamicShadows,
		Quality:                cfg.Lighting.ShadowQuality,
	}
	return c, nil
}

func (c *Context) now() uint32 { return c.clock() }

// SetClock replaces the millisecond clock used by the pool and shadows.
func (c *Context) SetClock(fn func() uint32) {
	c.clock = fn
	c.Pool.SetClock(fn)
}

// Config returns the settings the context was created with.
func (c *Context) Config() *config.Config { return c.cfg }

// Scene returns the current scene, or nil.
func (c *Context) Scene() *scene.Scene { return c.scene }

// SetScene replaces the lit scene. A running bake is terminated and the
// shadows of the previous scene's casters are released.
func (c *Context) SetScene(sc *scene.Scene) error {
	if c.closed {
		return ErrClosed
	}
	if c.BakeRunning() {
		c.TerminateBake()
		c.StepBake()
	}
	c.releaseShadows()
	c.Lights.UnregisterAll()

	c.scene = sc
	c.Shadows.Receivers = nil
	if sc == nil {
		return nil
	}
	c.Shadows.Receivers = sc
	sc.Register(c.Lights)
	settings := shadow.SettingsFromConfig(c.cfg.Shadows)
	for _, s := range sc.Shapes {
		c.casters = append(c.casters, shadow.NewObjectShadows(c.Shadows, c.Monitor, s, settings))
	}
	c.log.Info("scene set",
		zap.String("scene", sc.Name),
		zap.Int("lights", len(c.Lights.AllLights())),
		zap.Int("casters", len(c.casters)))
	return nil
}

func (c *Context) releaseShadows() {
	for _, s := range c.casters {
		s.Release()
	}
	c.casters = nil
}

// BakeOptions converts the bake and cache settings.
func (c *Context) BakeOptions() (bake.Options, error) {
	q, err := bake.ParseQuality(c.cfg.Bake.Quality)
	if err != nil {
		return bake.Options{}, err
	}
	purge, err := bake.ParsePurgeMethod(c.cfg.Cache.PurgeMethod)
	if err != nil {
		return bake.Options{}, err
	}
	return bake.Options{
		Quality:      q,
		CacheDir:     c.cfg.Cache.Dir,
		Persist:      c.cfg.Bake.Persist,
		QuotaKB:      c.cfg.Cache.QuotaKB,
		Purge:        purge,
		Blur:         c.cfg.Bake.Blur,
		DefaultModel: c.Lights.DefaultModel(),
	}, nil
}

// StartBake begins baking the current scene. Drive it with StepBake.
func (c *Context) StartBake(opts bake.Options) (*bake.Baker, error) {
	switch {
	case c.closed:
		return nil, ErrClosed
	case c.scene == nil:
		return nil, ErrNoScene
	case c.BakeRunning():
		return nil, bake.ErrAlreadyRunning
	}
	b, err := bake.New(c.scene, c.bakeBSP, opts)
	if err != nil {
		return nil, err
	}
	c.baker = b
	return b, nil
}

// StepBake runs bake steps for up to the configured time slice, at least
// one, and reports whether work remains.
func (c *Context) StepBake() bool {
	if c.baker == nil {
		return false
	}
	deadline := time.Now().Add(c.cfg.Bake.TimeSlice)
	for c.baker.Step() {
		if !time.Now().Before(deadline) {
			return true
		}
	}
	return false
}

// Bake runs a whole bake of the current scene with the configured options.
func (c *Context) Bake() (*bake.Baker, error) {
	opts, err := c.BakeOptions()
	if err != nil {
		return nil, err
	}
	b, err := c.StartBake(opts)
	if err != nil {
		return nil, err
	}
	return b, b.Run()
}

// Baker returns the last started bake, or nil.
func (c *Context) Baker() *bake.Baker { return c.baker }

// BakeRunning reports whether a bake has steps left.
func (c *Context) BakeRunning() bool { return c.baker != nil && c.baker.Running() }

// BakeProgress is the running bake's progress, 0..1.
func (c *Context) BakeProgress() float64 {
	if c.baker == nil {
		return 0
	}
	return c.baker.Progress()
}

// TerminateBake stops the running bake at its next step.
func (c *Context) TerminateBake() {
	if c.baker != nil {
		c.baker.Terminate()
	}
}

// BestLights ranks the lights reaching box. obj, if not nil, restricts
// diffuse lights to its zones.
func (c *Context) BestLights(box math.Box, obj lighting.Zoned) []*lighting.Light {
	c.Lights.SetupZoneFiltering(c.cfg.Lighting.FilterZones && obj != nil, obj)
	defer c.Lights.SetupZoneFiltering(false, nil)
	return c.Lights.BestLights(box, c.Lights.MaxBestLights(), false)
}

// RenderShadows draws the dynamic shadows of every scene caster for a
// camera at eye and returns how many were drawn. Idle shadows and pool
// textures are collected afterwards.
func (c *Context) RenderShadows(eye math.Vec3) int {
	if c.closed || !c.cfg.Lighting.DynamicShadows {
		return 0
	}
	rendered := 0
	for _, s := range c.casters {
		rendered += s.Render(s.CameraDistance(eye))
	}
	now := c.now()
	c.Monitor.CleanupUnused(now)
	c.Pool.CleanupUnused()
	return rendered
}

// Casters returns the shadow sets of the scene's moving objects.
func (c *Context) Casters() []*shadow.ObjectShadows { return c.casters }

// Close terminates any bake and frees every pooled resource. It is safe to
// call more than once.
func (c *Context) Close() error {
	if c.closed {
		return nil
	}
	if c.BakeRunning() {
		c.TerminateBake()
		c.baker.Step()
	}
	c.releaseShadows()
	c.Lights.UnregisterAll()
	c.ZBuffer.Clear()
	if c.cfg.Logging.Level == "debug" {
		c.Pool.LogStats()
	}
	err := c.Pool.Clear()
	c.closed = true
	return err
}
