package shadow

import (
	"encoding/binary"
	"hash/crc32"
	gomath "math"

	"go.uber.org/zap"

	"github.com/Faultbox/midgard-lighting/internal/engine/lighting"
	"github.com/Faultbox/midgard-lighting/internal/engine/pool"
	"github.com/Faultbox/midgard-lighting/internal/engine/shadowvolume"
	"github.com/Faultbox/midgard-lighting/internal/logger"
	"github.com/Faultbox/midgard-lighting/pkg/math"
)

// ShaderModel is the occluder technique chosen from quality settings.
type ShaderModel int

const (
	// ShaderModelBasic projects a plain silhouette, no self shadowing.
	ShaderModelBasic ShaderModel = iota
	// ShaderModelMedium stores depth for self shadowing at reduced quality.
	ShaderModelMedium
	// ShaderModelFull stores depth for full self shadowing.
	ShaderModelFull
)

// Projector is a render-to-texture shadow of one object for one light.
type Projector struct {
	env      *Env
	caster   Caster
	light    *lighting.Light
	settings Settings
	// composite is non-nil for the single-shadow source.
	composite *CompositeDirection

	lodSizes    [MaxLOD]int32
	format      pool.Format
	model       ShaderModel
	cachedModel ShaderModel
	cachedSize  int
	typeDirty   bool

	tex        *pool.Texture
	currentLOD int

	firstMove  bool
	firstRTT   bool
	lastFrame  int
	poseHash   uint32
	lastRender uint32

	cachedPos   math.Vec3
	lightVector math.Vec3
	space       LightSpace
	projScale   float32
	projInfo    [3]float32
	partition   shadowvolume.Partition

	log *zap.Logger
}

// NewProjector creates a projector for caster lit by light.
func NewProjector(env *Env, caster Caster, light *lighting.Light, settings Settings) *Projector {
	return &Projector{
		env:         env,
		caster:      caster,
		light:       light,
		settings:    settings,
		typeDirty:   true,
		firstMove:   true,
		firstRTT:    true,
		currentLOD:  -1,
		lightVector: math.Vec3{Z: -1},
		log:         logger.Named("shadow"),
	}
}

// LOD returns the current texture LOD, or -1 with no texture.
func (p *Projector) LOD() int { return p.currentLOD }

// Texture returns the occluder texture, nil when none is held.
func (p *Projector) Texture() *pool.Texture { return p.tex }

// Partition returns the receiver mesh of the last bounding box update.
func (p *Projector) Partition() *shadowvolume.Partition { return &p.partition }

// LightVector returns the direction the shadow is projected along.
func (p *Projector) LightVector() math.Vec3 { return p.lightVector }

// LastRenderTime implements Shadow.
func (p *Projector) LastRenderTime() uint32 { return p.lastRender }

// Release implements Shadow.
func (p *Projector) Release() { p.clear() }

func (p *Projector) clear() {
	p.releaseTexture()
	p.lodSizes = [MaxLOD]int32{}
	p.partition.Reset()
	p.typeDirty = true
	p.firstMove = true
	p.firstRTT = true
}

func (p *Projector) releaseTexture() {
	p.currentLOD = -1
	if p.tex == nil {
		return
	}
	if err := p.env.Pool.Release(p.tex); err != nil {
		p.log.Warn("release shadow texture", zap.Error(err))
	}
	p.tex = nil
}

// setLOD swaps the texture for one of the LOD's size. It reports whether
// the texture changed.
func (p *Projector) setLOD(lod int) bool {
	if lod == p.currentLOD {
		return false
	}
	p.releaseTexture()
	size := p.lodSizes[lod]
	tex, err := p.env.Pool.Acquire(pool.Key{Width: size, Height: size, Format: p.format})
	if err != nil {
		p.log.Warn("acquire shadow texture", zap.Int32("size", size), zap.Error(err))
		return false
	}
	p.tex = tex
	p.currentLOD = lod
	return true
}

func (p *Projector) shaderModel() ShaderModel {
	switch {
	case !p.settings.SelfShadow || p.env.Quality >= 2:
		return ShaderModelBasic
	case p.env.Quality >= 1:
		return ShaderModelMedium
	}
	return ShaderModelFull
}

func (p *Projector) allowSelfShadowing() bool {
	return p.settings.SelfShadow && p.model != ShaderModelBasic
}

// shadowSize is the LOD 0 texture edge.
func (p *Projector) shadowSize() int {
	size := max(p.settings.Size, MinShadowSize)
	if p.env.DetailSize > 0 {
		size = min(size, p.env.DetailSize)
	}
	return size
}

func (p *Projector) setupShadowType() {
	model := p.shaderModel()
	if !p.typeDirty && model == p.cachedModel && p.env.DetailSize == p.cachedSize {
		return
	}
	p.clear()
	p.model = model
	p.cachedModel = model
	p.cachedSize = p.env.DetailSize

	if model == ShaderModelBasic {
		p.format = pool.FormatRGBA8
	} else {
		p.format = pool.FormatR8
	}
	size := p.shadowSize()
	p.lodSizes = LODSizes(size)
	if p.env.ZBuffer != nil {
		if err := p.env.ZBuffer.Prep(int32(size)); err != nil {
			p.log.Warn("shared z-buffer", zap.Error(err))
		}
	}
	p.typeDirty = false
}

// lightAttenuation is the remaining intensity of the light at the object,
// doubled. Directional lights always return 2.
func (p *Projector) lightAttenuation() float32 {
	if p.light.Kind.IsDirectional() {
		return 2
	}
	st := p.env.Lights.Bind(p.light)
	maxRad := st.MaxRadius(true)
	if maxRad <= 0 {
		return 0
	}
	d := renderPosition(p.caster).Distance(p.light.Position)
	return (1 - d/maxRad) * 2
}

func (p *Projector) projectionVector(pos math.Vec3) math.Vec3 {
	if !p.env.MultipleDynamicShadows && p.composite != nil {
		zone := int32(0)
		if zs := p.caster.CurrentZones(); len(zs) > 0 {
			zone = zs[0]
		}
		return p.composite.Update(p.env.now(), p.env.Lights.Best(), pos, zone)
	}
	if p.light.Kind.IsDirectional() {
		return p.light.Direction.Normalize()
	}
	if v := pos.Sub(p.light.Position).Normalize(); v.LengthSquared() > 0 {
		return v
	}
	return math.Vec3{Z: -1}
}

// calculateBoundingBox rebuilds light space and the receiver mesh when the
// object or the light vector moved.
func (p *Projector) calculateBoundingBox() {
	pos := renderPosition(p.caster)
	vect := p.projectionVector(pos)

	sphere := p.caster.WorldSphere()
	sphere.Radius *= 1.2 * p.settings.SphereAdjust
	if sphere.Radius <= 0 {
		return
	}
	pos = pos.Sub(vect.Scale(sphere.Radius * 0.25))

	move := (vect != p.lightVector || pos != p.cachedPos) && p.settings.CanMove
	if !move && !p.firstMove {
		return
	}
	p.firstMove = false
	p.firstRTT = true
	p.cachedPos = pos
	p.lightVector = vect

	r := sphere.Radius
	pd := p.settings.ProjectionDistance
	p.projScale = 1 / r
	p.projInfo = [3]float32{r + pd, r, p.projScale}
	p.space = NewLightSpace(vect, renderPosition(p.caster), pos)

	// The volume the shadow can fall in: the sphere swept along the light.
	local := math.Box{Min: math.Vec3{X: -r, Y: -r, Z: -r}, Max: math.Vec3{X: r, Y: r + pd, Z: r}}
	box := local.Transform(p.space.LightToWorld)

	var receivers [][]math.Vec3
	if p.env.Receivers != nil {
		receivers = p.env.Receivers.ShadowReceivers(box)
	}
	boundary := make([]math.Vec3, 0, 4)
	for _, c := range [4]math.Vec3{{X: -r, Z: -r}, {X: -r, Z: r}, {X: r, Z: r}, {X: r, Z: -r}} {
		boundary = append(boundary, p.space.LightProjToWorld.TransformVec3(c))
	}
	p.partition = p.env.partitioner().DepthPartition(boundary, vect, r+pd, receivers)
}

// ShouldRender implements Shadow.
func (p *Projector) ShouldRender(camDist float32) bool {
	if camDist > p.settings.MaxVisibleDistance {
		return false
	}
	if !p.settings.Enable || !p.env.DynamicShadows {
		p.clear()
		return false
	}
	p.setupShadowType()
	p.calculateBoundingBox()

	if !p.env.shaderSupport() || !p.env.Renderer.Ready() {
		return false
	}
	return p.lightAttenuation() > lighting.MinLexelIntensity
}

// Render implements Shadow.
func (p *Projector) Render(camDist float32) {
	attn := p.lightAttenuation()
	if attn <= lighting.MinLexelIntensity {
		return
	}

	lod := SelectLOD(camDist, p.settings.MaxVisibleDistance)
	attn *= DistanceAttenuation(camDist, p.settings.MaxVisibleDistance)
	allowLODSelfShadow := lod <= LastSelfShadowLOD

	p.lastRender = p.env.now()

	hash := PoseHash(p.caster.RenderTransform())
	frame := (p.lastFrame >= p.settings.FrameSkip || (p.allowSelfShadowing() && allowLODSelfShadow)) &&
		(p.caster.ShadowDirty() || p.poseHash != hash)
	p.lastFrame++

	if (p.settings.CanRTT && (frame || p.currentLOD != lod)) || p.firstRTT {
		p.firstRTT = false
		p.lastFrame = 0
		p.poseHash = hash
		// Without RTT the texture never changes, so keep the sharpest.
		if !p.settings.CanRTT {
			lod = 0
		}
		p.setLOD(lod)
		p.renderOccluder()
	}
	if p.tex == nil {
		return
	}

	width := p.tex.Key().Width
	texel := 1 / float32(max(width-1, 1)) * 1.25
	pass := CompositePass{
		Mesh:           &p.partition,
		WorldToLight:   p.space.WorldToLight,
		ProjectionInfo: p.projInfo,
		Color:          CompositeColor(p.light.Color, attn),
		Stride:         [4]float32{texel, texel, float32(width), 1 / float32(width)},
		Bias:           [2]float32{p.bias(), 0.0005},
		LOD:            p.currentLOD,
	}
	if !p.partition.Empty() {
		p.env.Renderer.Composite(p.tex, pass)
	}

	if !p.allowSelfShadowing() || !allowLODSelfShadow {
		return
	}
	attn *= SelfShadowAttenuation(camDist)
	pass.Color = CompositeColor(p.light.Color, attn)
	pass.SelfShadow = true
	pass.Triangles = p.caster.Triangles()
	pass.ObjectToWorld = p.caster.RenderTransform()
	p.env.Renderer.Composite(p.tex, pass)
}

func (p *Projector) bias() float32 {
	box := p.caster.WorldBox()
	rad := box.Center().Sub(box.Max).LengthSquared()
	return p.settings.Bias * rad * p.settings.SphereAdjust * p.settings.SphereAdjust
}

// OccluderMatrix maps object space into the occluder texture.
func (p *Projector) OccluderMatrix() math.Mat4 {
	r := p.projInfo[1]
	proj := OccluderProjection(r, p.settings.ProjectionDistance)
	return proj.Mul(p.space.WorldToLight).Mul(p.caster.RenderTransform())
}

func (p *Projector) renderOccluder() {
	if p.tex == nil {
		return
	}
	var depth pool.Resource
	if p.env.ZBuffer != nil {
		depth = p.env.ZBuffer.Get()
	}
	err := p.env.Renderer.RenderOccluder(p.tex, depth, OccluderPass{
		Triangles:  p.caster.Triangles(),
		Matrix:     p.OccluderMatrix(),
		ClearWhite: p.allowSelfShadowing(),
	})
	if err != nil {
		p.log.Warn("render occluder", zap.Error(err))
	}
}

// PoseHash fingerprints a transform so unchanged poses skip re-rendering.
func PoseHash(m math.Mat4) uint32 {
	var buf [64]byte
	for i, f := range m {
		binary.LittleEndian.PutUint32(buf[i*4:], gomath.Float32bits(f))
	}
	return crc32.ChecksumIEEE(buf[:])
}
