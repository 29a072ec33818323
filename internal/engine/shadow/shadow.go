// Package shadow renders real-time shadows for moving objects.
//
// Each casting object owns an ObjectShadows set holding one Shadow per
// light. A Projector renders the object into a pooled occluder texture in
// light space and composites it over the receiver mesh found by a depth
// partition. Without shader support a Blob shadow projects a generic radial
// texture instead.
package shadow

import (
	"github.com/Faultbox/midgard-lighting/internal/config"
	"github.com/Faultbox/midgard-lighting/internal/engine/lighting"
	"github.com/Faultbox/midgard-lighting/internal/engine/pool"
	"github.com/Faultbox/midgard-lighting/internal/engine/shadowvolume"
	"github.com/Faultbox/midgard-lighting/pkg/math"
)

// Caster is an object that casts a dynamic shadow.
type Caster interface {
	lighting.Zoned
	// RenderTransform is the object-to-world transform, scale included.
	RenderTransform() math.Mat4
	WorldSphere() math.Sphere
	WorldBox() math.Box
	// ShapeBounds is the object-space bounding box.
	ShapeBounds() math.Box
	// Triangles returns object-space occluder triangles, three per face.
	Triangles() []math.Vec3
	// ShadowDirty reports that the pose changed since the last frame.
	ShadowDirty() bool
	ClearShadowDirty()
}

// Receivers finds geometry shadows are drawn onto.
type Receivers interface {
	// ShadowReceivers returns convex world-space polygons overlapping box.
	ShadowReceivers(box math.Box) [][]math.Vec3
}

// Renderer draws occluders and shadow meshes. Renderers without shader
// support only draw blobs.
type Renderer interface {
	Ready() bool
	SupportsShaders() bool
	RenderOccluder(target *pool.Texture, depth pool.Resource, pass OccluderPass) error
	Composite(target *pool.Texture, pass CompositePass)
	Blob(pass BlobPass)
}

// OccluderPass renders the caster into its shadow texture.
type OccluderPass struct {
	Triangles []math.Vec3
	// Matrix maps object space to the texture's clip space.
	Matrix math.Mat4
	// ClearWhite is set for self-shadowing passes that store depth.
	ClearWhite bool
}

// CompositePass draws a shadow texture over the receiver mesh, or over the
// caster itself for the self-shadow pass.
type CompositePass struct {
	Mesh           *shadowvolume.Partition
	WorldToLight   math.Mat4
	ProjectionInfo [3]float32
	Color          [4]float32
	Stride         [4]float32
	Bias           [2]float32
	LOD            int

	SelfShadow    bool
	Triangles     []math.Vec3
	ObjectToWorld math.Mat4
}

// BlobPass draws the generic blob texture over a receiver mesh.
type BlobPass struct {
	Mesh      *shadowvolume.Partition
	TexCoords []float32
	Texture   []byte
	Dim       int
}

// Shadow is one (object, light) shadow.
type Shadow interface {
	ShouldRender(camDist float32) bool
	Render(camDist float32)
	LastRenderTime() uint32
	Release()
}

// Env is the shared state every shadow of a lighting context uses.
type Env struct {
	Pool      *pool.Pool
	ZBuffer   *pool.ZBuffer
	Lights    *lighting.Manager
	Receivers Receivers
	Renderer  Renderer
	BSP       *shadowvolume.BSP
	Clock     func() uint32

	DynamicShadows         bool
	MultipleDynamicShadows bool
	// Quality 0 allows full self shadowing, 2 disables it.
	Quality int
	// DetailSize caps the occluder texture size when positive.
	DetailSize int

	blob []byte
}

func (e *Env) now() uint32 {
	if e.Clock != nil {
		return e.Clock()
	}
	return pool.Millis()
}

func (e *Env) shaderSupport() bool {
	return e.Renderer != nil && e.Renderer.SupportsShaders()
}

// BlobTexture returns the generic blob texture, building it on first use.
func (e *Env) BlobTexture() []byte {
	if e.blob == nil {
		e.blob = GenerateBlobTexture(BlobTextureDim, BlobMaxAlpha)
	}
	return e.blob
}

func (e *Env) partitioner() *shadowvolume.BSP {
	if e.BSP == nil {
		e.BSP = shadowvolume.New()
	}
	return e.BSP
}

// Settings are per-object shadow parameters.
type Settings struct {
	Enable             bool
	CanMove            bool
	CanRTT             bool
	SelfShadow         bool
	Size               int
	FrameSkip          int
	MaxVisibleDistance float32
	ProjectionDistance float32
	SphereAdjust       float32
	Bias               float32
	// IdleTimeoutMS drops shadows not rendered for this long.
	IdleTimeoutMS uint32
}

// SettingsFromConfig converts the config section.
func SettingsFromConfig(c config.ShadowConfig) Settings {
	return Settings{
		Enable:             c.Enable,
		CanMove:            c.CanMove,
		CanRTT:             c.CanRTT,
		SelfShadow:         c.SelfShadow,
		Size:               c.Size,
		FrameSkip:          c.FrameSkip,
		MaxVisibleDistance: c.MaxVisibleDistance,
		ProjectionDistance: c.ProjectionDistance,
		SphereAdjust:       c.SphereAdjust,
		IdleTimeoutMS:      uint32(c.IdleTimeout.Milliseconds()),
	}
}

// DefaultSettings mirrors config.Default().Shadows.
func DefaultSettings() Settings {
	return SettingsFromConfig(config.Default().Shadows)
}

func renderPosition(c Caster) math.Vec3 {
	m := c.RenderTransform()
	return math.Vec3{X: m[12], Y: m[13], Z: m[14]}
}
