package shadow

import (
	"github.com/Faultbox/midgard-lighting/internal/engine/lighting"
	"github.com/Faultbox/midgard-lighting/internal/engine/shadowvolume"
	"github.com/Faultbox/midgard-lighting/pkg/math"
)

const (
	// BlobTextureDim is the edge of the generic blob texture.
	BlobTextureDim = 32
	// BlobMaxAlpha is the alpha at the blob center.
	BlobMaxAlpha = 180
	// GenericRadiusSkew shrinks the bounds half-diagonal to the blob radius.
	GenericRadiusSkew = 0.4
	// blobLengthScale extends the blob prism past the object.
	blobLengthScale = 10
)

// GenerateBlobTexture builds a dim x dim RGBA radial falloff. Alpha drops
// quadratically from maxAlpha at the center and is cut at the edge.
func GenerateBlobTexture(dim int, maxAlpha byte) []byte {
	pix := make([]byte, dim*dim*4)
	center := dim / 2
	if center == 0 {
		return pix
	}
	invRadiusSq := 1 / float32(center*center)
	for y := range dim {
		for x := range dim {
			dx, dy := x-center, y-center
			d := float32(dx*dx+dy*dy) * invRadiusSq
			if d > 0.99 {
				continue
			}
			pix[(y*dim+x)*4+3] = byte(float32(maxAlpha) * (1 - d))
		}
	}
	return pix
}

// Blob is the fallback shadow for renderers without shader support: the
// generic blob texture projected onto the receivers below the object.
type Blob struct {
	env      *Env
	caster   Caster
	light    *lighting.Light
	settings Settings

	radius     float32
	partition  shadowvolume.Partition
	texCoords  []float32
	lastRender uint32
}

// NewBlob creates a blob shadow of caster for light.
func NewBlob(env *Env, caster Caster, light *lighting.Light, settings Settings) *Blob {
	return &Blob{env: env, caster: caster, light: light, settings: settings}
}

// Partition returns the receiver mesh of the last ShouldRender.
func (b *Blob) Partition() *shadowvolume.Partition { return &b.partition }

// TexCoords returns two texture coordinates per partition vertex.
func (b *Blob) TexCoords() []float32 { return b.texCoords }

// Radius returns the blob radius in world units.
func (b *Blob) Radius() float32 { return b.radius }

// LastRenderTime implements Shadow.
func (b *Blob) LastRenderTime() uint32 { return b.lastRender }

// Release implements Shadow.
func (b *Blob) Release() {
	b.partition.Reset()
	b.texCoords = b.texCoords[:0]
}

func matrixScale(m math.Mat4) math.Vec3 {
	return math.Vec3{
		X: math.Vec3{X: m[0], Y: m[1], Z: m[2]}.Length(),
		Y: math.Vec3{X: m[4], Y: m[5], Z: m[6]}.Length(),
		Z: math.Vec3{X: m[8], Y: m[9], Z: m[10]}.Length(),
	}
}

func (b *Blob) lightDirection(pos math.Vec3) math.Vec3 {
	if b.light.Kind.IsDirectional() {
		if d := b.light.Direction.Normalize(); d.LengthSquared() > 0 {
			return d
		}
	} else if d := pos.Sub(b.light.Position).Normalize(); d.LengthSquared() > 0 {
		return d
	}
	return math.Vec3{Z: -1}
}

// build computes the receiver mesh and its texture coordinates.
func (b *Blob) build() {
	b.Release()

	shape := b.caster.ShapeBounds()
	m := b.caster.RenderTransform()
	scale := matrixScale(m)
	pos := m.TransformVec3(shape.Center())
	dir := b.lightDirection(pos)

	b.radius = shape.Max.Sub(shape.Min).Mul(scale).Length() * 0.5 * GenericRadiusSkew
	if b.radius <= 0 {
		return
	}
	length := max(shape.Radius()*max(scale.X, scale.Y, scale.Z)*blobLengthScale, 1)

	lightToWorld, worldToLight := blobLightSpace(dir, pos)
	r := b.radius
	boundary := make([]math.Vec3, 0, 4)
	for _, c := range [4]math.Vec3{{X: -r, Z: -r}, {X: -r, Z: r}, {X: r, Z: r}, {X: r, Z: -r}} {
		boundary = append(boundary, lightToWorld.TransformVec3(c))
	}

	var receivers [][]math.Vec3
	if b.env.Receivers != nil {
		box := math.BoxAround(boundary...)
		for _, c := range boundary {
			box = box.Extend(c.Add(dir.Scale(length)))
		}
		receivers = b.env.Receivers.ShadowReceivers(box)
	}
	b.partition = b.env.partitioner().DepthPartition(boundary, dir, length, receivers)

	for _, v := range b.partition.Verts {
		lp := worldToLight.TransformVec3(v)
		b.texCoords = append(b.texCoords, 0.5+0.5*lp.X/r, 0.5+0.5*lp.Z/r)
	}
}

// ShouldRender implements Shadow.
func (b *Blob) ShouldRender(camDist float32) bool {
	if camDist > b.settings.MaxVisibleDistance {
		return false
	}
	if !b.settings.Enable || !b.env.DynamicShadows {
		b.Release()
		return false
	}
	b.build()
	return !b.partition.Empty()
}

// Render implements Shadow.
func (b *Blob) Render(float32) {
	b.lastRender = b.env.now()
	if b.env.Renderer == nil {
		return
	}
	b.env.Renderer.Blob(BlobPass{
		Mesh:      &b.partition,
		TexCoords: b.texCoords,
		Texture:   b.env.BlobTexture(),
		Dim:       BlobTextureDim,
	})
}
