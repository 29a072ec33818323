// Package glrender draws dynamic shadows with OpenGL 4.1. Occluders render
// into pooled framebuffer.Targets; composites and blobs draw into whatever
// framebuffer is bound.
package glrender

import (
	"errors"
	"fmt"

	"github.com/go-gl/gl/v4.1-core/gl"
	"github.com/go-gl/mathgl/mgl32"
	"go.uber.org/zap"

	"github.com/Faultbox/midgard-lighting/internal/engine/framebuffer"
	"github.com/Faultbox/midgard-lighting/internal/engine/pool"
	"github.com/Faultbox/midgard-lighting/internal/engine/shader"
	"github.com/Faultbox/midgard-lighting/internal/engine/shadow"
	"github.com/Faultbox/midgard-lighting/internal/logger"
	"github.com/Faultbox/midgard-lighting/pkg/math"
)

// ErrNotTarget is returned for pool textures not made by framebuffer.Allocator.
var ErrNotTarget = errors.New("texture is not a GL render target")

// Renderer implements shadow.Renderer. A GL context must be current.
type Renderer struct {
	occluder  *shader.Program
	composite *shader.Program
	blob      *shader.Program

	vao, vbo, ebo uint32
	blobVAO       uint32
	blobVBO       uint32
	blobTex       uint32

	viewProj mgl32.Mat4
	log      *zap.Logger
}

// New compiles the shadow programs and creates the vertex buffers.
func New() (*Renderer, error) {
	r := &Renderer{viewProj: mgl32.Ident4(), log: logger.Named("glrender")}

	var err error
	r.occluder, err = shader.NewProgram(shader.OccluderVertex, shader.OccluderFragment,
		"uMatrix", "uStoreDepth")
	if err != nil {
		return nil, fmt.Errorf("occluder program: %w", err)
	}
	r.composite, err = shader.NewProgram(shader.CompositeVertex, shader.CompositeFragment,
		"uViewProj", "uModel", "uWorldToLight", "uShadow", "uProjInfo", "uColor", "uStride", "uBias", "uDepthCompare")
	if err != nil {
		r.Destroy()
		return nil, fmt.Errorf("composite program: %w", err)
	}
	r.blob, err = shader.NewProgram(shader.BlobVertex, shader.BlobFragment, "uViewProj", "uBlob")
	if err != nil {
		r.Destroy()
		return nil, fmt.Errorf("blob program: %w", err)
	}

	gl.GenVertexArrays(1, &r.vao)
	gl.GenBuffers(1, &r.vbo)
	gl.GenBuffers(1, &r.ebo)
	gl.BindVertexArray(r.vao)
	gl.BindBuffer(gl.ARRAY_BUFFER, r.vbo)
	gl.EnableVertexAttribArray(0)
	gl.VertexAttribPointerWithOffset(0, 3, gl.FLOAT, false, 3*4, 0)
	gl.BindBuffer(gl.ELEMENT_ARRAY_BUFFER, r.ebo)

	gl.GenVertexArrays(1, &r.blobVAO)
	gl.GenBuffers(1, &r.blobVBO)
	gl.BindVertexArray(r.blobVAO)
	gl.BindBuffer(gl.ARRAY_BUFFER, r.blobVBO)
	gl.EnableVertexAttribArray(0)
	gl.VertexAttribPointerWithOffset(0, 3, gl.FLOAT, false, 5*4, 0)
	gl.EnableVertexAttribArray(1)
	gl.VertexAttribPointerWithOffset(1, 2, gl.FLOAT, false, 5*4, 3*4)
	gl.BindBuffer(gl.ELEMENT_ARRAY_BUFFER, r.ebo)
	gl.BindVertexArray(0)

	return r, nil
}

// SetCamera sets the view-projection used by composite and blob passes.
func (r *Renderer) SetCamera(eye, center mgl32.Vec3, fovY, aspect, near, far float32) {
	proj := mgl32.Perspective(mgl32.DegToRad(fovY), aspect, near, far)
	view := mgl32.LookAtV(eye, center, mgl32.Vec3{0, 0, 1})
	r.viewProj = proj.Mul4(view)
}

// Ready implements shadow.Renderer.
func (r *Renderer) Ready() bool {
	return r.occluder != nil && r.occluder.ID != 0 && r.composite != nil && r.composite.ID != 0
}

// SupportsShaders implements shadow.Renderer.
func (r *Renderer) SupportsShaders() bool { return true }

func toGL(m math.Mat4) mgl32.Mat4 { return mgl32.Mat4(m) }

func flatten(verts []math.Vec3) []float32 {
	out := make([]float32, 0, len(verts)*3)
	for _, v := range verts {
		out = append(out, v.X, v.Y, v.Z)
	}
	return out
}

func (r *Renderer) upload(verts []float32, indices []uint32) {
	gl.BindBuffer(gl.ARRAY_BUFFER, r.vbo)
	gl.BufferData(gl.ARRAY_BUFFER, len(verts)*4, gl.Ptr(verts), gl.STREAM_DRAW)
	if len(indices) > 0 {
		gl.BindBuffer(gl.ELEMENT_ARRAY_BUFFER, r.ebo)
		gl.BufferData(gl.ELEMENT_ARRAY_BUFFER, len(indices)*4, gl.Ptr(indices), gl.STREAM_DRAW)
	}
}

// RenderOccluder implements shadow.Renderer.
func (r *Renderer) RenderOccluder(target *pool.Texture, depth pool.Resource, pass shadow.OccluderPass) error {
	if target == nil {
		return ErrNotTarget
	}
	t, ok := target.Resource.(*framebuffer.Target)
	if !ok {
		return fmt.Errorf("occluder: %w", ErrNotTarget)
	}
	if d, ok := depth.(*framebuffer.Target); ok {
		t.AttachDepth(d)
	}
	if len(pass.Triangles) < 3 {
		return nil
	}

	restore := t.BindWithViewport()
	defer restore()
	if pass.ClearWhite {
		t.Clear(1, 1, 1, 1)
	} else {
		t.Clear(0, 0, 0, 0)
	}

	gl.Enable(gl.DEPTH_TEST)
	gl.DepthFunc(gl.LESS)
	gl.Disable(gl.CULL_FACE)
	gl.Disable(gl.BLEND)

	r.occluder.Use()
	m := toGL(pass.Matrix)
	gl.UniformMatrix4fv(r.occluder.Uniform("uMatrix"), 1, false, &m[0])
	store := int32(0)
	if pass.ClearWhite {
		store = 1
	}
	gl.Uniform1i(r.occluder.Uniform("uStoreDepth"), store)

	gl.BindVertexArray(r.vao)
	r.upload(flatten(pass.Triangles), nil)
	gl.DrawArrays(gl.TRIANGLES, 0, int32(len(pass.Triangles)))
	gl.BindVertexArray(0)

	if e := gl.GetError(); e != gl.NO_ERROR {
		return fmt.Errorf("occluder draw: gl error 0x%x", e)
	}
	return nil
}

// Composite implements shadow.Renderer.
func (r *Renderer) Composite(target *pool.Texture, pass shadow.CompositePass) {
	if target == nil {
		return
	}
	t, ok := target.Resource.(*framebuffer.Target)
	if !ok {
		r.log.Warn("composite skipped", zap.Error(ErrNotTarget))
		return
	}

	var verts []float32
	var indices []uint32
	model := mgl32.Ident4()
	if pass.SelfShadow {
		verts = flatten(pass.Triangles)
		model = toGL(pass.ObjectToWorld)
	} else {
		if pass.Mesh == nil || pass.Mesh.Empty() {
			return
		}
		verts = flatten(pass.Mesh.Verts)
		indices = pass.Mesh.Triangles()
	}

	gl.Enable(gl.BLEND)
	gl.BlendFunc(gl.ZERO, gl.SRC_COLOR)
	gl.Enable(gl.DEPTH_TEST)
	gl.DepthFunc(gl.LEQUAL)
	gl.DepthMask(false)
	gl.Enable(gl.POLYGON_OFFSET_FILL)
	gl.PolygonOffset(-1, -1)

	p := r.composite
	p.Use()
	w2l := toGL(pass.WorldToLight)
	gl.UniformMatrix4fv(p.Uniform("uViewProj"), 1, false, &r.viewProj[0])
	gl.UniformMatrix4fv(p.Uniform("uModel"), 1, false, &model[0])
	gl.UniformMatrix4fv(p.Uniform("uWorldToLight"), 1, false, &w2l[0])
	gl.Uniform3fv(p.Uniform("uProjInfo"), 1, &pass.ProjectionInfo[0])
	gl.Uniform4fv(p.Uniform("uColor"), 1, &pass.Color[0])
	gl.Uniform4fv(p.Uniform("uStride"), 1, &pass.Stride[0])
	gl.Uniform2fv(p.Uniform("uBias"), 1, &pass.Bias[0])
	compare := int32(0)
	if t.Format() == pool.FormatR8 {
		compare = 1
	}
	gl.Uniform1i(p.Uniform("uDepthCompare"), compare)
	gl.ActiveTexture(gl.TEXTURE0)
	gl.BindTexture(gl.TEXTURE_2D, t.Texture())
	gl.Uniform1i(p.Uniform("uShadow"), 0)

	gl.BindVertexArray(r.vao)
	r.upload(verts, indices)
	if indices != nil {
		gl.DrawElementsWithOffset(gl.TRIANGLES, int32(len(indices)), gl.UNSIGNED_INT, 0)
	} else {
		gl.DrawArrays(gl.TRIANGLES, 0, int32(len(verts)/3))
	}
	gl.BindVertexArray(0)

	gl.Disable(gl.POLYGON_OFFSET_FILL)
	gl.DepthMask(true)
	gl.Disable(gl.BLEND)
}

// Blob implements shadow.Renderer.
func (r *Renderer) Blob(pass shadow.BlobPass) {
	if pass.Mesh == nil || pass.Mesh.Empty() {
		return
	}
	if r.blobTex == 0 {
		gl.GenTextures(1, &r.blobTex)
		gl.BindTexture(gl.TEXTURE_2D, r.blobTex)
		gl.TexImage2D(gl.TEXTURE_2D, 0, gl.RGBA8, int32(pass.Dim), int32(pass.Dim), 0,
			gl.RGBA, gl.UNSIGNED_BYTE, gl.Ptr(pass.Texture))
		gl.TexParameteri(gl.TEXTURE_2D, gl.TEXTURE_MIN_FILTER, gl.LINEAR)
		gl.TexParameteri(gl.TEXTURE_2D, gl.TEXTURE_MAG_FILTER, gl.LINEAR)
		gl.TexParameteri(gl.TEXTURE_2D, gl.TEXTURE_WRAP_S, gl.CLAMP_TO_EDGE)
		gl.TexParameteri(gl.TEXTURE_2D, gl.TEXTURE_WRAP_T, gl.CLAMP_TO_EDGE)
	}

	verts := make([]float32, 0, len(pass.Mesh.Verts)*5)
	for i, v := range pass.Mesh.Verts {
		verts = append(verts, v.X, v.Y, v.Z, pass.TexCoords[i*2], pass.TexCoords[i*2+1])
	}
	indices := pass.Mesh.Triangles()

	gl.Enable(gl.BLEND)
	gl.BlendFunc(gl.SRC_ALPHA, gl.ONE_MINUS_SRC_ALPHA)
	gl.DepthMask(false)

	r.blob.Use()
	gl.UniformMatrix4fv(r.blob.Uniform("uViewProj"), 1, false, &r.viewProj[0])
	gl.ActiveTexture(gl.TEXTURE0)
	gl.BindTexture(gl.TEXTURE_2D, r.blobTex)
	gl.Uniform1i(r.blob.Uniform("uBlob"), 0)

	gl.BindVertexArray(r.blobVAO)
	gl.BindBuffer(gl.ARRAY_BUFFER, r.blobVBO)
	gl.BufferData(gl.ARRAY_BUFFER, len(verts)*4, gl.Ptr(verts), gl.STREAM_DRAW)
	gl.BindBuffer(gl.ELEMENT_ARRAY_BUFFER, r.ebo)
	gl.BufferData(gl.ELEMENT_ARRAY_BUFFER, len(indices)*4, gl.Ptr(indices), gl.STREAM_DRAW)
	gl.DrawElementsWithOffset(gl.TRIANGLES, int32(len(indices)), gl.UNSIGNED_INT, 0)
	gl.BindVertexArray(0)

	gl.DepthMask(true)
	gl.Disable(gl.BLEND)
}

// Destroy frees programs, buffers and the blob texture.
func (r *Renderer) Destroy() {
	for _, p := range []*shader.Program{r.occluder, r.composite, r.blob} {
		if p != nil {
			p.Delete()
		}
	}
	if r.blobTex != 0 {
		gl.DeleteTextures(1, &r.blobTex)
		r.blobTex = 0
	}
	for _, b := range []*uint32{&r.vbo, &r.ebo, &r.blobVBO} {
		if *b != 0 {
			gl.DeleteBuffers(1, b)
			*b = 0
		}
	}
	for _, a := range []*uint32{&r.vao, &r.blobVAO} {
		if *a != 0 {
			gl.DeleteVertexArrays(1, a)
			*a = 0
		}
	}
}
