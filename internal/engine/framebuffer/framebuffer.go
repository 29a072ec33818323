// Package framebuffer provides OpenGL render targets for the shadow texture pool.
package framebuffer

import (
	"fmt"

	"github.com/go-gl/gl/v4.1-core/gl"

	"github.com/Faultbox/midgard-lighting/internal/engine/pool"
)

// Target is an offscreen render target: a texture attachment of the pooled
// format plus, for color formats, a depth renderbuffer.
type Target struct {
	fbo      uint32
	texture  uint32
	depthRBO uint32
	width    int32
	height   int32
	format   pool.Format
}

// New creates a render target with the specified dimensions and format.
func New(width, height int32, format pool.Format) (*Target, error) {
	if width < 1 {
		width = 1
	}
	if height < 1 {
		height = 1
	}

	t := &Target{
		width:  width,
		height: height,
		format: format,
	}

	if err := t.create(); err != nil {
		return nil, fmt.Errorf("creating %dx%d %s target: %w", width, height, format, err)
	}

	return t, nil
}

func glFormat(f pool.Format) (internal int32, format, xtype uint32) {
	switch f {
	case pool.FormatR8:
		return gl.R8, gl.RED, gl.UNSIGNED_BYTE
	case pool.FormatDepth24:
		return gl.DEPTH_COMPONENT24, gl.DEPTH_COMPONENT, gl.FLOAT
	default:
		return gl.RGBA8, gl.RGBA, gl.UNSIGNED_BYTE
	}
}

func (t *Target) create() error {
	gl.GenFramebuffers(1, &t.fbo)
	gl.BindFramebuffer(gl.FRAMEBUFFER, t.fbo)

	internal, format, xtype := glFormat(t.format)
	gl.GenTextures(1, &t.texture)
	gl.BindTexture(gl.TEXTURE_2D, t.texture)
	gl.TexImage2D(gl.TEXTURE_2D, 0, internal, t.width, t.height, 0, format, xtype, nil)
	gl.TexParameteri(gl.TEXTURE_2D, gl.TEXTURE_MIN_FILTER, gl.LINEAR)
	gl.TexParameteri(gl.TEXTURE_2D, gl.TEXTURE_MAG_FILTER, gl.LINEAR)
	// Shadow textures are projected; keep the border texels from smearing.
	gl.TexParameteri(gl.TEXTURE_2D, gl.TEXTURE_WRAP_S, gl.CLAMP_TO_EDGE)
	gl.TexParameteri(gl.TEXTURE_2D, gl.TEXTURE_WRAP_T, gl.CLAMP_TO_EDGE)

	if t.format == pool.FormatDepth24 {
		gl.FramebufferTexture2D(gl.FRAMEBUFFER, gl.DEPTH_ATTACHMENT, gl.TEXTURE_2D, t.texture, 0)
		gl.DrawBuffer(gl.NONE)
		gl.ReadBuffer(gl.NONE)
	} else {
		gl.FramebufferTexture2D(gl.FRAMEBUFFER, gl.COLOR_ATTACHMENT0, gl.TEXTURE_2D, t.texture, 0)

		gl.GenRenderbuffers(1, &t.depthRBO)
		gl.BindRenderbuffer(gl.RENDERBUFFER, t.depthRBO)
		gl.RenderbufferStorage(gl.RENDERBUFFER, gl.DEPTH_COMPONENT24, t.width, t.height)
		gl.FramebufferRenderbuffer(gl.FRAMEBUFFER, gl.DEPTH_ATTACHMENT, gl.RENDERBUFFER, t.depthRBO)
	}

	status := gl.CheckFramebufferStatus(gl.FRAMEBUFFER)
	if status != gl.FRAMEBUFFER_COMPLETE {
		gl.BindFramebuffer(gl.FRAMEBUFFER, 0)
		t.Destroy()
		return fmt.Errorf("framebuffer incomplete: 0x%x", status)
	}

	gl.BindFramebuffer(gl.FRAMEBUFFER, 0)
	return nil
}

// BindWithViewport binds the target and sets the viewport to its size.
// The returned function restores the previous framebuffer and viewport.
func (t *Target) BindWithViewport() func() {
	var prevFBO int32
	var prevViewport [4]int32
	gl.GetIntegerv(gl.FRAMEBUFFER_BINDING, &prevFBO)
	gl.GetIntegerv(gl.VIEWPORT, &prevViewport[0])

	gl.BindFramebuffer(gl.FRAMEBUFFER, t.fbo)
	gl.Viewport(0, 0, t.width, t.height)

	return func() {
		gl.BindFramebuffer(gl.FRAMEBUFFER, uint32(prevFBO))
		gl.Viewport(prevViewport[0], prevViewport[1], prevViewport[2], prevViewport[3])
	}
}

// AttachDepth swaps the depth attachment for a shared depth target, so many
// color targets can render with one z-buffer.
func (t *Target) AttachDepth(depth *Target) {
	if t.format == pool.FormatDepth24 || depth == nil {
		return
	}
	gl.BindFramebuffer(gl.FRAMEBUFFER, t.fbo)
	gl.FramebufferTexture2D(gl.FRAMEBUFFER, gl.DEPTH_ATTACHMENT, gl.TEXTURE_2D, depth.texture, 0)
	gl.BindFramebuffer(gl.FRAMEBUFFER, 0)
}

// Clear clears the bound target with the specified color.
func (t *Target) Clear(r, g, b, a float32) {
	gl.ClearColor(r, g, b, a)
	gl.Clear(gl.COLOR_BUFFER_BIT | gl.DEPTH_BUFFER_BIT)
}

// Texture returns the texture attachment ID.
func (t *Target) Texture() uint32 { return t.texture }

// FBO returns the underlying framebuffer object ID.
func (t *Target) FBO() uint32 { return t.fbo }

// Size returns the target dimensions.
func (t *Target) Size() (width, height int32) { return t.width, t.height }

// Format returns the pooled format.
func (t *Target) Format() pool.Format { return t.format }

// ReadPixels reads the texture attachment of a color target into a byte
// slice, flipped so row 0 is the top.
func (t *Target) ReadPixels() []byte {
	bpp := int32(t.format.BytesPerPixel())
	_, format, _ := glFormat(t.format)
	pixels := make([]byte, t.width*t.height*bpp)

	var prevFBO int32
	gl.GetIntegerv(gl.FRAMEBUFFER_BINDING, &prevFBO)
	gl.BindFramebuffer(gl.FRAMEBUFFER, t.fbo)
	gl.PixelStorei(gl.PACK_ALIGNMENT, 1)
	gl.ReadPixels(0, 0, t.width, t.height, format, gl.UNSIGNED_BYTE, gl.Ptr(pixels))
	gl.BindFramebuffer(gl.FRAMEBUFFER, uint32(prevFBO))

	stride := t.width * bpp
	row := make([]byte, stride)
	for y := int32(0); y < t.height/2; y++ {
		top := pixels[y*stride : (y+1)*stride]
		bottom := pixels[(t.height-1-y)*stride : (t.height-y)*stride]
		copy(row, top)
		copy(top, bottom)
		copy(bottom, row)
	}
	return pixels
}

// Destroy releases all OpenGL resources. It implements pool.Resource.
func (t *Target) Destroy() {
	if t.fbo != 0 {
		gl.DeleteFramebuffers(1, &t.fbo)
		t.fbo = 0
	}
	if t.texture != 0 {
		gl.DeleteTextures(1, &t.texture)
		t.texture = 0
	}
	if t.depthRBO != 0 {
		gl.DeleteRenderbuffers(1, &t.depthRBO)
		t.depthRBO = 0
	}
}

// Allocator creates GL targets for a pool.Pool. A GL context must be
// current on the calling thread.
type Allocator struct{}

// Allocate implements pool.Allocator.
func (Allocator) Allocate(key pool.Key) (pool.Resource, error) {
	if key.Width <= 0 || key.Height <= 0 {
		return nil, pool.ErrBadSize
	}
	t, err := New(key.Width, key.Height, key.Format)
	if err != nil {
		return nil, err
	}
	return t, nil
}
