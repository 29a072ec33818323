package shadow

import (
	"errors"
	"fmt"

	"github.com/Faultbox/midgard-lighting/internal/engine/pool"
	"github.com/Faultbox/midgard-lighting/pkg/math"
)

// ErrNotImage is returned when a software pass gets a non-CPU target.
var ErrNotImage = errors.New("target is not a software image")

// SoftwareRenderer rasterizes occluders into pool.Images on the CPU. It
// backs headless tools and tests; composite and blob passes are recorded,
// not drawn.
type SoftwareRenderer struct {
	// Shaders selects the projector path; false forces blob shadows.
	Shaders bool

	Occluders  int
	Composites int
	Blobs      int

	LastComposite CompositePass
	LastBlob      BlobPass
}

// NewSoftwareRenderer returns a renderer with shader support.
func NewSoftwareRenderer() *SoftwareRenderer {
	return &SoftwareRenderer{Shaders: true}
}

// Ready implements Renderer.
func (r *SoftwareRenderer) Ready() bool { return true }

// SupportsShaders implements Renderer.
func (r *SoftwareRenderer) SupportsShaders() bool { return r.Shaders }

// Composite implements Renderer.
func (r *SoftwareRenderer) Composite(_ *pool.Texture, pass CompositePass) {
	r.Composites++
	r.LastComposite = pass
}

// Blob implements Renderer.
func (r *SoftwareRenderer) Blob(pass BlobPass) {
	r.Blobs++
	r.LastBlob = pass
}

// RenderOccluder implements Renderer. RGBA targets receive an opaque black
// silhouette on transparent black. R8 targets are cleared white and store
// the nearest depth.
func (r *SoftwareRenderer) RenderOccluder(target *pool.Texture, depth pool.Resource, pass OccluderPass) error {
	if target == nil {
		return ErrNotImage
	}
	img, ok := target.Resource.(*pool.Image)
	if !ok {
		return fmt.Errorf("occluder: %w", ErrNotImage)
	}
	zb, _ := depth.(*pool.Image)
	if zb != nil && (zb.Width < img.Width || zb.Height < img.Height) {
		zb = nil
	}
	if zb != nil {
		for i := range zb.Pix {
			zb.Pix[i] = 0xff
		}
	}

	if pass.ClearWhite || img.Format == pool.FormatR8 {
		for i := range img.Pix {
			img.Pix[i] = 0xff
		}
	} else {
		img.Clear()
	}

	for i := 0; i+2 < len(pass.Triangles); i += 3 {
		var tri [3]math.Vec3
		for j := range tri {
			tri[j] = pass.Matrix.TransformVec3(pass.Triangles[i+j])
		}
		rasterize(img, zb, tri)
	}
	r.Occluders++
	return nil
}

func depthAt(zb *pool.Image, idx int) uint32 {
	o := idx * 3
	return uint32(zb.Pix[o]) | uint32(zb.Pix[o+1])<<8 | uint32(zb.Pix[o+2])<<16
}

func setDepth(zb *pool.Image, idx int, d uint32) {
	o := idx * 3
	zb.Pix[o] = byte(d)
	zb.Pix[o+1] = byte(d >> 8)
	zb.Pix[o+2] = byte(d >> 16)
}

// rasterize fills a clip-space triangle, both windings, sampling pixel
// centers.
func rasterize(img, zb *pool.Image, tri [3]math.Vec3) {
	w, h := float32(img.Width), float32(img.Height)
	var sx, sy [3]float32
	for i, v := range tri {
		sx[i] = (v.X*0.5 + 0.5) * w
		sy[i] = (v.Y*0.5 + 0.5) * h
	}
	area := (sx[1]-sx[0])*(sy[2]-sy[0]) - (sx[2]-sx[0])*(sy[1]-sy[0])
	if area == 0 {
		return
	}

	x0 := max(int(min(sx[0], sx[1], sx[2])), 0)
	x1 := min(int(max(sx[0], sx[1], sx[2]))+1, int(img.Width))
	y0 := max(int(min(sy[0], sy[1], sy[2])), 0)
	y1 := min(int(max(sy[0], sy[1], sy[2]))+1, int(img.Height))

	for y := y0; y < y1; y++ {
		py := float32(y) + 0.5
		for x := x0; x < x1; x++ {
			px := float32(x) + 0.5
			b0 := ((sx[1]-px)*(sy[2]-py) - (sx[2]-px)*(sy[1]-py)) / area
			b1 := ((sx[2]-px)*(sy[0]-py) - (sx[0]-px)*(sy[2]-py)) / area
			b2 := 1 - b0 - b1
			if b0 < 0 || b1 < 0 || b2 < 0 {
				continue
			}
			z := math.Clamp((b0*tri[0].Z+b1*tri[1].Z+b2*tri[2].Z)*0.5+0.5, 0, 1)
			idx := y*int(img.Width) + x
			if zb != nil {
				zi := y*int(zb.Width) + x
				d := uint32(z * 0xffffff)
				if d >= depthAt(zb, zi) {
					continue
				}
				setDepth(zb, zi, d)
			}
			switch img.Format {
			case pool.FormatR8:
				img.Pix[idx] = min(img.Pix[idx], byte(z*0xff))
			case pool.FormatRGBA8:
				o := idx * 4
				img.Pix[o], img.Pix[o+1], img.Pix[o+2], img.Pix[o+3] = 0, 0, 0, 0xff
			}
		}
	}
}
