package shadow

import (
	"errors"
	"testing"

	"github.com/Faultbox/midgard-lighting/internal/engine/pool"
	"github.com/Faultbox/midgard-lighting/pkg/math"
)

func newImage(w, h int32, f pool.Format) *pool.Image {
	return &pool.Image{Width: w, Height: h, Format: f, Pix: make([]byte, int(w*h)*f.BytesPerPixel())}
}

func TestRasterizeCoverage(t *testing.T) {
	img := newImage(8, 8, pool.FormatRGBA8)
	r := NewSoftwareRenderer()
	err := r.RenderOccluder(&pool.Texture{Resource: img}, nil, OccluderPass{
		Triangles: []math.Vec3{{X: -1, Y: -1}, {X: 1, Y: -1}, {X: -1, Y: 1}},
		Matrix:    math.Identity(),
	})
	if err != nil {
		t.Fatal(err)
	}
	// Pixel centers on or below the diagonal: 8+7+...+1.
	if n := opaquePixels(img); n != 36 {
		t.Errorf("covered %d pixels, want 36", n)
	}
	if img.Pix[3] != 0xff || img.Pix[len(img.Pix)-1] != 0 {
		t.Error("wrong corner coverage")
	}
}

func TestRasterizeKeepsNearestDepth(t *testing.T) {
	full := func(z float32) []math.Vec3 {
		return []math.Vec3{{X: -1, Y: -1, Z: z}, {X: 3, Y: -1, Z: z}, {X: -1, Y: 3, Z: z}}
	}
	orders := map[string][]math.Vec3{
		"far first":  append(full(0.5), full(-0.5)...),
		"near first": append(full(-0.5), full(0.5)...),
	}
	for name, tris := range orders {
		t.Run(name, func(t *testing.T) {
			img := newImage(4, 4, pool.FormatR8)
			zb := newImage(8, 8, pool.FormatDepth24)
			r := NewSoftwareRenderer()
			err := r.RenderOccluder(&pool.Texture{Resource: img}, zb, OccluderPass{
				Triangles:  tris,
				Matrix:     math.Identity(),
				ClearWhite: true,
			})
			if err != nil {
				t.Fatal(err)
			}
			for i, v := range img.Pix {
				if v != 63 {
					t.Fatalf("pixel %d depth = %d, want 63", i, v)
				}
			}
			quarter := float32(0.25)
			want := int64(quarter * 0xffffff)
			if d := int64(depthAt(zb, 0)); d < want-2 || d > want+2 {
				t.Errorf("z-buffer = %#x, want about %#x", d, want)
			}
			if d := depthAt(zb, 8*8-1); d != 0xffffff {
				t.Errorf("z-buffer outside target touched: %#x", d)
			}
		})
	}
}

type gpuResource struct{}

func (gpuResource) Destroy() {}

func TestRenderOccluderRejectsForeignTarget(t *testing.T) {
	r := NewSoftwareRenderer()
	err := r.RenderOccluder(&pool.Texture{Resource: gpuResource{}}, nil, OccluderPass{})
	if !errors.Is(err, ErrNotImage) {
		t.Errorf("err = %v, want ErrNotImage", err)
	}
	if r.Occluders != 0 {
		t.Error("failed pass counted")
	}
}

func TestGenerateBlobTexture(t *testing.T) {
	const dim = BlobTextureDim
	pix := GenerateBlobTexture(dim, BlobMaxAlpha)
	if len(pix) != dim*dim*4 {
		t.Fatalf("len = %d", len(pix))
	}
	alpha := func(x, y int) byte { return pix[(y*dim+x)*4+3] }

	if a := alpha(dim/2, dim/2); a != BlobMaxAlpha {
		t.Errorf("center alpha = %d, want %d", a, BlobMaxAlpha)
	}
	for _, c := range [][2]int{{0, 0}, {dim - 1, 0}, {0, dim - 1}, {dim - 1, dim - 1}, {0, dim / 2}} {
		if a := alpha(c[0], c[1]); a != 0 {
			t.Errorf("alpha(%d, %d) = %d, want transparent", c[0], c[1], a)
		}
	}
	for x := dim / 2; x < dim-1; x++ {
		if alpha(x+1, dim/2) > alpha(x, dim/2) {
			t.Fatalf("alpha rises at x=%d", x)
		}
	}
	for i := 0; i < len(pix); i += 4 {
		if pix[i] != 0 || pix[i+1] != 0 || pix[i+2] != 0 {
			t.Fatalf("pixel %d not black", i/4)
		}
	}
}

func TestBlobProjection(t *testing.T) {
	te := newTestEnv(t)
	b := NewBlob(te.Env, &cube{pos: math.Vec3{Z: 1}}, te.sun, testSettings())

	if !b.ShouldRender(5) {
		t.Fatal("ShouldRender = false")
	}
	want := math.Sqrt(3) * 0.5 * GenericRadiusSkew
	if math.Abs(b.Radius()-want) > 1e-5 {
		t.Errorf("radius = %v, want %v", b.Radius(), want)
	}
	for _, v := range b.Partition().Verts {
		if math.Abs(v.Z) > 1e-4 {
			t.Errorf("vertex %v off the ground", v)
		}
	}
	for i, c := range b.TexCoords() {
		if c < -1e-3 || c > 1+1e-3 {
			t.Errorf("texcoord %d = %v", i, c)
		}
	}

	b.Render(5)
	if b.LastRenderTime() != te.now || te.renderer.Blobs != 1 {
		t.Errorf("render: time=%d blobs=%d", b.LastRenderTime(), te.renderer.Blobs)
	}

	te.Receivers = nil
	if b.ShouldRender(5) {
		t.Error("blob without receivers should not render")
	}
	if b.ShouldRender(51) {
		t.Error("blob beyond max visible distance should not render")
	}
}
