package pool

import "errors"

// ErrBadSize is returned for non-positive texture dimensions.
var ErrBadSize = errors.New("invalid texture size")

// Image is a CPU render target.
type Image struct {
	Width, Height int32
	Format        Format
	Pix           []byte
	destroyed     bool
}

// Destroy drops the pixel storage.
func (im *Image) Destroy() {
	im.Pix = nil
	im.destroyed = true
}

// Destroyed reports whether Destroy was called.
func (im *Image) Destroyed() bool { return im.destroyed }

// Stride returns the byte length of one row.
func (im *Image) Stride() int { return int(im.Width) * im.Format.BytesPerPixel() }

// Clear zeroes every pixel.
func (im *Image) Clear() { clear(im.Pix) }

// SoftwareAllocator allocates Images. It is used by the software occluder
// path and by tests.
type SoftwareAllocator struct {
	Allocated int
}

// Allocate implements Allocator.
func (a *SoftwareAllocator) Allocate(key Key) (Resource, error) {
	if key.Width <= 0 || key.Height <= 0 {
		return nil, ErrBadSize
	}
	a.Allocated++
	return &Image{
		Width:  key.Width,
		Height: key.Height,
		Format: key.Format,
		Pix:    make([]byte, key.Bytes()),
	}, nil
}
