package pool

import "fmt"

// ZBuffer is one depth target shared by every shadow pass. It is
// reallocated whenever a pass asks for a different size.
type ZBuffer struct {
	alloc Allocator
	res   Resource
	size  int32
}

// NewZBuffer returns an empty shared depth target.
func NewZBuffer(alloc Allocator) *ZBuffer {
	return &ZBuffer{alloc: alloc}
}

// Prep makes sure the buffer is size x size, reallocating when it differs.
func (z *ZBuffer) Prep(size int32) error {
	if z.res != nil && z.size == size {
		return nil
	}
	z.Clear()
	res, err := z.alloc.Allocate(Key{Width: size, Height: size, Format: FormatDepth24})
	if err != nil {
		return fmt.Errorf("shared z-buffer %d: %w", size, err)
	}
	z.res = res
	z.size = size
	return nil
}

// Get returns the current depth target, or nil before Prep.
func (z *ZBuffer) Get() Resource { return z.res }

// Size returns the edge length of the current target.
func (z *ZBuffer) Size() int32 { return z.size }

// Clear destroys the depth target.
func (z *ZBuffer) Clear() {
	if z.res != nil {
		z.res.Destroy()
		z.res = nil
	}
	z.size = 0
}
