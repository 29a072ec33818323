// Package pool caches render targets by size and format so shadow passes can
// reuse them instead of reallocating every frame.
//
// A texture handed out by Acquire is owned by the caller until Release puts
// it back. Cached textures idle longer than the idle timeout are destroyed by
// CleanupUnused, which does its scan at most once per cleanup interval.
package pool

import (
	"encoding/binary"
	"errors"
	"fmt"
	"hash/crc32"
	"slices"
	"time"

	"go.uber.org/zap"

	"github.com/Faultbox/midgard-lighting/internal/logger"
)

// Defaults for Options.
const (
	DefaultCleanupInterval = 2 * time.Second
	DefaultIdleTimeout     = 30 * time.Second
)

var (
	// ErrNotOwned is returned when releasing a texture the pool did not hand out.
	ErrNotOwned = errors.New("texture not owned by caller")
	// ErrStillShared is returned by Clear when textures are still handed out.
	ErrStillShared = errors.New("textures still handed out")
)

// Format is a render target pixel format.
type Format uint32

const (
	FormatRGBA8 Format = iota
	FormatR8
	FormatDepth24
)

// BytesPerPixel returns the storage size of one pixel.
func (f Format) BytesPerPixel() int {
	switch f {
	case FormatR8:
		return 1
	case FormatDepth24:
		return 3
	default:
		return 4
	}
}

func (f Format) String() string {
	switch f {
	case FormatRGBA8:
		return "rgba8"
	case FormatR8:
		return "r8"
	case FormatDepth24:
		return "depth24"
	}
	return fmt.Sprintf("format(%d)", uint32(f))
}

// Key identifies interchangeable textures.
type Key struct {
	Width, Height int32
	Format        Format
}

// Hash returns the cache id for k.
func (k Key) Hash() uint32 {
	var buf [12]byte
	binary.LittleEndian.PutUint32(buf[0:], uint32(k.Width))
	binary.LittleEndian.PutUint32(buf[4:], uint32(k.Height))
	binary.LittleEndian.PutUint32(buf[8:], uint32(k.Format))
	return crc32.ChecksumIEEE(buf[:])
}

// Bytes returns the memory footprint of one texture with this key.
func (k Key) Bytes() int {
	return int(k.Width) * int(k.Height) * k.Format.BytesPerPixel()
}

// Resource is a GPU or software render target.
type Resource interface {
	Destroy()
}

// Allocator creates resources for a key.
type Allocator interface {
	Allocate(key Key) (Resource, error)
}

// Texture is a pooled resource.
type Texture struct {
	Resource
	key      Key
	cacheID  uint32
	cachedAt uint32
	out      bool
	pool     *Pool
}

// Key returns the size and format the texture was created with.
func (t *Texture) Key() Key { return t.key }

type entry struct {
	key     Key
	free    []*Texture
	created int
}

// Options configures a Pool. Zero values select the defaults.
type Options struct {
	CleanupInterval time.Duration
	IdleTimeout     time.Duration
	ShowStats       bool
}

// Pool is a render target cache. It is not safe for concurrent use.
type Pool struct {
	alloc   Allocator
	entries map[uint32]*entry
	opts    Options
	clock   func() uint32

	lastCleanup uint32
	handedOut   int
	stats       Stats

	log *zap.Logger
}

// New creates a pool backed by alloc.
func New(alloc Allocator, opts Options) *Pool {
	if opts.CleanupInterval <= 0 {
		opts.CleanupInterval = DefaultCleanupInterval
	}
	if opts.IdleTimeout <= 0 {
		opts.IdleTimeout = DefaultIdleTimeout
	}
	return &Pool{
		alloc:   alloc,
		entries: make(map[uint32]*entry),
		opts:    opts,
		clock:   Millis,
		log:     logger.Named("pool"),
	}
}

// SetClock replaces the millisecond clock. The clock may wrap.
func (p *Pool) SetClock(fn func() uint32) { p.clock = fn }

var start = time.Now()

// Millis is the default clock: milliseconds since process start, wrapping
// like a 32-bit tick counter.
func Millis() uint32 {
	return uint32(time.Since(start).Milliseconds())
}

// TimeElapsed reports whether period ms have passed since *last, and if so
// moves *last to now. A clock that went backwards resets *last to zero and
// reports false.
func TimeElapsed(now uint32, last *uint32, period uint32) bool {
	if now < *last {
		*last = 0
		return false
	}
	if now-*last < period {
		return false
	}
	*last = now
	return true
}

// Acquire returns a texture for key, reusing a cached one when possible.
func (p *Pool) Acquire(key Key) (*Texture, error) {
	id := key.Hash()
	e := p.entries[id]
	if e == nil {
		e = &entry{key: key}
		p.entries[id] = e
	}

	p.stats.Acquired++
	if n := len(e.free); n > 0 {
		t := e.free[n-1]
		e.free[n-1] = nil
		e.free = e.free[:n-1]
		t.out = true
		p.handedOut++
		return t, nil
	}

	res, err := p.alloc.Allocate(key)
	if err != nil {
		p.stats.Acquired--
		return nil, fmt.Errorf("allocating %dx%d %s: %w", key.Width, key.Height, key.Format, err)
	}
	e.created++
	p.stats.Created++
	p.handedOut++
	return &Texture{Resource: res, key: key, cacheID: id, out: true, pool: p}, nil
}

// Release returns t to the cache. Releasing nil is a no-op.
func (p *Pool) Release(t *Texture) error {
	if t == nil {
		return nil
	}
	if t.pool != p || !t.out {
		return ErrNotOwned
	}
	e := p.entries[t.cacheID]
	if e == nil {
		// The pool was cleared while t was out.
		e = &entry{key: t.key, created: 1}
		p.entries[t.cacheID] = e
	}
	t.out = false
	t.cachedAt = p.clock()
	e.free = append(e.free, t)
	p.handedOut--
	p.stats.Released++
	return nil
}

// CleanupUnused destroys cached textures idle longer than the idle timeout.
// Calls closer together than the cleanup interval do nothing.
func (p *Pool) CleanupUnused() {
	now := p.clock()
	if !TimeElapsed(now, &p.lastCleanup, uint32(p.opts.CleanupInterval.Milliseconds())) {
		return
	}
	timeout := uint32(p.opts.IdleTimeout.Milliseconds())
	for _, e := range p.entries {
		e.free = slices.DeleteFunc(e.free, func(t *Texture) bool {
			if !TimeElapsed(now, &t.cachedAt, timeout) {
				return false
			}
			t.Destroy()
			e.created--
			p.stats.Evicted++
			return true
		})
	}
	if p.opts.ShowStats {
		p.LogStats()
	}
}

// Clear destroys every cached texture. Handed-out textures stay valid and
// may still be released; ErrStillShared reports that some exist.
func (p *Pool) Clear() error {
	for id, e := range p.entries {
		for _, t := range e.free {
			t.Destroy()
		}
		delete(p.entries, id)
	}
	if p.handedOut > 0 {
		return fmt.Errorf("clear with %d outstanding: %w", p.handedOut, ErrStillShared)
	}
	return nil
}

// HandedOut returns the number of textures currently owned by callers.
func (p *Pool) HandedOut() int { return p.handedOut }

// Cached returns the number of textures waiting for reuse.
func (p *Pool) Cached() int {
	n := 0
	for _, e := range p.entries {
		n += len(e.free)
	}
	return n
}
