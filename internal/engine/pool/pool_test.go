package pool

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct{ ms uint32 }

func (c *fakeClock) now() uint32 { return c.ms }

func newTestPool(t *testing.T) (*Pool, *SoftwareAllocator, *fakeClock) {
	t.Helper()
	alloc := &SoftwareAllocator{}
	clock := &fakeClock{ms: 10_000}
	p := New(alloc, Options{})
	p.SetClock(clock.now)
	return p, alloc, clock
}

var key64 = Key{Width: 64, Height: 64, Format: FormatRGBA8}

func TestAcquireReusesReleased(t *testing.T) {
	p, alloc, _ := newTestPool(t)

	a, err := p.Acquire(key64)
	require.NoError(t, err)
	require.NoError(t, p.Release(a))

	b, err := p.Acquire(key64)
	require.NoError(t, err)
	assert.Same(t, a, b)
	assert.Equal(t, 1, alloc.Allocated)

	// Different format never shares a bucket.
	c, err := p.Acquire(Key{Width: 64, Height: 64, Format: FormatR8})
	require.NoError(t, err)
	assert.NotSame(t, b, c)
	assert.Equal(t, 2, alloc.Allocated)
}

func TestUniqueOwnership(t *testing.T) {
	p, _, _ := newTestPool(t)

	a, err := p.Acquire(key64)
	require.NoError(t, err)
	b, err := p.Acquire(key64)
	require.NoError(t, err)
	assert.NotSame(t, a, b, "a handed-out texture is never handed out twice")
	assert.Equal(t, 2, p.HandedOut())

	require.NoError(t, p.Release(a))
	assert.ErrorIs(t, p.Release(a), ErrNotOwned, "double release")

	other := New(&SoftwareAllocator{}, Options{})
	assert.ErrorIs(t, other.Release(b), ErrNotOwned)
	assert.NoError(t, p.Release(nil))
}

func TestCleanupEvictsOnlyIdle(t *testing.T) {
	p, _, clock := newTestPool(t)

	a, _ := p.Acquire(key64)
	require.NoError(t, p.Release(a))

	clock.ms += 29_999
	p.CleanupUnused()
	assert.Equal(t, 1, p.Cached(), "idle below timeout is kept")
	assert.False(t, a.Resource.(*Image).Destroyed())

	// Cleanup is gated to once per interval.
	clock.ms += 1
	p.CleanupUnused()
	assert.Equal(t, 1, p.Cached())

	clock.ms += 2_000
	p.CleanupUnused()
	assert.Equal(t, 0, p.Cached())
	assert.True(t, a.Resource.(*Image).Destroyed())
	assert.Equal(t, 1, p.Stats().Evicted)
}

func TestCleanupNeverTouchesHandedOut(t *testing.T) {
	p, _, clock := newTestPool(t)
	a, _ := p.Acquire(key64)

	clock.ms += 120_000
	p.CleanupUnused()
	assert.False(t, a.Resource.(*Image).Destroyed())
	require.NoError(t, p.Release(a))
}

func TestClockWrapResets(t *testing.T) {
	p, _, clock := newTestPool(t)
	clock.ms = 1<<32 - 1_000

	a, _ := p.Acquire(key64)
	require.NoError(t, p.Release(a))

	// Wrapped: the first scan after the wrap evicts nothing.
	clock.ms = 5_000
	p.CleanupUnused()
	clock.ms = 8_000
	p.CleanupUnused()
	assert.Equal(t, 1, p.Cached())
}

func TestTimeElapsed(t *testing.T) {
	tests := []struct {
		name     string
		now      uint32
		last     uint32
		want     bool
		wantLast uint32
	}{
		{"before period", 1500, 0, false, 0},
		{"exact period", 2000, 0, true, 2000},
		{"after period", 9000, 2000, true, 9000},
		{"clock wrapped", 100, 5000, false, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			last := tt.last
			assert.Equal(t, tt.want, TimeElapsed(tt.now, &last, 2000))
			assert.Equal(t, tt.wantLast, last)
		})
	}
}

func TestClear(t *testing.T) {
	p, _, _ := newTestPool(t)
	a, _ := p.Acquire(key64)
	b, _ := p.Acquire(key64)
	require.NoError(t, p.Release(a))

	err := p.Clear()
	assert.True(t, errors.Is(err, ErrStillShared))
	assert.True(t, a.Resource.(*Image).Destroyed())
	assert.Zero(t, p.Cached())

	// b was out during Clear and can still come back.
	require.NoError(t, p.Release(b))
	assert.Equal(t, 1, p.Cached())
	assert.NoError(t, p.Clear())
}

func TestAllocatorError(t *testing.T) {
	p, _, _ := newTestPool(t)
	_, err := p.Acquire(Key{Width: 0, Height: 64})
	assert.ErrorIs(t, err, ErrBadSize)
	assert.Zero(t, p.HandedOut())
	assert.Zero(t, p.Stats().Acquired)
}

func TestKeyStats(t *testing.T) {
	p, _, _ := newTestPool(t)
	a, _ := p.Acquire(Key{Width: 128, Height: 128, Format: FormatRGBA8})
	_, _ = p.Acquire(key64)
	require.NoError(t, p.Release(a))

	ks := p.KeyStats()
	require.Len(t, ks, 2)
	assert.Equal(t, int32(64), ks[0].Key.Width)
	assert.Equal(t, 128*128*4, ks[1].CachedBytes)
	assert.Equal(t, 1, ks[1].Alive)

	s := p.Stats()
	assert.Equal(t, Stats{Created: 2, Acquired: 2, Released: 1}, s)
	p.LogStats()
}

func TestZBuffer(t *testing.T) {
	alloc := &SoftwareAllocator{}
	z := NewZBuffer(alloc)
	assert.Nil(t, z.Get())

	require.NoError(t, z.Prep(128))
	first := z.Get()
	require.NoError(t, z.Prep(128))
	assert.Same(t, first, z.Get())
	assert.Equal(t, 1, alloc.Allocated)

	require.NoError(t, z.Prep(256))
	assert.True(t, first.(*Image).Destroyed())
	assert.Equal(t, int32(256), z.Size())
	assert.Equal(t, FormatDepth24, z.Get().(*Image).Format)

	z.Clear()
	assert.Nil(t, z.Get())
}

func TestOptionsDefaults(t *testing.T) {
	p := New(&SoftwareAllocator{}, Options{})
	assert.Equal(t, DefaultCleanupInterval, p.opts.CleanupInterval)
	assert.Equal(t, 30*time.Second, p.opts.IdleTimeout)
}
