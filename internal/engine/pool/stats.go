package pool

import (
	"cmp"
	"slices"

	"go.uber.org/zap"
)

// Stats are running pool counters.
type Stats struct {
	Created  int
	Acquired int
	Released int
	Evicted  int
}

// KeyStats describes one size/format bucket.
type KeyStats struct {
	Key         Key
	Alive       int
	Cached      int
	AllocBytes  int
	CachedBytes int
}

// Stats returns the running counters.
func (p *Pool) Stats() Stats { return p.stats }

// KeyStats returns per-bucket usage ordered by size then format.
func (p *Pool) KeyStats() []KeyStats {
	out := make([]KeyStats, 0, len(p.entries))
	for _, e := range p.entries {
		b := e.key.Bytes()
		out = append(out, KeyStats{
			Key:         e.key,
			Alive:       e.created,
			Cached:      len(e.free),
			AllocBytes:  b * e.created,
			CachedBytes: b * len(e.free),
		})
	}
	slices.SortFunc(out, func(a, b KeyStats) int {
		return cmp.Or(
			cmp.Compare(a.Key.Width, b.Key.Width),
			cmp.Compare(a.Key.Height, b.Key.Height),
			cmp.Compare(a.Key.Format, b.Key.Format),
		)
	})
	return out
}

// LogStats writes per-bucket and total usage at info level.
func (p *Pool) LogStats() {
	var alive, cached, allocBytes, cachedBytes int
	for _, ks := range p.KeyStats() {
		p.log.Info("pool bucket",
			zap.Int32("width", ks.Key.Width),
			zap.Int32("height", ks.Key.Height),
			zap.Stringer("format", ks.Key.Format),
			zap.Int("alloc", ks.Alive),
			zap.Int("cached", ks.Cached),
			zap.Int("alloc_bytes", ks.AllocBytes),
			zap.Int("cached_bytes", ks.CachedBytes))
		alive += ks.Alive
		cached += ks.Cached
		allocBytes += ks.AllocBytes
		cachedBytes += ks.CachedBytes
	}
	p.log.Info("pool total",
		zap.Int("alloc", alive),
		zap.Int("cached", cached),
		zap.Int("alloc_bytes", allocBytes),
		zap.Int("cached_bytes", cachedBytes),
		zap.Int("created", p.stats.Created),
		zap.Int("acquired", p.stats.Acquired),
		zap.Int("released", p.stats.Released),
		zap.Int("evicted", p.stats.Evicted))
}
