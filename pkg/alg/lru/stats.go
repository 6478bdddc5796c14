package lru

// Stats is a point-in-time view of cache effectiveness.
type Stats struct {
	Hits         int64
	Misses       int64
	BloomSkipped int64 // Misses answered by the pre-filter alone.
	Entries      int
	Size         int64
}

// HitRate returns hits over total lookups, in [0, 1].
func (s Stats) HitRate() float64 {
	total := s.Hits + s.Misses
	if total == 0 {
		return 0
	}

	return float64(s.Hits) / float64(total)
}

// Stats snapshots the counters.
func (c *Cache[K, V]) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()

	return Stats{
		Hits:         c.hits.Load(),
		Misses:       c.misses.Load(),
		BloomSkipped: c.bloomSkipped.Load(),
		Entries:      len(c.entries),
		Size:         c.curSize,
	}
}
