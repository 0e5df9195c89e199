package sampler

import (
	"sync"

	"github.com/louisbranch/skirmish/internal/combat/domain"
)

type cacheKey struct {
	hash string
	seed int64
}

// CacheStats reports cache activity.
type CacheStats struct {
	Len    int
	Hits   int
	Misses int
	Clears int
}

// Cache memoizes lightweight runs by scenario hash and seed. When full it
// is cleared wholesale rather than evicting entry by entry. A nil Cache
// stores nothing.
type Cache struct {
	mu       sync.Mutex
	capacity int
	entries  map[cacheKey]domain.LightweightRun
	stats    CacheStats
}

// NewCache returns a cache holding at most capacity runs. A non-positive
// capacity means unbounded.
func NewCache(capacity int) *Cache {
	return &Cache{capacity: capacity, entries: make(map[cacheKey]domain.LightweightRun)}
}

// Get returns a copy of the cached run.
func (c *Cache) Get(hash string, seed int64) (domain.LightweightRun, bool) {
	if c == nil {
		return domain.LightweightRun{}, false
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	run, ok := c.entries[cacheKey{hash, seed}]
	if !ok {
		c.stats.Misses++
		return domain.LightweightRun{}, false
	}
	c.stats.Hits++
	return run.Clone(), true
}

// Put stores a copy of run.
func (c *Cache) Put(hash string, run domain.LightweightRun) {
	if c == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	key := cacheKey{hash, run.Seed}
	if _, ok := c.entries[key]; !ok && c.capacity > 0 && len(c.entries) >= c.capacity {
		clear(c.entries)
		c.stats.Clears++
	}
	c.entries[key] = run.Clone()
}

// Stats returns a snapshot of the cache counters.
func (c *Cache) Stats() CacheStats {
	if c == nil {
		return CacheStats{}
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	stats := c.stats
	stats.Len = len(c.entries)
	return stats
}
