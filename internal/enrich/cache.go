package enrich

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/loadmap-guide/loadmap-cli/internal/model"
)

// Cache stores successful nearby-place lookups. Failures are never cached.
type Cache interface {
	Get(ctx context.Context, key string) ([]model.RecommendedPlace, bool)
	Put(ctx context.Context, key string, places []model.RecommendedPlace)
}

// cacheKey rounds to 4 decimals (about 11 m), well inside any search radius.
func cacheKey(lat, lng float64, radius int) string {
	return fmt.Sprintf("nearby:%.4f:%.4f:%d", lat, lng, radius)
}

// MemoryCache is a concurrent-safe LRU cache with TTL expiration.
type MemoryCache struct {
	mu         sync.RWMutex
	entries    map[string]*memoryCacheEntry
	order      []string // LRU order: front=oldest, back=newest
	maxEntries int
	ttl        time.Duration
	hits       atomic.Int64
	misses     atomic.Int64
}

type memoryCacheEntry struct {
	places    []model.RecommendedPlace
	createdAt time.Time
}

// CacheStats contains cache performance statistics.
type CacheStats struct {
	Entries    int     `json:"entries"`
	MaxEntries int     `json:"max_entries"`
	Hits       int64   `json:"hits"`
	Misses     int64   `json:"misses"`
	HitRate    float64 `json:"hit_rate"`
}

// NewMemoryCache creates a MemoryCache with the given capacity and TTL.
func NewMemoryCache(maxEntries int, ttl time.Duration) *MemoryCache {
	if maxEntries <= 0 {
		maxEntries = 256
	}
	return &MemoryCache{
		entries:    make(map[string]*memoryCacheEntry),
		maxEntries: maxEntries,
		ttl:        ttl,
	}
}

// Get implements Cache. Returns false on miss or expiration.
func (c *MemoryCache) Get(_ context.Context, key string) ([]model.RecommendedPlace, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.entries[key]
	if !ok {
		c.misses.Add(1)
		return nil, false
	}

	if c.ttl > 0 && time.Since(entry.createdAt) > c.ttl {
		delete(c.entries, key)
		c.removeFromOrder(key)
		c.misses.Add(1)
		return nil, false
	}

	c.removeFromOrder(key)
	c.order = append(c.order, key)
	c.hits.Add(1)
	return clonePlaces(entry.places), true
}

// Put implements Cache, evicting the least recently used entry at capacity.
func (c *MemoryCache) Put(_ context.Context, key string, places []model.RecommendedPlace) {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry := &memoryCacheEntry{places: clonePlaces(places), createdAt: time.Now()}
	if _, ok := c.entries[key]; ok {
		c.entries[key] = entry
		c.removeFromOrder(key)
		c.order = append(c.order, key)
		return
	}

	for len(c.entries) >= c.maxEntries && len(c.order) > 0 {
		oldest := c.order[0]
		c.order = c.order[1:]
		delete(c.entries, oldest)
	}

	c.entries[key] = entry
	c.order = append(c.order, key)
}

// Stats returns cache performance statistics.
func (c *MemoryCache) Stats() CacheStats {
	c.mu.RLock()
	entries := len(c.entries)
	maxEntries := c.maxEntries
	c.mu.RUnlock()

	hits := c.hits.Load()
	misses := c.misses.Load()

	var hitRate float64
	if total := hits + misses; total > 0 {
		hitRate = float64(hits) / float64(total)
	}

	return CacheStats{
		Entries:    entries,
		MaxEntries: maxEntries,
		Hits:       hits,
		Misses:     misses,
		HitRate:    hitRate,
	}
}

func (c *MemoryCache) removeFromOrder(key string) {
	for i, k := range c.order {
		if k == key {
			c.order = append(c.order[:i], c.order[i+1:]...)
			return
		}
	}
}

func clonePlaces(in []model.RecommendedPlace) []model.RecommendedPlace {
	out := make([]model.RecommendedPlace, len(in))
	for i, p := range in {
		p.Tags = append([]string(nil), p.Tags...)
		out[i] = p
	}
	return out
}
