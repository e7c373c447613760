package geocode

import (
	"context"
	"sync"

	"base-distance/internal/models"
	"github.com/redis/go-redis/v9"
)

// Cache stores resolved coordinates keyed by the exact search string.
// Implementations never expire entries on their own.
type Cache interface {
	Get(ctx context.Context, term string) (models.Coordinate, bool)
	Set(ctx context.Context, term string, c models.Coordinate)
}

// MemoryCache lives for the lifetime of the process. It has no eviction and
// is not invalidated when input files are reloaded; call Reset to clear it.
type MemoryCache struct {
	mu      sync.RWMutex
	entries map[string]models.Coordinate
}

func NewMemoryCache() *MemoryCache {
	return &MemoryCache{entries: make(map[string]models.Coordinate)}
}

func (c *MemoryCache) Get(_ context.Context, term string) (models.Coordinate, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	v, ok := c.entries[term]
	return v, ok
}

func (c *MemoryCache) Set(_ context.Context, term string, v models.Coordinate) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[term] = v
}

func (c *MemoryCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

func (c *MemoryCache) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[string]models.Coordinate)
}

var _ Cache = (*MemoryCache)(nil)

// NewCache returns a Redis-backed cache when rdb is set, otherwise a MemoryCache.
func NewCache(rdb *redis.Client) Cache {
	if rdb == nil {
		return NewMemoryCache()
	}
	return NewRedisCache(rdb)
}
