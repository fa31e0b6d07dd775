package cache

import (
	gocache "github.com/patrickmn/go-cache"

	"github.com/ppiankov/geotag/internal/model"
)

// MemoryCache implements in-memory caching with no expiration or eviction
type MemoryCache struct {
	cache *gocache.Cache
}

// NewMemoryCache creates a new memory cache. Entries live as long as the cache,
// so one cache should be created per run.
func NewMemoryCache() *MemoryCache {
	return &MemoryCache{
		// A zero cleanup interval disables the janitor goroutine
		cache: gocache.New(gocache.NoExpiration, 0),
	}
}

// Get retrieves a result from the cache
func (c *MemoryCache) Get(place string) (model.GeoResult, bool) {
	if val, found := c.cache.Get(place); found {
		return val.(model.GeoResult), true
	}
	return model.GeoResult{}, false
}

// Set stores a result
func (c *MemoryCache) Set(place string, result model.GeoResult) {
	c.cache.Set(place, result, gocache.NoExpiration)
}

// Len returns the number of cached places
func (c *MemoryCache) Len() int {
	return c.cache.ItemCount()
}
