package geocode

import (
	"context"

	"github.com/ppiankov/geotag/internal/cache"
	"github.com/ppiankov/geotag/internal/model"
)

// Stats counts cache behaviour for one run
type Stats struct {
	Hits   int
	Misses int
	Calls  int // Upstream lookups
}

// CachedGeocoder memoizes positive results of an upstream Geocoder.
// Negative results are never cached, so a place that failed is looked up
// again on its next occurrence. It is owned by a single run and is not safe
// for concurrent use.
type CachedGeocoder struct {
	upstream Geocoder
	cache    cache.Cache
	stats    Stats
}

// NewCachedGeocoder wraps upstream with c
func NewCachedGeocoder(upstream Geocoder, c cache.Cache) *CachedGeocoder {
	return &CachedGeocoder{upstream: upstream, cache: c}
}

// Geocode implements Geocoder
func (g *CachedGeocoder) Geocode(ctx context.Context, place string) (model.GeoResult, error) {
	if result, ok := g.cache.Get(place); ok {
		g.stats.Hits++
		return result, nil
	}
	g.stats.Misses++

	if err := ctx.Err(); err != nil {
		return model.GeoResult{}, err
	}

	g.stats.Calls++
	result, err := g.upstream.Geocode(ctx, place)
	if err != nil {
		return model.GeoResult{}, err
	}

	if result.Found() {
		g.cache.Set(place, result)
	}
	return result, nil
}

// Stats returns the counters so far
func (g *CachedGeocoder) Stats() Stats {
	return g.stats
}

// Disabled is a Geocoder that never finds anything
type Disabled struct{}

// Geocode implements Geocoder
func (Disabled) Geocode(ctx context.Context, _ string) (model.GeoResult, error) {
	return model.GeoResult{}, ctx.Err()
}
