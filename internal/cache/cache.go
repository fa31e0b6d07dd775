// Package cache memoizes geocode results for the lifetime of one run.
package cache

import "github.com/ppiankov/geotag/internal/model"

// Cache defines the interface for geocode result caching.
// Keys are exact place-name strings; no normalization is applied.
type Cache interface {
	Get(place string) (model.GeoResult, bool)
	Set(place string, result model.GeoResult)
	Len() int
}
