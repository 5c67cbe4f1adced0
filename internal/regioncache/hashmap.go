package regioncache

import (
	"github.com/rs/zerolog"

	"github.com/geoindex/regioncache/internal/featuredecoder"
	"github.com/geoindex/regioncache/internal/geojson"
)

// HashMapIndex is the index type HashMapRegionCache builds and serves: a
// plain attribute-value-to-feature-id lookup, for datasets queried by name
// or code rather than by geometry.
type HashMapIndex = map[string]int

// HashMapRegionCache caches key-to-id maps built from one attribute of a
// dataset, for exact-match lookups that don't need spatial indexing.
type HashMapRegionCache struct {
	*RegionCache[HashMapIndex]
	keyAttr string
}

// NewHashMapRegionCache constructs a HashMapRegionCache that keys its
// attribute maps off keyAttr (e.g. "name" or "code").
func NewHashMapRegionCache(cfg Config, keyAttr string, log *zerolog.Logger) *HashMapRegionCache {
	hooks := Hooks[HashMapIndex]{
		BuildFromFeatures: func(features []geojson.Feature, pacer featuredecoder.Pacer) (HashMapIndex, error) {
			return featuredecoder.ToKeyMap(features, keyAttr, pacer, log)
		},
		SizeOf: func(m HashMapIndex) int {
			return len(m)
		},
	}
	return &HashMapRegionCache{
		RegionCache: New("hashmap", cfg, hooks, log),
		keyAttr:     keyAttr,
	}
}
