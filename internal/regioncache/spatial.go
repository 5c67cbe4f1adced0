package regioncache

import (
	"github.com/rs/zerolog"

	"github.com/geoindex/regioncache/internal/featuredecoder"
	"github.com/geoindex/regioncache/internal/geojson"
	"github.com/geoindex/regioncache/internal/spatialindex"
)

// SpatialIndex is the index type SpatialRegionCache builds and serves: an
// R-tree over feature geometries, keyed by the feature id attribute.
type SpatialIndex = spatialindex.Index[int]

// SpatialRegionCache caches R-trees built from a dataset's geometry column,
// answering "which feature contains this point/polygon" queries.
type SpatialRegionCache struct {
	*RegionCache[*SpatialIndex]
}

// NewSpatialRegionCache constructs a SpatialRegionCache, wiring the
// RegionCache's generic hooks to spatialindex.Build and featuredecoder's
// geometry decoding.
func NewSpatialRegionCache(cfg Config, log *zerolog.Logger) *SpatialRegionCache {
	hooks := Hooks[*SpatialIndex]{
		BuildFromFeatures: func(features []geojson.Feature, pacer featuredecoder.Pacer) (*SpatialIndex, error) {
			entries, err := featuredecoder.ToSpatialEntries(features, pacer, log)
			if err != nil {
				return nil, err
			}
			return spatialindex.Build(entries)
		},
		SizeOf: func(idx *SpatialIndex) int {
			return idx.NumCoordinates()
		},
	}
	return &SpatialRegionCache{RegionCache: New("spatial", cfg, hooks, log)}
}
