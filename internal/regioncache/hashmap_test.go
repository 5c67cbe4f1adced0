package regioncache

import (
	"context"
	"encoding/json"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/geoindex/regioncache/internal/geojson"
)

func namedFeature(id, name string) geojson.Feature {
	geom, _ := json.Marshal(map[string]any{"type": "Point", "coordinates": []float64{0, 0}})
	props := map[string]any{"_feature_id": id}
	if name != "" {
		props["name"] = name
	}
	return geojson.Feature{Type: "Feature", Geometry: geom, Properties: props}
}

func TestHashMapRegionCache_BuildsKeyMapFromFeatures(t *testing.T) {
	hc := NewHashMapRegionCache(Config{MaxEntries: 10}, "name", nil)

	var features []geojson.Feature
	for i := 1; i <= 9; i++ {
		features = append(features, namedFeature(strconv.Itoa(i), "name "+strconv.Itoa(i)))
	}
	// Two further features missing the name attribute must leave the map unchanged.
	features = append(features, namedFeature("10", ""), namedFeature("11", ""))

	idx, err := hc.GetFromFeatures(context.Background(), NewKey("places", "name", nil), features)
	require.NoError(t, err)

	want := map[string]int{}
	for i := 1; i <= 9; i++ {
		want["name "+strconv.Itoa(i)] = i
	}
	assert.Equal(t, want, idx)
}
