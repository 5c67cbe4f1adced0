package soda

import (
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/geoindex/regioncache/internal/core/model"
	"github.com/geoindex/regioncache/internal/regioncache"
)

func TestBuildQuery_WithEnvelope(t *testing.T) {
	key := regioncache.NewKey("districts", "the_geom", &model.Envelope{MinX: 11, MinY: 55, MaxX: 12, MaxY: 56})
	raw, err := BuildQuery("https://data.example.gov", "districts", 50000, key)
	require.NoError(t, err)

	u, err := url.Parse(raw)
	require.NoError(t, err)
	assert.Equal(t, "/resource/districts.geojson", u.Path)

	q := u.Query()
	assert.Equal(t, "50000", q.Get("$limit"))
	assert.Contains(t, q.Get("$where"), "intersects(the_geom, 'MULTIPOLYGON(((")
}

func TestBuildQuery_WithoutEnvelope(t *testing.T) {
	key := regioncache.NewKey("districts", "the_geom", nil)
	raw, err := BuildQuery("https://data.example.gov", "districts", 0, key)
	require.NoError(t, err)

	u, err := url.Parse(raw)
	require.NoError(t, err)
	q := u.Query()
	assert.Empty(t, q.Get("$where"))
	assert.Empty(t, q.Get("$limit"))
}
