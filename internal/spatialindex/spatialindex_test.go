package spatialindex

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/geoindex/regioncache/internal/core/model"
)

func square(minX, minY, maxX, maxY float64) model.Geometry {
	ring := model.Ring{
		{X: minX, Y: minY},
		{X: maxX, Y: minY},
		{X: maxX, Y: maxY},
		{X: minX, Y: maxY},
		{X: minX, Y: minY},
	}
	poly := model.Polygon{Rings: []model.Ring{ring}}
	return model.Geometry{Polygon: &poly}
}

func point(x, y float64) model.Geometry {
	p := model.Point{X: x, Y: y}
	return model.Geometry{Point: &p}
}

func TestBuild_Empty(t *testing.T) {
	idx, err := Build[int](nil)
	require.NoError(t, err)
	assert.Empty(t, idx.WhatContains(point(0, 0)))
	_, ok := idx.FirstContains(point(0, 0))
	assert.False(t, ok)
	assert.Equal(t, 0, idx.NumCoordinates())
	assert.Equal(t, 0, idx.Len())
}

func TestBuild_RejectsZeroGeometry(t *testing.T) {
	_, err := Build([]Entry[int]{{Geom: model.Geometry{}, Value: 1}})
	assert.Error(t, err)
}

// TestWhatContains_MatchesGroundTruth builds an index of several disjoint and
// nested squares and checks WhatContains against a brute-force scan for a
// handful of query points, per spec.md §8's ground-truth invariant.
func TestWhatContains_MatchesGroundTruth(t *testing.T) {
	entries := []Entry[int]{
		{Geom: square(0, 0, 10, 10), Value: 1},   // wardA
		{Geom: square(20, 20, 30, 30), Value: 2}, // wardB, disjoint from A
		{Geom: square(0, 0, 100, 100), Value: 3}, // citywide, contains both A and B
	}
	idx, err := Build(entries)
	require.NoError(t, err)

	queries := []model.Geometry{
		point(5, 5),     // inside wardA and citywide
		point(25, 25),   // inside wardB and citywide
		point(50, 50),   // inside citywide only
		point(-5, -5),   // outside everything
		point(10, 10),   // on wardA's boundary: contains per OGC boundary rule
		square(1, 1, 2, 2),
	}

	for _, q := range queries {
		got := idx.WhatContains(q)
		gotValues := map[int]bool{}
		for _, e := range got {
			gotValues[e.Value] = true
		}

		wantValues := map[int]bool{}
		for _, e := range entries {
			if Contains(e.Geom, q) {
				wantValues[e.Value] = true
			}
		}

		assert.Equal(t, wantValues, gotValues, "mismatch for query %+v", q)

		_, hasFirst := idx.FirstContains(q)
		assert.Equal(t, len(wantValues) > 0, hasFirst, "FirstContains disagreement for %+v", q)
	}
}

func TestNumCoordinates_SumsAcrossEntries(t *testing.T) {
	entries := []Entry[int]{
		{Geom: point(0, 0), Value: 1},       // 1 coordinate
		{Geom: square(0, 0, 1, 1), Value: 2}, // 5-point closed ring
	}
	idx, err := Build(entries)
	require.NoError(t, err)
	assert.Equal(t, 1+5, idx.NumCoordinates())
	assert.Equal(t, 2, idx.Len())
}

func TestContains_MultiPolygonContainer(t *testing.T) {
	mp := model.MultiPolygon{Polygons: []model.Polygon{
		*square(0, 0, 10, 10).Polygon,
		*square(100, 100, 110, 110).Polygon,
	}}
	container := model.Geometry{MultiPolygon: &mp}

	assert.True(t, Contains(container, point(5, 5)))
	assert.True(t, Contains(container, point(105, 105)))
	assert.False(t, Contains(container, point(50, 50)))
}

func TestContains_NilQueryGeometryIsUnmatched(t *testing.T) {
	idx, err := Build([]Entry[int]{{Geom: square(0, 0, 10, 10), Value: 1}})
	require.NoError(t, err)
	assert.Empty(t, idx.WhatContains(model.Geometry{}))
}
