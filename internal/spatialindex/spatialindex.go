// Package spatialindex implements an immutable, bulk-loaded spatial index
// over (geometry, value) pairs, answering "which indexed geometries contain
// this point or shape" queries with MBR pruning ahead of exact containment.
//
// There is no spatial-index or R-tree library anywhere in the retrieval
// pack's dependency graphs (see DESIGN.md); the bulk-load strategy below is
// grounded on the median-split recursive partitioning used to build the
// KD-tree in WavesMan-ip-api/internal/revgeo/kdtree.go, generalized from a
// 1-value-per-leaf nearest-neighbor tree to a 2-child-per-node tree of
// minimum bounding rectangles that supports range/containment queries.
package spatialindex

import (
	"errors"
	"sort"

	"github.com/geoindex/regioncache/internal/core/model"
)

// Entry pairs a geometry with the value the index should report on a
// containment hit.
type Entry[T any] struct {
	Geom  model.Geometry
	Value T
}

// Index is a bulk-loaded, immutable spatial index. The zero value is not
// usable; construct with Build.
type Index[T any] struct {
	root       *node[T]
	numEntries int
	numCoords  int
}

type node[T any] struct {
	mbr   model.Envelope
	entry *Entry[T]
	left  *node[T]
	right *node[T]
}

// Build constructs an index from a finite sequence of entries. Build with an
// empty sequence is legal and yields an empty index. A zero-value geometry in
// any entry is a build-time error.
func Build[T any](entries []Entry[T]) (*Index[T], error) {
	items := make([]*Entry[T], len(entries))
	for i := range entries {
		if entries[i].Geom.IsZero() {
			return nil, errors.New("spatialindex: entry has a nil geometry")
		}
		items[i] = &entries[i]
	}

	idx := &Index[T]{numEntries: len(items)}
	for _, e := range items {
		idx.numCoords += e.Geom.NumCoordinates()
	}
	idx.root = build(items, 0)
	return idx, nil
}

func build[T any](items []*Entry[T], depth int) *node[T] {
	if len(items) == 0 {
		return nil
	}
	if len(items) == 1 {
		return &node[T]{mbr: items[0].Geom.Envelope(), entry: items[0]}
	}

	axis := depth % 2
	sort.Slice(items, func(i, j int) bool {
		ei := items[i].Geom.Envelope()
		ej := items[j].Geom.Envelope()
		if axis == 0 {
			return ei.MinX+ei.MaxX < ej.MinX+ej.MaxX
		}
		return ei.MinY+ei.MaxY < ej.MinY+ej.MaxY
	})

	mid := len(items) / 2
	left := build(items[:mid], depth+1)
	right := build(items[mid:], depth+1)

	n := &node[T]{left: left, right: right}
	n.mbr = childMBR(left, right)
	return n
}

func childMBR[T any](left, right *node[T]) model.Envelope {
	switch {
	case left == nil:
		return right.mbr
	case right == nil:
		return left.mbr
	default:
		return unionEnv(left.mbr, right.mbr)
	}
}

func unionEnv(a, b model.Envelope) model.Envelope {
	return model.Envelope{
		MinX: minF(a.MinX, b.MinX),
		MinY: minF(a.MinY, b.MinY),
		MaxX: maxF(a.MaxX, b.MaxX),
		MaxY: maxF(a.MaxY, b.MaxY),
	}
}

func minF(a, b float64) float64 {
	if a < b {
		return a
	}
	return b
}

func maxF(a, b float64) float64 {
	if a > b {
		return a
	}
	return b
}

// WhatContains returns every indexed entry whose geometry contains g. Order
// is unspecified.
func (idx *Index[T]) WhatContains(g model.Geometry) []Entry[T] {
	if idx == nil || idx.root == nil || g.IsZero() {
		return nil
	}
	qe := g.Envelope()
	var out []Entry[T]
	collect(idx.root, qe, g, &out)
	return out
}

func collect[T any](n *node[T], qe model.Envelope, g model.Geometry, out *[]Entry[T]) {
	if n == nil || !n.mbr.Contains(qe) {
		return
	}
	if n.entry != nil {
		if Contains(n.entry.Geom, g) {
			*out = append(*out, *n.entry)
		}
		return
	}
	collect(n.left, qe, g, out)
	collect(n.right, qe, g, out)
}

// FirstContains returns any one entry whose geometry contains g, short
// circuiting the tree walk on the first exact match.
func (idx *Index[T]) FirstContains(g model.Geometry) (Entry[T], bool) {
	if idx == nil || idx.root == nil || g.IsZero() {
		return Entry[T]{}, false
	}
	qe := g.Envelope()
	return firstContains(idx.root, qe, g)
}

func firstContains[T any](n *node[T], qe model.Envelope, g model.Geometry) (Entry[T], bool) {
	if n == nil || !n.mbr.Contains(qe) {
		return Entry[T]{}, false
	}
	if n.entry != nil {
		if Contains(n.entry.Geom, g) {
			return *n.entry, true
		}
		return Entry[T]{}, false
	}
	if e, ok := firstContains(n.left, qe, g); ok {
		return e, true
	}
	return firstContains(n.right, qe, g)
}

// NumCoordinates returns the total coordinate count across all entries, used
// by SpatialRegionCache as the eviction size metric.
func (idx *Index[T]) NumCoordinates() int {
	if idx == nil {
		return 0
	}
	return idx.numCoords
}

// Len returns the number of entries in the index.
func (idx *Index[T]) Len() int {
	if idx == nil {
		return 0
	}
	return idx.numEntries
}
