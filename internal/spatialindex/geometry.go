package spatialindex

import "github.com/geoindex/regioncache/internal/core/model"

// Contains reports whether container geometrically contains g, in the usual
// OGC sense (boundary touching counts as contains). It is the exact
// containment predicate the R-tree's candidate set is filtered through after
// the coarse MBR prune.
//
// Grounded on the even-odd ray-casting point-in-ring test used by
// WavesMan-ip-api's reverse geocoder (internal/revgeo/pip.go), generalized
// from point-only containment to polygon/multipolygon containers and
// polygon/multipolygon query shapes.
func Contains(container, g model.Geometry) bool {
	switch {
	case container.Polygon != nil:
		return polygonContains(*container.Polygon, g)
	case container.MultiPolygon != nil:
		for _, p := range container.MultiPolygon.Polygons {
			if polygonContains(p, g) {
				return true
			}
		}
		return false
	case container.Point != nil:
		return g.Point != nil && *g.Point == *container.Point
	default:
		return false
	}
}

func polygonContains(poly model.Polygon, g model.Geometry) bool {
	switch {
	case g.Point != nil:
		return pointInPolygon(poly, *g.Point)
	case g.Polygon != nil:
		return polygonContainsPolygon(poly, *g.Polygon)
	case g.MultiPolygon != nil:
		for _, p := range g.MultiPolygon.Polygons {
			if !polygonContainsPolygon(poly, p) {
				return false
			}
		}
		return len(g.MultiPolygon.Polygons) > 0
	default:
		return false
	}
}

// polygonContainsPolygon treats inner holds as out of scope for the shell
// check: every vertex of inner must lie inside the shell and outside every
// hole of outer. Edges are not checked, so an edge that passes through a hole
// without a vertex landing in it is not detected.
func polygonContainsPolygon(outer, inner model.Polygon) bool {
	if len(outer.Rings) == 0 || len(inner.Rings) == 0 {
		return false
	}
	for _, ring := range inner.Rings {
		for _, pt := range ring {
			if !pointInPolygon(outer, pt) {
				return false
			}
		}
	}
	return true
}

func pointInPolygon(poly model.Polygon, pt model.Point) bool {
	if len(poly.Rings) == 0 {
		return false
	}
	if !pointInRing(pt, poly.Rings[0]) {
		return false
	}
	for _, hole := range poly.Rings[1:] {
		if pointInRing(pt, hole) {
			return false
		}
	}
	return true
}

func pointInRing(pt model.Point, ring model.Ring) bool {
	n := len(ring)
	if n < 3 {
		return false
	}
	inside := false
	x, y := pt.X, pt.Y
	for i, j := 0, n-1; i < n; j, i = i, i+1 {
		xi, yi := ring[i].X, ring[i].Y
		xj, yj := ring[j].X, ring[j].Y
		if onSegment(x, y, xi, yi, xj, yj) {
			return true
		}
		intersect := ((yi > y) != (yj > y)) && (x < (xj-xi)*(y-yi)/(yj-yi+1e-12)+xi)
		if intersect {
			inside = !inside
		}
	}
	return inside
}

// onSegment treats a point exactly on a ring edge as contained, matching the
// spec's "boundary touching counts as contains" rule.
func onSegment(x, y, xi, yi, xj, yj float64) bool {
	const eps = 1e-9
	cross := (xj-xi)*(y-yi) - (yj-yi)*(x-xi)
	if cross > eps || cross < -eps {
		return false
	}
	if x < min(xi, xj)-eps || x > max(xi, xj)+eps {
		return false
	}
	if y < min(yi, yj)-eps || y > max(yi, yj)+eps {
		return false
	}
	return true
}

func min(a, b float64) float64 {
	if a < b {
		return a
	}
	return b
}

func max(a, b float64) float64 {
	if a > b {
		return a
	}
	return b
}
