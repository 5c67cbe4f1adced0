// Package model defines the geo domain types shared across the region cache.
package model

import (
	"fmt"
	"math"
)

// Envelope is an axis-aligned bounding box in the dataset's native CRS.
type Envelope struct {
	MinX, MinY, MaxX, MaxY float64
}

func (e Envelope) String() string {
	return fmt.Sprintf("%.6f,%.6f,%.6f,%.6f", e.MinX, e.MinY, e.MaxX, e.MaxY)
}

// Intersects reports whether two envelopes overlap; touching counts as intersecting.
func (e Envelope) Intersects(o Envelope) bool {
	return e.MinX <= o.MaxX && e.MaxX >= o.MinX && e.MinY <= o.MaxY && e.MaxY >= o.MinY
}

// Contains reports whether e fully contains o.
func (e Envelope) Contains(o Envelope) bool {
	return e.MinX <= o.MinX && e.MinY <= o.MinY && e.MaxX >= o.MaxX && e.MaxY >= o.MaxY
}

func (e Envelope) union(o Envelope) Envelope {
	return Envelope{
		MinX: math.Min(e.MinX, o.MinX),
		MinY: math.Min(e.MinY, o.MinY),
		MaxX: math.Max(e.MaxX, o.MaxX),
		MaxY: math.Max(e.MaxY, o.MaxY),
	}
}

// Point is a single coordinate pair in the dataset's CRS.
type Point struct {
	X, Y float64
}

// Ring is a closed loop of points; the first ring of a Polygon is the shell,
// subsequent rings are holes.
type Ring []Point

func (r Ring) envelope() Envelope {
	if len(r) == 0 {
		return Envelope{}
	}
	env := Envelope{MinX: r[0].X, MinY: r[0].Y, MaxX: r[0].X, MaxY: r[0].Y}
	for _, p := range r[1:] {
		env.MinX = math.Min(env.MinX, p.X)
		env.MinY = math.Min(env.MinY, p.Y)
		env.MaxX = math.Max(env.MaxX, p.X)
		env.MaxY = math.Max(env.MaxY, p.Y)
	}
	return env
}

// Polygon is a shell ring plus zero or more hole rings.
type Polygon struct {
	Rings []Ring
}

// MultiPolygon is an ordered collection of polygons.
type MultiPolygon struct {
	Polygons []Polygon
}

// Geometry is any shape the region cache can index or query with. It is a
// closed set (Point, Polygon, MultiPolygon) rather than an open interface{}
// extension point: the core only ever builds entries from decoded GeoJSON
// and queries with a decoded request geometry.
type Geometry struct {
	Point        *Point
	Polygon      *Polygon
	MultiPolygon *MultiPolygon
}

// IsZero reports whether the geometry carries no shape at all.
func (g Geometry) IsZero() bool {
	return g.Point == nil && g.Polygon == nil && g.MultiPolygon == nil
}

// Envelope returns the geometry's minimum bounding rectangle.
func (g Geometry) Envelope() Envelope {
	switch {
	case g.Point != nil:
		return Envelope{MinX: g.Point.X, MinY: g.Point.Y, MaxX: g.Point.X, MaxY: g.Point.Y}
	case g.Polygon != nil:
		return polygonEnvelope(*g.Polygon)
	case g.MultiPolygon != nil:
		var env Envelope
		first := true
		for _, p := range g.MultiPolygon.Polygons {
			e := polygonEnvelope(p)
			if first {
				env, first = e, false
				continue
			}
			env = env.union(e)
		}
		return env
	default:
		return Envelope{}
	}
}

// NumCoordinates returns the total coordinate count in the geometry, used as
// the spatial index's size metric.
func (g Geometry) NumCoordinates() int {
	switch {
	case g.Point != nil:
		return 1
	case g.Polygon != nil:
		return polygonCoordinates(*g.Polygon)
	case g.MultiPolygon != nil:
		n := 0
		for _, p := range g.MultiPolygon.Polygons {
			n += polygonCoordinates(p)
		}
		return n
	default:
		return 0
	}
}

func polygonEnvelope(p Polygon) Envelope {
	if len(p.Rings) == 0 {
		return Envelope{}
	}
	env := p.Rings[0].envelope()
	for _, r := range p.Rings[1:] {
		env = env.union(r.envelope())
	}
	return env
}

func polygonCoordinates(p Polygon) int {
	n := 0
	for _, r := range p.Rings {
		n += len(r)
	}
	return n
}
