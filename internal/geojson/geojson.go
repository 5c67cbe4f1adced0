// Package geojson decodes the GeoJSON FeatureCollection documents the region
// cache consumes from the remote dataset backend, without a third-party
// GeoJSON library: none of the retrieval pack's example repos import one —
// the teacher's own internal/mapper/h3/mapper.go and
// internal/core/ogc/geojsonwkt.go both hand-decode GeoJSON coordinate trees
// with encoding/json.RawMessage, and this package follows the same idiom,
// generalized from H3-specific polygon-only decoding to the full
// Point/Polygon/MultiPolygon geometry set the region cache indexes.
package geojson

import (
	"encoding/json"
	"fmt"

	"github.com/geoindex/regioncache/internal/core/model"
)

// FeatureCollection is the top-level GeoJSON document the remote dataset
// returns.
type FeatureCollection struct {
	Type     string    `json:"type"`
	Features []Feature `json:"features"`
}

// Feature is a single GeoJSON feature: a geometry plus an attribute bag.
type Feature struct {
	Type       string          `json:"type"`
	Geometry   json.RawMessage `json:"geometry"`
	Properties map[string]any  `json:"properties"`
}

// ErrNotFeatureCollection is returned when the decoded JSON's "type" field is
// not "FeatureCollection".
var ErrNotFeatureCollection = fmt.Errorf("geojson: not a FeatureCollection")

// Decode parses a raw GeoJSON document into a FeatureCollection, validating
// that it is in fact of type FeatureCollection.
func Decode(body []byte) (*FeatureCollection, error) {
	var fc FeatureCollection
	if err := json.Unmarshal(body, &fc); err != nil {
		return nil, fmt.Errorf("geojson: parse: %w", err)
	}
	if fc.Type != "FeatureCollection" {
		return nil, ErrNotFeatureCollection
	}
	return &fc, nil
}

// DecodeGeometry parses a raw GeoJSON geometry object.
func DecodeGeometry(raw json.RawMessage) (model.Geometry, error) {
	if len(raw) == 0 {
		return model.Geometry{}, fmt.Errorf("geojson: empty geometry")
	}
	var hdr struct {
		Type        string          `json:"type"`
		Coordinates json.RawMessage `json:"coordinates"`
	}
	if err := json.Unmarshal(raw, &hdr); err != nil {
		return model.Geometry{}, fmt.Errorf("geojson: parse geometry: %w", err)
	}

	switch hdr.Type {
	case "Point":
		var xy []float64
		if err := json.Unmarshal(hdr.Coordinates, &xy); err != nil {
			return model.Geometry{}, fmt.Errorf("geojson: parse point: %w", err)
		}
		if len(xy) != 2 {
			return model.Geometry{}, fmt.Errorf("geojson: point must have 2 coordinates")
		}
		p := model.Point{X: xy[0], Y: xy[1]}
		return model.Geometry{Point: &p}, nil

	case "Polygon":
		var rings [][][]float64
		if err := json.Unmarshal(hdr.Coordinates, &rings); err != nil {
			return model.Geometry{}, fmt.Errorf("geojson: parse polygon: %w", err)
		}
		poly, err := toPolygon(rings)
		if err != nil {
			return model.Geometry{}, err
		}
		return model.Geometry{Polygon: &poly}, nil

	case "MultiPolygon":
		var polys [][][][]float64
		if err := json.Unmarshal(hdr.Coordinates, &polys); err != nil {
			return model.Geometry{}, fmt.Errorf("geojson: parse multipolygon: %w", err)
		}
		mp := model.MultiPolygon{}
		for i, rings := range polys {
			poly, err := toPolygon(rings)
			if err != nil {
				return model.Geometry{}, fmt.Errorf("multipolygon part %d: %w", i, err)
			}
			mp.Polygons = append(mp.Polygons, poly)
		}
		return model.Geometry{MultiPolygon: &mp}, nil

	default:
		return model.Geometry{}, fmt.Errorf("geojson: unsupported geometry type %q", hdr.Type)
	}
}

func toPolygon(rings [][][]float64) (model.Polygon, error) {
	if len(rings) == 0 {
		return model.Polygon{}, fmt.Errorf("geojson: polygon has no rings")
	}
	poly := model.Polygon{Rings: make([]model.Ring, 0, len(rings))}
	for _, ring := range rings {
		if len(ring) < 4 {
			return model.Polygon{}, fmt.Errorf("geojson: polygon ring has <4 points")
		}
		r := make(model.Ring, 0, len(ring))
		for _, xy := range ring {
			if len(xy) != 2 {
				return model.Polygon{}, fmt.Errorf("geojson: coordinate must be [x,y]")
			}
			r = append(r, model.Point{X: xy[0], Y: xy[1]})
		}
		poly.Rings = append(poly.Rings, r)
	}
	return poly, nil
}
