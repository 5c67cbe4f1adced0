// Package ogc converts a region cache key's bounding-box envelope into the
// WKT the SoQL "where intersects(...)" clause needs.
package ogc

import (
	"fmt"

	"github.com/geoindex/regioncache/internal/core/model"
)

// EnvelopeToWKT renders an axis-aligned envelope as a single-polygon WKT
// MULTIPOLYGON, the shape SoQL's intersects() predicate requires for a bbox
// filter — the backend rejects a bare POLYGON.
func EnvelopeToWKT(e model.Envelope) string {
	return fmt.Sprintf(
		"MULTIPOLYGON(((%.8f %.8f, %.8f %.8f, %.8f %.8f, %.8f %.8f, %.8f %.8f)))",
		e.MinX, e.MinY,
		e.MaxX, e.MinY,
		e.MaxX, e.MaxY,
		e.MinX, e.MaxY,
		e.MinX, e.MinY,
	)
}
