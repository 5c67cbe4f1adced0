package soda

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/geoindex/regioncache/internal/core/ogc"
	"github.com/geoindex/regioncache/internal/regioncache"
)

// BuildQuery renders the GetFeature-equivalent URL for one cache key: a
// dataset resource's .geojson endpoint with a $select/$limit/$where SoQL
// query string, the where clause built from the key's envelope the way the
// teacher's BuildGetFeatureParams builds a WFS cql_filter from a bbox or
// polygon, generalized from INTERSECTS(geom, SRID=4326;POLYGON(...)) to
// SoQL's intersects(column, 'MULTIPOLYGON(...)') predicate.
func BuildQuery(baseURL, resource string, limit int, key regioncache.Key) (string, error) {
	u, err := url.Parse(strings.TrimRight(baseURL, "/") + "/resource/" + resource + ".geojson")
	if err != nil {
		return "", fmt.Errorf("soda: parse base url: %w", err)
	}

	q := url.Values{}
	q.Set("$select", "*")
	if limit > 0 {
		q.Set("$limit", strconv.Itoa(limit))
	}
	if key.HasEnvelope && key.Column != "" {
		wkt := ogc.EnvelopeToWKT(key.Envelope)
		q.Set("$where", fmt.Sprintf("intersects(%s, '%s')", key.Column, wkt))
	}
	u.RawQuery = q.Encode()
	return u.String(), nil
}
