// Package featuredecoder turns a parsed GeoJSON feature collection into the
// two raw shapes the region cache builds indices from: spatial entries for
// the R-tree, or a key-to-id map for attribute lookups.
package featuredecoder

import (
	"strconv"
	"strings"

	"github.com/rs/zerolog"

	"github.com/geoindex/regioncache/internal/geojson"
	"github.com/geoindex/regioncache/internal/spatialindex"
)

// FeatureIDAttr is the conventional feature-id attribute name used across
// the curated datasets this service codes against.
const FeatureIDAttr = "_feature_id"

// PaceEvery is how many decoded features pass before the pacing hook fires.
// This is a cooperative yield point, not a real-time scheduler: it lets a
// large build interleave with the memory governor's depressurization loop
// under the same goroutine.
const PaceEvery = 1000

// Pacer is invoked periodically during a decode to give the caller a chance
// to reclaim memory or otherwise interleave work. The production
// implementation binds a *memgovernor.Governor to the specific cache being
// populated so Yield can run that cache's depressurize step.
type Pacer interface {
	Yield()
}

// ToSpatialEntries decodes every feature into a spatial entry keyed by its
// integer feature id. Features missing or with a non-integer feature id are
// skipped and logged; this never fails the build (spec data-quality rule).
func ToSpatialEntries(features []geojson.Feature, pacer Pacer, log *zerolog.Logger) ([]spatialindex.Entry[int], error) {
	entries := make([]spatialindex.Entry[int], 0, len(features))
	for i, f := range features {
		if i > 0 && i%PaceEvery == 0 && pacer != nil {
			pacer.Yield()
		}

		id, ok := featureID(f)
		if !ok {
			logSkip(log, "missing or non-integer feature id", f)
			continue
		}
		geom, err := geojson.DecodeGeometry(f.Geometry)
		if err != nil {
			logSkip(log, "undecodable geometry: "+err.Error(), f)
			continue
		}
		entries = append(entries, spatialindex.Entry[int]{Geom: geom, Value: id})
	}
	return entries, nil
}

// ToKeyMap decodes every feature into a (keyAttr value -> feature id) entry.
// Features missing either attribute are skipped and logged. Duplicate key
// values collapse with last-writer-wins, matching the spec's documented
// behavior rather than failing the build.
func ToKeyMap(features []geojson.Feature, keyAttr string, pacer Pacer, log *zerolog.Logger) (map[string]int, error) {
	out := make(map[string]int, len(features))
	for i, f := range features {
		if i > 0 && i%PaceEvery == 0 && pacer != nil {
			pacer.Yield()
		}

		id, ok := featureID(f)
		if !ok {
			logSkip(log, "missing or non-integer feature id", f)
			continue
		}
		key, ok := stringAttr(f, keyAttr)
		if !ok {
			logSkip(log, "missing key attribute "+keyAttr, f)
			continue
		}
		out[key] = id
	}
	return out, nil
}

func featureID(f geojson.Feature) (int, bool) {
	v, ok := f.Properties[FeatureIDAttr]
	if !ok {
		return 0, false
	}
	s, ok := v.(string)
	if !ok {
		if n, ok := v.(float64); ok && n == float64(int(n)) {
			if int(n) <= 0 {
				return 0, false
			}
			return int(n), true
		}
		return 0, false
	}
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, false
	}
	n, err := strconv.Atoi(s)
	if err != nil || n <= 0 {
		return 0, false
	}
	return n, true
}

func stringAttr(f geojson.Feature, attr string) (string, bool) {
	v, ok := f.Properties[attr]
	if !ok {
		return "", false
	}
	s, ok := v.(string)
	if !ok || s == "" {
		return "", false
	}
	return s, true
}

func logSkip(log *zerolog.Logger, reason string, f geojson.Feature) {
	if log == nil {
		return
	}
	log.Warn().
		Str("reason", reason).
		Interface("properties", f.Properties).
		Msg("featuredecoder: skipping feature")
}
