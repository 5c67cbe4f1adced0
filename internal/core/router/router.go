// Package router parses and serves the demo server's /code endpoint,
// grounded on the teacher's HandleQuery/ParseQueryRequest pattern in its own
// predecessor (status-capturing ResponseWriter wrapper, ObserveHTTP on every
// request), generalized from WFS layer/bbox/polygon params to a region cache
// lookup by (resource, column) plus either a lat/lon point or an attribute
// value.
package router

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/geoindex/regioncache/internal/core/model"
	"github.com/geoindex/regioncache/internal/core/observability"
)

// CodeRequest is a parsed /code query: either a spatial lookup (Lat/Lon set)
// or an attribute lookup (Name set), against one dataset resource/column.
type CodeRequest struct {
	Resource string
	Column   string
	Lat, Lon float64
	HasPoint bool
	Name     string
}

// ParseCodeRequest validates the /code query string.
func ParseCodeRequest(r *http.Request) (CodeRequest, error) {
	q := r.URL.Query()
	resource := strings.TrimSpace(q.Get("resource"))
	column := strings.TrimSpace(q.Get("column"))
	if resource == "" || column == "" {
		return CodeRequest{}, errors.New("missing required parameter: resource and column")
	}

	latRaw := strings.TrimSpace(q.Get("lat"))
	lonRaw := strings.TrimSpace(q.Get("lon"))
	name := strings.TrimSpace(q.Get("name"))

	switch {
	case latRaw != "" && lonRaw != "":
		lat, err := strconv.ParseFloat(latRaw, 64)
		if err != nil {
			return CodeRequest{}, fmt.Errorf("invalid lat: %w", err)
		}
		lon, err := strconv.ParseFloat(lonRaw, 64)
		if err != nil {
			return CodeRequest{}, fmt.Errorf("invalid lon: %w", err)
		}
		return CodeRequest{Resource: resource, Column: column, Lat: lat, Lon: lon, HasPoint: true}, nil
	case name != "":
		return CodeRequest{Resource: resource, Column: column, Name: name}, nil
	default:
		return CodeRequest{}, errors.New("must supply either lat+lon or name")
	}
}

// CodeHandler serves a parsed CodeRequest; cmd/regioncache-demo supplies the
// concrete implementation wired to the two region caches.
type CodeHandler interface {
	HandleCode(ctx context.Context, w http.ResponseWriter, req CodeRequest)
}

// HandleCode wraps a CodeHandler with request parsing and HTTP metrics, the
// way the teacher's HandleQuery wraps QueryHandler.
func HandleCode(h CodeHandler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		sw := &statusWriter{ResponseWriter: w, code: http.StatusOK}

		req, err := ParseCodeRequest(r)
		if err != nil {
			http.Error(sw, err.Error(), http.StatusBadRequest)
			observability.ObserveHTTP(r.Method, "/code", http.StatusBadRequest, time.Since(start).Seconds())
			return
		}

		h.HandleCode(r.Context(), sw, req)
		observability.ObserveHTTP(r.Method, "/code", sw.code, time.Since(start).Seconds())
	}
}

type statusWriter struct {
	http.ResponseWriter
	code int
}

func (w *statusWriter) WriteHeader(code int) {
	w.code = code
	w.ResponseWriter.WriteHeader(code)
}

// PointGeometry is a convenience constructor CodeHandler implementations use
// to turn a parsed lat/lon into the model.Geometry the spatial cache expects.
func PointGeometry(lat, lon float64) model.Geometry {
	p := model.Point{X: lon, Y: lat}
	return model.Geometry{Point: &p}
}
