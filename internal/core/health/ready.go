// Package health serves the demo server's liveness and readiness probes.
package health

import (
	"encoding/json"
	"net/http"
)

// ReadinessReporter reports whether the invalidation consumer group
// currently holds a partition assignment. kafkaconsumer.Runner is the one
// implementation: a process that hasn't been assigned any partition of the
// "region.invalidate" topic can't observe invalidation messages yet, so it
// isn't ready to serve cache reads that depend on that invalidation feed
// staying current.
type ReadinessReporter interface {
	Readiness() (ready bool, partitions []int32)
}

// Readiness serves /readyz, reporting the invalidation consumer group's
// current partition assignment so an operator can tell a cold-started
// replica (not yet assigned, reporting not_ready) apart from one that's
// caught up.
func Readiness(rr ReadinessReporter) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		type resp struct {
			Status                 string  `json:"status"`
			InvalidationPartitions []int32 `json:"invalidation_partitions,omitempty"`
		}
		ready, parts := rr.Readiness()
		out := resp{Status: "not_ready"}
		if ready {
			out.Status = "ready"
			out.InvalidationPartitions = parts
		}
		w.Header().Set("Content-Type", "application/json")
		if !ready {
			w.WriteHeader(http.StatusServiceUnavailable)
		}
		_ = json.NewEncoder(w).Encode(out)
	}
}
