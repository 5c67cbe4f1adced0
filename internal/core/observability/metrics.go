// Package observability hosts the process-wide Prometheus collectors shared
// across the HTTP demo surface and the region cache. Collectors are
// registered once at package init via promauto.
package observability

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests.",
		},
		[]string{"method", "route", "status"},
	)

	httpRequestDurationSeconds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Duration of HTTP requests in seconds.",
			Buckets: prometheus.ExponentialBuckets(0.005, 2, 12), // 5ms to ~20s
		},
		[]string{"method", "route", "status"},
	)

	upstreamLatencySeconds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "upstream_latency_seconds",
			Help:    "Latency of upstream calls in seconds.",
			Buckets: prometheus.ExponentialBuckets(0.005, 2, 12),
		},
		[]string{"upstream"},
	)

	buildInfo = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "app_build_info",
			Help: "Build information for the binary.",
		},
		[]string{"version"},
	)

	regionCacheEntries = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "region_cache_entries",
			Help: "Number of slots (resolved or in flight) held by a region cache.",
		},
		[]string{"cache_kind"},
	)

	regionCacheFetchSeconds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "region_cache_fetch_duration_seconds",
			Help:    "Time to resolve a region cache slot, from request to population (hit or miss).",
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 14),
		},
		[]string{"cache_kind", "outcome"},
	)

	regionCacheBuildSeconds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "region_cache_build_duration_seconds",
			Help:    "Time spent populating a single slot: the remote fetch (GetFromSoda only) plus decoding and building the index.",
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 14),
		},
		[]string{"cache_kind"},
	)

	regionCacheEvictionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "region_cache_evictions_total",
			Help: "Region cache slot evictions by reason.",
		},
		[]string{"cache_kind", "reason"},
	)

	regionCacheHeapFreePercent = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "region_cache_heap_free_percent",
			Help: "Free heap percentage as last observed by the memory governor.",
		},
	)

	redisOpSeconds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "redis_op_duration_seconds",
			Help:    "Duration of redis operations performed by redisstore.",
			Buckets: prometheus.ExponentialBuckets(0.0005, 2, 12),
		},
		[]string{"op", "outcome"},
	)

	redisRespCacheResults = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "redis_respcache_results_total",
			Help: "SoDA raw-response cache results by outcome.",
		},
		[]string{"outcome"},
	)
)

func ObserveHTTP(method, route string, status int, durationSeconds float64) {
	st := strconv.Itoa(status)
	httpRequestsTotal.WithLabelValues(method, route, st).Inc()
	httpRequestDurationSeconds.WithLabelValues(method, route, st).Observe(durationSeconds)
}

func ObserveUpstreamLatency(upstream string, durationSeconds float64) {
	upstreamLatencySeconds.WithLabelValues(upstream).Observe(durationSeconds)
}

func ExposeBuildInfo(version string) {
	if version == "" {
		version = "dev"
	}
	buildInfo.WithLabelValues(version).Set(1)
}

// SetRegionCacheEntries reports a cache's current slot count, resolved or in
// flight.
func SetRegionCacheEntries(cacheKind string, n int) {
	regionCacheEntries.WithLabelValues(cacheKind).Set(float64(n))
}

// ObserveRegionCacheFetch records the latency of a GetFromFeatures/GetFromSoda
// call. outcome is "hit" when the slot was already present (resolved or in
// flight), "miss" when this call installed it.
func ObserveRegionCacheFetch(cacheKind, outcome string, durationSeconds float64) {
	regionCacheFetchSeconds.WithLabelValues(cacheKind, outcome).Observe(durationSeconds)
}

// ObserveRegionCacheBuild records how long populating a single slot took.
// For a GetFromSoda population this includes the remote fetch; fetch and
// build are not timed separately here.
func ObserveRegionCacheBuild(cacheKind string, durationSeconds float64) {
	regionCacheBuildSeconds.WithLabelValues(cacheKind).Observe(durationSeconds)
}

// IncRegionCacheEviction counts one slot eviction. reason is "capacity",
// "depressurize", or "invalidate"; the invalidation consumer also reports an
// undecodable message under cache kind "unknown" with reason
// "invalidate_decode_error", in which case nothing is evicted.
func IncRegionCacheEviction(cacheKind, reason string) {
	regionCacheEvictionsTotal.WithLabelValues(cacheKind, reason).Inc()
}

// SetRegionCacheHeapFreePercent publishes the memory governor's last reading.
func SetRegionCacheHeapFreePercent(pct int) {
	regionCacheHeapFreePercent.Set(float64(pct))
}

// ObserveCacheOp records one redisstore call's latency and outcome.
func ObserveCacheOp(op string, err error, durationSeconds float64) {
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	redisOpSeconds.WithLabelValues(op, outcome).Observe(durationSeconds)
}

// AddCacheHits counts n raw-response cache hits in the SoDA respcache.
func AddCacheHits(n int) {
	redisRespCacheResults.WithLabelValues("hit").Add(float64(n))
}

// AddCacheMisses counts n raw-response cache misses in the SoDA respcache.
func AddCacheMisses(n int) {
	redisRespCacheResults.WithLabelValues("miss").Add(float64(n))
}
