// Package config loads region cache configuration from the environment,
// following the teacher's flat-struct-plus-getenv-helpers convention.
package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

type InvalidationCfg struct {
	Enabled bool
	Driver  string
	Topic   string
	Brokers string
	GroupID string
}

type SodaCfg struct {
	BaseURL       string
	AppToken      string
	RequestLimit  int
	RespCacheAddr string
	RespCacheTTL  time.Duration
}

type Config struct {
	Addr     string
	LogLevel string

	Soda         SodaCfg
	Invalidation InvalidationCfg

	// CacheMaxEntries bounds the number of slots (resolved or in flight) a
	// RegionCache holds before the LRU evicts by recency.
	CacheMaxEntries int

	// Memory governor.
	CacheDepressurizeEnabled bool
	CacheMinFreePct          int
	CacheTargetFreePct       int
	CacheIterationInterval   time.Duration
	CacheMaxHeapBytes        uint64
	CachePollInterval        time.Duration
}

func FromEnv() Config {
	return Config{
		Addr:     getenv("ADDR", ":8090"),
		LogLevel: getenv("LOG_LEVEL", "info"),

		Soda: SodaCfg{
			BaseURL:       getenv("SODA_BASE_URL", "https://data.example.gov"),
			AppToken:      getenv("SODA_APP_TOKEN", ""),
			RequestLimit:  getint("SODA_REQUEST_LIMIT", 50000),
			RespCacheAddr: getenv("SODA_RESPCACHE_ADDR", ""),
			RespCacheTTL:  getduration("SODA_RESPCACHE_TTL", 5*time.Minute),
		},

		Invalidation: InvalidationCfg{
			Enabled: getbool("INVALIDATION_ENABLED", false),
			Driver:  getenv("INVALIDATION_DRIVER", "none"),
			Topic:   getenv("KAFKA_TOPIC", "region.invalidate"),
			Brokers: getenv("KAFKA_BROKERS", "localhost:9092"),
			GroupID: getenv("KAFKA_GROUP_ID", "region-cache-invalidator"),
		},

		CacheMaxEntries: getint("CACHE_MAX_ENTRIES", 256),

		CacheDepressurizeEnabled: getbool("CACHE_DEPRESSURIZE_ENABLED", true),
		CacheMinFreePct:          getint("CACHE_MIN_FREE_PCT", 10),
		CacheTargetFreePct:       getint("CACHE_TARGET_FREE_PCT", 20),
		CacheIterationInterval:   getduration("CACHE_ITERATION_INTERVAL", 50*time.Millisecond),
		CacheMaxHeapBytes:        getuint64("CACHE_MAX_HEAP_BYTES", 0),
		CachePollInterval:        getduration("CACHE_POLL_INTERVAL", 5*time.Second),
	}
}

func getenv(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

func getint(k string, def int) int {
	if v := os.Getenv(k); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func getuint64(k string, def uint64) uint64 {
	if v := os.Getenv(k); v != "" {
		if n, err := strconv.ParseUint(v, 10, 64); err == nil {
			return n
		}
	}
	return def
}

func getbool(k string, def bool) bool {
	if v := os.Getenv(k); v != "" {
		switch strings.ToLower(strings.TrimSpace(v)) {
		case "1", "t", "true", "y", "yes":
			return true
		case "0", "f", "false", "n", "no":
			return false
		}
	}
	return def
}

func getduration(k string, def time.Duration) time.Duration {
	if v := os.Getenv(k); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}
