// Package httpclient configures the HTTP client the soda client uses to call
// the SoQL backend.
package httpclient

import (
	"net"
	"net/http"
	"time"
)

// defaultMaxConcurrentDatasets bounds idle-connection pooling when the
// caller has no better estimate of concurrent distinct dataset fetches.
const defaultMaxConcurrentDatasets = 128

// NewOutbound creates the HTTP client used to fetch dataset features from
// the SoQL backend. maxConcurrentDatasets sizes the idle-connection pool: a
// region cache single-flights at most one in-flight fetch per distinct
// cache key, so the number of dataset resources it can be populating at
// once is bounded by its configured capacity (regioncache.Config.MaxEntries)
// — pooling more idle connections per host than that never helps, since no
// more than that many fetches to the same host can be in flight
// concurrently. Pass <= 0 to fall back to a generic default.
func NewOutbound(maxConcurrentDatasets int) *http.Client {
	perHost := maxConcurrentDatasets
	if perHost <= 0 {
		perHost = defaultMaxConcurrentDatasets
	}
	transport := &http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		DialContext:           (&net.Dialer{Timeout: 5 * time.Second, KeepAlive: 30 * time.Second}).DialContext,
		MaxIdleConns:          perHost * 2,
		MaxIdleConnsPerHost:   perHost,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   5 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
	}
	return &http.Client{
		Transport: transport,
		Timeout:   30 * time.Second,
	}
}
