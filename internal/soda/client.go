package soda

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/rs/zerolog"

	"github.com/geoindex/regioncache/internal/cache/redisstore"
	"github.com/geoindex/regioncache/internal/core/config"
	"github.com/geoindex/regioncache/internal/core/observability"
	"github.com/geoindex/regioncache/internal/geojson"
	"github.com/geoindex/regioncache/internal/regioncache"
)

// Client implements regioncache.RemoteDataset over net/http, optionally
// memoizing raw response bodies in Redis so repeated identical queries
// across process restarts don't always re-hit the network. This is separate
// from, and sits in front of, the in-process RegionCache, which per spec
// never persists its decoded indices across restart — only the raw fetched
// payload is memoized here, not a built index.
type Client struct {
	http     *http.Client
	baseURL  string
	appToken string
	limit    int

	respCache *redisstore.Client
	respTTL   time.Duration

	log *zerolog.Logger
}

// New constructs a Client. respCache may be nil to disable response
// memoization entirely.
func New(cfg config.SodaCfg, httpClient *http.Client, respCache *redisstore.Client, log *zerolog.Logger) *Client {
	return &Client{
		http:      httpClient,
		baseURL:   cfg.BaseURL,
		appToken:  cfg.AppToken,
		limit:     cfg.RequestLimit,
		respCache: respCache,
		respTTL:   cfg.RespCacheTTL,
		log:       log,
	}
}

// FetchFeatures implements regioncache.RemoteDataset.
func (c *Client) FetchFeatures(ctx context.Context, key regioncache.Key) ([]geojson.Feature, error) {
	queryURL, err := BuildQuery(c.baseURL, key.Resource, c.limit, key)
	if err != nil {
		return nil, err
	}

	body, err := c.fetchBody(ctx, queryURL)
	if err != nil {
		return nil, err
	}

	fc, err := geojson.Decode(body)
	if err != nil {
		return nil, fmt.Errorf("soda: decode response for %s: %w", queryURL, err)
	}
	return fc.Features, nil
}

func (c *Client) fetchBody(ctx context.Context, queryURL string) ([]byte, error) {
	cacheKey := respCacheKey(queryURL)

	if c.respCache != nil {
		if hit, err := c.respCache.MGet(ctx, []string{cacheKey}); err == nil {
			if b, ok := hit[cacheKey]; ok {
				return b, nil
			}
		}
	}

	resp, transportErr := c.do(ctx, queryURL)
	body, err := Check(resp, transportErr, http.StatusOK)
	if err != nil {
		return nil, err
	}

	if c.respCache != nil {
		if err := c.respCache.Set(ctx, cacheKey, body, c.respTTL); err != nil && c.log != nil {
			c.log.Warn().Err(err).Str("url", queryURL).Msg("soda: respcache write failed")
		}
	}
	return body, nil
}

func (c *Client) do(ctx context.Context, queryURL string) (*Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, queryURL, nil)
	if err != nil {
		return nil, fmt.Errorf("soda: build request: %w", err)
	}
	if c.appToken != "" {
		req.Header.Set("X-App-Token", c.appToken)
	}

	start := time.Now()
	httpResp, err := c.http.Do(req)
	observability.ObserveUpstreamLatency("soda", time.Since(start).Seconds())
	if err != nil {
		return nil, fmt.Errorf("soda: request %s: %w", queryURL, err)
	}
	defer httpResp.Body.Close()

	body, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return nil, fmt.Errorf("soda: read response body: %w", err)
	}
	return &Response{Status: httpResp.StatusCode, Body: body}, nil
}

func respCacheKey(queryURL string) string {
	return fmt.Sprintf("soda:resp:%x", xxhash.Sum64String(queryURL))
}
