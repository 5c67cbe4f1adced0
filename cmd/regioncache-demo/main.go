// Command regioncache-demo runs a minimal HTTP server exercising the region
// cache end to end: a /code endpoint resolves a dataset resource/column
// against either a lat/lon point (spatial cache) or an attribute value
// (hash-map cache), fetching from a remote SoQL dataset on first use and
// serving every later identical request out of the in-process cache.
// Grounded on the teacher's internal/app/server/server.go Run function.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/geoindex/regioncache/internal/cache/redisstore"
	"github.com/geoindex/regioncache/internal/core/config"
	"github.com/geoindex/regioncache/internal/core/health"
	"github.com/geoindex/regioncache/internal/core/httpclient"
	imw "github.com/geoindex/regioncache/internal/core/middleware"
	"github.com/geoindex/regioncache/internal/core/router"
	"github.com/geoindex/regioncache/internal/invalidation/kafkaconsumer"
	mylog "github.com/geoindex/regioncache/internal/logger"
	"github.com/geoindex/regioncache/internal/memgovernor"
	"github.com/geoindex/regioncache/internal/regioncache"
	"github.com/geoindex/regioncache/internal/soda"
)

type demoHandler struct {
	spatial    *regioncache.SpatialRegionCache
	hashmap    *regioncache.HashMapRegionCache
	remote     regioncache.RemoteDataset
	governor   *memgovernor.Governor
	minFreePct int
	log        *zerolog.Logger
	// fatal carries OutOfMemoryPressure up to run()'s shutdown select. Per
	// spec §7, it's the one error kind treated as fatal by the surrounding
	// host rather than per-request, so a single occurrence begins server
	// shutdown even though the triggering request itself still gets a
	// normal HTTP response.
	fatal chan<- error
}

// prepForCaching is spec §4.3's ensureFree guard, run ahead of every
// GetFromSoda lookup (hit or miss): refuse to go on to a lookup that may
// build a new index (the expensive path) when heap headroom is already below
// the configured minimum free percentage, since GetFromSoda's build may need to allocate before
// depressurization has a chance to run its own pass. A non-nil result is
// OutOfMemoryPressure and is forwarded to h.fatal.
func (h *demoHandler) prepForCaching() error {
	err := h.governor.EnsureFree(h.minFreePct, false)
	if err != nil {
		select {
		case h.fatal <- err:
		default:
		}
	}
	return err
}

func (h *demoHandler) HandleCode(ctx context.Context, w http.ResponseWriter, req router.CodeRequest) {
	w.Header().Set("Content-Type", "application/json")

	if req.HasPoint {
		ctx = mylog.WithCacheKind(ctx, "spatial")
		reqLog := mylog.FromContext(ctx, h.log)
		if err := h.prepForCaching(); err != nil {
			reqLog.Error().Err(err).Msg("regioncache-demo: out-of-memory pressure, refusing to populate cache")
			writeError(w, http.StatusServiceUnavailable, err)
			return
		}
		key := regioncache.NewKey(req.Resource, req.Column, nil)
		idx, err := h.spatial.GetFromSoda(ctx, h.remote, key)
		if err != nil {
			reqLog.Error().Err(err).Str("resource", req.Resource).Msg("regioncache-demo: spatial lookup failed")
			writeError(w, http.StatusBadGateway, err)
			return
		}
		entry, ok := idx.FirstContains(router.PointGeometry(req.Lat, req.Lon))
		if !ok {
			w.WriteHeader(http.StatusNotFound)
			_ = json.NewEncoder(w).Encode(map[string]any{"match": false})
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"match": true, "feature_id": entry.Value})
		return
	}

	ctx = mylog.WithCacheKind(ctx, "hashmap")
	reqLog := mylog.FromContext(ctx, h.log)
	if err := h.prepForCaching(); err != nil {
		reqLog.Error().Err(err).Msg("regioncache-demo: out-of-memory pressure, refusing to populate cache")
		writeError(w, http.StatusServiceUnavailable, err)
		return
	}
	key := regioncache.NewKey(req.Resource, req.Column, nil)
	idx, err := h.hashmap.GetFromSoda(ctx, h.remote, key)
	if err != nil {
		reqLog.Error().Err(err).Str("resource", req.Resource).Msg("regioncache-demo: hash-map lookup failed")
		writeError(w, http.StatusBadGateway, err)
		return
	}
	id, ok := idx[req.Name]
	if !ok {
		w.WriteHeader(http.StatusNotFound)
		_ = json.NewEncoder(w).Encode(map[string]any{"match": false})
		return
	}
	_ = json.NewEncoder(w).Encode(map[string]any{"match": true, "feature_id": id})
}

func writeError(w http.ResponseWriter, status int, err error) {
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]any{"error": err.Error()})
}

func main() {
	cfg := config.FromEnv()

	zl := mylog.Build(mylog.Config{Level: cfg.LogLevel, Console: true, Component: "regioncache-demo"}, os.Stdout)
	slogger := mylog.NewSlog(&zl)

	if err := run(cfg, &zl, slogger); err != nil {
		zl.Fatal().Err(err).Msg("regioncache-demo: exited with error")
	}
}

func run(cfg config.Config, zl *zerolog.Logger, slogger *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	governor := memgovernor.New(memgovernor.Config{
		MaxHeapBytes:      cfg.CacheMaxHeapBytes,
		IterationInterval: cfg.CacheIterationInterval,
	}, zl)

	cacheCfg := regioncache.Config{
		MaxEntries: cfg.CacheMaxEntries,
		Governor:   governor,
		TargetPct:  cfg.CacheTargetFreePct,
	}
	spatial := regioncache.NewSpatialRegionCache(cacheCfg, zl)
	hashmap := regioncache.NewHashMapRegionCache(cacheCfg, "name", zl)

	var respCache *redisstore.Client
	if cfg.Soda.RespCacheAddr != "" {
		rc, err := redisstore.New(ctx, cfg.Soda.RespCacheAddr)
		if err != nil {
			return err
		}
		defer rc.Close()
		respCache = rc
	}
	remote := soda.New(cfg.Soda, httpclient.NewOutbound(cfg.CacheMaxEntries), respCache, zl)

	// The two depressurization pollers share an errgroup so a configuration
	// error in one (e.g. a non-positive poll interval) cancels its sibling
	// and surfaces through depressurizers.Wait() instead of dying silently.
	depressurizers, depressurizeCtx := errgroup.WithContext(ctx)
	if cfg.CacheDepressurizeEnabled {
		depressurizers.Go(func() error {
			return governor.RunLoop(depressurizeCtx, spatial, cfg.CachePollInterval, cfg.CacheMinFreePct, cfg.CacheTargetFreePct)
		})
		depressurizers.Go(func() error {
			return governor.RunLoop(depressurizeCtx, hashmap, cfg.CachePollInterval, cfg.CacheMinFreePct, cfg.CacheTargetFreePct)
		})
	}

	invalidator := kafkaconsumer.New(cfg.Invalidation, zl, spatial, hashmap)
	if err := invalidator.Start(ctx); err != nil {
		return err
	}
	defer invalidator.Stop()

	fatalCh := make(chan error, 1)
	handler := &demoHandler{
		spatial:    spatial,
		hashmap:    hashmap,
		remote:     remote,
		governor:   governor,
		minFreePct: cfg.CacheMinFreePct,
		log:        zl,
		fatal:      fatalCh,
	}

	r := chi.NewRouter()
	r.Use(imw.Recover())
	r.Use(imw.Logging(slogger))
	r.Use(imw.CORS())

	r.Get("/healthz", health.Liveness())
	r.Get("/readyz", health.Readiness(invalidator))
	r.Handle("/metrics", promhttp.Handler())
	r.Get("/code", router.HandleCode(handler))

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		zl.Info().Str("addr", cfg.Addr).Msg("regioncache-demo: http listen")
		if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	var shutdownErr error
	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		shutdownErr = srv.Shutdown(shutdownCtx)
	case err := <-errCh:
		// The listen error didn't come through ctx, so the depressurization
		// pollers below are still ticking on ctx.Done() alone and would
		// otherwise never return; stop() cancels ctx (and depressurizeCtx,
		// derived from it) so depressurizers.Wait() doesn't hang forever.
		stop()
		shutdownErr = err
	case err := <-fatalCh:
		// OutOfMemoryPressure: spec §7 treats this as fatal to the host, so
		// shut the listener down and let the error reach main()'s
		// zl.Fatal() instead of just failing the triggering request.
		zl.Error().Err(err).Msg("regioncache-demo: out-of-memory pressure is fatal, shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
		stop()
		shutdownErr = err
	}

	if err := depressurizers.Wait(); err != nil {
		zl.Error().Err(err).Msg("regioncache-demo: depressurization poller exited with error")
		if shutdownErr == nil {
			shutdownErr = err
		}
	}
	return shutdownErr
}
