package regioncache

import (
	"context"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/rs/zerolog"

	"github.com/geoindex/regioncache/internal/core/observability"
	"github.com/geoindex/regioncache/internal/featuredecoder"
	"github.com/geoindex/regioncache/internal/geojson"
	"github.com/geoindex/regioncache/internal/memgovernor"
)

// RemoteDataset fetches the features backing one cache key from whatever
// external dataset backend is configured; internal/soda implements it over
// Socrata's SoQL HTTP API. The abstract cache depends on nothing more than
// this interface, per spec.
type RemoteDataset interface {
	FetchFeatures(ctx context.Context, key Key) ([]geojson.Feature, error)
}

// Hooks supplies the two index-type-specific operations RegionCache needs:
// how to build an index from decoded features, and how big a built index is
// for depressurization's smallest-first ordering.
type Hooks[I any] struct {
	BuildFromFeatures func(features []geojson.Feature, pacer featuredecoder.Pacer) (I, error)
	SizeOf            func(I) int
}

// RegionCache is the capacity- and memory-pressure-bounded, single-flight
// cache of decoded indices shared by SpatialRegionCache and
// HashMapRegionCache. Its slot table is backed by golang-lru/v2, grounded on
// WavesMan-ip-api/internal/revgeo/cache.go's LRU-with-TTL, generalized from a
// fixed AdminUnit value type to the generic future[I] and from TTL expiry to
// capacity- and memory-pressure-driven eviction. golang-lru's onEvicted
// callback fires for capacity eviction, Remove, and Purge alike, so
// evictReason records which call triggered it, set and cleared under mu
// around every table mutation — see DESIGN.md.
type RegionCache[I any] struct {
	mu    sync.Mutex
	table *lru.Cache[Key, *future[I]]
	// evictReason tags the onEvicted callback fired synchronously by the
	// table mutation currently in flight under mu. Empty outside a
	// mutation means the callback is reporting a capacity eviction, since
	// that's the only kind Add can trigger on its own.
	evictReason string

	maxEntries int
	hooks      Hooks[I]
	kind       string
	log        *zerolog.Logger

	governor  *memgovernor.Governor
	targetPct int
}

// Config bounds a RegionCache's capacity and binds it to the memory governor
// that paces its builds and depressurizes it under pressure. Governor may be
// nil to disable pacing and self-depressurization entirely.
type Config struct {
	MaxEntries int
	Governor   *memgovernor.Governor
	TargetPct  int
}

// New constructs a RegionCache bounded to cfg.MaxEntries slots, resolved or
// in flight.
func New[I any](kind string, cfg Config, hooks Hooks[I], log *zerolog.Logger) *RegionCache[I] {
	maxEntries := cfg.MaxEntries
	if maxEntries <= 0 {
		maxEntries = 1
	}
	rc := &RegionCache[I]{
		maxEntries: maxEntries,
		hooks:      hooks,
		kind:       kind,
		log:        log,
		governor:   cfg.Governor,
		targetPct:  cfg.TargetPct,
	}
	// NewWithEvict only errors on size <= 0, which maxEntries above rules out.
	table, _ := lru.NewWithEvict[Key, *future[I]](maxEntries, rc.onEvicted)
	rc.table = table
	return rc
}

// onEvicted fires synchronously, under mu, from whichever table mutation
// triggered it. It owns every metric/log emission for eviction so the three
// call sites (capacity, Reset/ResetAll, EvictSmallest) don't duplicate it.
func (rc *RegionCache[I]) onEvicted(key Key, f *future[I]) {
	reason := rc.evictReason
	if reason == "" {
		reason = "capacity"
	}
	observability.IncRegionCacheEviction(rc.kind, reason)
	if rc.log == nil {
		return
	}
	size := 0
	if f.resolved() {
		size = f.size
	}
	rc.log.Debug().Str("key", key.String()).Str("cache_kind", rc.kind).Str("reason", reason).
		Int("size", size).Msg("regioncache: evicted")
}

// GetFromFeatures resolves key against an already-decoded feature set,
// single-flighting concurrent callers for the same key and evicting by
// capacity when a new slot is installed.
func (rc *RegionCache[I]) GetFromFeatures(ctx context.Context, key Key, features []geojson.Feature) (I, error) {
	return rc.get(ctx, key, func() (I, error) {
		return rc.hooks.BuildFromFeatures(features, rc.pacer())
	})
}

// GetFromSoda resolves key by fetching features from remote, then building
// the index the same way GetFromFeatures does.
func (rc *RegionCache[I]) GetFromSoda(ctx context.Context, remote RemoteDataset, key Key) (I, error) {
	return rc.get(ctx, key, func() (I, error) {
		features, err := remote.FetchFeatures(ctx, key)
		if err != nil {
			var zero I
			return zero, err
		}
		return rc.hooks.BuildFromFeatures(features, rc.pacer())
	})
}

func (rc *RegionCache[I]) pacer() featuredecoder.Pacer {
	if rc.governor == nil {
		return nil
	}
	return &governorPacer{governor: rc.governor, target: rc, targetPct: rc.targetPct}
}

func (rc *RegionCache[I]) get(ctx context.Context, key Key, populate func() (I, error)) (I, error) {
	start := time.Now()
	f, hit := rc.getOrInstall(key)
	if !hit {
		go rc.run(f, key, populate)
	}
	v, err := f.wait(ctx)

	outcome := "hit"
	if !hit {
		outcome = "miss"
	}
	observability.ObserveRegionCacheFetch(rc.kind, outcome, time.Since(start).Seconds())
	return v, err
}

// getOrInstall returns the future for key, installing a fresh one and
// reporting hit=false if none existed yet. Get bumps the table's recency
// order on a hit; Add does the same on install, so in-flight slots aren't
// evicted out from under their waiters.
func (rc *RegionCache[I]) getOrInstall(key Key) (f *future[I], hit bool) {
	rc.mu.Lock()
	defer rc.mu.Unlock()

	if f, ok := rc.table.Get(key); ok {
		return f, true
	}

	f = newFuture[I]()
	rc.evictReason = ""
	rc.table.Add(key, f)
	return f, false
}

func (rc *RegionCache[I]) run(f *future[I], key Key, populate func() (I, error)) {
	start := time.Now()
	v, err := populate()
	size := 0
	if err == nil {
		size = rc.hooks.SizeOf(v)
	}
	observability.ObserveRegionCacheBuild(rc.kind, time.Since(start).Seconds())
	f.resolve(v, size, err)
	observability.SetRegionCacheEntries(rc.kind, rc.Len())
}

// Reset drops a single key, e.g. on an invalidation message naming
// (resource, column). A no-op if the key isn't present.
func (rc *RegionCache[I]) Reset(key Key) {
	rc.mu.Lock()
	defer rc.mu.Unlock()
	rc.evictReason = "invalidate"
	rc.table.Remove(key)
	rc.evictReason = ""
}

// ResetAll clears every slot.
func (rc *RegionCache[I]) ResetAll() {
	rc.mu.Lock()
	defer rc.mu.Unlock()
	rc.evictReason = "invalidate"
	rc.table.Purge()
	rc.evictReason = ""
}

// Len reports the number of slots currently tracked, resolved or in flight.
func (rc *RegionCache[I]) Len() int {
	rc.mu.Lock()
	defer rc.mu.Unlock()
	return rc.table.Len()
}

// EvictSmallest implements memgovernor.Evictable: it evicts the resolved
// slot with the smallest built index, skipping slots still in flight, and
// reports whether it found one to evict. Uses Peek rather than Get while
// scanning so depressurization itself doesn't perturb recency order.
func (rc *RegionCache[I]) EvictSmallest() bool {
	rc.mu.Lock()

	var victim Key
	var victimSize int
	found := false
	for _, key := range rc.table.Keys() {
		f, ok := rc.table.Peek(key)
		if !ok || !f.resolved() || f.err != nil {
			continue
		}
		if !found || f.size < victimSize {
			victim, victimSize, found = key, f.size, true
		}
	}
	if !found {
		rc.mu.Unlock()
		return false
	}

	rc.evictReason = "depressurize"
	rc.table.Remove(victim)
	rc.evictReason = ""
	rc.mu.Unlock()
	return true
}

var _ memgovernor.Evictable = (*RegionCache[int])(nil)

// IndicesBySizeDesc returns every resolved key's String() label paired with
// its built index size, largest first. Keys differing only by envelope
// collapse under Key.String()'s lossy rendering — a deliberate, documented
// design choice, not a bug (see DESIGN.md).
func (rc *RegionCache[I]) IndicesBySizeDesc() []SizeEntry {
	rc.mu.Lock()
	defer rc.mu.Unlock()

	keys := rc.table.Keys()
	out := make([]SizeEntry, 0, len(keys))
	for _, key := range keys {
		f, ok := rc.table.Peek(key)
		if !ok || !f.resolved() || f.err != nil {
			continue
		}
		out = append(out, SizeEntry{Label: key.String(), Size: f.size})
	}
	sortSizeEntriesDesc(out)
	return out
}

// SizeEntry pairs a cache key label with its resolved index size.
type SizeEntry struct {
	Label string
	Size  int
}

func sortSizeEntriesDesc(entries []SizeEntry) {
	for i := 1; i < len(entries); i++ {
		for j := i; j > 0 && entries[j].Size > entries[j-1].Size; j-- {
			entries[j], entries[j-1] = entries[j-1], entries[j]
		}
	}
}
