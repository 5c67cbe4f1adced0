// Package memgovernor estimates process free heap and drives
// memory-pressure eviction ("depressurization") of a region cache.
//
// Grounded on the teacher's process-wide gauge pattern in
// internal/core/observability/metrics.go (a package-level promauto gauge,
// updated from a small poll loop) generalized from HTTP/cache counters to a
// runtime.MemStats probe.
package memgovernor

import (
	"context"
	"errors"
	"runtime"
	"time"

	"github.com/rs/zerolog"

	"github.com/geoindex/regioncache/internal/core/observability"
)

// ErrOutOfMemory is returned by EnsureFree when free heap is below the
// requested threshold.
type ErrOutOfMemory struct {
	FreePct int
	MinPct  int
}

func (e *ErrOutOfMemory) Error() string {
	return "memgovernor: out of memory pressure"
}

var _ error = (*ErrOutOfMemory)(nil)

// Evictable is anything depressurize can shrink: the smallest-first eviction
// primitive shared between the periodic background loop and the decoder's
// every-1000-features cooperative yield.
type Evictable interface {
	// EvictSmallest evicts the single smallest resolved entry and reports
	// whether anything was evicted.
	EvictSmallest() bool
	// Len reports the current resolved entry count.
	Len() int
}

// Governor probes runtime.MemStats for free/max heap. freePct is only
// meaningful when InitialHeap == MaxHeap, i.e. the runtime has pre-allocated
// its full heap (set GOGC and GOMEMLIMIT accordingly in production; the
// free*100/max heuristic silently degrades to "percent of currently
// allocated heap that's idle" otherwise, which is still directionally
// useful but not the strict guarantee the spec calls for).
type Governor struct {
	maxBytes uint64
	log      *zerolog.Logger

	iterationInterval time.Duration
	lastIteration     time.Time
}

// Config configures a Governor.
type Config struct {
	// MaxHeapBytes is the runtime's authoritative maximum heap size (the
	// preallocated ceiling). If zero, FreeStats uses the runtime's current
	// MemStats.Sys (total memory obtained from the OS) as the maximum.
	MaxHeapBytes uint64
	// IterationInterval bounds how often Depressurize will actually run its
	// eviction loop body, avoiding pathological churn under sustained
	// pressure.
	IterationInterval time.Duration
}

// New constructs a Governor.
func New(cfg Config, log *zerolog.Logger) *Governor {
	interval := cfg.IterationInterval
	if interval <= 0 {
		interval = 50 * time.Millisecond
	}
	return &Governor{
		maxBytes:          cfg.MaxHeapBytes,
		log:               log,
		iterationInterval: interval,
	}
}

// FreeStats returns (freeMB, freePct) computed from the current heap
// allocation against the configured max.
func (g *Governor) FreeStats() (freeMB int, freePct int) {
	var ms runtime.MemStats
	runtime.ReadMemStats(&ms)

	max := g.maxBytes
	if max == 0 {
		max = ms.Sys
	}
	if max == 0 {
		return 0, 100
	}

	var free uint64
	if ms.HeapAlloc < max {
		free = max - ms.HeapAlloc
	}
	freeMB = int(free / (1024 * 1024))
	freePct = int(free * 100 / max)
	observability.SetRegionCacheHeapFreePercent(freePct)
	return freeMB, freePct
}

// AtLeastFree reports whether free heap is at or above minPct.
func (g *Governor) AtLeastFree(minPct int) bool {
	_, pct := g.FreeStats()
	return pct >= minPct
}

// EnsureFree fails with ErrOutOfMemory if free heap is below minPct.
// runCompaction requests a GC cycle before the final check, giving the
// runtime a chance to reclaim garbage ahead of a hard failure.
func (g *Governor) EnsureFree(minPct int, runCompaction bool) error {
	if runCompaction {
		runtime.GC()
	}
	_, pct := g.FreeStats()
	if pct < minPct {
		return &ErrOutOfMemory{FreePct: pct, MinPct: minPct}
	}
	return nil
}

// Depressurize evicts target's smallest entries until freePct reaches
// targetPct or target is empty, spacing iterations by at least
// IterationInterval to avoid pathological churn under sustained pressure.
func (g *Governor) Depressurize(target Evictable, targetPct int) {
	for target.Len() > 0 {
		_, pct := g.FreeStats()
		if pct >= targetPct {
			return
		}
		if since := time.Since(g.lastIteration); since < g.iterationInterval {
			time.Sleep(g.iterationInterval - since)
		}
		g.lastIteration = time.Now()

		if !target.EvictSmallest() {
			return
		}
		if g.log != nil {
			_, newPct := g.FreeStats()
			g.log.Info().Int("free_pct", newPct).Int("target_pct", targetPct).Msg("memgovernor: evicted smallest entry")
		}
	}
}

// RunLoop polls FreeStats every pollInterval and calls Depressurize when free
// heap drops below minPct, until ctx is canceled. This is the optional
// background task described in spec.md §5's "memory pressure loop".
func (g *Governor) RunLoop(ctx context.Context, target Evictable, pollInterval time.Duration, minPct, targetPct int) error {
	if pollInterval <= 0 {
		return errors.New("memgovernor: pollInterval must be positive")
	}
	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if !g.AtLeastFree(minPct) {
				g.Depressurize(target, targetPct)
			}
		}
	}
}
