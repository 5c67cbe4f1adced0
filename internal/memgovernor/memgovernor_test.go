package memgovernor

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeEvictable is an in-memory Evictable the tests drive directly, so
// Depressurize's smallest-first loop can be observed without involving the
// real runtime heap.
type fakeEvictable struct {
	sizes []int // index 0 is smallest-first eviction order
}

func (f *fakeEvictable) EvictSmallest() bool {
	if len(f.sizes) == 0 {
		return false
	}
	f.sizes = f.sizes[1:]
	return true
}

func (f *fakeEvictable) Len() int { return len(f.sizes) }

func TestFreeStats_ZeroMaxBytesFallsBackToSys(t *testing.T) {
	g := New(Config{}, nil)
	freeMB, freePct := g.FreeStats()
	assert.GreaterOrEqual(t, freeMB, 0)
	assert.GreaterOrEqual(t, freePct, 0)
	assert.LessOrEqual(t, freePct, 100)
}

func TestAtLeastFree_WithArtificiallyLowMax(t *testing.T) {
	// A max far below current heap allocation guarantees freePct == 0.
	g := New(Config{MaxHeapBytes: 1}, nil)
	assert.False(t, g.AtLeastFree(1))
}

func TestEnsureFree_FailsBelowThreshold(t *testing.T) {
	g := New(Config{MaxHeapBytes: 1}, nil)
	err := g.EnsureFree(50, false)
	require.Error(t, err)
	var oom *ErrOutOfMemory
	require.ErrorAs(t, err, &oom)
	assert.Equal(t, 50, oom.MinPct)
}

func TestEnsureFree_PassesWithGenerousMax(t *testing.T) {
	g := New(Config{MaxHeapBytes: 1 << 40}, nil) // 1 TiB ceiling, trivially "free"
	err := g.EnsureFree(10, false)
	assert.NoError(t, err)
}

func TestDepressurize_StopsOnEmptyEvictable(t *testing.T) {
	g := New(Config{MaxHeapBytes: 1, IterationInterval: time.Millisecond}, nil)
	target := &fakeEvictable{sizes: []int{8, 9, 51}}
	g.Depressurize(target, 100) // unreachable target: loop must stop by exhausting target instead
	assert.Equal(t, 0, target.Len())
}

func TestDepressurize_NoOpWhenAlreadyAtTarget(t *testing.T) {
	g := New(Config{MaxHeapBytes: 1 << 40}, nil) // effectively 100% free
	target := &fakeEvictable{sizes: []int{1, 2, 3}}
	g.Depressurize(target, 10)
	assert.Equal(t, 3, target.Len())
}

func TestRunLoop_RespectsContextCancellation(t *testing.T) {
	g := New(Config{MaxHeapBytes: 1 << 40}, nil)
	target := &fakeEvictable{}
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	err := g.RunLoop(ctx, target, 5*time.Millisecond, 10, 20)
	assert.NoError(t, err)
}

func TestRunLoop_RejectsNonPositiveInterval(t *testing.T) {
	g := New(Config{}, nil)
	err := g.RunLoop(context.Background(), &fakeEvictable{}, 0, 10, 20)
	assert.Error(t, err)
}
