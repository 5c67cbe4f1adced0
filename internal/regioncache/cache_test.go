package regioncache

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/geoindex/regioncache/internal/featuredecoder"
	"github.com/geoindex/regioncache/internal/geojson"
)

// intHooks builds a trivial int index whose size is its own value, letting
// tests control build latency, errors, and call counts directly instead of
// going through a real spatial/hashmap index.
func intHooks(buildCalls *atomic.Int32, delay time.Duration, failOn string) Hooks[int] {
	return Hooks[int]{
		BuildFromFeatures: func(features []geojson.Feature, _ featuredecoder.Pacer) (int, error) {
			buildCalls.Add(1)
			if delay > 0 {
				time.Sleep(delay)
			}
			if failOn != "" && len(features) > 0 && features[0].Type == failOn {
				return 0, errors.New("build failed: " + failOn)
			}
			return len(features), nil
		},
		SizeOf: func(v int) int { return v },
	}
}

func newTestCache(buildCalls *atomic.Int32, maxEntries int, delay time.Duration) *RegionCache[int] {
	var calls atomic.Int32
	if buildCalls == nil {
		buildCalls = &calls
	}
	return New("test", Config{MaxEntries: maxEntries}, intHooks(buildCalls, delay, ""), nil)
}

func featuresOfLen(n int) []geojson.Feature {
	return make([]geojson.Feature, n)
}

func TestGetFromFeatures_SingleFlightUnderConcurrency(t *testing.T) {
	var calls atomic.Int32
	rc := newTestCache(&calls, 10, 30*time.Millisecond)
	key := NewKey("wards", "the_geom", nil)

	const n = 50
	var wg sync.WaitGroup
	results := make([]int, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			v, err := rc.GetFromFeatures(context.Background(), key, featuresOfLen(7))
			require.NoError(t, err)
			results[i] = v
		}(i)
	}
	wg.Wait()

	assert.Equal(t, int32(1), calls.Load(), "exactly one build must run per key")
	for _, v := range results {
		assert.Equal(t, 7, v)
	}
}

func TestGetFromFeatures_DistinctKeysBuildIndependently(t *testing.T) {
	var calls atomic.Int32
	rc := newTestCache(&calls, 10, 0)

	_, err := rc.GetFromFeatures(context.Background(), NewKey("wards", "geom", nil), featuresOfLen(3))
	require.NoError(t, err)
	_, err = rc.GetFromFeatures(context.Background(), NewKey("zips", "geom", nil), featuresOfLen(5))
	require.NoError(t, err)

	assert.Equal(t, int32(2), calls.Load())
}

func TestGetFromFeatures_FailurePropagatesToAllWaiters(t *testing.T) {
	var calls atomic.Int32
	hooks := intHooks(&calls, 10*time.Millisecond, "boom")
	rc := New("test", Config{MaxEntries: 10}, hooks, nil)
	key := NewKey("bad", "geom", nil)

	const n = 10
	var wg sync.WaitGroup
	errs := make([]error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := rc.GetFromFeatures(context.Background(), key, []geojson.Feature{{Type: "boom"}})
			errs[i] = err
		}(i)
	}
	wg.Wait()

	assert.Equal(t, int32(1), calls.Load())
	for _, err := range errs {
		require.Error(t, err)
	}
}

func TestCapacity_EvictsLeastRecentlyUsed(t *testing.T) {
	rc := newTestCache(nil, 2, 0)
	ctx := context.Background()

	_, err := rc.GetFromFeatures(ctx, NewKey("a", "c", nil), featuresOfLen(1))
	require.NoError(t, err)
	_, err = rc.GetFromFeatures(ctx, NewKey("b", "c", nil), featuresOfLen(1))
	require.NoError(t, err)
	assert.Equal(t, 2, rc.Len())

	// Touch "a" so "b" becomes the least-recently-used slot.
	_, err = rc.GetFromFeatures(ctx, NewKey("a", "c", nil), featuresOfLen(1))
	require.NoError(t, err)

	_, err = rc.GetFromFeatures(ctx, NewKey("d", "c", nil), featuresOfLen(1))
	require.NoError(t, err)

	assert.LessOrEqual(t, rc.Len(), 2)
	entries := rc.IndicesBySizeDesc()
	labels := map[string]bool{}
	for _, e := range entries {
		labels[e.Label] = true
	}
	assert.True(t, labels["a:c"], "recently touched key must survive capacity eviction")
	assert.False(t, labels["b:c"], "least-recently-used key must be evicted")
}

func TestResetAll_ClearsEverySlot(t *testing.T) {
	rc := newTestCache(nil, 10, 0)
	ctx := context.Background()
	_, err := rc.GetFromFeatures(ctx, NewKey("a", "c", nil), featuresOfLen(1))
	require.NoError(t, err)

	rc.ResetAll()
	assert.Empty(t, rc.IndicesBySizeDesc())
	assert.Equal(t, 0, rc.Len())
}

func TestReset_DropsOnlyNamedKey(t *testing.T) {
	rc := newTestCache(nil, 10, 0)
	ctx := context.Background()
	keyA := NewKey("a", "c", nil)
	keyB := NewKey("b", "c", nil)
	_, err := rc.GetFromFeatures(ctx, keyA, featuresOfLen(1))
	require.NoError(t, err)
	_, err = rc.GetFromFeatures(ctx, keyB, featuresOfLen(1))
	require.NoError(t, err)

	rc.Reset(keyA)
	assert.Equal(t, 1, rc.Len())
	entries := rc.IndicesBySizeDesc()
	require.Len(t, entries, 1)
	assert.Equal(t, "b:c", entries[0].Label)
}

// TestIndicesBySizeDesc_OrdersBySizeDescending is spec.md §8 scenario 6:
// three entries with coordinate counts 51, 9, 8 must come back (51, 9, 8).
func TestIndicesBySizeDesc_OrdersBySizeDescending(t *testing.T) {
	rc := newTestCache(nil, 10, 0)
	ctx := context.Background()

	_, err := rc.GetFromFeatures(ctx, NewKey("wards", "geom", nil), featuresOfLen(51))
	require.NoError(t, err)
	_, err = rc.GetFromFeatures(ctx, NewKey("zips", "geom", nil), featuresOfLen(9))
	require.NoError(t, err)
	_, err = rc.GetFromFeatures(ctx, NewKey("zips8", "geom", nil), featuresOfLen(8))
	require.NoError(t, err)

	entries := rc.IndicesBySizeDesc()
	require.Len(t, entries, 3)
	sizes := []int{entries[0].Size, entries[1].Size, entries[2].Size}
	assert.Equal(t, []int{51, 9, 8}, sizes)
}

func TestIndicesBySizeDesc_OmitsFailedAndInFlightEntries(t *testing.T) {
	var calls atomic.Int32
	hooks := intHooks(&calls, 50*time.Millisecond, "boom")
	rc := New("test", Config{MaxEntries: 10}, hooks, nil)
	ctx := context.Background()

	_, err := rc.GetFromFeatures(ctx, NewKey("bad", "c", nil), []geojson.Feature{{Type: "boom"}})
	require.Error(t, err)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		_, _ = rc.GetFromFeatures(ctx, NewKey("slow", "c", nil), featuresOfLen(1))
	}()

	assert.Empty(t, rc.IndicesBySizeDesc())
	wg.Wait()
}

func TestEvictSmallest_PrefersSmallestOverLRUOrder(t *testing.T) {
	rc := newTestCache(nil, 10, 0)
	ctx := context.Background()

	_, err := rc.GetFromFeatures(ctx, NewKey("big", "c", nil), featuresOfLen(100))
	require.NoError(t, err)
	_, err = rc.GetFromFeatures(ctx, NewKey("small", "c", nil), featuresOfLen(1))
	require.NoError(t, err)

	ok := rc.EvictSmallest()
	require.True(t, ok)

	entries := rc.IndicesBySizeDesc()
	require.Len(t, entries, 1)
	assert.Equal(t, "big:c", entries[0].Label)
}

func TestEvictSmallest_EmptyCacheReturnsFalse(t *testing.T) {
	rc := newTestCache(nil, 10, 0)
	assert.False(t, rc.EvictSmallest())
}

func TestGetFromSoda_PropagatesRemoteFetchError(t *testing.T) {
	rc := newTestCache(nil, 10, 0)
	remote := fakeRemote{err: errors.New("upstream down")}
	_, err := rc.GetFromSoda(context.Background(), remote, NewKey("wards", "geom", nil))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "upstream down")
}

func TestGetFromSoda_BuildsFromFetchedFeatures(t *testing.T) {
	rc := newTestCache(nil, 10, 0)
	remote := fakeRemote{features: featuresOfLen(4)}
	v, err := rc.GetFromSoda(context.Background(), remote, NewKey("wards", "geom", nil))
	require.NoError(t, err)
	assert.Equal(t, 4, v)
}

type fakeRemote struct {
	features []geojson.Feature
	err      error
}

func (f fakeRemote) FetchFeatures(_ context.Context, _ Key) ([]geojson.Feature, error) {
	return f.features, f.err
}

func TestGetFromFeatures_ContextCancellationDoesNotAbortPopulation(t *testing.T) {
	var calls atomic.Int32
	rc := newTestCache(&calls, 10, 30*time.Millisecond)
	key := NewKey("wards", "geom", nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := rc.GetFromFeatures(ctx, key, featuresOfLen(3))
	assert.ErrorIs(t, err, context.Canceled)

	// A second, uncancelled caller for the same key must still observe the
	// in-flight population succeed rather than trigger a second build.
	v, err := rc.GetFromFeatures(context.Background(), key, featuresOfLen(3))
	require.NoError(t, err)
	assert.Equal(t, 3, v)
	assert.Equal(t, int32(1), calls.Load())
}
