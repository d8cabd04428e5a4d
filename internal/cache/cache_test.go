package cache

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig() Config {
	return Config{
		Capacity:           1000,
		NumShards:          16,
		TTL:                time.Minute,
		EvictionPercentage: 10,
	}
}

func TestGetOrFetchCachesResult(t *testing.T) {
	c := New(testConfig(), nil, nil)
	ctx := context.Background()

	var calls int32
	fetch := func(ctx context.Context) (string, error) {
		atomic.AddInt32(&calls, 1)
		return "value", nil
	}

	for i := 0; i < 3; i++ {
		got, err := GetOrFetch(ctx, c, "post::p1", fetch)
		require.NoError(t, err)
		assert.Equal(t, "value", got)
	}
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestGetOrFetchCoalescesConcurrentCallers(t *testing.T) {
	c := New(testConfig(), nil, nil)
	ctx := context.Background()

	var calls int32
	release := make(chan struct{})
	fetch := func(ctx context.Context) (int, error) {
		atomic.AddInt32(&calls, 1)
		<-release
		return 42, nil
	}

	var wg sync.WaitGroup
	results := make([]int, 8)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			got, err := GetOrFetch(ctx, c, "feed::page::0", fetch)
			assert.NoError(t, err)
			results[i] = got
		}(i)
	}

	// Wait for the single fetch to be in flight, then let it finish.
	require.Eventually(t, func() bool {
		return c.IsFetching("feed::page::0")
	}, time.Second, time.Millisecond)
	close(release)
	wg.Wait()

	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
	for _, r := range results {
		assert.Equal(t, 42, r)
	}
	assert.False(t, c.IsFetching("feed::page::0"))
}

func TestFailedFetchIsNotCached(t *testing.T) {
	c := New(testConfig(), nil, nil)
	ctx := context.Background()

	var calls int32
	boom := errors.New("store down")
	fetch := func(ctx context.Context) (string, error) {
		if atomic.AddInt32(&calls, 1) == 1 {
			return "", boom
		}
		return "recovered", nil
	}

	_, err := GetOrFetch(ctx, c, "post::p1", fetch)
	require.Error(t, err)

	got, err := GetOrFetch(ctx, c, "post::p1", fetch)
	require.NoError(t, err)
	assert.Equal(t, "recovered", got)
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
}

func TestInvalidateForcesRefetch(t *testing.T) {
	c := New(testConfig(), nil, nil)
	ctx := context.Background()

	var calls int32
	fetch := func(ctx context.Context) (int, error) {
		return int(atomic.AddInt32(&calls, 1)), nil
	}

	got, err := GetOrFetch(ctx, c, PostKey("p1"), fetch)
	require.NoError(t, err)
	assert.Equal(t, 1, got)

	c.Invalidate(ctx, PostKey("p1"))

	got, err = GetOrFetch(ctx, c, PostKey("p1"), fetch)
	require.NoError(t, err)
	assert.Equal(t, 2, got)
}

func TestInvalidateGroupMatchesWholeSegments(t *testing.T) {
	c := New(testConfig(), nil, nil)
	ctx := context.Background()

	counters := map[string]*int32{}
	fetchFor := func(key string) FetchFn[int] {
		n := new(int32)
		counters[key] = n
		return func(ctx context.Context) (int, error) {
			return int(atomic.AddInt32(n, 1)), nil
		}
	}

	keys := []string{
		FeedPageKey(0),
		FeedPageKey(1),
		"feedback::x", // same prefix bytes, different group
		PostKey("p1"),
	}
	fetches := map[string]FetchFn[int]{}
	for _, key := range keys {
		fetches[key] = fetchFor(key)
		_, err := GetOrFetch(ctx, c, key, fetches[key])
		require.NoError(t, err)
	}

	c.InvalidateGroup(ctx, GroupFeed)

	for _, key := range keys {
		_, err := GetOrFetch(ctx, c, key, fetches[key])
		require.NoError(t, err)
	}

	assert.Equal(t, int32(2), *counters[FeedPageKey(0)])
	assert.Equal(t, int32(2), *counters[FeedPageKey(1)])
	assert.Equal(t, int32(1), *counters["feedback::x"], "sibling group must survive")
	assert.Equal(t, int32(1), *counters[PostKey("p1")])
}

func TestKeyGroup(t *testing.T) {
	assert.Equal(t, GroupFeed, KeyGroup(FeedPageKey(3)))
	assert.Equal(t, GroupIsFollowing, KeyGroup(IsFollowingKey("a", "b")))
	assert.Equal(t, "bare", KeyGroup("bare"))
}
