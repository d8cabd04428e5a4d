package feed

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"glimpse/internal/aggregate"
	"glimpse/internal/cache"
	"glimpse/internal/gateway"
	"glimpse/internal/identity"
	"glimpse/internal/models"
	"glimpse/internal/mutate"
	"glimpse/internal/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type pagerEnv struct {
	gw      *testutil.MemGateway
	cache   *cache.Cache
	overlay *mutate.Overlay
	pager   *Pager
}

// newPagerEnv seeds n posts by one author, newest first as post-0.
func newPagerEnv(t *testing.T, n int) *pagerEnv {
	t.Helper()
	gw := testutil.NewMemGateway()
	gw.Seed(gateway.CollectionProfiles, &models.Profile{
		ID: "pr1", UserID: "author", Username: "alice",
	})
	base := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	for i := 0; i < n; i++ {
		gw.Seed(gateway.CollectionPosts, &models.Post{
			ID:        fmt.Sprintf("post-%d", i),
			UserID:    "author",
			ImageURL:  "img",
			CreatedAt: base.Add(-time.Duration(i) * time.Hour),
		})
	}

	c := cache.New(cache.Config{
		Capacity:           1000,
		NumShards:          16,
		TTL:                time.Minute,
		EvictionPercentage: 10,
	}, nil, nil)
	overlay := mutate.NewOverlay()
	pager := NewPager(gw, aggregate.New(gw), c, identity.NewStatic("viewer"), overlay)
	return &pagerEnv{gw: gw, cache: c, overlay: overlay, pager: pager}
}

func TestLoadMorePagesUntilExhausted(t *testing.T) {
	env := newPagerEnv(t, 23)
	ctx := context.Background()

	require.Equal(t, StateEmpty, env.pager.State())

	require.NoError(t, env.pager.LoadMore(ctx))
	assert.Equal(t, StateLoaded, env.pager.State())
	assert.Len(t, env.pager.Posts(), 10)

	require.NoError(t, env.pager.LoadMore(ctx))
	assert.Len(t, env.pager.Posts(), 20)

	require.NoError(t, env.pager.LoadMore(ctx))
	assert.Equal(t, StateExhausted, env.pager.State())
	assert.Len(t, env.pager.Posts(), 23)

	// Exhausted: further triggers hit neither cache nor store.
	selects := env.gw.Calls("select", gateway.CollectionPosts)
	require.NoError(t, env.pager.LoadMore(ctx))
	assert.Equal(t, selects, env.gw.Calls("select", gateway.CollectionPosts))
}

func TestLoadMoreExactMultipleOfPageSize(t *testing.T) {
	env := newPagerEnv(t, 20)
	ctx := context.Background()

	require.NoError(t, env.pager.LoadMore(ctx))
	require.NoError(t, env.pager.LoadMore(ctx))
	assert.Equal(t, StateLoaded, env.pager.State(), "a full page never proves exhaustion")

	// The empty third page does.
	require.NoError(t, env.pager.LoadMore(ctx))
	assert.Equal(t, StateExhausted, env.pager.State())
	assert.Len(t, env.pager.Posts(), 20)
}

func TestLoadMoreOrdersNewestFirstWithIDTieBreak(t *testing.T) {
	gw := testutil.NewMemGateway()
	gw.Seed(gateway.CollectionProfiles, &models.Profile{ID: "pr1", UserID: "author", Username: "alice"})
	at := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	for _, id := range []string{"b", "a", "c"} {
		gw.Seed(gateway.CollectionPosts, &models.Post{ID: id, UserID: "author", ImageURL: "img", CreatedAt: at})
	}

	c := cache.New(cache.DefaultConfig(), nil, nil)
	pager := NewPager(gw, aggregate.New(gw), c, identity.NewStatic(""), nil)
	require.NoError(t, pager.LoadMore(context.Background()))

	posts := pager.Posts()
	require.Len(t, posts, 3)
	assert.Equal(t, "c", posts[0].ID)
	assert.Equal(t, "b", posts[1].ID)
	assert.Equal(t, "a", posts[2].ID)
}

func TestLoadMoreDeduplicatesAcrossPages(t *testing.T) {
	env := newPagerEnv(t, 23)
	ctx := context.Background()

	require.NoError(t, env.pager.LoadMore(ctx))
	require.Len(t, env.pager.Posts(), 10)

	// A post published mid-scroll shifts every offset by one, so the next
	// page re-serves the last post of the previous one.
	env.gw.Seed(gateway.CollectionPosts, &models.Post{
		ID:        "post-new",
		UserID:    "author",
		ImageURL:  "img",
		CreatedAt: time.Date(2026, 8, 2, 12, 0, 0, 0, time.UTC),
	})
	env.cache.InvalidateGroup(ctx, cache.GroupFeed)

	require.NoError(t, env.pager.LoadMore(ctx))

	posts := env.pager.Posts()
	seen := map[string]bool{}
	for _, p := range posts {
		assert.False(t, seen[p.ID], "post %s appeared twice", p.ID)
		seen[p.ID] = true
	}
	assert.Len(t, posts, 19)
}

func TestLoadMoreConcurrentTriggersFetchOnce(t *testing.T) {
	env := newPagerEnv(t, 23)
	ctx := context.Background()

	entered := make(chan struct{}, 1)
	release := make(chan struct{})
	env.gw.Hook = func(op, collection string) {
		if op == "select" && collection == gateway.CollectionPosts {
			select {
			case entered <- struct{}{}:
			default:
			}
			<-release
		}
	}

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		assert.NoError(t, env.pager.LoadMore(ctx))
	}()
	<-entered

	// A second trigger while the first is in flight is a no-op.
	require.NoError(t, env.pager.LoadMore(ctx))
	close(release)
	wg.Wait()

	assert.Equal(t, 1, env.gw.Calls("select", gateway.CollectionPosts))
	assert.Len(t, env.pager.Posts(), 10)
}

func TestLoadMoreErrorLeavesPagerRetryable(t *testing.T) {
	env := newPagerEnv(t, 23)
	ctx := context.Background()

	env.gw.FailWith("select", gateway.CollectionPosts, models.NewGatewayError(assert.AnError))
	require.Error(t, env.pager.LoadMore(ctx))
	assert.Equal(t, StateEmpty, env.pager.State())
	assert.Empty(t, env.pager.Posts())

	env.gw.FailWith("select", gateway.CollectionPosts, nil)
	require.NoError(t, env.pager.LoadMore(ctx))
	assert.Len(t, env.pager.Posts(), 10)
}

func TestOverlayDroppedWhenAuthoritativeRowsArrive(t *testing.T) {
	env := newPagerEnv(t, 5)
	ctx := context.Background()

	env.overlay.ApplyLike("post-2", true)
	require.NoError(t, env.pager.LoadMore(ctx))

	for _, p := range env.pager.Posts() {
		if p.ID == "post-2" {
			assert.Equal(t, 0, p.LikesCount, "refetched rows are authoritative")
			assert.False(t, p.IsLiked)
		}
	}
}

func TestPostsMergesOverlay(t *testing.T) {
	env := newPagerEnv(t, 5)
	ctx := context.Background()

	require.NoError(t, env.pager.LoadMore(ctx))
	env.overlay.ApplyLike("post-2", true)
	env.overlay.ApplyComment("post-2")

	for _, p := range env.pager.Posts() {
		if p.ID == "post-2" {
			assert.Equal(t, 1, p.LikesCount)
			assert.Equal(t, 1, p.CommentsCount)
			assert.True(t, p.IsLiked)
		}
	}
}

func TestRemoveAndRestore(t *testing.T) {
	env := newPagerEnv(t, 5)
	ctx := context.Background()
	require.NoError(t, env.pager.LoadMore(ctx))

	env.pager.Remove("post-1")
	for _, p := range env.pager.Posts() {
		require.NotEqual(t, "post-1", p.ID)
	}
	assert.Len(t, env.pager.Posts(), 4)

	env.pager.Restore("post-1")
	posts := env.pager.Posts()
	require.Len(t, posts, 5)
	assert.Equal(t, "post-1", posts[1].ID, "restored into feed order")
}

func TestResetStartsOver(t *testing.T) {
	env := newPagerEnv(t, 23)
	ctx := context.Background()

	require.NoError(t, env.pager.LoadMore(ctx))
	require.NoError(t, env.pager.LoadMore(ctx))
	env.pager.Reset()

	assert.Equal(t, StateEmpty, env.pager.State())
	assert.Empty(t, env.pager.Posts())

	require.NoError(t, env.pager.LoadMore(ctx))
	assert.Len(t, env.pager.Posts(), 10)
}
