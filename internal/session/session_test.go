package session

import (
	"context"
	"testing"
	"time"

	"glimpse/internal/cache"
	"glimpse/internal/gateway"
	"glimpse/internal/models"
	"glimpse/internal/mutate"
	"glimpse/internal/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func toggleLike(postID string) mutate.ToggleLikeInput {
	return mutate.ToggleLikeInput{PostID: postID, PostOwnerID: "author", Liked: false}
}

func testCacheConfig() cache.Config {
	return cache.Config{
		Capacity:           1000,
		NumShards:          16,
		TTL:                time.Minute,
		EvictionPercentage: 10,
	}
}

func seedFeed(gw *testutil.MemGateway, n int) {
	gw.Seed(gateway.CollectionProfiles, &models.Profile{
		ID: "pr1", UserID: "author", Username: "alice",
	})
	base := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	for i := 0; i < n; i++ {
		gw.Seed(gateway.CollectionPosts, &models.Post{
			ID:        string(rune('a' + i)),
			UserID:    "author",
			ImageURL:  "img",
			CreatedAt: base.Add(-time.Duration(i) * time.Hour),
		})
	}
}

func TestSessionWiresFeedMutationsAndQueries(t *testing.T) {
	gw := testutil.NewMemGateway()
	seedFeed(gw, 3)
	s := New("viewer", gw, testCacheConfig(), nil, nil, nil)
	defer s.Close()
	ctx := context.Background()

	require.NoError(t, s.Feed.LoadMore(ctx))
	require.Len(t, s.Feed.Posts(), 3)

	// An optimistic like shows up in the feed snapshot immediately.
	postID := s.Feed.Posts()[0].ID
	require.NoError(t, s.Mutations.ToggleLike(ctx, toggleLike(postID)))
	for _, p := range s.Feed.Posts() {
		if p.ID == postID {
			assert.True(t, p.IsLiked)
			assert.Equal(t, 1, p.LikesCount)
		}
	}
}

func TestLikeRoundTripReadsExactCount(t *testing.T) {
	gw := testutil.NewMemGateway()
	seedFeed(gw, 1)
	s := New("viewer", gw, testCacheConfig(), nil, nil, nil)
	defer s.Close()
	ctx := context.Background()

	view, err := s.Queries.Post(ctx, "a")
	require.NoError(t, err)
	require.Equal(t, 0, view.LikesCount)

	require.NoError(t, s.Mutations.ToggleLike(ctx, toggleLike("a")))

	// The refetched count already includes the like row; the optimistic
	// delta must not be stacked on top of it.
	view, err = s.Queries.Post(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, 1, view.LikesCount)
	assert.True(t, view.IsLiked)

	view, err = s.Queries.Post(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, 1, view.LikesCount)
}

func TestAddCommentRoundTripReadsExactCount(t *testing.T) {
	gw := testutil.NewMemGateway()
	seedFeed(gw, 1)
	s := New("viewer", gw, testCacheConfig(), nil, nil, nil)
	defer s.Close()
	ctx := context.Background()

	view, err := s.Queries.Post(ctx, "a")
	require.NoError(t, err)
	require.Equal(t, 0, view.CommentsCount)

	_, err = s.Mutations.AddComment(ctx, mutate.AddCommentInput{
		PostID: "a", PostOwnerID: "author", Content: "nice shot",
	})
	require.NoError(t, err)

	view, err = s.Queries.Post(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, 1, view.CommentsCount)
}

func TestFollowRoundTripConsultsStore(t *testing.T) {
	gw := testutil.NewMemGateway()
	seedFeed(gw, 1)
	s := New("viewer", gw, testCacheConfig(), nil, nil, nil)
	defer s.Close()
	ctx := context.Background()

	require.NoError(t, s.Mutations.ToggleFollow(ctx, mutate.ToggleFollowInput{
		TargetUserID: "author", Following: false,
	}))
	got, err := s.Queries.IsFollowing(ctx, "author")
	require.NoError(t, err)
	assert.True(t, got)
	assert.Equal(t, 1, gw.Calls("exists", gateway.CollectionFollows), "read after toggle must refetch the edge")

	require.NoError(t, s.Mutations.ToggleFollow(ctx, mutate.ToggleFollowInput{
		TargetUserID: "author", Following: true,
	}))
	got, err = s.Queries.IsFollowing(ctx, "author")
	require.NoError(t, err)
	assert.False(t, got)
	assert.Equal(t, 2, gw.Calls("exists", gateway.CollectionFollows))
}

func TestIdentityChangeInvalidatesViewerState(t *testing.T) {
	gw := testutil.NewMemGateway()
	seedFeed(gw, 3)
	s := New("viewer", gw, testCacheConfig(), nil, nil, nil)
	defer s.Close()
	ctx := context.Background()

	require.NoError(t, s.Feed.LoadMore(ctx))
	require.Len(t, s.Feed.Posts(), 3)
	s.Mutations.Overlay().ApplyLike("a", true)

	s.SetIdentity("someone-else")

	assert.Empty(t, s.Feed.Posts(), "pager must reset on identity change")
	assert.Equal(t, "someone-else", s.UserID())

	// Overlay cleared: authoritative values only after reload.
	selects := gw.Calls("select", gateway.CollectionPosts)
	require.NoError(t, s.Feed.LoadMore(ctx))
	assert.Equal(t, selects+1, gw.Calls("select", gateway.CollectionPosts), "feed pages must refetch, not replay the cache")
	for _, p := range s.Feed.Posts() {
		assert.Equal(t, 0, p.LikesCount)
	}
}

func TestIdentityChangeToSameValueIsNoop(t *testing.T) {
	gw := testutil.NewMemGateway()
	seedFeed(gw, 3)
	s := New("viewer", gw, testCacheConfig(), nil, nil, nil)
	defer s.Close()

	require.NoError(t, s.Feed.LoadMore(context.Background()))
	s.SetIdentity("viewer")
	assert.Len(t, s.Feed.Posts(), 3)
}

func TestManagerReturnsOneSessionPerUser(t *testing.T) {
	gw := testutil.NewMemGateway()
	m := NewManager(gw, testCacheConfig(), nil, nil, nil)
	defer m.Close()

	a := m.Session("u1")
	b := m.Session("u1")
	other := m.Session("u2")
	anon := m.Session("")

	assert.Same(t, a, b)
	assert.NotSame(t, a, other)
	assert.NotSame(t, a, anon)
	assert.Equal(t, "", anon.UserID())
}

func TestSessionsShareInvalidationBus(t *testing.T) {
	gw := testutil.NewMemGateway()
	seedFeed(gw, 3)
	bus := cache.NewLocalBus()
	m := NewManager(gw, testCacheConfig(), bus, nil, nil)
	defer m.Close()
	ctx := context.Background()

	viewer := m.Session("viewer")
	other := m.Session("other")
	require.NoError(t, viewer.Feed.LoadMore(ctx))
	require.NoError(t, other.Feed.LoadMore(ctx))

	selects := gw.Calls("select", gateway.CollectionPosts)

	// A like by one viewer invalidates every session's cached feed pages.
	require.NoError(t, viewer.Mutations.ToggleLike(ctx, toggleLike("a")))

	other.Feed.Reset()
	require.NoError(t, other.Feed.LoadMore(ctx))
	assert.Equal(t, selects+1, gw.Calls("select", gateway.CollectionPosts))
}
