package query

import (
	"context"
	"fmt"
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

type queryEnv struct {
	gw      *testutil.MemGateway
	cache   *cache.Cache
	ids     *identity.Static
	overlay *mutate.Overlay
	svc     *Service
}

func newQueryEnv(t *testing.T, userID string) *queryEnv {
	t.Helper()
	gw := testutil.NewMemGateway()
	c := cache.New(cache.Config{
		Capacity:           1000,
		NumShards:          16,
		TTL:                time.Minute,
		EvictionPercentage: 10,
	}, nil, nil)
	ids := identity.NewStatic(userID)
	overlay := mutate.NewOverlay()
	return &queryEnv{
		gw:      gw,
		cache:   c,
		ids:     ids,
		overlay: overlay,
		svc:     New(gw, c, aggregate.New(gw), ids, overlay),
	}
}

func TestPostIsCachedAcrossReads(t *testing.T) {
	env := newQueryEnv(t, "viewer")
	env.gw.Seed(gateway.CollectionPosts, &models.Post{ID: "p1", UserID: "author", ImageURL: "img"})
	env.gw.Seed(gateway.CollectionProfiles, &models.Profile{ID: "pr1", UserID: "author", Username: "alice"})
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		view, err := env.svc.Post(ctx, "p1")
		require.NoError(t, err)
		assert.Equal(t, "alice", view.Author.Username)
	}
	assert.Equal(t, 1, env.gw.Calls("selectone", gateway.CollectionPosts))
}

func TestPostMergesOverlayWithoutMutatingCache(t *testing.T) {
	env := newQueryEnv(t, "viewer")
	env.gw.Seed(gateway.CollectionPosts, &models.Post{ID: "p1", UserID: "author", ImageURL: "img"})
	env.gw.Seed(gateway.CollectionProfiles, &models.Profile{ID: "pr1", UserID: "author", Username: "alice"})
	ctx := context.Background()

	// Warm the cache, then record a pending like on top of it.
	view, err := env.svc.Post(ctx, "p1")
	require.NoError(t, err)
	assert.Equal(t, 0, view.LikesCount)

	env.overlay.ApplyLike("p1", true)
	view, err = env.svc.Post(ctx, "p1")
	require.NoError(t, err)
	assert.Equal(t, 1, view.LikesCount)
	assert.True(t, view.IsLiked)

	env.overlay.Drop("p1")
	view, err = env.svc.Post(ctx, "p1")
	require.NoError(t, err)
	assert.Equal(t, 0, view.LikesCount, "cached value must stay authoritative")
}

func TestPostRefetchReconcilesOverlay(t *testing.T) {
	env := newQueryEnv(t, "viewer")
	env.gw.Seed(gateway.CollectionPosts, &models.Post{ID: "p1", UserID: "author", ImageURL: "img"})
	env.gw.Seed(gateway.CollectionProfiles, &models.Profile{ID: "pr1", UserID: "author", Username: "alice"})
	ctx := context.Background()

	view, err := env.svc.Post(ctx, "p1")
	require.NoError(t, err)
	assert.Equal(t, 0, view.LikesCount)

	// A confirmed like: the row is written, the overlay still carries the
	// optimistic delta, and the post entry is invalidated.
	env.overlay.ApplyLike("p1", true)
	env.gw.Seed(gateway.CollectionLikes, &models.Like{ID: "l1", PostID: "p1", UserID: "viewer"})
	env.cache.Invalidate(ctx, cache.PostKey("p1"))

	// The refetched count already includes the like; the overlay delta must
	// not be stacked on top of it.
	view, err = env.svc.Post(ctx, "p1")
	require.NoError(t, err)
	assert.Equal(t, 1, view.LikesCount)
	assert.True(t, view.IsLiked)

	view, err = env.svc.Post(ctx, "p1")
	require.NoError(t, err)
	assert.Equal(t, 1, view.LikesCount)
}

func TestPostNotFound(t *testing.T) {
	env := newQueryEnv(t, "")
	_, err := env.svc.Post(context.Background(), "missing")
	assert.True(t, models.IsNotFound(err))
}

func TestCommentsOldestFirstWithAuthors(t *testing.T) {
	env := newQueryEnv(t, "")
	base := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	env.gw.Seed(gateway.CollectionComments,
		&models.Comment{ID: "c2", PostID: "p1", UserID: "u2", Content: "second", CreatedAt: base.Add(time.Minute)},
		&models.Comment{ID: "c1", PostID: "p1", UserID: "u1", Content: "first", CreatedAt: base},
		&models.Comment{ID: "c3", PostID: "other", UserID: "u1", Content: "elsewhere", CreatedAt: base},
	)
	env.gw.Seed(gateway.CollectionProfiles,
		&models.Profile{ID: "pr1", UserID: "u1", Username: "alice"},
	)

	comments, err := env.svc.Comments(context.Background(), "p1")
	require.NoError(t, err)
	require.Len(t, comments, 2)
	assert.Equal(t, "first", comments[0].Content)
	assert.Equal(t, "second", comments[1].Content)

	// u1 has a profile, u2's is gone; the comment itself survives.
	require.NotNil(t, comments[0].Author)
	assert.Equal(t, "alice", comments[0].Author.Username)
	assert.Nil(t, comments[1].Author)
}

func TestUserPostsNewestFirst(t *testing.T) {
	env := newQueryEnv(t, "")
	base := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	for i := 0; i < 3; i++ {
		env.gw.Seed(gateway.CollectionPosts, &models.Post{
			ID:        fmt.Sprintf("p%d", i),
			UserID:    "author",
			ImageURL:  "img",
			CreatedAt: base.Add(time.Duration(i) * time.Hour),
		})
	}
	env.gw.Seed(gateway.CollectionPosts, &models.Post{ID: "px", UserID: "other", ImageURL: "img", CreatedAt: base})

	posts, err := env.svc.UserPosts(context.Background(), "author")
	require.NoError(t, err)
	require.Len(t, posts, 3)
	assert.Equal(t, "p2", posts[0].ID)
	assert.Equal(t, "p0", posts[2].ID)
}

func TestFollowCounts(t *testing.T) {
	env := newQueryEnv(t, "")
	env.gw.Seed(gateway.CollectionFollows,
		&models.Follow{ID: "f1", FollowerID: "a", FollowingID: "target"},
		&models.Follow{ID: "f2", FollowerID: "b", FollowingID: "target"},
		&models.Follow{ID: "f3", FollowerID: "target", FollowingID: "a"},
	)

	counts, err := env.svc.FollowCounts(context.Background(), "target")
	require.NoError(t, err)
	assert.Equal(t, int64(2), counts.Followers)
	assert.Equal(t, int64(1), counts.Following)
}

func TestIsFollowingAnonymousAndSelfAreFalse(t *testing.T) {
	anon := newQueryEnv(t, "")
	got, err := anon.svc.IsFollowing(context.Background(), "target")
	require.NoError(t, err)
	assert.False(t, got)
	assert.Equal(t, 0, anon.gw.Calls("exists", gateway.CollectionFollows))

	self := newQueryEnv(t, "viewer")
	got, err = self.svc.IsFollowing(context.Background(), "viewer")
	require.NoError(t, err)
	assert.False(t, got)
	assert.Equal(t, 0, self.gw.Calls("exists", gateway.CollectionFollows))
}

func TestIsFollowingOverlayOverridesCachedValue(t *testing.T) {
	env := newQueryEnv(t, "viewer")
	ctx := context.Background()

	got, err := env.svc.IsFollowing(ctx, "target")
	require.NoError(t, err)
	assert.False(t, got)

	// A pending toggle wins over the cached value without another lookup.
	env.overlay.ApplyFollow("viewer", "target", true)
	got, err = env.svc.IsFollowing(ctx, "target")
	require.NoError(t, err)
	assert.True(t, got)
	assert.Equal(t, 1, env.gw.Calls("exists", gateway.CollectionFollows))
}

func TestIsFollowingRefetchReconcilesOverlay(t *testing.T) {
	env := newQueryEnv(t, "viewer")
	ctx := context.Background()

	// A confirmed follow: edge written, optimistic flag still set.
	env.overlay.ApplyFollow("viewer", "target", true)
	env.gw.Seed(gateway.CollectionFollows, &models.Follow{
		ID: "f1", FollowerID: "viewer", FollowingID: "target",
	})

	got, err := env.svc.IsFollowing(ctx, "target")
	require.NoError(t, err)
	assert.True(t, got)
	_, pending := env.overlay.Following("viewer", "target")
	assert.False(t, pending, "optimistic flag must be reconciled away by the fetch")

	// An unfollow elsewhere becomes visible once the entry is invalidated.
	require.NoError(t, env.gw.Delete(ctx, gateway.CollectionFollows, []gateway.Filter{
		gateway.Eq("follower_id", "viewer"),
		gateway.Eq("following_id", "target"),
	}))
	env.cache.Invalidate(ctx, cache.IsFollowingKey("viewer", "target"))

	got, err = env.svc.IsFollowing(ctx, "target")
	require.NoError(t, err)
	assert.False(t, got)
}

func TestIsFollowingReadsEdge(t *testing.T) {
	env := newQueryEnv(t, "viewer")
	env.gw.Seed(gateway.CollectionFollows, &models.Follow{
		ID: "f1", FollowerID: "viewer", FollowingID: "target",
	})

	got, err := env.svc.IsFollowing(context.Background(), "target")
	require.NoError(t, err)
	assert.True(t, got)
}

func TestNotificationsRequireIdentity(t *testing.T) {
	env := newQueryEnv(t, "")
	_, err := env.svc.Notifications(context.Background())
	assert.True(t, models.IsUnauthenticated(err))
}

func TestNotificationsNewestFirstWithEnrichment(t *testing.T) {
	env := newQueryEnv(t, "viewer")
	base := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	env.gw.Seed(gateway.CollectionNotifications,
		&models.Notification{ID: "n1", UserID: "viewer", ActorID: "actor", Type: models.NotificationLike, PostID: "p1", CreatedAt: base},
		&models.Notification{ID: "n2", UserID: "viewer", ActorID: "actor", Type: models.NotificationFollow, CreatedAt: base.Add(time.Hour)},
		&models.Notification{ID: "n3", UserID: "other", ActorID: "actor", Type: models.NotificationLike, CreatedAt: base},
	)
	env.gw.Seed(gateway.CollectionProfiles, &models.Profile{ID: "pr1", UserID: "actor", Username: "bob"})
	env.gw.Seed(gateway.CollectionPosts, &models.Post{ID: "p1", UserID: "viewer", ImageURL: "img-url"})

	views, err := env.svc.Notifications(context.Background())
	require.NoError(t, err)
	require.Len(t, views, 2)

	assert.Equal(t, "n2", views[0].ID)
	require.NotNil(t, views[0].Actor)
	assert.Equal(t, "bob", views[0].Actor.Username)
	assert.Empty(t, views[0].PostImageURL)

	assert.Equal(t, "n1", views[1].ID)
	assert.Equal(t, "img-url", views[1].PostImageURL)
}

func TestNotificationsDeletedPostLeavesImageEmpty(t *testing.T) {
	env := newQueryEnv(t, "viewer")
	env.gw.Seed(gateway.CollectionNotifications, &models.Notification{
		ID: "n1", UserID: "viewer", ActorID: "actor", Type: models.NotificationLike, PostID: "gone",
	})
	env.gw.Seed(gateway.CollectionProfiles, &models.Profile{ID: "pr1", UserID: "actor", Username: "bob"})

	views, err := env.svc.Notifications(context.Background())
	require.NoError(t, err)
	require.Len(t, views, 1)
	assert.Empty(t, views[0].PostImageURL)
}

func TestSearchProfilesMatchesUsernameOrFullName(t *testing.T) {
	env := newQueryEnv(t, "")
	env.gw.Seed(gateway.CollectionProfiles,
		&models.Profile{ID: "1", UserID: "u1", Username: "alice_w", FullName: "Alice Wonder"},
		&models.Profile{ID: "2", UserID: "u2", Username: "bob", FullName: "Bob Alicesson"},
		&models.Profile{ID: "3", UserID: "u3", Username: "carol", FullName: "Carol King"},
	)

	profiles, err := env.svc.SearchProfiles(context.Background(), "alice")
	require.NoError(t, err)
	assert.Len(t, profiles, 2)
}

func TestSearchProfilesRejectsBlankQuery(t *testing.T) {
	env := newQueryEnv(t, "")
	_, err := env.svc.SearchProfiles(context.Background(), "   ")
	assert.True(t, models.IsValidation(err))
	assert.Equal(t, 0, env.gw.Calls("select", gateway.CollectionProfiles))
}

func TestProfileLookupsAreCached(t *testing.T) {
	env := newQueryEnv(t, "viewer")
	env.gw.Seed(gateway.CollectionProfiles, &models.Profile{ID: "pr1", UserID: "viewer", Username: "alice"})
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		_, err := env.svc.ProfileByUserID(ctx, "viewer")
		require.NoError(t, err)
		_, err = env.svc.ProfileByUsername(ctx, "alice")
		require.NoError(t, err)
	}
	// One fetch per distinct key, not per call.
	assert.Equal(t, 2, env.gw.Calls("selectone", gateway.CollectionProfiles))
}
