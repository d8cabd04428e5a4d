// Package query serves the non-feed reads: single posts, comment lists,
// profiles, follow state, and the notification inbox. Results flow through
// the query cache; identity-dependent views merge the optimistic overlay.
package query

import (
	"context"
	"strings"

	"glimpse/internal/aggregate"
	"glimpse/internal/cache"
	"glimpse/internal/gateway"
	"glimpse/internal/identity"
	"glimpse/internal/models"
	"glimpse/internal/mutate"

	"golang.org/x/sync/errgroup"
)

// NotificationPageLimit bounds the notification inbox read.
const NotificationPageLimit = 50

// SearchLimit bounds profile search results.
const SearchLimit = 20

// Service exposes the cached read operations.
type Service struct {
	gw      gateway.Gateway
	cache   *cache.Cache
	agg     *aggregate.Aggregator
	ids     identity.Provider
	overlay *mutate.Overlay
}

// New wires a query service. overlay may be nil.
func New(
	gw gateway.Gateway,
	c *cache.Cache,
	agg *aggregate.Aggregator,
	ids identity.Provider,
	overlay *mutate.Overlay,
) *Service {
	return &Service{gw: gw, cache: c, agg: agg, ids: ids, overlay: overlay}
}

// Post returns one fully-aggregated post.
func (s *Service) Post(ctx context.Context, postID string) (*models.AggregatedPost, error) {
	view, err := cache.GetOrFetch(ctx, s.cache, cache.PostKey(postID), func(ctx context.Context) (*models.AggregatedPost, error) {
		var post models.Post
		if err := s.gw.SelectOne(ctx, gateway.Query{
			Collection: gateway.CollectionPosts,
			Filters:    []gateway.Filter{gateway.Eq("id", postID)},
		}, &post); err != nil {
			return nil, err
		}
		viewer, _ := s.ids.Current(ctx)
		aggregated, err := s.agg.One(ctx, &post, viewer)
		if err != nil {
			return nil, err
		}
		// Fresh authoritative counts; pending optimistic deltas for this
		// post are reconciled away.
		if s.overlay != nil {
			s.overlay.Drop(postID)
		}
		return aggregated, nil
	})
	if err != nil {
		return nil, err
	}

	clone := *view
	if s.overlay != nil {
		s.overlay.Apply(&clone)
	}
	return &clone, nil
}

// Comments returns a post's comments oldest-first, each with its author
// summary. A comment whose author profile is gone keeps a nil author; only
// gateway failures abort the read.
func (s *Service) Comments(ctx context.Context, postID string) ([]*models.CommentView, error) {
	return cache.GetOrFetch(ctx, s.cache, cache.CommentsKey(postID), func(ctx context.Context) ([]*models.CommentView, error) {
		var comments []*models.Comment
		if err := s.gw.Select(ctx, gateway.Query{
			Collection: gateway.CollectionComments,
			Filters:    []gateway.Filter{gateway.Eq("post_id", postID)},
			Order:      []gateway.OrderBy{{Field: "created_at"}, {Field: "id"}},
		}, &comments); err != nil {
			return nil, err
		}

		views := make([]*models.CommentView, len(comments))
		g, gctx := errgroup.WithContext(ctx)
		for i, comment := range comments {
			g.Go(func() error {
				view := &models.CommentView{Comment: *comment}
				var profile models.Profile
				err := s.gw.SelectOne(gctx, gateway.Query{
					Collection: gateway.CollectionProfiles,
					Filters:    []gateway.Filter{gateway.Eq("user_id", comment.UserID)},
				}, &profile)
				switch {
				case err == nil:
					view.Author = profile.Summary()
				case !models.IsNotFound(err):
					return err
				}
				views[i] = view
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return nil, err
		}
		return views, nil
	})
}

// UserPosts returns one owner's raw posts, newest first.
func (s *Service) UserPosts(ctx context.Context, userID string) ([]*models.Post, error) {
	return cache.GetOrFetch(ctx, s.cache, cache.UserPostsKey(userID), func(ctx context.Context) ([]*models.Post, error) {
		var posts []*models.Post
		err := s.gw.Select(ctx, gateway.Query{
			Collection: gateway.CollectionPosts,
			Filters:    []gateway.Filter{gateway.Eq("user_id", userID)},
			Order: []gateway.OrderBy{
				{Field: "created_at", Desc: true},
				{Field: "id", Desc: true},
			},
		}, &posts)
		return posts, err
	})
}

// ProfileByUserID returns a profile by its owner's user id.
func (s *Service) ProfileByUserID(ctx context.Context, userID string) (*models.Profile, error) {
	return cache.GetOrFetch(ctx, s.cache, cache.ProfileKey(userID), func(ctx context.Context) (*models.Profile, error) {
		var profile models.Profile
		err := s.gw.SelectOne(ctx, gateway.Query{
			Collection: gateway.CollectionProfiles,
			Filters:    []gateway.Filter{gateway.Eq("user_id", userID)},
		}, &profile)
		if err != nil {
			return nil, err
		}
		return &profile, nil
	})
}

// CurrentProfile returns the viewer's own profile.
func (s *Service) CurrentProfile(ctx context.Context) (*models.Profile, error) {
	uid, ok := s.ids.Current(ctx)
	if !ok {
		return nil, models.NewUnauthenticatedError("Not authenticated")
	}
	return s.ProfileByUserID(ctx, uid)
}

// ProfileByUsername returns a profile by username.
func (s *Service) ProfileByUsername(ctx context.Context, username string) (*models.Profile, error) {
	return cache.GetOrFetch(ctx, s.cache, cache.ProfileByUsernameKey(username), func(ctx context.Context) (*models.Profile, error) {
		var profile models.Profile
		err := s.gw.SelectOne(ctx, gateway.Query{
			Collection: gateway.CollectionProfiles,
			Filters:    []gateway.Filter{gateway.Eq("username", username)},
		}, &profile)
		if err != nil {
			return nil, err
		}
		return &profile, nil
	})
}

// FollowCounts returns the derived follower/following counts for a user,
// computed as two parallel count queries.
func (s *Service) FollowCounts(ctx context.Context, userID string) (*models.FollowCounts, error) {
	return cache.GetOrFetch(ctx, s.cache, cache.FollowCountsKey(userID), func(ctx context.Context) (*models.FollowCounts, error) {
		counts := &models.FollowCounts{}
		g, gctx := errgroup.WithContext(ctx)
		g.Go(func() error {
			n, err := s.gw.Count(gctx, gateway.Query{
				Collection: gateway.CollectionFollows,
				Filters:    []gateway.Filter{gateway.Eq("following_id", userID)},
			})
			counts.Followers = n
			return err
		})
		g.Go(func() error {
			n, err := s.gw.Count(gctx, gateway.Query{
				Collection: gateway.CollectionFollows,
				Filters:    []gateway.Filter{gateway.Eq("follower_id", userID)},
			})
			counts.Following = n
			return err
		})
		if err := g.Wait(); err != nil {
			return nil, err
		}
		return counts, nil
	})
}

// IsFollowing reports whether the viewer follows the target. Without an
// identity, or toward oneself, the answer is always false with no lookup.
func (s *Service) IsFollowing(ctx context.Context, targetUserID string) (bool, error) {
	viewer, ok := s.ids.Current(ctx)
	if !ok || viewer == targetUserID {
		return false, nil
	}
	following, err := cache.GetOrFetch(ctx, s.cache, cache.IsFollowingKey(viewer, targetUserID), func(ctx context.Context) (bool, error) {
		exists, err := s.gw.Exists(ctx, gateway.Query{
			Collection: gateway.CollectionFollows,
			Filters: []gateway.Filter{
				gateway.Eq("follower_id", viewer),
				gateway.Eq("following_id", targetUserID),
			},
		})
		if err != nil {
			return false, err
		}
		// Fresh authoritative edge; the pending optimistic flag for this
		// pair is reconciled away.
		if s.overlay != nil {
			s.overlay.DropFollow(viewer, targetUserID)
		}
		return exists, nil
	})
	if err != nil {
		return false, err
	}
	if s.overlay != nil {
		if pending, ok := s.overlay.Following(viewer, targetUserID); ok {
			return pending, nil
		}
	}
	return following, nil
}

// Notifications returns the viewer's newest notifications, each enriched
// with the actor's summary and, when the notification references a post,
// that post's image. A referenced post deleted in the meantime leaves the
// image empty.
func (s *Service) Notifications(ctx context.Context) ([]*models.NotificationView, error) {
	uid, ok := s.ids.Current(ctx)
	if !ok {
		return nil, models.NewUnauthenticatedError("Not authenticated")
	}

	return cache.GetOrFetch(ctx, s.cache, cache.NotificationsKey(uid), func(ctx context.Context) ([]*models.NotificationView, error) {
		var notifications []*models.Notification
		if err := s.gw.Select(ctx, gateway.Query{
			Collection: gateway.CollectionNotifications,
			Filters:    []gateway.Filter{gateway.Eq("user_id", uid)},
			Order:      []gateway.OrderBy{{Field: "created_at", Desc: true}},
			Limit:      NotificationPageLimit,
		}, &notifications); err != nil {
			return nil, err
		}

		views := make([]*models.NotificationView, len(notifications))
		g, gctx := errgroup.WithContext(ctx)
		for i, notification := range notifications {
			g.Go(func() error {
				view := &models.NotificationView{Notification: *notification}

				var profile models.Profile
				err := s.gw.SelectOne(gctx, gateway.Query{
					Collection: gateway.CollectionProfiles,
					Filters:    []gateway.Filter{gateway.Eq("user_id", notification.ActorID)},
				}, &profile)
				switch {
				case err == nil:
					view.Actor = profile.Summary()
				case !models.IsNotFound(err):
					return err
				}

				if notification.PostID != "" {
					var post models.Post
					err := s.gw.SelectOne(gctx, gateway.Query{
						Collection: gateway.CollectionPosts,
						Filters:    []gateway.Filter{gateway.Eq("id", notification.PostID)},
					}, &post)
					switch {
					case err == nil:
						view.PostImageURL = post.ImageURL
					case !models.IsNotFound(err):
						return err
					}
				}

				views[i] = view
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return nil, err
		}
		return views, nil
	})
}

// SearchProfiles matches profiles whose username or full name contains the
// query, case-insensitively. Results are not cached; search queries are
// too varied to be worth the space.
func (s *Service) SearchProfiles(ctx context.Context, q string) ([]*models.Profile, error) {
	q = strings.TrimSpace(q)
	if q == "" {
		return nil, models.NewValidationError("Search query is required")
	}

	pattern := "%" + q + "%"
	var profiles []*models.Profile
	err := s.gw.Select(ctx, gateway.Query{
		Collection: gateway.CollectionProfiles,
		Any: []gateway.Filter{
			gateway.ILike("username", pattern),
			gateway.ILike("full_name", pattern),
		},
		Limit: SearchLimit,
	}, &profiles)
	if err != nil {
		return nil, err
	}
	return profiles, nil
}
