// Package aggregate composes fully-joined post views. The row store cannot
// join, so each post's author, counts, and viewer-liked flag are fetched as
// parallel lookups with a fail-fast join: any lookup failure discards the
// whole post rather than surfacing a partially-filled view.
package aggregate

import (
	"context"

	"glimpse/internal/gateway"
	"glimpse/internal/models"

	"golang.org/x/sync/errgroup"
)

// Aggregator enriches raw post rows into AggregatedPost views.
type Aggregator struct {
	gw gateway.Gateway
}

// New creates an Aggregator over the given gateway.
func New(gw gateway.Gateway) *Aggregator {
	return &Aggregator{gw: gw}
}

// One aggregates a single post for the given viewer. viewerID may be empty
// (no identity): IsLiked is then false and no like-existence lookup is
// issued.
func (a *Aggregator) One(ctx context.Context, post *models.Post, viewerID string) (*models.AggregatedPost, error) {
	out := &models.AggregatedPost{Post: *post}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		var profile models.Profile
		err := a.gw.SelectOne(gctx, gateway.Query{
			Collection: gateway.CollectionProfiles,
			Filters:    []gateway.Filter{gateway.Eq("user_id", post.UserID)},
		}, &profile)
		if err != nil {
			return err
		}
		out.Author = profile.Summary()
		return nil
	})

	g.Go(func() error {
		n, err := a.gw.Count(gctx, gateway.Query{
			Collection: gateway.CollectionLikes,
			Filters:    []gateway.Filter{gateway.Eq("post_id", post.ID)},
		})
		if err != nil {
			return err
		}
		out.LikesCount = int(n)
		return nil
	})

	g.Go(func() error {
		n, err := a.gw.Count(gctx, gateway.Query{
			Collection: gateway.CollectionComments,
			Filters:    []gateway.Filter{gateway.Eq("post_id", post.ID)},
		})
		if err != nil {
			return err
		}
		out.CommentsCount = int(n)
		return nil
	})

	if viewerID != "" {
		g.Go(func() error {
			liked, err := a.gw.Exists(gctx, gateway.Query{
				Collection: gateway.CollectionLikes,
				Filters: []gateway.Filter{
					gateway.Eq("post_id", post.ID),
					gateway.Eq("user_id", viewerID),
				},
			})
			if err != nil {
				return err
			}
			out.IsLiked = liked
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, models.NewAggregationError(post.ID, err)
	}
	return out, nil
}

// Batch aggregates several posts concurrently, preserving input order.
// Lookups for distinct posts are independent; a failure for any one post
// fails the whole batch.
func (a *Aggregator) Batch(ctx context.Context, posts []*models.Post, viewerID string) ([]*models.AggregatedPost, error) {
	out := make([]*models.AggregatedPost, len(posts))

	g, gctx := errgroup.WithContext(ctx)
	for i, post := range posts {
		g.Go(func() error {
			view, err := a.One(gctx, post, viewerID)
			if err != nil {
				return err
			}
			out[i] = view
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}
