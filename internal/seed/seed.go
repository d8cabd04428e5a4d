// Package seed populates the row store with generated development data.
package seed

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"glimpse/internal/gateway"
	"glimpse/internal/models"

	"github.com/brianvoe/gofakeit/v6"
	"github.com/google/uuid"
)

// Options controls how much data is generated.
type Options struct {
	Users           int
	PostsPerUser    int
	MaxLikesPerPost int
	MaxComments     int
	FollowsPerUser  int
}

// DefaultOptions returns a dataset large enough to exercise several feed
// pages.
func DefaultOptions() Options {
	return Options{
		Users:           12,
		PostsPerUser:    4,
		MaxLikesPerPost: 8,
		MaxComments:     5,
		FollowsPerUser:  4,
	}
}

// Run generates profiles, posts, likes, comments, and follows through the
// gateway. It returns the generated user ids.
func Run(ctx context.Context, gw gateway.Gateway, opts Options) ([]string, error) {
	gofakeit.Seed(0)

	userIDs := make([]string, 0, opts.Users)
	for i := 0; i < opts.Users; i++ {
		uid := uuid.NewString()
		profile := models.Profile{
			ID:        uuid.NewString(),
			UserID:    uid,
			Username:  fmt.Sprintf("%s%d", gofakeit.Username(), i),
			FullName:  gofakeit.Name(),
			AvatarURL: gofakeit.ImageURL(128, 128),
			Bio:       gofakeit.Sentence(8),
			Website:   gofakeit.URL(),
			CreatedAt: time.Now().UTC(),
			UpdatedAt: time.Now().UTC(),
		}
		if err := gw.Insert(ctx, gateway.CollectionProfiles, &profile); err != nil {
			return nil, err
		}
		userIDs = append(userIDs, uid)
	}

	var postIDs []string
	postOwners := map[string]string{}
	for _, uid := range userIDs {
		for i := 0; i < opts.PostsPerUser; i++ {
			post := models.Post{
				ID:        uuid.NewString(),
				UserID:    uid,
				ImageURL:  gofakeit.ImageURL(1080, 1080),
				Caption:   gofakeit.Sentence(12),
				Location:  gofakeit.City(),
				CreatedAt: time.Now().UTC().Add(-time.Duration(rand.Intn(72)) * time.Hour),
				UpdatedAt: time.Now().UTC(),
			}
			if err := gw.Insert(ctx, gateway.CollectionPosts, &post); err != nil {
				return nil, err
			}
			postIDs = append(postIDs, post.ID)
			postOwners[post.ID] = uid
		}
	}

	for _, postID := range postIDs {
		for _, uid := range pick(userIDs, rand.Intn(opts.MaxLikesPerPost+1)) {
			like := models.Like{
				ID:        uuid.NewString(),
				UserID:    uid,
				PostID:    postID,
				CreatedAt: time.Now().UTC(),
			}
			if err := gw.Insert(ctx, gateway.CollectionLikes, &like); err != nil {
				return nil, err
			}
		}
		for i := 0; i < rand.Intn(opts.MaxComments+1); i++ {
			comment := models.Comment{
				ID:        uuid.NewString(),
				PostID:    postID,
				UserID:    userIDs[rand.Intn(len(userIDs))],
				Content:   gofakeit.Sentence(10),
				CreatedAt: time.Now().UTC(),
			}
			if err := gw.Insert(ctx, gateway.CollectionComments, &comment); err != nil {
				return nil, err
			}
		}
	}

	for _, uid := range userIDs {
		for _, target := range pick(userIDs, opts.FollowsPerUser) {
			if target == uid {
				continue
			}
			follow := models.Follow{
				ID:          uuid.NewString(),
				FollowerID:  uid,
				FollowingID: target,
				CreatedAt:   time.Now().UTC(),
			}
			if err := gw.Insert(ctx, gateway.CollectionFollows, &follow); err != nil {
				return nil, err
			}
		}
	}

	return userIDs, nil
}

// pick returns up to n distinct random elements of ids.
func pick(ids []string, n int) []string {
	if n >= len(ids) {
		n = len(ids)
	}
	shuffled := make([]string, len(ids))
	copy(shuffled, ids)
	rand.Shuffle(len(shuffled), func(i, j int) {
		shuffled[i], shuffled[j] = shuffled[j], shuffled[i]
	})
	return shuffled[:n]
}
