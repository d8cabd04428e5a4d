// Package mutate executes social mutations: optimistic local state first,
// then the gateway write, then fanout and cache invalidation on success or
// rollback on failure. No partial-success state is ever exposed.
package mutate

import (
	"context"
	"strings"
	"time"
	"unicode/utf8"

	"glimpse/internal/blob"
	"glimpse/internal/cache"
	"glimpse/internal/gateway"
	"glimpse/internal/identity"
	"glimpse/internal/models"
	"glimpse/internal/notify"
	"glimpse/internal/observability"

	"github.com/google/uuid"
)

// FeedView is a loaded feed that mutations adjust optimistically.
type FeedView interface {
	Remove(postID string)
	Restore(postID string)
}

// Coordinator owns in-flight mutation state and is the only writer allowed
// to invalidate cache groups.
type Coordinator struct {
	gw      gateway.Gateway
	cache   *cache.Cache
	ids     identity.Provider
	fanout  *notify.Fanout
	blobs   blob.Store
	overlay *Overlay
	feeds   []FeedView
	log     *observability.Logger
}

// NewCoordinator wires a mutation coordinator.
func NewCoordinator(
	gw gateway.Gateway,
	c *cache.Cache,
	ids identity.Provider,
	fanout *notify.Fanout,
	blobs blob.Store,
	log *observability.Logger,
) *Coordinator {
	if log == nil {
		log = observability.GlobalLogger
	}
	return &Coordinator{
		gw:      gw,
		cache:   c,
		ids:     ids,
		fanout:  fanout,
		blobs:   blobs,
		overlay: NewOverlay(),
		log:     log,
	}
}

// Overlay returns the coordinator's optimistic overlay for snapshot reads.
func (c *Coordinator) Overlay() *Overlay {
	return c.overlay
}

// AttachFeed registers a feed view for optimistic post removal on delete.
func (c *Coordinator) AttachFeed(v FeedView) {
	c.feeds = append(c.feeds, v)
}

func (c *Coordinator) actor(ctx context.Context) (string, error) {
	uid, ok := c.ids.Current(ctx)
	if !ok {
		return "", models.NewUnauthenticatedError("Not authenticated")
	}
	return uid, nil
}

// ToggleLikeInput carries the current like state as seen by the caller.
type ToggleLikeInput struct {
	PostID      string
	PostOwnerID string
	Liked       bool
}

// ToggleLike inserts or deletes the (post, actor) like row. The optimistic
// ±1 applies instantly; the true count is only trusted again after the
// invalidation-triggered refetch.
func (c *Coordinator) ToggleLike(ctx context.Context, in ToggleLikeInput) error {
	uid, err := c.actor(ctx)
	if err != nil {
		return err
	}
	if in.PostID == "" {
		return models.NewValidationError("Post ID is required")
	}

	c.overlay.ApplyLike(in.PostID, !in.Liked)

	if in.Liked {
		err = c.gw.Delete(ctx, gateway.CollectionLikes, []gateway.Filter{
			gateway.Eq("post_id", in.PostID),
			gateway.Eq("user_id", uid),
		})
	} else {
		like := models.Like{
			ID:        uuid.NewString(),
			UserID:    uid,
			PostID:    in.PostID,
			CreatedAt: time.Now().UTC(),
		}
		err = c.gw.Insert(ctx, gateway.CollectionLikes, &like)
	}
	if err != nil {
		c.overlay.RevertLike(in.PostID, in.Liked)
		return err
	}

	if !in.Liked {
		c.fanout.Notify(ctx, notify.Event{
			RecipientID: in.PostOwnerID,
			ActorID:     uid,
			Kind:        models.NotificationLike,
			PostID:      in.PostID,
		})
	}

	c.cache.InvalidateGroup(ctx, cache.GroupFeed)
	c.cache.Invalidate(ctx, cache.PostKey(in.PostID))
	return nil
}

// AddCommentInput carries a new comment for a post.
type AddCommentInput struct {
	PostID      string
	PostOwnerID string
	Content     string
}

// AddComment inserts a comment row and returns the created comment.
func (c *Coordinator) AddComment(ctx context.Context, in AddCommentInput) (*models.Comment, error) {
	uid, err := c.actor(ctx)
	if err != nil {
		return nil, err
	}
	content := strings.TrimSpace(in.Content)
	if content == "" {
		return nil, models.NewValidationError("Comment text is required")
	}

	c.overlay.ApplyComment(in.PostID)

	comment := models.Comment{
		ID:        uuid.NewString(),
		PostID:    in.PostID,
		UserID:    uid,
		Content:   content,
		CreatedAt: time.Now().UTC(),
	}
	if err := c.gw.Insert(ctx, gateway.CollectionComments, &comment); err != nil {
		c.overlay.RevertComment(in.PostID)
		return nil, err
	}

	c.fanout.Notify(ctx, notify.Event{
		RecipientID: in.PostOwnerID,
		ActorID:     uid,
		Kind:        models.NotificationComment,
		PostID:      in.PostID,
	})

	c.cache.Invalidate(ctx, cache.CommentsKey(in.PostID))
	c.cache.InvalidateGroup(ctx, cache.GroupFeed)
	c.cache.Invalidate(ctx, cache.PostKey(in.PostID))
	return &comment, nil
}

// CreatePostInput carries a new post. Image bytes go to the blob store
// first; the post row references the returned URL.
type CreatePostInput struct {
	Image       []byte
	ContentType string
	Caption     string
	Location    string
}

// CreatePost stores the image, inserts the post row, and invalidates the
// feed and the owner's post list.
func (c *Coordinator) CreatePost(ctx context.Context, in CreatePostInput) (*models.Post, error) {
	uid, err := c.actor(ctx)
	if err != nil {
		return nil, err
	}
	if len(in.Image) == 0 {
		return nil, models.NewValidationError("An image is required")
	}
	if utf8.RuneCountInString(in.Caption) > models.MaxCaptionLength {
		return nil, models.NewValidationError("Caption is too long")
	}

	imageURL, err := c.blobs.Store(ctx, in.Image, in.ContentType)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	post := models.Post{
		ID:        uuid.NewString(),
		UserID:    uid,
		ImageURL:  imageURL,
		Caption:   in.Caption,
		Location:  in.Location,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := c.gw.Insert(ctx, gateway.CollectionPosts, &post); err != nil {
		return nil, err
	}

	c.cache.InvalidateGroup(ctx, cache.GroupFeed)
	c.cache.Invalidate(ctx, cache.UserPostsKey(uid))
	return &post, nil
}

// DeletePostInput identifies the post to delete.
type DeletePostInput struct {
	PostID string
}

// DeletePost removes the post row. Only the owner may delete; likes and
// comments left behind are the store's concern. Loaded feeds drop the post
// immediately and restore it if the write fails.
func (c *Coordinator) DeletePost(ctx context.Context, in DeletePostInput) error {
	uid, err := c.actor(ctx)
	if err != nil {
		return err
	}

	var post models.Post
	if err := c.gw.SelectOne(ctx, gateway.Query{
		Collection: gateway.CollectionPosts,
		Filters:    []gateway.Filter{gateway.Eq("id", in.PostID)},
	}, &post); err != nil {
		return err
	}
	if post.UserID != uid {
		return models.NewValidationError("Only the post owner can delete a post")
	}

	for _, v := range c.feeds {
		v.Remove(in.PostID)
	}

	if err := c.gw.Delete(ctx, gateway.CollectionPosts, []gateway.Filter{
		gateway.Eq("id", in.PostID),
	}); err != nil {
		for _, v := range c.feeds {
			v.Restore(in.PostID)
		}
		return err
	}

	c.cache.InvalidateGroup(ctx, cache.GroupFeed)
	c.cache.Invalidate(ctx, cache.UserPostsKey(uid))
	c.cache.Invalidate(ctx, cache.PostKey(in.PostID))
	return nil
}

// ToggleFollowInput carries the current follow state as seen by the caller.
type ToggleFollowInput struct {
	TargetUserID string
	Following    bool
}

// ToggleFollow inserts or deletes the (actor, target) follow edge, fanning
// out a notification when a new follow is established.
func (c *Coordinator) ToggleFollow(ctx context.Context, in ToggleFollowInput) error {
	uid, err := c.actor(ctx)
	if err != nil {
		return err
	}
	if in.TargetUserID == "" {
		return models.NewValidationError("Target user is required")
	}
	if in.TargetUserID == uid {
		return models.NewValidationError("Cannot follow yourself")
	}

	c.overlay.ApplyFollow(uid, in.TargetUserID, !in.Following)

	if in.Following {
		err = c.gw.Delete(ctx, gateway.CollectionFollows, []gateway.Filter{
			gateway.Eq("follower_id", uid),
			gateway.Eq("following_id", in.TargetUserID),
		})
	} else {
		edge := models.Follow{
			ID:          uuid.NewString(),
			FollowerID:  uid,
			FollowingID: in.TargetUserID,
			CreatedAt:   time.Now().UTC(),
		}
		err = c.gw.Insert(ctx, gateway.CollectionFollows, &edge)
	}
	if err != nil {
		c.overlay.RevertFollow(uid, in.TargetUserID)
		return err
	}

	if !in.Following {
		c.fanout.Notify(ctx, notify.Event{
			RecipientID: in.TargetUserID,
			ActorID:     uid,
			Kind:        models.NotificationFollow,
		})
	}

	c.cache.Invalidate(ctx, cache.IsFollowingKey(uid, in.TargetUserID))
	c.cache.Invalidate(ctx, cache.FollowCountsKey(in.TargetUserID))
	c.cache.Invalidate(ctx, cache.FollowCountsKey(uid))
	return nil
}

// UpdateProfileInput carries partial profile updates; nil fields are left
// unchanged.
type UpdateProfileInput struct {
	FullName  *string
	Bio       *string
	Website   *string
	AvatarURL *string
	IsPrivate *bool
}

// UpdateProfile applies the non-nil fields to the actor's profile row.
func (c *Coordinator) UpdateProfile(ctx context.Context, in UpdateProfileInput) error {
	uid, err := c.actor(ctx)
	if err != nil {
		return err
	}

	values := map[string]any{}
	if in.FullName != nil {
		values["full_name"] = *in.FullName
	}
	if in.Bio != nil {
		values["bio"] = *in.Bio
	}
	if in.Website != nil {
		values["website"] = *in.Website
	}
	if in.AvatarURL != nil {
		values["avatar_url"] = *in.AvatarURL
	}
	if in.IsPrivate != nil {
		values["is_private"] = *in.IsPrivate
	}
	if len(values) == 0 {
		return models.NewValidationError("No profile fields to update")
	}
	values["updated_at"] = time.Now().UTC()

	if err := c.gw.Update(ctx, gateway.CollectionProfiles, []gateway.Filter{
		gateway.Eq("user_id", uid),
	}, values); err != nil {
		return err
	}

	c.cache.InvalidateGroup(ctx, cache.GroupProfile)
	return nil
}

// UploadAvatar stores a new avatar image and points the actor's profile at
// it.
func (c *Coordinator) UploadAvatar(ctx context.Context, image []byte, contentType string) (string, error) {
	if _, err := c.actor(ctx); err != nil {
		return "", err
	}
	if len(image) == 0 {
		return "", models.NewValidationError("An image is required")
	}

	avatarURL, err := c.blobs.Store(ctx, image, contentType)
	if err != nil {
		return "", err
	}
	if err := c.UpdateProfile(ctx, UpdateProfileInput{AvatarURL: &avatarURL}); err != nil {
		return "", err
	}
	return avatarURL, nil
}

// MarkNotificationsRead flips the read flag on all of the actor's
// notifications.
func (c *Coordinator) MarkNotificationsRead(ctx context.Context) error {
	uid, err := c.actor(ctx)
	if err != nil {
		return err
	}

	if err := c.gw.Update(ctx, gateway.CollectionNotifications, []gateway.Filter{
		gateway.Eq("user_id", uid),
		gateway.Eq("is_read", false),
	}, map[string]any{"is_read": true}); err != nil {
		return err
	}

	c.cache.Invalidate(ctx, cache.NotificationsKey(uid))
	return nil
}
