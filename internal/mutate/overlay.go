package mutate

import (
	"sync"

	"glimpse/internal/models"
)

// Overlay is the transient optimistic layer sitting over cache-backed
// state. Mutations record their expected effect here before the write
// confirms; snapshots merge it at read time. Entries are reverted when a
// write fails and dropped when fresh authoritative rows arrive. The
// overlay never mutates cached values in place.
type Overlay struct {
	mu       sync.Mutex
	likes    map[string]*likeState
	comments map[string]int
	follows  map[string]bool
}

type likeState struct {
	delta int
	liked bool
}

// NewOverlay creates an empty overlay.
func NewOverlay() *Overlay {
	return &Overlay{
		likes:    make(map[string]*likeState),
		comments: make(map[string]int),
		follows:  make(map[string]bool),
	}
}

// ApplyLike records an optimistic like (liked=true) or unlike.
func (o *Overlay) ApplyLike(postID string, liked bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	delta := -1
	if liked {
		delta = 1
	}
	s, ok := o.likes[postID]
	if !ok {
		o.likes[postID] = &likeState{delta: delta, liked: liked}
		return
	}
	s.delta += delta
	s.liked = liked
	if s.delta == 0 {
		// Back to the authoritative value.
		delete(o.likes, postID)
	}
}

// RevertLike undoes one optimistic like application after a failed write,
// restoring the pre-toggle state exactly.
func (o *Overlay) RevertLike(postID string, previouslyLiked bool) {
	o.ApplyLike(postID, previouslyLiked)
}

// ApplyComment records an optimistic comment-count increment.
func (o *Overlay) ApplyComment(postID string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.comments[postID]++
}

// RevertComment undoes one optimistic comment increment.
func (o *Overlay) RevertComment(postID string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.comments[postID]--
	if o.comments[postID] == 0 {
		delete(o.comments, postID)
	}
}

func followKey(followerID, followeeID string) string {
	return followerID + "\x00" + followeeID
}

// ApplyFollow records an optimistic follow flag for the pair.
func (o *Overlay) ApplyFollow(followerID, followeeID string, following bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.follows[followKey(followerID, followeeID)] = following
}

// RevertFollow removes the optimistic follow flag for the pair.
func (o *Overlay) RevertFollow(followerID, followeeID string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	delete(o.follows, followKey(followerID, followeeID))
}

// Following returns the overlay's follow flag for the pair, if present.
func (o *Overlay) Following(followerID, followeeID string) (following, ok bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	following, ok = o.follows[followKey(followerID, followeeID)]
	return following, ok
}

// Apply merges the overlay into a copied aggregated post. The argument must
// be the caller's own copy, never a cached value.
func (o *Overlay) Apply(post *models.AggregatedPost) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if s, ok := o.likes[post.ID]; ok {
		post.LikesCount += s.delta
		if post.LikesCount < 0 {
			post.LikesCount = 0
		}
		post.IsLiked = s.liked
	}
	if d, ok := o.comments[post.ID]; ok {
		post.CommentsCount += d
		if post.CommentsCount < 0 {
			post.CommentsCount = 0
		}
	}
}

// Drop reconciles the overlay away for posts whose authoritative state was
// just refetched.
func (o *Overlay) Drop(postIDs ...string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	for _, id := range postIDs {
		delete(o.likes, id)
		delete(o.comments, id)
	}
}

// DropFollow reconciles the overlay away for a refetched follow pair.
func (o *Overlay) DropFollow(followerID, followeeID string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	delete(o.follows, followKey(followerID, followeeID))
}

// Clear resets the overlay, e.g. on identity change.
func (o *Overlay) Clear() {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.likes = make(map[string]*likeState)
	o.comments = make(map[string]int)
	o.follows = make(map[string]bool)
}
