// Package models contains data structures for the application's domain entities.
package models

import (
	"time"
)

// MaxCaptionLength is the maximum caption length in Unicode code points.
const MaxCaptionLength = 2200

// Post represents a published image post.
type Post struct {
	ID        string    `gorm:"primaryKey" json:"id"`
	UserID    string    `gorm:"not null;index" json:"user_id"`
	ImageURL  string    `gorm:"not null" json:"image_url"`
	Caption   string    `json:"caption"`
	Location  string    `json:"location"`
	CreatedAt time.Time `gorm:"index" json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// AuthorSummary is the subset of a profile shown next to a post or comment.
type AuthorSummary struct {
	Username  string `json:"username"`
	FullName  string `json:"full_name"`
	AvatarURL string `json:"avatar_url"`
}

// AggregatedPost is a Post joined with its derived attributes. It is
// recomputed per read and never persisted; the counts are eventually
// consistent with the like and comment rows, not atomic with them.
type AggregatedPost struct {
	Post
	Author        *AuthorSummary `json:"profile,omitempty"`
	LikesCount    int            `json:"likes_count"`
	CommentsCount int            `json:"comments_count"`
	IsLiked       bool           `json:"is_liked"`
}
