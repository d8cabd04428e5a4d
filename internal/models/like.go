package models

import "time"

// Like represents a user's like on a post.
// The combination of UserID and PostID must be unique; existence is binary.
type Like struct {
	ID        string    `gorm:"primaryKey" json:"id"`
	UserID    string    `gorm:"not null;uniqueIndex:idx_like_user_post" json:"user_id"`
	PostID    string    `gorm:"not null;uniqueIndex:idx_like_user_post" json:"post_id"`
	CreatedAt time.Time `json:"created_at"`
}
