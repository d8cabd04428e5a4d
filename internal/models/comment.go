package models

import "time"

// Comment represents a comment on a post. Comments are append-only.
type Comment struct {
	ID        string    `gorm:"primaryKey" json:"id"`
	PostID    string    `gorm:"not null;index" json:"post_id"`
	UserID    string    `gorm:"not null" json:"user_id"`
	Content   string    `gorm:"not null" json:"content"`
	CreatedAt time.Time `json:"created_at"`
}

// CommentView is a Comment joined with its author's summary.
type CommentView struct {
	Comment
	Author *AuthorSummary `json:"profile,omitempty"`
}
