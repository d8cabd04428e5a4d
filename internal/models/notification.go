package models

import "time"

// NotificationKind enumerates the mutations that fan out a notification.
type NotificationKind string

const (
	NotificationLike    NotificationKind = "like"
	NotificationComment NotificationKind = "comment"
	NotificationFollow  NotificationKind = "follow"
)

// Notification is written as a side effect of a like, comment, or follow
// where the actor differs from the recipient.
type Notification struct {
	ID        string           `gorm:"primaryKey" json:"id"`
	UserID    string           `gorm:"not null;index" json:"user_id"`
	ActorID   string           `gorm:"not null" json:"actor_id"`
	Type      NotificationKind `gorm:"not null" json:"type"`
	PostID    string           `json:"post_id,omitempty"`
	IsRead    bool             `json:"is_read"`
	CreatedAt time.Time        `json:"created_at"`
}

// NotificationView is a Notification joined with its actor's summary and,
// when the notification references a post, that post's image.
type NotificationView struct {
	Notification
	Actor        *AuthorSummary `json:"actor,omitempty"`
	PostImageURL string         `json:"post_image_url,omitempty"`
}
