package models

import "time"

// Follow represents a follower-to-followee edge.
// The pair must be unique; existence is binary like a Like.
type Follow struct {
	ID          string    `gorm:"primaryKey" json:"id"`
	FollowerID  string    `gorm:"not null;uniqueIndex:idx_follow_pair" json:"follower_id"`
	FollowingID string    `gorm:"not null;uniqueIndex:idx_follow_pair" json:"following_id"`
	CreatedAt   time.Time `json:"created_at"`
}
