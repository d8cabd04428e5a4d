package models

import "time"

// Profile represents a user's public profile.
type Profile struct {
	ID        string    `gorm:"primaryKey" json:"id"`
	UserID    string    `gorm:"not null;uniqueIndex" json:"user_id"`
	Username  string    `gorm:"not null;uniqueIndex" json:"username"`
	FullName  string    `json:"full_name"`
	AvatarURL string    `json:"avatar_url"`
	Bio       string    `json:"bio"`
	Website   string    `json:"website"`
	IsPrivate bool      `json:"is_private"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Summary converts a full profile to the shape embedded in aggregated views.
func (p *Profile) Summary() *AuthorSummary {
	return &AuthorSummary{
		Username:  p.Username,
		FullName:  p.FullName,
		AvatarURL: p.AvatarURL,
	}
}

// FollowCounts holds the derived follower/following counts for a user.
// They are computed from follow rows, never stored.
type FollowCounts struct {
	Followers int64 `json:"followers"`
	Following int64 `json:"following"`
}
