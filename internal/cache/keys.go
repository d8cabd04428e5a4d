package cache

import (
	"fmt"
	"strings"
)

// KeySeparator delimits cache key segments. The segment before the first
// separator names the key's invalidation group.
const KeySeparator = "::"

// Invalidation group prefixes.
const (
	GroupFeed          = "feed"
	GroupPost          = "post"
	GroupComments      = "comments"
	GroupProfile       = "profile"
	GroupUserPosts     = "userposts"
	GroupFollowCounts  = "followcounts"
	GroupIsFollowing   = "isfollowing"
	GroupNotifications = "notifications"
)

// FeedPageKey keys one page of the aggregated feed.
func FeedPageKey(page int) string {
	return fmt.Sprintf("%s%spage%s%d", GroupFeed, KeySeparator, KeySeparator, page)
}

// PostKey keys a single aggregated post.
func PostKey(postID string) string {
	return GroupPost + KeySeparator + postID
}

// CommentsKey keys the comment list for one post.
func CommentsKey(postID string) string {
	return GroupComments + KeySeparator + postID
}

// ProfileKey keys a profile by user id.
func ProfileKey(userID string) string {
	return GroupProfile + KeySeparator + "user" + KeySeparator + userID
}

// ProfileByUsernameKey keys a profile by username.
func ProfileByUsernameKey(username string) string {
	return GroupProfile + KeySeparator + "username" + KeySeparator + username
}

// UserPostsKey keys the post list of one owner.
func UserPostsKey(userID string) string {
	return GroupUserPosts + KeySeparator + userID
}

// FollowCountsKey keys the derived follower/following counts for a user.
func FollowCountsKey(userID string) string {
	return GroupFollowCounts + KeySeparator + userID
}

// IsFollowingKey keys the follow flag for a (follower, followee) pair.
func IsFollowingKey(followerID, followeeID string) string {
	return GroupIsFollowing + KeySeparator + followerID + KeySeparator + followeeID
}

// NotificationsKey keys the notification inbox of one recipient.
func NotificationsKey(userID string) string {
	return GroupNotifications + KeySeparator + userID
}

// KeyGroup returns the invalidation group of a key.
func KeyGroup(key string) string {
	if i := strings.Index(key, KeySeparator); i >= 0 {
		return key[:i]
	}
	return key
}

// inGroup reports whether key belongs to the group or prefix. A prefix
// matches whole segments only, so "feed" never matches "feedback::x".
func inGroup(key, prefix string) bool {
	return key == prefix || strings.HasPrefix(key, prefix+KeySeparator)
}
