package domain

import (
	"encoding/base64"
	"fmt"
	"net/url"
	"strings"
)

// Document ids are stable, type-prefixed keys. The prefix keeps ids of
// different object types from colliding inside the global alias.

// PostID returns the document id for a post.
func PostID(postID string) string {
	return "p_" + postID
}

// CommentID returns the document id for a comment.
func CommentID(commentID string) string {
	return "c_" + commentID
}

// ProfileID returns the document id for a user profile.
func ProfileID(username string) string {
	return "u_" + username
}

// CourseID returns the document id for a course.
// Course ids may contain characters the store reserves, so they are encoded.
func CourseID(platform, courseID string) string {
	return fmt.Sprintf("co_%s_%s", platform, safeKey(courseID))
}

// BootcampID returns the document id for a bootcamp.
func BootcampID(bootcampID string) string {
	return "bo_" + safeKey(bootcampID)
}

// ProgramID returns the document id for a program.
func ProgramID(id int64) string {
	return fmt.Sprintf("program_%d", id)
}

// VideoID returns the document id for a video.
func VideoID(platform, videoID string) string {
	return fmt.Sprintf("video_%s_%s", platform, videoID)
}

// PodcastID returns the document id for a podcast.
func PodcastID(id int64) string {
	return fmt.Sprintf("podcast_%d", id)
}

// PodcastEpisodeID returns the document id for a podcast episode.
func PodcastEpisodeID(id int64) string {
	return fmt.Sprintf("podcast_ep_%d", id)
}

// UserListID returns the document id for a user list or learning path.
func UserListID(id int64) string {
	return fmt.Sprintf("user_list_%d", id)
}

// StaffListID returns the document id for a staff list.
func StaffListID(id int64) string {
	return fmt.Sprintf("staff_list_%d", id)
}

// ContentFileID returns the document id for a course content file.
func ContentFileID(key string) string {
	return "cf_" + url.QueryEscape(key)
}

// safeKey url-safe base64 encodes key and strips the trailing padding.
func safeKey(key string) string {
	return strings.TrimRight(base64.URLEncoding.EncodeToString([]byte(key)), "=")
}
