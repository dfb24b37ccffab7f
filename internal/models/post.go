// Package models contains the view objects the gateway renders for the browser UI.
package models

import "time"

// VoteState is the acting user's vote on a post.
type VoteState string

const (
	VoteNone VoteState = "none"
	VoteUp   VoteState = "up"
	VoteDown VoteState = "down"
)

// Valid reports whether v is one of the three known states.
func (v VoteState) Valid() bool {
	switch v {
	case VoteNone, VoteUp, VoteDown:
		return true
	}
	return false
}

// ParseVoteState normalizes the backend's representation. Anything unknown,
// including an empty value or null, is treated as no vote.
func ParseVoteState(raw string) VoteState {
	switch VoteState(raw) {
	case VoteUp:
		return VoteUp
	case VoteDown:
		return VoteDown
	default:
		return VoteNone
	}
}

// Author identifies who wrote a post or comment.
type Author struct {
	ID       uint   `json:"id"`
	Username string `json:"username"`
}

// Post is the view object for one idea.
type Post struct {
	ID           uint      `json:"id"`
	Title        string    `json:"title"`
	Content      string    `json:"content"`
	Author       Author    `json:"author"`
	CreatedAt    time.Time `json:"created_at"`
	Upvotes      int       `json:"upvotes"`
	Downvotes    int       `json:"downvotes"`
	CommentCount int       `json:"comment_count"`
	UserVote     VoteState `json:"user_vote"`
}

// Comment is the view object for a comment under a post.
type Comment struct {
	ID        uint      `json:"id"`
	Text      string    `json:"text"`
	Author    Author    `json:"author"`
	CreatedAt time.Time `json:"created_at"`
	PostID    uint      `json:"post_id"`
	// Pending is true while the comment is an optimistic local insert.
	Pending bool `json:"pending,omitempty"`
}

// User is the profile returned by the backend's /auth/me.
type User struct {
	ID             uint   `json:"id"`
	Username       string `json:"username"`
	Email          string `json:"email"`
	ProfilePicture string `json:"profile_picture,omitempty"`
}
