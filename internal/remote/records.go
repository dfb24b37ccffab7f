package remote

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Timestamp decodes created_at values sent either as epoch milliseconds or as
// an RFC 3339 string.
type Timestamp struct {
	time.Time
}

func (t *Timestamp) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || string(data) == "null" {
		t.Time = time.Time{}
		return nil
	}
	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		s = strings.TrimSpace(s)
		if s == "" {
			t.Time = time.Time{}
			return nil
		}
		if ms, err := strconv.ParseInt(s, 10, 64); err == nil {
			t.Time = time.UnixMilli(ms).UTC()
			return nil
		}
		parsed, err := time.Parse(time.RFC3339Nano, s)
		if err != nil {
			return fmt.Errorf("timestamp %q: %w", s, err)
		}
		t.Time = parsed.UTC()
		return nil
	}
	ms, err := strconv.ParseFloat(string(data), 64)
	if err != nil {
		return fmt.Errorf("timestamp %s: %w", data, err)
	}
	t.Time = time.UnixMilli(int64(ms)).UTC()
	return nil
}

func (t Timestamp) MarshalJSON() ([]byte, error) {
	return json.Marshal(t.UnixMilli())
}

// PostRecord is a post as the backend stores it.
type PostRecord struct {
	ID            uint      `json:"id"`
	Title         string    `json:"title"`
	Content       string    `json:"content"`
	UserID        uint      `json:"user_id"`
	UserName      string    `json:"user_name,omitempty"`
	CreatedAt     Timestamp `json:"created_at"`
	UpvoteCount   int       `json:"upvote_count"`
	DownvoteCount int       `json:"downvote_count"`
	CommentCount  int       `json:"comment_count"`
	UserVote      string    `json:"user_vote,omitempty"`
}

// CommentRecord is a comment as the backend stores it.
type CommentRecord struct {
	ID        uint      `json:"id"`
	PostID    uint      `json:"post_id"`
	UserID    uint      `json:"user_id"`
	UserName  string    `json:"user_name,omitempty"`
	Content   string    `json:"content"`
	CreatedAt Timestamp `json:"created_at"`
}

// PostInput is the body of POST /post and PATCH /post/{id}.
type PostInput struct {
	Title   string `json:"title"`
	Content string `json:"content"`
	UserID  uint   `json:"user_id,omitempty"`
}

// CommentInput is the body of POST /comment.
type CommentInput struct {
	PostID  uint   `json:"post_id"`
	Content string `json:"content"`
	UserID  uint   `json:"user_id"`
}

// VoteType is the mutation requested from the backend.
type VoteType string

const (
	VoteTypeUp     VoteType = "up"
	VoteTypeDown   VoteType = "down"
	VoteTypeRemove VoteType = "remove"
)

// VoteRequest is the body of POST /vote.
type VoteRequest struct {
	VoteType VoteType `json:"vote_type"`
	PostID   uint     `json:"post_id"`
	UserID   uint     `json:"user_id"`
	Reason   string   `json:"reason,omitempty"`
}

// VoteStatus is the token the backend answers POST /vote with.
type VoteStatus string

const (
	VoteSuccess VoteStatus = "success"
	VoteExists  VoteStatus = "vote_exists"
)

type authRequest struct {
	Username string `json:"username,omitempty"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type authResponse struct {
	AuthToken string `json:"authToken"`
}

type profilePictureRequest struct {
	ProfilePicture string `json:"profile_picture"`
}

// UnmarshalJSON accepts a bare JSON string or an object with a status field.
func (s *VoteStatus) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '{' {
		var obj struct {
			Status string `json:"status"`
		}
		if err := json.Unmarshal(data, &obj); err != nil {
			return err
		}
		*s = VoteStatus(obj.Status)
		return nil
	}
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*s = VoteStatus(raw)
	return nil
}
