package remote

import (
	"strings"

	"synerthree/internal/models"
)

// AnonymousAuthor is shown when neither the backend nor the session can name the author.
const AnonymousAuthor = "Anonymous"

// Viewer is who is looking at a screen. The zero value is an anonymous viewer.
type Viewer struct {
	UserID   uint
	Username string
}

func (v Viewer) authorName(authorID uint, serverName string) string {
	if name := strings.TrimSpace(serverName); name != "" {
		return name
	}
	if v.UserID != 0 && authorID == v.UserID && v.Username != "" {
		return v.Username
	}
	return AnonymousAuthor
}

// ToPost maps a backend record to the view object shown to v.
func (r PostRecord) ToPost(v Viewer) models.Post {
	return models.Post{
		ID:      r.ID,
		Title:   r.Title,
		Content: r.Content,
		Author: models.Author{
			ID:       r.UserID,
			Username: v.authorName(r.UserID, r.UserName),
		},
		CreatedAt:    r.CreatedAt.Time,
		Upvotes:      max(r.UpvoteCount, 0),
		Downvotes:    max(r.DownvoteCount, 0),
		CommentCount: max(r.CommentCount, 0),
		UserVote:     models.ParseVoteState(r.UserVote),
	}
}

// ToComment maps a backend comment record to the view object shown to v.
func (r CommentRecord) ToComment(v Viewer) models.Comment {
	return models.Comment{
		ID:   r.ID,
		Text: r.Content,
		Author: models.Author{
			ID:       r.UserID,
			Username: v.authorName(r.UserID, r.UserName),
		},
		CreatedAt: r.CreatedAt.Time,
		PostID:    r.PostID,
	}
}
