package detail

import (
	"context"
	"strings"
	"time"

	"synerthree/internal/models"
	"synerthree/internal/observability"
	"synerthree/internal/remote"
	"synerthree/internal/session"

	"github.com/google/uuid"
)

// AddComment shows the comment at the top of the list immediately and bumps
// the count. The backend's id and timestamp replace the provisional ones; on
// failure both changes are reverted.
func (c *Controller) AddComment(ctx context.Context, text string) (models.Comment, error) {
	if err := session.Require(c.sess); err != nil {
		return models.Comment{}, err
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return models.Comment{}, models.NewValidationError("Comment cannot be empty")
	}
	card, err := c.Card()
	if err != nil {
		return models.Comment{}, err
	}

	key := uuid.NewString()
	provisional := models.Comment{
		Text:      text,
		Author:    models.Author{ID: c.sess.UserID, Username: c.sess.Username},
		CreatedAt: time.Now().UTC(),
		PostID:    c.postID,
		Pending:   true,
	}
	c.mu.Lock()
	c.comments = append([]commentEntry{{key: key, comment: provisional}}, c.comments...)
	c.mu.Unlock()
	card.BeginComment()

	rec, err := c.backend.CreateComment(ctx, c.sess.Token, key, remote.CommentInput{
		PostID:  c.postID,
		Content: text,
		UserID:  c.sess.UserID,
	})
	if err != nil {
		c.mu.Lock()
		c.removeEntry(func(e commentEntry) bool { return e.key == key })
		c.mu.Unlock()
		card.EndComment(false)
		observability.CommentRollbacks.Inc()
		c.log.LogError(ctx, "add_comment", err)
		return models.Comment{}, err
	}

	confirmed := rec.ToComment(c.viewer())
	if confirmed.CreatedAt.IsZero() {
		confirmed.CreatedAt = provisional.CreatedAt
	}
	if confirmed.Text == "" {
		confirmed.Text = text
	}
	if confirmed.PostID == 0 {
		confirmed.PostID = c.postID
	}
	if confirmed.Author.ID == 0 {
		confirmed.Author = provisional.Author
	}

	c.mu.Lock()
	// A reload that finished while the request was out may already list it.
	if c.hasConfirmedLocked(confirmed.ID) {
		c.removeEntry(func(e commentEntry) bool { return e.key == key })
	} else {
		for i := range c.comments {
			if c.comments[i].key == key {
				c.comments[i] = commentEntry{comment: confirmed}
				break
			}
		}
	}
	c.mu.Unlock()
	if card.EndComment(true) {
		_ = c.reloadPost(ctx)
	}
	return confirmed, nil
}

// DeleteComment removes one of the session user's comments once the backend
// confirms.
func (c *Controller) DeleteComment(ctx context.Context, commentID uint) error {
	if err := session.Require(c.sess); err != nil {
		return err
	}
	card, err := c.Card()
	if err != nil {
		return err
	}

	c.mu.Lock()
	var target *models.Comment
	for _, e := range c.comments {
		if e.key == "" && e.comment.ID == commentID {
			cm := e.comment
			target = &cm
			break
		}
	}
	c.mu.Unlock()
	if target == nil {
		return ErrCommentNotFound
	}
	if target.Author.ID != c.sess.UserID {
		return ErrNotAuthor
	}

	if err := c.backend.DeleteComment(ctx, c.sess.Token, commentID); err != nil {
		c.log.LogError(ctx, "delete_comment", err)
		return err
	}

	c.mu.Lock()
	removed := c.removeEntry(func(e commentEntry) bool { return e.key == "" && e.comment.ID == commentID })
	c.mu.Unlock()
	if removed {
		card.AddComments(-1)
	}
	return nil
}

func (c *Controller) hasConfirmedLocked(id uint) bool {
	if id == 0 {
		return false
	}
	for _, e := range c.comments {
		if e.key == "" && e.comment.ID == id {
			return true
		}
	}
	return false
}

// removeEntry drops the first comment matching match. The caller holds c.mu.
func (c *Controller) removeEntry(match func(commentEntry) bool) bool {
	for i, e := range c.comments {
		if match(e) {
			c.comments = append(c.comments[:i], c.comments[i+1:]...)
			return true
		}
	}
	return false
}
