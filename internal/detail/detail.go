// Package detail is the idea detail screen: one post with its vote card,
// comments, author edit/delete and AI insights.
package detail

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"synerthree/internal/insight"
	"synerthree/internal/models"
	"synerthree/internal/observability"
	"synerthree/internal/remote"
	"synerthree/internal/session"
	"synerthree/internal/vote"
)

// DashboardPath is where the screen navigates after its post is deleted.
const DashboardPath = "/dashboard"

var (
	ErrNotFound             = errors.New("idea not found")
	ErrNotLoaded            = errors.New("idea has not been loaded")
	ErrClosed               = errors.New("idea was deleted")
	ErrNotAuthor            = errors.New("only the author can do that")
	ErrNotEditing           = errors.New("no edit in progress")
	ErrConfirmationRequired = errors.New("delete must be requested before it is confirmed")
	ErrInsightInFlight      = errors.New("an insight is already being generated")
	ErrCommentNotFound      = errors.New("comment not found")
)

// Backend is the part of the remote client the detail screen uses.
type Backend interface {
	vote.Sender
	GetPost(ctx context.Context, token string, id uint) (*remote.PostRecord, error)
	ListComments(ctx context.Context, token string, postID uint) ([]remote.CommentRecord, error)
	UpdatePost(ctx context.Context, token string, id uint, in remote.PostInput) error
	DeletePost(ctx context.Context, token string, id uint) error
	CreateComment(ctx context.Context, token, idempotencyKey string, in remote.CommentInput) (*remote.CommentRecord, error)
	DeleteComment(ctx context.Context, token string, id uint) error
}

// Asker answers insight prompts.
type Asker interface {
	Ask(ctx context.Context, token string, req insight.Request) (string, error)
}

// Draft holds the edit form values.
type Draft struct {
	Title   string `json:"title"`
	Content string `json:"content"`
}

// Exchange is one insight prompt and its answer, in request order.
type Exchange struct {
	Prompt    string    `json:"prompt"`
	Response  string    `json:"response"`
	CreatedAt time.Time `json:"created_at"`
	Saved     bool      `json:"saved"`
}

// View is the rendered detail screen.
type View struct {
	Post           *vote.Snapshot   `json:"post"`
	Comments       []models.Comment `json:"comments"`
	IsAuthor       bool             `json:"is_author"`
	Editing        bool             `json:"editing"`
	Draft          *Draft           `json:"draft,omitempty"`
	DeleteArmed    bool             `json:"delete_armed"`
	Closed         bool             `json:"closed"`
	Insights       []Exchange       `json:"insights"`
	InsightPending bool             `json:"insight_pending"`
}

type commentEntry struct {
	// key is the provisional id while the comment is pending.
	key     string
	comment models.Comment
}

// Controller owns the detail screen state for one post and one session.
type Controller struct {
	backend  Backend
	insights Asker
	sess     *session.Session
	postID   uint
	log      *observability.ScreenLogger

	mu             sync.Mutex
	card           *vote.Card
	comments       []commentEntry
	draft          *Draft
	deleteArmed    bool
	closed         bool
	exchanges      []Exchange
	insightPending bool
}

// NewController creates the detail screen for postID. sess may be nil.
func NewController(backend Backend, insights Asker, sess *session.Session, postID uint) *Controller {
	return &Controller{
		backend:  backend,
		insights: insights,
		sess:     sess,
		postID:   postID,
		log:      observability.NewScreenLogger("detail"),
	}
}

// PostID is the id of the post the screen shows.
func (c *Controller) PostID() uint {
	return c.postID
}

// Load fetches the post and its comments.
func (c *Controller) Load(ctx context.Context) error {
	if err := c.reloadPost(ctx); err != nil {
		return err
	}
	records, err := c.backend.ListComments(ctx, c.token(), c.postID)
	if err != nil {
		c.log.LogError(ctx, "load_comments", err)
		return err
	}
	viewer := c.viewer()
	entries := make([]commentEntry, 0, len(records))
	for _, rec := range records {
		entries = append(entries, commentEntry{comment: rec.ToComment(viewer)})
	}

	c.mu.Lock()
	// Keep optimistic comments that the fetched list cannot contain yet.
	var pending []commentEntry
	for _, e := range c.comments {
		if e.key != "" {
			pending = append(pending, e)
		}
	}
	c.comments = append(pending, entries...)
	c.mu.Unlock()
	return nil
}

func (c *Controller) reloadPost(ctx context.Context) error {
	rec, err := c.backend.GetPost(ctx, c.token(), c.postID)
	if err != nil {
		if remote.IsNotFound(err) {
			return ErrNotFound
		}
		c.log.LogError(ctx, "load_post", err)
		return err
	}
	post := rec.ToPost(c.viewer())

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.card == nil {
		c.card = vote.NewCard(post, c.backend, c.onCardSettled)
	} else {
		c.card.Replace(post)
	}
	return nil
}

func (c *Controller) onCardSettled(ctx context.Context) {
	_ = c.reloadPost(ctx)
}

// Card returns the vote card of the post.
func (c *Controller) Card() (*vote.Card, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil, ErrClosed
	}
	if c.card == nil {
		return nil, ErrNotLoaded
	}
	return c.card, nil
}

// View returns the rendered screen.
func (c *Controller) View() View {
	c.mu.Lock()
	card := c.card
	v := View{
		Comments:       make([]models.Comment, 0, len(c.comments)),
		Editing:        c.draft != nil,
		DeleteArmed:    c.deleteArmed,
		Closed:         c.closed,
		Insights:       append([]Exchange{}, c.exchanges...),
		InsightPending: c.insightPending,
	}
	for _, e := range c.comments {
		v.Comments = append(v.Comments, e.comment)
	}
	if c.draft != nil {
		d := *c.draft
		v.Draft = &d
	}
	c.mu.Unlock()

	if card != nil {
		snap := card.Snapshot()
		v.Post = &snap
		v.IsAuthor = c.sess != nil && snap.Author.ID == c.sess.UserID
	}
	return v
}

// authorPost returns the current post if the session user wrote it.
func (c *Controller) authorPost() (models.Post, error) {
	if err := session.Require(c.sess); err != nil {
		return models.Post{}, err
	}
	c.mu.Lock()
	card, closed := c.card, c.closed
	c.mu.Unlock()
	if closed {
		return models.Post{}, ErrClosed
	}
	if card == nil {
		return models.Post{}, ErrNotLoaded
	}
	post := card.Snapshot().Post
	if post.Author.ID != c.sess.UserID {
		return models.Post{}, ErrNotAuthor
	}
	return post, nil
}

// BeginEdit opens the edit form pre-filled with the current title and content.
func (c *Controller) BeginEdit() (Draft, error) {
	post, err := c.authorPost()
	if err != nil {
		return Draft{}, err
	}
	d := Draft{Title: post.Title, Content: post.Content}
	c.mu.Lock()
	c.draft = &d
	c.mu.Unlock()
	return d, nil
}

// SubmitEdit saves the draft and reloads the post. On failure the form stays
// open with the submitted values.
func (c *Controller) SubmitEdit(ctx context.Context, d Draft) error {
	if _, err := c.authorPost(); err != nil {
		return err
	}
	d.Title = strings.TrimSpace(d.Title)
	d.Content = strings.TrimSpace(d.Content)

	c.mu.Lock()
	if c.draft == nil {
		c.mu.Unlock()
		return ErrNotEditing
	}
	c.draft = &d
	c.mu.Unlock()

	if d.Title == "" || d.Content == "" {
		return models.NewValidationError("Title and content are required")
	}
	if err := c.backend.UpdatePost(ctx, c.sess.Token, c.postID, remote.PostInput{Title: d.Title, Content: d.Content}); err != nil {
		c.log.LogError(ctx, "edit", err)
		return err
	}

	c.mu.Lock()
	c.draft = nil
	c.mu.Unlock()
	c.log.LogAction(ctx, "edit", map[string]interface{}{"post_id": c.postID})
	return c.reloadPost(ctx)
}

// CancelEdit closes the edit form. The post was never changed locally, so
// nothing needs restoring and no request is made.
func (c *Controller) CancelEdit() {
	c.mu.Lock()
	c.draft = nil
	c.mu.Unlock()
}

// RequestDelete arms the delete confirmation.
func (c *Controller) RequestDelete() error {
	if _, err := c.authorPost(); err != nil {
		return err
	}
	c.mu.Lock()
	c.deleteArmed = true
	c.mu.Unlock()
	return nil
}

// AbortDelete disarms the delete confirmation.
func (c *Controller) AbortDelete() {
	c.mu.Lock()
	c.deleteArmed = false
	c.mu.Unlock()
}

// ConfirmDelete deletes the post and returns where the UI navigates next.
func (c *Controller) ConfirmDelete(ctx context.Context) (string, error) {
	if _, err := c.authorPost(); err != nil {
		return "", err
	}
	c.mu.Lock()
	if !c.deleteArmed {
		c.mu.Unlock()
		return "", ErrConfirmationRequired
	}
	c.deleteArmed = false
	c.mu.Unlock()

	if err := c.backend.DeletePost(ctx, c.sess.Token, c.postID); err != nil {
		c.log.LogError(ctx, "delete", err)
		return "", err
	}

	c.mu.Lock()
	c.closed = true
	c.draft = nil
	c.mu.Unlock()
	c.log.LogAction(ctx, "delete", map[string]interface{}{"post_id": c.postID})
	return DashboardPath, nil
}

func (c *Controller) token() string {
	if c.sess == nil {
		return ""
	}
	return c.sess.Token
}

func (c *Controller) viewer() remote.Viewer {
	if c.sess == nil {
		return remote.Viewer{}
	}
	return remote.Viewer{UserID: c.sess.UserID, Username: c.sess.Username}
}
