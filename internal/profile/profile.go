// Package profile is the user profile screen: the session user's details,
// their own ideas with edit/delete, and the profile picture.
package profile

import (
	"context"
	"errors"
	"net/url"
	"strings"
	"sync"

	"synerthree/internal/models"
	"synerthree/internal/observability"
	"synerthree/internal/remote"
	"synerthree/internal/session"
)

var (
	ErrPostNotFound         = errors.New("idea is not one of yours")
	ErrNotEditing           = errors.New("no edit in progress")
	ErrConfirmationRequired = errors.New("delete must be requested before it is confirmed")
)

// Backend is the part of the remote client the profile screen uses.
type Backend interface {
	Me(ctx context.Context, token string) (*models.User, error)
	ListPosts(ctx context.Context, token string) ([]remote.PostRecord, error)
	UpdatePost(ctx context.Context, token string, id uint, in remote.PostInput) error
	DeletePost(ctx context.Context, token string, id uint) error
	UpdateProfilePicture(ctx context.Context, token string, userID uint, pictureURL string) (*models.User, error)
}

// Draft is the edit form for one of the user's ideas.
type Draft struct {
	PostID  uint   `json:"post_id"`
	Title   string `json:"title"`
	Content string `json:"content"`
}

// Stats summarise the user's ideas.
type Stats struct {
	Ideas     int `json:"ideas"`
	Upvotes   int `json:"upvotes"`
	Downvotes int `json:"downvotes"`
	Comments  int `json:"comments"`
}

// View is the rendered profile screen.
type View struct {
	User     *models.User  `json:"user"`
	Posts    []models.Post `json:"posts"`
	Stats    Stats         `json:"stats"`
	Draft    *Draft        `json:"draft,omitempty"`
	Deleting uint          `json:"deleting,omitempty"`
}

// Controller owns the profile screen state for one session.
type Controller struct {
	backend Backend
	sess    *session.Session
	log     *observability.ScreenLogger

	mu       sync.Mutex
	user     *models.User
	posts    []models.Post
	draft    *Draft
	deleting uint
}

// NewController creates the profile screen for sess.
func NewController(backend Backend, sess *session.Session) *Controller {
	return &Controller{
		backend: backend,
		sess:    sess,
		log:     observability.NewScreenLogger("profile"),
	}
}

// Load fetches the user and their ideas.
func (c *Controller) Load(ctx context.Context) error {
	if err := session.Require(c.sess); err != nil {
		return err
	}
	user, err := c.backend.Me(ctx, c.sess.Token)
	if err != nil {
		c.log.LogError(ctx, "load_user", err)
		return err
	}
	c.mu.Lock()
	c.user = user
	c.mu.Unlock()
	return c.loadPosts(ctx)
}

func (c *Controller) loadPosts(ctx context.Context) error {
	records, err := c.backend.ListPosts(ctx, c.sess.Token)
	if err != nil {
		c.log.LogError(ctx, "load_posts", err)
		return err
	}
	viewer := remote.Viewer{UserID: c.sess.UserID, Username: c.sess.Username}
	var own []models.Post
	for _, rec := range records {
		if rec.UserID == c.sess.UserID {
			own = append(own, rec.ToPost(viewer))
		}
	}
	c.mu.Lock()
	c.posts = own
	c.mu.Unlock()
	return nil
}

// View returns the rendered screen.
func (c *Controller) View() View {
	c.mu.Lock()
	defer c.mu.Unlock()
	v := View{
		Posts:    append([]models.Post{}, c.posts...),
		Deleting: c.deleting,
	}
	if c.user != nil {
		u := *c.user
		v.User = &u
	}
	if c.draft != nil {
		d := *c.draft
		v.Draft = &d
	}
	for _, p := range c.posts {
		v.Stats.Ideas++
		v.Stats.Upvotes += p.Upvotes
		v.Stats.Downvotes += p.Downvotes
		v.Stats.Comments += p.CommentCount
	}
	return v
}

func (c *Controller) findLocked(postID uint) (models.Post, bool) {
	for _, p := range c.posts {
		if p.ID == postID {
			return p, true
		}
	}
	return models.Post{}, false
}

// BeginEdit opens the edit form for one of the user's ideas.
func (c *Controller) BeginEdit(postID uint) (Draft, error) {
	if err := session.Require(c.sess); err != nil {
		return Draft{}, err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	p, ok := c.findLocked(postID)
	if !ok {
		return Draft{}, ErrPostNotFound
	}
	d := Draft{PostID: p.ID, Title: p.Title, Content: p.Content}
	c.draft = &d
	return d, nil
}

// SubmitEdit saves the open draft with the given values and reloads the list.
func (c *Controller) SubmitEdit(ctx context.Context, title, content string) error {
	if err := session.Require(c.sess); err != nil {
		return err
	}
	title = strings.TrimSpace(title)
	content = strings.TrimSpace(content)

	c.mu.Lock()
	if c.draft == nil {
		c.mu.Unlock()
		return ErrNotEditing
	}
	c.draft.Title, c.draft.Content = title, content
	postID := c.draft.PostID
	c.mu.Unlock()

	if title == "" || content == "" {
		return models.NewValidationError("Title and content are required")
	}
	if err := c.backend.UpdatePost(ctx, c.sess.Token, postID, remote.PostInput{Title: title, Content: content}); err != nil {
		c.log.LogError(ctx, "edit", err)
		return err
	}
	c.mu.Lock()
	c.draft = nil
	c.mu.Unlock()
	return c.loadPosts(ctx)
}

// CancelEdit closes the edit form without a request.
func (c *Controller) CancelEdit() {
	c.mu.Lock()
	c.draft = nil
	c.mu.Unlock()
}

// RequestDelete arms the delete confirmation for one of the user's ideas.
func (c *Controller) RequestDelete(postID uint) error {
	if err := session.Require(c.sess); err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.findLocked(postID); !ok {
		return ErrPostNotFound
	}
	c.deleting = postID
	return nil
}

// AbortDelete disarms the delete confirmation.
func (c *Controller) AbortDelete() {
	c.mu.Lock()
	c.deleting = 0
	c.mu.Unlock()
}

// ConfirmDelete deletes the armed idea and drops it from the list.
func (c *Controller) ConfirmDelete(ctx context.Context) error {
	if err := session.Require(c.sess); err != nil {
		return err
	}
	c.mu.Lock()
	postID := c.deleting
	c.deleting = 0
	c.mu.Unlock()
	if postID == 0 {
		return ErrConfirmationRequired
	}

	if err := c.backend.DeletePost(ctx, c.sess.Token, postID); err != nil {
		c.log.LogError(ctx, "delete", err)
		return err
	}
	c.mu.Lock()
	for i, p := range c.posts {
		if p.ID == postID {
			c.posts = append(c.posts[:i], c.posts[i+1:]...)
			break
		}
	}
	c.mu.Unlock()
	c.log.LogAction(ctx, "delete", map[string]interface{}{"post_id": postID})
	return nil
}

// UpdatePicture sets the profile picture to an http(s) image URL.
func (c *Controller) UpdatePicture(ctx context.Context, pictureURL string) error {
	if err := session.Require(c.sess); err != nil {
		return err
	}
	pictureURL = strings.TrimSpace(pictureURL)
	u, err := url.Parse(pictureURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return models.NewValidationError("Profile picture must be an http or https URL")
	}

	user, err := c.backend.UpdateProfilePicture(ctx, c.sess.Token, c.sess.UserID, pictureURL)
	if err != nil {
		c.log.LogError(ctx, "update_picture", err)
		return err
	}
	c.mu.Lock()
	if user != nil && user.ID != 0 {
		c.user = user
	} else if c.user != nil {
		c.user.ProfilePicture = pictureURL
	}
	c.mu.Unlock()
	return nil
}
