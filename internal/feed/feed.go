// Package feed is the dashboard screen: the list of ideas, their vote cards
// and the new-idea form.
package feed

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"synerthree/internal/models"
	"synerthree/internal/observability"
	"synerthree/internal/remote"
	"synerthree/internal/session"
	"synerthree/internal/vote"
)

// ErrSubmitInFlight is returned when a new idea is submitted while the previous one is still being created.
var ErrSubmitInFlight = errors.New("an idea is already being submitted")

// ErrCardNotFound is returned for vote actions on a post the feed does not show.
var ErrCardNotFound = errors.New("post is not on the feed")

// Backend is the part of the remote client the feed uses.
type Backend interface {
	vote.Sender
	ListPosts(ctx context.Context, token string) ([]remote.PostRecord, error)
	CreatePost(ctx context.Context, token string, in remote.PostInput) (*remote.PostRecord, error)
}

// View is the rendered feed.
type View struct {
	Posts       []vote.Snapshot `json:"posts"`
	Loaded      bool            `json:"loaded"`
	Submitting  bool            `json:"submitting"`
	RefreshedAt time.Time       `json:"refreshed_at"`
}

// Controller owns the feed screen state for one session.
type Controller struct {
	backend Backend
	sess    *session.Session
	log     *observability.ScreenLogger

	mu          sync.Mutex
	cards       []*vote.Card
	byID        map[uint]*vote.Card
	loaded      bool
	submitting  bool
	refreshedAt time.Time
	// fetchSeq orders concurrent refreshes; only the newest result is applied.
	fetchSeq   uint64
	appliedSeq uint64
}

// NewController creates a feed for sess. sess may be nil for an anonymous viewer.
func NewController(backend Backend, sess *session.Session) *Controller {
	return &Controller{
		backend: backend,
		sess:    sess,
		log:     observability.NewScreenLogger("feed"),
		byID:    make(map[uint]*vote.Card),
	}
}

// Mount loads the feed when the screen is first shown.
func (c *Controller) Mount(ctx context.Context) error {
	return c.Refresh(ctx)
}

// Focus reloads the feed when the screen is re-entered.
func (c *Controller) Focus(ctx context.Context) error {
	return c.Refresh(ctx)
}

// Refresh refetches the full list from the backend.
func (c *Controller) Refresh(ctx context.Context) error {
	c.mu.Lock()
	c.fetchSeq++
	seq := c.fetchSeq
	c.mu.Unlock()

	records, err := c.backend.ListPosts(ctx, c.token())
	if err != nil {
		c.log.LogError(ctx, "refresh", err)
		return err
	}

	viewer := c.viewer()
	c.mu.Lock()
	defer c.mu.Unlock()
	if seq < c.appliedSeq {
		return nil
	}
	c.appliedSeq = seq

	cards := make([]*vote.Card, 0, len(records))
	byID := make(map[uint]*vote.Card, len(records))
	for _, rec := range records {
		post := rec.ToPost(viewer)
		card, ok := c.byID[post.ID]
		if ok {
			card.Replace(post)
		} else {
			card = vote.NewCard(post, c.backend, c.onCardSettled)
		}
		cards = append(cards, card)
		byID[post.ID] = card
	}
	c.cards = cards
	c.byID = byID
	c.loaded = true
	c.refreshedAt = time.Now()
	return nil
}

func (c *Controller) onCardSettled(ctx context.Context) {
	// Refresh already logged the failure; the optimistic state stays on screen.
	_ = c.Refresh(ctx)
}

// Posts returns the card snapshots in server order.
func (c *Controller) Posts() []vote.Snapshot {
	c.mu.Lock()
	cards := append([]*vote.Card(nil), c.cards...)
	c.mu.Unlock()

	out := make([]vote.Snapshot, 0, len(cards))
	for _, card := range cards {
		out = append(out, card.Snapshot())
	}
	return out
}

// View returns the rendered feed.
func (c *Controller) View() View {
	posts := c.Posts()
	c.mu.Lock()
	defer c.mu.Unlock()
	return View{
		Posts:       posts,
		Loaded:      c.loaded,
		Submitting:  c.submitting,
		RefreshedAt: c.refreshedAt,
	}
}

// Card returns the vote card of a post on the feed.
func (c *Controller) Card(postID uint) (*vote.Card, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	card, ok := c.byID[postID]
	if !ok {
		return nil, ErrCardNotFound
	}
	return card, nil
}

// Submit creates a new idea and reloads the list. The new post only appears
// once the backend returns it.
func (c *Controller) Submit(ctx context.Context, title, content string) error {
	if err := session.Require(c.sess); err != nil {
		return err
	}
	title = strings.TrimSpace(title)
	content = strings.TrimSpace(content)
	if title == "" || content == "" {
		return models.NewValidationError("Title and content are required")
	}

	c.mu.Lock()
	if c.submitting {
		c.mu.Unlock()
		return ErrSubmitInFlight
	}
	c.submitting = true
	c.mu.Unlock()
	defer func() {
		c.mu.Lock()
		c.submitting = false
		c.mu.Unlock()
	}()

	created, err := c.backend.CreatePost(ctx, c.sess.Token, remote.PostInput{
		Title:   title,
		Content: content,
		UserID:  c.sess.UserID,
	})
	if err != nil {
		c.log.LogError(ctx, "submit", err)
		return err
	}
	c.log.LogAction(ctx, "submit", map[string]interface{}{"post_id": created.ID})
	return c.Refresh(ctx)
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
