package vote

import (
	"context"
	"errors"
	"strings"
	"sync"

	"synerthree/internal/models"
	"synerthree/internal/observability"
	"synerthree/internal/remote"
	"synerthree/internal/session"

	"github.com/google/uuid"
)

var (
	// ErrReasonRequired is returned when a downvote is confirmed with a blank reason.
	ErrReasonRequired = errors.New("please provide a reason for downvoting")
	// ErrVoteInFlight is returned while an earlier vote on the same post is unanswered.
	ErrVoteInFlight = errors.New("a vote on this post is already being sent")
	// ErrVoteConflict is returned when the backend already holds a conflicting vote.
	ErrVoteConflict = errors.New("the server already has a vote on this post")
	// ErrPromptClosed is returned when a downvote is confirmed without an open prompt.
	ErrPromptClosed = errors.New("the downvote prompt is not open")
)

var screenLog = observability.NewScreenLogger("post_card")

// Sender delivers a vote mutation to the backend.
type Sender interface {
	Vote(ctx context.Context, token, idempotencyKey string, req remote.VoteRequest) (remote.VoteStatus, error)
}

// Provisional is an optimistic mutation waiting for the backend's answer. The
// deltas are the ones actually applied, after clamping at zero.
type Provisional struct {
	ID        string
	PostID    uint
	From      models.VoteState
	To        models.VoteState
	DeltaUp   int
	DeltaDown int
	Request   remote.VoteType
	Reason    string
}

// Snapshot is the rendered state of a card.
type Snapshot struct {
	models.Post
	PromptOpen bool `json:"downvote_prompt_open"`
	Pending    bool `json:"vote_pending"`
}

// Card is the view model of one post's vote controls. It is safe for
// concurrent use; the backend is called without holding the lock.
type Card struct {
	mu         sync.Mutex
	post       models.Post
	promptOpen bool
	pending    *Provisional
	// pendingComments counts optimistic comments not yet answered;
	// commentsResynced is set when a refetch lands while any are pending.
	pendingComments  int
	commentsResynced bool

	sender    Sender
	onSettled func(ctx context.Context)
}

// NewCard creates a card for post. onSettled, if set, runs after the backend
// has answered a vote (success or conflict) so the owner can refetch.
func NewCard(post models.Post, sender Sender, onSettled func(ctx context.Context)) *Card {
	if !post.UserVote.Valid() {
		post.UserVote = models.VoteNone
	}
	return &Card{post: post, sender: sender, onSettled: onSettled}
}

// Snapshot returns a copy of the card state.
func (c *Card) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return Snapshot{Post: c.post, PromptOpen: c.promptOpen, Pending: c.pending != nil}
}

// PromptOpen reports whether the downvote reason prompt is showing.
func (c *Card) PromptOpen() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.promptOpen
}

// Replace installs authoritative data from a refetch. It is ignored while a
// vote is pending; that vote's settlement triggers its own refetch. Comments
// still pending stay counted on top of the refetched count.
func (c *Card) Replace(post models.Post) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.pending != nil {
		return
	}
	if !post.UserVote.Valid() {
		post.UserVote = models.VoteNone
	}
	if c.pendingComments > 0 {
		post.CommentCount += c.pendingComments
		c.commentsResynced = true
	}
	c.post = post
}

// AddComments shifts the comment count by delta, never below zero.
func (c *Card) AddComments(delta int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	shift(&c.post.CommentCount, delta)
}

// BeginComment counts an optimistic comment. Refetched counts keep it
// included until EndComment.
func (c *Card) BeginComment() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.pendingComments++
	c.post.CommentCount++
}

// EndComment settles an optimistic comment. A failed one is taken back out of
// the count. It reports whether a refetch landed while comments were pending,
// in which case the count may or may not include a created comment and the
// owner should refetch again.
func (c *Card) EndComment(created bool) (resync bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.pendingComments == 0 {
		return false
	}
	c.pendingComments--
	if !created {
		shift(&c.post.CommentCount, -1)
	}
	resync = created && c.commentsResynced
	if c.pendingComments == 0 {
		c.commentsResynced = false
	}
	return resync
}

// Upvote handles a click on the upvote control.
func (c *Card) Upvote(ctx context.Context, sess *session.Session) error {
	if err := session.Require(sess); err != nil {
		return err
	}
	c.mu.Lock()
	if c.pending != nil {
		c.mu.Unlock()
		return ErrVoteInFlight
	}
	p := c.apply(Transition(c.post.UserVote, IntentUpvote), "")
	c.mu.Unlock()
	return c.send(ctx, sess, p)
}

// Downvote handles a click on the downvote control. From none or up it only
// opens the reason prompt; from down it retracts the vote.
func (c *Card) Downvote(ctx context.Context, sess *session.Session) error {
	if err := session.Require(sess); err != nil {
		return err
	}
	c.mu.Lock()
	if c.pending != nil {
		c.mu.Unlock()
		return ErrVoteInFlight
	}
	out := Transition(c.post.UserVote, IntentDownvote)
	if out.OpenPrompt {
		c.promptOpen = true
		c.mu.Unlock()
		recordTransition(c.post.UserVote, out.To, "prompt")
		return nil
	}
	p := c.apply(out, "")
	c.mu.Unlock()
	return c.send(ctx, sess, p)
}

// ConfirmDownvote commits a downvote with reason. A blank reason leaves the
// prompt open and changes nothing.
func (c *Card) ConfirmDownvote(ctx context.Context, sess *session.Session, reason string) error {
	if err := session.Require(sess); err != nil {
		return err
	}
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return ErrReasonRequired
	}
	c.mu.Lock()
	if c.pending != nil {
		c.mu.Unlock()
		return ErrVoteInFlight
	}
	if !c.promptOpen {
		c.mu.Unlock()
		return ErrPromptClosed
	}
	out := Transition(c.post.UserVote, IntentConfirm)
	if !out.Changes() {
		c.promptOpen = false
		c.mu.Unlock()
		return nil
	}
	p := c.apply(out, reason)
	c.mu.Unlock()
	return c.send(ctx, sess, p)
}

// CancelDownvote closes the prompt without touching the vote.
func (c *Card) CancelDownvote() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.promptOpen = false
}

// apply mutates the local copy and records the provisional mutation.
// The caller holds c.mu.
func (c *Card) apply(out Outcome, reason string) *Provisional {
	p := &Provisional{
		ID:      uuid.NewString(),
		PostID:  c.post.ID,
		From:    c.post.UserVote,
		To:      out.To,
		Request: out.Request,
		Reason:  reason,
	}
	p.DeltaUp = shift(&c.post.Upvotes, out.DeltaUp)
	p.DeltaDown = shift(&c.post.Downvotes, out.DeltaDown)
	c.post.UserVote = out.To
	c.promptOpen = false
	c.pending = p
	return p
}

// revert applies the inverse of p. The caller holds c.mu.
func (c *Card) revert(p *Provisional) {
	shift(&c.post.Upvotes, -p.DeltaUp)
	shift(&c.post.Downvotes, -p.DeltaDown)
	c.post.UserVote = p.From
}

func (c *Card) send(ctx context.Context, sess *session.Session, p *Provisional) error {
	status, err := c.sender.Vote(ctx, sess.Token, p.ID, remote.VoteRequest{
		VoteType: p.Request,
		PostID:   p.PostID,
		UserID:   sess.UserID,
		Reason:   p.Reason,
	})
	if (err == nil && status == remote.VoteExists) || remote.IsConflict(err) {
		err = ErrVoteConflict
	}

	c.mu.Lock()
	if err != nil {
		c.revert(p)
	}
	c.pending = nil
	c.promptOpen = false
	c.mu.Unlock()

	switch {
	case err == nil:
		recordTransition(p.From, p.To, "success")
	case errors.Is(err, ErrVoteConflict):
		recordTransition(p.From, p.To, "conflict")
		observability.VoteRollbacks.WithLabelValues("conflict").Inc()
	default:
		recordTransition(p.From, p.To, "error")
		observability.VoteRollbacks.WithLabelValues("error").Inc()
		screenLog.LogError(ctx, "vote", err)
	}

	if (err == nil || errors.Is(err, ErrVoteConflict)) && c.onSettled != nil {
		c.onSettled(ctx)
	}
	return err
}

func recordTransition(from, to models.VoteState, result string) {
	observability.VoteTransitions.WithLabelValues(string(from), string(to), result).Inc()
}

// shift adds delta to *n without going below zero and returns the change made.
func shift(n *int, delta int) int {
	before := *n
	*n = max(before+delta, 0)
	return *n - before
}
