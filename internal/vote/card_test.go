package vote

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"testing"
	"time"

	"synerthree/internal/models"
	"synerthree/internal/remote"
	"synerthree/internal/session"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubSender struct {
	mu     sync.Mutex
	VoteFn func(ctx context.Context, token, key string, req remote.VoteRequest) (remote.VoteStatus, error)
	calls  []remote.VoteRequest
	keys   []string
}

func (s *stubSender) Vote(ctx context.Context, token, key string, req remote.VoteRequest) (remote.VoteStatus, error) {
	s.mu.Lock()
	s.calls = append(s.calls, req)
	s.keys = append(s.keys, key)
	s.mu.Unlock()
	if s.VoteFn == nil {
		return remote.VoteSuccess, nil
	}
	return s.VoteFn(ctx, token, key, req)
}

func (s *stubSender) Calls() []remote.VoteRequest {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]remote.VoteRequest(nil), s.calls...)
}

func testSession() *session.Session {
	return &session.Session{ID: "s1", Token: "tok", UserID: 4, Username: "ada", ExpiresAt: time.Now().Add(time.Hour)}
}

func tally(c *Card) (int, int, models.VoteState) {
	s := c.Snapshot()
	return s.Upvotes, s.Downvotes, s.UserVote
}

func newPost(up, down int, state models.VoteState) models.Post {
	return models.Post{ID: 9, Title: "Tool library", Upvotes: up, Downvotes: down, UserVote: state}
}

func TestTransitionTable(t *testing.T) {
	tests := []struct {
		from   models.VoteState
		intent Intent
		want   Outcome
	}{
		{models.VoteNone, IntentUpvote, Outcome{To: models.VoteUp, DeltaUp: 1, Request: remote.VoteTypeUp}},
		{models.VoteUp, IntentUpvote, Outcome{To: models.VoteNone, DeltaUp: -1, Request: remote.VoteTypeRemove}},
		{models.VoteDown, IntentUpvote, Outcome{To: models.VoteUp, DeltaUp: 1, DeltaDown: -1, Request: remote.VoteTypeUp}},
		{models.VoteNone, IntentDownvote, Outcome{To: models.VoteNone, OpenPrompt: true}},
		{models.VoteDown, IntentDownvote, Outcome{To: models.VoteNone, DeltaDown: -1, Request: remote.VoteTypeRemove}},
		{models.VoteUp, IntentDownvote, Outcome{To: models.VoteUp, OpenPrompt: true}},
		{models.VoteNone, IntentConfirm, Outcome{To: models.VoteDown, DeltaDown: 1, Request: remote.VoteTypeDown}},
		{models.VoteUp, IntentConfirm, Outcome{To: models.VoteDown, DeltaUp: -1, DeltaDown: 1, Request: remote.VoteTypeDown}},
		{models.VoteNone, IntentCancel, Outcome{To: models.VoteNone}},
		{models.VoteUp, IntentCancel, Outcome{To: models.VoteUp}},
		{models.VoteDown, IntentCancel, Outcome{To: models.VoteDown}},
	}
	for _, tt := range tests {
		t.Run(string(tt.from)+"/"+string(tt.intent), func(t *testing.T) {
			assert.Equal(t, tt.want, Transition(tt.from, tt.intent))
		})
	}
}

func TestTransitionTable_SingleTally(t *testing.T) {
	// Whatever the path, a state participates in at most one tally.
	states := []models.VoteState{models.VoteNone, models.VoteUp, models.VoteDown}
	intents := []Intent{IntentUpvote, IntentDownvote, IntentConfirm, IntentCancel}
	contribution := func(s models.VoteState) (int, int) {
		switch s {
		case models.VoteUp:
			return 1, 0
		case models.VoteDown:
			return 0, 1
		}
		return 0, 0
	}
	for _, from := range states {
		for _, intent := range intents {
			out := Transition(from, intent)
			fu, fd := contribution(from)
			tu, td := contribution(out.To)
			assert.Equal(t, tu-fu, out.DeltaUp, "%s/%s", from, intent)
			assert.Equal(t, td-fd, out.DeltaDown, "%s/%s", from, intent)
		}
	}
}

func TestUpvoteAndRetract(t *testing.T) {
	sender := &stubSender{}
	settled := 0
	card := NewCard(newPost(10, 2, models.VoteNone), sender, func(context.Context) { settled++ })
	sess := testSession()

	require.NoError(t, card.Upvote(context.Background(), sess))
	up, down, state := tally(card)
	assert.Equal(t, 11, up)
	assert.Equal(t, 2, down)
	assert.Equal(t, models.VoteUp, state)

	require.NoError(t, card.Upvote(context.Background(), sess))
	up, down, state = tally(card)
	assert.Equal(t, 10, up)
	assert.Equal(t, 2, down)
	assert.Equal(t, models.VoteNone, state)

	calls := sender.Calls()
	require.Len(t, calls, 2)
	assert.Equal(t, remote.VoteRequest{VoteType: remote.VoteTypeUp, PostID: 9, UserID: 4}, calls[0])
	assert.Equal(t, remote.VoteTypeRemove, calls[1].VoteType)
	assert.Equal(t, 2, settled)
	assert.NotEqual(t, sender.keys[0], sender.keys[1])
}

func TestDownvoteWithReason(t *testing.T) {
	sender := &stubSender{}
	card := NewCard(newPost(10, 2, models.VoteNone), sender, nil)
	sess := testSession()
	ctx := context.Background()

	require.NoError(t, card.Downvote(ctx, sess))
	assert.True(t, card.PromptOpen())
	assert.Empty(t, sender.Calls())
	up, down, state := tally(card)
	assert.Equal(t, 10, up)
	assert.Equal(t, 2, down)
	assert.Equal(t, models.VoteNone, state)

	require.NoError(t, card.ConfirmDownvote(ctx, sess, "  unclear audience "))
	up, down, state = tally(card)
	assert.Equal(t, 10, up)
	assert.Equal(t, 3, down)
	assert.Equal(t, models.VoteDown, state)
	assert.False(t, card.PromptOpen())

	calls := sender.Calls()
	require.Len(t, calls, 1)
	assert.Equal(t, remote.VoteTypeDown, calls[0].VoteType)
	assert.Equal(t, "unclear audience", calls[0].Reason)

	require.NoError(t, card.Downvote(ctx, sess))
	up, down, state = tally(card)
	assert.Equal(t, 10, up)
	assert.Equal(t, 2, down)
	assert.Equal(t, models.VoteNone, state)
	assert.Equal(t, remote.VoteTypeRemove, sender.Calls()[1].VoteType)
}

func TestSwitchVotes(t *testing.T) {
	sender := &stubSender{}
	card := NewCard(newPost(5, 5, models.VoteUp), sender, nil)
	sess := testSession()
	ctx := context.Background()

	require.NoError(t, card.Downvote(ctx, sess))
	require.True(t, card.PromptOpen())
	require.NoError(t, card.ConfirmDownvote(ctx, sess, "too broad"))
	up, down, state := tally(card)
	assert.Equal(t, 4, up)
	assert.Equal(t, 6, down)
	assert.Equal(t, models.VoteDown, state)

	require.NoError(t, card.Upvote(ctx, sess))
	up, down, state = tally(card)
	assert.Equal(t, 5, up)
	assert.Equal(t, 5, down)
	assert.Equal(t, models.VoteUp, state)
}

func TestBlankReasonKeepsPromptOpen(t *testing.T) {
	sender := &stubSender{}
	card := NewCard(newPost(10, 2, models.VoteNone), sender, nil)
	sess := testSession()

	require.NoError(t, card.Downvote(context.Background(), sess))
	err := card.ConfirmDownvote(context.Background(), sess, " \t\n")
	assert.ErrorIs(t, err, ErrReasonRequired)
	assert.True(t, card.PromptOpen())
	assert.Empty(t, sender.Calls())

	up, down, state := tally(card)
	assert.Equal(t, 10, up)
	assert.Equal(t, 2, down)
	assert.Equal(t, models.VoteNone, state)
}

func TestCancelRestoresExactly(t *testing.T) {
	sender := &stubSender{}
	card := NewCard(newPost(7, 1, models.VoteUp), sender, nil)
	before := card.Snapshot()

	require.NoError(t, card.Downvote(context.Background(), testSession()))
	card.CancelDownvote()

	assert.Equal(t, before, card.Snapshot())
	assert.Empty(t, sender.Calls())
}

func TestConfirmWithoutPrompt(t *testing.T) {
	sender := &stubSender{}
	card := NewCard(newPost(1, 1, models.VoteNone), sender, nil)
	err := card.ConfirmDownvote(context.Background(), testSession(), "reason")
	assert.ErrorIs(t, err, ErrPromptClosed)
	assert.Empty(t, sender.Calls())
}

func TestNoSessionSendsNothing(t *testing.T) {
	sender := &stubSender{}
	card := NewCard(newPost(10, 2, models.VoteNone), sender, nil)
	ctx := context.Background()
	expired := &session.Session{Token: "tok", UserID: 1, ExpiresAt: time.Now().Add(-time.Minute)}

	for _, sess := range []*session.Session{nil, expired} {
		assert.ErrorIs(t, card.Upvote(ctx, sess), session.ErrNoSession)
		assert.ErrorIs(t, card.Downvote(ctx, sess), session.ErrNoSession)
		assert.ErrorIs(t, card.ConfirmDownvote(ctx, sess, "why"), session.ErrNoSession)
	}
	assert.False(t, card.PromptOpen())
	assert.Empty(t, sender.Calls())
	up, down, state := tally(card)
	assert.Equal(t, 10, up)
	assert.Equal(t, 2, down)
	assert.Equal(t, models.VoteNone, state)
}

func TestRollbackOnFailure(t *testing.T) {
	upstream := models.NewUpstreamError("Backend request failed", errors.New("boom"))
	sender := &stubSender{
		VoteFn: func(context.Context, string, string, remote.VoteRequest) (remote.VoteStatus, error) {
			return "", upstream
		},
	}
	settled := false
	card := NewCard(newPost(5, 3, models.VoteUp), sender, func(context.Context) { settled = true })
	sess := testSession()
	before := card.Snapshot()

	err := card.Upvote(context.Background(), sess)
	assert.ErrorIs(t, err, upstream)
	assert.Equal(t, before, card.Snapshot())

	require.NoError(t, card.Downvote(context.Background(), sess))
	err = card.ConfirmDownvote(context.Background(), sess, "meh")
	require.Error(t, err)
	assert.False(t, card.PromptOpen())
	assert.Equal(t, before, card.Snapshot())
	assert.False(t, settled)
}

func TestConflictRollsBackAndResyncs(t *testing.T) {
	sender := &stubSender{
		VoteFn: func(context.Context, string, string, remote.VoteRequest) (remote.VoteStatus, error) {
			return remote.VoteExists, nil
		},
	}
	settled := false
	card := NewCard(newPost(3, 0, models.VoteNone), sender, func(context.Context) { settled = true })

	err := card.Upvote(context.Background(), testSession())
	assert.ErrorIs(t, err, ErrVoteConflict)
	up, _, state := tally(card)
	assert.Equal(t, 3, up)
	assert.Equal(t, models.VoteNone, state)
	assert.True(t, settled)
}

func TestBackendConflictStatusResyncs(t *testing.T) {
	sender := &stubSender{
		VoteFn: func(context.Context, string, string, remote.VoteRequest) (remote.VoteStatus, error) {
			return "", &models.AppError{Code: models.CodeConflict, Message: "conflict",
				Err: &remote.StatusError{Op: "vote", Status: http.StatusConflict}}
		},
	}
	settled := false
	card := NewCard(newPost(3, 0, models.VoteNone), sender, func(context.Context) { settled = true })

	assert.ErrorIs(t, card.Upvote(context.Background(), testSession()), ErrVoteConflict)
	up, _, _ := tally(card)
	assert.Equal(t, 3, up)
	assert.True(t, settled)
}

func TestInFlightGuard(t *testing.T) {
	release := make(chan struct{})
	entered := make(chan struct{})
	sender := &stubSender{
		VoteFn: func(context.Context, string, string, remote.VoteRequest) (remote.VoteStatus, error) {
			close(entered)
			<-release
			return remote.VoteSuccess, nil
		},
	}
	card := NewCard(newPost(0, 0, models.VoteNone), sender, nil)
	sess := testSession()

	done := make(chan error, 1)
	go func() { done <- card.Upvote(context.Background(), sess) }()
	<-entered

	assert.True(t, card.Snapshot().Pending)
	assert.ErrorIs(t, card.Upvote(context.Background(), sess), ErrVoteInFlight)
	assert.ErrorIs(t, card.Downvote(context.Background(), sess), ErrVoteInFlight)

	card.Replace(newPost(50, 50, models.VoteNone))
	assert.Equal(t, 1, card.Snapshot().Upvotes)

	close(release)
	require.NoError(t, <-done)
	assert.Len(t, sender.Calls(), 1)
	assert.False(t, card.Snapshot().Pending)

	card.Replace(newPost(50, 50, models.VoteNone))
	assert.Equal(t, 50, card.Snapshot().Upvotes)
}

func TestCountsClampAtZero(t *testing.T) {
	sender := &stubSender{
		VoteFn: func(context.Context, string, string, remote.VoteRequest) (remote.VoteStatus, error) {
			return "", errors.New("down")
		},
	}
	// Inconsistent server data: an up vote with no upvotes counted.
	card := NewCard(newPost(0, 0, models.VoteUp), sender, nil)

	_ = card.Upvote(context.Background(), testSession())
	up, down, state := tally(card)
	assert.Equal(t, 0, up)
	assert.Equal(t, 0, down)
	assert.Equal(t, models.VoteUp, state)
}

func TestAddComments(t *testing.T) {
	card := NewCard(models.Post{ID: 1, CommentCount: 1}, &stubSender{}, nil)
	card.AddComments(1)
	assert.Equal(t, 2, card.Snapshot().CommentCount)
	card.AddComments(-5)
	assert.Equal(t, 0, card.Snapshot().CommentCount)
}

func TestPendingCommentSurvivesRefetch(t *testing.T) {
	card := NewCard(models.Post{ID: 1, CommentCount: 1}, &stubSender{}, nil)

	card.BeginComment()
	assert.Equal(t, 2, card.Snapshot().CommentCount)

	card.Replace(models.Post{ID: 1, CommentCount: 1})
	assert.Equal(t, 2, card.Snapshot().CommentCount)

	assert.False(t, card.EndComment(false))
	assert.Equal(t, 1, card.Snapshot().CommentCount)

	card.BeginComment()
	card.Replace(models.Post{ID: 1, CommentCount: 2})
	assert.True(t, card.EndComment(true))
	assert.Equal(t, 3, card.Snapshot().CommentCount)

	card.BeginComment()
	assert.False(t, card.EndComment(true))
	assert.False(t, card.EndComment(false), "no pending comment left")
	assert.Equal(t, 4, card.Snapshot().CommentCount)
}
