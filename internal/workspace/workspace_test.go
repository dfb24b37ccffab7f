package workspace

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"synerthree/internal/detail"
	"synerthree/internal/insight"
	"synerthree/internal/models"
	"synerthree/internal/remote"
	"synerthree/internal/session"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// nopBackend satisfies Backend; the registry never calls it directly.
type nopBackend struct{}

func (nopBackend) Vote(context.Context, string, string, remote.VoteRequest) (remote.VoteStatus, error) {
	return remote.VoteSuccess, nil
}
func (nopBackend) ListPosts(context.Context, string) ([]remote.PostRecord, error) { return nil, nil }
func (nopBackend) CreatePost(context.Context, string, remote.PostInput) (*remote.PostRecord, error) {
	return &remote.PostRecord{}, nil
}
func (nopBackend) GetPost(context.Context, string, uint) (*remote.PostRecord, error) {
	return &remote.PostRecord{}, nil
}
func (nopBackend) ListComments(context.Context, string, uint) ([]remote.CommentRecord, error) {
	return nil, nil
}
func (nopBackend) UpdatePost(context.Context, string, uint, remote.PostInput) error { return nil }
func (nopBackend) DeletePost(context.Context, string, uint) error                   { return nil }
func (nopBackend) CreateComment(context.Context, string, string, remote.CommentInput) (*remote.CommentRecord, error) {
	return &remote.CommentRecord{}, nil
}
func (nopBackend) DeleteComment(context.Context, string, uint) error { return nil }
func (nopBackend) Me(context.Context, string) (*models.User, error)  { return &models.User{}, nil }
func (nopBackend) UpdateProfilePicture(context.Context, string, uint, string) (*models.User, error) {
	return &models.User{}, nil
}

type nopAsker struct{}

func (nopAsker) Ask(context.Context, string, insight.Request) (string, error) { return "", nil }

func live(id string) *session.Session {
	return &session.Session{ID: id, Token: "t", UserID: 1, ExpiresAt: time.Now().Add(time.Hour)}
}

func TestRegistry_OpenIsStablePerSession(t *testing.T) {
	r := NewRegistry(nopBackend{}, nopAsker{})
	a := r.Open(live("a"))
	assert.Same(t, a, r.Open(live("a")))
	assert.NotSame(t, a, r.Open(live("b")))
	assert.Equal(t, 2, r.Len())

	r.Close("a")
	assert.Equal(t, 1, r.Len())
	assert.NotSame(t, a, r.Open(live("a")))
}

func TestWorkspace_Detail(t *testing.T) {
	w := NewRegistry(nopBackend{}, nopAsker{}).Open(live("a"))
	ctx := context.Background()

	d, err := w.OpenDetail(ctx, 3)
	require.NoError(t, err)
	again, err := w.OpenDetail(ctx, 3)
	require.NoError(t, err)
	assert.Same(t, d, again)
	assert.Equal(t, uint(3), d.PostID())

	w.CloseDetail(3)
	fresh, err := w.OpenDetail(ctx, 3)
	require.NoError(t, err)
	assert.NotSame(t, d, fresh)
}

// gatedBackend blocks GetPost until release is closed and counts the calls.
type gatedBackend struct {
	nopBackend
	calls   atomic.Int32
	entered chan struct{}
	release chan struct{}
	err     error
}

func (g *gatedBackend) GetPost(context.Context, string, uint) (*remote.PostRecord, error) {
	if g.calls.Add(1) == 1 {
		close(g.entered)
		<-g.release
	}
	if g.err != nil {
		return nil, g.err
	}
	return &remote.PostRecord{ID: 3, Title: "Tool library"}, nil
}

func TestWorkspace_ConcurrentOpenWaitsForFirstLoad(t *testing.T) {
	backend := &gatedBackend{entered: make(chan struct{}), release: make(chan struct{})}
	w := NewRegistry(backend, nopAsker{}).Open(live("a"))
	ctx := context.Background()

	first := make(chan error, 1)
	go func() {
		_, err := w.OpenDetail(ctx, 3)
		first <- err
	}()
	<-backend.entered

	second := make(chan error, 1)
	var got *detail.Controller
	go func() {
		ctrl, err := w.OpenDetail(ctx, 3)
		got = ctrl
		second <- err
	}()

	close(backend.release)
	require.NoError(t, <-first)
	require.NoError(t, <-second)
	require.NotNil(t, got)
	_, err := got.Card()
	assert.NoError(t, err)
	assert.Equal(t, "Tool library", got.View().Post.Title)
	assert.Equal(t, int32(1), backend.calls.Load())
}

func TestWorkspace_FailedLoadIsRetried(t *testing.T) {
	backend := &gatedBackend{entered: make(chan struct{}), release: make(chan struct{}),
		err: models.NewUpstreamError("Backend request failed", nil)}
	close(backend.release)
	w := NewRegistry(backend, nopAsker{}).Open(live("a"))

	_, err := w.OpenDetail(context.Background(), 3)
	require.Error(t, err)
	_, err = w.OpenDetail(context.Background(), 3)
	require.Error(t, err)
	assert.Equal(t, int32(2), backend.calls.Load())
}

func TestWorkspace_DetailEviction(t *testing.T) {
	w := NewRegistry(nopBackend{}, nopAsker{}).Open(live("a"))
	for id := uint(1); id <= maxDetails; id++ {
		_, err := w.OpenDetail(context.Background(), id)
		require.NoError(t, err)
	}
	w.mu.Lock()
	w.details[1].lastUsed = time.Now().Add(-time.Hour)
	w.mu.Unlock()

	_, err := w.OpenDetail(context.Background(), maxDetails+1)
	require.NoError(t, err)
	w.mu.Lock()
	_, kept := w.details[1]
	n := len(w.details)
	w.mu.Unlock()
	assert.False(t, kept)
	assert.Equal(t, maxDetails, n)
}

func TestRegistry_Sweep(t *testing.T) {
	r := NewRegistry(nopBackend{}, nopAsker{})
	r.Open(live("fresh"))
	stale := r.Open(live("stale"))
	stale.mu.Lock()
	stale.lastSeen = time.Now().Add(-2 * time.Hour)
	stale.mu.Unlock()
	expired := live("expired")
	expired.ExpiresAt = time.Now().Add(time.Minute)
	r.Open(expired)

	dropped := r.Sweep(time.Now().Add(5*time.Minute), time.Hour)
	require.Equal(t, 2, dropped)
	assert.Equal(t, 1, r.Len())
}

func TestRegistry_Anonymous(t *testing.T) {
	r := NewRegistry(nopBackend{}, nopAsker{})
	w := r.Anonymous()
	assert.Nil(t, w.Session)
	assert.Equal(t, 0, r.Len())
}
