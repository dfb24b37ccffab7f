package feed

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"synerthree/internal/models"
	"synerthree/internal/remote"
	"synerthree/internal/session"
	"synerthree/internal/vote"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubBackend struct {
	mu          sync.Mutex
	posts       []remote.PostRecord
	listCalls   int
	createCalls int
	ListErr     error
	// ListHook runs after the list is read and before it is returned.
	ListHook func(call int)
	CreateFn func(in remote.PostInput) (*remote.PostRecord, error)
	VoteFn   func(req remote.VoteRequest) (remote.VoteStatus, error)
}

func (s *stubBackend) ListPosts(context.Context, string) ([]remote.PostRecord, error) {
	s.mu.Lock()
	s.listCalls++
	call, hook, err := s.listCalls, s.ListHook, s.ListErr
	posts := append([]remote.PostRecord(nil), s.posts...)
	s.mu.Unlock()
	if hook != nil {
		hook(call)
	}
	if err != nil {
		return nil, err
	}
	return posts, nil
}

func (s *stubBackend) CreatePost(_ context.Context, _ string, in remote.PostInput) (*remote.PostRecord, error) {
	s.mu.Lock()
	s.createCalls++
	fn := s.CreateFn
	s.mu.Unlock()
	if fn != nil {
		return fn(in)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	rec := remote.PostRecord{ID: uint(len(s.posts) + 100), Title: in.Title, Content: in.Content, UserID: in.UserID}
	s.posts = append([]remote.PostRecord{rec}, s.posts...)
	return &rec, nil
}

func (s *stubBackend) Vote(_ context.Context, _, _ string, req remote.VoteRequest) (remote.VoteStatus, error) {
	if s.VoteFn != nil {
		return s.VoteFn(req)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.posts {
		if s.posts[i].ID == req.PostID && req.VoteType == remote.VoteTypeUp {
			s.posts[i].UpvoteCount++
			s.posts[i].UserVote = "up"
		}
	}
	return remote.VoteSuccess, nil
}

func fivePosts() []remote.PostRecord {
	return []remote.PostRecord{
		{ID: 1, Title: "Home-Cooked Meals", UserID: 1, UserName: "FoodieEntrepreneur", UpvoteCount: 24, DownvoteCount: 2, CommentCount: 5},
		{ID: 2, Title: "AI Growth Coach", UserID: 2, UserName: "MindfulTech", UpvoteCount: 42, DownvoteCount: 5},
		{ID: 3, Title: "Sustainable Fashion", UserID: 7, UpvoteCount: 37, DownvoteCount: 3},
		{ID: 4, Title: "Tool Library", UserID: 3, UpvoteCount: 19, DownvoteCount: 1},
		{ID: 5, Title: "VR Language Learning", UserID: 7, UserName: "", UpvoteCount: 28, DownvoteCount: 4, UserVote: "down"},
	}
}

func testSession() *session.Session {
	return &session.Session{ID: "s", Token: "tok", UserID: 7, Username: "Current User", ExpiresAt: time.Now().Add(time.Hour)}
}

func TestMount_MapsInServerOrder(t *testing.T) {
	backend := &stubBackend{posts: fivePosts()}
	c := NewController(backend, testSession())

	require.NoError(t, c.Mount(context.Background()))
	posts := c.Posts()
	require.Len(t, posts, 5)
	for i, p := range posts {
		assert.Equal(t, uint(i+1), p.ID)
	}

	assert.Equal(t, "FoodieEntrepreneur", posts[0].Author.Username)
	assert.Equal(t, "Current User", posts[2].Author.Username)
	assert.Equal(t, remote.AnonymousAuthor, posts[3].Author.Username)
	assert.Equal(t, models.VoteDown, posts[4].UserVote)
	assert.True(t, c.View().Loaded)
}

func TestMount_AnonymousViewer(t *testing.T) {
	backend := &stubBackend{posts: fivePosts()}
	c := NewController(backend, nil)

	require.NoError(t, c.Mount(context.Background()))
	assert.Equal(t, remote.AnonymousAuthor, c.Posts()[2].Author.Username)

	err := c.Submit(context.Background(), "t", "c")
	assert.ErrorIs(t, err, session.ErrNoSession)
	assert.Equal(t, 0, backend.createCalls)
}

func TestFocusRefetches(t *testing.T) {
	backend := &stubBackend{posts: fivePosts()}
	c := NewController(backend, testSession())
	ctx := context.Background()

	require.NoError(t, c.Mount(ctx))
	backend.mu.Lock()
	backend.posts = backend.posts[:2]
	backend.mu.Unlock()

	require.NoError(t, c.Focus(ctx))
	assert.Len(t, c.Posts(), 2)
	assert.Equal(t, 2, backend.listCalls)
}

func TestStaleRefreshIsDiscarded(t *testing.T) {
	backend := &stubBackend{posts: fivePosts()}
	entered := make(chan struct{})
	release := make(chan struct{})
	backend.ListHook = func(call int) {
		if call == 1 {
			close(entered)
			<-release
		}
	}
	c := NewController(backend, testSession())
	ctx := context.Background()

	done := make(chan error, 1)
	go func() { done <- c.Mount(ctx) }()
	<-entered

	backend.mu.Lock()
	backend.posts = backend.posts[:2]
	backend.mu.Unlock()
	require.NoError(t, c.Focus(ctx))
	assert.Len(t, c.Posts(), 2)

	close(release)
	require.NoError(t, <-done)
	assert.Len(t, c.Posts(), 2, "the older five-post answer must not overwrite the newer one")
}

func TestRefreshErrorKeepsList(t *testing.T) {
	backend := &stubBackend{posts: fivePosts()}
	c := NewController(backend, testSession())
	require.NoError(t, c.Mount(context.Background()))

	backend.ListErr = models.NewUpstreamError("Backend unavailable", errors.New("dial"))
	assert.Error(t, c.Focus(context.Background()))
	assert.Len(t, c.Posts(), 5)
}

func TestSubmit_CreatesThenRefetches(t *testing.T) {
	backend := &stubBackend{posts: fivePosts()}
	c := NewController(backend, testSession())
	ctx := context.Background()
	require.NoError(t, c.Mount(ctx))

	require.NoError(t, c.Submit(ctx, "  Pet Sitting Swap ", " Trade pet sitting with neighbors. "))
	assert.Equal(t, 1, backend.createCalls)
	assert.Equal(t, 2, backend.listCalls)

	posts := c.Posts()
	require.Len(t, posts, 6)
	assert.Equal(t, "Pet Sitting Swap", posts[0].Title)
	assert.Equal(t, "Current User", posts[0].Author.Username)
	assert.False(t, c.View().Submitting)
}

func TestSubmit_Validation(t *testing.T) {
	backend := &stubBackend{}
	c := NewController(backend, testSession())

	for _, in := range [][2]string{{"", "body"}, {"title", "  "}} {
		err := c.Submit(context.Background(), in[0], in[1])
		var appErr *models.AppError
		require.True(t, errors.As(err, &appErr))
		assert.Equal(t, models.CodeValidation, appErr.Code)
	}
	assert.Equal(t, 0, backend.createCalls)
}

func TestSubmit_InFlightGuard(t *testing.T) {
	entered := make(chan struct{})
	release := make(chan struct{})
	backend := &stubBackend{}
	backend.CreateFn = func(in remote.PostInput) (*remote.PostRecord, error) {
		close(entered)
		<-release
		return &remote.PostRecord{ID: 1}, nil
	}
	c := NewController(backend, testSession())

	done := make(chan error, 1)
	go func() { done <- c.Submit(context.Background(), "a", "b") }()
	<-entered

	assert.True(t, c.View().Submitting)
	assert.ErrorIs(t, c.Submit(context.Background(), "c", "d"), ErrSubmitInFlight)

	close(release)
	require.NoError(t, <-done)
	assert.Equal(t, 1, backend.createCalls)
}

func TestSubmit_FailureDoesNotInsert(t *testing.T) {
	backend := &stubBackend{posts: fivePosts()}
	backend.CreateFn = func(remote.PostInput) (*remote.PostRecord, error) {
		return nil, models.NewUpstreamError("Backend request failed", nil)
	}
	c := NewController(backend, testSession())
	require.NoError(t, c.Mount(context.Background()))

	assert.Error(t, c.Submit(context.Background(), "a", "b"))
	assert.Len(t, c.Posts(), 5)
	assert.Equal(t, 1, backend.listCalls)
}

func TestVoteSettlementRefreshesFeed(t *testing.T) {
	backend := &stubBackend{posts: fivePosts()}
	c := NewController(backend, testSession())
	ctx := context.Background()
	require.NoError(t, c.Mount(ctx))

	card, err := c.Card(4)
	require.NoError(t, err)
	require.NoError(t, card.Upvote(ctx, testSession()))

	assert.Equal(t, 2, backend.listCalls)
	snap := c.Posts()[3]
	assert.Equal(t, 20, snap.Upvotes)
	assert.Equal(t, models.VoteUp, snap.UserVote)

	same, err := c.Card(4)
	require.NoError(t, err)
	assert.Same(t, card, same)

	_, err = c.Card(404)
	assert.ErrorIs(t, err, ErrCardNotFound)
}

func TestVoteFailureDoesNotRefresh(t *testing.T) {
	backend := &stubBackend{posts: fivePosts()}
	backend.VoteFn = func(remote.VoteRequest) (remote.VoteStatus, error) {
		return "", models.NewUpstreamError("Backend request failed", nil)
	}
	c := NewController(backend, testSession())
	ctx := context.Background()
	require.NoError(t, c.Mount(ctx))

	card, err := c.Card(1)
	require.NoError(t, err)
	assert.Error(t, card.Upvote(ctx, testSession()))
	assert.Equal(t, 1, backend.listCalls)

	var snap vote.Snapshot = c.Posts()[0]
	assert.Equal(t, 24, snap.Upvotes)
}
