package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"synerthree/internal/session"

	"github.com/alicebob/miniredis/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "test-secret-key-12345678901234567890123456789012"

func authApp(t *testing.T) (*fiber.App, *session.Issuer, *session.MemoryStore) {
	t.Helper()
	issuer := session.NewIssuer(testSecret)
	store := session.NewMemoryStore()
	manager := session.NewManager(store, nil, time.Hour)
	auth := NewAuth(issuer, manager)

	app := fiber.New()
	app.Get("/required", auth.Required(), func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"userID": UserIDFrom(c), "session": SessionFrom(c).ID})
	})
	app.Get("/optional", auth.Optional(), func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"anonymous": SessionFrom(c) == nil})
	})
	return app, issuer, store
}

func TestAuthRequired(t *testing.T) {
	app, issuer, store := authApp(t)
	ctx := context.Background()

	live := &session.Session{ID: "live", Token: "backend", UserID: 123, ExpiresAt: time.Now().Add(time.Hour)}
	require.NoError(t, store.Save(ctx, live))
	liveToken, err := issuer.Issue(live)
	require.NoError(t, err)

	gone := &session.Session{ID: "gone", Token: "backend", UserID: 123, ExpiresAt: time.Now().Add(time.Hour)}
	goneToken, err := issuer.Issue(gone)
	require.NoError(t, err)

	mismatched := &session.Session{ID: "live", Token: "backend", UserID: 999, ExpiresAt: time.Now().Add(time.Hour)}
	mismatchedToken, err := issuer.Issue(mismatched)
	require.NoError(t, err)

	tests := []struct {
		name           string
		authHeader     string
		expectedStatus int
	}{
		{"Happy Path", "Bearer " + liveToken, http.StatusOK},
		{"Missing Header", "", http.StatusUnauthorized},
		{"Invalid Format", "Basic dXNlcjpwYXNz", http.StatusUnauthorized},
		{"Malformed Token", "Bearer malformed.token.here", http.StatusUnauthorized},
		{"Logged Out Session", "Bearer " + goneToken, http.StatusUnauthorized},
		{"Subject Mismatch", "Bearer " + mismatchedToken, http.StatusUnauthorized},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/required", nil)
			if tt.authHeader != "" {
				req.Header.Set("Authorization", tt.authHeader)
			}
			resp, err := app.Test(req)
			require.NoError(t, err)
			assert.Equal(t, tt.expectedStatus, resp.StatusCode)
		})
	}
}

func TestAuthOptional(t *testing.T) {
	app, _, _ := authApp(t)

	req := httptest.NewRequest(http.MethodGet, "/optional", nil)
	req.Header.Set("Authorization", "Bearer junk")
	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestRateLimiter(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer rdb.Close()

	limiter := NewRateLimiter(rdb, true)
	app := fiber.New()
	app.Post("/login", limiter.Handler("login", 2, time.Minute, FailOpen), func(c *fiber.Ctx) error {
		return c.SendStatus(fiber.StatusNoContent)
	})

	statuses := make([]int, 0, 3)
	for i := 0; i < 3; i++ {
		resp, err := app.Test(httptest.NewRequest(http.MethodPost, "/login", nil))
		require.NoError(t, err)
		statuses = append(statuses, resp.StatusCode)
	}
	assert.Equal(t, []int{http.StatusNoContent, http.StatusNoContent, http.StatusTooManyRequests}, statuses)
	keys := mr.Keys()
	require.Len(t, keys, 1)
	assert.True(t, mr.TTL(keys[0]) > 0)

	mr.FastForward(time.Minute + time.Second)
	resp, err := app.Test(httptest.NewRequest(http.MethodPost, "/login", nil))
	require.NoError(t, err)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
}

func TestRateLimiter_Policies(t *testing.T) {
	disabled := NewRateLimiter(nil, false)
	ok, err := disabled.Allow(context.Background(), "x", "y", 0, time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)

	broken := NewRateLimiter(nil, true)
	app := fiber.New()
	app.Get("/open", broken.Handler("open", 1, time.Minute, FailOpen), func(c *fiber.Ctx) error {
		return c.SendStatus(fiber.StatusOK)
	})
	app.Get("/closed", broken.Handler("closed", 1, time.Minute, FailClosed), func(c *fiber.Ctx) error {
		return c.SendStatus(fiber.StatusOK)
	})

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/open", nil))
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, err = app.Test(httptest.NewRequest(http.MethodGet, "/closed", nil))
	require.NoError(t, err)
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
}

func TestTracingSetsTraceHeader(t *testing.T) {
	app := fiber.New()
	app.Use(TracingMiddleware(), ContextMiddleware(), StructuredLogger())
	app.Get("/", func(c *fiber.Ctx) error { return c.SendStatus(fiber.StatusOK) })

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/", nil))
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Len(t, resp.Header.Get("X-Trace-ID"), 32)
}
