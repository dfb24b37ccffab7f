package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"synerthree/internal/models"
	"synerthree/internal/observability"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// Authenticator is the part of the remote backend client used for the session lifecycle.
type Authenticator interface {
	Login(ctx context.Context, email, password string) (string, error)
	Signup(ctx context.Context, username, email, password string) (string, error)
	Me(ctx context.Context, token string) (*models.User, error)
	Logout(ctx context.Context, token string) error
}

// Manager owns session init (login/signup) and teardown (logout).
type Manager struct {
	store Store
	auth  Authenticator
	ttl   time.Duration
	now   func() time.Time
}

// NewManager creates a Manager. ttl caps the lifetime of sessions whose backend
// token carries no expiry of its own.
func NewManager(store Store, auth Authenticator, ttl time.Duration) *Manager {
	return &Manager{
		store: store,
		auth:  auth,
		ttl:   ttl,
		now:   time.Now,
	}
}

// Login authenticates against the backend and persists a new session.
func (m *Manager) Login(ctx context.Context, email, password string) (*Session, error) {
	email = strings.TrimSpace(email)
	if email == "" || password == "" {
		return nil, models.NewValidationError("Email and password are required")
	}
	token, err := m.auth.Login(ctx, email, password)
	if err != nil {
		return nil, err
	}
	return m.open(ctx, token)
}

// Signup registers a user on the backend and persists a new session.
func (m *Manager) Signup(ctx context.Context, username, email, password string) (*Session, error) {
	username = strings.TrimSpace(username)
	email = strings.TrimSpace(email)
	if username == "" || email == "" || password == "" {
		return nil, models.NewValidationError("Username, email, and password are required")
	}
	token, err := m.auth.Signup(ctx, username, email, password)
	if err != nil {
		return nil, err
	}
	return m.open(ctx, token)
}

func (m *Manager) open(ctx context.Context, token string) (*Session, error) {
	if token == "" {
		return nil, models.NewUpstreamError("Login failed", errors.New("backend returned no auth token"))
	}
	user, err := m.auth.Me(ctx, token)
	if err != nil {
		return nil, err
	}

	now := m.now()
	expires := now.Add(m.ttl)
	if exp, ok := tokenExpiry(token); ok && exp.Before(expires) {
		expires = exp
	}

	s := &Session{
		ID:        uuid.NewString(),
		Token:     token,
		UserID:    user.ID,
		Username:  user.Username,
		CreatedAt: now,
		ExpiresAt: expires,
	}
	if err := m.store.Save(ctx, s); err != nil {
		return nil, models.NewInternalError(err)
	}
	observability.Logger.InfoContext(ctx, "session opened",
		slog.String("session_id", s.ID),
		slog.Uint64("user_id", uint64(s.UserID)),
		slog.Time("expires_at", s.ExpiresAt),
	)
	return s, nil
}

// Lookup returns the live session for id.
func (m *Manager) Lookup(ctx context.Context, id string) (*Session, error) {
	s, err := m.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !s.Valid(m.now()) {
		_ = m.store.Delete(ctx, id)
		return nil, ErrNotFound
	}
	return s, nil
}

// Logout discards the session. The backend is notified on a best-effort basis.
func (m *Manager) Logout(ctx context.Context, s *Session) error {
	if s == nil {
		return ErrNoSession
	}
	if err := m.auth.Logout(ctx, s.Token); err != nil {
		observability.Logger.WarnContext(ctx, "backend logout notification failed",
			slog.String("session_id", s.ID),
			slog.String("error", err.Error()),
		)
	}
	if err := m.store.Delete(ctx, s.ID); err != nil {
		return fmt.Errorf("logout: %w", err)
	}
	return nil
}

// tokenExpiry reads the exp claim of the backend token when it is a JWT. The
// gateway cannot verify the backend's signature; the value only shortens the
// local session lifetime.
func tokenExpiry(token string) (time.Time, bool) {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return time.Time{}, false
	}
	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return time.Time{}, false
	}
	return exp.Time, true
}
