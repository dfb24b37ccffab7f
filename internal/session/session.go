// Package session holds the explicit per-user session that replaces the
// browser's local storage: created at login, destroyed at logout and read-only
// everywhere else.
package session

import (
	"context"
	"errors"
	"time"
)

// ErrNoSession is returned by any action that needs an authenticated user when none is present.
var ErrNoSession = errors.New("no active session")

// ErrNotFound is returned by a Store when the session id is unknown or expired.
var ErrNotFound = errors.New("session not found")

// Session is the authenticated state of one browser user.
type Session struct {
	ID        string    `json:"id"`
	Token     string    `json:"token"`
	UserID    uint      `json:"user_id"`
	Username  string    `json:"username"`
	CreatedAt time.Time `json:"created_at"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Valid reports whether s can authorize a remote call at time now.
func (s *Session) Valid(now time.Time) bool {
	if s == nil || s.Token == "" || s.UserID == 0 {
		return false
	}
	return s.ExpiresAt.IsZero() || now.Before(s.ExpiresAt)
}

// Require returns ErrNoSession unless s is valid right now.
func Require(s *Session) error {
	if !s.Valid(time.Now()) {
		return ErrNoSession
	}
	return nil
}

// TTL is the remaining lifetime of s, never negative.
func (s *Session) TTL(now time.Time) time.Duration {
	if s.ExpiresAt.IsZero() {
		return 0
	}
	if d := s.ExpiresAt.Sub(now); d > 0 {
		return d
	}
	return 0
}

// Store persists sessions between gateway requests.
type Store interface {
	Save(ctx context.Context, s *Session) error
	Get(ctx context.Context, id string) (*Session, error)
	Delete(ctx context.Context, id string) error
}
