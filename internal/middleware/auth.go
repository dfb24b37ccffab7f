// Package middleware provides the gateway's fiber middleware: session
// authentication, request context and logging, tracing and rate limiting.
package middleware

import (
	"context"
	"strings"

	"synerthree/internal/models"
	"synerthree/internal/observability"
	"synerthree/internal/session"

	"github.com/gofiber/fiber/v2"
)

const (
	sessionLocal = "session"
	userIDLocal  = "userID"
)

// TokenVerifier validates gateway tokens.
type TokenVerifier interface {
	Verify(token string) (session.Claims, error)
}

// SessionLookup resolves a session id to a live session.
type SessionLookup interface {
	Lookup(ctx context.Context, id string) (*session.Session, error)
}

// Auth resolves the browser's gateway token to a session.
type Auth struct {
	tokens   TokenVerifier
	sessions SessionLookup
}

// NewAuth creates the authentication middleware set.
func NewAuth(tokens TokenVerifier, sessions SessionLookup) *Auth {
	return &Auth{tokens: tokens, sessions: sessions}
}

// Required rejects requests without a valid gateway token and live session.
func (a *Auth) Required() fiber.Handler {
	return func(c *fiber.Ctx) error {
		raw, ok := bearer(c)
		if !ok {
			return models.RespondWithError(c, fiber.StatusUnauthorized,
				models.NewUnauthenticatedError("Please log in to continue"))
		}
		if err := a.attach(c, raw); err != nil {
			return models.RespondWithError(c, fiber.StatusUnauthorized,
				models.NewUnauthenticatedError("Your session has expired, please log in again"))
		}
		return c.Next()
	}
}

// Optional attaches the session when a valid token is present and otherwise
// lets the request through as anonymous.
func (a *Auth) Optional() fiber.Handler {
	return func(c *fiber.Ctx) error {
		if raw, ok := bearer(c); ok {
			_ = a.attach(c, raw)
		}
		return c.Next()
	}
}

func (a *Auth) attach(c *fiber.Ctx, raw string) error {
	claims, err := a.tokens.Verify(raw)
	if err != nil {
		return err
	}
	sess, err := a.sessions.Lookup(c.UserContext(), claims.SessionID)
	if err != nil {
		return err
	}
	if sess.UserID != claims.UserID {
		return session.ErrInvalidToken
	}

	c.Locals(sessionLocal, sess)
	c.Locals(userIDLocal, sess.UserID)
	ctx := observability.WithUserID(c.UserContext(), sess.UserID)
	ctx = observability.WithSessionID(ctx, sess.ID)
	c.SetUserContext(ctx)
	return nil
}

func bearer(c *fiber.Ctx) (string, bool) {
	header := c.Get(fiber.HeaderAuthorization)
	scheme, token, ok := strings.Cut(header, " ")
	if !ok || scheme != "Bearer" || strings.TrimSpace(token) == "" {
		return "", false
	}
	return strings.TrimSpace(token), true
}

// SessionFrom returns the session attached by Auth, or nil.
func SessionFrom(c *fiber.Ctx) *session.Session {
	sess, _ := c.Locals(sessionLocal).(*session.Session)
	return sess
}

// UserIDFrom returns the authenticated user id, or 0.
func UserIDFrom(c *fiber.Ctx) uint {
	id, _ := c.Locals(userIDLocal).(uint)
	return id
}
