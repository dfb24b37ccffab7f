package server

import (
	"time"

	"synerthree/internal/middleware"
	"synerthree/internal/models"
	"synerthree/internal/session"

	"github.com/gofiber/fiber/v2"
)

// LoginRequest is the body of POST /api/auth/login.
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// SignupRequest is the body of POST /api/auth/signup.
type SignupRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

// SessionUser is the public part of a session.
type SessionUser struct {
	ID       uint   `json:"id"`
	Username string `json:"username"`
}

// AuthResponse carries the gateway token the browser sends back as a bearer.
type AuthResponse struct {
	Token     string      `json:"token"`
	ExpiresAt time.Time   `json:"expires_at"`
	User      SessionUser `json:"user"`
}

// Login handles POST /api/auth/login
func (s *Server) Login(c *fiber.Ctx) error {
	var req LoginRequest
	if err := parseBody(c, &req); err != nil {
		return nil
	}
	sess, err := s.sessions.Login(c.UserContext(), req.Email, req.Password)
	if err != nil {
		return fail(c, err)
	}
	return s.respondSession(c, fiber.StatusOK, sess)
}

// Signup handles POST /api/auth/signup
func (s *Server) Signup(c *fiber.Ctx) error {
	var req SignupRequest
	if err := parseBody(c, &req); err != nil {
		return nil
	}
	sess, err := s.sessions.Signup(c.UserContext(), req.Username, req.Email, req.Password)
	if err != nil {
		return fail(c, err)
	}
	return s.respondSession(c, fiber.StatusCreated, sess)
}

func (s *Server) respondSession(c *fiber.Ctx, status int, sess *session.Session) error {
	token, err := s.tokens.Issue(sess)
	if err != nil {
		return fail(c, models.NewInternalError(err))
	}
	return c.Status(status).JSON(AuthResponse{
		Token:     token,
		ExpiresAt: sess.ExpiresAt,
		User:      SessionUser{ID: sess.UserID, Username: sess.Username},
	})
}

// Logout handles POST /api/auth/logout
func (s *Server) Logout(c *fiber.Ctx) error {
	sess := middleware.SessionFrom(c)
	if err := s.sessions.Logout(c.UserContext(), sess); err != nil {
		return fail(c, err)
	}
	s.workspaces.Close(sess.ID)
	return c.SendStatus(fiber.StatusNoContent)
}

// Me handles GET /api/auth/me
func (s *Server) Me(c *fiber.Ctx) error {
	sess := middleware.SessionFrom(c)
	user, err := s.backend.Me(c.UserContext(), sess.Token)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(fiber.Map{
		"user":       user,
		"expires_at": sess.ExpiresAt,
	})
}

// GetFeatureFlags handles GET /api/flags
func (s *Server) GetFeatureFlags(c *fiber.Ctx) error {
	return c.JSON(s.flags.Snapshot(middleware.UserIDFrom(c)))
}
