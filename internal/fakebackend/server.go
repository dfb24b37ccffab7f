package fakebackend

import (
	"errors"
	"strings"

	"synerthree/internal/insight"
	"synerthree/internal/middleware"
	"synerthree/internal/models"
	"synerthree/internal/observability"
	"synerthree/internal/remote"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"golang.org/x/crypto/bcrypt"
)

const userIDLocal = "userID"

// Server serves the backend-as-a-service contract the gateway's remote client
// speaks.
type Server struct {
	store      *Store
	tokens     *tokens
	insightKey string
}

// NewServer creates a Server. secret signs auth tokens; insightKey, when set,
// must be sent as X-API-Key to /ai/insight.
func NewServer(store *Store, secret, insightKey string) *Server {
	return &Server{
		store:      store,
		tokens:     newTokens(secret),
		insightKey: insightKey,
	}
}

// NewApp builds the fiber app with all routes.
func (s *Server) NewApp() *fiber.App {
	app := fiber.New(fiber.Config{AppName: "Synerthree Fake Backend"})
	app.Use(recover.New())
	app.Use(requestid.New())
	app.Use(middleware.ContextMiddleware())
	app.Use(middleware.StructuredLogger())

	app.Post("/auth/signup", s.signup)
	app.Post("/auth/login", s.login)
	app.Get("/auth/me", s.requireUser, s.me)
	app.Post("/auth/logout", s.requireUser, s.logout)
	app.Patch("/user/:id", s.requireUser, s.updatePicture)

	app.Get("/post", s.optionalUser, s.listPosts)
	app.Get("/post/:id", s.optionalUser, s.getPost)
	app.Post("/post", s.requireUser, s.createPost)
	app.Patch("/post/:id", s.requireUser, s.updatePost)
	app.Delete("/post/:id", s.requireUser, s.deletePost)

	app.Get("/get_post_comments", s.listComments)
	app.Post("/comment", s.requireUser, s.createComment)
	app.Delete("/comment/:id", s.requireUser, s.deleteComment)

	app.Post("/vote", s.requireUser, s.vote)
	app.Post("/ai/insight", s.requireUser, s.insight)
	return app
}

func respond(c *fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, ErrNotFound):
		err = &models.AppError{Code: models.CodeNotFound, Message: "Not found"}
	case errors.Is(err, ErrForbidden):
		err = models.NewForbiddenError("You can only change your own content")
	case errors.Is(err, ErrDuplicate):
		err = models.NewConflictError(ErrDuplicate.Error())
	default:
		var appErr *models.AppError
		if !errors.As(err, &appErr) {
			observability.Logger.ErrorContext(c.UserContext(), "fake backend failure", "error", err.Error())
			err = models.NewInternalError(err)
		}
	}
	return models.Respond(c, err)
}

func bearer(c *fiber.Ctx) string {
	raw := c.Get(fiber.HeaderAuthorization)
	if token, ok := strings.CutPrefix(raw, "Bearer "); ok {
		return strings.TrimSpace(token)
	}
	return ""
}

func (s *Server) requireUser(c *fiber.Ctx) error {
	id, _, err := s.tokens.parse(bearer(c))
	if err != nil {
		return models.Respond(c, models.NewUnauthenticatedError("Invalid or expired token"))
	}
	c.Locals(userIDLocal, id)
	return c.Next()
}

func (s *Server) optionalUser(c *fiber.Ctx) error {
	if id, _, err := s.tokens.parse(bearer(c)); err == nil {
		c.Locals(userIDLocal, id)
	}
	return c.Next()
}

func currentUser(c *fiber.Ctx) uint {
	id, _ := c.Locals(userIDLocal).(uint)
	return id
}

func pathID(c *fiber.Ctx) (uint, error) {
	id, err := c.ParamsInt("id")
	if err != nil || id <= 0 {
		return 0, models.NewValidationError("Invalid ID")
	}
	return uint(id), nil
}

type credentials struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type tokenResponse struct {
	AuthToken string `json:"authToken"`
}

func (s *Server) signup(c *fiber.Ctx) error {
	var req credentials
	if err := c.BodyParser(&req); err != nil {
		return respond(c, models.NewValidationError("Invalid request body"))
	}
	req.Username = strings.TrimSpace(req.Username)
	req.Email = strings.TrimSpace(req.Email)
	if req.Username == "" || req.Email == "" || len(req.Password) < 6 {
		return respond(c, models.NewValidationError("Username, email and a password of at least 6 characters are required"))
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return respond(c, err)
	}
	u := &User{Username: req.Username, Email: req.Email, Password: string(hash)}
	if err := s.store.CreateUser(c.UserContext(), u); err != nil {
		return respond(c, err)
	}
	return s.issue(c, fiber.StatusCreated, u.ID)
}

func (s *Server) login(c *fiber.Ctx) error {
	var req credentials
	if err := c.BodyParser(&req); err != nil {
		return respond(c, models.NewValidationError("Invalid request body"))
	}
	u, err := s.store.UserByEmail(c.UserContext(), strings.TrimSpace(req.Email))
	if err != nil || bcrypt.CompareHashAndPassword([]byte(u.Password), []byte(req.Password)) != nil {
		return respond(c, models.NewUnauthenticatedError("Invalid credentials"))
	}
	return s.issue(c, fiber.StatusOK, u.ID)
}

func (s *Server) issue(c *fiber.Ctx, status int, userID uint) error {
	token, err := s.tokens.issue(userID)
	if err != nil {
		return respond(c, err)
	}
	return c.Status(status).JSON(tokenResponse{AuthToken: token})
}

func (s *Server) me(c *fiber.Ctx) error {
	u, err := s.store.UserByID(c.UserContext(), currentUser(c))
	if err != nil {
		return respond(c, err)
	}
	return c.JSON(u)
}

func (s *Server) logout(c *fiber.Ctx) error {
	if _, claims, err := s.tokens.parse(bearer(c)); err == nil {
		s.tokens.revoke(claims)
	}
	return c.JSON(fiber.Map{"status": "success"})
}

func (s *Server) updatePicture(c *fiber.Ctx) error {
	id, err := pathID(c)
	if err != nil {
		return respond(c, err)
	}
	if id != currentUser(c) {
		return respond(c, ErrForbidden)
	}
	var req struct {
		ProfilePicture string `json:"profile_picture"`
	}
	if err := c.BodyParser(&req); err != nil {
		return respond(c, models.NewValidationError("Invalid request body"))
	}
	u, err := s.store.UpdatePicture(c.UserContext(), id, strings.TrimSpace(req.ProfilePicture))
	if err != nil {
		return respond(c, err)
	}
	return c.JSON(u)
}

func (s *Server) listPosts(c *fiber.Ctx) error {
	posts, err := s.store.ListPosts(c.UserContext(), currentUser(c))
	if err != nil {
		return respond(c, err)
	}
	return c.JSON(posts)
}

func (s *Server) getPost(c *fiber.Ctx) error {
	id, err := pathID(c)
	if err != nil {
		return respond(c, err)
	}
	post, err := s.store.GetPost(c.UserContext(), id, currentUser(c))
	if err != nil {
		return respond(c, err)
	}
	return c.JSON(post)
}

func (s *Server) createPost(c *fiber.Ctx) error {
	var req remote.PostInput
	if err := c.BodyParser(&req); err != nil {
		return respond(c, models.NewValidationError("Invalid request body"))
	}
	title, content := strings.TrimSpace(req.Title), strings.TrimSpace(req.Content)
	if title == "" || content == "" {
		return respond(c, models.NewValidationError("Title and content are required"))
	}
	post, err := s.store.CreatePost(c.UserContext(), currentUser(c), title, content)
	if err != nil {
		return respond(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(post)
}

func (s *Server) updatePost(c *fiber.Ctx) error {
	id, err := pathID(c)
	if err != nil {
		return respond(c, err)
	}
	var req remote.PostInput
	if err := c.BodyParser(&req); err != nil {
		return respond(c, models.NewValidationError("Invalid request body"))
	}
	title, content := strings.TrimSpace(req.Title), strings.TrimSpace(req.Content)
	if title == "" || content == "" {
		return respond(c, models.NewValidationError("Title and content are required"))
	}
	if err := s.store.UpdatePost(c.UserContext(), id, currentUser(c), title, content); err != nil {
		return respond(c, err)
	}
	return c.JSON(fiber.Map{"status": "success"})
}

func (s *Server) deletePost(c *fiber.Ctx) error {
	id, err := pathID(c)
	if err != nil {
		return respond(c, err)
	}
	if err := s.store.DeletePost(c.UserContext(), id, currentUser(c)); err != nil {
		return respond(c, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

func (s *Server) listComments(c *fiber.Ctx) error {
	postID := c.QueryInt("post_id")
	if postID <= 0 {
		return respond(c, models.NewValidationError("post_id is required"))
	}
	comments, err := s.store.ListComments(c.UserContext(), uint(postID))
	if err != nil {
		return respond(c, err)
	}
	return c.JSON(comments)
}

func (s *Server) createComment(c *fiber.Ctx) error {
	key := c.Get(remote.IdempotencyHeader)
	var done remote.CommentRecord
	if seen, err := s.store.Recall(c.UserContext(), key, &done); err != nil {
		return respond(c, err)
	} else if seen {
		return c.Status(fiber.StatusCreated).JSON(done)
	}

	var req remote.CommentInput
	if err := c.BodyParser(&req); err != nil {
		return respond(c, models.NewValidationError("Invalid request body"))
	}
	content := strings.TrimSpace(req.Content)
	if content == "" || req.PostID == 0 {
		return respond(c, models.NewValidationError("post_id and content are required"))
	}
	comment, err := s.store.CreateComment(c.UserContext(), req.PostID, currentUser(c), content)
	if err != nil {
		return respond(c, err)
	}
	if err := s.store.Remember(c.UserContext(), key, comment); err != nil {
		return respond(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(comment)
}

func (s *Server) deleteComment(c *fiber.Ctx) error {
	id, err := pathID(c)
	if err != nil {
		return respond(c, err)
	}
	if err := s.store.DeleteComment(c.UserContext(), id, currentUser(c)); err != nil {
		return respond(c, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

func (s *Server) vote(c *fiber.Ctx) error {
	key := c.Get(remote.IdempotencyHeader)
	var done remote.VoteStatus
	if seen, err := s.store.Recall(c.UserContext(), key, &done); err != nil {
		return respond(c, err)
	} else if seen {
		return c.JSON(done)
	}

	var req remote.VoteRequest
	if err := c.BodyParser(&req); err != nil {
		return respond(c, models.NewValidationError("Invalid request body"))
	}
	switch req.VoteType {
	case remote.VoteTypeUp, remote.VoteTypeDown, remote.VoteTypeRemove:
	default:
		return respond(c, models.NewValidationError("vote_type must be up, down or remove"))
	}
	if req.UserID != currentUser(c) {
		return respond(c, ErrForbidden)
	}
	req.Reason = strings.TrimSpace(req.Reason)

	status, err := s.store.ApplyVote(c.UserContext(), req)
	if err != nil {
		return respond(c, err)
	}
	if err := s.store.Remember(c.UserContext(), key, status); err != nil {
		return respond(c, err)
	}
	return c.JSON(status)
}

func (s *Server) insight(c *fiber.Ctx) error {
	if s.insightKey != "" && c.Get("X-API-Key") != s.insightKey {
		return respond(c, models.NewForbiddenError("Invalid API key"))
	}
	var req insight.Request
	if err := c.BodyParser(&req); err != nil {
		return respond(c, models.NewValidationError("Invalid request body"))
	}
	if strings.TrimSpace(req.Prompt) == "" {
		return respond(c, models.NewValidationError("prompt is required"))
	}
	return c.JSON(fiber.Map{"response": cannedInsight(req.Prompt, req.PostID)})
}
