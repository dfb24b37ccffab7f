package server

import (
	"synerthree/internal/detail"
	"synerthree/internal/featureflags"
	"synerthree/internal/middleware"
	"synerthree/internal/models"
	"synerthree/internal/vote"

	"github.com/gofiber/fiber/v2"
)

// EditRequest is the body of PUT /api/ideas/:id/edit.
type EditRequest struct {
	Title   string `json:"title"`
	Content string `json:"content"`
}

// CommentRequest is the body of POST /api/ideas/:id/comments.
type CommentRequest struct {
	Text string `json:"text"`
}

// InsightRequest is the body of POST /api/ideas/:id/insight. Persist
// defaults to the insight_autosave flag.
type InsightRequest struct {
	Prompt  string `json:"prompt"`
	Persist *bool  `json:"persist"`
}

// idea returns the detail screen for the :id route parameter, loading it on
// first use. It writes the error response itself.
func (s *Server) idea(c *fiber.Ctx) (*detail.Controller, error) {
	id, err := s.parseID(c, "id")
	if err != nil {
		return nil, err
	}
	ctrl, err := s.workspace(c).OpenDetail(c.UserContext(), id)
	if err != nil {
		_ = fail(c, err)
		return nil, errResponseWritten
	}
	return ctrl, nil
}

func (s *Server) ideaCard(c *fiber.Ctx) (*vote.Card, error) {
	ctrl, err := s.idea(c)
	if err != nil {
		return nil, err
	}
	return ctrl.Card()
}

// GetIdea handles GET /api/ideas/:id
func (s *Server) GetIdea(c *fiber.Ctx) error {
	ctrl, err := s.idea(c)
	if err != nil {
		return nil
	}
	return c.JSON(ctrl.View())
}

// ReloadIdea handles POST /api/ideas/:id/reload
func (s *Server) ReloadIdea(c *fiber.Ctx) error {
	ctrl, err := s.idea(c)
	if err != nil {
		return nil
	}
	if err := ctrl.Load(c.UserContext()); err != nil {
		return fail(c, err)
	}
	return c.JSON(ctrl.View())
}

// BeginEdit handles POST /api/ideas/:id/edit
func (s *Server) BeginEdit(c *fiber.Ctx) error {
	ctrl, err := s.idea(c)
	if err != nil {
		return nil
	}
	if _, err := ctrl.BeginEdit(); err != nil {
		return fail(c, err)
	}
	return c.JSON(ctrl.View())
}

// SubmitEdit handles PUT /api/ideas/:id/edit
func (s *Server) SubmitEdit(c *fiber.Ctx) error {
	ctrl, err := s.idea(c)
	if err != nil {
		return nil
	}
	var req EditRequest
	if err := parseBody(c, &req); err != nil {
		return nil
	}
	if err := ctrl.SubmitEdit(c.UserContext(), detail.Draft{Title: req.Title, Content: req.Content}); err != nil {
		return fail(c, err)
	}
	return c.JSON(ctrl.View())
}

// CancelEdit handles DELETE /api/ideas/:id/edit
func (s *Server) CancelEdit(c *fiber.Ctx) error {
	ctrl, err := s.idea(c)
	if err != nil {
		return nil
	}
	ctrl.CancelEdit()
	return c.JSON(ctrl.View())
}

// RequestDelete handles POST /api/ideas/:id/delete
func (s *Server) RequestDelete(c *fiber.Ctx) error {
	ctrl, err := s.idea(c)
	if err != nil {
		return nil
	}
	if err := ctrl.RequestDelete(); err != nil {
		return fail(c, err)
	}
	return c.JSON(ctrl.View())
}

// AbortDelete handles DELETE /api/ideas/:id/delete
func (s *Server) AbortDelete(c *fiber.Ctx) error {
	ctrl, err := s.idea(c)
	if err != nil {
		return nil
	}
	ctrl.AbortDelete()
	return c.JSON(ctrl.View())
}

// ConfirmDelete handles POST /api/ideas/:id/delete/confirm. The response
// tells the UI where to navigate.
func (s *Server) ConfirmDelete(c *fiber.Ctx) error {
	ctrl, err := s.idea(c)
	if err != nil {
		return nil
	}
	next, err := ctrl.ConfirmDelete(c.UserContext())
	if err != nil {
		return fail(c, err)
	}
	s.workspace(c).CloseDetail(ctrl.PostID())
	return c.JSON(fiber.Map{"redirect": next})
}

// AddComment handles POST /api/ideas/:id/comments
func (s *Server) AddComment(c *fiber.Ctx) error {
	ctrl, err := s.idea(c)
	if err != nil {
		return nil
	}
	var req CommentRequest
	if err := parseBody(c, &req); err != nil {
		return nil
	}
	comment, err := ctrl.AddComment(c.UserContext(), req.Text)
	if err != nil {
		return fail(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(comment)
}

// DeleteComment handles DELETE /api/ideas/:id/comments/:commentId
func (s *Server) DeleteComment(c *fiber.Ctx) error {
	ctrl, err := s.idea(c)
	if err != nil {
		return nil
	}
	commentID, err := s.parseID(c, "commentId")
	if err != nil {
		return nil
	}
	if err := ctrl.DeleteComment(c.UserContext(), commentID); err != nil {
		return fail(c, err)
	}
	return c.JSON(ctrl.View())
}

// RequestInsight handles POST /api/ideas/:id/insight
func (s *Server) RequestInsight(c *fiber.Ctx) error {
	userID := middleware.UserIDFrom(c)
	if !s.flags.Enabled(featureflags.AIInsight, userID) {
		return fail(c, models.NewForbiddenError("AI insights are not available"))
	}
	ctrl, err := s.idea(c)
	if err != nil {
		return nil
	}
	var req InsightRequest
	if len(c.Body()) > 0 {
		if err := parseBody(c, &req); err != nil {
			return nil
		}
	}
	persist := s.flags.Enabled(featureflags.InsightAutosave, userID)
	if req.Persist != nil {
		persist = *req.Persist
	}

	ex, err := ctrl.RequestInsight(c.UserContext(), req.Prompt, persist)
	if err != nil && ex.Response == "" {
		return fail(c, err)
	}
	// A failed save still returns the insight; the notice rides along.
	resp := fiber.Map{"insight": ex}
	if err != nil {
		resp["save_error"] = toAppError(err).Message
	}
	return c.JSON(resp)
}
