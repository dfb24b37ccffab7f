package server

import (
	"errors"
	"strings"

	"synerthree/internal/middleware"
	"synerthree/internal/models"
	"synerthree/internal/workspace"

	"github.com/gofiber/fiber/v2"
)

// errResponseWritten is a sentinel indicating the HTTP response was already
// committed by a helper. Handlers must return nil (not this error) to avoid
// Fiber's ErrorHandler overwriting the response.
var errResponseWritten = errors.New("response already written")

// parseID extracts a route parameter by name as a positive uint.
// On failure it writes a 400 JSON response and returns errResponseWritten.
func (s *Server) parseID(c *fiber.Ctx, param string) (uint, error) {
	id, err := c.ParamsInt(param)
	if err != nil || id <= 0 {
		label := strings.TrimSuffix(param, "Id")
		if label == "id" {
			label = "ID"
		} else {
			label += " ID"
		}
		_ = models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("Invalid "+label))
		return 0, errResponseWritten
	}
	return uint(id), nil
}

// parseBody decodes the request body into v, answering 400 on failure.
func parseBody(c *fiber.Ctx, v interface{}) error {
	if err := c.BodyParser(v); err != nil {
		_ = models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("Invalid request body"))
		return errResponseWritten
	}
	return nil
}

// workspace returns the caller's workspace, or a throwaway one for anonymous
// viewers.
func (s *Server) workspace(c *fiber.Ctx) *workspace.Workspace {
	if sess := middleware.SessionFrom(c); sess != nil {
		return s.workspaces.Open(sess)
	}
	return s.workspaces.Anonymous()
}

// fail maps err to an AppError and writes it.
func fail(c *fiber.Ctx, err error) error {
	return models.Respond(c, toAppError(err))
}
