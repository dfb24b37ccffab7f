package server

import (
	"github.com/gofiber/fiber/v2"
)

// PictureRequest is the body of PUT /api/profile/picture.
type PictureRequest struct {
	URL string `json:"url"`
}

// GetProfile handles GET /api/profile. The profile is refetched on every visit.
func (s *Server) GetProfile(c *fiber.Ctx) error {
	profile := s.workspace(c).Profile
	if err := profile.Load(c.UserContext()); err != nil {
		return fail(c, err)
	}
	return c.JSON(profile.View())
}

// UpdateProfilePicture handles PUT /api/profile/picture
func (s *Server) UpdateProfilePicture(c *fiber.Ctx) error {
	var req PictureRequest
	if err := parseBody(c, &req); err != nil {
		return nil
	}
	profile := s.workspace(c).Profile
	if err := profile.UpdatePicture(c.UserContext(), req.URL); err != nil {
		return fail(c, err)
	}
	return c.JSON(profile.View())
}

// BeginProfileEdit handles POST /api/profile/posts/:id/edit
func (s *Server) BeginProfileEdit(c *fiber.Ctx) error {
	id, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}
	profile := s.workspace(c).Profile
	if _, err := profile.BeginEdit(id); err != nil {
		return fail(c, err)
	}
	return c.JSON(profile.View())
}

// SubmitProfileEdit handles PUT /api/profile/edit
func (s *Server) SubmitProfileEdit(c *fiber.Ctx) error {
	var req EditRequest
	if err := parseBody(c, &req); err != nil {
		return nil
	}
	profile := s.workspace(c).Profile
	if err := profile.SubmitEdit(c.UserContext(), req.Title, req.Content); err != nil {
		return fail(c, err)
	}
	return c.JSON(profile.View())
}

// CancelProfileEdit handles DELETE /api/profile/edit
func (s *Server) CancelProfileEdit(c *fiber.Ctx) error {
	profile := s.workspace(c).Profile
	profile.CancelEdit()
	return c.JSON(profile.View())
}

// RequestProfileDelete handles POST /api/profile/posts/:id/delete
func (s *Server) RequestProfileDelete(c *fiber.Ctx) error {
	id, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}
	profile := s.workspace(c).Profile
	if err := profile.RequestDelete(id); err != nil {
		return fail(c, err)
	}
	return c.JSON(profile.View())
}

// ConfirmProfileDelete handles POST /api/profile/delete/confirm
func (s *Server) ConfirmProfileDelete(c *fiber.Ctx) error {
	profile := s.workspace(c).Profile
	if err := profile.ConfirmDelete(c.UserContext()); err != nil {
		return fail(c, err)
	}
	return c.JSON(profile.View())
}

// AbortProfileDelete handles DELETE /api/profile/delete
func (s *Server) AbortProfileDelete(c *fiber.Ctx) error {
	profile := s.workspace(c).Profile
	profile.AbortDelete()
	return c.JSON(profile.View())
}
