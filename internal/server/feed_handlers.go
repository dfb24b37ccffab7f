package server

import (
	"context"

	"synerthree/internal/middleware"
	"synerthree/internal/models"
	"synerthree/internal/vote"

	"github.com/gofiber/fiber/v2"
)

// SubmitPostRequest is the body of POST /api/feed/posts.
type SubmitPostRequest struct {
	Title   string `json:"title"`
	Content string `json:"content"`
}

// DownvoteRequest is the body of the downvote confirmation.
type DownvoteRequest struct {
	Reason string `json:"reason"`
}

// cardLookup finds the vote card an action targets.
type cardLookup func(c *fiber.Ctx) (*vote.Card, error)

// GetFeed handles GET /api/feed. The first visit of a session loads the list.
func (s *Server) GetFeed(c *fiber.Ctx) error {
	feed := s.workspace(c).Feed
	if !feed.View().Loaded {
		if err := feed.Mount(c.UserContext()); err != nil {
			return fail(c, err)
		}
	}
	return c.JSON(feed.View())
}

// FocusFeed handles POST /api/feed/focus
func (s *Server) FocusFeed(c *fiber.Ctx) error {
	feed := s.workspace(c).Feed
	if err := feed.Focus(c.UserContext()); err != nil {
		return fail(c, err)
	}
	return c.JSON(feed.View())
}

// SubmitPost handles POST /api/feed/posts
func (s *Server) SubmitPost(c *fiber.Ctx) error {
	var req SubmitPostRequest
	if err := parseBody(c, &req); err != nil {
		return nil
	}
	feed := s.workspace(c).Feed
	if err := feed.Submit(c.UserContext(), req.Title, req.Content); err != nil {
		return fail(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(feed.View())
}

func (s *Server) feedCard(c *fiber.Ctx) (*vote.Card, error) {
	id, err := s.parseID(c, "id")
	if err != nil {
		return nil, err
	}
	return s.workspace(c).Feed.Card(id)
}

// voteRoutes installs the four vote actions for cards found by lookup.
func (s *Server) voteRoutes(r fiber.Router, lookup cardLookup) {
	r.Post("/upvote", s.voteAction(lookup, func(ctx context.Context, c *fiber.Ctx, card *vote.Card) error {
		return card.Upvote(ctx, middleware.SessionFrom(c))
	}))
	r.Post("/downvote", s.voteAction(lookup, func(ctx context.Context, c *fiber.Ctx, card *vote.Card) error {
		return card.Downvote(ctx, middleware.SessionFrom(c))
	}))
	r.Post("/downvote/confirm", s.voteAction(lookup, func(ctx context.Context, c *fiber.Ctx, card *vote.Card) error {
		var req DownvoteRequest
		if err := parseBody(c, &req); err != nil {
			return err
		}
		return card.ConfirmDownvote(ctx, middleware.SessionFrom(c), req.Reason)
	}))
	r.Post("/downvote/cancel", s.voteAction(lookup, func(_ context.Context, _ *fiber.Ctx, card *vote.Card) error {
		card.CancelDownvote()
		return nil
	}))
}

// voteAction wraps a card action. Anonymous viewers are turned away before
// the card is touched; the response is the card after the action.
func (s *Server) voteAction(lookup cardLookup, act func(context.Context, *fiber.Ctx, *vote.Card) error) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if middleware.SessionFrom(c) == nil {
			return fail(c, models.NewUnauthenticatedError("Please log in to vote"))
		}
		card, err := lookup(c)
		if err == errResponseWritten {
			return nil
		}
		if err != nil {
			return fail(c, err)
		}
		if err := act(c.UserContext(), c, card); err != nil {
			if err == errResponseWritten {
				return nil
			}
			return fail(c, err)
		}
		return c.JSON(card.Snapshot())
	}
}
