package server

import (
	"errors"

	"synerthree/internal/detail"
	"synerthree/internal/feed"
	"synerthree/internal/models"
	"synerthree/internal/profile"
	"synerthree/internal/session"
	"synerthree/internal/vote"
)

// toAppError converts the sentinel errors of the screen packages into
// AppErrors. Errors that already are AppErrors pass through.
func toAppError(err error) *models.AppError {
	var appErr *models.AppError
	if errors.As(err, &appErr) {
		return appErr
	}

	switch {
	case errors.Is(err, session.ErrNoSession), errors.Is(err, session.ErrInvalidToken):
		return models.NewUnauthenticatedError("Please log in to continue")

	case errors.Is(err, vote.ErrReasonRequired):
		return models.NewValidationError("Please give a reason for the downvote")
	case errors.Is(err, vote.ErrPromptClosed):
		return models.NewValidationError("No downvote is waiting for a reason")
	case errors.Is(err, vote.ErrVoteInFlight):
		return models.NewBusyError("A vote on this idea is still being saved")
	case errors.Is(err, vote.ErrVoteConflict):
		return models.NewConflictError("You have already voted on this idea")

	case errors.Is(err, feed.ErrSubmitInFlight):
		return models.NewBusyError("An idea is already being submitted")

	case errors.Is(err, feed.ErrCardNotFound), errors.Is(err, detail.ErrNotFound), errors.Is(err, detail.ErrClosed),
		errors.Is(err, detail.ErrNotLoaded), errors.Is(err, detail.ErrCommentNotFound),
		errors.Is(err, profile.ErrPostNotFound):
		return &models.AppError{Code: models.CodeNotFound, Message: err.Error()}
	case errors.Is(err, detail.ErrNotAuthor):
		return models.NewForbiddenError("Only the author can do that")
	case errors.Is(err, detail.ErrNotEditing), errors.Is(err, profile.ErrNotEditing):
		return models.NewValidationError("No edit in progress")
	case errors.Is(err, detail.ErrConfirmationRequired), errors.Is(err, profile.ErrConfirmationRequired):
		return models.NewValidationError("Delete must be requested before it is confirmed")
	case errors.Is(err, detail.ErrInsightInFlight):
		return models.NewBusyError("An insight is already being generated")
	}

	return models.NewInternalError(err)
}
