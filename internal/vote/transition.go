// Package vote reconciles a viewer's vote on a post: the local optimistic copy
// of the tallies, the downvote reason prompt and the request sent upstream.
package vote

import (
	"synerthree/internal/models"
	"synerthree/internal/remote"
)

// Intent is a user action on the vote controls of a post.
type Intent string

const (
	IntentUpvote   Intent = "upvote"
	IntentDownvote Intent = "downvote"
	IntentConfirm  Intent = "confirm_downvote"
	IntentCancel   Intent = "cancel_downvote"
)

// Outcome is one row of the transition table.
type Outcome struct {
	To         models.VoteState
	DeltaUp    int
	DeltaDown  int
	Request    remote.VoteType // empty when nothing is sent
	OpenPrompt bool
}

// Changes reports whether the outcome mutates local state and calls the backend.
func (o Outcome) Changes() bool {
	return o.Request != ""
}

// Transition returns what intent does from state from. It is pure; Card applies it.
func Transition(from models.VoteState, intent Intent) Outcome {
	switch intent {
	case IntentUpvote:
		switch from {
		case models.VoteUp:
			return Outcome{To: models.VoteNone, DeltaUp: -1, Request: remote.VoteTypeRemove}
		case models.VoteDown:
			return Outcome{To: models.VoteUp, DeltaUp: 1, DeltaDown: -1, Request: remote.VoteTypeUp}
		default:
			return Outcome{To: models.VoteUp, DeltaUp: 1, Request: remote.VoteTypeUp}
		}
	case IntentDownvote:
		if from == models.VoteDown {
			return Outcome{To: models.VoteNone, DeltaDown: -1, Request: remote.VoteTypeRemove}
		}
		return Outcome{To: from, OpenPrompt: true}
	case IntentConfirm:
		switch from {
		case models.VoteUp:
			return Outcome{To: models.VoteDown, DeltaUp: -1, DeltaDown: 1, Request: remote.VoteTypeDown}
		case models.VoteDown:
			return Outcome{To: models.VoteDown}
		default:
			return Outcome{To: models.VoteDown, DeltaDown: 1, Request: remote.VoteTypeDown}
		}
	}
	return Outcome{To: from}
}
