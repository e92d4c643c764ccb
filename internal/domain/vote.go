package domain

import "time"

// Vote is a single actor's vote on a target. One row exists per
// (actor, target) and is toggled in place rather than re-created. A
// downvote is IsUpvote=false; it withholds a contribution from
// upvotes_count but never subtracts below the upvote it previously added.
type Vote struct {
	ID         string     `json:"id"`
	TargetType TargetType `json:"target_type"`
	TargetID   string     `json:"target_id"`
	ActorID    string     `json:"actor_id"`
	IsUpvote   bool       `json:"is_upvote"`
	VotedOn    time.Time  `json:"voted_on"`
}

// UpvoteDelta returns the upvotes_count delta for a vote transition.
// Insert has no previous state (hadPrevious=false).
func UpvoteDelta(hadPrevious, oldIsUpvote, newIsUpvote bool) int {
	switch {
	case !hadPrevious && newIsUpvote:
		return 1
	case hadPrevious && !oldIsUpvote && newIsUpvote:
		return 1
	case hadPrevious && oldIsUpvote && !newIsUpvote:
		return -1
	default:
		return 0
	}
}
