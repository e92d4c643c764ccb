package domain

import "time"

// Rating bounds for reviews.
const (
	MinRating = 1
	MaxRating = 10
)

// Review is a single actor's rating of a target. At most one review exists
// per (actor, target); the rating is mutable and the row deletable by its
// owner.
type Review struct {
	ID         string     `json:"id"`
	TargetType TargetType `json:"target_type"`
	TargetID   string     `json:"target_id"`
	ActorID    string     `json:"actor_id"`
	Rating     int        `json:"rating"`
	Body       string     `json:"body,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
	UpdatedAt  time.Time  `json:"updated_at"`
}

// IsValidRating checks the rating is within bounds.
func IsValidRating(rating int) bool {
	return rating >= MinRating && rating <= MaxRating
}
