package domain

import "time"

// TargetType discriminates which entity owns a review/vote counter.
type TargetType string

const (
	TargetAsset    TargetType = "asset"
	TargetSolution TargetType = "solution"
)

// IsValidTargetType checks if a target type string is valid.
func IsValidTargetType(t string) bool {
	return t == string(TargetAsset) || t == string(TargetSolution)
}

// Asset represents a catalog entry carrying denormalized review/vote
// counters. The counters are mutated only through the counter maintenance
// paths; read paths trust the stored values.
type Asset struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	Slug         string    `json:"slug"`
	Description  string    `json:"description,omitempty"`
	RatingTotal  string    `json:"rating_total"`
	AvgRating    string    `json:"avg_rating"`
	ReviewsCount int       `json:"reviews_count"`
	UpvotesCount int       `json:"upvotes_count"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// Solution represents a bookable offering. In addition to the shared
// counters it carries booking admission limits and the pending-fulfillment
// counter, plus references into the billing provider's mirrored catalog.
type Solution struct {
	ID                              string    `json:"id"`
	Name                            string    `json:"name"`
	Slug                            string    `json:"slug"`
	Description                     string    `json:"description,omitempty"`
	IsPublished                     bool      `json:"is_published"`
	Capacity                        int       `json:"capacity"`
	MaxQueueSize                    int       `json:"max_queue_size"`
	BookingsPendingFulfillmentCount int       `json:"bookings_pending_fulfillment_count"`
	RatingTotal                     string    `json:"rating_total"`
	AvgRating                       string    `json:"avg_rating"`
	ReviewsCount                    int       `json:"reviews_count"`
	UpvotesCount                    int       `json:"upvotes_count"`
	ContactEmail                    string    `json:"contact_email,omitempty"`
	ProductRef                      *string   `json:"product_ref,omitempty"`
	PrimaryPriceRef                 *string   `json:"primary_price_ref,omitempty"`
	CreatedAt                       time.Time `json:"created_at"`
	UpdatedAt                       time.Time `json:"updated_at"`
}

// AggregateSummary is the counter snapshot returned alongside review and
// vote mutations.
type AggregateSummary struct {
	AvgRating    string `json:"avg_rating"`
	ReviewsCount int    `json:"reviews_count"`
	UpvotesCount int    `json:"upvotes_count"`
}
