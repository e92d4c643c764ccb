package repository

import (
	"context"

	"github.com/nexlane/solutionhub/internal/domain"
)

// ListFilter defines pagination for listing endpoints.
type ListFilter struct {
	Page    int
	PerPage int
}

// AssetRepository defines persistence operations for assets.
type AssetRepository interface {
	// GetByIDOrSlug retrieves an asset by UUID or slug.
	GetByIDOrSlug(ctx context.Context, idOrSlug string) (*domain.Asset, error)

	// List returns assets with the total count.
	List(ctx context.Context, filter ListFilter) ([]domain.Asset, int, error)
}

// SolutionRepository defines persistence operations for solutions.
type SolutionRepository interface {
	// GetByID retrieves a solution by its unique identifier.
	GetByID(ctx context.Context, id string) (*domain.Solution, error)

	// GetByIDOrSlug retrieves a solution by UUID or slug.
	GetByIDOrSlug(ctx context.Context, idOrSlug string) (*domain.Solution, error)

	// List returns solutions with the total count.
	List(ctx context.Context, filter ListFilter) ([]domain.Solution, int, error)

	// UpsertByProductRef creates or updates the solution mirroring an
	// external billing product. On create the solution starts unpublished
	// with the given slug and description; on update only name and slug are
	// touched and an existing description is never overwritten. Returns the
	// solution and whether it was created.
	UpsertByProductRef(ctx context.Context, productRef, name, slug, description string) (*domain.Solution, bool, error)

	// SetPrimaryPrice sets the solution's primary price reference and marks
	// it unpublished.
	SetPrimaryPrice(ctx context.Context, productRef, priceRef string) error

	// ClearPrimaryPrice nulls the primary price reference on any solution
	// currently pointing at the given price.
	ClearPrimaryPrice(ctx context.Context, priceRef string) error
}

// ReviewRepository defines persistence for reviews. Each mutation applies
// its counter delta to the target inside the same transaction.
type ReviewRepository interface {
	// Create inserts a review and applies the insert delta to the target's
	// rating counters. A duplicate (actor, target) pair returns the
	// already-exists conflict.
	Create(ctx context.Context, review *domain.Review) (domain.AggregateSummary, error)

	// UpdateRating changes a review's rating (owner only) and applies the
	// update delta computed from the stored previous rating.
	UpdateRating(ctx context.Context, id, actorID string, rating int, body string) (*domain.Review, domain.AggregateSummary, error)

	// Delete removes a review (owner only) and applies the delete delta.
	Delete(ctx context.Context, id, actorID string) (domain.AggregateSummary, error)

	// ListByTarget returns reviews for a target with the total count.
	ListByTarget(ctx context.Context, targetType domain.TargetType, targetID string, filter ListFilter) ([]domain.Review, int, error)

	// GetSummary reads the target's stored counter snapshot.
	GetSummary(ctx context.Context, targetType domain.TargetType, targetID string) (domain.AggregateSummary, error)
}

// VoteRepository defines persistence for votes. The upvote counter is only
// ever mutated by single-statement conditional increments.
type VoteRepository interface {
	// Toggle inserts the actor's vote or flips an existing row in place,
	// applying the resulting upvotes_count delta to the target. Returns the
	// stored vote and whether a new row was created.
	Toggle(ctx context.Context, vote *domain.Vote) (*domain.Vote, bool, error)
}

// BookingRepository defines persistence for bookings and the admission
// discipline around the solution's pending-fulfillment counter.
type BookingRepository interface {
	// Create admits a new booking, serialized per solution. If a cancelled
	// booking exists for the same (solution, booked_by, session ref) it is
	// resumed to pending instead of inserting a new row. The pending
	// counter is incremented in the same transaction. Returns the booking
	// and whether an existing row was resumed.
	Create(ctx context.Context, booking *domain.Booking) (*domain.Booking, bool, error)

	// GetByID retrieves a booking by its unique identifier.
	GetByID(ctx context.Context, id string) (*domain.Booking, error)

	// UpdateStatus performs a lifecycle transition. Invalid transitions
	// return a conflict. Entering a terminal state decrements the pending
	// counter exactly once; leaving pending stamps started_at once.
	UpdateStatus(ctx context.Context, id, status string) (*domain.Booking, error)

	// MarkPaymentCompleted sets is_payment_completed on the booking with
	// the given external session reference. Returns the booking and whether
	// the flag actually flipped (false on replay).
	MarkPaymentCompleted(ctx context.Context, sessionRef string) (*domain.Booking, bool, error)

	// GetBySessionRef retrieves a booking by its external session reference.
	GetBySessionRef(ctx context.Context, sessionRef string) (*domain.Booking, error)

	// Delete removes a booking, decrementing the pending counter when the
	// booking was still live.
	Delete(ctx context.Context, id string) error
}

// BillingRepository defines persistence for the mirrored billing records.
type BillingRepository interface {
	// UpsertProduct stores the product mirror, returning whether it was created.
	UpsertProduct(ctx context.Context, product *domain.Product) (bool, error)

	// UpsertPrice stores the price mirror, returning whether it was created.
	UpsertPrice(ctx context.Context, price *domain.Price) (bool, error)

	// DeletePrice removes the price mirror.
	DeletePrice(ctx context.Context, ref string) error

	// GetPrice retrieves a price mirror by its provider reference.
	GetPrice(ctx context.Context, ref string) (*domain.Price, error)

	// UpsertSubscription stores the subscription mirror, returning whether
	// it was created.
	UpsertSubscription(ctx context.Context, sub *domain.Subscription) (bool, error)
}
