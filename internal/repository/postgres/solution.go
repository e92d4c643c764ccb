package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/nexlane/solutionhub/internal/domain"
	"github.com/nexlane/solutionhub/internal/repository"
	"github.com/nexlane/solutionhub/pkg/database"
	apperrors "github.com/nexlane/solutionhub/pkg/errors"
)

const solutionColumns = `id, name, slug, description, is_published, capacity, max_queue_size, bookings_pending_fulfillment_count, rating_total::text, avg_rating::text, reviews_count, upvotes_count, contact_email, product_ref, primary_price_ref, created_at, updated_at`

// SolutionRepository implements repository.SolutionRepository using PostgreSQL.
type SolutionRepository struct {
	pool database.DBTX
}

// NewSolutionRepository creates a new PostgreSQL-backed solution repository.
func NewSolutionRepository(pool database.DBTX) *SolutionRepository {
	return &SolutionRepository{pool: pool}
}

// GetByID retrieves a solution by its ID.
func (r *SolutionRepository) GetByID(ctx context.Context, id string) (*domain.Solution, error) {
	query := fmt.Sprintf(`SELECT %s FROM solutions WHERE id = $1`, solutionColumns)

	s, err := scanSolution(r.pool.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NotFound("solution", id)
		}
		return nil, fmt.Errorf("get solution: %w", err)
	}
	return s, nil
}

// GetByIDOrSlug retrieves a solution by UUID or slug.
func (r *SolutionRepository) GetByIDOrSlug(ctx context.Context, idOrSlug string) (*domain.Solution, error) {
	query := fmt.Sprintf(`SELECT %s FROM solutions WHERE id::text = $1 OR slug = $1`, solutionColumns)

	s, err := scanSolution(r.pool.QueryRow(ctx, query, idOrSlug))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NotFound("solution", idOrSlug)
		}
		return nil, fmt.Errorf("get solution: %w", err)
	}
	return s, nil
}

// List returns solutions with the total count. Counter columns are read as
// stored; no aggregate is ever recomputed on a read path.
func (r *SolutionRepository) List(ctx context.Context, filter repository.ListFilter) ([]domain.Solution, int, error) {
	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM solutions`).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count solutions: %w", err)
	}

	offset := (filter.Page - 1) * filter.PerPage
	query := fmt.Sprintf(`SELECT %s FROM solutions ORDER BY created_at DESC LIMIT $1 OFFSET $2`, solutionColumns)

	rows, err := r.pool.Query(ctx, query, filter.PerPage, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("list solutions: %w", err)
	}
	defer rows.Close()

	solutions := []domain.Solution{}
	for rows.Next() {
		s, err := scanSolution(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("scan solution: %w", err)
		}
		solutions = append(solutions, *s)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterate solutions: %w", err)
	}

	return solutions, total, nil
}

// UpsertByProductRef mirrors an external billing product into a solution.
// New solutions start unpublished. The update path only touches name and
// slug; a description that is already set is never overwritten.
func (r *SolutionRepository) UpsertByProductRef(ctx context.Context, productRef, name, slug, description string) (*domain.Solution, bool, error) {
	query := fmt.Sprintf(`
		INSERT INTO solutions (id, name, slug, description, is_published, product_ref, created_at, updated_at)
		VALUES (gen_random_uuid(), $1, $2, $3, FALSE, $4, NOW(), NOW())
		ON CONFLICT (product_ref) DO UPDATE
		SET name = EXCLUDED.name, slug = EXCLUDED.slug, updated_at = NOW()
		RETURNING %s, (xmax = 0) AS was_created`, solutionColumns)

	var (
		s          domain.Solution
		wasCreated bool
	)
	err := r.pool.QueryRow(ctx, query, name, slug, description, productRef).Scan(
		&s.ID, &s.Name, &s.Slug, &s.Description, &s.IsPublished,
		&s.Capacity, &s.MaxQueueSize, &s.BookingsPendingFulfillmentCount,
		&s.RatingTotal, &s.AvgRating, &s.ReviewsCount, &s.UpvotesCount,
		&s.ContactEmail, &s.ProductRef, &s.PrimaryPriceRef,
		&s.CreatedAt, &s.UpdatedAt,
		&wasCreated,
	)
	if err != nil {
		return nil, false, fmt.Errorf("upsert solution by product ref: %w", err)
	}

	return &s, wasCreated, nil
}

// SetPrimaryPrice points the solution at a new primary price and marks it
// unpublished until the new price is reviewed.
func (r *SolutionRepository) SetPrimaryPrice(ctx context.Context, productRef, priceRef string) error {
	query := `
		UPDATE solutions
		SET primary_price_ref = $1, is_published = FALSE, updated_at = NOW()
		WHERE product_ref = $2`

	tag, err := r.pool.Exec(ctx, query, priceRef, productRef)
	if err != nil {
		return fmt.Errorf("set primary price: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperrors.NotFound("solution", productRef)
	}
	return nil
}

// ClearPrimaryPrice nulls the primary price reference on any solution
// pointing at the given price. No replacement price is auto-picked.
func (r *SolutionRepository) ClearPrimaryPrice(ctx context.Context, priceRef string) error {
	query := `
		UPDATE solutions
		SET primary_price_ref = NULL, updated_at = NOW()
		WHERE primary_price_ref = $1`

	if _, err := r.pool.Exec(ctx, query, priceRef); err != nil {
		return fmt.Errorf("clear primary price: %w", err)
	}
	return nil
}

// scanSolution scans a solution row in solutionColumns order.
func scanSolution(row pgx.Row) (*domain.Solution, error) {
	var s domain.Solution
	err := row.Scan(
		&s.ID, &s.Name, &s.Slug, &s.Description, &s.IsPublished,
		&s.Capacity, &s.MaxQueueSize, &s.BookingsPendingFulfillmentCount,
		&s.RatingTotal, &s.AvgRating, &s.ReviewsCount, &s.UpvotesCount,
		&s.ContactEmail, &s.ProductRef, &s.PrimaryPriceRef,
		&s.CreatedAt, &s.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &s, nil
}
