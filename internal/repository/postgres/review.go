package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/nexlane/solutionhub/internal/domain"
	"github.com/nexlane/solutionhub/internal/repository"
	"github.com/nexlane/solutionhub/pkg/database"
	apperrors "github.com/nexlane/solutionhub/pkg/errors"
)

// ReviewRepository implements repository.ReviewRepository using PostgreSQL.
// Every mutation runs the review write and the target counter recompute in
// one transaction, with the target row locked for the duration.
type ReviewRepository struct {
	pool database.DBTX
}

// NewReviewRepository creates a new PostgreSQL-backed review repository.
func NewReviewRepository(pool database.DBTX) *ReviewRepository {
	return &ReviewRepository{pool: pool}
}

// Create inserts a review and applies the insert delta to the target.
func (r *ReviewRepository) Create(ctx context.Context, review *domain.Review) (domain.AggregateSummary, error) {
	var summary domain.AggregateSummary

	table, err := targetTable(review.TargetType)
	if err != nil {
		return summary, err
	}

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return summary, fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	// Lock the target first so concurrent mutations on the same target are
	// serialized before any delta is derived.
	agg, upvotes, err := lockRatingAggregate(ctx, tx, table, review.TargetID)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return summary, apperrors.NotFound(string(review.TargetType), review.TargetID)
		}
		return summary, err
	}

	insertQuery := `
		INSERT INTO reviews (id, target_type, target_id, actor_id, rating, body, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`

	_, err = tx.Exec(ctx, insertQuery,
		review.ID,
		review.TargetType,
		review.TargetID,
		review.ActorID,
		review.Rating,
		review.Body,
		review.CreatedAt,
		review.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return summary, apperrors.AlreadyExists("review", "actor", review.ActorID)
		}
		return summary, fmt.Errorf("insert review: %w", err)
	}

	agg = agg.OnInsert(review.Rating)
	if err := writeRatingAggregate(ctx, tx, table, review.TargetID, agg); err != nil {
		return summary, err
	}

	if err := tx.Commit(ctx); err != nil {
		return summary, fmt.Errorf("commit transaction: %w", err)
	}

	return domain.AggregateSummary{
		AvgRating:    agg.Avg.String(),
		ReviewsCount: agg.Count,
		UpvotesCount: upvotes,
	}, nil
}

// UpdateRating changes a review's rating, deriving the counter delta from
// the stored previous rating under the same row lock as the write.
func (r *ReviewRepository) UpdateRating(ctx context.Context, id, actorID string, rating int, body string) (*domain.Review, domain.AggregateSummary, error) {
	var summary domain.AggregateSummary

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, summary, fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	review, err := lockReview(ctx, tx, id)
	if err != nil {
		return nil, summary, err
	}
	if review.ActorID != actorID {
		return nil, summary, apperrors.Forbidden("only the review owner can modify it")
	}

	table, err := targetTable(review.TargetType)
	if err != nil {
		return nil, summary, err
	}

	oldRating := review.Rating

	updateQuery := `UPDATE reviews SET rating = $1, body = $2, updated_at = NOW() WHERE id = $3 RETURNING updated_at`
	if err := tx.QueryRow(ctx, updateQuery, rating, body, id).Scan(&review.UpdatedAt); err != nil {
		return nil, summary, fmt.Errorf("update review: %w", err)
	}
	review.Rating = rating
	review.Body = body

	agg, upvotes, err := lockRatingAggregate(ctx, tx, table, review.TargetID)
	if err != nil {
		return nil, summary, err
	}

	agg = agg.OnUpdate(oldRating, rating)
	if err := writeRatingAggregate(ctx, tx, table, review.TargetID, agg); err != nil {
		return nil, summary, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, summary, fmt.Errorf("commit transaction: %w", err)
	}

	return review, domain.AggregateSummary{
		AvgRating:    agg.Avg.String(),
		ReviewsCount: agg.Count,
		UpvotesCount: upvotes,
	}, nil
}

// Delete removes a review and applies the delete delta to the target.
func (r *ReviewRepository) Delete(ctx context.Context, id, actorID string) (domain.AggregateSummary, error) {
	var summary domain.AggregateSummary

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return summary, fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	review, err := lockReview(ctx, tx, id)
	if err != nil {
		return summary, err
	}
	if review.ActorID != actorID {
		return summary, apperrors.Forbidden("only the review owner can delete it")
	}

	table, err := targetTable(review.TargetType)
	if err != nil {
		return summary, err
	}

	if _, err := tx.Exec(ctx, `DELETE FROM reviews WHERE id = $1`, id); err != nil {
		return summary, fmt.Errorf("delete review: %w", err)
	}

	agg, upvotes, err := lockRatingAggregate(ctx, tx, table, review.TargetID)
	if err != nil {
		return summary, err
	}

	agg = agg.OnDelete(review.Rating)
	if err := writeRatingAggregate(ctx, tx, table, review.TargetID, agg); err != nil {
		return summary, err
	}

	if err := tx.Commit(ctx); err != nil {
		return summary, fmt.Errorf("commit transaction: %w", err)
	}

	return domain.AggregateSummary{
		AvgRating:    agg.Avg.String(),
		ReviewsCount: agg.Count,
		UpvotesCount: upvotes,
	}, nil
}

// ListByTarget returns reviews for a target with the total count.
func (r *ReviewRepository) ListByTarget(ctx context.Context, targetType domain.TargetType, targetID string, filter repository.ListFilter) ([]domain.Review, int, error) {
	if _, err := targetTable(targetType); err != nil {
		return nil, 0, err
	}

	var total int
	countQuery := `SELECT COUNT(*) FROM reviews WHERE target_type = $1 AND target_id = $2`
	if err := r.pool.QueryRow(ctx, countQuery, targetType, targetID).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count reviews: %w", err)
	}

	offset := (filter.Page - 1) * filter.PerPage
	listQuery := `
		SELECT id, target_type, target_id, actor_id, rating, body, created_at, updated_at
		FROM reviews
		WHERE target_type = $1 AND target_id = $2
		ORDER BY created_at DESC
		LIMIT $3 OFFSET $4`

	rows, err := r.pool.Query(ctx, listQuery, targetType, targetID, filter.PerPage, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("list reviews: %w", err)
	}
	defer rows.Close()

	reviews := []domain.Review{}
	for rows.Next() {
		var rv domain.Review
		if err := rows.Scan(&rv.ID, &rv.TargetType, &rv.TargetID, &rv.ActorID, &rv.Rating, &rv.Body, &rv.CreatedAt, &rv.UpdatedAt); err != nil {
			return nil, 0, fmt.Errorf("scan review: %w", err)
		}
		reviews = append(reviews, rv)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterate reviews: %w", err)
	}

	return reviews, total, nil
}

// GetSummary reads the target's stored counter snapshot. No lock is taken;
// reads trust the denormalized columns.
func (r *ReviewRepository) GetSummary(ctx context.Context, targetType domain.TargetType, targetID string) (domain.AggregateSummary, error) {
	var summary domain.AggregateSummary

	table, err := targetTable(targetType)
	if err != nil {
		return summary, err
	}

	query := fmt.Sprintf(
		`SELECT avg_rating::text, reviews_count, upvotes_count FROM %s WHERE id = $1`,
		table,
	)
	err = r.pool.QueryRow(ctx, query, targetID).Scan(&summary.AvgRating, &summary.ReviewsCount, &summary.UpvotesCount)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return summary, apperrors.NotFound(string(targetType), targetID)
		}
		return summary, fmt.Errorf("get target summary: %w", err)
	}

	return summary, nil
}

// lockReview fetches a review row under FOR UPDATE so the rating read used
// for the delta cannot go stale before the write commits.
func lockReview(ctx context.Context, tx pgx.Tx, id string) (*domain.Review, error) {
	query := `
		SELECT id, target_type, target_id, actor_id, rating, body, created_at, updated_at
		FROM reviews WHERE id = $1 FOR UPDATE`

	var (
		rv        domain.Review
		createdAt time.Time
	)
	err := tx.QueryRow(ctx, query, id).Scan(
		&rv.ID, &rv.TargetType, &rv.TargetID, &rv.ActorID, &rv.Rating, &rv.Body, &createdAt, &rv.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NotFound("review", id)
		}
		return nil, fmt.Errorf("lock review: %w", err)
	}
	rv.CreatedAt = createdAt
	return &rv, nil
}
