package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"github.com/nexlane/solutionhub/internal/domain"
	apperrors "github.com/nexlane/solutionhub/pkg/errors"
)

// targetTable maps a target type to its table. Both tables carry the same
// denormalized counter columns.
func targetTable(t domain.TargetType) (string, error) {
	switch t {
	case domain.TargetAsset:
		return "assets", nil
	case domain.TargetSolution:
		return "solutions", nil
	default:
		return "", apperrors.InvalidInput(fmt.Sprintf("unknown target type %q", t))
	}
}

// lockRatingAggregate reads the target's rating counters under a row lock so
// the read-recompute-write cycle is serialized against concurrent review
// mutations on the same target.
func lockRatingAggregate(ctx context.Context, tx pgx.Tx, table, targetID string) (domain.RatingAggregate, int, error) {
	query := fmt.Sprintf(
		`SELECT rating_total::text, avg_rating::text, reviews_count, upvotes_count FROM %s WHERE id = $1 FOR UPDATE`,
		table,
	)

	var (
		totalStr, avgStr string
		agg              domain.RatingAggregate
		upvotes          int
	)
	err := tx.QueryRow(ctx, query, targetID).Scan(&totalStr, &avgStr, &agg.Count, &upvotes)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return agg, 0, apperrors.ErrNotFound
		}
		return agg, 0, fmt.Errorf("lock target counters: %w", err)
	}

	if agg.Total, err = decimal.NewFromString(totalStr); err != nil {
		return agg, 0, fmt.Errorf("parse rating_total: %w", err)
	}
	if agg.Avg, err = decimal.NewFromString(avgStr); err != nil {
		return agg, 0, fmt.Errorf("parse avg_rating: %w", err)
	}

	return agg, upvotes, nil
}

// writeRatingAggregate writes recomputed counters back to the locked target
// row within the same transaction.
func writeRatingAggregate(ctx context.Context, tx pgx.Tx, table, targetID string, agg domain.RatingAggregate) error {
	query := fmt.Sprintf(
		`UPDATE %s SET rating_total = $1::numeric, avg_rating = $2::numeric, reviews_count = $3, updated_at = NOW() WHERE id = $4`,
		table,
	)

	if _, err := tx.Exec(ctx, query, agg.Total.String(), agg.Avg.String(), agg.Count, targetID); err != nil {
		return fmt.Errorf("write target counters: %w", err)
	}
	return nil
}

// isUniqueViolation checks if the error is a PostgreSQL unique constraint violation (SQLSTATE 23505).
func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "23505")
}
