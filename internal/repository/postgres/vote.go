package postgres

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5"

	"github.com/nexlane/solutionhub/internal/domain"
	"github.com/nexlane/solutionhub/pkg/database"
	apperrors "github.com/nexlane/solutionhub/pkg/errors"
)

// VoteRepository implements repository.VoteRepository using PostgreSQL.
type VoteRepository struct {
	pool   database.DBTX
	logger *slog.Logger
}

// NewVoteRepository creates a new PostgreSQL-backed vote repository.
func NewVoteRepository(pool database.DBTX, logger *slog.Logger) *VoteRepository {
	return &VoteRepository{pool: pool, logger: logger}
}

// Toggle inserts the actor's vote or flips the existing row in place. The
// upvote counter is mutated in a single conditional statement so no
// in-memory copy of the counter is ever written back.
func (r *VoteRepository) Toggle(ctx context.Context, vote *domain.Vote) (*domain.Vote, bool, error) {
	table, err := targetTable(vote.TargetType)
	if err != nil {
		return nil, false, err
	}

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, false, fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	existing, err := lockVote(ctx, tx, vote.TargetType, vote.TargetID, vote.ActorID)
	if err != nil {
		return nil, false, err
	}

	var (
		stored  *domain.Vote
		created bool
		delta   int
	)

	if existing == nil {
		insertQuery := `
			INSERT INTO votes (id, target_type, target_id, actor_id, is_upvote, voted_on)
			VALUES ($1, $2, $3, $4, $5, $6)`

		_, err = tx.Exec(ctx, insertQuery,
			vote.ID, vote.TargetType, vote.TargetID, vote.ActorID, vote.IsUpvote, vote.VotedOn,
		)
		if err != nil {
			if isUniqueViolation(err) {
				return nil, false, apperrors.AlreadyExists("vote", "actor", vote.ActorID)
			}
			return nil, false, fmt.Errorf("insert vote: %w", err)
		}

		stored = vote
		created = true
		delta = domain.UpvoteDelta(false, false, vote.IsUpvote)
	} else if existing.IsUpvote == vote.IsUpvote {
		// Re-saving an unchanged vote never touches the counter.
		stored = existing
	} else {
		updateQuery := `UPDATE votes SET is_upvote = $1, voted_on = $2 WHERE id = $3`
		if _, err := tx.Exec(ctx, updateQuery, vote.IsUpvote, vote.VotedOn, existing.ID); err != nil {
			return nil, false, fmt.Errorf("update vote: %w", err)
		}

		delta = domain.UpvoteDelta(true, existing.IsUpvote, vote.IsUpvote)
		existing.IsUpvote = vote.IsUpvote
		existing.VotedOn = vote.VotedOn
		stored = existing
	}

	if delta != 0 {
		if err := r.applyUpvoteDelta(ctx, tx, table, vote.TargetID, delta); err != nil {
			return nil, false, err
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, false, fmt.Errorf("commit transaction: %w", err)
	}

	return stored, created, nil
}

// applyUpvoteDelta applies a single-statement conditional increment to the
// target's upvote counter, clamping at zero. The previous value is returned
// by the same statement so underflow can be detected without a second read.
func (r *VoteRepository) applyUpvoteDelta(ctx context.Context, tx pgx.Tx, table, targetID string, delta int) error {
	query := fmt.Sprintf(`
		UPDATE %s AS t
		SET upvotes_count = GREATEST(t.upvotes_count + $1, 0), updated_at = NOW()
		FROM (SELECT id, upvotes_count AS old_count FROM %s WHERE id = $2) AS prev
		WHERE t.id = prev.id
		RETURNING prev.old_count`, table, table)

	var oldCount int
	if err := tx.QueryRow(ctx, query, delta, targetID).Scan(&oldCount); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return apperrors.NotFound(table, targetID)
		}
		return fmt.Errorf("apply upvote delta: %w", err)
	}

	if oldCount+delta < 0 {
		r.logger.WarnContext(ctx, "upvote counter underflow clamped to zero",
			slog.String("target_id", targetID),
			slog.String("table", table),
			slog.Int("old_count", oldCount),
			slog.Int("delta", delta),
		)
	}

	return nil
}

// lockVote fetches the actor's existing vote row under FOR UPDATE, or nil
// when no row exists.
func lockVote(ctx context.Context, tx pgx.Tx, targetType domain.TargetType, targetID, actorID string) (*domain.Vote, error) {
	query := `
		SELECT id, target_type, target_id, actor_id, is_upvote, voted_on
		FROM votes
		WHERE target_type = $1 AND target_id = $2 AND actor_id = $3
		FOR UPDATE`

	var v domain.Vote
	err := tx.QueryRow(ctx, query, targetType, targetID, actorID).Scan(
		&v.ID, &v.TargetType, &v.TargetID, &v.ActorID, &v.IsUpvote, &v.VotedOn,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("lock vote: %w", err)
	}
	return &v, nil
}
