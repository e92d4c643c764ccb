package postgres

import (
	"context"
	"errors"
	"testing"
	"time"

	pgxmock "github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nexlane/solutionhub/internal/domain"
	"github.com/nexlane/solutionhub/pkg/database"
	apperrors "github.com/nexlane/solutionhub/pkg/errors"
)

func newReviewTestRepo(t *testing.T) (*ReviewRepository, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := database.NewMockPool()
	require.NoError(t, err)
	return NewReviewRepository(mock), mock
}

func errDuplicateKey() error {
	return errors.New("ERROR: duplicate key value violates unique constraint (SQLSTATE 23505)")
}

func sampleReview() *domain.Review {
	now := time.Now().UTC().Truncate(time.Microsecond)
	return &domain.Review{
		ID:         "review-001",
		TargetType: domain.TargetAsset,
		TargetID:   "asset-001",
		ActorID:    "user-001",
		Rating:     8,
		Body:       "solid",
		CreatedAt:  now,
		UpdatedAt:  now,
	}
}

func TestReviewRepository_Create_Success(t *testing.T) {
	repo, mock := newReviewTestRepo(t)
	defer mock.ExpectationsWereMet()

	rv := sampleReview()
	rv.Rating = 9

	mock.ExpectBegin()

	// Target counters are locked before the delta is derived.
	mock.ExpectQuery(`SELECT rating_total::text, avg_rating::text, reviews_count, upvotes_count FROM assets WHERE id = \$1 FOR UPDATE`).
		WithArgs(rv.TargetID).
		WillReturnRows(pgxmock.NewRows([]string{"rating_total", "avg_rating", "reviews_count", "upvotes_count"}).
			AddRow("8", "8", 1, 3))

	mock.ExpectExec("INSERT INTO reviews").
		WithArgs(rv.ID, rv.TargetType, rv.TargetID, rv.ActorID, rv.Rating, rv.Body, rv.CreatedAt, rv.UpdatedAt).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	// Insert of a 9 onto (total=8, count=1) yields avg 8.5.
	mock.ExpectExec(`UPDATE assets SET rating_total = \$1::numeric, avg_rating = \$2::numeric, reviews_count = \$3, updated_at = NOW\(\) WHERE id = \$4`).
		WithArgs("17", "8.5", 2, rv.TargetID).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	mock.ExpectCommit()

	summary, err := repo.Create(context.Background(), rv)

	require.NoError(t, err)
	assert.Equal(t, "8.5", summary.AvgRating)
	assert.Equal(t, 2, summary.ReviewsCount)
	assert.Equal(t, 3, summary.UpvotesCount)
}

func TestReviewRepository_Create_DuplicateActorTarget(t *testing.T) {
	repo, mock := newReviewTestRepo(t)
	defer mock.ExpectationsWereMet()

	rv := sampleReview()

	mock.ExpectBegin()

	mock.ExpectQuery(`SELECT rating_total::text, avg_rating::text, reviews_count, upvotes_count FROM assets`).
		WithArgs(rv.TargetID).
		WillReturnRows(pgxmock.NewRows([]string{"rating_total", "avg_rating", "reviews_count", "upvotes_count"}).
			AddRow("0", "0", 0, 0))

	mock.ExpectExec("INSERT INTO reviews").
		WithArgs(rv.ID, rv.TargetType, rv.TargetID, rv.ActorID, rv.Rating, rv.Body, rv.CreatedAt, rv.UpdatedAt).
		WillReturnError(errDuplicateKey())

	mock.ExpectRollback()

	_, err := repo.Create(context.Background(), rv)

	require.Error(t, err)
	assert.ErrorIs(t, err, apperrors.ErrAlreadyExists)
}

func TestReviewRepository_Create_TargetMissing(t *testing.T) {
	repo, mock := newReviewTestRepo(t)
	defer mock.ExpectationsWereMet()

	rv := sampleReview()

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT rating_total::text`).
		WithArgs(rv.TargetID).
		WillReturnRows(pgxmock.NewRows([]string{"rating_total", "avg_rating", "reviews_count", "upvotes_count"}))
	mock.ExpectRollback()

	_, err := repo.Create(context.Background(), rv)

	require.Error(t, err)
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}

func TestReviewRepository_Delete_LastReviewResetsCounters(t *testing.T) {
	repo, mock := newReviewTestRepo(t)
	defer mock.ExpectationsWereMet()

	rv := sampleReview()

	mock.ExpectBegin()

	mock.ExpectQuery(`SELECT id, target_type, target_id, actor_id, rating, body, created_at, updated_at\s+FROM reviews WHERE id = \$1 FOR UPDATE`).
		WithArgs(rv.ID).
		WillReturnRows(pgxmock.NewRows([]string{"id", "target_type", "target_id", "actor_id", "rating", "body", "created_at", "updated_at"}).
			AddRow(rv.ID, rv.TargetType, rv.TargetID, rv.ActorID, rv.Rating, rv.Body, rv.CreatedAt, rv.UpdatedAt))

	mock.ExpectExec("DELETE FROM reviews").
		WithArgs(rv.ID).
		WillReturnResult(pgxmock.NewResult("DELETE", 1))

	mock.ExpectQuery(`SELECT rating_total::text`).
		WithArgs(rv.TargetID).
		WillReturnRows(pgxmock.NewRows([]string{"rating_total", "avg_rating", "reviews_count", "upvotes_count"}).
			AddRow("8", "8", 1, 0))

	// Deleting the last review resets the aggregate to exactly (0, 0).
	mock.ExpectExec(`UPDATE assets SET rating_total`).
		WithArgs("0", "0", 0, rv.TargetID).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	mock.ExpectCommit()

	summary, err := repo.Delete(context.Background(), rv.ID, rv.ActorID)

	require.NoError(t, err)
	assert.Equal(t, "0", summary.AvgRating)
	assert.Equal(t, 0, summary.ReviewsCount)
}

func TestReviewRepository_Delete_NotOwner(t *testing.T) {
	repo, mock := newReviewTestRepo(t)
	defer mock.ExpectationsWereMet()

	rv := sampleReview()

	mock.ExpectBegin()
	mock.ExpectQuery(`FROM reviews WHERE id = \$1 FOR UPDATE`).
		WithArgs(rv.ID).
		WillReturnRows(pgxmock.NewRows([]string{"id", "target_type", "target_id", "actor_id", "rating", "body", "created_at", "updated_at"}).
			AddRow(rv.ID, rv.TargetType, rv.TargetID, rv.ActorID, rv.Rating, rv.Body, rv.CreatedAt, rv.UpdatedAt))
	mock.ExpectRollback()

	_, err := repo.Delete(context.Background(), rv.ID, "someone-else")

	require.Error(t, err)
	assert.ErrorIs(t, err, apperrors.ErrForbidden)
}

func TestReviewRepository_UpdateRating_RecomputesFromStoredOldRating(t *testing.T) {
	repo, mock := newReviewTestRepo(t)
	defer mock.ExpectationsWereMet()

	rv := sampleReview() // stored rating 8
	newRating := 10

	mock.ExpectBegin()

	mock.ExpectQuery(`FROM reviews WHERE id = \$1 FOR UPDATE`).
		WithArgs(rv.ID).
		WillReturnRows(pgxmock.NewRows([]string{"id", "target_type", "target_id", "actor_id", "rating", "body", "created_at", "updated_at"}).
			AddRow(rv.ID, rv.TargetType, rv.TargetID, rv.ActorID, rv.Rating, rv.Body, rv.CreatedAt, rv.UpdatedAt))

	mock.ExpectQuery(`UPDATE reviews SET rating = \$1, body = \$2, updated_at = NOW\(\) WHERE id = \$3 RETURNING updated_at`).
		WithArgs(newRating, "better than I thought", rv.ID).
		WillReturnRows(pgxmock.NewRows([]string{"updated_at"}).AddRow(time.Now().UTC()))

	mock.ExpectQuery(`SELECT rating_total::text`).
		WithArgs(rv.TargetID).
		WillReturnRows(pgxmock.NewRows([]string{"rating_total", "avg_rating", "reviews_count", "upvotes_count"}).
			AddRow("14", "7", 2, 0))

	// (14 - 8 + 10) / 2 = 8; count unchanged.
	mock.ExpectExec(`UPDATE assets SET rating_total`).
		WithArgs("16", "8", 2, rv.TargetID).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	mock.ExpectCommit()

	updated, summary, err := repo.UpdateRating(context.Background(), rv.ID, rv.ActorID, newRating, "better than I thought")

	require.NoError(t, err)
	assert.Equal(t, newRating, updated.Rating)
	assert.Equal(t, "8", summary.AvgRating)
	assert.Equal(t, 2, summary.ReviewsCount)
}

func TestReviewRepository_GetSummary(t *testing.T) {
	repo, mock := newReviewTestRepo(t)
	defer mock.ExpectationsWereMet()

	mock.ExpectQuery(`SELECT avg_rating::text, reviews_count, upvotes_count FROM solutions WHERE id = \$1`).
		WithArgs("solution-001").
		WillReturnRows(pgxmock.NewRows([]string{"avg_rating", "reviews_count", "upvotes_count"}).
			AddRow("7.5", 4, 12))

	summary, err := repo.GetSummary(context.Background(), domain.TargetSolution, "solution-001")

	require.NoError(t, err)
	assert.Equal(t, "7.5", summary.AvgRating)
	assert.Equal(t, 4, summary.ReviewsCount)
	assert.Equal(t, 12, summary.UpvotesCount)
}
