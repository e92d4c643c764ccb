package service

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/nexlane/solutionhub/internal/domain"
	"github.com/nexlane/solutionhub/internal/event"
	"github.com/nexlane/solutionhub/internal/repository"
	apperrors "github.com/nexlane/solutionhub/pkg/errors"
	pkgkafka "github.com/nexlane/solutionhub/pkg/kafka"
)

// --- Mock Repository ---

type mockReviewRepository struct {
	mock.Mock
}

func (m *mockReviewRepository) Create(ctx context.Context, review *domain.Review) (domain.AggregateSummary, error) {
	args := m.Called(ctx, review)
	return args.Get(0).(domain.AggregateSummary), args.Error(1)
}

func (m *mockReviewRepository) UpdateRating(ctx context.Context, id, actorID string, rating int, body string) (*domain.Review, domain.AggregateSummary, error) {
	args := m.Called(ctx, id, actorID, rating, body)
	if args.Get(0) == nil {
		return nil, domain.AggregateSummary{}, args.Error(2)
	}
	return args.Get(0).(*domain.Review), args.Get(1).(domain.AggregateSummary), args.Error(2)
}

func (m *mockReviewRepository) Delete(ctx context.Context, id, actorID string) (domain.AggregateSummary, error) {
	args := m.Called(ctx, id, actorID)
	return args.Get(0).(domain.AggregateSummary), args.Error(1)
}

func (m *mockReviewRepository) ListByTarget(ctx context.Context, targetType domain.TargetType, targetID string, filter repository.ListFilter) ([]domain.Review, int, error) {
	args := m.Called(ctx, targetType, targetID, filter)
	return args.Get(0).([]domain.Review), args.Int(1), args.Error(2)
}

func (m *mockReviewRepository) GetSummary(ctx context.Context, targetType domain.TargetType, targetID string) (domain.AggregateSummary, error) {
	args := m.Called(ctx, targetType, targetID)
	return args.Get(0).(domain.AggregateSummary), args.Error(1)
}

// --- Test Helpers ---

func newTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
}

// newTestProducer returns an event producer whose publishes fail silently
// (no broker at the test address); services must tolerate that.
func newTestProducer() *event.Producer {
	logger := newTestLogger()
	kafkaCfg := pkgkafka.DefaultProducerConfig([]string{"localhost:9092"})
	return event.NewProducer(pkgkafka.NewProducer(kafkaCfg, logger), "solutionhub.events", logger)
}

func newReviewTestService(repo *mockReviewRepository) *ReviewService {
	return NewReviewService(repo, newTestProducer(), newTestLogger())
}

// --- Tests ---

func TestReviewService_RecordReview_Success(t *testing.T) {
	repo := new(mockReviewRepository)
	svc := newReviewTestService(repo)

	summary := domain.AggregateSummary{AvgRating: "8.5", ReviewsCount: 2, UpvotesCount: 4}
	repo.On("Create", mock.Anything, mock.MatchedBy(func(r *domain.Review) bool {
		return r.TargetType == domain.TargetSolution &&
			r.TargetID == "solution-001" &&
			r.ActorID == "user-001" &&
			r.Rating == 9 &&
			r.ID != ""
	})).Return(summary, nil)

	review, got, err := svc.RecordReview(context.Background(), RecordReviewInput{
		TargetType: "solution",
		TargetID:   "solution-001",
		ActorID:    "user-001",
		Rating:     9,
		Body:       "  solid work  ",
	})

	require.NoError(t, err)
	assert.Equal(t, summary, got)
	assert.Equal(t, "solid work", review.Body)
	repo.AssertExpectations(t)
}

func TestReviewService_RecordReview_Validation(t *testing.T) {
	tests := []struct {
		name  string
		input RecordReviewInput
	}{
		{"invalid target type", RecordReviewInput{TargetType: "widget", TargetID: "x", ActorID: "u", Rating: 5}},
		{"missing target id", RecordReviewInput{TargetType: "asset", ActorID: "u", Rating: 5}},
		{"missing actor id", RecordReviewInput{TargetType: "asset", TargetID: "x", Rating: 5}},
		{"rating too low", RecordReviewInput{TargetType: "asset", TargetID: "x", ActorID: "u", Rating: 0}},
		{"rating too high", RecordReviewInput{TargetType: "asset", TargetID: "x", ActorID: "u", Rating: 11}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := new(mockReviewRepository)
			svc := newReviewTestService(repo)

			_, _, err := svc.RecordReview(context.Background(), tt.input)

			require.Error(t, err)
			assert.ErrorIs(t, err, apperrors.ErrInvalidInput)
			repo.AssertNotCalled(t, "Create")
		})
	}
}

func TestReviewService_RecordReview_DuplicatePropagates(t *testing.T) {
	repo := new(mockReviewRepository)
	svc := newReviewTestService(repo)

	repo.On("Create", mock.Anything, mock.Anything).
		Return(domain.AggregateSummary{}, apperrors.AlreadyExists("review", "actor_id", "user-001"))

	_, _, err := svc.RecordReview(context.Background(), RecordReviewInput{
		TargetType: "solution",
		TargetID:   "solution-001",
		ActorID:    "user-001",
		Rating:     7,
	})

	require.Error(t, err)
	assert.ErrorIs(t, err, apperrors.ErrAlreadyExists)
}

func TestReviewService_AmendReview_InvalidRating(t *testing.T) {
	repo := new(mockReviewRepository)
	svc := newReviewTestService(repo)

	_, _, err := svc.AmendReview(context.Background(), "review-001", "user-001", 12, "")

	require.Error(t, err)
	assert.ErrorIs(t, err, apperrors.ErrInvalidInput)
	repo.AssertNotCalled(t, "UpdateRating")
}

func TestReviewService_AmendReview_Success(t *testing.T) {
	repo := new(mockReviewRepository)
	svc := newReviewTestService(repo)

	updated := &domain.Review{ID: "review-001", Rating: 6}
	summary := domain.AggregateSummary{AvgRating: "6", ReviewsCount: 1}
	repo.On("UpdateRating", mock.Anything, "review-001", "user-001", 6, "better").
		Return(updated, summary, nil)

	review, got, err := svc.AmendReview(context.Background(), "review-001", "user-001", 6, "better")

	require.NoError(t, err)
	assert.Equal(t, updated, review)
	assert.Equal(t, summary, got)
	repo.AssertExpectations(t)
}

func TestReviewService_RetractReview_NotOwnerPropagates(t *testing.T) {
	repo := new(mockReviewRepository)
	svc := newReviewTestService(repo)

	repo.On("Delete", mock.Anything, "review-001", "intruder").
		Return(domain.AggregateSummary{}, apperrors.Forbidden("review belongs to another user"))

	_, err := svc.RetractReview(context.Background(), "review-001", "intruder")

	require.Error(t, err)
	assert.ErrorIs(t, err, apperrors.ErrForbidden)
}

func TestReviewService_ListReviews_ClampsPagination(t *testing.T) {
	repo := new(mockReviewRepository)
	svc := newReviewTestService(repo)

	repo.On("ListByTarget", mock.Anything, domain.TargetAsset, "asset-001", repository.ListFilter{Page: 1, PerPage: 100}).
		Return([]domain.Review{}, 0, nil)
	repo.On("GetSummary", mock.Anything, domain.TargetAsset, "asset-001").
		Return(domain.AggregateSummary{AvgRating: "8.5", ReviewsCount: 2, UpvotesCount: 4}, nil)

	_, _, summary, err := svc.ListReviews(context.Background(), "asset", "asset-001", repository.ListFilter{Page: -3, PerPage: 500})

	require.NoError(t, err)
	assert.Equal(t, "8.5", summary.AvgRating)
	repo.AssertExpectations(t)
}

func TestReviewService_ListReviews_RepoError(t *testing.T) {
	repo := new(mockReviewRepository)
	svc := newReviewTestService(repo)

	repo.On("ListByTarget", mock.Anything, domain.TargetAsset, "asset-001", mock.Anything).
		Return([]domain.Review(nil), 0, errors.New("connection reset"))

	_, _, _, err := svc.ListReviews(context.Background(), "asset", "asset-001", repository.ListFilter{})

	require.Error(t, err)
}
