package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/nexlane/solutionhub/internal/domain"
	"github.com/nexlane/solutionhub/internal/event"
	"github.com/nexlane/solutionhub/internal/repository"
	apperrors "github.com/nexlane/solutionhub/pkg/errors"
)

// ReviewService implements the business logic for review operations.
type ReviewService struct {
	repo     repository.ReviewRepository
	producer *event.Producer
	logger   *slog.Logger
}

// NewReviewService creates a new review service.
func NewReviewService(repo repository.ReviewRepository, producer *event.Producer, logger *slog.Logger) *ReviewService {
	return &ReviewService{
		repo:     repo,
		producer: producer,
		logger:   logger,
	}
}

// RecordReviewInput holds the parameters for recording a review.
type RecordReviewInput struct {
	TargetType string
	TargetID   string
	ActorID    string
	Rating     int
	Body       string
}

// RecordReview inserts a review and returns it with the target's refreshed
// counter summary.
func (s *ReviewService) RecordReview(ctx context.Context, input RecordReviewInput) (*domain.Review, domain.AggregateSummary, error) {
	if !domain.IsValidTargetType(input.TargetType) {
		return nil, domain.AggregateSummary{}, apperrors.InvalidInput(fmt.Sprintf("invalid target type %q", input.TargetType))
	}
	if input.TargetID == "" {
		return nil, domain.AggregateSummary{}, apperrors.InvalidInput("target id is required")
	}
	if input.ActorID == "" {
		return nil, domain.AggregateSummary{}, apperrors.InvalidInput("actor id is required")
	}
	if !domain.IsValidRating(input.Rating) {
		return nil, domain.AggregateSummary{}, apperrors.InvalidInput(fmt.Sprintf("rating must be between %d and %d", domain.MinRating, domain.MaxRating))
	}

	now := time.Now().UTC()
	review := &domain.Review{
		ID:         uuid.New().String(),
		TargetType: domain.TargetType(input.TargetType),
		TargetID:   input.TargetID,
		ActorID:    input.ActorID,
		Rating:     input.Rating,
		Body:       strings.TrimSpace(input.Body),
		CreatedAt:  now,
		UpdatedAt:  now,
	}

	summary, err := s.repo.Create(ctx, review)
	if err != nil {
		return nil, domain.AggregateSummary{}, fmt.Errorf("create review: %w", err)
	}

	if err := s.producer.PublishReviewCreated(ctx, review); err != nil {
		s.logger.ErrorContext(ctx, "failed to publish review.created event",
			slog.String("review_id", review.ID),
			slog.String("error", err.Error()),
		)
		// Do not fail the operation if event publishing fails.
	}

	s.logger.InfoContext(ctx, "review recorded",
		slog.String("review_id", review.ID),
		slog.String("target_type", input.TargetType),
		slog.String("target_id", input.TargetID),
		slog.Int("rating", input.Rating),
	)

	return review, summary, nil
}

// AmendReview changes the rating of an existing review owned by the actor.
func (s *ReviewService) AmendReview(ctx context.Context, id, actorID string, rating int, body string) (*domain.Review, domain.AggregateSummary, error) {
	if !domain.IsValidRating(rating) {
		return nil, domain.AggregateSummary{}, apperrors.InvalidInput(fmt.Sprintf("rating must be between %d and %d", domain.MinRating, domain.MaxRating))
	}

	review, summary, err := s.repo.UpdateRating(ctx, id, actorID, rating, strings.TrimSpace(body))
	if err != nil {
		return nil, domain.AggregateSummary{}, fmt.Errorf("update review rating: %w", err)
	}

	s.logger.InfoContext(ctx, "review amended",
		slog.String("review_id", id),
		slog.Int("rating", rating),
	)

	return review, summary, nil
}

// RetractReview deletes a review owned by the actor and returns the target's
// refreshed counter summary.
func (s *ReviewService) RetractReview(ctx context.Context, id, actorID string) (domain.AggregateSummary, error) {
	summary, err := s.repo.Delete(ctx, id, actorID)
	if err != nil {
		return domain.AggregateSummary{}, fmt.Errorf("delete review: %w", err)
	}

	s.logger.InfoContext(ctx, "review retracted",
		slog.String("review_id", id),
	)

	return summary, nil
}

// ListReviews returns a paginated list of reviews for a target together with
// the target's stored counter summary.
func (s *ReviewService) ListReviews(ctx context.Context, targetType, targetID string, filter repository.ListFilter) ([]domain.Review, int, domain.AggregateSummary, error) {
	if !domain.IsValidTargetType(targetType) {
		return nil, 0, domain.AggregateSummary{}, apperrors.InvalidInput(fmt.Sprintf("invalid target type %q", targetType))
	}

	clampListFilter(&filter)

	reviews, total, err := s.repo.ListByTarget(ctx, domain.TargetType(targetType), targetID, filter)
	if err != nil {
		return nil, 0, domain.AggregateSummary{}, fmt.Errorf("list reviews: %w", err)
	}

	summary, err := s.repo.GetSummary(ctx, domain.TargetType(targetType), targetID)
	if err != nil {
		return nil, 0, domain.AggregateSummary{}, fmt.Errorf("get target summary: %w", err)
	}

	return reviews, total, summary, nil
}

func clampListFilter(filter *repository.ListFilter) {
	if filter.Page <= 0 {
		filter.Page = 1
	}
	if filter.PerPage <= 0 {
		filter.PerPage = 20
	}
	if filter.PerPage > 100 {
		filter.PerPage = 100
	}
}
