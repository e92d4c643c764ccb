package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/nexlane/solutionhub/internal/domain"
	"github.com/nexlane/solutionhub/internal/repository"
	apperrors "github.com/nexlane/solutionhub/pkg/errors"
)

// VoteService implements the business logic for vote operations.
type VoteService struct {
	repo   repository.VoteRepository
	logger *slog.Logger
}

// NewVoteService creates a new vote service.
func NewVoteService(repo repository.VoteRepository, logger *slog.Logger) *VoteService {
	return &VoteService{
		repo:   repo,
		logger: logger,
	}
}

// ToggleVoteInput holds the parameters for casting or flipping a vote.
type ToggleVoteInput struct {
	TargetType string
	TargetID   string
	ActorID    string
	IsUpvote   bool
}

// ToggleVote casts the actor's vote on a target, flipping the stored row in
// place when one already exists. The target's upvote counter moves with it.
func (s *VoteService) ToggleVote(ctx context.Context, input ToggleVoteInput) (*domain.Vote, error) {
	if !domain.IsValidTargetType(input.TargetType) {
		return nil, apperrors.InvalidInput(fmt.Sprintf("invalid target type %q", input.TargetType))
	}
	if input.TargetID == "" {
		return nil, apperrors.InvalidInput("target id is required")
	}
	if input.ActorID == "" {
		return nil, apperrors.InvalidInput("actor id is required")
	}

	vote := &domain.Vote{
		ID:         uuid.New().String(),
		TargetType: domain.TargetType(input.TargetType),
		TargetID:   input.TargetID,
		ActorID:    input.ActorID,
		IsUpvote:   input.IsUpvote,
		VotedOn:    time.Now().UTC(),
	}

	stored, created, err := s.repo.Toggle(ctx, vote)
	if err != nil {
		return nil, fmt.Errorf("toggle vote: %w", err)
	}

	s.logger.InfoContext(ctx, "vote toggled",
		slog.String("target_type", input.TargetType),
		slog.String("target_id", input.TargetID),
		slog.Bool("is_upvote", input.IsUpvote),
		slog.Bool("created", created),
	)

	return stored, nil
}
