package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/nexlane/solutionhub/internal/domain"
	apperrors "github.com/nexlane/solutionhub/pkg/errors"
)

type mockVoteRepository struct {
	mock.Mock
}

func (m *mockVoteRepository) Toggle(ctx context.Context, vote *domain.Vote) (*domain.Vote, bool, error) {
	args := m.Called(ctx, vote)
	if args.Get(0) == nil {
		return nil, args.Bool(1), args.Error(2)
	}
	return args.Get(0).(*domain.Vote), args.Bool(1), args.Error(2)
}

func TestVoteService_ToggleVote_Success(t *testing.T) {
	repo := new(mockVoteRepository)
	svc := NewVoteService(repo, newTestLogger())

	stored := &domain.Vote{ID: "vote-001", IsUpvote: true}
	repo.On("Toggle", mock.Anything, mock.MatchedBy(func(v *domain.Vote) bool {
		return v.TargetType == domain.TargetAsset &&
			v.TargetID == "asset-001" &&
			v.ActorID == "user-001" &&
			v.IsUpvote &&
			v.ID != ""
	})).Return(stored, true, nil)

	vote, err := svc.ToggleVote(context.Background(), ToggleVoteInput{
		TargetType: "asset",
		TargetID:   "asset-001",
		ActorID:    "user-001",
		IsUpvote:   true,
	})

	require.NoError(t, err)
	assert.Equal(t, stored, vote)
	repo.AssertExpectations(t)
}

func TestVoteService_ToggleVote_Validation(t *testing.T) {
	tests := []struct {
		name  string
		input ToggleVoteInput
	}{
		{"invalid target type", ToggleVoteInput{TargetType: "gadget", TargetID: "x", ActorID: "u"}},
		{"missing target id", ToggleVoteInput{TargetType: "solution", ActorID: "u"}},
		{"missing actor id", ToggleVoteInput{TargetType: "solution", TargetID: "x"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := new(mockVoteRepository)
			svc := NewVoteService(repo, newTestLogger())

			_, err := svc.ToggleVote(context.Background(), tt.input)

			require.Error(t, err)
			assert.ErrorIs(t, err, apperrors.ErrInvalidInput)
			repo.AssertNotCalled(t, "Toggle")
		})
	}
}
