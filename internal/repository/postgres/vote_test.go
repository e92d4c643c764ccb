package postgres

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	pgxmock "github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nexlane/solutionhub/internal/domain"
	"github.com/nexlane/solutionhub/pkg/database"
)

func newVoteTestRepo(t *testing.T) (*VoteRepository, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := database.NewMockPool()
	require.NoError(t, err)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewVoteRepository(mock, logger), mock
}

func sampleVote(isUpvote bool) *domain.Vote {
	return &domain.Vote{
		ID:         "vote-001",
		TargetType: domain.TargetSolution,
		TargetID:   "solution-001",
		ActorID:    "user-001",
		IsUpvote:   isUpvote,
		VotedOn:    time.Now().UTC().Truncate(time.Microsecond),
	}
}

func expectVoteLock(mock pgxmock.PgxPoolIface, v *domain.Vote, existing *domain.Vote) {
	q := mock.ExpectQuery(`FROM votes\s+WHERE target_type = \$1 AND target_id = \$2 AND actor_id = \$3\s+FOR UPDATE`).
		WithArgs(v.TargetType, v.TargetID, v.ActorID)
	rows := pgxmock.NewRows([]string{"id", "target_type", "target_id", "actor_id", "is_upvote", "voted_on"})
	if existing != nil {
		rows.AddRow(existing.ID, existing.TargetType, existing.TargetID, existing.ActorID, existing.IsUpvote, existing.VotedOn)
	}
	q.WillReturnRows(rows)
}

func TestVoteRepository_Toggle_FirstUpvoteIncrements(t *testing.T) {
	repo, mock := newVoteTestRepo(t)
	defer mock.ExpectationsWereMet()

	v := sampleVote(true)

	mock.ExpectBegin()
	expectVoteLock(mock, v, nil)

	mock.ExpectExec("INSERT INTO votes").
		WithArgs(v.ID, v.TargetType, v.TargetID, v.ActorID, v.IsUpvote, v.VotedOn).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	// Counter moves via one conditional statement, never a read-then-write.
	mock.ExpectQuery(`SET upvotes_count = GREATEST\(t\.upvotes_count \+ \$1, 0\)`).
		WithArgs(1, v.TargetID).
		WillReturnRows(pgxmock.NewRows([]string{"old_count"}).AddRow(4))

	mock.ExpectCommit()

	stored, created, err := repo.Toggle(context.Background(), v)

	require.NoError(t, err)
	assert.True(t, created)
	assert.True(t, stored.IsUpvote)
}

func TestVoteRepository_Toggle_FirstDownvoteDoesNotTouchCounter(t *testing.T) {
	repo, mock := newVoteTestRepo(t)
	defer mock.ExpectationsWereMet()

	v := sampleVote(false)

	mock.ExpectBegin()
	expectVoteLock(mock, v, nil)

	mock.ExpectExec("INSERT INTO votes").
		WithArgs(v.ID, v.TargetType, v.TargetID, v.ActorID, v.IsUpvote, v.VotedOn).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	mock.ExpectCommit()

	_, created, err := repo.Toggle(context.Background(), v)

	require.NoError(t, err)
	assert.True(t, created)
}

func TestVoteRepository_Toggle_UpvoteToDownvoteDecrements(t *testing.T) {
	repo, mock := newVoteTestRepo(t)
	defer mock.ExpectationsWereMet()

	v := sampleVote(false)
	existing := sampleVote(true)
	existing.VotedOn = v.VotedOn.Add(-time.Hour)

	mock.ExpectBegin()
	expectVoteLock(mock, v, existing)

	mock.ExpectExec(`UPDATE votes SET is_upvote = \$1, voted_on = \$2 WHERE id = \$3`).
		WithArgs(v.IsUpvote, v.VotedOn, existing.ID).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	mock.ExpectQuery(`SET upvotes_count = GREATEST`).
		WithArgs(-1, v.TargetID).
		WillReturnRows(pgxmock.NewRows([]string{"old_count"}).AddRow(5))

	mock.ExpectCommit()

	stored, created, err := repo.Toggle(context.Background(), v)

	require.NoError(t, err)
	assert.False(t, created)
	assert.False(t, stored.IsUpvote)
}

func TestVoteRepository_Toggle_UnchangedVoteIsNoop(t *testing.T) {
	repo, mock := newVoteTestRepo(t)
	defer mock.ExpectationsWereMet()

	v := sampleVote(true)
	existing := sampleVote(true)

	mock.ExpectBegin()
	expectVoteLock(mock, v, existing)
	// No vote update, no counter statement.
	mock.ExpectCommit()

	stored, created, err := repo.Toggle(context.Background(), v)

	require.NoError(t, err)
	assert.False(t, created)
	assert.True(t, stored.IsUpvote)
}
