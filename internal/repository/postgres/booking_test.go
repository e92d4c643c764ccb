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
	apperrors "github.com/nexlane/solutionhub/pkg/errors"
)

func newBookingTestRepo(t *testing.T) (*BookingRepository, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := database.NewMockPool()
	require.NoError(t, err)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewBookingRepository(mock, logger), mock
}

func sampleBooking() *domain.Booking {
	now := time.Now().UTC().Truncate(time.Microsecond)
	solutionID := "solution-001"
	return &domain.Booking{
		ID:                 "booking-001",
		SolutionID:         &solutionID,
		BookedBy:           "user-001",
		Status:             domain.BookingStatusPending,
		IsPaymentCompleted: false,
		PriceAtBooking:     25000,
		Currency:           "usd",
		ExternalSessionRef: "cs_test_123",
		CreatedAt:          now,
		UpdatedAt:          now,
	}
}

func bookingRows(b *domain.Booking) *pgxmock.Rows {
	return pgxmock.NewRows([]string{
		"id", "solution_id", "booked_by", "status", "is_payment_completed",
		"price_at_booking", "currency", "external_session_ref", "started_at",
		"created_at", "updated_at",
	}).AddRow(
		b.ID, b.SolutionID, b.BookedBy, b.Status, b.IsPaymentCompleted,
		b.PriceAtBooking, b.Currency, b.ExternalSessionRef, b.StartedAt,
		b.CreatedAt, b.UpdatedAt,
	)
}

func expectAdmissionLock(mock pgxmock.PgxPoolIface, solutionID string, capacity, maxQueue, livePaid, pendingUnpaid int) {
	mock.ExpectQuery(`SELECT capacity, max_queue_size FROM solutions WHERE id = \$1 FOR UPDATE`).
		WithArgs(solutionID).
		WillReturnRows(pgxmock.NewRows([]string{"capacity", "max_queue_size"}).AddRow(capacity, maxQueue))

	mock.ExpectQuery(`FROM bookings WHERE solution_id = \$1`).
		WithArgs(solutionID).
		WillReturnRows(pgxmock.NewRows([]string{"live_paid", "pending_unpaid"}).AddRow(livePaid, pendingUnpaid))
}

func TestBookingRepository_Create_Admitted(t *testing.T) {
	repo, mock := newBookingTestRepo(t)
	defer mock.ExpectationsWereMet()

	b := sampleBooking()

	mock.ExpectBegin()
	expectAdmissionLock(mock, *b.SolutionID, 1, 1, 0, 0)

	// No cancelled booking matches the session ref, so a new row is inserted.
	mock.ExpectQuery(`UPDATE bookings\s+SET status = \$1, updated_at = NOW\(\)`).
		WithArgs(domain.BookingStatusPending, *b.SolutionID, b.BookedBy, b.ExternalSessionRef, domain.BookingStatusCancelled).
		WillReturnRows(pgxmock.NewRows([]string{"id"}))

	mock.ExpectExec("INSERT INTO bookings").
		WithArgs(
			b.ID, b.SolutionID, b.BookedBy, b.Status, b.IsPaymentCompleted,
			b.PriceAtBooking, b.Currency, b.ExternalSessionRef, b.StartedAt,
			b.CreatedAt, b.UpdatedAt,
		).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	mock.ExpectQuery(`SET bookings_pending_fulfillment_count = GREATEST`).
		WithArgs(1, *b.SolutionID).
		WillReturnRows(pgxmock.NewRows([]string{"old_count"}).AddRow(0))

	mock.ExpectCommit()

	created, resumed, err := repo.Create(context.Background(), b)

	require.NoError(t, err)
	assert.False(t, resumed)
	assert.Equal(t, b.ID, created.ID)
}

func TestBookingRepository_Create_RejectedAtCapacity(t *testing.T) {
	repo, mock := newBookingTestRepo(t)
	defer mock.ExpectationsWereMet()

	b := sampleBooking()

	mock.ExpectBegin()
	// capacity=1 with 1 live paid booking: no room.
	expectAdmissionLock(mock, *b.SolutionID, 1, 1, 1, 0)
	mock.ExpectRollback()

	_, _, err := repo.Create(context.Background(), b)

	require.Error(t, err)
	assert.ErrorIs(t, err, apperrors.ErrAtCapacity)
}

func TestBookingRepository_Create_RejectedQueueFull(t *testing.T) {
	repo, mock := newBookingTestRepo(t)
	defer mock.ExpectationsWereMet()

	b := sampleBooking()

	mock.ExpectBegin()
	expectAdmissionLock(mock, *b.SolutionID, 5, 2, 0, 2)
	mock.ExpectRollback()

	_, _, err := repo.Create(context.Background(), b)

	require.Error(t, err)
	assert.ErrorIs(t, err, apperrors.ErrAtCapacity)
}

func TestBookingRepository_Create_ResumesCancelledBooking(t *testing.T) {
	repo, mock := newBookingTestRepo(t)
	defer mock.ExpectationsWereMet()

	b := sampleBooking()
	resumedRow := sampleBooking()
	resumedRow.Status = domain.BookingStatusPending

	mock.ExpectBegin()
	expectAdmissionLock(mock, *b.SolutionID, 2, 2, 0, 0)

	mock.ExpectQuery(`UPDATE bookings\s+SET status = \$1, updated_at = NOW\(\)`).
		WithArgs(domain.BookingStatusPending, *b.SolutionID, b.BookedBy, b.ExternalSessionRef, domain.BookingStatusCancelled).
		WillReturnRows(bookingRows(resumedRow))

	mock.ExpectQuery(`SET bookings_pending_fulfillment_count = GREATEST`).
		WithArgs(1, *b.SolutionID).
		WillReturnRows(pgxmock.NewRows([]string{"old_count"}).AddRow(0))

	mock.ExpectCommit()

	got, resumed, err := repo.Create(context.Background(), b)

	require.NoError(t, err)
	assert.True(t, resumed)
	assert.Equal(t, domain.BookingStatusPending, got.Status)
}

func TestBookingRepository_Create_SolutionMissing(t *testing.T) {
	repo, mock := newBookingTestRepo(t)
	defer mock.ExpectationsWereMet()

	b := sampleBooking()

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT capacity, max_queue_size FROM solutions`).
		WithArgs(*b.SolutionID).
		WillReturnRows(pgxmock.NewRows([]string{"capacity", "max_queue_size"}))
	mock.ExpectRollback()

	_, _, err := repo.Create(context.Background(), b)

	require.Error(t, err)
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}

func TestBookingRepository_UpdateStatus_LeavingPendingStampsStartedAt(t *testing.T) {
	repo, mock := newBookingTestRepo(t)
	defer mock.ExpectationsWereMet()

	b := sampleBooking()
	startedAt := time.Now().UTC()

	mock.ExpectBegin()

	mock.ExpectQuery(`FROM bookings WHERE id = \$1 FOR UPDATE`).
		WithArgs(b.ID).
		WillReturnRows(bookingRows(b))

	mock.ExpectQuery(`UPDATE bookings\s+SET status = \$1,`).
		WithArgs(domain.BookingStatusInProgress, true, b.ID).
		WillReturnRows(pgxmock.NewRows([]string{"started_at", "updated_at"}).AddRow(&startedAt, time.Now().UTC()))

	mock.ExpectCommit()

	updated, err := repo.UpdateStatus(context.Background(), b.ID, domain.BookingStatusInProgress)

	require.NoError(t, err)
	assert.Equal(t, domain.BookingStatusInProgress, updated.Status)
	require.NotNil(t, updated.StartedAt)
}

func TestBookingRepository_UpdateStatus_TerminalDecrementsPendingCounter(t *testing.T) {
	repo, mock := newBookingTestRepo(t)
	defer mock.ExpectationsWereMet()

	b := sampleBooking()
	b.Status = domain.BookingStatusInProgress
	startedAt := time.Now().UTC()
	b.StartedAt = &startedAt

	mock.ExpectBegin()

	mock.ExpectQuery(`FROM bookings WHERE id = \$1 FOR UPDATE`).
		WithArgs(b.ID).
		WillReturnRows(bookingRows(b))

	mock.ExpectQuery(`UPDATE bookings\s+SET status = \$1,`).
		WithArgs(domain.BookingStatusCompleted, false, b.ID).
		WillReturnRows(pgxmock.NewRows([]string{"started_at", "updated_at"}).AddRow(&startedAt, time.Now().UTC()))

	mock.ExpectQuery(`SET bookings_pending_fulfillment_count = GREATEST`).
		WithArgs(-1, *b.SolutionID).
		WillReturnRows(pgxmock.NewRows([]string{"old_count"}).AddRow(1))

	mock.ExpectCommit()

	updated, err := repo.UpdateStatus(context.Background(), b.ID, domain.BookingStatusCompleted)

	require.NoError(t, err)
	assert.Equal(t, domain.BookingStatusCompleted, updated.Status)
}

func TestBookingRepository_UpdateStatus_SameStatusIsNoop(t *testing.T) {
	repo, mock := newBookingTestRepo(t)
	defer mock.ExpectationsWereMet()

	b := sampleBooking()
	b.Status = domain.BookingStatusCompleted

	mock.ExpectBegin()
	mock.ExpectQuery(`FROM bookings WHERE id = \$1 FOR UPDATE`).
		WithArgs(b.ID).
		WillReturnRows(bookingRows(b))
	// No counter statement: the replay must not decrement a second time.
	mock.ExpectCommit()

	updated, err := repo.UpdateStatus(context.Background(), b.ID, domain.BookingStatusCompleted)

	require.NoError(t, err)
	assert.Equal(t, domain.BookingStatusCompleted, updated.Status)
}

func TestBookingRepository_UpdateStatus_InvalidTransition(t *testing.T) {
	repo, mock := newBookingTestRepo(t)
	defer mock.ExpectationsWereMet()

	b := sampleBooking()
	b.Status = domain.BookingStatusCancelled

	mock.ExpectBegin()
	mock.ExpectQuery(`FROM bookings WHERE id = \$1 FOR UPDATE`).
		WithArgs(b.ID).
		WillReturnRows(bookingRows(b))
	mock.ExpectRollback()

	_, err := repo.UpdateStatus(context.Background(), b.ID, domain.BookingStatusInProgress)

	require.Error(t, err)
	assert.ErrorIs(t, err, apperrors.ErrConflict)
}

func TestBookingRepository_MarkPaymentCompleted_FlipsOnce(t *testing.T) {
	repo, mock := newBookingTestRepo(t)
	defer mock.ExpectationsWereMet()

	b := sampleBooking()
	b.IsPaymentCompleted = true

	mock.ExpectQuery(`SET is_payment_completed = TRUE, updated_at = NOW\(\)\s+WHERE external_session_ref = \$1 AND NOT is_payment_completed`).
		WithArgs(b.ExternalSessionRef).
		WillReturnRows(bookingRows(b))

	got, wasUpdated, err := repo.MarkPaymentCompleted(context.Background(), b.ExternalSessionRef)

	require.NoError(t, err)
	assert.True(t, wasUpdated)
	assert.True(t, got.IsPaymentCompleted)
}

func TestBookingRepository_MarkPaymentCompleted_ReplayIsNoop(t *testing.T) {
	repo, mock := newBookingTestRepo(t)
	defer mock.ExpectationsWereMet()

	b := sampleBooking()
	b.IsPaymentCompleted = true

	// Conditional update matches no rows on replay.
	mock.ExpectQuery(`SET is_payment_completed = TRUE`).
		WithArgs(b.ExternalSessionRef).
		WillReturnRows(pgxmock.NewRows([]string{"id"}))

	mock.ExpectQuery(`FROM bookings WHERE external_session_ref = \$1`).
		WithArgs(b.ExternalSessionRef).
		WillReturnRows(bookingRows(b))

	got, wasUpdated, err := repo.MarkPaymentCompleted(context.Background(), b.ExternalSessionRef)

	require.NoError(t, err)
	assert.False(t, wasUpdated)
	assert.True(t, got.IsPaymentCompleted)
}

func TestBookingRepository_Delete_LiveBookingDecrements(t *testing.T) {
	repo, mock := newBookingTestRepo(t)
	defer mock.ExpectationsWereMet()

	b := sampleBooking()

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT status, solution_id FROM bookings WHERE id = \$1 FOR UPDATE`).
		WithArgs(b.ID).
		WillReturnRows(pgxmock.NewRows([]string{"status", "solution_id"}).AddRow(b.Status, b.SolutionID))
	mock.ExpectExec("DELETE FROM bookings").
		WithArgs(b.ID).
		WillReturnResult(pgxmock.NewResult("DELETE", 1))
	mock.ExpectQuery(`SET bookings_pending_fulfillment_count = GREATEST`).
		WithArgs(-1, *b.SolutionID).
		WillReturnRows(pgxmock.NewRows([]string{"old_count"}).AddRow(1))
	mock.ExpectCommit()

	require.NoError(t, repo.Delete(context.Background(), b.ID))
}

func TestBookingRepository_Delete_CompletedBookingDoesNotDecrement(t *testing.T) {
	repo, mock := newBookingTestRepo(t)
	defer mock.ExpectationsWereMet()

	b := sampleBooking()
	b.Status = domain.BookingStatusCompleted

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT status, solution_id FROM bookings WHERE id = \$1 FOR UPDATE`).
		WithArgs(b.ID).
		WillReturnRows(pgxmock.NewRows([]string{"status", "solution_id"}).AddRow(b.Status, b.SolutionID))
	mock.ExpectExec("DELETE FROM bookings").
		WithArgs(b.ID).
		WillReturnResult(pgxmock.NewResult("DELETE", 1))
	mock.ExpectCommit()

	require.NoError(t, repo.Delete(context.Background(), b.ID))
}
