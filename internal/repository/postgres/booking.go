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

const bookingColumns = `id, solution_id, booked_by, status, is_payment_completed, price_at_booking, currency, external_session_ref, started_at, created_at, updated_at`

// BookingRepository implements repository.BookingRepository using PostgreSQL.
// Admission decisions are serialized per solution by locking the solution
// row for the duration of the creating transaction.
type BookingRepository struct {
	pool   database.DBTX
	logger *slog.Logger
}

// NewBookingRepository creates a new PostgreSQL-backed booking repository.
func NewBookingRepository(pool database.DBTX, logger *slog.Logger) *BookingRepository {
	return &BookingRepository{pool: pool, logger: logger}
}

// Create admits a booking against the solution's capacity and queue limits.
// A cancelled booking matching (solution, booked_by, session ref) is resumed
// to pending instead of inserting a new row.
func (r *BookingRepository) Create(ctx context.Context, booking *domain.Booking) (*domain.Booking, bool, error) {
	if booking.SolutionID == nil {
		return nil, false, apperrors.InvalidInput("booking requires a solution")
	}
	solutionID := *booking.SolutionID

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, false, fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	// Serialize admission per solution. The capacity check spans a count of
	// rows, not a single counter, so the solution row lock is what makes the
	// invariant hold under concurrent creation.
	var capacity, maxQueueSize int
	lockQuery := `SELECT capacity, max_queue_size FROM solutions WHERE id = $1 FOR UPDATE`
	if err := tx.QueryRow(ctx, lockQuery, solutionID).Scan(&capacity, &maxQueueSize); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, false, apperrors.NotFound("solution", solutionID)
		}
		return nil, false, fmt.Errorf("lock solution: %w", err)
	}

	var livePaid, pendingUnpaid int
	countQuery := `
		SELECT
			COUNT(*) FILTER (WHERE status NOT IN ('completed', 'cancelled') AND is_payment_completed),
			COUNT(*) FILTER (WHERE status = 'pending' AND NOT is_payment_completed)
		FROM bookings WHERE solution_id = $1`
	if err := tx.QueryRow(ctx, countQuery, solutionID).Scan(&livePaid, &pendingUnpaid); err != nil {
		return nil, false, fmt.Errorf("count bookings: %w", err)
	}

	if livePaid >= capacity {
		return nil, false, apperrors.AtCapacity(fmt.Sprintf("solution %s has no remaining capacity", solutionID))
	}
	if pendingUnpaid >= maxQueueSize {
		return nil, false, apperrors.AtCapacity(fmt.Sprintf("solution %s booking queue is full", solutionID))
	}

	// Resume-checkout path: a cancelled booking for the same actor and
	// payment session comes back to pending rather than duplicating the row.
	if booking.ExternalSessionRef != "" {
		resumed, err := r.resumeCancelled(ctx, tx, solutionID, booking.BookedBy, booking.ExternalSessionRef)
		if err != nil {
			return nil, false, err
		}
		if resumed != nil {
			if err := r.applyPendingDelta(ctx, tx, solutionID, 1); err != nil {
				return nil, false, err
			}
			if err := tx.Commit(ctx); err != nil {
				return nil, false, fmt.Errorf("commit transaction: %w", err)
			}
			return resumed, true, nil
		}
	}

	insertQuery := fmt.Sprintf(`
		INSERT INTO bookings (%s)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`, bookingColumns)

	_, err = tx.Exec(ctx, insertQuery,
		booking.ID,
		booking.SolutionID,
		booking.BookedBy,
		booking.Status,
		booking.IsPaymentCompleted,
		booking.PriceAtBooking,
		booking.Currency,
		booking.ExternalSessionRef,
		booking.StartedAt,
		booking.CreatedAt,
		booking.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, false, apperrors.AlreadyExists("booking", "session", booking.ExternalSessionRef)
		}
		return nil, false, fmt.Errorf("insert booking: %w", err)
	}

	if err := r.applyPendingDelta(ctx, tx, solutionID, 1); err != nil {
		return nil, false, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, false, fmt.Errorf("commit transaction: %w", err)
	}

	return booking, false, nil
}

// GetByID retrieves a booking by its ID.
func (r *BookingRepository) GetByID(ctx context.Context, id string) (*domain.Booking, error) {
	query := fmt.Sprintf(`SELECT %s FROM bookings WHERE id = $1`, bookingColumns)

	b, err := scanBooking(r.pool.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NotFound("booking", id)
		}
		return nil, fmt.Errorf("get booking: %w", err)
	}
	return b, nil
}

// GetBySessionRef retrieves a booking by its external session reference.
func (r *BookingRepository) GetBySessionRef(ctx context.Context, sessionRef string) (*domain.Booking, error) {
	query := fmt.Sprintf(`SELECT %s FROM bookings WHERE external_session_ref = $1`, bookingColumns)

	b, err := scanBooking(r.pool.QueryRow(ctx, query, sessionRef))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NotFound("booking", sessionRef)
		}
		return nil, fmt.Errorf("get booking by session: %w", err)
	}
	return b, nil
}

// UpdateStatus performs a lifecycle transition on a booking. Re-submitting
// the current status is a no-op. The first transition away from pending
// stamps started_at; entering a terminal state decrements the solution's
// pending-fulfillment counter exactly once.
func (r *BookingRepository) UpdateStatus(ctx context.Context, id, status string) (*domain.Booking, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	lockQuery := fmt.Sprintf(`SELECT %s FROM bookings WHERE id = $1 FOR UPDATE`, bookingColumns)
	b, err := scanBooking(tx.QueryRow(ctx, lockQuery, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NotFound("booking", id)
		}
		return nil, fmt.Errorf("lock booking: %w", err)
	}

	if b.Status == status {
		// Replayed transition to the current state; counters stay untouched.
		if err := tx.Commit(ctx); err != nil {
			return nil, fmt.Errorf("commit transaction: %w", err)
		}
		return b, nil
	}

	if !b.CanTransitionTo(status) {
		return nil, apperrors.Conflict(fmt.Sprintf("cannot transition booking from %s to %s", b.Status, status))
	}

	leavingPending := b.Status == domain.BookingStatusPending

	updateQuery := `
		UPDATE bookings
		SET status = $1,
		    started_at = CASE WHEN $2 THEN COALESCE(started_at, NOW()) ELSE started_at END,
		    updated_at = NOW()
		WHERE id = $3
		RETURNING started_at, updated_at`
	if err := tx.QueryRow(ctx, updateQuery, status, leavingPending, id).Scan(&b.StartedAt, &b.UpdatedAt); err != nil {
		return nil, fmt.Errorf("update booking status: %w", err)
	}
	b.Status = status

	// The previous status was non-terminal (terminal states reject all
	// transitions), so entering a terminal state releases exactly one unit
	// of the pending-fulfillment counter.
	if domain.IsTerminalStatus(status) && b.SolutionID != nil {
		if err := r.applyPendingDelta(ctx, tx, *b.SolutionID, -1); err != nil {
			return nil, err
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit transaction: %w", err)
	}

	return b, nil
}

// MarkPaymentCompleted flips is_payment_completed for the booking with the
// given session reference. The update is conditional so replaying the same
// event reports wasUpdated=false and triggers no duplicate side effects.
func (r *BookingRepository) MarkPaymentCompleted(ctx context.Context, sessionRef string) (*domain.Booking, bool, error) {
	query := fmt.Sprintf(`
		UPDATE bookings
		SET is_payment_completed = TRUE, updated_at = NOW()
		WHERE external_session_ref = $1 AND NOT is_payment_completed
		RETURNING %s`, bookingColumns)

	b, err := scanBooking(r.pool.QueryRow(ctx, query, sessionRef))
	if err == nil {
		return b, true, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, false, fmt.Errorf("mark payment completed: %w", err)
	}

	// Either the booking does not exist or the flag was already set.
	existing, err := r.GetBySessionRef(ctx, sessionRef)
	if err != nil {
		return nil, false, err
	}
	return existing, false, nil
}

// Delete removes a booking. A still-live booking releases its unit of the
// pending counter; a terminal one was already decremented.
func (r *BookingRepository) Delete(ctx context.Context, id string) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	var (
		status     string
		solutionID *string
	)
	lockQuery := `SELECT status, solution_id FROM bookings WHERE id = $1 FOR UPDATE`
	if err := tx.QueryRow(ctx, lockQuery, id).Scan(&status, &solutionID); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return apperrors.NotFound("booking", id)
		}
		return fmt.Errorf("lock booking: %w", err)
	}

	if _, err := tx.Exec(ctx, `DELETE FROM bookings WHERE id = $1`, id); err != nil {
		return fmt.Errorf("delete booking: %w", err)
	}

	if !domain.IsTerminalStatus(status) && solutionID != nil {
		if err := r.applyPendingDelta(ctx, tx, *solutionID, -1); err != nil {
			return err
		}
	}

	return tx.Commit(ctx)
}

// applyPendingDelta mutates bookings_pending_fulfillment_count in a single
// conditional statement, clamping at zero. The previous value comes back
// from the same statement so underflow is logged without a second read.
func (r *BookingRepository) applyPendingDelta(ctx context.Context, tx pgx.Tx, solutionID string, delta int) error {
	query := `
		UPDATE solutions AS s
		SET bookings_pending_fulfillment_count = GREATEST(s.bookings_pending_fulfillment_count + $1, 0),
		    updated_at = NOW()
		FROM (SELECT id, bookings_pending_fulfillment_count AS old_count FROM solutions WHERE id = $2) AS prev
		WHERE s.id = prev.id
		RETURNING prev.old_count`

	var oldCount int
	if err := tx.QueryRow(ctx, query, delta, solutionID).Scan(&oldCount); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return apperrors.NotFound("solution", solutionID)
		}
		return fmt.Errorf("apply pending booking delta: %w", err)
	}

	if oldCount+delta < 0 {
		r.logger.WarnContext(ctx, "pending booking counter underflow clamped to zero",
			slog.String("solution_id", solutionID),
			slog.Int("old_count", oldCount),
			slog.Int("delta", delta),
		)
	}

	return nil
}

// resumeCancelled flips a matching cancelled booking back to pending and
// returns it, or nil when no cancelled row matches.
func (r *BookingRepository) resumeCancelled(ctx context.Context, tx pgx.Tx, solutionID, bookedBy, sessionRef string) (*domain.Booking, error) {
	query := fmt.Sprintf(`
		UPDATE bookings
		SET status = $1, updated_at = NOW()
		WHERE solution_id = $2 AND booked_by = $3 AND external_session_ref = $4 AND status = $5
		RETURNING %s`, bookingColumns)

	b, err := scanBooking(tx.QueryRow(ctx, query,
		domain.BookingStatusPending, solutionID, bookedBy, sessionRef, domain.BookingStatusCancelled,
	))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("resume cancelled booking: %w", err)
	}
	return b, nil
}

// scanBooking scans a booking row in bookingColumns order.
func scanBooking(row pgx.Row) (*domain.Booking, error) {
	var b domain.Booking
	err := row.Scan(
		&b.ID,
		&b.SolutionID,
		&b.BookedBy,
		&b.Status,
		&b.IsPaymentCompleted,
		&b.PriceAtBooking,
		&b.Currency,
		&b.ExternalSessionRef,
		&b.StartedAt,
		&b.CreatedAt,
		&b.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &b, nil
}
