package domain

import "time"

// Booking status constants.
const (
	BookingStatusPending    = "pending"
	BookingStatusInProgress = "in_progress"
	BookingStatusInReview   = "in_review"
	BookingStatusCompleted  = "completed"
	BookingStatusCancelled  = "cancelled"
)

// Booking represents a paid service booking against a solution. The
// solution reference is nullified, not cascaded, when the solution is
// removed; historical bookings outlive the offering.
type Booking struct {
	ID                 string     `json:"id"`
	SolutionID         *string    `json:"solution_id,omitempty"`
	BookedBy           string     `json:"booked_by"`
	Status             string     `json:"status"`
	IsPaymentCompleted bool       `json:"is_payment_completed"`
	PriceAtBooking     int64      `json:"price_at_booking"`
	Currency           string     `json:"currency"`
	ExternalSessionRef string     `json:"external_session_ref,omitempty"`
	StartedAt          *time.Time `json:"started_at,omitempty"`
	CreatedAt          time.Time  `json:"created_at"`
	UpdatedAt          time.Time  `json:"updated_at"`
}

// ValidBookingStatuses returns all valid booking statuses.
func ValidBookingStatuses() []string {
	return []string{
		BookingStatusPending,
		BookingStatusInProgress,
		BookingStatusInReview,
		BookingStatusCompleted,
		BookingStatusCancelled,
	}
}

// IsValidBookingStatus checks if a status string is valid.
func IsValidBookingStatus(status string) bool {
	for _, s := range ValidBookingStatuses() {
		if s == status {
			return true
		}
	}
	return false
}

// AllowedBookingTransitions defines which status transitions are valid.
func AllowedBookingTransitions() map[string][]string {
	return map[string][]string{
		BookingStatusPending:    {BookingStatusInProgress, BookingStatusInReview, BookingStatusCancelled},
		BookingStatusInProgress: {BookingStatusCompleted, BookingStatusCancelled},
		BookingStatusInReview:   {BookingStatusCompleted, BookingStatusCancelled},
		BookingStatusCompleted:  {},
		BookingStatusCancelled:  {},
	}
}

// CanTransitionTo checks if the booking can transition to the target status.
func (b *Booking) CanTransitionTo(target string) bool {
	allowed, ok := AllowedBookingTransitions()[b.Status]
	if !ok {
		return false
	}
	for _, s := range allowed {
		if s == target {
			return true
		}
	}
	return false
}

// IsTerminalStatus reports whether the status is terminal.
func IsTerminalStatus(status string) bool {
	return status == BookingStatusCompleted || status == BookingStatusCancelled
}

// IsLive reports whether the booking counts toward the solution's
// pending-fulfillment counter.
func (b *Booking) IsLive() bool {
	return !IsTerminalStatus(b.Status)
}
