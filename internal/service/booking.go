package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/nexlane/solutionhub/internal/domain"
	"github.com/nexlane/solutionhub/internal/event"
	"github.com/nexlane/solutionhub/internal/notifier"
	"github.com/nexlane/solutionhub/internal/provider"
	"github.com/nexlane/solutionhub/internal/repository"
	apperrors "github.com/nexlane/solutionhub/pkg/errors"
)

// CheckoutURLs holds the redirect targets passed to the billing provider
// when opening a checkout session.
type CheckoutURLs struct {
	SuccessURL string
	CancelURL  string
}

// BookingService implements the business logic for booking operations.
type BookingService struct {
	repo         repository.BookingRepository
	solutions    repository.SolutionRepository
	billing      repository.BillingRepository
	checkout     provider.BillingProvider
	producer     *event.Producer
	dispatcher   notifier.Dispatcher
	checkoutURLs CheckoutURLs
	logger       *slog.Logger
}

// NewBookingService creates a new booking service.
func NewBookingService(
	repo repository.BookingRepository,
	solutions repository.SolutionRepository,
	billing repository.BillingRepository,
	checkout provider.BillingProvider,
	producer *event.Producer,
	dispatcher notifier.Dispatcher,
	checkoutURLs CheckoutURLs,
	logger *slog.Logger,
) *BookingService {
	return &BookingService{
		repo:         repo,
		solutions:    solutions,
		billing:      billing,
		checkout:     checkout,
		producer:     producer,
		dispatcher:   dispatcher,
		checkoutURLs: checkoutURLs,
		logger:       logger,
	}
}

// CreateBookingInput holds the parameters for creating a booking.
type CreateBookingInput struct {
	SolutionID  string
	BookedBy    string
	BookerEmail string
}

// CreateBookingResult is the booking plus the checkout redirect for the
// caller to complete payment.
type CreateBookingResult struct {
	Booking     *domain.Booking `json:"booking"`
	CheckoutURL string          `json:"checkout_url,omitempty"`
	Resumed     bool            `json:"resumed"`
}

// CreateBooking admits a booking against a solution. The solution must be
// published and carry a primary price; a checkout session is opened with
// the billing provider before the booking row is written, so the session
// reference lands in the same insert.
func (s *BookingService) CreateBooking(ctx context.Context, input CreateBookingInput) (*CreateBookingResult, error) {
	if input.SolutionID == "" {
		return nil, apperrors.InvalidInput("solution id is required")
	}
	if input.BookedBy == "" {
		return nil, apperrors.InvalidInput("booked_by is required")
	}

	solution, err := s.solutions.GetByID(ctx, input.SolutionID)
	if err != nil {
		return nil, fmt.Errorf("get solution for booking: %w", err)
	}

	if !solution.IsPublished {
		return nil, apperrors.InvalidInput("solution is not published")
	}
	if solution.PrimaryPriceRef == nil {
		return nil, apperrors.InvalidInput("solution has no price configured")
	}

	price, err := s.billing.GetPrice(ctx, *solution.PrimaryPriceRef)
	if err != nil {
		return nil, fmt.Errorf("get primary price: %w", err)
	}

	bookingID := uuid.New().String()

	session, err := s.checkout.CreateCheckoutSession(ctx, provider.CheckoutSessionParams{
		PriceRef:        price.Ref,
		Quantity:        1,
		CustomerEmail:   input.BookerEmail,
		ClientReference: bookingID,
		SuccessURL:      s.checkoutURLs.SuccessURL,
		CancelURL:       s.checkoutURLs.CancelURL,
	})
	if err != nil {
		return nil, fmt.Errorf("create checkout session: %w", err)
	}

	now := time.Now().UTC()
	booking := &domain.Booking{
		ID:                 bookingID,
		SolutionID:         &solution.ID,
		BookedBy:           input.BookedBy,
		Status:             domain.BookingStatusPending,
		PriceAtBooking:     price.UnitAmount,
		Currency:           price.Currency,
		ExternalSessionRef: session.Ref,
		CreatedAt:          now,
		UpdatedAt:          now,
	}

	stored, resumed, err := s.repo.Create(ctx, booking)
	if err != nil {
		return nil, fmt.Errorf("create booking: %w", err)
	}

	if err := s.producer.PublishBookingCreated(ctx, stored, resumed); err != nil {
		s.logger.ErrorContext(ctx, "failed to publish booking.created event",
			slog.String("booking_id", stored.ID),
			slog.String("error", err.Error()),
		)
		// Do not fail the operation if event publishing fails.
	}

	if input.BookerEmail != "" {
		if err := s.dispatcher.Send(ctx, []string{input.BookerEmail}, notifier.TemplateBookingReceived, map[string]string{
			"booking_id":    stored.ID,
			"solution_name": solution.Name,
		}); err != nil {
			s.logger.ErrorContext(ctx, "failed to dispatch booking notification",
				slog.String("booking_id", stored.ID),
				slog.String("error", err.Error()),
			)
		}
	}

	s.logger.InfoContext(ctx, "booking created",
		slog.String("booking_id", stored.ID),
		slog.String("solution_id", solution.ID),
		slog.Bool("resumed", resumed),
	)

	return &CreateBookingResult{
		Booking:     stored,
		CheckoutURL: session.URL,
		Resumed:     resumed,
	}, nil
}

// GetBooking retrieves a booking by its ID.
func (s *BookingService) GetBooking(ctx context.Context, id string) (*domain.Booking, error) {
	booking, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get booking by id: %w", err)
	}
	return booking, nil
}

// TransitionBooking moves a booking to a new lifecycle status.
func (s *BookingService) TransitionBooking(ctx context.Context, id, newStatus string) (*domain.Booking, error) {
	if !domain.IsValidBookingStatus(newStatus) {
		return nil, apperrors.InvalidInput(fmt.Sprintf("invalid status %q", newStatus))
	}

	booking, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get booking for transition: %w", err)
	}
	oldStatus := booking.Status

	updated, err := s.repo.UpdateStatus(ctx, id, newStatus)
	if err != nil {
		return nil, fmt.Errorf("update booking status: %w", err)
	}

	if oldStatus != updated.Status {
		if err := s.producer.PublishBookingStatusChanged(ctx, id, oldStatus, updated.Status); err != nil {
			s.logger.ErrorContext(ctx, "failed to publish booking.status_changed event",
				slog.String("booking_id", id),
				slog.String("error", err.Error()),
			)
		}
	}

	s.logger.InfoContext(ctx, "booking status updated",
		slog.String("booking_id", id),
		slog.String("old_status", oldStatus),
		slog.String("new_status", updated.Status),
	)

	return updated, nil
}

// DeleteBooking removes a booking entirely.
func (s *BookingService) DeleteBooking(ctx context.Context, id string) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		return fmt.Errorf("delete booking: %w", err)
	}

	s.logger.InfoContext(ctx, "booking deleted",
		slog.String("booking_id", id),
	)

	return nil
}
