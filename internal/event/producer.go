package event

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/nexlane/solutionhub/internal/domain"
	pkgkafka "github.com/nexlane/solutionhub/pkg/kafka"
)

// Event type constants for booking and review domain events.
const (
	TypeBookingCreated          = "booking.created"
	TypeBookingStatusChanged    = "booking.status_changed"
	TypeBookingPaymentCompleted = "booking.payment_completed"
	TypeReviewCreated           = "review.created"
)

// Aggregate type constants.
const (
	AggregateTypeBooking = "booking"
	AggregateTypeReview  = "review"
)

// Source identifier for events originating from this service.
const SourceSolutionHub = "solutionhub"

// BookingCreatedData is the payload for a booking.created event.
type BookingCreatedData struct {
	ID                 string `json:"id"`
	SolutionID         string `json:"solution_id"`
	BookedBy           string `json:"booked_by"`
	Status             string `json:"status"`
	PriceAtBooking     int64  `json:"price_at_booking"`
	Currency           string `json:"currency"`
	ExternalSessionRef string `json:"external_session_ref,omitempty"`
	Resumed            bool   `json:"resumed"`
}

// BookingStatusChangedData is the payload for a booking.status_changed event.
type BookingStatusChangedData struct {
	BookingID string `json:"booking_id"`
	OldStatus string `json:"old_status"`
	NewStatus string `json:"new_status"`
}

// BookingPaymentCompletedData is the payload for a booking.payment_completed event.
type BookingPaymentCompletedData struct {
	BookingID          string `json:"booking_id"`
	SolutionID         string `json:"solution_id,omitempty"`
	ExternalSessionRef string `json:"external_session_ref"`
}

// ReviewCreatedData is the payload for a review.created event.
type ReviewCreatedData struct {
	ID         string `json:"id"`
	TargetType string `json:"target_type"`
	TargetID   string `json:"target_id"`
	ActorID    string `json:"actor_id"`
	Rating     int    `json:"rating"`
}

// Producer publishes domain events to Kafka. Publish failures are the
// caller's responsibility to log; they must never fail the operation that
// produced them.
type Producer struct {
	kafka  *pkgkafka.Producer
	topic  string
	logger *slog.Logger
}

// NewProducer creates a new domain event producer writing to the given topic.
func NewProducer(kafka *pkgkafka.Producer, topic string, logger *slog.Logger) *Producer {
	return &Producer{
		kafka:  kafka,
		topic:  topic,
		logger: logger,
	}
}

// PublishBookingCreated publishes a booking.created event.
func (p *Producer) PublishBookingCreated(ctx context.Context, booking *domain.Booking, resumed bool) error {
	solutionID := ""
	if booking.SolutionID != nil {
		solutionID = *booking.SolutionID
	}

	data := BookingCreatedData{
		ID:                 booking.ID,
		SolutionID:         solutionID,
		BookedBy:           booking.BookedBy,
		Status:             booking.Status,
		PriceAtBooking:     booking.PriceAtBooking,
		Currency:           booking.Currency,
		ExternalSessionRef: booking.ExternalSessionRef,
		Resumed:            resumed,
	}

	return p.publish(ctx, TypeBookingCreated, booking.ID, AggregateTypeBooking, data)
}

// PublishBookingStatusChanged publishes a booking.status_changed event.
func (p *Producer) PublishBookingStatusChanged(ctx context.Context, bookingID, oldStatus, newStatus string) error {
	data := BookingStatusChangedData{
		BookingID: bookingID,
		OldStatus: oldStatus,
		NewStatus: newStatus,
	}
	return p.publish(ctx, TypeBookingStatusChanged, bookingID, AggregateTypeBooking, data)
}

// PublishBookingPaymentCompleted publishes a booking.payment_completed event.
func (p *Producer) PublishBookingPaymentCompleted(ctx context.Context, booking *domain.Booking) error {
	solutionID := ""
	if booking.SolutionID != nil {
		solutionID = *booking.SolutionID
	}

	data := BookingPaymentCompletedData{
		BookingID:          booking.ID,
		SolutionID:         solutionID,
		ExternalSessionRef: booking.ExternalSessionRef,
	}
	return p.publish(ctx, TypeBookingPaymentCompleted, booking.ID, AggregateTypeBooking, data)
}

// PublishReviewCreated publishes a review.created event.
func (p *Producer) PublishReviewCreated(ctx context.Context, review *domain.Review) error {
	data := ReviewCreatedData{
		ID:         review.ID,
		TargetType: string(review.TargetType),
		TargetID:   review.TargetID,
		ActorID:    review.ActorID,
		Rating:     review.Rating,
	}
	return p.publish(ctx, TypeReviewCreated, review.ID, AggregateTypeReview, data)
}

func (p *Producer) publish(ctx context.Context, eventType, aggregateID, aggregateType string, data any) error {
	evt, err := pkgkafka.NewEvent(eventType, aggregateID, aggregateType, SourceSolutionHub, data)
	if err != nil {
		return fmt.Errorf("create %s event: %w", eventType, err)
	}

	if err := p.kafka.Publish(ctx, p.topic, evt); err != nil {
		return fmt.Errorf("publish %s event: %w", eventType, err)
	}

	p.logger.DebugContext(ctx, "published domain event",
		slog.String("event_type", eventType),
		slog.String("aggregate_id", aggregateID),
	)

	return nil
}
