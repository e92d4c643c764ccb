package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/nexlane/solutionhub/internal/domain"
	"github.com/nexlane/solutionhub/internal/event"
	"github.com/nexlane/solutionhub/internal/notifier"
	"github.com/nexlane/solutionhub/internal/repository"
	apperrors "github.com/nexlane/solutionhub/pkg/errors"
	"github.com/nexlane/solutionhub/pkg/slug"
)

// Webhook event types emitted by the billing provider.
const (
	WebhookProductCreated        = "product.created"
	WebhookProductUpdated        = "product.updated"
	WebhookPriceCreated          = "price.created"
	WebhookPriceUpdated          = "price.updated"
	WebhookPriceDeleted          = "price.deleted"
	WebhookCheckoutCompleted     = "checkout.session.completed"
	WebhookAsyncPaymentSucceeded = "checkout.session.async_payment_succeeded"
	WebhookAsyncPaymentFailed    = "checkout.session.async_payment_failed"
	WebhookSubscriptionUpdated   = "customer.subscription.updated"
)

// webhookHandler processes one decoded webhook payload.
type webhookHandler func(ctx context.Context, data json.RawMessage) error

// BillingSyncService mirrors the billing provider's ledger into local
// tables. Every handler is an upsert or a conditional write, so replays
// and reordered deliveries converge on the same state.
type BillingSyncService struct {
	billing    repository.BillingRepository
	solutions  repository.SolutionRepository
	bookings   repository.BookingRepository
	dispatcher notifier.Dispatcher
	producer   *event.Producer
	handlers   map[string]webhookHandler
	logger     *slog.Logger
}

// NewBillingSyncService creates a new billing webhook synchronizer.
func NewBillingSyncService(
	billing repository.BillingRepository,
	solutions repository.SolutionRepository,
	bookings repository.BookingRepository,
	dispatcher notifier.Dispatcher,
	producer *event.Producer,
	logger *slog.Logger,
) *BillingSyncService {
	s := &BillingSyncService{
		billing:    billing,
		solutions:  solutions,
		bookings:   bookings,
		dispatcher: dispatcher,
		producer:   producer,
		logger:     logger,
	}
	s.handlers = map[string]webhookHandler{
		WebhookProductCreated:        s.handleProductUpserted,
		WebhookProductUpdated:        s.handleProductUpserted,
		WebhookPriceCreated:          s.handlePriceCreated,
		WebhookPriceUpdated:          s.handlePriceUpdated,
		WebhookPriceDeleted:          s.handlePriceDeleted,
		WebhookCheckoutCompleted:     s.handlePaymentCompleted,
		WebhookAsyncPaymentSucceeded: s.handlePaymentCompleted,
		WebhookAsyncPaymentFailed:    s.handlePaymentFailed,
		WebhookSubscriptionUpdated:   s.handleSubscriptionUpdated,
	}
	return s
}

// HandleEvent dispatches a webhook event to its handler. Unknown event
// types are logged and acknowledged, never an error; the provider retries
// failed deliveries and nothing is gained by rejecting what we will never
// handle.
func (s *BillingSyncService) HandleEvent(ctx context.Context, eventType string, data json.RawMessage) error {
	handler, ok := s.handlers[eventType]
	if !ok {
		s.logger.DebugContext(ctx, "ignoring unhandled webhook event type",
			slog.String("event_type", eventType),
		)
		return nil
	}

	if err := handler(ctx, data); err != nil {
		return fmt.Errorf("handle %s: %w", eventType, err)
	}
	return nil
}

// productPayload is the provider's product object shape.
type productPayload struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Active      bool   `json:"active"`
	Livemode    bool   `json:"livemode"`
}

func (s *BillingSyncService) handleProductUpserted(ctx context.Context, data json.RawMessage) error {
	var p productPayload
	if err := json.Unmarshal(data, &p); err != nil {
		return fmt.Errorf("decode product payload: %w", err)
	}
	if p.ID == "" {
		return apperrors.InvalidInput("product payload missing id")
	}

	now := time.Now().UTC()
	product := &domain.Product{
		Ref:         p.ID,
		Name:        p.Name,
		Description: p.Description,
		Active:      p.Active,
		Livemode:    p.Livemode,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if _, err := s.billing.UpsertProduct(ctx, product); err != nil {
		return fmt.Errorf("upsert product mirror: %w", err)
	}

	// Test-mode products get a namespaced slug so they never collide with
	// their live-mode twins.
	solutionSlug := slug.Generate(p.Name)
	if !p.Livemode {
		solutionSlug = slug.WithPrefix("test", p.Name)
	}

	solution, created, err := s.solutions.UpsertByProductRef(ctx, p.ID, p.Name, solutionSlug, p.Description)
	if err != nil {
		return fmt.Errorf("upsert solution for product: %w", err)
	}

	s.logger.InfoContext(ctx, "product synchronized",
		slog.String("product_ref", p.ID),
		slog.String("solution_id", solution.ID),
		slog.Bool("created", created),
	)
	return nil
}

// pricePayload is the provider's price object shape.
type pricePayload struct {
	ID         string `json:"id"`
	Product    string `json:"product"`
	UnitAmount int64  `json:"unit_amount"`
	Currency   string `json:"currency"`
	Active     bool   `json:"active"`
}

func (s *BillingSyncService) handlePriceCreated(ctx context.Context, data json.RawMessage) error {
	var p pricePayload
	if err := json.Unmarshal(data, &p); err != nil {
		return fmt.Errorf("decode price payload: %w", err)
	}
	if p.ID == "" || p.Product == "" {
		return apperrors.InvalidInput("price payload missing id or product")
	}

	now := time.Now().UTC()
	price := &domain.Price{
		Ref:        p.ID,
		ProductRef: p.Product,
		UnitAmount: p.UnitAmount,
		Currency:   p.Currency,
		Active:     p.Active,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if _, err := s.billing.UpsertPrice(ctx, price); err != nil {
		return fmt.Errorf("upsert price mirror: %w", err)
	}

	// A new price becomes the solution's primary and forces a re-review
	// before the solution is published again.
	if err := s.solutions.SetPrimaryPrice(ctx, p.Product, p.ID); err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			s.logger.WarnContext(ctx, "price references unknown product, dropping primary assignment",
				slog.String("price_ref", p.ID),
				slog.String("product_ref", p.Product),
			)
			return nil
		}
		return fmt.Errorf("set primary price: %w", err)
	}

	s.logger.InfoContext(ctx, "price synchronized",
		slog.String("price_ref", p.ID),
		slog.String("product_ref", p.Product),
	)
	return nil
}

func (s *BillingSyncService) handlePriceUpdated(ctx context.Context, data json.RawMessage) error {
	var p pricePayload
	if err := json.Unmarshal(data, &p); err != nil {
		return fmt.Errorf("decode price payload: %w", err)
	}
	if p.ID == "" {
		return apperrors.InvalidInput("price payload missing id")
	}

	now := time.Now().UTC()
	price := &domain.Price{
		Ref:        p.ID,
		ProductRef: p.Product,
		UnitAmount: p.UnitAmount,
		Currency:   p.Currency,
		Active:     p.Active,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if _, err := s.billing.UpsertPrice(ctx, price); err != nil {
		return fmt.Errorf("upsert price mirror: %w", err)
	}

	// Deactivated prices are detached from any solution still pointing at
	// them. No automatic replacement; staff pick the next primary.
	if !p.Active {
		if err := s.solutions.ClearPrimaryPrice(ctx, p.ID); err != nil {
			return fmt.Errorf("clear primary price: %w", err)
		}
	}

	return nil
}

func (s *BillingSyncService) handlePriceDeleted(ctx context.Context, data json.RawMessage) error {
	var p pricePayload
	if err := json.Unmarshal(data, &p); err != nil {
		return fmt.Errorf("decode price payload: %w", err)
	}
	if p.ID == "" {
		return apperrors.InvalidInput("price payload missing id")
	}

	// The FK from solutions.primary_price_ref is ON DELETE SET NULL, so
	// removing the mirror clears any primary reference with it.
	if err := s.billing.DeletePrice(ctx, p.ID); err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			s.logger.DebugContext(ctx, "price already absent",
				slog.String("price_ref", p.ID),
			)
			return nil
		}
		return fmt.Errorf("delete price mirror: %w", err)
	}

	return nil
}

// checkoutSessionPayload is the provider's checkout session object shape.
type checkoutSessionPayload struct {
	ID            string `json:"id"`
	CustomerEmail string `json:"customer_email"`
}

func (s *BillingSyncService) handlePaymentCompleted(ctx context.Context, data json.RawMessage) error {
	var p checkoutSessionPayload
	if err := json.Unmarshal(data, &p); err != nil {
		return fmt.Errorf("decode checkout session payload: %w", err)
	}
	if p.ID == "" {
		return apperrors.InvalidInput("checkout session payload missing id")
	}

	booking, flipped, err := s.bookings.MarkPaymentCompleted(ctx, p.ID)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			s.logger.WarnContext(ctx, "payment completed for unknown session, dropping",
				slog.String("session_ref", p.ID),
			)
			return nil
		}
		return fmt.Errorf("mark payment completed: %w", err)
	}

	if !flipped {
		// Replayed delivery. The flag is already set and the notifications
		// already went out once; stay silent.
		s.logger.DebugContext(ctx, "payment completion replayed",
			slog.String("session_ref", p.ID),
			slog.String("booking_id", booking.ID),
		)
		return nil
	}

	if err := s.producer.PublishBookingPaymentCompleted(ctx, booking); err != nil {
		s.logger.ErrorContext(ctx, "failed to publish booking.payment_completed event",
			slog.String("booking_id", booking.ID),
			slog.String("error", err.Error()),
		)
	}

	s.notifyPaymentCompleted(ctx, booking, p.CustomerEmail)

	s.logger.InfoContext(ctx, "booking payment completed",
		slog.String("booking_id", booking.ID),
		slog.String("session_ref", p.ID),
	)
	return nil
}

// notifyPaymentCompleted tells the booker and the solution's contact that
// the booking is paid. Delivery failures are logged and dropped; the
// payment write has already committed and must not be disturbed.
func (s *BillingSyncService) notifyPaymentCompleted(ctx context.Context, booking *domain.Booking, bookerEmail string) {
	recipients := make([]string, 0, 2)
	if bookerEmail != "" {
		recipients = append(recipients, bookerEmail)
	}

	if booking.SolutionID != nil {
		solution, err := s.solutions.GetByID(ctx, *booking.SolutionID)
		if err != nil {
			s.logger.WarnContext(ctx, "could not load solution for payment notification",
				slog.String("booking_id", booking.ID),
				slog.String("error", err.Error()),
			)
		} else if solution.ContactEmail != "" {
			recipients = append(recipients, solution.ContactEmail)
		}
	}

	if len(recipients) == 0 {
		return
	}

	if err := s.dispatcher.Send(ctx, recipients, notifier.TemplateBookingConfirmed, map[string]string{
		"booking_id": booking.ID,
	}); err != nil {
		s.logger.ErrorContext(ctx, "failed to dispatch payment notification",
			slog.String("booking_id", booking.ID),
			slog.String("error", err.Error()),
		)
	}
}

func (s *BillingSyncService) handlePaymentFailed(ctx context.Context, data json.RawMessage) error {
	var p checkoutSessionPayload
	if err := json.Unmarshal(data, &p); err != nil {
		return fmt.Errorf("decode checkout session payload: %w", err)
	}
	if p.ID == "" {
		return apperrors.InvalidInput("checkout session payload missing id")
	}

	booking, err := s.bookings.GetBySessionRef(ctx, p.ID)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			s.logger.WarnContext(ctx, "payment failed for unknown session, dropping",
				slog.String("session_ref", p.ID),
			)
			return nil
		}
		return fmt.Errorf("get booking by session ref: %w", err)
	}

	// The booking stays unpaid; the customer is prompted to retry.
	if p.CustomerEmail != "" {
		if err := s.dispatcher.Send(ctx, []string{p.CustomerEmail}, notifier.TemplatePaymentRetryPrompt, map[string]string{
			"booking_id": booking.ID,
		}); err != nil {
			s.logger.ErrorContext(ctx, "failed to dispatch retry notification",
				slog.String("booking_id", booking.ID),
				slog.String("error", err.Error()),
			)
		}
	}

	s.logger.InfoContext(ctx, "booking payment failed",
		slog.String("booking_id", booking.ID),
		slog.String("session_ref", p.ID),
	)
	return nil
}

// subscriptionPayload is the provider's subscription object shape.
type subscriptionPayload struct {
	ID               string `json:"id"`
	Customer         string `json:"customer"`
	Status           string `json:"status"`
	CurrentPeriodEnd int64  `json:"current_period_end"`
	Items            struct {
		Data []struct {
			Price struct {
				ID string `json:"id"`
			} `json:"price"`
		} `json:"data"`
	} `json:"items"`
}

func (s *BillingSyncService) handleSubscriptionUpdated(ctx context.Context, data json.RawMessage) error {
	var p subscriptionPayload
	if err := json.Unmarshal(data, &p); err != nil {
		return fmt.Errorf("decode subscription payload: %w", err)
	}
	if p.ID == "" {
		return apperrors.InvalidInput("subscription payload missing id")
	}

	now := time.Now().UTC()
	sub := &domain.Subscription{
		Ref:         p.ID,
		CustomerRef: p.Customer,
		Status:      p.Status,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if len(p.Items.Data) > 0 {
		sub.PriceRef = p.Items.Data[0].Price.ID
	}
	if p.CurrentPeriodEnd > 0 {
		end := time.Unix(p.CurrentPeriodEnd, 0).UTC()
		sub.CurrentPeriodEnd = &end
	}

	if _, err := s.billing.UpsertSubscription(ctx, sub); err != nil {
		return fmt.Errorf("upsert subscription mirror: %w", err)
	}

	return nil
}
