package http

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/nexlane/solutionhub/internal/domain"
	"github.com/nexlane/solutionhub/internal/event"
	"github.com/nexlane/solutionhub/internal/repository"
	"github.com/nexlane/solutionhub/internal/service"
	pkgkafka "github.com/nexlane/solutionhub/pkg/kafka"
)

const testWebhookSecret = "whsec_test"

// --- Mocks ---

type mockBillingRepository struct {
	mock.Mock
}

func (m *mockBillingRepository) UpsertProduct(ctx context.Context, product *domain.Product) (bool, error) {
	args := m.Called(ctx, product)
	return args.Bool(0), args.Error(1)
}

func (m *mockBillingRepository) UpsertPrice(ctx context.Context, price *domain.Price) (bool, error) {
	args := m.Called(ctx, price)
	return args.Bool(0), args.Error(1)
}

func (m *mockBillingRepository) DeletePrice(ctx context.Context, ref string) error {
	args := m.Called(ctx, ref)
	return args.Error(0)
}

func (m *mockBillingRepository) GetPrice(ctx context.Context, ref string) (*domain.Price, error) {
	args := m.Called(ctx, ref)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Price), args.Error(1)
}

func (m *mockBillingRepository) UpsertSubscription(ctx context.Context, sub *domain.Subscription) (bool, error) {
	args := m.Called(ctx, sub)
	return args.Bool(0), args.Error(1)
}

type mockSolutionRepository struct {
	mock.Mock
}

func (m *mockSolutionRepository) GetByID(ctx context.Context, id string) (*domain.Solution, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Solution), args.Error(1)
}

func (m *mockSolutionRepository) GetByIDOrSlug(ctx context.Context, idOrSlug string) (*domain.Solution, error) {
	args := m.Called(ctx, idOrSlug)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Solution), args.Error(1)
}

func (m *mockSolutionRepository) List(ctx context.Context, filter repository.ListFilter) ([]domain.Solution, int, error) {
	args := m.Called(ctx, filter)
	return args.Get(0).([]domain.Solution), args.Int(1), args.Error(2)
}

func (m *mockSolutionRepository) UpsertByProductRef(ctx context.Context, productRef, name, slug, description string) (*domain.Solution, bool, error) {
	args := m.Called(ctx, productRef, name, slug, description)
	if args.Get(0) == nil {
		return nil, args.Bool(1), args.Error(2)
	}
	return args.Get(0).(*domain.Solution), args.Bool(1), args.Error(2)
}

func (m *mockSolutionRepository) SetPrimaryPrice(ctx context.Context, productRef, priceRef string) error {
	args := m.Called(ctx, productRef, priceRef)
	return args.Error(0)
}

func (m *mockSolutionRepository) ClearPrimaryPrice(ctx context.Context, priceRef string) error {
	args := m.Called(ctx, priceRef)
	return args.Error(0)
}

type mockBookingRepository struct {
	mock.Mock
}

func (m *mockBookingRepository) Create(ctx context.Context, booking *domain.Booking) (*domain.Booking, bool, error) {
	args := m.Called(ctx, booking)
	if args.Get(0) == nil {
		return nil, args.Bool(1), args.Error(2)
	}
	return args.Get(0).(*domain.Booking), args.Bool(1), args.Error(2)
}

func (m *mockBookingRepository) GetByID(ctx context.Context, id string) (*domain.Booking, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Booking), args.Error(1)
}

func (m *mockBookingRepository) UpdateStatus(ctx context.Context, id, status string) (*domain.Booking, error) {
	args := m.Called(ctx, id, status)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Booking), args.Error(1)
}

func (m *mockBookingRepository) MarkPaymentCompleted(ctx context.Context, sessionRef string) (*domain.Booking, bool, error) {
	args := m.Called(ctx, sessionRef)
	if args.Get(0) == nil {
		return nil, args.Bool(1), args.Error(2)
	}
	return args.Get(0).(*domain.Booking), args.Bool(1), args.Error(2)
}

func (m *mockBookingRepository) GetBySessionRef(ctx context.Context, sessionRef string) (*domain.Booking, error) {
	args := m.Called(ctx, sessionRef)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Booking), args.Error(1)
}

func (m *mockBookingRepository) Delete(ctx context.Context, id string) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

type mockDispatcher struct {
	mock.Mock
}

func (m *mockDispatcher) Send(ctx context.Context, to []string, template string, params map[string]string) error {
	args := m.Called(ctx, to, template, params)
	return args.Error(0)
}

// --- Test Helpers ---

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
}

func testEventProducer() *event.Producer {
	logger := testLogger()
	kafkaCfg := pkgkafka.DefaultProducerConfig([]string{"localhost:19092"})
	return event.NewProducer(pkgkafka.NewProducer(kafkaCfg, logger), "solutionhub.events", logger)
}

type webhookTestDeps struct {
	billing   *mockBillingRepository
	solutions *mockSolutionRepository
	bookings  *mockBookingRepository
	notify    *mockDispatcher
}

func newWebhookHandler(t *testing.T) (*WebhookHandler, webhookTestDeps) {
	t.Helper()
	deps := webhookTestDeps{
		billing:   new(mockBillingRepository),
		solutions: new(mockSolutionRepository),
		bookings:  new(mockBookingRepository),
		notify:    new(mockDispatcher),
	}
	sync := service.NewBillingSyncService(
		deps.billing,
		deps.solutions,
		deps.bookings,
		deps.notify,
		testEventProducer(),
		testLogger(),
	)
	dedup := pkgkafka.NewMemoryIdempotencyStore(time.Hour)
	return NewWebhookHandler(sync, dedup, testWebhookSecret, testLogger()), deps
}

func sign(body []byte) string {
	mac := hmac.New(sha256.New, []byte(testWebhookSecret))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

func postWebhook(handler *WebhookHandler, body []byte, signature string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/webhooks/billing", bytes.NewReader(body))
	if signature != "" {
		req.Header.Set(SignatureHeader, signature)
	}
	rec := httptest.NewRecorder()
	handler.HandleBillingWebhook(rec, req)
	return rec
}

// --- Tests ---

func TestWebhook_RejectsMissingSignature(t *testing.T) {
	handler, deps := newWebhookHandler(t)

	body := []byte(`{"id":"evt_1","type":"product.created","data":{"object":{"id":"prod_1","name":"X"}}}`)
	rec := postWebhook(handler, body, "")

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	deps.billing.AssertNotCalled(t, "UpsertProduct")
}

func TestWebhook_RejectsBadSignature(t *testing.T) {
	handler, deps := newWebhookHandler(t)

	body := []byte(`{"id":"evt_1","type":"product.created","data":{"object":{"id":"prod_1","name":"X"}}}`)
	rec := postWebhook(handler, body, "deadbeef")

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	deps.billing.AssertNotCalled(t, "UpsertProduct")
}

func TestWebhook_ProcessesProductCreated(t *testing.T) {
	handler, deps := newWebhookHandler(t)

	deps.billing.On("UpsertProduct", mock.Anything, mock.Anything).Return(true, nil)
	deps.solutions.On("UpsertByProductRef", mock.Anything, "prod_1", "Drift Suite", "drift-suite", "").
		Return(&domain.Solution{ID: "solution-001"}, true, nil)

	body := []byte(`{"id":"evt_1","type":"product.created","data":{"object":{"id":"prod_1","name":"Drift Suite","livemode":true}}}`)
	rec := postWebhook(handler, body, sign(body))

	assert.Equal(t, http.StatusOK, rec.Code)
	deps.solutions.AssertExpectations(t)
}

func TestWebhook_DuplicateDeliveryHandledOnce(t *testing.T) {
	handler, deps := newWebhookHandler(t)

	deps.billing.On("UpsertProduct", mock.Anything, mock.Anything).Return(true, nil).Once()
	deps.solutions.On("UpsertByProductRef", mock.Anything, "prod_1", "Drift Suite", "drift-suite", "").
		Return(&domain.Solution{ID: "solution-001"}, true, nil).Once()

	body := []byte(`{"id":"evt_dup","type":"product.created","data":{"object":{"id":"prod_1","name":"Drift Suite","livemode":true}}}`)

	first := postWebhook(handler, body, sign(body))
	second := postWebhook(handler, body, sign(body))

	assert.Equal(t, http.StatusOK, first.Code)
	assert.Equal(t, http.StatusOK, second.Code)
	deps.billing.AssertExpectations(t)
	deps.solutions.AssertExpectations(t)
}

func TestWebhook_UnknownEventTypeAcked(t *testing.T) {
	handler, _ := newWebhookHandler(t)

	body := []byte(`{"id":"evt_2","type":"invoice.finalized","data":{"object":{"id":"in_1"}}}`)
	rec := postWebhook(handler, body, sign(body))

	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestWebhook_MissingEnvelopeFields(t *testing.T) {
	handler, _ := newWebhookHandler(t)

	body := []byte(`{"type":"product.created","data":{"object":{}}}`)
	rec := postWebhook(handler, body, sign(body))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestWebhook_FailedEventIsRetryable(t *testing.T) {
	handler, deps := newWebhookHandler(t)

	// First delivery fails downstream, second succeeds. The event id must
	// not be recorded on failure or the retry would be swallowed.
	deps.billing.On("UpsertProduct", mock.Anything, mock.Anything).Return(false, assert.AnError).Once()
	deps.billing.On("UpsertProduct", mock.Anything, mock.Anything).Return(true, nil).Once()
	deps.solutions.On("UpsertByProductRef", mock.Anything, "prod_1", "Drift Suite", "drift-suite", "").
		Return(&domain.Solution{ID: "solution-001"}, true, nil).Once()

	body := []byte(`{"id":"evt_retry","type":"product.created","data":{"object":{"id":"prod_1","name":"Drift Suite","livemode":true}}}`)

	first := postWebhook(handler, body, sign(body))
	second := postWebhook(handler, body, sign(body))

	require.Equal(t, http.StatusInternalServerError, first.Code)
	assert.Equal(t, http.StatusOK, second.Code)
	deps.solutions.AssertExpectations(t)
}

func TestWebhook_PaymentCompletedNotifies(t *testing.T) {
	handler, deps := newWebhookHandler(t)

	solutionID := "solution-001"
	booking := &domain.Booking{ID: "booking-001", SolutionID: &solutionID, IsPaymentCompleted: true}
	deps.bookings.On("MarkPaymentCompleted", mock.Anything, "cs_1").Return(booking, true, nil)
	deps.solutions.On("GetByID", mock.Anything, "solution-001").
		Return(&domain.Solution{ID: "solution-001", ContactEmail: "ops@vendor.test"}, nil)
	deps.notify.On("Send", mock.Anything, []string{"buyer@example.test", "ops@vendor.test"}, "booking_confirmed", mock.Anything).
		Return(nil)

	body := []byte(`{"id":"evt_3","type":"checkout.session.completed","data":{"object":{"id":"cs_1","customer_email":"buyer@example.test"}}}`)
	rec := postWebhook(handler, body, sign(body))

	assert.Equal(t, http.StatusOK, rec.Code)
	deps.notify.AssertExpectations(t)
}
