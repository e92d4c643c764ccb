package http

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"

	"github.com/nexlane/solutionhub/internal/service"
	"github.com/nexlane/solutionhub/pkg/httputil"
)

// SignatureHeader carries the hex HMAC-SHA256 of the raw request body.
const SignatureHeader = "X-Billing-Signature"

// maxWebhookBody caps webhook payloads; provider events are small.
const maxWebhookBody = 256 << 10

// DedupStore remembers processed webhook event ids so at-least-once
// deliveries collapse to one application. A store failure fails open:
// the handlers are idempotent, so processing twice is safe.
type DedupStore interface {
	Contains(ctx context.Context, eventID string) (bool, error)
	Add(ctx context.Context, eventID string) error
}

// webhookEnvelope is the provider's event envelope.
type webhookEnvelope struct {
	ID   string `json:"id"`
	Type string `json:"type"`
	Data struct {
		Object json.RawMessage `json:"object"`
	} `json:"data"`
}

// WebhookHandler handles billing provider webhook deliveries.
type WebhookHandler struct {
	sync   *service.BillingSyncService
	dedup  DedupStore
	secret string
	logger *slog.Logger
}

// NewWebhookHandler creates a new billing webhook handler.
func NewWebhookHandler(sync *service.BillingSyncService, dedup DedupStore, secret string, logger *slog.Logger) *WebhookHandler {
	return &WebhookHandler{
		sync:   sync,
		dedup:  dedup,
		secret: secret,
		logger: logger,
	}
}

// HandleBillingWebhook handles POST /webhooks/billing. The response is 200
// whenever the event was handled or deliberately dropped; the provider only
// retries non-2xx deliveries.
func (h *WebhookHandler) HandleBillingWebhook(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBody))
	if err != nil {
		httputil.WriteJSON(w, http.StatusBadRequest, httputil.Response{
			Error: &httputil.ErrorResponse{Code: "INVALID_INPUT", Message: "could not read request body"},
		})
		return
	}

	if !h.verifySignature(body, r.Header.Get(SignatureHeader)) {
		h.logger.WarnContext(r.Context(), "webhook signature verification failed")
		httputil.WriteJSON(w, http.StatusBadRequest, httputil.Response{
			Error: &httputil.ErrorResponse{Code: "INVALID_SIGNATURE", Message: "signature verification failed"},
		})
		return
	}

	var envelope webhookEnvelope
	if err := json.Unmarshal(body, &envelope); err != nil {
		httputil.WriteJSON(w, http.StatusBadRequest, httputil.Response{
			Error: &httputil.ErrorResponse{Code: "INVALID_INPUT", Message: "invalid event payload"},
		})
		return
	}
	if envelope.ID == "" || envelope.Type == "" {
		httputil.WriteJSON(w, http.StatusBadRequest, httputil.Response{
			Error: &httputil.ErrorResponse{Code: "INVALID_INPUT", Message: "event id and type are required"},
		})
		return
	}

	seen, err := h.dedup.Contains(r.Context(), envelope.ID)
	if err != nil {
		h.logger.WarnContext(r.Context(), "webhook dedup lookup failed, processing anyway",
			slog.String("event_id", envelope.ID),
			slog.String("error", err.Error()),
		)
	}
	if seen {
		h.logger.DebugContext(r.Context(), "duplicate webhook delivery acknowledged",
			slog.String("event_id", envelope.ID),
			slog.String("event_type", envelope.Type),
		)
		httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: map[string]string{"status": "duplicate"}})
		return
	}

	if err := h.sync.HandleEvent(r.Context(), envelope.Type, envelope.Data.Object); err != nil {
		h.logger.ErrorContext(r.Context(), "webhook event handling failed",
			slog.String("event_id", envelope.ID),
			slog.String("event_type", envelope.Type),
			slog.String("error", err.Error()),
		)
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	// Mark processed only after success so a failed attempt is retried.
	if err := h.dedup.Add(r.Context(), envelope.ID); err != nil {
		h.logger.WarnContext(r.Context(), "failed to record webhook event id",
			slog.String("event_id", envelope.ID),
			slog.String("error", err.Error()),
		)
	}

	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: map[string]string{"status": "processed"}})
}

func (h *WebhookHandler) verifySignature(body []byte, signature string) bool {
	if signature == "" {
		return false
	}
	mac := hmac.New(sha256.New, []byte(h.secret))
	mac.Write(body)
	expected := hex.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(expected), []byte(signature))
}
