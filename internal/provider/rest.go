package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/nexlane/solutionhub/pkg/httpclient"
)

// HTTPDoer is the interface for executing HTTP requests.
// Both httpclient.Client and httpclient.CircuitBreakerClient satisfy this.
type HTTPDoer interface {
	Do(ctx context.Context, req *http.Request) (*http.Response, error)
}

// RESTBillingProvider talks to the billing provider's HTTP API.
type RESTBillingProvider struct {
	client  HTTPDoer
	baseURL string
	apiKey  string
	logger  *slog.Logger
}

// NewRESTBillingProvider creates a billing provider client.
func NewRESTBillingProvider(client HTTPDoer, baseURL, apiKey string, logger *slog.Logger) *RESTBillingProvider {
	return &RESTBillingProvider{
		client:  client,
		baseURL: baseURL,
		apiKey:  apiKey,
		logger:  logger,
	}
}

// CreateCheckoutSession opens a checkout session with the billing provider
// and returns its reference and redirect URL.
func (p *RESTBillingProvider) CreateCheckoutSession(ctx context.Context, params CheckoutSessionParams) (*CheckoutSession, error) {
	body, err := json.Marshal(params)
	if err != nil {
		return nil, fmt.Errorf("marshal checkout session request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/v1/checkout/sessions", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create checkout session request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+p.apiKey)

	resp, err := p.client.Do(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("call billing provider: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return nil, httpclient.ParseResponseError(resp, "billing")
	}

	var session CheckoutSession
	if err := json.NewDecoder(resp.Body).Decode(&session); err != nil {
		return nil, fmt.Errorf("decode checkout session response: %w", err)
	}

	p.logger.InfoContext(ctx, "checkout session created",
		slog.String("session_ref", session.Ref),
	)

	return &session, nil
}
