package provider

import "context"

// CheckoutSessionParams describes a checkout session to create with the
// billing provider.
type CheckoutSessionParams struct {
	PriceRef        string `json:"price_ref"`
	Quantity        int    `json:"quantity"`
	CustomerEmail   string `json:"customer_email,omitempty"`
	ClientReference string `json:"client_reference,omitempty"`
	SuccessURL      string `json:"success_url"`
	CancelURL       string `json:"cancel_url"`
}

// CheckoutSession is the provider's session handle. Ref is the external
// session reference bookings are keyed by; URL is where the customer
// completes payment.
type CheckoutSession struct {
	Ref string `json:"ref"`
	URL string `json:"url"`
}

// BillingProvider is the narrow interface to the external billing ledger.
// Money movement stays with the provider; this service only creates
// checkout sessions and mirrors provider state via webhooks.
type BillingProvider interface {
	CreateCheckoutSession(ctx context.Context, params CheckoutSessionParams) (*CheckoutSession, error)
}
