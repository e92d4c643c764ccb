package notifier

import "context"

// Template identifiers for outbound notifications. The mail service owns
// the actual content; this service only names the template and parameters.
const (
	TemplateBookingConfirmed   = "booking_confirmed"
	TemplateBookingReceived    = "booking_received"
	TemplatePaymentRetryPrompt = "payment_retry_prompt"
)

// Dispatcher sends notifications with a fire-and-forget contract: delivery
// failures are logged by the implementation and retried by the mail
// service's own policy, never surfaced to the caller's transaction.
type Dispatcher interface {
	Send(ctx context.Context, to []string, template string, params map[string]string) error
}
