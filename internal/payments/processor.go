// Package payments abstracts the payment provider.  Services depend on
// the Processor and WebhookVerifier interfaces; the Stripe client is
// the only production implementation, and tests substitute fakes.
package payments

import (
	"context"
	"time"
)

// CheckoutLine is one priced line of a checkout session.
type CheckoutLine struct {
	Name        string
	AmountCents uint32
}

// CheckoutParams describes a hosted checkout session for a cart.
// Metadata rides along to the provider and comes back verbatim on the
// completion webhook, which is how fulfillment learns what was bought.
type CheckoutParams struct {
	CustomerID string
	Lines      []CheckoutLine
	CouponID   string
	Metadata   map[string]string
}

// CheckoutSession is the provider's handle on a started checkout.
type CheckoutSession struct {
	ID  string
	URL string
}

// Processor is the outbound payment surface.
type Processor interface {
	// CreateCustomer registers an email with the provider and returns
	// the customer id.
	CreateCustomer(ctx context.Context, email string) (string, error)

	// CreateCheckoutSession starts a hosted checkout and returns the
	// session for the client to redirect to.
	CreateCheckoutSession(ctx context.Context, p CheckoutParams) (CheckoutSession, error)

	// SendInvoice creates and emails an invoice due at the given time,
	// returning the provider's invoice id.  Used to offer vacated seats
	// to waitlisted users.
	SendInvoice(ctx context.Context, customerID string, amountCents uint32, description string, dueAt time.Time) (string, error)

	// VoidInvoice cancels an unpaid invoice.
	VoidInvoice(ctx context.Context, invoiceID string) error

	// Refund returns part of a charge, keyed by its payment intent, and
	// returns the provider's refund id.
	Refund(ctx context.Context, paymentIntentID string, amountCents uint32) (string, error)
}

// WebhookEvent is a verified provider notification.  Data holds the
// provider's raw object payload for the handler to decode.
type WebhookEvent struct {
	Type string
	Data []byte
}

// WebhookVerifier authenticates inbound webhook deliveries.
type WebhookVerifier interface {
	// VerifyEvent checks the payload signature and returns the decoded
	// event, or an error for forged or malformed deliveries.
	VerifyEvent(payload []byte, signatureHeader string) (WebhookEvent, error)
}
