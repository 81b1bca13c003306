package payments

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/client"
	"github.com/stripe/stripe-go/v76/webhook"
)

// StripeClient implements Processor and WebhookVerifier against the
// Stripe API.  Every mutating call carries a fresh idempotency key so a
// retried request cannot double-charge.
type StripeClient struct {
	api           *client.API
	webhookSecret string
	successURL    string
	cancelURL     string
}

// NewStripeClient builds a StripeClient from the API key, webhook
// signing secret and the browser redirect URLs for hosted checkout.
func NewStripeClient(apiKey, webhookSecret, successURL, cancelURL string) *StripeClient {
	api := &client.API{}
	api.Init(apiKey, nil)
	return &StripeClient{
		api:           api,
		webhookSecret: webhookSecret,
		successURL:    successURL,
		cancelURL:     cancelURL,
	}
}

// CreateCustomer registers the email with Stripe.
func (s *StripeClient) CreateCustomer(ctx context.Context, email string) (string, error) {
	params := &stripe.CustomerParams{Email: stripe.String(email)}
	params.Context = ctx
	params.SetIdempotencyKey(uuid.NewString())
	cust, err := s.api.Customers.New(params)
	if err != nil {
		return "", err
	}
	return cust.ID, nil
}

// CreateCheckoutSession starts a hosted payment-mode checkout with one
// line item per course, the optional coupon, and the caller's metadata.
func (s *StripeClient) CreateCheckoutSession(ctx context.Context, p CheckoutParams) (CheckoutSession, error) {
	params := &stripe.CheckoutSessionParams{
		Mode:       stripe.String(string(stripe.CheckoutSessionModePayment)),
		Customer:   stripe.String(p.CustomerID),
		SuccessURL: stripe.String(s.successURL),
		CancelURL:  stripe.String(s.cancelURL),
	}
	params.Context = ctx
	params.SetIdempotencyKey(uuid.NewString())
	for _, line := range p.Lines {
		params.LineItems = append(params.LineItems, &stripe.CheckoutSessionLineItemParams{
			Quantity: stripe.Int64(1),
			PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
				Currency:   stripe.String(string(stripe.CurrencyUSD)),
				UnitAmount: stripe.Int64(int64(line.AmountCents)),
				ProductData: &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
					Name: stripe.String(line.Name),
				},
			},
		})
	}
	if p.CouponID != "" {
		params.Discounts = []*stripe.CheckoutSessionDiscountParams{
			{Coupon: stripe.String(p.CouponID)},
		}
	}
	for k, v := range p.Metadata {
		params.AddMetadata(k, v)
	}
	sess, err := s.api.CheckoutSessions.New(params)
	if err != nil {
		return CheckoutSession{}, err
	}
	return CheckoutSession{ID: sess.ID, URL: sess.URL}, nil
}

// SendInvoice creates a one-line invoice with collection method
// send_invoice and emails it to the customer.  Stripe wants the pending
// invoice item first; it is folded into the invoice created right
// after.
func (s *StripeClient) SendInvoice(ctx context.Context, customerID string, amountCents uint32, description string, dueAt time.Time) (string, error) {
	itemParams := &stripe.InvoiceItemParams{
		Customer:    stripe.String(customerID),
		Amount:      stripe.Int64(int64(amountCents)),
		Currency:    stripe.String(string(stripe.CurrencyUSD)),
		Description: stripe.String(description),
	}
	itemParams.Context = ctx
	itemParams.SetIdempotencyKey(uuid.NewString())
	if _, err := s.api.InvoiceItems.New(itemParams); err != nil {
		return "", err
	}

	invParams := &stripe.InvoiceParams{
		Customer:         stripe.String(customerID),
		CollectionMethod: stripe.String(string(stripe.InvoiceCollectionMethodSendInvoice)),
		DueDate:          stripe.Int64(dueAt.Unix()),
	}
	invParams.Context = ctx
	invParams.SetIdempotencyKey(uuid.NewString())
	inv, err := s.api.Invoices.New(invParams)
	if err != nil {
		return "", err
	}

	sendParams := &stripe.InvoiceSendInvoiceParams{}
	sendParams.Context = ctx
	if _, err := s.api.Invoices.SendInvoice(inv.ID, sendParams); err != nil {
		return "", err
	}
	return inv.ID, nil
}

// VoidInvoice cancels an unpaid invoice.
func (s *StripeClient) VoidInvoice(ctx context.Context, invoiceID string) error {
	params := &stripe.InvoiceVoidInvoiceParams{}
	params.Context = ctx
	_, err := s.api.Invoices.VoidInvoice(invoiceID, params)
	return err
}

// Refund returns amountCents of the charge behind a payment intent.
func (s *StripeClient) Refund(ctx context.Context, paymentIntentID string, amountCents uint32) (string, error) {
	params := &stripe.RefundParams{
		PaymentIntent: stripe.String(paymentIntentID),
		Amount:        stripe.Int64(int64(amountCents)),
	}
	params.Context = ctx
	params.SetIdempotencyKey(uuid.NewString())
	ref, err := s.api.Refunds.New(params)
	if err != nil {
		return "", err
	}
	return ref.ID, nil
}

// VerifyEvent checks the Stripe-Signature header against the endpoint
// secret and returns the decoded event.
func (s *StripeClient) VerifyEvent(payload []byte, signatureHeader string) (WebhookEvent, error) {
	event, err := webhook.ConstructEvent(payload, signatureHeader, s.webhookSecret)
	if err != nil {
		return WebhookEvent{}, err
	}
	return WebhookEvent{Type: string(event.Type), Data: event.Data.Raw}, nil
}
