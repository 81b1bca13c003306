package handler

import (
	"encoding/json"
	"io"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/skagit-alpine-club/registration-server/internal/model"
	"github.com/skagit-alpine-club/registration-server/internal/payments"
	"github.com/skagit-alpine-club/registration-server/internal/service"
)

// WebhookHandler receives payment-provider notifications.  Signature
// verification happens before anything is trusted; processing failures
// return 500 so the provider redelivers, while events that are not ours
// are acknowledged and dropped.
type WebhookHandler struct {
	Verifier    payments.WebhookVerifier
	Fulfillment *service.Fulfillment
	Waitlist    *service.Waitlist
}

func NewWebhookHandler(v payments.WebhookVerifier, f *service.Fulfillment, w *service.Waitlist) *WebhookHandler {
	return &WebhookHandler{Verifier: v, Fulfillment: f, Waitlist: w}
}

type checkoutSessionPayload struct {
	ID            string            `json:"id"`
	PaymentIntent string            `json:"payment_intent"`
	Metadata      map[string]string `json:"metadata"`
}

type invoicePayload struct {
	ID string `json:"id"`
}

// Receive verifies and dispatches one webhook delivery.
func (h *WebhookHandler) Receive(c echo.Context) error {
	payload, err := io.ReadAll(c.Request().Body)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "unreadable body"})
	}
	event, err := h.Verifier.VerifyEvent(payload, c.Request().Header.Get("Stripe-Signature"))
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid signature"})
	}

	ctx := c.Request().Context()
	switch event.Type {
	case "checkout.session.completed":
		var session checkoutSessionPayload
		if err := json.Unmarshal(event.Data, &session); err != nil {
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "malformed event"})
		}
		userID, uerr := strconv.ParseUint(session.Metadata["user_id"], 10, 64)
		var selections []model.CourseSelection
		serr := json.Unmarshal([]byte(session.Metadata["selections"]), &selections)
		if uerr != nil || serr != nil || len(selections) == 0 {
			// A session without our metadata was not started by this
			// service; acknowledge so the provider stops retrying.
			c.Logger().Warnf("webhook: checkout session %s without usable metadata", session.ID)
			return c.JSON(http.StatusOK, echo.Map{"received": true})
		}
		ref := model.PaymentRef{CheckoutSessionID: session.ID, PaymentIntentID: session.PaymentIntent}
		if _, err := h.Fulfillment.FulfillOrder(ctx, userID, ref, selections); err != nil {
			c.Logger().Errorf("webhook: fulfill session %s: %v", session.ID, err)
			return c.JSON(http.StatusInternalServerError, echo.Map{"error": "fulfillment failed"})
		}

	case "invoice.paid":
		var invoice invoicePayload
		if err := json.Unmarshal(event.Data, &invoice); err != nil {
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "malformed event"})
		}
		if err := h.Waitlist.InvoicePaid(ctx, invoice.ID); err != nil {
			c.Logger().Errorf("webhook: invoice %s paid: %v", invoice.ID, err)
			return c.JSON(http.StatusInternalServerError, echo.Map{"error": "invoice processing failed"})
		}
	}

	return c.JSON(http.StatusOK, echo.Map{"received": true})
}
