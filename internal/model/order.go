package model

import "time"

// PaymentRef carries the opaque payment-system references attached to a
// fulfillment.  At least one field is populated depending on the path:
// checkout sessions carry a session and payment intent id, waitlist
// invoices carry an invoice id.  Fulfillment is idempotent per
// reference: a second delivery of the same reference is a no-op.
type PaymentRef struct {
	CheckoutSessionID string `json:"checkout_session_id,omitempty"`
	PaymentIntentID   string `json:"payment_intent_id,omitempty"`
	InvoiceID         string `json:"invoice_id,omitempty"`
}

// Empty reports whether no reference field is populated.
func (r PaymentRef) Empty() bool {
	return r.CheckoutSessionID == "" && r.PaymentIntentID == "" && r.InvoiceID == ""
}

// CourseSelection is one purchased line of an order: the course being
// bought plus the payment-system product/price/coupon identifiers that
// were attached to the line item.
type CourseSelection struct {
	CourseID  uint64 `json:"course_id"`
	ProductID string `json:"product_id,omitempty"`
	PriceID   string `json:"price_id,omitempty"`
	CouponID  string `json:"coupon_id,omitempty"`
}

// PaymentRecord is the immutable header of a fulfilled order.  Exactly
// one record is written per fulfillment.
type PaymentRecord struct {
	ID                uint64    `json:"id"`
	UserID            uint64    `json:"user_id"`
	CheckoutSessionID string    `json:"checkout_session_id,omitempty"`
	PaymentIntentID   string    `json:"payment_intent_id,omitempty"`
	InvoiceID         string    `json:"invoice_id,omitempty"`
	CreatedAt         time.Time `json:"created_at"`
}

// CourseBought is one ledger line of a payment record.  The refund
// fields are the only mutation the ledger ever sees.  CourseID is
// nullable because the ledger outlives deleted courses.
type CourseBought struct {
	ID              uint64  `json:"id"`
	PaymentRecordID uint64  `json:"payment_record_id"`
	CourseID        *uint64 `json:"course_id,omitempty"`
	ProductID       string  `json:"product_id,omitempty"`
	PriceID         string  `json:"price_id,omitempty"`
	CouponID        string  `json:"coupon_id,omitempty"`
	Refunded        bool    `json:"refunded"`
	RefundID        string  `json:"refund_id,omitempty"`
}
