// Package queue defines the message payloads exchanged over the broker
// plus the publisher and the background consumer.
package queue

// EnrollmentConfirmedEvent is published when a paid order has been
// fulfilled.  It carries enough for downstream consumers to log or
// notify without querying the primary database.
type EnrollmentConfirmedEvent struct {
	PaymentRecordID uint64   `json:"payment_record_id"`
	UserID          uint64   `json:"user_id"`
	Email           string   `json:"email"`
	CourseIDs       []uint64 `json:"course_ids"`
	CourseNames     []string `json:"course_names"`
	ConfirmedAt     string   `json:"confirmed_at"`
}

// WaitListInvoiceIssuedEvent is published when a vacated seat is
// offered to the head of a wait list via an invoice.
type WaitListInvoiceIssuedEvent struct {
	CourseID   uint64 `json:"course_id"`
	CourseName string `json:"course_name"`
	UserID     uint64 `json:"user_id"`
	Email      string `json:"email"`
	InvoiceID  string `json:"invoice_id"`
	Expires    string `json:"expires"`
	IssuedAt   string `json:"issued_at"`
}
