package model

import "time"

// WaitListEntry is a user's position in the FIFO queue for a full
// course.  The (course, user) pair is unique and a row may only be
// created while the course is full.  Place is derived, not stored: the
// Nth entry by insertion order has place N.
type WaitListEntry struct {
	ID        uint64    `json:"id"`
	CourseID  uint64    `json:"course_id"`
	UserID    uint64    `json:"user_id"`
	Email     string    `json:"email,omitempty"`
	DateAdded time.Time `json:"date_added"`
	Place     uint32    `json:"place,omitempty"`
}

// WaitListInvoice records a time-limited payment request offering a
// vacated seat to the next waitlisted user.  The email is captured
// independently of the user account so the invoice remains auditable if
// the account is later deleted.  Paid and Voided are terminal and
// mutually exclusive under correct operation: whichever transition
// commits first wins and the other must no-op.  SeatReleased records
// that a voided offer's seat has actually moved on, re-offered or
// returned to open capacity; until it is set the hand-off is still
// owed and the sweep retries it.
type WaitListInvoice struct {
	ID           uint64    `json:"id"`
	UserID       *uint64   `json:"user_id,omitempty"`
	CourseID     uint64    `json:"course_id"`
	Email        string    `json:"email"`
	DateAdded    time.Time `json:"date_added"`
	Expires      time.Time `json:"expires"`
	InvoiceID    string    `json:"invoice_id"`
	Paid         bool      `json:"paid"`
	Voided       bool      `json:"voided"`
	SeatReleased bool      `json:"seat_released"`
}

// Pending reports whether the invoice is still awaiting payment.
func (i *WaitListInvoice) Pending() bool { return !i.Paid && !i.Voided }

// Expired reports whether the invoice is pending and past its deadline.
func (i *WaitListInvoice) Expired(now time.Time) bool {
	return i.Pending() && !now.Before(i.Expires)
}
