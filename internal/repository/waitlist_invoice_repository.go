package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/skagit-alpine-club/registration-server/internal/model"
)

// WaitListInvoiceRepo provides access to wait_list_invoices, the record
// of seats offered to wait-listed users via a payment invoice.  An
// invoice is pending until paid, voided, or expired; the paid and
// voided flags are terminal and mutually exclusive, which the
// conditional UPDATEs here enforce without an extra read.
type WaitListInvoiceRepo struct {
	db *sql.DB
}

// NewWaitListInvoiceRepo returns a WaitListInvoiceRepo bound to the
// given database.
func NewWaitListInvoiceRepo(db *sql.DB) *WaitListInvoiceRepo { return &WaitListInvoiceRepo{db: db} }

const waitListInvoiceColumns = `id, user_id, course_id, email, date_added, expires, invoice_id, paid, voided, seat_released`

func scanWaitListInvoice(row interface{ Scan(...any) error }) (model.WaitListInvoice, error) {
	var inv model.WaitListInvoice
	var userID sql.NullInt64
	err := row.Scan(&inv.ID, &userID, &inv.CourseID, &inv.Email, &inv.DateAdded,
		&inv.Expires, &inv.InvoiceID, &inv.Paid, &inv.Voided, &inv.SeatReleased)
	if err != nil {
		return inv, err
	}
	if userID.Valid {
		id := uint64(userID.Int64)
		inv.UserID = &id
	}
	return inv, nil
}

// Create records a freshly sent invoice.
func (r *WaitListInvoiceRepo) Create(ctx context.Context, inv *model.WaitListInvoice) error {
	res, err := r.db.ExecContext(ctx,
		`INSERT INTO wait_list_invoices (user_id, course_id, email, date_added, expires, invoice_id, paid, voided, seat_released)
		 VALUES (?, ?, ?, ?, ?, ?, 0, 0, 0)`,
		inv.UserID, inv.CourseID, inv.Email, inv.DateAdded.UTC(), inv.Expires.UTC(), inv.InvoiceID)
	if err != nil {
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	inv.ID = uint64(id)
	return nil
}

// GetByInvoiceID resolves a payment-provider invoice id to its record.
func (r *WaitListInvoiceRepo) GetByInvoiceID(ctx context.Context, invoiceID string) (*model.WaitListInvoice, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+waitListInvoiceColumns+` FROM wait_list_invoices WHERE invoice_id = ?`, invoiceID)
	inv, err := scanWaitListInvoice(row)
	if err != nil {
		return nil, err
	}
	return &inv, nil
}

// ListExpired returns the pending invoices whose payment deadline has
// passed, oldest first.  The expiry sweep voids each in turn.
func (r *WaitListInvoiceRepo) ListExpired(ctx context.Context, now time.Time) ([]model.WaitListInvoice, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+waitListInvoiceColumns+` FROM wait_list_invoices
		 WHERE paid = 0 AND voided = 0 AND expires < ?
		 ORDER BY expires`, now.UTC())
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []model.WaitListInvoice
	for rows.Next() {
		inv, err := scanWaitListInvoice(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, inv)
	}
	return out, rows.Err()
}

// MarkVoided flips a still-pending invoice to voided.  Returns false
// when the invoice was already paid or voided, which the sweep treats
// as losing the race and leaves the record alone.
func (r *WaitListInvoiceRepo) MarkVoided(ctx context.Context, id uint64) (bool, error) {
	res, err := r.db.ExecContext(ctx,
		`UPDATE wait_list_invoices SET voided = 1 WHERE id = ? AND paid = 0 AND voided = 0`, id)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

// ListVoidedUnreleased returns the voided invoices whose seat has not
// been handed off yet, oldest first.  Normally the sweep that voids an
// offer also moves the seat in the same tick; anything showing up here
// later is a hand-off a previous sweep started and failed to finish.
func (r *WaitListInvoiceRepo) ListVoidedUnreleased(ctx context.Context) ([]model.WaitListInvoice, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+waitListInvoiceColumns+` FROM wait_list_invoices
		 WHERE voided = 1 AND seat_released = 0
		 ORDER BY expires`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []model.WaitListInvoice
	for rows.Next() {
		inv, err := scanWaitListInvoice(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, inv)
	}
	return out, rows.Err()
}

// MarkSeatReleased records that a voided offer's seat has moved on.
// Returns false when the invoice is not voided or the seat already
// moved.
func (r *WaitListInvoiceRepo) MarkSeatReleased(ctx context.Context, id uint64) (bool, error) {
	res, err := r.db.ExecContext(ctx,
		`UPDATE wait_list_invoices SET seat_released = 1 WHERE id = ? AND voided = 1 AND seat_released = 0`, id)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

// MarkPaidByInvoiceID flips a still-pending invoice to paid, keyed by
// the payment-provider id carried in the webhook.  Returns false when
// no pending invoice matches, so a replayed webhook is a no-op.
func (r *WaitListInvoiceRepo) MarkPaidByInvoiceID(ctx context.Context, invoiceID string) (bool, error) {
	res, err := r.db.ExecContext(ctx,
		`UPDATE wait_list_invoices SET paid = 1 WHERE invoice_id = ? AND paid = 0 AND voided = 0`, invoiceID)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

// PendingCountForCourse returns how many unexpired invoices are out for
// a course.  These represent seats being held for wait-listed users.
func (r *WaitListInvoiceRepo) PendingCountForCourse(ctx context.Context, courseID uint64, now time.Time) (uint32, error) {
	var n uint32
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM wait_list_invoices
		 WHERE course_id = ? AND paid = 0 AND voided = 0 AND expires >= ?`,
		courseID, now.UTC()).Scan(&n)
	return n, err
}
