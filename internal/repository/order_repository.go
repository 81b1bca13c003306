package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/skagit-alpine-club/registration-server/internal/model"
)

// OrderRepo owns the payment ledger: payment_records (one header per
// fulfillment) and courses_bought (one line per enrolled course).  The
// ledger is append-only except for the refund flags.  Fulfillment is
// idempotent per payment reference; uniqueness on the reference columns
// backstops the in-transaction check against concurrent deliveries of
// the same webhook.
type OrderRepo struct {
	db      *sql.DB
	courses *CourseRepo
	carts   *CartRepo
}

// NewOrderRepo returns an OrderRepo bound to the given database and
// collaborating repositories.
func NewOrderRepo(db *sql.DB, courses *CourseRepo, carts *CartRepo) *OrderRepo {
	return &OrderRepo{db: db, courses: courses, carts: carts}
}

func hasPaymentRefTx(ctx context.Context, tx *sql.Tx, ref model.PaymentRef) (bool, error) {
	var exists bool
	err := tx.QueryRowContext(ctx,
		`SELECT EXISTS(SELECT 1 FROM payment_records
		 WHERE (checkout_session_id <> '' AND checkout_session_id = ?)
		    OR (payment_intent_id <> '' AND payment_intent_id = ?)
		    OR (invoice_id <> '' AND invoice_id = ?))`,
		ref.CheckoutSessionID, ref.PaymentIntentID, ref.InvoiceID).Scan(&exists)
	return exists, err
}

// Fulfill converts a confirmed payment into enrollment.  In one
// transaction it: verifies the reference has not been fulfilled, empties
// the buyer's cart, writes the payment record, enrolls the user in every
// selected course (failing the whole order if any is full), and writes
// one ledger line per course.  A duplicate reference returns
// ErrDuplicatePayment with nothing changed.
func (r *OrderRepo) Fulfill(ctx context.Context, userID uint64, ref model.PaymentRef, selections []model.CourseSelection) (*model.PaymentRecord, error) {
	if ref.Empty() {
		return nil, fmt.Errorf("%w: fulfillment needs a payment reference", ErrConflict)
	}
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	dup, err := hasPaymentRefTx(ctx, tx, ref)
	if err != nil {
		return nil, err
	}
	if dup {
		return nil, ErrDuplicatePayment
	}

	if err := r.carts.ClearTx(ctx, tx, userID); err != nil {
		return nil, err
	}

	record := &model.PaymentRecord{
		UserID:            userID,
		CheckoutSessionID: ref.CheckoutSessionID,
		PaymentIntentID:   ref.PaymentIntentID,
		InvoiceID:         ref.InvoiceID,
		CreatedAt:         time.Now().UTC(),
	}
	res, err := tx.ExecContext(ctx,
		`INSERT INTO payment_records (user_id, checkout_session_id, payment_intent_id, invoice_id, created_at)
		 VALUES (?, ?, ?, ?, ?)`,
		record.UserID, record.CheckoutSessionID, record.PaymentIntentID, record.InvoiceID, record.CreatedAt)
	if err != nil {
		return nil, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, err
	}
	record.ID = uint64(id)

	for _, sel := range selections {
		if err := r.courses.AddParticipantTx(ctx, tx, sel.CourseID, userID); err != nil {
			return nil, err
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO courses_bought (payment_record_id, course_id, product_id, price_id, coupon_id, refunded)
			 VALUES (?, ?, ?, ?, ?, 0)`,
			record.ID, sel.CourseID, sel.ProductID, sel.PriceID, sel.CouponID); err != nil {
			return nil, err
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}
	committed = true
	return record, nil
}

// FulfillSeatOffer converts a paid seat-offer invoice into enrollment.
// The held seat's capacity restore, the payment record and the
// enrollment commit together, all behind the in-transaction reference
// check: a webhook delivery that failed partway leaves no trace and
// can simply run again, while a delivery that finds the reference
// already in the ledger gets ErrDuplicatePayment with nothing changed,
// capacity included.
func (r *OrderRepo) FulfillSeatOffer(ctx context.Context, userID uint64, ref model.PaymentRef, courseID uint64) (*model.PaymentRecord, error) {
	if ref.Empty() {
		return nil, fmt.Errorf("%w: fulfillment needs a payment reference", ErrConflict)
	}
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	dup, err := hasPaymentRefTx(ctx, tx, ref)
	if err != nil {
		return nil, err
	}
	if dup {
		return nil, ErrDuplicatePayment
	}

	if err := r.courses.AdjustCapacityTx(ctx, tx, courseID, +1); err != nil {
		return nil, err
	}

	record := &model.PaymentRecord{
		UserID:            userID,
		CheckoutSessionID: ref.CheckoutSessionID,
		PaymentIntentID:   ref.PaymentIntentID,
		InvoiceID:         ref.InvoiceID,
		CreatedAt:         time.Now().UTC(),
	}
	res, err := tx.ExecContext(ctx,
		`INSERT INTO payment_records (user_id, checkout_session_id, payment_intent_id, invoice_id, created_at)
		 VALUES (?, ?, ?, ?, ?)`,
		record.UserID, record.CheckoutSessionID, record.PaymentIntentID, record.InvoiceID, record.CreatedAt)
	if err != nil {
		return nil, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, err
	}
	record.ID = uint64(id)

	if err := r.courses.AddParticipantTx(ctx, tx, courseID, userID); err != nil {
		return nil, err
	}
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO courses_bought (payment_record_id, course_id, product_id, price_id, coupon_id, refunded)
		 VALUES (?, ?, '', '', '', 0)`,
		record.ID, courseID); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}
	committed = true
	return record, nil
}

const courseBoughtColumns = `id, payment_record_id, course_id, product_id, price_id, coupon_id, refunded, refund_id`

func scanCourseBought(row interface{ Scan(...any) error }) (model.CourseBought, error) {
	var cb model.CourseBought
	var courseID sql.NullInt64
	var refundID sql.NullString
	err := row.Scan(&cb.ID, &cb.PaymentRecordID, &courseID, &cb.ProductID,
		&cb.PriceID, &cb.CouponID, &cb.Refunded, &refundID)
	if err != nil {
		return cb, err
	}
	if courseID.Valid {
		id := uint64(courseID.Int64)
		cb.CourseID = &id
	}
	if refundID.Valid {
		cb.RefundID = refundID.String
	}
	return cb, nil
}

// PurchasesByUser returns the user's ledger lines, newest order first.
func (r *OrderRepo) PurchasesByUser(ctx context.Context, userID uint64) ([]model.CourseBought, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT cb.id, cb.payment_record_id, cb.course_id, cb.product_id, cb.price_id, cb.coupon_id, cb.refunded, cb.refund_id
		 FROM courses_bought cb
		 JOIN payment_records pr ON pr.id = cb.payment_record_id
		 WHERE pr.user_id = ?
		 ORDER BY pr.created_at DESC, cb.id`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []model.CourseBought
	for rows.Next() {
		cb, err := scanCourseBought(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, cb)
	}
	return out, rows.Err()
}

// PurchaseForUser returns one ledger line, verifying ownership.
// Returns ErrForbidden when the line belongs to another user.
func (r *OrderRepo) PurchaseForUser(ctx context.Context, purchaseID, userID uint64) (*model.CourseBought, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+courseBoughtColumns+` FROM courses_bought WHERE id = ?`, purchaseID)
	cb, err := scanCourseBought(row)
	if err != nil {
		return nil, err
	}
	var ownerID uint64
	if err := r.db.QueryRowContext(ctx,
		`SELECT user_id FROM payment_records WHERE id = ?`, cb.PaymentRecordID).Scan(&ownerID); err != nil {
		return nil, err
	}
	if ownerID != userID {
		return nil, fmt.Errorf("%w: purchase %d", ErrForbidden, purchaseID)
	}
	return &cb, nil
}

// MarkRefundedTx flags a ledger line refunded inside the caller's
// transaction.  The conditional WHERE makes a second refund of the same
// line fail with ErrAlreadyRefunded even under concurrency.
func (r *OrderRepo) MarkRefundedTx(ctx context.Context, tx *sql.Tx, purchaseID uint64, refundID string) error {
	res, err := tx.ExecContext(ctx,
		`UPDATE courses_bought SET refunded = 1, refund_id = ? WHERE id = ? AND refunded = 0`,
		refundID, purchaseID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: purchase %d", ErrAlreadyRefunded, purchaseID)
	}
	return nil
}

// FinalizeRefund applies the database side of a granted refund in one
// transaction: the ledger line is flagged, the user leaves the course,
// and the capacity drops by one so the freed seat can be offered to the
// wait list instead of the open market.
func (r *OrderRepo) FinalizeRefund(ctx context.Context, purchaseID, courseID, userID uint64, refundID string) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()
	if err := r.MarkRefundedTx(ctx, tx, purchaseID, refundID); err != nil {
		return err
	}
	if err := r.courses.RemoveParticipantTx(ctx, tx, courseID, userID); err != nil {
		return err
	}
	if err := r.courses.AdjustCapacityTx(ctx, tx, courseID, -1); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return err
	}
	committed = true
	return nil
}

// PaymentIntentForRecord returns the payment intent behind a record,
// needed to issue a refund against the original charge.
func (r *OrderRepo) PaymentIntentForRecord(ctx context.Context, recordID uint64) (string, error) {
	var intent string
	err := r.db.QueryRowContext(ctx,
		`SELECT payment_intent_id FROM payment_records WHERE id = ?`, recordID).Scan(&intent)
	return intent, err
}
