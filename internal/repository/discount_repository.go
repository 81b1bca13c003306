package repository

import (
	"context"
	"database/sql"

	"github.com/skagit-alpine-club/registration-server/internal/model"
)

// DiscountRepo provides access to previous_student_discounts, the
// per-email percentage coupons granted to returning students.  A
// discount applies at checkout only; the cart always shows the
// undiscounted total.
type DiscountRepo struct {
	db *sql.DB
}

// NewDiscountRepo returns a DiscountRepo bound to the given database.
func NewDiscountRepo(db *sql.DB) *DiscountRepo { return &DiscountRepo{db: db} }

// ForEmail returns the discount granted to an email, or nil when none
// exists.
func (r *DiscountRepo) ForEmail(ctx context.Context, email string) (*model.PreviousStudentDiscount, error) {
	var d model.PreviousStudentDiscount
	err := r.db.QueryRowContext(ctx,
		`SELECT id, email, percent, coupon_id FROM previous_student_discounts WHERE email = ?`, email).
		Scan(&d.ID, &d.Email, &d.Percent, &d.CouponID)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &d, nil
}

// Create inserts a discount grant.
func (r *DiscountRepo) Create(ctx context.Context, d *model.PreviousStudentDiscount) error {
	res, err := r.db.ExecContext(ctx,
		`INSERT INTO previous_student_discounts (email, percent, coupon_id) VALUES (?, ?, ?)`,
		d.Email, d.Percent, d.CouponID)
	if err != nil {
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	d.ID = uint64(id)
	return nil
}

// Delete revokes a discount grant.
func (r *DiscountRepo) Delete(ctx context.Context, id uint64) error {
	res, err := r.db.ExecContext(ctx,
		`DELETE FROM previous_student_discounts WHERE id = ?`, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return sql.ErrNoRows
	}
	return nil
}
