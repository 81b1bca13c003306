package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/skagit-alpine-club/registration-server/internal/model"
)

// SettingsRepo provides access to the registration_settings singleton
// and the early_signup_emails allow list.  The singleton is enforced
// with a fixed primary key of 1: a second insert violates the key and
// surfaces as ErrSettingsExist.
type SettingsRepo struct {
	db *sql.DB
}

// NewSettingsRepo returns a SettingsRepo bound to the given database.
func NewSettingsRepo(db *sql.DB) *SettingsRepo { return &SettingsRepo{db: db} }

// Get returns the settings row, or sql.ErrNoRows before it is created.
func (r *SettingsRepo) Get(ctx context.Context) (*model.RegistrationSettings, error) {
	var s model.RegistrationSettings
	var refundSecs, paySecs int64
	err := r.db.QueryRowContext(ctx,
		`SELECT early_registration_open, early_signup_code, registration_open, registration_close,
		        refund_period_seconds, cancellation_fee_cents, time_to_pay_invoice_seconds
		 FROM registration_settings WHERE id = 1`).
		Scan(&s.EarlyRegistrationOpen, &s.EarlySignupCode, &s.RegistrationOpen, &s.RegistrationClose,
			&refundSecs, &s.CancellationFeeCents, &paySecs)
	if err != nil {
		return nil, err
	}
	s.RefundPeriod = time.Duration(refundSecs) * time.Second
	s.TimeToPayInvoice = time.Duration(paySecs) * time.Second
	return &s, nil
}

// Create inserts the singleton row.  Fails with ErrSettingsExist when a
// row is already present; the fixed primary key catches the case of
// two concurrent creates racing past the existence check.
func (r *SettingsRepo) Create(ctx context.Context, s *model.RegistrationSettings) error {
	var exists bool
	if err := r.db.QueryRowContext(ctx,
		`SELECT EXISTS(SELECT 1 FROM registration_settings WHERE id = 1)`).Scan(&exists); err != nil {
		return err
	}
	if exists {
		return ErrSettingsExist
	}
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO registration_settings
		   (id, early_registration_open, early_signup_code, registration_open, registration_close,
		    refund_period_seconds, cancellation_fee_cents, time_to_pay_invoice_seconds)
		 VALUES (1, ?, ?, ?, ?, ?, ?, ?)`,
		s.EarlyRegistrationOpen.UTC(), s.EarlySignupCode, s.RegistrationOpen.UTC(), s.RegistrationClose.UTC(),
		int64(s.RefundPeriod/time.Second), s.CancellationFeeCents, int64(s.TimeToPayInvoice/time.Second))
	if isDuplicateKey(err) {
		return ErrSettingsExist
	}
	return err
}

// Update replaces the singleton's fields.  Returns sql.ErrNoRows when
// the row was never created.
func (r *SettingsRepo) Update(ctx context.Context, s *model.RegistrationSettings) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE registration_settings SET
		   early_registration_open = ?, early_signup_code = ?, registration_open = ?, registration_close = ?,
		   refund_period_seconds = ?, cancellation_fee_cents = ?, time_to_pay_invoice_seconds = ?
		 WHERE id = 1`,
		s.EarlyRegistrationOpen.UTC(), s.EarlySignupCode, s.RegistrationOpen.UTC(), s.RegistrationClose.UTC(),
		int64(s.RefundPeriod/time.Second), s.CancellationFeeCents, int64(s.TimeToPayInvoice/time.Second))
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		var exists bool
		if err := r.db.QueryRowContext(ctx,
			`SELECT EXISTS(SELECT 1 FROM registration_settings WHERE id = 1)`).Scan(&exists); err != nil {
			return err
		}
		if !exists {
			return sql.ErrNoRows
		}
	}
	return nil
}

// IsEarlySignup reports whether the email is on the early-registration
// allow list.
func (r *SettingsRepo) IsEarlySignup(ctx context.Context, email string) (bool, error) {
	var exists bool
	err := r.db.QueryRowContext(ctx,
		`SELECT EXISTS(SELECT 1 FROM early_signup_emails WHERE email = ?)`, email).Scan(&exists)
	return exists, err
}

// AddEarlySignup puts an email on the early-registration allow list.
func (r *SettingsRepo) AddEarlySignup(ctx context.Context, email string) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT IGNORE INTO early_signup_emails (email) VALUES (?)`, email)
	return err
}
