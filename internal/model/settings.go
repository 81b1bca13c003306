package model

import "time"

// RegistrationSettings is the singleton row of club-wide registration
// policy.  Construction fails when a row already exists.  Durations are
// stored in the database as seconds.
type RegistrationSettings struct {
	EarlyRegistrationOpen time.Time     `json:"early_registration_open"`
	EarlySignupCode       string        `json:"early_signup_code,omitempty"`
	RegistrationOpen      time.Time     `json:"registration_open"`
	RegistrationClose     time.Time     `json:"registration_close"`
	RefundPeriod          time.Duration `json:"refund_period"`
	CancellationFeeCents  uint32        `json:"cancellation_fee_cents"`
	TimeToPayInvoice      time.Duration `json:"time_to_pay_invoice"`
}

// RegistrationOpenFor reports whether cart mutation is allowed at the
// given instant.  Early-eligible users are admitted from the early
// window; everyone else from the general window.  Both close at
// RegistrationClose.
func (s *RegistrationSettings) RegistrationOpenFor(now time.Time, earlyEligible bool) bool {
	if !now.Before(s.RegistrationClose) {
		return false
	}
	if earlyEligible && now.After(s.EarlyRegistrationOpen) {
		return true
	}
	return now.After(s.RegistrationOpen)
}

// PreviousStudentDiscount grants a returning student a percentage off
// at checkout, keyed by email.  CouponID references the matching coupon
// in the payment system.
type PreviousStudentDiscount struct {
	ID       uint64 `json:"id"`
	Email    string `json:"email"`
	Percent  uint8  `json:"percent"`
	CouponID string `json:"coupon_id"`
}
