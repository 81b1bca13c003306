// Package repository defines the data access layer and the sentinel
// error values reused across repositories. Handlers compare against
// these with errors.Is to pick HTTP statuses, and the validation
// sentinels are wrapped with fmt.Errorf("%w: ...") so the message names
// the offending course or course type. Every mutating method either
// commits fully or returns an error having changed nothing.
package repository

import (
	"errors"
	"strings"
)

// ErrForbidden is returned when the caller attempts an operation on a
// resource they do not own, e.g. an instructor requesting the roster of
// a course they do not teach. Handlers translate this to HTTP 403.
var ErrForbidden = errors.New("forbidden")

// ErrConflict is returned when an operation cannot proceed because of
// dependent state, such as deleting a course type that still has
// courses. Handlers translate this to HTTP 409.
var ErrConflict = errors.New("conflict")

// Validation failures. Each is raised synchronously inside the
// transaction of the offending mutation, which is rolled back entirely.
var (
	// ErrCourseFull rejects a participant add or cart add against a
	// course whose enrollment has reached capacity.
	ErrCourseFull = errors.New("course is full")

	// ErrCourseNotFull rejects a waitlist join for a course that still
	// has open seats.
	ErrCourseNotFull = errors.New("course is not full")

	// ErrNoRegistrationForm rejects cart mutation before the user has
	// completed their registration form.
	ErrNoRegistrationForm = errors.New("registration form not completed")

	// ErrDuplicateCourseType rejects a cart add when the user already
	// holds a course of the same type, in cart or enrolled.
	ErrDuplicateCourseType = errors.New("course type already held")

	// ErrMissingPrerequisite rejects a cart add whose course type
	// requirement is neither in the cart nor among enrollments.
	ErrMissingPrerequisite = errors.New("prerequisite not satisfied")

	// ErrAlreadyOnWaitList rejects a second waitlist join for the same
	// (course, user) pair.
	ErrAlreadyOnWaitList = errors.New("already on wait list")

	// ErrRequirementCycle rejects a course type write whose requirement
	// chain would reach the type itself.
	ErrRequirementCycle = errors.New("course type requirement cycle")

	// ErrSettingsExist rejects creation of a second registration
	// settings row; the settings are a singleton.
	ErrSettingsExist = errors.New("registration settings already exist")

	// ErrRegistrationClosed rejects cart mutation outside the
	// registration window.
	ErrRegistrationClosed = errors.New("registration is closed")

	// ErrAlreadyRefunded rejects a refund of a ledger row that has
	// already been refunded.
	ErrAlreadyRefunded = errors.New("purchase already refunded")

	// ErrRefundWindowClosed rejects a refund once the course start is
	// within the refund period.
	ErrRefundWindowClosed = errors.New("refund window closed")

	// ErrDuplicatePayment marks a fulfillment whose payment reference is
	// already in the ledger. Callers treat it as an idempotent no-op.
	ErrDuplicatePayment = errors.New("payment reference already fulfilled")
)

// isDuplicateKey reports whether err is a MySQL duplicate-key
// violation (error 1062). Inserts backstopped by a unique index map it
// to the matching sentinel so concurrent writers see the same error as
// sequential ones.
func isDuplicateKey(err error) bool {
	return err != nil && strings.Contains(err.Error(), "1062")
}
