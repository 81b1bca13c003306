// Package service implements the waitlist state machine and order
// fulfillment on top of narrow store interfaces.  The repositories
// satisfy the interfaces in production; tests substitute in-memory
// fakes.
package service

import (
	"context"
	"time"

	"github.com/skagit-alpine-club/registration-server/internal/model"
	"github.com/skagit-alpine-club/registration-server/internal/payments"
	"github.com/skagit-alpine-club/registration-server/internal/repository"
)

// CourseStore is the slice of CourseRepo the services need.
type CourseStore interface {
	GetByID(ctx context.Context, id uint64) (*model.Course, error)
	AdjustCapacity(ctx context.Context, courseID uint64, delta int32) error
}

// WaitListStore reads and consumes wait list entries.
type WaitListStore interface {
	OldestForCourse(ctx context.Context, courseID uint64) (*model.WaitListEntry, error)
	Delete(ctx context.Context, entryID uint64) error
}

// InvoiceStore tracks seat-offer invoices.
type InvoiceStore interface {
	Create(ctx context.Context, inv *model.WaitListInvoice) error
	GetByInvoiceID(ctx context.Context, invoiceID string) (*model.WaitListInvoice, error)
	ListExpired(ctx context.Context, now time.Time) ([]model.WaitListInvoice, error)
	ListVoidedUnreleased(ctx context.Context) ([]model.WaitListInvoice, error)
	MarkVoided(ctx context.Context, id uint64) (bool, error)
	MarkPaidByInvoiceID(ctx context.Context, invoiceID string) (bool, error)
	MarkSeatReleased(ctx context.Context, id uint64) (bool, error)
}

// UserStore resolves users and records their payment-system customer.
type UserStore interface {
	GetByID(ctx context.Context, id uint64) (repository.User, error)
	SetStripeCustomerID(ctx context.Context, id uint64, customerID string) error
}

// SettingsStore reads the registration policy singleton.
type SettingsStore interface {
	Get(ctx context.Context) (*model.RegistrationSettings, error)
}

// OrderStore is the slice of OrderRepo the services need.
type OrderStore interface {
	Fulfill(ctx context.Context, userID uint64, ref model.PaymentRef, selections []model.CourseSelection) (*model.PaymentRecord, error)
	FulfillSeatOffer(ctx context.Context, userID uint64, ref model.PaymentRef, courseID uint64) (*model.PaymentRecord, error)
	PurchaseForUser(ctx context.Context, purchaseID, userID uint64) (*model.CourseBought, error)
	PaymentIntentForRecord(ctx context.Context, recordID uint64) (string, error)
	FinalizeRefund(ctx context.Context, purchaseID, courseID, userID uint64, refundID string) error
}

// EnsureCustomer returns the user's payment-system customer id,
// creating and persisting one on first use.
func EnsureCustomer(ctx context.Context, users UserStore, pay payments.Processor, userID uint64) (string, error) {
	u, err := users.GetByID(ctx, userID)
	if err != nil {
		return "", err
	}
	if u.StripeCustomerID != "" {
		return u.StripeCustomerID, nil
	}
	customerID, err := pay.CreateCustomer(ctx, u.Email)
	if err != nil {
		return "", err
	}
	if err := users.SetStripeCustomerID(ctx, userID, customerID); err != nil {
		return "", err
	}
	return customerID, nil
}
