package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/skagit-alpine-club/registration-server/internal/model"
	"github.com/skagit-alpine-club/registration-server/internal/payments"
	"github.com/skagit-alpine-club/registration-server/internal/queue"
	"github.com/skagit-alpine-club/registration-server/internal/repository"
)

// Fulfillment turns confirmed payments into enrollment and unwinds
// purchases through refunds.  Both paths end at the append-only payment
// ledger; fulfillment is idempotent per payment reference and refunds
// are one-shot per ledger line.
type Fulfillment struct {
	courses  CourseStore
	orders   OrderStore
	users    UserStore
	settings SettingsStore
	waitlist *Waitlist
	pay      payments.Processor

	// PublishEnrollmentConfirmed is called after a successful
	// fulfillment.  Best effort; failures are logged, never returned.
	PublishEnrollmentConfirmed func(ctx context.Context, ev queue.EnrollmentConfirmedEvent) error

	// Now is the clock, replaceable in tests.
	Now func() time.Time
}

// NewFulfillment wires a Fulfillment over the production stores.
func NewFulfillment(courses CourseStore, orders OrderStore, users UserStore,
	settings SettingsStore, waitlist *Waitlist, pay payments.Processor) *Fulfillment {
	return &Fulfillment{
		courses:                    courses,
		orders:                     orders,
		users:                      users,
		settings:                   settings,
		waitlist:                   waitlist,
		pay:                        pay,
		PublishEnrollmentConfirmed: queue.PublishEnrollmentConfirmed,
		Now:                        time.Now,
	}
}

// FulfillOrder enrolls the user in every selected course against the
// given payment reference.  A reference already in the ledger returns
// (nil, nil): the work was done by an earlier delivery.
func (f *Fulfillment) FulfillOrder(ctx context.Context, userID uint64, ref model.PaymentRef, selections []model.CourseSelection) (*model.PaymentRecord, error) {
	record, err := f.orders.Fulfill(ctx, userID, ref, selections)
	if errors.Is(err, repository.ErrDuplicatePayment) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	if f.PublishEnrollmentConfirmed != nil {
		ev := queue.EnrollmentConfirmedEvent{
			PaymentRecordID: record.ID,
			UserID:          userID,
			ConfirmedAt:     f.Now().UTC().Format(time.RFC3339),
		}
		if u, err := f.users.GetByID(ctx, userID); err == nil {
			ev.Email = u.Email
		}
		for _, sel := range selections {
			ev.CourseIDs = append(ev.CourseIDs, sel.CourseID)
			if c, err := f.courses.GetByID(ctx, sel.CourseID); err == nil {
				ev.CourseNames = append(ev.CourseNames, c.TypeName)
			}
		}
		if err := f.PublishEnrollmentConfirmed(ctx, ev); err != nil {
			log.Printf("fulfillment: publish enrollment event failed: %v", err)
		}
	}
	return record, nil
}

// Refund unwinds one purchased course: the charge is partially returned
// (cost minus the cancellation fee), the ledger line is flagged, the
// user leaves the course, and the freed seat goes to the wait list or
// back to open capacity.  Fails with ErrAlreadyRefunded on a second
// attempt and ErrRefundWindowClosed once the course start is inside the
// refund period.
func (f *Fulfillment) Refund(ctx context.Context, userID, purchaseID uint64) (*model.CourseBought, error) {
	purchase, err := f.orders.PurchaseForUser(ctx, purchaseID, userID)
	if err != nil {
		return nil, err
	}
	if purchase.Refunded {
		return nil, fmt.Errorf("%w: purchase %d", repository.ErrAlreadyRefunded, purchaseID)
	}
	if purchase.CourseID == nil {
		return nil, fmt.Errorf("%w: course for purchase %d no longer exists", repository.ErrConflict, purchaseID)
	}
	courseID := *purchase.CourseID

	course, err := f.courses.GetByID(ctx, courseID)
	if err != nil {
		return nil, err
	}
	settings, err := f.settings.Get(ctx)
	if err != nil {
		return nil, err
	}
	now := f.Now().UTC()
	if !course.RefundEligible(now, settings.RefundPeriod) {
		return nil, fmt.Errorf("%w: course %d", repository.ErrRefundWindowClosed, courseID)
	}

	intentID, err := f.orders.PaymentIntentForRecord(ctx, purchase.PaymentRecordID)
	if err != nil {
		return nil, err
	}
	if intentID == "" {
		return nil, fmt.Errorf("%w: purchase %d has no refundable charge", repository.ErrConflict, purchaseID)
	}

	refundID := ""
	if course.CostCents > settings.CancellationFeeCents {
		amount := course.CostCents - settings.CancellationFeeCents
		refundID, err = f.pay.Refund(ctx, intentID, amount)
		if err != nil {
			return nil, err
		}
	}

	if err := f.orders.FinalizeRefund(ctx, purchaseID, courseID, userID, refundID); err != nil {
		return nil, err
	}

	// The seat is now held for the wait list; with nobody queued it
	// returns to open capacity immediately.
	offered, err := f.waitlist.OfferNextSeat(ctx, courseID)
	if err != nil {
		return nil, err
	}
	if !offered {
		if err := f.courses.AdjustCapacity(ctx, courseID, +1); err != nil {
			return nil, err
		}
	}

	purchase.Refunded = true
	purchase.RefundID = refundID
	return purchase, nil
}
