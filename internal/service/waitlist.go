package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/skagit-alpine-club/registration-server/internal/model"
	"github.com/skagit-alpine-club/registration-server/internal/payments"
	"github.com/skagit-alpine-club/registration-server/internal/queue"
	"github.com/skagit-alpine-club/registration-server/internal/repository"
)

// Waitlist drives the seat lifecycle of a full course: when a seat
// frees up it is offered to the head of the queue via a time-limited
// invoice, a paid invoice converts into enrollment, and expired offers
// are voided and passed down the line.  A seat with an outstanding
// offer is held: the course capacity stays reduced until the invoice
// resolves.
type Waitlist struct {
	courses  CourseStore
	entries  WaitListStore
	invoices InvoiceStore
	users    UserStore
	settings SettingsStore
	orders   OrderStore
	pay      payments.Processor

	// PublishInvoiceIssued is called after a seat offer goes out.
	// Publishing is best effort; failures are logged, never returned.
	PublishInvoiceIssued func(ctx context.Context, ev queue.WaitListInvoiceIssuedEvent) error

	// Now is the clock, replaceable in tests.
	Now func() time.Time
}

// NewWaitlist wires a Waitlist over the production stores.
func NewWaitlist(courses CourseStore, entries WaitListStore, invoices InvoiceStore,
	users UserStore, settings SettingsStore, orders OrderStore, pay payments.Processor) *Waitlist {
	return &Waitlist{
		courses:              courses,
		entries:              entries,
		invoices:             invoices,
		users:                users,
		settings:             settings,
		orders:               orders,
		pay:                  pay,
		PublishInvoiceIssued: queue.PublishWaitListInvoiceIssued,
		Now:                  time.Now,
	}
}

// OfferNextSeat pops the oldest wait list entry for a course, sends
// them an invoice for the course cost due within the configured payment
// window, and records the offer.  Returns false with no error when the
// wait list is empty, in which case the caller owns the freed seat.
func (w *Waitlist) OfferNextSeat(ctx context.Context, courseID uint64) (bool, error) {
	entry, err := w.entries.OldestForCourse(ctx, courseID)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, err
	}

	course, err := w.courses.GetByID(ctx, courseID)
	if err != nil {
		return false, err
	}
	settings, err := w.settings.Get(ctx)
	if err != nil {
		return false, err
	}
	customerID, err := EnsureCustomer(ctx, w.users, w.pay, entry.UserID)
	if err != nil {
		return false, err
	}

	now := w.Now().UTC()
	dueAt := now.Add(settings.TimeToPayInvoice)
	description := fmt.Sprintf("Seat offer: %s %s", course.TypeName, course.Specifics)
	invoiceID, err := w.pay.SendInvoice(ctx, customerID, course.CostCents, description, dueAt)
	if err != nil {
		return false, err
	}

	userID := entry.UserID
	record := &model.WaitListInvoice{
		UserID:    &userID,
		CourseID:  courseID,
		Email:     entry.Email,
		DateAdded: now,
		Expires:   dueAt,
		InvoiceID: invoiceID,
	}
	if err := w.invoices.Create(ctx, record); err != nil {
		return false, err
	}
	if err := w.entries.Delete(ctx, entry.ID); err != nil {
		return false, err
	}

	if w.PublishInvoiceIssued != nil {
		ev := queue.WaitListInvoiceIssuedEvent{
			CourseID:   courseID,
			CourseName: course.TypeName,
			UserID:     entry.UserID,
			Email:      entry.Email,
			InvoiceID:  invoiceID,
			Expires:    dueAt.Format(time.RFC3339),
			IssuedAt:   now.Format(time.RFC3339),
		}
		if err := w.PublishInvoiceIssued(ctx, ev); err != nil {
			log.Printf("waitlist: publish invoice event failed: %v", err)
		}
	}
	return true, nil
}

// SweepExpiredInvoices voids every seat offer past its deadline, then
// moves each freed seat along: to the next person in line when one
// exists, back to open capacity otherwise.  The hand-off is tracked on
// the invoice row, so a seat whose hand-off failed in an earlier sweep
// is picked up again rather than lost.  An offer that was paid or
// voided after the sweep listed it is skipped.  Returns the number of
// offers voided.
func (w *Waitlist) SweepExpiredInvoices(ctx context.Context) (int, error) {
	expired, err := w.invoices.ListExpired(ctx, w.Now().UTC())
	if err != nil {
		return 0, err
	}
	voided := 0
	for _, inv := range expired {
		ok, err := w.invoices.MarkVoided(ctx, inv.ID)
		if err != nil {
			return voided, err
		}
		if !ok {
			continue // paid or voided since listing; nothing to do
		}
		voided++
		if err := w.pay.VoidInvoice(ctx, inv.InvoiceID); err != nil {
			// The local record is already voided; a paid-after-void
			// webhook will be ignored by the conditional update.
			log.Printf("waitlist: void invoice %s at provider failed: %v", inv.InvoiceID, err)
		}
	}
	// Seats move in a second pass over every voided offer still owing
	// its hand-off, including ones a previous sweep voided and then
	// failed on.
	pending, err := w.invoices.ListVoidedUnreleased(ctx)
	if err != nil {
		return voided, err
	}
	for _, inv := range pending {
		if err := w.handOffSeat(ctx, inv.ID, inv.CourseID); err != nil {
			return voided, err
		}
	}
	return voided, nil
}

// handOffSeat moves a voided offer's seat to the next queued user, or
// back to open capacity when nobody waits, then records the hand-off
// on the invoice row so it is not repeated.
func (w *Waitlist) handOffSeat(ctx context.Context, invoiceRowID, courseID uint64) error {
	offered, err := w.OfferNextSeat(ctx, courseID)
	if err != nil {
		return err
	}
	if !offered {
		if err := w.courses.AdjustCapacity(ctx, courseID, +1); err != nil {
			return err
		}
	}
	_, err = w.invoices.MarkSeatReleased(ctx, invoiceRowID)
	return err
}

// InvoicePaid handles the provider's invoice.paid webhook.  The paid
// flag is a one-shot conditional update; the held seat's capacity
// restore and the enrollment then commit in a single transaction keyed
// on the invoice id.  A delivery that fails after the flag commits is
// therefore completed by the provider's redelivery, which finds the
// invoice paid but the ledger empty and runs the remaining work.  A
// payment racing the sweep's void resolves through the conditional
// update; the loser no-ops.
func (w *Waitlist) InvoicePaid(ctx context.Context, invoiceID string) error {
	won, err := w.invoices.MarkPaidByInvoiceID(ctx, invoiceID)
	if err != nil {
		return err
	}
	inv, err := w.invoices.GetByInvoiceID(ctx, invoiceID)
	if err != nil {
		if !won && errors.Is(err, sql.ErrNoRows) {
			return nil // not an invoice of ours
		}
		return err
	}
	if !won && !inv.Paid {
		return nil // the sweep voided it first
	}
	if inv.UserID == nil {
		if won {
			log.Printf("waitlist: invoice %s paid but user is gone; seat released", invoiceID)
			return w.courses.AdjustCapacity(ctx, inv.CourseID, +1)
		}
		return nil
	}
	ref := model.PaymentRef{InvoiceID: invoiceID}
	if _, err := w.orders.FulfillSeatOffer(ctx, *inv.UserID, ref, inv.CourseID); err != nil {
		if errors.Is(err, repository.ErrDuplicatePayment) {
			return nil
		}
		return err
	}
	return nil
}
