package service

import (
	"context"
	"database/sql"
	"fmt"
	"testing"
	"time"

	"github.com/skagit-alpine-club/registration-server/internal/model"
	"github.com/skagit-alpine-club/registration-server/internal/payments"
	"github.com/skagit-alpine-club/registration-server/internal/queue"
	"github.com/skagit-alpine-club/registration-server/internal/repository"
)

// ---- in-memory fakes for the store interfaces ----

type capacityDelta struct {
	courseID uint64
	delta    int32
}

type fakeCourses struct {
	byID   map[uint64]*model.Course
	deltas []capacityDelta
}

func (f *fakeCourses) GetByID(_ context.Context, id uint64) (*model.Course, error) {
	c, ok := f.byID[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	cp := *c
	return &cp, nil
}

func (f *fakeCourses) AdjustCapacity(_ context.Context, courseID uint64, delta int32) error {
	f.deltas = append(f.deltas, capacityDelta{courseID, delta})
	if c, ok := f.byID[courseID]; ok {
		c.Capacity = uint32(int32(c.Capacity) + delta)
	}
	return nil
}

type fakeEntries struct {
	entries []model.WaitListEntry
}

func (f *fakeEntries) OldestForCourse(_ context.Context, courseID uint64) (*model.WaitListEntry, error) {
	var best *model.WaitListEntry
	for i := range f.entries {
		e := &f.entries[i]
		if e.CourseID != courseID {
			continue
		}
		if best == nil || e.DateAdded.Before(best.DateAdded) ||
			(e.DateAdded.Equal(best.DateAdded) && e.ID < best.ID) {
			best = e
		}
	}
	if best == nil {
		return nil, sql.ErrNoRows
	}
	cp := *best
	return &cp, nil
}

func (f *fakeEntries) Delete(_ context.Context, entryID uint64) error {
	for i := range f.entries {
		if f.entries[i].ID == entryID {
			f.entries = append(f.entries[:i], f.entries[i+1:]...)
			return nil
		}
	}
	return sql.ErrNoRows
}

type fakeInvoices struct {
	nextID   uint64
	invoices []*model.WaitListInvoice
}

func (f *fakeInvoices) Create(_ context.Context, inv *model.WaitListInvoice) error {
	f.nextID++
	inv.ID = f.nextID
	cp := *inv
	f.invoices = append(f.invoices, &cp)
	return nil
}

func (f *fakeInvoices) byInvoiceID(invoiceID string) *model.WaitListInvoice {
	for _, inv := range f.invoices {
		if inv.InvoiceID == invoiceID {
			return inv
		}
	}
	return nil
}

func (f *fakeInvoices) GetByInvoiceID(_ context.Context, invoiceID string) (*model.WaitListInvoice, error) {
	inv := f.byInvoiceID(invoiceID)
	if inv == nil {
		return nil, sql.ErrNoRows
	}
	cp := *inv
	return &cp, nil
}

func (f *fakeInvoices) ListExpired(_ context.Context, now time.Time) ([]model.WaitListInvoice, error) {
	var out []model.WaitListInvoice
	for _, inv := range f.invoices {
		if inv.Expired(now) {
			out = append(out, *inv)
		}
	}
	return out, nil
}

func (f *fakeInvoices) ListVoidedUnreleased(_ context.Context) ([]model.WaitListInvoice, error) {
	var out []model.WaitListInvoice
	for _, inv := range f.invoices {
		if inv.Voided && !inv.SeatReleased {
			out = append(out, *inv)
		}
	}
	return out, nil
}

func (f *fakeInvoices) MarkSeatReleased(_ context.Context, id uint64) (bool, error) {
	for _, inv := range f.invoices {
		if inv.ID == id {
			if !inv.Voided || inv.SeatReleased {
				return false, nil
			}
			inv.SeatReleased = true
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeInvoices) MarkVoided(_ context.Context, id uint64) (bool, error) {
	for _, inv := range f.invoices {
		if inv.ID == id {
			if !inv.Pending() {
				return false, nil
			}
			inv.Voided = true
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeInvoices) MarkPaidByInvoiceID(_ context.Context, invoiceID string) (bool, error) {
	inv := f.byInvoiceID(invoiceID)
	if inv == nil || !inv.Pending() {
		return false, nil
	}
	inv.Paid = true
	return true, nil
}

type fakeUsers struct {
	byID map[uint64]repository.User
}

func (f *fakeUsers) GetByID(_ context.Context, id uint64) (repository.User, error) {
	u, ok := f.byID[id]
	if !ok {
		return repository.User{}, sql.ErrNoRows
	}
	return u, nil
}

func (f *fakeUsers) SetStripeCustomerID(_ context.Context, id uint64, customerID string) error {
	u, ok := f.byID[id]
	if !ok {
		return sql.ErrNoRows
	}
	u.StripeCustomerID = customerID
	f.byID[id] = u
	return nil
}

type fakeSettings struct {
	s model.RegistrationSettings
}

func (f *fakeSettings) Get(_ context.Context) (*model.RegistrationSettings, error) {
	cp := f.s
	return &cp, nil
}

type fulfillCall struct {
	userID     uint64
	ref        model.PaymentRef
	selections []model.CourseSelection
}

type finalizeCall struct {
	purchaseID uint64
	courseID   uint64
	userID     uint64
	refundID   string
}

type fakeOrders struct {
	seenRefs     map[string]bool
	fulfills     []fulfillCall
	nextRecordID uint64

	// courses mirrors the transactional coupling of seat-offer
	// fulfillment: the capacity restore commits with the ledger write.
	courses       *fakeCourses
	failSeatOffer error

	purchases map[uint64]*model.CourseBought
	owners    map[uint64]uint64
	intents   map[uint64]string
	finalized []finalizeCall
}

func newFakeOrders() *fakeOrders {
	return &fakeOrders{
		seenRefs:  map[string]bool{},
		purchases: map[uint64]*model.CourseBought{},
		owners:    map[uint64]uint64{},
		intents:   map[uint64]string{},
	}
}

func (f *fakeOrders) Fulfill(_ context.Context, userID uint64, ref model.PaymentRef, selections []model.CourseSelection) (*model.PaymentRecord, error) {
	key := ref.CheckoutSessionID + "|" + ref.PaymentIntentID + "|" + ref.InvoiceID
	if f.seenRefs[key] {
		return nil, repository.ErrDuplicatePayment
	}
	f.seenRefs[key] = true
	f.fulfills = append(f.fulfills, fulfillCall{userID, ref, selections})
	f.nextRecordID++
	return &model.PaymentRecord{
		ID:                f.nextRecordID,
		UserID:            userID,
		CheckoutSessionID: ref.CheckoutSessionID,
		PaymentIntentID:   ref.PaymentIntentID,
		InvoiceID:         ref.InvoiceID,
	}, nil
}

func (f *fakeOrders) FulfillSeatOffer(ctx context.Context, userID uint64, ref model.PaymentRef, courseID uint64) (*model.PaymentRecord, error) {
	if f.failSeatOffer != nil {
		err := f.failSeatOffer
		f.failSeatOffer = nil
		return nil, err
	}
	key := ref.CheckoutSessionID + "|" + ref.PaymentIntentID + "|" + ref.InvoiceID
	if f.seenRefs[key] {
		return nil, repository.ErrDuplicatePayment
	}
	f.seenRefs[key] = true
	if f.courses != nil {
		_ = f.courses.AdjustCapacity(ctx, courseID, +1)
	}
	f.fulfills = append(f.fulfills, fulfillCall{userID, ref, []model.CourseSelection{{CourseID: courseID}}})
	f.nextRecordID++
	return &model.PaymentRecord{
		ID:        f.nextRecordID,
		UserID:    userID,
		InvoiceID: ref.InvoiceID,
	}, nil
}

func (f *fakeOrders) PurchaseForUser(_ context.Context, purchaseID, userID uint64) (*model.CourseBought, error) {
	p, ok := f.purchases[purchaseID]
	if !ok {
		return nil, sql.ErrNoRows
	}
	if f.owners[purchaseID] != userID {
		return nil, repository.ErrForbidden
	}
	cp := *p
	return &cp, nil
}

func (f *fakeOrders) PaymentIntentForRecord(_ context.Context, recordID uint64) (string, error) {
	return f.intents[recordID], nil
}

func (f *fakeOrders) FinalizeRefund(_ context.Context, purchaseID, courseID, userID uint64, refundID string) error {
	p, ok := f.purchases[purchaseID]
	if !ok {
		return sql.ErrNoRows
	}
	if p.Refunded {
		return repository.ErrAlreadyRefunded
	}
	p.Refunded = true
	p.RefundID = refundID
	f.finalized = append(f.finalized, finalizeCall{purchaseID, courseID, userID, refundID})
	return nil
}

type sentInvoice struct {
	customerID  string
	amountCents uint32
	description string
	dueAt       time.Time
}

type refundCall struct {
	intentID    string
	amountCents uint32
}

type fakeProcessor struct {
	nextCustomer int
	nextInvoice  int
	sent         []sentInvoice
	voided       []string
	refunds      []refundCall
}

func (f *fakeProcessor) CreateCustomer(_ context.Context, email string) (string, error) {
	f.nextCustomer++
	return fmt.Sprintf("cus_test_%d", f.nextCustomer), nil
}

func (f *fakeProcessor) CreateCheckoutSession(_ context.Context, _ payments.CheckoutParams) (payments.CheckoutSession, error) {
	return payments.CheckoutSession{}, fmt.Errorf("not used in these tests")
}

func (f *fakeProcessor) SendInvoice(_ context.Context, customerID string, amountCents uint32, description string, dueAt time.Time) (string, error) {
	f.nextInvoice++
	f.sent = append(f.sent, sentInvoice{customerID, amountCents, description, dueAt})
	return fmt.Sprintf("in_test_%d", f.nextInvoice), nil
}

func (f *fakeProcessor) VoidInvoice(_ context.Context, invoiceID string) error {
	f.voided = append(f.voided, invoiceID)
	return nil
}

func (f *fakeProcessor) Refund(_ context.Context, paymentIntentID string, amountCents uint32) (string, error) {
	f.refunds = append(f.refunds, refundCall{paymentIntentID, amountCents})
	return fmt.Sprintf("re_test_%d", len(f.refunds)), nil
}

// ---- fixture ----

type waitlistFixture struct {
	courses  *fakeCourses
	entries  *fakeEntries
	invoices *fakeInvoices
	users    *fakeUsers
	settings *fakeSettings
	orders   *fakeOrders
	pay      *fakeProcessor
	now      time.Time
	svc      *Waitlist
}

func newWaitlistFixture() *waitlistFixture {
	fx := &waitlistFixture{
		courses: &fakeCourses{byID: map[uint64]*model.Course{
			7: {ID: 7, TypeID: 1, TypeName: "Basic Climbing", Specifics: "Spring 2026",
				CostCents: 25000, Capacity: 10, ExpectedCapacity: 12, ParticipantCount: 10},
		}},
		entries:  &fakeEntries{},
		invoices: &fakeInvoices{},
		users: &fakeUsers{byID: map[uint64]repository.User{
			1: {ID: 1, Email: "ada@example.com", StripeCustomerID: "cus_ada"},
			2: {ID: 2, Email: "ben@example.com"},
			3: {ID: 3, Email: "cam@example.com", StripeCustomerID: "cus_cam"},
		}},
		settings: &fakeSettings{s: model.RegistrationSettings{
			RefundPeriod:         7 * 24 * time.Hour,
			CancellationFeeCents: 2000,
			TimeToPayInvoice:     72 * time.Hour,
		}},
		orders: newFakeOrders(),
		pay:    &fakeProcessor{},
		now:    time.Date(2026, 2, 10, 12, 0, 0, 0, time.UTC),
	}
	fx.orders.courses = fx.courses
	fx.svc = NewWaitlist(fx.courses, fx.entries, fx.invoices, fx.users, fx.settings, fx.orders, fx.pay)
	fx.svc.Now = func() time.Time { return fx.now }
	fx.svc.PublishInvoiceIssued = nil
	return fx
}

func (fx *waitlistFixture) queue(entryID, userID uint64, addedOffset time.Duration) {
	email := fx.users.byID[userID].Email
	fx.entries.entries = append(fx.entries.entries, model.WaitListEntry{
		ID: entryID, CourseID: 7, UserID: userID, Email: email,
		DateAdded: fx.now.Add(addedOffset),
	})
}

// ---- tests ----

func TestOfferNextSeatFIFO(t *testing.T) {
	fx := newWaitlistFixture()
	fx.queue(11, 2, -3*time.Hour)
	fx.queue(12, 1, -2*time.Hour)
	fx.queue(13, 3, -1*time.Hour)

	var published []queue.WaitListInvoiceIssuedEvent
	fx.svc.PublishInvoiceIssued = func(_ context.Context, ev queue.WaitListInvoiceIssuedEvent) error {
		published = append(published, ev)
		return nil
	}

	offered, err := fx.svc.OfferNextSeat(context.Background(), 7)
	if err != nil || !offered {
		t.Fatalf("OfferNextSeat = %v, %v; want true, nil", offered, err)
	}

	if len(fx.pay.sent) != 1 {
		t.Fatalf("sent %d invoices, want 1", len(fx.pay.sent))
	}
	sent := fx.pay.sent[0]
	if sent.amountCents != 25000 {
		t.Errorf("invoice amount = %d, want 25000", sent.amountCents)
	}
	if want := fx.now.Add(72 * time.Hour); !sent.dueAt.Equal(want) {
		t.Errorf("invoice due = %v, want %v", sent.dueAt, want)
	}
	if sent.description != "Seat offer: Basic Climbing Spring 2026" {
		t.Errorf("invoice description = %q", sent.description)
	}

	// User 2 joined first but has no customer yet; one is created for them.
	if sent.customerID != "cus_test_1" {
		t.Errorf("invoiced customer = %q, want the freshly created cus_test_1", sent.customerID)
	}
	if got := fx.users.byID[2].StripeCustomerID; got != "cus_test_1" {
		t.Errorf("customer id not persisted: %q", got)
	}

	if len(fx.invoices.invoices) != 1 {
		t.Fatalf("recorded %d offer invoices, want 1", len(fx.invoices.invoices))
	}
	rec := fx.invoices.invoices[0]
	if rec.UserID == nil || *rec.UserID != 2 || rec.CourseID != 7 || rec.Email != "ben@example.com" {
		t.Errorf("offer record = %+v", rec)
	}
	if !rec.Expires.Equal(fx.now.Add(72 * time.Hour)) {
		t.Errorf("offer expires = %v", rec.Expires)
	}

	if len(fx.entries.entries) != 2 {
		t.Fatalf("entry not consumed: %d remain", len(fx.entries.entries))
	}
	if len(published) != 1 || published[0].UserID != 2 || published[0].InvoiceID != "in_test_1" {
		t.Errorf("published = %+v", published)
	}

	// Next offer goes to the next oldest entry.
	if _, err := fx.svc.OfferNextSeat(context.Background(), 7); err != nil {
		t.Fatal(err)
	}
	if got := fx.pay.sent[1].customerID; got != "cus_ada" {
		t.Errorf("second offer went to %q, want cus_ada", got)
	}
}

func TestOfferNextSeatEmptyQueue(t *testing.T) {
	fx := newWaitlistFixture()
	offered, err := fx.svc.OfferNextSeat(context.Background(), 7)
	if err != nil {
		t.Fatal(err)
	}
	if offered {
		t.Fatal("offered a seat with nobody waiting")
	}
	if len(fx.pay.sent) != 0 || len(fx.invoices.invoices) != 0 {
		t.Fatal("empty queue must not produce invoices")
	}
}

func TestSweepExpiredInvoicesReoffers(t *testing.T) {
	fx := newWaitlistFixture()
	uid := uint64(1)
	fx.invoices.invoices = []*model.WaitListInvoice{{
		ID: 1, UserID: &uid, CourseID: 7, Email: "ada@example.com",
		Expires: fx.now.Add(-time.Hour), InvoiceID: "in_expired",
	}}
	fx.queue(21, 3, -30*time.Minute)

	voided, err := fx.svc.SweepExpiredInvoices(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if voided != 1 {
		t.Fatalf("voided = %d, want 1", voided)
	}
	if !fx.invoices.invoices[0].Voided {
		t.Fatal("expired offer not voided locally")
	}
	if len(fx.pay.voided) != 1 || fx.pay.voided[0] != "in_expired" {
		t.Fatalf("provider voids = %v", fx.pay.voided)
	}
	// The seat moved to the next person; capacity stays held.
	if len(fx.pay.sent) != 1 || fx.pay.sent[0].customerID != "cus_cam" {
		t.Fatalf("re-offer = %+v", fx.pay.sent)
	}
	if len(fx.courses.deltas) != 0 {
		t.Fatalf("capacity adjusted %v despite a re-offer", fx.courses.deltas)
	}
}

func TestSweepExpiredInvoicesReleasesSeat(t *testing.T) {
	fx := newWaitlistFixture()
	uid := uint64(1)
	fx.invoices.invoices = []*model.WaitListInvoice{{
		ID: 1, UserID: &uid, CourseID: 7, Email: "ada@example.com",
		Expires: fx.now.Add(-time.Minute), InvoiceID: "in_expired",
	}}

	voided, err := fx.svc.SweepExpiredInvoices(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if voided != 1 {
		t.Fatalf("voided = %d, want 1", voided)
	}
	// Nobody left in line: the held seat returns to open capacity.
	if len(fx.courses.deltas) != 1 || fx.courses.deltas[0] != (capacityDelta{7, 1}) {
		t.Fatalf("capacity deltas = %v, want one +1 on course 7", fx.courses.deltas)
	}
}

func TestSweepSkipsSettledInvoice(t *testing.T) {
	fx := newWaitlistFixture()
	uid := uint64(1)
	// Listed as expired but paid before the sweep could void it.
	fx.invoices.invoices = []*model.WaitListInvoice{{
		ID: 1, UserID: &uid, CourseID: 7, Email: "ada@example.com",
		Expires: fx.now.Add(-time.Minute), InvoiceID: "in_raced", Paid: true,
	}}
	// ListExpired in the fake honors Paid, so simulate the race by
	// feeding the stale snapshot straight to the conditional update.
	ok, err := fx.invoices.MarkVoided(context.Background(), 1)
	if err != nil {
		t.Fatal(err)
	}
	if ok {
		t.Fatal("void of a paid invoice must not win")
	}

	voided, err := fx.svc.SweepExpiredInvoices(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if voided != 0 {
		t.Fatalf("voided = %d, want 0", voided)
	}
	if len(fx.pay.voided) != 0 || len(fx.courses.deltas) != 0 {
		t.Fatal("settled invoice must leave provider and capacity untouched")
	}
}

func TestSweepResumesStuckHandOff(t *testing.T) {
	fx := newWaitlistFixture()
	uid := uint64(1)
	// Voided by an earlier sweep that failed before moving the seat.
	fx.invoices.invoices = []*model.WaitListInvoice{{
		ID: 1, UserID: &uid, CourseID: 7, Email: "ada@example.com",
		Expires: fx.now.Add(-2 * time.Hour), InvoiceID: "in_stuck", Voided: true,
	}}
	fx.invoices.nextID = 1
	fx.queue(31, 3, -time.Hour)

	voided, err := fx.svc.SweepExpiredInvoices(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if voided != 0 {
		t.Fatalf("voided = %d, want 0: nothing newly expired", voided)
	}
	if len(fx.pay.sent) != 1 || fx.pay.sent[0].customerID != "cus_cam" {
		t.Fatalf("stuck seat not re-offered: %+v", fx.pay.sent)
	}
	if !fx.invoices.invoices[0].SeatReleased {
		t.Fatal("hand-off not recorded on the voided invoice")
	}
	if len(fx.courses.deltas) != 0 {
		t.Fatalf("capacity adjusted %v despite a re-offer", fx.courses.deltas)
	}

	// The next sweep finds nothing left to hand off.
	if _, err := fx.svc.SweepExpiredInvoices(context.Background()); err != nil {
		t.Fatal(err)
	}
	if len(fx.pay.sent) != 1 || len(fx.courses.deltas) != 0 {
		t.Fatal("recorded hand-off must not repeat")
	}
}

func TestInvoicePaidEnrolls(t *testing.T) {
	fx := newWaitlistFixture()
	uid := uint64(1)
	fx.invoices.invoices = []*model.WaitListInvoice{{
		ID: 1, UserID: &uid, CourseID: 7, Email: "ada@example.com",
		Expires: fx.now.Add(time.Hour), InvoiceID: "in_live",
	}}

	if err := fx.svc.InvoicePaid(context.Background(), "in_live"); err != nil {
		t.Fatal(err)
	}
	if !fx.invoices.invoices[0].Paid {
		t.Fatal("invoice not marked paid")
	}
	if len(fx.courses.deltas) != 1 || fx.courses.deltas[0] != (capacityDelta{7, 1}) {
		t.Fatalf("capacity deltas = %v, want one +1 on course 7", fx.courses.deltas)
	}
	if len(fx.orders.fulfills) != 1 {
		t.Fatalf("fulfillments = %d, want 1", len(fx.orders.fulfills))
	}
	call := fx.orders.fulfills[0]
	if call.userID != 1 || call.ref.InvoiceID != "in_live" {
		t.Errorf("fulfill call = %+v", call)
	}
	if len(call.selections) != 1 || call.selections[0].CourseID != 7 {
		t.Errorf("selections = %+v", call.selections)
	}

	// Replayed webhook delivery is a no-op.
	if err := fx.svc.InvoicePaid(context.Background(), "in_live"); err != nil {
		t.Fatal(err)
	}
	if len(fx.orders.fulfills) != 1 || len(fx.courses.deltas) != 1 {
		t.Fatal("replay must not fulfill or adjust capacity again")
	}
}

func TestInvoicePaidResumesAfterFailure(t *testing.T) {
	fx := newWaitlistFixture()
	uid := uint64(1)
	fx.invoices.invoices = []*model.WaitListInvoice{{
		ID: 1, UserID: &uid, CourseID: 7, Email: "ada@example.com",
		Expires: fx.now.Add(time.Hour), InvoiceID: "in_flaky",
	}}
	fx.orders.failSeatOffer = fmt.Errorf("deadlock; try restarting transaction")

	// First delivery: the paid flag commits, then fulfillment fails.
	if err := fx.svc.InvoicePaid(context.Background(), "in_flaky"); err == nil {
		t.Fatal("first delivery should surface the fulfillment error")
	}
	if !fx.invoices.invoices[0].Paid {
		t.Fatal("invoice should be marked paid by the first delivery")
	}
	if len(fx.courses.deltas) != 0 || len(fx.orders.fulfills) != 0 {
		t.Fatal("failed fulfillment must leave capacity and ledger untouched")
	}

	// Redelivery finds the invoice already paid but the ledger empty
	// and completes the enrollment.
	if err := fx.svc.InvoicePaid(context.Background(), "in_flaky"); err != nil {
		t.Fatal(err)
	}
	if len(fx.courses.deltas) != 1 || fx.courses.deltas[0] != (capacityDelta{7, 1}) {
		t.Fatalf("capacity deltas = %v, want one +1 on course 7", fx.courses.deltas)
	}
	if len(fx.orders.fulfills) != 1 || fx.orders.fulfills[0].ref.InvoiceID != "in_flaky" {
		t.Fatalf("fulfillments = %+v", fx.orders.fulfills)
	}

	// A third delivery is a pure no-op.
	if err := fx.svc.InvoicePaid(context.Background(), "in_flaky"); err != nil {
		t.Fatal(err)
	}
	if len(fx.orders.fulfills) != 1 || len(fx.courses.deltas) != 1 {
		t.Fatal("settled invoice must not fulfill or adjust capacity again")
	}
}

func TestInvoicePaidAfterVoidNoOps(t *testing.T) {
	fx := newWaitlistFixture()
	uid := uint64(1)
	fx.invoices.invoices = []*model.WaitListInvoice{{
		ID: 1, UserID: &uid, CourseID: 7, Email: "ada@example.com",
		Expires: fx.now.Add(-time.Hour), InvoiceID: "in_late", Voided: true,
	}}

	if err := fx.svc.InvoicePaid(context.Background(), "in_late"); err != nil {
		t.Fatal(err)
	}
	if len(fx.orders.fulfills) != 0 || len(fx.courses.deltas) != 0 {
		t.Fatal("payment after void must be ignored")
	}
}

func TestInvoicePaidDeletedUserReleasesSeat(t *testing.T) {
	fx := newWaitlistFixture()
	fx.invoices.invoices = []*model.WaitListInvoice{{
		ID: 1, CourseID: 7, Email: "gone@example.com",
		Expires: fx.now.Add(time.Hour), InvoiceID: "in_orphan",
	}}

	if err := fx.svc.InvoicePaid(context.Background(), "in_orphan"); err != nil {
		t.Fatal(err)
	}
	if len(fx.courses.deltas) != 1 || fx.courses.deltas[0] != (capacityDelta{7, 1}) {
		t.Fatalf("capacity deltas = %v, want one +1 on course 7", fx.courses.deltas)
	}
	if len(fx.orders.fulfills) != 0 {
		t.Fatal("no enrollment without a user account")
	}
}
