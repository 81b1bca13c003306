package handler

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/skagit-alpine-club/registration-server/internal/model"
	"github.com/skagit-alpine-club/registration-server/internal/payments"
	"github.com/skagit-alpine-club/registration-server/internal/service"
)

type stubVerifier struct {
	event payments.WebhookEvent
	err   error
}

func (s *stubVerifier) VerifyEvent(_ []byte, _ string) (payments.WebhookEvent, error) {
	return s.event, s.err
}

type stubFulfillCall struct {
	userID     uint64
	ref        model.PaymentRef
	selections []model.CourseSelection
}

type stubOrders struct {
	fulfills []stubFulfillCall
	courses  *stubCourses
}

func (s *stubOrders) Fulfill(_ context.Context, userID uint64, ref model.PaymentRef, selections []model.CourseSelection) (*model.PaymentRecord, error) {
	s.fulfills = append(s.fulfills, stubFulfillCall{userID, ref, selections})
	return &model.PaymentRecord{ID: uint64(len(s.fulfills)), UserID: userID}, nil
}

func (s *stubOrders) FulfillSeatOffer(ctx context.Context, userID uint64, ref model.PaymentRef, courseID uint64) (*model.PaymentRecord, error) {
	if s.courses != nil {
		_ = s.courses.AdjustCapacity(ctx, courseID, 1)
	}
	s.fulfills = append(s.fulfills, stubFulfillCall{userID, ref, []model.CourseSelection{{CourseID: courseID}}})
	return &model.PaymentRecord{ID: uint64(len(s.fulfills)), UserID: userID, InvoiceID: ref.InvoiceID}, nil
}

func (s *stubOrders) PurchaseForUser(_ context.Context, _, _ uint64) (*model.CourseBought, error) {
	return nil, sql.ErrNoRows
}

func (s *stubOrders) PaymentIntentForRecord(_ context.Context, _ uint64) (string, error) {
	return "", nil
}

func (s *stubOrders) FinalizeRefund(_ context.Context, _, _, _ uint64, _ string) error {
	return errors.New("not used")
}

type stubCourses struct {
	deltas []int32
}

func (s *stubCourses) GetByID(_ context.Context, id uint64) (*model.Course, error) {
	return &model.Course{ID: id, TypeName: "Basic Climbing", Capacity: 10}, nil
}

func (s *stubCourses) AdjustCapacity(_ context.Context, _ uint64, delta int32) error {
	s.deltas = append(s.deltas, delta)
	return nil
}

type stubInvoices struct {
	invoices []*model.WaitListInvoice
}

func (s *stubInvoices) Create(_ context.Context, _ *model.WaitListInvoice) error {
	return errors.New("not used")
}

func (s *stubInvoices) GetByInvoiceID(_ context.Context, invoiceID string) (*model.WaitListInvoice, error) {
	for _, inv := range s.invoices {
		if inv.InvoiceID == invoiceID {
			cp := *inv
			return &cp, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (s *stubInvoices) ListExpired(_ context.Context, _ time.Time) ([]model.WaitListInvoice, error) {
	return nil, nil
}

func (s *stubInvoices) ListVoidedUnreleased(_ context.Context) ([]model.WaitListInvoice, error) {
	return nil, nil
}

func (s *stubInvoices) MarkVoided(_ context.Context, _ uint64) (bool, error) {
	return false, nil
}

func (s *stubInvoices) MarkSeatReleased(_ context.Context, _ uint64) (bool, error) {
	return false, nil
}

func (s *stubInvoices) MarkPaidByInvoiceID(_ context.Context, invoiceID string) (bool, error) {
	for _, inv := range s.invoices {
		if inv.InvoiceID == invoiceID && inv.Pending() {
			inv.Paid = true
			return true, nil
		}
	}
	return false, nil
}

type webhookFixture struct {
	verifier *stubVerifier
	orders   *stubOrders
	courses  *stubCourses
	invoices *stubInvoices
	h        *WebhookHandler
}

func newWebhookFixture() *webhookFixture {
	fx := &webhookFixture{
		verifier: &stubVerifier{},
		orders:   &stubOrders{},
		courses:  &stubCourses{},
		invoices: &stubInvoices{},
	}
	fx.orders.courses = fx.courses
	waitlist := service.NewWaitlist(fx.courses, nil, fx.invoices, nil, nil, fx.orders, nil)
	waitlist.PublishInvoiceIssued = nil
	fulfillment := service.NewFulfillment(fx.courses, fx.orders, nil, nil, waitlist, nil)
	fulfillment.PublishEnrollmentConfirmed = nil
	fx.h = NewWebhookHandler(fx.verifier, fulfillment, waitlist)
	return fx
}

func (fx *webhookFixture) deliver(t *testing.T, body string) *httptest.ResponseRecorder {
	t.Helper()
	e := echo.New()
	req := httptest.NewRequest(http.MethodPost, "/v1/payments/webhook", strings.NewReader(body))
	req.Header.Set("Stripe-Signature", "t=1,v1=test")
	rec := httptest.NewRecorder()
	if err := fx.h.Receive(e.NewContext(req, rec)); err != nil {
		t.Fatalf("Receive returned %v", err)
	}
	return rec
}

func TestWebhookRejectsBadSignature(t *testing.T) {
	fx := newWebhookFixture()
	fx.verifier.err = errors.New("signature mismatch")

	rec := fx.deliver(t, `{}`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
	if len(fx.orders.fulfills) != 0 {
		t.Fatal("unverified delivery must not be processed")
	}
}

func TestWebhookAcknowledgesUnknownEvents(t *testing.T) {
	fx := newWebhookFixture()
	fx.verifier.event = payments.WebhookEvent{Type: "customer.created", Data: []byte(`{}`)}

	rec := fx.deliver(t, `{}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
}

func TestWebhookCheckoutCompleted(t *testing.T) {
	fx := newWebhookFixture()
	selections, _ := json.Marshal([]model.CourseSelection{
		{CourseID: 7, ProductID: "prod_1", PriceID: "price_1"},
	})
	data, _ := json.Marshal(map[string]any{
		"id":             "cs_test_1",
		"payment_intent": "pi_test_1",
		"metadata": map[string]string{
			"user_id":    "42",
			"selections": string(selections),
		},
	})
	fx.verifier.event = payments.WebhookEvent{Type: "checkout.session.completed", Data: data}

	rec := fx.deliver(t, `{}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if len(fx.orders.fulfills) != 1 {
		t.Fatalf("fulfillments = %d, want 1", len(fx.orders.fulfills))
	}
	call := fx.orders.fulfills[0]
	if call.userID != 42 {
		t.Errorf("user = %d, want 42", call.userID)
	}
	if call.ref.CheckoutSessionID != "cs_test_1" || call.ref.PaymentIntentID != "pi_test_1" {
		t.Errorf("ref = %+v", call.ref)
	}
	if len(call.selections) != 1 || call.selections[0].CourseID != 7 {
		t.Errorf("selections = %+v", call.selections)
	}
}

func TestWebhookIgnoresForeignCheckoutSession(t *testing.T) {
	fx := newWebhookFixture()
	// A session created outside this service carries none of our metadata.
	fx.verifier.event = payments.WebhookEvent{
		Type: "checkout.session.completed",
		Data: []byte(`{"id": "cs_foreign", "payment_intent": "pi_x", "metadata": {}}`),
	}

	rec := fx.deliver(t, `{}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200 acknowledgement", rec.Code)
	}
	if len(fx.orders.fulfills) != 0 {
		t.Fatal("foreign session must not be fulfilled")
	}
}

func TestWebhookInvoicePaid(t *testing.T) {
	fx := newWebhookFixture()
	uid := uint64(9)
	fx.invoices.invoices = []*model.WaitListInvoice{{
		ID: 1, UserID: &uid, CourseID: 7, InvoiceID: "in_test_1",
		Expires: time.Now().Add(time.Hour),
	}}
	fx.verifier.event = payments.WebhookEvent{
		Type: "invoice.paid",
		Data: []byte(`{"id": "in_test_1"}`),
	}

	rec := fx.deliver(t, `{}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if !fx.invoices.invoices[0].Paid {
		t.Fatal("invoice not marked paid")
	}
	if len(fx.courses.deltas) != 1 || fx.courses.deltas[0] != 1 {
		t.Fatalf("capacity deltas = %v, want one +1", fx.courses.deltas)
	}
	if len(fx.orders.fulfills) != 1 || fx.orders.fulfills[0].ref.InvoiceID != "in_test_1" {
		t.Fatalf("fulfillments = %+v", fx.orders.fulfills)
	}
}
