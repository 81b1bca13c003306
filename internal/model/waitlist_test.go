package model

import (
	"testing"
	"time"
)

func TestWaitListInvoiceStates(t *testing.T) {
	expires := time.Date(2026, 2, 1, 12, 0, 0, 0, time.UTC)

	pending := WaitListInvoice{Expires: expires}
	if !pending.Pending() {
		t.Fatal("fresh invoice must be pending")
	}
	if pending.Expired(expires.Add(-time.Minute)) {
		t.Fatal("invoice before its deadline reported expired")
	}
	if !pending.Expired(expires) {
		t.Fatal("invoice at its deadline must be expired")
	}

	paid := WaitListInvoice{Expires: expires, Paid: true}
	if paid.Pending() {
		t.Fatal("paid invoice must not be pending")
	}
	if paid.Expired(expires.Add(time.Hour)) {
		t.Fatal("paid invoice must never report expired")
	}

	voided := WaitListInvoice{Expires: expires, Voided: true}
	if voided.Pending() || voided.Expired(expires.Add(time.Hour)) {
		t.Fatal("voided invoice must be neither pending nor expired")
	}
}
