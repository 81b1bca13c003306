// Package jobs holds background loops started alongside the HTTP
// server.
package jobs

import (
	"context"
	"log"
	"time"

	"github.com/skagit-alpine-club/registration-server/internal/service"
)

// StartInvoiceSweep runs the expired-offer sweep on a fixed interval
// until the context is cancelled.  The sweep itself is idempotent, so a
// tick overlapping a slow predecessor is harmless.
func StartInvoiceSweep(ctx context.Context, w *service.Waitlist, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			sweepCtx, cancel := context.WithTimeout(ctx, interval)
			voided, err := w.SweepExpiredInvoices(sweepCtx)
			cancel()
			if err != nil {
				log.Printf("invoice-sweep: %v", err)
				continue
			}
			if voided > 0 {
				log.Printf("invoice-sweep: voided %d expired seat offers", voided)
			}
		}
	}
}
