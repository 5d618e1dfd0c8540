package booking

import (
	"context"
	"log"
	"time"

	"parkhive-bend/apperr"
	"parkhive-bend/models"
)

// PendingExpiryJob pools the bookings collection and auto cancels pending
// bookings not confirmed within the lock window. Pending bookings never
// block availability, so this is housekeeping, not a safety requirement.
func (e *Engine) PendingExpiryJob(sweep, maxAge time.Duration) {
	log.Println("starting pending booking expiry job")

	for {
		cutoff := e.now().Add(-maxAge)

		stale, err := e.bookings.PoolPendingBefore(context.Background(), cutoff)
		if err != nil {
			log.Printf("pending_expiry: error pooling bookings: %v", err)
			return
		}

		for _, booking := range stale {
			log.Printf("auto cancelling pending booking #%s", booking.ID.Hex())

			ok, err := e.bookings.MarkCancelled(context.Background(), booking.ID, models.BookingPending, models.AutoCancellation, "pending booking expired")
			if err != nil {
				log.Printf("pending_expiry: failed to cancel booking %s: %v", booking.ID.Hex(), err)
				return
			}
			if !ok {
				continue
			}

			booking.Status = models.BookingCancelled
			// expiry is silent: no event, nothing was ever confirmed
		}

		time.Sleep(sweep)
	}
}

// CompletionSweepJob completes confirmed bookings whose interval has ended.
// Bookings with an open dispute are skipped and picked up again once the
// dispute resolves.
func (e *Engine) CompletionSweepJob(sweep time.Duration) {
	log.Println("starting booking completion sweep job")

	for {
		due, err := e.bookings.PoolDueCompletion(context.Background(), e.now())
		if err != nil {
			log.Printf("completion_sweep: error pooling bookings: %v", err)
			return
		}

		for _, booking := range due {
			if _, err := e.CompleteBooking(context.Background(), booking.ID, "system"); err != nil {
				if apperr.Is(err, apperr.InvalidState) {
					continue
				}
				log.Printf("completion_sweep: failed to complete booking %s: %v", booking.ID.Hex(), err)
			}
		}

		time.Sleep(sweep)
	}
}
