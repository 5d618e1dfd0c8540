// Package booking owns the booking lifecycle: pending bookings move to
// confirmed only when availability and payment authorization succeed as one
// unit, and confirmed bookings end in cancellation or completion.
package booking

import (
	"context"
	"log"
	"time"

	"parkhive-bend/apperr"
	"parkhive-bend/events"
	"parkhive-bend/models"
	"parkhive-bend/payments"
	"parkhive-bend/pricing"
	"parkhive-bend/utils/locks"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Store is the booking persistence contract.
type Store interface {
	Insert(ctx context.Context, booking models.Booking) error
	FindByID(ctx context.Context, id primitive.ObjectID) (models.Booking, error)
	FindConfirmedOverlapping(ctx context.Context, resourceID string, start, end time.Time, exclude primitive.ObjectID) ([]models.Booking, error)
	ConfirmPending(ctx context.Context, id, escrowID primitive.ObjectID) (bool, error)
	MarkCancelled(ctx context.Context, id primitive.ObjectID, from string, reason models.CancelReason, note string) (bool, error)
	MarkCompleted(ctx context.Context, id primitive.ObjectID) (bool, error)
	PoolPendingBefore(ctx context.Context, cutoff time.Time) ([]models.Booking, error)
	PoolDueCompletion(ctx context.Context, now time.Time) ([]models.Booking, error)
}

// RateStore looks up the rate schedule of a parking space.
type RateStore interface {
	FindByResourceID(ctx context.Context, resourceID string) (models.RateSchedule, error)
}

// UserStore looks up users for payment references.
type UserStore interface {
	FindUser(ctx context.Context, id primitive.ObjectID) (models.User, error)
}

// DisputeReader answers whether open disputes reference a booking.
type DisputeReader interface {
	FindOpenByBookingID(ctx context.Context, bookingID primitive.ObjectID) ([]models.Dispute, error)
}

// Ledger is the slice of the escrow ledger the engine drives.
type Ledger interface {
	Hold(ctx context.Context, bookingID primitive.ObjectID, amount float64, currency, actor string) (models.EscrowRecord, error)
	AttachAuthorization(ctx context.Context, id primitive.ObjectID, paymentRef, actor string) error
	VoidHold(ctx context.Context, id primitive.ObjectID, detail string) error
	Release(ctx context.Context, id primitive.ObjectID, actor string) error
	Refund(ctx context.Context, id primitive.ObjectID, amount float64, actor, opKey, extKey string) error
}

// Engine is the booking state machine.
type Engine struct {
	bookings Store
	rates    RateStore
	users    UserStore
	disputes DisputeReader
	ledger   Ledger
	proc     payments.Processor
	bus      *events.Bus
	resLocks *locks.Keyed

	// releaseAfterStart is the cancellation policy for confirmed bookings
	// cancelled after their start time: release to owner (true) or refund
	// the requester (false). Cancelling before the start always refunds.
	releaseAfterStart bool

	now func() time.Time
}

// NewEngine wires a booking engine.
func NewEngine(bookings Store, rates RateStore, users UserStore, disputes DisputeReader, ledger Ledger, proc payments.Processor, bus *events.Bus, releaseAfterStart bool) *Engine {
	return &Engine{
		bookings:          bookings,
		rates:             rates,
		users:             users,
		disputes:          disputes,
		ledger:            ledger,
		proc:              proc,
		bus:               bus,
		resLocks:          locks.NewKeyed(),
		releaseAfterStart: releaseAfterStart,
		now:               func() time.Time { return time.Now().UTC() },
	}
}

// RequestBooking creates a pending booking with its price computed from the
// resource's rate schedule. No funds move yet.
func (e *Engine) RequestBooking(ctx context.Context, requesterID primitive.ObjectID, req models.BookingReq) (models.Booking, error) {
	if req.ResourceID == "" {
		return models.Booking{}, apperr.New(apperr.Validation, "resource id is missing")
	}
	if req.StartTime.IsZero() || req.EndTime.IsZero() || !req.StartTime.Before(req.EndTime) {
		return models.Booking{}, apperr.New(apperr.Validation, "interval start must be before end")
	}

	ownerID, err := primitive.ObjectIDFromHex(req.OwnerID)
	if err != nil {
		return models.Booking{}, apperr.New(apperr.Validation, "invalid owner id")
	}
	if ownerID == requesterID {
		return models.Booking{}, apperr.New(apperr.Validation, "cannot book your own space")
	}

	schedule, err := e.rates.FindByResourceID(ctx, req.ResourceID)
	if err != nil {
		return models.Booking{}, apperr.Wrap(apperr.Validation, err, "no rate schedule for resource %s", req.ResourceID)
	}

	price, err := pricing.Price(req.StartTime, req.EndTime, schedule)
	if err != nil {
		return models.Booking{}, err
	}

	now := e.now()
	booking := models.Booking{
		ID:          primitive.NewObjectID(),
		ResourceID:  req.ResourceID,
		RequesterID: requesterID,
		OwnerID:     ownerID,
		StartTime:   req.StartTime.UTC(),
		EndTime:     req.EndTime.UTC(),
		VehicleType: req.VehicleType,
		TotalPrice:  price,
		Currency:    schedule.Currency,
		Status:      models.BookingPending,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	if err := e.bookings.Insert(ctx, booking); err != nil {
		return models.Booking{}, err
	}
	return booking, nil
}

// ConfirmBooking re-checks availability and authorizes payment under the
// resource's mutual-exclusion key, then flips the booking to confirmed with
// a conditional write. Exactly one of two racing confirmations on
// overlapping intervals can win.
func (e *Engine) ConfirmBooking(ctx context.Context, bookingID, actorID primitive.ObjectID) (models.Booking, error) {
	booking, err := e.bookings.FindByID(ctx, bookingID)
	if err != nil {
		return models.Booking{}, apperr.Wrap(apperr.NotFound, err, "booking %s not found", bookingID.Hex())
	}
	if booking.RequesterID != actorID {
		return models.Booking{}, apperr.New(apperr.Forbidden, "booking not available to actor")
	}
	if booking.Status != models.BookingPending {
		return models.Booking{}, apperr.New(apperr.InvalidState, "booking %s already processed (%s)", bookingID.Hex(), booking.Status)
	}

	unlock := e.resLocks.Lock(booking.ResourceID)
	defer unlock()

	conflicting, err := e.CheckAvailability(ctx, booking.ResourceID, booking.StartTime, booking.EndTime, booking.ID)
	if err != nil {
		return models.Booking{}, err
	}
	if len(conflicting) > 0 {
		return models.Booking{}, apperr.New(apperr.Conflict, "spot no longer available, conflicts with %v", hexIDs(conflicting))
	}

	requester, err := e.users.FindUser(ctx, booking.RequesterID)
	if err != nil {
		return models.Booking{}, apperr.Wrap(apperr.NotFound, err, "requester not found")
	}
	if requester.PayerRef == "" {
		return models.Booking{}, apperr.New(apperr.Validation, "requester has no payment method on file")
	}

	// durable intent before the external authorization call
	rec, err := e.ledger.Hold(ctx, booking.ID, booking.TotalPrice, booking.Currency, actorID.Hex())
	if err != nil {
		return models.Booking{}, err
	}

	paymentRef, err := e.proc.Authorize(ctx, booking.TotalPrice, booking.Currency, requester.PayerRef, "confirm:"+booking.ID.Hex())
	if err != nil {
		if voidErr := e.ledger.VoidHold(ctx, rec.ID, "authorization failed"); voidErr != nil {
			log.Printf("confirm_booking: failed to void hold %s: %v", rec.ID.Hex(), voidErr)
		}
		return models.Booking{}, err
	}

	if err := e.ledger.AttachAuthorization(ctx, rec.ID, paymentRef, actorID.Hex()); err != nil {
		return models.Booking{}, err
	}

	ok, err := e.bookings.ConfirmPending(ctx, booking.ID, rec.ID)
	if err != nil {
		return models.Booking{}, err
	}
	if !ok {
		// the booking left pending while we were authorizing (e.g. a
		// concurrent cancel); reverse the capture through the ledger so the
		// hold record keeps the durable trail either way
		opKey := "void:" + rec.ID.Hex()
		if refundErr := e.ledger.Refund(ctx, rec.ID, booking.TotalPrice, actorID.Hex(), opKey, opKey); refundErr != nil {
			// the captured funds stay on the held record with a failed-refund
			// audit entry; a later retry under the same operation key is safe
			log.Printf("confirm_booking: failed to reverse authorization %s: %v", paymentRef, refundErr)
		}
		return models.Booking{}, apperr.New(apperr.InvalidState, "booking %s already processed", bookingID.Hex())
	}

	booking.Status = models.BookingConfirmed
	booking.EscrowID = rec.ID
	booking.UpdatedAt = e.now()

	e.bus.Publish(events.Event{Type: events.BookingConfirmed, Booking: &booking})

	return booking, nil
}

// CancelBooking cancels a pending or confirmed booking. For confirmed
// bookings the escrow moves first (refund in full before the start; after
// the start, release or refund per policy) and the status flips only once
// the funds are settled, so a failed movement leaves a retryable booking.
func (e *Engine) CancelBooking(ctx context.Context, bookingID, actorID primitive.ObjectID, reason string) (models.Booking, error) {
	booking, err := e.bookings.FindByID(ctx, bookingID)
	if err != nil {
		return models.Booking{}, apperr.Wrap(apperr.NotFound, err, "booking %s not found", bookingID.Hex())
	}
	if booking.RequesterID != actorID && booking.OwnerID != actorID {
		return models.Booking{}, apperr.New(apperr.Forbidden, "booking not available to actor")
	}

	switch booking.Status {
	case models.BookingPending:
		ok, err := e.bookings.MarkCancelled(ctx, booking.ID, models.BookingPending, models.ManualCancellation, reason)
		if err != nil {
			return models.Booking{}, err
		}
		if !ok {
			return models.Booking{}, apperr.New(apperr.InvalidState, "booking %s already processed", bookingID.Hex())
		}

	case models.BookingConfirmed:
		now := e.now()
		if !now.Before(booking.EndTime) {
			return models.Booking{}, apperr.New(apperr.InvalidState, "stay has ended, booking %s completes instead", bookingID.Hex())
		}

		open, err := e.disputes.FindOpenByBookingID(ctx, booking.ID)
		if err != nil {
			return models.Booking{}, err
		}
		if len(open) > 0 {
			return models.Booking{}, apperr.New(apperr.InvalidState, "booking %s has an open dispute", bookingID.Hex())
		}

		unlock := e.resLocks.Lock(booking.ResourceID)
		defer unlock()

		opKey := "cancel:" + booking.ID.Hex()
		if now.Before(booking.StartTime) || !e.releaseAfterStart {
			err = e.ledger.Refund(ctx, booking.EscrowID, booking.TotalPrice, actorID.Hex(), opKey, opKey)
		} else {
			err = e.ledger.Release(ctx, booking.EscrowID, actorID.Hex())
		}
		if err != nil {
			// booking stays confirmed; the operation key makes a retry safe
			return models.Booking{}, err
		}

		ok, err := e.bookings.MarkCancelled(ctx, booking.ID, models.BookingConfirmed, models.ManualCancellation, reason)
		if err != nil {
			return models.Booking{}, err
		}
		if !ok {
			return models.Booking{}, apperr.New(apperr.InvalidState, "booking %s already processed", bookingID.Hex())
		}

	default:
		return models.Booking{}, apperr.New(apperr.InvalidState, "booking %s is %s, cannot cancel", bookingID.Hex(), booking.Status)
	}

	booking.Status = models.BookingCancelled
	booking.CancelNote = reason
	booking.UpdatedAt = e.now()

	e.bus.Publish(events.Event{Type: events.BookingCancelled, Booking: &booking})

	return booking, nil
}

// CompleteBooking finishes a confirmed booking once its interval has ended,
// releasing the escrowed funds to the owner. Blocked while a dispute is
// open.
func (e *Engine) CompleteBooking(ctx context.Context, bookingID primitive.ObjectID, actor string) (models.Booking, error) {
	booking, err := e.bookings.FindByID(ctx, bookingID)
	if err != nil {
		return models.Booking{}, apperr.Wrap(apperr.NotFound, err, "booking %s not found", bookingID.Hex())
	}
	if booking.Status != models.BookingConfirmed {
		return models.Booking{}, apperr.New(apperr.InvalidState, "booking %s is %s, cannot complete", bookingID.Hex(), booking.Status)
	}
	if e.now().Before(booking.EndTime) {
		return models.Booking{}, apperr.New(apperr.InvalidState, "booking %s interval has not ended", bookingID.Hex())
	}

	open, err := e.disputes.FindOpenByBookingID(ctx, booking.ID)
	if err != nil {
		return models.Booking{}, err
	}
	if len(open) > 0 {
		return models.Booking{}, apperr.New(apperr.InvalidState, "booking %s has an open dispute", bookingID.Hex())
	}

	unlock := e.resLocks.Lock(booking.ResourceID)
	defer unlock()

	if err := e.ledger.Release(ctx, booking.EscrowID, actor); err != nil {
		return models.Booking{}, err
	}

	ok, err := e.bookings.MarkCompleted(ctx, booking.ID)
	if err != nil {
		return models.Booking{}, err
	}
	if !ok {
		return models.Booking{}, apperr.New(apperr.InvalidState, "booking %s left confirmed during completion", bookingID.Hex())
	}

	booking.Status = models.BookingCompleted
	booking.UpdatedAt = e.now()

	e.bus.Publish(events.Event{Type: events.BookingCompleted, Booking: &booking})

	return booking, nil
}

// CancelFromDispute flips a confirmed booking to cancelled as the outcome
// of a fully refunded dispute. The escrow has already been settled by the
// dispute workflow.
func (e *Engine) CancelFromDispute(ctx context.Context, bookingID primitive.ObjectID, disputeID string) error {
	ok, err := e.bookings.MarkCancelled(ctx, bookingID, models.BookingConfirmed, models.DisputeCancellation, "dispute "+disputeID+" fully refunded")
	if err != nil {
		return err
	}
	if !ok {
		// completed bookings keep their status; the refund already stands
		return nil
	}

	booking, err := e.bookings.FindByID(ctx, bookingID)
	if err == nil {
		e.bus.Publish(events.Event{Type: events.BookingCancelled, Booking: &booking})
	}
	return nil
}

func hexIDs(ids []primitive.ObjectID) []string {
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		out = append(out, id.Hex())
	}
	return out
}
