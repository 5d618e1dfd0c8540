// Package dispute owns the dispute lifecycle over escrowed booking funds.
// A dispute opens against a held escrow and resolves exactly once; resolved
// is terminal and there is no reopen path.
package dispute

import (
	"context"
	"fmt"
	"log"
	"time"

	"parkhive-bend/apperr"
	"parkhive-bend/events"
	"parkhive-bend/models"
	"parkhive-bend/payments"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Store is the dispute persistence contract.
type Store interface {
	Insert(ctx context.Context, dispute models.Dispute) error
	FindByID(ctx context.Context, id primitive.ObjectID) (models.Dispute, error)
	AppendTimeline(ctx context.Context, id primitive.ObjectID, entry models.TimelineEntry) error
	IncAttempts(ctx context.Context, id primitive.ObjectID) (int, error)
	MarkResolved(ctx context.Context, id primitive.ObjectID, resolution models.Resolution) (bool, error)
}

// BookingReader looks bookings up by id.
type BookingReader interface {
	FindByID(ctx context.Context, id primitive.ObjectID) (models.Booking, error)
}

// EscrowReader looks escrow records up by id.
type EscrowReader interface {
	FindByID(ctx context.Context, id primitive.ObjectID) (models.EscrowRecord, error)
}

// Ledger is the slice of the escrow ledger resolutions drive. The release
// variant names the resolving dispute so the ledger's open-dispute guard
// does not block the resolution itself.
type Ledger interface {
	ReleaseForDispute(ctx context.Context, id primitive.ObjectID, actor string, disputeID primitive.ObjectID) error
	Refund(ctx context.Context, id primitive.ObjectID, amount float64, actor, opKey, extKey string) error
}

// BookingCanceller cancels a booking whose escrow a dispute fully refunded.
type BookingCanceller interface {
	CancelFromDispute(ctx context.Context, bookingID primitive.ObjectID, disputeID string) error
}

// AuditStore persists admin-action audit records.
type AuditStore interface {
	Insert(ctx context.Context, key string, obj interface{}) error
}

// Workflow is the dispute state machine.
type Workflow struct {
	store    Store
	bookings BookingReader
	escrows  EscrowReader
	ledger   Ledger
	engine   BookingCanceller
	audit    AuditStore
	bus      *events.Bus
}

// NewWorkflow wires a dispute workflow.
func NewWorkflow(store Store, bookings BookingReader, escrows EscrowReader, ledger Ledger, engine BookingCanceller, audit AuditStore, bus *events.Bus) *Workflow {
	return &Workflow{
		store:    store,
		bookings: bookings,
		escrows:  escrows,
		ledger:   ledger,
		engine:   engine,
		audit:    audit,
		bus:      bus,
	}
}

// Open raises a dispute over a confirmed or completed booking whose escrow
// is still held.
func (w *Workflow) Open(ctx context.Context, raisedBy primitive.ObjectID, req models.OpenDisputeReq) (models.Dispute, error) {
	bookingID, err := primitive.ObjectIDFromHex(req.BookingID)
	if err != nil {
		return models.Dispute{}, apperr.New(apperr.Validation, "invalid booking id")
	}

	booking, err := w.bookings.FindByID(ctx, bookingID)
	if err != nil {
		return models.Dispute{}, apperr.Wrap(apperr.NotFound, err, "booking %s not found", req.BookingID)
	}
	if booking.RequesterID != raisedBy && booking.OwnerID != raisedBy {
		return models.Dispute{}, apperr.New(apperr.Forbidden, "booking not available to actor")
	}
	if booking.Status != models.BookingConfirmed && booking.Status != models.BookingCompleted {
		return models.Dispute{}, apperr.New(apperr.InvalidState, "booking %s is %s, cannot be disputed", req.BookingID, booking.Status)
	}

	rec, err := w.escrows.FindByID(ctx, booking.EscrowID)
	if err != nil {
		return models.Dispute{}, apperr.Wrap(apperr.NotFound, err, "escrow for booking %s not found", req.BookingID)
	}
	if rec.Status != models.EscrowHeld {
		return models.Dispute{}, apperr.New(apperr.InvalidState, "escrow %s is %s, cannot be disputed", rec.ID.Hex(), rec.Status)
	}

	if req.AmountInQuestion <= 0 {
		return models.Dispute{}, apperr.New(apperr.Validation, "disputed amount must be positive")
	}
	if req.AmountInQuestion > rec.AmountHeld {
		return models.Dispute{}, apperr.New(apperr.Validation, "disputed amount %.2f exceeds held amount %.2f", req.AmountInQuestion, rec.AmountHeld)
	}

	now := time.Now().UTC()
	dispute := models.Dispute{
		ID:               primitive.NewObjectID(),
		BookingID:        booking.ID,
		EscrowID:         rec.ID,
		RaisedBy:         raisedBy,
		AmountInQuestion: req.AmountInQuestion,
		Details:          req.Details,
		Status:           models.DisputeOpen,
		Timeline: []models.TimelineEntry{{
			EntryID:   uuid.New().String(),
			Status:    models.DisputeOpen,
			Detail:    fmt.Sprintf("dispute opened over %.2f %s", req.AmountInQuestion, rec.Currency),
			Timestamp: now,
		}},
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := w.store.Insert(ctx, dispute); err != nil {
		return models.Dispute{}, err
	}

	w.bus.Publish(events.Event{Type: events.DisputeOpened, Dispute: &dispute, Booking: &booking})

	return dispute, nil
}

// Resolve settles an open dispute. The dispute is marked resolved only
// after the fund movement succeeded or was confirmed already applied; a
// failed movement leaves the dispute open with a failed-attempt timeline
// entry, and the caller retries.
func (w *Workflow) Resolve(ctx context.Context, disputeID, resolvedBy primitive.ObjectID, req models.ResolveDisputeReq) (models.Dispute, error) {
	dispute, err := w.store.FindByID(ctx, disputeID)
	if err != nil {
		return models.Dispute{}, apperr.Wrap(apperr.NotFound, err, "dispute %s not found", disputeID.Hex())
	}
	if dispute.Status != models.DisputeOpen {
		return models.Dispute{}, apperr.New(apperr.InvalidState, "dispute %s is already resolved", disputeID.Hex())
	}

	refundAmount := 0.0
	switch req.Decision {
	case models.DecisionApprove:
	case models.DecisionRefund:
		refundAmount = dispute.AmountInQuestion
	case models.DecisionPartialRefund:
		if req.RefundAmount <= 0 || req.RefundAmount >= dispute.AmountInQuestion {
			return models.Dispute{}, apperr.New(apperr.Validation, "partial refund must be between 0 and the disputed amount")
		}
		refundAmount = req.RefundAmount
	default:
		return models.Dispute{}, apperr.New(apperr.Validation, "unknown decision %q", req.Decision)
	}

	// the attempt counter is durable before any external call: a crash
	// mid-refund leaves a counted attempt, not a lost one
	attempt, err := w.store.IncAttempts(ctx, disputeID)
	if err != nil {
		return models.Dispute{}, err
	}

	opKey := "dispute:" + disputeID.Hex()
	extKey := payments.DeriveKey(opKey, attempt)
	actor := resolvedBy.Hex()

	switch req.Decision {
	case models.DecisionApprove:
		err = w.ledger.ReleaseForDispute(ctx, dispute.EscrowID, actor, disputeID)
	default:
		err = w.ledger.Refund(ctx, dispute.EscrowID, refundAmount, actor, opKey, extKey)
	}
	if err != nil {
		detail := fmt.Sprintf("resolution attempt %d (%s) failed: %v", attempt, req.Decision, err)
		if tlErr := w.timeline(ctx, disputeID, models.DisputeOpen, detail); tlErr != nil {
			log.Printf("resolve_dispute: failed to record failed attempt on %s: %v", disputeID.Hex(), tlErr)
		}
		return models.Dispute{}, err
	}

	resolution := models.Resolution{
		Decision:     req.Decision,
		RefundAmount: refundAmount,
		Notes:        req.Notes,
		ResolvedBy:   resolvedBy,
		ResolvedAt:   time.Now().UTC(),
	}

	ok, err := w.store.MarkResolved(ctx, disputeID, resolution)
	if err != nil {
		return models.Dispute{}, err
	}
	if !ok {
		// another resolver won; the fund movement was idempotent under the
		// operation key so nothing moved twice
		return models.Dispute{}, apperr.New(apperr.InvalidState, "dispute %s is already resolved", disputeID.Hex())
	}

	if err := w.timeline(ctx, disputeID, models.DisputeResolved,
		fmt.Sprintf("resolved as %s by %s", req.Decision, actor)); err != nil {
		log.Printf("resolve_dispute: failed to append timeline on %s: %v", disputeID.Hex(), err)
	}

	adminRecord := models.AdminAudit{
		ID:        primitive.NewObjectID(),
		Actor:     resolvedBy,
		Action:    "dispute_resolved:" + req.Decision,
		TargetID:  disputeID,
		Detail:    fmt.Sprintf("refund %.2f of disputed %.2f; notes: %s", refundAmount, dispute.AmountInQuestion, req.Notes),
		CreatedAt: time.Now().UTC(),
	}
	if err := w.audit.Insert(ctx, "admin_audit", adminRecord); err != nil {
		log.Printf("resolve_dispute: failed to record admin audit for %s: %v", disputeID.Hex(), err)
	}

	// a fully drained escrow cancels the stay
	if refundAmount > 0 {
		if rec, recErr := w.escrows.FindByID(ctx, dispute.EscrowID); recErr == nil && rec.Status == models.EscrowRefunded {
			if cancelErr := w.engine.CancelFromDispute(ctx, dispute.BookingID, disputeID.Hex()); cancelErr != nil {
				log.Printf("resolve_dispute: failed to cancel booking %s: %v", dispute.BookingID.Hex(), cancelErr)
			}
		}
	}

	dispute.Status = models.DisputeResolved
	dispute.Resolution = &resolution
	dispute.ResolutionAttempts = attempt
	dispute.UpdatedAt = resolution.ResolvedAt

	w.bus.Publish(events.Event{Type: events.DisputeResolved, Dispute: &dispute})

	return dispute, nil
}

func (w *Workflow) timeline(ctx context.Context, id primitive.ObjectID, status, detail string) error {
	return w.store.AppendTimeline(ctx, id, models.TimelineEntry{
		EntryID:   uuid.New().String(),
		Status:    status,
		Detail:    detail,
		Timestamp: time.Now().UTC(),
	})
}
