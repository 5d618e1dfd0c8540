// Package escrow owns per-booking fund-hold records and their append-only
// audit trail.
package escrow

import (
	"context"
	"fmt"
	"log"
	"time"

	"parkhive-bend/apperr"
	"parkhive-bend/models"
	"parkhive-bend/payments"
	"parkhive-bend/utils/locks"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// amountEpsilon absorbs float accumulation when deciding whether a refund
// empties the hold.
const amountEpsilon = 1e-9

// Store is the persistence contract the ledger runs on.
type Store interface {
	Insert(ctx context.Context, rec models.EscrowRecord) error
	FindByID(ctx context.Context, id primitive.ObjectID) (models.EscrowRecord, error)
	AppendAudit(ctx context.Context, id primitive.ObjectID, entry models.AuditEntry) error
	SetPaymentRef(ctx context.Context, id primitive.ObjectID, ref string) error
	ApplyRelease(ctx context.Context, id primitive.ObjectID, amount float64) (bool, error)
	ApplyRefund(ctx context.Context, id primitive.ObjectID, amount float64, newStatus, opKey, externalID string) (bool, error)
	Remove(ctx context.Context, id primitive.ObjectID) error
}

// DisputeReader answers whether open disputes reference an escrow record.
type DisputeReader interface {
	FindOpenByEscrowID(ctx context.Context, escrowID primitive.ObjectID) ([]models.Dispute, error)
}

// Ledger serializes all fund movements per escrow record: a keyed mutex in
// process, and status-guarded conditional writes as the durable backstop.
type Ledger struct {
	store    Store
	disputes DisputeReader
	exec     payments.RefundExecutor
	locks    *locks.Keyed
}

// NewLedger returns a new Ledger.
func NewLedger(store Store, disputes DisputeReader, exec payments.RefundExecutor) *Ledger {
	return &Ledger{
		store:    store,
		disputes: disputes,
		exec:     exec,
		locks:    locks.NewKeyed(),
	}
}

// Hold creates the held record for a booking. The record is the durable
// intent written before the payment authorization call; AttachAuthorization
// completes it, VoidHold rolls it back.
func (l *Ledger) Hold(ctx context.Context, bookingID primitive.ObjectID, amount float64, currency, actor string) (models.EscrowRecord, error) {
	if amount <= 0 {
		return models.EscrowRecord{}, apperr.New(apperr.Validation, "hold amount must be positive")
	}

	now := time.Now().UTC()
	rec := models.EscrowRecord{
		ID:         primitive.NewObjectID(),
		BookingID:  bookingID,
		AmountHeld: amount,
		Currency:   currency,
		Status:     models.EscrowHeld,
		AuditLog: []models.AuditEntry{{
			EntryID:   uuid.New().String(),
			Action:    models.AuditHoldCreated,
			Actor:     actor,
			Detail:    fmt.Sprintf("hold of %.2f %s for booking %s", amount, currency, bookingID.Hex()),
			Timestamp: now,
		}},
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := l.store.Insert(ctx, rec); err != nil {
		return models.EscrowRecord{}, err
	}
	return rec, nil
}

// AttachAuthorization records the external payment reference on a hold.
func (l *Ledger) AttachAuthorization(ctx context.Context, id primitive.ObjectID, paymentRef, actor string) error {
	if err := l.store.SetPaymentRef(ctx, id, paymentRef); err != nil {
		return err
	}
	return l.audit(ctx, id, models.AuditAuthorized, actor, "payment authorized under "+paymentRef)
}

// VoidHold removes a hold whose payment authorization never went through.
func (l *Ledger) VoidHold(ctx context.Context, id primitive.ObjectID, detail string) error {
	log.Printf("escrow: voiding hold %s: %s", id.Hex(), detail)
	return l.store.Remove(ctx, id)
}

// Release hands whatever the record still holds to the owner: the full
// amount for a held record, the remainder after a partial refund. Forbidden
// while an open dispute references the record. Releasing an already released
// record is a no-op.
func (l *Ledger) Release(ctx context.Context, id primitive.ObjectID, actor string) error {
	return l.release(ctx, id, actor, primitive.NilObjectID)
}

// ReleaseForDispute releases on behalf of a dispute resolution. The
// resolving dispute is necessarily still open while its funds move, so it is
// excluded from the open-dispute guard; any other open dispute still blocks.
func (l *Ledger) ReleaseForDispute(ctx context.Context, id primitive.ObjectID, actor string, disputeID primitive.ObjectID) error {
	return l.release(ctx, id, actor, disputeID)
}

func (l *Ledger) release(ctx context.Context, id primitive.ObjectID, actor string, excludeDispute primitive.ObjectID) error {
	unlock := l.locks.Lock(id.Hex())
	defer unlock()

	rec, err := l.store.FindByID(ctx, id)
	if err != nil {
		return apperr.Wrap(apperr.NotFound, err, "escrow %s not found", id.Hex())
	}

	if rec.Status == models.EscrowReleased {
		return nil
	}
	if rec.Status != models.EscrowHeld && rec.Status != models.EscrowPartiallyRefunded {
		return apperr.New(apperr.InvalidState, "escrow %s is %s, not releasable", id.Hex(), rec.Status)
	}

	open, err := l.disputes.FindOpenByEscrowID(ctx, id)
	if err != nil {
		return err
	}
	for _, d := range open {
		if d.ID == excludeDispute {
			continue
		}
		return apperr.New(apperr.InvalidState, "escrow %s has an open dispute", id.Hex())
	}

	ok, err := l.store.ApplyRelease(ctx, id, rec.Remaining())
	if err != nil {
		return err
	}
	if !ok {
		return apperr.New(apperr.InvalidState, "escrow %s left the releasable status mid-release", id.Hex())
	}

	return l.audit(ctx, id, models.AuditReleaseApplied, actor,
		fmt.Sprintf("released %.2f %s", rec.Remaining(), rec.Currency))
}

// Refund refunds amount to the payer. opKey identifies the logical
// operation across retries: once a refund is recorded under it, repeat
// calls return success without touching the processor again. extKey is the
// attempt-scoped idempotency key handed to the processor. The request audit
// entry lands before the external call, the outcome entry after, so a crash
// mid-call is always diagnosable.
func (l *Ledger) Refund(ctx context.Context, id primitive.ObjectID, amount float64, actor, opKey, extKey string) error {
	unlock := l.locks.Lock(id.Hex())
	defer unlock()

	rec, err := l.store.FindByID(ctx, id)
	if err != nil {
		return apperr.Wrap(apperr.NotFound, err, "escrow %s not found", id.Hex())
	}

	if _, applied := rec.RefundRefs[opKey]; applied {
		return nil
	}

	if rec.Status != models.EscrowHeld && rec.Status != models.EscrowPartiallyRefunded {
		return apperr.New(apperr.InvalidState, "escrow %s is %s, not refundable", id.Hex(), rec.Status)
	}
	if amount <= 0 {
		return apperr.New(apperr.Validation, "refund amount must be positive")
	}
	if amount > rec.Remaining()+amountEpsilon {
		return apperr.New(apperr.Invariant, "refund of %.2f exceeds remaining held %.2f on escrow %s",
			amount, rec.Remaining(), id.Hex())
	}

	if err := l.audit(ctx, id, models.AuditRefundRequested, actor,
		fmt.Sprintf("refund of %.2f %s requested under %s", amount, rec.Currency, opKey)); err != nil {
		return err
	}

	externalID, err := l.exec.ExecuteRefund(ctx, rec.PaymentRef, amount, rec.Currency, extKey)
	if err != nil {
		if auditErr := l.audit(ctx, id, models.AuditRefundFailed, actor,
			fmt.Sprintf("refund under %s failed: %v", opKey, err)); auditErr != nil {
			log.Printf("escrow: failed to audit refund failure on %s: %v", id.Hex(), auditErr)
		}
		return err
	}

	newStatus := models.EscrowPartiallyRefunded
	if rec.Remaining()-amount <= amountEpsilon {
		newStatus = models.EscrowRefunded
	}

	ok, err := l.store.ApplyRefund(ctx, id, amount, newStatus, opKey, externalID)
	if err != nil {
		return err
	}
	if !ok {
		// the external refund went through but the guarded write missed:
		// surface loudly, the audit trail plus refund id make it recoverable
		return apperr.New(apperr.Invariant, "escrow %s changed state under refund %s (external id %s)",
			id.Hex(), opKey, externalID)
	}

	return l.audit(ctx, id, models.AuditRefundApplied, actor,
		fmt.Sprintf("refund of %.2f %s applied, external id %s", amount, rec.Currency, externalID))
}

func (l *Ledger) audit(ctx context.Context, id primitive.ObjectID, action, actor, detail string) error {
	return l.store.AppendAudit(ctx, id, models.AuditEntry{
		EntryID:   uuid.New().String(),
		Action:    action,
		Actor:     actor,
		Detail:    detail,
		Timestamp: time.Now().UTC(),
	})
}
