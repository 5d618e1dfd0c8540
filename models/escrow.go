package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Escrow statuses. Released and Refunded are mutually exclusive terminal
// states; PartiallyRefunded may move to Refunded but never back to Held.
const (
	EscrowHeld              = "held"
	EscrowReleased          = "released"
	EscrowRefunded          = "refunded"
	EscrowPartiallyRefunded = "partially_refunded"
)

// Audit actions
const (
	AuditHoldCreated     = "hold_created"
	AuditAuthorized      = "payment_authorized"
	AuditReleaseApplied  = "release_applied"
	AuditRefundRequested = "refund_requested"
	AuditRefundApplied   = "refund_applied"
	AuditRefundFailed    = "refund_failed"
)

// AuditEntry is one immutable line in an escrow record's audit log.
type AuditEntry struct {
	EntryID   string    `json:"entry_id" bson:"entry_id"`
	Action    string    `json:"action" bson:"action"`
	Actor     string    `json:"actor" bson:"actor"`
	Detail    string    `json:"detail" bson:"detail"`
	Timestamp time.Time `json:"timestamp" bson:"timestamp"`
}

// EscrowRecord holds funds against a confirmed booking until they are
// released to the owner or refunded to the requester.
type EscrowRecord struct {
	ID        primitive.ObjectID `json:"id" bson:"_id"`
	BookingID primitive.ObjectID `json:"booking_id" bson:"booking_id"`
	// PaymentRef is the external authorization reference the funds were
	// captured under; refunds are issued against it.
	PaymentRef     string  `json:"payment_ref" bson:"payment_ref"`
	AmountHeld     float64 `json:"amount_held" bson:"amount_held"`
	ReleasedAmount float64 `json:"released_amount" bson:"released_amount"`
	RefundedAmount float64 `json:"refunded_amount" bson:"refunded_amount"`
	Currency       string  `json:"currency" bson:"currency"`
	Status         string  `json:"status" bson:"status"`
	// RefundRefs maps an idempotency key to the external refund id recorded
	// for it. A key present here means the refund already went through;
	// retries must not issue a second external call.
	RefundRefs map[string]string `json:"refund_refs,omitempty" bson:"refund_refs,omitempty"`
	AuditLog   []AuditEntry      `json:"audit_log" bson:"audit_log"`
	CreatedAt  time.Time         `json:"created_at" bson:"created_at"`
	UpdatedAt  time.Time         `json:"updated_at" bson:"updated_at"`
}

// Remaining returns the amount still held after releases and refunds.
func (e EscrowRecord) Remaining() float64 {
	return e.AmountHeld - e.ReleasedAmount - e.RefundedAmount
}
