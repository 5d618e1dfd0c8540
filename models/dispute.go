package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Dispute statuses. Resolved is terminal; there is no reopen path.
const (
	DisputeOpen     = "open"
	DisputeResolved = "resolved"
)

// Resolution decisions
const (
	DecisionApprove       = "approve"
	DecisionRefund        = "refund"
	DecisionPartialRefund = "partial_refund"
)

// Resolution is set once, when a dispute is resolved.
type Resolution struct {
	Decision     string             `json:"decision" bson:"decision"`
	RefundAmount float64            `json:"refund_amount" bson:"refund_amount"`
	Notes        string             `json:"notes" bson:"notes"`
	ResolvedBy   primitive.ObjectID `json:"resolved_by" bson:"resolved_by"`
	ResolvedAt   time.Time          `json:"resolved_at" bson:"resolved_at"`
}

// TimelineEntry is one immutable line in a dispute's timeline.
type TimelineEntry struct {
	EntryID   string    `json:"entry_id" bson:"entry_id"`
	Status    string    `json:"status" bson:"status"`
	Detail    string    `json:"detail" bson:"detail"`
	Timestamp time.Time `json:"timestamp" bson:"timestamp"`
}

// Dispute represents a raised dispute over escrowed booking funds. It
// references its booking and escrow by id only; dispute history is kept for
// audit even if the booking goes away.
type Dispute struct {
	ID               primitive.ObjectID `json:"id" bson:"_id"`
	BookingID        primitive.ObjectID `json:"booking_id" bson:"booking_id"`
	EscrowID         primitive.ObjectID `json:"escrow_id" bson:"escrow_id"`
	RaisedBy         primitive.ObjectID `json:"raised_by" bson:"raised_by"`
	AmountInQuestion float64            `json:"amount_in_question" bson:"amount_in_question"`
	Details          string             `json:"details" bson:"details"`
	Status           string             `json:"status" bson:"status"`
	Resolution       *Resolution        `json:"resolution,omitempty" bson:"resolution,omitempty"`
	Timeline         []TimelineEntry    `json:"timeline" bson:"timeline"`
	// ResolutionAttempts counts resolution tries, including failed refund
	// attempts; the refund idempotency key derives from it.
	ResolutionAttempts int       `json:"resolution_attempts" bson:"resolution_attempts"`
	CreatedAt          time.Time `json:"created_at" bson:"created_at"`
	UpdatedAt          time.Time `json:"updated_at" bson:"updated_at"`
}

// OpenDisputeReq represents the open dispute request payload
type OpenDisputeReq struct {
	BookingID        string  `json:"booking_id"`
	AmountInQuestion float64 `json:"amount_in_question"`
	Details          string  `json:"details"`
}

// ResolveDisputeReq represents the resolve dispute request payload
type ResolveDisputeReq struct {
	Decision     string  `json:"decision"`
	RefundAmount float64 `json:"refund_amount"`
	Notes        string  `json:"notes"`
}

// AdminAudit records an admin action (e.g. a dispute resolution) for the
// immutable back-office trail.
type AdminAudit struct {
	ID        primitive.ObjectID `json:"id" bson:"_id"`
	Actor     primitive.ObjectID `json:"actor" bson:"actor"`
	Action    string             `json:"action" bson:"action"`
	TargetID  primitive.ObjectID `json:"target_id" bson:"target_id"`
	Detail    string             `json:"detail" bson:"detail"`
	CreatedAt time.Time          `json:"created_at" bson:"created_at"`
}
