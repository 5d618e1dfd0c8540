package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Booking statuses
const (
	BookingPending   = "pending"
	BookingConfirmed = "confirmed"
	BookingCancelled = "cancelled"
	BookingCompleted = "completed"
)

// CancelReason ...
type CancelReason uint

// Cancel reasons
const (
	ManualCancellation CancelReason = iota
	AutoCancellation
	DisputeCancellation
)

// Booking represents a reservation of a parking space for a time window.
// The interval is half-open: [StartTime, EndTime), so back-to-back bookings
// at the exact boundary do not conflict.
type Booking struct {
	ID          primitive.ObjectID `json:"id" bson:"_id"`
	ResourceID  string             `json:"resource_id" bson:"resource_id"`
	RequesterID primitive.ObjectID `json:"requester_id" bson:"requester_id"`
	OwnerID     primitive.ObjectID `json:"owner_id" bson:"owner_id"`
	StartTime   time.Time          `json:"start_time" bson:"start_time"`
	EndTime     time.Time          `json:"end_time" bson:"end_time"`
	VehicleType string             `json:"vehicle_type" bson:"vehicle_type"`
	// TotalPrice is computed at request time and immutable once confirmed.
	TotalPrice   float64            `json:"total_price" bson:"total_price"`
	Currency     string             `json:"currency" bson:"currency"`
	Status       string             `json:"status" bson:"status"`
	EscrowID     primitive.ObjectID `json:"escrow_id,omitempty" bson:"escrow_id,omitempty"`
	CancelReason CancelReason       `json:"cancel_reason" bson:"cancel_reason"`
	CancelNote   string             `json:"cancel_note,omitempty" bson:"cancel_note,omitempty"`
	CreatedAt    time.Time          `json:"created_at" bson:"created_at"`
	UpdatedAt    time.Time          `json:"updated_at" bson:"updated_at"`
}

// BookingReq represents the create booking request payload
type BookingReq struct {
	ResourceID  string    `json:"resource_id"`
	OwnerID     string    `json:"owner_id"`
	StartTime   time.Time `json:"start_time"`
	EndTime     time.Time `json:"end_time"`
	VehicleType string    `json:"vehicle_type"`
}

// CancelBookingReq ...
type CancelBookingReq struct {
	Reason string `json:"reason"`
}
