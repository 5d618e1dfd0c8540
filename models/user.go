package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// ContextKey is a string type used in context.WithValue
type ContextKey string

func (c ContextKey) String() string {
	return string(c)
}

// User represents an app user as the engine sees them. Account creation and
// credentials live in the identity service; the engine only needs contact
// and payment references.
type User struct {
	ID          primitive.ObjectID `json:"id" bson:"_id"`
	Username    string             `json:"username" bson:"username"`
	Email       string             `json:"email" bson:"email"`
	FCMToken    string             `json:"fcm_token" bson:"fcm_token"`
	PayerRef    string             `json:"payer_ref" bson:"payer_ref"`
	Admin       bool               `json:"admin" bson:"admin"`
	NumBookings int                `json:"num_bookings" bson:"num_bookings"`
	CreatedAt   time.Time          `json:"created_at" bson:"created_at"`
	UpdatedAt   time.Time          `json:"updated_at" bson:"updated_at"`
}
