package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// RateSchedule holds the owner-set tiered unit prices for a parking space.
// A zero rate marks that tier as unavailable.
type RateSchedule struct {
	ID          primitive.ObjectID `json:"id" bson:"_id"`
	ResourceID  string             `json:"resource_id" bson:"resource_id"`
	OwnerID     primitive.ObjectID `json:"owner_id" bson:"owner_id"`
	HourlyRate  float64            `json:"hourly_rate" bson:"hourly_rate"`
	DailyRate   float64            `json:"daily_rate" bson:"daily_rate"`
	WeeklyRate  float64            `json:"weekly_rate" bson:"weekly_rate"`
	MonthlyRate float64            `json:"monthly_rate" bson:"monthly_rate"`
	Currency    string             `json:"currency" bson:"currency"`
	CreatedAt   time.Time          `json:"created_at" bson:"created_at"`
	UpdatedAt   time.Time          `json:"updated_at" bson:"updated_at"`
}

// RateScheduleReq represents the rate schedule upsert payload
type RateScheduleReq struct {
	HourlyRate  float64 `json:"hourly_rate"`
	DailyRate   float64 `json:"daily_rate"`
	WeeklyRate  float64 `json:"weekly_rate"`
	MonthlyRate float64 `json:"monthly_rate"`
	Currency    string  `json:"currency"`
}
