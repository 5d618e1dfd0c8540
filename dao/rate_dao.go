package dao

import (
	"context"
	"time"

	"parkhive-bend/models"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// RateDAO represents a rate schedule DAO
type RateDAO struct {
	db         *mongo.Database
	Collection *mongo.Collection
}

// NewRateDAO returns a new RateDAO
func NewRateDAO(db *mongo.Database) *RateDAO {
	return &RateDAO{
		db:         db,
		Collection: db.Collection("rate_schedules"),
	}
}

// FindByResourceID retrieves the rate schedule for a parking space
func (dao *RateDAO) FindByResourceID(ctx context.Context, resourceID string) (models.RateSchedule, error) {
	var schedule models.RateSchedule
	err := dao.Collection.FindOne(ctx, bson.M{"resource_id": resourceID}).Decode(&schedule)
	return schedule, err
}

// Upsert writes the rate schedule for a parking space, replacing any
// existing one.
func (dao *RateDAO) Upsert(ctx context.Context, schedule models.RateSchedule) error {
	schedule.UpdatedAt = time.Now().UTC()

	upsert := true
	_, err := dao.Collection.UpdateOne(ctx,
		bson.M{"resource_id": schedule.ResourceID},
		bson.M{"$set": bson.M{
			"resource_id":  schedule.ResourceID,
			"owner_id":     schedule.OwnerID,
			"hourly_rate":  schedule.HourlyRate,
			"daily_rate":   schedule.DailyRate,
			"weekly_rate":  schedule.WeeklyRate,
			"monthly_rate": schedule.MonthlyRate,
			"currency":     schedule.Currency,
			"updated_at":   schedule.UpdatedAt,
		}, "$setOnInsert": bson.M{
			"_id":        schedule.ID,
			"created_at": schedule.CreatedAt,
		}},
		&options.UpdateOptions{Upsert: &upsert},
	)
	return err
}
