package dao

import (
	"context"
	"time"

	"parkhive-bend/models"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// BookingDAO represents a booking DAO
type BookingDAO struct {
	db         *mongo.Database
	Collection *mongo.Collection
}

// NewBookingDAO returns a new BookingDAO
func NewBookingDAO(db *mongo.Database) *BookingDAO {
	return &BookingDAO{
		db:         db,
		Collection: db.Collection("bookings"),
	}
}

// Insert a booking into database
func (dao *BookingDAO) Insert(ctx context.Context, booking models.Booking) error {
	obj, _ := bson.Marshal(booking)
	_, err := dao.Collection.InsertOne(ctx, obj)
	return err
}

// FindByID retrieves a booking by its id
func (dao *BookingDAO) FindByID(ctx context.Context, id primitive.ObjectID) (models.Booking, error) {
	var booking models.Booking
	err := dao.Collection.FindOne(ctx, bson.M{"_id": id}).Decode(&booking)
	return booking, err
}

// Query takes a bson.M filters map and applies the query on the bookings
// collection
func (dao *BookingDAO) Query(ctx context.Context, filter bson.M) ([]models.Booking, error) {
	var bookings []models.Booking

	opts := options.Find()
	opts.SetSort(bson.M{"created_at": -1})

	cursor, err := dao.Collection.Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}

	err = cursor.All(ctx, &bookings)

	return bookings, err
}

// FindConfirmedOverlapping returns confirmed bookings on a resource whose
// half-open interval overlaps [start, end). The excluded id (if non-zero) is
// left out so a booking never conflicts with itself on re-check.
func (dao *BookingDAO) FindConfirmedOverlapping(ctx context.Context, resourceID string, start, end time.Time, exclude primitive.ObjectID) ([]models.Booking, error) {
	var bookings []models.Booking

	filter := bson.M{
		"resource_id": resourceID,
		"status":      models.BookingConfirmed,
		"start_time":  bson.M{"$lt": end},
		"end_time":    bson.M{"$gt": start},
	}
	if exclude != primitive.NilObjectID {
		filter["_id"] = bson.M{"$ne": exclude}
	}

	cursor, err := dao.Collection.Find(ctx, filter)
	if err != nil {
		return nil, err
	}

	err = cursor.All(ctx, &bookings)

	return bookings, err
}

// ConfirmPending flips a booking from pending to confirmed and attaches its
// escrow id in one conditional write. Returns false when the booking was no
// longer pending.
func (dao *BookingDAO) ConfirmPending(ctx context.Context, id, escrowID primitive.ObjectID) (bool, error) {
	res, err := dao.Collection.UpdateOne(ctx,
		bson.M{"_id": id, "status": models.BookingPending},
		bson.M{"$set": bson.M{
			"status":     models.BookingConfirmed,
			"escrow_id":  escrowID,
			"updated_at": time.Now().UTC(),
		}},
	)
	if err != nil {
		return false, err
	}
	return res.MatchedCount > 0, nil
}

// MarkCancelled moves a booking from the given status to cancelled. Returns
// false when the booking had already left that status.
func (dao *BookingDAO) MarkCancelled(ctx context.Context, id primitive.ObjectID, from string, reason models.CancelReason, note string) (bool, error) {
	res, err := dao.Collection.UpdateOne(ctx,
		bson.M{"_id": id, "status": from},
		bson.M{"$set": bson.M{
			"status":        models.BookingCancelled,
			"cancel_reason": reason,
			"cancel_note":   note,
			"updated_at":    time.Now().UTC(),
		}},
	)
	if err != nil {
		return false, err
	}
	return res.MatchedCount > 0, nil
}

// MarkCompleted moves a confirmed booking to completed. Returns false when
// the booking was not confirmed anymore.
func (dao *BookingDAO) MarkCompleted(ctx context.Context, id primitive.ObjectID) (bool, error) {
	res, err := dao.Collection.UpdateOne(ctx,
		bson.M{"_id": id, "status": models.BookingConfirmed},
		bson.M{"$set": bson.M{
			"status":     models.BookingCompleted,
			"updated_at": time.Now().UTC(),
		}},
	)
	if err != nil {
		return false, err
	}
	return res.MatchedCount > 0, nil
}

// PoolPendingBefore returns pending bookings created before the cutoff, for
// the expiry job.
func (dao *BookingDAO) PoolPendingBefore(ctx context.Context, cutoff time.Time) ([]models.Booking, error) {
	return dao.Query(ctx, bson.M{
		"status":     models.BookingPending,
		"created_at": bson.M{"$lte": cutoff},
	})
}

// PoolDueCompletion returns confirmed bookings whose interval has ended, for
// the completion sweep.
func (dao *BookingDAO) PoolDueCompletion(ctx context.Context, now time.Time) ([]models.Booking, error) {
	return dao.Query(ctx, bson.M{
		"status":   models.BookingConfirmed,
		"end_time": bson.M{"$lte": now},
	})
}
