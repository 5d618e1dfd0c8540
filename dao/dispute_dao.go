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

// DisputeDAO represents a dispute DAO
type DisputeDAO struct {
	db         *mongo.Database
	Collection *mongo.Collection
}

// NewDisputeDAO returns a new DisputeDAO
func NewDisputeDAO(db *mongo.Database) *DisputeDAO {
	return &DisputeDAO{
		db:         db,
		Collection: db.Collection("disputes"),
	}
}

// Insert a dispute into database
func (dao *DisputeDAO) Insert(ctx context.Context, dispute models.Dispute) error {
	obj, _ := bson.Marshal(dispute)
	_, err := dao.Collection.InsertOne(ctx, obj)
	return err
}

// FindByID retrieves a dispute by its id
func (dao *DisputeDAO) FindByID(ctx context.Context, id primitive.ObjectID) (models.Dispute, error) {
	var dispute models.Dispute
	err := dao.Collection.FindOne(ctx, bson.M{"_id": id}).Decode(&dispute)
	return dispute, err
}

// Query takes a bson.M filters map and applies the query on the disputes
// collection
func (dao *DisputeDAO) Query(ctx context.Context, filter bson.M) ([]models.Dispute, error) {
	var disputes []models.Dispute

	opts := options.Find()
	opts.SetSort(bson.M{"created_at": -1})

	cursor, err := dao.Collection.Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}

	err = cursor.All(ctx, &disputes)

	return disputes, err
}

// FindOpenByEscrowID returns open disputes referencing an escrow record.
func (dao *DisputeDAO) FindOpenByEscrowID(ctx context.Context, escrowID primitive.ObjectID) ([]models.Dispute, error) {
	return dao.Query(ctx, bson.M{
		"escrow_id": escrowID,
		"status":    models.DisputeOpen,
	})
}

// FindOpenByBookingID returns open disputes referencing a booking.
func (dao *DisputeDAO) FindOpenByBookingID(ctx context.Context, bookingID primitive.ObjectID) ([]models.Dispute, error) {
	return dao.Query(ctx, bson.M{
		"booking_id": bookingID,
		"status":     models.DisputeOpen,
	})
}

// AppendTimeline appends an entry to the dispute's append-only timeline.
func (dao *DisputeDAO) AppendTimeline(ctx context.Context, id primitive.ObjectID, entry models.TimelineEntry) error {
	_, err := dao.Collection.UpdateOne(ctx,
		bson.M{"_id": id},
		bson.M{
			"$push": bson.M{"timeline": entry},
			"$set":  bson.M{"updated_at": time.Now().UTC()},
		},
	)
	return err
}

// IncAttempts durably bumps the resolution attempt counter and returns the
// new value. Written before the external refund call so a crash leaves a
// countable, not a lost, attempt.
func (dao *DisputeDAO) IncAttempts(ctx context.Context, id primitive.ObjectID) (int, error) {
	var dispute models.Dispute

	after := options.After
	err := dao.Collection.FindOneAndUpdate(ctx,
		bson.M{"_id": id},
		bson.M{"$inc": bson.M{"resolution_attempts": 1}},
		&options.FindOneAndUpdateOptions{ReturnDocument: &after},
	).Decode(&dispute)
	if err != nil {
		return 0, err
	}
	return dispute.ResolutionAttempts, nil
}

// MarkResolved flips an open dispute to resolved and sets its resolution in
// one conditional write. Returns false when the dispute was not open.
func (dao *DisputeDAO) MarkResolved(ctx context.Context, id primitive.ObjectID, resolution models.Resolution) (bool, error) {
	res, err := dao.Collection.UpdateOne(ctx,
		bson.M{"_id": id, "status": models.DisputeOpen},
		bson.M{"$set": bson.M{
			"status":     models.DisputeResolved,
			"resolution": resolution,
			"updated_at": time.Now().UTC(),
		}},
	)
	if err != nil {
		return false, err
	}
	return res.MatchedCount > 0, nil
}
