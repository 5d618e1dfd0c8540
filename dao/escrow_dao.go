package dao

import (
	"context"
	"time"

	"parkhive-bend/models"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
)

// EscrowDAO represents an escrow record DAO
type EscrowDAO struct {
	db         *mongo.Database
	Collection *mongo.Collection
}

// NewEscrowDAO returns a new EscrowDAO
func NewEscrowDAO(db *mongo.Database) *EscrowDAO {
	return &EscrowDAO{
		db:         db,
		Collection: db.Collection("escrows"),
	}
}

// Insert an escrow record into database
func (dao *EscrowDAO) Insert(ctx context.Context, rec models.EscrowRecord) error {
	obj, _ := bson.Marshal(rec)
	_, err := dao.Collection.InsertOne(ctx, obj)
	return err
}

// FindByID retrieves an escrow record by its id
func (dao *EscrowDAO) FindByID(ctx context.Context, id primitive.ObjectID) (models.EscrowRecord, error) {
	var rec models.EscrowRecord
	err := dao.Collection.FindOne(ctx, bson.M{"_id": id}).Decode(&rec)
	return rec, err
}

// FindByBookingID retrieves the escrow record owned by a booking
func (dao *EscrowDAO) FindByBookingID(ctx context.Context, bookingID primitive.ObjectID) (models.EscrowRecord, error) {
	var rec models.EscrowRecord
	err := dao.Collection.FindOne(ctx, bson.M{"booking_id": bookingID}).Decode(&rec)
	return rec, err
}

// AppendAudit appends an entry to the record's append-only audit log.
func (dao *EscrowDAO) AppendAudit(ctx context.Context, id primitive.ObjectID, entry models.AuditEntry) error {
	_, err := dao.Collection.UpdateOne(ctx,
		bson.M{"_id": id},
		bson.M{
			"$push": bson.M{"audit_log": entry},
			"$set":  bson.M{"updated_at": time.Now().UTC()},
		},
	)
	return err
}

// SetPaymentRef records the external authorization reference on the record.
func (dao *EscrowDAO) SetPaymentRef(ctx context.Context, id primitive.ObjectID, ref string) error {
	_, err := dao.Collection.UpdateOne(ctx,
		bson.M{"_id": id},
		bson.M{"$set": bson.M{"payment_ref": ref, "updated_at": time.Now().UTC()}},
	)
	return err
}

// ApplyRelease moves a releasable record to released and books the released
// amount, conditionally on the record still being held or partially
// refunded. Returns false when the record had already left those statuses.
func (dao *EscrowDAO) ApplyRelease(ctx context.Context, id primitive.ObjectID, amount float64) (bool, error) {
	res, err := dao.Collection.UpdateOne(ctx,
		bson.M{
			"_id":    id,
			"status": bson.M{"$in": []string{models.EscrowHeld, models.EscrowPartiallyRefunded}},
		},
		bson.M{
			"$inc": bson.M{"released_amount": amount},
			"$set": bson.M{
				"status":     models.EscrowReleased,
				"updated_at": time.Now().UTC(),
			},
		},
	)
	if err != nil {
		return false, err
	}
	return res.MatchedCount > 0, nil
}

// ApplyRefund books a refund against the record in one conditional write:
// it increments the refunded amount, records the external refund id under
// the operation key, and moves the status, all gated on the record still
// being refundable. Returns false when the guard did not match.
func (dao *EscrowDAO) ApplyRefund(ctx context.Context, id primitive.ObjectID, amount float64, newStatus, opKey, externalID string) (bool, error) {
	res, err := dao.Collection.UpdateOne(ctx,
		bson.M{
			"_id":    id,
			"status": bson.M{"$in": []string{models.EscrowHeld, models.EscrowPartiallyRefunded}},
		},
		bson.M{
			"$inc": bson.M{"refunded_amount": amount},
			"$set": bson.M{
				"status":               newStatus,
				"refund_refs." + opKey: externalID,
				"updated_at":           time.Now().UTC(),
			},
		},
	)
	if err != nil {
		return false, err
	}
	return res.MatchedCount > 0, nil
}

// Remove deletes an escrow record. Only used to void a hold whose payment
// authorization never went through.
func (dao *EscrowDAO) Remove(ctx context.Context, id primitive.ObjectID) error {
	_, err := dao.Collection.DeleteOne(ctx, bson.M{"_id": id})
	return err
}
