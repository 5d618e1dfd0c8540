package dao

import (
	"context"
	"errors"

	"parkhive-bend/models"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// FactoryDAO represents a dao for scalfolding and accessing collections
type FactoryDAO struct {
	db          *mongo.Database
	Collections map[string]*mongo.Collection
}

// NewFactoryDAO returns a new FactoryDAO
func NewFactoryDAO(db *mongo.Database) *FactoryDAO {
	collections := []string{
		"user",
		"bookings",
		"notifications",
		"admin_audit",
	}
	dao := &FactoryDAO{
		db:          db,
		Collections: make(map[string]*mongo.Collection),
	}

	for _, opt := range collections {
		dao.Add(opt)
	}

	return dao
}

// Add collection to list
func (dao *FactoryDAO) Add(key string) {
	c := dao.db.Collection(key)
	dao.Collections[key] = c
}

// Insert a document into a collection
func (dao *FactoryDAO) Insert(ctx context.Context, key string, obj interface{}) error {
	collection, ok := dao.Collections[key]
	if !ok {
		return errors.New("invalid collection")
	}
	c, _ := bson.Marshal(obj)
	_, err := collection.InsertOne(ctx, c)
	return err
}

// Update ...
func (dao *FactoryDAO) Update(ctx context.Context, key string, id primitive.ObjectID, obj interface{}) error {
	collection, ok := dao.Collections[key]
	if !ok {
		return errors.New("invalid collection")
	}
	_, err := collection.UpdateOne(ctx, bson.M{"_id": id}, bson.M{"$set": obj})
	return err
}

// FindUser retrieves a user by id
func (dao *FactoryDAO) FindUser(ctx context.Context, id primitive.ObjectID) (models.User, error) {
	var obj models.User

	collection, ok := dao.Collections["user"]
	if !ok {
		return obj, errors.New("invalid collection")
	}

	err := collection.FindOne(ctx, bson.M{"_id": id}).Decode(&obj)
	return obj, err
}

// Query ...
func (dao *FactoryDAO) Query(ctx context.Context, ckey string, filter bson.M, sort ...bool) ([]bson.M, error) {
	var data []bson.M

	opts := options.Find()
	if len(sort) > 0 {
		opts.SetSort(bson.M{"created_at": -1})
	}

	collection, ok := dao.Collections[ckey]
	if !ok {
		return nil, errors.New("invalid collection")
	}
	cursor, err := collection.Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}

	err = cursor.All(ctx, &data)

	return data, err
}
