package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"slotbook/internal/config"
	"slotbook/internal/models"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const mongoTimeout = 5 * time.Second

// NewMongoClient connects and pings the configured MongoDB deployment.
func NewMongoClient(ctx context.Context, cfg config.MongoConfig) (*mongo.Client, error) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(cfg.URI))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to MongoDB: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("failed to ping MongoDB: %w", err)
	}
	return client, nil
}

// MongoBookingStore stores one document per booking keyed by _id.
type MongoBookingStore struct {
	coll *mongo.Collection
}

func NewMongoBookingStore(client *mongo.Client, cfg config.MongoConfig) *MongoBookingStore {
	return &MongoBookingStore{
		coll: client.Database(cfg.Database).Collection(cfg.Collection),
	}
}

// EnsureIndexes creates the (date, time) lookup index.
func (s *MongoBookingStore) EnsureIndexes(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, mongoTimeout)
	defer cancel()

	_, err := s.coll.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: models.FieldDate, Value: 1}, {Key: models.FieldTime, Value: 1}},
	})
	return err
}

func (s *MongoBookingStore) FetchAll(ctx context.Context) ([]models.BookingRecord, error) {
	ctx, cancel := context.WithTimeout(ctx, mongoTimeout)
	defer cancel()

	// $natural follows insertion order for documents that were never moved.
	opts := options.Find().SetSort(bson.D{{Key: "$natural", Value: 1}})
	cursor, err := s.coll.Find(ctx, bson.M{}, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var docs []bson.M
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, err
	}

	records := make([]models.BookingRecord, 0, len(docs))
	for _, doc := range docs {
		records = append(records, recordFromBSON(doc))
	}
	return records, nil
}

func (s *MongoBookingStore) Insert(ctx context.Context, record models.BookingRecord) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, mongoTimeout)
	defer cancel()

	id := uuid.New().String()
	res, err := s.coll.InsertOne(ctx, recordToBSON(id, record))
	if err != nil {
		return "", err
	}

	switch v := res.InsertedID.(type) {
	case string:
		return v, nil
	case primitive.ObjectID:
		return v.Hex(), nil
	default:
		return "", errors.New("unexpected type for inserted ID")
	}
}

func (s *MongoBookingStore) RemoveByID(ctx context.Context, id string) error {
	ctx, cancel := context.WithTimeout(ctx, mongoTimeout)
	defer cancel()

	_, err := s.coll.DeleteOne(ctx, bson.M{"_id": id})
	return err
}

func recordToBSON(id string, record models.BookingRecord) bson.M {
	doc := bson.M{"_id": id}
	for k, v := range record.WithoutID() {
		doc[k] = v
	}
	if created := record.Time(models.FieldCreatedAt); !created.IsZero() {
		doc[models.FieldCreatedAt] = primitive.NewDateTimeFromTime(created)
	}
	return doc
}

func recordFromBSON(doc bson.M) models.BookingRecord {
	rec := make(models.BookingRecord, len(doc))
	for k, v := range doc {
		switch val := v.(type) {
		case primitive.DateTime:
			rec[k] = val.Time().UTC()
		case primitive.ObjectID:
			rec[k] = val.Hex()
		default:
			rec[k] = val
		}
	}
	if id, ok := rec["_id"]; ok {
		rec[models.FieldID] = id
		delete(rec, "_id")
	}
	return rec
}
