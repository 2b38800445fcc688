package history

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/guarzo/repricer/internal/model"
)

// MongoStore persists history records in a MongoDB collection.
type MongoStore struct {
	coll *mongo.Collection
}

var _ Store = (*MongoStore)(nil)

// NewMongoStore wraps the given collection and ensures the query
// indexes exist.
func NewMongoStore(ctx context.Context, db *mongo.Database) (*MongoStore, error) {
	s := &MongoStore{coll: db.Collection("price_history")}

	_, err := s.coll.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "itemId", Value: 1}, {Key: "createdAt", Value: -1}}},
		{Keys: bson.D{{Key: "success", Value: 1}, {Key: "createdAt", Value: 1}}},
	})
	if err != nil {
		return nil, fmt.Errorf("creating history indexes: %w", err)
	}
	return s, nil
}

func (s *MongoStore) Insert(ctx context.Context, rec *model.PriceHistory) error {
	if rec.ID == "" {
		rec.ID = primitive.NewObjectID().Hex()
	}
	if _, err := s.coll.InsertOne(ctx, rec); err != nil {
		return fmt.Errorf("insert: %w", err)
	}
	return nil
}

func (s *MongoStore) Find(ctx context.Context, q Query) ([]model.PriceHistory, error) {
	filter := bson.M{}
	if q.ItemID != "" {
		filter["itemId"] = q.ItemID
	}
	if q.SKU != "" {
		filter["sku"] = q.SKU
	}

	order := -1
	if q.SortOrder == "asc" {
		order = 1
	}
	sortKey := "createdAt"
	if q.SortBy == "newPrice" {
		sortKey = "newPrice"
	}

	opts := options.Find().
		SetSort(bson.D{{Key: sortKey, Value: order}}).
		SetSkip((q.Page - 1) * q.Limit).
		SetLimit(q.Limit)

	cursor, err := s.coll.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("find: %w", err)
	}
	defer cursor.Close(ctx)

	records := []model.PriceHistory{}
	if err := cursor.All(ctx, &records); err != nil {
		return nil, fmt.Errorf("decoding records: %w", err)
	}
	return records, nil
}

func (s *MongoStore) FindSince(ctx context.Context, itemID, sku string, since time.Time) ([]model.PriceHistory, error) {
	filter := bson.M{"itemId": itemID}
	if sku != "" {
		filter["sku"] = sku
	}
	if !since.IsZero() {
		filter["createdAt"] = bson.M{"$gte": since}
	}

	cursor, err := s.coll.Find(ctx, filter, options.Find().SetSort(bson.D{{Key: "createdAt", Value: 1}}))
	if err != nil {
		return nil, fmt.Errorf("find since: %w", err)
	}
	defer cursor.Close(ctx)

	records := []model.PriceHistory{}
	if err := cursor.All(ctx, &records); err != nil {
		return nil, fmt.Errorf("decoding records: %w", err)
	}
	return records, nil
}

func (s *MongoStore) Latest(ctx context.Context, itemID string) (*model.PriceHistory, error) {
	opts := options.FindOne().SetSort(bson.D{{Key: "createdAt", Value: -1}})

	var rec model.PriceHistory
	err := s.coll.FindOne(ctx, bson.M{"itemId": itemID}, opts).Decode(&rec)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find latest: %w", err)
	}
	return &rec, nil
}

func (s *MongoStore) ItemIDs(ctx context.Context) ([]string, error) {
	raw, err := s.coll.Distinct(ctx, "itemId", bson.M{})
	if err != nil {
		return nil, fmt.Errorf("distinct items: %w", err)
	}
	ids := make([]string, 0, len(raw))
	for _, v := range raw {
		if id, ok := v.(string); ok {
			ids = append(ids, id)
		}
	}
	return ids, nil
}

func (s *MongoStore) DeleteOlderPerItem(ctx context.Context, itemID string, keepRecent int) (int64, error) {
	// Collect the IDs of the rows to keep, then delete everything else
	// for the item. New inserts are younger than the keep set, so a
	// concurrent write is never targeted.
	opts := options.Find().
		SetSort(bson.D{{Key: "createdAt", Value: -1}}).
		SetLimit(int64(keepRecent)).
		SetProjection(bson.M{"_id": 1})

	cursor, err := s.coll.Find(ctx, bson.M{"itemId": itemID}, opts)
	if err != nil {
		return 0, fmt.Errorf("listing recent records: %w", err)
	}

	var keep []struct {
		ID string `bson:"_id"`
	}
	if err := cursor.All(ctx, &keep); err != nil {
		return 0, fmt.Errorf("decoding recent records: %w", err)
	}

	keepIDs := make([]string, 0, len(keep))
	for _, k := range keep {
		keepIDs = append(keepIDs, k.ID)
	}

	res, err := s.coll.DeleteMany(ctx, bson.M{
		"itemId": itemID,
		"_id":    bson.M{"$nin": keepIDs},
	})
	if err != nil {
		return 0, fmt.Errorf("deleting archived records: %w", err)
	}
	return res.DeletedCount, nil
}

func (s *MongoStore) DeleteFailedBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := s.coll.DeleteMany(ctx, bson.M{
		"success":   false,
		"createdAt": bson.M{"$lt": cutoff},
	})
	if err != nil {
		return 0, fmt.Errorf("deleting failed records: %w", err)
	}
	return res.DeletedCount, nil
}
