package store

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

// MongoStrategies persists pricing strategies.
type MongoStrategies struct {
	coll *mongo.Collection
}

var _ Strategies = (*MongoStrategies)(nil)

func NewMongoStrategies(ctx context.Context, db *mongo.Database) (*MongoStrategies, error) {
	s := &MongoStrategies{coll: db.Collection("pricing_strategies")}

	// Strategy names are unique per owner.
	_, err := s.coll.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "ownerId", Value: 1}, {Key: "strategyName", Value: 1}},
		Options: options.Index().SetUnique(true),
	})
	if err != nil {
		return nil, fmt.Errorf("creating strategy index: %w", err)
	}
	return s, nil
}

func (s *MongoStrategies) Get(ctx context.Context, id string) (*model.PricingStrategy, error) {
	var out model.PricingStrategy
	err := s.coll.FindOne(ctx, bson.M{"_id": id}).Decode(&out)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, fmt.Errorf("strategy %s: %w", id, model.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("loading strategy: %w", err)
	}
	return &out, nil
}

func (s *MongoStrategies) GetByName(ctx context.Context, ownerID, name string) (*model.PricingStrategy, error) {
	var out model.PricingStrategy
	err := s.coll.FindOne(ctx, bson.M{"ownerId": ownerID, "strategyName": name}).Decode(&out)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, fmt.Errorf("strategy %s/%s: %w", ownerID, name, model.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("loading strategy: %w", err)
	}
	return &out, nil
}

func (s *MongoStrategies) Put(ctx context.Context, st *model.PricingStrategy) error {
	if err := st.Validate(); err != nil {
		return err
	}
	if st.ID == "" {
		st.ID = primitive.NewObjectID().Hex()
		st.CreatedAt = time.Now().UTC()
	}
	st.UpdatedAt = time.Now().UTC()

	_, err := s.coll.ReplaceOne(ctx, bson.M{"_id": st.ID}, st, options.Replace().SetUpsert(true))
	if err != nil {
		return fmt.Errorf("saving strategy: %w", err)
	}
	return nil
}

func (s *MongoStrategies) Delete(ctx context.Context, id string) error {
	if _, err := s.coll.DeleteOne(ctx, bson.M{"_id": id}); err != nil {
		return fmt.Errorf("deleting strategy: %w", err)
	}
	return nil
}

func (s *MongoStrategies) List(ctx context.Context, ownerID string) ([]model.PricingStrategy, error) {
	filter := bson.M{}
	if ownerID != "" {
		filter["ownerId"] = ownerID
	}
	cursor, err := s.coll.Find(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("listing strategies: %w", err)
	}
	defer cursor.Close(ctx)

	out := []model.PricingStrategy{}
	if err := cursor.All(ctx, &out); err != nil {
		return nil, fmt.Errorf("decoding strategies: %w", err)
	}
	return out, nil
}

// MongoRules persists competitor rules.
type MongoRules struct {
	coll *mongo.Collection
}

var _ Rules = (*MongoRules)(nil)

func NewMongoRules(db *mongo.Database) *MongoRules {
	return &MongoRules{coll: db.Collection("competitor_rules")}
}

func (s *MongoRules) Get(ctx context.Context, id string) (*model.CompetitorRule, error) {
	var out model.CompetitorRule
	err := s.coll.FindOne(ctx, bson.M{"_id": id}).Decode(&out)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, fmt.Errorf("rule %s: %w", id, model.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("loading rule: %w", err)
	}
	return &out, nil
}

func (s *MongoRules) Put(ctx context.Context, r *model.CompetitorRule) error {
	if err := r.Validate(); err != nil {
		return err
	}
	if r.ID == "" {
		r.ID = primitive.NewObjectID().Hex()
	}
	_, err := s.coll.ReplaceOne(ctx, bson.M{"_id": r.ID}, r, options.Replace().SetUpsert(true))
	if err != nil {
		return fmt.Errorf("saving rule: %w", err)
	}
	return nil
}

func (s *MongoRules) Delete(ctx context.Context, id string) error {
	if _, err := s.coll.DeleteOne(ctx, bson.M{"_id": id}); err != nil {
		return fmt.Errorf("deleting rule: %w", err)
	}
	return nil
}

func (s *MongoRules) RecordUsage(ctx context.Context, id string) error {
	res, err := s.coll.UpdateOne(ctx, bson.M{"_id": id}, bson.M{
		"$inc": bson.M{"timesUsed": 1},
		"$set": bson.M{"lastUsedAt": time.Now().UTC()},
	})
	if err != nil {
		return fmt.Errorf("recording rule usage: %w", err)
	}
	if res.MatchedCount == 0 {
		return fmt.Errorf("rule %s: %w", id, model.ErrNotFound)
	}
	return nil
}

// MongoListings persists monitored listings.
type MongoListings struct {
	coll *mongo.Collection
}

var _ Listings = (*MongoListings)(nil)

func NewMongoListings(ctx context.Context, db *mongo.Database) (*MongoListings, error) {
	s := &MongoListings{coll: db.Collection("listings")}

	_, err := s.coll.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "monitoringEnabled", Value: 1}},
	})
	if err != nil {
		return nil, fmt.Errorf("creating listing index: %w", err)
	}
	return s, nil
}

func (s *MongoListings) Get(ctx context.Context, itemID string) (*model.Listing, error) {
	var out model.Listing
	err := s.coll.FindOne(ctx, bson.M{"_id": itemID}).Decode(&out)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, fmt.Errorf("listing %s: %w", itemID, model.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("loading listing: %w", err)
	}
	return &out, nil
}

func (s *MongoListings) Put(ctx context.Context, l *model.Listing) error {
	if err := l.Validate(); err != nil {
		return err
	}
	if l.CreatedAt.IsZero() {
		l.CreatedAt = time.Now().UTC()
	}
	l.UpdatedAt = time.Now().UTC()

	_, err := s.coll.ReplaceOne(ctx, bson.M{"_id": l.ItemID}, l, options.Replace().SetUpsert(true))
	if err != nil {
		return fmt.Errorf("saving listing: %w", err)
	}
	return nil
}

func (s *MongoListings) Delete(ctx context.Context, itemID string) error {
	if _, err := s.coll.DeleteOne(ctx, bson.M{"_id": itemID}); err != nil {
		return fmt.Errorf("deleting listing: %w", err)
	}
	return nil
}

func (s *MongoListings) Monitored(ctx context.Context) ([]model.Listing, error) {
	return s.find(ctx, bson.M{"monitoringEnabled": true})
}

func (s *MongoListings) WithCompetitors(ctx context.Context) ([]model.Listing, error) {
	return s.find(ctx, bson.M{"competitors.0": bson.M{"$exists": true}})
}

func (s *MongoListings) find(ctx context.Context, filter bson.M) ([]model.Listing, error) {
	cursor, err := s.coll.Find(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("listing query: %w", err)
	}
	defer cursor.Close(ctx)

	out := []model.Listing{}
	if err := cursor.All(ctx, &out); err != nil {
		return nil, fmt.Errorf("decoding listings: %w", err)
	}
	return out, nil
}

func (s *MongoListings) SetCurrentPrice(ctx context.Context, itemID string, price float64) error {
	res, err := s.coll.UpdateOne(ctx, bson.M{"_id": itemID}, bson.M{
		"$set": bson.M{"currentPrice": price, "updatedAt": time.Now().UTC()},
	})
	if err != nil {
		return fmt.Errorf("updating listing price: %w", err)
	}
	if res.MatchedCount == 0 {
		return fmt.Errorf("listing %s: %w", itemID, model.ErrNotFound)
	}
	return nil
}
