// Package store holds the persistence contracts for strategies,
// competitor rules, and monitored listings, with MongoDB and in-memory
// implementations.
package store

import (
	"context"

	"github.com/guarzo/repricer/internal/model"
)

// Strategies is the pricing strategy repository.
type Strategies interface {
	Get(ctx context.Context, id string) (*model.PricingStrategy, error)
	GetByName(ctx context.Context, ownerID, name string) (*model.PricingStrategy, error)
	Put(ctx context.Context, s *model.PricingStrategy) error
	Delete(ctx context.Context, id string) error
	List(ctx context.Context, ownerID string) ([]model.PricingStrategy, error)
}

// Rules is the competitor rule repository. RecordUsage bumps the usage
// counters each time a rule is applied by the filter.
type Rules interface {
	Get(ctx context.Context, id string) (*model.CompetitorRule, error)
	Put(ctx context.Context, r *model.CompetitorRule) error
	Delete(ctx context.Context, id string) error
	RecordUsage(ctx context.Context, id string) error
}

// Listings is the monitored listing repository.
type Listings interface {
	Get(ctx context.Context, itemID string) (*model.Listing, error)
	Put(ctx context.Context, l *model.Listing) error
	Delete(ctx context.Context, itemID string) error
	// Monitored returns all listings with monitoring enabled.
	Monitored(ctx context.Context) ([]model.Listing, error)
	// WithCompetitors returns all listings carrying at least one
	// manually added competitor, regardless of the monitoring flag.
	WithCompetitors(ctx context.Context) ([]model.Listing, error)
	SetCurrentPrice(ctx context.Context, itemID string, price float64) error
}
