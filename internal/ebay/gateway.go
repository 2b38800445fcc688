// Package ebay is the marketplace gateway: it owns authentication and
// protocol details so the repricing core depends only on three
// operations and their success/failure semantics.
package ebay

import (
	"context"
	"fmt"

	"github.com/guarzo/repricer/internal/model"
	"github.com/guarzo/repricer/internal/store"
)

// Gateway is the marketplace surface the orchestrator consumes.
type Gateway interface {
	// GetManualCompetitors returns the listing's manually curated
	// competitor snapshots.
	GetManualCompetitors(ctx context.Context, itemID string) ([]model.CompetitorSnapshot, error)
	// GetCurrentPrice returns the listed price for the item/SKU.
	GetCurrentPrice(ctx context.Context, itemID, sku string) (float64, error)
	// UpdatePrice revises the listing price.
	UpdatePrice(ctx context.Context, itemID, sku string, newPrice float64) (*UpdateResult, error)
}

// UpdateResult is the outcome of a price update, with the raw response
// kept for the audit record.
type UpdateResult struct {
	Success bool   `json:"success"`
	Raw     string `json:"raw,omitempty"`
}

// TradingGateway implements Gateway over the Trading API. Competitor
// snapshots are manually curated and live on the stored listing; the
// live marketplace is only consulted for the item's own price and for
// the revision call.
type TradingGateway struct {
	trading  *TradingClient
	listings store.Listings
}

var _ Gateway = (*TradingGateway)(nil)

func NewTradingGateway(trading *TradingClient, listings store.Listings) *TradingGateway {
	return &TradingGateway{trading: trading, listings: listings}
}

func (g *TradingGateway) GetManualCompetitors(ctx context.Context, itemID string) ([]model.CompetitorSnapshot, error) {
	listing, err := g.listings.Get(ctx, itemID)
	if err != nil {
		return nil, fmt.Errorf("loading competitor list: %w", err)
	}
	return listing.Competitors, nil
}

func (g *TradingGateway) GetCurrentPrice(ctx context.Context, itemID, sku string) (float64, error) {
	detail, err := g.trading.GetItem(ctx, itemID)
	if err != nil {
		return 0, err
	}
	// Keep the stored listing in sync so dashboards don't need a live
	// call. Best effort only.
	_ = g.listings.SetCurrentPrice(ctx, itemID, detail.CurrentPrice)
	return detail.CurrentPrice, nil
}

func (g *TradingGateway) UpdatePrice(ctx context.Context, itemID, sku string, newPrice float64) (*UpdateResult, error) {
	result, err := g.trading.ReviseItemPrice(ctx, itemID, sku, newPrice)
	if err != nil {
		if result != nil {
			return &UpdateResult{Success: false, Raw: result.Raw}, err
		}
		return nil, err
	}
	_ = g.listings.SetCurrentPrice(ctx, itemID, newPrice)
	return &UpdateResult{Success: result.Success, Raw: result.Raw}, nil
}
