// Package history is the append-only audit trail of repricing
// decisions and the analytics queries served over it.
package history

import (
	"context"
	"time"

	"github.com/guarzo/repricer/internal/model"
)

// Query describes a read over an item's history. Zero Limit falls back
// to a sane page size; Page is 1-based.
type Query struct {
	ItemID    string
	SKU       string
	Limit     int64
	Page      int64
	SortBy    string
	SortOrder string
}

const (
	defaultLimit = 50
	maxLimit     = 500
)

// normalized fills query defaults. Most-recent-first is the default
// order.
func (q Query) normalized() Query {
	if q.Limit <= 0 {
		q.Limit = defaultLimit
	}
	if q.Limit > maxLimit {
		q.Limit = maxLimit
	}
	if q.Page <= 0 {
		q.Page = 1
	}
	if q.SortBy == "" {
		q.SortBy = "createdAt"
	}
	if q.SortOrder != "asc" {
		q.SortOrder = "desc"
	}
	return q
}

// Store is the persistence contract for history records. Writes are
// insert-only; the two delete operations target old rows only and back
// the maintenance jobs.
type Store interface {
	Insert(ctx context.Context, rec *model.PriceHistory) error
	Find(ctx context.Context, q Query) ([]model.PriceHistory, error)
	// FindSince returns records for the item (and sku, when non-empty)
	// created at or after since, oldest first.
	FindSince(ctx context.Context, itemID, sku string, since time.Time) ([]model.PriceHistory, error)
	Latest(ctx context.Context, itemID string) (*model.PriceHistory, error)
	ItemIDs(ctx context.Context) ([]string, error)
	// DeleteOlderPerItem keeps the keepRecent most recent records for
	// the item and deletes the rest.
	DeleteOlderPerItem(ctx context.Context, itemID string, keepRecent int) (int64, error)
	DeleteFailedBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

// Period is a bounded analytics window.
type Period string

const (
	Period7d  Period = "7d"
	Period30d Period = "30d"
	Period90d Period = "90d"
	Period1y  Period = "1y"
	PeriodAll Period = "all"
)

// Since resolves the window's start relative to now. The zero time
// means unbounded.
func (p Period) Since(now time.Time) (time.Time, bool) {
	switch p {
	case Period7d:
		return now.AddDate(0, 0, -7), true
	case Period30d:
		return now.AddDate(0, 0, -30), true
	case Period90d:
		return now.AddDate(0, 0, -90), true
	case Period1y:
		return now.AddDate(-1, 0, 0), true
	case PeriodAll:
		return time.Time{}, true
	}
	return time.Time{}, false
}

// PricePoint is one step of an item's price trail.
type PricePoint struct {
	Timestamp time.Time `json:"timestamp"`
	Price     float64   `json:"price"`
}

// Analytics summarizes an item's price movement over a period.
type Analytics struct {
	ItemID          string       `json:"itemId"`
	SKU             string       `json:"sku,omitempty"`
	Period          Period       `json:"period"`
	PriceAtStart    float64      `json:"priceAtStart"`
	CurrentPrice    float64      `json:"currentPrice"`
	TotalChange     float64      `json:"totalChange"`
	PercentChange   float64      `json:"percentChange"`
	ChangeFrequency int          `json:"changeFrequency"`
	PricePoints     []PricePoint `json:"pricePoints"`
}

// Summary is the lightweight last-change snapshot used by dashboards.
type Summary struct {
	ItemID          string                `json:"itemId"`
	SKU             string                `json:"sku,omitempty"`
	LastPrice       float64               `json:"lastPrice"`
	LastOldPrice    *float64              `json:"lastOldPrice,omitempty"`
	LastDirection   model.ChangeDirection `json:"lastDirection,omitempty"`
	LastStatus      model.HistoryStatus   `json:"lastStatus"`
	LastStrategy    string                `json:"lastStrategy,omitempty"`
	LastChangeAt    time.Time             `json:"lastChangeAt"`
	LastSuccess     bool                  `json:"lastSuccess"`
	HasAnyHistory   bool                  `json:"hasAnyHistory"`
	LastErrorDetail *model.ErrorDetail    `json:"lastErrorDetail,omitempty"`
}
