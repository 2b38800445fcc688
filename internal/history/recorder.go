package history

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/guarzo/repricer/internal/model"
)

// Recorder validates, derives, and appends history records, and serves
// the read-side queries. Records are never mutated after insert.
type Recorder struct {
	store Store
	now   func() time.Time
}

// NewRecorder creates a recorder over the given store.
func NewRecorder(store Store) *Recorder {
	return &Recorder{store: store, now: time.Now}
}

// Record validates the entry, derives the change fields from
// oldPrice/newPrice when not already supplied, and appends it.
func (r *Recorder) Record(ctx context.Context, entry *model.PriceHistory) (*model.PriceHistory, error) {
	if entry.Source == "" {
		entry.Source = model.SourceSystem
	}
	if err := entry.ValidateRecord(); err != nil {
		return nil, err
	}

	deriveChange(entry)

	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = r.now().UTC()
	}

	if err := r.store.Insert(ctx, entry); err != nil {
		return nil, fmt.Errorf("inserting history record: %w", err)
	}
	return entry, nil
}

// deriveChange fills ChangeAmount, ChangePercentage, and
// ChangeDirection from the price pair. Percentage stays nil when the
// old price is unknown or zero.
func deriveChange(entry *model.PriceHistory) {
	if entry.OldPrice == nil {
		return
	}
	if entry.ChangeAmount == nil {
		entry.ChangeAmount = model.Float64Ptr(entry.NewPrice - *entry.OldPrice)
	}
	if entry.ChangePercentage == nil && *entry.OldPrice != 0 {
		entry.ChangePercentage = model.Float64Ptr(*entry.ChangeAmount / *entry.OldPrice * 100)
	}
	if entry.ChangeDirection == "" {
		switch {
		case *entry.ChangeAmount > 0:
			entry.ChangeDirection = model.DirectionIncreased
		case *entry.ChangeAmount < 0:
			entry.ChangeDirection = model.DirectionDecreased
		default:
			entry.ChangeDirection = model.DirectionUnchanged
		}
	}
}

// Query returns records matching q, most-recent-first by default.
func (r *Recorder) Query(ctx context.Context, q Query) ([]model.PriceHistory, error) {
	return r.store.Find(ctx, q.normalized())
}

// Analytics computes the price-movement summary for an item over the
// period window.
func (r *Recorder) Analytics(ctx context.Context, itemID, sku string, period Period) (*Analytics, error) {
	since, ok := period.Since(r.now())
	if !ok {
		return nil, fmt.Errorf("%w: unknown analytics period %q", model.ErrValidation, period)
	}

	records, err := r.store.FindSince(ctx, itemID, sku, since)
	if err != nil {
		return nil, fmt.Errorf("loading history window: %w", err)
	}

	a := &Analytics{
		ItemID:      itemID,
		SKU:         sku,
		Period:      period,
		PricePoints: []PricePoint{},
	}

	for _, rec := range records {
		if !rec.Success {
			continue
		}
		a.PricePoints = append(a.PricePoints, PricePoint{Timestamp: rec.CreatedAt, Price: rec.NewPrice})
		if rec.ChangeDirection == model.DirectionIncreased || rec.ChangeDirection == model.DirectionDecreased {
			a.ChangeFrequency++
		}
	}

	if len(a.PricePoints) == 0 {
		return a, nil
	}

	first := firstSuccessful(records)
	if first.OldPrice != nil {
		a.PriceAtStart = *first.OldPrice
	} else {
		a.PriceAtStart = first.NewPrice
	}
	a.CurrentPrice = a.PricePoints[len(a.PricePoints)-1].Price
	a.TotalChange = a.CurrentPrice - a.PriceAtStart
	if a.PriceAtStart != 0 {
		a.PercentChange = a.TotalChange / a.PriceAtStart * 100
	}

	return a, nil
}

func firstSuccessful(records []model.PriceHistory) model.PriceHistory {
	for _, rec := range records {
		if rec.Success {
			return rec
		}
	}
	return records[0]
}

// Summary returns the last-change snapshot for dashboard display.
func (r *Recorder) Summary(ctx context.Context, itemID string) (*Summary, error) {
	latest, err := r.store.Latest(ctx, itemID)
	if err != nil {
		return nil, fmt.Errorf("loading latest record: %w", err)
	}
	if latest == nil {
		return &Summary{ItemID: itemID}, nil
	}
	return &Summary{
		ItemID:          itemID,
		SKU:             latest.SKU,
		LastPrice:       latest.NewPrice,
		LastOldPrice:    latest.OldPrice,
		LastDirection:   latest.ChangeDirection,
		LastStatus:      latest.Status,
		LastStrategy:    latest.StrategyName,
		LastChangeAt:    latest.CreatedAt,
		LastSuccess:     latest.Success,
		HasAnyHistory:   true,
		LastErrorDetail: latest.Detail,
	}, nil
}

// Archive keeps only the keepRecentCount most recent records per item
// and deletes the rest. Safe to run concurrently with new writes: only
// rows past the retention position are targeted.
func (r *Recorder) Archive(ctx context.Context, keepRecentCount int) (int64, error) {
	if keepRecentCount < 1 {
		return 0, fmt.Errorf("%w: keepRecentCount must be positive", model.ErrValidation)
	}
	items, err := r.store.ItemIDs(ctx)
	if err != nil {
		return 0, fmt.Errorf("listing history items: %w", err)
	}

	var total int64
	for _, itemID := range items {
		deleted, err := r.store.DeleteOlderPerItem(ctx, itemID, keepRecentCount)
		if err != nil {
			return total, fmt.Errorf("archiving item %s: %w", itemID, err)
		}
		total += deleted
	}
	if total > 0 {
		slog.Info("archived history records", "deleted", total, "keepRecent", keepRecentCount)
	}
	return total, nil
}

// CleanupFailed deletes failed records older than daysOld days.
func (r *Recorder) CleanupFailed(ctx context.Context, daysOld int) (int64, error) {
	if daysOld < 1 {
		return 0, fmt.Errorf("%w: daysOld must be positive", model.ErrValidation)
	}
	cutoff := r.now().AddDate(0, 0, -daysOld)
	deleted, err := r.store.DeleteFailedBefore(ctx, cutoff)
	if err != nil {
		return 0, fmt.Errorf("cleaning up failed records: %w", err)
	}
	if deleted > 0 {
		slog.Info("cleaned up failed history records", "deleted", deleted, "olderThanDays", daysOld)
	}
	return deleted, nil
}
