package history

import (
	"context"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/guarzo/repricer/internal/model"
)

// MemoryStore is an in-memory Store used by tests and by deployments
// without a database configured.
type MemoryStore struct {
	mu      sync.RWMutex
	records []model.PriceHistory
	nextID  int64
}

var _ Store = (*MemoryStore)(nil)

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{nextID: 1}
}

func (s *MemoryStore) Insert(_ context.Context, rec *model.PriceHistory) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if rec.ID == "" {
		rec.ID = strconv.FormatInt(s.nextID, 10)
		s.nextID++
	}
	s.records = append(s.records, *rec)
	return nil
}

func (s *MemoryStore) Find(_ context.Context, q Query) ([]model.PriceHistory, error) {
	s.mu.RLock()
	matched := s.matchLocked(q.ItemID, q.SKU, time.Time{})
	s.mu.RUnlock()

	sort.SliceStable(matched, func(i, j int) bool {
		var less bool
		switch q.SortBy {
		case "newPrice":
			less = matched[i].NewPrice < matched[j].NewPrice
		default:
			less = matched[i].CreatedAt.Before(matched[j].CreatedAt)
		}
		if q.SortOrder == "desc" {
			return !less
		}
		return less
	})

	start := (q.Page - 1) * q.Limit
	if start >= int64(len(matched)) {
		return []model.PriceHistory{}, nil
	}
	end := start + q.Limit
	if end > int64(len(matched)) {
		end = int64(len(matched))
	}
	return matched[start:end], nil
}

func (s *MemoryStore) FindSince(_ context.Context, itemID, sku string, since time.Time) ([]model.PriceHistory, error) {
	s.mu.RLock()
	matched := s.matchLocked(itemID, sku, since)
	s.mu.RUnlock()

	sort.SliceStable(matched, func(i, j int) bool {
		return matched[i].CreatedAt.Before(matched[j].CreatedAt)
	})
	return matched, nil
}

func (s *MemoryStore) Latest(_ context.Context, itemID string) (*model.PriceHistory, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var latest *model.PriceHistory
	for i := range s.records {
		rec := &s.records[i]
		if rec.ItemID != itemID {
			continue
		}
		if latest == nil || rec.CreatedAt.After(latest.CreatedAt) {
			latest = rec
		}
	}
	if latest == nil {
		return nil, nil
	}
	out := *latest
	return &out, nil
}

func (s *MemoryStore) ItemIDs(_ context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	seen := make(map[string]struct{})
	var ids []string
	for _, rec := range s.records {
		if _, ok := seen[rec.ItemID]; !ok {
			seen[rec.ItemID] = struct{}{}
			ids = append(ids, rec.ItemID)
		}
	}
	return ids, nil
}

func (s *MemoryStore) DeleteOlderPerItem(_ context.Context, itemID string, keepRecent int) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var itemRecs []model.PriceHistory
	for _, rec := range s.records {
		if rec.ItemID == itemID {
			itemRecs = append(itemRecs, rec)
		}
	}
	if len(itemRecs) <= keepRecent {
		return 0, nil
	}

	sort.SliceStable(itemRecs, func(i, j int) bool {
		return itemRecs[i].CreatedAt.After(itemRecs[j].CreatedAt)
	})
	drop := make(map[string]struct{})
	for _, rec := range itemRecs[keepRecent:] {
		drop[rec.ID] = struct{}{}
	}

	kept := s.records[:0]
	for _, rec := range s.records {
		if _, gone := drop[rec.ID]; !gone {
			kept = append(kept, rec)
		}
	}
	deleted := int64(len(s.records) - len(kept))
	s.records = kept
	return deleted, nil
}

func (s *MemoryStore) DeleteFailedBefore(_ context.Context, cutoff time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	kept := s.records[:0]
	var deleted int64
	for _, rec := range s.records {
		if !rec.Success && rec.CreatedAt.Before(cutoff) {
			deleted++
			continue
		}
		kept = append(kept, rec)
	}
	s.records = kept
	return deleted, nil
}

// matchLocked returns copies of records matching the filters. Caller
// holds at least a read lock.
func (s *MemoryStore) matchLocked(itemID, sku string, since time.Time) []model.PriceHistory {
	var matched []model.PriceHistory
	for _, rec := range s.records {
		if itemID != "" && rec.ItemID != itemID {
			continue
		}
		if sku != "" && rec.SKU != sku {
			continue
		}
		if !since.IsZero() && rec.CreatedAt.Before(since) {
			continue
		}
		matched = append(matched, rec)
	}
	return matched
}
