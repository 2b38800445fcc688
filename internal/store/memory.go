package store

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/guarzo/repricer/internal/model"
)

var memorySeq int64

func nextMemoryID() string {
	return strconv.FormatInt(atomic.AddInt64(&memorySeq, 1), 10)
}

// MemoryStrategies is an in-memory Strategies implementation used by
// tests and database-less runs.
type MemoryStrategies struct {
	mu         sync.RWMutex
	strategies map[string]model.PricingStrategy
}

var _ Strategies = (*MemoryStrategies)(nil)

func NewMemoryStrategies() *MemoryStrategies {
	return &MemoryStrategies{strategies: make(map[string]model.PricingStrategy)}
}

func (m *MemoryStrategies) Get(_ context.Context, id string) (*model.PricingStrategy, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	s, ok := m.strategies[id]
	if !ok {
		return nil, fmt.Errorf("strategy %s: %w", id, model.ErrNotFound)
	}
	return &s, nil
}

func (m *MemoryStrategies) GetByName(_ context.Context, ownerID, name string) (*model.PricingStrategy, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for _, s := range m.strategies {
		if s.OwnerID == ownerID && s.StrategyName == name {
			out := s
			return &out, nil
		}
	}
	return nil, fmt.Errorf("strategy %s/%s: %w", ownerID, name, model.ErrNotFound)
}

func (m *MemoryStrategies) Put(_ context.Context, s *model.PricingStrategy) error {
	if err := s.Validate(); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if s.ID == "" {
		s.ID = nextMemoryID()
		s.CreatedAt = time.Now().UTC()
	}
	s.UpdatedAt = time.Now().UTC()
	m.strategies[s.ID] = *s
	return nil
}

func (m *MemoryStrategies) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.strategies, id)
	return nil
}

func (m *MemoryStrategies) List(_ context.Context, ownerID string) ([]model.PricingStrategy, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []model.PricingStrategy
	for _, s := range m.strategies {
		if ownerID == "" || s.OwnerID == ownerID {
			out = append(out, s)
		}
	}
	return out, nil
}

// MemoryRules is an in-memory Rules implementation.
type MemoryRules struct {
	mu    sync.RWMutex
	rules map[string]model.CompetitorRule
}

var _ Rules = (*MemoryRules)(nil)

func NewMemoryRules() *MemoryRules {
	return &MemoryRules{rules: make(map[string]model.CompetitorRule)}
}

func (m *MemoryRules) Get(_ context.Context, id string) (*model.CompetitorRule, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	r, ok := m.rules[id]
	if !ok {
		return nil, fmt.Errorf("rule %s: %w", id, model.ErrNotFound)
	}
	return &r, nil
}

func (m *MemoryRules) Put(_ context.Context, r *model.CompetitorRule) error {
	if err := r.Validate(); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if r.ID == "" {
		r.ID = nextMemoryID()
	}
	m.rules[r.ID] = *r
	return nil
}

func (m *MemoryRules) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.rules, id)
	return nil
}

func (m *MemoryRules) RecordUsage(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	r, ok := m.rules[id]
	if !ok {
		return fmt.Errorf("rule %s: %w", id, model.ErrNotFound)
	}
	r.TimesUsed++
	r.LastUsedAt = time.Now().UTC()
	m.rules[id] = r
	return nil
}

// MemoryListings is an in-memory Listings implementation.
type MemoryListings struct {
	mu       sync.RWMutex
	listings map[string]model.Listing
}

var _ Listings = (*MemoryListings)(nil)

func NewMemoryListings() *MemoryListings {
	return &MemoryListings{listings: make(map[string]model.Listing)}
}

func (m *MemoryListings) Get(_ context.Context, itemID string) (*model.Listing, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	l, ok := m.listings[itemID]
	if !ok {
		return nil, fmt.Errorf("listing %s: %w", itemID, model.ErrNotFound)
	}
	return &l, nil
}

func (m *MemoryListings) Put(_ context.Context, l *model.Listing) error {
	if err := l.Validate(); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if l.CreatedAt.IsZero() {
		l.CreatedAt = time.Now().UTC()
	}
	l.UpdatedAt = time.Now().UTC()
	m.listings[l.ItemID] = *l
	return nil
}

func (m *MemoryListings) Delete(_ context.Context, itemID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.listings, itemID)
	return nil
}

func (m *MemoryListings) Monitored(_ context.Context) ([]model.Listing, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []model.Listing
	for _, l := range m.listings {
		if l.MonitoringEnabled {
			out = append(out, l)
		}
	}
	return out, nil
}

func (m *MemoryListings) WithCompetitors(_ context.Context) ([]model.Listing, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []model.Listing
	for _, l := range m.listings {
		if len(l.Competitors) > 0 {
			out = append(out, l)
		}
	}
	return out, nil
}

func (m *MemoryListings) SetCurrentPrice(_ context.Context, itemID string, price float64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	l, ok := m.listings[itemID]
	if !ok {
		return fmt.Errorf("listing %s: %w", itemID, model.ErrNotFound)
	}
	l.CurrentPrice = price
	l.UpdatedAt = time.Now().UTC()
	m.listings[itemID] = l
	return nil
}
