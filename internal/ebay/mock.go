package ebay

import (
	"context"
	"sync"

	"github.com/guarzo/repricer/internal/model"
)

// MockGateway is a scriptable Gateway for tests and dry runs.
type MockGateway struct {
	mu sync.Mutex

	Competitors map[string][]model.CompetitorSnapshot
	Prices      map[string]float64

	CompetitorsErr error
	PriceErr       error
	UpdateErr      error

	// Updates records every UpdatePrice call in order.
	Updates []PriceUpdate
}

// PriceUpdate is one recorded UpdatePrice invocation.
type PriceUpdate struct {
	ItemID   string
	SKU      string
	NewPrice float64
}

var _ Gateway = (*MockGateway)(nil)

func NewMockGateway() *MockGateway {
	return &MockGateway{
		Competitors: make(map[string][]model.CompetitorSnapshot),
		Prices:      make(map[string]float64),
	}
}

func (m *MockGateway) GetManualCompetitors(ctx context.Context, itemID string) ([]model.CompetitorSnapshot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.CompetitorsErr != nil {
		return nil, m.CompetitorsErr
	}
	return m.Competitors[itemID], nil
}

func (m *MockGateway) GetCurrentPrice(ctx context.Context, itemID, sku string) (float64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.PriceErr != nil {
		return 0, m.PriceErr
	}
	return m.Prices[itemID], nil
}

func (m *MockGateway) UpdatePrice(ctx context.Context, itemID, sku string, newPrice float64) (*UpdateResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.UpdateErr != nil {
		return &UpdateResult{Success: false, Raw: m.UpdateErr.Error()}, m.UpdateErr
	}
	m.Updates = append(m.Updates, PriceUpdate{ItemID: itemID, SKU: sku, NewPrice: newPrice})
	m.Prices[itemID] = newPrice
	return &UpdateResult{Success: true, Raw: "<ReviseItemResponse><Ack>Success</Ack></ReviseItemResponse>"}, nil
}

// UpdateCount returns how many updates were recorded.
func (m *MockGateway) UpdateCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Updates)
}
