package testutil

import (
	"fmt"
	"math/rand"
	"time"

	"github.com/guarzo/repricer/internal/model"
)

// TestDataFactory provides methods for generating dynamic test data
type TestDataFactory struct {
	rand *rand.Rand
}

// NewTestDataFactory creates a new test data factory with a seeded random generator
func NewTestDataFactory(seed int64) *TestDataFactory {
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	return &TestDataFactory{
		rand: rand.New(rand.NewSource(seed)),
	}
}

// GenerateItemID generates a random 12-digit listing item ID
func (f *TestDataFactory) GenerateItemID() string {
	return fmt.Sprintf("%012d", f.rand.Int63n(1_000_000_000_000))
}

// GeneratePrice generates a random price between $5.00 and $500.00
func (f *TestDataFactory) GeneratePrice() float64 {
	cents := f.rand.Intn(49500) + 500
	return float64(cents) / 100
}

// GenerateSellerName generates a random seller name
func (f *TestDataFactory) GenerateSellerName() string {
	return fmt.Sprintf("seller-%04d", f.rand.Intn(10000))
}

// GenerateDate generates a random date within the last year
func (f *TestDataFactory) GenerateDate() time.Time {
	days := f.rand.Intn(365)
	return time.Now().AddDate(0, 0, -days)
}

// Strategy builds a valid active strategy with the given rule
func (f *TestDataFactory) Strategy(ruleType model.RepricingRule) *model.PricingStrategy {
	s := &model.PricingStrategy{
		OwnerID:             f.GenerateSellerName(),
		StrategyName:        fmt.Sprintf("strategy-%d", f.rand.Intn(10000)),
		RepricingRule:       ruleType,
		NoCompetitionAction: model.NoCompKeepCurrent,
		IsActive:            true,
	}
	if ruleType != model.RuleMatchLowest {
		s.AdjustmentType = model.AdjustAmount
		s.AdjustmentValue = float64(f.rand.Intn(500)+1) / 100
	}
	return s
}

// Competitor builds a competitor snapshot at the given price
func (f *TestDataFactory) Competitor(price float64) model.CompetitorSnapshot {
	return model.CompetitorSnapshot{
		CompetitorItemID: f.GenerateItemID(),
		Price:            price,
		SellerName:       f.GenerateSellerName(),
		Condition:        "New",
		Country:          "US",
		Title:            fmt.Sprintf("Test Listing %d", f.rand.Intn(1000)),
		AddedAt:          f.GenerateDate(),
	}
}

// Listing builds a monitored listing bound to the strategy, carrying
// the given competitors
func (f *TestDataFactory) Listing(strategyID string, price float64, competitors ...model.CompetitorSnapshot) *model.Listing {
	return &model.Listing{
		ItemID:            f.GenerateItemID(),
		OwnerID:           f.GenerateSellerName(),
		Title:             fmt.Sprintf("Test Listing %d", f.rand.Intn(1000)),
		CurrentPrice:      price,
		StrategyID:        strategyID,
		MonitoringEnabled: true,
		Competitors:       competitors,
	}
}
