package testutil

import (
	"testing"

	"github.com/guarzo/repricer/internal/model"
)

func TestFactoryDeterministicWithSeed(t *testing.T) {
	a := NewTestDataFactory(42)
	b := NewTestDataFactory(42)

	if a.GenerateItemID() != b.GenerateItemID() {
		t.Error("same seed should produce the same item IDs")
	}
	if a.GeneratePrice() != b.GeneratePrice() {
		t.Error("same seed should produce the same prices")
	}
}

func TestFactoryProducesValidModels(t *testing.T) {
	f := NewTestDataFactory(1)

	for _, rule := range []model.RepricingRule{model.RuleMatchLowest, model.RuleBeatLowest, model.RuleStayAbove} {
		s := f.Strategy(rule)
		if err := s.Validate(); err != nil {
			t.Errorf("Strategy(%s) invalid: %v", rule, err)
		}
	}

	l := f.Listing("strategy-1", f.GeneratePrice(), f.Competitor(f.GeneratePrice()))
	if err := l.Validate(); err != nil {
		t.Errorf("Listing invalid: %v", err)
	}
	if len(l.Competitors) != 1 {
		t.Errorf("competitors = %d, want 1", len(l.Competitors))
	}
}

func TestGeneratePriceRange(t *testing.T) {
	f := NewTestDataFactory(7)
	for i := 0; i < 100; i++ {
		p := f.GeneratePrice()
		if p < 5 || p > 500 {
			t.Fatalf("price %v out of range", p)
		}
	}
}
