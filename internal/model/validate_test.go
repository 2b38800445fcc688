package model

import (
	"errors"
	"testing"
)

func validStrategy() PricingStrategy {
	return PricingStrategy{
		OwnerID:             "seller-1",
		StrategyName:        "undercut",
		RepricingRule:       RuleBeatLowest,
		AdjustmentType:      AdjustAmount,
		AdjustmentValue:     1,
		NoCompetitionAction: NoCompKeepCurrent,
		IsActive:            true,
	}
}

func TestPricingStrategyValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*PricingStrategy)
		wantErr bool
	}{
		{"valid beat lowest", func(s *PricingStrategy) {}, false},
		{"valid match lowest without adjustment", func(s *PricingStrategy) {
			s.RepricingRule = RuleMatchLowest
			s.AdjustmentType = ""
			s.AdjustmentValue = 0
		}, false},
		{"missing name", func(s *PricingStrategy) { s.StrategyName = "" }, true},
		{"unknown rule", func(s *PricingStrategy) { s.RepricingRule = "UNDERCUT" }, true},
		{"unknown adjustment type", func(s *PricingStrategy) { s.AdjustmentType = "FIXED" }, true},
		{"negative adjustment", func(s *PricingStrategy) { s.AdjustmentValue = -1 }, true},
		{"unknown no-competition action", func(s *PricingStrategy) { s.NoCompetitionAction = "PANIC" }, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := validStrategy()
			tt.mutate(&s)
			err := s.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil && !errors.Is(err, ErrValidation) {
				t.Errorf("error %v does not wrap ErrValidation", err)
			}
		})
	}
}

func TestCompetitorRuleValidate(t *testing.T) {
	tests := []struct {
		name    string
		rule    CompetitorRule
		wantErr bool
	}{
		{"zero rule is identity", CompetitorRule{}, false},
		{"valid band", CompetitorRule{MinPercentOfCurrentPrice: 50, MaxPercentOfCurrentPrice: 150}, false},
		{"unset max with min", CompetitorRule{MinPercentOfCurrentPrice: 50}, false},
		{"negative min", CompetitorRule{MinPercentOfCurrentPrice: -1}, true},
		{"inverted band", CompetitorRule{MinPercentOfCurrentPrice: 150, MaxPercentOfCurrentPrice: 50}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := tt.rule.Validate(); (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestListingValidate(t *testing.T) {
	tests := []struct {
		name    string
		listing Listing
		wantErr bool
	}{
		{"minimal", Listing{ItemID: "1"}, false},
		{"with bounds", Listing{ItemID: "1", MinPrice: Float64Ptr(10), MaxPrice: Float64Ptr(20)}, false},
		{"missing item id", Listing{}, true},
		{"inverted bounds", Listing{ItemID: "1", MinPrice: Float64Ptr(20), MaxPrice: Float64Ptr(10)}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := tt.listing.Validate(); (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestPriceHistoryValidateRecord(t *testing.T) {
	tests := []struct {
		name    string
		record  PriceHistory
		wantErr bool
	}{
		{"valid", PriceHistory{ItemID: "1", NewPrice: 10, Status: StatusDone, Source: SourceSystem}, false},
		{"missing item", PriceHistory{NewPrice: 10, Status: StatusDone, Source: SourceSystem}, true},
		{"negative price", PriceHistory{ItemID: "1", NewPrice: -1, Status: StatusDone, Source: SourceSystem}, true},
		{"unknown status", PriceHistory{ItemID: "1", NewPrice: 10, Status: "Pending", Source: SourceSystem}, true},
		{"unknown source", PriceHistory{ItemID: "1", NewPrice: 10, Status: StatusDone, Source: "cron"}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := tt.record.ValidateRecord(); (err != nil) != tt.wantErr {
				t.Errorf("ValidateRecord() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestNormalizeFraction(t *testing.T) {
	tests := []struct {
		in   float64
		want float64
	}{
		{0.1, 0.1},
		{1, 1},
		{10, 0.1},
		{0, 0},
		{100, 1},
	}
	for _, tt := range tests {
		if got := NormalizeFraction(tt.in); got != tt.want {
			t.Errorf("NormalizeFraction(%v) = %v, want %v", tt.in, got, tt.want)
		}
	}
}
