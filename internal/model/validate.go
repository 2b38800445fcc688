package model

// Default percent bounds applied when a rule leaves them unset. A
// zero-valued rule must behave as the identity filter.
const (
	DefaultMinPercent = 0
	DefaultMaxPercent = 1000
)

// NormalizeFraction converts a percentage to its canonical decimal
// fraction form. Values above 1 are treated as human percentages
// (10 means 10%) and divided by 100; values in [0,1] pass through.
// The stored representation is always the fraction.
func NormalizeFraction(v float64) float64 {
	if v > 1 {
		return v / 100
	}
	return v
}

// Validate checks the strategy invariants.
func (s *PricingStrategy) Validate() error {
	if s.StrategyName == "" {
		return validationErr("strategy name is required")
	}
	switch s.RepricingRule {
	case RuleMatchLowest, RuleBeatLowest, RuleStayAbove:
	default:
		return validationErr("unknown repricing rule %q", s.RepricingRule)
	}
	if s.RepricingRule != RuleMatchLowest {
		switch s.AdjustmentType {
		case AdjustAmount, AdjustPercentage:
		default:
			return validationErr("unknown adjustment type %q", s.AdjustmentType)
		}
		if s.AdjustmentValue < 0 {
			return validationErr("adjustment value must be non-negative, got %v", s.AdjustmentValue)
		}
	}
	switch s.NoCompetitionAction {
	case NoCompUseMaxPrice, NoCompUseMinPrice, NoCompKeepCurrent:
	default:
		return validationErr("unknown no-competition action %q", s.NoCompetitionAction)
	}
	return nil
}

// Validate checks the rule invariants.
func (r *CompetitorRule) Validate() error {
	if r.MinPercentOfCurrentPrice < 0 {
		return validationErr("minPercentOfCurrentPrice must be non-negative")
	}
	if r.MaxPercentOfCurrentPrice != 0 && r.MinPercentOfCurrentPrice > r.MaxPercentOfCurrentPrice {
		return validationErr("minPercentOfCurrentPrice %v exceeds maxPercentOfCurrentPrice %v",
			r.MinPercentOfCurrentPrice, r.MaxPercentOfCurrentPrice)
	}
	return nil
}

// Validate checks the listing attachment invariants.
func (l *Listing) Validate() error {
	if l.ItemID == "" {
		return validationErr("item ID is required")
	}
	if l.MinPrice != nil && l.MaxPrice != nil && *l.MinPrice > *l.MaxPrice {
		return validationErr("minPrice %v exceeds maxPrice %v", *l.MinPrice, *l.MaxPrice)
	}
	return nil
}

// ValidateRecord checks the required fields of a history entry before
// it is appended.
func (h *PriceHistory) ValidateRecord() error {
	if h.ItemID == "" {
		return validationErr("history record requires itemId")
	}
	if h.NewPrice < 0 {
		return validationErr("history record newPrice must be non-negative")
	}
	switch h.Status {
	case StatusDone, StatusSkipped, StatusError, StatusManual:
	default:
		return validationErr("unknown history status %q", h.Status)
	}
	switch h.Source {
	case SourceAPI, SourceManual, SourceSystem:
	default:
		return validationErr("unknown history source %q", h.Source)
	}
	return nil
}
