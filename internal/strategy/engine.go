// Package strategy computes a candidate price from a pricing strategy
// and the admissible competitor prices.
package strategy

import (
	"fmt"
	"math"

	"github.com/guarzo/repricer/internal/model"
)

// Epsilon is the minimum price difference that warrants an update. A
// one-cent threshold avoids floating-point no-op revisions.
const Epsilon = 0.01

// Computation is the engine's decision for a single listing.
type Computation struct {
	Candidate             float64  `json:"candidate"`
	UpdateNeeded          bool     `json:"updateNeeded"`
	LowestCompetitorPrice *float64 `json:"lowestCompetitorPrice,omitempty"`
	Reason                string   `json:"reason"`
}

// Bounds are the per-listing clamp limits. Nil means unset.
type Bounds struct {
	Min *float64
	Max *float64
}

// Compute applies the strategy to the admissible competitor prices and
// the current price. The candidate is clamped to the listing bounds and
// rounded to cents; UpdateNeeded is decided against Epsilon.
func Compute(s model.PricingStrategy, admissible []float64, currentPrice float64, bounds Bounds) (Computation, error) {
	if err := s.Validate(); err != nil {
		return Computation{}, err
	}
	if bounds.Min != nil && bounds.Max != nil && *bounds.Min > *bounds.Max {
		return Computation{}, fmt.Errorf("%w: minPrice %v exceeds maxPrice %v", model.ErrValidation, *bounds.Min, *bounds.Max)
	}

	if len(admissible) == 0 {
		return noCompetition(s, currentPrice, bounds), nil
	}

	lowest := admissible[0]
	for _, p := range admissible[1:] {
		if p < lowest {
			lowest = p
		}
	}

	var candidate float64
	var reason string
	switch s.RepricingRule {
	case model.RuleMatchLowest:
		candidate = lowest
		reason = fmt.Sprintf("matching lowest competitor at %.2f", lowest)
	case model.RuleBeatLowest:
		candidate = adjust(lowest, s, -1)
		reason = fmt.Sprintf("beating lowest competitor %.2f", lowest)
	case model.RuleStayAbove:
		candidate = adjust(lowest, s, 1)
		reason = fmt.Sprintf("staying above lowest competitor %.2f", lowest)
	}

	candidate = clamp(candidate, bounds)
	candidate = roundCents(candidate)

	return Computation{
		Candidate:             candidate,
		UpdateNeeded:          math.Abs(candidate-currentPrice) >= Epsilon,
		LowestCompetitorPrice: model.Float64Ptr(lowest),
		Reason:                reason,
	}, nil
}

// noCompetition applies the strategy's fallback policy when the
// admissible set is empty. A bound-based action with no bound
// configured degrades to keeping the current price.
func noCompetition(s model.PricingStrategy, currentPrice float64, bounds Bounds) Computation {
	c := Computation{Candidate: currentPrice, Reason: "no admissible competitors, keeping current price"}

	switch s.NoCompetitionAction {
	case model.NoCompUseMaxPrice:
		if bounds.Max != nil {
			c.Candidate = roundCents(*bounds.Max)
			c.Reason = "no admissible competitors, using max price"
		}
	case model.NoCompUseMinPrice:
		if bounds.Min != nil {
			c.Candidate = roundCents(*bounds.Min)
			c.Reason = "no admissible competitors, using min price"
		}
	case model.NoCompKeepCurrent:
		// explicit no-op
	}

	c.UpdateNeeded = math.Abs(c.Candidate-currentPrice) >= Epsilon
	return c
}

// adjust applies the strategy's beat-by / stay-above-by adjustment in
// the given direction. Percentages are stored as decimal fractions;
// human percentages are normalized at the boundary.
func adjust(lowest float64, s model.PricingStrategy, direction float64) float64 {
	switch s.AdjustmentType {
	case model.AdjustAmount:
		return lowest + direction*s.AdjustmentValue
	case model.AdjustPercentage:
		frac := model.NormalizeFraction(s.AdjustmentValue)
		return lowest * (1 + direction*frac)
	}
	return lowest
}

func clamp(v float64, bounds Bounds) float64 {
	if bounds.Max != nil && v > *bounds.Max {
		v = *bounds.Max
	}
	if bounds.Min != nil && v < *bounds.Min {
		v = *bounds.Min
	}
	return v
}

// roundCents rounds to currency-minor-unit precision.
func roundCents(v float64) float64 {
	return math.Round(v*100) / 100
}
