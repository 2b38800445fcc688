// Package rule applies a competitor rule to a raw competitor list,
// producing the admissible subset used by price computation.
package rule

import (
	"strings"

	"github.com/guarzo/repricer/internal/model"
)

// Input bundles everything the filter needs from the listing side.
type Input struct {
	Competitors  []model.CompetitorSnapshot
	CurrentPrice float64
	Identifiers  model.ProductIdentifiers
}

// Result is the admissible subset plus the exclusion count kept for
// auditing.
type Result struct {
	Admissible    []model.CompetitorSnapshot
	ExcludedCount int
}

// Prices returns just the admissible prices, lowest-first not
// guaranteed.
func (r Result) Prices() []float64 {
	prices := make([]float64, 0, len(r.Admissible))
	for _, c := range r.Admissible {
		prices = append(prices, c.Price)
	}
	return prices
}

// Apply runs every competitor through the rule's predicates,
// short-circuiting on the first failing one. A zero-valued rule admits
// everything.
func Apply(r model.CompetitorRule, in Input) Result {
	out := Result{Admissible: make([]model.CompetitorSnapshot, 0, len(in.Competitors))}
	for _, c := range in.Competitors {
		if admissible(r, in, c) {
			out.Admissible = append(out.Admissible, c)
		} else {
			out.ExcludedCount++
		}
	}
	return out
}

func admissible(r model.CompetitorRule, in Input, c model.CompetitorSnapshot) bool {
	if !withinPercentBand(r, in.CurrentPrice, c.Price) {
		return false
	}
	if containsFold(r.ExcludeCountries, c.Country) {
		return false
	}
	if containsFold(r.ExcludeConditions, c.Condition) {
		return false
	}
	if contains(r.ExcludeSellers, c.SellerName) {
		return false
	}
	if titleExcluded(r.ExcludeProductTitleWords, c.Title) {
		return false
	}
	if r.FindCompetitorsBasedOnMPN && !identifiersMatch(in.Identifiers, c.Identifiers) {
		return false
	}
	return true
}

// withinPercentBand checks competitorPrice/currentPrice*100 against the
// rule's bounds. An unset max falls back to the permissive default.
// With no usable current price the band cannot be computed and the
// predicate passes.
func withinPercentBand(r model.CompetitorRule, currentPrice, competitorPrice float64) bool {
	if currentPrice <= 0 {
		return true
	}
	minPct := r.MinPercentOfCurrentPrice
	maxPct := r.MaxPercentOfCurrentPrice
	if maxPct <= 0 {
		maxPct = model.DefaultMaxPercent
	}
	pct := competitorPrice / currentPrice * 100
	return pct >= minPct && pct <= maxPct
}

func contains(set []string, v string) bool {
	for _, s := range set {
		if s == v {
			return true
		}
	}
	return false
}

func containsFold(set []string, v string) bool {
	for _, s := range set {
		if strings.EqualFold(s, v) {
			return true
		}
	}
	return false
}

func titleExcluded(words []string, title string) bool {
	if len(words) == 0 {
		return false
	}
	lower := strings.ToLower(title)
	for _, w := range words {
		if w == "" {
			continue
		}
		if strings.Contains(lower, strings.ToLower(w)) {
			return true
		}
	}
	return false
}

// identifiersMatch requires at least one of MPN/UPC/EAN/ISBN to match
// between the listing and the competitor. Empty identifiers never
// match.
func identifiersMatch(listing, competitor model.ProductIdentifiers) bool {
	pairs := [][2]string{
		{listing.MPN, competitor.MPN},
		{listing.UPC, competitor.UPC},
		{listing.EAN, competitor.EAN},
		{listing.ISBN, competitor.ISBN},
	}
	for _, p := range pairs {
		if p[0] != "" && strings.EqualFold(p[0], p[1]) {
			return true
		}
	}
	return false
}
