package model

import (
	"time"
)

// RepricingRule is the core policy of a pricing strategy, applied
// relative to the lowest admissible competitor price.
type RepricingRule string

const (
	RuleMatchLowest RepricingRule = "MATCH_LOWEST"
	RuleBeatLowest  RepricingRule = "BEAT_LOWEST"
	RuleStayAbove   RepricingRule = "STAY_ABOVE"
)

// AdjustmentType controls how AdjustmentValue is interpreted under
// BEAT_LOWEST and STAY_ABOVE.
type AdjustmentType string

const (
	AdjustAmount     AdjustmentType = "AMOUNT"
	AdjustPercentage AdjustmentType = "PERCENTAGE"
)

// NoCompetitionAction is the fallback policy when no admissible
// competitor exists.
type NoCompetitionAction string

const (
	NoCompUseMaxPrice NoCompetitionAction = "USE_MAX_PRICE"
	NoCompUseMinPrice NoCompetitionAction = "USE_MIN_PRICE"
	NoCompKeepCurrent NoCompetitionAction = "KEEP_CURRENT"
)

// PricingStrategy is a reusable repricing policy owned by a seller.
// Price bounds are deliberately NOT part of the strategy: the same
// strategy can be attached to listings of very different value, so
// min/max live on the listing attachment.
type PricingStrategy struct {
	ID                  string              `json:"id" bson:"_id,omitempty"`
	OwnerID             string              `json:"ownerId" bson:"ownerId"`
	StrategyName        string              `json:"strategyName" bson:"strategyName"`
	RepricingRule       RepricingRule       `json:"repricingRule" bson:"repricingRule"`
	AdjustmentType      AdjustmentType      `json:"adjustmentType,omitempty" bson:"adjustmentType,omitempty"`
	AdjustmentValue     float64             `json:"adjustmentValue" bson:"adjustmentValue"`
	NoCompetitionAction NoCompetitionAction `json:"noCompetitionAction" bson:"noCompetitionAction"`
	IsActive            bool                `json:"isActive" bson:"isActive"`
	CreatedAt           time.Time           `json:"createdAt" bson:"createdAt"`
	UpdatedAt           time.Time           `json:"updatedAt" bson:"updatedAt"`
}

// CompetitorRule filters the manually curated competitor list before
// price computation. Zero-valued bounds are treated as the permissive
// defaults (0 and 1000 percent).
type CompetitorRule struct {
	ID                        string    `json:"id" bson:"_id,omitempty"`
	OwnerID                   string    `json:"ownerId" bson:"ownerId"`
	RuleName                  string    `json:"ruleName" bson:"ruleName"`
	MinPercentOfCurrentPrice  float64   `json:"minPercentOfCurrentPrice" bson:"minPercentOfCurrentPrice"`
	MaxPercentOfCurrentPrice  float64   `json:"maxPercentOfCurrentPrice" bson:"maxPercentOfCurrentPrice"`
	ExcludeCountries          []string  `json:"excludeCountries,omitempty" bson:"excludeCountries,omitempty"`
	ExcludeConditions         []string  `json:"excludeConditions,omitempty" bson:"excludeConditions,omitempty"`
	ExcludeProductTitleWords  []string  `json:"excludeProductTitleWords,omitempty" bson:"excludeProductTitleWords,omitempty"`
	ExcludeSellers            []string  `json:"excludeSellers,omitempty" bson:"excludeSellers,omitempty"`
	FindCompetitorsBasedOnMPN bool      `json:"findCompetitorsBasedOnMPN" bson:"findCompetitorsBasedOnMPN"`
	TimesUsed                 int64     `json:"timesUsed" bson:"timesUsed"`
	LastUsedAt                time.Time `json:"lastUsedAt,omitempty" bson:"lastUsedAt,omitempty"`
}

// ProductIdentifiers carries the catalog identifiers of a listing,
// used by the MPN-based competitor matching mode.
type ProductIdentifiers struct {
	MPN  string `json:"mpn,omitempty" bson:"mpn,omitempty"`
	UPC  string `json:"upc,omitempty" bson:"upc,omitempty"`
	EAN  string `json:"ean,omitempty" bson:"ean,omitempty"`
	ISBN string `json:"isbn,omitempty" bson:"isbn,omitempty"`
}

// CompetitorSnapshot is a manually added competitor listing. It lives
// on the listing that tracks it until removed or replaced by the next
// manual search.
type CompetitorSnapshot struct {
	CompetitorItemID string             `json:"competitorItemId" bson:"competitorItemId"`
	Price            float64            `json:"price" bson:"price"`
	ShippingCost     float64            `json:"shippingCost" bson:"shippingCost"`
	SellerName       string             `json:"sellerName" bson:"sellerName"`
	Condition        string             `json:"condition" bson:"condition"`
	Country          string             `json:"country" bson:"country"`
	Title            string             `json:"title" bson:"title"`
	Identifiers      ProductIdentifiers `json:"identifiers,omitempty" bson:"identifiers,omitempty"`
	AddedAt          time.Time          `json:"addedAt" bson:"addedAt"`
}

// Listing is a monitored marketplace listing with its strategy
// attachment. MinPrice/MaxPrice are per-attachment bounds; nil means
// the bound is not set.
type Listing struct {
	ItemID            string               `json:"itemId" bson:"_id"`
	SKU               string               `json:"sku,omitempty" bson:"sku,omitempty"`
	OwnerID           string               `json:"ownerId" bson:"ownerId"`
	Title             string               `json:"title" bson:"title"`
	CurrentPrice      float64              `json:"currentPrice" bson:"currentPrice"`
	MinPrice          *float64             `json:"minPrice,omitempty" bson:"minPrice,omitempty"`
	MaxPrice          *float64             `json:"maxPrice,omitempty" bson:"maxPrice,omitempty"`
	StrategyID        string               `json:"strategyId" bson:"strategyId"`
	RuleID            string               `json:"ruleId,omitempty" bson:"ruleId,omitempty"`
	MonitoringEnabled bool                 `json:"monitoringEnabled" bson:"monitoringEnabled"`
	Identifiers       ProductIdentifiers   `json:"identifiers,omitempty" bson:"identifiers,omitempty"`
	Competitors       []CompetitorSnapshot `json:"competitors,omitempty" bson:"competitors,omitempty"`
	CreatedAt         time.Time            `json:"createdAt" bson:"createdAt"`
	UpdatedAt         time.Time            `json:"updatedAt" bson:"updatedAt"`
}

// ChangeDirection classifies a price change by the sign of its delta.
type ChangeDirection string

const (
	DirectionIncreased ChangeDirection = "increased"
	DirectionDecreased ChangeDirection = "decreased"
	DirectionUnchanged ChangeDirection = "unchanged"
)

// HistoryStatus is the terminal disposition of a repricing decision.
type HistoryStatus string

const (
	StatusDone    HistoryStatus = "Done"
	StatusSkipped HistoryStatus = "Skipped"
	StatusError   HistoryStatus = "Error"
	StatusManual  HistoryStatus = "Manual"
)

// HistorySource identifies what triggered the recorded decision.
type HistorySource string

const (
	SourceAPI    HistorySource = "api"
	SourceManual HistorySource = "manual"
	SourceSystem HistorySource = "system"
)

// PriceHistory is an immutable audit record, appended exactly once per
// orchestrator decision. Derived fields (ChangeAmount, ChangePercentage,
// ChangeDirection) are computed by the recorder when not supplied.
type PriceHistory struct {
	ID                    string            `json:"id" bson:"_id,omitempty"`
	ItemID                string            `json:"itemId" bson:"itemId"`
	SKU                   string            `json:"sku,omitempty" bson:"sku,omitempty"`
	OldPrice              *float64          `json:"oldPrice,omitempty" bson:"oldPrice,omitempty"`
	NewPrice              float64           `json:"newPrice" bson:"newPrice"`
	ChangeAmount          *float64          `json:"changeAmount,omitempty" bson:"changeAmount,omitempty"`
	ChangePercentage      *float64          `json:"changePercentage,omitempty" bson:"changePercentage,omitempty"`
	ChangeDirection       ChangeDirection   `json:"changeDirection,omitempty" bson:"changeDirection,omitempty"`
	CompetitorLowestPrice *float64          `json:"competitorLowestPrice,omitempty" bson:"competitorLowestPrice,omitempty"`
	StrategyName          string            `json:"strategyName,omitempty" bson:"strategyName,omitempty"`
	Status                HistoryStatus     `json:"status" bson:"status"`
	Success               bool              `json:"success" bson:"success"`
	Source                HistorySource     `json:"source" bson:"source"`
	Detail                *ErrorDetail      `json:"detail,omitempty" bson:"detail,omitempty"`
	Metadata              map[string]string `json:"metadata,omitempty" bson:"metadata,omitempty"`
	Error                 string            `json:"error,omitempty" bson:"error,omitempty"`
	CreatedAt             time.Time         `json:"createdAt" bson:"createdAt"`
}

// Float64Ptr returns a pointer to v. Convenience for optional prices.
func Float64Ptr(v float64) *float64 { return &v }
