// Package reprice runs the repricing pipeline for a single listing:
// fetch, filter, compute, update, record. Every execution ends in
// exactly one price history record, except validation failures, which
// are rejected before the pipeline starts.
package reprice

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/guarzo/repricer/internal/ebay"
	"github.com/guarzo/repricer/internal/history"
	"github.com/guarzo/repricer/internal/model"
	"github.com/guarzo/repricer/internal/rule"
	"github.com/guarzo/repricer/internal/store"
	"github.com/guarzo/repricer/internal/strategy"
)

// defaultCallTimeout bounds each marketplace call so a hung request
// cannot stall a whole monitoring cycle.
const defaultCallTimeout = 15 * time.Second

// Request identifies one repricing execution.
type Request struct {
	ItemID string
	SKU    string
	Source model.HistorySource
}

// ExecutionResult is the outcome of one pipeline run.
type ExecutionResult struct {
	ItemID                string               `json:"itemId"`
	SKU                   string               `json:"sku,omitempty"`
	Status                model.HistoryStatus  `json:"status"`
	OldPrice              float64              `json:"oldPrice"`
	NewPrice              float64              `json:"newPrice"`
	Updated               bool                 `json:"updated"`
	Reason                string               `json:"reason,omitempty"`
	ExcludedCount         int                  `json:"excludedCount"`
	LowestCompetitorPrice *float64             `json:"lowestCompetitorPrice,omitempty"`
	Record                *model.PriceHistory  `json:"-"`
}

// Orchestrator drives the repricing pipeline. It holds a keyed
// single-flight lock so an item is never repriced concurrently.
type Orchestrator struct {
	listings    store.Listings
	strategies  store.Strategies
	rules       store.Rules
	gateway     ebay.Gateway
	recorder    *history.Recorder
	locks       *keyLock
	callTimeout time.Duration
}

func NewOrchestrator(listings store.Listings, strategies store.Strategies, rules store.Rules, gateway ebay.Gateway, recorder *history.Recorder) *Orchestrator {
	return &Orchestrator{
		listings:    listings,
		strategies:  strategies,
		rules:       rules,
		gateway:     gateway,
		recorder:    recorder,
		locks:       newKeyLock(),
		callTimeout: defaultCallTimeout,
	}
}

// SetCallTimeout overrides the per-call timeout. Used by tests and the
// scheduler's configuration.
func (o *Orchestrator) SetCallTimeout(d time.Duration) {
	if d > 0 {
		o.callTimeout = d
	}
}

// Execute runs the full pipeline for one listing. A second concurrent
// call for the same (itemID, sku) returns model.ErrConflict without
// touching the marketplace or the history log.
func (o *Orchestrator) Execute(ctx context.Context, req Request) (*ExecutionResult, error) {
	if req.ItemID == "" {
		return nil, fmt.Errorf("%w: itemId is required", model.ErrValidation)
	}
	if req.Source == "" {
		req.Source = model.SourceSystem
	}

	key := lockKey(req.ItemID, req.SKU)
	if !o.locks.tryAcquire(key) {
		return nil, fmt.Errorf("%w: item %s", model.ErrConflict, req.ItemID)
	}
	defer o.locks.release(key)

	return o.run(ctx, req)
}

func (o *Orchestrator) run(ctx context.Context, req Request) (*ExecutionResult, error) {
	listing, err := o.listings.Get(ctx, req.ItemID)
	if err != nil {
		return nil, fmt.Errorf("loading listing %s: %w", req.ItemID, err)
	}
	if err := listing.Validate(); err != nil {
		return nil, err
	}

	strat, err := o.strategies.Get(ctx, listing.StrategyID)
	if err != nil {
		return nil, fmt.Errorf("loading strategy for %s: %w", req.ItemID, err)
	}
	if err := strat.Validate(); err != nil {
		return nil, err
	}
	if !strat.IsActive {
		return o.finish(ctx, req, listing, strat, &model.PriceHistory{
			Status:   model.StatusSkipped,
			Success:  true,
			OldPrice: model.Float64Ptr(listing.CurrentPrice),
			NewPrice: listing.CurrentPrice,
			Metadata: map[string]string{"reason": "strategy inactive"},
		}, "strategy inactive")
	}

	// Fetching. The live price is authoritative; the stored one may be
	// stale between cycles.
	currentPrice, err := o.currentPrice(ctx, req)
	if err != nil {
		return o.recordFailure(ctx, req, listing, strat, nil, err, "fetching current price")
	}

	competitors, err := o.competitors(ctx, req)
	if err != nil {
		return o.recordFailure(ctx, req, listing, strat, model.Float64Ptr(currentPrice), err, "fetching competitors")
	}

	// Filtering.
	var crule model.CompetitorRule
	if listing.RuleID != "" {
		r, err := o.rules.Get(ctx, listing.RuleID)
		if err != nil {
			return nil, fmt.Errorf("loading competitor rule for %s: %w", req.ItemID, err)
		}
		crule = *r
	}
	filtered := rule.Apply(crule, rule.Input{
		Competitors:  competitors,
		CurrentPrice: currentPrice,
		Identifiers:  listing.Identifiers,
	})
	if listing.RuleID != "" {
		if err := o.rules.RecordUsage(ctx, listing.RuleID); err != nil {
			slog.Warn("recording rule usage failed", "ruleId", listing.RuleID, "error", err)
		}
	}

	// Computing.
	comp, err := strategy.Compute(*strat, filtered.Prices(), currentPrice, strategy.Bounds{
		Min: listing.MinPrice,
		Max: listing.MaxPrice,
	})
	if err != nil {
		return nil, fmt.Errorf("computing price for %s: %w", req.ItemID, err)
	}

	result := &ExecutionResult{
		ItemID:                req.ItemID,
		SKU:                   req.SKU,
		OldPrice:              currentPrice,
		NewPrice:              comp.Candidate,
		Reason:                comp.Reason,
		ExcludedCount:         filtered.ExcludedCount,
		LowestCompetitorPrice: comp.LowestCompetitorPrice,
	}

	if !comp.UpdateNeeded {
		result.Status = model.StatusSkipped
		result.NewPrice = currentPrice
		record, err := o.record(ctx, req, strat, &model.PriceHistory{
			Status:                model.StatusSkipped,
			Success:               true,
			OldPrice:              model.Float64Ptr(currentPrice),
			NewPrice:              currentPrice,
			CompetitorLowestPrice: comp.LowestCompetitorPrice,
			Metadata:              o.metadata(comp.Reason, filtered.ExcludedCount),
		})
		if err != nil {
			return nil, err
		}
		result.Record = record
		return result, nil
	}

	// Updating.
	update, err := o.updatePrice(ctx, req, comp.Candidate)
	if err != nil {
		detail := classify(err)
		record, rerr := o.record(ctx, req, strat, &model.PriceHistory{
			Status:                model.StatusError,
			Success:               false,
			OldPrice:              model.Float64Ptr(currentPrice),
			NewPrice:              comp.Candidate,
			CompetitorLowestPrice: comp.LowestCompetitorPrice,
			Detail:                detail,
			Error:                 err.Error(),
			Metadata:              o.metadata(comp.Reason, filtered.ExcludedCount),
		})
		if rerr != nil {
			return nil, rerr
		}
		result.Status = model.StatusError
		result.Record = record
		return result, err
	}

	result.Status = model.StatusDone
	result.Updated = true
	record, err := o.record(ctx, req, strat, &model.PriceHistory{
		Status:                model.StatusDone,
		Success:               true,
		OldPrice:              model.Float64Ptr(currentPrice),
		NewPrice:              comp.Candidate,
		CompetitorLowestPrice: comp.LowestCompetitorPrice,
		Metadata:              o.metadataWithRaw(comp.Reason, filtered.ExcludedCount, update.Raw),
	})
	if err != nil {
		return nil, err
	}
	result.Record = record

	slog.Info("repriced listing",
		"itemId", req.ItemID,
		"oldPrice", currentPrice,
		"newPrice", comp.Candidate,
		"strategy", strat.StrategyName,
		"excluded", filtered.ExcludedCount,
	)
	return result, nil
}

func (o *Orchestrator) currentPrice(ctx context.Context, req Request) (float64, error) {
	callCtx, cancel := context.WithTimeout(ctx, o.callTimeout)
	defer cancel()
	return o.gateway.GetCurrentPrice(callCtx, req.ItemID, req.SKU)
}

func (o *Orchestrator) competitors(ctx context.Context, req Request) ([]model.CompetitorSnapshot, error) {
	callCtx, cancel := context.WithTimeout(ctx, o.callTimeout)
	defer cancel()
	return o.gateway.GetManualCompetitors(callCtx, req.ItemID)
}

func (o *Orchestrator) updatePrice(ctx context.Context, req Request, price float64) (*ebay.UpdateResult, error) {
	callCtx, cancel := context.WithTimeout(ctx, o.callTimeout)
	defer cancel()
	return o.gateway.UpdatePrice(callCtx, req.ItemID, req.SKU, price)
}

// recordFailure writes the single error record for a failed fetch phase
// and returns the original error.
func (o *Orchestrator) recordFailure(ctx context.Context, req Request, listing *model.Listing, strat *model.PricingStrategy, oldPrice *float64, cause error, phase string) (*ExecutionResult, error) {
	newPrice := listing.CurrentPrice
	if oldPrice != nil {
		newPrice = *oldPrice
	}
	record, rerr := o.record(ctx, req, strat, &model.PriceHistory{
		Status:   model.StatusError,
		Success:  false,
		OldPrice: oldPrice,
		NewPrice: newPrice,
		Detail:   classify(cause),
		Error:    fmt.Sprintf("%s: %v", phase, cause),
	})
	if rerr != nil {
		return nil, rerr
	}
	result := &ExecutionResult{
		ItemID:   req.ItemID,
		SKU:      req.SKU,
		Status:   model.StatusError,
		NewPrice: newPrice,
		Reason:   phase,
		Record:   record,
	}
	if oldPrice != nil {
		result.OldPrice = *oldPrice
	}
	return result, fmt.Errorf("%s: %w", phase, cause)
}

// finish records a terminal skip decided before any marketplace call.
func (o *Orchestrator) finish(ctx context.Context, req Request, listing *model.Listing, strat *model.PricingStrategy, entry *model.PriceHistory, reason string) (*ExecutionResult, error) {
	record, err := o.record(ctx, req, strat, entry)
	if err != nil {
		return nil, err
	}
	return &ExecutionResult{
		ItemID:   req.ItemID,
		SKU:      req.SKU,
		Status:   entry.Status,
		OldPrice: listing.CurrentPrice,
		NewPrice: entry.NewPrice,
		Reason:   reason,
		Record:   record,
	}, nil
}

func (o *Orchestrator) record(ctx context.Context, req Request, strat *model.PricingStrategy, entry *model.PriceHistory) (*model.PriceHistory, error) {
	entry.ItemID = req.ItemID
	entry.SKU = req.SKU
	entry.Source = req.Source
	if strat != nil {
		entry.StrategyName = strat.StrategyName
	}
	record, err := o.recorder.Record(ctx, entry)
	if err != nil {
		return nil, fmt.Errorf("recording history for %s: %w", req.ItemID, err)
	}
	return record, nil
}

func (o *Orchestrator) metadata(reason string, excluded int) map[string]string {
	return map[string]string{
		"reason":   reason,
		"excluded": strconv.Itoa(excluded),
	}
}

func (o *Orchestrator) metadataWithRaw(reason string, excluded int, raw string) map[string]string {
	m := o.metadata(reason, excluded)
	if raw != "" {
		m["apiResponse"] = raw
	}
	return m
}

// classify maps an execution error to its tagged detail variant.
func classify(err error) *model.ErrorDetail {
	if ebay.IsTimeout(err) {
		return model.TimeoutDetail(err.Error())
	}
	var apiErr *ebay.APIError
	if errors.As(err, &apiErr) {
		return model.APIDetail(apiErr.Code, apiErr.Message, apiErr.Raw)
	}
	if errors.Is(err, model.ErrValidation) {
		return model.ValidationDetail(err.Error())
	}
	return model.OpaqueDetail(err.Error())
}
