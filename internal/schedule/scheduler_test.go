package schedule

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/guarzo/repricer/internal/ebay"
	"github.com/guarzo/repricer/internal/history"
	"github.com/guarzo/repricer/internal/model"
	"github.com/guarzo/repricer/internal/reprice"
	"github.com/guarzo/repricer/internal/store"
)

type env struct {
	sched      *Scheduler
	listings   *store.MemoryListings
	gateway    *ebay.MockGateway
	recorder   *history.Recorder
	strategyID string
}

func newEnv(t *testing.T, cfg Config) *env {
	t.Helper()
	listings := store.NewMemoryListings()
	strategies := store.NewMemoryStrategies()
	rules := store.NewMemoryRules()
	gateway := ebay.NewMockGateway()
	recorder := history.NewRecorder(history.NewMemoryStore())
	orch := reprice.NewOrchestrator(listings, strategies, rules, gateway, recorder)

	e := &env{
		listings: listings,
		gateway:  gateway,
		recorder: recorder,
	}
	e.sched = New(orch, listings, recorder, cfg)

	s := &model.PricingStrategy{
		OwnerID:             "seller-1",
		StrategyName:        "undercut",
		RepricingRule:       model.RuleBeatLowest,
		AdjustmentType:      model.AdjustAmount,
		AdjustmentValue:     1,
		NoCompetitionAction: model.NoCompKeepCurrent,
		IsActive:            true,
	}
	if err := strategies.Put(context.Background(), s); err != nil {
		t.Fatalf("seeding strategy: %v", err)
	}
	e.strategyID = s.ID
	return e
}

func (e *env) addListing(t *testing.T, itemID string, price float64, monitored bool, competitors ...model.CompetitorSnapshot) {
	t.Helper()
	l := &model.Listing{
		ItemID:            itemID,
		OwnerID:           "seller-1",
		CurrentPrice:      price,
		StrategyID:        e.strategyID,
		MonitoringEnabled: monitored,
		Competitors:       competitors,
	}
	if err := e.listings.Put(context.Background(), l); err != nil {
		t.Fatalf("seeding listing %s: %v", itemID, err)
	}
	e.gateway.Prices[itemID] = price
	e.gateway.Competitors[itemID] = competitors
}

func TestRunCycle_RepricesMonitoredListings(t *testing.T) {
	e := newEnv(t, Config{ItemsPerSecond: 1000})
	e.addListing(t, "a", 100, true, model.CompetitorSnapshot{CompetitorItemID: "c1", Price: 95})
	e.addListing(t, "b", 50, true, model.CompetitorSnapshot{CompetitorItemID: "c2", Price: 51})
	e.addListing(t, "c", 30, false, model.CompetitorSnapshot{CompetitorItemID: "c3", Price: 20})

	report, err := e.sched.RunCycle(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if report.Total != 2 {
		t.Errorf("total = %d, want 2 (unmonitored listing excluded)", report.Total)
	}
	if report.Updated != 1 {
		t.Errorf("updated = %d, want 1", report.Updated)
	}
	if report.Skipped != 1 {
		t.Errorf("skipped = %d, want 1", report.Skipped)
	}
	if report.Failed != 0 {
		t.Errorf("failed = %d, want 0", report.Failed)
	}
	if e.gateway.Prices["a"] != 94 {
		t.Errorf("price of a = %v, want 94", e.gateway.Prices["a"])
	}
}

func TestRunCycle_FailureIsolation(t *testing.T) {
	e := newEnv(t, Config{BatchSize: 1, ItemsPerSecond: 1000})
	e.addListing(t, "good", 100, true, model.CompetitorSnapshot{CompetitorItemID: "c1", Price: 90})
	// Listing referencing a strategy that does not exist fails alone.
	bad := &model.Listing{
		ItemID:            "bad",
		OwnerID:           "seller-1",
		CurrentPrice:      10,
		StrategyID:        "missing",
		MonitoringEnabled: true,
	}
	if err := e.listings.Put(context.Background(), bad); err != nil {
		t.Fatalf("seeding listing: %v", err)
	}
	e.gateway.Prices["bad"] = 10

	report, err := e.sched.RunCycle(context.Background())
	if err != nil {
		t.Fatalf("cycle should not fail on item errors: %v", err)
	}

	if report.Failed != 1 {
		t.Errorf("failed = %d, want 1", report.Failed)
	}
	if report.Updated != 1 {
		t.Errorf("updated = %d, want 1 (good listing still repriced)", report.Updated)
	}
}

func TestRunCycle_OverlapSuppressed(t *testing.T) {
	e := newEnv(t, Config{ItemsPerSecond: 1000})

	e.sched.running.Store(true)
	_, err := e.sched.RunCycle(context.Background())
	if !errors.Is(err, ErrCycleInProgress) {
		t.Fatalf("error = %v, want ErrCycleInProgress", err)
	}
	e.sched.running.Store(false)

	if _, err := e.sched.RunCycle(context.Background()); err != nil {
		t.Errorf("cycle after release should run: %v", err)
	}
}

func TestRunCycle_ConcurrentTriggersOneWinner(t *testing.T) {
	e := newEnv(t, Config{ItemsPerSecond: 1000})
	e.addListing(t, "a", 100, true, model.CompetitorSnapshot{CompetitorItemID: "c1", Price: 95})

	var wg sync.WaitGroup
	var mu sync.Mutex
	var ran, suppressed int
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := e.sched.RunCycle(context.Background())
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				ran++
			case errors.Is(err, ErrCycleInProgress):
				suppressed++
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	if ran < 1 {
		t.Error("at least one trigger should win")
	}
	if ran+suppressed != 4 {
		t.Errorf("ran %d + suppressed %d != 4", ran, suppressed)
	}
}

func TestRunAllWithCompetitors_IgnoresMonitoringFlag(t *testing.T) {
	e := newEnv(t, Config{ItemsPerSecond: 1000})
	e.addListing(t, "off", 100, false, model.CompetitorSnapshot{CompetitorItemID: "c1", Price: 95})
	e.addListing(t, "bare", 40, true)

	report, err := e.sched.RunAllWithCompetitors(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if report.Total != 1 {
		t.Errorf("total = %d, want 1 (only the listing with competitors)", report.Total)
	}
	if report.Updated != 1 {
		t.Errorf("updated = %d, want 1", report.Updated)
	}
}

func TestRunItem_DelegatesToOrchestrator(t *testing.T) {
	e := newEnv(t, Config{})
	e.addListing(t, "a", 100, true, model.CompetitorSnapshot{CompetitorItemID: "c1", Price: 95})

	result, err := e.sched.RunItem(context.Background(), "a", "", model.SourceManual)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.NewPrice != 94 {
		t.Errorf("newPrice = %v, want 94", result.NewPrice)
	}
	if result.Record.Source != model.SourceManual {
		t.Errorf("source = %s, want manual", result.Record.Source)
	}
}

func TestRunCycle_CancellationStopsSweep(t *testing.T) {
	e := newEnv(t, Config{BatchSize: 1, ItemsPerSecond: 0.001})
	for _, id := range []string{"a", "b", "c"} {
		e.addListing(t, id, 100, true, model.CompetitorSnapshot{CompetitorItemID: "c-" + id, Price: 95})
	}

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	report, err := e.sched.RunCycle(ctx)
	if err == nil {
		t.Fatal("expected cancellation error")
	}
	if report == nil {
		t.Fatal("partial report expected on cancellation")
	}
	if report.Updated >= 3 {
		t.Errorf("updated = %d, expected the sweep to stop early", report.Updated)
	}
}

func TestSchedulerStartStop(t *testing.T) {
	e := newEnv(t, Config{Interval: time.Hour})

	if err := e.sched.Start(); err != nil {
		t.Fatalf("start: %v", err)
	}
	e.sched.Stop()
}
