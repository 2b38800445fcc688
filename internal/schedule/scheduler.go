// Package schedule runs the recurring monitoring cycle: walk the
// monitored listings in small batches and reprice each one, isolating
// per-item failures so one bad listing never stops the sweep.
package schedule

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/robfig/cron/v3"
	"golang.org/x/time/rate"

	"github.com/guarzo/repricer/internal/history"
	"github.com/guarzo/repricer/internal/model"
	"github.com/guarzo/repricer/internal/reprice"
	"github.com/guarzo/repricer/internal/store"
)

// ErrCycleInProgress is returned when a cycle is triggered while the
// previous one is still running. The new trigger is dropped, never
// queued.
var ErrCycleInProgress = errors.New("monitoring cycle already in progress")

// Config tunes the scheduler. Zero values fall back to the defaults.
type Config struct {
	// Interval between monitoring cycles.
	Interval time.Duration
	// BatchSize is how many listings are repriced concurrently.
	BatchSize int
	// ItemsPerSecond paces item starts across a cycle.
	ItemsPerSecond float64
	// MaintenanceSpec is a cron expression for the daily history
	// maintenance job. Empty disables it.
	MaintenanceSpec string
	// KeepRecentCount is the per-item retention for history archival.
	KeepRecentCount int
	// FailedRetentionDays is how long failed records are kept.
	FailedRetentionDays int
}

func (c Config) withDefaults() Config {
	if c.Interval <= 0 {
		c.Interval = 20 * time.Minute
	}
	if c.BatchSize <= 0 {
		c.BatchSize = 3
	}
	if c.ItemsPerSecond <= 0 {
		c.ItemsPerSecond = 2
	}
	if c.KeepRecentCount <= 0 {
		c.KeepRecentCount = 100
	}
	if c.FailedRetentionDays <= 0 {
		c.FailedRetentionDays = 30
	}
	return c
}

// CycleReport summarizes one monitoring cycle.
type CycleReport struct {
	StartedAt time.Time     `json:"startedAt"`
	Duration  time.Duration `json:"duration"`
	Total     int           `json:"total"`
	Updated   int           `json:"updated"`
	Skipped   int           `json:"skipped"`
	Failed    int           `json:"failed"`
	Conflicts int           `json:"conflicts"`
}

// Scheduler owns the cron entries and the overlap guard. Start and
// Stop are explicit; nothing runs before Start.
type Scheduler struct {
	orch     *reprice.Orchestrator
	listings store.Listings
	recorder *history.Recorder
	cfg      Config

	cron    *cron.Cron
	limiter *rate.Limiter
	running atomic.Bool
	now     func() time.Time
}

func New(orch *reprice.Orchestrator, listings store.Listings, recorder *history.Recorder, cfg Config) *Scheduler {
	cfg = cfg.withDefaults()
	return &Scheduler{
		orch:     orch,
		listings: listings,
		recorder: recorder,
		cfg:      cfg,
		cron:     cron.New(),
		limiter:  rate.NewLimiter(rate.Limit(cfg.ItemsPerSecond), cfg.BatchSize),
		now:      time.Now,
	}
}

// Start registers the cron entries and begins scheduling. The first
// cycle fires one interval after Start, not immediately.
func (s *Scheduler) Start() error {
	spec := fmt.Sprintf("@every %s", s.cfg.Interval)
	if _, err := s.cron.AddFunc(spec, func() {
		if _, err := s.RunCycle(context.Background()); err != nil && !errors.Is(err, ErrCycleInProgress) {
			slog.Error("monitoring cycle failed", "error", err)
		}
	}); err != nil {
		return fmt.Errorf("registering monitoring cycle: %w", err)
	}

	if s.cfg.MaintenanceSpec != "" {
		if _, err := s.cron.AddFunc(s.cfg.MaintenanceSpec, func() {
			s.runMaintenance(context.Background())
		}); err != nil {
			return fmt.Errorf("registering maintenance job: %w", err)
		}
	}

	s.cron.Start()
	slog.Info("scheduler started", "interval", s.cfg.Interval, "batchSize", s.cfg.BatchSize)
	return nil
}

// Stop halts scheduling and waits for any running jobs to finish.
func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
	slog.Info("scheduler stopped")
}

// RunCycle reprices every monitored listing. Returns
// ErrCycleInProgress if the previous cycle has not finished.
func (s *Scheduler) RunCycle(ctx context.Context) (*CycleReport, error) {
	if !s.running.CompareAndSwap(false, true) {
		return nil, ErrCycleInProgress
	}
	defer s.running.Store(false)

	listings, err := s.listings.Monitored(ctx)
	if err != nil {
		return nil, fmt.Errorf("loading monitored listings: %w", err)
	}
	return s.sweep(ctx, listings)
}

// RunAllWithCompetitors reprices every listing that has at least one
// manually added competitor, regardless of the monitoring flag. Used
// by the manual "reprice everything" trigger.
func (s *Scheduler) RunAllWithCompetitors(ctx context.Context) (*CycleReport, error) {
	if !s.running.CompareAndSwap(false, true) {
		return nil, ErrCycleInProgress
	}
	defer s.running.Store(false)

	listings, err := s.listings.WithCompetitors(ctx)
	if err != nil {
		return nil, fmt.Errorf("loading listings with competitors: %w", err)
	}
	return s.sweep(ctx, listings)
}

// RunItem reprices a single listing outside the cycle guard. Conflicts
// with an in-flight execution for the same item still surface as
// model.ErrConflict from the orchestrator.
func (s *Scheduler) RunItem(ctx context.Context, itemID, sku string, source model.HistorySource) (*reprice.ExecutionResult, error) {
	return s.orch.Execute(ctx, reprice.Request{ItemID: itemID, SKU: sku, Source: source})
}

// sweep processes listings in batches of BatchSize, pacing item starts
// with the limiter. Item failures are counted, not propagated.
func (s *Scheduler) sweep(ctx context.Context, listings []model.Listing) (*CycleReport, error) {
	report := &CycleReport{StartedAt: s.now().UTC(), Total: len(listings)}

	var mu sync.Mutex
	for start := 0; start < len(listings); start += s.cfg.BatchSize {
		end := start + s.cfg.BatchSize
		if end > len(listings) {
			end = len(listings)
		}

		var wg sync.WaitGroup
		var waitErr error
		for _, listing := range listings[start:end] {
			if err := s.limiter.Wait(ctx); err != nil {
				waitErr = err
				break
			}

			wg.Add(1)
			go func(l model.Listing) {
				defer wg.Done()
				result, err := s.orch.Execute(ctx, reprice.Request{
					ItemID: l.ItemID,
					SKU:    l.SKU,
					Source: model.SourceSystem,
				})

				mu.Lock()
				defer mu.Unlock()
				switch {
				case errors.Is(err, model.ErrConflict):
					report.Conflicts++
				case err != nil:
					report.Failed++
					slog.Warn("repricing failed", "itemId", l.ItemID, "error", err)
				case result.Updated:
					report.Updated++
				default:
					report.Skipped++
				}
			}(listing)
		}
		wg.Wait()

		if waitErr != nil {
			return report, fmt.Errorf("cycle canceled: %w", waitErr)
		}
		if ctx.Err() != nil {
			return report, fmt.Errorf("cycle canceled: %w", ctx.Err())
		}
	}

	report.Duration = s.now().UTC().Sub(report.StartedAt)
	slog.Info("monitoring cycle finished",
		"total", report.Total,
		"updated", report.Updated,
		"skipped", report.Skipped,
		"failed", report.Failed,
		"conflicts", report.Conflicts,
		"duration", report.Duration,
	)
	return report, nil
}

// runMaintenance archives old history and prunes stale failures.
func (s *Scheduler) runMaintenance(ctx context.Context) {
	if _, err := s.recorder.Archive(ctx, s.cfg.KeepRecentCount); err != nil {
		slog.Error("history archive failed", "error", err)
	}
	if _, err := s.recorder.CleanupFailed(ctx, s.cfg.FailedRetentionDays); err != nil {
		slog.Error("failed-record cleanup failed", "error", err)
	}
}
