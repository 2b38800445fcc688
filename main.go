package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/guarzo/repricer/internal/cache"
	"github.com/guarzo/repricer/internal/config"
	"github.com/guarzo/repricer/internal/ebay"
	"github.com/guarzo/repricer/internal/history"
	"github.com/guarzo/repricer/internal/ratelimit"
	"github.com/guarzo/repricer/internal/reprice"
	"github.com/guarzo/repricer/internal/schedule"
	"github.com/guarzo/repricer/internal/server"
	"github.com/guarzo/repricer/internal/store"
)

func main() {
	if err := run(); err != nil {
		slog.Error("fatal", "error", err)
		os.Exit(1)
	}
}

func run() error {
	configPath := flag.String("config", "", "path to config file (optional)")
	flag.Parse()

	// .env is optional; real deployments set the environment directly.
	_ = godotenv.Load()

	cfg, err := config.Load(*configPath)
	if err != nil {
		return err
	}
	setupLogging(cfg.Log)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Persistence: Mongo when configured, in-memory otherwise.
	var (
		strategies store.Strategies
		rules      store.Rules
		listings   store.Listings
		histStore  history.Store
	)
	if cfg.Mongo.URI != "" {
		client, err := mongo.Connect(ctx, options.Client().ApplyURI(cfg.Mongo.URI))
		if err != nil {
			return fmt.Errorf("connecting to mongo: %w", err)
		}
		defer func() {
			disconnectCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = client.Disconnect(disconnectCtx)
		}()
		if err := client.Ping(ctx, nil); err != nil {
			return fmt.Errorf("pinging mongo: %w", err)
		}
		db := client.Database(cfg.Mongo.Database)

		if strategies, err = store.NewMongoStrategies(ctx, db); err != nil {
			return fmt.Errorf("initializing strategy store: %w", err)
		}
		rules = store.NewMongoRules(db)
		if listings, err = store.NewMongoListings(ctx, db); err != nil {
			return fmt.Errorf("initializing listing store: %w", err)
		}
		if histStore, err = history.NewMongoStore(ctx, db); err != nil {
			return fmt.Errorf("initializing history store: %w", err)
		}
		slog.Info("using mongo persistence", "database", cfg.Mongo.Database)
	} else {
		strategies = store.NewMemoryStrategies()
		rules = store.NewMemoryRules()
		listings = store.NewMemoryListings()
		histStore = history.NewMemoryStore()
		slog.Warn("no mongo uri configured, using in-memory stores")
	}

	recorder := history.NewRecorder(histStore)

	// Marketplace gateway.
	limiter := ratelimit.NewLimiter(cfg.Ebay.RateCapacity, cfg.Ebay.RateRefill)
	tokens := tokenProvider(cfg.Ebay)
	trading := ebay.NewTradingClient(tokens, cfg.Ebay.AppID, cfg.Ebay.Sandbox, cfg.Ebay.CallTimeout, limiter)
	gateway := ebay.NewTradingGateway(trading, listings)

	var search *ebay.SearchClient
	if searchCache, err := cache.New(cfg.Ebay.CachePath); err != nil {
		slog.Warn("search cache unavailable", "path", cfg.Ebay.CachePath, "error", err)
		search = ebay.NewSearchClient(cfg.Ebay.AppID, cfg.Ebay.CallTimeout, limiter, nil)
	} else {
		search = ebay.NewSearchClient(cfg.Ebay.AppID, cfg.Ebay.CallTimeout, limiter, searchCache)
	}

	orch := reprice.NewOrchestrator(listings, strategies, rules, gateway, recorder)
	orch.SetCallTimeout(cfg.Ebay.CallTimeout)

	sched := schedule.New(orch, listings, recorder, schedule.Config{
		Interval:            cfg.Scheduler.Interval,
		BatchSize:           cfg.Scheduler.BatchSize,
		ItemsPerSecond:      cfg.Scheduler.ItemsPerSecond,
		MaintenanceSpec:     cfg.Scheduler.MaintenanceSpec,
		KeepRecentCount:     cfg.History.KeepRecentCount,
		FailedRetentionDays: cfg.History.FailedRetentionDays,
	})
	if cfg.Scheduler.Enabled {
		if err := sched.Start(); err != nil {
			return err
		}
		defer sched.Stop()
	}

	srv := server.New(sched, recorder, listings, search)
	errCh := make(chan error, 1)
	go func() {
		slog.Info("http server listening", "addr", cfg.Server.Addr)
		errCh <- srv.Listen(cfg.Server.Addr)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		slog.Info("shutting down")
		return srv.Shutdown()
	}
}

// tokenProvider prefers a configured long-lived auth token over the
// OAuth refresh flow.
func tokenProvider(cfg config.EbayConfig) ebay.TokenProvider {
	if cfg.AuthToken != "" {
		return &ebay.StaticProvider{Token: cfg.AuthToken}
	}
	return ebay.NewOAuthProvider(ebay.OAuthConfig{
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		RefreshToken: cfg.RefreshToken,
		Sandbox:      cfg.Sandbox,
	})
}

func setupLogging(cfg config.LogConfig) {
	var level slog.Level
	switch strings.ToLower(cfg.Level) {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	if strings.EqualFold(cfg.Format, "json") {
		handler = slog.NewJSONHandler(os.Stderr, opts)
	} else {
		handler = slog.NewTextHandler(os.Stderr, opts)
	}
	slog.SetDefault(slog.New(handler))
}
