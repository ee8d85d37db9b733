// FloodWatch - Ward-level flood risk assessment for Mumbai.
// Copyright (c) 2025 urbanrisk
// Licensed under the Apache License 2.0

package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/urbanrisk/floodwatch/internal/alerts"
	"github.com/urbanrisk/floodwatch/internal/api"
	"github.com/urbanrisk/floodwatch/internal/bus"
	"github.com/urbanrisk/floodwatch/internal/cache"
	"github.com/urbanrisk/floodwatch/internal/dataset"
	"github.com/urbanrisk/floodwatch/internal/domain"
	"github.com/urbanrisk/floodwatch/internal/engine"
	"github.com/urbanrisk/floodwatch/internal/observability"
	"github.com/urbanrisk/floodwatch/internal/repository"
	"github.com/urbanrisk/floodwatch/internal/weather"
	"github.com/urbanrisk/floodwatch/internal/worker"
)

// Version information (set via ldflags)
var (
	Version   = "dev"
	Commit    = "none"
	BuildDate = "unknown"
)

func main() {
	// Initialize structured logger
	logLevel := slog.LevelInfo
	if os.Getenv("FLOODWATCH_DEBUG") == "true" {
		logLevel = slog.LevelDebug
	}
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: logLevel,
	}))
	slog.SetDefault(logger)

	slog.Info("starting floodwatch",
		"version", Version,
		"commit", Commit,
		"build_date", BuildDate,
	)

	// Load configuration
	cfg := domain.DefaultConfig()
	if os.Getenv("FLOODWATCH_TIER") == "pro" {
		cfg = domain.ProConfig()
		slog.Info("running in Pro tier mode")
	}
	applyEnvOverrides(cfg)

	slog.Info("configuration loaded",
		"tier", cfg.Tier,
		"repository", cfg.Repository.Driver,
		"cache", cfg.Cache.Type,
		"eventbus", cfg.EventBus.Type,
	)

	// Create context with cancellation
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle shutdown signals
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-sigCh
		slog.Info("received shutdown signal", "signal", sig)
		cancel()
	}()

	// Initialize Repository
	repo, err := repository.New(cfg.Repository)
	if err != nil {
		slog.Error("failed to initialize repository", "error", err)
		os.Exit(1)
	}
	defer repo.Close()
	slog.Info("repository initialized", "driver", cfg.Repository.Driver)

	// Initialize Cache
	cacheImpl, err := cache.New(cfg.Cache)
	if err != nil {
		slog.Error("failed to initialize cache", "error", err)
		os.Exit(1)
	}
	defer cacheImpl.Close()
	slog.Info("cache initialized", "type", cfg.Cache.Type)

	// Initialize EventBus
	busImpl, err := bus.New(cfg.EventBus)
	if err != nil {
		slog.Error("failed to initialize event bus", "error", err)
		os.Exit(1)
	}
	defer busImpl.Close()
	slog.Info("event bus initialized", "type", cfg.EventBus.Type)

	// Metrics
	metrics := observability.NewMetrics()

	// Observation provider
	provider := weather.NewProvider(cfg.Weather, cacheImpl, nil)
	slog.Info("observation provider initialized",
		"wards", len(provider.Wards()),
		"live_weather", cfg.Weather.APIKey != "",
	)

	// Alert tracker and engine
	tracker := alerts.NewTracker(cacheImpl)
	alertEngine, err := alerts.NewEngine(tracker.Count, 100)
	if err != nil {
		slog.Error("failed to initialize alert engine", "error", err)
		os.Exit(1)
	}
	defer alertEngine.Close()

	if err := loadAlertRules(ctx, repo, alertEngine); err != nil {
		slog.Error("failed to load alert rules", "error", err)
		os.Exit(1)
	}
	slog.Info("alert engine initialized", "rules_count", alertEngine.RulesCount())

	// Fusion engine and retrain worker
	eng := engine.New(cfg.Training)
	retrainer := worker.NewRetrainer(busImpl, repo, eng, cfg.Training.RetrainInterval, nil)
	retrainer.SetMetrics(metrics)

	if err := bootstrapModel(ctx, repo, eng, retrainer); err != nil {
		slog.Error("model bootstrap failed", "error", err)
		os.Exit(1)
	}

	if err := retrainer.Start(); err != nil {
		slog.Error("failed to start retrain worker", "error", err)
		os.Exit(1)
	}
	defer retrainer.Stop()

	// Initialize Server
	srv := api.NewServer(cfg.Server, repo, cacheImpl, busImpl, eng, alertEngine, tracker, provider, metrics, Version)

	// Start Server in goroutine
	go func() {
		if err := srv.Start(); err != nil && err != http.ErrServerClosed {
			slog.Error("server failed", "error", err)
			os.Exit(1)
		}
	}()

	slog.Info("floodwatch is ready",
		"host", cfg.Server.Host,
		"port", cfg.Server.Port,
	)

	printBanner(cfg, Version)

	// Wait for shutdown signal
	<-ctx.Done()
	slog.Info("shutting down...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("server forced to shutdown", "error", err)
	}

	slog.Info("floodwatch shutdown complete")
}

// applyEnvOverrides layers environment settings over the tier defaults.
func applyEnvOverrides(cfg *domain.Config) {
	if key := os.Getenv("OPENWEATHER_API_KEY"); key != "" {
		cfg.Weather.APIKey = key
	}
	if path := os.Getenv("FLOODWATCH_DB_PATH"); path != "" {
		cfg.Repository.SQLitePath = path
	}
	if raw := os.Getenv("FLOODWATCH_RETRAIN_INTERVAL"); raw != "" {
		if interval, err := time.ParseDuration(raw); err == nil {
			cfg.Training.RetrainInterval = interval
		} else {
			slog.Warn("invalid FLOODWATCH_RETRAIN_INTERVAL, ignoring", "value", raw)
		}
	}
}

// loadAlertRules loads operator rules from the database, seeding the
// builtin set on first boot so a fresh install alerts on obvious danger.
func loadAlertRules(ctx context.Context, repo domain.Repository, engine *alerts.Engine) error {
	dbRules, err := repo.ListAlertRules(ctx)
	if err != nil {
		slog.Warn("failed to list alert rules from database", "error", err)
		return engine.LoadRules(alerts.BuiltinRules())
	}

	if len(dbRules) == 0 {
		slog.Info("no alert rules in database, seeding builtin rules")
		for _, rule := range alerts.BuiltinRules() {
			if err := repo.SaveAlertRule(ctx, rule); err != nil {
				slog.Warn("failed to persist builtin rule", "id", rule.ID, "error", err)
			}
		}
		return engine.LoadRules(alerts.BuiltinRules())
	}

	slog.Info("loading alert rules from database", "count", len(dbRules))
	return engine.LoadRules(dbRules)
}

// bootstrapModel makes the engine servable at startup: restore the newest
// persisted artifact, else train from the stored corpus, else import the
// bootstrap CSV when one is configured. A service with none of these still
// starts; it reports not ready until a corpus arrives.
func bootstrapModel(ctx context.Context, repo domain.Repository, eng *engine.Engine, retrainer *worker.Retrainer) error {
	version, err := retrainer.RestoreLatest(ctx)
	if err == nil {
		slog.Info("model restored from artifact store", "version", version)
		return nil
	}
	slog.Info("no restorable artifact, training from corpus", "reason", err.Error())

	count, err := repo.CountHistoricalRecords(ctx)
	if err != nil {
		return fmt.Errorf("failed to count historical records: %w", err)
	}

	if count == 0 {
		csvPath := os.Getenv("FLOODWATCH_DATASET")
		if csvPath == "" {
			slog.Warn("no trained model, corpus, or dataset configured; service starts untrained")
			return nil
		}

		records, err := dataset.LoadFile(csvPath)
		if err != nil {
			return fmt.Errorf("failed to load bootstrap dataset: %w", err)
		}
		if err := repo.SaveHistoricalRecords(ctx, records); err != nil {
			return fmt.Errorf("failed to store bootstrap corpus: %w", err)
		}
		slog.Info("bootstrap corpus imported", "path", csvPath, "records", len(records))
	}

	return retrainer.Retrain(ctx)
}

func printBanner(cfg *domain.Config, version string) {
	fmt.Println()
	fmt.Println("  =============================================")
	fmt.Println("                 FLOODWATCH")
	fmt.Println("       Ward-level flood risk assessment")
	fmt.Println("  =============================================")
	fmt.Println()
	fmt.Printf("  Version:  %s\n", version)
	fmt.Printf("  Tier:     %s\n", cfg.Tier)
	fmt.Printf("  Server:   http://%s:%d\n", cfg.Server.Host, cfg.Server.Port)
	fmt.Println()
	fmt.Println("  Endpoints:")
	fmt.Println("    POST /assess/ward/{code}    - Assess a ward with live weather")
	fmt.Println("    POST /assess/custom         - Assess a supplied observation")
	fmt.Println("    GET  /assess/all-wards      - Sweep every ward")
	fmt.Println("    GET  /assessments/{id}      - Get assessment by ID")
	fmt.Println("    GET  /wards/zones           - Ward risk zoning")
	fmt.Println("    GET  /weather/current/{code} - Current ward observation")
	fmt.Println("    GET  /models/info           - Active model report")
	fmt.Println("    POST /models/retrain        - Request a retrain")
	fmt.Println("    GET  /alerts/rules          - List alert rules")
	fmt.Println("    POST /alerts/rules          - Create an alert rule")
	fmt.Println("    POST /alerts/rules/reload   - Hot-reload rules from database")
	fmt.Println("    GET  /health                - Health check")
	fmt.Println("    GET  /metrics               - Prometheus metrics")
	fmt.Println()
}
