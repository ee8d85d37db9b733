// Package worker provides background model retraining driven by bus
// messages and an optional periodic schedule.
package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/urbanrisk/floodwatch/internal/domain"
	"github.com/urbanrisk/floodwatch/internal/engine"
	"github.com/urbanrisk/floodwatch/internal/observability"
)

// Retrainer listens for retrain requests, rebuilds the trained state from
// the stored corpus and persists the resulting bundle. The active state is
// swapped only after a fully successful run.
type Retrainer struct {
	bus     domain.EventBus
	repo    domain.Repository
	engine  *engine.Engine
	clock   clockwork.Clock
	metrics *observability.Metrics

	interval time.Duration

	mu      sync.Mutex
	running bool

	subscriptions []domain.Subscription
	wg            sync.WaitGroup
	ctx           context.Context
	cancel        context.CancelFunc
}

// ModelReadyMessage is published on TopicModelReady after a successful
// retrain.
type ModelReadyMessage struct {
	Version         string  `json:"version"`
	Records         int     `json:"records"`
	Wards           int     `json:"wards"`
	HeldOutAccuracy float64 `json:"heldOutAccuracy"`
	FusionMode      string  `json:"fusionMode"`
	DurationMs      int64   `json:"durationMs"`
}

// NewRetrainer creates a retrainer. A nil clock uses real time; tests
// inject a fake for deterministic scheduling. interval <= 0 disables the
// periodic schedule, leaving only bus-triggered retrains.
func NewRetrainer(bus domain.EventBus, repo domain.Repository, eng *engine.Engine, interval time.Duration, clock clockwork.Clock) *Retrainer {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Retrainer{
		bus:      bus,
		repo:     repo,
		engine:   eng,
		clock:    clock,
		interval: interval,
		ctx:      ctx,
		cancel:   cancel,
	}
}

// SetMetrics attaches Prometheus instrumentation to training runs. Call
// before Start.
func (r *Retrainer) SetMetrics(m *observability.Metrics) {
	r.metrics = m
}

// Start subscribes to retrain requests and, when an interval is set,
// launches the periodic schedule.
func (r *Retrainer) Start() error {
	sub, err := r.bus.Subscribe(r.ctx, domain.TopicModelRetrain, func(ctx context.Context, msg *domain.Message) error {
		return r.Retrain(ctx)
	})
	if err != nil {
		return fmt.Errorf("failed to subscribe to retrain topic: %w", err)
	}
	r.subscriptions = append(r.subscriptions, sub)

	if r.interval > 0 {
		r.wg.Add(1)
		go r.runSchedule()
	}

	slog.Info("retrainer started",
		"interval", r.interval.String(),
	)
	return nil
}

// runSchedule retrains on every tick until stopped.
func (r *Retrainer) runSchedule() {
	defer r.wg.Done()

	ticker := r.clock.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-r.ctx.Done():
			return
		case <-ticker.Chan():
			if err := r.Retrain(r.ctx); err != nil {
				slog.Error("scheduled retrain failed",
					"error", err,
				)
			}
		}
	}
}

// Retrain runs one full training pass: load corpus, train, persist the
// bundle, announce the new version. Concurrent calls collapse to one run.
func (r *Retrainer) Retrain(ctx context.Context) error {
	r.mu.Lock()
	if r.running {
		r.mu.Unlock()
		slog.Debug("retrain already in progress, skipping")
		return nil
	}
	r.running = true
	r.mu.Unlock()

	defer func() {
		r.mu.Lock()
		r.running = false
		r.mu.Unlock()
	}()

	start := time.Now()

	corpus, err := r.repo.ListHistoricalRecords(ctx)
	if err != nil {
		return fmt.Errorf("failed to load training corpus: %w", err)
	}

	state, err := r.engine.TrainAndSwap(corpus)
	if err != nil {
		if r.metrics != nil {
			r.metrics.TrainingFailures.Inc()
		}
		return fmt.Errorf("training failed: %w", err)
	}

	if r.metrics != nil {
		r.metrics.TrainingRuns.Inc()
		r.metrics.TrainingDuration.Observe(time.Since(start).Seconds())
		if state.Report.FusionMode == string(domain.FusionNetwork) {
			r.metrics.NetworkFusion.Set(1)
		} else {
			r.metrics.NetworkFusion.Set(0)
		}
	}

	bundle, err := r.engine.Export()
	if err != nil {
		return fmt.Errorf("failed to export trained state: %w", err)
	}
	if err := r.repo.SaveModelArtifact(ctx, state.Version, bundle); err != nil {
		return fmt.Errorf("failed to persist model artifact: %w", err)
	}

	ready := ModelReadyMessage{
		Version:         state.Version,
		Records:         state.Report.Records,
		Wards:           state.Report.Wards,
		HeldOutAccuracy: state.Report.HeldOutAccuracy,
		FusionMode:      state.Report.FusionMode,
		DurationMs:      time.Since(start).Milliseconds(),
	}
	payload, _ := json.Marshal(ready)
	if err := r.bus.Publish(ctx, domain.TopicModelReady, payload); err != nil {
		slog.Warn("failed to announce new model",
			"version", state.Version,
			"error", err,
		)
	}

	slog.Info("model retrained",
		"version", state.Version,
		"records", ready.Records,
		"wards", ready.Wards,
		"held_out_accuracy", ready.HeldOutAccuracy,
		"fusion_mode", ready.FusionMode,
		"duration_ms", ready.DurationMs,
	)
	return nil
}

// RestoreLatest loads the most recent persisted bundle into the engine.
// Returns the restored version, or "" when no artifact exists yet.
func (r *Retrainer) RestoreLatest(ctx context.Context) (string, error) {
	version, bundle, err := r.repo.GetLatestModelArtifact(ctx)
	if err != nil {
		return "", err
	}
	if err := r.engine.Import(bundle); err != nil {
		return "", fmt.Errorf("failed to import artifact %s: %w", version, err)
	}
	slog.Info("restored trained model",
		"version", version,
	)
	return version, nil
}

// Stop cancels subscriptions and waits for the schedule to exit.
func (r *Retrainer) Stop() {
	r.cancel()
	for _, sub := range r.subscriptions {
		_ = sub.Unsubscribe()
	}
	r.wg.Wait()
}
