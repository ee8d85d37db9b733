// Package engine orchestrates the three models: it trains them in
// dependency order and fuses their outputs into a single assessment.
// Serving reads an immutable TrainedState behind an atomic pointer, so
// inference is safe for unbounded concurrent callers while retrains swap
// in a fully built replacement.
package engine

import (
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/urbanrisk/floodwatch/internal/classifier"
	"github.com/urbanrisk/floodwatch/internal/domain"
	"github.com/urbanrisk/floodwatch/internal/feature"
	"github.com/urbanrisk/floodwatch/internal/fusion"
	"github.com/urbanrisk/floodwatch/internal/zoning"
)

// ErrNotTrained is returned when inference is requested before any trained
// state is active.
var ErrNotTrained = errors.New("no trained model state")

// Confidence thresholds for the blended score.
const (
	confidenceHighAt   = 0.8
	confidenceMediumAt = 0.5
)

// combinedFloodProbability is the fusion-probability threshold above which
// an assessment is flagged high risk regardless of the classifier level.
const combinedFloodProbability = 0.7

// TrainedState is one self-consistent set of trained components. It is
// immutable once built; a retrain replaces it as a unit.
type TrainedState struct {
	Version   string
	TrainedAt time.Time

	Catalog    *feature.Catalog
	Classifier *classifier.Classifier
	Zoning     *zoning.Model
	Fusion     fusion.Model

	Report domain.TrainingReport
}

// Engine holds the active trained state and the training configuration.
type Engine struct {
	cfg   domain.TrainingConfig
	state atomic.Pointer[TrainedState]
}

// New creates an engine with no trained state. Call Train/Swap or Import
// before assessing.
func New(cfg domain.TrainingConfig) *Engine {
	return &Engine{cfg: cfg}
}

// Current returns the active trained state, or nil before training.
func (e *Engine) Current() *TrainedState {
	return e.state.Load()
}

// Swap atomically replaces the active state. In-flight assessments keep
// the state they started with.
func (e *Engine) Swap(s *TrainedState) {
	e.state.Store(s)
}

// Train runs the full pipeline on the corpus and returns a new state
// without activating it: feature catalog, then classifier and zoning
// (independent of each other), then the fusion model, which depends on the
// finalized zone labels. Nothing is committed on error.
func (e *Engine) Train(corpus []*domain.HistoricalRecord) (*TrainedState, error) {
	start := time.Now()
	if len(corpus) == 0 {
		return nil, fmt.Errorf("%w: empty corpus", domain.ErrInsufficientData)
	}

	catalog, err := feature.Fit(corpus)
	if err != nil {
		return nil, fmt.Errorf("feature catalog: %w", err)
	}

	vectors := make([]domain.FeatureVector, len(corpus))
	labels := make([]int, len(corpus))
	for i, rec := range corpus {
		vec, err := catalog.Transform(&rec.Observation)
		if err != nil {
			return nil, fmt.Errorf("transform record %d (ward %s): %w", i, rec.WardCode, err)
		}
		vectors[i] = vec
		labels[i] = rec.FloodRiskLevel
	}

	model, err := classifier.Train(vectors, labels, e.cfg)
	if err != nil {
		return nil, fmt.Errorf("risk classifier: %w", err)
	}

	profiles, err := zoning.PrepareProfiles(corpus)
	if err != nil {
		return nil, fmt.Errorf("ward profiles: %w", err)
	}
	zones, err := zoning.Train(profiles, e.cfg)
	if err != nil {
		return nil, fmt.Errorf("ward zoning: %w", err)
	}

	// The fusion model trains on rows labeled with this run's zone mapping,
	// never a default one.
	rows := make([]fusion.Row, 0, len(corpus))
	for _, rec := range corpus {
		row := fusion.Row{
			Season: rec.Observation.Season,
			Flood:  rec.FloodOccurred,
		}
		if rec.Observation.RainfallMM != nil {
			row.Rainfall = fusion.CategorizeRainfall(*rec.Observation.RainfallMM)
		}
		if rec.Observation.TideLevelM != nil {
			row.Tide = fusion.CategorizeTide(*rec.Observation.TideLevelM)
		}
		if _, trained := zones.ClusterByWard[rec.WardCode]; trained {
			row.Zone = zones.RiskZone(rec.WardCode)
		}
		rows = append(rows, row)
	}
	fused, err := fusion.Train(rows, e.cfg)
	if err != nil {
		return nil, fmt.Errorf("fusion model: %w", err)
	}

	importance := make(map[string]float64, feature.NumFeatures)
	for i, name := range feature.FieldNames {
		importance[name] = model.Importance[i]
	}

	trainedAt := time.Now().UTC()
	return &TrainedState{
		Version:    uuid.New().String(),
		TrainedAt:  trainedAt,
		Catalog:    catalog,
		Classifier: model,
		Zoning:     zones,
		Fusion:     fused,
		Report: domain.TrainingReport{
			Records:           len(corpus),
			Wards:             len(profiles),
			HeldOutAccuracy:   model.HeldOutAccuracy,
			FeatureImportance: importance,
			FusionMode:        fused.Mode(),
			TrainedAt:         trainedAt,
			Duration:          time.Since(start),
		},
	}, nil
}

// TrainAndSwap trains on the corpus and activates the new state on success.
func (e *Engine) TrainAndSwap(corpus []*domain.HistoricalRecord) (*TrainedState, error) {
	s, err := e.Train(corpus)
	if err != nil {
		return nil, err
	}
	e.Swap(s)
	return s, nil
}

// Assess runs one observation through the trained components and merges
// their outputs. It has no side effects and is deterministic for a fixed
// trained state.
func (e *Engine) Assess(obs *domain.Observation, wardCode string) (*domain.Assessment, error) {
	s := e.Current()
	if s == nil {
		return nil, ErrNotTrained
	}
	return s.Assess(obs, wardCode)
}

// Assess evaluates against this specific state. Exported so callers holding
// a state snapshot (batch endpoints, tests) get a consistent view across
// many calls.
func (s *TrainedState) Assess(obs *domain.Observation, wardCode string) (*domain.Assessment, error) {
	if wardCode == "" {
		return nil, domain.SchemaErrorf("ward code is required")
	}

	vec, err := s.Catalog.Transform(obs)
	if err != nil {
		return nil, err
	}
	level, probs := s.Classifier.Predict(vec)

	zone := s.Zoning.RiskZone(wardCode)

	rainfallCat := fusion.CategorizeRainfall(*obs.RainfallMM)
	tideCat := fusion.CategorizeTide(*obs.TideLevelM)
	floodProb := s.Fusion.Infer(rainfallCat, tideCat, zone, obs.Season)

	confidence := (probs.High + floodProb) / 2
	confidenceLevel := domain.ConfidenceLow
	switch {
	case confidence >= confidenceHighAt:
		confidenceLevel = domain.ConfidenceHigh
	case confidence >= confidenceMediumAt:
		confidenceLevel = domain.ConfidenceMedium
	}

	return &domain.Assessment{
		WardCode:          wardCode,
		WardRiskZone:      zone,
		RiskLevel:         level,
		WillFlood:         level >= domain.RiskMedium,
		RiskProbabilities: probs,
		FloodProbability:  floodProb,
		FusionMode:        s.Fusion.Mode(),
		CombinedHighRisk:  level >= domain.RiskHigh || floodProb > combinedFloodProbability,
		ConfidenceLevel:   confidenceLevel,
		ConfidenceScore:   confidence,
		RainfallCategory:  rainfallCat,
		TideCategory:      tideCat,
		Season:            obs.Season,
		ModelVersion:      s.Version,
	}, nil
}

// WardZones returns every trained ward with its cluster and zone label.
func (e *Engine) WardZones() ([]domain.ClusterAssignment, error) {
	s := e.Current()
	if s == nil {
		return nil, ErrNotTrained
	}
	return s.Zoning.Assignments(), nil
}
