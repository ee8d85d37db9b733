package domain

import (
	"time"
)

// Confidence levels derived from the blended confidence score.
const (
	ConfidenceLow    = "Low"
	ConfidenceMedium = "Medium"
	ConfidenceHigh   = "High"
)

// RiskProbabilities is the classifier's distribution over the three risk
// levels. Entries are non-negative and sum to 1 within floating tolerance.
type RiskProbabilities struct {
	Low    float64 `json:"low"`
	Medium float64 `json:"medium"`
	High   float64 `json:"high"`
}

// Assessment is the fused output of the three models for one observation.
// It is created fresh per inference call and never mutated after return.
type Assessment struct {
	ID           string `json:"id"`
	WardCode     string `json:"ward_code"`
	WardRiskZone string `json:"ward_risk_zone"`

	// Classifier outputs
	RiskLevel         int               `json:"risk_level"`
	WillFlood         bool              `json:"will_flood"`
	RiskProbabilities RiskProbabilities `json:"risk_probabilities"`

	// Fusion model output
	FloodProbability float64 `json:"flood_probability"`
	FusionMode       string  `json:"fusion_mode"`

	// Combined verdict
	CombinedHighRisk bool    `json:"combined_high_risk"`
	ConfidenceLevel  string  `json:"confidence_level"`
	ConfidenceScore  float64 `json:"confidence_score"`

	// Inputs as categorized for fusion, kept for auditability.
	RainfallCategory string `json:"rainfall_category"`
	TideCategory     string `json:"tide_category"`
	Season           string `json:"season"`

	ModelVersion string    `json:"model_version"`
	AssessedAt   time.Time `json:"assessed_at"`
}

// TrainingReport carries observability figures from a training run. It is
// not part of the serving contract.
type TrainingReport struct {
	Records           int                `json:"records"`
	Wards             int                `json:"wards"`
	HeldOutAccuracy   float64            `json:"held_out_accuracy"`
	FeatureImportance map[string]float64 `json:"feature_importance"`
	FusionMode        string             `json:"fusion_mode"`
	TrainedAt         time.Time          `json:"trained_at"`
	Duration          time.Duration      `json:"duration"`
}
