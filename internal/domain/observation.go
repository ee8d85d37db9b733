// Package domain defines the core types and interfaces for FloodWatch.
package domain

import (
	"time"
)

// Season is the categorical season of an observation.
const (
	SeasonMonsoon = "Monsoon"
	SeasonWinter  = "Winter"
	SeasonSummer  = "Summer"
)

// Risk zone labels assigned to ward clusters, ordered from most to least
// severe. The zoning model assigns them by descending mean flood frequency.
const (
	ZoneVeryHigh = "Very High Risk"
	ZoneHigh     = "High Risk"
	ZoneMedium   = "Medium Risk"
	ZoneLow      = "Low Risk"
)

// Risk levels produced by the classifier.
const (
	RiskLow    = 0
	RiskMedium = 1
	RiskHigh   = 2
)

// Observation is a single weather/tide reading for a ward. RainfallMM and
// TideLevelM are mandatory; the remaining numeric fields are optional and
// imputed with training-time means when absent.
type Observation struct {
	RainfallMM    *float64  `json:"rainfall_mm"`
	Rainfall24hMM *float64  `json:"rainfall_24hr_mm"`
	TideLevelM    *float64  `json:"tide_level_m"`
	TemperatureC  *float64  `json:"temperature_c"`
	HumidityPct   *float64  `json:"humidity_pct"`
	WindSpeedKmh  *float64  `json:"wind_speed_kmh"`
	Season        string    `json:"season"`
	ObservedAt    time.Time `json:"observed_at,omitempty"`
}

// Ward is an administrative sub-area of the city, the spatial unit of
// prediction.
type Ward struct {
	Code              string  `json:"code"`
	Name              string  `json:"name"`
	Latitude          float64 `json:"latitude"`
	Longitude         float64 `json:"longitude"`
	ElevationCategory string  `json:"elevation_category"`
	DrainageCategory  string  `json:"drainage_category"`
	DensityCategory   string  `json:"population_density_category"`
}

// HistoricalRecord is one labeled row of the training corpus: an observation
// plus the ward it was taken in and the flood outcome.
type HistoricalRecord struct {
	WardCode          string      `json:"ward_code"`
	WardName          string      `json:"ward_name"`
	Observation       Observation `json:"observation"`
	ElevationCategory string      `json:"elevation_category"`
	DrainageCategory  string      `json:"drainage_category"`
	DensityCategory   string      `json:"population_density_category"`
	FloodOccurred     bool        `json:"flood_occurred"`
	FloodRiskLevel    int         `json:"flood_risk_level"` // 0=Low 1=Medium 2=High
}

// FeatureVector is a fixed-order scaled numeric representation of an
// observation. Its length and field order are part of the training/inference
// contract; a mismatch is a programming error, not a tolerated case.
type FeatureVector []float64

// WardProfile holds per-ward aggregates computed once from the historical
// corpus and consumed by the zoning model.
type WardProfile struct {
	WardCode       string  `json:"ward_code"`
	WardName       string  `json:"ward_name"`
	MeanRainfall   float64 `json:"mean_rainfall"`
	MaxRainfall    float64 `json:"max_rainfall"`
	Max24hRainfall float64 `json:"max_24hr_rainfall"`
	FloodCount     int     `json:"flood_count"`
	RecordCount    int     `json:"record_count"`
	FloodFrequency float64 `json:"flood_frequency"`
	ElevationCode  int     `json:"elevation_code"`
	DrainageCode   int     `json:"drainage_code"`
}

// ClusterAssignment maps a ward to its cluster and the ordinal risk zone
// derived from the cluster's flood-frequency rank.
type ClusterAssignment struct {
	WardCode string `json:"ward_code"`
	WardName string `json:"ward_name"`
	Cluster  int    `json:"cluster"`
	RiskZone string `json:"risk_zone"`
}
