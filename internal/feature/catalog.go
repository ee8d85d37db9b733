// Package feature owns the canonical observation-to-vector schema: the
// categorical encoders and numeric scaler fit once at training time and
// frozen for serving.
package feature

import (
	"fmt"
	"math"
	"sort"

	"github.com/urbanrisk/floodwatch/internal/domain"
)

// FieldNames is the fixed feature order shared by training and inference.
// Changing it is a contract change, not a tuning knob.
var FieldNames = []string{
	"rainfall_mm",
	"rainfall_24hr_mm",
	"tide_level_m",
	"temperature_c",
	"humidity_pct",
	"wind_speed_kmh",
	"season",
}

// NumFeatures is the invariant feature-vector length.
const NumFeatures = 7

// Catalog holds the frozen encoder and scaler state. All fields are
// exported so the engine can serialize the catalog into a state bundle.
type Catalog struct {
	// SeasonCodes maps a season label to its integer code. Learned from the
	// corpus and frozen; unseen labels at inference are an error.
	SeasonCodes map[string]int `json:"seasonCodes"`

	// ImputeMeans are the raw per-field training means used to fill missing
	// numeric values at transform time (first six fields only).
	ImputeMeans []float64 `json:"imputeMeans"`

	// ScaleMean and ScaleStd are the z-score statistics per feature,
	// computed over the imputed training matrix.
	ScaleMean []float64 `json:"scaleMean"`
	ScaleStd  []float64 `json:"scaleStd"`
}

// Fit learns encoder and scaler state from the historical corpus.
func Fit(corpus []*domain.HistoricalRecord) (*Catalog, error) {
	if len(corpus) == 0 {
		return nil, fmt.Errorf("%w: empty corpus", domain.ErrInsufficientData)
	}

	seasons := map[string]bool{}
	for _, rec := range corpus {
		if rec.Observation.Season == "" {
			return nil, domain.SchemaErrorf("record for ward %s has no season", rec.WardCode)
		}
		seasons[rec.Observation.Season] = true
	}
	labels := make([]string, 0, len(seasons))
	for s := range seasons {
		labels = append(labels, s)
	}
	sort.Strings(labels)
	codes := make(map[string]int, len(labels))
	for i, s := range labels {
		codes[s] = i
	}

	c := &Catalog{
		SeasonCodes: codes,
		ImputeMeans: make([]float64, NumFeatures-1),
		ScaleMean:   make([]float64, NumFeatures),
		ScaleStd:    make([]float64, NumFeatures),
	}

	// Raw means over present values only, for imputation.
	counts := make([]int, NumFeatures-1)
	for _, rec := range corpus {
		for i, v := range numericFields(&rec.Observation) {
			if v != nil {
				c.ImputeMeans[i] += *v
				counts[i]++
			}
		}
	}
	for i := range c.ImputeMeans {
		if counts[i] > 0 {
			c.ImputeMeans[i] /= float64(counts[i])
		}
	}

	// Scaler statistics over the imputed matrix.
	n := float64(len(corpus))
	rows := make([][NumFeatures]float64, len(corpus))
	for r, rec := range corpus {
		for i, v := range numericFields(&rec.Observation) {
			if v != nil {
				rows[r][i] = *v
			} else {
				rows[r][i] = c.ImputeMeans[i]
			}
		}
		rows[r][NumFeatures-1] = float64(codes[rec.Observation.Season])
	}
	for _, row := range rows {
		for i := 0; i < NumFeatures; i++ {
			c.ScaleMean[i] += row[i]
		}
	}
	for i := range c.ScaleMean {
		c.ScaleMean[i] /= n
	}
	for _, row := range rows {
		for i := 0; i < NumFeatures; i++ {
			d := row[i] - c.ScaleMean[i]
			c.ScaleStd[i] += d * d
		}
	}
	for i := range c.ScaleStd {
		c.ScaleStd[i] = math.Sqrt(c.ScaleStd[i] / n)
		if c.ScaleStd[i] == 0 {
			// Constant feature: scaling by 1 keeps the value finite.
			c.ScaleStd[i] = 1
		}
	}

	return c, nil
}

// Transform converts an observation to the fixed-order scaled vector.
// Rainfall, tide level and season are mandatory; the remaining numeric
// fields are imputed with the training-time means recorded at fit.
func (c *Catalog) Transform(obs *domain.Observation) (domain.FeatureVector, error) {
	if obs == nil {
		return nil, domain.SchemaErrorf("observation is nil")
	}
	if obs.RainfallMM == nil {
		return nil, domain.SchemaErrorf("rainfall_mm is required")
	}
	if obs.TideLevelM == nil {
		return nil, domain.SchemaErrorf("tide_level_m is required")
	}
	if obs.Season == "" {
		return nil, domain.SchemaErrorf("season is required")
	}
	code, ok := c.SeasonCodes[obs.Season]
	if !ok {
		return nil, domain.UnknownCategoryErrorf("season", obs.Season)
	}

	vec := make(domain.FeatureVector, NumFeatures)
	for i, v := range numericFields(obs) {
		if v != nil {
			vec[i] = *v
		} else {
			vec[i] = c.ImputeMeans[i]
		}
	}
	vec[NumFeatures-1] = float64(code)

	for i := range vec {
		vec[i] = (vec[i] - c.ScaleMean[i]) / c.ScaleStd[i]
	}
	return vec, nil
}

// Validate checks internal consistency after deserialization.
func (c *Catalog) Validate() error {
	if len(c.SeasonCodes) == 0 {
		return fmt.Errorf("%w: catalog has no season encoder", domain.ErrStateMismatch)
	}
	if len(c.ImputeMeans) != NumFeatures-1 ||
		len(c.ScaleMean) != NumFeatures ||
		len(c.ScaleStd) != NumFeatures {
		return fmt.Errorf("%w: catalog dimensions do not match feature schema", domain.ErrStateMismatch)
	}
	return nil
}

// numericFields fixes the order of the six numeric observation fields,
// matching FieldNames.
func numericFields(o *domain.Observation) []*float64 {
	return []*float64{
		o.RainfallMM,
		o.Rainfall24hMM,
		o.TideLevelM,
		o.TemperatureC,
		o.HumidityPct,
		o.WindSpeedKmh,
	}
}
