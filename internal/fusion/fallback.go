package fusion

// Fallback computes a deterministic weighted combination of the categorized
// inputs. It carries no fitted parameters; the weight tables are fixed.
type Fallback struct{}

// Fixed weight tables. Unknown categories use the neutral entry for the
// table so a single odd input degrades the estimate instead of zeroing it.
var (
	riskWeights = map[string]float64{
		"Very High Risk": 0.8,
		"High Risk":      0.6,
		"Medium Risk":    0.4,
		"Low Risk":       0.2,
	}
	rainfallWeights = map[string]float64{
		CatHigh:   0.7,
		CatMedium: 0.4,
		CatLow:    0.1,
	}
	tideWeights = map[string]float64{
		CatHigh:   0.6,
		CatMedium: 0.3,
		CatLow:    0.1,
	}
	seasonWeights = map[string]float64{
		"Monsoon": 0.8,
		"Summer":  0.3,
		"Winter":  0.2,
	}
)

const (
	neutralRisk     = 0.4
	neutralRainfall = 0.4
	neutralTide     = 0.3
	neutralSeason   = 0.3
)

// Infer combines the four weight-table lookups:
// 0.4*risk + 0.3*rainfall + 0.2*tide + 0.1*season, clipped to [0,1].
func (Fallback) Infer(rainfallCat, tideCat, zone, season string) float64 {
	p := 0.4*lookup(riskWeights, zone, neutralRisk) +
		0.3*lookup(rainfallWeights, rainfallCat, neutralRainfall) +
		0.2*lookup(tideWeights, tideCat, neutralTide) +
		0.1*lookup(seasonWeights, season, neutralSeason)
	if p < 0 {
		return 0
	}
	if p > 1 {
		return 1
	}
	return p
}

// Mode identifies the fallback backend.
func (Fallback) Mode() string { return ModeFallback }

func lookup(table map[string]float64, key string, neutral float64) float64 {
	if w, ok := table[key]; ok {
		return w
	}
	return neutral
}
