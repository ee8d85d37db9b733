// Package fusion computes P(flood) from categorized inputs. The primary
// backend is a discrete conditional-probability network fitted on the
// categorized corpus; when the corpus cannot support it, a deterministic
// weighted combination serves instead. Callers never observe which backend
// answered.
package fusion

import (
	"fmt"
	"strings"

	"github.com/urbanrisk/floodwatch/internal/domain"
)

// Categorical levels shared by rainfall and tide.
const (
	CatLow    = "Low"
	CatMedium = "Medium"
	CatHigh   = "High"
)

// CategorizeRainfall buckets rainfall in mm: Low <10, Medium 10-50, High >50.
func CategorizeRainfall(mm float64) string {
	switch {
	case mm < 10:
		return CatLow
	case mm <= 50:
		return CatMedium
	default:
		return CatHigh
	}
}

// CategorizeTide buckets tide level in meters: Low <2, Medium 2-4, High >4.
func CategorizeTide(m float64) string {
	switch {
	case m < 2:
		return CatLow
	case m <= 4:
		return CatMedium
	default:
		return CatHigh
	}
}

// Row is one categorized training observation. Rows with unresolved
// categories are excluded before fitting.
type Row struct {
	Rainfall string
	Tide     string
	Zone     string
	Season   string
	Flood    bool
}

// Model answers flood-probability queries. Both backends implement it with
// the same output shape.
type Model interface {
	// Infer returns P(Flood=Yes | rainfall, tide, zone, season), in [0,1].
	Infer(rainfallCat, tideCat, zone, season string) float64

	// Mode identifies the backend: "network" or "fallback".
	Mode() string
}

// Backend mode identifiers, stored in the state bundle.
const (
	ModeNetwork  = "network"
	ModeFallback = "fallback"
)

// Train selects and fits the fusion backend once per training run. Under
// FusionAuto the network requires at least cfg.MinNetworkRows resolved rows
// and both flood outcomes present; otherwise the weighted fallback serves.
func Train(rows []Row, cfg domain.TrainingConfig) (Model, error) {
	resolved := rows[:0:0]
	for _, r := range rows {
		if r.Rainfall == "" || r.Tide == "" || r.Zone == "" || r.Season == "" {
			continue
		}
		resolved = append(resolved, r)
	}

	mode := cfg.FusionMode
	if mode == "" {
		mode = domain.FusionAuto
	}
	switch mode {
	case domain.FusionFallback:
		return Fallback{}, nil
	case domain.FusionNetwork:
		n, err := fitNetwork(resolved)
		if err != nil {
			return nil, err
		}
		return n, nil
	case domain.FusionAuto:
		minRows := cfg.MinNetworkRows
		if minRows <= 0 {
			minRows = 50
		}
		if !networkSupportable(resolved, minRows) {
			return Fallback{}, nil
		}
		n, err := fitNetwork(resolved)
		if err != nil {
			return Fallback{}, nil
		}
		return n, nil
	default:
		return nil, fmt.Errorf("unknown fusion mode %q", mode)
	}
}

func networkSupportable(rows []Row, minRows int) bool {
	if len(rows) < minRows {
		return false
	}
	floods, dry := false, false
	for _, r := range rows {
		if r.Flood {
			floods = true
		} else {
			dry = true
		}
		if floods && dry {
			return true
		}
	}
	return false
}

// Network is the CPT-backed model: one conditional table over the joint
// parent state {Rainfall, Tide, Zone, Season}. With every parent observed,
// the exact marginal query reduces to a table lookup; combinations never
// seen in training answer with the marginal flood rate.
type Network struct {
	CPT   map[string]float64 `json:"cpt"`
	Prior float64            `json:"prior"`
}

func fitNetwork(rows []Row) (*Network, error) {
	if len(rows) == 0 {
		return nil, fmt.Errorf("%w: no resolved rows for the fusion network", domain.ErrInsufficientData)
	}
	floods := map[string]int{}
	totals := map[string]int{}
	allFloods := 0
	for _, r := range rows {
		k := cptKey(r.Rainfall, r.Tide, r.Zone, r.Season)
		totals[k]++
		if r.Flood {
			floods[k]++
			allFloods++
		}
	}
	n := &Network{
		CPT:   make(map[string]float64, len(totals)),
		Prior: float64(allFloods) / float64(len(rows)),
	}
	for k, total := range totals {
		n.CPT[k] = float64(floods[k]) / float64(total)
	}
	return n, nil
}

// Infer performs the exact query over the fitted table.
func (n *Network) Infer(rainfallCat, tideCat, zone, season string) float64 {
	if p, ok := n.CPT[cptKey(rainfallCat, tideCat, zone, season)]; ok {
		return p
	}
	return n.Prior
}

// Mode identifies the network backend.
func (n *Network) Mode() string { return ModeNetwork }

// Validate checks the table after deserialization.
func (n *Network) Validate() error {
	if len(n.CPT) == 0 {
		return fmt.Errorf("%w: fusion network has an empty table", domain.ErrStateMismatch)
	}
	for k, p := range n.CPT {
		if p < 0 || p > 1 {
			return fmt.Errorf("%w: fusion table entry %s out of range: %f", domain.ErrStateMismatch, k, p)
		}
	}
	if n.Prior < 0 || n.Prior > 1 {
		return fmt.Errorf("%w: fusion prior out of range: %f", domain.ErrStateMismatch, n.Prior)
	}
	return nil
}

func cptKey(rainfall, tide, zone, season string) string {
	return strings.Join([]string{rainfall, tide, zone, season}, "|")
}
