package alerts

import "github.com/urbanrisk/floodwatch/internal/domain"

// BuiltinRules returns the default alert rules seeded on first start when
// the store holds none. Operators manage rules via the API afterwards.
func BuiltinRules() []*domain.AlertRule {
	return []*domain.AlertRule{
		{
			ID:          "builtin-combined-high-risk",
			Name:        "Combined High Risk",
			Description: "Classifier and fusion model agree on high flood risk",
			Expression:  "combined_high_risk",
			Severity:    domain.SeveritySevere,
			Enabled:     true,
		},
		{
			ID:          "builtin-probable-flood",
			Name:        "Probable Flood",
			Description: "Fused flood probability above 0.6",
			Expression:  "flood_probability > 0.6",
			Severity:    domain.SeverityWarning,
			Enabled:     true,
		},
		{
			ID:          "builtin-monsoon-surge",
			Name:        "Monsoon Surge",
			Description: "Heavy rain with a high tide during monsoon in a vulnerable ward",
			Expression:  `season == "Monsoon" && rainfall_category == "High" && tide_category != "Low" && ward_risk_zone in ["Very High Risk", "High Risk"]`,
			Severity:    domain.SeverityWatch,
			Enabled:     true,
		},
	}
}
