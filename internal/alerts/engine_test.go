package alerts

import (
	"context"
	"testing"
	"time"

	"github.com/urbanrisk/floodwatch/internal/domain"
)

func testAssessment() *domain.Assessment {
	return &domain.Assessment{
		ID:               "a-001",
		WardCode:         "COL",
		WardRiskZone:     domain.ZoneVeryHigh,
		RiskLevel:        domain.RiskHigh,
		FloodProbability: 0.82,
		CombinedHighRisk: true,
		ConfidenceScore:  0.7,
		RainfallCategory: "High",
		TideCategory:     "Medium",
		Season:           domain.SeasonMonsoon,
	}
}

func TestEngineCreation(t *testing.T) {
	engine, err := NewEngine(nil, 5)
	if err != nil {
		t.Fatalf("failed to create engine: %v", err)
	}
	defer engine.Close()

	if engine.RulesCount() != 0 {
		t.Errorf("expected 0 rules, got %d", engine.RulesCount())
	}
}

func TestLoadRule(t *testing.T) {
	engine, _ := NewEngine(nil, 5)
	defer engine.Close()

	rule := &domain.AlertRule{
		ID:         "rule-001",
		Name:       "High Probability",
		Expression: "flood_probability > 0.7",
		Severity:   domain.SeverityWarning,
		Enabled:    true,
	}
	if err := engine.LoadRule(rule); err != nil {
		t.Fatalf("failed to load rule: %v", err)
	}
	if engine.RulesCount() != 1 {
		t.Errorf("expected 1 rule, got %d", engine.RulesCount())
	}
}

func TestLoadInvalidRule(t *testing.T) {
	engine, _ := NewEngine(nil, 5)
	defer engine.Close()

	rule := &domain.AlertRule{
		ID:         "invalid-rule",
		Name:       "Invalid",
		Expression: "this is not valid CEL !!!",
		Enabled:    true,
	}
	if err := engine.LoadRule(rule); err == nil {
		t.Error("expected error for invalid CEL expression")
	}
}

func TestValidateRuleDoesNotLoad(t *testing.T) {
	engine, _ := NewEngine(nil, 5)
	defer engine.Close()

	rule := &domain.AlertRule{ID: "v-1", Expression: "risk_level >= 2"}
	if err := engine.ValidateRule(rule); err != nil {
		t.Fatalf("failed to validate rule: %v", err)
	}
	if engine.RulesCount() != 0 {
		t.Errorf("validate loaded the rule, count = %d", engine.RulesCount())
	}
}

func TestEvaluateBooleanRule(t *testing.T) {
	engine, _ := NewEngine(nil, 5)
	defer engine.Close()

	rule := &domain.AlertRule{
		ID:         "combined",
		Name:       "Combined",
		Expression: "combined_high_risk && risk_level >= 2",
		Severity:   domain.SeveritySevere,
		Enabled:    true,
	}
	if err := engine.LoadRule(rule); err != nil {
		t.Fatalf("failed to load rule: %v", err)
	}

	results, err := engine.EvaluateAll(context.Background(), testAssessment())
	if err != nil {
		t.Fatalf("failed to evaluate: %v", err)
	}
	if len(results) != 1 {
		t.Fatalf("expected 1 result, got %d", len(results))
	}
	r := results[0]
	if !r.Fired {
		t.Error("expected the rule to fire")
	}
	if r.Severity != domain.SeveritySevere {
		t.Errorf("expected severity %q, got %q", domain.SeveritySevere, r.Severity)
	}
	if r.WardCode != "COL" || r.AssessmentID != "a-001" {
		t.Errorf("result missing assessment context: %+v", r)
	}
}

func TestEvaluateScoredRuleWithThreshold(t *testing.T) {
	engine, _ := NewEngine(nil, 5)
	defer engine.Close()

	rule := &domain.AlertRule{
		ID:         "scored",
		Name:       "Weighted Probability",
		Expression: "flood_probability * confidence_score",
		Threshold:  0.5,
		Severity:   domain.SeverityWatch,
		Enabled:    true,
	}
	if err := engine.LoadRule(rule); err != nil {
		t.Fatalf("failed to load rule: %v", err)
	}

	results, err := engine.EvaluateAll(context.Background(), testAssessment())
	if err != nil {
		t.Fatalf("failed to evaluate: %v", err)
	}
	// 0.82 * 0.7 = 0.574 >= 0.5
	if !results[0].Fired {
		t.Errorf("expected score %f to clear threshold 0.5", results[0].Score)
	}
}

func TestEvaluateRecentAlerts(t *testing.T) {
	getter := func(_ context.Context, wardCode string, _ time.Duration) (int64, error) {
		if wardCode != "COL" {
			t.Errorf("expected ward COL, got %s", wardCode)
		}
		return 3, nil
	}
	engine, _ := NewEngine(getter, 5)
	defer engine.Close()

	rule := &domain.AlertRule{
		ID:         "storm-cluster",
		Name:       "Storm Cluster",
		Expression: "recent_alerts >= 3",
		Severity:   domain.SeverityWarning,
		Enabled:    true,
	}
	if err := engine.LoadRule(rule); err != nil {
		t.Fatalf("failed to load rule: %v", err)
	}

	results, err := engine.EvaluateAll(context.Background(), testAssessment())
	if err != nil {
		t.Fatalf("failed to evaluate: %v", err)
	}
	if !results[0].Fired {
		t.Error("expected the rule to fire with 3 recent alerts")
	}
}

func TestReloadRulesReplacesSet(t *testing.T) {
	engine, _ := NewEngine(nil, 5)
	defer engine.Close()

	if err := engine.LoadRules(BuiltinRules()); err != nil {
		t.Fatalf("failed to load builtin rules: %v", err)
	}
	if engine.RulesCount() != len(BuiltinRules()) {
		t.Fatalf("expected %d rules, got %d", len(BuiltinRules()), engine.RulesCount())
	}

	err := engine.ReloadRules([]*domain.AlertRule{
		{ID: "only", Name: "Only", Expression: "risk_level > 0", Enabled: true},
		{ID: "disabled", Name: "Disabled", Expression: "true", Enabled: false},
	})
	if err != nil {
		t.Fatalf("failed to reload: %v", err)
	}
	if engine.RulesCount() != 1 {
		t.Errorf("expected 1 rule after reload, got %d", engine.RulesCount())
	}
}

func TestReloadKeepsOldRulesOnError(t *testing.T) {
	engine, _ := NewEngine(nil, 5)
	defer engine.Close()

	if err := engine.LoadRules(BuiltinRules()); err != nil {
		t.Fatalf("failed to load builtin rules: %v", err)
	}
	err := engine.ReloadRules([]*domain.AlertRule{
		{ID: "bad", Expression: "not valid !!!", Enabled: true},
	})
	if err == nil {
		t.Fatal("expected reload to fail")
	}
	if engine.RulesCount() != len(BuiltinRules()) {
		t.Errorf("rule set changed after failed reload: %d rules", engine.RulesCount())
	}
}

func TestBuiltinRulesCompile(t *testing.T) {
	engine, _ := NewEngine(nil, 5)
	defer engine.Close()

	for _, rule := range BuiltinRules() {
		if err := engine.ValidateRule(rule); err != nil {
			t.Errorf("builtin rule %s does not compile: %v", rule.ID, err)
		}
	}
}

func TestEvaluateNoRules(t *testing.T) {
	engine, _ := NewEngine(nil, 5)
	defer engine.Close()

	results, err := engine.EvaluateAll(context.Background(), testAssessment())
	if err != nil {
		t.Fatalf("failed to evaluate: %v", err)
	}
	if results != nil {
		t.Errorf("expected no results, got %d", len(results))
	}
}
