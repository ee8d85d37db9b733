// Package alerts provides the CEL-based alert rule engine. Rules are
// compiled once and evaluated in parallel against every completed
// assessment.
package alerts

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/cel-go/cel"
	"github.com/google/cel-go/common/types"
	"github.com/google/cel-go/common/types/ref"
	"github.com/urbanrisk/floodwatch/internal/domain"
)

// Engine compiles and evaluates alert rules.
type Engine struct {
	mu            sync.RWMutex
	env           *cel.Env
	compiledRules map[string]*CompiledRule
	recentAlerts  RecentAlertGetter
	maxWorkers    int
}

// CompiledRule holds a pre-compiled CEL program.
type CompiledRule struct {
	Rule    *domain.AlertRule
	Program cel.Program
}

// RecentAlertGetter returns the number of alerts raised for a ward within
// the window. Backed by cache counters.
type RecentAlertGetter func(ctx context.Context, wardCode string, window time.Duration) (int64, error)

// RecentAlertWindow is the lookback used for the recent_alerts variable.
const RecentAlertWindow = 6 * time.Hour

// NewEngine creates an alert rule engine. The recentAlerts getter may be
// nil, in which case recent_alerts evaluates to 0.
func NewEngine(recentAlerts RecentAlertGetter, maxWorkers int) (*Engine, error) {
	if maxWorkers <= 0 {
		maxWorkers = 10
	}

	env, err := cel.NewEnv(
		cel.Variable("assessment", cel.MapType(cel.StringType, cel.DynType)),
		cel.Variable("flood_probability", cel.DoubleType),
		cel.Variable("risk_level", cel.IntType),
		cel.Variable("ward_code", cel.StringType),
		cel.Variable("ward_risk_zone", cel.StringType),
		cel.Variable("confidence_score", cel.DoubleType),
		cel.Variable("combined_high_risk", cel.BoolType),
		cel.Variable("rainfall_category", cel.StringType),
		cel.Variable("tide_category", cel.StringType),
		cel.Variable("season", cel.StringType),
		cel.Variable("recent_alerts", cel.IntType),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create CEL environment: %w", err)
	}

	return &Engine{
		env:           env,
		compiledRules: make(map[string]*CompiledRule),
		recentAlerts:  recentAlerts,
		maxWorkers:    maxWorkers,
	}, nil
}

// ValidateRule compiles a rule without loading it.
func (e *Engine) ValidateRule(rule *domain.AlertRule) error {
	if rule == nil {
		return fmt.Errorf("alert rule is required")
	}

	e.mu.RLock()
	defer e.mu.RUnlock()

	_, err := e.compileRule(rule)
	return err
}

// LoadRule compiles and loads a rule into the engine.
func (e *Engine) LoadRule(rule *domain.AlertRule) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	compiled, err := e.compileRule(rule)
	if err != nil {
		return err
	}
	e.compiledRules[rule.ID] = compiled
	return nil
}

// LoadRules compiles and loads the enabled rules.
func (e *Engine) LoadRules(rules []*domain.AlertRule) error {
	for _, rule := range rules {
		if rule.Enabled {
			if err := e.LoadRule(rule); err != nil {
				return err
			}
		}
	}
	return nil
}

// ReloadRules atomically replaces the loaded rule set with the enabled
// rules from the given list. On compile error nothing is replaced.
func (e *Engine) ReloadRules(rules []*domain.AlertRule) error {
	newRules := make(map[string]*CompiledRule)
	for _, rule := range rules {
		if !rule.Enabled {
			continue
		}
		compiled, err := e.compileRule(rule)
		if err != nil {
			return err
		}
		newRules[rule.ID] = compiled
	}

	e.mu.Lock()
	e.compiledRules = newRules
	e.mu.Unlock()
	return nil
}

// RemoveRule unloads a rule. Removing an unknown rule is a no-op.
func (e *Engine) RemoveRule(id string) {
	e.mu.Lock()
	delete(e.compiledRules, id)
	e.mu.Unlock()
}

// RulesCount returns the number of loaded rules.
func (e *Engine) RulesCount() int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return len(e.compiledRules)
}

// LoadedRules returns the currently loaded rule configurations.
func (e *Engine) LoadedRules() []*domain.AlertRule {
	e.mu.RLock()
	defer e.mu.RUnlock()

	rules := make([]*domain.AlertRule, 0, len(e.compiledRules))
	for _, compiled := range e.compiledRules {
		rules = append(rules, compiled.Rule)
	}
	return rules
}

// EvaluateAll evaluates every loaded rule against the assessment in
// parallel and returns all results, fired or not.
func (e *Engine) EvaluateAll(ctx context.Context, a *domain.Assessment) ([]domain.AlertResult, error) {
	e.mu.RLock()
	rules := make([]*CompiledRule, 0, len(e.compiledRules))
	for _, rule := range e.compiledRules {
		rules = append(rules, rule)
	}
	e.mu.RUnlock()

	if len(rules) == 0 {
		return nil, nil
	}

	var recentCount int64
	if e.recentAlerts != nil {
		if count, err := e.recentAlerts(ctx, a.WardCode, RecentAlertWindow); err == nil {
			recentCount = count
		}
	}

	activation := map[string]any{
		"assessment": map[string]any{
			"id":                 a.ID,
			"ward_code":          a.WardCode,
			"ward_risk_zone":     a.WardRiskZone,
			"risk_level":         a.RiskLevel,
			"flood_probability":  a.FloodProbability,
			"confidence_level":   a.ConfidenceLevel,
			"combined_high_risk": a.CombinedHighRisk,
			"model_version":      a.ModelVersion,
		},
		"flood_probability":  a.FloodProbability,
		"risk_level":         a.RiskLevel,
		"ward_code":          a.WardCode,
		"ward_risk_zone":     a.WardRiskZone,
		"confidence_score":   a.ConfidenceScore,
		"combined_high_risk": a.CombinedHighRisk,
		"rainfall_category":  a.RainfallCategory,
		"tide_category":      a.TideCategory,
		"season":             a.Season,
		"recent_alerts":      recentCount,
	}

	results := make([]domain.AlertResult, len(rules))
	var wg sync.WaitGroup
	sem := make(chan struct{}, e.maxWorkers)

	for i, rule := range rules {
		wg.Add(1)
		go func(idx int, r *CompiledRule) {
			defer wg.Done()

			sem <- struct{}{}
			defer func() { <-sem }()

			results[idx] = e.evaluateRule(r, activation, a)
		}(i, rule)
	}
	wg.Wait()

	return results, nil
}

// evaluateRule evaluates one rule and converts its output to a verdict.
func (e *Engine) evaluateRule(rule *CompiledRule, activation map[string]any, a *domain.Assessment) domain.AlertResult {
	start := time.Now()

	result := domain.AlertResult{
		RuleID:       rule.Rule.ID,
		RuleName:     rule.Rule.Name,
		AssessmentID: a.ID,
		WardCode:     a.WardCode,
		Severity:     rule.Rule.Severity,
	}

	out, _, err := rule.Program.Eval(activation)
	if err != nil {
		result.Reason = fmt.Sprintf("evaluation error: %v", err)
		result.ProcessMs = time.Since(start).Milliseconds()
		return result
	}

	result.Score = toScore(out)
	threshold := rule.Rule.Threshold
	if threshold <= 0 {
		threshold = 1
	}
	result.Fired = result.Score >= threshold
	if result.Fired {
		result.Reason = rule.Rule.Description
	}
	result.ProcessMs = time.Since(start).Milliseconds()
	return result
}

// toScore converts a CEL value to a numeric score.
func toScore(val ref.Val) float64 {
	switch v := val.(type) {
	case types.Bool:
		if v {
			return 1.0
		}
		return 0.0
	case types.Double:
		return float64(v)
	case types.Int:
		return float64(v)
	default:
		return 0.0
	}
}

// Close unloads all rules.
func (e *Engine) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.compiledRules = make(map[string]*CompiledRule)
	return nil
}

func (e *Engine) compileRule(rule *domain.AlertRule) (*CompiledRule, error) {
	ast, issues := e.env.Compile(rule.Expression)
	if issues != nil && issues.Err() != nil {
		return nil, fmt.Errorf("failed to compile alert rule %s: %w", rule.ID, issues.Err())
	}

	outputType := ast.OutputType()
	if outputType != cel.BoolType && outputType != cel.DoubleType && outputType != cel.IntType {
		return nil, fmt.Errorf("alert rule %s: expression must return bool, int, or double, got %s", rule.ID, outputType)
	}

	program, err := e.env.Program(ast)
	if err != nil {
		return nil, fmt.Errorf("failed to create program for alert rule %s: %w", rule.ID, err)
	}

	return &CompiledRule{Rule: rule, Program: program}, nil
}
