package domain

import "time"

// AlertRule is an operator-defined CEL expression evaluated against every
// assessment. A rule whose expression yields true (or a score at or above
// its threshold) raises an alert on the bus.
type AlertRule struct {
	ID          string  `json:"id"`
	Name        string  `json:"name"`
	Description string  `json:"description"`
	Expression  string  `json:"expression"`
	Severity    string  `json:"severity"` // "watch", "warning", "severe"
	Threshold   float64 `json:"threshold"`
	Enabled     bool    `json:"enabled"`

	CreatedAt time.Time `json:"createdAt,omitempty"`
	UpdatedAt time.Time `json:"updatedAt,omitempty"`
}

// Alert severities in increasing order of urgency.
const (
	SeverityWatch   = "watch"
	SeverityWarning = "warning"
	SeveritySevere  = "severe"
)

// AlertResult is the outcome of evaluating one rule against one assessment.
type AlertResult struct {
	RuleID       string  `json:"ruleId"`
	RuleName     string  `json:"ruleName"`
	AssessmentID string  `json:"assessmentId"`
	WardCode     string  `json:"wardCode"`
	Fired        bool    `json:"fired"`
	Score        float64 `json:"score"`
	Severity     string  `json:"severity"`
	Reason       string  `json:"reason,omitempty"`
	ProcessMs    int64   `json:"processMs"`
}
