package model

import "time"

// Severity is the closed set of risk tiers a verdict can be classified into.
type Severity string

const (
	SeveritySafe     Severity = "safe"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

var severityRank = map[Severity]int{
	SeveritySafe:     0,
	SeverityMedium:   1,
	SeverityHigh:     2,
	SeverityCritical: 3,
}

// Valid reports whether s is one of the four defined tiers.
func (s Severity) Valid() bool {
	_, ok := severityRank[s]
	return ok
}

// AtLeast reports whether s is the same tier as other or a higher one.
// Unknown severities always compare below defined ones.
func (s Severity) AtLeast(other Severity) bool {
	return severityRank[s] >= severityRank[other] && s.Valid()
}

// ParseSeverity converts a stored string back into a Severity.
func ParseSeverity(raw string) (Severity, bool) {
	s := Severity(raw)
	return s, s.Valid()
}

// RiskVerdict is the fused outcome of rule evaluation and anomaly scoring
// for a single commit. It is never mutated after creation; re-analysis of the
// same commit produces a new verdict that replaces the stored one.
type RiskVerdict struct {
	CommitID   string    `json:"commit_id"`
	Repository string    `json:"repository"`
	Score      float64   `json:"risk_score"`
	Severity   Severity  `json:"severity"`
	AnalyzedAt time.Time `json:"analyzed_at"`

	// Contributing results retained for audit.
	Rule    RuleResult    `json:"rule_result"`
	Anomaly AnomalyResult `json:"anomaly_result"`

	Recommendations []string `json:"recommendations,omitempty"`
}

// AggregateStats summarizes stored verdicts and alerts for the dashboard layer.
type AggregateStats struct {
	TotalAnalyses    int64   `json:"total_analyses"`
	HighRiskAnalyses int64   `json:"high_risk_analyses"`
	ActiveAlerts     int64   `json:"active_alerts"`
	AverageRiskScore float64 `json:"average_risk_score"`
}
