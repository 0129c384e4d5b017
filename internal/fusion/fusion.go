// Package fusion combines rule and anomaly scores into a single risk verdict.
package fusion

import (
	"time"

	"github.com/maxbolgarin/gitshield/internal/config"
	"github.com/maxbolgarin/gitshield/internal/model"
)

// Fuser computes the weighted risk score and classifies it into a severity
// tier. Rules are weighted higher than the anomaly score because they
// represent definite, auditable findings rather than probabilistic signals.
type Fuser struct {
	cfg config.FusionConfig
}

// NewFuser creates a fuser with the configured weights and tier thresholds.
func NewFuser(cfg config.FusionConfig) *Fuser {
	return &Fuser{cfg: cfg}
}

// Fuse combines the two sub-scores for one commit. Pure and deterministic:
// the same inputs always yield an identical verdict (modulo AnalyzedAt).
// The result is clamped to [0,100] even when reconfigured weights sum above 1.
func (f *Fuser) Fuse(commitID, repository string, rule model.RuleResult, anomaly model.AnomalyResult) model.RiskVerdict {
	final := rule.Score*f.cfg.RuleWeight + anomaly.Score*f.cfg.AnomalyWeight
	if final < 0 {
		final = 0
	}
	if final > 100 {
		final = 100
	}

	return model.RiskVerdict{
		CommitID:   commitID,
		Repository: repository,
		Score:      final,
		Severity:   f.classify(final),
		Rule:       rule,
		Anomaly:    anomaly,
		AnalyzedAt: time.Now().UTC(),
	}
}

// classify maps the final score to a tier. Boundary values belong to the
// higher tier.
func (f *Fuser) classify(score float64) model.Severity {
	switch {
	case score >= f.cfg.CriticalThreshold:
		return model.SeverityCritical
	case score >= f.cfg.HighThreshold:
		return model.SeverityHigh
	case score >= f.cfg.MediumThreshold:
		return model.SeverityMedium
	default:
		return model.SeveritySafe
	}
}
