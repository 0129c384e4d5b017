package rules

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/maxbolgarin/gitshield/internal/config"
	"github.com/maxbolgarin/gitshield/internal/model"
)

// Evaluator runs deterministic pattern checks over commit metadata.
// It is pure and synchronous: no I/O, no failure for any well-formed commit.
type Evaluator struct {
	cfg       config.RulesConfig
	blacklist map[string]bool
}

// NewEvaluator creates a rule evaluator from the configured weights,
// file blacklist and suspicious-hours window.
func NewEvaluator(cfg config.RulesConfig) *Evaluator {
	blacklist := make(map[string]bool, len(cfg.BlacklistedExts))
	for _, ext := range cfg.BlacklistedExts {
		blacklist[strings.ToLower(ext)] = true
	}
	return &Evaluator{
		cfg:       cfg,
		blacklist: blacklist,
	}
}

// Evaluate scans the commit against the fixed signature set and returns a
// bounded rule score with human-readable violation labels. The score is
// clamped to [0,100]: many weak signals should not exceed full confidence.
func (e *Evaluator) Evaluate(event model.CommitEvent) model.RuleResult {
	var (
		score      float64
		violations []string
	)

	// Message and diff are scanned together; each pattern type counts once
	// per commit no matter how often it matches.
	content := event.Message + "\n" + event.Diff
	for _, p := range secretPatterns {
		if p.re.MatchString(content) {
			score += e.cfg.SecretWeight
			violations = append(violations, "hardcoded secret pattern detected: "+p.name)
		}
	}

	for _, file := range event.FilesChanged {
		ext := strings.ToLower(filepath.Ext(file))
		if e.blacklist[ext] {
			score += e.cfg.FileWeight
			violations = append(violations, "dangerous file type committed: "+file)
		}
	}

	if e.inSuspiciousWindow(event) {
		score += e.cfg.TimingWeight
		violations = append(violations, fmt.Sprintf(
			"commit made in suspicious hours window (%02d:00-%02d:00 UTC)",
			e.cfg.WindowStartHour, e.cfg.WindowEndHour))
	}

	return model.RuleResult{
		Score:      clamp(score),
		Violations: violations,
	}
}

// inSuspiciousWindow reports whether the commit hour falls inside the
// configured window. Both boundary hours are inclusive.
func (e *Evaluator) inSuspiciousWindow(event model.CommitEvent) bool {
	if event.Timestamp.IsZero() {
		return false
	}
	hour := event.Timestamp.UTC().Hour()
	start, end := e.cfg.WindowStartHour, e.cfg.WindowEndHour
	if start <= end {
		return hour >= start && hour <= end
	}
	// Window wrapping midnight, e.g. 22:00-02:00.
	return hour >= start || hour <= end
}

func clamp(score float64) float64 {
	if score < 0 {
		return 0
	}
	if score > 100 {
		return 100
	}
	return score
}
