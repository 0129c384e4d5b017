// Package anomaly implements the statistical side of commit risk scoring.
// The heuristic scorer here is a stand-in for a trained model: anything that
// satisfies interfaces.AnomalyScorer can replace it without touching fusion.
package anomaly

import (
	"github.com/maxbolgarin/gitshield/internal/config"
	"github.com/maxbolgarin/gitshield/internal/model"
)

const (
	reasonUnknownAuthor = "unrecognized author profile"
	reasonMassiveDiff   = "massive code alteration"
	reasonShortMessage  = "abnormally short commit message"
)

// HeuristicScorer maps commit features to a bounded anomaly score.
// Pure and synchronous, safe for concurrent use.
type HeuristicScorer struct {
	cfg config.AnomalyConfig
}

// NewHeuristicScorer creates the default heuristic scorer.
func NewHeuristicScorer(cfg config.AnomalyConfig) *HeuristicScorer {
	return &HeuristicScorer{cfg: cfg}
}

// Score evaluates the commit in fixed priority order: author anomaly, then
// diff-size anomaly, then message-length anomaly. Every triggered condition
// contributes to the score, but the summary reports only the first one that
// is true, so the dominant reason is deterministic.
func (s *HeuristicScorer) Score(event model.CommitEvent) model.AnomalyResult {
	var (
		score   float64
		summary string
	)

	if event.Author == s.cfg.UnknownAuthorMarker {
		score += s.cfg.AuthorWeight
		if summary == "" {
			summary = reasonUnknownAuthor
		}
	}
	if event.LinesChanged > s.cfg.LargeDiffLines {
		score += s.cfg.DiffWeight
		if summary == "" {
			summary = reasonMassiveDiff
		}
	}
	if len(event.Message) < s.cfg.ShortMessageLen {
		score += s.cfg.MessageWeight
		if summary == "" {
			summary = reasonShortMessage
		}
	}

	if score > 100 {
		score = 100
	}
	return model.AnomalyResult{
		Score:   score,
		Summary: summary,
	}
}
