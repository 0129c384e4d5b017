package model

import "time"

// CommitEvent represents one source-control change submitted for risk evaluation.
// It is immutable once constructed; the caller owns it until it enters the pipeline.
type CommitEvent struct {
	ID           string    `json:"commit_id"`
	Repository   string    `json:"repository"`
	Author       string    `json:"author"`
	Message      string    `json:"message"`
	FilesChanged []string  `json:"files_changed"`
	LinesChanged int       `json:"lines_changed"`
	Timestamp    time.Time `json:"timestamp"`
	Diff         string    `json:"diff,omitempty"`
}

// RuleResult is the outcome of deterministic rule evaluation for one commit.
type RuleResult struct {
	Score      float64  `json:"score"`
	Violations []string `json:"violations"`
}

// AnomalyResult is the outcome of the anomaly scorer for one commit.
// Summary describes the dominant triggered signal.
type AnomalyResult struct {
	Score   float64 `json:"score"`
	Summary string  `json:"summary"`
}
