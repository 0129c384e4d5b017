package interfaces

import (
	"context"

	"github.com/maxbolgarin/gitshield/internal/model"
)

// AnomalyScorer maps commit features to a bounded anomaly score. The default
// implementation is a heuristic; a trained model can replace it behind this
// same interface without touching risk fusion.
type AnomalyScorer interface {
	Score(event model.CommitEvent) model.AnomalyResult
}

// Store is the durable persistence gateway for verdicts and alerts.
type Store interface {
	StoreVerdict(ctx context.Context, verdict model.RiskVerdict) error
	StoreAlert(ctx context.Context, alert model.AlertRecord) error
	ResolveAlert(ctx context.Context, alertID string) error
	GetStats(ctx context.Context) (model.AggregateStats, error)
	GetRecentAlerts(ctx context.Context, limit int) ([]model.AlertRecord, error)
}

// AlertSink delivers alerts to one destination (email, chat webhook, audit
// ledger). Each sink applies its own retry policy inside Send.
type AlertSink interface {
	Name() string
	Send(ctx context.Context, alert model.AlertRecord) error
}
