package model

import "time"

// AlertTypeFraudDetected tags alerts produced by the risk pipeline.
const AlertTypeFraudDetected = "fraud_detected"

// AlertRecord is a notification-worthy event derived from a RiskVerdict whose
// severity reached the alerting threshold. Records are append-only except for
// the Resolved flag and the escalation Priority.
type AlertRecord struct {
	ID         string    `json:"id"`
	Type       string    `json:"type"`
	Severity   Severity  `json:"severity"`
	Message    string    `json:"message"`
	Repository string    `json:"repository"`
	CommitID   string    `json:"commit_id"`
	Priority   int       `json:"priority"`
	Resolved   bool      `json:"resolved"`
	CreatedAt  time.Time `json:"created_at"`
}

// SinkResult reports the delivery outcome for one notification sink.
type SinkResult struct {
	Sink      string `json:"sink"`
	Delivered bool   `json:"delivered"`
	Err       error  `json:"-"`
}
