package storage

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
	"github.com/maxbolgarin/gitshield/internal/config"
	"github.com/maxbolgarin/gitshield/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMockStore(t *testing.T) (*Postgres, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	p := NewPostgres(db, config.DatabaseConfig{
		Timeout:    time.Second,
		MaxRetries: 3,
		RetryBase:  time.Millisecond,
		ScoreScale: scalePercent,
	})
	p.schemaReady = true
	return p, mock
}

func sampleVerdict() model.RiskVerdict {
	return model.RiskVerdict{
		CommitID:   "abc123",
		Repository: "team/app",
		Score:      72.5,
		Severity:   model.SeverityHigh,
		Rule:       model.RuleResult{Score: 50, Violations: []string{"hardcoded secret pattern detected: password assignment"}},
		Anomaly:    model.AnomalyResult{Score: 100, Summary: "unrecognized author profile"},
		AnalyzedAt: time.Date(2025, 6, 2, 12, 0, 0, 0, time.UTC),
	}
}

func TestStoreVerdictUpsert(t *testing.T) {
	p, mock := newMockStore(t)

	mock.ExpectExec("INSERT INTO verdicts").
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := p.StoreVerdict(context.Background(), sampleVerdict())

	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStoreVerdictReplacesOnSameCommit(t *testing.T) {
	p, mock := newMockStore(t)

	mock.ExpectExec("INSERT INTO verdicts").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO verdicts").WillReturnResult(sqlmock.NewResult(0, 1))

	v := sampleVerdict()
	require.NoError(t, p.StoreVerdict(context.Background(), v))

	v.Score = 15
	v.Severity = model.SeveritySafe
	require.NoError(t, p.StoreVerdict(context.Background(), v))

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStoreVerdictValidation(t *testing.T) {
	p, mock := newMockStore(t)

	tests := []struct {
		name   string
		mutate func(*model.RiskVerdict)
	}{
		{"empty commit id", func(v *model.RiskVerdict) { v.CommitID = "" }},
		{"oversized commit id", func(v *model.RiskVerdict) { v.CommitID = strings.Repeat("a", 256) }},
		{"empty repository", func(v *model.RiskVerdict) { v.Repository = "" }},
		{"negative score", func(v *model.RiskVerdict) { v.Score = -1 }},
		{"score above scale", func(v *model.RiskVerdict) { v.Score = 150 }},
		{"unknown severity", func(v *model.RiskVerdict) { v.Severity = "catastrophic" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := sampleVerdict()
			tt.mutate(&v)

			err := p.StoreVerdict(context.Background(), v)

			assert.ErrorIs(t, err, ErrInvalidInput)
		})
	}

	// Validation failures never reach the database.
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStoreVerdictUnitScale(t *testing.T) {
	p, mock := newMockStore(t)
	p.cfg.ScoreScale = scaleUnit

	v := sampleVerdict()
	v.Score = 72.5
	assert.ErrorIs(t, p.StoreVerdict(context.Background(), v), ErrInvalidInput)

	mock.ExpectExec("INSERT INTO verdicts").WillReturnResult(sqlmock.NewResult(0, 1))
	v.Score = 0.725
	assert.NoError(t, p.StoreVerdict(context.Background(), v))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStoreVerdictRetriesTransientError(t *testing.T) {
	p, mock := newMockStore(t)

	mock.ExpectExec("INSERT INTO verdicts").
		WillReturnError(&pq.Error{Code: "08006"}) // connection_failure
	mock.ExpectExec("INSERT INTO verdicts").
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := p.StoreVerdict(context.Background(), sampleVerdict())

	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStoreVerdictDoesNotRetryPermanentError(t *testing.T) {
	p, mock := newMockStore(t)

	mock.ExpectExec("INSERT INTO verdicts").
		WillReturnError(&pq.Error{Code: "23505"}) // unique_violation

	err := p.StoreVerdict(context.Background(), sampleVerdict())

	require.Error(t, err)
	assert.NoError(t, mock.ExpectationsWereMet(), "a permanent error must not be retried")
}

func TestStoreVerdictGivesUpAfterMaxRetries(t *testing.T) {
	p, mock := newMockStore(t)

	for i := 0; i < 3; i++ {
		mock.ExpectExec("INSERT INTO verdicts").
			WillReturnError(&pq.Error{Code: "40001"}) // serialization_failure
	}

	err := p.StoreVerdict(context.Background(), sampleVerdict())

	require.Error(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStoreAlert(t *testing.T) {
	p, mock := newMockStore(t)

	mock.ExpectExec("INSERT INTO alerts").
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := p.StoreAlert(context.Background(), model.AlertRecord{
		ID:         "alert-1",
		Type:       model.AlertTypeFraudDetected,
		Severity:   model.SeverityHigh,
		Message:    "High-risk activity detected in team/app",
		Repository: "team/app",
		CommitID:   "abc123",
		Priority:   1,
	})

	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStoreAlertValidation(t *testing.T) {
	p, mock := newMockStore(t)

	tests := []struct {
		name  string
		alert model.AlertRecord
	}{
		{"missing id", model.AlertRecord{Type: "t", Severity: model.SeverityHigh, Message: "m"}},
		{"missing type", model.AlertRecord{ID: "a", Severity: model.SeverityHigh, Message: "m"}},
		{"oversized message", model.AlertRecord{
			ID: "a", Type: "t", Severity: model.SeverityHigh,
			Message: strings.Repeat("m", 501),
		}},
		{"unknown severity", model.AlertRecord{ID: "a", Type: "t", Severity: "loud", Message: "m"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.ErrorIs(t, p.StoreAlert(context.Background(), tt.alert), ErrInvalidInput)
		})
	}
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestResolveAlert(t *testing.T) {
	p, mock := newMockStore(t)

	mock.ExpectExec("UPDATE alerts SET resolved").
		WithArgs("alert-1").
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, p.ResolveAlert(context.Background(), "alert-1"))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestResolveAlertNotFound(t *testing.T) {
	p, mock := newMockStore(t)

	mock.ExpectExec("UPDATE alerts SET resolved").
		WithArgs("missing").
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := p.ResolveAlert(context.Background(), "missing")

	assert.ErrorIs(t, err, ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetStats(t *testing.T) {
	p, mock := newMockStore(t)

	mock.ExpectQuery("SELECT").WillReturnRows(
		sqlmock.NewRows([]string{"total", "high_risk", "active", "average"}).
			AddRow(10, 3, 2, 45.5))

	stats, err := p.GetStats(context.Background())

	require.NoError(t, err)
	assert.Equal(t, int64(10), stats.TotalAnalyses)
	assert.Equal(t, int64(3), stats.HighRiskAnalyses)
	assert.Equal(t, int64(2), stats.ActiveAlerts)
	assert.Equal(t, 45.5, stats.AverageRiskScore)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetRecentAlerts(t *testing.T) {
	p, mock := newMockStore(t)

	created := time.Date(2025, 6, 2, 12, 0, 0, 0, time.UTC)
	mock.ExpectQuery("SELECT id, type, severity").
		WithArgs(10).
		WillReturnRows(sqlmock.NewRows([]string{
			"id", "type", "severity", "message", "repository", "commit_id", "priority", "resolved", "created_at",
		}).
			AddRow("a2", "fraud_detected", "critical", "msg2", "team/app", "def456", 2, false, created).
			AddRow("a1", "fraud_detected", "high", "msg1", nil, nil, 1, false, created.Add(-time.Hour)))

	alerts, err := p.GetRecentAlerts(context.Background(), 10)

	require.NoError(t, err)
	require.Len(t, alerts, 2)
	assert.Equal(t, "a2", alerts[0].ID)
	assert.Equal(t, model.SeverityCritical, alerts[0].Severity)
	assert.Equal(t, "team/app", alerts[0].Repository)
	assert.Empty(t, alerts[1].Repository, "NULL repository scans to an empty string")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetRecentAlertsLimitClamp(t *testing.T) {
	p, mock := newMockStore(t)

	cols := []string{"id", "type", "severity", "message", "repository", "commit_id", "priority", "resolved", "created_at"}

	mock.ExpectQuery("SELECT id, type, severity").
		WithArgs(defaultAlertLimit).
		WillReturnRows(sqlmock.NewRows(cols))
	mock.ExpectQuery("SELECT id, type, severity").
		WithArgs(maxAlertLimit).
		WillReturnRows(sqlmock.NewRows(cols))

	_, err := p.GetRecentAlerts(context.Background(), 0)
	require.NoError(t, err)
	_, err = p.GetRecentAlerts(context.Background(), 5000)
	require.NoError(t, err)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestEnsureSchemaRunsOnce(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	p := NewPostgres(db, config.DatabaseConfig{
		Timeout:    time.Second,
		MaxRetries: 3,
		RetryBase:  time.Millisecond,
		ScoreScale: scalePercent,
	})

	mock.ExpectExec("CREATE TABLE IF NOT EXISTS verdicts").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("CREATE TABLE IF NOT EXISTS alerts").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("CREATE INDEX IF NOT EXISTS idx_alerts_resolved").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("CREATE INDEX IF NOT EXISTS idx_alerts_created").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("CREATE INDEX IF NOT EXISTS idx_verdicts_analyzed").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("INSERT INTO verdicts").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO verdicts").WillReturnResult(sqlmock.NewResult(0, 1))

	// Two writes, but the schema statements run only before the first one.
	require.NoError(t, p.StoreVerdict(context.Background(), sampleVerdict()))
	require.NoError(t, p.StoreVerdict(context.Background(), sampleVerdict()))

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestIsTransient(t *testing.T) {
	tests := []struct {
		name      string
		err       error
		transient bool
	}{
		{"nil", nil, false},
		{"invalid input", ErrInvalidInput, false},
		{"not found", ErrNotFound, false},
		{"connection failure", &pq.Error{Code: "08006"}, true},
		{"serialization failure", &pq.Error{Code: "40001"}, true},
		{"too many connections", &pq.Error{Code: "53300"}, true},
		{"admin shutdown", &pq.Error{Code: "57P01"}, true},
		{"unique violation", &pq.Error{Code: "23505"}, false},
		{"deadline exceeded", context.DeadlineExceeded, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.transient, IsTransient(tt.err))
		})
	}
}
