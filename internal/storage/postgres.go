package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"sync"
	"time"

	_ "github.com/lib/pq"
	"github.com/maxbolgarin/errm"
	"github.com/maxbolgarin/gitshield/internal/config"
	"github.com/maxbolgarin/gitshield/internal/model"
	"github.com/maxbolgarin/logze/v2"
)

const (
	scaleUnit    = "unit"
	scalePercent = "percent"

	defaultAlertLimit = 50
	maxAlertLimit     = 1000
)

// Postgres is the Postgres-backed persistence gateway. Every operation runs
// under a bounded timeout and transient failures are retried with exponential
// backoff. Schema creation happens exactly once, even under concurrent
// first-use.
type Postgres struct {
	db  *sql.DB
	cfg config.DatabaseConfig
	log logze.Logger

	schemaMu    sync.Mutex
	schemaReady bool
}

// NewPostgres creates the gateway on an open connection pool. The schema is
// created lazily on first use, not here, so construction never touches the
// network.
func NewPostgres(db *sql.DB, cfg config.DatabaseConfig) *Postgres {
	return &Postgres{
		db:  db,
		cfg: cfg,
		log: logze.With("module", "storage"),
	}
}

// Ping verifies connectivity to the backend.
func (p *Postgres) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, p.cfg.Timeout)
	defer cancel()
	return p.db.PingContext(ctx)
}

var schemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS verdicts (
		commit_id       TEXT PRIMARY KEY,
		repository      TEXT NOT NULL,
		risk_score      DOUBLE PRECISION NOT NULL,
		severity        TEXT NOT NULL,
		rule_score      DOUBLE PRECISION NOT NULL,
		rule_violations JSONB,
		anomaly_score   DOUBLE PRECISION NOT NULL,
		anomaly_summary TEXT,
		recommendations JSONB,
		analyzed_at     TIMESTAMPTZ NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS alerts (
		id         TEXT PRIMARY KEY,
		type       TEXT NOT NULL,
		severity   TEXT NOT NULL,
		message    TEXT NOT NULL,
		repository TEXT,
		commit_id  TEXT,
		priority   INT NOT NULL DEFAULT 0,
		resolved   BOOLEAN NOT NULL DEFAULT FALSE,
		created_at TIMESTAMPTZ NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_alerts_resolved ON alerts (resolved)`,
	`CREATE INDEX IF NOT EXISTS idx_alerts_created ON alerts (created_at)`,
	`CREATE INDEX IF NOT EXISTS idx_verdicts_analyzed ON verdicts (analyzed_at)`,
}

// ensureSchema creates tables and indexes once. The lock is scoped to schema
// creation only and is never held across regular operations.
func (p *Postgres) ensureSchema(ctx context.Context) error {
	p.schemaMu.Lock()
	defer p.schemaMu.Unlock()
	if p.schemaReady {
		return nil
	}
	err := withRetry(ctx, p.log, p.cfg.MaxRetries, p.cfg.RetryBase, func(ctx context.Context) error {
		for _, stmt := range schemaStatements {
			if _, err := p.db.ExecContext(ctx, stmt); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return errm.Wrap(err, "create schema")
	}
	p.schemaReady = true
	p.log.Info("database schema ensured")
	return nil
}

// validateScore checks the risk score against the declared scale.
func (p *Postgres) validateScore(score float64) error {
	max := 100.0
	if p.cfg.ScoreScale == scaleUnit {
		max = 1.0
	}
	if score < 0 || score > max {
		return errm.Wrap(ErrInvalidInput, "risk score out of range")
	}
	return nil
}

// StoreVerdict validates and upserts the verdict keyed by commit identifier.
// A re-analysis of the same commit replaces the stored record.
func (p *Postgres) StoreVerdict(ctx context.Context, v model.RiskVerdict) error {
	if v.CommitID == "" || len(v.CommitID) > 255 {
		p.log.Error("rejected verdict with invalid commit id", "commit_id", v.CommitID)
		return errm.Wrap(ErrInvalidInput, "commit id")
	}
	if v.Repository == "" || len(v.Repository) > 255 {
		p.log.Error("rejected verdict with invalid repository", "repository", v.Repository)
		return errm.Wrap(ErrInvalidInput, "repository")
	}
	if err := p.validateScore(v.Score); err != nil {
		p.log.Error("rejected verdict with out-of-range score", "commit_id", v.CommitID, "score", v.Score)
		return err
	}
	if !v.Severity.Valid() {
		// A severity outside the defined set reaching persistence is a
		// programming error, not bad user data.
		return errm.Wrap(ErrInvalidInput, "severity outside defined tiers: "+string(v.Severity))
	}
	if err := p.ensureSchema(ctx); err != nil {
		return err
	}

	violations, err := json.Marshal(v.Rule.Violations)
	if err != nil {
		return errm.Wrap(err, "marshal violations")
	}
	recommendations, err := json.Marshal(v.Recommendations)
	if err != nil {
		return errm.Wrap(err, "marshal recommendations")
	}
	if v.AnalyzedAt.IsZero() {
		v.AnalyzedAt = time.Now().UTC()
	}

	const q = `
		INSERT INTO verdicts
		  (commit_id, repository, risk_score, severity, rule_score, rule_violations,
		   anomaly_score, anomaly_summary, recommendations, analyzed_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
		ON CONFLICT (commit_id) DO UPDATE SET
		  repository      = EXCLUDED.repository,
		  risk_score      = EXCLUDED.risk_score,
		  severity        = EXCLUDED.severity,
		  rule_score      = EXCLUDED.rule_score,
		  rule_violations = EXCLUDED.rule_violations,
		  anomaly_score   = EXCLUDED.anomaly_score,
		  anomaly_summary = EXCLUDED.anomaly_summary,
		  recommendations = EXCLUDED.recommendations,
		  analyzed_at     = EXCLUDED.analyzed_at
	`
	return withRetry(ctx, p.log, p.cfg.MaxRetries, p.cfg.RetryBase, func(ctx context.Context) error {
		ctx, cancel := context.WithTimeout(ctx, p.cfg.Timeout)
		defer cancel()
		_, err := p.db.ExecContext(ctx, q,
			v.CommitID, v.Repository, v.Score, string(v.Severity),
			v.Rule.Score, violations, v.Anomaly.Score, v.Anomaly.Summary,
			recommendations, v.AnalyzedAt,
		)
		return err
	})
}

// StoreAlert validates and inserts an alert record.
func (p *Postgres) StoreAlert(ctx context.Context, a model.AlertRecord) error {
	if a.ID == "" {
		return errm.Wrap(ErrInvalidInput, "alert id")
	}
	if a.Type == "" || len(a.Type) > 100 {
		return errm.Wrap(ErrInvalidInput, "alert type")
	}
	if a.Message == "" || len(a.Message) > 500 {
		return errm.Wrap(ErrInvalidInput, "alert message")
	}
	if !a.Severity.Valid() {
		return errm.Wrap(ErrInvalidInput, "severity outside defined tiers: "+string(a.Severity))
	}
	if err := p.ensureSchema(ctx); err != nil {
		return err
	}
	if a.CreatedAt.IsZero() {
		a.CreatedAt = time.Now().UTC()
	}

	const q = `
		INSERT INTO alerts (id, type, severity, message, repository, commit_id, priority, resolved, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
	`
	return withRetry(ctx, p.log, p.cfg.MaxRetries, p.cfg.RetryBase, func(ctx context.Context) error {
		ctx, cancel := context.WithTimeout(ctx, p.cfg.Timeout)
		defer cancel()
		_, err := p.db.ExecContext(ctx, q,
			a.ID, a.Type, string(a.Severity), a.Message,
			a.Repository, a.CommitID, a.Priority, a.Resolved, a.CreatedAt,
		)
		return err
	})
}

// ResolveAlert flips the resolved flag for one alert.
func (p *Postgres) ResolveAlert(ctx context.Context, alertID string) error {
	if alertID == "" {
		return errm.Wrap(ErrInvalidInput, "alert id")
	}
	if err := p.ensureSchema(ctx); err != nil {
		return err
	}

	return withRetry(ctx, p.log, p.cfg.MaxRetries, p.cfg.RetryBase, func(ctx context.Context) error {
		ctx, cancel := context.WithTimeout(ctx, p.cfg.Timeout)
		defer cancel()
		res, err := p.db.ExecContext(ctx, `UPDATE alerts SET resolved = TRUE WHERE id = $1`, alertID)
		if err != nil {
			return err
		}
		n, err := res.RowsAffected()
		if err != nil {
			return err
		}
		if n == 0 {
			return ErrNotFound
		}
		return nil
	})
}

// GetStats returns aggregate counters over stored verdicts and alerts.
func (p *Postgres) GetStats(ctx context.Context) (model.AggregateStats, error) {
	if err := p.ensureSchema(ctx); err != nil {
		return model.AggregateStats{}, err
	}

	const q = `
		SELECT
		  (SELECT COUNT(*) FROM verdicts),
		  (SELECT COUNT(*) FROM verdicts WHERE severity IN ('high', 'critical')),
		  (SELECT COUNT(*) FROM alerts WHERE resolved = FALSE),
		  (SELECT COALESCE(AVG(risk_score), 0) FROM verdicts)
	`
	var stats model.AggregateStats
	err := withRetry(ctx, p.log, p.cfg.MaxRetries, p.cfg.RetryBase, func(ctx context.Context) error {
		ctx, cancel := context.WithTimeout(ctx, p.cfg.Timeout)
		defer cancel()
		return p.db.QueryRowContext(ctx, q).Scan(
			&stats.TotalAnalyses,
			&stats.HighRiskAnalyses,
			&stats.ActiveAlerts,
			&stats.AverageRiskScore,
		)
	})
	if err != nil {
		return model.AggregateStats{}, errm.Wrap(err, "query stats")
	}
	return stats, nil
}

// GetRecentAlerts returns unresolved alerts most-recent-first. The limit is
// clamped to [1,1000]; non-positive values fall back to the default.
func (p *Postgres) GetRecentAlerts(ctx context.Context, limit int) ([]model.AlertRecord, error) {
	if limit < 1 {
		limit = defaultAlertLimit
	}
	if limit > maxAlertLimit {
		limit = maxAlertLimit
	}
	if err := p.ensureSchema(ctx); err != nil {
		return nil, err
	}

	const q = `
		SELECT id, type, severity, message, repository, commit_id, priority, resolved, created_at
		FROM alerts
		WHERE resolved = FALSE
		ORDER BY created_at DESC
		LIMIT $1
	`
	var alerts []model.AlertRecord
	err := withRetry(ctx, p.log, p.cfg.MaxRetries, p.cfg.RetryBase, func(ctx context.Context) error {
		ctx, cancel := context.WithTimeout(ctx, p.cfg.Timeout)
		defer cancel()

		rows, err := p.db.QueryContext(ctx, q, limit)
		if err != nil {
			return err
		}
		defer rows.Close()

		alerts = alerts[:0]
		for rows.Next() {
			var (
				a          model.AlertRecord
				severity   string
				repository sql.NullString
				commitID   sql.NullString
			)
			if err := rows.Scan(&a.ID, &a.Type, &severity, &a.Message,
				&repository, &commitID, &a.Priority, &a.Resolved, &a.CreatedAt); err != nil {
				return err
			}
			a.Severity = model.Severity(severity)
			a.Repository = repository.String
			a.CommitID = commitID.String
			alerts = append(alerts, a)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, errm.Wrap(err, "query recent alerts")
	}
	return alerts, nil
}
