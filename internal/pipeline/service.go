// Package pipeline orchestrates the risk scoring flow: rule evaluation and
// anomaly scoring in parallel, fusion into a verdict, then persistence and
// alert fan-out on a background worker pool.
package pipeline

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/maxbolgarin/abstract"
	"github.com/maxbolgarin/errm"
	"github.com/maxbolgarin/gitshield/internal/fusion"
	"github.com/maxbolgarin/gitshield/internal/model"
	"github.com/maxbolgarin/gitshield/internal/model/interfaces"
	"github.com/maxbolgarin/gitshield/internal/rules"
	"github.com/maxbolgarin/logze/v2"
	"github.com/panjf2000/ants/v2"
)

const defaultPoolSize = 100

// Service runs the full analysis pipeline for commit events.
type Service struct {
	evaluator  *rules.Evaluator
	scorer     interfaces.AnomalyScorer
	fuser      *fusion.Fuser
	store      interfaces.Store
	dispatcher Dispatcher
	pool       *ants.Pool
	log        logze.Logger
}

// Dispatcher is the alert fan-out the pipeline hands alert-worthy verdicts to.
type Dispatcher interface {
	Dispatch(ctx context.Context, alert model.AlertRecord) []model.SinkResult
}

// New creates the pipeline service.
func New(
	evaluator *rules.Evaluator,
	scorer interfaces.AnomalyScorer,
	fuser *fusion.Fuser,
	store interfaces.Store,
	dispatcher Dispatcher,
) (*Service, error) {
	pool, err := ants.NewPool(defaultPoolSize)
	if err != nil {
		return nil, errm.Wrap(err, "create worker pool")
	}
	return &Service{
		evaluator:  evaluator,
		scorer:     scorer,
		fuser:      fuser,
		store:      store,
		dispatcher: dispatcher,
		pool:       pool,
		log:        logze.With("module", "pipeline"),
	}, nil
}

// Analyze scores one commit event and returns the verdict. Scoring is pure
// and synchronous; persistence and alert delivery are handed off to the
// worker pool so the caller's webhook acknowledgment is never gated on them.
func (s *Service) Analyze(ctx context.Context, event model.CommitEvent) (model.RiskVerdict, error) {
	timer := abstract.StartTimer()
	log := s.log.WithFields("commit_id", event.ID, "repository", event.Repository)

	// Rule evaluation and anomaly scoring are independent pure functions.
	var (
		ruleRes    model.RuleResult
		anomalyRes model.AnomalyResult
		wg         sync.WaitGroup
	)
	wg.Add(2)
	go func() {
		defer wg.Done()
		ruleRes = s.evaluator.Evaluate(event)
	}()
	go func() {
		defer wg.Done()
		anomalyRes = s.scorer.Score(event)
	}()
	wg.Wait()

	verdict := s.fuser.Fuse(event.ID, event.Repository, ruleRes, anomalyRes)
	verdict.Recommendations = recommendations(verdict)

	log.Info("commit analyzed",
		"risk_score", verdict.Score,
		"severity", string(verdict.Severity),
		"violations", len(ruleRes.Violations),
		"elapsed_time", timer.ElapsedTime().String(),
	)

	if err := s.pool.Submit(func() {
		s.persistAndAlert(context.WithoutCancel(ctx), verdict, log)
	}); err != nil {
		return verdict, errm.Wrap(err, "submit background work")
	}
	return verdict, nil
}

// persistAndAlert stores the verdict and, when it is alert-worthy, records
// and dispatches the alert. A dispatch failure never undoes the store.
func (s *Service) persistAndAlert(ctx context.Context, verdict model.RiskVerdict, log logze.Logger) {
	if err := s.store.StoreVerdict(ctx, verdict); err != nil {
		log.Err(err, "failed to store verdict")
	}

	if !verdict.Severity.AtLeast(model.SeverityMedium) {
		return
	}

	alert := alertFromVerdict(verdict)
	if err := s.store.StoreAlert(ctx, alert); err != nil {
		log.Err(err, "failed to store alert")
	}

	results := s.dispatcher.Dispatch(ctx, alert)
	for _, r := range results {
		if !r.Delivered {
			log.Warn("sink did not deliver alert", "sink", r.Sink, "alert_id", alert.ID)
		}
	}
}

// Stats returns aggregate counters for the dashboard layer.
func (s *Service) Stats(ctx context.Context) (model.AggregateStats, error) {
	return s.store.GetStats(ctx)
}

// RecentAlerts returns unresolved alerts, most-recent-first.
func (s *Service) RecentAlerts(ctx context.Context, limit int) ([]model.AlertRecord, error) {
	return s.store.GetRecentAlerts(ctx, limit)
}

// Resolve marks one alert as resolved.
func (s *Service) Resolve(ctx context.Context, alertID string) error {
	return s.store.ResolveAlert(ctx, alertID)
}

// Stop releases the worker pool.
func (s *Service) Stop(ctx context.Context) error {
	s.pool.Release()
	return nil
}

// alertFromVerdict derives the alert record. Severity is copied verbatim from
// the verdict so it cannot drift when viewed later.
func alertFromVerdict(v model.RiskVerdict) model.AlertRecord {
	priority := 0
	switch v.Severity {
	case model.SeverityHigh:
		priority = 1
	case model.SeverityCritical:
		priority = 2
	}
	return model.AlertRecord{
		ID:       uuid.NewString(),
		Type:     model.AlertTypeFraudDetected,
		Severity: v.Severity,
		Message: fmt.Sprintf("High-risk activity detected in %s\nRisk score: %.2f\nViolations: %d",
			v.Repository, v.Score, len(v.Rule.Violations)),
		Repository: v.Repository,
		CommitID:   v.CommitID,
		Priority:   priority,
		CreatedAt:  v.AnalyzedAt,
	}
}

// recommendations derives follow-up actions from the verdict.
func recommendations(v model.RiskVerdict) []string {
	var recs []string
	if v.Severity.AtLeast(model.SeverityCritical) {
		recs = append(recs,
			"immediate code review required",
			"consider rolling back recent commits")
	} else if v.Severity.AtLeast(model.SeverityHigh) {
		recs = append(recs,
			"enhanced monitoring recommended",
			"review contributor access permissions")
	}
	for _, violation := range v.Rule.Violations {
		if strings.HasPrefix(violation, "hardcoded") {
			recs = append(recs, "rotate any credentials present in the commit")
			break
		}
	}
	return recs
}
