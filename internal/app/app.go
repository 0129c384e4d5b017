// Package app wires the pipeline components together.
package app

import (
	"context"
	"database/sql"

	"github.com/maxbolgarin/contem"
	"github.com/maxbolgarin/errm"
	"github.com/maxbolgarin/gitshield/internal/anomaly"
	"github.com/maxbolgarin/gitshield/internal/config"
	"github.com/maxbolgarin/gitshield/internal/fusion"
	"github.com/maxbolgarin/gitshield/internal/model/interfaces"
	"github.com/maxbolgarin/gitshield/internal/notify"
	"github.com/maxbolgarin/gitshield/internal/pipeline"
	"github.com/maxbolgarin/gitshield/internal/ratelimit"
	"github.com/maxbolgarin/gitshield/internal/rules"
	"github.com/maxbolgarin/gitshield/internal/server"
	"github.com/maxbolgarin/gitshield/internal/storage"
	"github.com/maxbolgarin/logze/v2"
)

// GitShield is the main service that owns all pipeline components.
type GitShield struct {
	pipeline *pipeline.Service
	limiter  *ratelimit.Limiter
	server   *server.Server
	db       *sql.DB

	cfg config.Config
	log logze.Logger
}

// New creates the service and all of its components.
func New(ctx contem.Context, cfg config.Config) (*GitShield, error) {
	service := &GitShield{
		cfg: cfg,
		log: logze.With("component", "app"),
	}
	if err := service.init(ctx, cfg); err != nil {
		return nil, errm.Wrap(err, "failed to initialize service")
	}
	return service, nil
}

// Start starts the HTTP server.
func (s *GitShield) Start(ctx context.Context) error {
	if err := s.server.Start(ctx); err != nil {
		return errm.Wrap(err, "failed to start server")
	}
	s.log.Info("gitshield started", "address", s.cfg.Server.Address)
	return nil
}

func (s *GitShield) init(ctx contem.Context, cfg config.Config) error {
	db, err := sql.Open("postgres", cfg.Database.URL)
	if err != nil {
		return errm.Wrap(err, "failed to open database")
	}
	s.db = db
	ctx.Add(func(context.Context) error { return db.Close() })

	store := storage.NewPostgres(db, cfg.Database)

	evaluator := rules.NewEvaluator(cfg.Rules)
	var scorer interfaces.AnomalyScorer = anomaly.NewHeuristicScorer(cfg.Anomaly)
	fuser := fusion.NewFuser(cfg.Fusion)

	dispatcher, err := buildDispatcher(cfg)
	if err != nil {
		return errm.Wrap(err, "failed to create dispatcher")
	}

	s.pipeline, err = pipeline.New(evaluator, scorer, fuser, store, dispatcher)
	if err != nil {
		return errm.Wrap(err, "failed to create pipeline")
	}
	ctx.Add(s.pipeline.Stop)

	s.limiter = ratelimit.New(cfg.RateLimit)

	s.server, err = server.New(server.Config{
		Address:         cfg.Server.Address,
		Endpoint:        cfg.Server.Endpoint,
		Timeout:         cfg.Server.Timeout,
		MaxBodyBytes:    cfg.Server.MaxBodyBytes,
		RateLimitWindow: cfg.RateLimit.Window,
	}, s.pipeline, s.limiter)
	if err != nil {
		return errm.Wrap(err, "failed to create server")
	}
	ctx.Add(s.server.Stop)

	return nil
}

// buildDispatcher assembles the enabled alert sinks. The ledger sink is
// always present: it degrades to the local fallback log when the remote
// ledger is disabled, so alerts are never silently lost.
func buildDispatcher(cfg config.Config) (*notify.Dispatcher, error) {
	var sinks []interfaces.AlertSink

	if cfg.Email.Enabled {
		sinks = append(sinks, notify.NewEmailSink(cfg.Email))
	}
	if cfg.Webhook.Enabled {
		webhook, err := notify.NewWebhookSink(cfg.Webhook)
		if err != nil {
			return nil, errm.Wrap(err, "create webhook sink")
		}
		sinks = append(sinks, webhook)
	}
	ledger, err := notify.NewLedgerSink(cfg.Ledger)
	if err != nil {
		return nil, errm.Wrap(err, "create ledger sink")
	}
	sinks = append(sinks, ledger)

	return notify.NewDispatcher(sinks...), nil
}
