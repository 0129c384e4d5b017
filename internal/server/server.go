// Package server exposes the pipeline over HTTP: the ingest endpoint guarded
// by the rate limiter, plus the stats and alert endpoints consumed by the
// dashboard layer.
package server

import (
	"context"
	"net"
	"net/http"
	"strconv"
	"strings"

	jsoniter "github.com/json-iterator/go"
	"github.com/maxbolgarin/errm"
	"github.com/maxbolgarin/gitshield/internal/model"
	"github.com/maxbolgarin/gitshield/internal/pipeline"
	"github.com/maxbolgarin/gitshield/internal/ratelimit"
	"github.com/maxbolgarin/gitshield/internal/storage"
	"github.com/maxbolgarin/logze/v2"
	"github.com/maxbolgarin/servex/v2"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Server handles ingest and dashboard API requests.
type Server struct {
	pipeline *pipeline.Service
	limiter  *ratelimit.Limiter
	config   Config
	log      logze.Logger
	server   *servex.Server
}

// New creates the HTTP server and registers all routes.
func New(cfg Config, pipe *pipeline.Service, limiter *ratelimit.Limiter) (*Server, error) {
	if err := cfg.PrepareAndValidate(); err != nil {
		return nil, errm.Wrap(err, "validate config")
	}

	log := logze.With("module", "server")

	srv, err := servex.NewServer(
		servex.WithReadTimeout(cfg.Timeout),
		servex.WithIdleTimeout(cfg.Timeout*2),
		servex.WithLogger(log),
		servex.WithHealthEndpoint(),
		servex.WithDefaultMetrics(),
	)
	if err != nil {
		return nil, errm.Wrap(err, "create server")
	}

	s := &Server{
		pipeline: pipe,
		limiter:  limiter,
		config:   cfg,
		log:      log,
		server:   srv,
	}

	srv.HandleFunc(cfg.Endpoint, s.handleIngest)
	srv.HandleFunc("/api/v1/stats", s.handleStats)
	srv.HandleFunc("/api/v1/alerts/recent", s.handleRecentAlerts)
	srv.HandleFunc("/api/v1/alerts/{id}/resolve", s.handleResolveAlert)

	return s, nil
}

// Start starts the HTTP server.
func (s *Server) Start(ctx context.Context) error {
	return s.server.StartHTTP(s.config.Address)
}

// Stop shuts the HTTP server down.
func (s *Server) Stop(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}

// handleIngest admits one commit event into the pipeline. Rate limiting is
// checked first: a rejected request short-circuits before any scoring work.
func (s *Server) handleIngest(w http.ResponseWriter, r *http.Request) {
	ctx := servex.NewContext(w, r)

	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	clientKey := s.clientKey(r)
	if !s.limiter.Allow(clientKey) {
		s.log.Warn("rate limit exceeded", "client", clientKey)
		w.Header().Set("X-RateLimit-Remaining", "0")
		w.Header().Set("Retry-After", strconv.Itoa(int(s.config.RateLimitWindow.Seconds())))
		http.Error(w, "too many requests", http.StatusTooManyRequests)
		return
	}
	w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(s.limiter.Remaining(clientKey)))

	r.Body = http.MaxBytesReader(w, r.Body, s.config.MaxBodyBytes)
	body, err := ctx.Read()
	if err != nil {
		ctx.BadRequest(err, "failed to read request body")
		return
	}

	var event model.CommitEvent
	if err := json.Unmarshal(body, &event); err != nil {
		ctx.BadRequest(err, "failed to parse commit event")
		return
	}
	if event.ID == "" {
		ctx.BadRequest(errm.New("commit_id is required"), "invalid commit event")
		return
	}
	if event.Repository == "" {
		ctx.BadRequest(errm.New("repository is required"), "invalid commit event")
		return
	}

	verdict, err := s.pipeline.Analyze(r.Context(), event)
	if err != nil {
		ctx.InternalServerError(err, "failed to analyze commit")
		return
	}

	s.writeJSON(w, http.StatusAccepted, map[string]any{
		"status":     "accepted",
		"commit_id":  verdict.CommitID,
		"risk_score": verdict.Score,
		"severity":   verdict.Severity,
	})
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	ctx := servex.NewContext(w, r)

	stats, err := s.pipeline.Stats(r.Context())
	if err != nil {
		ctx.InternalServerError(err, "failed to load stats")
		return
	}
	s.writeJSON(w, http.StatusOK, stats)
}

func (s *Server) handleRecentAlerts(w http.ResponseWriter, r *http.Request) {
	ctx := servex.NewContext(w, r)

	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil {
			ctx.BadRequest(err, "invalid limit")
			return
		}
		limit = parsed
	}

	alerts, err := s.pipeline.RecentAlerts(r.Context(), limit)
	if err != nil {
		ctx.InternalServerError(err, "failed to load alerts")
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{
		"count":  len(alerts),
		"alerts": alerts,
	})
}

func (s *Server) handleResolveAlert(w http.ResponseWriter, r *http.Request) {
	ctx := servex.NewContext(w, r)

	if r.Method != http.MethodPut && r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	alertID := alertIDFromPath(r.URL.Path)
	if alertID == "" {
		ctx.BadRequest(errm.New("alert id is required"), "invalid resolve request")
		return
	}

	err := s.pipeline.Resolve(r.Context(), alertID)
	switch {
	case errm.Is(err, storage.ErrNotFound):
		http.Error(w, "alert not found", http.StatusNotFound)
	case err != nil:
		ctx.InternalServerError(err, "failed to resolve alert")
	default:
		s.writeJSON(w, http.StatusOK, map[string]any{
			"status":   "resolved",
			"alert_id": alertID,
		})
	}
}

// clientKey identifies the caller for rate limiting: the source repository
// header when present, otherwise the remote IP.
func (s *Server) clientKey(r *http.Request) string {
	if repo := r.Header.Get("X-Source-Repository"); repo != "" {
		return repo
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.log.Err(err, "failed to encode response")
	}
}

// alertIDFromPath extracts the alert identifier from
// /api/v1/alerts/{id}/resolve.
func alertIDFromPath(path string) string {
	parts := strings.Split(strings.Trim(path, "/"), "/")
	// api / v1 / alerts / {id} / resolve
	if len(parts) != 5 || parts[2] != "alerts" || parts[4] != "resolve" {
		return ""
	}
	return parts[3]
}
