package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/maxbolgarin/cliex"
	"github.com/maxbolgarin/errm"
	"github.com/maxbolgarin/gitshield/internal/config"
	"github.com/maxbolgarin/gitshield/internal/model"
	"github.com/maxbolgarin/logze/v2"
)

// LedgerSink appends alerts to a remote audit ledger. On any remote failure,
// including the ledger being disabled, the record goes to a local durable log
// instead, so an alert is never silently lost.
type LedgerSink struct {
	cfg      config.LedgerConfig
	cli      *cliex.HTTP
	fallback *FallbackLog
	log      logze.Logger
}

// NewLedgerSink creates the ledger sink and its local fallback log.
func NewLedgerSink(cfg config.LedgerConfig) (*LedgerSink, error) {
	log := logze.With("module", "notify", "sink", "ledger")

	var cli *cliex.HTTP
	if cfg.Enabled && cfg.URL != "" {
		var err error
		cli, err = cliex.NewWithConfig(cliex.Config{
			RequestTimeout: cfg.Timeout,
		})
		if err != nil {
			return nil, errm.Wrap(err, "create ledger client")
		}
	}

	return &LedgerSink{
		cfg:      cfg,
		cli:      cli,
		fallback: NewFallbackLog(cfg.FallbackDir),
		log:      log,
	}, nil
}

func (s *LedgerSink) Name() string { return "ledger" }

// Send attempts the remote append first, then falls back to the local log.
// The fallback write is the success path when the remote ledger is disabled.
func (s *LedgerSink) Send(ctx context.Context, alert model.AlertRecord) error {
	if s.cli != nil {
		_, err := s.cli.Post(ctx, s.cfg.URL, alert, nil)
		if err == nil {
			return nil
		}
		s.log.Warn("remote ledger append failed, using local fallback",
			"alert_id", alert.ID, "error", err.Error())
	}

	if err := s.fallback.Append(alert); err != nil {
		return errm.Wrap(err, "fallback append")
	}
	return nil
}

// FallbackLog is a local durable store of alert records, one JSON file per
// alert.
type FallbackLog struct {
	dir string
}

// NewFallbackLog returns a fallback log and ensures its directory exists.
func NewFallbackLog(dir string) *FallbackLog {
	_ = os.MkdirAll(dir, 0o755)
	return &FallbackLog{dir: dir}
}

// Append persists one alert record.
func (f *FallbackLog) Append(alert model.AlertRecord) error {
	b, err := json.MarshalIndent(alert, "", "  ")
	if err != nil {
		return errm.Wrap(err, "marshal alert")
	}
	path := filepath.Join(f.dir, fmt.Sprintf("alert_%s.json", alert.ID))
	if err := os.WriteFile(path, b, 0o644); err != nil {
		return errm.Wrap(err, "write alert file")
	}
	return nil
}

// Read loads a previously appended alert by identifier.
func (f *FallbackLog) Read(alertID string) (model.AlertRecord, error) {
	path := filepath.Join(f.dir, fmt.Sprintf("alert_%s.json", alertID))
	b, err := os.ReadFile(path)
	if err != nil {
		return model.AlertRecord{}, errm.Wrap(err, "read alert file")
	}
	var alert model.AlertRecord
	if err := json.Unmarshal(b, &alert); err != nil {
		return model.AlertRecord{}, errm.Wrap(err, "unmarshal alert")
	}
	return alert, nil
}
