package server

import (
	"time"

	"github.com/maxbolgarin/errm"
	"github.com/maxbolgarin/lang"
)

const (
	defaultAddress  = "0.0.0.0:8080"
	defaultEndpoint = "/api/v1/ingest"
	defaultTimeout  = 30 * time.Second
	defaultMaxBody  = 10 << 20
)

// Config represents the ingest/API server configuration.
type Config struct {
	Address      string
	Endpoint     string
	Timeout      time.Duration
	MaxBodyBytes int64

	// RateLimitWindow is echoed in Retry-After on rejected requests.
	RateLimitWindow time.Duration
}

func (cfg *Config) PrepareAndValidate() error {
	cfg.Address = lang.Check(cfg.Address, defaultAddress)
	cfg.Endpoint = lang.Check(cfg.Endpoint, defaultEndpoint)
	cfg.Timeout = lang.Check(cfg.Timeout, defaultTimeout)
	cfg.MaxBodyBytes = lang.Check(cfg.MaxBodyBytes, int64(defaultMaxBody))
	cfg.RateLimitWindow = lang.Check(cfg.RateLimitWindow, time.Minute)

	if cfg.Endpoint[0] != '/' {
		return errm.New("endpoint must start with /")
	}
	return nil
}
