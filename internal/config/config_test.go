package config_test

import (
	"testing"
	"time"

	"github.com/maxbolgarin/gitshield/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validConfig() config.Config {
	var cfg config.Config
	cfg.SetDefaults()
	cfg.Database.URL = "postgres://localhost:5432/gitshield"
	return cfg
}

func TestSetDefaults(t *testing.T) {
	var cfg config.Config
	cfg.SetDefaults()

	assert.Equal(t, "0.0.0.0:8080", cfg.Server.Address)
	assert.Equal(t, "/api/v1/ingest", cfg.Server.Endpoint)
	assert.Equal(t, 10*time.Second, cfg.Database.Timeout)
	assert.Equal(t, 3, cfg.Database.MaxRetries)
	assert.Equal(t, "percent", cfg.Database.ScoreScale)
	assert.Equal(t, 50.0, cfg.Rules.SecretWeight)
	assert.Equal(t, 1, cfg.Rules.WindowStartHour)
	assert.Equal(t, 4, cfg.Rules.WindowEndHour)
	assert.NotEmpty(t, cfg.Rules.BlacklistedExts)
	assert.Equal(t, 0.6, cfg.Fusion.RuleWeight)
	assert.Equal(t, 0.4, cfg.Fusion.AnomalyWeight)
	assert.Equal(t, 70.0, cfg.Fusion.HighThreshold)
	assert.Equal(t, time.Minute, cfg.RateLimit.Window)
	assert.Equal(t, 100, cfg.RateLimit.Limit)
	assert.Equal(t, 587, cfg.Email.Port)
	assert.Equal(t, "#security-alerts", cfg.Webhook.Channel)
	assert.Equal(t, "data/ledger-fallback", cfg.Ledger.FallbackDir)
}

func TestSetDefaultsKeepsExplicitValues(t *testing.T) {
	var cfg config.Config
	cfg.Server.Address = "127.0.0.1:9999"
	cfg.RateLimit.Limit = 10

	cfg.SetDefaults()

	assert.Equal(t, "127.0.0.1:9999", cfg.Server.Address)
	assert.Equal(t, 10, cfg.RateLimit.Limit)
}

func TestValidate(t *testing.T) {
	valid := validConfig()
	require.NoError(t, valid.Validate())

	tests := []struct {
		name   string
		mutate func(*config.Config)
		err    error
	}{
		{
			"missing database url",
			func(c *config.Config) { c.Database.URL = "" },
			config.ErrMissingDatabaseURL,
		},
		{
			"negative fusion weight",
			func(c *config.Config) { c.Fusion.RuleWeight = -0.5 },
			config.ErrInvalidFusionWeights,
		},
		{
			"inverted tier thresholds",
			func(c *config.Config) { c.Fusion.MediumThreshold = 90 },
			config.ErrInvalidTierThresholds,
		},
		{
			"window hour out of range",
			func(c *config.Config) { c.Rules.WindowEndHour = 24 },
			config.ErrInvalidSuspiciousWindow,
		},
		{
			"email enabled without host",
			func(c *config.Config) { c.Email.Enabled = true; c.Email.Host = "" },
			config.ErrMissingEmailHost,
		},
		{
			"webhook enabled without url",
			func(c *config.Config) { c.Webhook.Enabled = true; c.Webhook.URL = "" },
			config.ErrMissingWebhookURL,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(&cfg)
			assert.ErrorIs(t, cfg.Validate(), tt.err)
		})
	}
}
