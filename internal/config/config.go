package config

import (
	"time"
)

// Config represents the main application configuration.
// It is read once at startup and never mutated afterwards.
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Database  DatabaseConfig  `yaml:"database"`
	Rules     RulesConfig     `yaml:"rules"`
	Anomaly   AnomalyConfig   `yaml:"anomaly"`
	Fusion    FusionConfig    `yaml:"fusion"`
	RateLimit RateLimitConfig `yaml:"rate_limit"`
	Email     EmailConfig     `yaml:"email"`
	Webhook   WebhookConfig   `yaml:"chat_webhook"`
	Ledger    LedgerConfig    `yaml:"ledger"`
}

// ServerConfig represents the ingest/API server configuration.
type ServerConfig struct {
	Address      string        `yaml:"address" env:"SERVER_ADDRESS"`
	Endpoint     string        `yaml:"endpoint" env:"SERVER_ENDPOINT"`
	Timeout      time.Duration `yaml:"timeout" env:"SERVER_TIMEOUT"`
	MaxBodyBytes int64         `yaml:"max_body_bytes" env:"SERVER_MAX_BODY_BYTES"`
}

// DatabaseConfig represents the persistence gateway configuration.
type DatabaseConfig struct {
	URL        string        `yaml:"url" env:"DATABASE_URL"`
	Timeout    time.Duration `yaml:"timeout" env:"DATABASE_TIMEOUT"`
	MaxRetries int           `yaml:"max_retries" env:"DATABASE_MAX_RETRIES"`
	RetryBase  time.Duration `yaml:"retry_base" env:"DATABASE_RETRY_BASE"`

	// ScoreScale declares the valid risk score range: "unit" for [0,1]
	// or "percent" for [0,100].
	ScoreScale string `yaml:"score_scale" env:"DATABASE_SCORE_SCALE"`
}

// RulesConfig represents rule evaluator weights and the suspicious-hours window.
type RulesConfig struct {
	SecretWeight    float64  `yaml:"secret_weight" env:"RULES_SECRET_WEIGHT"`
	FileWeight      float64  `yaml:"file_weight" env:"RULES_FILE_WEIGHT"`
	TimingWeight    float64  `yaml:"timing_weight" env:"RULES_TIMING_WEIGHT"`
	WindowStartHour int      `yaml:"window_start_hour" env:"RULES_WINDOW_START_HOUR"`
	WindowEndHour   int      `yaml:"window_end_hour" env:"RULES_WINDOW_END_HOUR"`
	BlacklistedExts []string `yaml:"blacklisted_extensions" env:"RULES_BLACKLISTED_EXTENSIONS"`
}

// AnomalyConfig represents heuristic anomaly scorer thresholds and increments.
type AnomalyConfig struct {
	ShortMessageLen     int     `yaml:"short_message_len" env:"ANOMALY_SHORT_MESSAGE_LEN"`
	LargeDiffLines      int     `yaml:"large_diff_lines" env:"ANOMALY_LARGE_DIFF_LINES"`
	UnknownAuthorMarker string  `yaml:"unknown_author_marker" env:"ANOMALY_UNKNOWN_AUTHOR_MARKER"`
	AuthorWeight        float64 `yaml:"author_weight" env:"ANOMALY_AUTHOR_WEIGHT"`
	DiffWeight          float64 `yaml:"diff_weight" env:"ANOMALY_DIFF_WEIGHT"`
	MessageWeight       float64 `yaml:"message_weight" env:"ANOMALY_MESSAGE_WEIGHT"`
}

// FusionConfig represents risk fusion weights and severity tier thresholds.
type FusionConfig struct {
	RuleWeight        float64 `yaml:"rule_weight" env:"FUSION_RULE_WEIGHT"`
	AnomalyWeight     float64 `yaml:"anomaly_weight" env:"FUSION_ANOMALY_WEIGHT"`
	CriticalThreshold float64 `yaml:"critical_threshold" env:"FUSION_CRITICAL_THRESHOLD"`
	HighThreshold     float64 `yaml:"high_threshold" env:"FUSION_HIGH_THRESHOLD"`
	MediumThreshold   float64 `yaml:"medium_threshold" env:"FUSION_MEDIUM_THRESHOLD"`
}

// RateLimitConfig represents the ingress rate limiter configuration.
type RateLimitConfig struct {
	Window time.Duration `yaml:"window" env:"RATE_LIMIT_WINDOW"`
	Limit  int           `yaml:"limit" env:"RATE_LIMIT_LIMIT"`
}

// EmailConfig represents the SMTP alert sink configuration.
type EmailConfig struct {
	Enabled    bool          `yaml:"enabled" env:"EMAIL_ENABLED"`
	Host       string        `yaml:"host" env:"EMAIL_HOST"`
	Port       int           `yaml:"port" env:"EMAIL_PORT"`
	From       string        `yaml:"from" env:"EMAIL_FROM"`
	Password   string        `yaml:"password" env:"EMAIL_PASSWORD"`
	UseTLS     bool          `yaml:"use_tls" env:"EMAIL_USE_TLS"`
	Recipients []string      `yaml:"recipients" env:"EMAIL_RECIPIENTS"`
	MaxRetries int           `yaml:"max_retries" env:"EMAIL_MAX_RETRIES"`
	RetryBase  time.Duration `yaml:"retry_base" env:"EMAIL_RETRY_BASE"`
	Timeout    time.Duration `yaml:"timeout" env:"EMAIL_TIMEOUT"`
}

// WebhookConfig represents the chat webhook alert sink configuration.
type WebhookConfig struct {
	Enabled bool          `yaml:"enabled" env:"CHAT_WEBHOOK_ENABLED"`
	URL     string        `yaml:"url" env:"CHAT_WEBHOOK_URL"`
	Channel string        `yaml:"channel" env:"CHAT_WEBHOOK_CHANNEL"`
	Timeout time.Duration `yaml:"timeout" env:"CHAT_WEBHOOK_TIMEOUT"`
}

// LedgerConfig represents the audit ledger sink configuration.
// FallbackDir is always used when the remote ledger is unreachable or disabled.
type LedgerConfig struct {
	Enabled     bool          `yaml:"enabled" env:"LEDGER_ENABLED"`
	URL         string        `yaml:"url" env:"LEDGER_URL"`
	FallbackDir string        `yaml:"fallback_dir" env:"LEDGER_FALLBACK_DIR"`
	Timeout     time.Duration `yaml:"timeout" env:"LEDGER_TIMEOUT"`
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if c.Database.URL == "" {
		return ErrMissingDatabaseURL
	}
	if c.Fusion.RuleWeight < 0 || c.Fusion.AnomalyWeight < 0 {
		return ErrInvalidFusionWeights
	}
	if c.Fusion.MediumThreshold > c.Fusion.HighThreshold || c.Fusion.HighThreshold > c.Fusion.CriticalThreshold {
		return ErrInvalidTierThresholds
	}
	if c.Rules.WindowStartHour < 0 || c.Rules.WindowStartHour > 23 ||
		c.Rules.WindowEndHour < 0 || c.Rules.WindowEndHour > 23 {
		return ErrInvalidSuspiciousWindow
	}
	if c.Email.Enabled && c.Email.Host == "" {
		return ErrMissingEmailHost
	}
	if c.Webhook.Enabled && c.Webhook.URL == "" {
		return ErrMissingWebhookURL
	}
	return nil
}

// SetDefaults sets default values for configuration.
func (c *Config) SetDefaults() {
	// Server defaults
	if c.Server.Address == "" {
		c.Server.Address = "0.0.0.0:8080"
	}
	if c.Server.Endpoint == "" {
		c.Server.Endpoint = "/api/v1/ingest"
	}
	if c.Server.Timeout == 0 {
		c.Server.Timeout = 30 * time.Second
	}
	if c.Server.MaxBodyBytes == 0 {
		c.Server.MaxBodyBytes = 10 << 20
	}

	// Database defaults
	if c.Database.Timeout == 0 {
		c.Database.Timeout = 10 * time.Second
	}
	if c.Database.MaxRetries == 0 {
		c.Database.MaxRetries = 3
	}
	if c.Database.RetryBase == 0 {
		c.Database.RetryBase = 500 * time.Millisecond
	}
	if c.Database.ScoreScale == "" {
		c.Database.ScoreScale = "percent"
	}

	// Rule defaults
	if c.Rules.SecretWeight == 0 {
		c.Rules.SecretWeight = 50
	}
	if c.Rules.FileWeight == 0 {
		c.Rules.FileWeight = 30
	}
	if c.Rules.TimingWeight == 0 {
		c.Rules.TimingWeight = 10
	}
	if c.Rules.WindowStartHour == 0 {
		c.Rules.WindowStartHour = 1
	}
	if c.Rules.WindowEndHour == 0 {
		c.Rules.WindowEndHour = 4
	}
	if len(c.Rules.BlacklistedExts) == 0 {
		c.Rules.BlacklistedExts = []string{
			".exe", ".bat", ".cmd", ".scr", ".dll", ".bin", ".sh", ".bash", ".ps1",
		}
	}

	// Anomaly defaults
	if c.Anomaly.ShortMessageLen == 0 {
		c.Anomaly.ShortMessageLen = 10
	}
	if c.Anomaly.LargeDiffLines == 0 {
		c.Anomaly.LargeDiffLines = 1000
	}
	if c.Anomaly.UnknownAuthorMarker == "" {
		c.Anomaly.UnknownAuthorMarker = "unknown_user"
	}
	if c.Anomaly.AuthorWeight == 0 {
		c.Anomaly.AuthorWeight = 60
	}
	if c.Anomaly.DiffWeight == 0 {
		c.Anomaly.DiffWeight = 50
	}
	if c.Anomaly.MessageWeight == 0 {
		c.Anomaly.MessageWeight = 30
	}

	// Fusion defaults
	if c.Fusion.RuleWeight == 0 {
		c.Fusion.RuleWeight = 0.6
	}
	if c.Fusion.AnomalyWeight == 0 {
		c.Fusion.AnomalyWeight = 0.4
	}
	if c.Fusion.CriticalThreshold == 0 {
		c.Fusion.CriticalThreshold = 80
	}
	if c.Fusion.HighThreshold == 0 {
		c.Fusion.HighThreshold = 70
	}
	if c.Fusion.MediumThreshold == 0 {
		c.Fusion.MediumThreshold = 40
	}

	// Rate limit defaults
	if c.RateLimit.Window == 0 {
		c.RateLimit.Window = time.Minute
	}
	if c.RateLimit.Limit == 0 {
		c.RateLimit.Limit = 100
	}

	// Email sink defaults
	if c.Email.Port == 0 {
		c.Email.Port = 587
	}
	if c.Email.MaxRetries == 0 {
		c.Email.MaxRetries = 3
	}
	if c.Email.RetryBase == 0 {
		c.Email.RetryBase = time.Second
	}
	if c.Email.Timeout == 0 {
		c.Email.Timeout = 10 * time.Second
	}
	if len(c.Email.Recipients) == 0 {
		c.Email.Recipients = []string{"security@company.com"}
	}

	// Chat webhook sink defaults
	if c.Webhook.Channel == "" {
		c.Webhook.Channel = "#security-alerts"
	}
	if c.Webhook.Timeout == 0 {
		c.Webhook.Timeout = 10 * time.Second
	}

	// Ledger sink defaults
	if c.Ledger.FallbackDir == "" {
		c.Ledger.FallbackDir = "data/ledger-fallback"
	}
	if c.Ledger.Timeout == 0 {
		c.Ledger.Timeout = 10 * time.Second
	}
}
