package config

import "errors"

var (
	ErrMissingDatabaseURL      = errors.New("database url is required")
	ErrInvalidFusionWeights    = errors.New("fusion weights must be non-negative")
	ErrInvalidTierThresholds   = errors.New("severity tier thresholds must be ordered medium <= high <= critical")
	ErrInvalidSuspiciousWindow = errors.New("suspicious window hours must be in [0,23]")
	ErrMissingEmailHost        = errors.New("email host is required when email sink is enabled")
	ErrMissingWebhookURL       = errors.New("chat webhook url is required when webhook sink is enabled")
)
