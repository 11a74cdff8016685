// internal/workers/harvest/fetch-pages/config.go
package fetchpages

import (
	"time"

	"procurement-harvester/internal/common/config"
	"procurement-harvester/internal/common/retry"
)

type Config struct {
	ServiceKey string
	Timeout    time.Duration
	Pacing     time.Duration
	UserAgent  string
	Retry      retry.Policy
}

func LoadConfig(cfg *config.Config) *Config {
	return &Config{
		ServiceKey: cfg.Credentials.ServiceKey,
		Timeout:    config.GetDuration(cfg.HTTP.Timeout),
		Pacing:     config.GetDuration(cfg.HTTP.Pacing),
		UserAgent:  cfg.HTTP.UserAgent,
		Retry: retry.Policy{
			MaxAttempts:  cfg.Retry.MaxAttempts,
			InitialDelay: config.GetDuration(cfg.Retry.InitialDelay),
			MaxDelay:     config.GetDuration(cfg.Retry.MaxDelay),
			Multiplier:   cfg.Retry.Multiplier,
		},
	}
}
