// internal/workers/storage/merge-dataset/config.go
package mergedataset

import (
	"procurement-harvester/internal/common/config"
	"procurement-harvester/internal/common/retry"
)

type Config struct {
	// Upload retries only apply to retryable store errors.
	Upload retry.Policy
}

func LoadConfig(cfg *config.Config) *Config {
	return &Config{
		Upload: retry.Policy{
			MaxAttempts:  cfg.Retry.MaxAttempts,
			InitialDelay: config.GetDuration(cfg.Retry.InitialDelay),
			MaxDelay:     config.GetDuration(cfg.Retry.MaxDelay),
			Multiplier:   cfg.Retry.Multiplier,
		},
	}
}
