// internal/workers/harvest/schedule-categories/config.go
package schedulecategories

import "procurement-harvester/internal/common/config"

type Config struct {
	Workers int
}

func LoadConfig(cfg *config.Config) *Config {
	return &Config{Workers: cfg.Harvest.Workers}
}
