// internal/workers/data-access/index-dataset/config.go
package indexdataset

import (
	"time"

	"procurement-harvester/internal/common/config"
)

type Config struct {
	Index     string
	BatchSize int
	Timeout   time.Duration
}

func LoadConfig(cfg *config.Config) *Config {
	index := cfg.Database.Elasticsearch.IndexPrefix
	if index == "" {
		index = "procurement-records"
	}
	return &Config{
		Index:     index,
		BatchSize: 500,
		Timeout:   30 * time.Second,
	}
}
