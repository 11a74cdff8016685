// internal/workers/data-access/record-run/config.go
package recordrun

import "time"

type Config struct {
	Timeout time.Duration
	Table   string
}

func LoadConfig() *Config {
	return &Config{
		Timeout: 10 * time.Second,
		Table:   "harvest_runs",
	}
}
