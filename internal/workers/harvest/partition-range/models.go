// internal/workers/harvest/partition-range/models.go
package partitionrange

import (
	"time"

	"procurement-harvester/internal/models"
	"procurement-harvester/pkg/registry"
)

type Input struct {
	Start  time.Time            `json:"start"`
	End    time.Time            `json:"end"`
	Policy registry.ChunkPolicy `json:"policy"`
}

type Output struct {
	Ranges []models.DateRange `json:"ranges"`
}
