// internal/workers/storage/merge-dataset/models.go
package mergedataset

import (
	"procurement-harvester/internal/models"
	"procurement-harvester/pkg/registry"
)

type Input struct {
	Category *registry.Category
	Records  []models.Record
}

type Output struct {
	Category string          `json:"category"`
	Datasets []DatasetResult `json:"datasets"`
	// Promoted counts records removed from the unknown-year dataset because
	// this run wrote them to a dated one.
	Promoted int `json:"promoted,omitempty"`
}

// DatasetResult describes the merge of one dataset file.
type DatasetResult struct {
	Name     string `json:"name"`
	BlobID   string `json:"blobId,omitempty"`
	Existing int    `json:"existing"` // rows read from the store
	Incoming int    `json:"incoming"` // fresh rows for this dataset
	Total    int    `json:"total"`    // rows written
	Created  bool   `json:"created"`
	Skipped  bool   `json:"skipped"`
	Error    string `json:"error,omitempty"`

	// Records is the merged dataset as written; nil when skipped.
	Records []models.Record `json:"-"`
	// Upserted are this run's rows after deduplication; nil when skipped.
	Upserted []models.Record `json:"-"`
}

// Added is how many rows the merge grew the dataset by.
func (d DatasetResult) Added() int {
	return d.Total - d.Existing
}

// Written lists the datasets that were persisted.
func (o *Output) Written() []DatasetResult {
	var out []DatasetResult
	for _, d := range o.Datasets {
		if !d.Skipped {
			out = append(out, d)
		}
	}
	return out
}
