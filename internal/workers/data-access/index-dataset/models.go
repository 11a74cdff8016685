// internal/workers/data-access/index-dataset/models.go
package indexdataset

import "procurement-harvester/internal/models"

// Input carries the records one run wrote to a dataset. They are upserted by
// business key, so replaced rows overwrite their earlier documents.
type Input struct {
	Category string
	Dataset  string
	Records  []models.Record
}

type Output struct {
	Indexed int `json:"indexed"`
	Failed  int `json:"failed"`
	Batches int `json:"batches"`
}

type bulkResponse struct {
	Errors bool                                  `json:"errors"`
	Items  []map[string]bulkResponseItemDetails `json:"items"`
}

type bulkResponseItemDetails struct {
	ID     string `json:"_id"`
	Status int    `json:"status"`
	Error  *struct {
		Type   string `json:"type"`
		Reason string `json:"reason"`
	} `json:"error,omitempty"`
}
