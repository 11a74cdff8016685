// internal/workers/data-access/record-run/models.go
package recordrun

import "time"

// Input describes one category of one run. Each dataset becomes one ledger row.
type Input struct {
	RunID    string
	Category string
	Start    time.Time
	End      time.Time
	Fetched  int
	Failures int
	Status   string
	Datasets []DatasetRow
}

type DatasetRow struct {
	Name  string
	Added int
	Total int
}

type Output struct {
	Rows int `json:"rows"`
}
