// internal/workers/harvest/fetch-pages/models.go
package fetchpages

import (
	"procurement-harvester/internal/models"
	"procurement-harvester/pkg/registry"
)

type Input struct {
	Category *registry.Category
	Keyword  string // empty for an unfiltered pass
	Range    models.DateRange
}

// Output is returned even when Execute fails; Records then holds whatever was
// collected before the failure.
type Output struct {
	Records    []models.Record `json:"-"`
	Pages      int             `json:"pages"`
	TotalCount int             `json:"totalCount"` // -1 when the API never reported one
	Truncated  bool            `json:"truncated"`  // stopped by the max_pages cap
}

// Page is one decoded API response.
type Page struct {
	Items      []map[string]interface{}
	TotalCount int // -1 when absent
	ResultCode string
}
