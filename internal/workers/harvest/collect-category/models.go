// internal/workers/harvest/collect-category/models.go
package collectcategory

import (
	apperrors "procurement-harvester/internal/common/errors"
	"procurement-harvester/internal/models"
	"procurement-harvester/pkg/registry"
)

type Input struct {
	Category *registry.Category
	// Keywords overrides the catalog keyword list when non-nil.
	Keywords []string
	Ranges   []models.DateRange
}

type Output struct {
	Category string          `json:"category"`
	Records  []models.Record `json:"-"`
	Pairs    int             `json:"pairs"`
	Pages    int             `json:"pages"`
	Excluded int             `json:"excluded"`
	Failures []Failure       `json:"failures,omitempty"`
}

// Failure records one abandoned (keyword, range) pair.
type Failure struct {
	Keyword string              `json:"keyword"`
	Range   models.DateRange    `json:"-"`
	Code    apperrors.ErrorCode `json:"code"`
	Err     error               `json:"-"`
}

// Failed reports whether the category produced nothing and at least one pair failed.
// A category that fetched zero records without errors is not failed.
func (o *Output) Failed() bool {
	return len(o.Records) == 0 && len(o.Failures) > 0
}
