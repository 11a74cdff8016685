// pkg/registry/schema.go
package registry

import (
	"fmt"
	"strings"

	"procurement-harvester/internal/models"
)

// Catalog is the declarative list of harvestable categories.
type Catalog struct {
	Version     string      `json:"version"`
	LastUpdated string      `json:"lastUpdated"`
	Categories  []*Category `json:"categories"`
}

// Category describes one harvestable record stream: where to fetch it, how to
// split its time range, how to map its items and where its dataset lives.
type Category struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`

	Endpoint        string            `json:"endpoint"`
	Format          string            `json:"format"` // json | xml
	PageSize        int               `json:"page_size"`
	MaxPages        int               `json:"max_pages,omitempty"`
	ServiceKeyParam string            `json:"service_key_param,omitempty"`
	PageParam       string            `json:"page_param,omitempty"`
	RowsParam       string            `json:"rows_param,omitempty"`
	BeginParam      string            `json:"begin_param"`
	EndParam        string            `json:"end_param"`
	DateLayout      string            `json:"date_layout,omitempty"`
	BeginSuffix     string            `json:"begin_suffix,omitempty"`
	EndSuffix       string            `json:"end_suffix,omitempty"`
	KeywordParam    string            `json:"keyword_param,omitempty"`
	Keywords        []string          `json:"keywords,omitempty"`
	StaticParams    map[string]string `json:"static_params,omitempty"`
	SuccessCode     string            `json:"success_code,omitempty"`
	NoDataCodes     []string          `json:"no_data_codes,omitempty"` // result codes meaning "empty page"

	Chunk ChunkPolicy `json:"chunk"`

	Dataset     string `json:"dataset"`
	SplitByYear bool   `json:"split_by_year,omitempty"`

	ExcludeField string   `json:"exclude_field,omitempty"`
	ExcludeTerms []string `json:"exclude_terms,omitempty"`

	Schema SchemaSpec `json:"schema"`

	schema *models.Schema
}

type SchemaSpec struct {
	Fields    []models.Field `json:"fields"`
	Key       []string       `json:"key"`
	YearField string         `json:"year_field,omitempty"`
}

// ChunkPolicy is either a fixed day count or calendar-month alignment.
type ChunkPolicy struct {
	Days  int  `json:"days,omitempty"`
	Month bool `json:"month,omitempty"`
}

// Key identifies the policy so plans can be shared across categories.
func (p ChunkPolicy) Key() string {
	if p.Month {
		return "month"
	}
	return fmt.Sprintf("days:%d", p.Days)
}

// RecordSchema returns the compiled dataset schema. It is nil until the
// catalog has been loaded.
func (c *Category) RecordSchema() *models.Schema {
	return c.schema
}

// Compile builds the record schema and applies defaults. LoadCatalog calls it
// for every entry; tests building categories by hand call it directly.
func (c *Category) Compile() error {
	if c.Format == "" {
		c.Format = "json"
	}
	if c.MaxPages == 0 {
		c.MaxPages = 1000
	}
	if c.ServiceKeyParam == "" {
		c.ServiceKeyParam = "serviceKey"
	}
	if c.PageParam == "" {
		c.PageParam = "pageNo"
	}
	if c.RowsParam == "" {
		c.RowsParam = "numOfRows"
	}
	if c.DateLayout == "" {
		c.DateLayout = models.CompactLayout
	}
	if c.SuccessCode == "" {
		c.SuccessCode = "00"
	}
	if c.NoDataCodes == nil {
		c.NoDataCodes = []string{"03"}
	}
	if c.Dataset == "" {
		c.Dataset = "{category}.csv"
	}

	if c.Format != "json" && c.Format != "xml" {
		return fmt.Errorf("category %s: format %q is not supported", c.Name, c.Format)
	}
	if c.PageSize < 1 {
		return fmt.Errorf("category %s: page_size must be at least 1", c.Name)
	}
	if !c.Chunk.Month && c.Chunk.Days < 1 {
		return fmt.Errorf("category %s: chunk needs days >= 1 or month", c.Name)
	}
	if len(c.Keywords) > 0 && c.KeywordParam == "" {
		return fmt.Errorf("category %s: keywords require keyword_param", c.Name)
	}
	if c.SplitByYear && !strings.Contains(c.Dataset, "{year}") {
		return fmt.Errorf("category %s: split_by_year requires {year} in dataset", c.Name)
	}

	s, err := models.NewSchema(c.Schema.Fields, c.Schema.Key, c.Schema.YearField)
	if err != nil {
		return fmt.Errorf("category %s: %w", c.Name, err)
	}
	if c.SplitByYear && !s.HasYearField() {
		return fmt.Errorf("category %s: split_by_year requires schema.year_field", c.Name)
	}
	if c.ExcludeField != "" {
		found := false
		for _, col := range s.Columns() {
			if col == c.ExcludeField {
				found = true
				break
			}
		}
		if !found {
			return fmt.Errorf("category %s: exclude_field %q is not declared", c.Name, c.ExcludeField)
		}
	}
	c.schema = s
	return nil
}

// DatasetName renders the dataset file name. year is ignored unless the
// category splits its dataset by year.
func (c *Category) DatasetName(year string) string {
	name := strings.ReplaceAll(c.Dataset, "{category}", c.Name)
	if c.SplitByYear {
		if year == "" {
			year = "unknown"
		}
		name = strings.ReplaceAll(name, "{year}", year)
	}
	return name
}
