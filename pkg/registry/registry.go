// pkg/registry/registry.go
package registry

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"procurement-harvester/internal/common/validation"
)

var catalogSchema = validation.MustCompile(`{
  "type": "object",
  "required": ["categories"],
  "properties": {
    "version": {"type": "string"},
    "categories": {
      "type": "array",
      "minItems": 1,
      "items": {
        "type": "object",
        "required": ["name", "endpoint", "page_size", "begin_param", "end_param", "chunk", "schema"],
        "properties": {
          "name": {"type": "string", "minLength": 1},
          "endpoint": {"type": "string", "pattern": "^https?://"},
          "format": {"enum": ["json", "xml"]},
          "page_size": {"type": "integer", "minimum": 1},
          "keywords": {"type": "array", "items": {"type": "string"}},
          "static_params": {"type": "object", "additionalProperties": {"type": "string"}},
          "chunk": {"type": "object"},
          "schema": {
            "type": "object",
            "required": ["fields", "key"],
            "properties": {
              "fields": {"type": "array", "minItems": 1},
              "key": {"type": "array", "minItems": 1, "items": {"type": "string"}}
            }
          }
        }
      }
    }
  }
}`)

// LoadCatalog reads, validates and compiles a category catalog.
func LoadCatalog(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return ParseCatalog(data)
}

func ParseCatalog(data []byte) (*Catalog, error) {
	res, err := catalogSchema.ValidateBytes(data)
	if err != nil {
		return nil, fmt.Errorf("catalog: %w", err)
	}
	if !res.Valid {
		return nil, fmt.Errorf("catalog: %s", res.Summary(5))
	}

	var cat Catalog
	if err := json.Unmarshal(data, &cat); err != nil {
		return nil, fmt.Errorf("catalog: %w", err)
	}

	seen := make(map[string]bool, len(cat.Categories))
	for _, c := range cat.Categories {
		if seen[c.Name] {
			return nil, fmt.Errorf("catalog: duplicate category %q", c.Name)
		}
		seen[c.Name] = true
		if err := c.Compile(); err != nil {
			return nil, fmt.Errorf("catalog: %w", err)
		}
	}
	return &cat, nil
}

// Select returns the named categories in catalog order, or all of them when
// names is empty. Unknown names are an error.
func (c *Catalog) Select(names []string) ([]*Category, error) {
	if len(names) == 0 {
		return c.Categories, nil
	}

	want := make(map[string]bool, len(names))
	for _, n := range names {
		want[strings.TrimSpace(n)] = true
	}

	var out []*Category
	for _, cat := range c.Categories {
		if want[cat.Name] {
			out = append(out, cat)
			delete(want, cat.Name)
		}
	}
	if len(want) > 0 {
		missing := make([]string, 0, len(want))
		for n := range want {
			missing = append(missing, n)
		}
		return nil, fmt.Errorf("unknown categories: %s", strings.Join(missing, ", "))
	}
	return out, nil
}
