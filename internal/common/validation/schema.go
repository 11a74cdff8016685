package validation

import (
	"fmt"
	"strings"

	"github.com/xeipuuv/gojsonschema"
)

type ValidationResult struct {
	Valid  bool              `json:"valid"`
	Errors []ValidationError `json:"errors,omitempty"`
}

type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
}

// Summary joins the first few errors into one line for log output.
func (r *ValidationResult) Summary(max int) string {
	if r == nil || len(r.Errors) == 0 {
		return ""
	}
	parts := make([]string, 0, max)
	for i, e := range r.Errors {
		if i == max {
			parts = append(parts, fmt.Sprintf("... %d more", len(r.Errors)-max))
			break
		}
		parts = append(parts, fmt.Sprintf("%s: %s", e.Field, e.Message))
	}
	return strings.Join(parts, "; ")
}

// Schema is a compiled JSON schema, safe for concurrent use.
type Schema struct {
	compiled *gojsonschema.Schema
}

// Compile parses a JSON schema document given as text or as a Go value.
func Compile(schema interface{}) (*Schema, error) {
	var loader gojsonschema.JSONLoader
	switch s := schema.(type) {
	case string:
		loader = gojsonschema.NewStringLoader(s)
	case []byte:
		loader = gojsonschema.NewBytesLoader(s)
	default:
		loader = gojsonschema.NewGoLoader(s)
	}

	compiled, err := gojsonschema.NewSchema(loader)
	if err != nil {
		return nil, fmt.Errorf("compile schema: %w", err)
	}
	return &Schema{compiled: compiled}, nil
}

// MustCompile is Compile for package-level schemas known at build time.
func MustCompile(schema interface{}) *Schema {
	s, err := Compile(schema)
	if err != nil {
		panic(err)
	}
	return s
}

// ValidateBytes validates a raw JSON document.
func (s *Schema) ValidateBytes(doc []byte) (*ValidationResult, error) {
	return s.validate(gojsonschema.NewBytesLoader(doc))
}

// ValidateValue validates an already decoded document.
func (s *Schema) ValidateValue(doc interface{}) (*ValidationResult, error) {
	return s.validate(gojsonschema.NewGoLoader(doc))
}

func (s *Schema) validate(doc gojsonschema.JSONLoader) (*ValidationResult, error) {
	result, err := s.compiled.Validate(doc)
	if err != nil {
		return nil, fmt.Errorf("validation error: %w", err)
	}

	out := &ValidationResult{Valid: result.Valid()}
	for _, desc := range result.Errors() {
		out.Errors = append(out.Errors, ValidationError{
			Field:   desc.Field(),
			Message: desc.Description(),
			Code:    strings.ToUpper(desc.Type()),
		})
	}
	return out, nil
}
