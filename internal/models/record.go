package models

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"
)

type FieldType string

const (
	FieldString  FieldType = "string"
	FieldInteger FieldType = "integer"
	FieldDate    FieldType = "date"
)

// keySeparator joins business key parts; it cannot appear in API text values.
const keySeparator = "\x1f"

// Field declares one dataset column and where its value comes from in a raw API item.
type Field struct {
	Name     string    `json:"name"`
	Sources  []string  `json:"sources,omitempty"`   // raw field names tried in order; defaults to Name
	Type     FieldType `json:"type,omitempty"`      // defaults to string
	ListPart int       `json:"list_part,omitempty"` // 1-based part of a "[a^b^c]" compound value
}

// Schema is the ordered column set and business key of one category's dataset.
type Schema struct {
	fields    []Field
	key       []int
	yearField int
	index     map[string]int
}

// NewSchema validates the declaration and builds lookup tables. yearField may be empty.
func NewSchema(fields []Field, key []string, yearField string) (*Schema, error) {
	if len(fields) == 0 {
		return nil, fmt.Errorf("schema has no fields")
	}
	if len(key) == 0 {
		return nil, fmt.Errorf("schema has no business key")
	}

	s := &Schema{
		fields:    make([]Field, len(fields)),
		index:     make(map[string]int, len(fields)),
		yearField: -1,
	}
	for i, f := range fields {
		if f.Name == "" {
			return nil, fmt.Errorf("field %d has no name", i)
		}
		if _, dup := s.index[f.Name]; dup {
			return nil, fmt.Errorf("duplicate field %q", f.Name)
		}
		switch f.Type {
		case "":
			f.Type = FieldString
		case FieldString, FieldInteger, FieldDate:
		default:
			return nil, fmt.Errorf("field %q: unknown type %q", f.Name, f.Type)
		}
		if len(f.Sources) == 0 {
			f.Sources = []string{f.Name}
		}
		if f.ListPart < 0 {
			return nil, fmt.Errorf("field %q: list_part must be positive", f.Name)
		}
		s.fields[i] = f
		s.index[f.Name] = i
	}

	for _, k := range key {
		i, ok := s.index[k]
		if !ok {
			return nil, fmt.Errorf("business key field %q is not declared", k)
		}
		s.key = append(s.key, i)
	}

	if yearField != "" {
		i, ok := s.index[yearField]
		if !ok {
			return nil, fmt.Errorf("year field %q is not declared", yearField)
		}
		s.yearField = i
	}
	return s, nil
}

// Columns returns the dataset header in column order.
func (s *Schema) Columns() []string {
	out := make([]string, len(s.fields))
	for i, f := range s.fields {
		out[i] = f.Name
	}
	return out
}

func (s *Schema) KeyFields() []string {
	out := make([]string, len(s.key))
	for i, k := range s.key {
		out[i] = s.fields[k].Name
	}
	return out
}

func (s *Schema) HasYearField() bool {
	return s.yearField >= 0
}

// Map builds a Record from a raw API item. Missing sources yield empty values;
// values that do not parse as the declared type are kept verbatim.
func (s *Schema) Map(raw map[string]interface{}) Record {
	values := make([]string, len(s.fields))
	for i, f := range s.fields {
		var v string
		for _, src := range f.Sources {
			if rv, ok := raw[src]; ok {
				if v = scalarString(rv); v != "" {
					break
				}
			}
		}
		if f.ListPart > 0 {
			v = listPart(v, f.ListPart)
		}
		values[i] = normalize(f.Type, v)
	}
	return Record{schema: s, values: values}
}

// FromRow rebuilds a Record from a persisted CSV row using its header. Values
// are normalized like fresh API values so keys compare equal across both.
// Columns unknown to the schema are ignored; columns absent from the header are empty.
func (s *Schema) FromRow(header, row []string) Record {
	values := make([]string, len(s.fields))
	for i, name := range header {
		if i >= len(row) {
			break
		}
		if j, ok := s.index[strings.TrimSpace(name)]; ok {
			values[j] = normalize(s.fields[j].Type, strings.TrimSpace(row[i]))
		}
	}
	return Record{schema: s, values: values}
}

// Record is an immutable row of a category dataset.
type Record struct {
	schema *Schema
	values []string
}

func (r Record) Schema() *Schema { return r.schema }

// Get returns the canonical string value of a column, or "" when undeclared.
func (r Record) Get(name string) string {
	if r.schema == nil {
		return ""
	}
	i, ok := r.schema.index[name]
	if !ok {
		return ""
	}
	return r.values[i]
}

func (r Record) Int(name string) (int64, bool) {
	v, err := strconv.ParseInt(r.Get(name), 10, 64)
	return v, err == nil
}

func (r Record) Date(name string) (time.Time, bool) {
	t, err := time.Parse(DateLayout, r.Get(name))
	return t, err == nil
}

// Values returns a copy of the values in column order.
func (r Record) Values() []string {
	out := make([]string, len(r.values))
	copy(out, r.values)
	return out
}

// Key is the business key used for deduplication.
func (r Record) Key() string {
	if r.schema == nil {
		return ""
	}
	parts := make([]string, len(r.schema.key))
	for i, k := range r.schema.key {
		parts[i] = r.values[k]
	}
	return strings.Join(parts, keySeparator)
}

// Year returns the four-digit year of the schema's year field, or "" when unknown.
func (r Record) Year() string {
	if r.schema == nil || r.schema.yearField < 0 {
		return ""
	}
	v := r.values[r.schema.yearField]
	if len(v) >= 4 {
		if _, err := strconv.Atoi(v[:4]); err == nil {
			return v[:4]
		}
	}
	return ""
}

func scalarString(v interface{}) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(t)
	case json.Number:
		return t.String()
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(t)
	case int:
		return strconv.Itoa(t)
	case int64:
		return strconv.FormatInt(t, 10)
	default:
		return strings.TrimSpace(fmt.Sprint(t))
	}
}

// listPart extracts the n-th '^'-separated part of the first bracketed group,
// e.g. listPart("[1^조달청^1230000],[2^...]", 2) == "조달청". Values with too
// few parts are returned unchanged.
func listPart(v string, n int) string {
	if v == "" {
		return ""
	}
	first := v
	if end := strings.Index(first, "]"); end >= 0 {
		first = first[:end]
	}
	first = strings.TrimLeft(first, "[")
	parts := strings.Split(first, "^")
	if n > len(parts) {
		return v
	}
	return strings.TrimSpace(parts[n-1])
}

func normalize(t FieldType, v string) string {
	if v == "" {
		return ""
	}
	switch t {
	case FieldInteger:
		if n, ok := NormalizeInteger(v); ok {
			return n
		}
	case FieldDate:
		if d, ok := NormalizeDate(v); ok {
			return d
		}
	}
	return v
}

// NormalizeInteger strips thousands separators and a zero fraction: "1,200.0" -> "1200".
func NormalizeInteger(v string) (string, bool) {
	s := strings.ReplaceAll(strings.TrimSpace(v), ",", "")
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		return strconv.FormatInt(n, 10), true
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || f != float64(int64(f)) {
		return "", false
	}
	return strconv.FormatInt(int64(f), 10), true
}

var dateInputLayouts = []string{
	"20060102",
	"2006-01-02",
	"2006/01/02",
	"2006.01.02",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
	"200601021504",
	"20060102150405",
}

// NormalizeDate renders any accepted date spelling as YYYY-MM-DD.
func NormalizeDate(v string) (string, bool) {
	s := strings.TrimSpace(v)
	for _, layout := range dateInputLayouts {
		if len(layout) != len(s) {
			continue
		}
		if t, err := time.Parse(layout, s); err == nil {
			return t.Format(DateLayout), true
		}
	}
	return "", false
}
