// internal/workers/storage/merge-dataset/codec.go
package mergedataset

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"io"
	"strings"

	"procurement-harvester/internal/models"

	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

// DecodeCSV parses a persisted dataset. A UTF-8 BOM is accepted and dropped;
// columns are matched by header name and every business-key column must be
// present, otherwise all rows would collapse onto an empty key.
func DecodeCSV(data []byte, schema *models.Schema) ([]models.Record, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, nil
	}

	dec := unicode.BOMOverride(unicode.UTF8.NewDecoder())
	r := csv.NewReader(transform.NewReader(bytes.NewReader(data), dec))
	r.FieldsPerRecord = -1

	header, err := r.Read()
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}
	if missing := missingColumns(header, schema.KeyFields()); len(missing) > 0 {
		return nil, fmt.Errorf("header lacks key columns %s", strings.Join(missing, ", "))
	}

	var out []models.Record
	for line := 2; ; line++ {
		row, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read row %d: %w", line, err)
		}
		out = append(out, schema.FromRow(header, row))
	}
	return out, nil
}

func missingColumns(header, want []string) []string {
	have := make(map[string]bool, len(header))
	for _, h := range header {
		have[strings.TrimSpace(h)] = true
	}
	var missing []string
	for _, w := range want {
		if !have[w] {
			missing = append(missing, w)
		}
	}
	return missing
}

// EncodeCSV writes the header and rows in schema column order, prefixed with a
// UTF-8 BOM so spreadsheet tools detect the encoding.
func EncodeCSV(schema *models.Schema, records []models.Record) ([]byte, error) {
	var buf bytes.Buffer
	tw := transform.NewWriter(&buf, unicode.UTF8BOM.NewEncoder())
	w := csv.NewWriter(tw)

	if err := w.Write(schema.Columns()); err != nil {
		return nil, err
	}
	for i, rec := range records {
		if rec.Schema() != schema {
			return nil, fmt.Errorf("record %d belongs to a different schema", i)
		}
		if err := w.Write(rec.Values()); err != nil {
			return nil, err
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, err
	}
	if err := tw.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Dedupe keeps the last occurrence of every business key. Survivors keep the
// relative order of their last occurrence.
func Dedupe(records []models.Record) []models.Record {
	last := make(map[string]int, len(records))
	for i, rec := range records {
		last[rec.Key()] = i
	}
	out := make([]models.Record, 0, len(last))
	for i, rec := range records {
		if last[rec.Key()] == i {
			out = append(out, rec)
		}
	}
	return out
}
