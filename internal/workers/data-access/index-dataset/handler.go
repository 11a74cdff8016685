// internal/workers/data-access/index-dataset/handler.go
package indexdataset

import (
	"bytes"
	"context"
	"crypto/sha1"
	"encoding/hex"
	"encoding/json"
	"fmt"

	apperrors "procurement-harvester/internal/common/errors"
	"procurement-harvester/internal/common/logger"
	"procurement-harvester/internal/common/metrics"
	"procurement-harvester/internal/models"

	"github.com/elastic/go-elasticsearch/v8"
)

const TaskType = "index-dataset"

type Handler struct {
	config *Config
	client *elasticsearch.Client
	logger logger.Logger
}

func NewHandler(config *Config, client *elasticsearch.Client, log logger.Logger) *Handler {
	return &Handler{
		config: config,
		client: client,
		logger: log.WithFields(map[string]interface{}{"taskType": TaskType}),
	}
}

func (h *Handler) Execute(ctx context.Context, input *Input) (*Output, error) {
	out, err := h.execute(ctx, input)
	if err != nil {
		metrics.SinkFailures.WithLabelValues(TaskType).Inc()
		return out, apperrors.NewSinkError(TaskType, err)
	}
	return out, nil
}

func (h *Handler) execute(ctx context.Context, input *Input) (*Output, error) {
	out := &Output{}
	if input == nil || len(input.Records) == 0 {
		return out, nil
	}

	size := h.config.BatchSize
	if size < 1 {
		size = 500
	}

	for start := 0; start < len(input.Records); start += size {
		end := start + size
		if end > len(input.Records) {
			end = len(input.Records)
		}

		body, err := h.buildBulkBody(input, input.Records[start:end])
		if err != nil {
			return out, err
		}
		indexed, failed, err := h.sendBulk(ctx, body)
		if err != nil {
			return out, err
		}
		out.Batches++
		out.Indexed += indexed
		out.Failed += failed
	}

	h.logger.Info("dataset indexed", map[string]interface{}{
		"category": input.Category,
		"dataset":  input.Dataset,
		"indexed":  out.Indexed,
		"failed":   out.Failed,
	})

	if out.Failed > 0 {
		return out, fmt.Errorf("%d of %d documents rejected", out.Failed, len(input.Records))
	}
	return out, nil
}

func (h *Handler) buildBulkBody(input *Input, records []models.Record) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)

	for _, rec := range records {
		meta := map[string]interface{}{
			"index": map[string]interface{}{"_index": h.config.Index, "_id": DocumentID(input.Dataset, rec)},
		}
		if err := enc.Encode(meta); err != nil {
			return nil, err
		}
		if err := enc.Encode(document(input, rec)); err != nil {
			return nil, err
		}
	}
	return buf.Bytes(), nil
}

func (h *Handler) sendBulk(ctx context.Context, body []byte) (int, int, error) {
	ctx, cancel := context.WithTimeout(ctx, h.config.Timeout)
	defer cancel()

	res, err := h.client.Bulk(bytes.NewReader(body), h.client.Bulk.WithContext(ctx))
	if err != nil {
		return 0, 0, fmt.Errorf("bulk request: %w", err)
	}
	defer res.Body.Close()

	if res.IsError() {
		return 0, 0, fmt.Errorf("bulk request failed: %s", res.String())
	}

	var br bulkResponse
	if err := json.NewDecoder(res.Body).Decode(&br); err != nil {
		return 0, 0, fmt.Errorf("decode bulk response: %w", err)
	}

	indexed, failed := 0, 0
	for _, item := range br.Items {
		for _, d := range item {
			if d.Status > 299 {
				failed++
				if d.Error != nil {
					h.logger.Warn("document rejected", map[string]interface{}{
						"id":     d.ID,
						"type":   d.Error.Type,
						"reason": d.Error.Reason,
					})
				}
			} else {
				indexed++
			}
		}
	}
	return indexed, failed, nil
}

// DocumentID is stable per dataset and business key, so re-indexing replaces documents.
func DocumentID(dataset string, rec models.Record) string {
	sum := sha1.Sum([]byte(dataset + "\x1f" + rec.Key()))
	return hex.EncodeToString(sum[:])
}

func document(input *Input, rec models.Record) map[string]interface{} {
	cols := rec.Schema().Columns()
	values := rec.Values()
	doc := make(map[string]interface{}, len(cols)+2)
	for i, c := range cols {
		doc[c] = values[i]
	}
	doc["harvest_category"] = input.Category
	doc["harvest_dataset"] = input.Dataset
	return doc
}
