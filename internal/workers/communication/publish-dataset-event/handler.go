// internal/workers/communication/publish-dataset-event/handler.go
package publishdatasetevent

import (
	"context"
	"time"

	apperrors "procurement-harvester/internal/common/errors"
	"procurement-harvester/internal/common/logger"
	"procurement-harvester/internal/common/metrics"
)

const TaskType = "publish-dataset-event"

type Handler struct {
	publisher Publisher
	logger    logger.Logger
	now       func() time.Time
}

func NewHandler(publisher Publisher, log logger.Logger) *Handler {
	return &Handler{
		publisher: publisher,
		logger:    log.WithFields(map[string]interface{}{"taskType": TaskType}),
		now:       time.Now,
	}
}

func (h *Handler) Execute(ctx context.Context, input *Input) (*Output, error) {
	return h.execute(ctx, input)
}

func (h *Handler) execute(ctx context.Context, input *Input) (*Output, error) {
	// run id plus dataset lets consumers drop redelivered events
	messageID := input.RunID + "/" + input.Dataset

	event := Event{
		RunID:      input.RunID,
		Category:   input.Category,
		Dataset:    input.Dataset,
		BlobID:     input.BlobID,
		Added:      input.Added,
		Total:      input.Total,
		Created:    input.Created,
		OccurredAt: h.now().UTC(),
	}

	if err := h.publisher.PublishJSON(ctx, input.Category, messageID, event); err != nil {
		metrics.SinkFailures.WithLabelValues(TaskType).Inc()
		return nil, apperrors.NewSinkError(TaskType, err)
	}

	h.logger.Debug("dataset event published", map[string]interface{}{
		"dataset":   input.Dataset,
		"messageId": messageID,
	})
	return &Output{MessageID: messageID}, nil
}
