// internal/workers/communication/notify-run/handler.go
package notifyrun

import (
	"context"
	"fmt"

	apperrors "procurement-harvester/internal/common/errors"
	"procurement-harvester/internal/common/logger"
	"procurement-harvester/internal/common/metrics"
)

const TaskType = "notify-run"

type Handler struct {
	config    *Config
	publisher Publisher
	mailer    Mailer
	logger    logger.Logger
}

// NewHandler wires the channels; a nil publisher or mailer disables that channel.
func NewHandler(config *Config, publisher Publisher, mailer Mailer, log logger.Logger) *Handler {
	return &Handler{
		config:    config,
		publisher: publisher,
		mailer:    mailer,
		logger:    log.WithFields(map[string]interface{}{"taskType": TaskType}),
	}
}

func (h *Handler) Execute(ctx context.Context, input *Input) (*Output, error) {
	return h.execute(ctx, input)
}

func (h *Handler) execute(ctx context.Context, input *Input) (*Output, error) {
	if input == nil {
		return nil, fmt.Errorf("input cannot be nil")
	}

	out := &Output{Subject: Subject(input)}
	body := RenderSummary(input)
	var firstErr error

	if h.config.SNSEnabled && h.publisher != nil {
		id, err := h.publisher.PublishMessage(ctx, h.config.TopicARN, out.Subject, body)
		if err != nil {
			firstErr = h.fail("sns", err)
		} else {
			out.SNSMessageID = id
		}
	}

	if h.config.SESEnabled && h.mailer != nil {
		id, err := h.mailer.SendText(ctx, h.config.FromEmail, h.config.Recipients, out.Subject, body)
		if err != nil {
			if ferr := h.fail("ses", err); firstErr == nil {
				firstErr = ferr
			}
		} else {
			out.SESMessageID = id
		}
	}

	h.logger.Info("run notification sent", map[string]interface{}{
		"runId":   input.RunID,
		"subject": out.Subject,
		"sns":     out.SNSMessageID != "",
		"ses":     out.SESMessageID != "",
	})
	return out, firstErr
}

func (h *Handler) fail(channel string, err error) error {
	metrics.SinkFailures.WithLabelValues(TaskType + "/" + channel).Inc()
	h.logger.WithError(err).Warn("notification channel failed", map[string]interface{}{"channel": channel})
	return apperrors.NewSinkError(TaskType+"/"+channel, err)
}
