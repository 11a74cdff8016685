// internal/workers/data-access/record-run/handler.go
package recordrun

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	apperrors "procurement-harvester/internal/common/errors"
	"procurement-harvester/internal/common/logger"
	"procurement-harvester/internal/common/metrics"
)

const TaskType = "record-run"

type Handler struct {
	config *Config
	db     *sql.DB
	logger logger.Logger
}

func NewHandler(config *Config, db *sql.DB, log logger.Logger) *Handler {
	return &Handler{
		config: config,
		db:     db,
		logger: log.WithFields(map[string]interface{}{"taskType": TaskType}),
	}
}

// EnsureSchema creates the ledger table when missing.
func (h *Handler) EnsureSchema(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, h.config.Timeout)
	defer cancel()

	_, err := h.db.ExecContext(ctx, fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			run_id      TEXT NOT NULL,
			category    TEXT NOT NULL,
			dataset     TEXT NOT NULL,
			range_start DATE NOT NULL,
			range_end   DATE NOT NULL,
			fetched     INTEGER NOT NULL,
			failures    INTEGER NOT NULL,
			added       INTEGER NOT NULL,
			total       INTEGER NOT NULL,
			status      TEXT NOT NULL,
			recorded_at TIMESTAMPTZ NOT NULL,
			PRIMARY KEY (run_id, dataset)
		)`, h.config.Table))
	if err != nil {
		return apperrors.NewSinkError(TaskType, err)
	}
	return nil
}

func (h *Handler) Execute(ctx context.Context, input *Input) (*Output, error) {
	out, err := h.execute(ctx, input)
	if err != nil {
		metrics.SinkFailures.WithLabelValues(TaskType).Inc()
		return nil, apperrors.NewSinkError(TaskType, err)
	}
	return out, nil
}

func (h *Handler) execute(ctx context.Context, input *Input) (*Output, error) {
	if input == nil {
		return nil, fmt.Errorf("input cannot be nil")
	}

	ctx, cancel := context.WithTimeout(ctx, h.config.Timeout)
	defer cancel()

	rows := input.Datasets
	if len(rows) == 0 {
		// keep a trace of categories that wrote nothing
		rows = []DatasetRow{{Name: input.Category}}
	}

	tx, err := h.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	stmt := fmt.Sprintf(`
		INSERT INTO %s (run_id, category, dataset, range_start, range_end, fetched, failures, added, total, status, recorded_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (run_id, dataset) DO UPDATE SET
			fetched = EXCLUDED.fetched,
			failures = EXCLUDED.failures,
			added = EXCLUDED.added,
			total = EXCLUDED.total,
			status = EXCLUDED.status,
			recorded_at = EXCLUDED.recorded_at`, h.config.Table)

	now := time.Now().UTC()
	for _, r := range rows {
		if _, err := tx.ExecContext(ctx, stmt,
			input.RunID, input.Category, r.Name,
			input.Start.Format("2006-01-02"), input.End.Format("2006-01-02"),
			input.Fetched, input.Failures, r.Added, r.Total, input.Status, now,
		); err != nil {
			return nil, fmt.Errorf("insert %s: %w", r.Name, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}

	h.logger.Debug("run recorded", map[string]interface{}{
		"runId":    input.RunID,
		"category": input.Category,
		"rows":     len(rows),
	})
	return &Output{Rows: len(rows)}, nil
}
