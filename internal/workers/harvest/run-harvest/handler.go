// internal/workers/harvest/run-harvest/handler.go
package runharvest

import (
	"context"
	"fmt"
	"time"

	apperrors "procurement-harvester/internal/common/errors"
	"procurement-harvester/internal/common/logger"
	"procurement-harvester/internal/common/metrics"
	"procurement-harvester/internal/models"
	indexdataset "procurement-harvester/internal/workers/data-access/index-dataset"
	recordrun "procurement-harvester/internal/workers/data-access/record-run"
	publishdatasetevent "procurement-harvester/internal/workers/communication/publish-dataset-event"
	collectcategory "procurement-harvester/internal/workers/harvest/collect-category"
	partitionrange "procurement-harvester/internal/workers/harvest/partition-range"
	schedulecategories "procurement-harvester/internal/workers/harvest/schedule-categories"
	mergedataset "procurement-harvester/internal/workers/storage/merge-dataset"
	"procurement-harvester/pkg/registry"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

const TaskType = "run-harvest"

type Handler struct {
	deps        Dependencies
	partitioner *partitionrange.Handler
	errHandler  *apperrors.ErrorHandler
	logger      logger.Logger
	newRunID    func() string
}

func NewHandler(deps Dependencies, log logger.Logger) *Handler {
	log = log.WithFields(map[string]interface{}{"taskType": TaskType})
	return &Handler{
		deps:        deps,
		partitioner: partitionrange.NewHandler(log),
		errHandler:  apperrors.NewErrorHandler(log),
		logger:      log,
		newRunID:    uuid.NewString,
	}
}

// Execute runs every selected category through fetch and merge. Category
// failures are reported in Output, not as an error; the error is non-nil only
// for usage errors and for a run cut short by ctx.
func (h *Handler) Execute(ctx context.Context, input *Input) (*Output, error) {
	return h.execute(ctx, input)
}

func (h *Handler) execute(ctx context.Context, input *Input) (*Output, error) {
	start, end := models.Day(input.Start), models.Day(input.End)
	if start.After(end) {
		return nil, apperrors.NewUsageError(fmt.Sprintf("start %s is after end %s",
			start.Format(models.CompactLayout), end.Format(models.CompactLayout)))
	}

	cats, err := h.deps.Catalog.Select(input.Categories)
	if err != nil {
		return nil, apperrors.NewUsageError(err.Error())
	}

	plans, err := h.plan(ctx, start, end, cats)
	if err != nil {
		return nil, apperrors.NewUsageError(err.Error())
	}

	out := &Output{RunID: h.newRunID(), Start: start, End: end}
	log := h.logger.WithFields(map[string]interface{}{"runId": out.RunID})
	began := time.Now()

	ctx, span := h.deps.Observability.Tracer().Start(ctx, "run-harvest", trace.WithAttributes(
		attribute.String("harvest.run_id", out.RunID),
		attribute.String("harvest.range", models.DateRange{Begin: start, End: end}.String()),
		attribute.Int("harvest.categories", len(cats)),
	))
	defer span.End()

	log.Info("harvest started", map[string]interface{}{
		"start":      start.Format(models.CompactLayout),
		"end":        end.Format(models.CompactLayout),
		"categories": len(cats),
		"workers":    h.deps.Scheduler.Limit(),
	})

	byName := make(map[string]*registry.Category, len(cats))
	names := make([]string, 0, len(cats))
	for _, c := range cats {
		byName[c.Name] = c
		names = append(names, c.Name)
	}

	r := &run{id: out.RunID, start: start, end: end, keywords: input.Keywords, log: log}
	res := schedulecategories.RunAll(ctx, h.deps.Scheduler, names, func(ctx context.Context, name string) (*CategoryResult, error) {
		cat := byName[name]
		return h.runCategory(ctx, r, cat, plans[cat.Chunk.Key()])
	})

	out.Completed = res.Order
	for _, name := range names {
		if cr, ok := res.Values[name]; ok {
			out.Categories = append(out.Categories, *cr)
			continue
		}
		out.Categories = append(out.Categories, CategoryResult{
			Name:   name,
			Status: StatusFailed,
			Error:  res.Failed[name].Error(),
		})
	}
	out.Duration = time.Since(began)

	log.Info("harvest finished", map[string]interface{}{
		"duration": out.Duration.String(),
		"failed":   out.Failed(),
	})

	if err := ctx.Err(); err != nil {
		return out, err
	}

	h.notify(ctx, out)
	return out, nil
}

// plan partitions the run range once per distinct chunk policy.
func (h *Handler) plan(ctx context.Context, start, end time.Time, cats []*registry.Category) (map[string][]models.DateRange, error) {
	plans := make(map[string][]models.DateRange)
	for _, c := range cats {
		key := c.Chunk.Key()
		if _, ok := plans[key]; ok {
			continue
		}
		p, err := h.partitioner.Execute(ctx, &partitionrange.Input{Start: start, End: end, Policy: c.Chunk})
		if err != nil {
			return nil, fmt.Errorf("category %s: %w", c.Name, err)
		}
		plans[key] = p.Ranges
	}
	return plans, nil
}

// run carries what every category task of one run shares.
type run struct {
	id         string
	start, end time.Time
	keywords   []string
	log        logger.Logger
}

func (h *Handler) runCategory(ctx context.Context, r *run, cat *registry.Category, ranges []models.DateRange) (*CategoryResult, error) {
	began := time.Now()
	log := r.log.WithFields(map[string]interface{}{"category": cat.Name})

	collector := collectcategory.NewHandler(h.deps.NewFetcher(cat), log)
	col, err := collector.Execute(ctx, &collectcategory.Input{Category: cat, Keywords: r.keywords, Ranges: ranges})
	if err != nil {
		return nil, err
	}

	result := &CategoryResult{
		Name:     cat.Name,
		Ranges:   len(ranges),
		Fetched:  len(col.Records),
		Pages:    col.Pages,
		Excluded: col.Excluded,
		Failures: col.Failures,
	}

	switch {
	case col.Failed():
		result.Status = StatusFailed
		result.Error = fmt.Sprintf("all %d fetches failed, last: %s", len(col.Failures), col.Failures[len(col.Failures)-1].Code)
	case len(col.Records) == 0:
		result.Status = StatusEmpty
	default:
		merged, err := h.deps.Merger.Execute(ctx, &mergedataset.Input{Category: cat, Records: col.Records})
		if merged != nil {
			result.Datasets = merged.Datasets
		}
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			result.Status = StatusFailed
			result.Error = apperrors.Normalize(err).Message
		} else if len(col.Failures) > 0 {
			result.Status = StatusPartial
		} else {
			result.Status = StatusOK
		}
		if merged != nil {
			h.afterMerge(ctx, r.id, cat, merged)
		}
	}

	h.recordLedger(ctx, r, result)

	elapsed := time.Since(began)
	metrics.CategoryDuration.WithLabelValues(cat.Name, result.Status).Observe(elapsed.Seconds())
	h.deps.Observability.RecordCategory(ctx, cat.Name, result.Status, elapsed)
	h.deps.Observability.RecordMerged(ctx, cat.Name, result.Added())

	log.Info("category finished", map[string]interface{}{
		"status":   result.Status,
		"fetched":  result.Fetched,
		"added":    result.Added(),
		"failures": len(result.Failures),
		"duration": elapsed.String(),
	})
	return result, nil
}

// afterMerge mirrors and announces every dataset that was written. Sink
// failures are logged only.
func (h *Handler) afterMerge(ctx context.Context, runID string, cat *registry.Category, merged *mergedataset.Output) {
	for _, d := range merged.Written() {
		if h.deps.Indexer != nil {
			if _, err := h.deps.Indexer.Execute(ctx, &indexdataset.Input{
				Category: cat.Name, Dataset: d.Name, Records: d.Upserted,
			}); err != nil {
				h.errHandler.Handle("search mirror not updated", err, map[string]interface{}{"dataset": d.Name})
			}
		}
		if h.deps.Events != nil {
			if _, err := h.deps.Events.Execute(ctx, &publishdatasetevent.Input{
				RunID: runID, Category: cat.Name, Dataset: d.Name, BlobID: d.BlobID,
				Added: d.Added(), Total: d.Total, Created: d.Created,
			}); err != nil {
				h.errHandler.Handle("dataset event not published", err, map[string]interface{}{"dataset": d.Name})
			}
		}
	}
}

func (h *Handler) recordLedger(ctx context.Context, r *run, res *CategoryResult) {
	if h.deps.Ledger == nil {
		return
	}
	in := &recordrun.Input{
		RunID:    r.id,
		Category: res.Name,
		Start:    r.start,
		End:      r.end,
		Fetched:  res.Fetched,
		Failures: len(res.Failures),
		Status:   res.Status,
	}
	for _, d := range res.Datasets {
		if !d.Skipped {
			in.Datasets = append(in.Datasets, recordrun.DatasetRow{Name: d.Name, Added: d.Added(), Total: d.Total})
		}
	}
	if _, err := h.deps.Ledger.Execute(ctx, in); err != nil {
		h.errHandler.Handle("run ledger not updated", err, map[string]interface{}{"category": res.Name})
	}
}

func (h *Handler) notify(ctx context.Context, out *Output) {
	if h.deps.Notifier == nil {
		return
	}
	if _, err := h.deps.Notifier.Execute(ctx, out.Summary()); err != nil {
		h.errHandler.Handle("run notification not sent", err, map[string]interface{}{"runId": out.RunID})
	}
}
