// internal/workers/storage/merge-dataset/handler.go
package mergedataset

import (
	"context"
	"fmt"
	"sort"

	"procurement-harvester/internal/common/blobstore"
	apperrors "procurement-harvester/internal/common/errors"
	"procurement-harvester/internal/common/lock"
	"procurement-harvester/internal/common/logger"
	"procurement-harvester/internal/common/metrics"
	"procurement-harvester/internal/models"
	"procurement-harvester/pkg/registry"
)

const TaskType = "merge-dataset"

type Handler struct {
	config     *Config
	store      blobstore.Store
	locker     lock.Locker
	errHandler *apperrors.ErrorHandler
	logger     logger.Logger
}

func NewHandler(config *Config, store blobstore.Store, locker lock.Locker, log logger.Logger) *Handler {
	log = log.WithFields(map[string]interface{}{"taskType": TaskType})
	return &Handler{
		config:     config,
		store:      store,
		locker:     locker,
		errHandler: apperrors.NewErrorHandler(log),
		logger:     log,
	}
}

// Execute merges input.Records into the category's dataset files under the
// category lock. Datasets whose read or write fails are skipped and left as
// they were; the error then reports the first such failure.
func (h *Handler) Execute(ctx context.Context, input *Input) (*Output, error) {
	return h.execute(ctx, input)
}

func (h *Handler) execute(ctx context.Context, input *Input) (*Output, error) {
	cat := input.Category
	out := &Output{Category: cat.Name}

	if len(input.Records) == 0 {
		h.logger.Info("no new records, dataset left untouched", map[string]interface{}{"category": cat.Name})
		metrics.MergesCompleted.WithLabelValues(cat.Name, "noop").Inc()
		return out, nil
	}
	if err := ctx.Err(); err != nil {
		return out, err
	}

	lease, err := h.locker.Acquire(ctx, cat.Name)
	if err != nil {
		return out, err
	}
	defer func() {
		if err := lease.Release(context.WithoutCancel(ctx)); err != nil {
			h.logger.Warn("failed to release dataset lock", map[string]interface{}{
				"category": cat.Name,
				"error":    err.Error(),
			})
		}
	}()

	groups, names := groupByDataset(cat, input.Records)

	var firstErr error
	for _, name := range names {
		res, err := h.mergeOne(ctx, cat, name, groups[name])
		if err != nil {
			res.Skipped = true
			res.Error = err.Error()
			h.errHandler.Handle("dataset merge skipped", err, map[string]interface{}{
				"category": cat.Name,
				"dataset":  name,
			})
			metrics.MergesCompleted.WithLabelValues(cat.Name, "failed").Inc()
			if firstErr == nil {
				firstErr = err
			}
		}
		out.Datasets = append(out.Datasets, res)
	}

	if cat.SplitByYear {
		out.Promoted = h.pruneUnknown(ctx, cat, groups, out)
	}
	return out, firstErr
}

// pruneUnknown drops from the unknown-year dataset every record that this run
// wrote to a dated dataset, so a record whose year was filled in later lives
// in one file only. Failures leave the unknown dataset as it was.
func (h *Handler) pruneUnknown(ctx context.Context, cat *registry.Category, groups map[string][]models.Record, out *Output) int {
	unknown := cat.DatasetName("")
	dated := make(map[string]bool)
	for _, d := range out.Datasets {
		if d.Skipped || d.Name == unknown {
			continue
		}
		for _, rec := range groups[d.Name] {
			dated[rec.Key()] = true
		}
	}
	if len(dated) == 0 || ctx.Err() != nil {
		return 0
	}

	fields := map[string]interface{}{"category": cat.Name, "dataset": unknown}
	blob, err := h.store.Find(ctx, unknown)
	if err != nil || blob == nil {
		if err != nil {
			h.errHandler.Handle("unknown-year dataset not pruned", err, fields)
		}
		return 0
	}
	data, err := h.store.Download(ctx, blob.ID)
	if err != nil {
		h.errHandler.Handle("unknown-year dataset not pruned", err, fields)
		return 0
	}
	existing, err := DecodeCSV(data, cat.RecordSchema())
	if err != nil {
		h.errHandler.Handle("unknown-year dataset not pruned",
			apperrors.NewStoreDownloadError(unknown, fmt.Errorf("parse existing dataset: %w", err)), fields)
		return 0
	}

	kept := existing[:0:0]
	for _, rec := range existing {
		if !dated[rec.Key()] {
			kept = append(kept, rec)
		}
	}
	removed := len(existing) - len(kept)
	if removed == 0 {
		return 0
	}

	encoded, err := EncodeCSV(cat.RecordSchema(), kept)
	if err == nil {
		var res DatasetResult
		err = h.upload(ctx, unknown, blob, encoded, &res)
	}
	if err != nil {
		h.errHandler.Handle("unknown-year dataset not pruned", err, fields)
		return 0
	}

	for i := range out.Datasets {
		if out.Datasets[i].Name == unknown && !out.Datasets[i].Skipped {
			out.Datasets[i].Total = len(kept)
			out.Datasets[i].Records = kept
		}
	}
	metrics.DatasetRecords.WithLabelValues(unknown).Set(float64(len(kept)))
	h.logger.Info("dated records moved out of unknown-year dataset", map[string]interface{}{
		"category": cat.Name,
		"dataset":  unknown,
		"moved":    removed,
		"total":    len(kept),
	})
	return removed
}

// groupByDataset splits records by target file name, keeping arrival order
// inside each group. Names are returned sorted.
func groupByDataset(cat *registry.Category, records []models.Record) (map[string][]models.Record, []string) {
	groups := make(map[string][]models.Record)
	for _, rec := range records {
		name := cat.DatasetName(rec.Year())
		groups[name] = append(groups[name], rec)
	}
	names := make([]string, 0, len(groups))
	for n := range groups {
		names = append(names, n)
	}
	sort.Strings(names)
	return groups, names
}

func (h *Handler) mergeOne(ctx context.Context, cat *registry.Category, name string, incoming []models.Record) (DatasetResult, error) {
	res := DatasetResult{Name: name, Incoming: len(incoming)}
	if err := ctx.Err(); err != nil {
		return res, err
	}

	blob, err := h.store.Find(ctx, name)
	if err != nil {
		return res, err
	}

	var existing []models.Record
	if blob != nil {
		res.BlobID = blob.ID
		data, err := h.store.Download(ctx, blob.ID)
		if err != nil {
			return res, err
		}
		existing, err = DecodeCSV(data, cat.RecordSchema())
		if err != nil {
			return res, apperrors.NewStoreDownloadError(name, fmt.Errorf("parse existing dataset: %w", err))
		}
	}
	res.Existing = len(existing)

	merged := Dedupe(append(existing, incoming...))
	data, err := EncodeCSV(cat.RecordSchema(), merged)
	if err != nil {
		return res, apperrors.NewStoreSerializeError(name, err)
	}

	if err := h.upload(ctx, name, blob, data, &res); err != nil {
		return res, err
	}

	res.Total = len(merged)
	res.Records = merged
	res.Upserted = Dedupe(incoming)
	outcome := "updated"
	if res.Created {
		outcome = "created"
	}
	metrics.MergesCompleted.WithLabelValues(cat.Name, outcome).Inc()
	metrics.DatasetRecords.WithLabelValues(name).Set(float64(res.Total))

	h.logger.Info("dataset merged", map[string]interface{}{
		"category": cat.Name,
		"dataset":  name,
		"existing": res.Existing,
		"incoming": res.Incoming,
		"total":    res.Total,
		"added":    res.Added(),
		"created":  res.Created,
	})
	return res, nil
}

func (h *Handler) upload(ctx context.Context, name string, blob *blobstore.Blob, data []byte, res *DatasetResult) error {
	return h.config.Upload.Do(ctx, h.logger, "upload "+name, func(ctx context.Context) error {
		if blob != nil {
			return h.store.Update(ctx, blob.ID, data)
		}
		created, err := h.store.Create(ctx, name, data)
		if err != nil {
			return err
		}
		res.BlobID = created.ID
		res.Created = true
		return nil
	})
}
