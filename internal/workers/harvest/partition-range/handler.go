// internal/workers/harvest/partition-range/handler.go
package partitionrange

import (
	"context"
	"errors"
	"fmt"
	"time"

	"procurement-harvester/internal/common/logger"
	"procurement-harvester/internal/models"
	"procurement-harvester/pkg/registry"
)

const TaskType = "partition-range"

var (
	ErrInvertedRange = errors.New("INVERTED_RANGE")
	ErrInvalidChunk  = errors.New("INVALID_CHUNK_SIZE")
)

type Handler struct {
	logger logger.Logger
}

func NewHandler(log logger.Logger) *Handler {
	return &Handler{
		logger: log.WithFields(map[string]interface{}{"taskType": TaskType}),
	}
}

func (h *Handler) Execute(ctx context.Context, input *Input) (*Output, error) {
	return h.execute(ctx, input)
}

func (h *Handler) execute(_ context.Context, input *Input) (*Output, error) {
	ranges, err := Plan(input.Start, input.End, input.Policy)
	if err != nil {
		return nil, err
	}

	h.logger.Debug("range partitioned", map[string]interface{}{
		"start":  models.Day(input.Start).Format(models.CompactLayout),
		"end":    models.Day(input.End).Format(models.CompactLayout),
		"policy": input.Policy.Key(),
		"chunks": len(ranges),
	})
	return &Output{Ranges: ranges}, nil
}

// Plan dispatches on the category chunk policy.
func Plan(start, end time.Time, policy registry.ChunkPolicy) ([]models.DateRange, error) {
	if policy.Month {
		return PartitionByMonth(start, end)
	}
	return Partition(start, end, policy.Days)
}

// Partition splits [start, end] into consecutive closed ranges of chunkDays days.
// The last range may be shorter. Only the calendar date of start and end is used.
func Partition(start, end time.Time, chunkDays int) ([]models.DateRange, error) {
	if chunkDays < 1 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidChunk, chunkDays)
	}
	begin, last := models.Day(start), models.Day(end)
	if begin.After(last) {
		return nil, fmt.Errorf("%w: %s after %s", ErrInvertedRange,
			begin.Format(models.CompactLayout), last.Format(models.CompactLayout))
	}

	var out []models.DateRange
	for cur := begin; !cur.After(last); {
		chunkEnd := cur.AddDate(0, 0, chunkDays-1)
		if chunkEnd.After(last) {
			chunkEnd = last
		}
		out = append(out, models.DateRange{Begin: cur, End: chunkEnd})
		cur = chunkEnd.AddDate(0, 0, 1)
	}
	return out, nil
}

// PartitionByMonth splits [start, end] at calendar month boundaries. The first
// range starts at start, every later one on the 1st.
func PartitionByMonth(start, end time.Time) ([]models.DateRange, error) {
	begin, last := models.Day(start), models.Day(end)
	if begin.After(last) {
		return nil, fmt.Errorf("%w: %s after %s", ErrInvertedRange,
			begin.Format(models.CompactLayout), last.Format(models.CompactLayout))
	}

	var out []models.DateRange
	for cur := begin; !cur.After(last); {
		monthEnd := time.Date(cur.Year(), cur.Month()+1, 1, 0, 0, 0, 0, time.UTC).AddDate(0, 0, -1)
		if monthEnd.After(last) {
			monthEnd = last
		}
		out = append(out, models.DateRange{Begin: cur, End: monthEnd})
		cur = monthEnd.AddDate(0, 0, 1)
	}
	return out, nil
}
