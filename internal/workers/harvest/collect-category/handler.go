// internal/workers/harvest/collect-category/handler.go
package collectcategory

import (
	"context"
	"strings"

	apperrors "procurement-harvester/internal/common/errors"
	"procurement-harvester/internal/common/logger"
	"procurement-harvester/internal/common/metrics"
	"procurement-harvester/internal/models"
	fetchpages "procurement-harvester/internal/workers/harvest/fetch-pages"
)

const TaskType = "collect-category"

// Fetcher retrieves every page of one (category, keyword, range).
type Fetcher interface {
	Execute(ctx context.Context, input *fetchpages.Input) (*fetchpages.Output, error)
}

type Handler struct {
	fetcher    Fetcher
	errHandler *apperrors.ErrorHandler
	logger     logger.Logger
}

func NewHandler(fetcher Fetcher, log logger.Logger) *Handler {
	log = log.WithFields(map[string]interface{}{"taskType": TaskType})
	return &Handler{
		fetcher:    fetcher,
		errHandler: apperrors.NewErrorHandler(log),
		logger:     log,
	}
}

// Execute walks ranges in order and, inside each range, keywords in order. A
// failed pair is recorded and skipped. The returned error is non-nil only when
// ctx ends the walk early; Output then holds what was collected.
func (h *Handler) Execute(ctx context.Context, input *Input) (*Output, error) {
	return h.execute(ctx, input)
}

func (h *Handler) execute(ctx context.Context, input *Input) (*Output, error) {
	cat := input.Category
	out := &Output{Category: cat.Name}

	keywords := input.Keywords
	if keywords == nil {
		keywords = cat.Keywords
	}
	if len(keywords) == 0 {
		keywords = []string{""}
	}

	for _, r := range input.Ranges {
		for _, kw := range keywords {
			if err := ctx.Err(); err != nil {
				return out, err
			}

			res, err := h.fetcher.Execute(ctx, &fetchpages.Input{Category: cat, Keyword: kw, Range: r})
			out.Pairs++
			if res != nil {
				out.Pages += res.Pages
				h.collect(out, cat.ExcludeField, cat.ExcludeTerms, res.Records)
			}
			if err != nil {
				if ctx.Err() != nil {
					return out, ctx.Err()
				}
				h.recordFailure(out, kw, r, err, res)
			}
		}
	}

	h.logger.Info("category collected", map[string]interface{}{
		"category": cat.Name,
		"ranges":   len(input.Ranges),
		"pairs":    out.Pairs,
		"pages":    out.Pages,
		"records":  len(out.Records),
		"excluded": out.Excluded,
		"failures": len(out.Failures),
	})
	return out, nil
}

func (h *Handler) collect(out *Output, field string, terms []string, records []models.Record) {
	if field == "" || len(terms) == 0 {
		out.Records = append(out.Records, records...)
		return
	}
	for _, rec := range records {
		if containsAny(rec.Get(field), terms) {
			out.Excluded++
			continue
		}
		out.Records = append(out.Records, rec)
	}
}

func (h *Handler) recordFailure(out *Output, kw string, r models.DateRange, err error, res *fetchpages.Output) {
	partial := 0
	if res != nil {
		partial = len(res.Records)
	}
	stdErr := h.errHandler.Handle("keyword/range abandoned", err, map[string]interface{}{
		"category":       out.Category,
		"keyword":        kw,
		"range":          r.String(),
		"partialRecords": partial,
	})
	metrics.PairFailures.WithLabelValues(out.Category, string(stdErr.Code)).Inc()
	out.Failures = append(out.Failures, Failure{
		Keyword: kw,
		Range:   r,
		Code:    stdErr.Code,
		Err:     err,
	})
}

func containsAny(v string, terms []string) bool {
	if v == "" {
		return false
	}
	lv := strings.ToLower(v)
	for _, t := range terms {
		if t != "" && strings.Contains(lv, strings.ToLower(t)) {
			return true
		}
	}
	return false
}
