// internal/workers/harvest/run-harvest/models.go
package runharvest

import (
	"context"
	"time"

	"procurement-harvester/internal/common/observability"
	indexdataset "procurement-harvester/internal/workers/data-access/index-dataset"
	recordrun "procurement-harvester/internal/workers/data-access/record-run"
	notifyrun "procurement-harvester/internal/workers/communication/notify-run"
	publishdatasetevent "procurement-harvester/internal/workers/communication/publish-dataset-event"
	collectcategory "procurement-harvester/internal/workers/harvest/collect-category"
	schedulecategories "procurement-harvester/internal/workers/harvest/schedule-categories"
	mergedataset "procurement-harvester/internal/workers/storage/merge-dataset"
	"procurement-harvester/pkg/registry"
)

const (
	StatusOK      = "ok"
	StatusPartial = "partial" // records merged, some pairs abandoned
	StatusEmpty   = "empty"
	StatusFailed  = "failed"
)

type Input struct {
	Start      time.Time
	End        time.Time
	Categories []string // empty selects the whole catalog
	Keywords   []string // overrides every category's keywords when non-nil
}

type Output struct {
	RunID      string           `json:"runId"`
	Start      time.Time        `json:"start"`
	End        time.Time        `json:"end"`
	Duration   time.Duration    `json:"duration"`
	Categories []CategoryResult `json:"categories"` // catalog order
	Completed  []string         `json:"completed"`  // completion order
}

type CategoryResult struct {
	Name     string                       `json:"name"`
	Status   string                       `json:"status"`
	Ranges   int                          `json:"ranges"`
	Fetched  int                          `json:"fetched"`
	Pages    int                          `json:"pages"`
	Excluded int                          `json:"excluded"`
	Failures []collectcategory.Failure    `json:"failures,omitempty"`
	Datasets []mergedataset.DatasetResult `json:"datasets,omitempty"`
	Error    string                       `json:"error,omitempty"`
}

// Added sums the growth of every written dataset.
func (c CategoryResult) Added() int {
	n := 0
	for _, d := range c.Datasets {
		if !d.Skipped {
			n += d.Added()
		}
	}
	return n
}

// Total sums the size of every written dataset.
func (c CategoryResult) Total() int {
	n := 0
	for _, d := range c.Datasets {
		if !d.Skipped {
			n += d.Total
		}
	}
	return n
}

// Failed reports whether any category failed entirely or lost its merge.
func (o *Output) Failed() bool {
	for _, c := range o.Categories {
		if c.Status == StatusFailed {
			return true
		}
	}
	return false
}

// Summary converts the output into the notification report.
func (o *Output) Summary() *notifyrun.Input {
	in := &notifyrun.Input{RunID: o.RunID, Start: o.Start, End: o.End, Duration: o.Duration}
	for _, c := range o.Categories {
		in.Categories = append(in.Categories, notifyrun.CategorySummary{
			Name:     c.Name,
			Status:   c.Status,
			Fetched:  c.Fetched,
			Added:    c.Added(),
			Total:    c.Total(),
			Failures: len(c.Failures),
			Error:    c.Error,
		})
	}
	return in
}

// FetcherFactory builds the page fetcher of one category. Each category gets its own
// so request pacing is per category.
type FetcherFactory func(cat *registry.Category) collectcategory.Fetcher

type Merger interface {
	Execute(ctx context.Context, input *mergedataset.Input) (*mergedataset.Output, error)
}

type Ledger interface {
	Execute(ctx context.Context, input *recordrun.Input) (*recordrun.Output, error)
}

type Indexer interface {
	Execute(ctx context.Context, input *indexdataset.Input) (*indexdataset.Output, error)
}

type EventPublisher interface {
	Execute(ctx context.Context, input *publishdatasetevent.Input) (*publishdatasetevent.Output, error)
}

type Notifier interface {
	Execute(ctx context.Context, input *notifyrun.Input) (*notifyrun.Output, error)
}

// Dependencies wires the pipeline. Ledger, Indexer, Events, Notifier and
// Observability are optional.
type Dependencies struct {
	Catalog       *registry.Catalog
	NewFetcher    FetcherFactory
	Scheduler     *schedulecategories.Scheduler
	Merger        Merger
	Ledger        Ledger
	Indexer       Indexer
	Events        EventPublisher
	Notifier      Notifier
	Observability *observability.Observability
}
