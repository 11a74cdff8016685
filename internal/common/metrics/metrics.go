// internal/common/metrics/metrics.go
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	PagesFetched = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "harvest_pages_fetched_total",
			Help: "Total number of data API pages fetched",
		},
		[]string{"category"},
	)

	RecordsFetched = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "harvest_records_fetched_total",
			Help: "Total number of records fetched from the data API",
		},
		[]string{"category"},
	)

	FetchRetries = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "harvest_fetch_retries_total",
			Help: "Total number of retried data API requests",
		},
		[]string{"category", "error_code"},
	)

	PairFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "harvest_pair_failures_total",
			Help: "Total number of abandoned (keyword, range) pairs",
		},
		[]string{"category", "error_code"},
	)

	MergesCompleted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "harvest_merges_total",
			Help: "Dataset merges by outcome",
		},
		[]string{"category", "outcome"},
	)

	DatasetRecords = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "harvest_dataset_records",
			Help: "Number of records in the dataset after the last merge",
		},
		[]string{"dataset"},
	)

	CategoryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "harvest_category_duration_seconds",
			Help:    "Duration of one category task (fetch and merge) in seconds",
			Buckets: []float64{1, 5, 15, 30, 60, 120, 300, 600, 1800},
		},
		[]string{"category", "status"},
	)

	SinkFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "harvest_sink_failures_total",
			Help: "Total number of failed ledger, index, event or notification writes",
		},
		[]string{"sink"},
	)

	CategoriesActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "harvest_categories_active",
			Help: "Number of category tasks currently running",
		},
	)
)
