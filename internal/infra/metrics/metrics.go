package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	HTTPRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "stock_http_requests_total",
		Help: "HTTP requests by method, route and status.",
	}, []string{"method", "route", "status"})

	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "stock_http_request_duration_seconds",
		Help:    "HTTP request latency.",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "route"})

	// result: inserted | skipped | failed | rejected
	ImportUnits = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "stock_import_units_total",
		Help: "Slab units processed by spreadsheet imports.",
	}, []string{"result"})

	ImportBatchRetries = promauto.NewCounter(prometheus.CounterOpts{
		Name: "stock_import_batch_retries_total",
		Help: "Batch insert attempts that were retried.",
	})

	// outcome: ok | partial | aborted | busy
	ImportRuns = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "stock_import_runs_total",
		Help: "Import runs by outcome.",
	}, []string{"outcome"})

	ImportDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "stock_import_duration_seconds",
		Help:    "Wall time of one import run.",
		Buckets: prometheus.ExponentialBuckets(0.1, 2, 12),
	})

	ExportRuns = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "stock_export_runs_total",
		Help: "Stock report exports by outcome.",
	}, []string{"outcome"})
)
