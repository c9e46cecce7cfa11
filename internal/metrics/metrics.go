// Package metrics defines the Prometheus instruments of the statement pipeline
// and the HTTP API.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics
type Metrics struct {
	// Pipeline metrics
	DocumentsProcessed  *prometheus.CounterVec
	LoaderErrors        *prometheus.CounterVec
	ProcessingDuration  prometheus.Histogram
	TransactionsTotal   prometheus.Counter
	DefectiveRows       prometheus.Counter
	DetectionConfidence prometheus.Histogram
	ClassifierRequests  *prometheus.CounterVec

	// API metrics
	HTTPRequests *prometheus.CounterVec
	HTTPDuration *prometheus.HistogramVec
}

// New creates the metrics and registers them on reg. A nil reg uses a
// private registry.
func New(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	f := promauto.With(reg)
	return &Metrics{
		DocumentsProcessed: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ledger_documents_processed_total",
				Help: "Total number of documents processed by report status",
			},
			[]string{"status"},
		),
		LoaderErrors: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ledger_loader_errors_total",
				Help: "Total number of documents rejected by the loader by error kind",
			},
			[]string{"kind"},
		),
		ProcessingDuration: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "ledger_processing_duration_seconds",
			Help:    "Duration of document processing",
			Buckets: prometheus.DefBuckets,
		}),
		TransactionsTotal: f.NewCounter(prometheus.CounterOpts{
			Name: "ledger_transactions_extracted_total",
			Help: "Total number of transactions extracted",
		}),
		DefectiveRows: f.NewCounter(prometheus.CounterOpts{
			Name: "ledger_defective_rows_total",
			Help: "Total number of rows that failed normalization",
		}),
		DetectionConfidence: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "ledger_detection_confidence",
			Help:    "Confidence of the best layout template",
			Buckets: []float64{0.1, 0.2, 0.3, 0.4, 0.5, 0.6, 0.7, 0.8, 0.9, 1},
		}),
		ClassifierRequests: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ledger_classifier_requests_total",
				Help: "Total number of layout classifier requests by outcome",
			},
			[]string{"outcome"},
		),

		HTTPRequests: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ledger_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		HTTPDuration: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "ledger_http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
			},
			[]string{"method", "path"},
		),
	}
}
