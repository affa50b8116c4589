package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "sourcing"

// Pipeline Prometheus metrics.
var (
	SearchPagesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "search_pages_total",
			Help:      "Total number of search API page requests",
		},
		[]string{"status"}, // "ok" / "empty" / "error"
	)

	PrescreenDecisionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "prescreen_decisions_total",
			Help:      "Prescreen decisions by reason",
		},
		[]string{"reason"},
	)

	FetchResultsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "fetch_results_total",
			Help:      "Content fetch outcomes",
		},
		[]string{"outcome"}, // "ok" / "degraded" / "failed"
	)

	ExtractionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "extractions_total",
			Help:      "Model extraction outcomes",
		},
		[]string{"provider", "status"},
	)

	ExtractionDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "extraction_duration_seconds",
			Help:      "Model extraction duration in seconds",
			Buckets:   []float64{0.5, 1, 2.5, 5, 10, 30, 60, 120, 180},
		},
		[]string{"provider"},
	)

	CandidatesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "candidates_total",
			Help:      "Candidate records admitted to round output",
		},
		[]string{"source"}, // "profile" / "web"
	)
)

var registerOnce sync.Once

// Register registers the pipeline metrics with the default registry. Safe to call more than once.
func Register() {
	registerOnce.Do(func() {
		prometheus.MustRegister(
			SearchPagesTotal,
			PrescreenDecisionsTotal,
			FetchResultsTotal,
			ExtractionsTotal,
			ExtractionDuration,
			CandidatesTotal,
		)
	})
}
