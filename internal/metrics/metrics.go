package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	RunsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "company_analytics_runs_total",
			Help: "Total number of analysis runs by variant and terminal status",
		},
		[]string{"variant", "status"},
	)

	RunDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "company_analytics_run_duration_seconds",
			Help:    "Wall-clock duration of analysis runs in seconds",
			Buckets: []float64{1, 5, 10, 20, 30, 60, 120, 300},
		},
		[]string{"variant"},
	)

	StageDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "company_analytics_stage_duration_seconds",
			Help:    "Duration of individual pipeline stages in seconds",
			Buckets: []float64{0.5, 1, 2, 5, 10, 20, 60, 120},
		},
		[]string{"stage"},
	)

	SearchRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "company_analytics_search_requests_total",
			Help: "Total number of web search queries by category and outcome",
		},
		[]string{"category", "outcome"},
	)

	PersistFailuresTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "company_analytics_persist_failures_total",
			Help: "Total number of analysis rows that failed to persist",
		},
	)
)

// RecordRun counts a finished run and its duration.
func RecordRun(variant, status string, d time.Duration) {
	RunsTotal.WithLabelValues(variant, status).Inc()
	RunDuration.WithLabelValues(variant).Observe(d.Seconds())
}

// ObserveStage records how long a stage ran.
func ObserveStage(stage string, d time.Duration) {
	StageDuration.WithLabelValues(stage).Observe(d.Seconds())
}

// RecordSearch counts one category query. outcome is "ok", "empty" or "error".
func RecordSearch(category, outcome string) {
	SearchRequestsTotal.WithLabelValues(category, outcome).Inc()
}

// Handler exposes the default registry in Prometheus text format.
func Handler() http.Handler {
	return promhttp.Handler()
}
