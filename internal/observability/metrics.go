package observability

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	registerOnce        sync.Once
	httpRequestsTotal   *prometheus.CounterVec
	httpLatencySeconds  *prometheus.HistogramVec
	intakeArchivesTotal *prometheus.CounterVec
	intakeDuration      prometheus.Histogram
	analysisTasksTotal  *prometheus.CounterVec
	analysisDuration    prometheus.Histogram
)

// RegisterMetrics initialises the Prometheus collectors.
func RegisterMetrics() {
	registerOnce.Do(func() {
		httpRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "gradehub_requests_total",
			Help: "Total number of API requests served.",
		}, []string{"method", "route", "status"})

		httpLatencySeconds = prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "gradehub_latency_seconds",
			Help:    "Latency distribution for API requests.",
			Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.0},
		}, []string{"method", "route"})

		intakeArchivesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "gradehub_intake_archives_total",
			Help: "Archives processed during submission intake, by outcome.",
		}, []string{"status"})

		intakeDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "gradehub_intake_duration_seconds",
			Help:    "Time spent ingesting one submission archive.",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0, 10.0},
		})

		analysisTasksTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "gradehub_analysis_tasks_total",
			Help: "Workbook analysis tasks completed, by outcome.",
		}, []string{"status"})

		analysisDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "gradehub_analysis_duration_seconds",
			Help:    "Time spent extracting one workbook formula map.",
			Buckets: []float64{0.1, 0.25, 0.5, 1.0, 2.5, 5.0, 10.0, 30.0},
		})

		prometheus.MustRegister(
			httpRequestsTotal, httpLatencySeconds,
			intakeArchivesTotal, intakeDuration,
			analysisTasksTotal, analysisDuration,
		)
	})
}

// HTTPRequests exposes the counter for API requests.
func HTTPRequests() *prometheus.CounterVec {
	RegisterMetrics()
	return httpRequestsTotal
}

// HTTPLatency exposes the latency histogram for API requests.
func HTTPLatency() *prometheus.HistogramVec {
	RegisterMetrics()
	return httpLatencySeconds
}

// IntakeArchives exposes the counter for intake outcomes.
func IntakeArchives() *prometheus.CounterVec {
	RegisterMetrics()
	return intakeArchivesTotal
}

// IntakeDuration exposes the histogram for per-archive intake time.
func IntakeDuration() prometheus.Histogram {
	RegisterMetrics()
	return intakeDuration
}

// AnalysisTasks exposes the counter for analysis task outcomes.
func AnalysisTasks() *prometheus.CounterVec {
	RegisterMetrics()
	return analysisTasksTotal
}

// AnalysisDuration exposes the histogram for formula map extraction time.
func AnalysisDuration() prometheus.Histogram {
	RegisterMetrics()
	return analysisDuration
}
