package observability

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	registerOnce          sync.Once
	apiRequestsTotal      *prometheus.CounterVec
	apiLatencySeconds     *prometheus.HistogramVec
	apiErrorsTotal        *prometheus.CounterVec
	gradingItemsTotal     *prometheus.CounterVec
	gradingBatchesTotal   *prometheus.CounterVec
	gradingBatchSeconds   prometheus.Histogram
	gradingProgressEvents *prometheus.CounterVec
	csvUploadsTotal       *prometheus.CounterVec
)

// RegisterMetrics initialises the Prometheus collectors used by the service.
func RegisterMetrics() {
	registerOnce.Do(func() {
		apiRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "graderbot_api_requests_total",
			Help: "Total number of API requests served.",
		}, []string{"method", "route", "status"})

		apiLatencySeconds = prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "graderbot_api_latency_seconds",
			Help:    "Latency distribution for API requests.",
			Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.0, 10.0, 60.0},
		}, []string{"method", "route"})

		apiErrorsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "graderbot_api_errors_total",
			Help: "Total number of error responses returned by the API.",
		}, []string{"method", "route", "status"})

		gradingItemsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "graderbot_grading_items_total",
			Help: "Grading items resolved, by outcome kind.",
		}, []string{"outcome"})

		gradingBatchesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "graderbot_grading_batches_total",
			Help: "Grading batches by final state.",
		}, []string{"state"})

		gradingBatchSeconds = prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "graderbot_grading_batch_duration_seconds",
			Help:    "Wall time of completed grading batches.",
			Buckets: prometheus.ExponentialBuckets(1, 2, 12),
		})

		gradingProgressEvents = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "graderbot_grading_progress_events_total",
			Help: "Progress events handed to the message broker, by result.",
		}, []string{"result"})

		csvUploadsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "graderbot_csv_uploads_total",
			Help: "CSV upload sets processed, by result.",
		}, []string{"result"})

		prometheus.MustRegister(
			apiRequestsTotal,
			apiLatencySeconds,
			apiErrorsTotal,
			gradingItemsTotal,
			gradingBatchesTotal,
			gradingBatchSeconds,
			gradingProgressEvents,
			csvUploadsTotal,
		)
	})
}

// APIRequests exposes the counter for API requests.
func APIRequests() *prometheus.CounterVec {
	RegisterMetrics()
	return apiRequestsTotal
}

// APILatency exposes the latency histogram for API requests.
func APILatency() *prometheus.HistogramVec {
	RegisterMetrics()
	return apiLatencySeconds
}

// APIErrors exposes the counter for API error responses.
func APIErrors() *prometheus.CounterVec {
	RegisterMetrics()
	return apiErrorsTotal
}

// GradingItems counts resolved grading items.
func GradingItems() *prometheus.CounterVec {
	RegisterMetrics()
	return gradingItemsTotal
}

// GradingBatches counts batches by final state.
func GradingBatches() *prometheus.CounterVec {
	RegisterMetrics()
	return gradingBatchesTotal
}

// GradingBatchDuration observes completed batch wall time.
func GradingBatchDuration() prometheus.Histogram {
	RegisterMetrics()
	return gradingBatchSeconds
}

// GradingProgressEvents counts broker publishes.
func GradingProgressEvents() *prometheus.CounterVec {
	RegisterMetrics()
	return gradingProgressEvents
}

// CSVUploads counts processed upload sets.
func CSVUploads() *prometheus.CounterVec {
	RegisterMetrics()
	return csvUploadsTotal
}
