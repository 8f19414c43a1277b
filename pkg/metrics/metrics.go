package metrics

import (
	"runtime"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Registry is the application-scoped metrics registry exposed on /api/metrics.
var Registry = prometheus.NewRegistry()

var factory = promauto.With(Registry)

var (
	// Custom histogram buckets optimized for API response times ranging from
	// milliseconds to 30+ seconds
	CustomAPIBuckets = []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2, 3, 5, 8, 13, 21, 34, 55}

	// HTTP Metrics
	HTTPRequestDuration = factory.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_server_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: CustomAPIBuckets,
		},
		[]string{"http_request_method", "http_route", "http_response_status_code"},
	)

	HTTPRequestTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_server_request_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"http_request_method", "http_route", "http_response_status_code"},
	)

	ActiveRequests = factory.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "http_server_active_requests",
			Help: "Number of active HTTP requests",
		},
		[]string{"http_request_method"},
	)

	// Database Client Metrics
	DBRequestDuration = factory.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "db_client_operation_duration_seconds",
			Help:    "Database client operation duration in seconds",
			Buckets: CustomAPIBuckets,
		},
		[]string{"operation", "status"},
	)

	DBRequestTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Name: "db_client_operation_total",
			Help: "Total number of database client operations",
		},
		[]string{"operation", "status"},
	)

	// Cache Metrics
	CacheHits = factory.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cache_hits_total",
			Help: "Total number of cache hits",
		},
		[]string{"cache_name"},
	)

	CacheMisses = factory.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cache_misses_total",
			Help: "Total number of cache misses",
		},
		[]string{"cache_name"},
	)

	// Storage Client Metrics
	StorageRequestDuration = factory.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "storage_client_operation_duration_seconds",
			Help:    "Storage client operation duration in seconds",
			Buckets: CustomAPIBuckets,
		},
		[]string{"operation", "status"},
	)

	StorageRequestTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Name: "storage_client_operation_total",
			Help: "Total number of storage client operations",
		},
		[]string{"operation", "status"},
	)

	// Business Metrics
	HelpRequestSubmissions = factory.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tutorlink_help_request_submissions_total",
			Help: "Total number of help request submissions",
		},
		[]string{"status", "subject"},
	)

	HelpRequestAccepts = factory.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tutorlink_help_request_accepts_total",
			Help: "Total number of help request accept attempts",
		},
		[]string{"status"},
	)

	HelpRequestStatusUpdates = factory.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tutorlink_help_request_status_updates_total",
			Help: "Total number of help request status transitions",
		},
		[]string{"from_status", "to_status"},
	)

	FeedbackSubmissions = factory.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tutorlink_feedback_submissions_total",
			Help: "Total number of feedback submissions",
		},
		[]string{"role", "status"},
	)

	RatingRecomputes = factory.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tutorlink_rating_recomputes_total",
			Help: "Total number of mentor rating recomputations",
		},
		[]string{"status"},
	)

	NotificationDispatches = factory.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tutorlink_notification_dispatches_total",
			Help: "Total number of mentor notification dispatch attempts",
		},
		[]string{"status"},
	)

	AttachmentUploads = factory.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tutorlink_attachment_uploads_total",
			Help: "Total number of attachment upload attempts",
		},
		[]string{"status"},
	)

	LoginRequests = factory.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tutorlink_login_requests_total",
			Help: "Total number of login token requests",
		},
		[]string{"status"},
	)

	// Infrastructure Metrics
	GoRoutines = factory.NewGauge(
		prometheus.GaugeOpts{
			Name: "go_runtime_goroutines",
			Help: "Number of running goroutines",
		},
	)

	HeapAlloc = factory.NewGauge(
		prometheus.GaugeOpts{
			Name: "go_runtime_heap_alloc_bytes",
			Help: "Heap memory allocated in bytes",
		},
	)
)

// RecordInfrastructureMetrics collects infrastructure metrics periodically
func RecordInfrastructureMetrics() {
	ticker := time.NewTicker(15 * time.Second)
	go func() {
		for range ticker.C {
			var m runtime.MemStats
			runtime.ReadMemStats(&m)

			GoRoutines.Set(float64(runtime.NumGoroutine()))
			HeapAlloc.Set(float64(m.HeapAlloc))
		}
	}()
}

// MeasureDuration measures the duration of an operation
func MeasureDuration(start time.Time) float64 {
	return time.Since(start).Seconds()
}
