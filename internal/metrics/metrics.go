package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// HTTP metrics
var (
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "videofront_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "route", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "videofront_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)
)

// Task metrics
var (
	TasksTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "videofront_tasks_total",
			Help: "Tasks handled by workers, by outcome (ok, retry, error)",
		},
		[]string{"task", "outcome"},
	)

	TaskDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "videofront_task_duration_seconds",
			Help:    "Task handler duration in seconds",
			Buckets: []float64{0.01, 0.1, 0.5, 1, 5, 15, 60, 300, 900, 3600},
		},
		[]string{"task"},
	)

	TasksInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "videofront_tasks_in_flight",
			Help: "Tasks currently being handled",
		},
	)
)

// Transcoding metrics
var (
	TranscodeAttemptsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "videofront_transcode_attempts_total",
			Help: "Finished transcoding attempts by outcome (success, failed, error, skipped)",
		},
		[]string{"outcome"},
	)

	TranscodeAttemptDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "videofront_transcode_attempt_duration_seconds",
			Help:    "Wall time of a transcoding attempt",
			Buckets: prometheus.ExponentialBuckets(1, 2, 14),
		},
	)

	TranscodeJobsFailedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "videofront_transcode_jobs_failed_total",
			Help: "Individual transcoding jobs that ended in failure",
		},
	)
)

// Upload metrics
var (
	UploadsConfirmedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "videofront_uploads_confirmed_total",
			Help: "Reservations whose upload was detected",
		},
	)

	UploadChecksFailedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "videofront_upload_checks_failed_total",
			Help: "Reservation checks that failed with a backend or store error",
		},
	)

	ReservationsPrunedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "videofront_reservations_pruned_total",
			Help: "Expired reservations deleted",
		},
	)
)

// Cache metrics
var (
	CacheRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "videofront_cache_requests_total",
			Help: "Read-model cache lookups by result (hit, miss, error)",
		},
		[]string{"result"},
	)
)
