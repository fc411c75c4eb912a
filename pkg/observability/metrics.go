package observability

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// RequestsTotal tracks total number of HTTP requests
	RequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ingest_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"route", "code"},
	)

	// RequestDuration tracks request duration
	RequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "ingest_http_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"route"},
	)

	// ActiveRequests tracks currently active requests
	ActiveRequests = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "ingest_http_active_requests",
			Help: "Number of active HTTP requests",
		},
		[]string{"route"},
	)

	// IngestRows counts rows per table and outcome (inserted, updated, skipped)
	IngestRows = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ingest_rows_total",
			Help: "Rows processed by ingestion, by table and outcome",
		},
		[]string{"table", "outcome"},
	)

	// IngestMisses counts row-level misses by reason
	IngestMisses = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ingest_misses_total",
			Help: "Rows rejected during ingestion, by table and reason",
		},
		[]string{"table", "reason"},
	)

	// IngestRuns counts ingestion calls by table and final status
	IngestRuns = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ingest_runs_total",
			Help: "Ingestion calls by table and status",
		},
		[]string{"table", "status"},
	)

	// IngestDuration tracks the time spent in one ingestion call
	IngestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "ingest_run_duration_seconds",
			Help:    "Ingestion call duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"table"},
	)
)

// MetricsMiddleware collects Prometheus metrics for an HTTP route
func MetricsMiddleware(route string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Track active requests
		ActiveRequests.WithLabelValues(route).Inc()
		defer ActiveRequests.WithLabelValues(route).Dec()

		// Track duration
		start := time.Now()
		defer func() {
			RequestDuration.WithLabelValues(route).Observe(time.Since(start).Seconds())
		}()

		rec := &StatusRecorder{ResponseWriter: w, Status: http.StatusOK}
		next.ServeHTTP(rec, r)

		RequestsTotal.WithLabelValues(route, strconv.Itoa(rec.Status)).Inc()
	})
}

// StatusRecorder captures the status code written by a handler.
type StatusRecorder struct {
	http.ResponseWriter
	Status int
}

func (r *StatusRecorder) WriteHeader(code int) {
	r.Status = code
	r.ResponseWriter.WriteHeader(code)
}
