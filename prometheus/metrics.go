package prometheus

import (
	"time"

	"github.com/zhanikpanik/restaurant-checklist-sub001/pkg/config"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// HTTP request metrics
	HttpRequestsTotal   prometheus.CounterVec
	HttpRequestDuration prometheus.HistogramVec

	// Authentication metrics
	AuthAttemptsCounter prometheus.Counter
	AuthSuccessCounter  prometheus.Counter
	AuthErrorsCounter   prometheus.CounterVec

	// Request perimeter metrics
	CsrfRejectionsCounter   prometheus.CounterVec
	RateLimitHitsCounter    prometheus.CounterVec
	RateLimitStoreErrors    prometheus.Counter
	TenantRejectionsCounter prometheus.CounterVec

	// Tenant session metrics
	TenantSessionsCounter     prometheus.CounterVec
	MarkerResetFailureCounter prometheus.Counter

	// Database operation metrics
	DbOperationDuration prometheus.HistogramVec

	// Business operation metrics
	OrderOperationsCounter    prometheus.CounterVec
	SupplierOperationsCounter prometheus.CounterVec
	ProductOperationsCounter  prometheus.CounterVec

	// Order dispatch events published to the broker
	OrderDispatchCounter prometheus.CounterVec
)

// InitMetrics initializes Prometheus metrics with configuration
func InitMetrics(cfg *config.Config) {
	// Use metric prefix from configuration
	prefix := cfg.Metrics.Prefix

	HttpRequestsTotal = *promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: prefix + "_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	HttpRequestDuration = *promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    prefix + "_http_request_duration_seconds",
			Help:    "Duration of HTTP requests in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)

	AuthAttemptsCounter = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: prefix + "_auth_attempts_total",
			Help: "Total number of authentication attempts",
		},
	)

	AuthSuccessCounter = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: prefix + "_auth_success_total",
			Help: "Total number of successful authentications",
		},
	)

	AuthErrorsCounter = *promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: prefix + "_auth_errors_total",
			Help: "Total number of authentication errors",
		},
		[]string{"reason"},
	)

	CsrfRejectionsCounter = *promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: prefix + "_csrf_rejections_total",
			Help: "Total number of requests rejected by CSRF validation",
		},
		[]string{"reason"},
	)

	RateLimitHitsCounter = *promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: prefix + "_rate_limit_hits_total",
			Help: "Total number of requests rejected by the rate limiter",
		},
		[]string{"endpoint"},
	)

	RateLimitStoreErrors = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: prefix + "_rate_limit_store_errors_total",
			Help: "Total number of rate limit store failures (failed open)",
		},
	)

	TenantRejectionsCounter = *promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: prefix + "_tenant_rejections_total",
			Help: "Total number of requests rejected during restaurant resolution",
		},
		[]string{"reason"},
	)

	TenantSessionsCounter = *promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: prefix + "_tenant_sessions_total",
			Help: "Total number of tenant-scoped database sessions",
		},
		[]string{"mode"},
	)

	MarkerResetFailureCounter = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: prefix + "_marker_reset_failures_total",
			Help: "Total number of failed tenant marker resets (connection discarded)",
		},
	)

	DbOperationDuration = *promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    prefix + "_db_operation_duration_seconds",
			Help:    "Duration of database operations in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"operation_type"},
	)

	OrderOperationsCounter = *promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: prefix + "_order_operations_total",
			Help: "Total number of order operations",
		},
		[]string{"operation"},
	)

	SupplierOperationsCounter = *promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: prefix + "_supplier_operations_total",
			Help: "Total number of supplier operations",
		},
		[]string{"operation"},
	)

	ProductOperationsCounter = *promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: prefix + "_product_operations_total",
			Help: "Total number of product operations",
		},
		[]string{"operation"},
	)

	OrderDispatchCounter = *promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: prefix + "_order_dispatch_events_total",
			Help: "Total number of order dispatch events published",
		},
		[]string{"status"},
	)
}

// TrackDBOperation returns a function that records the duration of a database
// operation. Use with defer: defer prometheus.TrackDBOperation("insert")(time.Now())
func TrackDBOperation(operationType string) func(time.Time) {
	return func(start time.Time) {
		DbOperationDuration.WithLabelValues(operationType).Observe(time.Since(start).Seconds())
	}
}

// RecordAuthError increments the auth error counter for a given reason
func RecordAuthError(reason string) {
	AuthErrorsCounter.WithLabelValues(reason).Inc()
}

// RecordOrderOperation increments the order operations counter
func RecordOrderOperation(operation string) {
	OrderOperationsCounter.WithLabelValues(operation).Inc()
}

// RecordSupplierOperation increments the supplier operations counter
func RecordSupplierOperation(operation string) {
	SupplierOperationsCounter.WithLabelValues(operation).Inc()
}

// RecordProductOperation increments the product operations counter
func RecordProductOperation(operation string) {
	ProductOperationsCounter.WithLabelValues(operation).Inc()
}
