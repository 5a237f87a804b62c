package prometheus

import (
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Counter metrics
var (
	LoginCounter = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "volunteer_login_total",
			Help: "Total number of login attempts",
		},
	)

	RegisterCounter = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "volunteer_register_total",
			Help: "Total number of volunteer registrations",
		},
	)

	// Shift lifecycle counter
	ShiftOperationCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "volunteer_shift_operations_total",
			Help: "Total number of shift operations",
		},
		[]string{"operation"}, // "create", "update", "delete", "signup", "checkin", "drop"
	)

	// Kiosk check-in counter by outcome
	CheckInCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "volunteer_checkin_total",
			Help: "Total number of kiosk check-in attempts by outcome",
		},
		[]string{"outcome"}, // "checked_in", "already_checked_in", "no_shift_today"
	)

	// HTTP request counter by endpoint and status
	HTTPRequestCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "volunteer_http_requests_total",
			Help: "Total number of HTTP requests by endpoint and status",
		},
		[]string{"endpoint", "method", "status"},
	)

	// Error counters
	AuthErrorCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "volunteer_auth_errors_total",
			Help: "Total number of authentication errors",
		},
		[]string{"type"},
	)

	ShiftErrorCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "volunteer_shift_errors_total",
			Help: "Total number of rejected shift operations",
		},
		[]string{"code"}, // apperr code of the rejection
	)

	AdminOperationCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "volunteer_admin_operations_total",
			Help: "Total number of admin operations",
		},
		[]string{"operation"},
	)
)

// Histogram metrics
var (
	RequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "volunteer_request_duration_seconds",
			Help:    "Duration of HTTP requests in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"endpoint", "method", "status"},
	)

	DBOperationDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "volunteer_db_operation_duration_seconds",
			Help:    "Duration of database operations in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"operation"}, // "query", "insert", "update", "delete"
	)
)

// Gauge metrics
var (
	ActiveTokensGauge = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "volunteer_active_tokens",
			Help: "Number of currently active authentication tokens",
		},
	)

	InfoGauge = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "volunteer_info",
			Help: "Information about the volunteer service",
		},
		[]string{"version"},
	)
)

func init() {
	prometheus.MustRegister(LoginCounter)
	prometheus.MustRegister(RegisterCounter)
	prometheus.MustRegister(ShiftOperationCounter)
	prometheus.MustRegister(CheckInCounter)
	prometheus.MustRegister(HTTPRequestCounter)
	prometheus.MustRegister(AuthErrorCounter)
	prometheus.MustRegister(ShiftErrorCounter)
	prometheus.MustRegister(AdminOperationCounter)

	prometheus.MustRegister(RequestDuration)
	prometheus.MustRegister(DBOperationDuration)

	prometheus.MustRegister(ActiveTokensGauge)
	prometheus.MustRegister(InfoGauge)

	InfoGauge.With(prometheus.Labels{"version": "1.0.0"}).Set(1)
}

// GetPrometheusHandler returns an HTTP handler for the Prometheus metrics
func GetPrometheusHandler() http.Handler {
	return promhttp.Handler()
}

// TrackDBOperation measures database operation durations
func TrackDBOperation(operation string) func(time.Time) {
	startTime := time.Now()
	return func(endTime time.Time) {
		duration := time.Since(startTime).Seconds()
		DBOperationDuration.With(prometheus.Labels{
			"operation": operation,
		}).Observe(duration)
	}
}

// MetricsMiddleware creates a middleware function that captures metrics for each request
func MetricsMiddleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()

			err := next(c)

			duration := time.Since(start).Seconds()
			status := strconv.Itoa(c.Response().Status)
			endpoint := c.Path()
			method := c.Request().Method

			RequestDuration.With(prometheus.Labels{
				"endpoint": endpoint,
				"method":   method,
				"status":   status,
			}).Observe(duration)

			HTTPRequestCounter.With(prometheus.Labels{
				"endpoint": endpoint,
				"method":   method,
				"status":   status,
			}).Inc()

			return err
		}
	}
}

// IncreaseActiveTokens increments the active tokens gauge
func IncreaseActiveTokens() {
	ActiveTokensGauge.Inc()
}

// RecordAuthError records an authentication error by type
func RecordAuthError(errorType string) {
	AuthErrorCounter.With(prometheus.Labels{"type": errorType}).Inc()
}

// RecordShiftError records a rejected shift operation by error code
func RecordShiftError(code string) {
	ShiftErrorCounter.With(prometheus.Labels{"code": code}).Inc()
}

// RecordShiftOperation records a shift lifecycle operation
func RecordShiftOperation(operation string) {
	ShiftOperationCounter.With(prometheus.Labels{"operation": operation}).Inc()
}

// RecordAdminOperation records an admin operation by type
func RecordAdminOperation(operation string) {
	AdminOperationCounter.With(prometheus.Labels{"operation": operation}).Inc()
}

// RecordCheckIn records a kiosk check-in attempt by outcome
func RecordCheckIn(outcome string) {
	CheckInCounter.With(prometheus.Labels{"outcome": outcome}).Inc()
}
