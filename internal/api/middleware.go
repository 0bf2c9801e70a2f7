package api

import (
	"log/slog"
	"math"
	"net/http"
	"slices"
	"strconv"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/cors"

	"gtstats/internal/domain"
)

// Prometheus metrics for the HTTP layer.
var (
	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "gtstats",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "gtstats",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request duration in seconds",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	gamesSavedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "gtstats",
			Subsystem: "http",
			Name:      "games_saved_total",
			Help:      "Total number of save attempts by result",
		},
		[]string{"source", "result"},
	)

	clickhouseQueryErrorsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "gtstats",
			Subsystem: "http",
			Name:      "clickhouse_query_errors_total",
			Help:      "Total number of ClickHouse reads that failed a request",
		},
	)
)

// responseWriter wraps http.ResponseWriter to capture the status code.
type responseWriter struct {
	http.ResponseWriter
	statusCode int
	written    bool
}

// newResponseWriter creates a new responseWriter with a default 200 status.
func newResponseWriter(w http.ResponseWriter) *responseWriter {
	return &responseWriter{
		ResponseWriter: w,
		statusCode:     http.StatusOK,
	}
}

// WriteHeader captures the status code before writing.
func (rw *responseWriter) WriteHeader(code int) {
	if !rw.written {
		rw.statusCode = code
		rw.written = true
		rw.ResponseWriter.WriteHeader(code)
	}
}

// Write ensures WriteHeader is called before writing the body.
func (rw *responseWriter) Write(b []byte) (int, error) {
	if !rw.written {
		rw.WriteHeader(http.StatusOK)
	}
	return rw.ResponseWriter.Write(b)
}

// Unwrap returns the underlying ResponseWriter for middleware compatibility.
func (rw *responseWriter) Unwrap() http.ResponseWriter {
	return rw.ResponseWriter
}

// routePattern returns the matched chi pattern, e.g. /api/games/{id}, so
// game IDs do not become label values.
func routePattern(r *http.Request) string {
	if rctx := chi.RouteContext(r.Context()); rctx != nil {
		if pattern := rctx.RoutePattern(); pattern != "" {
			return pattern
		}
	}
	return "unmatched"
}

// PrometheusMiddleware records HTTP request metrics.
func PrometheusMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		wrapped := newResponseWriter(w)

		next.ServeHTTP(wrapped, r)

		path := routePattern(r)
		status := strconv.Itoa(wrapped.statusCode)
		httpRequestsTotal.WithLabelValues(r.Method, path, status).Inc()
		httpRequestDuration.WithLabelValues(r.Method, path).Observe(time.Since(start).Seconds())
	})
}

// RequestLogger returns middleware that logs HTTP requests using structured logging.
func RequestLogger(logger *slog.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			wrapped := newResponseWriter(w)

			next.ServeHTTP(wrapped, r)

			logger.Info("request completed",
				slog.String("method", r.Method),
				slog.String("path", r.URL.Path),
				slog.String("remote_addr", r.RemoteAddr),
				slog.Int("status", wrapped.statusCode),
				slog.Duration("duration", time.Since(start)),
				slog.String("user_agent", r.UserAgent()),
			)
		})
	}
}

// CORS allows the browser scoring app to call the API from any origin.
func CORS() func(next http.Handler) http.Handler {
	return cors.New(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"*"},
	}).Handler
}

// RecordGameSaved counts a save attempt. source is "api" or "live".
func RecordGameSaved(source string, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	gamesSavedTotal.WithLabelValues(source, result).Inc()
}

// RecordClickHouseQueryError increments the ClickHouse query error counter.
func RecordClickHouseQueryError() {
	clickhouseQueryErrorsTotal.Inc()
}

// ResponseTimeTracker keeps the most recent request durations in a fixed
// ring and reports their percentiles in milliseconds.
type ResponseTimeTracker struct {
	mu    sync.Mutex
	ring  []time.Duration
	next  int
	count int
}

var actionResponseTimes = NewResponseTimeTracker(10000)

// NewResponseTimeTracker creates a tracker holding at most size samples.
func NewResponseTimeTracker(size int) *ResponseTimeTracker {
	if size < 1 {
		size = 1
	}
	return &ResponseTimeTracker{ring: make([]time.Duration, size)}
}

// Record stores d, overwriting the oldest sample once the ring is full.
func (t *ResponseTimeTracker) Record(d time.Duration) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.ring[t.next] = d
	t.next = (t.next + 1) % len(t.ring)
	if t.count < len(t.ring) {
		t.count++
	}
}

// Percentiles returns p50, p95 and p99, or nil before the first sample.
func (t *ResponseTimeTracker) Percentiles() *domain.ResponseTimePercentiles {
	t.mu.Lock()
	ms := make([]float64, t.count)
	for i, d := range t.ring[:t.count] {
		ms[i] = float64(d.Microseconds()) / 1000
	}
	t.mu.Unlock()

	if len(ms) == 0 {
		return nil
	}
	slices.Sort(ms)

	return &domain.ResponseTimePercentiles{
		P50: percentile(ms, 50),
		P95: percentile(ms, 95),
		P99: percentile(ms, 99),
	}
}

// percentile linearly interpolates the pth percentile of sorted, rounded to
// two decimals.
func percentile(sorted []float64, p float64) float64 {
	n := len(sorted)
	if n == 0 {
		return 0
	}
	rank := p / 100 * float64(n-1)
	lo := int(rank)
	v := sorted[lo]
	if lo+1 < n {
		v += (rank - float64(lo)) * (sorted[lo+1] - sorted[lo])
	}
	return math.Round(v*100) / 100
}

// RecordActionResponseTime records how long an action request took.
func RecordActionResponseTime(d time.Duration) {
	actionResponseTimes.Record(d)
}

// ActionResponseTimePercentiles returns the current action latency percentiles.
func ActionResponseTimePercentiles() *domain.ResponseTimePercentiles {
	return actionResponseTimes.Percentiles()
}
