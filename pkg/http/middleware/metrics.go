package middleware

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	applogger "PairScan/pkg/logger"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	reqTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "HTTP requests served",
		},
		[]string{"route", "method", "status"},
	)
	reqDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Request latency",
			Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		},
		[]string{"route", "method", "status", "class"},
	)
	reqInFlight = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "http_in_flight_requests",
			Help: "Requests currently being handled",
		},
		[]string{"route", "method"},
	)
	respSize = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_response_size_bytes",
			Help:    "Response body size",
			Buckets: []float64{200, 500, 1_000, 2_000, 5_000, 10_000, 50_000, 100_000, 500_000, 1_000_000},
		},
		[]string{"route", "method", "status", "class"},
	)

	registerOnce sync.Once
)

// Metrics records per-route request counts, latency, response size, and
// an in-flight gauge. With a logger attached it also reports 5xx
// responses and requests slower than slowThreshold.
func Metrics(l *applogger.Logger, slowThreshold time.Duration) func(http.Handler) http.Handler {
	registerOnce.Do(func() {
		prometheus.MustRegister(reqTotal, reqDuration, reqInFlight, respSize)
	})

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			route, method := routeLabel(r), r.Method

			reqInFlight.WithLabelValues(route, method).Inc()
			defer reqInFlight.WithLabelValues(route, method).Dec()

			rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
			start := time.Now()
			next.ServeHTTP(rec, r)
			elapsed := time.Since(start)

			observe(route, method, rec, elapsed)
			logOutcome(l, slowThreshold, route, method, rec, elapsed)
		})
	}
}

func observe(route, method string, rec *statusRecorder, elapsed time.Duration) {
	status := strconv.Itoa(rec.status)
	class := statusClass(rec.status)

	reqTotal.WithLabelValues(route, method, status).Inc()
	reqDuration.WithLabelValues(route, method, status, class).Observe(elapsed.Seconds())
	respSize.WithLabelValues(route, method, status, class).Observe(float64(rec.written))
}

func logOutcome(l *applogger.Logger, slowThreshold time.Duration, route, method string, rec *statusRecorder, elapsed time.Duration) {
	if l == nil {
		return
	}

	fields := []applogger.Field{
		applogger.String("route", route),
		applogger.String("method", method),
		applogger.Int("status", rec.status),
		applogger.Duration("duration_ms", elapsed),
		applogger.Int("bytes", rec.written),
	}
	switch {
	case rec.status >= 500:
		l.Error("http request failed", fields...)
	case slowThreshold > 0 && elapsed >= slowThreshold:
		l.Warn("http request slow", fields...)
	}
}

type statusRecorder struct {
	http.ResponseWriter
	status  int
	written int
}

func (w *statusRecorder) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}

func (w *statusRecorder) Write(b []byte) (int, error) {
	n, err := w.ResponseWriter.Write(b)
	w.written += n
	return n, err
}

// routeLabel prefers a route template placed in the request context so
// label cardinality stays bounded, falling back to the raw path.
func routeLabel(r *http.Request) string {
	if s, ok := r.Context().Value("route").(string); ok && s != "" {
		return s
	}
	return r.URL.Path
}

func statusClass(code int) string {
	switch {
	case code < 200:
		return "1xx"
	case code < 300:
		return "2xx"
	case code < 400:
		return "3xx"
	case code < 500:
		return "4xx"
	default:
		return "5xx"
	}
}
