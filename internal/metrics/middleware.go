package metrics

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
)

// namespace prefixes every creditgate metric.
const namespace = "creditgate"

// unmatchedRoute labels requests that no route pattern claimed, so scanners
// hitting random paths cannot blow up label cardinality.
const unmatchedRoute = "unmatched"

var (
	httpRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Requests served, by route pattern and status",
		},
		[]string{"method", "route", "status"},
	)

	httpRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "Time from first byte read to handler return",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		},
		[]string{"method", "route"},
	)

	httpInFlight = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_in_flight",
			Help:      "Requests currently being served",
		},
	)
)

var registerHTTPMetrics sync.Once

// RegisterHTTPMetrics registers the request metrics with the default registry.
// Safe to call more than once.
func RegisterHTTPMetrics() {
	registerHTTPMetrics.Do(func() {
		prometheus.MustRegister(httpRequestsTotal, httpRequestDuration, httpInFlight)
	})
}

// Middleware counts and times every request under its chi route pattern.
// Handlers that never call WriteHeader are recorded as 200.
func Middleware() func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			httpInFlight.Inc()
			defer httpInFlight.Dec()

			ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()
			next.ServeHTTP(ww, r)
			elapsed := time.Since(start)

			status := ww.Status()
			if status == 0 {
				status = http.StatusOK
			}
			route := routeLabel(r)

			httpRequestsTotal.WithLabelValues(r.Method, route, strconv.Itoa(status)).Inc()
			httpRequestDuration.WithLabelValues(r.Method, route).Observe(elapsed.Seconds())
		})
	}
}

// routeLabel reads the matched pattern after routing finished. Mounted
// sub-routers leave a trailing "/*" on the prefix, which carries no meaning
// for dashboards.
func routeLabel(r *http.Request) string {
	rctx := chi.RouteContext(r.Context())
	if rctx == nil {
		return unmatchedRoute
	}
	pattern := rctx.RoutePattern()
	for len(pattern) > 2 && pattern[len(pattern)-2:] == "/*" {
		pattern = pattern[:len(pattern)-2]
	}
	if pattern == "" || pattern == "/*" {
		return unmatchedRoute
	}
	return pattern
}
