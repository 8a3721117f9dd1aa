package obs

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	httpInFlight = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "http_in_flight_requests",
		Help: "In-flight HTTP requests.",
	})

	httpRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests.",
		},
		[]string{"method", "path", "status"},
	)

	httpRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request latencies in seconds.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)

	ready = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "service_ready",
		Help: "1 when the readiness probe last succeeded.",
	})

	itemsSubmitted = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "waste_items_submitted_total",
			Help: "Items submitted for disposition, by declared operation.",
		},
		[]string{"operation"},
	)

	transitions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "waste_transitions_total",
			Help: "Committed workflow transitions, by target status.",
		},
		[]string{"to"},
	)

	purchases = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "waste_purchases_total",
		Help: "Completed marketplace purchases.",
	})
)

// Init registers the service metrics with the default registry.
func Init() {
	prometheus.MustRegister(httpInFlight, httpRequestsTotal, httpRequestDuration,
		ready, itemsSubmitted, transitions, purchases)
}

// Handler exposes the Prometheus scrape endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}

// SetReady records the outcome of the latest readiness check.
func SetReady(ok bool) {
	if ok {
		ready.Set(1)
	} else {
		ready.Set(0)
	}
}

// ItemSubmitted counts a new submission.
func ItemSubmitted(operation string) {
	itemsSubmitted.WithLabelValues(operation).Inc()
}

// TransitionCommitted counts a successful workflow transition.
func TransitionCommitted(to string) {
	transitions.WithLabelValues(to).Inc()
}

// PurchaseCompleted counts a successful purchase.
func PurchaseCompleted() {
	purchases.Inc()
}

// Instrument wraps a handler with RPS/latency/in-flight measurements.
func Instrument(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path := CanonicalPath(r.URL.Path)
		method := r.Method

		httpInFlight.Inc()
		start := time.Now()

		sw := &statusWriter{ResponseWriter: w, code: 200}
		next.ServeHTTP(sw, r)

		duration := time.Since(start).Seconds()
		status := strconv.Itoa(sw.code)

		httpRequestDuration.WithLabelValues(method, path, status).Observe(duration)
		httpRequestsTotal.WithLabelValues(method, path, status).Inc()
		httpInFlight.Dec()
	})
}

// CanonicalPath collapses per-resource ids so metric labels stay bounded.
func CanonicalPath(path string) string {
	if i := strings.IndexByte(path, '?'); i >= 0 {
		path = path[:i]
	}
	if path == "" {
		return "/"
	}
	if rest, ok := strings.CutPrefix(path, "/v1/items/"); ok && rest != "" {
		if suffix, ok := strings.CutSuffix(rest, "/status"); ok && !strings.Contains(suffix, "/") {
			return "/v1/items/:id/status"
		}
		if !strings.Contains(rest, "/") {
			return "/v1/items/:id"
		}
	}
	if rest, ok := strings.CutPrefix(path, "/v1/market/items/"); ok && rest != "" {
		if suffix, ok := strings.CutSuffix(rest, "/purchase"); ok && !strings.Contains(suffix, "/") {
			return "/v1/market/items/:id/purchase"
		}
	}
	return path
}

// statusWriter captures the response code for metric labels.
type statusWriter struct {
	http.ResponseWriter
	code int
}

func (w *statusWriter) WriteHeader(code int) {
	w.code = code
	w.ResponseWriter.WriteHeader(code)
}

func (w *statusWriter) Flush() {
	if f, ok := w.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}
