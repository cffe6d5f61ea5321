package obs

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// HTTP metrics
var (
	httpInFlight = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "smartport_http_in_flight_requests",
		Help: "In-flight HTTP requests.",
	})

	httpRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "smartport_http_requests_total",
			Help: "Total number of HTTP requests.",
		},
		[]string{"method", "route", "status"},
	)

	httpRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "smartport_http_request_duration_seconds",
			Help:    "HTTP request latencies in seconds.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route", "status"},
	)
)

// Domain metrics
var (
	DoorDecisions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "smartport_door_decisions_total",
			Help: "Door authorization decisions by result and reason.",
		},
		[]string{"result", "reason"},
	)

	Enrollments = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "smartport_enrollment_steps_total",
			Help: "Enrollment steps by step and outcome.",
		},
		[]string{"step", "outcome"},
	)

	Verifications = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "smartport_face_verifications_total",
			Help: "Face verifications by result.",
		},
		[]string{"result"},
	)

	Similarity = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "smartport_face_similarity",
		Help:    "Similarity scores of face verifications (0-100).",
		Buckets: prometheus.LinearBuckets(0, 10, 11),
	})

	WeightsPruned = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "smartport_weight_readings_pruned_total",
		Help: "Weight readings deleted by the retention sweep.",
	})

	WeightReadings = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "smartport_weight_readings_total",
			Help: "Ingested scale readings by status.",
		},
		[]string{"status"},
	)

	BusConnected = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "smartport_bus_connected",
		Help: "1 while the message bus connection is up.",
	})
)

var initOnce sync.Once

// Init registers all metrics in the default registry. Safe to call more
// than once.
func Init() {
	initOnce.Do(func() {
		prometheus.MustRegister(
			httpInFlight, httpRequestsTotal, httpRequestDuration,
			DoorDecisions, Enrollments, Verifications, Similarity,
			WeightReadings, WeightsPruned, BusConnected,
		)
	})
}

func Handler() http.Handler {
	return promhttp.Handler()
}

// Instrument records request count, latency and in-flight gauge. The route
// label is the chi route pattern so path parameters do not explode the
// label space.
func Instrument(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		httpInFlight.Inc()
		defer httpInFlight.Dec()
		start := time.Now()

		sw := &statusWriter{ResponseWriter: w, code: http.StatusOK}
		next.ServeHTTP(sw, r)

		route := RoutePattern(r)
		status := strconv.Itoa(sw.code)
		httpRequestDuration.WithLabelValues(r.Method, route, status).Observe(time.Since(start).Seconds())
		httpRequestsTotal.WithLabelValues(r.Method, route, status).Inc()
	})
}

// RoutePattern returns the matched chi pattern, or "unmatched".
func RoutePattern(r *http.Request) string {
	if rc := chi.RouteContext(r.Context()); rc != nil {
		if p := rc.RoutePattern(); p != "" {
			return p
		}
	}
	return "unmatched"
}

type statusWriter struct {
	http.ResponseWriter
	code int
}

func (w *statusWriter) WriteHeader(code int) {
	w.code = code
	w.ResponseWriter.WriteHeader(code)
}
