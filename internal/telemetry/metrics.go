package telemetry

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	once sync.Once

	HTTPRequests = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "http_requests_total",
		Help: "Total HTTP requests received",
	}, []string{"method", "path", "status"})
	HTTPDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "http_request_duration_seconds",
		Help:    "HTTP request latency in seconds",
		Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1.0, 2.5, 5.0, 10.0},
	}, []string{"method", "path"})

	QueryClassifications = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "query_classifications_total",
		Help: "Question classifications by query type",
	}, []string{"query_type"})

	LLMRequests = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "llm_requests_total",
		Help: "LLM completions by provider and outcome",
	}, []string{"provider", "status"})
	LLMDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "llm_request_duration_seconds",
		Help:    "LLM completion latency in seconds",
		Buckets: []float64{0.1, 0.5, 1.0, 2.0, 5.0, 10.0, 30.0, 60.0},
	}, []string{"provider"})

	TasksSubmitted = prometheus.NewCounter(prometheus.CounterOpts{Name: "tasks_submitted_total", Help: "Tasks submitted to the background queue"})
	TasksCompleted = prometheus.NewCounter(prometheus.CounterOpts{Name: "tasks_completed_total", Help: "Tasks that completed successfully"})
	TasksFailed    = prometheus.NewCounter(prometheus.CounterOpts{Name: "tasks_failed_total", Help: "Tasks that finished with an error"})
	TasksInFlight  = prometheus.NewGauge(prometheus.GaugeOpts{Name: "tasks_inflight", Help: "Tasks currently executing"})

	RateLimitRejects = prometheus.NewCounter(prometheus.CounterOpts{Name: "rate_limit_rejects_total", Help: "Chat requests rejected by the rate limiter"})
)

// Handler exposes the /metrics HTTP handler with a singleton registry.
func Handler() http.Handler {
	once.Do(func() {
		prometheus.MustRegister(
			HTTPRequests,
			HTTPDuration,
			QueryClassifications,
			LLMRequests,
			LLMDuration,
			TasksSubmitted,
			TasksCompleted,
			TasksFailed,
			TasksInFlight,
			RateLimitRejects,
		)
	})
	return promhttp.Handler()
}

// Middleware records request counts and latency for every route.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(sw, r)
		HTTPRequests.WithLabelValues(r.Method, r.URL.Path, strconv.Itoa(sw.status)).Inc()
		HTTPDuration.WithLabelValues(r.Method, r.URL.Path).Observe(time.Since(start).Seconds())
	})
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}
