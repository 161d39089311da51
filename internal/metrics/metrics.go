// Package metrics exposes Prometheus collectors for the HTTP API, the
// conversation engine and background board refreshes.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "soonish"

// Metrics owns a private registry and the service collectors
type Metrics struct {
	registry *prometheus.Registry

	requestsTotal     *prometheus.CounterVec
	requestDuration   *prometheus.HistogramVec
	turnsTotal        *prometheus.CounterVec
	turnDuration      prometheus.Histogram
	planWrites        *prometheus.CounterVec
	boardRefreshes    *prometheus.CounterVec
	boardBuild        prometheus.Histogram
	liveConversations prometheus.Gauge
}

// New creates and registers all collectors
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		requestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "http_requests_total",
				Help:      "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		requestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "http_request_duration_seconds",
				Help:      "HTTP request duration in seconds",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"method", "path"},
		),
		turnsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "conversation_turns_total",
				Help:      "Conversation turns by outcome (question, confirmation, suggestion, error)",
			},
			[]string{"result"},
		),
		turnDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "extraction_duration_seconds",
				Help:      "Latency of the structured extraction call",
				Buckets:   []float64{0.25, 0.5, 1, 2, 4, 8, 16, 32},
			},
		),
		planWrites: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "plan_writes_total",
				Help:      "Plan writes by operation",
			},
			[]string{"op"},
		),
		boardRefreshes: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "board_refreshes_total",
				Help:      "Board snapshot rebuilds by reason and result",
			},
			[]string{"reason", "result"},
		),
		boardBuild: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "board_build_duration_seconds",
				Help:      "Time to load, classify and rank plans into a board",
				Buckets:   prometheus.DefBuckets,
			},
		),
		liveConversations: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "live_conversations",
				Help:      "Conversations currently held in memory",
			},
		),
	}

	m.registry.MustRegister(
		m.requestsTotal,
		m.requestDuration,
		m.turnsTotal,
		m.turnDuration,
		m.planWrites,
		m.boardRefreshes,
		m.boardBuild,
		m.liveConversations,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// Registry returns the underlying registry
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// ObserveTurn records one conversation turn
func (m *Metrics) ObserveTurn(result string, duration time.Duration) {
	m.turnsTotal.WithLabelValues(result).Inc()
	m.turnDuration.Observe(duration.Seconds())
}

// ObservePlanWrite counts a plan insert, update or delete
func (m *Metrics) ObservePlanWrite(op string) {
	m.planWrites.WithLabelValues(op).Inc()
}

// ObserveBoardRefresh records a board rebuild
func (m *Metrics) ObserveBoardRefresh(reason, result string, duration time.Duration) {
	m.boardRefreshes.WithLabelValues(reason, result).Inc()
	m.boardBuild.Observe(duration.Seconds())
}

// SetLiveConversations reports the current conversation count
func (m *Metrics) SetLiveConversations(n int) {
	m.liveConversations.Set(float64(n))
}

// Middleware records request counts and latency labelled by route template
func (m *Metrics) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

		next.ServeHTTP(rec, r)

		path := routeTemplate(r)
		m.requestsTotal.WithLabelValues(r.Method, path, strconv.Itoa(rec.status)).Inc()
		m.requestDuration.WithLabelValues(r.Method, path).Observe(time.Since(start).Seconds())
	})
}

// routeTemplate keeps label cardinality bounded by using the mux template
// instead of the raw path
func routeTemplate(r *http.Request) string {
	if route := mux.CurrentRoute(r); route != nil {
		if tmpl, err := route.GetPathTemplate(); err == nil {
			return tmpl
		}
	}
	return "unmatched"
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}
