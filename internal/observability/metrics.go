package observability

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics collects Prometheus metrics for the application.
type Metrics struct {
	registry        *prometheus.Registry
	handler         http.Handler
	requestsTotal   *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	engine          *EngineMetrics
}

// EngineMetrics counts accounting-engine outcomes.
type EngineMetrics struct {
	entriesPosted      prometheus.Counter
	generationFailures *prometheus.CounterVec
	selfHeals          prometheus.Counter
	lowConfidence      prometheus.Counter
}

// NewMetrics initialises the registry and base metrics.
func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()
	requests := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "quipu_http_requests_total",
		Help: "HTTP requests by route and status code.",
	}, []string{"route", "code"})
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "quipu_http_request_duration_seconds",
		Help:    "HTTP request duration per route.",
		Buckets: prometheus.DefBuckets,
	}, []string{"route"})
	engine := &EngineMetrics{
		entriesPosted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "quipu_ledger_entries_posted_total",
			Help: "Journal entries posted by the rule engine.",
		}),
		generationFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "quipu_ledger_generation_failures_total",
			Help: "Entry generation failures by reason.",
		}, []string{"reason"}),
		selfHeals: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "quipu_ledger_mapping_selfheals_total",
			Help: "Role mappings created or corrected during generation.",
		}),
		lowConfidence: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "quipu_ledger_low_confidence_resolutions_total",
			Help: "Role resolutions that matched only on account nature.",
		}),
	}
	registry.MustRegister(requests, duration,
		engine.entriesPosted, engine.generationFailures, engine.selfHeals, engine.lowConfidence)
	return &Metrics{
		registry:        registry,
		handler:         promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		requestsTotal:   requests,
		requestDuration: duration,
		engine:          engine,
	}
}

// Handler returns the http.Handler for the /metrics endpoint.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, http.StatusText(http.StatusServiceUnavailable), http.StatusServiceUnavailable)
		})
	}
	return m.handler
}

// Engine exposes the engine counters.
func (m *Metrics) Engine() *EngineMetrics {
	if m == nil {
		return nil
	}
	return m.engine
}

// Registerer exposes the registry for custom metric registration.
func (m *Metrics) Registerer() prometheus.Registerer {
	if m == nil {
		return prometheus.DefaultRegisterer
	}
	return m.registry
}

// Middleware records metrics for each HTTP request.
func (m *Metrics) Middleware(next http.Handler) http.Handler {
	if m == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		recorder := statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(&recorder, r)
		route := routePattern(r)
		m.requestsTotal.WithLabelValues(route, strconv.Itoa(recorder.status)).Inc()
		m.requestDuration.WithLabelValues(route).Observe(time.Since(start).Seconds())
	})
}

// EntryPosted counts one successfully posted entry.
func (e *EngineMetrics) EntryPosted() {
	if e != nil {
		e.entriesPosted.Inc()
	}
}

// GenerationFailed counts one failed generation by reason.
func (e *EngineMetrics) GenerationFailed(reason string) {
	if e != nil {
		e.generationFailures.WithLabelValues(reason).Inc()
	}
}

// MappingSelfHealed counts one mapping correction.
func (e *EngineMetrics) MappingSelfHealed() {
	if e != nil {
		e.selfHeals.Inc()
	}
}

// LowConfidenceResolution counts one nature-only match.
func (e *EngineMetrics) LowConfidenceResolution() {
	if e != nil {
		e.lowConfidence.Inc()
	}
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func routePattern(r *http.Request) string {
	if routeCtx := chi.RouteContext(r.Context()); routeCtx != nil {
		if pattern := routeCtx.RoutePattern(); pattern != "" {
			return pattern
		}
	}
	return "unknown"
}
