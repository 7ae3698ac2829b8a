// Package metrics provides Prometheus metrics for the greenroom interview
// service.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Manager owns every metric registered by the service.
type Manager struct {
	namespace        string
	subsystem        string
	histogramBuckets []float64
	registry         *prometheus.Registry

	// Session lifecycle
	sessionsStarted prometheus.Counter
	sessionsEnded   prometheus.Counter
	sessionsReset   prometheus.Counter
	activeSessions  prometheus.Gauge

	// Turn processing
	turnsProcessed      prometheus.Counter
	turnLatency         prometheus.Histogram
	coachingFallbacks   prometheus.Counter
	duplicateRequests   prometheus.Counter
	questionsAsked      prometheus.Counter

	// External collaborators
	agentLatency *prometheus.HistogramVec
	agentErrors  *prometheus.CounterVec
	agentRetries *prometheus.CounterVec

	// Event bus
	eventsPublished  *prometheus.CounterVec
	handlerPanics    prometheus.Counter

	// Save pipeline
	saveQueueSize     prometheus.Gauge
	saveQueueDropped  prometheus.Counter
	savesCompleted    prometheus.Counter
	saveErrors        prometheus.Counter

	// HTTP
	httpRequests        *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec

	// Process
	systemMemoryUsage    prometheus.Gauge
	systemGoroutineCount prometheus.Gauge
}

// Option applies a configuration option to the Manager.
type Option func(*Manager)

// WithNamespace sets the namespace for all metrics.
func WithNamespace(namespace string) Option {
	return func(m *Manager) {
		if namespace != "" {
			m.namespace = namespace
		}
	}
}

// WithSubsystem sets the subsystem for all metrics.
func WithSubsystem(subsystem string) Option {
	return func(m *Manager) {
		if subsystem != "" {
			m.subsystem = subsystem
		}
	}
}

// WithHistogramBuckets overrides the latency histogram buckets.
func WithHistogramBuckets(buckets []float64) Option {
	return func(m *Manager) {
		if len(buckets) > 0 {
			m.histogramBuckets = buckets
		}
	}
}

var globalManager *Manager //nolint:gochecknoglobals // singleton metrics manager

func init() { //nolint:gochecknoinits // global metrics setup
	globalManager = NewManager()
}

// NewManager creates a metrics Manager on its own registry, keeping the
// default registry free of duplicate collectors during tests.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		namespace:        "greenroom",
		subsystem:        "interview",
		histogramBuckets: prometheus.DefBuckets,
		registry:         prometheus.NewRegistry(),
	}
	for _, opt := range opts {
		opt(m)
	}
	m.register()
	return m
}

func (m *Manager) register() {
	auto := promauto.With(m.registry)

	m.sessionsStarted = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem,
		Name: "sessions_started_total",
		Help: "Total number of interview sessions started",
	})
	m.sessionsEnded = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem,
		Name: "sessions_ended_total",
		Help: "Total number of interview sessions ended",
	})
	m.sessionsReset = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem,
		Name: "sessions_reset_total",
		Help: "Total number of interview sessions reset",
	})
	m.activeSessions = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace, Subsystem: m.subsystem,
		Name: "active_sessions",
		Help: "Number of sessions currently resident in memory",
	})

	m.turnsProcessed = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem,
		Name: "turns_processed_total",
		Help: "Total number of user turns processed",
	})
	m.turnLatency = auto.NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace, Subsystem: m.subsystem,
		Name:    "turn_latency_milliseconds",
		Help:    "End-to-end latency of one turn-processing operation",
		Buckets: m.histogramBuckets,
	})
	m.coachingFallbacks = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem,
		Name: "coaching_fallbacks_total",
		Help: "Turns whose coaching feedback was substituted by the fallback",
	})
	m.duplicateRequests = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem,
		Name: "duplicate_requests_total",
		Help: "Message requests rejected as duplicates by request id",
	})
	m.questionsAsked = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem,
		Name: "questions_asked_total",
		Help: "Total number of interview questions asked",
	})

	m.agentLatency = auto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: m.namespace, Subsystem: m.subsystem,
		Name:    "agent_latency_milliseconds",
		Help:    "Latency of external collaborator calls",
		Buckets: m.histogramBuckets,
	}, []string{"agent", "op"})
	m.agentErrors = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem,
		Name: "agent_errors_total",
		Help: "Failed external collaborator calls after retries",
	}, []string{"agent", "op"})
	m.agentRetries = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem,
		Name: "agent_retries_total",
		Help: "Retried external collaborator calls",
	}, []string{"agent", "op"})

	m.eventsPublished = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem,
		Name: "bus_events_total",
		Help: "Events published on the in-process bus by kind",
	}, []string{"kind"})
	m.handlerPanics = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem,
		Name: "bus_handler_panics_total",
		Help: "Bus handlers that panicked and were isolated",
	})

	m.saveQueueSize = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace, Subsystem: m.subsystem,
		Name: "save_queue_size",
		Help: "Current depth of the write-behind save queue",
	})
	m.saveQueueDropped = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem,
		Name: "save_queue_dropped_total",
		Help: "Save jobs rejected because the queue was full or closed",
	})
	m.savesCompleted = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem,
		Name: "saves_completed_total",
		Help: "Session snapshots persisted by the save workers",
	})
	m.saveErrors = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem,
		Name: "save_errors_total",
		Help: "Session snapshot persistence failures",
	})

	m.httpRequests = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem,
		Name: "http_requests_total",
		Help: "HTTP requests by endpoint, method and status code",
	}, []string{"endpoint", "method", "status_code"})
	m.httpRequestDuration = auto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: m.namespace, Subsystem: m.subsystem,
		Name:    "http_request_duration_milliseconds",
		Help:    "HTTP request duration by endpoint, method and status code",
		Buckets: m.histogramBuckets,
	}, []string{"endpoint", "method", "status_code"})

	m.systemMemoryUsage = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace, Subsystem: "system",
		Name: "memory_usage_bytes",
		Help: "Current heap allocation of the process",
	})
	m.systemGoroutineCount = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace, Subsystem: "system",
		Name: "goroutine_count",
		Help: "Current number of goroutines",
	})
}

// Handler exposes the manager's registry in Prometheus text format.
func (m *Manager) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Handler exposes the global registry.
func Handler() http.Handler { return globalManager.Handler() }

// Package-level helpers against the global manager.

func RecordSessionStarted() { globalManager.sessionsStarted.Inc() }
func RecordSessionEnded()   { globalManager.sessionsEnded.Inc() }
func RecordSessionReset()   { globalManager.sessionsReset.Inc() }

func UpdateActiveSessions(n int) { globalManager.activeSessions.Set(float64(n)) }

func RecordTurnProcessed()                { globalManager.turnsProcessed.Inc() }
func RecordTurnLatency(latencyMs float64) { globalManager.turnLatency.Observe(latencyMs) }
func RecordCoachingFallback()             { globalManager.coachingFallbacks.Inc() }
func RecordDuplicateRequest()             { globalManager.duplicateRequests.Inc() }
func RecordQuestionAsked()                { globalManager.questionsAsked.Inc() }

func RecordAgentLatency(agent, op string, latencyMs float64) {
	globalManager.agentLatency.WithLabelValues(agent, op).Observe(latencyMs)
}

func RecordAgentError(agent, op string) {
	globalManager.agentErrors.WithLabelValues(agent, op).Inc()
}

func RecordAgentRetry(agent, op string) {
	globalManager.agentRetries.WithLabelValues(agent, op).Inc()
}

func RecordEventPublished(kind string) {
	globalManager.eventsPublished.WithLabelValues(kind).Inc()
}

func RecordHandlerPanic() { globalManager.handlerPanics.Inc() }

func UpdateSaveQueueSize(n int)  { globalManager.saveQueueSize.Set(float64(n)) }
func RecordSaveQueueDropped()    { globalManager.saveQueueDropped.Inc() }
func RecordSaveCompleted()       { globalManager.savesCompleted.Inc() }
func RecordSaveError()           { globalManager.saveErrors.Inc() }

func RecordHTTPRequest(endpoint, method, statusCode string) {
	globalManager.httpRequests.WithLabelValues(endpoint, method, statusCode).Inc()
}

func RecordHTTPRequestDuration(endpoint, method, statusCode string, durationMs float64) {
	globalManager.httpRequestDuration.WithLabelValues(endpoint, method, statusCode).Observe(durationMs)
}

func UpdateSystemMemoryUsage(bytes uint64) { globalManager.systemMemoryUsage.Set(float64(bytes)) }
func UpdateSystemGoroutineCount(n int)     { globalManager.systemGoroutineCount.Set(float64(n)) }
