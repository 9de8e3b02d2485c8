// Package metrics exposes Prometheus instrumentation for the assistant.
// All Record helpers are safe on a nil *Metrics so components can run
// unmetered.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the assistant.
type Metrics struct {
	registry *prometheus.Registry

	// Realtime session metrics
	SessionsActive   prometheus.Gauge
	SessionsTotal    *prometheus.CounterVec
	SessionDuration  prometheus.Histogram
	ReconnectsTotal  prometheus.Counter
	AudioBytesTotal  *prometheus.CounterVec
	TranscriptsTotal prometheus.Counter

	// Agent metrics
	RunsTotal      *prometheus.CounterVec
	RunSteps       prometheus.Histogram
	RunDuration    prometheus.Histogram
	ToolCallsTotal *prometheus.CounterVec

	// Safety gate metrics
	GateChecksTotal *prometheus.CounterVec
}

// NewMetrics creates a Metrics instance with all metrics registered.
func NewMetrics(namespace string) *Metrics {
	if namespace == "" {
		namespace = "voicenav"
	}

	registry := prometheus.NewRegistry()

	sessionsActive := prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "sessions_active",
			Help:      "Number of active realtime sessions",
		},
	)

	sessionsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sessions_total",
			Help:      "Total number of realtime sessions",
		},
		[]string{"status"},
	)

	sessionDuration := prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "session_duration_seconds",
			Help:      "Realtime session duration in seconds",
			Buckets:   []float64{1, 5, 10, 30, 60, 120, 300, 600, 1800},
		},
	)

	reconnectsTotal := prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "session_reconnects_total",
			Help:      "Total number of realtime session reconnect attempts",
		},
	)

	audioBytesTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "audio_bytes_total",
			Help:      "Total PCM audio bytes processed",
		},
		[]string{"direction"},
	)

	transcriptsTotal := prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "transcripts_total",
			Help:      "Total number of completed user transcripts",
		},
	)

	runsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "agent_runs_total",
			Help:      "Total number of agent task runs",
		},
		[]string{"outcome"},
	)

	runSteps := prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "agent_run_steps",
			Help:      "Model requests issued per agent run",
			Buckets:   []float64{1, 2, 3, 5, 8, 12, 18},
		},
	)

	runDuration := prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "agent_run_duration_seconds",
			Help:      "Agent run duration in seconds",
			Buckets:   []float64{0.5, 1, 2, 5, 10, 30, 60, 120},
		},
	)

	toolCallsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tool_calls_total",
			Help:      "Total number of tool calls executed",
		},
		[]string{"tool", "status"},
	)

	gateChecksTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "gate_checks_total",
			Help:      "Safety gate decisions by outcome",
		},
		[]string{"decision"},
	)

	registry.MustRegister(
		sessionsActive,
		sessionsTotal,
		sessionDuration,
		reconnectsTotal,
		audioBytesTotal,
		transcriptsTotal,
		runsTotal,
		runSteps,
		runDuration,
		toolCallsTotal,
		gateChecksTotal,
	)

	return &Metrics{
		registry:         registry,
		SessionsActive:   sessionsActive,
		SessionsTotal:    sessionsTotal,
		SessionDuration:  sessionDuration,
		ReconnectsTotal:  reconnectsTotal,
		AudioBytesTotal:  audioBytesTotal,
		TranscriptsTotal: transcriptsTotal,
		RunsTotal:        runsTotal,
		RunSteps:         runSteps,
		RunDuration:      runDuration,
		ToolCallsTotal:   toolCallsTotal,
		GateChecksTotal:  gateChecksTotal,
	}
}

// Handler returns an HTTP handler for the metrics endpoint.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// RecordSessionStart records a realtime session starting.
func (m *Metrics) RecordSessionStart() {
	if m == nil {
		return
	}
	m.SessionsActive.Inc()
}

// RecordSessionEnd records a realtime session ending.
func (m *Metrics) RecordSessionEnd(status string, duration time.Duration) {
	if m == nil {
		return
	}
	m.SessionsActive.Dec()
	m.SessionsTotal.WithLabelValues(status).Inc()
	m.SessionDuration.Observe(duration.Seconds())
}

// RecordReconnect records a reconnect attempt.
func (m *Metrics) RecordReconnect() {
	if m == nil {
		return
	}
	m.ReconnectsTotal.Inc()
}

// RecordAudio records PCM bytes moving in the given direction.
func (m *Metrics) RecordAudio(direction string, bytes int) {
	if m == nil || bytes <= 0 {
		return
	}
	m.AudioBytesTotal.WithLabelValues(direction).Add(float64(bytes))
}

// RecordTranscript records a completed user transcript.
func (m *Metrics) RecordTranscript() {
	if m == nil {
		return
	}
	m.TranscriptsTotal.Inc()
}

// RecordRun records a completed agent run.
func (m *Metrics) RecordRun(outcome string, steps int, duration time.Duration) {
	if m == nil {
		return
	}
	m.RunsTotal.WithLabelValues(outcome).Inc()
	m.RunSteps.Observe(float64(steps))
	m.RunDuration.Observe(duration.Seconds())
}

// RecordToolCall records one executed tool call.
func (m *Metrics) RecordToolCall(tool, status string) {
	if m == nil {
		return
	}
	m.ToolCallsTotal.WithLabelValues(tool, status).Inc()
}

// RecordGateCheck records a safety gate decision.
func (m *Metrics) RecordGateCheck(decision string) {
	if m == nil {
		return
	}
	m.GateChecksTotal.WithLabelValues(decision).Inc()
}
