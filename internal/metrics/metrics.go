// Package metrics provides Prometheus metrics for the fleet aggregator:
// HTTP surface, SSH connection pool, session discovery, terminal bridges,
// and the WebSocket fan-out hub.
package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	once     sync.Once
	instance *Metrics
)

// Metrics holds every Prometheus collector this service exports.
type Metrics struct {
	// HTTP Control Surface
	HTTPRequestsTotal    *prometheus.CounterVec
	HTTPRequestDuration  *prometheus.HistogramVec
	HTTPRequestsInFlight prometheus.Gauge
	HTTPResponseSize     *prometheus.HistogramVec

	// Host Connection Manager
	SSHConnectionsActive *prometheus.GaugeVec
	SSHDialsTotal         *prometheus.CounterVec
	SSHExecDuration       *prometheus.HistogramVec

	// Session Discovery Engine
	DiscoveryCycleDuration prometheus.Histogram
	DiscoveryCyclesTotal   *prometheus.CounterVec
	SessionsDiscovered     *prometheus.GaugeVec
	SessionsManaged        prometheus.Gauge

	// Terminal Bridges
	BridgesActive     prometheus.Gauge
	BridgeOutputBytes *prometheus.CounterVec
	RingBufferBytes   *prometheus.GaugeVec

	// WebSocket Fan-out Hub
	WebSocketClientsConnected prometheus.Gauge
	WebSocketMessagesTotal    *prometheus.CounterVec
	WebSocketMessageSize      *prometheus.HistogramVec

	// System
	BuildInfo    *prometheus.GaugeVec
	StartupTime  prometheus.Gauge
	GoroutineNum prometheus.Gauge
}

// Get returns the singleton Metrics instance, registering every collector
// exactly once regardless of how many times the process constructs
// components that hold a reference to it.
func Get() *Metrics {
	once.Do(func() {
		instance = newMetrics()
	})
	return instance
}

func newMetrics() *Metrics {
	m := &Metrics{}

	m.HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "muxfleet",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests by endpoint, method, and status code",
		},
		[]string{"endpoint", "method", "status"},
	)

	m.HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "muxfleet",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request duration in seconds",
			Buckets:   []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
		},
		[]string{"endpoint", "method"},
	)

	m.HTTPRequestsInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "muxfleet",
			Subsystem: "http",
			Name:      "requests_in_flight",
			Help:      "Current number of HTTP requests being processed",
		},
	)

	m.HTTPResponseSize = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "muxfleet",
			Subsystem: "http",
			Name:      "response_size_bytes",
			Help:      "HTTP response size in bytes",
			Buckets:   prometheus.ExponentialBuckets(100, 10, 8),
		},
		[]string{"endpoint"},
	)

	m.SSHConnectionsActive = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "muxfleet",
			Subsystem: "ssh",
			Name:      "connections_active",
			Help:      "Pooled SSH connections currently open, by host",
		},
		[]string{"host"},
	)

	m.SSHDialsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "muxfleet",
			Subsystem: "ssh",
			Name:      "dials_total",
			Help:      "Total SSH dial attempts by host and outcome",
		},
		[]string{"host", "result"},
	)

	m.SSHExecDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "muxfleet",
			Subsystem: "ssh",
			Name:      "exec_duration_seconds",
			Help:      "Remote command execution duration in seconds",
			Buckets:   []float64{.01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
		},
		[]string{"host"},
	)

	m.DiscoveryCycleDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "muxfleet",
			Subsystem: "discovery",
			Name:      "cycle_duration_seconds",
			Help:      "Duration of one full session-discovery sweep across every configured host",
			Buckets:   []float64{.01, .05, .1, .25, .5, 1, 2.5, 5, 10, 30},
		},
	)

	m.DiscoveryCyclesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "muxfleet",
			Subsystem: "discovery",
			Name:      "cycles_total",
			Help:      "Total discovery cycles by outcome",
		},
		[]string{"result"},
	)

	m.SessionsDiscovered = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "muxfleet",
			Subsystem: "discovery",
			Name:      "sessions_discovered",
			Help:      "Multiplexer sessions currently visible per host",
		},
		[]string{"host"},
	)

	m.SessionsManaged = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "muxfleet",
			Subsystem: "discovery",
			Name:      "sessions_managed",
			Help:      "Sessions currently bound into a workspace/managed binding",
		},
	)

	m.BridgesActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "muxfleet",
			Subsystem: "bridge",
			Name:      "active",
			Help:      "Terminal bridges currently open",
		},
	)

	m.BridgeOutputBytes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "muxfleet",
			Subsystem: "bridge",
			Name:      "output_bytes_total",
			Help:      "Total bytes pumped from pane output into bridge ring buffers",
		},
		[]string{"session_id"},
	)

	m.RingBufferBytes = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "muxfleet",
			Subsystem: "bridge",
			Name:      "ring_buffer_bytes",
			Help:      "Bytes currently occupied in a bridge's scrollback ring buffer",
		},
		[]string{"session_id"},
	)

	m.WebSocketClientsConnected = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "muxfleet",
			Subsystem: "hub",
			Name:      "clients_connected",
			Help:      "Current number of WebSocket clients attached to the fan-out hub",
		},
	)

	m.WebSocketMessagesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "muxfleet",
			Subsystem: "hub",
			Name:      "messages_total",
			Help:      "Total WebSocket messages by type and direction",
		},
		[]string{"type", "direction"},
	)

	m.WebSocketMessageSize = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "muxfleet",
			Subsystem: "hub",
			Name:      "message_size_bytes",
			Help:      "WebSocket message size in bytes",
			Buckets:   prometheus.ExponentialBuckets(100, 2, 10),
		},
		[]string{"type"},
	)

	m.BuildInfo = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "muxfleet",
			Subsystem: "build",
			Name:      "info",
			Help:      "Build information",
		},
		[]string{"version", "commit", "build_date"},
	)

	m.StartupTime = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "muxfleet",
			Subsystem: "server",
			Name:      "startup_timestamp",
			Help:      "Server startup timestamp",
		},
	)

	m.GoroutineNum = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "muxfleet",
			Subsystem: "server",
			Name:      "goroutines",
			Help:      "Current number of goroutines",
		},
	)

	m.StartupTime.Set(float64(time.Now().Unix()))

	return m
}

// RecordHTTPRequest records an HTTP request metric.
func (m *Metrics) RecordHTTPRequest(endpoint, method string, statusCode int, duration time.Duration, responseSize int) {
	status := statusCodeToLabel(statusCode)
	m.HTTPRequestsTotal.WithLabelValues(endpoint, method, status).Inc()
	m.HTTPRequestDuration.WithLabelValues(endpoint, method).Observe(duration.Seconds())
	m.HTTPResponseSize.WithLabelValues(endpoint).Observe(float64(responseSize))
}

// RecordSSHDial records the outcome of a dial attempt to host.
func (m *Metrics) RecordSSHDial(host string, ok bool) {
	result := "error"
	if ok {
		result = "ok"
	}
	m.SSHDialsTotal.WithLabelValues(host, result).Inc()
}

// RecordSSHExec records a remote command's wall-clock duration.
func (m *Metrics) RecordSSHExec(host string, duration time.Duration) {
	m.SSHExecDuration.WithLabelValues(host).Observe(duration.Seconds())
}

// SetSSHConnectionsActive sets the pooled-connection gauge for host.
func (m *Metrics) SetSSHConnectionsActive(host string, count int) {
	m.SSHConnectionsActive.WithLabelValues(host).Set(float64(count))
}

// RecordDiscoveryCycle records one discovery sweep's duration and outcome.
func (m *Metrics) RecordDiscoveryCycle(duration time.Duration, ok bool) {
	m.DiscoveryCycleDuration.Observe(duration.Seconds())
	result := "error"
	if ok {
		result = "ok"
	}
	m.DiscoveryCyclesTotal.WithLabelValues(result).Inc()
}

// SetSessionsDiscovered sets the per-host discovered-session gauge.
func (m *Metrics) SetSessionsDiscovered(host string, count int) {
	m.SessionsDiscovered.WithLabelValues(host).Set(float64(count))
}

// SetSessionsManaged sets the fleet-wide managed-session gauge.
func (m *Metrics) SetSessionsManaged(count int) {
	m.SessionsManaged.Set(float64(count))
}

// SetBridgesActive sets the open-bridge gauge.
func (m *Metrics) SetBridgesActive(count int) {
	m.BridgesActive.Set(float64(count))
}

// RecordBridgeOutput records bytes pumped from a pane into its bridge.
func (m *Metrics) RecordBridgeOutput(sessionID string, n int) {
	m.BridgeOutputBytes.WithLabelValues(sessionID).Add(float64(n))
}

// SetRingBufferBytes sets a bridge's current scrollback occupancy.
func (m *Metrics) SetRingBufferBytes(sessionID string, bytes int) {
	m.RingBufferBytes.WithLabelValues(sessionID).Set(float64(bytes))
}

// SetWebSocketClientsConnected sets the hub's connected-client gauge.
func (m *Metrics) SetWebSocketClientsConnected(count int) {
	m.WebSocketClientsConnected.Set(float64(count))
}

// RecordWebSocketMessage records a WebSocket message.
func (m *Metrics) RecordWebSocketMessage(msgType, direction string, size int) {
	m.WebSocketMessagesTotal.WithLabelValues(msgType, direction).Inc()
	m.WebSocketMessageSize.WithLabelValues(msgType).Observe(float64(size))
}

// SetBuildInfo sets build information.
func (m *Metrics) SetBuildInfo(version, commit, buildDate string) {
	m.BuildInfo.WithLabelValues(version, commit, buildDate).Set(1)
}

func statusCodeToLabel(code int) string {
	switch {
	case code >= 200 && code < 300:
		return "2xx"
	case code >= 300 && code < 400:
		return "3xx"
	case code >= 400 && code < 500:
		return "4xx"
	case code >= 500:
		return "5xx"
	default:
		return "unknown"
	}
}
