package metrics

import (
	"regexp"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	reliabilityLabelSanitizer = regexp.MustCompile(`[^a-z0-9_]+`)

	sessionLifecycleTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "muxfleet",
			Subsystem: "reliability",
			Name:      "session_lifecycle_total",
			Help:      "Total session lifecycle transitions by action and outcome",
		},
		[]string{"action", "result"},
	)

	bridgeOpenFailuresTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "muxfleet",
			Subsystem: "reliability",
			Name:      "bridge_open_failures_total",
			Help:      "Total terminal bridge open attempts that failed, by reason",
		},
		[]string{"reason"},
	)

	hostUnreachableTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "muxfleet",
			Subsystem: "reliability",
			Name:      "host_unreachable_total",
			Help:      "Total discovery cycles where a host could not be reached, by host",
		},
		[]string{"host"},
	)
)

// RecordSessionLifecycle records a create/attach/delete/hide transition
// (action) and whether it succeeded (result).
func RecordSessionLifecycle(action, result string) {
	sessionLifecycleTotal.WithLabelValues(
		sanitizeReliabilityLabel(action, "unknown"),
		sanitizeReliabilityLabel(result, "unknown"),
	).Inc()
}

// RecordBridgeOpenFailure records a failed attach/bridge-open attempt.
func RecordBridgeOpenFailure(reason string) {
	bridgeOpenFailuresTotal.WithLabelValues(
		sanitizeReliabilityLabel(reason, "unknown"),
	).Inc()
}

// RecordHostUnreachable records a discovery cycle that could not reach host.
func RecordHostUnreachable(host string) {
	hostUnreachableTotal.WithLabelValues(
		sanitizeReliabilityLabel(host, "unknown"),
	).Inc()
}

func sanitizeReliabilityLabel(raw, fallback string) string {
	s := strings.ToLower(strings.TrimSpace(raw))
	if s == "" {
		return fallback
	}
	s = reliabilityLabelSanitizer.ReplaceAllString(s, "_")
	s = strings.Trim(s, "_")
	if s == "" {
		return fallback
	}
	if len(s) > 63 {
		s = s[:63]
	}
	return s
}
