package metrics

import (
	"context"
	"runtime"
	"time"
)

// Gaugeable is satisfied by any component this collector polls periodically
// for gauge-style metrics that have no natural per-event hook: bridge
// count, WebSocket client count, and per-host discovered-session counts.
type Gaugeable interface {
	BridgeCount() int
	WebSocketClientCount() int
	DiscoveredSessionCounts() map[string]int
	ManagedSessionCount() int
}

// PeriodicCollector samples gauge metrics that have no natural per-event
// hook on a fixed interval, the same ticker-driven shape this project used
// for its database-backed business metrics before those metrics existed.
type PeriodicCollector struct {
	metrics  *Metrics
	source   Gaugeable
	interval time.Duration
	stopCh   chan struct{}
}

// NewPeriodicCollector builds a collector sampling source every interval.
func NewPeriodicCollector(source Gaugeable, interval time.Duration) *PeriodicCollector {
	return &PeriodicCollector{
		metrics:  Get(),
		source:   source,
		interval: interval,
		stopCh:   make(chan struct{}),
	}
}

// Start begins periodic sampling until ctx is canceled or Stop is called.
func (pc *PeriodicCollector) Start(ctx context.Context) {
	go func() {
		pc.sample()
		ticker := time.NewTicker(pc.interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				pc.sample()
			case <-pc.stopCh:
				return
			case <-ctx.Done():
				return
			}
		}
	}()
}

// Stop halts periodic sampling.
func (pc *PeriodicCollector) Stop() {
	close(pc.stopCh)
}

func (pc *PeriodicCollector) sample() {
	pc.metrics.SetBridgesActive(pc.source.BridgeCount())
	pc.metrics.SetWebSocketClientsConnected(pc.source.WebSocketClientCount())
	pc.metrics.SetSessionsManaged(pc.source.ManagedSessionCount())
	for host, count := range pc.source.DiscoveredSessionCounts() {
		pc.metrics.SetSessionsDiscovered(host, count)
	}
	pc.metrics.GoroutineNum.Set(float64(runtime.NumGoroutine()))
}
