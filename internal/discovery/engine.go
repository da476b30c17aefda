// Package discovery implements the periodic, parallel session enumeration
// that builds the authoritative session snapshot: local and remote
// multiplexer enumeration, pane enrichment, diffing against the previous
// cycle, joining with the persisted bindings, and publication to
// subscribers (the Client Fan-out Hub).
package discovery

import (
	"context"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"muxfleet/internal/logging"
	"muxfleet/internal/muxadapter"
	"muxfleet/internal/store"
	"muxfleet/pkg/types"
)

const (
	enrichmentTimeout       = 500 * time.Millisecond
	activityFileFreshWindow = 30 * time.Second
	userInputScanLines      = 50
)

const muxBinary = muxadapter.MuxBinary

var localHost = types.HostConfig{ID: "local", Name: "local"}

// hostExecutor is the narrow slice of hostconn.Manager the engine depends
// on, letting tests substitute a fake without standing up real SSH clients.
type hostExecutor interface {
	Exec(ctx context.Context, hostID string, argv []string) (string, error)
}

// Engine owns the authoritative session map. Mutations to the persisted
// binding/hidden state flow through it so every write is followed by a
// republish, per the "notify only after the write succeeds" rule.
type Engine struct {
	conns            hostExecutor
	bindings         *store.BindingStore
	hosts            []types.HostConfig
	assistantCLIName string
	pollInterval     time.Duration

	cycleInFlight atomic.Bool

	mu         sync.RWMutex
	byID       map[string]types.Session                    // every discovered-or-carried-forward session, keyed by id
	hostOf     map[string][]string                         // host id -> session ids last discovered on it, for listAvailableFor
	liveStatus map[string]types.AssistantOperationStatus // session id -> status from the Bridge's live detector, overlaid onto the next snapshot

	subMu       sync.Mutex
	subscribers []func([]types.Session)

	stopOnce sync.Once
	stop     chan struct{}
}

// NewEngine builds an Engine. hosts should list every remote host only;
// "local" is handled implicitly and must not appear in hosts.
func NewEngine(conns hostExecutor, bindings *store.BindingStore, hosts []types.HostConfig, assistantCLIName string, pollInterval time.Duration) *Engine {
	return &Engine{
		conns:            conns,
		bindings:         bindings,
		hosts:            hosts,
		assistantCLIName: assistantCLIName,
		pollInterval:     pollInterval,
		byID:             make(map[string]types.Session),
		hostOf:           make(map[string][]string),
		liveStatus:       make(map[string]types.AssistantOperationStatus),
		stop:             make(chan struct{}),
	}
}

// Subscribe registers fn to receive every published snapshot (managed,
// non-hidden sessions only, sorted by session id).
func (e *Engine) Subscribe(fn func([]types.Session)) {
	e.subMu.Lock()
	defer e.subMu.Unlock()
	e.subscribers = append(e.subscribers, fn)
}

// Start runs the periodic cycle until ctx is cancelled or Stop is called.
// Cycles never overlap: a tick that lands while the previous cycle is
// still running is skipped rather than queued, preferring freshness of
// completion over strict interval adherence.
func (e *Engine) Start(ctx context.Context) {
	ticker := time.NewTicker(e.pollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-e.stop:
			return
		case <-ticker.C:
			e.RunCycle(ctx)
		}
	}
}

// Stop ends the Start loop. Safe to call more than once.
func (e *Engine) Stop() {
	e.stopOnce.Do(func() { close(e.stop) })
}

// RunCycle runs one discovery cycle synchronously, skipping it entirely if
// a cycle is already in flight. Exported for tests and for an explicit
// on-demand refresh trigger from the control surface.
func (e *Engine) RunCycle(ctx context.Context) {
	if !e.cycleInFlight.CompareAndSwap(false, true) {
		logging.S().Debugw("discovery cycle skipped, previous cycle still running")
		return
	}
	defer e.cycleInFlight.Store(false)

	hosts := append([]types.HostConfig{localHost}, e.hosts...)
	results := make([][]types.Session, len(hosts))

	var wg sync.WaitGroup
	for i, h := range hosts {
		wg.Add(1)
		go func(i int, h types.HostConfig) {
			defer wg.Done()
			results[i] = e.enumerateHost(ctx, h)
		}(i, h)
	}
	wg.Wait()

	discovered := make(map[string]types.Session)
	hostOf := make(map[string][]string)
	for i, h := range hosts {
		var ids []string
		for _, s := range results[i] {
			discovered[s.ID] = s
			ids = append(ids, s.ID)
		}
		hostOf[h.ID] = ids
	}

	e.mu.Lock()
	// Any previously managed session missing from this cycle's discovery is
	// carried forward with status=terminated rather than dropped, so it
	// still shows up (and can be removed/re-attached) in the client list.
	for id, prev := range e.byID {
		if _, ok := discovered[id]; ok {
			continue
		}
		if e.bindings.IsManaged(id) {
			prev.Status = types.SessionTerminated
			discovered[id] = prev
		}
	}
	e.byID = discovered
	e.hostOf = hostOf
	for id := range e.liveStatus {
		if _, ok := discovered[id]; !ok {
			delete(e.liveStatus, id)
		}
	}
	e.mu.Unlock()

	e.publish(false)
}

// publish joins the current snapshot with the binding map and sends it to
// every subscriber. includeHidden controls whether hidden managed sessions
// are included (the default client-facing feed excludes them).
func (e *Engine) publish(includeHidden bool) {
	snap := e.Snapshot(includeHidden)
	e.subMu.Lock()
	subs := append([]func([]types.Session){}, e.subscribers...)
	e.subMu.Unlock()
	for _, fn := range subs {
		fn(snap)
	}
}

// Snapshot returns every managed session, joined with its workspace id,
// sorted by id for deterministic output. includeHidden additionally returns
// hidden managed sessions.
func (e *Engine) Snapshot(includeHidden bool) []types.Session {
	binding, hidden := e.bindings.Snapshot()

	e.mu.RLock()
	defer e.mu.RUnlock()

	out := make([]types.Session, 0, len(binding))
	for id, wid := range binding {
		sess, ok := e.byID[id]
		if !ok {
			continue
		}
		if _, isHidden := hidden[id]; isHidden && !includeHidden {
			continue
		}
		sess.WorkspaceID = wid
		if live, ok := e.liveStatus[id]; ok {
			sess.Enrichment.AssistantOperationStatus = live
		}
		out = append(out, sess)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// SetLiveAssistantStatus records sessionID's latest status as classified
// incrementally by its Bridge's StatusDetector (fed every output chunk
// while a client is attached), and republishes so subscribers see it
// without waiting for the next poll cycle. It overrides whatever
// enrichment's own classifier produced on the last discovery cycle, since
// the live detector sees output the polling cycle hasn't observed yet.
func (e *Engine) SetLiveAssistantStatus(sessionID string, status types.AssistantOperationStatus) {
	e.mu.Lock()
	if _, ok := e.byID[sessionID]; !ok {
		e.mu.Unlock()
		return
	}
	e.liveStatus[sessionID] = status
	e.mu.Unlock()
	e.publish(false)
}

// ListAvailableFor returns mux sessions discovered on hostID that are not
// currently managed, plus any hidden managed sessions on that host, for the
// attach dialog.
func (e *Engine) ListAvailableFor(hostID string) []types.Session {
	_, hidden := e.bindings.Snapshot()

	e.mu.RLock()
	defer e.mu.RUnlock()

	var out []types.Session
	for _, id := range e.hostOf[hostID] {
		sess, ok := e.byID[id]
		if !ok {
			continue
		}
		_, isHidden := hidden[id]
		if !e.bindings.IsManaged(id) || isHidden {
			out = append(out, sess)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// DiscoveredCountsByHost reports how many sessions the last cycle found on
// each host, keyed by host id, for the discovery gauge.
func (e *Engine) DiscoveredCountsByHost() map[string]int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	out := make(map[string]int, len(e.hostOf))
	for host, ids := range e.hostOf {
		out[host] = len(ids)
	}
	return out
}

// ManagedCount reports the number of managed sessions present in the
// current snapshot, regardless of hidden state, for the managed-session
// gauge. Binding entries with no discovered or carried-forward session are
// not counted.
func (e *Engine) ManagedCount() int {
	return len(e.Snapshot(true))
}
