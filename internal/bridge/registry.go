package bridge

import "sync"

// Registry owns every live Bridge, keyed by session id. Bridges are created
// lazily on first subscribe and remove themselves (via Bridge's onClose
// callback) once their last subscriber leaves or the shell exits.
type Registry struct {
	mu      sync.Mutex
	bridges map[string]*Bridge
}

// NewRegistry constructs an empty bridge registry.
func NewRegistry() *Registry {
	return &Registry{bridges: make(map[string]*Bridge)}
}

// GetOrCreate returns the existing bridge for sessionID, or builds one using
// open (the Opener for this session's host/target, computed by the caller
// from the current discovery snapshot).
func (r *Registry) GetOrCreate(sessionID string, open Opener) *Bridge {
	r.mu.Lock()
	defer r.mu.Unlock()
	if b, ok := r.bridges[sessionID]; ok {
		return b
	}
	b := New(sessionID, open, r.forget)
	r.bridges[sessionID] = b
	return b
}

// Get returns the existing bridge for sessionID, if any.
func (r *Registry) Get(sessionID string) (*Bridge, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	b, ok := r.bridges[sessionID]
	return b, ok
}

func (r *Registry) forget(sessionID string) {
	r.mu.Lock()
	delete(r.bridges, sessionID)
	r.mu.Unlock()
}

// Close closes sessionID's bridge explicitly, if present — the control
// surface's session-kill operation routes through here.
func (r *Registry) Close(sessionID string) {
	r.mu.Lock()
	b, ok := r.bridges[sessionID]
	r.mu.Unlock()
	if ok {
		b.Close()
	}
}

// CloseAll tears down every bridge; used during graceful shutdown, before
// the Connection Manager disconnects.
func (r *Registry) CloseAll() {
	r.mu.Lock()
	bridges := make([]*Bridge, 0, len(r.bridges))
	for _, b := range r.bridges {
		bridges = append(bridges, b)
	}
	r.mu.Unlock()
	for _, b := range bridges {
		b.Close()
	}
}

// Count returns the number of live bridges, for the metrics gauge.
func (r *Registry) Count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.bridges)
}
