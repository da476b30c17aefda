// Package hub implements the Client Fan-out Hub: the WebSocket gateway that
// serves the session list to every connected client, streams per-session
// output to subscribers of that session, and dispatches client-issued
// input/resize/subscribe/unsubscribe control messages down to the Terminal
// Bridge registry. It reconciles subscription state across reconnects by
// keying subscriptions on session id, not on any per-connection handle.
package hub

import (
	"net/http"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"muxfleet/internal/bridge"
	"muxfleet/internal/discovery"
	"muxfleet/internal/logging"
	"muxfleet/pkg/types"
)

const (
	// defaultHeartbeatInterval is used only if the caller passes a zero
	// duration to New, so a misconfigured heartbeat_ms of 0 doesn't turn
	// into a ticker that fires every tick.
	defaultHeartbeatInterval = 30 * time.Second
	writeWait                = 10 * time.Second
	maxMessageSize           = 32 * 1024
	outboundBufferSize       = 256
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	CheckOrigin: func(r *http.Request) bool {
		allowed := os.Getenv("CORS_ALLOWED_ORIGINS")
		if allowed == "" {
			return os.Getenv("ENVIRONMENT") != "production"
		}
		origin := r.Header.Get("Origin")
		for _, a := range strings.Split(allowed, ",") {
			if strings.TrimSpace(a) == origin {
				return true
			}
		}
		return false
	},
}

// ShellOpenerFor resolves the Terminal Bridge Opener for a session, given
// the current discovery snapshot entry — the Hub defers entirely to the
// caller (the Server) for how a session's shell gets opened, since that
// decision depends on host connection state the Hub does not own.
type ShellOpenerFor func(session types.Session) (bridge.Opener, error)

// Hub owns every live client connection and the session subscription
// fan-out between Discovery, the Bridge registry, and connected clients.
type Hub struct {
	discovery *discovery.Engine
	bridges   *bridge.Registry
	openerFor ShellOpenerFor

	heartbeatInterval time.Duration
	pongWait          time.Duration

	mu      sync.RWMutex
	clients map[string]*client
}

// New constructs a Hub wired to the given Discovery Engine and Bridge
// Registry. openerFor is called once per session the first time a client
// subscribes to it. heartbeat is the configured WebSocket ping interval
// (config.WebSocket.HeartbeatMS); a zero value falls back to
// defaultHeartbeatInterval.
func New(disc *discovery.Engine, bridges *bridge.Registry, openerFor ShellOpenerFor, heartbeat time.Duration) *Hub {
	if heartbeat <= 0 {
		heartbeat = defaultHeartbeatInterval
	}
	h := &Hub{
		discovery:         disc,
		bridges:           bridges,
		openerFor:         openerFor,
		heartbeatInterval: heartbeat,
		pongWait:          2 * heartbeat,
		clients:           make(map[string]*client),
	}
	disc.Subscribe(h.broadcastSessions)
	return h
}

// ServeWS upgrades an HTTP request to a WebSocket connection and registers
// a new client. The caller's auth/CORS middleware has already run.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		logging.S().Warnw("hub: websocket upgrade failed", "err", err)
		return
	}

	c := newClient(uuid.NewString(), conn, h)
	h.addClient(c)

	go c.writePump()
	go c.readPump()

	c.send(sessionsMessage(h.discovery.Snapshot(false)))
}

func (h *Hub) addClient(c *client) {
	h.mu.Lock()
	h.clients[c.id] = c
	h.mu.Unlock()
}

// removeClient unsubscribes c from every bridge it was attached to and
// forgets it. Called once, from the client's readPump defer.
func (h *Hub) removeClient(c *client) {
	h.mu.Lock()
	delete(h.clients, c.id)
	h.mu.Unlock()

	for sessionID := range c.subscribedSessions() {
		if b, ok := h.bridges.Get(sessionID); ok {
			b.Unsubscribe(c.id)
		}
	}
}

// broadcastSessions is the Discovery subscriber callback: every published
// snapshot is fanned out to all connected clients.
func (h *Hub) broadcastSessions(sessions []types.Session) {
	msg := sessionsMessage(sessions)
	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, c := range h.clients {
		c.send(msg)
	}
}

// ClientCount returns the number of connected WebSocket clients, for the
// metrics gauge.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// resolveBridge returns (creating if necessary) the bridge for sessionID,
// looking up the session in the current snapshot to build its Opener.
func (h *Hub) resolveBridge(sessionID string) (*bridge.Bridge, error) {
	if b, ok := h.bridges.Get(sessionID); ok {
		return b, nil
	}
	session, ok := findSession(h.discovery.Snapshot(true), sessionID)
	if !ok {
		session, ok = findSession(h.discovery.ListAvailableFor(hostIDFromSessionID(sessionID)), sessionID)
	}
	if !ok {
		return nil, errSessionNotFound(sessionID)
	}
	open, err := h.openerFor(session)
	if err != nil {
		return nil, err
	}
	b := h.bridges.GetOrCreate(sessionID, open)
	if session.IsAssistantSession {
		b.EnableStatusDetection(func(status types.AssistantOperationStatus) {
			h.discovery.SetLiveAssistantStatus(sessionID, status)
		})
	}
	return b, nil
}

func findSession(sessions []types.Session, id string) (types.Session, bool) {
	for _, s := range sessions {
		if s.ID == id {
			return s, true
		}
	}
	return types.Session{}, false
}

func hostIDFromSessionID(sessionID string) string {
	i := strings.Index(sessionID, ":")
	if i < 0 {
		return sessionID
	}
	return sessionID[:i]
}
