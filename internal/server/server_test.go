package server

import (
	"net/http/httptest"
	"path/filepath"
	"testing"

	"muxfleet/internal/config"
	"muxfleet/pkg/types"
)

func newTestServer(t *testing.T) *Server {
	t.Helper()
	dir := t.TempDir()
	cfg := config.Config{
		Server:    config.ServerConfig{Host: "127.0.0.1", Port: 18080},
		WebSocket: config.WebSocketConfig{Path: "/ws", HeartbeatMS: 30000},
		Discovery: config.DiscoveryConfig{PollMS: 2000},
	}
	srv, err := New(Options{
		Config:    cfg,
		DataDir:   dir,
		HostsPath: filepath.Join(dir, "hosts.json"),
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return srv
}

func TestNew_WiresEveryCollaborator(t *testing.T) {
	srv := newTestServer(t)
	if srv.hub == nil || srv.api == nil || srv.discovery == nil || srv.bridges == nil {
		t.Fatal("expected every collaborator to be constructed")
	}
}

func TestRouter_HealthzAndMetrics(t *testing.T) {
	srv := newTestServer(t)
	router := srv.router()

	rec := httptest.NewRecorder()
	req := httptest.NewRequest("GET", "/healthz", nil)
	router.ServeHTTP(rec, req)
	if rec.Code != 200 {
		t.Fatalf("expected 200 from /healthz, got %d", rec.Code)
	}

	rec = httptest.NewRecorder()
	req = httptest.NewRequest("GET", "/metrics", nil)
	router.ServeHTTP(rec, req)
	if rec.Code != 200 {
		t.Fatalf("expected 200 from /metrics, got %d", rec.Code)
	}
}

func TestGaugeableMethods_StartAtZero(t *testing.T) {
	srv := newTestServer(t)
	if got := srv.BridgeCount(); got != 0 {
		t.Fatalf("expected 0 bridges, got %d", got)
	}
	if got := srv.WebSocketClientCount(); got != 0 {
		t.Fatalf("expected 0 ws clients, got %d", got)
	}
	if got := srv.ManagedSessionCount(); got != 0 {
		t.Fatalf("expected 0 managed sessions, got %d", got)
	}
	if got := srv.DiscoveredSessionCounts(); len(got) != 0 {
		t.Fatalf("expected no discovered hosts yet, got %+v", got)
	}
}

func TestRouter_AuthEnabled_RejectsMissingToken(t *testing.T) {
	t.Helper()
	dir := t.TempDir()
	cfg := config.Config{
		Server:    config.ServerConfig{Host: "127.0.0.1", Port: 18081},
		WebSocket: config.WebSocketConfig{Path: "/ws", HeartbeatMS: 30000},
		Discovery: config.DiscoveryConfig{PollMS: 2000},
		Auth: config.AuthConfig{
			Enabled:      true,
			Secret:       "a1b2c3d4e5f6g7h8i9j0k1l2m3n4o5p6",
			Username:     "operator",
			TokenExpiryS: 3600,
		},
	}
	srv, err := New(Options{Config: cfg, DataDir: dir, HostsPath: filepath.Join(dir, "hosts.json")})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	router := srv.router()

	rec := httptest.NewRecorder()
	req := httptest.NewRequest("GET", "/api/sessions", nil)
	router.ServeHTTP(rec, req)
	if rec.Code != 401 {
		t.Fatalf("expected 401 without a bearer token, got %d", rec.Code)
	}
}

func TestShellOpenerFor_LocalVsRemote(t *testing.T) {
	srv := newTestServer(t)

	localOpener, err := srv.shellOpenerFor(types.Session{
		HostID: "local",
		Mux:    types.MuxCoordinates{SessionName: "demo"},
	})
	if err != nil || localOpener == nil {
		t.Fatalf("expected a local opener, got %v, err=%v", localOpener, err)
	}

	remoteOpener, err := srv.shellOpenerFor(types.Session{
		HostID: "box1",
		Mux:    types.MuxCoordinates{SessionName: "demo", PaneID: "%0"},
	})
	if err != nil || remoteOpener == nil {
		t.Fatalf("expected a remote opener, got %v, err=%v", remoteOpener, err)
	}
}
