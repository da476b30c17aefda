package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"muxfleet/internal/bridge"
	"muxfleet/internal/config"
	"muxfleet/internal/discovery"
	"muxfleet/internal/hostconn"
	"muxfleet/internal/store"
	"muxfleet/pkg/types"
)

// fakeBackend is a scriptable double standing in for both the Connection
// Manager (connExecutor) and the Discovery Engine's hostExecutor, so tests
// exercise the handlers' tmux-argv construction without a real mux binary
// or SSH client. It understands just enough of the multiplexer's argv
// shapes (new-session/kill-session/has-session/list-sessions/list-panes)
// to make session create/attach/delete round-trip.
type fakeBackend struct {
	mu          sync.Mutex
	sessions    []string
	missingDirs map[string]bool
}

func (f *fakeBackend) Exec(ctx context.Context, hostID string, argv []string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(argv) == 0 {
		return "", nil
	}
	if argv[0] == "ls" {
		dir := argv[len(argv)-1]
		if f.missingDirs[dir] {
			return "", fmt.Errorf("ls: cannot access %s: No such file or directory", dir)
		}
		return "", nil
	}
	if argv[0] != "tmux" {
		return "", nil
	}
	argv = argv[1:]
	switch argv[0] {
	case "new-session":
		name := argAfter(argv, "-s")
		f.sessions = append(f.sessions, name)
		return "", nil
	case "kill-session":
		name := argAfter(argv, "-t")
		f.remove(name)
		return "", nil
	case "has-session":
		name := argAfter(argv, "-t")
		if f.contains(name) {
			return "", nil
		}
		return "", fmt.Errorf("can't find session: %s", name)
	case "list-sessions":
		var b strings.Builder
		for i, name := range f.sessions {
			fmt.Fprintf(&b, "$%d|||%s|||1|||1700000000\n", i, name)
		}
		return b.String(), nil
	case "list-panes":
		name := argAfter(argv, "-t")
		if !f.contains(name) {
			return "", nil
		}
		return "%0|||1234|||bash|||80|||24|||0|||/tmp\n", nil
	default:
		return "", nil
	}
}

func (f *fakeBackend) remove(name string) {
	out := f.sessions[:0]
	for _, s := range f.sessions {
		if s != name {
			out = append(out, s)
		}
	}
	f.sessions = out
}

func (f *fakeBackend) contains(name string) bool {
	for _, s := range f.sessions {
		if s == name {
			return true
		}
	}
	return false
}

func (f *fakeBackend) Disconnect(hostID string) {}

func (f *fakeBackend) TestDirect(ctx context.Context, hostCfg types.HostConfig) hostconn.TestResult {
	return hostconn.TestResult{OK: true}
}

func argAfter(argv []string, flag string) string {
	for i, a := range argv {
		if a == flag && i+1 < len(argv) {
			return argv[i+1]
		}
	}
	return ""
}

// testHarness bundles a Server with direct access to its collaborators, so
// tests can both drive HTTP requests and inspect/mutate state underneath.
type testHarness struct {
	srv     *Server
	backend *fakeBackend
	disc    *discovery.Engine
	router  *gin.Engine
}

func newTestHarness(t *testing.T, remoteHosts []types.HostConfig) *testHarness {
	t.Helper()
	gin.SetMode(gin.TestMode)

	baseDir := t.TempDir()
	st, err := store.New(baseDir)
	if err != nil {
		t.Fatalf("store.New: %v", err)
	}
	hostStore, err := config.NewHostStore(baseDir + "/hosts.json")
	if err != nil {
		t.Fatalf("config.NewHostStore: %v", err)
	}
	for _, h := range remoteHosts {
		if err := hostStore.Add(h); err != nil {
			t.Fatalf("seeding host %s: %v", h.ID, err)
		}
	}

	backend := &fakeBackend{}
	disc := discovery.NewEngine(backend, st.Bindings, remoteHosts, "", time.Hour)
	bridges := bridge.NewRegistry()

	srv := &Server{store: st, hosts: hostStore, conns: backend, discovery: disc, bridges: bridges}
	router := gin.New()
	srv.RegisterRoutes(router.Group("/api"))

	return &testHarness{srv: srv, backend: backend, disc: disc, router: router}
}

func (h *testHarness) do(t *testing.T, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.router.ServeHTTP(rec, req)
	return rec
}

func decodeResponse(t *testing.T, rec *httptest.ResponseRecorder) response {
	t.Helper()
	var r response
	if err := json.Unmarshal(rec.Body.Bytes(), &r); err != nil {
		t.Fatalf("decode response: %v (body=%s)", err, rec.Body.String())
	}
	return r
}

func remoteTestHost(id string) types.HostConfig {
	return types.HostConfig{
		ID: id, Name: id, Hostname: id + ".example.com", Port: 22, Username: "dev",
		Auth: types.HostAuth{UseAgent: true},
	}
}
