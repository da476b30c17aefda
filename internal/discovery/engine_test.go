package discovery

import (
	"context"
	"strings"
	"testing"
	"time"

	"muxfleet/internal/muxadapter"
	"muxfleet/internal/store"
	"muxfleet/pkg/types"
)

// fakeExec answers muxadapter argv with canned output keyed by the
// subcommand (argv[1], after the tmux binary) and, for list-panes, the -t
// session name, enough to drive list-sessions and list-panes without a
// real remote host.
type fakeExec struct {
	listSessions string
	listPanes    map[string]string // keyed by session name
}

func (f *fakeExec) Exec(ctx context.Context, hostID string, argv []string) (string, error) {
	if len(argv) < 2 {
		return "", nil
	}
	switch argv[1] {
	case "list-sessions":
		return f.listSessions, nil
	case "list-panes":
		// argv: [tmux list-panes -t <name> -F <fmt>]
		name := argv[3]
		return f.listPanes[name], nil
	default:
		return "", nil
	}
}

func newTestEngine(t *testing.T, conns hostExecutor) (*Engine, *store.BindingStore) {
	t.Helper()
	bindings, err := store.NewBindingStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewBindingStore: %v", err)
	}
	hosts := []types.HostConfig{{ID: "host1", Name: "Host One"}}
	eng := NewEngine(conns, bindings, hosts, "claude", 2*time.Second)
	return eng, bindings
}

func TestRunCycle_DiscoversRemoteSessionAndPublishesWhenManaged(t *testing.T) {
	fe := &fakeExec{
		listSessions: strings.Join([]string{"$0", "work", "1", "1700000000"}, fieldDelimiterForTest()) + "\n",
		listPanes: map[string]string{
			"work": strings.Join([]string{"%0", "1234", "bash", "80", "24", "0", "/home/ada"}, fieldDelimiterForTest()) + "\n",
		},
	}
	eng, bindings := newTestEngine(t, fe)

	eng.RunCycle(context.Background())

	id := "host1:$0:%0"
	if _, ok := eng.byID[id]; !ok {
		t.Fatalf("expected session %s discovered, got %v", id, eng.byID)
	}

	// Unmanaged sessions are not published.
	snap := eng.Snapshot(false)
	if len(snap) != 0 {
		t.Fatalf("expected no published sessions before managing, got %d", len(snap))
	}

	if err := bindings.AddManaged(id, nil); err != nil {
		t.Fatalf("AddManaged: %v", err)
	}
	snap = eng.Snapshot(false)
	if len(snap) != 1 || snap[0].ID != id {
		t.Fatalf("expected managed session published, got %+v", snap)
	}
}

func TestRunCycle_MissingManagedSessionMarkedTerminated(t *testing.T) {
	fe := &fakeExec{
		listSessions: strings.Join([]string{"$0", "work", "1", "1700000000"}, fieldDelimiterForTest()) + "\n",
		listPanes: map[string]string{
			"work": strings.Join([]string{"%0", "1234", "bash", "80", "24", "0", "/home/ada"}, fieldDelimiterForTest()) + "\n",
		},
	}
	eng, bindings := newTestEngine(t, fe)
	id := "host1:$0:%0"

	eng.RunCycle(context.Background())
	if err := bindings.AddManaged(id, nil); err != nil {
		t.Fatalf("AddManaged: %v", err)
	}

	// Second cycle: the host now reports no sessions.
	fe.listSessions = ""
	fe.listPanes = nil
	eng.RunCycle(context.Background())

	snap := eng.Snapshot(false)
	if len(snap) != 1 || snap[0].Status != types.SessionTerminated {
		t.Fatalf("expected terminated carry-forward, got %+v", snap)
	}
}

func TestListAvailableFor_ExcludesManagedSessions(t *testing.T) {
	fe := &fakeExec{
		listSessions: strings.Join([]string{"$0", "work", "1", "1700000000"}, fieldDelimiterForTest()) +
			"\n" + strings.Join([]string{"$1", "scratch", "1", "1700000001"}, fieldDelimiterForTest()) + "\n",
		listPanes: map[string]string{
			"work":    strings.Join([]string{"%0", "1234", "bash", "80", "24", "0", "/home/ada"}, fieldDelimiterForTest()) + "\n",
			"scratch": strings.Join([]string{"%0", "5678", "bash", "80", "24", "0", "/home/ada"}, fieldDelimiterForTest()) + "\n",
		},
	}
	eng, bindings := newTestEngine(t, fe)
	eng.RunCycle(context.Background())

	if err := bindings.AddManaged("host1:$0:%0", nil); err != nil {
		t.Fatalf("AddManaged: %v", err)
	}

	avail := eng.ListAvailableFor("host1")
	if len(avail) != 1 || avail[0].ID != "host1:$1:%0" {
		t.Fatalf("expected only the unmanaged session available, got %+v", avail)
	}
}

func TestClassifyAssistant_FastPathExactCommand(t *testing.T) {
	eng, _ := newTestEngine(t, &fakeExec{})
	host := types.HostConfig{ID: "host1"}
	sl := muxadapter.SessionListing{MuxSessionID: "$0", SessionName: "work"}
	p := muxadapter.PaneListing{PaneID: "%0", PID: 1234, CurrentCommand: "claude"}
	got := eng.classifyAssistant(context.Background(), host, sl, p)
	if !got {
		t.Fatalf("expected fast classifier to match exact command")
	}
}

// fieldDelimiterForTest avoids importing muxadapter's unexported constant
// twice under two names in the same package.
func fieldDelimiterForTest() string { return "|||" }
