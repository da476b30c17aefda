package store

import (
	"testing"
)

func TestWorkspaceNameLengthBoundary(t *testing.T) {
	s, err := New(t.TempDir())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	name50 := make([]byte, 50)
	for i := range name50 {
		name50[i] = 'a'
	}
	if _, err := s.Workspaces.Create(string(name50), ""); err != nil {
		t.Fatalf("expected 50-char name accepted, got %v", err)
	}

	name51 := append(name50, 'a')
	if _, err := s.Workspaces.Create(string(name51), ""); err == nil {
		t.Fatalf("expected 51-char name rejected")
	}
}

func TestWorkspaceDeleteCascadesBindings(t *testing.T) {
	s, err := New(t.TempDir())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	ws, err := s.Workspaces.Create("team-a", "")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	sessions := []string{"local:$0:%0", "local:$0:%1", "host1:$0:%0"}
	for _, sid := range sessions {
		wid := ws.ID
		if err := s.Bindings.AddManaged(sid, &wid); err != nil {
			t.Fatalf("AddManaged: %v", err)
		}
	}

	if err := s.DeleteWorkspace(ws.ID); err != nil {
		t.Fatalf("DeleteWorkspace: %v", err)
	}

	if _, ok := s.Workspaces.Get(ws.ID); ok {
		t.Fatalf("expected workspace record removed")
	}
	for _, sid := range sessions {
		wid, ok := s.Bindings.WorkspaceOf(sid)
		if !ok {
			t.Fatalf("expected session %s to remain managed", sid)
		}
		if wid != nil {
			t.Fatalf("expected session %s workspace cleared, got %v", sid, *wid)
		}
	}
}

func TestAddThenRemoveManaged_LeavesMapUnchanged(t *testing.T) {
	s, err := New(t.TempDir())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	before, _ := s.Bindings.Snapshot()

	if err := s.Bindings.AddManaged("local:$0:%0", nil); err != nil {
		t.Fatalf("AddManaged: %v", err)
	}
	if err := s.Bindings.RemoveManaged("local:$0:%0"); err != nil {
		t.Fatalf("RemoveManaged: %v", err)
	}

	after, _ := s.Bindings.Snapshot()
	if len(before) != len(after) {
		t.Fatalf("expected binding map unchanged, before=%d after=%d", len(before), len(after))
	}
}

func TestSetWorkspaceTwice_SameAsOnce(t *testing.T) {
	s, err := New(t.TempDir())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	wid := "w1"
	if err := s.Bindings.AddManaged("local:$0:%0", nil); err != nil {
		t.Fatalf("AddManaged: %v", err)
	}
	if err := s.Bindings.SetWorkspace("local:$0:%0", &wid); err != nil {
		t.Fatalf("SetWorkspace: %v", err)
	}
	if err := s.Bindings.SetWorkspace("local:$0:%0", &wid); err != nil {
		t.Fatalf("SetWorkspace (2nd): %v", err)
	}
	got, ok := s.Bindings.WorkspaceOf("local:$0:%0")
	if !ok || got == nil || *got != wid {
		t.Fatalf("expected workspace %q bound, got %v", wid, got)
	}
}

func TestHideThenUnhide_LeavesHiddenSetUnchanged(t *testing.T) {
	s, err := New(t.TempDir())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := s.Bindings.AddManaged("local:$0:%0", nil); err != nil {
		t.Fatalf("AddManaged: %v", err)
	}
	_, before := s.Bindings.Snapshot()

	if err := s.Bindings.Hide("local:$0:%0"); err != nil {
		t.Fatalf("Hide: %v", err)
	}
	if err := s.Bindings.Unhide("local:$0:%0"); err != nil {
		t.Fatalf("Unhide: %v", err)
	}

	_, after := s.Bindings.Snapshot()
	if len(before) != len(after) {
		t.Fatalf("expected hidden set unchanged, before=%d after=%d", len(before), len(after))
	}
}

func TestPersistence_ReadAfterWriteRoundTrips(t *testing.T) {
	dir := t.TempDir()
	s, err := New(dir)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	ws, err := s.Workspaces.Create("persisted", "desc")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	reopened, err := New(dir)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	got, ok := reopened.Workspaces.Get(ws.ID)
	if !ok {
		t.Fatalf("expected workspace to round-trip through disk")
	}
	if got.Name != "persisted" || got.Description != "desc" {
		t.Fatalf("unexpected round-tripped workspace: %+v", got)
	}
}

func TestTodoStore_CreateAndComplete(t *testing.T) {
	s, err := New(t.TempDir())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	wid := "w1"
	td, err := s.Todos.Create(&wid, "write tests")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if err := s.Todos.SetCompleted(td.ID, true); err != nil {
		t.Fatalf("SetCompleted: %v", err)
	}
	list := s.Todos.ListByWorkspace(&wid)
	if len(list) != 1 || !list[0].Completed {
		t.Fatalf("expected one completed todo, got %+v", list)
	}
}

func TestBacklogStore_CreateAndStatus(t *testing.T) {
	s, err := New(t.TempDir())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	item, err := s.Backlog.Create("feature", "dark mode", "", "low")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if err := s.Backlog.SetStatus(item.ID, "done"); err != nil {
		t.Fatalf("SetStatus: %v", err)
	}
	list := s.Backlog.List()
	if len(list) != 1 || list[0].Status != "done" {
		t.Fatalf("expected one done item, got %+v", list)
	}
}
