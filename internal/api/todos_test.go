package api

import (
	"net/http"
	"testing"
)

func TestCreateTodo_RejectsEmptyText(t *testing.T) {
	h := newTestHarness(t, nil)
	rec := h.do(t, "POST", "/api/todos", createTodoRequest{})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d: %s", rec.Code, rec.Body.String())
	}
}

func TestListTodos_DefaultsToUnboundList(t *testing.T) {
	h := newTestHarness(t, nil)

	wsRec := h.do(t, "POST", "/api/workspaces", createWorkspaceRequest{Name: "infra"})
	ws := decodeResponse(t, wsRec).Data.(map[string]interface{})
	wsID := ws["id"].(string)

	h.do(t, "POST", "/api/todos", createTodoRequest{Text: "global todo"})
	h.do(t, "POST", "/api/todos", createTodoRequest{Text: "scoped todo", WorkspaceID: &wsID})

	rec := h.do(t, "GET", "/api/todos", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	list := decodeResponse(t, rec).Data.([]interface{})
	if len(list) != 1 {
		t.Fatalf("expected only the unbound todo, got %d: %+v", len(list), list)
	}

	rec = h.do(t, "GET", "/api/todos?workspace_id="+wsID, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	scoped := decodeResponse(t, rec).Data.([]interface{})
	if len(scoped) != 1 {
		t.Fatalf("expected only the scoped todo, got %d: %+v", len(scoped), scoped)
	}
}

func TestUpdateTodoThenDelete(t *testing.T) {
	h := newTestHarness(t, nil)
	rec := h.do(t, "POST", "/api/todos", createTodoRequest{Text: "ship it"})
	created := decodeResponse(t, rec).Data.(map[string]interface{})
	id := created["id"].(string)

	rec = h.do(t, "PUT", "/api/todos/"+id, updateTodoRequest{Completed: true})
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	rec = h.do(t, "DELETE", "/api/todos/"+id, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	rec = h.do(t, "DELETE", "/api/todos/"+id, nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404 on repeated delete, got %d", rec.Code)
	}
}
