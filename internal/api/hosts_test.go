package api

import (
	"net/http"
	"testing"

	"muxfleet/pkg/types"
)

func TestListHosts_IncludesLocalPseudoHost(t *testing.T) {
	h := newTestHarness(t, []types.HostConfig{remoteTestHost("box1")})
	rec := h.do(t, "GET", "/api/hosts", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	resp := decodeResponse(t, rec)
	list, ok := resp.Data.([]interface{})
	if !ok || len(list) != 2 {
		t.Fatalf("expected 2 hosts (local + box1), got %+v", resp.Data)
	}
	first := list[0].(map[string]interface{})
	if first["id"] != "local" {
		t.Fatalf("expected local host first, got %+v", first)
	}
}

func TestCreateHost_RejectsReservedLocalID(t *testing.T) {
	h := newTestHarness(t, nil)
	rec := h.do(t, "POST", "/api/hosts", hostRequest{ID: "local", Hostname: "x", Username: "dev"})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d: %s", rec.Code, rec.Body.String())
	}
}

func TestCreateHost_RejectsMissingAuth(t *testing.T) {
	h := newTestHarness(t, nil)
	rec := h.do(t, "POST", "/api/hosts", hostRequest{ID: "box1", Hostname: "x.example.com", Username: "dev"})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d: %s", rec.Code, rec.Body.String())
	}
}

func TestCreateHostThenUpdateThenDelete(t *testing.T) {
	h := newTestHarness(t, nil)
	create := hostRequest{
		ID: "box1", Name: "Box One", Hostname: "box1.example.com", Username: "dev",
		Auth: types.HostAuth{UseAgent: true},
	}
	rec := h.do(t, "POST", "/api/hosts", create)
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}

	update := create
	update.Name = "Renamed"
	rec = h.do(t, "PUT", "/api/hosts/box1", update)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	resp := decodeResponse(t, rec)
	got := resp.Data.(map[string]interface{})
	if got["name"] != "Renamed" || got["id"] != "box1" {
		t.Fatalf("expected renamed host with immutable id, got %+v", got)
	}

	rec = h.do(t, "DELETE", "/api/hosts/box1", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	rec = h.do(t, "DELETE", "/api/hosts/box1", nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404 on repeated delete, got %d", rec.Code)
	}
}

func TestTestHost_ReportsConnectivityWithoutPersisting(t *testing.T) {
	h := newTestHarness(t, nil)
	rec := h.do(t, "POST", "/api/hosts/test", hostRequest{
		ID: "scratch", Hostname: "scratch.example.com", Username: "dev",
		Auth: types.HostAuth{UseAgent: true},
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if _, ok := h.srv.hosts.Get("scratch"); ok {
		t.Fatalf("expected test-only host not to be persisted")
	}
}
