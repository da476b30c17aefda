package bridge

import (
	"context"
	"testing"
)

func TestRegistry_GetOrCreateReturnsSameBridge(t *testing.T) {
	r := NewRegistry()
	shell := newFakeShell()
	b1 := r.GetOrCreate("sess-1", openerFor(shell, nil))
	b2 := r.GetOrCreate("sess-1", openerFor(shell, nil))
	if b1 != b2 {
		t.Fatalf("expected GetOrCreate to return the same bridge for the same session id")
	}
	if r.Count() != 1 {
		t.Fatalf("expected registry count 1, got %d", r.Count())
	}
}

func TestRegistry_ForgetsOnBridgeClose(t *testing.T) {
	r := NewRegistry()
	shell := newFakeShell()
	b := r.GetOrCreate("sess-2", openerFor(shell, nil))
	if _, _, err := b.Subscribe(context.Background(), "client-a", 80, 24); err != nil {
		t.Fatalf("subscribe: %v", err)
	}

	b.Unsubscribe("client-a")

	if _, ok := r.Get("sess-2"); ok {
		t.Fatalf("expected registry to forget closed bridge")
	}
	if r.Count() != 0 {
		t.Fatalf("expected registry count 0 after forget, got %d", r.Count())
	}
}

func TestRegistry_CloseAllClosesEveryBridge(t *testing.T) {
	r := NewRegistry()
	shellA := newFakeShell()
	shellB := newFakeShell()
	bA := r.GetOrCreate("sess-a", openerFor(shellA, nil))
	bB := r.GetOrCreate("sess-b", openerFor(shellB, nil))
	if _, _, err := bA.Subscribe(context.Background(), "client-a", 80, 24); err != nil {
		t.Fatalf("subscribe a: %v", err)
	}
	if _, _, err := bB.Subscribe(context.Background(), "client-b", 80, 24); err != nil {
		t.Fatalf("subscribe b: %v", err)
	}

	r.CloseAll()

	if bA.State() != stateClosed || bB.State() != stateClosed {
		t.Fatalf("expected both bridges closed")
	}
	if r.Count() != 0 {
		t.Fatalf("expected registry empty after CloseAll, got %d", r.Count())
	}
}

func TestRegistry_CloseBySessionID(t *testing.T) {
	r := NewRegistry()
	shell := newFakeShell()
	b := r.GetOrCreate("sess-3", openerFor(shell, nil))
	if _, _, err := b.Subscribe(context.Background(), "client-a", 80, 24); err != nil {
		t.Fatalf("subscribe: %v", err)
	}

	r.Close("sess-3")

	if b.State() != stateClosed {
		t.Fatalf("expected bridge closed via registry.Close")
	}
}

func TestRegistry_GetMissingReturnsFalse(t *testing.T) {
	r := NewRegistry()
	if _, ok := r.Get("does-not-exist"); ok {
		t.Fatalf("expected ok=false for missing session")
	}
}
