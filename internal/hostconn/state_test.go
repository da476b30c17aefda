package hostconn

import (
	"testing"
	"time"

	"muxfleet/pkg/types"
)

func TestTransition_ConnectRequestedFromDisconnected(t *testing.T) {
	next, effects := transition(types.ConnDisconnected, 0, eventConnectRequested)
	if next != types.ConnConnecting {
		t.Fatalf("got %v, want connecting", next)
	}
	if len(effects) != 1 || effects[0] != effectDial {
		t.Fatalf("got %v, want [effectDial]", effects)
	}
}

func TestTransition_ReadyReceivedResetsAttempts(t *testing.T) {
	next, effects := transition(types.ConnConnecting, 3, eventReadyReceived)
	if next != types.ConnConnected {
		t.Fatalf("got %v, want connected", next)
	}
	if len(effects) != 1 || effects[0] != effectResetAttemptCounter {
		t.Fatalf("got %v, want [effectResetAttemptCounter]", effects)
	}
}

func TestTransition_MaxAttemptsStopsScheduling(t *testing.T) {
	next, effects := transition(types.ConnDisconnected, maxReconnectAttempts, eventReconnectTimerFired)
	if next != types.ConnError {
		t.Fatalf("got %v, want error", next)
	}
	if len(effects) != 1 || effects[0] != effectMarkMaxAttempts {
		t.Fatalf("got %v, want [effectMarkMaxAttempts]", effects)
	}
}

func TestTransition_ExplicitConnectResetsFromError(t *testing.T) {
	next, effects := transition(types.ConnError, maxReconnectAttempts, eventConnectRequested)
	if next != types.ConnConnecting {
		t.Fatalf("got %v, want connecting", next)
	}
	found := false
	for _, e := range effects {
		if e == effectResetAttemptCounter {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected effectResetAttemptCounter in %v", effects)
	}
}

func TestBackoffDelay(t *testing.T) {
	tests := []struct {
		attempt int
		want    time.Duration
	}{
		{1, 5 * time.Second},
		{2, 10 * time.Second},
		{3, 20 * time.Second},
		{4, 40 * time.Second},
		{5, 60 * time.Second}, // capped
		{10, 60 * time.Second},
	}
	for _, tt := range tests {
		if got := backoffDelay(tt.attempt); got != tt.want {
			t.Fatalf("attempt %d: got %v, want %v", tt.attempt, got, tt.want)
		}
	}
}
