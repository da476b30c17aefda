package hostconn

import "muxfleet/pkg/types"

// event is a connection lifecycle event, consumed by the pure transition
// function so the reconnect/backoff logic is testable without real network
// I/O — the explicit-state-machine realization of the source's
// callback-heavy reconnect loop.
type event int

const (
	eventConnectRequested event = iota
	eventReadyReceived
	eventErrorOccurred
	eventCloseReceived
	eventReconnectTimerFired
	eventDisconnected
)

// effect is an instruction the caller must carry out after a transition;
// transition itself performs no I/O.
type effect int

const (
	effectNone effect = iota
	effectDial
	effectScheduleReconnect
	effectCancelReconnectTimer
	effectResetAttemptCounter
	effectMarkMaxAttempts
)

// transition is a pure (state, event) -> (state, []effect) function.
func transition(current types.ConnState, attempts int, ev event) (types.ConnState, []effect) {
	switch current {
	case types.ConnDisconnected:
		switch ev {
		case eventConnectRequested:
			return types.ConnConnecting, []effect{effectDial}
		case eventReconnectTimerFired:
			if attempts >= maxReconnectAttempts {
				return types.ConnError, []effect{effectMarkMaxAttempts}
			}
			return types.ConnConnecting, []effect{effectDial}
		}
	case types.ConnConnecting:
		switch ev {
		case eventReadyReceived:
			return types.ConnConnected, []effect{effectResetAttemptCounter}
		case eventErrorOccurred:
			return types.ConnDisconnected, []effect{effectScheduleReconnect}
		case eventCloseReceived:
			return types.ConnDisconnected, []effect{effectCancelReconnectTimer}
		}
	case types.ConnConnected:
		switch ev {
		case eventErrorOccurred, eventDisconnected:
			return types.ConnDisconnected, []effect{effectScheduleReconnect}
		case eventCloseReceived:
			return types.ConnDisconnected, []effect{effectCancelReconnectTimer}
		}
	case types.ConnError:
		switch ev {
		case eventConnectRequested:
			return types.ConnConnecting, []effect{effectResetAttemptCounter, effectDial}
		case eventCloseReceived:
			return types.ConnDisconnected, []effect{effectCancelReconnectTimer}
		}
	}
	if ev == eventCloseReceived {
		return types.ConnDisconnected, []effect{effectCancelReconnectTimer}
	}
	return current, nil
}
