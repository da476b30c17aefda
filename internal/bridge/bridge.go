// Package bridge implements the Terminal Bridge: one per actively-streamed
// session, owning a ring-buffered scrollback, a subscriber set, and the
// underlying shell handle (a local PTY or a remote SSH shell opened through
// the Host Connection Manager). The reader goroutine runs for the bridge's
// entire lifetime regardless of subscriber count, so the underlying shell
// is never starved of reads just because no one is watching.
package bridge

import (
	"context"
	"sync"

	"muxfleet/internal/hostconn"
	"muxfleet/internal/logging"
	"muxfleet/pkg/types"
)

// state is the Terminal Bridge's lifecycle state.
type state string

const (
	stateInitializing state = "initializing"
	stateConnected     state = "connected"
	statePaused        state = "paused"
	stateError         state = "error"
	stateClosed        state = "closed"
)

const (
	ringBufferCapBytes = 256 * 1024
	ringBufferCapLines = 500
	readChunkSize      = 32 * 1024
)

// Opener abstracts how a bridge gets its shell handle: a local PTY or
// hostconn.Manager.OpenShell, depending on the session's host id.
type Opener func(ctx context.Context, cols, rows int) (hostconn.Shell, error)

// Bridge is one live attachment to a session's underlying shell.
type Bridge struct {
	sessionID string
	open      Opener

	mu          sync.Mutex
	state       state
	shell       hostconn.Shell
	ring        *ringBuffer
	subscribers map[string]chan []byte // client id -> buffered outbound chunk channel
	onClose     func(sessionID string)
	closed      bool

	detector *StatusDetector
}

// New constructs a Bridge in the initializing state. The shell is not
// opened until the first subscriber attaches.
func New(sessionID string, open Opener, onClose func(sessionID string)) *Bridge {
	return &Bridge{
		sessionID:   sessionID,
		open:        open,
		state:       stateInitializing,
		ring:        newRingBuffer(ringBufferCapBytes, ringBufferCapLines),
		subscribers: make(map[string]chan []byte),
		onClose:     onClose,
	}
}

// EnableStatusDetection turns on the incremental assistant-status detector
// for this bridge, for sessions Discovery has identified as AI assistants.
// onTransition is called (off the pumpOutput goroutine's lock) whenever the
// classified status changes. Calling this after the shell has already
// started pumping output is safe; calling it more than once replaces the
// previous detector.
func (b *Bridge) EnableStatusDetection(onTransition func(types.AssistantOperationStatus)) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.detector = NewStatusDetector(onTransition)
}

// State returns the bridge's current lifecycle state.
func (b *Bridge) State() state {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

// Subscribe attaches clientID, opening the shell on the first subscriber.
// Returns the current buffer contents (to be sent as a single replay
// message) and a channel of subsequent output chunks.
func (b *Bridge) Subscribe(ctx context.Context, clientID string, cols, rows int) ([]byte, <-chan []byte, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return nil, nil, errBridgeClosed
	}

	if b.shell == nil {
		shell, err := b.open(ctx, cols, rows)
		if err != nil {
			b.state = stateError
			return nil, nil, err
		}
		b.shell = shell
		b.state = stateConnected
		go b.pumpOutput()
	}

	ch := make(chan []byte, 64)
	b.subscribers[clientID] = ch
	return b.ring.Bytes(), ch, nil
}

// Unsubscribe detaches clientID. The bridge closes itself once the last
// subscriber leaves.
func (b *Bridge) Unsubscribe(clientID string) {
	b.mu.Lock()
	ch, ok := b.subscribers[clientID]
	if ok {
		delete(b.subscribers, clientID)
		close(ch)
	}
	empty := len(b.subscribers) == 0
	b.mu.Unlock()

	if empty {
		b.Close()
	}
}

// Input forwards data verbatim to the underlying shell's stdin. No
// interpretation: the Bridge does not parse or validate keystrokes.
func (b *Bridge) Input(data []byte) error {
	b.mu.Lock()
	shell := b.shell
	b.mu.Unlock()
	if shell == nil {
		return errBridgeClosed
	}
	_, err := shell.Write(data)
	return err
}

// Resize propagates a terminal dimension change to the underlying shell.
func (b *Bridge) Resize(cols, rows int) error {
	b.mu.Lock()
	shell := b.shell
	b.mu.Unlock()
	if shell == nil {
		return errBridgeClosed
	}
	return shell.Resize(cols, rows)
}

// Close tears down the shell and notifies every subscriber's channel by
// closing it, then invokes onClose so the registry forgets this bridge.
// Idempotent.
func (b *Bridge) Close() {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return
	}
	b.closed = true
	b.state = stateClosed
	shell := b.shell
	subs := b.subscribers
	b.subscribers = make(map[string]chan []byte)
	b.mu.Unlock()

	for _, ch := range subs {
		close(ch)
	}
	if shell != nil {
		shell.Close()
	}
	if b.onClose != nil {
		b.onClose(b.sessionID)
	}
}

// pumpOutput reads from the shell for the bridge's entire lifetime,
// appending every chunk to the ring buffer and fanning it out to current
// subscribers, independent of whether any are attached — exactly the
// "drain even while detached" invariant a managed shell session needs so
// the underlying channel never blocks.
func (b *Bridge) pumpOutput() {
	buf := make([]byte, readChunkSize)
	for {
		b.mu.Lock()
		shell := b.shell
		b.mu.Unlock()
		if shell == nil {
			return
		}

		n, err := shell.Read(buf)
		if n > 0 {
			chunk := append([]byte(nil), buf[:n]...)
			b.mu.Lock()
			b.ring.Write(chunk)
			detector := b.detector
			for _, ch := range b.subscribers {
				select {
				case ch <- chunk:
				default:
					logging.S().Warnw("bridge: dropping output chunk, subscriber channel full",
						"session_id", b.sessionID)
				}
			}
			b.mu.Unlock()

			if detector != nil {
				detector.Feed(chunk)
			}
		}
		if err != nil {
			logging.S().Infow("bridge: shell closed", "session_id", b.sessionID, "err", err)
			b.Close()
			return
		}
	}
}
