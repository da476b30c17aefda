package hub

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"muxfleet/internal/logging"
	"muxfleet/internal/muxerrors"
)

// client is one live WebSocket connection. Its subscription set is keyed
// by session id (not by bridge handle), owned solely by the client — the
// Hub only ever asks a client for its current set when tearing it down,
// which avoids a cyclic ownership between client and bridge.
type client struct {
	id   string
	conn *websocket.Conn
	hub  *Hub
	ctx  context.Context

	outbound chan outboundMessage

	mu            sync.Mutex
	subscriptions map[string]struct{} // session id -> {}
}

func newClient(id string, conn *websocket.Conn, h *Hub) *client {
	return &client{
		id:            id,
		conn:          conn,
		hub:           h,
		ctx:           context.Background(),
		outbound:      make(chan outboundMessage, outboundBufferSize),
		subscriptions: make(map[string]struct{}),
	}
}

func (c *client) subscribedSessions() map[string]struct{} {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make(map[string]struct{}, len(c.subscriptions))
	for id := range c.subscriptions {
		out[id] = struct{}{}
	}
	return out
}

// send enqueues a message for delivery, dropping it (and logging) if the
// client's outbound buffer is full rather than blocking the broadcaster.
func (c *client) send(msg outboundMessage) {
	select {
	case c.outbound <- msg:
	default:
		logging.S().Warnw("hub: dropping outbound message, client buffer full", "client_id", c.id)
	}
}

// readPump reads control messages from the client until the connection
// closes, dispatching each to the appropriate Bridge operation.
func (c *client) readPump() {
	defer func() {
		c.hub.removeClient(c)
		c.conn.Close()
	}()

	pongWait := c.hub.pongWait
	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				logging.S().Infow("hub: client connection closed unexpectedly", "client_id", c.id, "err", err)
			}
			return
		}

		var msg inboundMessage
		if err := json.Unmarshal(raw, &msg); err != nil {
			c.send(errorMessage("", "INVALID_MESSAGE", "malformed message"))
			continue
		}
		c.handle(msg)
	}
}

func (c *client) handle(msg inboundMessage) {
	switch msg.Type {
	case inTypeListSessions:
		c.send(sessionsMessage(c.hub.discovery.Snapshot(false)))

	case inTypeSubscribe:
		c.handleSubscribe(msg)

	case inTypeUnsubscribe:
		c.handleUnsubscribe(msg)

	case inTypeInput:
		c.handleInput(msg)

	case inTypeResize:
		c.handleResize(msg)

	default:
		c.send(errorMessage(msg.SessionID, "UNKNOWN_MESSAGE_TYPE", "unknown message type: "+msg.Type))
	}
}

func (c *client) handleSubscribe(msg inboundMessage) {
	c.mu.Lock()
	_, already := c.subscriptions[msg.SessionID]
	c.mu.Unlock()
	if already {
		return
	}

	b, err := c.hub.resolveBridge(msg.SessionID)
	if err != nil {
		c.send(errorMessage(msg.SessionID, muxerrors.Code(err), err.Error()))
		return
	}

	cols, rows := msg.Cols, msg.Rows
	if cols == 0 {
		cols = 80
	}
	if rows == 0 {
		rows = 24
	}

	buf, ch, err := b.Subscribe(c.ctx, c.id, cols, rows)
	if err != nil {
		c.send(errorMessage(msg.SessionID, muxerrors.Code(err), err.Error()))
		return
	}

	c.mu.Lock()
	c.subscriptions[msg.SessionID] = struct{}{}
	c.mu.Unlock()

	c.send(bufferMessage(msg.SessionID, buf))
	go c.relayOutput(msg.SessionID, ch)
}

// relayOutput forwards a subscribed bridge's output channel into the
// client's outbound queue until the bridge closes the channel (either the
// client unsubscribed or the bridge itself closed).
func (c *client) relayOutput(sessionID string, ch <-chan []byte) {
	for chunk := range ch {
		c.send(outputMessage(sessionID, chunk))
	}
}

func (c *client) handleUnsubscribe(msg inboundMessage) {
	if b, ok := c.hub.bridges.Get(msg.SessionID); ok {
		b.Unsubscribe(c.id)
	}
	c.mu.Lock()
	delete(c.subscriptions, msg.SessionID)
	c.mu.Unlock()
}

func (c *client) handleInput(msg inboundMessage) {
	b, ok := c.hub.bridges.Get(msg.SessionID)
	if !ok {
		c.send(errorMessage(msg.SessionID, "SESSION_NOT_FOUND", "not subscribed to this session"))
		return
	}
	if err := b.Input([]byte(msg.Data)); err != nil {
		c.send(errorMessage(msg.SessionID, muxerrors.Code(err), err.Error()))
	}
}

func (c *client) handleResize(msg inboundMessage) {
	b, ok := c.hub.bridges.Get(msg.SessionID)
	if !ok {
		c.send(errorMessage(msg.SessionID, "SESSION_NOT_FOUND", "not subscribed to this session"))
		return
	}
	if err := b.Resize(msg.Cols, msg.Rows); err != nil {
		c.send(errorMessage(msg.SessionID, muxerrors.Code(err), err.Error()))
	}
}

// writePump drains c.outbound to the WebSocket connection and sends
// periodic pings, matching the teacher's ticker-driven write-pump shape.
func (c *client) writePump() {
	ticker := time.NewTicker(c.hub.heartbeatInterval)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-c.outbound:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteJSON(msg); err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
