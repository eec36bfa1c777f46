package gateway

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/snapstream-io/snapstream/shared/types"
)

const (
	// writeWait is the maximum time allowed to write a message to the peer.
	// If the write does not complete within this window the connection is
	// closed — this prevents a stalled client from blocking the writePump.
	writeWait = 10 * time.Second

	// maxMessageSize is the maximum size in bytes accepted from the client.
	// Commands are tiny JSON objects — a small limit is sufficient.
	maxMessageSize = 1024

	// sendBufferSize is the capacity of the per-client event channel.
	// If the buffer fills up the client is considered too slow and is
	// disconnected by the broadcast path to prevent backpressure on other
	// subscribers.
	sendBufferSize = 64
)

// upgrader performs the HTTP → WebSocket protocol upgrade.
// CheckOrigin always returns true — origin validation is the responsibility
// of the reverse proxy in production deployments.
var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// Identity carries the per-connection facts resolved during the handshake:
// the soft-verified user (empty for guests) and the declared client metadata.
type Identity struct {
	UserID     string
	Privileged bool
	ClientType types.ClientType
	Network    types.NetworkClass
}

// Client represents a single connected peer. Each client runs two goroutines:
// readPump (parses inbound commands, detects disconnection) and writePump
// (serialises outgoing events onto the wire).
//
// The send channel is the handoff point between hub broadcasts and the
// writePump. It is closed by the hub when the client is removed, which causes
// writePump to drain and exit cleanly.
type Client struct {
	// ID is the opaque server-assigned connection id.
	ID string

	identity  Identity
	transport types.TransportKind

	hub    *Hub
	conn   *websocket.Conn
	send   chan types.Event
	logger *zap.Logger

	// mu protects lastHeartbeat and closed.
	mu            sync.Mutex
	lastHeartbeat time.Time
	closed        bool
}

// NewClient upgrades the HTTP connection to WebSocket and returns the client.
// The caller must invoke Run to register it with the hub and start the pumps.
func NewClient(hub *Hub, w http.ResponseWriter, r *http.Request, id Identity, logger *zap.Logger) (*Client, error) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return nil, err
	}

	c := newClient(hub, id, logger.With(zap.String("remote_addr", r.RemoteAddr)))
	c.conn = conn
	return c, nil
}

// newClient builds a client without a wire connection. The hub's tests use it
// directly; production clients always come from NewClient.
func newClient(hub *Hub, id Identity, logger *zap.Logger) *Client {
	return &Client{
		ID:            hub.nextClientID(),
		identity:      id,
		transport:     types.TransportStreaming,
		hub:           hub,
		send:          make(chan types.Event, sendBufferSize),
		logger:        logger,
		lastHeartbeat: hub.clock.Now(),
	}
}

// Run registers the client with the hub and starts the read and write pumps.
// It blocks until the connection closes.
func (c *Client) Run() {
	c.hub.register(c)

	go c.writePump()
	c.readPump()
}

// deliver queues ev for the write pump without blocking. Returns false when
// the client is already closed or the send buffer is full — the caller
// disconnects the client in the latter case.
//
// The send happens under c.mu, the same mutex markClosed holds while closing
// the channel: a delivery racing a removal (eviction sweep vs. read pump, or
// an in-flight broadcast that snapshotted its targets before the removal)
// observes the closed flag instead of panicking on the closed channel.
func (c *Client) deliver(ev types.Event) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return false
	}
	select {
	case c.send <- ev:
		return true
	default:
		return false
	}
}

// touch records a heartbeat arrival.
func (c *Client) touch(now time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lastHeartbeat = now
}

// heartbeatAt returns the time of the last heartbeat (or connect).
func (c *Client) heartbeatAt() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastHeartbeat
}

// markClosed flips the closed flag and closes the send channel, draining the
// write pump. Returns false if the client was already closed, making removal
// idempotent between the read pump and the eviction sweep. Closing under
// c.mu pairs with deliver's check of the flag under the same mutex.
func (c *Client) markClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return false
	}
	c.closed = true
	close(c.send)
	return true
}

// closeConn closes the wire connection if one exists, unblocking both pumps.
func (c *Client) closeConn() {
	if c.conn != nil {
		_ = c.conn.Close()
	}
}

// readPump reads command frames from the connection and forwards them to the
// hub. When the loop exits (connection closed, eviction, or error) the client
// is removed from the hub so membership entries are freed.
func (c *Client) readPump() {
	defer func() {
		c.hub.remove(c)
		c.closeConn()
	}()

	c.conn.SetReadLimit(maxMessageSize)

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err,
				websocket.CloseGoingAway,
				websocket.CloseNormalClosure,
				websocket.CloseNoStatusReceived,
			) {
				c.logger.Warn("gateway: unexpected close", zap.Error(err))
			}
			return
		}

		var cmd types.Command
		if err := json.Unmarshal(data, &cmd); err != nil {
			c.hub.rejectCommand(c, types.ErrCodeBadCommand, "malformed command frame", "")
			continue
		}

		c.hub.handleCommand(c, cmd)
	}
}

// writePump forwards events from the send channel to the wire. It is the only
// goroutine that writes to conn — gorilla/websocket connections are not safe
// for concurrent writes.
func (c *Client) writePump() {
	defer c.closeConn()

	for ev := range c.send {
		if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
			c.logger.Warn("gateway: failed to set write deadline", zap.Error(err))
			return
		}
		if err := c.conn.WriteJSON(ev); err != nil {
			c.logger.Warn("gateway: write error", zap.Error(err))
			return
		}
	}

	// The hub closed the channel — send a close frame and exit.
	_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
}
