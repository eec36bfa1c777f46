// Package gateway implements the connection gateway: it accepts WebSocket
// clients, tracks per-connection liveness and rate limits, resolves room
// join/leave commands against the room registry, and fans broadcast events
// out to room members.
//
// The hub is an explicit object constructed once per server process and
// passed by handle into the API layer and the watchers — there is no hidden
// global connection state, and tests run multiple isolated hubs.
package gateway

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"

	"github.com/snapstream-io/snapstream/internal/metrics"
	"github.com/snapstream-io/snapstream/internal/ratelimit"
	"github.com/snapstream-io/snapstream/internal/rooms"
	"github.com/snapstream-io/snapstream/internal/status"
	"github.com/snapstream-io/snapstream/shared/types"
)

// Features advertised in the connected acknowledgement. Clients use the list
// to decide which protocol surfaces they may rely on.
var serverFeatures = []string{"rooms", "heartbeat", "rate-limit", "polling-fallback"}

// Config holds the gateway tunables.
type Config struct {
	// HeartbeatInterval is the expected client heartbeat cadence.
	HeartbeatInterval time.Duration

	// TimeoutMultiple is the silence multiplier after which a client is
	// evicted: silence > TimeoutMultiple × HeartbeatInterval.
	TimeoutMultiple int

	// RateLimit is the per-client message ceiling per rate window.
	RateLimit int

	// RateWindow is the bulk-reset interval for the rate limiter.
	RateWindow time.Duration

	// ServerVersion is echoed in the connected acknowledgement.
	ServerVersion string
}

// withDefaults fills unset fields.
func (c Config) withDefaults() Config {
	if c.HeartbeatInterval <= 0 {
		c.HeartbeatInterval = 30 * time.Second
	}
	if c.TimeoutMultiple <= 0 {
		c.TimeoutMultiple = 3
	}
	if c.RateLimit <= 0 {
		c.RateLimit = ratelimit.DefaultLimit
	}
	if c.RateWindow <= 0 {
		c.RateWindow = time.Minute
	}
	if c.ServerVersion == "" {
		c.ServerVersion = "dev"
	}
	return c
}

// Hub owns the connected-client records and routes events to room members.
// Membership lives in the rooms.Registry; the latest broadcast per room lives
// in the status.Store so joins can replay the current snapshot and the REST
// fallback can serve the identical payload.
type Hub struct {
	cfg      Config
	registry *rooms.Registry
	store    *status.Store
	limiter  *ratelimit.Limiter
	metrics  *metrics.Metrics
	clock    clockwork.Clock
	logger   *zap.Logger

	mu      sync.RWMutex
	clients map[string]*Client // keyed by connection id
}

// NewHub creates a Hub. Call Run in a goroutine to start the background
// sweeps (heartbeat eviction, rate-window reset).
func NewHub(cfg Config, registry *rooms.Registry, store *status.Store, m *metrics.Metrics, clock clockwork.Clock, logger *zap.Logger) *Hub {
	cfg = cfg.withDefaults()
	return &Hub{
		cfg:      cfg,
		registry: registry,
		store:    store,
		limiter:  ratelimit.NewLimiter(cfg.RateLimit),
		metrics:  m,
		clock:    clock,
		logger:   logger.Named("gateway"),
		clients:  make(map[string]*Client),
	}
}

// Run drives the two periodic background tasks. Neither blocks client
// message handling: eviction and the rate-window reset take the hub lock
// only briefly. Run exits when ctx is cancelled, closing every client.
func (h *Hub) Run(ctx context.Context) {
	evict := h.clock.NewTicker(h.cfg.HeartbeatInterval)
	defer evict.Stop()
	reset := h.clock.NewTicker(h.cfg.RateWindow)
	defer reset.Stop()

	for {
		select {
		case <-evict.Chan():
			h.evictStale()
		case <-reset.Chan():
			h.limiter.ResetAll()
		case <-ctx.Done():
			h.closeAll()
			return
		}
	}
}

// nextClientID assigns the opaque server-side connection id.
func (h *Hub) nextClientID() string {
	return uuid.NewString()
}

// register adds the client and sends the connected acknowledgement.
func (h *Hub) register(c *Client) {
	h.mu.Lock()
	h.clients[c.ID] = c
	total := len(h.clients)
	h.mu.Unlock()

	h.metrics.ConnectedClients.Set(float64(total))

	now := h.clock.Now().UTC()
	c.deliver(types.NewEventAt(now, types.EventConnected, "", types.ConnectedAck{
		ClientID:      c.ID,
		Transport:     c.transport,
		Timestamp:     now,
		ServerVersion: h.cfg.ServerVersion,
		Features:      serverFeatures,
	}, "gateway"))

	h.logger.Info("client connected",
		zap.String("client_id", c.ID),
		zap.String("user_id", c.identity.UserID),
		zap.Bool("privileged", c.identity.Privileged),
		zap.String("client_type", string(c.identity.ClientType)),
		zap.Int("total_connected", total),
	)
}

// remove deletes the client and leaves all its rooms. markClosed closes the
// send channel under the client mutex, so deliveries racing the removal
// return false instead of hitting a closed channel. Idempotent: the read
// pump and the eviction sweep may race here.
func (h *Hub) remove(c *Client) {
	if !c.markClosed() {
		return
	}

	left := h.registry.LeaveAll(c.ID)
	h.limiter.Forget(c.ID)

	h.mu.Lock()
	delete(h.clients, c.ID)
	total := len(h.clients)
	h.mu.Unlock()

	h.metrics.ConnectedClients.Set(float64(total))
	h.metrics.ActiveRooms.Set(float64(h.registry.ActiveRooms()))

	h.logger.Info("client disconnected",
		zap.String("client_id", c.ID),
		zap.Strings("left_rooms", left),
		zap.Int("total_connected", total),
	)
}

// closeAll disconnects every client on shutdown.
func (h *Hub) closeAll() {
	h.mu.RLock()
	clients := make([]*Client, 0, len(h.clients))
	for _, c := range h.clients {
		clients = append(clients, c)
	}
	h.mu.RUnlock()

	for _, c := range clients {
		h.remove(c)
		c.closeConn()
	}
}

// handleCommand is the single entry point for inbound client frames.
// Every frame — valid or not — counts against the rate ceiling; once the
// ceiling is hit the frame is rejected with a rate_limited error event but
// the connection itself stays open.
func (h *Hub) handleCommand(c *Client, cmd types.Command) {
	if !h.limiter.Allow(c.ID) {
		h.metrics.ClientMessagesTotal.WithLabelValues("rate_limited").Inc()
		h.rejectCommand(c, types.ErrCodeRateLimited, "message rate limit exceeded, slow down", "")
		return
	}

	switch cmd.Type {
	case types.CommandJoinRoom:
		h.handleJoin(c, cmd.Room)
	case types.CommandLeaveRoom:
		h.handleLeave(c, cmd.Room)
	case types.CommandHeartbeat:
		h.handleHeartbeat(c, cmd.Timestamp)
	default:
		h.metrics.ClientMessagesTotal.WithLabelValues("invalid").Inc()
		h.rejectCommand(c, types.ErrCodeBadCommand, fmt.Sprintf("unknown command type %q", cmd.Type), "")
		return
	}
	h.metrics.ClientMessagesTotal.WithLabelValues("ok").Inc()
}

// handleJoin resolves a join against the allow-list and registry. A re-join
// is a membership no-op but still replays the cached room snapshot, so a
// reconnecting client converges without waiting for the next change.
func (h *Hub) handleJoin(c *Client, room string) {
	pop, err := h.registry.Join(c.ID, room, c.identity.Privileged)
	switch {
	case errors.Is(err, rooms.ErrUnknownRoom):
		h.rejectCommand(c, types.ErrCodeUnknownRoom, fmt.Sprintf("room %q does not exist", room), room)
		return
	case errors.Is(err, rooms.ErrUnauthorized):
		h.rejectCommand(c, types.ErrCodeUnauthorizedRoom, fmt.Sprintf("room %q requires privileged access", room), room)
		return
	case err != nil:
		h.rejectCommand(c, types.ErrCodeBadCommand, err.Error(), room)
		return
	}

	h.metrics.ActiveRooms.Set(float64(h.registry.ActiveRooms()))

	c.deliver(types.NewEventAt(h.clock.Now().UTC(), types.EventRoomJoined, room, types.RoomAck{
		Room:       room,
		Population: pop,
	}, "gateway"))

	if cached, ok := h.store.Get(room); ok {
		c.deliver(cached)
	}

	h.logger.Debug("room joined",
		zap.String("client_id", c.ID),
		zap.String("room", room),
		zap.Int("population", pop),
	)
}

func (h *Hub) handleLeave(c *Client, room string) {
	pop := h.registry.Leave(c.ID, room)
	h.metrics.ActiveRooms.Set(float64(h.registry.ActiveRooms()))

	c.deliver(types.NewEventAt(h.clock.Now().UTC(), types.EventRoomLeft, room, types.RoomAck{
		Room:       room,
		Population: pop,
	}, "gateway"))
}

func (h *Hub) handleHeartbeat(c *Client, clientTS time.Time) {
	now := h.clock.Now().UTC()
	c.touch(now)

	c.deliver(types.NewEventAt(now, types.EventHeartbeatResponse, "", types.HeartbeatAck{
		ClientTimestamp: clientTS,
		ServerTimestamp: now,
	}, "gateway"))
}

// rejectCommand sends an error event to a single client. The connection is
// never closed for a rejected command.
func (h *Hub) rejectCommand(c *Client, code types.ErrorCode, msg, room string) {
	c.deliver(types.NewEventAt(h.clock.Now().UTC(), types.EventError, room, types.ErrorPayload{
		Code:    code,
		Message: msg,
		Room:    room,
	}, "gateway"))
}

// BroadcastToRoom delivers ev to exactly the room's membership snapshot at
// call time, and records ev as the room's cached snapshot for join replay
// and the REST fallback. Safe to call from any goroutine. Clients whose send
// buffer is full are disconnected to prevent a slow consumer from stalling
// other subscribers.
func (h *Hub) BroadcastToRoom(room string, ev types.Event) {
	h.store.Set(room, ev)
	h.metrics.BroadcastsTotal.WithLabelValues(string(ev.Type)).Inc()

	ids := h.registry.Members(room)
	if len(ids) == 0 {
		return
	}

	h.mu.RLock()
	targets := make([]*Client, 0, len(ids))
	for _, id := range ids {
		if c, ok := h.clients[id]; ok {
			targets = append(targets, c)
		}
	}
	h.mu.RUnlock()

	for _, c := range targets {
		if !c.deliver(ev) {
			h.logger.Warn("disconnecting slow client",
				zap.String("client_id", c.ID),
				zap.String("room", room),
			)
			h.remove(c)
			c.closeConn()
		}
	}
}

// BroadcastToAll delivers ev to every connected client regardless of room
// membership. Used for system-wide notifications.
func (h *Hub) BroadcastToAll(ev types.Event) {
	h.metrics.BroadcastsTotal.WithLabelValues(string(ev.Type)).Inc()

	h.mu.RLock()
	targets := make([]*Client, 0, len(h.clients))
	for _, c := range h.clients {
		targets = append(targets, c)
	}
	h.mu.RUnlock()

	for _, c := range targets {
		if !c.deliver(ev) {
			h.logger.Warn("disconnecting slow client", zap.String("client_id", c.ID))
			h.remove(c)
			c.closeConn()
		}
	}
}

// evictStale force-disconnects every client whose heartbeat silence exceeds
// TimeoutMultiple × HeartbeatInterval. This sweep is the sole mechanism for
// detecting half-open connections.
func (h *Hub) evictStale() {
	cutoff := h.clock.Now().Add(-time.Duration(h.cfg.TimeoutMultiple) * h.cfg.HeartbeatInterval)

	h.mu.RLock()
	var stale []*Client
	for _, c := range h.clients {
		if c.heartbeatAt().Before(cutoff) {
			stale = append(stale, c)
		}
	}
	h.mu.RUnlock()

	for _, c := range stale {
		h.logger.Info("evicting stale client",
			zap.String("client_id", c.ID),
			zap.Time("last_heartbeat", c.heartbeatAt()),
		)
		h.metrics.EvictionsTotal.Inc()
		h.remove(c)
		c.closeConn()
	}
}

// ConnectedCount returns the current number of connected clients.
// Intended for health endpoints and tests.
func (h *Hub) ConnectedCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}
