// Package client is the Go consumer library for the real-time status layer.
// It keeps exactly one effective delivery path active per subscription: a
// WebSocket stream while the server is reachable, and REST polling of the
// snapshot endpoints whenever it is not. Callers read a single merged event
// channel and never deal with transport state themselves.
package client

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/snapstream-io/snapstream/shared/types"
)

// State is the reconciler's connection state. PollingActive is tracked
// separately because it overlaps Disconnected and Reconnecting.
type State string

const (
	StateConnecting   State = "connecting"
	StateConnected    State = "connected"
	StateDisconnected State = "disconnected"
	StateReconnecting State = "reconnecting"
)

// DefaultHeartbeatInterval matches the server's expected cadence. The server
// evicts after three missed intervals, so sending at the same rate leaves two
// intervals of slack.
const DefaultHeartbeatInterval = 30 * time.Second

// Options configures a Reconciler.
type Options struct {
	// ServerURL is the HTTP base of the server, e.g. "http://gallery-host:8080".
	ServerURL string

	// Token is the optional JWT. An invalid token still connects as guest.
	Token string

	ClientType types.ClientType
	Network    types.NetworkClass

	Backoff           Backoff
	HeartbeatInterval time.Duration

	// DialTimeout bounds a single connect attempt. Zero derives it from the
	// network class.
	DialTimeout time.Duration

	// HTTPClient is used by the polling fallback. Nil means http.DefaultClient.
	HTTPClient *http.Client

	// OnStateChange, when set, is called on every connection-state
	// transition. Called from the reconciler goroutine; keep it fast.
	OnStateChange func(s State, pollingActive bool)

	// OnGiveUp, when set, is called once when automatic reconnection stops
	// after the backoff attempt ceiling. Polling continues regardless; a
	// manual Reconnect re-arms automatic retries.
	OnGiveUp func()

	Logger *zap.Logger
}

// Reconciler maintains the subscription set across connection churn.
type Reconciler struct {
	opts   Options
	logger *zap.Logger

	events chan types.Event

	reconnectCh chan struct{}
	done        chan struct{}
	stopped     chan struct{}

	fwdWg sync.WaitGroup

	mu        sync.Mutex
	state     State
	gaveUp    bool
	started   bool
	joined    map[string]struct{}
	transport *streamingTransport
	poller    *pollingTransport
	backoff   Backoff

	closeOnce sync.Once
}

// New creates a Reconciler. Call Start to begin connecting.
func New(opts Options) (*Reconciler, error) {
	if opts.ServerURL == "" {
		return nil, fmt.Errorf("client: ServerURL is required")
	}
	if _, err := url.Parse(opts.ServerURL); err != nil {
		return nil, fmt.Errorf("client: invalid ServerURL: %w", err)
	}
	if opts.HeartbeatInterval <= 0 {
		opts.HeartbeatInterval = DefaultHeartbeatInterval
	}
	if opts.DialTimeout <= 0 {
		opts.DialTimeout = dialTimeoutFor(opts.Network)
	}
	if opts.ClientType == "" {
		opts.ClientType = types.ClientDesktop
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	opts.Backoff = opts.Backoff.withDefaults()

	return &Reconciler{
		opts:        opts,
		logger:      opts.Logger.Named("reconciler"),
		events:      make(chan types.Event, 256),
		reconnectCh: make(chan struct{}, 1),
		done:        make(chan struct{}),
		stopped:     make(chan struct{}),
		state:       StateDisconnected,
		joined:      make(map[string]struct{}),
		backoff:     opts.Backoff,
	}, nil
}

// dialTimeoutFor stretches the connect budget on poor links instead of
// failing fast into backoff.
func dialTimeoutFor(n types.NetworkClass) time.Duration {
	switch n {
	case types.NetworkSlow:
		return 15 * time.Second
	case types.NetworkConstrained:
		return 25 * time.Second
	default:
		return 10 * time.Second
	}
}

// pollScaleFor slows the fallback cadence on links that should not be
// hammered with snapshot fetches.
func pollScaleFor(n types.NetworkClass) int {
	switch n {
	case types.NetworkSlow, types.NetworkConstrained:
		return 2
	default:
		return 1
	}
}

// Start launches the connection loop. Safe to call once.
func (r *Reconciler) Start() {
	r.mu.Lock()
	if r.started {
		r.mu.Unlock()
		return
	}
	r.started = true
	r.mu.Unlock()

	go r.run()
}

// Events yields everything the server delivers on either path: acks,
// broadcasts, errors, heartbeat responses. The channel closes after Close.
func (r *Reconciler) Events() <-chan types.Event {
	return r.events
}

// State returns the current connection state.
func (r *Reconciler) State() State {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}

// PollingActive reports whether the REST fallback is currently serving the
// joined rooms. Always false while connected.
func (r *Reconciler) PollingActive() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.poller != nil
}

// GaveUp reports whether automatic reconnection stopped at the attempt
// ceiling.
func (r *Reconciler) GaveUp() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.gaveUp
}

// Join subscribes to room. The subscription survives reconnects; while
// disconnected it is served by polling where the room has a snapshot
// endpoint.
func (r *Reconciler) Join(room string) error {
	r.mu.Lock()
	r.joined[room] = struct{}{}
	t := r.transport
	p := r.poller
	r.mu.Unlock()

	if t != nil {
		return t.Send(types.Command{Type: types.CommandJoinRoom, Room: room})
	}
	if p != nil {
		if err := p.Send(types.Command{Type: types.CommandJoinRoom, Room: room}); err != nil {
			r.logger.Debug("room not pollable, deferred to reconnect", zap.String("room", room))
		}
	}
	return nil
}

// Leave drops the subscription on whichever path is active.
func (r *Reconciler) Leave(room string) error {
	r.mu.Lock()
	delete(r.joined, room)
	t := r.transport
	p := r.poller
	r.mu.Unlock()

	if t != nil {
		return t.Send(types.Command{Type: types.CommandLeaveRoom, Room: room})
	}
	if p != nil {
		_ = p.Send(types.Command{Type: types.CommandLeaveRoom, Room: room})
	}
	return nil
}

// Reconnect forces a clean disconnect-then-connect cycle, resetting the
// backoff streak and re-arming automatic retries after a give-up.
func (r *Reconciler) Reconnect() {
	select {
	case r.reconnectCh <- struct{}{}:
	default:
	}
}

// Close synchronously stops the connection loop, every polling loop and the
// heartbeat timer, leaves all joined rooms, and closes the event channel.
func (r *Reconciler) Close() error {
	r.closeOnce.Do(func() {
		close(r.done)

		r.mu.Lock()
		t := r.transport
		rooms := make([]string, 0, len(r.joined))
		for room := range r.joined {
			rooms = append(rooms, room)
		}
		started := r.started
		r.mu.Unlock()

		if t != nil {
			for _, room := range rooms {
				_ = t.Send(types.Command{Type: types.CommandLeaveRoom, Room: room})
			}
			_ = t.Close()
		}
		if started {
			<-r.stopped
		}
		r.stopPolling()
		r.fwdWg.Wait()
		close(r.events)
	})
	return nil
}

func (r *Reconciler) run() {
	defer close(r.stopped)

	// On constrained networks polling starts before the first dial so the
	// UI has data even if the handshake is slow or fails.
	if r.opts.Network == types.NetworkConstrained {
		r.startPolling()
	}

	first := true
	for {
		select {
		case <-r.done:
			return
		default:
		}

		if first {
			r.setState(StateConnecting)
		} else {
			r.setState(StateReconnecting)
		}
		first = false

		t, err := r.dial()
		if err != nil {
			r.logger.Warn("connect failed", zap.Error(err))
			if !r.waitRetry() {
				return
			}
			continue
		}

		r.onConnected(t)
		r.serve(t)

		select {
		case <-r.done:
			return
		default:
		}
		r.onDisconnected()
	}
}

func (r *Reconciler) dial() (*streamingTransport, error) {
	q := url.Values{}
	if r.opts.Token != "" {
		q.Set("token", r.opts.Token)
	}
	q.Set("client_type", string(r.opts.ClientType))
	if r.opts.Network != "" {
		q.Set("network", string(r.opts.Network))
	}

	ctx, cancel := context.WithTimeout(context.Background(), r.opts.DialTimeout)
	defer cancel()

	// Close must not wait out the dial timeout; cancel the attempt as soon
	// as the reconciler shuts down.
	go func() {
		select {
		case <-r.done:
			cancel()
		case <-ctx.Done():
		}
	}()

	return dialStreaming(ctx, r.opts.ServerURL, q)
}

func (r *Reconciler) onConnected(t *streamingTransport) {
	r.mu.Lock()
	r.transport = t
	r.backoff = r.backoff.OnSuccess()
	r.gaveUp = false
	rooms := make([]string, 0, len(r.joined))
	for room := range r.joined {
		rooms = append(rooms, room)
	}
	r.mu.Unlock()

	r.stopPolling()
	r.setState(StateConnected)

	// Replay subscriptions; the server answers each join with its cached
	// snapshot, which closes any gap the polling path left.
	for _, room := range rooms {
		if err := t.Send(types.Command{Type: types.CommandJoinRoom, Room: room}); err != nil {
			r.logger.Warn("rejoin failed", zap.String("room", room), zap.Error(err))
			return
		}
	}
}

// serve pumps the connected transport until it drops, a manual reconnect
// forces a cycle, or the reconciler closes.
func (r *Reconciler) serve(t *streamingTransport) {
	hb := time.NewTicker(r.opts.HeartbeatInterval)
	defer hb.Stop()

	for {
		select {
		case <-r.done:
			_ = t.Close()
			return
		case <-r.reconnectCh:
			r.logger.Info("manual reconnect requested")
			_ = t.Close()
			return
		case <-hb.C:
			cmd := types.Command{Type: types.CommandHeartbeat, Timestamp: time.Now().UTC()}
			if err := t.Send(cmd); err != nil {
				_ = t.Close()
				return
			}
		case ev, ok := <-t.Messages():
			if !ok {
				return
			}
			r.emit(ev)
		}
	}
}

func (r *Reconciler) onDisconnected() {
	r.mu.Lock()
	r.transport = nil
	r.mu.Unlock()

	r.setState(StateDisconnected)
	r.startPolling()
}

// waitRetry handles a failed connect attempt: record the failure, ensure
// polling covers the joined rooms, then sleep out the backoff delay. At the
// attempt ceiling it parks until a manual reconnect instead of retrying.
// Returns false when the reconciler is closing.
func (r *Reconciler) waitRetry() bool {
	r.mu.Lock()
	r.backoff = r.backoff.OnFailure()
	exhausted := r.backoff.Exhausted()
	delay := r.backoff.Delay()
	firstGiveUp := exhausted && !r.gaveUp
	if firstGiveUp {
		r.gaveUp = true
	}
	r.mu.Unlock()

	if firstGiveUp && r.opts.OnGiveUp != nil {
		r.opts.OnGiveUp()
	}

	r.setState(StateDisconnected)
	r.startPolling()

	if exhausted {
		r.logger.Warn("reconnect attempts exhausted, polling only until manual reconnect")
		select {
		case <-r.done:
			return false
		case <-r.reconnectCh:
			r.resetBackoff()
			return true
		}
	}

	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-r.done:
		return false
	case <-r.reconnectCh:
		r.resetBackoff()
		return true
	case <-timer.C:
		return true
	}
}

func (r *Reconciler) resetBackoff() {
	r.mu.Lock()
	r.backoff = r.backoff.OnSuccess()
	r.gaveUp = false
	r.mu.Unlock()
}

// startPolling activates the REST fallback for every joined room. Idempotent:
// a second drop signal while polling is already active is a no-op, so
// duplicate polling storms cannot start.
func (r *Reconciler) startPolling() {
	r.mu.Lock()
	if r.poller != nil {
		r.mu.Unlock()
		return
	}
	select {
	case <-r.done:
		r.mu.Unlock()
		return
	default:
	}
	p := newPollingTransport(r.opts.ServerURL, r.opts.HTTPClient, pollScaleFor(r.opts.Network))
	r.poller = p
	rooms := make([]string, 0, len(r.joined))
	for room := range r.joined {
		rooms = append(rooms, room)
	}
	r.mu.Unlock()

	for _, room := range rooms {
		if err := p.Send(types.Command{Type: types.CommandJoinRoom, Room: room}); err != nil {
			r.logger.Debug("room not pollable", zap.String("room", room))
		}
	}

	r.fwdWg.Add(1)
	go func() {
		defer r.fwdWg.Done()
		for ev := range p.Messages() {
			r.emit(ev)
		}
	}()
}

// stopPolling tears the fallback down and waits for its loops to stop.
func (r *Reconciler) stopPolling() {
	r.mu.Lock()
	p := r.poller
	r.poller = nil
	r.mu.Unlock()

	if p != nil {
		_ = p.Close()
	}
}

func (r *Reconciler) setState(s State) {
	r.mu.Lock()
	if r.state == s {
		r.mu.Unlock()
		return
	}
	r.state = s
	polling := r.poller != nil
	r.mu.Unlock()

	r.logger.Debug("state change", zap.String("state", string(s)), zap.Bool("polling", polling))
	if r.opts.OnStateChange != nil {
		r.opts.OnStateChange(s, polling)
	}
}

// emit hands ev to the caller without ever blocking a pump. A full event
// buffer drops the oldest entry first; status streams are snapshots, so the
// newest value is always the one worth keeping.
func (r *Reconciler) emit(ev types.Event) {
	select {
	case r.events <- ev:
	default:
		select {
		case <-r.events:
		default:
		}
		select {
		case r.events <- ev:
		default:
		}
	}
}
