package client

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"reflect"
	"strings"
	"sync"
	"time"

	"github.com/snapstream-io/snapstream/shared/types"
)

// pollingTransport emulates the streaming contract over the REST snapshot
// endpoints. Joining a room starts an independent poll loop at the room's
// priority-derived interval; the loop re-emits the room's cached event only
// when its payload structurally changes, so consumers see the same
// at-most-once-per-change stream the watchers produce.
type pollingTransport struct {
	base  string
	httpc *http.Client
	scale int // interval multiplier for slow networks

	msgs chan types.Event

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu      sync.Mutex
	cancels map[string]context.CancelFunc
	last    map[string]any
	closed  bool
}

func newPollingTransport(base string, httpc *http.Client, scale int) *pollingTransport {
	if httpc == nil {
		httpc = http.DefaultClient
	}
	if scale < 1 {
		scale = 1
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &pollingTransport{
		base:    strings.TrimSuffix(base, "/"),
		httpc:   httpc,
		scale:   scale,
		msgs:    make(chan types.Event, 64),
		ctx:     ctx,
		cancel:  cancel,
		cancels: make(map[string]context.CancelFunc),
		last:    make(map[string]any),
	}
}

func (t *pollingTransport) Send(cmd types.Command) error {
	switch cmd.Type {
	case types.CommandJoinRoom:
		return t.joinRoom(cmd.Room)
	case types.CommandLeaveRoom:
		t.leaveRoom(cmd.Room)
		return nil
	case types.CommandHeartbeat:
		// No server-side liveness to maintain; acknowledge locally so the
		// caller's heartbeat loop behaves identically on both transports.
		t.mu.Lock()
		if t.closed {
			t.mu.Unlock()
			return fmt.Errorf("client: polling transport closed")
		}
		t.wg.Add(1)
		t.mu.Unlock()

		go func() {
			defer t.wg.Done()
			t.emit(types.NewEvent(types.EventHeartbeatResponse, "", types.HeartbeatAck{
				ClientTimestamp: cmd.Timestamp,
				ServerTimestamp: time.Now().UTC(),
			}, "polling"))
		}()
		return nil
	default:
		return fmt.Errorf("client: polling transport cannot send %q", cmd.Type)
	}
}

func (t *pollingTransport) Messages() <-chan types.Event {
	return t.msgs
}

// Close stops every poll loop and waits for them to finish before closing
// the message channel.
func (t *pollingTransport) Close() error {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return nil
	}
	t.closed = true
	t.mu.Unlock()

	t.cancel()
	t.wg.Wait()
	close(t.msgs)
	return nil
}

func (t *pollingTransport) joinRoom(room string) error {
	route, ok := pollRoutes[room]
	if !ok {
		return fmt.Errorf("client: room %q has no polling endpoint", room)
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return fmt.Errorf("client: polling transport closed")
	}
	if _, active := t.cancels[room]; active {
		return nil
	}

	ctx, cancel := context.WithCancel(t.ctx)
	t.cancels[room] = cancel
	t.wg.Add(1)
	go t.pollRoom(ctx, room, route)
	return nil
}

func (t *pollingTransport) leaveRoom(room string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if cancel, ok := t.cancels[room]; ok {
		cancel()
		delete(t.cancels, room)
		delete(t.last, room)
	}
}

func (t *pollingTransport) pollRoom(ctx context.Context, room string, route roomRoute) {
	defer t.wg.Done()

	interval := route.interval * time.Duration(t.scale)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	// Fetch immediately so the caller gets the current snapshot without
	// waiting a full interval.
	t.fetchOnce(ctx, room, route)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			t.fetchOnce(ctx, room, route)
		}
	}
}

func (t *pollingTransport) fetchOnce(ctx context.Context, room string, route roomRoute) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, t.base+route.path, nil)
	if err != nil {
		return
	}
	resp, err := t.httpc.Do(req)
	if err != nil {
		return
	}
	defer resp.Body.Close()

	// 404 means no snapshot has been recorded yet; anything else non-200 is
	// a transient server problem. Both read as "no change".
	if resp.StatusCode != http.StatusOK {
		return
	}

	var body struct {
		Data types.Event `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return
	}

	var payload any
	if err := json.Unmarshal(body.Data.Payload, &payload); err != nil {
		return
	}

	t.mu.Lock()
	if prev, seen := t.last[room]; seen && reflect.DeepEqual(prev, payload) {
		t.mu.Unlock()
		return
	}
	t.last[room] = payload
	t.mu.Unlock()

	t.emit(body.Data)
}

// emit queues ev unless the transport is shutting down.
func (t *pollingTransport) emit(ev types.Event) {
	select {
	case t.msgs <- ev:
	case <-t.ctx.Done():
	}
}
