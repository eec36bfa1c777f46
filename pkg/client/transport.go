package client

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/snapstream-io/snapstream/shared/types"
)

// Transport is one delivery path for server events. The reconciler drives
// exactly one streaming transport at a time; the polling fallback implements
// the same contract over the REST endpoints.
type Transport interface {
	// Send submits a command to the server.
	Send(cmd types.Command) error

	// Messages yields server events. The channel closes when the transport
	// fails or is closed; a closed channel is the drop signal.
	Messages() <-chan types.Event

	// Close tears the transport down. Idempotent.
	Close() error
}

// streamingTransport is the WebSocket path. Auth token and client metadata
// travel as query parameters on the dial URL, matching the server handshake.
type streamingTransport struct {
	conn *websocket.Conn

	writeMu sync.Mutex
	msgs    chan types.Event

	closeOnce sync.Once
}

// dialStreaming opens a WebSocket connection to serverURL (an http or https
// base) and starts the read loop. The dial timeout comes from ctx.
func dialStreaming(ctx context.Context, serverURL string, q url.Values) (*streamingTransport, error) {
	u, err := url.Parse(serverURL)
	if err != nil {
		return nil, fmt.Errorf("client: invalid server url: %w", err)
	}
	switch u.Scheme {
	case "http", "ws":
		u.Scheme = "ws"
	case "https", "wss":
		u.Scheme = "wss"
	default:
		return nil, fmt.Errorf("client: unsupported scheme %q", u.Scheme)
	}
	u.Path = strings.TrimSuffix(u.Path, "/") + "/api/v1/ws"
	u.RawQuery = q.Encode()

	conn, resp, err := websocket.DefaultDialer.DialContext(ctx, u.String(), nil)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("client: dial %s: %s: %w", u.Host, resp.Status, err)
		}
		return nil, fmt.Errorf("client: dial %s: %w", u.Host, err)
	}

	t := &streamingTransport{
		conn: conn,
		msgs: make(chan types.Event, 64),
	}
	go t.readLoop()
	return t, nil
}

func (t *streamingTransport) readLoop() {
	defer close(t.msgs)
	for {
		var ev types.Event
		if err := t.conn.ReadJSON(&ev); err != nil {
			return
		}
		t.msgs <- ev
	}
}

func (t *streamingTransport) Send(cmd types.Command) error {
	if cmd.Timestamp.IsZero() {
		cmd.Timestamp = time.Now().UTC()
	}
	t.writeMu.Lock()
	defer t.writeMu.Unlock()
	return t.conn.WriteJSON(cmd)
}

func (t *streamingTransport) Messages() <-chan types.Event {
	return t.msgs
}

func (t *streamingTransport) Close() error {
	t.closeOnce.Do(func() {
		t.writeMu.Lock()
		_ = t.conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(time.Second))
		t.writeMu.Unlock()
		_ = t.conn.Close()
	})
	return nil
}
