package client

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/snapstream-io/snapstream/shared/types"
)

// shortenRoute drops the room's poll interval so tests do not wait out the
// production cadence.
func shortenRoute(t *testing.T, room string, interval time.Duration) {
	t.Helper()

	orig := pollRoutes[room]
	route := orig
	route.interval = interval
	pollRoutes[room] = route
	t.Cleanup(func() { pollRoutes[room] = orig })
}

func nextPolled(t *testing.T, p *pollingTransport) types.Event {
	t.Helper()

	select {
	case ev, ok := <-p.Messages():
		require.True(t, ok, "message channel closed")
		return ev
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for polled event")
		return types.Event{}
	}
}

func assertNoPolled(t *testing.T, p *pollingTransport) {
	t.Helper()

	select {
	case ev := <-p.Messages():
		t.Fatalf("unexpected event %s", ev.Type)
	case <-time.After(150 * time.Millisecond):
	}
}

func TestPollingEmitsOnChangeOnly(t *testing.T) {
	shortenRoute(t, RoomBackupStatus, 20*time.Millisecond)

	s := newStubServer(t)
	s.setBackupSnapshot(5)

	p := newPollingTransport(s.server.URL, nil, 1)
	t.Cleanup(func() { _ = p.Close() })
	require.NoError(t, p.Send(types.Command{Type: types.CommandJoinRoom, Room: RoomBackupStatus}))

	ev := nextPolled(t, p)
	var snap types.BackupStatus
	require.NoError(t, ev.UnmarshalPayload(&snap))
	assert.Equal(t, 5, snap.ProcessedItems)

	// Repeated fetches of the same snapshot stay silent.
	require.Eventually(t, func() bool { return s.polls.Load() >= 3 },
		5*time.Second, 10*time.Millisecond)
	assertNoPolled(t, p)

	s.setBackupSnapshot(6)
	ev = nextPolled(t, p)
	require.NoError(t, ev.UnmarshalPayload(&snap))
	assert.Equal(t, 6, snap.ProcessedItems)
}

func TestPollingMissingSnapshotIsSilent(t *testing.T) {
	shortenRoute(t, RoomBackupStatus, 20*time.Millisecond)

	s := newStubServer(t)

	p := newPollingTransport(s.server.URL, nil, 1)
	t.Cleanup(func() { _ = p.Close() })
	require.NoError(t, p.Send(types.Command{Type: types.CommandJoinRoom, Room: RoomBackupStatus}))

	require.Eventually(t, func() bool { return s.polls.Load() >= 2 },
		5*time.Second, 10*time.Millisecond)
	assertNoPolled(t, p)
}

func TestPollingHeartbeatAcksLocally(t *testing.T) {
	s := newStubServer(t)

	p := newPollingTransport(s.server.URL, nil, 1)
	t.Cleanup(func() { _ = p.Close() })

	sent := time.Now().UTC()
	require.NoError(t, p.Send(types.Command{Type: types.CommandHeartbeat, Timestamp: sent}))

	ev := nextPolled(t, p)
	assert.Equal(t, types.EventHeartbeatResponse, ev.Type)

	var ack types.HeartbeatAck
	require.NoError(t, ev.UnmarshalPayload(&ack))
	assert.True(t, sent.Equal(ack.ClientTimestamp))
}

func TestPollingRejectsRoomWithoutEndpoint(t *testing.T) {
	s := newStubServer(t)

	p := newPollingTransport(s.server.URL, nil, 1)
	t.Cleanup(func() { _ = p.Close() })

	err := p.Send(types.Command{Type: types.CommandJoinRoom, Room: RoomAdminNotifications})
	assert.ErrorContains(t, err, "no polling endpoint")
}

func TestPollingCloseStopsLoops(t *testing.T) {
	shortenRoute(t, RoomBackupStatus, 20*time.Millisecond)

	s := newStubServer(t)
	s.setBackupSnapshot(1)

	p := newPollingTransport(s.server.URL, nil, 1)
	require.NoError(t, p.Send(types.Command{Type: types.CommandJoinRoom, Room: RoomBackupStatus}))
	nextPolled(t, p)

	require.NoError(t, p.Close())
	before := s.polls.Load()
	time.Sleep(100 * time.Millisecond)
	assert.Equal(t, before, s.polls.Load())

	_, open := <-p.Messages()
	assert.False(t, open)
}
