package watcher

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/snapstream-io/snapstream/internal/metrics"
	"github.com/snapstream-io/snapstream/internal/rooms"
	"github.com/snapstream-io/snapstream/shared/types"
)

// stubSource replays a scripted sequence of reads.
type stubSource struct {
	reads []func() (any, error)
	calls int
}

func (s *stubSource) Name() string   { return "stub" }
func (s *stubSource) Origin() string { return "file-watcher" }

func (s *stubSource) Read(ctx context.Context) (any, error) {
	i := s.calls
	if i >= len(s.reads) {
		i = len(s.reads) - 1
	}
	s.calls++
	return s.reads[i]()
}

func value(v any) func() (any, error) {
	return func() (any, error) { return v, nil }
}

func failure(err error) func() (any, error) {
	return func() (any, error) { return nil, err }
}

// recordingDispatcher captures broadcasts.
type recordingDispatcher struct {
	events []types.Event
	room   string
}

func (r *recordingDispatcher) BroadcastToRoom(room string, ev types.Event) {
	r.room = room
	r.events = append(r.events, ev)
}

func newTestWatcher(t *testing.T, src Source, room string) (*Watcher, *recordingDispatcher) {
	t.Helper()
	d := &recordingDispatcher{}
	w, err := New(src, room, time.Second, d, metrics.New(prometheus.NewRegistry()), zap.NewNop())
	require.NoError(t, err)
	return w, d
}

func TestFirstReadBroadcasts(t *testing.T) {
	src := &stubSource{reads: []func() (any, error){
		value(map[string]any{"connected": true}),
	}}
	w, d := newTestWatcher(t, src, rooms.DSLRMonitoring)

	w.Tick(context.Background())

	require.Len(t, d.events, 1)
	assert.Equal(t, rooms.DSLRMonitoring, d.room)
	assert.Equal(t, types.EventDSLRStatus, d.events[0].Type)
	assert.Equal(t, "file-watcher", d.events[0].Source)
}

func TestUnchangedContentBroadcastsOnce(t *testing.T) {
	src := &stubSource{reads: []func() (any, error){
		value(map[string]any{"state": "backing_up", "processed_items": 5}),
	}}
	w, d := newTestWatcher(t, src, rooms.BackupStatus)

	for i := 0; i < 5; i++ {
		w.Tick(context.Background())
	}

	assert.Len(t, d.events, 1)
}

func TestChangeBroadcastsExactlyOnce(t *testing.T) {
	src := &stubSource{reads: []func() (any, error){
		value(map[string]any{"state": "backing_up", "processed_items": float64(5), "total_items": float64(10)}),
		value(map[string]any{"state": "backing_up", "processed_items": float64(6), "total_items": float64(10)}),
	}}
	w, d := newTestWatcher(t, src, rooms.BackupStatus)

	w.Tick(context.Background())
	w.Tick(context.Background())
	w.Tick(context.Background()) // same content as second read

	require.Len(t, d.events, 2)

	var payload map[string]any
	require.NoError(t, json.Unmarshal(d.events[1].Payload, &payload))
	assert.Equal(t, float64(6), payload["processed_items"])
}

func TestKeyOrderDoesNotTriggerBroadcast(t *testing.T) {
	// Same content serialized with different key order: the structural diff
	// must see them as equal.
	first := func() (any, error) {
		var v any
		err := json.Unmarshal([]byte(`{"a":1,"b":{"x":true,"y":"z"}}`), &v)
		return v, err
	}
	second := func() (any, error) {
		var v any
		err := json.Unmarshal([]byte(`{"b":{"y":"z","x":true},"a":1}`), &v)
		return v, err
	}
	src := &stubSource{reads: []func() (any, error){first, second}}
	w, d := newTestWatcher(t, src, rooms.UploadProgress)

	w.Tick(context.Background())
	w.Tick(context.Background())

	assert.Len(t, d.events, 1)
}

func TestReadFailureIsNoChange(t *testing.T) {
	src := &stubSource{reads: []func() (any, error){
		value(map[string]any{"queued": float64(3)}),
		failure(errors.New("disk unavailable")),
		value(map[string]any{"queued": float64(3)}),
	}}
	w, d := newTestWatcher(t, src, rooms.UploadProgress)

	w.Tick(context.Background())
	w.Tick(context.Background()) // failure: logged, no broadcast
	w.Tick(context.Background()) // same content as before the failure

	assert.Len(t, d.events, 1)
}

func TestTypedSnapshotDiffing(t *testing.T) {
	// Typed values go through the same JSON normalization, so two struct
	// snapshots with equal content do not re-broadcast.
	src := &stubSource{reads: []func() (any, error){
		value(types.SystemStatus{CPUPercent: 12.5, MemoryPercent: 40, Hostname: "booth-1"}),
		value(types.SystemStatus{CPUPercent: 12.5, MemoryPercent: 40, Hostname: "booth-1"}),
		value(types.SystemStatus{CPUPercent: 99.0, MemoryPercent: 40, Hostname: "booth-1"}),
	}}
	w, d := newTestWatcher(t, src, rooms.SystemStatus)

	w.Tick(context.Background())
	w.Tick(context.Background())
	w.Tick(context.Background())

	assert.Len(t, d.events, 2)
}

func TestUnknownRoomRejected(t *testing.T) {
	src := &stubSource{reads: []func() (any, error){value(1)}}
	_, err := New(src, "bogus", time.Second, &recordingDispatcher{}, metrics.New(prometheus.NewRegistry()), zap.NewNop())
	assert.Error(t, err)
}

func TestFileSource(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "backup_status.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"state":"backing_up","processed_items":5}`), 0o600))

	src := NewFileSource("backup", path)
	doc, err := src.Read(context.Background())
	require.NoError(t, err)
	m, ok := doc.(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "backing_up", m["state"])

	// Missing file is a read failure, not a panic.
	require.NoError(t, os.Remove(path))
	_, err = src.Read(context.Background())
	assert.Error(t, err)

	// Corrupt JSON is a read failure too.
	require.NoError(t, os.WriteFile(path, []byte(`{"state":`), 0o600))
	_, err = src.Read(context.Background())
	assert.Error(t, err)
}
