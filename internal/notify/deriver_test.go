package notify

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/snapstream-io/snapstream/shared/types"
)

func newTestDeriver(t *testing.T) (*Deriver, *captureDispatcher, *History) {
	t.Helper()

	dispatcher := &captureDispatcher{}
	history := NewHistory(DefaultHistorySize)
	notifier := NewNotifier(dispatcher, history, zap.NewNop())
	return NewDeriver(notifier, zap.NewNop()), dispatcher, history
}

func dslrEvent(connected bool, captures int) types.Event {
	return types.NewEvent(types.EventDSLRStatus, "dslr-monitoring", types.DSLRStatus{
		Connected:    connected,
		Model:        "EOS R5",
		CaptureCount: captures,
	}, "file-watcher")
}

func uploadEvent(queued, completed, failed int) types.Event {
	return types.NewEvent(types.EventUploadProgress, "upload-progress", types.UploadProgress{
		Queued:    queued,
		Completed: completed,
		Failed:    failed,
	}, "file-watcher")
}

func systemEvent(diskPercent float64) types.Event {
	return types.NewEvent(types.EventSystemStatus, "system-status", types.SystemStatus{
		DiskPercent: diskPercent,
		Hostname:    "capture-1",
	}, "system-watcher")
}

func TestDeriverCameraDisconnectEdgeOnly(t *testing.T) {
	d, _, history := newTestDeriver(t)

	// Never-seen state produces nothing, even when already disconnected.
	d.Observe(dslrEvent(false, 0))
	assert.Equal(t, 0, history.Len())

	d.Observe(dslrEvent(true, 0))
	d.Observe(dslrEvent(true, 0))
	assert.Equal(t, 0, history.Len())

	d.Observe(dslrEvent(false, 0))
	require.Equal(t, 1, history.Len())
	got := history.Recent(1)[0]
	assert.Equal(t, types.NotifyCameraDisconnected, got.Kind)
	assert.Contains(t, got.Message, "EOS R5")

	// Staying disconnected does not repeat the alarm.
	d.Observe(dslrEvent(false, 0))
	assert.Equal(t, 1, history.Len())
}

func TestDeriverCaptureMilestonesFireOnce(t *testing.T) {
	d, _, history := newTestDeriver(t)

	d.Observe(dslrEvent(true, 50))
	assert.Equal(t, 0, history.Len())

	d.Observe(dslrEvent(true, 120))
	require.Equal(t, 1, history.Len())
	assert.Equal(t, types.NotifyEventMilestone, history.Recent(1)[0].Kind)

	// Same threshold never fires again.
	d.Observe(dslrEvent(true, 130))
	assert.Equal(t, 1, history.Len())

	d.Observe(dslrEvent(true, 300))
	assert.Equal(t, 2, history.Len())
}

func TestDeriverUploadQueueDrained(t *testing.T) {
	d, _, history := newTestDeriver(t)

	d.Observe(uploadEvent(5, 0, 0))
	assert.Equal(t, 0, history.Len())

	d.Observe(uploadEvent(0, 5, 0))
	require.Equal(t, 1, history.Len())
	assert.Equal(t, types.NotifyUploadSuccess, history.Recent(1)[0].Kind)

	// An already-empty queue does not re-announce.
	d.Observe(uploadEvent(0, 5, 0))
	assert.Equal(t, 1, history.Len())
}

func TestDeriverUploadFailures(t *testing.T) {
	d, _, history := newTestDeriver(t)

	d.Observe(uploadEvent(3, 0, 0))
	d.Observe(uploadEvent(1, 1, 1))
	require.Equal(t, 1, history.Len())
	assert.Equal(t, types.NotifyUploadFailed, history.Recent(1)[0].Kind)

	// Unchanged failure count stays quiet.
	d.Observe(uploadEvent(0, 2, 1))
	assert.Equal(t, 1, history.Len())
}

func TestDeriverStorageWarningRearms(t *testing.T) {
	d, _, history := newTestDeriver(t)

	d.Observe(systemEvent(85))
	assert.Equal(t, 0, history.Len())

	d.Observe(systemEvent(92))
	require.Equal(t, 1, history.Len())
	assert.Equal(t, types.NotifyStorageWarning, history.Recent(1)[0].Kind)

	// Sustained pressure is one warning, not one per sample.
	d.Observe(systemEvent(95))
	assert.Equal(t, 1, history.Len())

	// Dropping below the threshold re-arms it.
	d.Observe(systemEvent(70))
	d.Observe(systemEvent(93))
	assert.Equal(t, 2, history.Len())
}

func TestDeriverWrapForwardsBroadcast(t *testing.T) {
	d, dispatcher, _ := newTestDeriver(t)

	wrapped := d.Wrap(dispatcher)
	wrapped.BroadcastToRoom("dslr-monitoring", dslrEvent(true, 0))

	require.Len(t, dispatcher.roomEvents, 1)
	assert.Equal(t, types.EventDSLRStatus, dispatcher.roomEvents[0].Type)
}
