package notify

import (
	"sync"

	"go.uber.org/zap"

	"github.com/snapstream-io/snapstream/shared/types"
)

// storageWarnPercent is the disk usage level that triggers a storage
// warning. The warning re-arms once usage falls back under the threshold.
const storageWarnPercent = 90.0

// captureMilestones are the capture counts worth celebrating during an event.
var captureMilestones = []int{100, 250, 500, 1000, 2500, 5000}

// Broadcaster is the room fan-out a Deriver taps into.
type Broadcaster interface {
	BroadcastToRoom(room string, ev types.Event)
}

// Deriver turns status transitions into notifications. It observes the same
// event stream the rooms receive and fires a notification only on the edge
// of a change: camera going away, an upload batch finishing or failing,
// disk usage crossing the warning threshold, capture-count milestones.
type Deriver struct {
	notifier *Notifier
	logger   *zap.Logger

	mu             sync.Mutex
	dslrConnected  *bool
	uploadFailed   int
	uploadPending  bool
	storageWarned  bool
	milestonesSeen map[int]bool
}

// NewDeriver creates a Deriver emitting through notifier.
func NewDeriver(notifier *Notifier, logger *zap.Logger) *Deriver {
	return &Deriver{
		notifier:       notifier,
		logger:         logger.Named("notify_deriver"),
		milestonesSeen: make(map[int]bool),
	}
}

// Wrap returns a Broadcaster that forwards every event to next and then
// feeds it to the deriver. Watchers dispatch through the wrapper so status
// delivery never waits on notification logic more than the Observe call.
func (d *Deriver) Wrap(next Broadcaster) Broadcaster {
	return tap{next: next, deriver: d}
}

type tap struct {
	next    Broadcaster
	deriver *Deriver
}

func (t tap) BroadcastToRoom(room string, ev types.Event) {
	t.next.BroadcastToRoom(room, ev)
	t.deriver.Observe(ev)
}

// Observe inspects one broadcast event for notification-worthy transitions.
func (d *Deriver) Observe(ev types.Event) {
	switch ev.Type {
	case types.EventDSLRStatus:
		var snap types.DSLRStatus
		if err := ev.UnmarshalPayload(&snap); err != nil {
			d.logger.Warn("undecodable dslr snapshot", zap.Error(err))
			return
		}
		d.observeDSLR(snap)
	case types.EventUploadProgress:
		var snap types.UploadProgress
		if err := ev.UnmarshalPayload(&snap); err != nil {
			d.logger.Warn("undecodable upload snapshot", zap.Error(err))
			return
		}
		d.observeUpload(snap)
	case types.EventSystemStatus:
		var snap types.SystemStatus
		if err := ev.UnmarshalPayload(&snap); err != nil {
			d.logger.Warn("undecodable system snapshot", zap.Error(err))
			return
		}
		d.observeSystem(snap)
	}
}

func (d *Deriver) observeDSLR(snap types.DSLRStatus) {
	d.mu.Lock()
	prev := d.dslrConnected
	connected := snap.Connected
	d.dslrConnected = &connected

	var milestone int
	for _, m := range captureMilestones {
		if snap.CaptureCount >= m && !d.milestonesSeen[m] {
			d.milestonesSeen[m] = true
			milestone = m
		}
	}
	d.mu.Unlock()

	if prev != nil && *prev && !connected {
		d.notifier.CameraDisconnected(snap.Model)
	}
	if milestone > 0 {
		d.notifier.EventMilestone(milestone)
	}
}

// observeUpload notifies once per drained queue: success when everything
// cleared, failure when new failures appeared since the last snapshot.
func (d *Deriver) observeUpload(snap types.UploadProgress) {
	d.mu.Lock()
	newFailures := snap.Failed > d.uploadFailed
	d.uploadFailed = snap.Failed

	active := snap.Queued > 0 || snap.Uploading > 0
	drained := d.uploadPending && !active && snap.Failed == 0
	d.uploadPending = active
	d.mu.Unlock()

	if newFailures {
		d.notifier.UploadFailed(snap.CurrentFile, "upload failed")
	}
	if drained {
		d.notifier.UploadSucceeded(snap.CurrentFile)
	}
}

func (d *Deriver) observeSystem(snap types.SystemStatus) {
	d.mu.Lock()
	crossed := snap.DiskPercent >= storageWarnPercent && !d.storageWarned
	d.storageWarned = snap.DiskPercent >= storageWarnPercent
	d.mu.Unlock()

	if crossed {
		d.notifier.StorageWarning(snap.Hostname, 100-snap.DiskPercent)
	}
}
