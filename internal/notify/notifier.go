package notify

import (
	"go.uber.org/zap"

	"github.com/snapstream-io/snapstream/internal/rooms"
	"github.com/snapstream-io/snapstream/shared/types"
)

// Dispatcher is the broadcast surface the notifier publishes through.
// Satisfied by *gateway.Hub.
type Dispatcher interface {
	BroadcastToRoom(room string, ev types.Event)
	BroadcastToAll(ev types.Event)
}

// Notifier is the single entry point for emitting operator notifications.
// It formats the payload, records it in the ring buffer, and broadcasts it
// to the admin-notifications room. System-kind notifications additionally go
// to every connected client.
//
// Callers should use the typed methods rather than constructing payloads by
// hand, so notification content stays consistent across the codebase.
type Notifier struct {
	dispatcher Dispatcher
	history    *History
	logger     *zap.Logger
}

// NewNotifier creates a Notifier recording into history.
func NewNotifier(dispatcher Dispatcher, history *History, logger *zap.Logger) *Notifier {
	return &Notifier{
		dispatcher: dispatcher,
		history:    history,
		logger:     logger.Named("notify"),
	}
}

// Notify formats and dispatches a notification of the given kind.
func (n *Notifier) Notify(kind types.NotificationKind, data map[string]any) types.NotificationPayload {
	payload := Format(kind, data)
	n.history.Add(payload)

	ev := types.NewEvent(types.EventNotification, rooms.AdminNotifications, payload, "notifier")
	if kind == types.NotifySystem {
		n.dispatcher.BroadcastToAll(ev)
	} else {
		n.dispatcher.BroadcastToRoom(rooms.AdminNotifications, ev)
	}

	n.logger.Info("notification dispatched",
		zap.String("kind", string(kind)),
		zap.String("priority", string(payload.Priority)),
	)
	return payload
}

// UploadSucceeded reports a completed photo upload.
func (n *Notifier) UploadSucceeded(fileName string) types.NotificationPayload {
	return n.Notify(types.NotifyUploadSuccess, map[string]any{"file_name": fileName})
}

// UploadFailed reports a failed photo upload with the pipeline error string.
func (n *Notifier) UploadFailed(fileName, errMsg string) types.NotificationPayload {
	return n.Notify(types.NotifyUploadFailed, map[string]any{
		"file_name": fileName,
		"error":     errMsg,
	})
}

// CameraDisconnected reports a camera dropping off the tether.
func (n *Notifier) CameraDisconnected(model string) types.NotificationPayload {
	return n.Notify(types.NotifyCameraDisconnected, map[string]any{"model": model})
}

// StorageWarning reports low free space on a volume.
func (n *Notifier) StorageWarning(volume string, freePercent float64) types.NotificationPayload {
	return n.Notify(types.NotifyStorageWarning, map[string]any{
		"volume":       volume,
		"free_percent": freePercent,
	})
}

// EventMilestone reports a capture-count milestone for the running event.
func (n *Notifier) EventMilestone(count int) types.NotificationPayload {
	return n.Notify(types.NotifyEventMilestone, map[string]any{"count": count})
}

// System reports a system-wide notice delivered to all connected clients.
func (n *Notifier) System(message string) types.NotificationPayload {
	return n.Notify(types.NotifySystem, map[string]any{"message": message})
}
