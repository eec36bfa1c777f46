// Package notify formats, prioritizes, records and dispatches operator
// notifications. Formatting is a pure function; dispatch goes through the
// gateway hub and the only storage is an in-memory ring buffer.
package notify

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/snapstream-io/snapstream/shared/types"
)

// template binds a notification kind to its stable presentation: title and
// message patterns, priority tier, and the ephemeral display hint.
type template struct {
	title     string
	message   func(data map[string]any) string
	priority  types.NotificationPriority
	ephemeral bool
}

// templates is the per-kind table. Priority determines client-side urgency
// (toast duration, sound, vibration) and never affects delivery ordering.
var templates = map[types.NotificationKind]template{
	types.NotifyUploadSuccess: {
		title: "Upload complete",
		message: func(d map[string]any) string {
			return fmt.Sprintf("%v uploaded successfully.", field(d, "file_name", "Photo"))
		},
		priority:  types.PriorityLow,
		ephemeral: true,
	},
	types.NotifyUploadFailed: {
		title: "Upload failed",
		message: func(d map[string]any) string {
			return fmt.Sprintf("%v failed to upload: %v", field(d, "file_name", "A photo"), field(d, "error", "unknown error"))
		},
		priority: types.PriorityHigh,
	},
	types.NotifyCameraDisconnected: {
		title: "Camera disconnected",
		message: func(d map[string]any) string {
			return fmt.Sprintf("%v is no longer responding. Check the USB cable and power.", field(d, "model", "The camera"))
		},
		priority: types.PriorityCritical,
	},
	types.NotifyStorageWarning: {
		title: "Storage running low",
		message: func(d map[string]any) string {
			return fmt.Sprintf("Only %v%% of storage remains on %v.", field(d, "free_percent", "?"), field(d, "volume", "the host"))
		},
		priority: types.PriorityHigh,
	},
	types.NotifyEventMilestone: {
		title: "Event milestone",
		message: func(d map[string]any) string {
			return fmt.Sprintf("%v photos captured so far.", field(d, "count", "?"))
		},
		priority:  types.PriorityMedium,
		ephemeral: true,
	},
	types.NotifySystem: {
		title: "System notice",
		message: func(d map[string]any) string {
			return fmt.Sprint(field(d, "message", "System status changed."))
		},
		priority: types.PriorityMedium,
	},
}

// Format builds the NotificationPayload for kind and data. It is pure and
// deterministic apart from the assigned id and creation timestamp: the same
// (kind, data) always yields the same title, message, priority and display
// hint. Unknown kinds fall back to the system template so a miswired caller
// degrades to a generic notice instead of dropping the event.
func Format(kind types.NotificationKind, data map[string]any) types.NotificationPayload {
	tpl, ok := templates[kind]
	if !ok {
		tpl = templates[types.NotifySystem]
		kind = types.NotifySystem
	}

	return types.NotificationPayload{
		ID:        uuid.NewString(),
		Kind:      kind,
		Title:     tpl.title,
		Message:   tpl.message(data),
		Priority:  tpl.priority,
		Data:      data,
		Ephemeral: tpl.ephemeral,
		CreatedAt: time.Now().UTC(),
	}
}

// field returns data[key] or fallback when absent.
func field(data map[string]any, key string, fallback any) any {
	if v, ok := data[key]; ok && v != nil {
		return v
	}
	return fallback
}
