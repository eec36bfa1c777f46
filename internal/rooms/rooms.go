// Package rooms defines the closed set of broadcast rooms and the membership
// registry that maps each room to its connected clients.
//
// Room names are an allow-list: a join for a name outside this set is an
// explicit error, not a lazily created room. Rooms themselves (the membership
// entries) are created on first join and garbage-collected when the last
// member leaves.
package rooms

import (
	"github.com/snapstream-io/snapstream/shared/types"
)

// Priority is the declared volatility tier of a room. Clients use it to pick
// the fallback polling interval when the streaming transport is down.
type Priority string

const (
	PriorityHigh   Priority = "high"
	PriorityNormal Priority = "normal"
	PriorityLow    Priority = "low"
)

// Definition describes one allowed room.
type Definition struct {
	// Name is the wire identifier clients use in join_room commands.
	Name string

	// Privileged restricts the room to authenticated privileged users.
	Privileged bool

	// Priority drives the client-side fallback polling interval.
	Priority Priority

	// EventType is the broadcast event type delivered in this room.
	EventType types.EventType

	// StatusPath is the REST endpoint (relative to the API root) serving the
	// same snapshot shape as the room's broadcast payload. Empty when the
	// room has no request/response equivalent.
	StatusPath string
}

// Room names. The set is closed; adding a room means adding it here and to
// definitions below.
const (
	DSLRMonitoring     = "dslr-monitoring"
	CameraStatus       = "camera-status"
	BackupStatus       = "backup-status"
	UploadProgress     = "upload-progress"
	SystemStatus       = "system-status"
	AdminNotifications = "admin-notifications"
)

var definitions = map[string]Definition{
	DSLRMonitoring: {
		Name:       DSLRMonitoring,
		Priority:   PriorityHigh,
		EventType:  types.EventDSLRStatus,
		StatusPath: "/status/dslr",
	},
	CameraStatus: {
		Name:       CameraStatus,
		Priority:   PriorityHigh,
		EventType:  types.EventCameraStatus,
		StatusPath: "/status/camera",
	},
	BackupStatus: {
		Name:       BackupStatus,
		Priority:   PriorityHigh,
		EventType:  types.EventBackupStatus,
		StatusPath: "/status/backup",
	},
	UploadProgress: {
		Name:       UploadProgress,
		Priority:   PriorityNormal,
		EventType:  types.EventUploadProgress,
		StatusPath: "/status/upload",
	},
	SystemStatus: {
		Name:       SystemStatus,
		Priority:   PriorityLow,
		EventType:  types.EventSystemStatus,
		StatusPath: "/status/system",
	},
	AdminNotifications: {
		Name:       AdminNotifications,
		Privileged: true,
		Priority:   PriorityNormal,
		EventType:  types.EventNotification,
		StatusPath: "/notifications",
	},
}

// Lookup returns the definition for name. ok is false for names outside the
// allow-list.
func Lookup(name string) (Definition, bool) {
	def, ok := definitions[name]
	return def, ok
}

// All returns every room definition. The result is a copy.
func All() []Definition {
	out := make([]Definition, 0, len(definitions))
	for _, d := range definitions {
		out = append(out, d)
	}
	return out
}
