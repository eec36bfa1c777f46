package client

import (
	"time"

	"github.com/snapstream-io/snapstream/shared/types"
)

// Room names accepted by the server. Kept here so library users never have
// to spell raw strings; the server enforces the same allow-list.
const (
	RoomDSLRMonitoring     = "dslr-monitoring"
	RoomCameraStatus       = "camera-status"
	RoomBackupStatus       = "backup-status"
	RoomUploadProgress     = "upload-progress"
	RoomSystemStatus       = "system-status"
	RoomAdminNotifications = "admin-notifications"
)

// roomRoute maps a room onto its REST fallback endpoint and the polling
// cadence derived from the room's priority. High-priority rooms (live
// capture state) poll fast; coarse system metrics poll slowly.
type roomRoute struct {
	path      string
	eventType types.EventType
	interval  time.Duration
}

// pollRoutes covers every room with a snapshot endpoint. Admin notifications
// have no snapshot shape and are intentionally absent: while disconnected the
// caller simply misses them until reconnect.
var pollRoutes = map[string]roomRoute{
	RoomDSLRMonitoring: {path: "/api/v1/status/dslr", eventType: types.EventDSLRStatus, interval: 3 * time.Second},
	RoomCameraStatus:   {path: "/api/v1/status/camera", eventType: types.EventCameraStatus, interval: 3 * time.Second},
	RoomBackupStatus:   {path: "/api/v1/status/backup", eventType: types.EventBackupStatus, interval: 3 * time.Second},
	RoomUploadProgress: {path: "/api/v1/status/upload", eventType: types.EventUploadProgress, interval: 5 * time.Second},
	RoomSystemStatus:   {path: "/api/v1/status/system", eventType: types.EventSystemStatus, interval: 10 * time.Second},
}
