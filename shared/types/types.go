// Package types defines the wire protocol and domain snapshot types shared by
// the server and the client reconciler library.
package types

import (
	"encoding/json"
	"time"
)

// ─── Events (server → client) ────────────────────────────────────────────────

// EventType identifies the kind of event carried by an Event envelope.
// The set is closed: clients dispatch on this field and unknown values are
// dropped, so new types require a coordinated protocol bump.
type EventType string

const (
	// EventConnected is the acknowledgement sent once after a successful
	// connection handshake. Payload: ConnectedAck.
	EventConnected EventType = "connected"

	// EventRoomJoined confirms a join_room command. Payload: RoomAck.
	EventRoomJoined EventType = "room_joined"

	// EventRoomLeft confirms a leave_room command. Payload: RoomAck.
	EventRoomLeft EventType = "room_left"

	// EventError reports a command-level failure (unknown room, privileged
	// room, rate limit). The connection stays open. Payload: ErrorPayload.
	EventError EventType = "error"

	// EventHeartbeatResponse answers a client heartbeat with the server
	// timestamp. Used for liveness only, not time sync. Payload: HeartbeatAck.
	EventHeartbeatResponse EventType = "heartbeat_response"

	// EventDSLRStatus carries a tethered-camera software status snapshot.
	EventDSLRStatus EventType = "dslr_status"

	// EventCameraStatus carries the hardware-level camera snapshot
	// (battery, storage, connection).
	EventCameraStatus EventType = "camera_status"

	// EventBackupStatus carries a BackupStatus snapshot while an event
	// backup is running.
	EventBackupStatus EventType = "backup_status"

	// EventUploadProgress carries an UploadProgress snapshot.
	EventUploadProgress EventType = "upload_progress"

	// EventSystemStatus carries host resource utilization.
	EventSystemStatus EventType = "system_status"

	// EventNotification carries a formatted NotificationPayload.
	EventNotification EventType = "notification"
)

// Event is the envelope for every frame pushed to clients. Payload shape is
// determined by Type; both the WebSocket path and the REST fallback serve the
// same payload shapes so the consuming UI treats them identically.
type Event struct {
	Type      EventType       `json:"type"`
	Room      string          `json:"room,omitempty"`
	Payload   json.RawMessage `json:"payload"`
	Timestamp time.Time       `json:"timestamp"`

	// Source tags the producer of the payload, e.g. "file-watcher",
	// "system-watcher", "gateway". Diagnostic only.
	Source string `json:"source,omitempty"`
}

// ─── Commands (client → server) ──────────────────────────────────────────────

// CommandType identifies a client-issued command.
type CommandType string

const (
	CommandJoinRoom  CommandType = "join_room"
	CommandLeaveRoom CommandType = "leave_room"
	CommandHeartbeat CommandType = "heartbeat"
)

// Command is the envelope for every frame a client sends to the gateway.
type Command struct {
	Type CommandType `json:"type"`

	// Room is required for join_room and leave_room.
	Room string `json:"room,omitempty"`

	// Timestamp is the client clock at send time. Only heartbeat uses it.
	Timestamp time.Time `json:"timestamp,omitempty"`
}

// ─── Control payloads ────────────────────────────────────────────────────────

// TransportKind describes the delivery path negotiated for a connection.
type TransportKind string

const (
	TransportStreaming TransportKind = "streaming"
	TransportPolling   TransportKind = "polling-emulated"
)

// ConnectedAck is the payload of the connected acknowledgement event.
type ConnectedAck struct {
	ClientID      string        `json:"client_id"`
	Transport     TransportKind `json:"transport"`
	Timestamp     time.Time     `json:"timestamp"`
	ServerVersion string        `json:"server_version"`
	Features      []string      `json:"features"`
}

// RoomAck is the payload of room_joined and room_left events.
type RoomAck struct {
	Room string `json:"room"`

	// Population is the room membership count after the operation.
	Population int `json:"population"`
}

// ErrorCode enumerates command-level failure categories surfaced to clients.
type ErrorCode string

const (
	ErrCodeUnknownRoom      ErrorCode = "unknown_room"
	ErrCodeUnauthorizedRoom ErrorCode = "unauthorized_room"
	ErrCodeRateLimited      ErrorCode = "rate_limited"
	ErrCodeBadCommand       ErrorCode = "bad_command"
)

// ErrorPayload is the payload of error events. Code is machine-readable;
// Message is human-readable and names the offending room where relevant.
type ErrorPayload struct {
	Code    ErrorCode `json:"code"`
	Message string    `json:"message"`
	Room    string    `json:"room,omitempty"`
}

// HeartbeatAck is the payload of heartbeat_response events.
type HeartbeatAck struct {
	ClientTimestamp time.Time `json:"client_timestamp"`
	ServerTimestamp time.Time `json:"server_timestamp"`
}

// ─── Notifications ───────────────────────────────────────────────────────────

// NotificationKind classifies operator notifications.
type NotificationKind string

const (
	NotifyUploadSuccess      NotificationKind = "upload_success"
	NotifyUploadFailed       NotificationKind = "upload_failed"
	NotifyCameraDisconnected NotificationKind = "camera_disconnected"
	NotifyStorageWarning     NotificationKind = "storage_warning"
	NotifyEventMilestone     NotificationKind = "event_milestone"
	NotifySystem             NotificationKind = "system"
)

// NotificationPriority drives client-side urgency (toast duration, sound,
// vibration). It never affects delivery ordering.
type NotificationPriority string

const (
	PriorityLow      NotificationPriority = "low"
	PriorityMedium   NotificationPriority = "medium"
	PriorityHigh     NotificationPriority = "high"
	PriorityCritical NotificationPriority = "critical"
)

// NotificationPayload is the payload of notification events and of the
// notification history endpoint entries.
type NotificationPayload struct {
	ID       string               `json:"id"`
	Kind     NotificationKind     `json:"kind"`
	Title    string               `json:"title"`
	Message  string               `json:"message"`
	Priority NotificationPriority `json:"priority"`

	// Data carries kind-specific detail (file name, camera model, counts).
	Data map[string]any `json:"data,omitempty"`

	// Ephemeral hints that the client should show a transient toast rather
	// than pinning the notification in a persistent list.
	Ephemeral bool `json:"ephemeral"`

	CreatedAt time.Time `json:"created_at"`
}

// ─── Domain snapshots ────────────────────────────────────────────────────────

// BackupState represents the lifecycle phase of an event backup run.
type BackupState string

const (
	BackupInitializing BackupState = "initializing"
	BackupBackingUp    BackupState = "backing_up"
	BackupCompleted    BackupState = "completed"
	BackupFailed       BackupState = "failed"
)

// BackupStatus is the progress snapshot of one backup run. Produced by the
// backup collaborator, observed read-only by the watcher. Immutable once
// State reaches completed or failed.
type BackupStatus struct {
	BackupID       string      `json:"backup_id"`
	EventID        string      `json:"event_id"`
	State          BackupState `json:"state"`
	TotalItems     int         `json:"total_items"`
	ProcessedItems int         `json:"processed_items"`
	SuccessCount   int         `json:"success_count"`
	FailureCount   int         `json:"failure_count"`
	StartedAt      time.Time   `json:"started_at"`
	EndedAt        *time.Time  `json:"ended_at,omitempty"`
}

// DSLRStatus is the tethering-software status snapshot.
type DSLRStatus struct {
	Connected     bool       `json:"connected"`
	Model         string     `json:"model,omitempty"`
	Port          string     `json:"port,omitempty"`
	CaptureCount  int        `json:"capture_count"`
	LastCaptureAt *time.Time `json:"last_capture_at,omitempty"`
	Error         string     `json:"error,omitempty"`
}

// CameraStatus is the hardware-level camera snapshot.
type CameraStatus struct {
	BatteryPercent int    `json:"battery_percent"`
	StorageFreeMB  int64  `json:"storage_free_mb"`
	Connection     string `json:"connection"`
	Recording      bool   `json:"recording"`
}

// UploadProgress is the photo-upload pipeline snapshot.
type UploadProgress struct {
	EventID   string `json:"event_id"`
	Queued    int    `json:"queued"`
	Uploading int    `json:"uploading"`
	Completed int    `json:"completed"`
	Failed    int    `json:"failed"`

	// CurrentFile is the name of the file being uploaded, if any.
	CurrentFile string `json:"current_file,omitempty"`
}

// SystemStatus is the host resource utilization snapshot.
type SystemStatus struct {
	CPUPercent    float64 `json:"cpu_percent"`
	MemoryPercent float64 `json:"memory_percent"`
	DiskPercent   float64 `json:"disk_percent"`
	Hostname      string  `json:"hostname"`
}

// ─── Client metadata ─────────────────────────────────────────────────────────

// ClientType is the declared device class of a connecting client.
type ClientType string

const (
	ClientDesktop ClientType = "desktop"
	ClientMobile  ClientType = "mobile"
)

// NetworkClass is the client-declared network quality hint. It only tunes
// timeouts and transport ordering, never correctness semantics.
type NetworkClass string

const (
	NetworkFast        NetworkClass = "fast"
	NetworkSlow        NetworkClass = "slow"
	NetworkConstrained NetworkClass = "constrained"
)

// NewEvent builds an Event with the payload marshalled and the timestamp set
// to the wall clock. Producers holding an injected clock should use
// NewEventAt instead.
func NewEvent(t EventType, room string, payload any, source string) Event {
	return NewEventAt(time.Now().UTC(), t, room, payload, source)
}

// NewEventAt is NewEvent with an explicit timestamp. All payload types in
// this package are marshalable; on the impossible marshal failure the
// payload degrades to JSON null rather than panicking.
func NewEventAt(ts time.Time, t EventType, room string, payload any, source string) Event {
	raw, err := json.Marshal(payload)
	if err != nil {
		raw = json.RawMessage("null")
	}
	return Event{
		Type:      t,
		Room:      room,
		Payload:   raw,
		Timestamp: ts,
		Source:    source,
	}
}

// UnmarshalPayload decodes the payload into v. Which concrete type applies
// is determined by the event's Type.
func (e Event) UnmarshalPayload(v any) error {
	return json.Unmarshal(e.Payload, v)
}
