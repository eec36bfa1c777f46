package api

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/snapstream-io/snapstream/internal/notify"
	"github.com/snapstream-io/snapstream/internal/rooms"
	"github.com/snapstream-io/snapstream/internal/status"
)

// statusDomains maps the URL domain segment to the room whose cached event
// the endpoint serves. The polling fallback in the client library requests
// these paths with the same room mapping.
var statusDomains = map[string]string{
	"dslr":   rooms.DSLRMonitoring,
	"camera": rooms.CameraStatus,
	"backup": rooms.BackupStatus,
	"upload": rooms.UploadProgress,
	"system": rooms.SystemStatus,
}

// StatusHandler serves the REST snapshot endpoints consumed by clients whose
// streaming transport is down. Each endpoint returns the room's latest
// broadcast event verbatim — envelope included — so the two delivery paths
// are byte-compatible and the UI treats them identically.
type StatusHandler struct {
	store  *status.Store
	logger *zap.Logger
}

// NewStatusHandler creates a StatusHandler backed by store.
func NewStatusHandler(store *status.Store, logger *zap.Logger) *StatusHandler {
	return &StatusHandler{
		store:  store,
		logger: logger.Named("status_handler"),
	}
}

// Get handles GET /api/v1/status/{domain}.
func (h *StatusHandler) Get(w http.ResponseWriter, r *http.Request) {
	domain := chi.URLParam(r, "domain")
	room, ok := statusDomains[domain]
	if !ok {
		ErrBadRequest(w, fmt.Sprintf("unknown status domain %q", domain))
		return
	}

	ev, ok := h.store.Get(room)
	if !ok {
		ErrNotFound(w, fmt.Sprintf("no snapshot recorded for %q yet", domain), "no_snapshot")
		return
	}
	Ok(w, ev)
}

// NotificationHandler serves the in-memory notification history.
type NotificationHandler struct {
	history *notify.History
	logger  *zap.Logger
}

// NewNotificationHandler creates a NotificationHandler backed by history.
func NewNotificationHandler(history *notify.History, logger *zap.Logger) *NotificationHandler {
	return &NotificationHandler{
		history: history,
		logger:  logger.Named("notification_handler"),
	}
}

// List handles GET /api/v1/notifications. The optional "limit" query
// parameter bounds the result; entries come back newest first.
func (h *NotificationHandler) List(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			ErrBadRequest(w, "limit must be a non-negative integer")
			return
		}
		limit = n
	}

	Ok(w, h.history.Recent(limit))
}
