package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/snapstream-io/snapstream/internal/auth"
	"github.com/snapstream-io/snapstream/internal/gateway"
	"github.com/snapstream-io/snapstream/internal/metrics"
	"github.com/snapstream-io/snapstream/internal/notify"
	"github.com/snapstream-io/snapstream/internal/rooms"
	"github.com/snapstream-io/snapstream/internal/status"
	"github.com/snapstream-io/snapstream/shared/types"
)

type testEnv struct {
	router  http.Handler
	store   *status.Store
	history *notify.History
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	logger := zap.NewNop()
	registry := rooms.NewRegistry()
	store := status.NewStore()
	promReg := prometheus.NewRegistry()
	m := metrics.New(promReg)
	hub := gateway.NewHub(gateway.Config{}, registry, store, m, clockwork.NewFakeClock(), logger)
	history := notify.NewHistory(notify.DefaultHistorySize)

	verifier, err := auth.NewVerifierGenerated("snapstream")
	require.NoError(t, err)

	router := NewRouter(RouterConfig{
		Hub:      hub,
		Store:    store,
		History:  history,
		Verifier: verifier,
		Registry: promReg,
		Logger:   logger,
	})
	return &testEnv{router: router, store: store, history: history}
}

func (e *testEnv) get(t *testing.T, path string) (*http.Response, map[string]json.RawMessage) {
	t.Helper()

	req := httptest.NewRequest(http.MethodGet, path, nil)
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)

	res := rec.Result()
	var body map[string]json.RawMessage
	require.NoError(t, json.NewDecoder(res.Body).Decode(&body))
	return res, body
}

func TestStatusReturnsCachedEventVerbatim(t *testing.T) {
	env := newTestEnv(t)

	ev := types.NewEvent(types.EventBackupStatus, rooms.BackupStatus, types.BackupStatus{
		State:          types.BackupBackingUp,
		ProcessedItems: 6,
		TotalItems:     10,
	}, "file-watcher")
	env.store.Set(rooms.BackupStatus, ev)

	res, body := env.get(t, "/api/v1/status/backup")
	assert.Equal(t, http.StatusOK, res.StatusCode)

	var got types.Event
	require.NoError(t, json.Unmarshal(body["data"], &got))
	assert.Equal(t, types.EventBackupStatus, got.Type)
	assert.Equal(t, rooms.BackupStatus, got.Room)
	assert.True(t, ev.Timestamp.Equal(got.Timestamp))

	var snap types.BackupStatus
	require.NoError(t, json.Unmarshal(got.Payload, &snap))
	assert.Equal(t, 6, snap.ProcessedItems)
}

func TestStatusUnknownDomain(t *testing.T) {
	env := newTestEnv(t)

	res, body := env.get(t, "/api/v1/status/lighting")
	assert.Equal(t, http.StatusBadRequest, res.StatusCode)
	assert.Contains(t, string(body["error"]), "bad_request")
}

func TestStatusNoSnapshotYet(t *testing.T) {
	env := newTestEnv(t)

	res, body := env.get(t, "/api/v1/status/dslr")
	assert.Equal(t, http.StatusNotFound, res.StatusCode)
	assert.Contains(t, string(body["error"]), "no_snapshot")
}

func TestNotificationsNewestFirstWithLimit(t *testing.T) {
	env := newTestEnv(t)
	for _, title := range []string{"first", "second", "third"} {
		env.history.Add(types.NotificationPayload{
			ID:        title,
			Title:     title,
			CreatedAt: time.Now().UTC(),
		})
	}

	res, body := env.get(t, "/api/v1/notifications?limit=2")
	assert.Equal(t, http.StatusOK, res.StatusCode)

	var list []types.NotificationPayload
	require.NoError(t, json.Unmarshal(body["data"], &list))
	require.Len(t, list, 2)
	assert.Equal(t, "third", list[0].Title)
	assert.Equal(t, "second", list[1].Title)
}

func TestNotificationsRejectsBadLimit(t *testing.T) {
	env := newTestEnv(t)

	res, _ := env.get(t, "/api/v1/notifications?limit=-1")
	assert.Equal(t, http.StatusBadRequest, res.StatusCode)

	res, _ = env.get(t, "/api/v1/notifications?limit=abc")
	assert.Equal(t, http.StatusBadRequest, res.StatusCode)
}

func TestHealthz(t *testing.T) {
	env := newTestEnv(t)

	res, body := env.get(t, "/api/v1/healthz")
	assert.Equal(t, http.StatusOK, res.StatusCode)
	assert.Contains(t, string(body["data"]), `"status":"ok"`)
	assert.Contains(t, string(body["data"]), `"connected_clients":0`)
}

func TestMetricsEndpointExposed(t *testing.T) {
	env := newTestEnv(t)

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rec := httptest.NewRecorder()
	env.router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "snapstream_connected_clients")
}
