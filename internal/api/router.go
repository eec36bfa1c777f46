package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/snapstream-io/snapstream/internal/auth"
	"github.com/snapstream-io/snapstream/internal/gateway"
	"github.com/snapstream-io/snapstream/internal/notify"
	"github.com/snapstream-io/snapstream/internal/status"
)

// RouterConfig holds all dependencies needed to build the HTTP router.
// It is populated in main.go after all components are initialized.
type RouterConfig struct {
	Hub      *gateway.Hub
	Store    *status.Store
	History  *notify.History
	Verifier *auth.Verifier
	Registry *prometheus.Registry
	Logger   *zap.Logger
}

// NewRouter builds and returns the fully configured Chi router.
// All routes are registered under /api/v1; /metrics sits at the root the way
// Prometheus scrapers expect.
func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	// RequestID generates a unique ID for each request, used in logs and
	// response headers for tracing.
	r.Use(middleware.RequestID)

	// RealIP extracts the real client IP from X-Forwarded-For or X-Real-IP
	// headers when the server runs behind a reverse proxy.
	r.Use(middleware.RealIP)

	r.Use(RequestLogger(cfg.Logger))

	// Recoverer catches panics in handlers, logs them, and returns a 500
	// instead of crashing the server.
	r.Use(middleware.Recoverer)

	statusHandler := NewStatusHandler(cfg.Store, cfg.Logger)
	notificationHandler := NewNotificationHandler(cfg.History, cfg.Logger)
	wsHandler := NewWSHandler(cfg.Hub, cfg.Verifier, cfg.Logger)

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/ws", wsHandler.ServeWS)
		r.Get("/status/{domain}", statusHandler.Get)
		r.Get("/notifications", notificationHandler.List)
		r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
			Ok(w, map[string]any{
				"status":            "ok",
				"connected_clients": cfg.Hub.ConnectedCount(),
			})
		})
	})

	r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(cfg.Registry, promhttp.HandlerOpts{}))

	return r
}
