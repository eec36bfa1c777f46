package api

import (
	"net/http"

	"go.uber.org/zap"

	"github.com/snapstream-io/snapstream/internal/auth"
	"github.com/snapstream-io/snapstream/internal/gateway"
	"github.com/snapstream-io/snapstream/shared/types"
)

// WSHandler handles the WebSocket upgrade endpoint GET /api/v1/ws.
// Authentication uses a JWT passed as the `token` query parameter instead of
// the Authorization header — browsers cannot set custom headers on WebSocket
// connections opened via the native WebSocket API.
//
// Token verification is soft: an invalid, expired or absent token downgrades
// the connection to guest capability rather than rejecting it, since most
// rooms are public. Privileged rooms then reject the join, not the connect.
//
// Client metadata comes in as query parameters:
//
//	ws://host/api/v1/ws?token=<jwt>&client_type=mobile&network=slow
type WSHandler struct {
	hub      *gateway.Hub
	verifier *auth.Verifier
	logger   *zap.Logger
}

// NewWSHandler creates a new WSHandler.
func NewWSHandler(hub *gateway.Hub, verifier *auth.Verifier, logger *zap.Logger) *WSHandler {
	return &WSHandler{
		hub:      hub,
		verifier: verifier,
		logger:   logger.Named("ws_handler"),
	}
}

// ServeWS handles GET /api/v1/ws. It resolves the connection identity,
// upgrades the connection, and starts the client pumps. The handler blocks
// until the connection closes — this is expected for WebSocket handlers.
func (h *WSHandler) ServeWS(w http.ResponseWriter, r *http.Request) {
	identity := h.resolveIdentity(r)

	client, err := gateway.NewClient(h.hub, w, r, identity, h.logger)
	if err != nil {
		// The upgrader has already written the error response.
		h.logger.Warn("ws: upgrade failed", zap.Error(err))
		return
	}

	client.Run()
}

// resolveIdentity builds the connection identity from the handshake request.
// Verification failure is logged at debug level only — it is an expected,
// locally recovered condition, not an error.
func (h *WSHandler) resolveIdentity(r *http.Request) gateway.Identity {
	q := r.URL.Query()

	identity := gateway.Identity{
		ClientType: types.ClientDesktop,
		Network:    types.NetworkFast,
	}
	if types.ClientType(q.Get("client_type")) == types.ClientMobile {
		identity.ClientType = types.ClientMobile
	}
	switch nc := types.NetworkClass(q.Get("network")); nc {
	case types.NetworkSlow, types.NetworkConstrained:
		identity.Network = nc
	}

	token := q.Get("token")
	if token == "" {
		return identity
	}

	claims, err := h.verifier.Verify(token)
	if err != nil {
		h.logger.Debug("ws: token rejected, downgrading to guest", zap.Error(err))
		return identity
	}

	identity.UserID = claims.UserID
	identity.Privileged = claims.Privileged()
	return identity
}
