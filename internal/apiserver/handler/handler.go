package handler

import (
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/devnovikov/algoroom/internal/apiserver/database"
	"github.com/devnovikov/algoroom/internal/apiserver/middleware"
	"github.com/devnovikov/algoroom/internal/common/config"
	"github.com/devnovikov/algoroom/internal/hub"
)

// Handler serves the session REST routes and the session websocket
type Handler struct {
	logger   *zap.Logger
	store    database.Store
	hub      *hub.Hub
	hubCfg   config.HubConfig
	upgrader websocket.Upgrader
}

// New creates a Handler. Websocket upgrades are accepted from the configured
// CORS origins and from non-browser clients that send no Origin header.
func New(logger *zap.Logger, store database.Store, h *hub.Hub, cfg *config.ServerConfig) *Handler {
	origins := cfg.CORS.AllowOrigins
	return &Handler{
		logger: logger.Named("handler"),
		store:  store,
		hub:    h,
		hubCfg: cfg.Hub,
		upgrader: websocket.Upgrader{
			HandshakeTimeout: 10 * time.Second,
			CheckOrigin: func(r *http.Request) bool {
				origin := r.Header.Get("Origin")
				return origin == "" || middleware.OriginAllowed(origins, origin)
			},
		},
	}
}
