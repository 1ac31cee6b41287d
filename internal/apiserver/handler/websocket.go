package handler

import (
	"context"
	"errors"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/devnovikov/algoroom/internal/common/cnst"
	"github.com/devnovikov/algoroom/internal/hub"
)

// SessionSocket handles GET /ws/sessions/:id. The connection is receive-only
// for the client; it stays attached to the hub until either side closes it.
func (h *Handler) SessionSocket(c *gin.Context) {
	id := c.Param("id")
	clientID := c.Query("clientId")
	if clientID == "" {
		clientID = uuid.NewString()
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		// the upgrader has already replied
		h.logger.Warn("failed to upgrade websocket connection",
			zap.String(cnst.AttrSessionID, id),
			zap.Error(err))
		return
	}

	ep := hub.NewWSEndpoint(clientID, conn, h.hubCfg, h.logger)
	ctx := context.WithoutCancel(c.Request.Context())

	if err := h.hub.Attach(ctx, id, ep); err != nil {
		code, reason := cnst.CloseInternalError, "internal error"
		switch {
		case errors.Is(err, cnst.ErrSessionNotFound):
			code, reason = cnst.ClosePolicyViolation, "invalid session"
		case errors.Is(err, cnst.ErrHubShutdown):
			code, reason = cnst.CloseGoingAway, "server shutting down"
		}
		h.logger.Info("websocket rejected",
			zap.String(cnst.AttrSessionID, id),
			zap.String(cnst.AttrEndpointID, clientID),
			zap.Int("close_code", code),
			zap.Error(err))
		_ = ep.Close(code, reason)
		ep.Run()
		return
	}

	ep.Run()
	h.hub.Detach(ctx, id, ep)
}
