package handler

import (
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/devnovikov/algoroom/internal/common/cnst"
	"github.com/devnovikov/algoroom/internal/common/errorx"
	"github.com/devnovikov/algoroom/internal/protocol"
)

// HeaderClientID names the endpoint that originated a code push
const HeaderClientID = "X-Client-Id"

// CreateSession handles POST /sessions
func (h *Handler) CreateSession(c *gin.Context) {
	var req protocol.CreateSessionRequest
	if err := bindOptionalJSON(c, &req); err != nil {
		_ = c.Error(errorx.InvalidRequest("Malformed request body", err))
		return
	}

	lang, err := protocol.ParseLanguage(string(req.Language))
	if err != nil {
		_ = c.Error(errorx.InvalidRequest(err.Error(), err))
		return
	}

	sess, err := h.store.Create(c.Request.Context(), lang)
	if err != nil {
		_ = c.Error(err)
		return
	}

	h.logger.Info("session created",
		zap.String(cnst.AttrSessionID, sess.ID),
		zap.String("language", lang.String()))
	c.JSON(http.StatusCreated, sess)
}

// GetSession handles GET /sessions/:id. An unknown id is materialized with
// the default language and empty code.
func (h *Handler) GetSession(c *gin.Context) {
	id := c.Param("id")

	sess, err := h.store.GetOrCreate(c.Request.Context(), id, protocol.DefaultLanguage)
	if err != nil {
		_ = c.Error(err)
		return
	}

	c.JSON(http.StatusOK, sess)
}

// UpdateCode handles PUT /sessions/:id/code and fans the stored document out
// to every endpoint except the one named by X-Client-Id.
func (h *Handler) UpdateCode(c *gin.Context) {
	id := c.Param("id")

	var req protocol.UpdateCodeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		_ = c.Error(errorx.InvalidRequest("Malformed request body", err))
		return
	}
	if req.Code == nil {
		_ = c.Error(errorx.InvalidRequest("code is required", nil))
		return
	}

	var lang *protocol.Language
	if req.Language != "" {
		parsed, err := protocol.ParseLanguage(string(req.Language))
		if err != nil {
			_ = c.Error(errorx.InvalidRequest(err.Error(), err))
			return
		}
		lang = &parsed
	}

	sess, err := h.store.UpdateCode(c.Request.Context(), id, *req.Code, lang)
	if err != nil {
		if errors.Is(err, cnst.ErrSessionNotFound) {
			_ = c.Error(errorx.NotFound(id, err))
			return
		}
		_ = c.Error(err)
		return
	}

	origin := c.GetHeader(HeaderClientID)
	delivered := h.hub.BroadcastExcept(c.Request.Context(), id,
		protocol.NewCodeUpdate(id, sess.Code, sess.Language), origin)

	h.logger.Debug("code updated",
		zap.String(cnst.AttrSessionID, id),
		zap.String(cnst.AttrEndpointID, origin),
		zap.Int("delivered", delivered))
	c.JSON(http.StatusOK, sess)
}

// ReportExecution handles POST /sessions/:id/execution-result
func (h *Handler) ReportExecution(c *gin.Context) {
	id := c.Param("id")

	var result protocol.ExecutionResult
	if err := c.ShouldBindJSON(&result); err != nil {
		_ = c.Error(errorx.InvalidRequest("Malformed request body", err))
		return
	}
	if result.ExecutionTime < 0 {
		_ = c.Error(errorx.InvalidRequest("executionTime must not be negative", nil))
		return
	}

	if _, err := h.store.Get(c.Request.Context(), id); err != nil {
		if errors.Is(err, cnst.ErrSessionNotFound) {
			_ = c.Error(errorx.NotFound(id, err))
			return
		}
		_ = c.Error(err)
		return
	}

	h.hub.Broadcast(c.Request.Context(), id, protocol.NewExecutionResult(id, result))
	c.Status(http.StatusNoContent)
}

// Health handles GET /health
func (h *Handler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "healthy"})
}

// bindOptionalJSON decodes the body into obj, treating an empty body as {}
func bindOptionalJSON(c *gin.Context, obj any) error {
	if c.Request.Body == nil || c.Request.ContentLength == 0 {
		return nil
	}
	if err := c.ShouldBindJSON(obj); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}
