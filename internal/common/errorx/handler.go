package errorx

import (
	"errors"
	"fmt"
	"runtime"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/devnovikov/algoroom/internal/common/cnst"
)

// ErrorHandler renders errors collected on a gin context as ApiError bodies
type ErrorHandler struct {
	logger *zap.Logger
}

// NewErrorHandler creates a new error handler
func NewErrorHandler(logger *zap.Logger) *ErrorHandler {
	return &ErrorHandler{
		logger: logger,
	}
}

// HandleError converts any error to APIError and writes the response
func (h *ErrorHandler) HandleError(c *gin.Context, err error) {
	if err == nil {
		return
	}

	apiErr := h.ConvertToAPIError(err)
	apiErr.TraceID = ExtractTraceID(c)

	h.logError(c, apiErr, err)

	c.Header("X-Trace-Id", apiErr.TraceID)
	c.AbortWithStatusJSON(apiErr.HTTPStatus, apiErr.Body())
}

// ConvertToAPIError maps domain sentinels to their REST representation.
// Anything unrecognised becomes an internal server error.
func (h *ErrorHandler) ConvertToAPIError(err error) *APIError {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr
	}

	switch {
	case errors.Is(err, cnst.ErrSessionNotFound):
		return ErrSessionNotFound.WithCause(err)
	case errors.Is(err, cnst.ErrInvalidLanguage), errors.Is(err, cnst.ErrProtocol):
		return ErrInvalidRequest.WithMessage("%s", err.Error()).WithCause(err)
	}

	return ErrInternal.WithCause(err)
}

func (h *ErrorHandler) logError(c *gin.Context, apiErr *APIError, originalErr error) {
	fields := []zap.Field{
		zap.String("trace_id", apiErr.TraceID),
		zap.String("error_code", apiErr.Code),
		zap.Int("http_status", apiErr.HTTPStatus),
		zap.String("path", c.Request.URL.Path),
		zap.String("method", c.Request.Method),
		zap.String("client_ip", c.ClientIP()),
	}
	if originalErr != nil && originalErr.Error() != apiErr.Message {
		fields = append(fields, zap.Error(originalErr))
	}
	for k, v := range apiErr.Details {
		fields = append(fields, zap.Any(k, v))
	}

	switch apiErr.Severity {
	case SeverityInfo:
		h.logger.Info(apiErr.Message, fields...)
	case SeverityWarning:
		h.logger.Warn(apiErr.Message, fields...)
	case SeverityCritical:
		buf := make([]byte, 4096)
		n := runtime.Stack(buf, false)
		fields = append(fields, zap.String("stack_trace", string(buf[:n])))
		h.logger.Error(apiErr.Message, fields...)
	default:
		h.logger.Error(apiErr.Message, fields...)
	}
}

// ErrorMiddleware renders the last error a handler attached with c.Error
func (h *ErrorHandler) ErrorMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) > 0 && !c.Writer.Written() {
			h.HandleError(c, c.Errors.Last().Err)
		}
	}
}

// RecoveryMiddleware turns a handler panic into a 500 ApiError
func (h *ErrorHandler) RecoveryMiddleware() gin.HandlerFunc {
	return gin.CustomRecoveryWithWriter(nil, func(c *gin.Context, recovered any) {
		h.HandleError(c, ErrInternal.WithDetail("panic", fmt.Sprintf("%v", recovered)))
	})
}

// ExtractTraceID returns the request's trace id, generating one if absent
func ExtractTraceID(c *gin.Context) string {
	if traceID := c.GetString("trace_id"); traceID != "" {
		return traceID
	}
	if traceID := c.GetHeader("X-Trace-Id"); traceID != "" {
		c.Set("trace_id", traceID)
		return traceID
	}

	traceID := uuid.New().String()
	c.Set("trace_id", traceID)
	return traceID
}
