package apiserver

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.uber.org/zap"

	"github.com/devnovikov/algoroom/internal/apiserver/database"
	"github.com/devnovikov/algoroom/internal/apiserver/handler"
	"github.com/devnovikov/algoroom/internal/apiserver/middleware"
	"github.com/devnovikov/algoroom/internal/common/config"
	"github.com/devnovikov/algoroom/internal/common/errorx"
	"github.com/devnovikov/algoroom/internal/hub"
	"github.com/devnovikov/algoroom/pkg/metrics"
)

// Server is the HTTP front of the session service
type Server struct {
	logger     *zap.Logger
	cfg        *config.ServerConfig
	router     *gin.Engine
	httpServer *http.Server
}

// NewServer wires the REST and websocket routes. m may be nil when metrics
// are disabled.
func NewServer(logger *zap.Logger, cfg *config.ServerConfig, store database.Store, h *hub.Hub, m *metrics.Metrics) *Server {
	router := gin.New()
	errs := errorx.NewErrorHandler(logger.Named("errors"))

	router.Use(errs.RecoveryMiddleware())
	if cfg.Tracing.Enabled {
		router.Use(otelgin.Middleware(cfg.Tracing.ServiceName))
	}
	router.Use(middleware.Logger(logger.Named("http")))
	router.Use(middleware.CORS(cfg.CORS))
	if m != nil {
		router.Use(m.Middleware())
		router.GET(cfg.Metrics.Path, gin.WrapH(m.Handler()))
	}
	router.Use(errs.ErrorMiddleware())

	hd := handler.New(logger, store, h, cfg)
	router.GET("/health", hd.Health)

	sessions := router.Group("/sessions")
	sessions.POST("", hd.CreateSession)
	sessions.GET("/:id", hd.GetSession)
	sessions.PUT("/:id/code", hd.UpdateCode)
	sessions.POST("/:id/execution-result", hd.ReportExecution)

	router.GET("/ws/sessions/:id", hd.SessionSocket)

	return &Server{
		logger: logger.Named("apiserver"),
		cfg:    cfg,
		router: router,
		httpServer: &http.Server{
			Addr:              fmt.Sprintf(":%d", cfg.Port),
			Handler:           router,
			ReadHeaderTimeout: 10 * time.Second,
		},
	}
}

// Handler exposes the router, mainly for tests
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start listens on the configured port and serves until Shutdown
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.httpServer.Addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.httpServer.Addr, err)
	}
	return s.Serve(ln)
}

// Serve serves on ln until Shutdown
func (s *Server) Serve(ln net.Listener) error {
	s.logger.Info("server listening", zap.String("addr", ln.Addr().String()))
	if err := s.httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown stops accepting requests and waits for in-flight ones.
// Hijacked websocket connections are closed by the hub, not here.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down server")
	return s.httpServer.Shutdown(ctx)
}
