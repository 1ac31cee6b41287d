package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/devnovikov/algoroom/internal/apiserver"
	"github.com/devnovikov/algoroom/internal/apiserver/database"
	"github.com/devnovikov/algoroom/internal/common/cnst"
	"github.com/devnovikov/algoroom/internal/common/config"
	"github.com/devnovikov/algoroom/internal/hub"
	"github.com/devnovikov/algoroom/pkg/helper"
	"github.com/devnovikov/algoroom/pkg/logger"
	"github.com/devnovikov/algoroom/pkg/metrics"
	"github.com/devnovikov/algoroom/pkg/trace"
	"github.com/devnovikov/algoroom/pkg/version"
)

const (
	defaultServerConfig = "algoroom.yaml"
	shutdownTimeout     = 10 * time.Second
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the session server",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, cfgPath, err := loadServerConfig(configPath)
		if err != nil {
			return err
		}
		return serve(cmd.Context(), cfg, cfgPath)
	},
}

// loadServerConfig reads the server configuration. Without an explicit path
// a missing default file falls back to built-in defaults.
func loadServerConfig(path string) (*config.ServerConfig, string, error) {
	name := path
	if name == "" {
		name = defaultServerConfig
	}

	cfg, cfgPath, err := config.LoadConfig[config.ServerConfig](name)
	if err != nil {
		if path != "" || !errors.Is(err, os.ErrNotExist) {
			return nil, cfgPath, fmt.Errorf("failed to load configuration: %w", err)
		}
		cfg = &config.ServerConfig{}
		cfg.SetDefaults()
		cfgPath = ""
	}

	if err := config.ValidateServerConfig(cfg); err != nil {
		return nil, cfgPath, err
	}
	return cfg, cfgPath, nil
}

func serve(parent context.Context, cfg *config.ServerConfig, cfgPath string) error {
	if parent == nil {
		parent = context.Background()
	}

	lg, err := logger.NewLogger(&cfg.Logger)
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}
	defer func() { _ = lg.Sync() }()

	if cfg.Logger.Level != "debug" {
		gin.SetMode(gin.ReleaseMode)
	}

	lg.Info("starting "+cnst.AppName,
		zap.String("version", version.Get()),
		zap.String("config", cfgPath),
		zap.Int("port", cfg.Port))

	ctx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := trace.InitTracing(ctx, &cfg.Tracing, lg)
	if err != nil {
		return fmt.Errorf("failed to initialize tracing: %w", err)
	}
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := shutdownTracing(sctx); err != nil {
			lg.Warn("failed to flush traces", zap.Error(err))
		}
	}()

	pidPath := helper.GetPIDPath(cfg.PID)
	if err := helper.WritePIDFile(pidPath); err != nil {
		lg.Warn("failed to write PID file", zap.String("path", pidPath), zap.Error(err))
	} else {
		defer func() { _ = helper.RemovePIDFile(pidPath) }()
	}

	store, err := database.NewStore(&cfg.Database)
	if err != nil {
		return fmt.Errorf("failed to open session store: %w", err)
	}
	defer func() { _ = store.Close() }()

	relay, err := hub.NewRelay(ctx, lg, &cfg.Relay)
	if err != nil {
		return fmt.Errorf("failed to create relay: %w", err)
	}
	defer func() { _ = relay.Close() }()

	var m *metrics.Metrics
	if cfg.Metrics.Enabled {
		m = metrics.New(cfg.Metrics)
	}

	h := hub.New(lg, store, hub.WithRelay(relay), hub.WithMetrics(m))
	srv := apiserver.NewServer(lg, cfg, store, h, m)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(srv.Start)
	g.Go(func() error {
		return h.Run(gctx)
	})
	g.Go(func() error {
		<-gctx.Done()
		lg.Info("shutting down")

		sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := h.Shutdown(sctx); err != nil {
			lg.Warn("hub shutdown incomplete", zap.Error(err))
		}
		return srv.Shutdown(sctx)
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		lg.Error("server stopped with error", zap.Error(err))
		return err
	}
	lg.Info("server stopped")
	return nil
}
