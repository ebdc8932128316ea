// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/holomush/roomrelay/internal/config"
	"github.com/holomush/roomrelay/internal/control"
	"github.com/holomush/roomrelay/internal/logging"
	"github.com/holomush/roomrelay/internal/notifyapi"
	"github.com/holomush/roomrelay/internal/observability"
	"github.com/holomush/roomrelay/internal/pgnotify"
	"github.com/holomush/roomrelay/internal/relay"
	"github.com/holomush/roomrelay/internal/socket"
)

const serviceName = "roomrelay"

// NewServeCmd creates the serve subcommand.
func NewServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the relay",
		Long: `Run the WebSocket relay together with the notify API, the metrics
and health endpoints, the gRPC control health service and, when a
PostgreSQL URL is configured, the LISTEN/NOTIFY bridge.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return fmt.Errorf("invalid configuration: %w", err)
			}
			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}
			return runServe(ctx, cmd, cfg)
		},
	}
	config.BindFlags(cmd.Flags())
	return cmd
}

// server owns every component of a running relay.
type server struct {
	cfg    config.Config
	logger *slog.Logger

	hub       *relay.Hub
	websocket *socket.Server
	api       *notifyapi.Server
	obs       *observability.Server
	control   *control.GRPCServer
	bridge    *pgnotify.Bridge

	draining    atomic.Bool
	stopBridge  context.CancelFunc
	monitorDone context.CancelFunc
}

func newServer(cfg config.Config, logger *slog.Logger) (*server, error) {
	origins, err := socket.NewOriginChecker(cfg.WebSocket.AllowedOrigins)
	if err != nil {
		return nil, fmt.Errorf("invalid allowed origins: %w", err)
	}

	hub := relay.NewHub(relay.WithLogger(logger))
	lifecycle := relay.NewLifecycle(hub, nil, logger)

	s := &server{cfg: cfg, logger: logger, hub: hub}
	s.websocket = socket.NewServer(cfg.WebSocket.Addr, cfg.WebSocket.Path, hub, lifecycle,
		socket.WithOriginChecker(origins),
		socket.WithConnOptions(socket.ConnOptions{
			SendQueue:     cfg.WebSocket.SendQueue,
			MaxFrameBytes: cfg.WebSocket.MaxFrameBytes,
			WriteWait:     cfg.WebSocket.WriteWait,
			PingInterval:  cfg.WebSocket.PingInterval,
			PongWait:      cfg.WebSocket.PongWait,
		}),
		socket.WithLogger(logger),
	)
	if cfg.API.Addr != "" {
		s.api = notifyapi.NewServer(cfg.API.Addr, hub, logger)
	}
	if cfg.Metrics.Addr != "" {
		s.obs = observability.NewServer(cfg.Metrics.Addr, s.ready, relay.RegisterMetrics, pgnotify.RegisterMetrics)
	}
	if cfg.Control.Addr != "" {
		s.control = control.NewGRPCServer()
	}
	if cfg.Postgres.URL != "" {
		s.bridge = pgnotify.NewBridge(hub, logger)
	}
	return s, nil
}

func (s *server) ready() bool {
	return s.websocket.Ready() && !s.draining.Load()
}

// start brings every component up. A server error cancels via cancel.
// On failure the components already started are stopped.
func (s *server) start(ctx context.Context, cancel context.CancelFunc) (err error) {
	monitorCtx, monitorDone := context.WithCancel(ctx)
	s.monitorDone = monitorDone
	defer func() {
		if err != nil {
			s.shutdown(5 * time.Second)
		}
	}()

	if s.control != nil {
		errCh, err := s.control.Start(s.cfg.Control.Addr)
		if err != nil {
			return fmt.Errorf("failed to start control server: %w", err)
		}
		go monitorServerErrors(monitorCtx, cancel, errCh, "control-grpc")
	}

	if s.obs != nil {
		errCh, err := s.obs.Start()
		if err != nil {
			return fmt.Errorf("failed to start observability server: %w", err)
		}
		go monitorServerErrors(monitorCtx, cancel, errCh, "observability")
	}

	if s.bridge != nil {
		bridgeCtx, stop := context.WithCancel(ctx)
		s.stopBridge = stop
		listener := pgnotify.NewPgListener(s.cfg.Postgres.URL, s.cfg.Postgres.Channel,
			pgnotify.WithListenerLogger(s.logger))
		if err := s.bridge.Start(bridgeCtx, listener); err != nil {
			return fmt.Errorf("failed to start postgres bridge: %w", err)
		}
		s.logger.Info("postgres bridge listening", "channel", listener.Channel())
	}

	if s.api != nil {
		errCh, err := s.api.Start()
		if err != nil {
			return fmt.Errorf("failed to start notify API: %w", err)
		}
		go monitorServerErrors(monitorCtx, cancel, errCh, "notify-api")
	}

	errCh, err := s.websocket.Start()
	if err != nil {
		return fmt.Errorf("failed to start websocket server: %w", err)
	}
	go monitorServerErrors(monitorCtx, cancel, errCh, "websocket")

	if s.control != nil {
		s.control.SetServing()
	}
	return nil
}

// shutdown drains clients with 1001 and stops every component within timeout.
func (s *server) shutdown(timeout time.Duration) {
	s.draining.Store(true)
	if s.control != nil {
		s.control.SetDraining()
	}

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	if err := s.websocket.Stop(ctx); err != nil {
		s.logger.Warn("error stopping websocket server", "error", err)
	}
	if s.stopBridge != nil {
		s.stopBridge()
		s.bridge.Wait()
	}
	if s.api != nil {
		if err := s.api.Stop(ctx); err != nil {
			s.logger.Warn("error stopping notify API", "error", err)
		}
	}
	if s.obs != nil {
		if err := s.obs.Stop(ctx); err != nil {
			s.logger.Warn("error stopping observability server", "error", err)
		}
	}
	if s.control != nil {
		if err := s.control.Stop(ctx); err != nil {
			s.logger.Warn("error stopping control server", "error", err)
		}
	}
	if s.monitorDone != nil {
		s.monitorDone()
	}
}

func runServe(ctx context.Context, cmd *cobra.Command, cfg config.Config) error {
	level, err := logging.ParseLevel(cfg.Log.Level)
	if err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	logger := logging.SetDefault(serviceName, version, cfg.Log.Format, level)

	srv, err := newServer(cfg, logger)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	if err := srv.start(ctx, cancel); err != nil {
		return err
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	cmd.Println("Relay started")
	logger.Info("relay ready",
		"websocket_addr", srv.websocket.Addr(),
		"path", cfg.WebSocket.Path,
	)

	select {
	case sig := <-sigChan:
		logger.Info("received shutdown signal", "signal", sig)
	case <-ctx.Done():
		logger.Info("context cancelled, shutting down")
	}

	logger.Info("shutting down...", "connections", srv.hub.Connections())
	srv.shutdown(cfg.ShutdownTimeout)
	logger.Info("shutdown complete")
	return nil
}

// monitorServerErrors cancels the process context when a server fails.
func monitorServerErrors(ctx context.Context, cancel context.CancelFunc, errCh <-chan error, serverName string) {
	select {
	case err, ok := <-errCh:
		if !ok {
			return
		}
		if err != nil {
			slog.Error("server error, triggering shutdown",
				"server", serverName,
				"error", err,
			)
			cancel()
		}
	case <-ctx.Done():
	}
}
