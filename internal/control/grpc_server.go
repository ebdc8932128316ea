// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

// Package control provides the gRPC health interface used for process
// management and orchestration probes.
package control

import (
	"context"
	"log/slog"
	"net"
	"sync"
	"sync/atomic"

	"github.com/samber/oops"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

// ServiceName is the health service name the relay reports under.
const ServiceName = "roomrelay"

// GRPCServer serves the standard gRPC health service. The overall ("") and
// ServiceName statuses move together.
type GRPCServer struct {
	health   *health.Server
	mu       sync.Mutex
	listener net.Listener
	server   *grpc.Server
	running  atomic.Bool
}

// NewGRPCServer creates a control server reporting NOT_SERVING until
// SetServing is called.
func NewGRPCServer() *GRPCServer {
	s := &GRPCServer{health: health.NewServer()}
	s.setStatus(healthpb.HealthCheckResponse_NOT_SERVING)
	return s
}

// Start begins listening on addr. The returned channel receives the serve
// error, if any, and is closed when the server stops.
func (s *GRPCServer) Start(addr string) (<-chan error, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener != nil {
		return nil, oops.Errorf("control server is already running")
	}

	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, oops.With("addr", addr).Wrapf(err, "control listen")
	}
	s.listener = listener
	s.server = grpc.NewServer()
	healthpb.RegisterHealthServer(s.server, s.health)
	s.running.Store(true)

	errCh := make(chan error, 1)
	go func(srv *grpc.Server) {
		defer close(errCh)
		if err := srv.Serve(listener); err != nil {
			slog.Error("control gRPC server error", "error", err)
			errCh <- err
		}
	}(s.server)

	slog.Info("control server started", "addr", listener.Addr().String())
	return errCh, nil
}

// SetServing marks the relay as serving.
func (s *GRPCServer) SetServing() {
	s.setStatus(healthpb.HealthCheckResponse_SERVING)
}

// SetDraining marks the relay as not serving. Watchers are notified.
func (s *GRPCServer) SetDraining() {
	s.setStatus(healthpb.HealthCheckResponse_NOT_SERVING)
}

func (s *GRPCServer) setStatus(status healthpb.HealthCheckResponse_ServingStatus) {
	s.health.SetServingStatus("", status)
	s.health.SetServingStatus(ServiceName, status)
}

// Stop marks the server not serving and stops it gracefully. ctx bounds the
// graceful phase; open health watches are cut when it expires.
func (s *GRPCServer) Stop(ctx context.Context) error {
	s.mu.Lock()
	srv := s.server
	s.server = nil
	s.listener = nil
	s.mu.Unlock()
	if srv == nil {
		return nil
	}

	s.health.Shutdown()

	done := make(chan struct{})
	go func() {
		srv.GracefulStop()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		srv.Stop()
		<-done
	}

	s.running.Store(false)
	slog.Info("control server stopped")
	return nil
}

// Running reports whether the server is listening.
func (s *GRPCServer) Running() bool {
	return s.running.Load()
}

// Addr returns the listen address, or "" when not running.
func (s *GRPCServer) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}
