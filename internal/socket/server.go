// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

// Package socket provides the WebSocket transport for the room relay.
package socket

import (
	"context"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/samber/oops"

	"github.com/holomush/roomrelay/internal/relay"
)

// DefaultPath is the URL path WebSocket clients connect to.
const DefaultPath = "/ws"

// Server serves the WebSocket endpoint.
type Server struct {
	addr    string
	path    string
	hub     *relay.Hub
	handler *Handler
	cancel  context.CancelFunc

	mu         sync.RWMutex
	listener   net.Listener
	httpServer *http.Server
	running    atomic.Bool
}

// NewServer creates a WebSocket server for hub. Handler options are passed
// through to NewHandler.
func NewServer(addr, path string, hub *relay.Hub, lifecycle *relay.Lifecycle, opts ...HandlerOption) *Server {
	if path == "" {
		path = DefaultPath
	}
	ctx, cancel := context.WithCancel(context.Background())
	opts = append(opts, WithBaseContext(ctx))

	return &Server{
		addr:    addr,
		path:    path,
		hub:     hub,
		handler: NewHandler(lifecycle, opts...),
		cancel:  cancel,
	}
}

// Start begins serving. The returned channel receives a serve error, if any,
// and is closed when the server stops.
func (s *Server) Start() (<-chan error, error) {
	if !s.running.CompareAndSwap(false, true) {
		return nil, oops.Errorf("websocket server already running")
	}

	listener, err := net.Listen("tcp", s.addr)
	if err != nil {
		s.running.Store(false)
		return nil, oops.With("addr", s.addr).Wrap(err)
	}

	mux := http.NewServeMux()
	mux.Handle("GET "+s.path, s.handler)

	httpSrv := &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	s.mu.Lock()
	s.listener = listener
	s.httpServer = httpSrv
	s.mu.Unlock()

	errCh := make(chan error, 1)
	go func() {
		defer close(errCh)
		if serveErr := httpSrv.Serve(listener); serveErr != nil && serveErr != http.ErrServerClosed {
			slog.Error("websocket server error", "error", serveErr)
			errCh <- serveErr
		}
	}()

	slog.Info("websocket server started", "addr", listener.Addr().String(), "path", s.path)
	return errCh, nil
}

// Stop closes every connection with 1001, waits for their teardown and
// shuts the HTTP server down.
func (s *Server) Stop(ctx context.Context) error {
	if !s.running.CompareAndSwap(true, false) {
		return nil
	}

	s.cancel()
	if n := s.hub.Drain(relay.CloseGoingAway, "server shutting down"); n > 0 {
		slog.Info("draining connections", "count", n)
	}
	if err := s.handler.Wait(ctx); err != nil {
		slog.Warn("connections still open at shutdown deadline", "error", err)
	}

	s.mu.RLock()
	httpSrv := s.httpServer
	s.mu.RUnlock()
	if httpSrv != nil {
		if err := httpSrv.Shutdown(ctx); err != nil {
			return oops.With("operation", "shutdown_websocket_server").Wrap(err)
		}
	}

	slog.Info("websocket server stopped")
	return nil
}

// Addr returns the listen address, or "" when not running.
func (s *Server) Addr() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// Ready reports whether the server is accepting connections.
func (s *Server) Ready() bool {
	return s.running.Load()
}

// Handler returns the underlying WebSocket handler.
func (s *Server) Handler() *Handler {
	return s.handler
}
