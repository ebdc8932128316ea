// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package notifyapi

import (
	"context"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/samber/oops"

	"github.com/holomush/roomrelay/internal/relay"
)

// Server serves the collaborator API on an internal address.
type Server struct {
	addr    string
	handler http.Handler

	mu         sync.Mutex
	listener   net.Listener
	httpServer *http.Server
}

// NewServer creates an API server for notifier.
func NewServer(addr string, notifier relay.Notifier, logger *slog.Logger) *Server {
	return &Server{addr: addr, handler: NewHandler(notifier, logger)}
}

// Start begins serving in the background.
func (s *Server) Start() (<-chan error, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.httpServer != nil {
		return nil, oops.Errorf("notify API server already running")
	}

	listener, err := net.Listen("tcp", s.addr)
	if err != nil {
		return nil, oops.With("addr", s.addr).Wrap(err)
	}
	s.listener = listener
	s.httpServer = &http.Server{
		Handler:           s.handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func(srv *http.Server) {
		defer close(errCh)
		if serveErr := srv.Serve(listener); serveErr != nil && serveErr != http.ErrServerClosed {
			slog.Error("notify API server error", "error", serveErr)
			errCh <- serveErr
		}
	}(s.httpServer)

	slog.Info("notify API server started", "addr", listener.Addr().String())
	return errCh, nil
}

// Stop shuts the server down.
func (s *Server) Stop(ctx context.Context) error {
	s.mu.Lock()
	srv := s.httpServer
	s.httpServer = nil
	s.mu.Unlock()
	if srv == nil {
		return nil
	}
	if err := srv.Shutdown(ctx); err != nil {
		return oops.With("operation", "shutdown_notify_api").Wrap(err)
	}
	slog.Info("notify API server stopped")
	return nil
}

// Addr returns the listen address, or "" before Start.
func (s *Server) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}
