// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package socket

import (
	"context"
	"log/slog"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"

	"github.com/holomush/roomrelay/internal/relay"
)

// AddressFunc extracts the (user, room) address of an upgrade request.
// The relay trusts whatever it returns; an authenticating front end can
// supply its own.
type AddressFunc func(r *http.Request) relay.Address

// QueryAddress reads the roomId and userId query parameters.
func QueryAddress(r *http.Request) relay.Address {
	q := r.URL.Query()
	return relay.Address{
		UserID: q.Get("userId"),
		RoomID: q.Get("roomId"),
	}
}

// Handler upgrades HTTP requests to WebSocket connections and serves them
// through a relay.Lifecycle.
type Handler struct {
	lifecycle *relay.Lifecycle
	upgrader  websocket.Upgrader
	address   AddressFunc
	connOpts  ConnOptions
	logger    *slog.Logger
	baseCtx   context.Context
	active    sync.WaitGroup
}

// HandlerOption configures a Handler.
type HandlerOption func(*Handler)

// WithOriginChecker restricts upgrades to allowed origins.
func WithOriginChecker(oc *OriginChecker) HandlerOption {
	return func(h *Handler) {
		if oc != nil {
			h.upgrader.CheckOrigin = oc.Check
		}
	}
}

// WithAddressFunc replaces QueryAddress.
func WithAddressFunc(fn AddressFunc) HandlerOption {
	return func(h *Handler) {
		h.address = fn
	}
}

// WithConnOptions sets per-connection tuning.
func WithConnOptions(opts ConnOptions) HandlerOption {
	return func(h *Handler) {
		h.connOpts = opts
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) HandlerOption {
	return func(h *Handler) {
		h.logger = logger
	}
}

// WithBaseContext sets the context every connection is served under.
// Cancelling it closes all connections with 1001.
func WithBaseContext(ctx context.Context) HandlerOption {
	return func(h *Handler) {
		h.baseCtx = ctx
	}
}

// NewHandler creates a WebSocket handler.
func NewHandler(lifecycle *relay.Lifecycle, opts ...HandlerOption) *Handler {
	h := &Handler{
		lifecycle: lifecycle,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
		address:  QueryAddress,
		connOpts: DefaultConnOptions(),
		logger:   slog.Default(),
		baseCtx:  context.Background(),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// ServeHTTP implements http.Handler. It blocks for the connection's lifetime.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	addr := h.address(r)

	ws, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// The upgrader has already written an HTTP error response.
		h.logger.Debug("websocket upgrade failed",
			"remote_addr", r.RemoteAddr,
			"error", err,
		)
		return
	}

	h.active.Add(1)
	defer h.active.Done()

	conn := NewConn(ws, h.connOpts, h.logger)

	ctx, cancel := context.WithCancel(h.baseCtx)
	defer cancel()
	stop := context.AfterFunc(ctx, func() {
		_ = conn.Close(relay.CloseGoingAway, "server shutting down")
	})
	defer stop()

	if err := h.lifecycle.Serve(ctx, conn, addr); err != nil {
		h.logger.Debug("connection ended with error",
			"conn_id", conn.ID().String(),
			"remote_addr", r.RemoteAddr,
			"error", err,
		)
	}
}

// Wait blocks until every connection served by h has ended or ctx expires.
func (h *Handler) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		h.active.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
