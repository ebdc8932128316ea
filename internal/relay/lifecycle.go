// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package relay

import (
	"context"
	"errors"
	"io"
	"log/slog"

	"github.com/holomush/roomrelay/pkg/errutil"
)

// FrameHandler handles one inbound frame for an admitted connection.
type FrameHandler interface {
	HandleInbound(ctx context.Context, conn Conn, raw []byte, key MemberKey)
}

// Lifecycle admits, serves and tears down connections. It is the only
// component that mutates the registry and room index together.
type Lifecycle struct {
	hub     *Hub
	handler FrameHandler
	logger  *slog.Logger
}

// NewLifecycle creates a lifecycle manager. A nil handler routes frames
// through a Router backed by hub.
func NewLifecycle(hub *Hub, handler FrameHandler, logger *slog.Logger) *Lifecycle {
	if logger == nil {
		logger = slog.Default()
	}
	if handler == nil {
		handler = NewRouter(hub, logger)
	}
	return &Lifecycle{hub: hub, handler: handler, logger: logger}
}

// Serve runs t from admission to close. It blocks until the transport fails
// or ctx is cancelled and always leaves t closed and unregistered.
//
// The returned error is an ADMISSION_REJECTED error when addr is incomplete,
// a LIFECYCLE_ERROR when admission failed unexpectedly, and nil otherwise.
func (l *Lifecycle) Serve(ctx context.Context, t Transport, addr Address) error {
	key, err := addr.MemberKey()
	if err != nil {
		Admissions.WithLabelValues(ResultRejected).Inc()
		l.logger.InfoContext(ctx, "connection rejected",
			"conn_id", t.ID().String(),
			"room_id", addr.RoomID,
			"user_id", addr.UserID,
		)
		l.closeTransport(t, ClosePolicyViolation, "roomId and userId are required")
		return err
	}

	if err := l.admit(key, t); err != nil {
		Admissions.WithLabelValues(ResultError).Inc()
		errutil.LogErrorContext(ctx, l.logger, "connection admission failed", err)
		l.closeTransport(t, CloseInternalError, "internal error")
		return err
	}
	defer func() {
		l.hub.Release(key, t)
		l.closeTransport(t, CloseNormal, "")
		l.logger.InfoContext(ctx, "connection closed",
			"conn_id", t.ID().String(),
			"room_id", key.RoomID,
			"user_id", key.UserID,
		)
	}()

	l.logger.InfoContext(ctx, "connection admitted",
		"conn_id", t.ID().String(),
		"room_id", key.RoomID,
		"user_id", key.UserID,
	)

	for {
		raw, err := t.ReadFrame(ctx)
		if err != nil {
			if !errors.Is(err, io.EOF) && ctx.Err() == nil {
				l.logger.DebugContext(ctx, "connection read ended",
					"conn_id", t.ID().String(),
					"error", err,
				)
			}
			return nil
		}
		l.handleFrame(ctx, t, raw, key)
	}
}

// admit opens t and registers it. A panic leaves nothing registered.
func (l *Lifecycle) admit(key MemberKey, t Transport) (err error) {
	defer func() {
		if r := recover(); r != nil {
			l.hub.Release(key, t)
			err = ErrLifecycle("admission", r)
		}
	}()

	t.Open()
	l.hub.Admit(key, t)
	return nil
}

// handleFrame isolates a single frame so a failure never closes the connection.
func (l *Lifecycle) handleFrame(ctx context.Context, t Transport, raw []byte, key MemberKey) {
	defer func() {
		if r := recover(); r != nil {
			errutil.LogErrorContext(ctx, l.logger, "frame handling failed", ErrLifecycle("frame", r))
		}
	}()
	l.handler.HandleInbound(ctx, t, raw, key)
}

func (l *Lifecycle) closeTransport(t Transport, code int, reason string) {
	if err := t.Close(code, reason); err != nil {
		l.logger.Debug("error closing connection",
			"conn_id", t.ID().String(),
			"error", err,
		)
	}
}
