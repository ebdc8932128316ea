// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package relay

import (
	"context"
	"log/slog"

	"github.com/holomush/roomrelay/pkg/errutil"
)

// Broadcaster fans a message out to a room.
type Broadcaster interface {
	Broadcast(ctx context.Context, roomID string, msg Outbound, excludeUserID string)
}

// Router decodes inbound frames and dispatches them by kind.
type Router struct {
	broadcaster Broadcaster
	logger      *slog.Logger
}

// NewRouter creates a router that relays through broadcaster.
func NewRouter(broadcaster Broadcaster, logger *slog.Logger) *Router {
	if logger == nil {
		logger = slog.Default()
	}
	return &Router{broadcaster: broadcaster, logger: logger}
}

// HandleInbound processes one raw frame received on conn for key.
// Malformed and unknown frames are logged and dropped; the connection stays open.
func (r *Router) HandleInbound(ctx context.Context, conn Conn, raw []byte, key MemberKey) {
	frame, err := DecodeInbound(raw)
	if err != nil {
		if errutil.HasCode(err, CodeUnknownFrameType) {
			InboundFrames.WithLabelValues("unknown", ResultIgnored).Inc()
			r.logger.DebugContext(ctx, "ignoring unknown frame type",
				"room_id", key.RoomID,
				"user_id", key.UserID,
				"conn_id", conn.ID().String(),
				"error", err,
			)
			return
		}
		InboundFrames.WithLabelValues("malformed", ResultInvalid).Inc()
		r.logger.WarnContext(ctx, "dropping malformed frame",
			"code", CodeFrameParse,
			"room_id", key.RoomID,
			"user_id", key.UserID,
			"conn_id", conn.ID().String(),
			"error", err,
		)
		return
	}

	switch f := frame.(type) {
	case Typing:
		r.handleTyping(ctx, key)
		InboundFrames.WithLabelValues(string(f.Kind()), ResultHandled).Inc()
	default:
		// Decoding only yields known kinds, so this is unreachable unless a
		// kind is added without a handler.
		InboundFrames.WithLabelValues(string(f.Kind()), ResultIgnored).Inc()
		r.logger.WarnContext(ctx, "no handler for frame kind", "kind", string(f.Kind()))
	}
}

// handleTyping relays a typing indicator to everyone else in the room.
func (r *Router) handleTyping(ctx context.Context, key MemberKey) {
	r.broadcaster.Broadcast(ctx, key.RoomID, UserTyping{UserID: key.UserID, RoomID: key.RoomID}, key.UserID)
}
