// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package relay

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"

	"github.com/samber/lo"

	"github.com/holomush/roomrelay/pkg/errutil"
)

// HubOption configures a Hub.
type HubOption func(*Hub)

// WithLogger sets the logger used by the hub. Defaults to slog.Default().
func WithLogger(logger *slog.Logger) HubOption {
	return func(h *Hub) {
		h.logger = logger
	}
}

// Hub owns the connection registry and the room index. Both are guarded by
// one lock so admission, teardown and broadcast never observe a member
// without its connection.
type Hub struct {
	mu    sync.RWMutex
	conns *Registry
	rooms *RoomIndex

	logger *slog.Logger
}

// NewHub creates an empty hub.
func NewHub(opts ...HubOption) *Hub {
	h := &Hub{
		conns:  NewRegistry(),
		rooms:  NewRoomIndex(),
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Admit registers conn under key and joins it to the key's room as one step.
// A connection already registered under key is replaced and closed.
func (h *Hub) Admit(key MemberKey, conn Conn) {
	prev, hadPrev := h.register(key, conn)

	Admissions.WithLabelValues(ResultAccepted).Inc()

	if hadPrev && prev.ID() != conn.ID() {
		Supersessions.Inc()
		h.logger.Info("connection superseded",
			"room_id", key.RoomID,
			"user_id", key.UserID,
			"conn_id", prev.ID().String(),
			"new_conn_id", conn.ID().String(),
		)
		if err := prev.Close(ClosePolicyViolation, "superseded by a newer connection"); err != nil {
			h.logger.Debug("error closing superseded connection",
				"conn_id", prev.ID().String(),
				"error", err,
			)
		}
	}
}

func (h *Hub) register(key MemberKey, conn Conn) (Conn, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()

	prev, ok := h.conns.Lookup(key)
	h.conns.Register(key, conn)
	h.rooms.Join(key.RoomID, key)
	h.updateGaugesLocked()
	return prev, ok
}

// Release removes conn from the registry and its room as one step. It is a
// no-op when key has since been taken over by another connection.
func (h *Hub) Release(key MemberKey, conn Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if !h.conns.RemoveIf(key, conn.ID()) {
		h.logger.Debug("release skipped: key owned by another connection",
			"room_id", key.RoomID,
			"user_id", key.UserID,
			"conn_id", conn.ID().String(),
		)
		return
	}
	h.rooms.Leave(key.RoomID, key)
	h.updateGaugesLocked()
}

// Broadcast sends msg to every open member of roomID except excludeUserID
// (empty means no exclusion). Delivery is best-effort: absent, closed or slow
// recipients are skipped and a failure for one recipient never affects the others.
func (h *Hub) Broadcast(ctx context.Context, roomID string, msg Outbound, excludeUserID string) {
	payload, err := json.Marshal(msg)
	if err != nil {
		errutil.LogErrorContext(ctx, h.logger, "broadcast dropped: marshal failed",
			fmt.Errorf("marshal %s: %w", msg.Kind(), err))
		return
	}
	h.dispatch(ctx, roomID, msg.Kind(), payload, excludeUserID)
}

func (h *Hub) dispatch(ctx context.Context, roomID string, kind Kind, payload []byte, excludeUserID string) {
	Broadcasts.WithLabelValues(string(kind)).Inc()

	h.mu.RLock()
	defer h.mu.RUnlock()

	members := lo.Filter(h.rooms.MembersOf(roomID), func(k MemberKey, _ int) bool {
		return excludeUserID == "" || k.UserID != excludeUserID
	})

	for _, key := range members {
		conn, ok := h.conns.Lookup(key)
		if !ok || conn.State() != StateOpen {
			Deliveries.WithLabelValues(string(kind), ResultSkipped).Inc()
			continue
		}
		h.deliver(ctx, key, conn, kind, payload)
	}
}

// deliver sends payload to one recipient, containing any failure.
func (h *Hub) deliver(ctx context.Context, key MemberKey, conn Conn, kind Kind, payload []byte) {
	defer func() {
		if r := recover(); r != nil {
			Deliveries.WithLabelValues(string(kind), ResultFailed).Inc()
			h.logger.ErrorContext(ctx, "send panicked",
				"room_id", key.RoomID,
				"user_id", key.UserID,
				"conn_id", conn.ID().String(),
				"panic", r,
			)
		}
	}()

	if err := conn.Send(payload); err != nil {
		if errutil.HasCode(err, CodeSendQueueFull) {
			// Backpressure is tracked by the dropped counter; per-frame logs stay at debug.
			Deliveries.WithLabelValues(string(kind), ResultDropped).Inc()
			h.logger.DebugContext(ctx, "delivery dropped: send queue full",
				"code", CodeSendQueueFull,
				"room_id", key.RoomID,
				"user_id", key.UserID,
				"conn_id", conn.ID().String(),
				"kind", string(kind),
			)
			return
		}
		Deliveries.WithLabelValues(string(kind), ResultFailed).Inc()
		h.logger.WarnContext(ctx, "delivery failed",
			"code", CodeDispatchSendFailed,
			"room_id", key.RoomID,
			"user_id", key.UserID,
			"conn_id", conn.ID().String(),
			"kind", string(kind),
			"error", err,
		)
		return
	}
	Deliveries.WithLabelValues(string(kind), ResultSent).Inc()
}

// Drain closes every registered connection with code. Each connection's
// lifecycle then releases it. Returns the number of connections closed.
func (h *Hub) Drain(code int, reason string) int {
	h.mu.RLock()
	conns := h.conns.All()
	h.mu.RUnlock()

	for _, conn := range conns {
		if err := conn.Close(code, reason); err != nil {
			h.logger.Debug("error closing connection during drain",
				"conn_id", conn.ID().String(),
				"error", err,
			)
		}
	}
	return len(conns)
}

// Connections returns the number of registered connections.
func (h *Hub) Connections() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.conns.Len()
}

// Rooms returns the number of live rooms.
func (h *Hub) Rooms() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.rooms.Rooms()
}

func (h *Hub) updateGaugesLocked() {
	ActiveConnections.Set(float64(h.conns.Len()))
	ActiveRooms.Set(float64(h.rooms.Rooms()))
}
