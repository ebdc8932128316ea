// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package relay

import (
	"context"
	"encoding/json"
)

// Notifier is the surface offered to the persistence layer once a message is
// durably stored.
type Notifier interface {
	NotifyNewMessage(ctx context.Context, roomID string, message any) error
	RoomClientCount(roomID string) int
	IsUserOnlineInRoom(userID, roomID string) bool
}

var _ Notifier = (*Hub)(nil)

// NotifyNewMessage pushes message to every connected member of roomID.
// A room without members is a no-op. Errors are returned only for unusable
// input; delivery itself is best-effort and never reported.
func (h *Hub) NotifyNewMessage(ctx context.Context, roomID string, message any) error {
	if roomID == "" {
		return ErrInvalidNotification(roomID, "room id is required")
	}

	payload, err := json.Marshal(NewMessage{Message: message, RoomID: roomID})
	if err != nil {
		return ErrInvalidNotification(roomID, err.Error())
	}

	h.dispatch(ctx, roomID, KindNewMessage, payload, "")
	return nil
}

// RoomClientCount returns the number of members currently in roomID.
func (h *Hub) RoomClientCount(roomID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.rooms.CountOf(roomID)
}

// IsUserOnlineInRoom reports whether (userID, roomID) has a registered connection.
func (h *Hub) IsUserOnlineInRoom(userID, roomID string) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	_, ok := h.conns.Lookup(MemberKey{UserID: userID, RoomID: roomID})
	return ok
}
