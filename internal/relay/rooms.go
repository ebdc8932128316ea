// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package relay

import "github.com/samber/lo"

// RoomIndex maps a room identifier to the member keys currently in it.
// A room exists only while it has at least one member.
// It is not safe for concurrent use; Hub serializes all access.
type RoomIndex struct {
	rooms map[string]map[MemberKey]struct{}
}

// NewRoomIndex creates an empty index.
func NewRoomIndex() *RoomIndex {
	return &RoomIndex{rooms: make(map[string]map[MemberKey]struct{})}
}

// Join adds key to roomID, creating the room if needed.
func (ri *RoomIndex) Join(roomID string, key MemberKey) {
	members, ok := ri.rooms[roomID]
	if !ok {
		members = make(map[MemberKey]struct{})
		ri.rooms[roomID] = members
	}
	members[key] = struct{}{}
}

// Leave removes key from roomID and drops the room once it is empty.
func (ri *RoomIndex) Leave(roomID string, key MemberKey) {
	members, ok := ri.rooms[roomID]
	if !ok {
		return
	}
	delete(members, key)
	if len(members) == 0 {
		delete(ri.rooms, roomID)
	}
}

// MembersOf returns a snapshot of roomID's members. Unknown rooms yield an
// empty slice.
func (ri *RoomIndex) MembersOf(roomID string) []MemberKey {
	return lo.Keys(ri.rooms[roomID])
}

// CountOf returns the number of members in roomID.
func (ri *RoomIndex) CountOf(roomID string) int {
	return len(ri.rooms[roomID])
}

// Contains reports whether key is a member of roomID.
func (ri *RoomIndex) Contains(roomID string, key MemberKey) bool {
	_, ok := ri.rooms[roomID][key]
	return ok
}

// Exists reports whether roomID has an entry.
func (ri *RoomIndex) Exists(roomID string) bool {
	_, ok := ri.rooms[roomID]
	return ok
}

// Rooms returns the number of live rooms.
func (ri *RoomIndex) Rooms() int {
	return len(ri.rooms)
}
