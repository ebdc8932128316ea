// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package relay_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/holomush/roomrelay/internal/relay"
)

func TestRoomIndex_JoinLeave(t *testing.T) {
	idx := relay.NewRoomIndex()
	u1 := relay.MemberKey{UserID: "u1", RoomID: "r1"}
	u2 := relay.MemberKey{UserID: "u2", RoomID: "r1"}

	idx.Join("r1", u1)
	idx.Join("r1", u2)
	assert.Equal(t, 2, idx.CountOf("r1"))
	assert.ElementsMatch(t, []relay.MemberKey{u1, u2}, idx.MembersOf("r1"))
	assert.True(t, idx.Contains("r1", u1))

	idx.Leave("r1", u1)
	assert.Equal(t, 1, idx.CountOf("r1"))
	assert.False(t, idx.Contains("r1", u1))
	assert.True(t, idx.Exists("r1"))
}

func TestRoomIndex_LastLeaveRemovesRoom(t *testing.T) {
	idx := relay.NewRoomIndex()
	key := relay.MemberKey{UserID: "u1", RoomID: "r1"}

	idx.Join("r1", key)
	assert.Equal(t, 1, idx.Rooms())

	idx.Leave("r1", key)
	assert.False(t, idx.Exists("r1"))
	assert.Equal(t, 0, idx.CountOf("r1"))
	assert.Equal(t, 0, idx.Rooms())
}

func TestRoomIndex_JoinIsIdempotent(t *testing.T) {
	idx := relay.NewRoomIndex()
	key := relay.MemberKey{UserID: "u1", RoomID: "r1"}

	idx.Join("r1", key)
	idx.Join("r1", key)

	assert.Equal(t, 1, idx.CountOf("r1"))
}

func TestRoomIndex_UnknownRoom(t *testing.T) {
	idx := relay.NewRoomIndex()

	members := idx.MembersOf("nowhere")
	assert.NotNil(t, members)
	assert.Empty(t, members)
	assert.Equal(t, 0, idx.CountOf("nowhere"))

	// Leaving an unknown room must not create it.
	idx.Leave("nowhere", relay.MemberKey{UserID: "u1", RoomID: "nowhere"})
	assert.False(t, idx.Exists("nowhere"))
}

func TestRoomIndex_MembersOfIsSnapshot(t *testing.T) {
	idx := relay.NewRoomIndex()
	key := relay.MemberKey{UserID: "u1", RoomID: "r1"}
	idx.Join("r1", key)

	members := idx.MembersOf("r1")
	idx.Leave("r1", key)

	assert.Len(t, members, 1)
}
