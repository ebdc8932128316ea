// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package relay

import (
	"crypto/rand"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
)

// MemberKey identifies one connection's occupancy of one room.
// It is comparable and used directly as a map key, so identifiers
// containing separators never collide.
type MemberKey struct {
	UserID string
	RoomID string
}

// String returns a human-readable form for logs only.
func (k MemberKey) String() string {
	return k.UserID + "@" + k.RoomID
}

// Address carries the addressing parameters supplied when a connection is
// established. Either field may be empty; Lifecycle rejects such connections.
type Address struct {
	UserID string
	RoomID string
}

// MemberKey validates the address and returns the key it maps to.
func (a Address) MemberKey() (MemberKey, error) {
	if a.RoomID == "" || a.UserID == "" {
		return MemberKey{}, ErrAdmissionRejected(a)
	}
	return MemberKey(a), nil
}

var (
	entropy     = ulid.Monotonic(rand.Reader, 0)
	entropyLock sync.Mutex
)

// NewConnID generates a connection identifier.
func NewConnID() ulid.ULID {
	entropyLock.Lock()
	defer entropyLock.Unlock()
	return ulid.MustNew(ulid.Timestamp(time.Now()), entropy)
}
