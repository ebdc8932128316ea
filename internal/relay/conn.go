// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package relay

import (
	"context"

	"github.com/oklog/ulid/v2"
)

// State is a connection's readiness state.
type State int32

// Connection states. There is no observable closing state.
const (
	StateAdmitting State = iota
	StateOpen
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateAdmitting:
		return "admitting"
	case StateOpen:
		return "open"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// Conn is the relay's handle on one live transport session.
type Conn interface {
	// ID uniquely identifies this transport session.
	ID() ulid.ULID
	// State reports the current readiness state.
	State() State
	// Send queues payload for delivery without blocking. It fails when the
	// connection is not open or its queue is full.
	Send(payload []byte) error
	// Close terminates the session with the given close code. It is idempotent.
	Close(code int, reason string) error
}

// Transport is a Conn that the Lifecycle can drive: it can be marked open and
// read from.
type Transport interface {
	Conn
	// Open transitions the session from admitting to open.
	Open()
	// ReadFrame blocks until the next inbound frame arrives or the transport fails.
	ReadFrame(ctx context.Context) ([]byte, error)
}
