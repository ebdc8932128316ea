// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

// Package relaytest provides in-memory connections for relay tests.
package relaytest

import (
	"context"
	"encoding/json"
	"io"
	"sync"
	"sync/atomic"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/holomush/roomrelay/internal/relay"
)

// Conn is an in-memory relay.Transport. Sent payloads are recorded and
// inbound frames are supplied with Push.
type Conn struct {
	id    ulid.ULID
	state atomic.Int32

	mu          sync.Mutex
	sent        [][]byte
	sendErr     error
	sendPanic   any
	closeCode   int
	closeReason string

	frames    chan []byte
	closed    chan struct{}
	closeOnce sync.Once
}

var _ relay.Transport = (*Conn)(nil)

// NewConn creates a connection in the admitting state.
func NewConn() *Conn {
	return &Conn{
		id:     relay.NewConnID(),
		frames: make(chan []byte, 64),
		closed: make(chan struct{}),
	}
}

// NewOpenConn creates a connection that is already open.
func NewOpenConn() *Conn {
	c := NewConn()
	c.Open()
	return c
}

// ID implements relay.Conn.
func (c *Conn) ID() ulid.ULID { return c.id }

// State implements relay.Conn.
func (c *Conn) State() relay.State { return relay.State(c.state.Load()) }

// Open implements relay.Transport.
func (c *Conn) Open() {
	c.state.CompareAndSwap(int32(relay.StateAdmitting), int32(relay.StateOpen))
}

// Send implements relay.Conn.
func (c *Conn) Send(payload []byte) error {
	if c.State() != relay.StateOpen {
		return relay.ErrConnClosed(c.id)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.sendPanic != nil {
		panic(c.sendPanic)
	}
	if c.sendErr != nil {
		return c.sendErr
	}
	c.sent = append(c.sent, append([]byte(nil), payload...))
	return nil
}

// Close implements relay.Conn. Only the first call's code is recorded.
func (c *Conn) Close(code int, reason string) error {
	c.closeOnce.Do(func() {
		c.mu.Lock()
		c.closeCode = code
		c.closeReason = reason
		c.mu.Unlock()
		c.state.Store(int32(relay.StateClosed))
		close(c.closed)
	})
	return nil
}

// ReadFrame implements relay.Transport. It returns io.EOF once closed.
func (c *Conn) ReadFrame(ctx context.Context) ([]byte, error) {
	select {
	case frame := <-c.frames:
		return frame, nil
	case <-c.closed:
		return nil, io.EOF
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Push queues an inbound frame.
func (c *Conn) Push(frame string) {
	c.frames <- []byte(frame)
}

// FailSends makes every later Send return err.
func (c *Conn) FailSends(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sendErr = err
}

// PanicOnSend makes every later Send panic with v.
func (c *Conn) PanicOnSend(v any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sendPanic = v
}

// Sent returns copies of every payload sent so far.
func (c *Conn) Sent() [][]byte {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([][]byte, len(c.sent))
	copy(out, c.sent)
	return out
}

// Messages decodes every sent payload as a JSON object.
func (c *Conn) Messages() []map[string]any {
	sent := c.Sent()
	out := make([]map[string]any, 0, len(sent))
	for _, payload := range sent {
		var m map[string]any
		if err := json.Unmarshal(payload, &m); err == nil {
			out = append(out, m)
		}
	}
	return out
}

// CloseCode returns the code passed to the first Close, and whether Close
// has been called.
func (c *Conn) CloseCode() (int, bool) {
	select {
	case <-c.closed:
	default:
		return 0, false
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closeCode, true
}

// CloseReason returns the reason passed to the first Close.
func (c *Conn) CloseReason() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closeReason
}

// WaitClosed blocks until the connection is closed or timeout elapses.
func (c *Conn) WaitClosed(timeout time.Duration) bool {
	select {
	case <-c.closed:
		return true
	case <-time.After(timeout):
		return false
	}
}
