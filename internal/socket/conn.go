// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package socket

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"github.com/oklog/ulid/v2"

	"github.com/holomush/roomrelay/internal/relay"
)

// Conn adapts a gorilla WebSocket connection to relay.Transport.
//
// Outbound payloads go through a bounded queue drained by a single writer
// goroutine; Send never blocks and drops when the queue is full.
type Conn struct {
	id     ulid.ULID
	ws     *websocket.Conn
	opts   ConnOptions
	logger *slog.Logger

	state     atomic.Int32
	send      chan []byte
	done      chan struct{}
	closeOnce sync.Once
	writerWG  sync.WaitGroup
}

var _ relay.Transport = (*Conn)(nil)

// ConnOptions tunes a connection.
type ConnOptions struct {
	SendQueue     int
	MaxFrameBytes int64
	WriteWait     time.Duration
	PingInterval  time.Duration
	PongWait      time.Duration
}

// DefaultConnOptions returns the defaults used when no configuration is given.
func DefaultConnOptions() ConnOptions {
	return ConnOptions{
		SendQueue:     64,
		MaxFrameBytes: 4096,
		WriteWait:     10 * time.Second,
		PingInterval:  30 * time.Second,
		PongWait:      60 * time.Second,
	}
}

// NewConn wraps ws and starts its writer goroutine.
func NewConn(ws *websocket.Conn, opts ConnOptions, logger *slog.Logger) *Conn {
	if opts.SendQueue <= 0 {
		opts.SendQueue = DefaultConnOptions().SendQueue
	}
	if logger == nil {
		logger = slog.Default()
	}

	c := &Conn{
		id:     relay.NewConnID(),
		ws:     ws,
		opts:   opts,
		logger: logger,
		send:   make(chan []byte, opts.SendQueue),
		done:   make(chan struct{}),
	}

	if opts.MaxFrameBytes > 0 {
		ws.SetReadLimit(opts.MaxFrameBytes)
	}
	if opts.PingInterval > 0 && opts.PongWait > 0 {
		_ = ws.SetReadDeadline(time.Now().Add(opts.PongWait))
		ws.SetPongHandler(func(string) error {
			return ws.SetReadDeadline(time.Now().Add(opts.PongWait))
		})
	}

	c.writerWG.Add(1)
	go c.writeLoop()
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
	select {
	case <-c.done:
		return relay.ErrConnClosed(c.id)
	case c.send <- payload:
		return nil
	default:
		return relay.ErrSendQueueFull(c.id)
	}
}

// ReadFrame implements relay.Transport. Only text and binary messages are
// returned; control frames are handled by the library.
func (c *Conn) ReadFrame(_ context.Context) ([]byte, error) {
	_, data, err := c.ws.ReadMessage()
	if err != nil {
		return nil, err
	}
	return data, nil
}

// Close implements relay.Conn. It sends a close frame with code, stops the
// writer and closes the socket. Later calls are no-ops.
func (c *Conn) Close(code int, reason string) error {
	var err error
	c.closeOnce.Do(func() {
		c.state.Store(int32(relay.StateClosed))
		close(c.done)
		c.writerWG.Wait()

		msg := websocket.FormatCloseMessage(code, reason)
		if writeErr := c.ws.WriteControl(websocket.CloseMessage, msg, time.Now().Add(c.writeWait())); writeErr != nil &&
			writeErr != websocket.ErrCloseSent {
			c.logger.Debug("error writing close frame", "conn_id", c.id.String(), "error", writeErr)
		}
		err = c.ws.Close()
	})
	return err
}

// Done is closed once the connection has been closed.
func (c *Conn) Done() <-chan struct{} {
	return c.done
}

func (c *Conn) writeLoop() {
	defer c.writerWG.Done()

	var ping <-chan time.Time
	if c.opts.PingInterval > 0 {
		ticker := time.NewTicker(c.opts.PingInterval)
		defer ticker.Stop()
		ping = ticker.C
	}

	for {
		select {
		case <-c.done:
			return
		case payload := <-c.send:
			_ = c.ws.SetWriteDeadline(time.Now().Add(c.writeWait()))
			if err := c.ws.WriteMessage(websocket.TextMessage, payload); err != nil {
				c.logger.Debug("write failed", "conn_id", c.id.String(), "error", err)
				// Unblock the reader so the lifecycle tears the connection down.
				_ = c.ws.UnderlyingConn().Close()
				return
			}
		case <-ping:
			if err := c.ws.WriteControl(websocket.PingMessage, nil, time.Now().Add(c.writeWait())); err != nil {
				c.logger.Debug("ping failed", "conn_id", c.id.String(), "error", err)
				_ = c.ws.UnderlyingConn().Close()
				return
			}
		}
	}
}

func (c *Conn) writeWait() time.Duration {
	if c.opts.WriteWait > 0 {
		return c.opts.WriteWait
	}
	return DefaultConnOptions().WriteWait
}
