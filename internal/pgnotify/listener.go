// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

// Package pgnotify bridges PostgreSQL LISTEN/NOTIFY to the relay's
// notification API, so a persistence layer can announce new messages with
// pg_notify.
package pgnotify

import (
	"context"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/samber/oops"
	"github.com/sethvargo/go-retry"
)

// DefaultChannel is the LISTEN channel used when none is configured.
const DefaultChannel = "roomrelay_messages"

const (
	defaultReconnectInitial = 100 * time.Millisecond
	defaultReconnectMax     = 30 * time.Second
	closeTimeout            = 5 * time.Second
)

// Listener abstracts LISTEN/NOTIFY for testability. The returned channel
// emits notification payloads and closes when ctx is cancelled.
type Listener interface {
	Listen(ctx context.Context) (<-chan string, error)
}

// PgListener listens on a PostgreSQL channel over a dedicated connection,
// reconnecting with capped exponential backoff when the connection drops.
type PgListener struct {
	connString       string
	channel          string
	logger           *slog.Logger
	reconnectInitial time.Duration
	reconnectMax     time.Duration
}

// ListenerOption configures a PgListener.
type ListenerOption func(*PgListener)

// WithReconnect sets the backoff bounds used between reconnect attempts.
func WithReconnect(initial, maxInterval time.Duration) ListenerOption {
	return func(l *PgListener) {
		l.reconnectInitial = initial
		l.reconnectMax = maxInterval
	}
}

// WithListenerLogger sets the logger.
func WithListenerLogger(logger *slog.Logger) ListenerOption {
	return func(l *PgListener) {
		l.logger = logger
	}
}

// NewPgListener creates a listener for channel on the database at connString.
func NewPgListener(connString, channel string, opts ...ListenerOption) *PgListener {
	if channel == "" {
		channel = DefaultChannel
	}
	l := &PgListener{
		connString:       connString,
		channel:          channel,
		logger:           slog.Default(),
		reconnectInitial: defaultReconnectInitial,
		reconnectMax:     defaultReconnectMax,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Channel returns the channel name.
func (l *PgListener) Channel() string {
	return l.channel
}

// Listen connects and issues LISTEN. The first connection must succeed;
// later failures are retried until ctx is cancelled.
func (l *PgListener) Listen(ctx context.Context) (<-chan string, error) {
	conn, err := l.connect(ctx)
	if err != nil {
		return nil, err
	}

	out := make(chan string)
	go l.run(ctx, conn, out)
	return out, nil
}

func (l *PgListener) run(ctx context.Context, conn *pgx.Conn, out chan<- string) {
	defer close(out)
	defer func() {
		if conn != nil {
			l.closeConn(conn)
		}
	}()

	for {
		n, err := conn.WaitForNotification(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			l.logger.Warn("notification connection lost, reconnecting",
				"channel", l.channel,
				"error", err,
			)
			l.closeConn(conn)
			conn = nil

			conn, err = l.reconnect(ctx)
			if err != nil {
				// Only cancellation ends the retry loop.
				return
			}
			continue
		}

		select {
		case out <- n.Payload:
		case <-ctx.Done():
			return
		}
	}
}

func (l *PgListener) reconnect(ctx context.Context) (*pgx.Conn, error) {
	backoff := retry.WithCappedDuration(l.reconnectMax, retry.NewExponential(l.reconnectInitial))

	var conn *pgx.Conn
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		c, err := l.connect(ctx)
		if err != nil {
			l.logger.Debug("reconnect attempt failed", "channel", l.channel, "error", err)
			return retry.RetryableError(err)
		}
		conn = c
		return nil
	})
	if err != nil {
		return nil, err
	}
	l.logger.Info("notification connection restored", "channel", l.channel)
	return conn, nil
}

func (l *PgListener) connect(ctx context.Context) (*pgx.Conn, error) {
	conn, err := pgx.Connect(ctx, l.connString)
	if err != nil {
		return nil, oops.Code("PG_LISTEN_FAILED").
			With("channel", l.channel).
			With("operation", "connect").
			Wrap(err)
	}

	if _, err := conn.Exec(ctx, "LISTEN "+pgx.Identifier{l.channel}.Sanitize()); err != nil {
		l.closeConn(conn)
		return nil, oops.Code("PG_LISTEN_FAILED").
			With("channel", l.channel).
			With("operation", "listen").
			Wrap(err)
	}
	return conn, nil
}

func (l *PgListener) closeConn(conn *pgx.Conn) {
	ctx, cancel := context.WithTimeout(context.Background(), closeTimeout)
	defer cancel()
	if err := conn.Close(ctx); err != nil {
		l.logger.Debug("error closing notification connection", "error", err)
	}
}
