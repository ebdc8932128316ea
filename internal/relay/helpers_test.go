// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package relay_test

import (
	"bytes"
	"context"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/holomush/roomrelay/internal/relay"
	"github.com/holomush/roomrelay/internal/relay/relaytest"
	"github.com/holomush/roomrelay/pkg/errutil"
)

func assertCode(t *testing.T, err error, code string) {
	t.Helper()
	errutil.AssertErrorCode(t, err, code)
}

// syncBuffer is a goroutine-safe log sink.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func newTestLogger() (*slog.Logger, *syncBuffer) {
	buf := &syncBuffer{}
	return slog.New(slog.NewJSONHandler(buf, &slog.HandlerOptions{Level: slog.LevelDebug})), buf
}

// serve runs lifecycle.Serve in the background and returns a channel with its result.
func serve(ctx context.Context, lc *relay.Lifecycle, conn relay.Transport, addr relay.Address) <-chan error {
	done := make(chan error, 1)
	go func() {
		done <- lc.Serve(ctx, conn, addr)
	}()
	return done
}

// connect admits a fresh connection for (userID, roomID) and waits until it is registered.
func connect(t *testing.T, ctx context.Context, hub *relay.Hub, lc *relay.Lifecycle, userID, roomID string) (*relaytest.Conn, <-chan error) {
	t.Helper()
	conn := relaytest.NewConn()
	done := serve(ctx, lc, conn, relay.Address{UserID: userID, RoomID: roomID})
	require.Eventually(t, func() bool {
		return hub.IsUserOnlineInRoom(userID, roomID) && conn.State() == relay.StateOpen
	}, time.Second, 5*time.Millisecond)
	return conn, done
}

func waitDone(t *testing.T, done <-chan error) error {
	t.Helper()
	select {
	case err := <-done:
		return err
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for Serve to return")
		return nil
	}
}
