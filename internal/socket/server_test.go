// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package socket_test

import (
	"context"
	"net/url"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/holomush/roomrelay/internal/relay"
	"github.com/holomush/roomrelay/internal/socket"
)

func TestServer_StartStopDrainsConnections(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	hub := relay.NewHub()
	srv := socket.NewServer("127.0.0.1:0", "/chat", hub, relay.NewLifecycle(hub, nil, nil))

	errCh, err := srv.Start()
	require.NoError(t, err)
	assert.True(t, srv.Ready())

	u := url.URL{Scheme: "ws", Host: srv.Addr(), Path: "/chat", RawQuery: "userId=u1&roomId=r1"}
	ws, resp, err := websocket.DefaultDialer.Dial(u.String(), nil)
	require.NoError(t, err)
	_ = resp.Body.Close()
	defer ws.Close()

	require.Eventually(t, func() bool { return hub.Connections() == 1 }, 2*time.Second, 5*time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, srv.Stop(ctx))

	expectClose(t, ws, relay.CloseGoingAway)
	assert.Equal(t, 0, hub.Connections())
	assert.False(t, srv.Ready())

	for range errCh {
		t.Fatal("unexpected serve error")
	}
}

func TestServer_StartTwice(t *testing.T) {
	hub := relay.NewHub()
	srv := socket.NewServer("127.0.0.1:0", "", hub, relay.NewLifecycle(hub, nil, nil))

	_, err := srv.Start()
	require.NoError(t, err)
	defer func() { _ = srv.Stop(context.Background()) }()

	_, err = srv.Start()
	require.Error(t, err)
}

func TestServer_StopWhenNotRunning(t *testing.T) {
	hub := relay.NewHub()
	srv := socket.NewServer("127.0.0.1:0", "", hub, relay.NewLifecycle(hub, nil, nil))
	require.NoError(t, srv.Stop(context.Background()))
	assert.Empty(t, srv.Addr())
}
