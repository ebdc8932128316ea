// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

//go:build integration

package relay_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net"
	"net/url"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/jackc/pgx/v5"
	. "github.com/onsi/ginkgo/v2" //nolint:revive // ginkgo convention
	. "github.com/onsi/gomega"    //nolint:revive // gomega convention
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/holomush/roomrelay/internal/notifyapi"
	"github.com/holomush/roomrelay/internal/pgnotify"
	"github.com/holomush/roomrelay/internal/relay"
	"github.com/holomush/roomrelay/internal/socket"
)

const notifyChannel = "roomrelay_it"

func TestRelay(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "Room Relay Integration Suite")
}

// testEnv holds a fully wired relay backed by a real PostgreSQL.
type testEnv struct {
	ctx       context.Context
	cancel    context.CancelFunc
	container testcontainers.Container
	pgConn    *pgx.Conn
	hub       *relay.Hub
	websocket *socket.Server
	api       *notifyapi.Server
	bridge    *pgnotify.Bridge
}

var env *testEnv

var _ = BeforeSuite(func() {
	var err error
	env, err = setupRelayTestEnv()
	Expect(err).NotTo(HaveOccurred())
})

var _ = AfterSuite(func() {
	if env != nil {
		env.cleanup()
	}
})

func setupRelayTestEnv() (*testEnv, error) {
	ctx, cancel := context.WithCancel(context.Background())

	container, err := postgres.Run(ctx,
		"postgres:18-alpine",
		postgres.WithDatabase("roomrelay_test"),
		postgres.WithUsername("roomrelay"),
		postgres.WithPassword("roomrelay"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second),
		),
	)
	if err != nil {
		cancel()
		return nil, err
	}

	e := &testEnv{ctx: ctx, cancel: cancel, container: container}

	connStr, err := container.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		e.cleanup()
		return nil, err
	}

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	e.hub = relay.NewHub(relay.WithLogger(logger))
	lifecycle := relay.NewLifecycle(e.hub, nil, logger)

	e.websocket = socket.NewServer("127.0.0.1:0", socket.DefaultPath, e.hub, lifecycle, socket.WithLogger(logger))
	if _, err := e.websocket.Start(); err != nil {
		e.cleanup()
		return nil, err
	}

	e.api = notifyapi.NewServer("127.0.0.1:0", e.hub, logger)
	if _, err := e.api.Start(); err != nil {
		e.cleanup()
		return nil, err
	}

	e.bridge = pgnotify.NewBridge(e.hub, logger)
	if err := e.bridge.Start(ctx, pgnotify.NewPgListener(connStr, notifyChannel)); err != nil {
		e.cleanup()
		return nil, err
	}

	e.pgConn, err = pgx.Connect(ctx, connStr)
	if err != nil {
		e.cleanup()
		return nil, err
	}
	return e, nil
}

func (e *testEnv) cleanup() {
	stopCtx, stop := context.WithTimeout(context.Background(), 5*time.Second)
	defer stop()

	if e.websocket != nil {
		_ = e.websocket.Stop(stopCtx)
	}
	if e.api != nil {
		_ = e.api.Stop(stopCtx)
	}
	e.cancel()
	if e.bridge != nil {
		e.bridge.Wait()
	}
	if e.pgConn != nil {
		_ = e.pgConn.Close(stopCtx)
	}
	if e.container != nil {
		_ = e.container.Terminate(context.Background())
	}
}

// client is a test WebSocket client.
type client struct {
	ws *websocket.Conn
}

// join dials the relay as userID in roomID and waits for admission.
func join(userID, roomID string) *client {
	u := url.URL{
		Scheme:   "ws",
		Host:     env.websocket.Addr(),
		Path:     socket.DefaultPath,
		RawQuery: url.Values{"userId": {userID}, "roomId": {roomID}}.Encode(),
	}
	ws, resp, err := websocket.DefaultDialer.Dial(u.String(), nil)
	Expect(err).NotTo(HaveOccurred())
	_ = resp.Body.Close()
	DeferCleanup(func() { _ = ws.Close() })

	Eventually(func() bool { return env.hub.IsUserOnlineInRoom(userID, roomID) }).
		WithTimeout(2 * time.Second).Should(BeTrue())
	return &client{ws: ws}
}

func (c *client) send(frame string) {
	Expect(c.ws.WriteMessage(websocket.TextMessage, []byte(frame))).To(Succeed())
}

// next reads one JSON frame within timeout.
func (c *client) next(timeout time.Duration) (map[string]any, error) {
	if err := c.ws.SetReadDeadline(time.Now().Add(timeout)); err != nil {
		return nil, err
	}
	_, data, err := c.ws.ReadMessage()
	if err != nil {
		return nil, err
	}
	var m map[string]any
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, err
	}
	return m, nil
}

func (c *client) expectFrame() map[string]any {
	m, err := c.next(2 * time.Second)
	Expect(err).NotTo(HaveOccurred())
	return m
}

func (c *client) expectNothing() {
	_, err := c.next(150 * time.Millisecond)
	var netErr net.Error
	Expect(errors.As(err, &netErr)).To(BeTrue(), "expected a read timeout, got %v", err)
	Expect(netErr.Timeout()).To(BeTrue())
}
