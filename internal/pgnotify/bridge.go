// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package pgnotify

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"sync"

	"github.com/go-playground/validator/v10"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/samber/oops"

	"github.com/holomush/roomrelay/internal/relay"
	"github.com/holomush/roomrelay/pkg/errutil"
)

// Notification result labels.
const (
	ResultDelivered = "delivered"
	ResultInvalid   = "invalid"
	ResultFailed    = "failed"
)

// Notifications counts payloads received from PostgreSQL by result.
var Notifications = prometheus.NewCounterVec(prometheus.CounterOpts{
	Name: "roomrelay_pg_notifications_total",
	Help: "PostgreSQL notifications received, by result",
}, []string{"result"})

// RegisterMetrics registers bridge metrics with reg.
func RegisterMetrics(reg prometheus.Registerer) {
	reg.MustRegister(Notifications)
}

// Payload is the JSON body a database trigger or application sends with
// pg_notify.
type Payload struct {
	RoomID  string          `json:"roomId" validate:"required"`
	Message json.RawMessage `json:"message" validate:"required"`
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// ParsePayload decodes and validates a notification payload.
func ParsePayload(raw string) (Payload, error) {
	var p Payload
	if err := json.Unmarshal([]byte(raw), &p); err != nil {
		return Payload{}, oops.Code("INVALID_PAYLOAD").Wrapf(err, "decode notification payload")
	}
	if err := validate.Struct(p); err != nil {
		return Payload{}, oops.Code("INVALID_PAYLOAD").With("room_id", p.RoomID).Wrap(err)
	}
	if bytes.Equal(bytes.TrimSpace(p.Message), []byte("null")) {
		return Payload{}, oops.Code("INVALID_PAYLOAD").With("room_id", p.RoomID).Errorf("message is null")
	}
	return p, nil
}

// Bridge forwards notifications from a Listener to a relay.Notifier.
type Bridge struct {
	notifier relay.Notifier
	logger   *slog.Logger
	wg       sync.WaitGroup
}

// NewBridge creates a bridge delivering to notifier.
func NewBridge(notifier relay.Notifier, logger *slog.Logger) *Bridge {
	if logger == nil {
		logger = slog.Default()
	}
	return &Bridge{notifier: notifier, logger: logger}
}

// Start begins listening and spawns the forwarding goroutine. Cancel ctx to
// stop, then call Wait.
func (b *Bridge) Start(ctx context.Context, listener Listener) error {
	ch, err := listener.Listen(ctx)
	if err != nil {
		return oops.With("operation", "start_pg_bridge").Wrap(err)
	}

	b.wg.Add(1)
	go b.loop(ctx, ch)
	return nil
}

// Wait blocks until the forwarding goroutine has exited.
func (b *Bridge) Wait() {
	b.wg.Wait()
}

func (b *Bridge) loop(ctx context.Context, ch <-chan string) {
	defer b.wg.Done()

	for {
		select {
		case <-ctx.Done():
			return
		case raw, ok := <-ch:
			if !ok {
				return
			}
			b.Handle(ctx, raw)
		}
	}
}

// Handle delivers one raw payload. Malformed payloads are logged and skipped.
func (b *Bridge) Handle(ctx context.Context, raw string) {
	p, err := ParsePayload(raw)
	if err != nil {
		Notifications.WithLabelValues(ResultInvalid).Inc()
		b.logger.WarnContext(ctx, "skipping malformed notification", errutil.Attrs(err)...)
		return
	}

	if err := b.notifier.NotifyNewMessage(ctx, p.RoomID, p.Message); err != nil {
		Notifications.WithLabelValues(ResultFailed).Inc()
		errutil.LogErrorContext(ctx, b.logger, "notification delivery failed", err)
		return
	}
	Notifications.WithLabelValues(ResultDelivered).Inc()
}
