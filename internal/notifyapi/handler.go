// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

// Package notifyapi exposes the relay's notification and presence API over
// HTTP for collaborators running out of process.
package notifyapi

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/holomush/roomrelay/internal/relay"
	"github.com/holomush/roomrelay/pkg/errutil"
)

var tracer = otel.Tracer("roomrelay/notifyapi")

// MaxMessageBytes bounds the size of a posted message body.
const MaxMessageBytes = 1 << 20

// Error codes returned in error responses.
const (
	CodeInvalidBody  = "INVALID_BODY"
	CodeBodyTooLarge = "BODY_TOO_LARGE"
	CodeNotifyFailed = "NOTIFY_FAILED"
)

// ClientCount is the body of GET /rooms/{roomId}/clients.
type ClientCount struct {
	RoomID string `json:"roomId"`
	Count  int    `json:"count"`
}

// Presence is the body of GET /rooms/{roomId}/users/{userId}/online.
type Presence struct {
	RoomID string `json:"roomId"`
	UserID string `json:"userId"`
	Online bool   `json:"online"`
}

// ErrorResponse is the body of every non-2xx response.
type ErrorResponse struct {
	Code  string `json:"code"`
	Error string `json:"error"`
}

// Handler routes collaborator requests to a relay.Notifier.
type Handler struct {
	notifier relay.Notifier
	logger   *slog.Logger
	mux      *http.ServeMux
}

// NewHandler creates the API handler.
func NewHandler(notifier relay.Notifier, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	h := &Handler{notifier: notifier, logger: logger, mux: http.NewServeMux()}
	h.mux.HandleFunc("POST /rooms/{roomId}/messages", h.postMessage)
	h.mux.HandleFunc("GET /rooms/{roomId}/clients", h.clientCount)
	h.mux.HandleFunc("GET /rooms/{roomId}/users/{userId}/online", h.userOnline)
	return h
}

// ServeHTTP implements http.Handler.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.mux.ServeHTTP(w, r)
}

func (h *Handler) postMessage(w http.ResponseWriter, r *http.Request) {
	roomID := r.PathValue("roomId")
	ctx, span := tracer.Start(r.Context(), "notifyapi.post_message",
		trace.WithAttributes(attribute.String("room.id", roomID)),
	)
	defer span.End()

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, MaxMessageBytes))
	if err != nil {
		span.SetStatus(codes.Error, "body too large")
		writeError(w, http.StatusRequestEntityTooLarge, CodeBodyTooLarge, "message body exceeds limit")
		return
	}
	if len(body) == 0 || !json.Valid(body) {
		span.SetStatus(codes.Error, "invalid body")
		writeError(w, http.StatusBadRequest, CodeInvalidBody, "message body must be a JSON value")
		return
	}

	if err := h.notifier.NotifyNewMessage(ctx, roomID, json.RawMessage(body)); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		if errutil.HasCode(err, relay.CodeInvalidNotification) {
			writeError(w, http.StatusBadRequest, relay.CodeInvalidNotification, err.Error())
			return
		}
		errutil.LogErrorContext(ctx, h.logger, "notify new message failed", err)
		writeError(w, http.StatusInternalServerError, CodeNotifyFailed, "notification failed")
		return
	}

	w.WriteHeader(http.StatusAccepted)
}

func (h *Handler) clientCount(w http.ResponseWriter, r *http.Request) {
	roomID := r.PathValue("roomId")
	_, span := tracer.Start(r.Context(), "notifyapi.client_count",
		trace.WithAttributes(attribute.String("room.id", roomID)),
	)
	defer span.End()

	count := h.notifier.RoomClientCount(roomID)
	span.SetAttributes(attribute.Int("room.clients", count))
	writeJSON(w, http.StatusOK, ClientCount{RoomID: roomID, Count: count})
}

func (h *Handler) userOnline(w http.ResponseWriter, r *http.Request) {
	roomID, userID := r.PathValue("roomId"), r.PathValue("userId")
	_, span := tracer.Start(r.Context(), "notifyapi.user_online",
		trace.WithAttributes(
			attribute.String("room.id", roomID),
			attribute.String("user.id", userID),
		),
	)
	defer span.End()

	online := h.notifier.IsUserOnlineInRoom(userID, roomID)
	writeJSON(w, http.StatusOK, Presence{RoomID: roomID, UserID: userID, Online: online})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	//nolint:errcheck // client disconnects are not actionable
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, msg string) {
	writeJSON(w, status, ErrorResponse{Code: code, Error: msg})
}
