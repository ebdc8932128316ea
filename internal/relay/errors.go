// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package relay

import (
	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"
)

// Error codes for relay failures.
const (
	CodeAdmissionRejected   = "ADMISSION_REJECTED"
	CodeFrameParse          = "FRAME_PARSE_ERROR"
	CodeUnknownFrameType    = "UNKNOWN_FRAME_TYPE"
	CodeSendQueueFull       = "SEND_QUEUE_FULL"
	CodeConnClosed          = "CONN_CLOSED"
	CodeDispatchSendFailed  = "DISPATCH_SEND_FAILED"
	CodeLifecycle           = "LIFECYCLE_ERROR"
	CodeInvalidNotification = "INVALID_NOTIFICATION"
)

// Close codes sent to peers.
const (
	CloseNormal          = 1000
	CloseGoingAway       = 1001
	ClosePolicyViolation = 1008
	CloseInternalError   = 1011
)

// ErrAdmissionRejected creates an error for a connection missing its
// addressing parameters.
func ErrAdmissionRejected(addr Address) error {
	return oops.Code(CodeAdmissionRejected).
		With("room_id", addr.RoomID).
		With("user_id", addr.UserID).
		Errorf("roomId and userId are required")
}

// ErrFrameParse creates an error for an inbound frame that could not be decoded.
func ErrFrameParse(cause error) error {
	return oops.Code(CodeFrameParse).Wrapf(cause, "malformed frame")
}

// ErrUnknownFrameType creates an error for a well-formed frame with an
// unrecognized type.
func ErrUnknownFrameType(frameType string) error {
	return oops.Code(CodeUnknownFrameType).
		With("frame_type", frameType).
		Errorf("unknown frame type %q", frameType)
}

// ErrSendQueueFull creates an error for a recipient whose outbound queue is full.
func ErrSendQueueFull(connID ulid.ULID) error {
	return oops.Code(CodeSendQueueFull).
		With("conn_id", connID.String()).
		Errorf("send queue full")
}

// ErrConnClosed creates an error for a send to a connection that is not open.
func ErrConnClosed(connID ulid.ULID) error {
	return oops.Code(CodeConnClosed).
		With("conn_id", connID.String()).
		Errorf("connection closed")
}

// ErrLifecycle creates an error for an unexpected failure while serving a connection.
func ErrLifecycle(stage string, cause any) error {
	return oops.Code(CodeLifecycle).
		With("stage", stage).
		Errorf("%s failed: %v", stage, cause)
}

// ErrInvalidNotification creates an error for an unusable NotifyNewMessage call.
func ErrInvalidNotification(roomID, reason string) error {
	return oops.Code(CodeInvalidNotification).
		With("room_id", roomID).
		Errorf("invalid notification: %s", reason)
}
