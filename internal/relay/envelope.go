// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package relay

import (
	"bytes"
	"encoding/json"
	"errors"
)

// Kind is the "type" discriminator of an envelope.
type Kind string

// Known envelope kinds.
const (
	KindTyping     Kind = "typing"
	KindUserTyping Kind = "user_typing"
	KindNewMessage Kind = "new_message"
)

// Inbound is a decoded client-to-server frame.
type Inbound interface {
	Kind() Kind
}

// Typing signals that the sender is typing.
type Typing struct{}

// Kind implements Inbound.
func (Typing) Kind() Kind { return KindTyping }

// Outbound is a server-to-client frame.
type Outbound interface {
	Kind() Kind
}

// UserTyping tells room members that another member is typing.
type UserTyping struct {
	UserID string
	RoomID string
}

// Kind implements Outbound.
func (UserTyping) Kind() Kind { return KindUserTyping }

// MarshalJSON writes the wire form including the type tag.
func (m UserTyping) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Type   Kind   `json:"type"`
		UserID string `json:"userId"`
		RoomID string `json:"roomId"`
	}{KindUserTyping, m.UserID, m.RoomID})
}

// NewMessage carries a durably stored chat message to live members. Message
// is opaque to the relay.
type NewMessage struct {
	Message any
	RoomID  string
}

// Kind implements Outbound.
func (NewMessage) Kind() Kind { return KindNewMessage }

// MarshalJSON writes the wire form including the type tag.
func (m NewMessage) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Type    Kind   `json:"type"`
		Message any    `json:"message"`
		RoomID  string `json:"roomId"`
	}{KindNewMessage, m.Message, m.RoomID})
}

// inboundFrame is the wire shape shared by all inbound frames. Extra fields
// are allowed so newer clients can add them.
type inboundFrame struct {
	Type string `json:"type" jsonschema:"minLength=1,description=Frame discriminator"`
}

// DecodeInbound strictly decodes raw into a known inbound frame.
// Malformed input yields a FRAME_PARSE_ERROR; a valid frame of an unknown
// type yields UNKNOWN_FRAME_TYPE.
func DecodeInbound(raw []byte) (Inbound, error) {
	if err := validateFrame(raw); err != nil {
		return nil, ErrFrameParse(err)
	}

	var frame inboundFrame
	if err := json.Unmarshal(raw, &frame); err != nil {
		return nil, ErrFrameParse(err)
	}

	switch Kind(frame.Type) {
	case KindTyping:
		return Typing{}, nil
	default:
		return nil, ErrUnknownFrameType(frame.Type)
	}
}

var errEmptyFrame = errors.New("empty frame")

func trimFrame(raw []byte) ([]byte, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return nil, errEmptyFrame
	}
	return raw, nil
}
