// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package relay_test

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/holomush/roomrelay/internal/relay"
)

func TestDecodeInbound(t *testing.T) {
	tests := []struct {
		name     string
		raw      string
		wantKind relay.Kind
		wantCode string
	}{
		{name: "typing", raw: `{"type":"typing"}`, wantKind: relay.KindTyping},
		{name: "typing with extra fields", raw: `{"type":"typing","draft":true}`, wantKind: relay.KindTyping},
		{name: "surrounding whitespace", raw: " \n{\"type\":\"typing\"}\n", wantKind: relay.KindTyping},
		{name: "unknown type", raw: `{"type":"reaction"}`, wantCode: relay.CodeUnknownFrameType},
		{name: "outbound kind sent inbound", raw: `{"type":"new_message"}`, wantCode: relay.CodeUnknownFrameType},
		{name: "not json", raw: `typing`, wantCode: relay.CodeFrameParse},
		{name: "empty", raw: ``, wantCode: relay.CodeFrameParse},
		{name: "missing type", raw: `{"userId":"u1"}`, wantCode: relay.CodeFrameParse},
		{name: "empty type", raw: `{"type":""}`, wantCode: relay.CodeFrameParse},
		{name: "type not a string", raw: `{"type":42}`, wantCode: relay.CodeFrameParse},
		{name: "array", raw: `[{"type":"typing"}]`, wantCode: relay.CodeFrameParse},
		{name: "trailing garbage", raw: `{"type":"typing"}}`, wantCode: relay.CodeFrameParse},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			frame, err := relay.DecodeInbound([]byte(tt.raw))
			if tt.wantCode != "" {
				require.Error(t, err)
				assertCode(t, err, tt.wantCode)
				assert.Nil(t, frame)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantKind, frame.Kind())
		})
	}
}

func TestUserTyping_WireFormat(t *testing.T) {
	data, err := json.Marshal(relay.UserTyping{UserID: "u1", RoomID: "r1"})
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"user_typing","userId":"u1","roomId":"r1"}`, string(data))
}

func TestNewMessage_WireFormat(t *testing.T) {
	msg := json.RawMessage(`{"id":"m1","text":"hi"}`)
	data, err := json.Marshal(relay.NewMessage{Message: msg, RoomID: "r1"})
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"new_message","message":{"id":"m1","text":"hi"},"roomId":"r1"}`, string(data))
}

func TestGenerateFrameSchema(t *testing.T) {
	data, err := relay.GenerateFrameSchema()
	require.NoError(t, err)

	var schema map[string]any
	require.NoError(t, json.Unmarshal(data, &schema))
	assert.Equal(t, relay.FrameSchemaID, schema["$id"])
	assert.Equal(t, "object", schema["type"])
	assert.Contains(t, schema["required"], "type")
}
