// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package socket_test

import (
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/holomush/roomrelay/internal/socket"
	"github.com/holomush/roomrelay/pkg/errutil"
)

func TestNewOriginChecker_EmptyReturnsNil(t *testing.T) {
	oc, err := socket.NewOriginChecker(nil)
	require.NoError(t, err)
	assert.Nil(t, oc)
}

func TestNewOriginChecker_InvalidPattern(t *testing.T) {
	_, err := socket.NewOriginChecker([]string{"https://[bad"})
	errutil.AssertErrorCode(t, err, "INVALID_ORIGIN_PATTERN")
}

func TestOriginChecker_Allowed(t *testing.T) {
	oc, err := socket.NewOriginChecker([]string{"https://*.example.com", " HTTP://localhost:3000 "})
	require.NoError(t, err)

	tests := []struct {
		name   string
		origin string
		want   bool
	}{
		{"subdomain", "https://chat.example.com", true},
		{"case insensitive", "https://Chat.Example.com", true},
		{"exact", "http://localhost:3000", true},
		{"other host", "https://evil.test", false},
		{"wrong scheme", "http://chat.example.com", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, oc.Allowed(tt.origin))
		})
	}
	assert.Equal(t, []string{"https://*.example.com", "http://localhost:3000"}, oc.Patterns())
}

func TestOriginChecker_CheckAllowsMissingOrigin(t *testing.T) {
	oc, err := socket.NewOriginChecker([]string{"https://example.com"})
	require.NoError(t, err)

	r := httptest.NewRequest("GET", "/ws", nil)
	assert.True(t, oc.Check(r))

	r.Header.Set("Origin", "https://other.com")
	assert.False(t, oc.Check(r))
}
