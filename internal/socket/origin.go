// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package socket

import (
	"net/http"
	"strings"

	"github.com/gobwas/glob"
	"github.com/samber/oops"
)

// OriginChecker admits WebSocket upgrades whose Origin header matches one of
// a set of glob patterns, e.g. "https://*.example.com".
type OriginChecker struct {
	patterns []glob.Glob
	raw      []string
}

// NewOriginChecker compiles patterns. An empty list yields nil, which keeps
// the library's same-origin policy.
func NewOriginChecker(patterns []string) (*OriginChecker, error) {
	if len(patterns) == 0 {
		return nil, nil
	}
	oc := &OriginChecker{}
	for _, p := range patterns {
		p = strings.ToLower(strings.TrimSpace(p))
		if p == "" {
			continue
		}
		g, err := glob.Compile(p)
		if err != nil {
			return nil, oops.Code("INVALID_ORIGIN_PATTERN").
				With("pattern", p).
				Wrapf(err, "compile origin pattern")
		}
		oc.patterns = append(oc.patterns, g)
		oc.raw = append(oc.raw, p)
	}
	return oc, nil
}

// Allowed reports whether origin matches any pattern.
func (oc *OriginChecker) Allowed(origin string) bool {
	origin = strings.ToLower(origin)
	for _, g := range oc.patterns {
		if g.Match(origin) {
			return true
		}
	}
	return false
}

// Check is suitable for websocket.Upgrader.CheckOrigin. Requests without an
// Origin header come from non-browser clients and are allowed.
func (oc *OriginChecker) Check(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	return oc.Allowed(origin)
}

// Patterns returns the normalized patterns.
func (oc *OriginChecker) Patterns() []string {
	return append([]string(nil), oc.raw...)
}
