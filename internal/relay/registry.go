// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package relay

import "github.com/oklog/ulid/v2"

// Registry maps member keys to their live connection.
// It is not safe for concurrent use; Hub serializes all access.
type Registry struct {
	conns map[MemberKey]Conn
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{conns: make(map[MemberKey]Conn)}
}

// Register inserts or replaces the connection for key.
func (r *Registry) Register(key MemberKey, conn Conn) {
	r.conns[key] = conn
}

// Lookup returns the connection registered for key.
func (r *Registry) Lookup(key MemberKey) (Conn, bool) {
	conn, ok := r.conns[key]
	return conn, ok
}

// Remove deletes the entry for key. Absent keys are ignored.
func (r *Registry) Remove(key MemberKey) {
	delete(r.conns, key)
}

// RemoveIf deletes the entry for key only if it still belongs to connID.
// Reports whether an entry was removed.
func (r *Registry) RemoveIf(key MemberKey, connID ulid.ULID) bool {
	conn, ok := r.conns[key]
	if !ok || conn.ID() != connID {
		return false
	}
	delete(r.conns, key)
	return true
}

// Len returns the number of registered connections.
func (r *Registry) Len() int {
	return len(r.conns)
}

// All returns every registered connection.
func (r *Registry) All() []Conn {
	out := make([]Conn, 0, len(r.conns))
	for _, conn := range r.conns {
		out = append(out, conn)
	}
	return out
}
