// Package presence tracks which users are online and through which live
// connections. State is in memory only and scoped to one process.
package presence

import (
	"sort"
	"sync"

	"github.com/rubiojr/huddle/pkg/realtime"
)

// Registry maps user ids to their set of live connections. The zero value is
// not usable; call NewRegistry.
type Registry struct {
	mu    sync.RWMutex
	users map[string]map[string]realtime.Conn
}

func NewRegistry() *Registry {
	return &Registry{users: make(map[string]map[string]realtime.Conn)}
}

// Register adds conn to userID's set. It reports whether this is the user's
// first live connection.
func (r *Registry) Register(userID string, conn realtime.Conn) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	conns, ok := r.users[userID]
	if !ok {
		conns = make(map[string]realtime.Conn)
		r.users[userID] = conns
	}
	conns[conn.ID()] = conn
	return !ok
}

// Unregister removes conn from userID's set. It reports whether the user has
// no live connections left. Unregistering an unknown connection of a user
// that is still online reports false.
func (r *Registry) Unregister(userID string, conn realtime.Conn) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	conns, ok := r.users[userID]
	if !ok {
		return false
	}
	if _, known := conns[conn.ID()]; !known {
		return false
	}
	delete(conns, conn.ID())
	if len(conns) == 0 {
		delete(r.users, userID)
		return true
	}
	return false
}

// ConnectionsOf returns a snapshot of userID's live connections.
func (r *Registry) ConnectionsOf(userID string) []realtime.Conn {
	r.mu.RLock()
	defer r.mu.RUnlock()

	conns := r.users[userID]
	out := make([]realtime.Conn, 0, len(conns))
	for _, c := range conns {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID() < out[j].ID() })
	return out
}

// OnlineUserIDs returns the ids of every user with at least one live
// connection, sorted.
func (r *Registry) OnlineUserIDs() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ids := make([]string, 0, len(r.users))
	for id := range r.users {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

func (r *Registry) IsOnline(userID string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.users[userID]
	return ok
}
