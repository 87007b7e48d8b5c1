// Package realtime holds the in-process fan-out layer between the gateway and
// live client connections: a Conn abstraction, its gorilla websocket
// implementation and a Hub that groups connections into channel rooms.
//
// Delivery is best-effort. A connection whose send queue is full is closed
// rather than allowed to backpressure the sender, and nothing is persisted or
// replayed here; history lives in storage.
//
// The Hub only spans one process. Running several server instances requires
// replacing it with a broker-backed implementation behind the same methods.
package realtime

import (
	"sort"
	"sync"
)

// Hub tracks every live connection and the channel rooms each one is
// subscribed to. It is safe for concurrent use.
type Hub struct {
	mu        sync.RWMutex
	conns     map[string]Conn
	rooms     map[string]map[string]Conn     // channelID -> connID -> conn
	connRooms map[string]map[string]struct{} // connID -> channelIDs
}

func NewHub() *Hub {
	return &Hub{
		conns:     make(map[string]Conn),
		rooms:     make(map[string]map[string]Conn),
		connRooms: make(map[string]map[string]struct{}),
	}
}

// Add makes conn reachable through BroadcastAll.
func (h *Hub) Add(conn Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.conns[conn.ID()] = conn
}

// Remove drops conn from the hub and from every room. Unknown connections
// are ignored.
func (h *Hub) Remove(conn Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	id := conn.ID()
	for channelID := range h.connRooms[id] {
		h.leaveLocked(channelID, id)
	}
	delete(h.connRooms, id)
	delete(h.conns, id)
}

// Join subscribes conn to channelID. Connections that were never added, or
// were already removed, are ignored so a late join cannot resurrect a closed
// connection.
func (h *Hub) Join(channelID string, conn Conn) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	id := conn.ID()
	if _, ok := h.conns[id]; !ok {
		return false
	}

	room := h.rooms[channelID]
	if room == nil {
		room = make(map[string]Conn)
		h.rooms[channelID] = room
	}
	room[id] = conn

	joined := h.connRooms[id]
	if joined == nil {
		joined = make(map[string]struct{})
		h.connRooms[id] = joined
	}
	joined[channelID] = struct{}{}
	return true
}

func (h *Hub) Leave(channelID string, conn Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.leaveLocked(channelID, conn.ID())
}

func (h *Hub) leaveLocked(channelID, connID string) {
	if room := h.rooms[channelID]; room != nil {
		delete(room, connID)
		if len(room) == 0 {
			delete(h.rooms, channelID)
		}
	}
	if joined := h.connRooms[connID]; joined != nil {
		delete(joined, channelID)
	}
}

// Broadcast sends payload to every connection subscribed to channelID except
// the one whose id is exceptConnID, returning how many accepted it.
func (h *Hub) Broadcast(channelID string, payload []byte, exceptConnID string) int {
	h.mu.RLock()
	targets := make([]Conn, 0, len(h.rooms[channelID]))
	for id, conn := range h.rooms[channelID] {
		if id != exceptConnID {
			targets = append(targets, conn)
		}
	}
	h.mu.RUnlock()
	return deliver(targets, payload)
}

// BroadcastAll sends payload to every live connection.
func (h *Hub) BroadcastAll(payload []byte) int {
	h.mu.RLock()
	targets := make([]Conn, 0, len(h.conns))
	for _, conn := range h.conns {
		targets = append(targets, conn)
	}
	h.mu.RUnlock()
	return deliver(targets, payload)
}

// sends happen outside the lock: a full queue closes the connection
func deliver(targets []Conn, payload []byte) int {
	delivered := 0
	for _, conn := range targets {
		if err := conn.Send(payload); err == nil {
			delivered++
		}
	}
	return delivered
}

// Rooms returns the channel ids conn is subscribed to, sorted.
func (h *Hub) Rooms(conn Conn) []string {
	h.mu.RLock()
	defer h.mu.RUnlock()
	ids := make([]string, 0, len(h.connRooms[conn.ID()]))
	for id := range h.connRooms[conn.ID()] {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// RoomSize returns the number of connections subscribed to channelID.
func (h *Hub) RoomSize(channelID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[channelID])
}

// Size returns the number of live connections.
func (h *Hub) Size() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.conns)
}

// Close closes every connection and resets the hub.
func (h *Hub) Close(code int, reason string) {
	h.mu.Lock()
	conns := make([]Conn, 0, len(h.conns))
	for _, conn := range h.conns {
		conns = append(conns, conn)
	}
	h.conns = make(map[string]Conn)
	h.rooms = make(map[string]map[string]Conn)
	h.connRooms = make(map[string]map[string]struct{})
	h.mu.Unlock()

	for _, conn := range conns {
		conn.Close(code, reason)
	}
}

// InRoom reports whether conn is subscribed to channelID.
func (h *Hub) InRoom(channelID string, conn Conn) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	_, ok := h.rooms[channelID][conn.ID()]
	return ok
}
