package gateway

import (
	"sync"

	"github.com/rubiojr/huddle/pkg/auth"
	"github.com/rubiojr/huddle/pkg/realtime"
)

// State is the lifecycle stage of a session. Sessions only move forward;
// a failed handshake goes straight from Connecting to Closed.
type State int

const (
	StateConnecting State = iota
	StateAuthenticated
	StateSubscribed
	StateActive
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateAuthenticated:
		return "authenticated"
	case StateSubscribed:
		return "subscribed"
	case StateActive:
		return "active"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// Session binds one connection to its verified identity.
type Session struct {
	conn     realtime.Conn
	identity *auth.Identity

	mu    sync.Mutex
	state State
}

func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// setState moves the session to next and returns the previous state.
// Backward transitions are ignored.
func (s *Session) setState(next State) State {
	s.mu.Lock()
	defer s.mu.Unlock()
	prev := s.state
	if next > prev {
		s.state = next
	}
	return prev
}

// Identity returns the verified identity, or nil before authentication.
func (s *Session) Identity() *auth.Identity { return s.identity }

func (s *Session) Conn() realtime.Conn { return s.conn }
