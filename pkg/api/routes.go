package api

import (
	"net/http"
)

// RegisterRoutes adds the chat API to mux. Every route expects an identity
// in the request context; see RequireAuth.
func (s *Server) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/chat/channels", s.HandleListChannels)
	mux.HandleFunc("GET /api/chat/channels/{id}/messages", s.HandleListMessages)
	mux.HandleFunc("GET /api/chat/channels/{id}/members", s.HandleListMembers)
	mux.HandleFunc("POST /api/chat/channels/direct/{userId}", s.HandleDirectChannel)
	mux.HandleFunc("PATCH /api/chat/channels/{id}/read", s.HandleMarkRead)
	mux.HandleFunc("GET /api/chat/users", s.HandleListUsers)
}
