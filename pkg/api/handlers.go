package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/rubiojr/huddle/pkg/auth"
	"github.com/rubiojr/huddle/pkg/chat"
	"github.com/rubiojr/huddle/pkg/realtime"
	"github.com/rubiojr/huddle/pkg/version"
)

func (s *Server) HandleListChannels(w http.ResponseWriter, r *http.Request) {
	caller := auth.FromContext(r.Context())

	channels, err := s.dir.ListChannelsFor(r.Context(), caller.UserID)
	if err != nil {
		s.internalError(w, "Failed to list channels", err)
		return
	}
	s.writeJSON(w, http.StatusOK, channels)
}

func (s *Server) HandleListMessages(w http.ResponseWriter, r *http.Request) {
	channelID := r.PathValue("id")
	if !s.requireMember(w, r, channelID) {
		return
	}

	query := r.URL.Query()
	var before *time.Time
	if raw := query.Get("before"); raw != "" {
		t, err := time.Parse(time.RFC3339Nano, raw)
		if err != nil {
			s.writeError(w, http.StatusBadRequest, "Invalid date format", fmt.Sprintf("before must be RFC3339: %v", err))
			return
		}
		before = &t
	}
	limit := 0
	if raw := query.Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			s.writeError(w, http.StatusBadRequest, "Invalid limit", "limit must be a non-negative integer")
			return
		}
		limit = n
	}

	messages, err := s.messages.List(r.Context(), channelID, before, limit)
	if err != nil {
		s.internalError(w, "Failed to list messages", err)
		return
	}
	s.writeJSON(w, http.StatusOK, messages)
}

func (s *Server) HandleListMembers(w http.ResponseWriter, r *http.Request) {
	channelID := r.PathValue("id")
	if !s.requireMember(w, r, channelID) {
		return
	}

	members, err := s.dir.MembersOf(r.Context(), channelID)
	if err != nil {
		s.internalError(w, "Failed to list members", err)
		return
	}
	s.writeJSON(w, http.StatusOK, members)
}

func (s *Server) HandleDirectChannel(w http.ResponseWriter, r *http.Request) {
	caller := auth.FromContext(r.Context())
	target := r.PathValue("userId")

	users, err := s.users.GetUsers(r.Context(), []string{target})
	if err != nil {
		s.internalError(w, "Failed to resolve user", err)
		return
	}
	if _, ok := users[target]; !ok {
		s.writeError(w, http.StatusNotFound, "User not found", fmt.Sprintf("User '%s' does not exist", target))
		return
	}

	ch, created, err := s.dir.GetOrCreateDirect(r.Context(), caller.UserID, target)
	if errors.Is(err, chat.ErrSelfDirect) {
		s.writeError(w, http.StatusBadRequest, "Invalid user", err.Error())
		return
	}
	if err != nil {
		s.internalError(w, "Failed to open direct channel", err)
		return
	}
	if created {
		s.gateway.JoinUserToChannel(caller.UserID, ch.ID)
		s.gateway.JoinUserToChannel(target, ch.ID)
	}

	summary, err := s.dir.Summary(r.Context(), caller.UserID, ch.ID)
	if err != nil {
		s.internalError(w, "Failed to summarize channel", err)
		return
	}
	s.writeJSON(w, http.StatusOK, summary)
}

func (s *Server) HandleMarkRead(w http.ResponseWriter, r *http.Request) {
	caller := auth.FromContext(r.Context())
	channelID := r.PathValue("id")

	_, err := s.messages.MarkRead(r.Context(), channelID, caller.UserID)
	if errors.Is(err, chat.ErrNotFound) {
		s.forbidden(w, channelID)
		return
	}
	if err != nil {
		s.internalError(w, "Failed to mark channel read", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) HandleListUsers(w http.ResponseWriter, r *http.Request) {
	caller := auth.FromContext(r.Context())

	users, err := s.dir.Users(r.Context(), caller.UserID)
	if err != nil {
		s.internalError(w, "Failed to list users", err)
		return
	}
	s.writeJSON(w, http.StatusOK, users)
}

func (s *Server) HandleHealth(w http.ResponseWriter, r *http.Request) {
	health := HealthResponse{
		Status:    "ok",
		Timestamp: time.Now().UTC(),
		Version:   version.APIVersion(),
		Online:    len(s.gateway.Presence().OnlineUserIDs()),
	}

	s.writeJSON(w, http.StatusOK, health)
}

// HandleWebsocket upgrades the request and hands the connection to the
// gateway. The credential comes from the token query parameter or a bearer
// header; a bad one is rejected after the upgrade with close code 4401.
func (s *Server) HandleWebsocket(w http.ResponseWriter, r *http.Request) {
	credential := auth.CredentialFromRequest(r)

	ws, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade already wrote the response
		s.log.Debugf("websocket upgrade failed: %v", err)
		return
	}
	ws.SetReadLimit(1 << 20)

	conn := realtime.NewWSConn(ws, s.ws)
	s.gateway.Serve(context.WithoutCancel(r.Context()), conn, credential)
}

func (s *Server) requireMember(w http.ResponseWriter, r *http.Request, channelID string) bool {
	caller := auth.FromContext(r.Context())
	member, err := s.dir.IsMember(r.Context(), channelID, caller.UserID)
	if err != nil {
		s.internalError(w, "Failed to check membership", err)
		return false
	}
	if !member {
		s.forbidden(w, channelID)
		return false
	}
	return true
}

func (s *Server) forbidden(w http.ResponseWriter, channelID string) {
	s.writeError(w, http.StatusForbidden, "Forbidden", fmt.Sprintf("Not a member of channel '%s'", channelID))
}

func (s *Server) internalError(w http.ResponseWriter, what string, err error) {
	s.log.Errorf("%s: %v", what, err)
	s.writeError(w, http.StatusInternalServerError, what, err.Error())
}
