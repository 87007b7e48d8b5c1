package api

import (
	"encoding/json"
	"net/http"

	"github.com/gorilla/websocket"
	"github.com/klauspost/compress/gzhttp"
	"github.com/rubiojr/huddle/pkg/auth"
	"github.com/rubiojr/huddle/pkg/chat"
	"github.com/rubiojr/huddle/pkg/gateway"
	"github.com/rubiojr/huddle/pkg/log"
	"github.com/rubiojr/huddle/pkg/realtime"
)

type Server struct {
	dir      *chat.Directory
	messages *chat.MessageService
	users    chat.UserStore
	gateway  *gateway.Gateway
	verifier auth.Verifier
	ws       realtime.WSOptions
	upgrader websocket.Upgrader
	log      *log.Logger
}

func NewServer(dir *chat.Directory, messages *chat.MessageService, users chat.UserStore, gw *gateway.Gateway, verifier auth.Verifier) *Server {
	return &Server{
		dir:      dir,
		messages: messages,
		users:    users,
		gateway:  gw,
		verifier: verifier,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// credentials travel in the token, not in cookies
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		log: log.ForService("api"),
	}
}

// SetWebsocketOptions tunes connections accepted on /ws.
func (s *Server) SetWebsocketOptions(opts realtime.WSOptions) {
	s.ws = opts
}

// Handler returns the full HTTP surface: the authenticated, gzip-compressed
// JSON API plus the health check and websocket endpoints.
func (s *Server) Handler() http.Handler {
	api := http.NewServeMux()
	s.RegisterRoutes(api)

	mux := http.NewServeMux()
	mux.Handle("/api/", gzhttp.GzipHandler(s.RequireAuth(api)))
	mux.HandleFunc("GET /health", s.HandleHealth)
	mux.HandleFunc("GET /ws", s.HandleWebsocket)
	return CorsMiddleware(mux)
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		s.log.Warnf("encoding JSON response: %v", err)
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, error, message string) {
	response := ErrorResponse{
		Error:   error,
		Message: message,
	}
	s.writeJSON(w, status, response)
}

// RequireAuth rejects requests without a valid bearer token and stores the
// caller's identity in the request context.
func (s *Server) RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		identity, err := s.verifier.Verify(r.Context(), auth.CredentialFromRequest(r))
		if err != nil {
			s.writeError(w, http.StatusUnauthorized, "Unauthorized", err.Error())
			return
		}
		next.ServeHTTP(w, r.WithContext(auth.WithIdentity(r.Context(), identity)))
	})
}

func CorsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PATCH, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}
