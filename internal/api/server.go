package api

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strings"

	"chatflow/internal/auth"
	"chatflow/internal/state"
	"chatflow/pkg/types"
)

// Server is the stateless request layer over the chat store. It owns
// transport concerns only: JSON decoding, identity extraction and status
// code mapping. All invariants live in the state manager.
type Server struct {
	store  *state.Manager
	auth   *auth.Service
	router *http.ServeMux
}

// NewServer wires the HTTP surface.
func NewServer(store *state.Manager, authService *auth.Service) *Server {
	s := &Server{
		store:  store,
		auth:   authService,
		router: http.NewServeMux(),
	}
	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	// Legacy anonymous surface. No identity; rooms are implicit.
	s.handle("/send", s.handleLegacySend)
	s.handle("/get/", s.handleLegacyGet)
	s.handle("/join", s.handleLegacyJoin)
	s.handle("/leave", s.handleLegacyLeave)
	s.handle("/users/", s.handleLegacyUsers)
	s.handle("/typing", s.handleTyping)
	s.handle("/clear/", s.handleClear)

	// Account surface.
	s.handle("/register", s.handleRegister)
	s.handle("/login", s.handleLogin)
	s.handle("/heartbeat", s.withAuth(s.handleHeartbeat))
	s.handle("/online_users", s.withAuth(s.handleOnlineUsers))
	s.handle("/update_avatar", s.withAuth(s.handleUpdateAvatar))

	// Rooms.
	s.handle("/rooms", s.withAuth(s.handleListRooms))
	s.handle("/create_room", s.withAuth(s.handleCreateRoom))
	s.handle("/join_room", s.withAuth(s.handleJoinRoom))

	// Messages.
	s.handle("/send_message", s.withAuth(s.handleSendMessage))
	s.handle("/messages/", s.withAuth(s.handleGetMessages))
	s.handle("/edit_message", s.withAuth(s.handleEditMessage))
	s.handle("/delete_message", s.withAuth(s.handleDeleteMessage))
	s.handle("/react", s.withAuth(s.handleReact))
	s.handle("/reply_message", s.withAuth(s.handleReply))
	s.handle("/get_replies", s.withAuth(s.handleGetReplies))
	s.handle("/mark_message_read", s.withAuth(s.handleMarkMessageRead))
	s.handle("/get_read_by", s.withAuth(s.handleGetReadBy))

	// Moderation.
	s.handle("/kick_user", s.withAuth(s.handleKick))
	s.handle("/ban_user", s.withAuth(s.handleBan))
	s.handle("/pin_message", s.withAuth(s.handlePin))
	s.handle("/get_pins/", s.withAuth(s.handleGetPins))
	s.handle("/get_mod_logs", s.withAuth(s.handleGetModLog))

	// Read tracking and mentions.
	s.handle("/mark_read", s.withAuth(s.handleMarkRead))
	s.handle("/get_unread_count", s.withAuth(s.handleUnreadCounts))
	s.handle("/get_mentions", s.withAuth(s.handleGetMentions))

	// Direct messages.
	s.handle("/send_dm", s.withAuth(s.handleSendDM))
	s.handle("/get_dm/", s.withAuth(s.handleGetDM))
	s.handle("/dm_partners", s.withAuth(s.handleDMPartners))

	s.handle("/health", s.handleHealth)
}

func (s *Server) handle(pattern string, h http.HandlerFunc) {
	s.router.Handle(pattern, s.corsMiddleware(s.jsonMiddleware(h)))
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// authHandler receives the verified caller identity alongside the request.
type authHandler func(w http.ResponseWriter, r *http.Request, caller string)

// withAuth resolves the Authorization header to a username. The token is
// accepted bare or with a Bearer prefix; downstream the username is
// trusted absolutely.
func (s *Server) withAuth(h authHandler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}
		token := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
		if token == "" {
			s.sendError(w, "Missing Authorization header", http.StatusUnauthorized)
			return
		}
		caller, err := s.auth.VerifyToken(token)
		if err != nil {
			s.sendError(w, "Invalid token", http.StatusUnauthorized)
			return
		}
		h(w, r, caller)
	}
}

func (s *Server) corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) jsonMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		next.ServeHTTP(w, r)
	})
}

type errorResponse struct {
	Error string `json:"error"`
	Code  int    `json:"code"`
}

type statusResponse struct {
	Status string `json:"status"`
}

func (s *Server) sendJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		log.Printf("Failed to encode response: %v", err)
	}
}

func (s *Server) sendError(w http.ResponseWriter, message string, status int) {
	s.sendJSON(w, status, errorResponse{Error: message, Code: status})
}

// sendStoreError maps the store's error taxonomy onto HTTP status codes.
func (s *Server) sendStoreError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, types.ErrInvalidInput):
		status = http.StatusBadRequest
	case errors.Is(err, types.ErrForbidden):
		status = http.StatusForbidden
	case errors.Is(err, types.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, types.ErrAlreadyExists):
		status = http.StatusConflict
	}
	s.sendError(w, err.Error(), status)
}

// decode parses a JSON request body into dst.
func (s *Server) decode(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		s.sendError(w, "Invalid JSON", http.StatusBadRequest)
		return false
	}
	return true
}

// requireMethod rejects other verbs; OPTIONS is handled by middleware.
func (s *Server) requireMethod(w http.ResponseWriter, r *http.Request, method string) bool {
	if r.Method != method {
		s.sendError(w, "Method not allowed", http.StatusMethodNotAllowed)
		return false
	}
	return true
}

// pathSuffix extracts the trailing path element after a route prefix.
func pathSuffix(r *http.Request, prefix string) string {
	rest := strings.TrimPrefix(r.URL.Path, prefix)
	return strings.Split(rest, "/")[0]
}
