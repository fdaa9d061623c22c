package api

import (
	"net/http"
	"strings"
	"time"

	"chatflow/pkg/types"
)

// Request shapes. Every endpoint has an explicit record; required fields
// are validated here or in the store, never inferred from dynamic payloads.

type legacyMessageRequest struct {
	Room   string `json:"room"`
	Sender string `json:"sender"`
	Text   string `json:"text"`
}

type roomUserRequest struct {
	Room string `json:"room"`
	User string `json:"user"`
}

type typingRequest struct {
	Room   string `json:"room"`
	User   string `json:"user"`
	Typing *bool  `json:"typing"`
}

type credentialsRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
	Avatar   string `json:"avatar,omitempty"`
}

type createRoomRequest struct {
	Name     string `json:"name"`
	Password string `json:"password,omitempty"`
}

type joinRoomRequest struct {
	Room     string `json:"room"`
	Password string `json:"password,omitempty"`
}

type sendMessageRequest struct {
	Room string         `json:"room"`
	Text string         `json:"text"`
	File *types.FileRef `json:"file,omitempty"`
}

type messageRefRequest struct {
	Room string `json:"room"`
	ID   string `json:"id"`
}

type editMessageRequest struct {
	Room string `json:"room"`
	ID   string `json:"id"`
	Text string `json:"text"`
}

type reactRequest struct {
	Room  string `json:"room"`
	ID    string `json:"id"`
	Emoji string `json:"emoji"`
}

type replyRequest struct {
	Room string `json:"room"`
	ID   string `json:"id"`
	Text string `json:"text"`
}

type markMessageReadRequest struct {
	MessageID string `json:"message_id"`
}

type roomRequest struct {
	Room string `json:"room"`
}

type sendDMRequest struct {
	To   string         `json:"to"`
	Text string         `json:"text"`
	File *types.FileRef `json:"file,omitempty"`
}

type avatarRequest struct {
	Avatar string `json:"avatar"`
}

type tokenResponse struct {
	Token    string `json:"token"`
	Username string `json:"username"`
	Avatar   string `json:"avatar,omitempty"`
}

// Legacy anonymous surface ---------------------------------------------

func (s *Server) handleLegacySend(w http.ResponseWriter, r *http.Request) {
	if !s.requireMethod(w, r, http.MethodPost) {
		return
	}
	var req legacyMessageRequest
	if !s.decode(w, r, &req) {
		return
	}
	if req.Room == "" || req.Sender == "" || req.Text == "" {
		s.sendError(w, "Missing data", http.StatusBadRequest)
		return
	}
	if _, err := s.store.PostMessage(req.Room, req.Sender, req.Text, nil); err != nil {
		s.sendStoreError(w, err)
		return
	}
	s.sendJSON(w, http.StatusOK, statusResponse{Status: "ok"})
}

func (s *Server) handleLegacyGet(w http.ResponseWriter, r *http.Request) {
	if !s.requireMethod(w, r, http.MethodGet) {
		return
	}
	room := pathSuffix(r, "/get/")
	if room == "" {
		s.sendError(w, "Room is required", http.StatusBadRequest)
		return
	}
	s.sendJSON(w, http.StatusOK, s.store.RecentMessages(room))
}

func (s *Server) handleLegacyJoin(w http.ResponseWriter, r *http.Request) {
	if !s.requireMethod(w, r, http.MethodPost) {
		return
	}
	var req roomUserRequest
	if !s.decode(w, r, &req) {
		return
	}
	if req.Room == "" || req.User == "" {
		s.sendError(w, "Missing data", http.StatusBadRequest)
		return
	}
	if err := s.store.JoinRoom(req.Room, "", req.User); err != nil {
		s.sendStoreError(w, err)
		return
	}
	s.sendJSON(w, http.StatusOK, statusResponse{Status: "joined"})
}

func (s *Server) handleLegacyLeave(w http.ResponseWriter, r *http.Request) {
	if !s.requireMethod(w, r, http.MethodPost) {
		return
	}
	var req roomUserRequest
	if !s.decode(w, r, &req) {
		return
	}
	if req.Room == "" || req.User == "" {
		s.sendError(w, "Missing data", http.StatusBadRequest)
		return
	}
	if err := s.store.LeaveRoom(req.Room, req.User); err != nil {
		s.sendStoreError(w, err)
		return
	}
	s.sendJSON(w, http.StatusOK, statusResponse{Status: "left"})
}

func (s *Server) handleLegacyUsers(w http.ResponseWriter, r *http.Request) {
	if !s.requireMethod(w, r, http.MethodGet) {
		return
	}
	room := pathSuffix(r, "/users/")
	s.sendJSON(w, http.StatusOK, s.store.RoomUsers(room))
}

func (s *Server) handleTyping(w http.ResponseWriter, r *http.Request) {
	if !s.requireMethod(w, r, http.MethodPost) {
		return
	}
	var req typingRequest
	if !s.decode(w, r, &req) {
		return
	}
	if req.Room == "" || req.User == "" || req.Typing == nil {
		s.sendError(w, "Missing data", http.StatusBadRequest)
		return
	}
	typing := s.store.SetTyping(req.Room, req.User, *req.Typing)
	s.sendJSON(w, http.StatusOK, map[string][]string{"typing": typing})
}

func (s *Server) handleClear(w http.ResponseWriter, r *http.Request) {
	if !s.requireMethod(w, r, http.MethodDelete) {
		return
	}
	room := pathSuffix(r, "/clear/")
	// The legacy route is anonymous; an identity is only attached when the
	// client happens to send one, letting registered rooms enforce admin.
	caller := ""
	if token := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer "); token != "" {
		caller, _ = s.auth.VerifyToken(token)
	}
	if err := s.store.ClearRoom(room, caller); err != nil {
		s.sendStoreError(w, err)
		return
	}
	s.sendJSON(w, http.StatusOK, statusResponse{Status: "cleared"})
}

// Accounts ---------------------------------------------------------------

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	if !s.requireMethod(w, r, http.MethodPost) {
		return
	}
	var req credentialsRequest
	if !s.decode(w, r, &req) {
		return
	}
	token, user, err := s.auth.Register(req.Username, req.Password, req.Avatar)
	if err != nil {
		s.sendStoreError(w, err)
		return
	}
	s.sendJSON(w, http.StatusCreated, tokenResponse{Token: token, Username: user.Username, Avatar: user.Avatar})
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	if !s.requireMethod(w, r, http.MethodPost) {
		return
	}
	var req credentialsRequest
	if !s.decode(w, r, &req) {
		return
	}
	token, user, err := s.auth.Login(req.Username, req.Password)
	if err != nil {
		s.sendStoreError(w, err)
		return
	}
	s.sendJSON(w, http.StatusOK, tokenResponse{Token: token, Username: user.Username, Avatar: user.Avatar})
}

func (s *Server) handleHeartbeat(w http.ResponseWriter, r *http.Request, caller string) {
	if !s.requireMethod(w, r, http.MethodPost) {
		return
	}
	if err := s.store.Heartbeat(caller); err != nil {
		s.sendStoreError(w, err)
		return
	}
	s.sendJSON(w, http.StatusOK, statusResponse{Status: "ok"})
}

func (s *Server) handleOnlineUsers(w http.ResponseWriter, r *http.Request, caller string) {
	if !s.requireMethod(w, r, http.MethodGet) {
		return
	}
	s.sendJSON(w, http.StatusOK, s.store.OnlineUsers())
}

func (s *Server) handleUpdateAvatar(w http.ResponseWriter, r *http.Request, caller string) {
	if !s.requireMethod(w, r, http.MethodPost) {
		return
	}
	var req avatarRequest
	if !s.decode(w, r, &req) {
		return
	}
	if err := s.store.UpdateAvatar(caller, req.Avatar); err != nil {
		s.sendStoreError(w, err)
		return
	}
	s.sendJSON(w, http.StatusOK, statusResponse{Status: "ok"})
}

// Rooms ------------------------------------------------------------------

func (s *Server) handleListRooms(w http.ResponseWriter, r *http.Request, caller string) {
	if !s.requireMethod(w, r, http.MethodGet) {
		return
	}
	s.sendJSON(w, http.StatusOK, s.store.ListRooms())
}

func (s *Server) handleCreateRoom(w http.ResponseWriter, r *http.Request, caller string) {
	if !s.requireMethod(w, r, http.MethodPost) {
		return
	}
	var req createRoomRequest
	if !s.decode(w, r, &req) {
		return
	}
	hash, err := s.auth.HashRoomPassword(req.Password)
	if err != nil {
		s.sendError(w, "Failed to process password", http.StatusInternalServerError)
		return
	}
	room, err := s.store.CreateRoom(req.Name, hash, caller)
	if err != nil {
		s.sendStoreError(w, err)
		return
	}
	s.sendJSON(w, http.StatusCreated, room)
}

func (s *Server) handleJoinRoom(w http.ResponseWriter, r *http.Request, caller string) {
	if !s.requireMethod(w, r, http.MethodPost) {
		return
	}
	var req joinRoomRequest
	if !s.decode(w, r, &req) {
		return
	}
	if err := s.store.JoinRoom(req.Room, req.Password, caller); err != nil {
		s.sendStoreError(w, err)
		return
	}
	s.sendJSON(w, http.StatusOK, statusResponse{Status: "joined"})
}

// Messages ---------------------------------------------------------------

func (s *Server) handleSendMessage(w http.ResponseWriter, r *http.Request, caller string) {
	if !s.requireMethod(w, r, http.MethodPost) {
		return
	}
	var req sendMessageRequest
	if !s.decode(w, r, &req) {
		return
	}
	msg, err := s.store.PostMessage(req.Room, caller, req.Text, req.File)
	if err != nil {
		s.sendStoreError(w, err)
		return
	}
	s.sendJSON(w, http.StatusCreated, msg)
}

func (s *Server) handleGetMessages(w http.ResponseWriter, r *http.Request, caller string) {
	if !s.requireMethod(w, r, http.MethodGet) {
		return
	}
	room := pathSuffix(r, "/messages/")
	s.sendJSON(w, http.StatusOK, s.store.GetMessages(room))
}

func (s *Server) handleEditMessage(w http.ResponseWriter, r *http.Request, caller string) {
	if !s.requireMethod(w, r, http.MethodPost) {
		return
	}
	var req editMessageRequest
	if !s.decode(w, r, &req) {
		return
	}
	msg, err := s.store.EditMessage(req.Room, req.ID, req.Text, caller)
	if err != nil {
		s.sendStoreError(w, err)
		return
	}
	s.sendJSON(w, http.StatusOK, msg)
}

func (s *Server) handleDeleteMessage(w http.ResponseWriter, r *http.Request, caller string) {
	if !s.requireMethod(w, r, http.MethodPost) {
		return
	}
	var req messageRefRequest
	if !s.decode(w, r, &req) {
		return
	}
	if err := s.store.DeleteMessage(req.Room, req.ID, caller); err != nil {
		s.sendStoreError(w, err)
		return
	}
	s.sendJSON(w, http.StatusOK, statusResponse{Status: "deleted"})
}

func (s *Server) handleReact(w http.ResponseWriter, r *http.Request, caller string) {
	if !s.requireMethod(w, r, http.MethodPost) {
		return
	}
	var req reactRequest
	if !s.decode(w, r, &req) {
		return
	}
	reactions, err := s.store.React(req.Room, req.ID, req.Emoji, caller)
	if err != nil {
		s.sendStoreError(w, err)
		return
	}
	s.sendJSON(w, http.StatusOK, map[string]map[string][]string{"reactions": reactions})
}

func (s *Server) handleReply(w http.ResponseWriter, r *http.Request, caller string) {
	if !s.requireMethod(w, r, http.MethodPost) {
		return
	}
	var req replyRequest
	if !s.decode(w, r, &req) {
		return
	}
	reply, err := s.store.Reply(req.Room, req.ID, req.Text, caller)
	if err != nil {
		s.sendStoreError(w, err)
		return
	}
	s.sendJSON(w, http.StatusCreated, reply)
}

func (s *Server) handleGetReplies(w http.ResponseWriter, r *http.Request, caller string) {
	if !s.requireMethod(w, r, http.MethodPost) {
		return
	}
	var req messageRefRequest
	if !s.decode(w, r, &req) {
		return
	}
	replies, err := s.store.GetReplies(req.Room, req.ID)
	if err != nil {
		s.sendStoreError(w, err)
		return
	}
	s.sendJSON(w, http.StatusOK, replies)
}

func (s *Server) handleMarkMessageRead(w http.ResponseWriter, r *http.Request, caller string) {
	if !s.requireMethod(w, r, http.MethodPost) {
		return
	}
	var req markMessageReadRequest
	if !s.decode(w, r, &req) {
		return
	}
	if err := s.store.MarkMessageRead(req.MessageID, caller); err != nil {
		s.sendStoreError(w, err)
		return
	}
	s.sendJSON(w, http.StatusOK, statusResponse{Status: "ok"})
}

func (s *Server) handleGetReadBy(w http.ResponseWriter, r *http.Request, caller string) {
	if !s.requireMethod(w, r, http.MethodPost) {
		return
	}
	var req messageRefRequest
	if !s.decode(w, r, &req) {
		return
	}
	readBy, err := s.store.GetReadBy(req.Room, req.ID)
	if err != nil {
		s.sendStoreError(w, err)
		return
	}
	s.sendJSON(w, http.StatusOK, map[string][]string{"read_by": readBy})
}

// Moderation -------------------------------------------------------------

func (s *Server) handleKick(w http.ResponseWriter, r *http.Request, caller string) {
	if !s.requireMethod(w, r, http.MethodPost) {
		return
	}
	var req roomUserRequest
	if !s.decode(w, r, &req) {
		return
	}
	if err := s.store.Kick(req.Room, req.User, caller); err != nil {
		s.sendStoreError(w, err)
		return
	}
	s.sendJSON(w, http.StatusOK, statusResponse{Status: "kicked"})
}

func (s *Server) handleBan(w http.ResponseWriter, r *http.Request, caller string) {
	if !s.requireMethod(w, r, http.MethodPost) {
		return
	}
	var req roomUserRequest
	if !s.decode(w, r, &req) {
		return
	}
	if err := s.store.Ban(req.Room, req.User, caller); err != nil {
		s.sendStoreError(w, err)
		return
	}
	s.sendJSON(w, http.StatusOK, statusResponse{Status: "banned"})
}

func (s *Server) handlePin(w http.ResponseWriter, r *http.Request, caller string) {
	if !s.requireMethod(w, r, http.MethodPost) {
		return
	}
	var req messageRefRequest
	if !s.decode(w, r, &req) {
		return
	}
	if err := s.store.Pin(req.Room, req.ID, caller); err != nil {
		s.sendStoreError(w, err)
		return
	}
	s.sendJSON(w, http.StatusOK, statusResponse{Status: "pinned"})
}

func (s *Server) handleGetPins(w http.ResponseWriter, r *http.Request, caller string) {
	if !s.requireMethod(w, r, http.MethodGet) {
		return
	}
	room := pathSuffix(r, "/get_pins/")
	s.sendJSON(w, http.StatusOK, s.store.GetPins(room))
}

func (s *Server) handleGetModLog(w http.ResponseWriter, r *http.Request, caller string) {
	if !s.requireMethod(w, r, http.MethodPost) {
		return
	}
	var req roomRequest
	if !s.decode(w, r, &req) {
		return
	}
	entries, err := s.store.GetModLog(req.Room, caller)
	if err != nil {
		s.sendStoreError(w, err)
		return
	}
	s.sendJSON(w, http.StatusOK, entries)
}

// Read tracking ----------------------------------------------------------

func (s *Server) handleMarkRead(w http.ResponseWriter, r *http.Request, caller string) {
	if !s.requireMethod(w, r, http.MethodPost) {
		return
	}
	var req roomRequest
	if !s.decode(w, r, &req) {
		return
	}
	if err := s.store.MarkRead(req.Room, caller); err != nil {
		s.sendStoreError(w, err)
		return
	}
	s.sendJSON(w, http.StatusOK, statusResponse{Status: "ok"})
}

func (s *Server) handleUnreadCounts(w http.ResponseWriter, r *http.Request, caller string) {
	if !s.requireMethod(w, r, http.MethodPost) {
		return
	}
	s.sendJSON(w, http.StatusOK, s.store.UnreadCounts(caller))
}

func (s *Server) handleGetMentions(w http.ResponseWriter, r *http.Request, caller string) {
	if !s.requireMethod(w, r, http.MethodPost) {
		return
	}
	s.sendJSON(w, http.StatusOK, s.store.GetMentions(caller))
}

// Direct messages --------------------------------------------------------

func (s *Server) handleSendDM(w http.ResponseWriter, r *http.Request, caller string) {
	if !s.requireMethod(w, r, http.MethodPost) {
		return
	}
	var req sendDMRequest
	if !s.decode(w, r, &req) {
		return
	}
	msg, err := s.store.SendDM(caller, req.To, req.Text, req.File)
	if err != nil {
		s.sendStoreError(w, err)
		return
	}
	s.sendJSON(w, http.StatusCreated, msg)
}

func (s *Server) handleGetDM(w http.ResponseWriter, r *http.Request, caller string) {
	if !s.requireMethod(w, r, http.MethodGet) {
		return
	}
	other := pathSuffix(r, "/get_dm/")
	if other == "" {
		s.sendError(w, "User is required", http.StatusBadRequest)
		return
	}
	s.sendJSON(w, http.StatusOK, s.store.GetDM(caller, other))
}

// handleDMPartners lists users the caller has a DM history with, feeding
// the client's conversation sidebar.
func (s *Server) handleDMPartners(w http.ResponseWriter, r *http.Request, caller string) {
	if !s.requireMethod(w, r, http.MethodGet) {
		return
	}
	s.sendJSON(w, http.StatusOK, s.store.DMPartners(caller))
}

// Health -----------------------------------------------------------------

type healthResponse struct {
	Status    string         `json:"status"`
	Timestamp time.Time      `json:"timestamp"`
	Store     map[string]int `json:"store"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if !s.requireMethod(w, r, http.MethodGet) {
		return
	}
	s.sendJSON(w, http.StatusOK, healthResponse{
		Status:    "healthy",
		Timestamp: time.Now(),
		Store:     s.store.Stats(),
	})
}
