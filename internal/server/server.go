package server

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"

	"github.com/google/uuid"

	"consultassist/internal/app"
	"consultassist/internal/ratelimit"
	"consultassist/internal/util"
	"consultassist/pkg/ai"
	"consultassist/pkg/store"
)

const (
	replyInvalidMessage = "I didn't receive a valid message."
	replyFarewell       = "Thank you for using the service. Goodbye!"
)

// Config wires required dependencies for the HTTP server.
type Config struct {
	App     *app.App
	Store   store.Store
	Limiter *ratelimit.FixedWindowLimiter
	// HistoryLimit caps how many history messages are forwarded to the
	// oracle per turn. Zero means no cap.
	HistoryLimit int
}

// Server exposes the chat and catalog endpoints.
type Server struct {
	app          *app.App
	store        store.Store
	limiter      *ratelimit.FixedWindowLimiter
	historyLimit int
	mux          *http.ServeMux
}

// New constructs the server with routes configured.
func New(cfg Config) *Server {
	s := &Server{
		app:          cfg.App,
		store:        cfg.Store,
		limiter:      cfg.Limiter,
		historyLimit: cfg.HistoryLimit,
		mux:          http.NewServeMux(),
	}
	s.routes()
	return s
}

// Router returns the configured handler.
func (s *Server) Router() http.Handler {
	return util.WithSecurityHeaders(util.WithCORS(s.mux))
}

func (s *Server) routes() {
	s.mux.HandleFunc("/healthz", s.handleHealth)
	s.mux.HandleFunc("/services", s.handleServices)
	s.mux.HandleFunc("/chat_turn", s.handleChatTurn)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleServices(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	services, err := s.store.ListServices()
	if err != nil {
		slog.Error("list services failed", "err", err)
		writeError(w, http.StatusInternalServerError, "failed to list services")
		return
	}
	writeJSON(w, http.StatusOK, services)
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatTurnRequest struct {
	SessionID string        `json:"session_id"`
	Messages  []chatMessage `json:"messages"`
}

type chatTurnResponse struct {
	SessionID string `json:"session_id"`
	Response  string `json:"response"`
}

func (s *Server) handleChatTurn(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}
	if !s.allowRate(w, r) {
		return
	}

	var req chatTurnRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, 1<<20)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	userMessage := ""
	if n := len(req.Messages); n > 0 && req.Messages[n-1].Role == "user" {
		userMessage = req.Messages[n-1].Content
	}
	if userMessage == "" {
		slog.Warn("chat turn with empty or invalid message history", "sessionID", req.SessionID)
		writeJSON(w, http.StatusOK, chatTurnResponse{SessionID: req.SessionID, Response: replyInvalidMessage})
		return
	}

	sessionID := req.SessionID
	if sessionID == "" {
		sessionID = "chat_" + uuid.NewString()
		slog.Info("new chat session started", "sessionID", sessionID)
	}

	if err := s.store.AppendTurn(sessionID, "user", userMessage); err != nil {
		slog.Error("persist user turn failed", "sessionID", sessionID, "err", err)
	}

	msgs := req.Messages
	if s.historyLimit > 0 && len(msgs) > s.historyLimit {
		msgs = msgs[len(msgs)-s.historyLimit:]
	}
	history := make([]ai.Message, 0, len(msgs))
	for _, m := range msgs {
		history = append(history, ai.Message{Role: m.Role, Content: m.Content})
	}

	reply := s.app.Respond(r.Context(), sessionID, history)
	if reply == app.EndChatSignal {
		reply = replyFarewell
		slog.Info("session ended by user", "sessionID", sessionID)
	}

	if err := s.store.AppendTurn(sessionID, "assistant", reply); err != nil {
		slog.Error("persist assistant turn failed", "sessionID", sessionID, "err", err)
	}

	writeJSON(w, http.StatusOK, chatTurnResponse{SessionID: sessionID, Response: reply})
}

func (s *Server) allowRate(w http.ResponseWriter, r *http.Request) bool {
	if s.limiter == nil {
		return true
	}
	if s.limiter.Allow(util.ClientIP(r)) {
		return true
	}
	w.Header().Set("Retry-After", "60")
	writeError(w, http.StatusTooManyRequests, "too many requests, please slow down")
	return false
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func methodNotAllowed(w http.ResponseWriter) {
	writeError(w, http.StatusMethodNotAllowed, "method not allowed")
}
