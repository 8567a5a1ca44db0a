// Package api provides the HTTP handlers for the banking assistant.
package api

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/sukrithpvs/HSBC/internal/conversation"
	"github.com/sukrithpvs/HSBC/internal/store"
)

// defaultUserID identifies the demo banking customer used when a chat
// request does not name a user.
const defaultUserID = "user_demo1"

// Handler serves the chat and session endpoints.
type Handler struct {
	repo      store.Repository
	engine    *conversation.Engine
	aiEnabled bool
	startedAt time.Time
}

// NewHandler creates a Handler over the repository and conversation engine.
func NewHandler(repo store.Repository, engine *conversation.Engine, aiEnabled bool) *Handler {
	return &Handler{
		repo:      repo,
		engine:    engine,
		aiEnabled: aiEnabled,
		startedAt: time.Now(),
	}
}

// JSON writes a JSON response with the given status code.
func JSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, `{"error": "failed to encode response"}`, http.StatusInternalServerError)
	}
}

// Error writes a JSON error response.
func Error(w http.ResponseWriter, status int, message string) {
	JSON(w, status, map[string]string{"error": message})
}

// RegisterRoutes mounts all HTTP endpoints on the router.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/", h.ServiceInfo)
	r.Get("/api/v1/health", h.Health)
	r.Post("/api/v1/chat", h.Chat)
	r.Get("/api/v1/sessions/{sessionID}", h.GetSession)
	r.Delete("/api/v1/sessions/{sessionID}", h.ResetSession)
}

// chatRequest is the body of POST /api/v1/chat.
type chatRequest struct {
	Message   string `json:"message"`
	UserID    string `json:"user_id,omitempty"`
	SessionID string `json:"session_id,omitempty"`
}

// Chat processes one conversational turn. A missing session ID starts a new
// session; the generated ID is returned in the response for subsequent turns.
func (h *Handler) Chat(w http.ResponseWriter, r *http.Request) {
	var req chatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		Error(w, http.StatusBadRequest, "invalid request body")
		return
	}

	req.Message = strings.TrimSpace(req.Message)
	if req.Message == "" {
		Error(w, http.StatusBadRequest, "message cannot be empty")
		return
	}

	if req.UserID == "" {
		req.UserID = defaultUserID
	}
	if req.SessionID == "" {
		req.SessionID = "session_" + uuid.NewString()[:8]
	}

	result := h.engine.ProcessTurn(r.Context(), req.UserID, req.Message, req.SessionID)
	JSON(w, http.StatusOK, result)
}

// GetSession returns a point-in-time view of a session's conversation state.
func (h *Handler) GetSession(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")

	snapshot := h.engine.Contexts().Snapshot(sessionID)
	if snapshot == nil {
		Error(w, http.StatusNotFound, "session not found")
		return
	}
	JSON(w, http.StatusOK, snapshot)
}

// ResetSession discards a session's conversation state.
func (h *Handler) ResetSession(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")

	if !h.engine.Contexts().Reset(sessionID) {
		Error(w, http.StatusNotFound, "session not found")
		return
	}
	JSON(w, http.StatusOK, map[string]string{
		"session_id": sessionID,
		"status":     "reset",
	})
}

// Health reports service liveness including database reachability.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	status := "healthy"
	dbStatus := "connected"
	code := http.StatusOK

	if err := h.repo.Ping(r.Context()); err != nil {
		status = "degraded"
		dbStatus = "unreachable"
		code = http.StatusServiceUnavailable
	}

	JSON(w, code, map[string]interface{}{
		"status":          status,
		"database":        dbStatus,
		"ai_enabled":      h.aiEnabled,
		"active_sessions": h.engine.Contexts().Len(),
		"uptime_seconds":  int(time.Since(h.startedAt).Seconds()),
		"timestamp":       time.Now().UTC().Format(time.RFC3339),
	})
}

// ServiceInfo describes the API surface at the root path.
func (h *Handler) ServiceInfo(w http.ResponseWriter, _ *http.Request) {
	JSON(w, http.StatusOK, map[string]interface{}{
		"service": "banking-assistant",
		"version": "1.0.0",
		"endpoints": map[string]string{
			"chat":          "POST /api/v1/chat",
			"session":       "GET /api/v1/sessions/{sessionID}",
			"session_reset": "DELETE /api/v1/sessions/{sessionID}",
			"health":        "GET /api/v1/health",
			"websocket":     "GET /ws/chat",
		},
	})
}
