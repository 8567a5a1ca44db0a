package ws

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"

	"github.com/coder/websocket"
	"github.com/google/uuid"

	"github.com/sukrithpvs/HSBC/internal/conversation"
)

// defaultUserID identifies the demo banking customer used when the client
// does not name a user.
const defaultUserID = "user_demo1"

// Handler upgrades chat connections and runs the per-connection read loop.
type Handler struct {
	engine        *conversation.Engine
	cm            *ConnManager
	allowedOrigin string
	isDev         bool
}

// NewHandler creates a new WebSocket chat handler.
func NewHandler(engine *conversation.Engine, cm *ConnManager, allowedOrigin string, isDev bool) *Handler {
	return &Handler{
		engine:        engine,
		cm:            cm,
		allowedOrigin: allowedOrigin,
		isDev:         isDev,
	}
}

// clientMessage is what the browser sends for each turn.
type clientMessage struct {
	Message   string `json:"message"`
	UserID    string `json:"user_id,omitempty"`
	SessionID string `json:"session_id,omitempty"`
}

// ServeHTTP implements http.Handler for WebSocket upgrade. Each connection
// carries one chat session; the session ID is fixed at connect time and
// echoed in the welcome message.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if !h.checkOrigin(r) {
		http.Error(w, "origin not allowed", http.StatusForbidden)
		return
	}

	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: []string{"*"},
	})
	if err != nil {
		slog.Error("Failed to accept WebSocket", "error", err, "ip", r.RemoteAddr)
		return
	}
	defer func() {
		if closeErr := conn.Close(websocket.StatusNormalClosure, "chat ended"); closeErr != nil {
			slog.Debug("Failed to close websocket", "error", closeErr)
		}
	}()

	userID := r.URL.Query().Get("user_id")
	if userID == "" {
		userID = defaultUserID
	}
	sessionID := r.URL.Query().Get("session_id")
	if sessionID == "" {
		sessionID = "session_" + uuid.NewString()[:8]
	}

	h.cm.Register(sessionID, conn)
	defer h.cm.Unregister(sessionID, conn)

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	welcome := map[string]string{
		"type":       "connected",
		"session_id": sessionID,
		"user_id":    userID,
		"message":    "Hello! I am your banking assistant. How can I help you today?",
	}
	if err := h.writeJSON(ctx, conn, welcome); err != nil {
		slog.Warn("Failed to send welcome message", "error", err, "session_id", sessionID)
		return
	}

	h.readLoop(ctx, conn, userID, sessionID)
	slog.Info("Chat session ended", "session_id", sessionID)
}

func (h *Handler) checkOrigin(r *http.Request) bool {
	if h.isDev {
		return true
	}
	origin := r.Header.Get("Origin")
	if origin == "" || h.allowedOrigin == "*" {
		return true
	}
	if origin == h.allowedOrigin {
		return true
	}
	slog.Warn("WebSocket origin rejected", "origin", origin, "allowed", h.allowedOrigin)
	return false
}

func (h *Handler) readLoop(ctx context.Context, conn *websocket.Conn, userID, sessionID string) {
	for {
		_, raw, err := conn.Read(ctx)
		if err != nil {
			if websocket.CloseStatus(err) != -1 {
				slog.Debug("WebSocket closed by client", "session_id", sessionID)
			} else {
				slog.Warn("WebSocket read error", "error", err, "session_id", sessionID)
			}
			return
		}

		var msg clientMessage
		if err := json.Unmarshal(raw, &msg); err != nil {
			// Treat raw text as the utterance itself.
			msg.Message = string(raw)
		}
		msg.Message = strings.TrimSpace(msg.Message)
		if msg.Message == "" {
			continue
		}

		turnUser := userID
		if msg.UserID != "" {
			turnUser = msg.UserID
		}
		turnSession := sessionID
		if msg.SessionID != "" {
			turnSession = msg.SessionID
		}

		result := h.engine.ProcessTurn(ctx, turnUser, msg.Message, turnSession)
		if err := h.writeJSON(ctx, conn, result); err != nil {
			slog.Warn("Failed to push turn result", "error", err, "session_id", sessionID)
			return
		}
	}
}

func (h *Handler) writeJSON(ctx context.Context, conn *websocket.Conn, v interface{}) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return conn.Write(ctx, websocket.MessageText, data)
}
