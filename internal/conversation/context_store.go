// Package conversation implements the session-scoped conversation core: the
// context registry, the intent-routing state machine and the workflow
// handlers.
package conversation

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/sukrithpvs/HSBC/internal/domain"
)

// session pairs a conversation context with its turn lock. Turns for the
// same session are serialized on mu; turns for different sessions run in
// parallel.
type session struct {
	mu         sync.Mutex
	convo      *domain.ConversationContext
	lastActive time.Time
}

// ContextStore is the concurrency-safe keyed registry of per-session
// conversation state. Sessions live from first turn until explicit reset or
// idle eviction by the sweeper.
type ContextStore struct {
	mu       sync.RWMutex
	sessions map[string]*session
}

// NewContextStore creates an empty context store.
func NewContextStore() *ContextStore {
	return &ContextStore{sessions: make(map[string]*session)}
}

// Acquire returns the session's conversation context with its turn lock
// held, creating the session on first use. The caller must invoke release
// when the turn is finished. Creation is idempotent per session ID.
func (s *ContextStore) Acquire(sessionID, userID string) (convo *domain.ConversationContext, release func()) {
	for {
		s.mu.Lock()
		sess, ok := s.sessions[sessionID]
		if !ok {
			sess = &session{convo: domain.NewConversationContext(sessionID, userID)}
			s.sessions[sessionID] = sess
		}
		s.mu.Unlock()

		sess.mu.Lock()
		sess.lastActive = time.Now()

		// The sweeper may have evicted this session between the map read
		// and the lock. Retry with a fresh entry so the turn never runs on
		// an orphaned context.
		s.mu.RLock()
		current := s.sessions[sessionID] == sess
		s.mu.RUnlock()
		if current {
			return sess.convo, sess.mu.Unlock
		}
		sess.mu.Unlock()
	}
}

// Snapshot returns a copy of the session's context for inspection, or nil
// if the session does not exist. The copy is taken under the turn lock so
// it never observes a half-applied turn.
func (s *ContextStore) Snapshot(sessionID string) *SessionSnapshot {
	s.mu.RLock()
	sess, ok := s.sessions[sessionID]
	s.mu.RUnlock()
	if !ok {
		return nil
	}

	sess.mu.Lock()
	defer sess.mu.Unlock()

	convo := sess.convo
	collected := make(map[string]any, len(convo.CollectedData))
	for k, v := range convo.CollectedData {
		collected[k] = v
	}
	stack := make([]domain.InterruptionFrame, len(convo.InterruptionStack))
	copy(stack, convo.InterruptionStack)

	return &SessionSnapshot{
		SessionID:          convo.SessionID,
		UserID:             convo.UserID,
		CurrentIntent:      convo.CurrentIntent,
		State:              convo.State,
		WorkflowStep:       convo.WorkflowStep,
		CollectedData:      collected,
		ConversationLength: len(convo.History),
		InterruptionStack:  stack,
		Confidence:         convo.Confidence,
	}
}

// SessionSnapshot is a point-in-time view of a session for monitoring.
type SessionSnapshot struct {
	SessionID          string                     `json:"session_id"`
	UserID             string                     `json:"user_id"`
	CurrentIntent      domain.Intent              `json:"current_intent,omitempty"`
	State              domain.ConversationState   `json:"conversation_state"`
	WorkflowStep       string                     `json:"workflow_step,omitempty"`
	CollectedData      map[string]any             `json:"collected_data"`
	ConversationLength int                        `json:"conversation_length"`
	InterruptionStack  []domain.InterruptionFrame `json:"interruption_stack"`
	Confidence         float64                    `json:"ai_confidence"`
}

// Reset removes a session and reports whether it existed.
func (s *ContextStore) Reset(sessionID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.sessions[sessionID]; !ok {
		return false
	}
	delete(s.sessions, sessionID)
	return true
}

// Len returns the number of live sessions.
func (s *ContextStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}

// evictIdle removes sessions with no activity for at least idleTTL and
// returns how many were evicted. A session whose turn lock is currently
// held is skipped and picked up on a later sweep.
func (s *ContextStore) evictIdle(idleTTL time.Duration) int {
	threshold := time.Now().Add(-idleTTL)

	s.mu.Lock()
	defer s.mu.Unlock()

	evicted := 0
	for id, sess := range s.sessions {
		if !sess.mu.TryLock() {
			continue
		}
		idle := sess.lastActive.Before(threshold)
		sess.mu.Unlock()
		if idle {
			delete(s.sessions, id)
			evicted++
		}
	}
	return evicted
}

// StartSweeper runs a background goroutine that periodically evicts idle
// sessions until ctx is cancelled.
func (s *ContextStore) StartSweeper(ctx context.Context, idleTTL, interval time.Duration) {
	ticker := time.NewTicker(interval)
	go func() {
		defer ticker.Stop()
		slog.Info("Session sweeper started", "idle_ttl", idleTTL, "interval", interval)

		for {
			select {
			case <-ticker.C:
				if evicted := s.evictIdle(idleTTL); evicted > 0 {
					slog.Info("Evicted idle sessions", "count", evicted, "remaining", s.Len())
				}
			case <-ctx.Done():
				slog.Info("Session sweeper shutting down", "reason", ctx.Err())
				return
			}
		}
	}()
}
