package domain

import (
	"time"
)

// Turn is a single utterance in the conversation history.
type Turn struct {
	Role      string    `json:"role"`
	Message   string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
}

// InterruptionFrame captures a task that was suspended by a context switch.
// Frames are pushed when the user changes topic mid-task and are retained
// as an audit trail; nothing pops them automatically.
type InterruptionFrame struct {
	Intent        Intent            `json:"intent"`
	State         ConversationState `json:"state"`
	CollectedData map[string]any    `json:"collected_data"`
	WorkflowStep  string            `json:"workflow_step"`
	Timestamp     time.Time         `json:"timestamp"`
}

// ConversationContext is the per-session conversation state. It is owned by
// the context store and mutated only by the router and its handlers, under
// the session's turn lock.
type ConversationContext struct {
	SessionID string
	UserID    string

	CurrentIntent Intent // empty until the first turn resolves
	State         ConversationState
	WorkflowStep  string

	// CollectedData is workflow scratch space. Multi-step handlers keep a
	// typed struct under their own key; the map itself is reset on every
	// context switch.
	CollectedData map[string]any

	History           []Turn
	InterruptionStack []InterruptionFrame

	Confidence    float64
	LastReasoning string
}

// NewConversationContext creates a fresh context in the idle state.
func NewConversationContext(sessionID, userID string) *ConversationContext {
	return &ConversationContext{
		SessionID:     sessionID,
		UserID:        userID,
		State:         StateIdle,
		CollectedData: make(map[string]any),
	}
}

// AppendTurn records an utterance in the conversation history. The history
// is append-only; callers that display it may cap what they show.
func (c *ConversationContext) AppendTurn(role, message string) {
	c.History = append(c.History, Turn{
		Role:      role,
		Message:   message,
		Timestamp: time.Now(),
	})
}

// RecentTurns returns the last n history turns.
func (c *ConversationContext) RecentTurns(n int) []Turn {
	if n >= len(c.History) {
		return c.History
	}
	return c.History[len(c.History)-n:]
}

// PushInterruption saves the currently active task onto the interruption
// stack. The collected data is snapshotted so the frame is immune to the
// reset that follows.
func (c *ConversationContext) PushInterruption() {
	snapshot := make(map[string]any, len(c.CollectedData))
	for k, v := range c.CollectedData {
		snapshot[k] = v
	}
	c.InterruptionStack = append(c.InterruptionStack, InterruptionFrame{
		Intent:        c.CurrentIntent,
		State:         c.State,
		CollectedData: snapshot,
		WorkflowStep:  c.WorkflowStep,
		Timestamp:     time.Now(),
	})
}

// ResetWorkflow clears all task-scoped state, returning the session to idle.
func (c *ConversationContext) ResetWorkflow() {
	c.CollectedData = make(map[string]any)
	c.State = StateIdle
	c.WorkflowStep = ""
}
