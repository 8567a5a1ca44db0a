package conversation

import (
	"context"
	"log/slog"
	"runtime/debug"
	"time"

	"github.com/sukrithpvs/HSBC/internal/domain"
	"github.com/sukrithpvs/HSBC/internal/nlu"
	"github.com/sukrithpvs/HSBC/internal/store"
)

// Result is a handler's outcome for one turn.
type Result struct {
	Text                string
	WorkflowActive      bool // more turns expected for this task
	Completed           bool // task concluded (success, decline, cancel or failure)
	Error               bool // task concluded abnormally
	ClarificationNeeded bool // last input rejected, same step re-prompted
}

// Handler processes one turn for a specific intent.
type Handler interface {
	Handle(ctx context.Context, convo *domain.ConversationContext, utterance string, analysis *nlu.Analysis) (*Result, error)
}

// HandlerFunc adapts a function to the Handler interface.
type HandlerFunc func(ctx context.Context, convo *domain.ConversationContext, utterance string, analysis *nlu.Analysis) (*Result, error)

// Handle calls f.
func (f HandlerFunc) Handle(ctx context.Context, convo *domain.ConversationContext, utterance string, analysis *nlu.Analysis) (*Result, error) {
	return f(ctx, convo, utterance, analysis)
}

// TurnResult is the outcome of one processed turn, returned to transport.
type TurnResult struct {
	Response            string                   `json:"response"`
	Intent              domain.Intent            `json:"intent,omitempty"`
	WorkflowActive      bool                     `json:"workflow_active"`
	Completed           bool                     `json:"completed"`
	Error               bool                     `json:"error,omitempty"`
	ContextSwitched     bool                     `json:"context_switched"`
	ClarificationNeeded bool                     `json:"clarification_needed"`
	Confidence          float64                  `json:"ai_confidence"`
	CurrentState        domain.ConversationState `json:"current_state"`
	SessionID           string                   `json:"session_id"`
	UserID              string                   `json:"user_id"`
	Timestamp           time.Time                `json:"timestamp"`
}

// Engine is the workflow router. It owns the context-switch state machine
// and dispatches each turn to the handler matching the resolved intent.
type Engine struct {
	contexts *ContextStore
	resolver nlu.Resolver
	composer nlu.Composer
	repo     store.Repository
	handlers map[domain.Intent]Handler
	logger   *slog.Logger
}

// NewEngine wires the router with its dispatch table.
func NewEngine(contexts *ContextStore, resolver nlu.Resolver, composer nlu.Composer, repo store.Repository, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	e := &Engine{
		contexts: contexts,
		resolver: resolver,
		composer: composer,
		repo:     repo,
		logger:   logger,
	}

	cardBlock := &cardBlockWorkflow{repo: repo, composer: composer, logger: logger}
	loanApp := &loanApplicationWorkflow{repo: repo, composer: composer, logger: logger}
	cardApp := &cardApplicationWorkflow{repo: repo, composer: composer}

	e.handlers = map[domain.Intent]Handler{
		domain.IntentCardBlocking:       cardBlock,
		domain.IntentLoanApplication:    loanApp,
		domain.IntentCardApplication:    cardApp,
		domain.IntentLoanInquiry:        HandlerFunc(e.handleLoanInquiry),
		domain.IntentBalanceInquiry:     HandlerFunc(e.handleBalanceInquiry),
		domain.IntentTransactionHistory: HandlerFunc(e.handleTransactionHistory),
		domain.IntentCardInquiry:        HandlerFunc(e.handleCardInquiry),
		domain.IntentGreeting:           HandlerFunc(e.handleGreeting),
		domain.IntentGoodbye:            HandlerFunc(e.handleGoodbye),
		domain.IntentGeneralInquiry:     HandlerFunc(e.handleGeneralInquiry),
	}
	return e
}

// Contexts exposes the context store for transport-level session endpoints.
func (e *Engine) Contexts() *ContextStore {
	return e.contexts
}

// ProcessTurn runs one utterance through resolution, context-switch policy,
// dispatch and history bookkeeping. It never fails: any internal error
// becomes an apologetic completed turn.
func (e *Engine) ProcessTurn(ctx context.Context, userID, message, sessionID string) *TurnResult {
	convo, release := e.contexts.Acquire(sessionID, userID)
	defer release()

	convo.AppendTurn("user", message)

	analysis, err := e.resolver.Resolve(ctx, message, convo)
	if err != nil {
		// The resolver chain is total; this is defensive only.
		e.logger.Error("intent resolution failed with no fallback", "session_id", sessionID, "error", err)
		analysis = &nlu.Analysis{Intent: domain.IntentGeneralInquiry, Entities: map[string]string{}}
	}

	switched := false
	if analysis.ContextSwitch {
		// Suspending a task mid-flight preserves it on the interruption
		// stack; an idle or finished task has nothing worth saving.
		if convo.CurrentIntent != "" &&
			convo.State != domain.StateIdle && convo.State != domain.StateCompleted {
			convo.PushInterruption()
		}
		convo.ResetWorkflow()
		switched = true
	}

	// A finished task never accepts further input; the new message starts a
	// fresh top-level resolution.
	if convo.State == domain.StateCompleted {
		convo.ResetWorkflow()
	}

	convo.CurrentIntent = analysis.Intent
	convo.Confidence = analysis.Confidence
	convo.LastReasoning = analysis.Reasoning

	result := e.dispatch(ctx, convo, message, analysis)

	convo.AppendTurn("assistant", result.Text)

	e.logger.Info("turn processed",
		"session_id", sessionID,
		"user_id", userID,
		"intent", convo.CurrentIntent,
		"state", convo.State,
		"step", convo.WorkflowStep,
		"context_switched", switched,
		"confidence", analysis.Confidence,
	)

	return &TurnResult{
		Response:            result.Text,
		Intent:              convo.CurrentIntent,
		WorkflowActive:      result.WorkflowActive,
		Completed:           result.Completed,
		Error:               result.Error,
		ContextSwitched:     switched,
		ClarificationNeeded: result.ClarificationNeeded,
		Confidence:          convo.Confidence,
		CurrentState:        convo.State,
		SessionID:           sessionID,
		UserID:              userID,
		Timestamp:           time.Now(),
	}
}

// dispatch routes to the intent's handler and converts panics and handler
// errors into an apologetic completed turn. The conversation must never be
// left in an unrecoverable state.
func (e *Engine) dispatch(ctx context.Context, convo *domain.ConversationContext, utterance string, analysis *nlu.Analysis) (result *Result) {
	defer func() {
		if rec := recover(); rec != nil {
			e.logger.Error("handler panic recovered",
				"session_id", convo.SessionID,
				"intent", convo.CurrentIntent,
				"panic", rec,
				"stack", string(debug.Stack()),
			)
			convo.State = domain.StateCompleted
			result = &Result{
				Text:      e.compose(ctx, convo, utterance, nlu.Payload{Action: nlu.ActionError}),
				Completed: true,
				Error:     true,
			}
		}
	}()

	handler, ok := e.handlers[convo.CurrentIntent]
	if !ok {
		handler = HandlerFunc(e.handleGeneralInquiry)
	}

	res, err := handler.Handle(ctx, convo, utterance, analysis)
	if err != nil {
		e.logger.Error("handler failed",
			"session_id", convo.SessionID,
			"intent", convo.CurrentIntent,
			"error", err,
		)
		convo.State = domain.StateCompleted
		return &Result{
			Text: e.compose(ctx, convo, utterance, nlu.Payload{
				Action: nlu.ActionError,
				Data:   map[string]any{"error": err.Error()},
			}),
			Completed: true,
			Error:     true,
		}
	}
	return res
}

// fallbackApology is the fixed template used if even composition fails.
const fallbackApology = "I apologize, but I am having trouble processing your request right now. Could you please try again?"

// compose renders a payload, degrading to the fixed apology template if the
// composer chain itself fails.
func (e *Engine) compose(ctx context.Context, convo *domain.ConversationContext, utterance string, payload nlu.Payload) string {
	text, err := e.composer.Compose(ctx, utterance, convo, payload)
	if err != nil || text == "" {
		e.logger.Warn("response composition failed",
			"session_id", convo.SessionID, "action", payload.Action, "error", err)
		return fallbackApology
	}
	return text
}
