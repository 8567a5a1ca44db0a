package conversation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/sukrithpvs/HSBC/internal/domain"
	"github.com/sukrithpvs/HSBC/internal/nlu"
	"github.com/sukrithpvs/HSBC/internal/store"
)

// Card-blocking workflow steps, in order.
const (
	stepCardSelection     = "card_selection"
	stepDOBVerification   = "dob_verification"
	stepReasonCollection  = "reason_collection"
	stepFinalConfirmation = "final_confirmation"
)

const collectedKeyCardBlock = "card_blocking"

// cardBlockData is the typed scratch state for the card-blocking workflow,
// kept under its own key in the context's collected data.
type cardBlockData struct {
	Cards       []domain.Card `json:"candidate_cards"`
	Selected    *domain.Card  `json:"selected_card,omitempty"`
	BlockReason string        `json:"block_reason,omitempty"`
	DOBAttempts int           `json:"wrong_dob_attempts"`
}

func cardBlockState(convo *domain.ConversationContext) *cardBlockData {
	if data, ok := convo.CollectedData[collectedKeyCardBlock].(*cardBlockData); ok {
		return data
	}
	data := &cardBlockData{}
	convo.CollectedData[collectedKeyCardBlock] = data
	return data
}

var affirmativeTokens = []string{"yes", "confirm", "block", "okay", "ok", "1"}

func isAffirmative(utterance string) bool {
	return containsAnyWord(strings.ToLower(utterance), affirmativeTokens...)
}

func containsAnyWord(s string, words ...string) bool {
	for _, w := range words {
		if strings.Contains(s, w) {
			return true
		}
	}
	return false
}

// cardBlockWorkflow is the canonical deep multi-step handler: card
// selection, identity verification, reason capture, confirmation, verified
// block, post-block verification.
type cardBlockWorkflow struct {
	repo     store.Repository
	composer nlu.Composer
	logger   *slog.Logger
}

func (w *cardBlockWorkflow) Handle(ctx context.Context, convo *domain.ConversationContext, utterance string, _ *nlu.Analysis) (*Result, error) {
	if convo.State == domain.StateIdle {
		return w.begin(ctx, convo, utterance)
	}

	switch convo.WorkflowStep {
	case stepCardSelection:
		return w.selectCard(ctx, convo, utterance)
	case stepDOBVerification:
		return w.verifyDOB(ctx, convo, utterance)
	case stepReasonCollection:
		return w.collectReason(ctx, convo, utterance)
	case stepFinalConfirmation:
		return w.confirmAndBlock(ctx, convo, utterance)
	default:
		// Unknown step for this intent: restart the workflow cleanly.
		convo.ResetWorkflow()
		return w.begin(ctx, convo, utterance)
	}
}

// begin loads the user's active cards and asks which one to block. The card
// list is read fresh from the store, never from context-held copies.
func (w *cardBlockWorkflow) begin(ctx context.Context, convo *domain.ConversationContext, utterance string) (*Result, error) {
	cards, err := w.repo.GetUserCards(ctx, convo.UserID)
	if err != nil {
		return nil, fmt.Errorf("load cards for %s: %w", convo.UserID, err)
	}

	var active []domain.Card
	for _, c := range cards {
		if c.IsActive() {
			active = append(active, c)
		}
	}

	if len(active) == 0 {
		convo.State = domain.StateCompleted
		text := w.render(ctx, convo, utterance, nlu.Payload{Action: nlu.ActionNoActiveCards})
		return &Result{Text: text, Completed: true}, nil
	}

	data := cardBlockState(convo)
	data.Cards = active
	convo.State = domain.StateCollectingInfo
	convo.WorkflowStep = stepCardSelection

	text := w.render(ctx, convo, utterance, nlu.Payload{
		Action: nlu.ActionSelectCardToBlock,
		Data:   map[string]any{"cards": active},
	})
	return &Result{Text: text, WorkflowActive: true}, nil
}

var nonDigits = regexp.MustCompile(`\D`)

// matchCard resolves a candidate card from a 1-based index, the last four
// digits of the card number, or an affirmative when only one candidate
// exists.
func matchCard(utterance string, cards []domain.Card) *domain.Card {
	trimmed := strings.TrimSpace(utterance)

	if idx, err := strconv.Atoi(trimmed); err == nil {
		if idx >= 1 && idx <= len(cards) {
			return &cards[idx-1]
		}
		return nil
	}

	digits := nonDigits.ReplaceAllString(trimmed, "")
	if len(digits) >= 4 {
		last4 := digits[len(digits)-4:]
		for i := range cards {
			if cards[i].LastFour() == last4 {
				return &cards[i]
			}
		}
		return nil
	}

	lower := strings.ToLower(trimmed)
	if (strings.Contains(lower, "yes") || strings.Contains(lower, "confirm")) && len(cards) == 1 {
		return &cards[0]
	}

	return nil
}

func (w *cardBlockWorkflow) selectCard(ctx context.Context, convo *domain.ConversationContext, utterance string) (*Result, error) {
	data := cardBlockState(convo)

	selected := matchCard(utterance, data.Cards)
	if selected == nil {
		text := w.render(ctx, convo, utterance, nlu.Payload{
			Action: nlu.ActionInvalidCardSelection,
			Data:   map[string]any{"cards": data.Cards},
		})
		return &Result{Text: text, WorkflowActive: true, ClarificationNeeded: true}, nil
	}

	data.Selected = selected
	convo.WorkflowStep = stepDOBVerification

	text := w.render(ctx, convo, utterance, nlu.Payload{
		Action: nlu.ActionAskDOBVerification,
		Data:   map[string]any{"card": *selected},
	})
	return &Result{Text: text, WorkflowActive: true}, nil
}

// normalizeDOB converts slash-delimited DD/MM/YYYY input to YYYY-MM-DD.
func normalizeDOB(s string) string {
	s = strings.TrimSpace(s)
	if !strings.Contains(s, "/") {
		return s
	}
	parts := strings.Split(s, "/")
	if len(parts) != 3 || len(parts[2]) != 4 {
		return s
	}
	day := parts[0]
	month := parts[1]
	if len(day) == 1 {
		day = "0" + day
	}
	if len(month) == 1 {
		month = "0" + month
	}
	return parts[2] + "-" + month + "-" + day
}

// verifyDOB checks the entered date of birth against the stored record.
// One retry is permitted; a second mismatch ends the workflow as a security
// decline with no block performed.
func (w *cardBlockWorkflow) verifyDOB(ctx context.Context, convo *domain.ConversationContext, utterance string) (*Result, error) {
	user, err := w.repo.GetUser(ctx, convo.UserID)
	if err != nil {
		return nil, fmt.Errorf("load user %s: %w", convo.UserID, err)
	}

	if normalizeDOB(utterance) == user.DateOfBirth {
		convo.WorkflowStep = stepReasonCollection
		text := w.render(ctx, convo, utterance, nlu.Payload{Action: nlu.ActionAskBlockReason})
		return &Result{Text: text, WorkflowActive: true}, nil
	}

	data := cardBlockState(convo)
	if data.DOBAttempts == 0 {
		data.DOBAttempts = 1
		text := w.render(ctx, convo, utterance, nlu.Payload{Action: nlu.ActionWrongDOBRetry})
		return &Result{Text: text, WorkflowActive: true, ClarificationNeeded: true}, nil
	}

	// Second consecutive mismatch: security decline, not a system error.
	convo.State = domain.StateCompleted
	w.logger.Warn("identity verification failed, card block aborted",
		"session_id", convo.SessionID, "user_id", convo.UserID)
	text := w.render(ctx, convo, utterance, nlu.Payload{Action: nlu.ActionSecurityFailed})
	return &Result{Text: text, Completed: true}, nil
}

func (w *cardBlockWorkflow) collectReason(ctx context.Context, convo *domain.ConversationContext, utterance string) (*Result, error) {
	reason := strings.TrimSpace(utterance)
	if len(reason) < 2 {
		text := w.render(ctx, convo, utterance, nlu.Payload{Action: nlu.ActionReasonTooShort})
		return &Result{Text: text, WorkflowActive: true, ClarificationNeeded: true}, nil
	}

	data := cardBlockState(convo)
	data.BlockReason = reason
	convo.WorkflowStep = stepFinalConfirmation

	text := w.render(ctx, convo, utterance, nlu.Payload{
		Action: nlu.ActionConfirmBlock,
		Data:   map[string]any{"card": *data.Selected, "reason": reason},
	})
	return &Result{Text: text, WorkflowActive: true}, nil
}

// confirmAndBlock executes the verified write on an affirmative answer. The
// store verifies the write with a post-commit re-read; on top of that the
// handler independently re-fetches the card list and only reports success
// if that fresh record also shows blocked. Divergence at either layer is a
// failure, never a success.
func (w *cardBlockWorkflow) confirmAndBlock(ctx context.Context, convo *domain.ConversationContext, utterance string) (*Result, error) {
	data := cardBlockState(convo)
	convo.State = domain.StateCompleted

	if !isAffirmative(utterance) {
		text := w.render(ctx, convo, utterance, nlu.Payload{Action: nlu.ActionBlockCancelled})
		return &Result{Text: text, Completed: true}, nil
	}

	selected := data.Selected
	reason := fmt.Sprintf("%s - Blocked via assistant at %s",
		data.BlockReason, time.Now().Format("2006-01-02 15:04:05"))

	blockResult, err := w.repo.BlockCard(ctx, selected.CardID, reason)
	if err != nil {
		var action string
		switch {
		case errors.Is(err, store.ErrCardAlreadyBlocked):
			action = nlu.ActionBlockAlreadyBlocked
		case errors.Is(err, store.ErrBlockVerificationFailed):
			action = nlu.ActionBlockVerifyFailed
		default:
			action = nlu.ActionBlockFailed
		}
		w.logger.Error("card block failed",
			"session_id", convo.SessionID, "card_id", selected.CardID, "error", err)
		text := w.render(ctx, convo, utterance, nlu.Payload{
			Action: action,
			Data:   map[string]any{"card": *selected, "error": err.Error()},
		})
		return &Result{Text: text, Completed: true, Error: true}, nil
	}

	// Drop the cached candidate list before the independent re-fetch so
	// nothing stale can satisfy the check.
	data.Cards = nil

	fresh, err := w.repo.GetUserCards(ctx, convo.UserID)
	if err != nil {
		w.logger.Error("post-block card re-fetch failed",
			"session_id", convo.SessionID, "card_id", selected.CardID, "error", err)
		text := w.render(ctx, convo, utterance, nlu.Payload{
			Action: nlu.ActionBlockVerifyFailed,
			Data:   map[string]any{"card": *selected},
		})
		return &Result{Text: text, Completed: true, Error: true}, nil
	}

	var blocked *domain.Card
	for i := range fresh {
		if fresh[i].CardID == selected.CardID {
			blocked = &fresh[i]
			break
		}
	}

	if blocked == nil || blocked.Status != domain.CardStatusBlocked {
		w.logger.Error("card status did not read back as blocked",
			"session_id", convo.SessionID, "card_id", selected.CardID)
		text := w.render(ctx, convo, utterance, nlu.Payload{
			Action: nlu.ActionBlockVerifyFailed,
			Data:   map[string]any{"card": *selected},
		})
		return &Result{Text: text, Completed: true, Error: true}, nil
	}

	w.logger.Info("card blocked",
		"session_id", convo.SessionID,
		"card_id", selected.CardID,
		"blocked_at", blockResult.BlockedAt,
	)
	text := w.render(ctx, convo, utterance, nlu.Payload{
		Action: nlu.ActionBlockSuccess,
		Data:   map[string]any{"card": *blocked, "result": blockResult},
	})
	return &Result{Text: text, Completed: true}, nil
}

func (w *cardBlockWorkflow) render(ctx context.Context, convo *domain.ConversationContext, utterance string, payload nlu.Payload) string {
	text, err := w.composer.Compose(ctx, utterance, convo, payload)
	if err != nil || text == "" {
		return fallbackApology
	}
	return text
}
