package conversation

import (
	"context"
	"fmt"
	"strings"

	"github.com/sukrithpvs/HSBC/internal/domain"
	"github.com/sukrithpvs/HSBC/internal/nlu"
	"github.com/sukrithpvs/HSBC/internal/store"
)

// Single-turn handlers. Each re-reads the entity store for authoritative
// data, renders one response and concludes the task.

func (e *Engine) handleCardInquiry(ctx context.Context, convo *domain.ConversationContext, utterance string, _ *nlu.Analysis) (*Result, error) {
	cards, err := e.repo.GetUserCards(ctx, convo.UserID)
	if err != nil {
		return nil, fmt.Errorf("load cards: %w", err)
	}
	convo.State = domain.StateCompleted
	text := e.compose(ctx, convo, utterance, nlu.Payload{
		Action: nlu.ActionShowCards,
		Data:   map[string]any{"cards": cards},
	})
	return &Result{Text: text, Completed: true}, nil
}

func (e *Engine) handleBalanceInquiry(ctx context.Context, convo *domain.ConversationContext, utterance string, _ *nlu.Analysis) (*Result, error) {
	accounts, err := e.repo.GetUserAccounts(ctx, convo.UserID)
	if err != nil {
		return nil, fmt.Errorf("load accounts: %w", err)
	}
	convo.State = domain.StateCompleted
	text := e.compose(ctx, convo, utterance, nlu.Payload{
		Action: nlu.ActionShowBalance,
		Data:   map[string]any{"accounts": accounts},
	})
	return &Result{Text: text, Completed: true}, nil
}

func (e *Engine) handleTransactionHistory(ctx context.Context, convo *domain.ConversationContext, utterance string, _ *nlu.Analysis) (*Result, error) {
	accounts, err := e.repo.GetUserAccounts(ctx, convo.UserID)
	if err != nil {
		return nil, fmt.Errorf("load accounts: %w", err)
	}

	var txns []domain.Transaction
	if len(accounts) > 0 {
		txns, err = e.repo.GetAccountTransactions(ctx, accounts[0].AccountID, 5)
		if err != nil {
			return nil, fmt.Errorf("load transactions: %w", err)
		}
	}

	convo.State = domain.StateCompleted
	text := e.compose(ctx, convo, utterance, nlu.Payload{
		Action: nlu.ActionShowTransactions,
		Data:   map[string]any{"accounts": accounts, "transactions": txns},
	})
	return &Result{Text: text, Completed: true}, nil
}

func (e *Engine) handleLoanInquiry(ctx context.Context, convo *domain.ConversationContext, utterance string, _ *nlu.Analysis) (*Result, error) {
	loans, err := e.repo.GetUserLoanApplications(ctx, convo.UserID)
	if err != nil {
		return nil, fmt.Errorf("load loan applications: %w", err)
	}
	convo.State = domain.StateCompleted
	text := e.compose(ctx, convo, utterance, nlu.Payload{
		Action: nlu.ActionShowLoans,
		Data:   map[string]any{"loans": loans},
	})
	return &Result{Text: text, Completed: true}, nil
}

func (e *Engine) handleGreeting(ctx context.Context, convo *domain.ConversationContext, utterance string, _ *nlu.Analysis) (*Result, error) {
	convo.State = domain.StateCompleted
	text := e.compose(ctx, convo, utterance, nlu.Payload{Action: nlu.ActionGreeting})
	return &Result{Text: text, Completed: true}, nil
}

func (e *Engine) handleGoodbye(ctx context.Context, convo *domain.ConversationContext, utterance string, _ *nlu.Analysis) (*Result, error) {
	convo.State = domain.StateCompleted
	text := e.compose(ctx, convo, utterance, nlu.Payload{Action: nlu.ActionGoodbye})
	return &Result{Text: text, Completed: true}, nil
}

func (e *Engine) handleGeneralInquiry(ctx context.Context, convo *domain.ConversationContext, utterance string, _ *nlu.Analysis) (*Result, error) {
	convo.State = domain.StateCompleted
	text := e.compose(ctx, convo, utterance, nlu.Payload{Action: nlu.ActionGeneralHelp})
	return &Result{Text: text, Completed: true}, nil
}

// Card application workflow: card type, confirmation, issuance.

const (
	stepCardTypeSelection = "card_type_selection"
	stepCardAppConfirm    = "card_application_confirmation"
)

const collectedKeyCardApp = "card_application"

type cardAppData struct {
	CardType string `json:"card_type"`
}

func cardAppState(convo *domain.ConversationContext) *cardAppData {
	if data, ok := convo.CollectedData[collectedKeyCardApp].(*cardAppData); ok {
		return data
	}
	data := &cardAppData{}
	convo.CollectedData[collectedKeyCardApp] = data
	return data
}

type cardApplicationWorkflow struct {
	repo     store.Repository
	composer nlu.Composer
}

func (w *cardApplicationWorkflow) Handle(ctx context.Context, convo *domain.ConversationContext, utterance string, analysis *nlu.Analysis) (*Result, error) {
	if convo.State == domain.StateIdle {
		return w.begin(ctx, convo, utterance, analysis)
	}

	switch convo.WorkflowStep {
	case stepCardTypeSelection:
		return w.selectType(ctx, convo, utterance)
	case stepCardAppConfirm:
		return w.confirmAndCreate(ctx, convo, utterance)
	default:
		convo.ResetWorkflow()
		return w.begin(ctx, convo, utterance, analysis)
	}
}

func parseCardType(s string) string {
	lower := strings.ToLower(s)
	if strings.Contains(lower, "debit") {
		return "debit"
	}
	if strings.Contains(lower, "credit") {
		return "credit"
	}
	return ""
}

func (w *cardApplicationWorkflow) begin(ctx context.Context, convo *domain.ConversationContext, utterance string, analysis *nlu.Analysis) (*Result, error) {
	convo.State = domain.StateCollectingInfo

	cardType := ""
	if analysis != nil {
		cardType = parseCardType(analysis.Entities["card_type"])
	}
	if cardType == "" {
		cardType = parseCardType(utterance)
	}

	if cardType == "" {
		convo.WorkflowStep = stepCardTypeSelection
		text := w.render(ctx, convo, utterance, nlu.Payload{Action: nlu.ActionAskCardType})
		return &Result{Text: text, WorkflowActive: true}, nil
	}

	data := cardAppState(convo)
	data.CardType = cardType
	convo.WorkflowStep = stepCardAppConfirm
	text := w.render(ctx, convo, utterance, nlu.Payload{
		Action: nlu.ActionConfirmCardApplication,
		Data:   map[string]any{"card_type": cardType},
	})
	return &Result{Text: text, WorkflowActive: true}, nil
}

func (w *cardApplicationWorkflow) selectType(ctx context.Context, convo *domain.ConversationContext, utterance string) (*Result, error) {
	cardType := parseCardType(utterance)
	if cardType == "" {
		text := w.render(ctx, convo, utterance, nlu.Payload{Action: nlu.ActionInvalidCardType})
		return &Result{Text: text, WorkflowActive: true, ClarificationNeeded: true}, nil
	}

	data := cardAppState(convo)
	data.CardType = cardType
	convo.WorkflowStep = stepCardAppConfirm
	text := w.render(ctx, convo, utterance, nlu.Payload{
		Action: nlu.ActionConfirmCardApplication,
		Data:   map[string]any{"card_type": cardType},
	})
	return &Result{Text: text, WorkflowActive: true}, nil
}

func (w *cardApplicationWorkflow) confirmAndCreate(ctx context.Context, convo *domain.ConversationContext, utterance string) (*Result, error) {
	convo.State = domain.StateCompleted

	if !isAffirmative(utterance) {
		text := w.render(ctx, convo, utterance, nlu.Payload{Action: nlu.ActionCardApplicationCancel})
		return &Result{Text: text, Completed: true}, nil
	}

	accounts, err := w.repo.GetUserAccounts(ctx, convo.UserID)
	if err != nil {
		return nil, fmt.Errorf("load accounts: %w", err)
	}
	if len(accounts) == 0 {
		text := w.render(ctx, convo, utterance, nlu.Payload{Action: nlu.ActionNoAccounts})
		return &Result{Text: text, Completed: true, Error: true}, nil
	}

	data := cardAppState(convo)
	creditLimit := 0.0
	if data.CardType == "credit" {
		creditLimit = 5000
	}

	cardID, err := w.repo.CreateCard(ctx, convo.UserID, accounts[0].AccountID, data.CardType, creditLimit)
	if err != nil {
		return nil, fmt.Errorf("create card: %w", err)
	}

	text := w.render(ctx, convo, utterance, nlu.Payload{
		Action: nlu.ActionCardCreated,
		Data:   map[string]any{"card_type": data.CardType, "card_id": cardID},
	})
	return &Result{Text: text, Completed: true}, nil
}

func (w *cardApplicationWorkflow) render(ctx context.Context, convo *domain.ConversationContext, utterance string, payload nlu.Payload) string {
	text, err := w.composer.Compose(ctx, utterance, convo, payload)
	if err != nil || text == "" {
		return fallbackApology
	}
	return text
}
