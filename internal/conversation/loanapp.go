package conversation

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"regexp"
	"strconv"
	"strings"

	"github.com/sukrithpvs/HSBC/internal/domain"
	"github.com/sukrithpvs/HSBC/internal/nlu"
	"github.com/sukrithpvs/HSBC/internal/store"
)

// Loan application workflow steps.
const (
	stepLoanAmount       = "amount_collection"
	stepLoanPurpose      = "purpose_collection"
	stepLoanConfirmation = "loan_confirmation"
)

const collectedKeyLoanApp = "loan_application"

type loanAppData struct {
	Amount  float64 `json:"loan_amount"`
	Purpose string  `json:"loan_purpose"`
}

func loanAppState(convo *domain.ConversationContext) *loanAppData {
	if data, ok := convo.CollectedData[collectedKeyLoanApp].(*loanAppData); ok {
		return data
	}
	data := &loanAppData{}
	convo.CollectedData[collectedKeyLoanApp] = data
	return data
}

// loanDecision holds the outcome of the approval evaluation.
type loanDecision struct {
	Status         string
	InterestRate   float64
	TermMonths     int
	MonthlyPayment float64
}

// evaluateLoan applies the debt-to-income policy: approve when the implied
// monthly repayment burden stays within 30 percent of income and income is
// at least 3000.
func evaluateLoan(monthlyIncome, amount float64) loanDecision {
	debtRatio := 1.0
	if monthlyIncome > 0 {
		debtRatio = (amount / 12) / monthlyIncome
	}

	if debtRatio > 0.3 || monthlyIncome < 3000 {
		return loanDecision{Status: domain.LoanStatusDeclined}
	}

	const rate = 7.5
	const termMonths = 60
	monthlyRate := rate / 100 / 12
	payment := (amount * monthlyRate) / (1 - math.Pow(1+monthlyRate, -termMonths))

	return loanDecision{
		Status:         domain.LoanStatusApproved,
		InterestRate:   rate,
		TermMonths:     termMonths,
		MonthlyPayment: math.Round(payment*100) / 100,
	}
}

// Digit runs of four or more are read as amounts even inside a sentence.
// Shorter runs stay with the entity extractor, which handles them fine.
var looseAmountPattern = regexp.MustCompile(`\d{4,}(?:\.\d+)?`)

// parseLoanAmount reads an amount from the utterance or, failing that, from
// the resolver's entities. The utterance always wins: the fallback entity
// pattern expects grouped digits and clips ungrouped runs ("15000" becomes
// "150"), so a bare number or a long digit run found in the utterance itself
// is trusted before the entity.
func parseLoanAmount(utterance string, analysis *nlu.Analysis) float64 {
	cleaned := strings.ReplaceAll(strings.TrimSpace(utterance), ",", "")
	cleaned = strings.TrimPrefix(cleaned, "$")
	if amount, err := strconv.ParseFloat(cleaned, 64); err == nil && amount > 0 {
		return amount
	}
	longest := ""
	for _, run := range looseAmountPattern.FindAllString(cleaned, -1) {
		if len(run) > len(longest) {
			longest = run
		}
	}
	if amount, err := strconv.ParseFloat(longest, 64); err == nil && amount > 0 {
		return amount
	}
	if analysis != nil {
		if raw, ok := analysis.Entities["amount"]; ok {
			if amount, err := strconv.ParseFloat(strings.ReplaceAll(raw, ",", ""), 64); err == nil && amount > 0 {
				return amount
			}
		}
	}
	return 0
}

// loanPurposeEntity returns a usable purpose entity, or "".
func loanPurposeEntity(analysis *nlu.Analysis) string {
	if analysis == nil {
		return ""
	}
	purpose := strings.TrimSpace(analysis.Entities["loan_purpose"])
	if len(purpose) < 3 {
		return ""
	}
	return purpose
}

// loanApplicationWorkflow gathers amount and purpose, confirms, then
// records the application and its approval decision.
type loanApplicationWorkflow struct {
	repo     store.Repository
	composer nlu.Composer
	logger   *slog.Logger
}

func (w *loanApplicationWorkflow) Handle(ctx context.Context, convo *domain.ConversationContext, utterance string, analysis *nlu.Analysis) (*Result, error) {
	if convo.State == domain.StateIdle {
		return w.begin(ctx, convo, utterance, analysis)
	}

	switch convo.WorkflowStep {
	case stepLoanAmount:
		return w.collectAmount(ctx, convo, utterance, analysis)
	case stepLoanPurpose:
		return w.collectPurpose(ctx, convo, utterance, analysis)
	case stepLoanConfirmation:
		return w.confirmAndSubmit(ctx, convo, utterance)
	default:
		convo.ResetWorkflow()
		return w.begin(ctx, convo, utterance, analysis)
	}
}

func (w *loanApplicationWorkflow) begin(ctx context.Context, convo *domain.ConversationContext, utterance string, analysis *nlu.Analysis) (*Result, error) {
	data := loanAppState(convo)
	convo.State = domain.StateCollectingInfo

	// An amount already present in the opening utterance or its entities
	// skips the collection step.
	if amount := parseLoanAmount(utterance, analysis); amount > 0 {
		data.Amount = amount
		if purpose := loanPurposeEntity(analysis); purpose != "" {
			data.Purpose = purpose
			convo.WorkflowStep = stepLoanConfirmation
			text := w.render(ctx, convo, utterance, nlu.Payload{
				Action: nlu.ActionConfirmLoan,
				Data:   map[string]any{"amount": data.Amount, "purpose": data.Purpose},
			})
			return &Result{Text: text, WorkflowActive: true}, nil
		}
		convo.WorkflowStep = stepLoanPurpose
		text := w.render(ctx, convo, utterance, nlu.Payload{
			Action: nlu.ActionAskLoanPurpose,
			Data:   map[string]any{"amount": data.Amount},
		})
		return &Result{Text: text, WorkflowActive: true}, nil
	}

	convo.WorkflowStep = stepLoanAmount
	text := w.render(ctx, convo, utterance, nlu.Payload{Action: nlu.ActionAskLoanAmount})
	return &Result{Text: text, WorkflowActive: true}, nil
}

func (w *loanApplicationWorkflow) collectAmount(ctx context.Context, convo *domain.ConversationContext, utterance string, analysis *nlu.Analysis) (*Result, error) {
	amount := parseLoanAmount(utterance, analysis)
	if amount <= 0 {
		text := w.render(ctx, convo, utterance, nlu.Payload{Action: nlu.ActionInvalidLoanAmount})
		return &Result{Text: text, WorkflowActive: true, ClarificationNeeded: true}, nil
	}

	data := loanAppState(convo)
	data.Amount = amount
	convo.WorkflowStep = stepLoanPurpose

	text := w.render(ctx, convo, utterance, nlu.Payload{
		Action: nlu.ActionAskLoanPurpose,
		Data:   map[string]any{"amount": amount},
	})
	return &Result{Text: text, WorkflowActive: true}, nil
}

func (w *loanApplicationWorkflow) collectPurpose(ctx context.Context, convo *domain.ConversationContext, utterance string, _ *nlu.Analysis) (*Result, error) {
	purpose := strings.TrimSpace(utterance)
	if len(purpose) < 3 {
		text := w.render(ctx, convo, utterance, nlu.Payload{Action: nlu.ActionLoanPurposeTooShort})
		return &Result{Text: text, WorkflowActive: true, ClarificationNeeded: true}, nil
	}

	data := loanAppState(convo)
	data.Purpose = purpose
	convo.WorkflowStep = stepLoanConfirmation

	text := w.render(ctx, convo, utterance, nlu.Payload{
		Action: nlu.ActionConfirmLoan,
		Data:   map[string]any{"amount": data.Amount, "purpose": purpose},
	})
	return &Result{Text: text, WorkflowActive: true}, nil
}

func (w *loanApplicationWorkflow) confirmAndSubmit(ctx context.Context, convo *domain.ConversationContext, utterance string) (*Result, error) {
	convo.State = domain.StateCompleted

	if !containsAnyWord(strings.ToLower(utterance), "yes", "confirm", "submit", "okay", "ok", "1") {
		text := w.render(ctx, convo, utterance, nlu.Payload{Action: nlu.ActionLoanCancelled})
		return &Result{Text: text, Completed: true}, nil
	}

	data := loanAppState(convo)

	user, err := w.repo.GetUser(ctx, convo.UserID)
	if err != nil {
		return nil, fmt.Errorf("load user %s: %w", convo.UserID, err)
	}

	app := &domain.LoanApplication{
		UserID:   convo.UserID,
		LoanType: "personal",
		Amount:   data.Amount,
		Purpose:  data.Purpose,
	}
	appID, err := w.repo.CreateLoanApplication(ctx, app)
	if err != nil {
		return nil, fmt.Errorf("create loan application: %w", err)
	}

	decision := evaluateLoan(user.MonthlyIncome, data.Amount)
	if err := w.repo.UpdateLoanDecision(ctx, appID, decision.Status,
		decision.InterestRate, decision.TermMonths, decision.MonthlyPayment); err != nil {
		return nil, fmt.Errorf("record loan decision: %w", err)
	}

	w.logger.Info("loan application decided",
		"session_id", convo.SessionID,
		"application_id", appID,
		"amount", data.Amount,
		"status", decision.Status,
	)

	decided := domain.LoanApplication{
		ApplicationID:  appID,
		UserID:         convo.UserID,
		LoanType:       "personal",
		Amount:         data.Amount,
		Purpose:        data.Purpose,
		Status:         decision.Status,
		InterestRate:   decision.InterestRate,
		TermMonths:     decision.TermMonths,
		MonthlyPayment: decision.MonthlyPayment,
	}
	text := w.render(ctx, convo, utterance, nlu.Payload{
		Action: nlu.ActionLoanDecision,
		Data:   map[string]any{"application": decided},
	})
	return &Result{Text: text, Completed: true}, nil
}

func (w *loanApplicationWorkflow) render(ctx context.Context, convo *domain.ConversationContext, utterance string, payload nlu.Payload) string {
	text, err := w.composer.Compose(ctx, utterance, convo, payload)
	if err != nil || text == "" {
		return fallbackApology
	}
	return text
}
