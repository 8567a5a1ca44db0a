package conversation

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/sukrithpvs/HSBC/internal/domain"
	"github.com/sukrithpvs/HSBC/internal/nlu"
	"github.com/sukrithpvs/HSBC/internal/store"
)

// fakeRepo is an in-memory Repository for workflow tests. The knobs simulate
// write failures the handlers must surface rather than mask.
type fakeRepo struct {
	mu           sync.Mutex
	user         domain.User
	cards        []domain.Card
	accounts     []domain.Account
	transactions []domain.Transaction
	loans        []domain.LoanApplication

	blockErr        error // forced BlockCard error
	silentBlockFail bool  // BlockCard claims success but does not write
	blockCalls      int
	loanSeq         int
	cardSeq         int
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{
		user: domain.User{
			UserID:        "user_demo1",
			FullName:      "John Smith",
			MonthlyIncome: 5500,
			DateOfBirth:   "1990-01-01",
		},
		cards: []domain.Card{
			{CardID: "card_001", UserID: "user_demo1", AccountID: "acc_001", CardNumber: "4532-1234-5678-9012", CardType: "debit", Status: domain.CardStatusActive},
			{CardID: "card_002", UserID: "user_demo1", AccountID: "acc_001", CardNumber: "5678-9012-3456-7890", CardType: "credit", Status: domain.CardStatusActive},
		},
		accounts: []domain.Account{
			{AccountID: "acc_001", UserID: "user_demo1", AccountNumber: "ACC-001-2024", AccountType: "checking", Balance: 2500.75},
		},
	}
}

func (f *fakeRepo) GetUser(_ context.Context, userID string) (*domain.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if userID != f.user.UserID {
		return nil, store.ErrUserNotFound
	}
	u := f.user
	return &u, nil
}

func (f *fakeRepo) GetUserCards(_ context.Context, userID string) ([]domain.Card, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []domain.Card
	for _, c := range f.cards {
		if c.UserID == userID {
			out = append(out, c)
		}
	}
	return out, nil
}

func (f *fakeRepo) GetCard(_ context.Context, cardID, userID string) (*domain.Card, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, c := range f.cards {
		if c.CardID == cardID && c.UserID == userID {
			card := c
			return &card, nil
		}
	}
	return nil, store.ErrCardNotFound
}

func (f *fakeRepo) BlockCard(_ context.Context, cardID, reason string) (*domain.BlockCardResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.blockCalls++

	if f.blockErr != nil {
		return nil, f.blockErr
	}

	for i := range f.cards {
		if f.cards[i].CardID != cardID {
			continue
		}
		if f.cards[i].Status == domain.CardStatusBlocked {
			return nil, store.ErrCardAlreadyBlocked
		}
		now := time.Now()
		if !f.silentBlockFail {
			f.cards[i].Status = domain.CardStatusBlocked
			f.cards[i].BlockedAt = &now
			f.cards[i].BlockReason = reason
		}
		return &domain.BlockCardResult{
			Success:   true,
			CardID:    cardID,
			NewStatus: domain.CardStatusBlocked,
			BlockedAt: &now,
		}, nil
	}
	return nil, store.ErrCardNotFound
}

func (f *fakeRepo) CreateCard(_ context.Context, userID, accountID, cardType string, creditLimit float64) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cardSeq++
	id := fmt.Sprintf("card_new%d", f.cardSeq)
	f.cards = append(f.cards, domain.Card{
		CardID:      id,
		UserID:      userID,
		AccountID:   accountID,
		CardNumber:  fmt.Sprintf("4000-0000-0000-%04d", f.cardSeq),
		CardType:    cardType,
		Status:      domain.CardStatusActive,
		CreditLimit: creditLimit,
	})
	return id, nil
}

func (f *fakeRepo) GetUserAccounts(_ context.Context, userID string) ([]domain.Account, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []domain.Account
	for _, a := range f.accounts {
		if a.UserID == userID {
			out = append(out, a)
		}
	}
	return out, nil
}

func (f *fakeRepo) GetAccountTransactions(_ context.Context, accountID string, limit int) ([]domain.Transaction, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []domain.Transaction
	for _, tx := range f.transactions {
		if tx.AccountID == accountID {
			out = append(out, tx)
		}
		if len(out) == limit {
			break
		}
	}
	return out, nil
}

func (f *fakeRepo) CreateLoanApplication(_ context.Context, app *domain.LoanApplication) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.loanSeq++
	id := fmt.Sprintf("LOAN-TEST%04d", f.loanSeq)
	stored := *app
	stored.ApplicationID = id
	stored.Status = domain.LoanStatusPending
	stored.AppliedAt = time.Now()
	f.loans = append(f.loans, stored)
	return id, nil
}

func (f *fakeRepo) UpdateLoanDecision(_ context.Context, applicationID, status string, interestRate float64, termMonths int, monthlyPayment float64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := range f.loans {
		if f.loans[i].ApplicationID == applicationID {
			f.loans[i].Status = status
			f.loans[i].InterestRate = interestRate
			f.loans[i].TermMonths = termMonths
			f.loans[i].MonthlyPayment = monthlyPayment
			return nil
		}
	}
	return fmt.Errorf("loan application %s not found", applicationID)
}

func (f *fakeRepo) GetUserLoanApplications(_ context.Context, userID string) ([]domain.LoanApplication, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []domain.LoanApplication
	for _, l := range f.loans {
		if l.UserID == userID {
			out = append(out, l)
		}
	}
	return out, nil
}

func (f *fakeRepo) Ping(context.Context) error { return nil }
func (f *fakeRepo) Close() error               { return nil }

var _ store.Repository = (*fakeRepo)(nil)

func (f *fakeRepo) cardStatus(cardID string) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, c := range f.cards {
		if c.CardID == cardID {
			return c.Status
		}
	}
	return ""
}

func newTestEngine(repo store.Repository) *Engine {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	resolver := nlu.NewResolverChain(nil, nlu.RuleResolver{}, logger)
	composer := nlu.NewComposerChain(nil, nlu.TemplateComposer{}, logger)
	return NewEngine(NewContextStore(), resolver, composer, repo, logger)
}

func turn(t *testing.T, e *Engine, session, message string) *TurnResult {
	t.Helper()
	res := e.ProcessTurn(context.Background(), "user_demo1", message, session)
	if res == nil {
		t.Fatalf("ProcessTurn(%q) returned nil", message)
	}
	return res
}

func TestCardBlockHappyPath(t *testing.T) {
	repo := newFakeRepo()
	e := newTestEngine(repo)

	res := turn(t, e, "s1", "I want to block my card")
	if res.Intent != domain.IntentCardBlocking {
		t.Fatalf("Intent = %s, want card_blocking", res.Intent)
	}
	if !res.WorkflowActive || res.Completed {
		t.Fatalf("Workflow must be active after the opening turn: %+v", res)
	}
	if !strings.Contains(res.Response, "9012") || !strings.Contains(res.Response, "7890") {
		t.Fatalf("Card selection prompt must list both cards: %q", res.Response)
	}

	res = turn(t, e, "s1", "2")
	if !strings.Contains(res.Response, "date of birth") {
		t.Fatalf("Expected identity verification prompt, got %q", res.Response)
	}

	res = turn(t, e, "s1", "1990-01-01")
	if !strings.Contains(res.Response, "reason") {
		t.Fatalf("Expected reason prompt after verification, got %q", res.Response)
	}

	res = turn(t, e, "s1", "lost it")
	if !strings.Contains(strings.ToLower(res.Response), "confirm") {
		t.Fatalf("Expected confirmation prompt, got %q", res.Response)
	}

	res = turn(t, e, "s1", "yes")
	if !res.Completed || res.Error {
		t.Fatalf("Block must complete cleanly: %+v", res)
	}
	if !strings.Contains(res.Response, "successfully blocked") {
		t.Fatalf("Expected success message, got %q", res.Response)
	}
	if repo.blockCalls != 1 {
		t.Errorf("BlockCard calls = %d, want exactly 1", repo.blockCalls)
	}
	if got := repo.cardStatus("card_002"); got != domain.CardStatusBlocked {
		t.Errorf("card_002 status = %s, want blocked", got)
	}
	if got := repo.cardStatus("card_001"); got != domain.CardStatusActive {
		t.Errorf("card_001 must be untouched, got %s", got)
	}
}

func TestCardBlockSelectByLastFour(t *testing.T) {
	repo := newFakeRepo()
	e := newTestEngine(repo)

	turn(t, e, "s1", "block my card")
	res := turn(t, e, "s1", "the one ending 9012")
	if !strings.Contains(res.Response, "date of birth") {
		t.Fatalf("Last-four selection must advance to verification, got %q", res.Response)
	}
	if !strings.Contains(res.Response, "9012") {
		t.Fatalf("Verification prompt must name the selected card, got %q", res.Response)
	}
}

func TestCardBlockSlashDateAccepted(t *testing.T) {
	repo := newFakeRepo()
	e := newTestEngine(repo)

	turn(t, e, "s1", "block my card")
	turn(t, e, "s1", "1")
	res := turn(t, e, "s1", "01/01/1990")
	if !strings.Contains(res.Response, "reason") {
		t.Fatalf("DD/MM/YYYY input must verify, got %q", res.Response)
	}
}

func TestCardBlockInvalidSelectionReprompts(t *testing.T) {
	repo := newFakeRepo()
	e := newTestEngine(repo)

	turn(t, e, "s1", "block my card")
	res := turn(t, e, "s1", "the blue one")
	if !res.ClarificationNeeded || res.Completed {
		t.Fatalf("Invalid selection must re-prompt the same step: %+v", res)
	}

	// The workflow is still usable after the bad input.
	res = turn(t, e, "s1", "1")
	if !strings.Contains(res.Response, "date of birth") {
		t.Fatalf("Workflow must continue after re-prompt, got %q", res.Response)
	}
}

func TestCardBlockSecurityDeclineAfterTwoDOBFailures(t *testing.T) {
	repo := newFakeRepo()
	e := newTestEngine(repo)

	turn(t, e, "s1", "block my card")
	turn(t, e, "s1", "1")

	res := turn(t, e, "s1", "1985-05-05")
	if res.Completed || !res.ClarificationNeeded {
		t.Fatalf("First mismatch must allow one retry: %+v", res)
	}

	res = turn(t, e, "s1", "1985-05-05")
	if !res.Completed {
		t.Fatalf("Second mismatch must end the workflow: %+v", res)
	}
	if res.Error {
		t.Errorf("Security decline is a normal outcome, not an error: %+v", res)
	}
	if repo.blockCalls != 0 {
		t.Errorf("No write may happen without verified identity, got %d calls", repo.blockCalls)
	}
	if got := repo.cardStatus("card_001"); got != domain.CardStatusActive {
		t.Errorf("Card must remain active after security decline, got %s", got)
	}
}

func TestCardBlockCancelAtConfirmation(t *testing.T) {
	repo := newFakeRepo()
	e := newTestEngine(repo)

	turn(t, e, "s1", "block my card")
	turn(t, e, "s1", "1")
	turn(t, e, "s1", "1990-01-01")
	turn(t, e, "s1", "stolen wallet")

	res := turn(t, e, "s1", "no, leave it")
	if !res.Completed || res.Error {
		t.Fatalf("Cancellation must complete cleanly: %+v", res)
	}
	if repo.blockCalls != 0 {
		t.Errorf("Cancellation must not write, got %d calls", repo.blockCalls)
	}
}

func TestCardBlockSilentWriteFailureReported(t *testing.T) {
	repo := newFakeRepo()
	repo.silentBlockFail = true
	e := newTestEngine(repo)

	turn(t, e, "s1", "block my card")
	turn(t, e, "s1", "1")
	turn(t, e, "s1", "1990-01-01")
	turn(t, e, "s1", "lost it")

	res := turn(t, e, "s1", "yes")
	if !res.Completed || !res.Error {
		t.Fatalf("A write that does not read back blocked must be reported as failure: %+v", res)
	}
	if strings.Contains(res.Response, "successfully blocked") {
		t.Fatalf("Divergent verification must never claim success: %q", res.Response)
	}
}

func TestCardBlockAlreadyBlocked(t *testing.T) {
	repo := newFakeRepo()
	repo.blockErr = store.ErrCardAlreadyBlocked
	e := newTestEngine(repo)

	turn(t, e, "s1", "block my card")
	turn(t, e, "s1", "1")
	turn(t, e, "s1", "1990-01-01")
	turn(t, e, "s1", "lost it")

	res := turn(t, e, "s1", "yes")
	if !res.Completed || !res.Error {
		t.Fatalf("Already-blocked must be a distinct non-success outcome: %+v", res)
	}
	if !strings.Contains(res.Response, "already blocked") {
		t.Fatalf("Expected already-blocked message, got %q", res.Response)
	}
}

func TestCardBlockNoActiveCards(t *testing.T) {
	repo := newFakeRepo()
	for i := range repo.cards {
		repo.cards[i].Status = domain.CardStatusBlocked
	}
	e := newTestEngine(repo)

	res := turn(t, e, "s1", "block my card")
	if !res.Completed {
		t.Fatalf("No active cards must end the workflow immediately: %+v", res)
	}
	if !strings.Contains(res.Response, "no active cards") {
		t.Fatalf("Expected no-active-cards message, got %q", res.Response)
	}
}
