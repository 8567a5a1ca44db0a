package store

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/sukrithpvs/HSBC/internal/domain"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := NewSQLite(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("NewSQLite: %v", err)
	}
	t.Cleanup(func() {
		if err := s.Close(); err != nil {
			t.Errorf("Close: %v", err)
		}
	})
	if err := s.SeedDemoData(context.Background()); err != nil {
		t.Fatalf("SeedDemoData: %v", err)
	}
	return s
}

func TestSeedDemoDataIdempotent(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	// Seeding again must not duplicate anything.
	if err := s.SeedDemoData(ctx); err != nil {
		t.Fatalf("Second SeedDemoData: %v", err)
	}

	user, err := s.GetUser(ctx, "user_demo1")
	if err != nil {
		t.Fatalf("GetUser: %v", err)
	}
	if user.FullName != "John Smith" || user.DateOfBirth != "1990-01-01" {
		t.Errorf("Seeded user wrong: %+v", user)
	}

	cards, err := s.GetUserCards(ctx, "user_demo1")
	if err != nil {
		t.Fatalf("GetUserCards: %v", err)
	}
	if len(cards) != 3 {
		t.Fatalf("Expected 3 seeded cards, got %d", len(cards))
	}
	for _, c := range cards {
		if c.AccountNumber == "" {
			t.Errorf("Card %s must be joined with its account number", c.CardID)
		}
	}

	accounts, err := s.GetUserAccounts(ctx, "user_demo1")
	if err != nil {
		t.Fatalf("GetUserAccounts: %v", err)
	}
	if len(accounts) != 2 {
		t.Fatalf("Expected 2 seeded accounts, got %d", len(accounts))
	}
}

func TestGetUserNotFound(t *testing.T) {
	s := newTestStore(t)

	_, err := s.GetUser(context.Background(), "no_such_user")
	if !errors.Is(err, ErrUserNotFound) {
		t.Errorf("Expected ErrUserNotFound, got %v", err)
	}
}

func TestGetCardScopedToOwner(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	card, err := s.GetCard(ctx, "card_001", "user_demo1")
	if err != nil {
		t.Fatalf("GetCard: %v", err)
	}
	if card.CardType != "debit" || !card.IsActive() {
		t.Errorf("card_001 wrong: %+v", card)
	}

	if _, err := s.GetCard(ctx, "card_001", "someone_else"); !errors.Is(err, ErrCardNotFound) {
		t.Errorf("Cross-user card access must be ErrCardNotFound, got %v", err)
	}
}

func TestBlockCardVerifiedWrite(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	result, err := s.BlockCard(ctx, "card_001", "lost wallet")
	if err != nil {
		t.Fatalf("BlockCard: %v", err)
	}
	if !result.Success || result.NewStatus != domain.CardStatusBlocked {
		t.Fatalf("Block result wrong: %+v", result)
	}
	if result.BlockedAt == nil {
		t.Error("Block result must carry the block timestamp")
	}

	// The write must be observable on an independent read.
	card, err := s.GetCard(ctx, "card_001", "user_demo1")
	if err != nil {
		t.Fatalf("GetCard after block: %v", err)
	}
	if card.Status != domain.CardStatusBlocked {
		t.Errorf("Status = %s, want blocked", card.Status)
	}
	if card.BlockReason != "lost wallet" {
		t.Errorf("BlockReason = %q, want the supplied reason", card.BlockReason)
	}
	if card.BlockedAt == nil {
		t.Error("BlockedAt must be set")
	}
}

func TestBlockCardAlreadyBlocked(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	// card_003 is seeded blocked.
	if _, err := s.BlockCard(ctx, "card_003", "again"); !errors.Is(err, ErrCardAlreadyBlocked) {
		t.Errorf("Expected ErrCardAlreadyBlocked, got %v", err)
	}

	if _, err := s.BlockCard(ctx, "card_404", "x"); !errors.Is(err, ErrCardNotFound) {
		t.Errorf("Expected ErrCardNotFound, got %v", err)
	}
}

func TestBlockCardDefaultReason(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	if _, err := s.BlockCard(ctx, "card_002", "   "); err != nil {
		t.Fatalf("BlockCard: %v", err)
	}
	card, err := s.GetCard(ctx, "card_002", "user_demo1")
	if err != nil {
		t.Fatalf("GetCard: %v", err)
	}
	if card.BlockReason != "User requested block" {
		t.Errorf("BlockReason = %q, want the default", card.BlockReason)
	}
}

func TestCreateCard(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	cardID, err := s.CreateCard(ctx, "user_demo1", "acc_001", "credit", 5000)
	if err != nil {
		t.Fatalf("CreateCard: %v", err)
	}

	card, err := s.GetCard(ctx, cardID, "user_demo1")
	if err != nil {
		t.Fatalf("GetCard: %v", err)
	}
	if card.CardType != "credit" || card.CreditLimit != 5000 || !card.IsActive() {
		t.Errorf("Created card wrong: %+v", card)
	}
	if card.AvailableCredit != 5000 {
		t.Errorf("AvailableCredit = %v, want the full limit", card.AvailableCredit)
	}
}

func TestTransactionsLimit(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	txns, err := s.GetAccountTransactions(ctx, "acc_001", 2)
	if err != nil {
		t.Fatalf("GetAccountTransactions: %v", err)
	}
	if len(txns) != 2 {
		t.Fatalf("Expected limit of 2 transactions, got %d", len(txns))
	}
	if !txns[0].Date.After(txns[1].Date) && !txns[0].Date.Equal(txns[1].Date) {
		t.Error("Transactions must be ordered newest first")
	}
}

func TestLoanApplicationLifecycle(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	appID, err := s.CreateLoanApplication(ctx, &domain.LoanApplication{
		UserID:   "user_demo1",
		LoanType: "personal",
		Amount:   15000,
		Purpose:  "car purchase",
	})
	if err != nil {
		t.Fatalf("CreateLoanApplication: %v", err)
	}

	if err := s.UpdateLoanDecision(ctx, appID, domain.LoanStatusApproved, 7.5, 60, 300.57); err != nil {
		t.Fatalf("UpdateLoanDecision: %v", err)
	}
	if err := s.UpdateLoanDecision(ctx, "LOAN-NOPE", domain.LoanStatusApproved, 7.5, 60, 300.57); err == nil {
		t.Error("Updating a missing application must fail")
	}

	apps, err := s.GetUserLoanApplications(ctx, "user_demo1")
	if err != nil {
		t.Fatalf("GetUserLoanApplications: %v", err)
	}
	var found *domain.LoanApplication
	for i := range apps {
		if apps[i].ApplicationID == appID {
			found = &apps[i]
		}
	}
	if found == nil {
		t.Fatalf("Application %s not returned", appID)
	}
	if found.Status != domain.LoanStatusApproved || found.TermMonths != 60 || found.MonthlyPayment != 300.57 {
		t.Errorf("Decision not persisted: %+v", found)
	}
}
