// Package store provides data persistence interfaces and implementations.
package store

import (
	"context"
	"errors"

	"github.com/sukrithpvs/HSBC/internal/domain"
)

// Sentinel errors surfaced by Repository implementations. Callers branch on
// these with errors.Is to render accurate user-facing outcomes.
var (
	ErrUserNotFound = errors.New("user not found")
	ErrCardNotFound = errors.New("card not found")

	// ErrCardAlreadyBlocked signals an idempotent no-op: the card was
	// already blocked before the write, which is a distinct non-success
	// outcome rather than a silent success.
	ErrCardAlreadyBlocked = errors.New("card is already blocked")

	// ErrBlockVerificationFailed signals that a commit nominally happened
	// but the post-commit re-read did not observe the blocked status.
	ErrBlockVerificationFailed = errors.New("card block verification failed")
)

// Repository defines read/write access to users, accounts, cards, loan
// applications and transactions. Pure data access; no conversation logic.
type Repository interface {
	// GetUser retrieves a user by ID. Returns ErrUserNotFound if absent.
	GetUser(ctx context.Context, userID string) (*domain.User, error)

	// GetUserCards retrieves all cards for a user, joined with the owning
	// account's number, newest first.
	GetUserCards(ctx context.Context, userID string) ([]domain.Card, error)

	// GetCard retrieves a single card scoped to its owner. Returns
	// ErrCardNotFound if absent.
	GetCard(ctx context.Context, cardID, userID string) (*domain.Card, error)

	// BlockCard transitions a card to blocked inside a single transaction
	// and only reports success after a post-commit re-read confirms the
	// blocked status. Returns ErrCardNotFound, ErrCardAlreadyBlocked or
	// ErrBlockVerificationFailed as applicable.
	BlockCard(ctx context.Context, cardID, reason string) (*domain.BlockCardResult, error)

	// CreateCard issues a new card against an account and returns its ID.
	CreateCard(ctx context.Context, userID, accountID, cardType string, creditLimit float64) (string, error)

	// GetUserAccounts retrieves all accounts for a user, newest first.
	GetUserAccounts(ctx context.Context, userID string) ([]domain.Account, error)

	// GetAccountTransactions retrieves the most recent transactions for an
	// account, up to limit.
	GetAccountTransactions(ctx context.Context, accountID string, limit int) ([]domain.Transaction, error)

	// CreateLoanApplication records a pending loan application and returns
	// its ID.
	CreateLoanApplication(ctx context.Context, app *domain.LoanApplication) (string, error)

	// UpdateLoanDecision writes the approval decision and terms for an
	// application.
	UpdateLoanDecision(ctx context.Context, applicationID, status string, interestRate float64, termMonths int, monthlyPayment float64) error

	// GetUserLoanApplications retrieves a user's loan applications, newest
	// first.
	GetUserLoanApplications(ctx context.Context, userID string) ([]domain.LoanApplication, error)

	// Ping verifies database connectivity.
	Ping(ctx context.Context) error

	// Close closes the database connection.
	Close() error
}
