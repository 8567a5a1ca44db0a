package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sukrithpvs/HSBC/internal/domain"
	_ "modernc.org/sqlite"
)

// SQLiteStore implements Repository using SQLite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite creates a new SQLite-backed repository.
func NewSQLite(dbPath string) (*SQLiteStore, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create database directory: %w", err)
	}

	// Open database with WAL mode for better concurrency.
	dsn := dbPath + "?_journal=WAL&_sync=NORMAL&_busy_timeout=5000"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("ping database: %w", err)
	}

	store := &SQLiteStore{db: db}
	if err := store.initSchema(); err != nil {
		return nil, fmt.Errorf("initialize schema: %w", err)
	}

	return store, nil
}

func (s *SQLiteStore) initSchema() error {
	query := `
	PRAGMA busy_timeout = 5000;
	CREATE TABLE IF NOT EXISTS users (
		user_id TEXT PRIMARY KEY,
		full_name TEXT NOT NULL,
		email TEXT UNIQUE NOT NULL,
		phone TEXT,
		monthly_income REAL DEFAULT 0,
		employment_status TEXT,
		credit_score INTEGER DEFAULT 790,
		date_of_birth TEXT DEFAULT '1990-01-01',
		created_at INTEGER NOT NULL
	);

	CREATE TABLE IF NOT EXISTS accounts (
		account_id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL REFERENCES users(user_id),
		account_number TEXT UNIQUE NOT NULL,
		account_type TEXT NOT NULL,
		balance REAL DEFAULT 0,
		status TEXT DEFAULT 'active',
		created_at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_accounts_user ON accounts(user_id);

	CREATE TABLE IF NOT EXISTS cards (
		card_id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL REFERENCES users(user_id),
		account_id TEXT NOT NULL REFERENCES accounts(account_id),
		card_number TEXT UNIQUE NOT NULL,
		card_type TEXT NOT NULL,
		card_status TEXT DEFAULT 'active',
		credit_limit REAL DEFAULT 0,
		available_credit REAL DEFAULT 0,
		blocked_at INTEGER,
		block_reason TEXT,
		created_at INTEGER NOT NULL,
		updated_at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_cards_user ON cards(user_id);

	CREATE TABLE IF NOT EXISTS transactions (
		transaction_id TEXT PRIMARY KEY,
		account_id TEXT NOT NULL REFERENCES accounts(account_id),
		transaction_type TEXT NOT NULL,
		amount REAL NOT NULL,
		description TEXT,
		merchant_name TEXT,
		transaction_date INTEGER NOT NULL,
		status TEXT DEFAULT 'completed'
	);
	CREATE INDEX IF NOT EXISTS idx_transactions_account ON transactions(account_id, transaction_date);

	CREATE TABLE IF NOT EXISTS loan_applications (
		application_id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL REFERENCES users(user_id),
		loan_type TEXT NOT NULL,
		loan_amount REAL NOT NULL,
		loan_purpose TEXT,
		application_status TEXT DEFAULT 'pending',
		interest_rate REAL,
		loan_term_months INTEGER,
		monthly_payment REAL,
		applied_at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_loans_user ON loan_applications(user_id, applied_at);
	`
	if _, err := s.db.Exec(query); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	return nil
}

// Ping verifies database connectivity.
func (s *SQLiteStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("close database: %w", err)
	}
	return nil
}

// GetUser retrieves a user by ID.
func (s *SQLiteStore) GetUser(ctx context.Context, userID string) (*domain.User, error) {
	query := `
		SELECT user_id, full_name, email, phone, monthly_income,
		       employment_status, credit_score, date_of_birth, created_at
		FROM users WHERE user_id = ?`

	row := s.db.QueryRowContext(ctx, query, userID)

	var user domain.User
	var phone, employment sql.NullString
	var createdAt int64

	err := row.Scan(
		&user.UserID, &user.FullName, &user.Email, &phone, &user.MonthlyIncome,
		&employment, &user.CreditScore, &user.DateOfBirth, &createdAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan user row: %w", err)
	}

	user.Phone = phone.String
	user.EmploymentStatus = employment.String
	user.CreatedAt = time.Unix(createdAt, 0)

	return &user, nil
}

const cardColumns = `c.card_id, c.user_id, c.account_id, c.card_number, c.card_type,
	       c.card_status, c.credit_limit, c.available_credit, c.blocked_at,
	       c.block_reason, c.created_at, c.updated_at`

func scanCard(row interface{ Scan(...any) error }, withAccountNumber bool) (*domain.Card, error) {
	var card domain.Card
	var blockedAt sql.NullInt64
	var blockReason sql.NullString
	var createdAt, updatedAt int64

	dest := []any{
		&card.CardID, &card.UserID, &card.AccountID, &card.CardNumber, &card.CardType,
		&card.Status, &card.CreditLimit, &card.AvailableCredit, &blockedAt,
		&blockReason, &createdAt, &updatedAt,
	}
	if withAccountNumber {
		dest = append(dest, &card.AccountNumber)
	}

	if err := row.Scan(dest...); err != nil {
		return nil, err
	}

	if blockedAt.Valid {
		ts := time.Unix(blockedAt.Int64, 0)
		card.BlockedAt = &ts
	}
	card.BlockReason = blockReason.String
	card.CreatedAt = time.Unix(createdAt, 0)
	card.UpdatedAt = time.Unix(updatedAt, 0)

	return &card, nil
}

// GetUserCards retrieves all cards for a user joined with the owning
// account's number, newest first.
func (s *SQLiteStore) GetUserCards(ctx context.Context, userID string) ([]domain.Card, error) {
	query := `
		SELECT ` + cardColumns + `, a.account_number
		FROM cards c
		JOIN accounts a ON c.account_id = a.account_id
		WHERE c.user_id = ?
		ORDER BY c.created_at DESC`

	rows, err := s.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("query user cards: %w", err)
	}
	defer rows.Close()

	var cards []domain.Card
	for rows.Next() {
		card, err := scanCard(rows, true)
		if err != nil {
			return nil, fmt.Errorf("scan card row: %w", err)
		}
		cards = append(cards, *card)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate cards: %w", err)
	}

	return cards, nil
}

// GetCard retrieves a single card scoped to its owner.
func (s *SQLiteStore) GetCard(ctx context.Context, cardID, userID string) (*domain.Card, error) {
	query := `SELECT ` + cardColumns + ` FROM cards c WHERE c.card_id = ? AND c.user_id = ?`

	card, err := scanCard(s.db.QueryRowContext(ctx, query, cardID, userID), false)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrCardNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan card row: %w", err)
	}
	return card, nil
}

// BlockCard blocks a card with a verified write: the current status is read
// inside the same transaction that updates it, the update is verified before
// commit, and success is only reported after a post-commit re-read observes
// the blocked status.
func (s *SQLiteStore) BlockCard(ctx context.Context, cardID, reason string) (*domain.BlockCardResult, error) {
	if strings.TrimSpace(reason) == "" {
		reason = "User requested block"
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin block transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var status string
	err = tx.QueryRowContext(ctx,
		`SELECT card_status FROM cards WHERE card_id = ?`, cardID,
	).Scan(&status)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrCardNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("read card status: %w", err)
	}
	if status == domain.CardStatusBlocked {
		return nil, ErrCardAlreadyBlocked
	}

	now := time.Now()
	if _, err := tx.ExecContext(ctx, `
		UPDATE cards
		SET card_status = ?, blocked_at = ?, block_reason = ?, updated_at = ?
		WHERE card_id = ?`,
		domain.CardStatusBlocked, now.Unix(), reason, now.Unix(), cardID,
	); err != nil {
		return nil, fmt.Errorf("update card status: %w", err)
	}

	// Verify inside the transaction before committing.
	if err := tx.QueryRowContext(ctx,
		`SELECT card_status FROM cards WHERE card_id = ?`, cardID,
	).Scan(&status); err != nil {
		return nil, fmt.Errorf("verify card status pre-commit: %w", err)
	}
	if status != domain.CardStatusBlocked {
		return nil, ErrBlockVerificationFailed
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit block transaction: %w", err)
	}

	// Re-read after commit. A commit that does not survive the re-read is a
	// failure, never a success.
	var blockedAtUnix sql.NullInt64
	err = s.db.QueryRowContext(ctx,
		`SELECT card_status, blocked_at FROM cards WHERE card_id = ?`, cardID,
	).Scan(&status, &blockedAtUnix)
	if err != nil || status != domain.CardStatusBlocked {
		return nil, ErrBlockVerificationFailed
	}

	result := &domain.BlockCardResult{
		Success:   true,
		CardID:    cardID,
		NewStatus: domain.CardStatusBlocked,
	}
	if blockedAtUnix.Valid {
		ts := time.Unix(blockedAtUnix.Int64, 0)
		result.BlockedAt = &ts
	}
	return result, nil
}

// CreateCard issues a new card against an account.
func (s *SQLiteStore) CreateCard(ctx context.Context, userID, accountID, cardType string, creditLimit float64) (string, error) {
	cardID := "card_" + uuid.NewString()[:8]
	cardNumber := fmt.Sprintf("%s-%s-%s-%s",
		uuid.NewString()[:4], uuid.NewString()[:4], uuid.NewString()[:4], uuid.NewString()[:4])
	now := time.Now().Unix()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO cards (card_id, user_id, account_id, card_number, card_type,
		                   credit_limit, available_credit, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		cardID, userID, accountID, cardNumber, cardType, creditLimit, creditLimit, now, now,
	)
	if err != nil {
		return "", fmt.Errorf("insert card: %w", err)
	}
	return cardID, nil
}

// GetUserAccounts retrieves all accounts for a user, newest first.
func (s *SQLiteStore) GetUserAccounts(ctx context.Context, userID string) ([]domain.Account, error) {
	query := `
		SELECT account_id, user_id, account_number, account_type, balance, status, created_at
		FROM accounts WHERE user_id = ? ORDER BY created_at DESC`

	rows, err := s.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("query accounts: %w", err)
	}
	defer rows.Close()

	var accounts []domain.Account
	for rows.Next() {
		var acc domain.Account
		var createdAt int64
		if err := rows.Scan(
			&acc.AccountID, &acc.UserID, &acc.AccountNumber, &acc.AccountType,
			&acc.Balance, &acc.Status, &createdAt,
		); err != nil {
			return nil, fmt.Errorf("scan account row: %w", err)
		}
		acc.CreatedAt = time.Unix(createdAt, 0)
		accounts = append(accounts, acc)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate accounts: %w", err)
	}

	return accounts, nil
}

// GetAccountTransactions retrieves the most recent transactions for an account.
func (s *SQLiteStore) GetAccountTransactions(ctx context.Context, accountID string, limit int) ([]domain.Transaction, error) {
	if limit <= 0 {
		limit = 10
	}
	query := `
		SELECT transaction_id, account_id, transaction_type, amount,
		       description, merchant_name, transaction_date, status
		FROM transactions
		WHERE account_id = ?
		ORDER BY transaction_date DESC
		LIMIT ?`

	rows, err := s.db.QueryContext(ctx, query, accountID, limit)
	if err != nil {
		return nil, fmt.Errorf("query transactions: %w", err)
	}
	defer rows.Close()

	var txns []domain.Transaction
	for rows.Next() {
		var txn domain.Transaction
		var description, merchant sql.NullString
		var date int64
		if err := rows.Scan(
			&txn.TransactionID, &txn.AccountID, &txn.Type, &txn.Amount,
			&description, &merchant, &date, &txn.Status,
		); err != nil {
			return nil, fmt.Errorf("scan transaction row: %w", err)
		}
		txn.Description = description.String
		txn.MerchantName = merchant.String
		txn.Date = time.Unix(date, 0)
		txns = append(txns, txn)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate transactions: %w", err)
	}

	return txns, nil
}

// CreateLoanApplication records a pending loan application.
func (s *SQLiteStore) CreateLoanApplication(ctx context.Context, app *domain.LoanApplication) (string, error) {
	appID := "LOAN-" + strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", "")[:8])

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO loan_applications
			(application_id, user_id, loan_type, loan_amount, loan_purpose,
			 application_status, applied_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		appID, app.UserID, app.LoanType, app.Amount, app.Purpose,
		domain.LoanStatusPending, time.Now().Unix(),
	)
	if err != nil {
		return "", fmt.Errorf("insert loan application: %w", err)
	}
	return appID, nil
}

// UpdateLoanDecision writes the decision and terms for a loan application.
func (s *SQLiteStore) UpdateLoanDecision(ctx context.Context, applicationID, status string, interestRate float64, termMonths int, monthlyPayment float64) error {
	result, err := s.db.ExecContext(ctx, `
		UPDATE loan_applications
		SET application_status = ?, interest_rate = ?, loan_term_months = ?, monthly_payment = ?
		WHERE application_id = ?`,
		status, interestRate, termMonths, monthlyPayment, applicationID,
	)
	if err != nil {
		return fmt.Errorf("update loan decision: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("get rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("loan application %s not found", applicationID)
	}
	return nil
}

// GetUserLoanApplications retrieves a user's loan applications, newest first.
func (s *SQLiteStore) GetUserLoanApplications(ctx context.Context, userID string) ([]domain.LoanApplication, error) {
	query := `
		SELECT application_id, user_id, loan_type, loan_amount, loan_purpose,
		       application_status, interest_rate, loan_term_months, monthly_payment, applied_at
		FROM loan_applications
		WHERE user_id = ?
		ORDER BY applied_at DESC`

	rows, err := s.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("query loan applications: %w", err)
	}
	defer rows.Close()

	var apps []domain.LoanApplication
	for rows.Next() {
		var app domain.LoanApplication
		var purpose sql.NullString
		var rate, payment sql.NullFloat64
		var term sql.NullInt64
		var appliedAt int64
		if err := rows.Scan(
			&app.ApplicationID, &app.UserID, &app.LoanType, &app.Amount, &purpose,
			&app.Status, &rate, &term, &payment, &appliedAt,
		); err != nil {
			return nil, fmt.Errorf("scan loan application row: %w", err)
		}
		app.Purpose = purpose.String
		app.InterestRate = rate.Float64
		app.TermMonths = int(term.Int64)
		app.MonthlyPayment = payment.Float64
		app.AppliedAt = time.Unix(appliedAt, 0)
		apps = append(apps, app)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate loan applications: %w", err)
	}

	return apps, nil
}

var _ Repository = (*SQLiteStore)(nil)
