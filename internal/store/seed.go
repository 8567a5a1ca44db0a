package store

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

// SeedDemoData populates the database with the demo user, accounts, cards,
// transactions and a loan application. It is idempotent: if the demo user
// already exists, nothing is written.
func (s *SQLiteStore) SeedDemoData(ctx context.Context) error {
	var count int
	if err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM users WHERE user_id = ?`, "user_demo1",
	).Scan(&count); err != nil {
		return fmt.Errorf("check demo user: %w", err)
	}
	if count > 0 {
		return nil
	}

	now := time.Now().Unix()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin seed transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO users (user_id, full_name, email, phone, monthly_income,
		                   employment_status, credit_score, date_of_birth, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		"user_demo1", "John Smith", "john.smith@email.com", "+1-555-0123",
		5500.0, "employed", 790, "1990-01-01", now,
	); err != nil {
		return fmt.Errorf("seed user: %w", err)
	}

	accounts := [][]any{
		{"acc_001", "user_demo1", "ACC-123456789", "checking", 2500.75},
		{"acc_002", "user_demo1", "ACC-987654321", "savings", 15000.00},
	}
	for _, a := range accounts {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO accounts (account_id, user_id, account_number, account_type, balance, status, created_at)
			VALUES (?, ?, ?, ?, ?, 'active', ?)`,
			a[0], a[1], a[2], a[3], a[4], now,
		); err != nil {
			return fmt.Errorf("seed account %v: %w", a[0], err)
		}
	}

	cards := [][]any{
		{"card_001", "acc_001", "4532-1234-5678-9012", "debit", "active", 0.0, 0.0},
		{"card_002", "acc_002", "5678-9012-3456-7890", "credit", "active", 10000.0, 8500.0},
		{"card_003", "acc_001", "6789-0123-4567-8901", "credit", "blocked", 5000.0, 4200.0},
	}
	for _, c := range cards {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO cards (card_id, user_id, account_id, card_number, card_type,
			                   card_status, credit_limit, available_credit, created_at, updated_at)
			VALUES (?, 'user_demo1', ?, ?, ?, ?, ?, ?, ?, ?)`,
			c[0], c[1], c[2], c[3], c[4], c[5], c[6], now, now,
		); err != nil {
			return fmt.Errorf("seed card %v: %w", c[0], err)
		}
	}

	txns := []struct {
		id, account, kind, desc, merchant string
		amount                            float64
		daysAgo                           int
	}{
		{"txn_001", "acc_001", "debit", "Grocery Store Purchase", "FreshMart Grocery", 85.50, 2},
		{"txn_002", "acc_001", "debit", "Gas Station", "Shell Gas Station", 45.20, 3},
		{"txn_003", "acc_001", "credit", "Salary Deposit", "ABC Corporation", 2500.00, 16},
		{"txn_004", "acc_002", "debit", "Rent Payment", "Property Management Co", 1200.00, 16},
		{"txn_005", "acc_002", "credit", "Transfer from Checking", "Internal Transfer", 500.00, 7},
	}
	for _, t := range txns {
		date := time.Now().AddDate(0, 0, -t.daysAgo).Unix()
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO transactions (transaction_id, account_id, transaction_type,
			                          amount, description, merchant_name, transaction_date, status)
			VALUES (?, ?, ?, ?, ?, ?, ?, 'completed')`,
			t.id, t.account, t.kind, t.amount, t.desc, t.merchant, date,
		); err != nil {
			return fmt.Errorf("seed transaction %s: %w", t.id, err)
		}
	}

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO loan_applications (application_id, user_id, loan_type, loan_amount,
		                               loan_purpose, application_status, interest_rate,
		                               loan_term_months, monthly_payment, applied_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		"loan_001", "user_demo1", "personal", 15000.0, "Home renovation",
		"approved", 8.5, 36, 475.50, now,
	); err != nil {
		return fmt.Errorf("seed loan application: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit seed transaction: %w", err)
	}

	slog.Info("Demo data seeded", "user_id", "user_demo1")
	return nil
}
