package domain

import (
	"strings"
	"time"
)

// Card statuses as stored in the cards table.
const (
	CardStatusActive  = "active"
	CardStatusBlocked = "blocked"
)

// User represents a bank customer.
type User struct {
	UserID           string    `json:"user_id"`
	FullName         string    `json:"full_name"`
	Email            string    `json:"email"`
	Phone            string    `json:"phone"`
	MonthlyIncome    float64   `json:"monthly_income"`
	EmploymentStatus string    `json:"employment_status"`
	CreditScore      int       `json:"credit_score"`
	DateOfBirth      string    `json:"date_of_birth"` // YYYY-MM-DD
	CreatedAt        time.Time `json:"created_at"`
}

// Account represents a checking or savings account.
type Account struct {
	AccountID     string    `json:"account_id"`
	UserID        string    `json:"user_id"`
	AccountNumber string    `json:"account_number"`
	AccountType   string    `json:"account_type"`
	Balance       float64   `json:"balance"`
	Status        string    `json:"status"`
	CreatedAt     time.Time `json:"created_at"`
}

// Card represents a debit or credit card, joined with its owning account's
// number when loaded through GetUserCards.
type Card struct {
	CardID          string     `json:"card_id"`
	UserID          string     `json:"user_id"`
	AccountID       string     `json:"account_id"`
	AccountNumber   string     `json:"account_number,omitempty"`
	CardNumber      string     `json:"card_number"`
	CardType        string     `json:"card_type"`
	Status          string     `json:"card_status"`
	CreditLimit     float64    `json:"credit_limit"`
	AvailableCredit float64    `json:"available_credit"`
	BlockedAt       *time.Time `json:"blocked_at,omitempty"`
	BlockReason     string     `json:"block_reason,omitempty"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
}

// IsActive reports whether the card can still be used.
func (c *Card) IsActive() bool {
	return c.Status == CardStatusActive
}

// LastFour returns the last four digits of the card number.
func (c *Card) LastFour() string {
	digits := strings.ReplaceAll(c.CardNumber, "-", "")
	if len(digits) < 4 {
		return digits
	}
	return digits[len(digits)-4:]
}

// Transaction is a single account ledger entry.
type Transaction struct {
	TransactionID string    `json:"transaction_id"`
	AccountID     string    `json:"account_id"`
	Type          string    `json:"transaction_type"`
	Amount        float64   `json:"amount"`
	Description   string    `json:"description"`
	MerchantName  string    `json:"merchant_name"`
	Date          time.Time `json:"transaction_date"`
	Status        string    `json:"status"`
}

// Loan application statuses.
const (
	LoanStatusPending  = "pending"
	LoanStatusApproved = "approved"
	LoanStatusDeclined = "declined"
)

// LoanApplication represents a loan request and its decision terms.
type LoanApplication struct {
	ApplicationID  string    `json:"application_id"`
	UserID         string    `json:"user_id"`
	LoanType       string    `json:"loan_type"`
	Amount         float64   `json:"loan_amount"`
	Purpose        string    `json:"loan_purpose"`
	Status         string    `json:"application_status"`
	InterestRate   float64   `json:"interest_rate,omitempty"`
	TermMonths     int       `json:"loan_term_months,omitempty"`
	MonthlyPayment float64   `json:"monthly_payment,omitempty"`
	AppliedAt      time.Time `json:"applied_at"`
}

// BlockCardResult reports the outcome of the verified card-blocking write.
type BlockCardResult struct {
	Success   bool       `json:"success"`
	CardID    string     `json:"card_id"`
	NewStatus string     `json:"new_status,omitempty"`
	BlockedAt *time.Time `json:"blocked_at,omitempty"`
}
