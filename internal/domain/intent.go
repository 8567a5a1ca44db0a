// Package domain contains core domain types for the banking conversation system.
package domain

import "fmt"

// Intent identifies what the user is trying to accomplish.
type Intent string

const (
	IntentLoanApplication    Intent = "loan_application"
	IntentLoanInquiry        Intent = "loan_inquiry"
	IntentCardBlocking       Intent = "card_blocking"
	IntentCardApplication    Intent = "card_application"
	IntentCardInquiry        Intent = "card_inquiry"
	IntentBalanceInquiry     Intent = "balance_inquiry"
	IntentTransactionHistory Intent = "transaction_history"
	IntentGeneralInquiry     Intent = "general_inquiry"
	IntentGreeting           Intent = "greeting"
	IntentGoodbye            Intent = "goodbye"
)

// Intents is the closed set of intents shared by the resolver and the
// router's dispatch table.
var Intents = []Intent{
	IntentLoanApplication,
	IntentLoanInquiry,
	IntentCardBlocking,
	IntentCardApplication,
	IntentCardInquiry,
	IntentBalanceInquiry,
	IntentTransactionHistory,
	IntentGeneralInquiry,
	IntentGreeting,
	IntentGoodbye,
}

// ParseIntent validates a raw intent label.
func ParseIntent(s string) (Intent, error) {
	for _, in := range Intents {
		if string(in) == s {
			return in, nil
		}
	}
	return "", fmt.Errorf("unknown intent %q", s)
}

// ConversationState tracks where a session is within a task.
type ConversationState string

const (
	StateIdle           ConversationState = "idle"
	StateCollectingInfo ConversationState = "collecting_info"
	StateProcessing     ConversationState = "processing"
	StateConfirming     ConversationState = "confirming"
	StateCompleted      ConversationState = "completed"
)
