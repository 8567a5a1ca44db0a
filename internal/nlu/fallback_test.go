package nlu

import (
	"context"
	"strings"
	"testing"

	"github.com/sukrithpvs/HSBC/internal/domain"
)

func TestRuleResolverIntents(t *testing.T) {
	tests := []struct {
		utterance string
		want      domain.Intent
	}{
		{"I want to block my card", domain.IntentCardBlocking},
		{"my card was stolen", domain.IntentCardBlocking},
		{"freeze my card please", domain.IntentCardBlocking},
		{"I want to apply for card", domain.IntentCardApplication},
		{"get a card for me", domain.IntentCardApplication},
		{"show my loans", domain.IntentLoanInquiry},
		{"what is my loan status", domain.IntentLoanInquiry},
		{"I need a loan", domain.IntentLoanApplication},
		{"I want to borrow 15,000", domain.IntentLoanApplication},
		{"what is my balance", domain.IntentBalanceInquiry},
		{"show my transaction history", domain.IntentTransactionHistory},
		{"tell me about my card", domain.IntentCardInquiry},
		{"hello there", domain.IntentGreeting},
		{"goodbye", domain.IntentGoodbye},
		{"what is the weather", domain.IntentGeneralInquiry},
	}

	r := RuleResolver{}
	convo := domain.NewConversationContext("s1", "u1")

	for _, tt := range tests {
		analysis, err := r.Resolve(context.Background(), tt.utterance, convo)
		if err != nil {
			t.Fatalf("Resolve(%q) error: %v", tt.utterance, err)
		}
		if analysis.Intent != tt.want {
			t.Errorf("Resolve(%q) intent = %s, want %s", tt.utterance, analysis.Intent, tt.want)
		}
	}
}

func TestRuleResolverDeterministic(t *testing.T) {
	r := RuleResolver{}
	convo := domain.NewConversationContext("s1", "u1")

	first, err := r.Resolve(context.Background(), "I want to borrow $15,000 for a car", convo)
	if err != nil {
		t.Fatalf("Resolve error: %v", err)
	}
	for i := 0; i < 5; i++ {
		again, err := r.Resolve(context.Background(), "I want to borrow $15,000 for a car", convo)
		if err != nil {
			t.Fatalf("Resolve error: %v", err)
		}
		if again.Intent != first.Intent || again.Confidence != first.Confidence ||
			again.Entities["amount"] != first.Entities["amount"] {
			t.Fatalf("Resolution is not deterministic: %+v vs %+v", again, first)
		}
	}
}

func TestRuleResolverEntities(t *testing.T) {
	r := RuleResolver{}
	convo := domain.NewConversationContext("s1", "u1")

	analysis, err := r.Resolve(context.Background(), "I want to borrow $15,000 please", convo)
	if err != nil {
		t.Fatalf("Resolve error: %v", err)
	}
	if analysis.Entities["amount"] != "15000" {
		t.Errorf("Expected amount entity 15000, got %q", analysis.Entities["amount"])
	}

	analysis, err = r.Resolve(context.Background(), "I need a new credit card", convo)
	if err != nil {
		t.Fatalf("Resolve error: %v", err)
	}
	if analysis.Entities["card_type"] != "credit" {
		t.Errorf("Expected card_type entity credit, got %q", analysis.Entities["card_type"])
	}
}

func TestRuleResolverContextSwitch(t *testing.T) {
	r := RuleResolver{}

	convo := domain.NewConversationContext("s1", "u1")
	analysis, err := r.Resolve(context.Background(), "block my card", convo)
	if err != nil {
		t.Fatalf("Resolve error: %v", err)
	}
	if analysis.ContextSwitch {
		t.Error("First turn must not be flagged as a context switch")
	}

	convo.CurrentIntent = domain.IntentCardBlocking
	analysis, err = r.Resolve(context.Background(), "what is my balance", convo)
	if err != nil {
		t.Fatalf("Resolve error: %v", err)
	}
	if !analysis.ContextSwitch {
		t.Error("Topic change mid-task must be flagged as a context switch")
	}
	if analysis.Intent != domain.IntentBalanceInquiry {
		t.Errorf("Expected balance_inquiry, got %s", analysis.Intent)
	}

	analysis, err = r.Resolve(context.Background(), "block my card now", convo)
	if err != nil {
		t.Fatalf("Resolve error: %v", err)
	}
	if analysis.ContextSwitch {
		t.Error("Re-stating the current intent is not a switch")
	}
}

func TestRuleResolverSustainsActiveWorkflow(t *testing.T) {
	r := RuleResolver{}

	convo := domain.NewConversationContext("s1", "u1")
	convo.CurrentIntent = domain.IntentCardBlocking
	convo.State = domain.StateCollectingInfo

	// Step answers carry no topic keywords and must not break the workflow.
	for _, utterance := range []string{"2", "1990-01-01", "yes"} {
		analysis, err := r.Resolve(context.Background(), utterance, convo)
		if err != nil {
			t.Fatalf("Resolve(%q) error: %v", utterance, err)
		}
		if analysis.Intent != domain.IntentCardBlocking {
			t.Errorf("Resolve(%q) intent = %s, want the active card_blocking", utterance, analysis.Intent)
		}
		if analysis.ContextSwitch {
			t.Errorf("Resolve(%q) must not flag a context switch", utterance)
		}
	}

	// A real topic change still switches.
	analysis, err := r.Resolve(context.Background(), "what is my balance", convo)
	if err != nil {
		t.Fatalf("Resolve error: %v", err)
	}
	if analysis.Intent != domain.IntentBalanceInquiry || !analysis.ContextSwitch {
		t.Errorf("Topic change must switch, got %+v", analysis)
	}
}

func TestTemplateComposerCardList(t *testing.T) {
	c := TemplateComposer{}
	convo := domain.NewConversationContext("s1", "u1")

	cards := []domain.Card{
		{CardID: "card_001", CardType: "debit", CardNumber: "4532-1234-5678-9012", Status: domain.CardStatusActive},
		{CardID: "card_002", CardType: "credit", CardNumber: "5678-9012-3456-7890", Status: domain.CardStatusActive},
	}

	text, err := c.Compose(context.Background(), "block my card", convo, Payload{
		Action: ActionSelectCardToBlock,
		Data:   map[string]any{"cards": cards},
	})
	if err != nil {
		t.Fatalf("Compose error: %v", err)
	}
	if !strings.Contains(text, "9012") || !strings.Contains(text, "7890") {
		t.Errorf("Card list must include the last four digits of each card, got %q", text)
	}
	if !strings.Contains(text, "1:") || !strings.Contains(text, "2:") {
		t.Errorf("Card list must be numbered, got %q", text)
	}
}

func TestTemplateComposerLoanDecision(t *testing.T) {
	c := TemplateComposer{}
	convo := domain.NewConversationContext("s1", "u1")

	approved := domain.LoanApplication{
		ApplicationID:  "LOAN-ABC12345",
		Amount:         15000,
		Status:         domain.LoanStatusApproved,
		InterestRate:   7.5,
		TermMonths:     60,
		MonthlyPayment: 300.57,
	}
	text, err := c.Compose(context.Background(), "yes", convo, Payload{
		Action: ActionLoanDecision,
		Data:   map[string]any{"application": approved},
	})
	if err != nil {
		t.Fatalf("Compose error: %v", err)
	}
	if !strings.Contains(text, "approved") || !strings.Contains(text, "LOAN-ABC12345") {
		t.Errorf("Approved decision text wrong: %q", text)
	}

	declined := domain.LoanApplication{ApplicationID: "LOAN-DEF67890", Status: domain.LoanStatusDeclined}
	text, err = c.Compose(context.Background(), "yes", convo, Payload{
		Action: ActionLoanDecision,
		Data:   map[string]any{"application": declined},
	})
	if err != nil {
		t.Fatalf("Compose error: %v", err)
	}
	if !strings.Contains(text, "declined") {
		t.Errorf("Declined decision text wrong: %q", text)
	}
}

func TestScrub(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"plain text stays", "plain text stays"},
		{"cost is $100 or 5%", "cost is 100 or 5"},
		{"ok: list (1), [2] {3} \"x\"?", "ok: list (1), [2] {3} \"x\"?"},
		{"no emoji ✨ here", "no emoji  here"},
	}
	for _, tt := range tests {
		if got := Scrub(tt.in); got != tt.want {
			t.Errorf("Scrub(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestTemplateComposerUnknownAction(t *testing.T) {
	c := TemplateComposer{}
	convo := domain.NewConversationContext("s1", "u1")

	text, err := c.Compose(context.Background(), "hm", convo, Payload{Action: "no_such_action"})
	if err != nil {
		t.Fatalf("Compose error: %v", err)
	}
	if text == "" {
		t.Error("Unknown action must still render a usable reply")
	}
}
