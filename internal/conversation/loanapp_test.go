package conversation

import (
	"testing"

	"github.com/sukrithpvs/HSBC/internal/domain"
	"github.com/sukrithpvs/HSBC/internal/nlu"
)

func TestEvaluateLoan(t *testing.T) {
	tests := []struct {
		name   string
		income float64
		amount float64
		want   string
	}{
		{"within ratio", 5500, 15000, domain.LoanStatusApproved},
		{"ratio too high", 5500, 500000, domain.LoanStatusDeclined},
		{"income too low", 2500, 5000, domain.LoanStatusDeclined},
		{"zero income", 0, 1000, domain.LoanStatusDeclined},
		{"boundary ratio", 5000, 18000, domain.LoanStatusApproved}, // 18000/12/5000 = 0.3 exactly
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := evaluateLoan(tt.income, tt.amount)
			if got.Status != tt.want {
				t.Errorf("evaluateLoan(%v, %v) = %s, want %s", tt.income, tt.amount, got.Status, tt.want)
			}
			if tt.want == domain.LoanStatusApproved {
				if got.TermMonths != 60 || got.InterestRate != 7.5 {
					t.Errorf("Approved terms wrong: %+v", got)
				}
				if got.MonthlyPayment <= tt.amount/60 {
					t.Errorf("Monthly payment %v must exceed the interest-free installment", got.MonthlyPayment)
				}
			}
			if tt.want == domain.LoanStatusDeclined && got.MonthlyPayment != 0 {
				t.Errorf("Declined application must carry no terms: %+v", got)
			}
		})
	}
}

func TestParseLoanAmount(t *testing.T) {
	tests := []struct {
		utterance string
		entities  map[string]string
		want      float64
	}{
		{"15000", nil, 15000},
		{"$15,000", nil, 15000},
		{" 475.50 ", nil, 475.50},
		{"I need a loan of 15000", nil, 15000},
		{"I need a loan of 15000", map[string]string{"amount": "150"}, 15000}, // clipped entity must lose to the utterance
		{"a loan of about $25,000 please", nil, 25000},
		{"a loan of 500", map[string]string{"amount": "500"}, 500},
		{"I need fifteen grand", map[string]string{"amount": "15000"}, 15000},
		{"no idea", nil, 0},
		{"-500", nil, 0},
	}
	for _, tt := range tests {
		var analysis *nlu.Analysis
		if tt.entities != nil {
			analysis = &nlu.Analysis{Entities: tt.entities}
		}
		if got := parseLoanAmount(tt.utterance, analysis); got != tt.want {
			t.Errorf("parseLoanAmount(%q) = %v, want %v", tt.utterance, got, tt.want)
		}
	}
}

func TestNormalizeDOB(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"1990-01-01", "1990-01-01"},
		{"01/01/1990", "1990-01-01"},
		{"1/1/1990", "1990-01-01"},
		{"15/06/1985", "1985-06-15"},
		{"garbage", "garbage"},
		{"1/1/90", "1/1/90"}, // two-digit year is left alone
	}
	for _, tt := range tests {
		if got := normalizeDOB(tt.in); got != tt.want {
			t.Errorf("normalizeDOB(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestMatchCard(t *testing.T) {
	cards := []domain.Card{
		{CardID: "card_001", CardNumber: "4532-1234-5678-9012"},
		{CardID: "card_002", CardNumber: "5678-9012-3456-7890"},
	}

	tests := []struct {
		utterance string
		want      string // card ID, or "" for no match
	}{
		{"1", "card_001"},
		{"2", "card_002"},
		{"3", ""},
		{"0", ""},
		{"9012", "card_001"},
		{"the card ending 7890", "card_002"},
		{"yes", ""}, // ambiguous with two candidates
		{"the blue one", ""},
	}
	for _, tt := range tests {
		got := matchCard(tt.utterance, cards)
		switch {
		case tt.want == "" && got != nil:
			t.Errorf("matchCard(%q) = %s, want no match", tt.utterance, got.CardID)
		case tt.want != "" && (got == nil || got.CardID != tt.want):
			t.Errorf("matchCard(%q) = %v, want %s", tt.utterance, got, tt.want)
		}
	}

	// An affirmative resolves only a single unambiguous candidate.
	single := cards[:1]
	if got := matchCard("yes", single); got == nil || got.CardID != "card_001" {
		t.Errorf("matchCard(yes, single) = %v, want card_001", got)
	}
}

func TestIsAffirmative(t *testing.T) {
	for _, yes := range []string{"yes", "Yes please", "confirm", "ok", "okay", "1", "block it"} {
		if !isAffirmative(yes) {
			t.Errorf("isAffirmative(%q) = false, want true", yes)
		}
	}
	for _, no := range []string{"no", "cancel", "never mind", "stop"} {
		if isAffirmative(no) {
			t.Errorf("isAffirmative(%q) = true, want false", no)
		}
	}
}
