// Package nlu provides intent resolution and response composition. Both
// concerns are expressed as a single interface with two implementations: a
// primary one backed by an external language-model capability, and a
// deterministic rule/template fallback used whenever the primary fails.
package nlu

import (
	"context"
	"errors"
	"regexp"

	"github.com/sukrithpvs/HSBC/internal/domain"
)

var (
	// ErrUpstreamUnavailable indicates the external capability could not be
	// reached or returned a non-success status.
	ErrUpstreamUnavailable = errors.New("nlu upstream unavailable")

	// ErrMalformedResponse indicates the capability answered with output
	// that does not conform to the expected contract.
	ErrMalformedResponse = errors.New("nlu response malformed")
)

// Analysis is the result of classifying one utterance.
type Analysis struct {
	Intent        domain.Intent     `json:"intent"`
	Entities      map[string]string `json:"entities"`
	ContextSwitch bool              `json:"context_switch"`
	Confidence    float64           `json:"confidence"`
	Reasoning     string            `json:"reasoning"`
}

// Resolver converts a raw utterance plus the current conversation context
// into a classified intent with entities and a confidence score.
type Resolver interface {
	Resolve(ctx context.Context, utterance string, convo *domain.ConversationContext) (*Analysis, error)
}

// Payload is the semantic "action + data" description of what a response
// should convey.
type Payload struct {
	Action string
	Data   map[string]any
}

// Composer renders a payload into user-facing text.
type Composer interface {
	Compose(ctx context.Context, utterance string, convo *domain.ConversationContext, payload Payload) (string, error)
}

// Composed text is reduced to word characters, whitespace and a fixed
// punctuation set before display, regardless of what the capability emitted.
var scrubPattern = regexp.MustCompile(`[^\w\s\-.,!?:;()\[\]{}"]`)

// Scrub strips disallowed characters from composed text.
func Scrub(s string) string {
	return scrubPattern.ReplaceAllString(s, "")
}
