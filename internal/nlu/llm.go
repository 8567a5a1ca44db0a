package nlu

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/sukrithpvs/HSBC/internal/domain"
)

// ClientConfig holds configuration for the language-model client.
type ClientConfig struct {
	BaseURL string
	APIKey  string
	Model   string
	Timeout time.Duration
}

// Client talks to an OpenAI-compatible chat-completions endpoint and
// implements both Resolver and Composer.
type Client struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
	model      string
	logger     *slog.Logger
}

// NewClient creates a language-model client.
func NewClient(cfg ClientConfig, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &Client{
		httpClient: &http.Client{Timeout: timeout},
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:     cfg.APIKey,
		model:      cfg.Model,
		logger:     logger,
	}
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
	MaxTokens   int           `json:"max_tokens"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

func (c *Client) complete(ctx context.Context, prompt string, temperature float64, maxTokens int) (string, error) {
	body, err := json.Marshal(chatRequest{
		Model:       c.model,
		Messages:    []chatMessage{{Role: "user", Content: prompt}},
		Temperature: temperature,
		MaxTokens:   maxTokens,
	})
	if err != nil {
		return "", fmt.Errorf("marshal chat request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("build chat request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrUpstreamUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		payload, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return "", fmt.Errorf("%w: status %d: %s", ErrUpstreamUnavailable, resp.StatusCode, strings.TrimSpace(string(payload)))
	}

	var parsed chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return "", fmt.Errorf("%w: decode completion: %v", ErrMalformedResponse, err)
	}
	if len(parsed.Choices) == 0 {
		return "", fmt.Errorf("%w: empty choices", ErrMalformedResponse)
	}
	return parsed.Choices[0].Message.Content, nil
}

func historyText(convo *domain.ConversationContext, n int) string {
	turns := convo.RecentTurns(n)
	lines := make([]string, 0, len(turns))
	for _, t := range turns {
		lines = append(lines, t.Role+": "+t.Message)
	}
	return strings.Join(lines, "\n")
}

func collectedDataJSON(convo *domain.ConversationContext) string {
	if len(convo.CollectedData) == 0 {
		return "{}"
	}
	data, err := json.Marshal(convo.CollectedData)
	if err != nil {
		return "{}"
	}
	return string(data)
}

const analysisPromptFormat = `You are an expert banking conversation analyst. Analyze the user message and provide structured output.

CONVERSATION CONTEXT:
- Current Intent: %s
- Current State: %s
- Collected Data: %s
- Recent History: %s

USER MESSAGE: %q

AVAILABLE INTENTS:
- loan_application: User wants to apply for a new loan
- loan_inquiry: User wants to check existing loan applications or loan status
- card_blocking: User wants to block/freeze a card
- card_application: User wants to apply for a new card
- card_inquiry: User asking about existing cards or card status
- balance_inquiry: User wants to check account balance
- transaction_history: User wants to see transactions
- general_inquiry: General questions
- greeting: Hello, hi, good morning etc.
- goodbye: Bye, see you later etc.

Respond ONLY with valid JSON:
{
"intent": "intent_name",
"entities": {
"amount": "extracted_amount_if_any",
"card_type": "debit/credit_if_mentioned",
"loan_purpose": "purpose_if_mentioned",
"card_last_4": "last_4_digits_if_mentioned"
},
"context_switch": true/false,
"confidence": 0.0-1.0,
"reasoning": "brief_explanation"
}`

// Resolve classifies an utterance via the language model. The last three
// history turns, the current intent, state and collected data are supplied
// as context. Non-conforming output is an ErrMalformedResponse.
func (c *Client) Resolve(ctx context.Context, utterance string, convo *domain.ConversationContext) (*Analysis, error) {
	currentIntent := "none"
	if convo.CurrentIntent != "" {
		currentIntent = string(convo.CurrentIntent)
	}

	prompt := fmt.Sprintf(analysisPromptFormat,
		currentIntent, convo.State, collectedDataJSON(convo), historyText(convo, 3), utterance)

	content, err := c.complete(ctx, prompt, 0.1, 300)
	if err != nil {
		return nil, err
	}

	var wire struct {
		Intent        string            `json:"intent"`
		Entities      map[string]string `json:"entities"`
		ContextSwitch bool              `json:"context_switch"`
		Confidence    float64           `json:"confidence"`
		Reasoning     string            `json:"reasoning"`
	}
	if err := json.Unmarshal([]byte(stripCodeFences(content)), &wire); err != nil {
		return nil, fmt.Errorf("%w: parse analysis: %v", ErrMalformedResponse, err)
	}

	intent, err := domain.ParseIntent(wire.Intent)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}
	if wire.Confidence < 0 || wire.Confidence > 1 {
		return nil, fmt.Errorf("%w: confidence %v out of range", ErrMalformedResponse, wire.Confidence)
	}

	// Empty-string entity values carry no information; discard them.
	entities := make(map[string]string, len(wire.Entities))
	for k, v := range wire.Entities {
		if v != "" {
			entities[k] = v
		}
	}

	return &Analysis{
		Intent:        intent,
		Entities:      entities,
		ContextSwitch: wire.ContextSwitch,
		Confidence:    wire.Confidence,
		Reasoning:     wire.Reasoning,
	}, nil
}

const composePromptFormat = `You are a professional AI Banking Assistant. Generate a helpful, conversational response.

CONVERSATION CONTEXT:
- Current Intent: %s
- Conversation State: %s
- Workflow Step: %s
- Collected Data: %s
- Recent History: %s

USER MESSAGE: %q

SYSTEM DATA: %s

RESPONSE GUIDELINES:
1. Be conversational, helpful, and professional
2. If collecting information, ask specific questions
3. If showing data, format it clearly with numbers and lists
4. Keep responses concise but informative
5. DO NOT use any emojis, symbols, or special characters
6. Use plain text formatting only
7. Use "Number:" for lists instead of bullets

Generate a natural, helpful response:`

// Compose renders a payload through the language model, supplying the last
// four history turns and the workflow position as context. The output is
// scrubbed before being returned.
func (c *Client) Compose(ctx context.Context, utterance string, convo *domain.ConversationContext, payload Payload) (string, error) {
	currentIntent := "none"
	if convo.CurrentIntent != "" {
		currentIntent = string(convo.CurrentIntent)
	}
	step := convo.WorkflowStep
	if step == "" {
		step = "none"
	}

	systemData := map[string]any{"action": payload.Action}
	for k, v := range payload.Data {
		systemData[k] = v
	}
	systemJSON, err := json.Marshal(systemData)
	if err != nil {
		return "", fmt.Errorf("marshal system data: %w", err)
	}

	prompt := fmt.Sprintf(composePromptFormat,
		currentIntent, convo.State, step, collectedDataJSON(convo),
		historyText(convo, 4), utterance, systemJSON)

	content, err := c.complete(ctx, prompt, 0.3, 500)
	if err != nil {
		return "", err
	}

	text := Scrub(strings.TrimSpace(content))
	if text == "" {
		return "", fmt.Errorf("%w: empty generation", ErrMalformedResponse)
	}
	return text, nil
}

// stripCodeFences removes a surrounding markdown code fence, which some
// models add around JSON output despite instructions.
func stripCodeFences(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}

var (
	_ Resolver = (*Client)(nil)
	_ Composer = (*Client)(nil)
)
