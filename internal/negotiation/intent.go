package negotiation

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
)

// Intent is the closed vocabulary of buyer-message classifications.
type Intent string

const (
	IntentPriceInquiry   Intent = "price_inquiry"
	IntentPriceReduction Intent = "price_reduction"
	IntentAgreement      Intent = "agreement"
	IntentRejection      Intent = "rejection"
	IntentGeneral        Intent = "general"
)

// IntentResult is the classifier's verdict on a single buyer message.
// ProposedFinalPrice is 0 when the buyer proposed no closing number.
type IntentResult struct {
	Intent             Intent
	ReadyToFinalize    bool
	WantsFinalPrice    bool
	ShouldMoveToFinal  bool
	ProposedFinalPrice float64
}

// IntentClassifier asks the language model for a closed-vocabulary verdict.
// When the model is unavailable or the response unparsable it falls back to
// a neutral result: the session still works on the price extractor alone.
type IntentClassifier struct {
	gen    Generator
	logger *slog.Logger
}

func NewIntentClassifier(gen Generator, logger *slog.Logger) *IntentClassifier {
	return &IntentClassifier{gen: gen, logger: logger}
}

type intentResponse struct {
	Intent             string   `json:"intent"`
	IsReadyToFinalize  bool     `json:"is_ready_to_finalize"`
	WantsFinalPrice    bool     `json:"wants_final_price"`
	ShouldMoveToFinal  bool     `json:"should_move_to_final"`
	ProposedFinalPrice *float64 `json:"proposed_final_price"`
}

// Classify never fails: every error path degrades to the neutral fallback.
func (c *IntentClassifier) Classify(ctx context.Context, message string, history []Message) IntentResult {
	fallback := IntentResult{Intent: IntentGeneral}
	if c.gen == nil {
		return fallback
	}

	prompt := fmt.Sprintf(intentPrompt, recentContext(history, 4), message)
	raw, err := c.gen.Generate(ctx, prompt)
	if err != nil {
		c.logger.Warn("intent classification failed, using fallback", "error", err)
		return fallback
	}

	var resp intentResponse
	if err := json.Unmarshal([]byte(stripFences(raw)), &resp); err != nil {
		c.logger.Warn("unparsable intent response, using fallback", "error", err, "raw", raw)
		return fallback
	}

	result := IntentResult{
		Intent:            parseIntent(resp.Intent),
		ReadyToFinalize:   resp.IsReadyToFinalize,
		WantsFinalPrice:   resp.WantsFinalPrice,
		ShouldMoveToFinal: resp.ShouldMoveToFinal,
	}
	if resp.ProposedFinalPrice != nil && *resp.ProposedFinalPrice > 0 {
		result.ProposedFinalPrice = *resp.ProposedFinalPrice
	}
	return result
}

func parseIntent(s string) Intent {
	switch Intent(strings.TrimSpace(strings.ToLower(s))) {
	case IntentPriceInquiry:
		return IntentPriceInquiry
	case IntentPriceReduction:
		return IntentPriceReduction
	case IntentAgreement:
		return IntentAgreement
	case IntentRejection:
		return IntentRejection
	default:
		return IntentGeneral
	}
}

// recentContext renders the last n turns for the prompt.
func recentContext(history []Message, n int) string {
	if len(history) > n {
		history = history[len(history)-n:]
	}
	var b strings.Builder
	for _, msg := range history {
		who := "Seller"
		if msg.Sender == SenderBuyer {
			who = "Customer"
		}
		fmt.Fprintf(&b, "%s: %s\n", who, msg.Text)
	}
	return b.String()
}

// stripFences removes markdown code fences some models wrap JSON in.
func stripFences(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	lines := strings.Split(s, "\n")
	if len(lines) < 2 {
		return s
	}
	lines = lines[1:]
	if strings.HasPrefix(strings.TrimSpace(lines[len(lines)-1]), "```") {
		lines = lines[:len(lines)-1]
	}
	return strings.TrimSpace(strings.Join(lines, "\n"))
}
