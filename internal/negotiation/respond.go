package negotiation

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"strconv"
	"strings"

	"github.com/autoguardian/negotiator/internal/listing"
)

// Fallback phrase pools. The variant is picked by round number, keeping the
// deterministic path deterministic while avoiding word-for-word repetition
// across turns.
var (
	positiveOpeners = []string{
		"I understand you're looking for a good deal!",
		"That's a reasonable request.",
		"I appreciate your interest in this vehicle.",
		"Let me see what I can do for you.",
		"I want to find a price that works for both of us.",
	}
	featureHighlights = []string{
		"This vehicle has been well-maintained with recent upgrades.",
		"The additional features I've added significantly increase the value.",
		"These improvements ensure better performance and reliability.",
		"The recent maintenance work saves you money in the long run.",
	}
	closingPhrases = []string{
		"This is my best price considering all the improvements.",
		"I think this is a fair price for the condition and features.",
		"Given the recent upgrades, this price offers excellent value.",
		"I believe this price reflects the true value of the vehicle.",
	}
)

var whitespaceRun = regexp.MustCompile(`\s+`)

var contactVocabulary = []string{"name", "phone", "contact", "details", "number", "email"}

// ReplyContext carries everything the response generator needs for one turn.
type ReplyContext struct {
	Listing      listing.Listing
	Message      string
	Intent       Intent
	CurrentOffer float64
	Round        int
	IsFinal      bool
	Style        Style
	BuyerOffer   float64
}

// ResponseGenerator produces the seller agent's reply. The language model
// is the primary path; a templated deterministic path guarantees a reply
// for every branch when the model is unavailable.
type ResponseGenerator struct {
	gen    Generator
	logger *slog.Logger
}

func NewResponseGenerator(gen Generator, logger *slog.Logger) *ResponseGenerator {
	return &ResponseGenerator{gen: gen, logger: logger}
}

// Reply never fails; model errors degrade to the template path.
func (g *ResponseGenerator) Reply(ctx context.Context, rc ReplyContext) string {
	if g.gen != nil {
		status := replyStatusOpen
		if rc.IsFinal {
			status = replyStatusFinal
		}
		floor := FormatPrice(rc.Listing.FloorPrice)
		prompt := fmt.Sprintf(replyPrompt,
			vehicleLabel(rc.Listing),
			FormatPrice(rc.Listing.AskingPrice),
			floor,
			FormatPrice(rc.CurrentOffer),
			rc.Message,
			floor, floor,
			FormatPrice(rc.CurrentOffer),
			status,
		)

		raw, err := g.gen.Generate(ctx, prompt)
		if err == nil && strings.TrimSpace(raw) != "" {
			return cleanReply(raw, rc.CurrentOffer)
		}
		if err != nil {
			g.logger.Warn("reply generation failed, using template fallback", "error", err, "intent", string(rc.Intent))
		}
	}
	return g.templateReply(rc)
}

// RequestsContact reports whether a reply asks the buyer for contact
// details. The engine uses it as a safety net: once the agent has asked,
// the session must be at its final offer.
func RequestsContact(reply string) bool {
	lower := strings.ToLower(reply)
	for _, word := range contactVocabulary {
		if strings.Contains(lower, word) {
			return true
		}
	}
	return false
}

// cleanReply collapses whitespace and makes sure the buyer always sees a
// number, since model output is untrusted and occasionally omits the price.
func cleanReply(reply string, currentOffer float64) string {
	reply = strings.TrimSpace(whitespaceRun.ReplaceAllString(reply, " "))
	if !strings.Contains(reply, "Rs.") && currentOffer > 0 {
		reply = fmt.Sprintf("%s My current offer is %s.", reply, FormatPrice(currentOffer))
	}
	return reply
}

func (g *ResponseGenerator) templateReply(rc ReplyContext) string {
	asking := rc.Listing.AskingPrice
	floor := rc.Listing.FloorPrice
	features := rc.Listing.Features
	pick := func(pool []string) string { return pool[rc.Round%len(pool)] }

	var parts []string
	if rc.Round == 0 || rc.Intent == IntentPriceInquiry {
		parts = append(parts, pick(positiveOpeners))
	}

	switch rc.Intent {
	case IntentPriceInquiry:
		if rc.Round == 0 {
			parts = append(parts, fmt.Sprintf("The asking price for this vehicle is %s.", FormatPrice(asking)))
			if len(features) > 0 {
				parts = append(parts, fmt.Sprintf("This price includes valuable features like: %s.", joinFeatures(features, 3)))
			}
		} else {
			parts = append(parts, fmt.Sprintf("I can offer it for %s.", FormatPrice(rc.CurrentOffer)))
		}

	case IntentPriceReduction:
		if rc.BuyerOffer > 0 && rc.BuyerOffer < floor*0.8 {
			parts = append(parts, fmt.Sprintf("I understand you're looking for a good deal, but %s is quite low.", FormatPrice(rc.BuyerOffer)))
			if len(features) > 0 {
				parts = append(parts, fmt.Sprintf("Considering that I've added %s, the value is much higher.", joinFeatures(features, 2)))
			}
			parts = append(parts, fmt.Sprintf("I can come down to %s.", FormatPrice(rc.CurrentOffer)))
		} else {
			parts = append(parts, fmt.Sprintf("I can offer you %s.", FormatPrice(rc.CurrentOffer)))
			if len(features) > 0 && rc.Round > 1 {
				parts = append(parts, pick(featureHighlights))
			}
		}
		if rc.IsFinal {
			parts = append(parts, fmt.Sprintf("This is my final price of %s.", FormatPrice(rc.CurrentOffer)))
			parts = append(parts, pick(closingPhrases))
		}

	case IntentAgreement:
		return fmt.Sprintf("Great! Let's make a deal at %s. I need your name and phone number to finalize.", FormatPrice(rc.CurrentOffer))

	case IntentRejection:
		if rc.IsFinal {
			parts = append(parts, "I understand this might not be the right fit for you.")
			parts = append(parts, fmt.Sprintf("This is my final price of %s.", FormatPrice(rc.CurrentOffer)))
			parts = append(parts, "If you change your mind, feel free to get back to me!")
		} else {
			parts = append(parts, "I understand. Let me make you a better offer.")
			parts = append(parts, fmt.Sprintf("How about %s?", FormatPrice(rc.CurrentOffer)))
			if len(features) > 0 {
				parts = append(parts, fmt.Sprintf("This includes all the improvements: %s.", joinFeatures(features, len(features))))
			}
		}

	default:
		parts = append(parts, fmt.Sprintf("The current offer is %s.", FormatPrice(rc.CurrentOffer)))
		if len(features) > 0 {
			parts = append(parts, fmt.Sprintf("This vehicle comes with: %s.", joinFeatures(features, len(features))))
		}
	}

	if !rc.IsFinal && rc.Intent != IntentAgreement {
		parts = append(parts, "What do you think about this price?")
	}
	return strings.Join(parts, " ")
}

func joinFeatures(features []string, limit int) string {
	if len(features) > limit {
		features = features[:limit]
	}
	return strings.Join(features, ", ")
}

func vehicleLabel(l listing.Listing) string {
	var parts []string
	if l.Vehicle.Year > 0 {
		parts = append(parts, strconv.Itoa(l.Vehicle.Year))
	}
	if l.Vehicle.Make != "" {
		parts = append(parts, l.Vehicle.Make)
	}
	if l.Vehicle.Model != "" {
		parts = append(parts, l.Vehicle.Model)
	}
	if len(parts) == 0 {
		return "vehicle"
	}
	return strings.Join(parts, " ")
}
