package negotiation

import "strings"

// Style classifies a buyer's negotiation behaviour. It tunes how many
// rounds are offered and how steeply the price concedes.
type Style string

const (
	StyleAggressive Style = "aggressive"
	StylePatient    Style = "patient"
	StylePolite     Style = "polite"
	StyleStandard   Style = "standard"
)

var (
	aggressiveMarkers = []string{"final", "best price", "lowest", "rock bottom", "take it or leave it"}
	patientMarkers    = []string{"why", "because", "what about", "tell me", "explain", "condition", "maintenance"}
	politeMarkers     = []string{"please", "thank you", "appreciate", "understand", "respect"}
)

type styleRule struct {
	style   Style
	matches func(buyer []Message) bool
}

// styleRules is evaluated top to bottom; the first match wins.
var styleRules = []styleRule{
	{
		// Ultimatum language in either of the two most recent messages.
		style: StyleAggressive,
		matches: func(buyer []Message) bool {
			recent := buyer
			if len(recent) > 2 {
				recent = recent[len(recent)-2:]
			}
			return anyMessageContains(recent, aggressiveMarkers)
		},
	},
	{
		// Inquisitive buyers who stay past three messages enjoy the process.
		style: StylePatient,
		matches: func(buyer []Message) bool {
			return len(buyer) > 3 && anyMessageContains(buyer, patientMarkers)
		},
	},
	{
		style: StylePolite,
		matches: func(buyer []Message) bool {
			return anyMessageContains(buyer, politeMarkers)
		},
	},
}

// ProfileStyle classifies the buyer from the full conversation history.
func ProfileStyle(history []Message) Style {
	var buyer []Message
	for _, msg := range history {
		if msg.Sender == SenderBuyer {
			buyer = append(buyer, msg)
		}
	}
	if len(buyer) == 0 {
		return StyleStandard
	}
	for _, rule := range styleRules {
		if rule.matches(buyer) {
			return rule.style
		}
	}
	return StyleStandard
}

func anyMessageContains(msgs []Message, markers []string) bool {
	for _, msg := range msgs {
		text := strings.ToLower(msg.Text)
		for _, marker := range markers {
			if strings.Contains(text, marker) {
				return true
			}
		}
	}
	return false
}
