package negotiation

// Per-style reduction-factor sequences applied to the asking price, indexed
// by round. Each sequence is monotonically decreasing; past the end the
// offer drops to the floor.
var concessionSteps = map[Style][]float64{
	StyleStandard:   {0.95, 0.90, 0.85, 0.80, 0.75},
	StylePatient:    {0.95, 0.90, 0.85, 0.80, 0.75, 0.70, 0.65, 0.60},
	StyleAggressive: {0.90, 0.80, 0.75},
	StylePolite:     {0.93, 0.87, 0.82, 0.77, 0.73},
}

const (
	// Buffer over the floor when countering a below-floor offer. Aggressive
	// buyers get a bigger cushion so the agent doesn't capitulate.
	aggressiveBuffer = 1.10
	standardBuffer   = 1.05

	// An offer within 1% of the floor is treated as the final offer.
	finalOfferWindow = 1.01
)

// CounterOffer computes the seller's next price. buyerOffer of 0 means the
// buyer proposed no number this turn. The result is always clamped to
// [floor, asking].
func CounterOffer(asking, floor float64, round int, style Style, buyerOffer float64) float64 {
	if buyerOffer > 0 {
		if buyerOffer >= floor {
			return clampOffer((asking+buyerOffer)/2, floor, asking)
		}
		buffer := standardBuffer
		if style == StyleAggressive {
			buffer = aggressiveBuffer
		}
		return clampOffer(floor*buffer, floor, asking)
	}

	steps, ok := concessionSteps[style]
	if !ok {
		steps = concessionSteps[StyleStandard]
	}
	if round < len(steps) {
		return clampOffer(asking*steps[round], floor, asking)
	}
	return floor
}

// IsFinalOffer reports whether the computed offer ends the concession
// phase: either it sits within 1% of the floor, or the buyer's style has
// used up its rounds.
func IsFinalOffer(offer, floor float64, round int, style Style) bool {
	return offer <= floor*finalOfferWindow || round >= FinalRoundThreshold(style)
}

// FinalRoundThreshold is the round at which a counter-offer turn moves the
// session to its final offer.
func FinalRoundThreshold(style Style) int {
	switch style {
	case StyleAggressive:
		return 2
	case StylePatient:
		return 4
	default:
		return 3
	}
}

// MaxRounds caps the whole conversation: reaching it forces final-offer
// framing regardless of intent.
func MaxRounds(style Style) int {
	switch style {
	case StylePatient:
		return 8
	case StyleAggressive:
		return 3
	default:
		return 5
	}
}

func clampOffer(v, floor, asking float64) float64 {
	if v < floor {
		return floor
	}
	if v > asking {
		return asking
	}
	return v
}
