package negotiation

import (
	"regexp"
	"strconv"
	"strings"
)

var (
	// "120k" / "120K" means thousands.
	kSuffixPattern = regexp.MustCompile(`(\d+(?:\.\d+)?)\s*[kK]\b`)
	// Plain amount with optional currency prefix, after thousands
	// separators are stripped.
	amountPattern = regexp.MustCompile(`(?:[Rr][Ss]\.?\s*)?(\d+(?:\.\d{1,2})?)`)
	// Seller replies always quote prices as "Rs. 18,500".
	sellerAmountPattern = regexp.MustCompile(`[Rr][Ss]\.?\s*([\d,]+(?:\.\d{1,2})?)`)
)

// ExtractPrice parses a free-text buyer message for a monetary offer.
// Absence of a price is a normal outcome, reported by the bool, never an
// error.
func ExtractPrice(message string) (float64, bool) {
	if m := kSuffixPattern.FindStringSubmatch(message); m != nil {
		if v, err := strconv.ParseFloat(m[1], 64); err == nil {
			return v * 1000, true
		}
	}

	cleaned := strings.ReplaceAll(message, ",", "")
	if m := amountPattern.FindStringSubmatch(cleaned); m != nil {
		if v, err := strconv.ParseFloat(m[1], 64); err == nil {
			return v, true
		}
	}

	return 0, false
}

// ExtractSellerPrice pulls the quoted amount out of a seller reply. Unlike
// ExtractPrice it requires the currency prefix, so vehicle years and phone
// numbers in the text are never mistaken for offers.
func ExtractSellerPrice(text string) (float64, bool) {
	m := sellerAmountPattern.FindStringSubmatch(text)
	if m == nil {
		return 0, false
	}
	v, err := strconv.ParseFloat(strings.ReplaceAll(m[1], ",", ""), 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

// FormatPrice renders an amount the way the seller agent quotes it,
// e.g. "Rs. 16,800".
func FormatPrice(v float64) string {
	s := strconv.FormatFloat(v, 'f', 0, 64)
	neg := strings.HasPrefix(s, "-")
	if neg {
		s = s[1:]
	}
	var b strings.Builder
	lead := len(s) % 3
	if lead > 0 {
		b.WriteString(s[:lead])
	}
	for i := lead; i < len(s); i += 3 {
		if b.Len() > 0 {
			b.WriteByte(',')
		}
		b.WriteString(s[i : i+3])
	}
	out := "Rs. " + b.String()
	if neg {
		out = "Rs. -" + b.String()
	}
	return out
}
