package negotiation

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"unicode"
)

var (
	emailPattern = regexp.MustCompile(`\b[A-Za-z0-9._%+-]+@[A-Za-z0-9.-]+\.[A-Za-z]{2,}\b`)
	// Local mobile/landline shapes with optional +94 or leading zero,
	// matched against the message with spaces and dashes removed.
	phonePattern = regexp.MustCompile(`(?:\+94|0)?[1-9][0-9]{8}`)
)

// ContactExtractor detects when a buyer hands over their details. The
// language model is the primary path; pattern matching is the fallback.
// Both are biased towards false negatives: guessing contact details would
// finalize a sale that isn't agreed.
type ContactExtractor struct {
	gen    Generator
	logger *slog.Logger
}

func NewContactExtractor(gen Generator, logger *slog.Logger) *ContactExtractor {
	return &ContactExtractor{gen: gen, logger: logger}
}

type contactResponse struct {
	Name           *string `json:"name"`
	Email          *string `json:"email"`
	Phone          *string `json:"phone"`
	HasContactInfo bool    `json:"has_contact_info"`
}

// Extract returns the buyer's contact details and whether any were found.
// A well-formed model answer is authoritative either way; the pattern
// fallback only runs when the model is absent, failing, or unparsable.
func (e *ContactExtractor) Extract(ctx context.Context, message string) (Contact, bool) {
	if e.gen != nil {
		if contact, found, answered := e.extractWithModel(ctx, message); answered {
			return contact, found
		}
	}
	return extractContactPatterns(message)
}

func (e *ContactExtractor) extractWithModel(ctx context.Context, message string) (contact Contact, found, answered bool) {
	raw, err := e.gen.Generate(ctx, fmt.Sprintf(contactPrompt, message))
	if err != nil {
		e.logger.Warn("contact extraction failed, falling back to patterns", "error", err)
		return Contact{}, false, false
	}

	var resp contactResponse
	if err := json.Unmarshal([]byte(stripFences(raw)), &resp); err != nil {
		e.logger.Warn("unparsable contact response, falling back to patterns", "error", err, "raw", raw)
		return Contact{}, false, false
	}
	if !resp.HasContactInfo {
		return Contact{}, false, true
	}

	contact = Contact{
		Name:  strOr(resp.Name, "Customer"),
		Email: strOr(resp.Email, ""),
		Phone: strOr(resp.Phone, ""),
	}
	return contact, true, true
}

// extractContactPatterns is the deterministic fallback: an email shape, a
// phone shape, and the leading words before any digit or @ as a candidate
// name. Without an email or phone it only accepts two or more capitalized
// name words, so ordinary chat ("what about the condition") never reads as
// contact details.
func extractContactPatterns(message string) (Contact, bool) {
	email := emailPattern.FindString(message)

	compact := strings.NewReplacer(" ", "", "-", "").Replace(message)
	phone := phonePattern.FindString(compact)

	var nameWords []string
	for _, word := range strings.Fields(message) {
		if strings.Contains(word, "@") || containsDigit(word) || len(word) < 2 {
			break
		}
		nameWords = append(nameWords, strings.Trim(word, ",.;:"))
		if len(nameWords) == 3 {
			break
		}
	}
	name := strings.Join(nameWords, " ")

	if email == "" && phone == "" && !looksLikeName(nameWords) {
		return Contact{}, false
	}
	if name == "" {
		name = "Customer"
	}
	return Contact{Name: name, Email: email, Phone: phone}, true
}

func looksLikeName(words []string) bool {
	if len(words) < 2 {
		return false
	}
	for _, w := range words {
		r := []rune(w)
		if len(r) == 0 || !unicode.IsUpper(r[0]) {
			return false
		}
	}
	return true
}

func containsDigit(s string) bool {
	for _, r := range s {
		if unicode.IsDigit(r) {
			return true
		}
	}
	return false
}

func strOr(s *string, fallback string) string {
	if s == nil || strings.TrimSpace(*s) == "" {
		return fallback
	}
	return strings.TrimSpace(*s)
}
