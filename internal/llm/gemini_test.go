package llm

import (
	"context"
	"testing"
)

func TestNewGemini_RequiresAPIKey(t *testing.T) {
	if _, err := NewGemini(context.Background(), "", "gemini-2.0-flash"); err == nil {
		t.Fatal("expected error for missing api key")
	}
	if _, err := NewGemini(context.Background(), "   ", "gemini-2.0-flash"); err == nil {
		t.Fatal("expected error for blank api key")
	}
}
