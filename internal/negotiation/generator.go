package negotiation

import "context"

// Generator is the external language-generation capability. Output is
// best-effort natural language and is treated as untrusted: prices and
// structured fields are always re-parsed, never taken verbatim. Every call
// site has a deterministic fallback, so a nil or failing Generator degrades
// quality but never breaks a turn.
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}
