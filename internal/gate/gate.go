// Package gate asks an LLM whether a fetched page belongs in a land.
// The gate can only veto: a not_relevant verdict zeroes the lexicon
// score, anything else leaves it untouched.
package gate

import (
	"context"
	"fmt"
	"strings"

	"github.com/landseer/landseer/internal/config"
)

// Verdict is the gate's answer for one page.
type Verdict string

const (
	Relevant    Verdict = "relevant"
	NotRelevant Verdict = "not_relevant"
	// Unknown covers provider errors, timeouts and unparseable answers.
	// It never vetoes.
	Unknown Verdict = "unknown"
)

// Page is the material shown to the model.
type Page struct {
	URL      string
	Title    string
	Readable string
}

// Land describes the research project the page is judged against.
type Land struct {
	Name        string
	Description string
	Terms       []string
}

// Gate judges pages. Implementations must be safe for concurrent use.
type Gate interface {
	// Judge returns the verdict and the model identifier that produced
	// it. Errors are absorbed into Unknown by callers that cannot act
	// on them.
	Judge(ctx context.Context, land Land, page Page) (Verdict, string, error)
	Enabled() bool
}

// New builds the gate from configuration. A disabled or unconfigured
// gate judges everything Unknown.
func New(cfg config.LLMConfig) (Gate, error) {
	if !cfg.Enabled {
		return disabled{}, nil
	}
	switch cfg.Provider {
	case "openai", "openrouter":
		return newOpenAIGate(cfg)
	case "anthropic":
		return newAnthropicGate(cfg)
	default:
		return nil, fmt.Errorf("unknown llm provider %q", cfg.Provider)
	}
}

type disabled struct{}

func (disabled) Judge(context.Context, Land, Page) (Verdict, string, error) {
	return Unknown, "", nil
}

func (disabled) Enabled() bool { return false }

// maxExcerpt bounds how much readable text is sent to the model.
const maxExcerpt = 4000

func buildPrompt(land Land, page Page) (system, user string) {
	system = "You vet web pages for a research corpus. " +
		"Answer with a single word: RELEVANT if the page belongs to the research topic, " +
		"NOT_RELEVANT if it clearly does not. No other output."

	var b strings.Builder
	fmt.Fprintf(&b, "Research topic: %s\n", land.Name)
	if land.Description != "" {
		fmt.Fprintf(&b, "Description: %s\n", land.Description)
	}
	if len(land.Terms) > 0 {
		fmt.Fprintf(&b, "Key terms: %s\n", strings.Join(land.Terms, ", "))
	}
	fmt.Fprintf(&b, "\nPage URL: %s\nPage title: %s\n\nPage text:\n%s\n",
		page.URL, page.Title, excerpt(page.Readable, maxExcerpt))
	return system, b.String()
}

func excerpt(s string, max int) string {
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max])
}

// parseVerdict maps free-form model output onto a verdict. The negative
// form is checked first because it contains the positive one.
func parseVerdict(answer string) Verdict {
	normalized := strings.ToUpper(strings.TrimSpace(answer))
	switch {
	case strings.Contains(normalized, "NOT_RELEVANT"),
		strings.Contains(normalized, "NOT RELEVANT"),
		strings.Contains(normalized, "IRRELEVANT"):
		return NotRelevant
	case strings.Contains(normalized, "RELEVANT"):
		return Relevant
	default:
		return Unknown
	}
}
