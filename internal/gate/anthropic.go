package gate

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/landseer/landseer/internal/config"
)

type anthropicGate struct {
	client  anthropic.Client
	model   string
	timeout time.Duration
}

func newAnthropicGate(cfg config.LLMConfig) (*anthropicGate, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("anthropic API key required")
	}

	opts := []option.RequestOption{option.WithAPIKey(cfg.APIKey)}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}

	model := cfg.Model
	if model == "" {
		model = string(anthropic.ModelClaudeSonnet4_20250514)
	}

	return &anthropicGate{
		client:  anthropic.NewClient(opts...),
		model:   model,
		timeout: cfg.Timeout,
	}, nil
}

func (g *anthropicGate) Enabled() bool { return true }

func (g *anthropicGate) Judge(ctx context.Context, land Land, page Page) (Verdict, string, error) {
	if g.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, g.timeout)
		defer cancel()
	}

	system, user := buildPrompt(land, page)

	resp, err := g.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     anthropic.Model(g.model),
		MaxTokens: 16,
		System:    []anthropic.TextBlockParam{{Text: system}},
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(user)),
		},
	})
	if err != nil {
		return Unknown, g.model, fmt.Errorf("message: %w", err)
	}

	var answer strings.Builder
	for _, block := range resp.Content {
		if block.Type == "text" {
			answer.WriteString(block.Text)
		}
	}

	model := string(resp.Model)
	if model == "" {
		model = g.model
	}
	return parseVerdict(answer.String()), model, nil
}
