package gate

import (
	"context"
	"fmt"
	"time"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"github.com/landseer/landseer/internal/config"
)

const openRouterBaseURL = "https://openrouter.ai/api/v1"

// openaiGate serves both OpenAI and any chat-completions compatible
// endpoint such as OpenRouter, selected through the base URL.
type openaiGate struct {
	client  openai.Client
	model   string
	timeout time.Duration
}

func newOpenAIGate(cfg config.LLMConfig) (*openaiGate, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("%s API key required", cfg.Provider)
	}

	opts := []option.RequestOption{option.WithAPIKey(cfg.APIKey)}

	baseURL := cfg.BaseURL
	if baseURL == "" && cfg.Provider == "openrouter" {
		baseURL = openRouterBaseURL
	}
	if baseURL != "" {
		opts = append(opts, option.WithBaseURL(baseURL))
	}

	model := cfg.Model
	if model == "" {
		model = string(openai.ChatModelGPT4oMini)
	}

	return &openaiGate{
		client:  openai.NewClient(opts...),
		model:   model,
		timeout: cfg.Timeout,
	}, nil
}

func (g *openaiGate) Enabled() bool { return true }

func (g *openaiGate) Judge(ctx context.Context, land Land, page Page) (Verdict, string, error) {
	if g.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, g.timeout)
		defer cancel()
	}

	system, user := buildPrompt(land, page)

	resp, err := g.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model: openai.ChatModel(g.model),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(system),
			openai.UserMessage(user),
		},
		MaxTokens:   openai.Int(16),
		Temperature: openai.Float(0),
	})
	if err != nil {
		return Unknown, g.model, fmt.Errorf("chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return Unknown, g.model, fmt.Errorf("no choices in response")
	}

	model := resp.Model
	if model == "" {
		model = g.model
	}
	return parseVerdict(resp.Choices[0].Message.Content), model, nil
}
