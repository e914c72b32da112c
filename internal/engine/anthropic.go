package engine

import (
	"context"
	"fmt"
	"strings"

	anthropic "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
)

const (
	defaultAnthropicModel = "claude-3-5-haiku-latest"
	anthropicMaxTokens    = 1024
)

// AnthropicGenerator generates text with the Anthropic Messages API.
type AnthropicGenerator struct {
	client anthropic.Client
	model  string
}

// NewAnthropic creates an AnthropicGenerator. Model names that are not
// Claude models, such as the gemini default, are replaced.
func NewAnthropic(apiKey, model, baseURL string) *AnthropicGenerator {
	if !strings.HasPrefix(model, "claude") {
		model = defaultAnthropicModel
	}
	opts := []option.RequestOption{
		option.WithAPIKey(apiKey),
		option.WithMaxRetries(0),
	}
	if baseURL != "" {
		opts = append(opts, option.WithBaseURL(baseURL))
	}
	return &AnthropicGenerator{client: anthropic.NewClient(opts...), model: model}
}

func (g *AnthropicGenerator) GenerateText(ctx context.Context, prompt string) (string, error) {
	msg, err := g.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     anthropic.Model(g.model),
		MaxTokens: anthropicMaxTokens,
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(prompt)),
		},
	})
	if err != nil {
		return "", fmt.Errorf("anthropic: %w", err)
	}

	var b strings.Builder
	for _, c := range msg.Content {
		if c.Type == "text" {
			b.WriteString(c.Text)
		}
	}
	if b.Len() == 0 {
		return "", fmt.Errorf("anthropic: empty response")
	}
	return b.String(), nil
}
