// Package engine puts the hosted and local language-model backends behind
// one single-shot text generation interface.
package engine

import (
	"context"
	"fmt"
	"strings"
)

// Generator produces text for a prompt. Implementations hold no
// conversation state between calls.
type Generator interface {
	GenerateText(ctx context.Context, prompt string) (string, error)
}

const (
	ProviderGemini     = "gemini"
	ProviderOpenRouter = "openrouter"
	ProviderOllama     = "ollama"
	ProviderAnthropic  = "anthropic"
)

// Config selects and configures a backend.
type Config struct {
	Provider          string
	Model             string
	GeminiAPIKey      string
	GeminiBaseURL     string
	OpenRouterAPIKey  string
	OpenRouterBaseURL string
	OllamaBaseURL     string
	AnthropicAPIKey   string
	AnthropicBaseURL  string
}

// New returns the Generator for cfg.Provider. It returns (nil, nil) when the
// selected hosted provider has no API key, which callers treat as "no model
// configured".
func New(cfg Config) (Generator, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.Provider)) {
	case "", ProviderGemini:
		if cfg.GeminiAPIKey == "" {
			return nil, nil
		}
		return NewGemini(cfg.GeminiAPIKey, cfg.Model, cfg.GeminiBaseURL), nil
	case ProviderOpenRouter:
		if cfg.OpenRouterAPIKey == "" {
			return nil, nil
		}
		return NewOpenRouter(cfg.OpenRouterAPIKey, cfg.Model, cfg.OpenRouterBaseURL), nil
	case ProviderAnthropic:
		if cfg.AnthropicAPIKey == "" {
			return nil, nil
		}
		return NewAnthropic(cfg.AnthropicAPIKey, cfg.Model, cfg.AnthropicBaseURL), nil
	case ProviderOllama:
		return NewOllama(cfg.OllamaBaseURL, cfg.Model), nil
	default:
		return nil, fmt.Errorf("unknown llm provider %q (want %s, %s, %s or %s)",
			cfg.Provider, ProviderGemini, ProviderOpenRouter, ProviderAnthropic, ProviderOllama)
	}
}
