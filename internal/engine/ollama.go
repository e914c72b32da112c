package engine

import (
	"context"

	"github.com/kalambet/folio/internal/ollama"
)

const defaultOllamaModel = "llama3.2"

// OllamaGenerator adapts the internal/ollama.Client to the Generator interface.
type OllamaGenerator struct {
	client *ollama.Client
	model  string
}

// NewOllama creates an OllamaGenerator backed by an Ollama server at baseURL.
func NewOllama(baseURL, model string) *OllamaGenerator {
	if model == "" || isHostedModel(model) {
		model = defaultOllamaModel
	}
	return &OllamaGenerator{client: ollama.New(baseURL), model: model}
}

// Model returns the local model name used for generation.
func (e *OllamaGenerator) Model() string {
	return e.model
}

func (e *OllamaGenerator) GenerateText(ctx context.Context, prompt string) (string, error) {
	return e.client.Chat(ctx, e.model, []ollama.Message{{Role: "user", Content: prompt}})
}

func (e *OllamaGenerator) IsRunning(ctx context.Context) bool {
	return e.client.IsRunning(ctx)
}

func (e *OllamaGenerator) HasModel(ctx context.Context, name string) bool {
	return e.client.HasModel(ctx, name)
}

func (e *OllamaGenerator) PullModel(ctx context.Context, name string, onProgress func(ollama.PullProgress)) error {
	return e.client.PullModel(ctx, name, onProgress)
}

// isHostedModel reports whether a configured model name belongs to a hosted
// provider, as when llm.model keeps its gemini default.
func isHostedModel(model string) bool {
	return len(model) > 7 && model[:7] == "gemini-"
}
