package engine

import (
	"context"

	"github.com/kalambet/folio/internal/openrouter"
)

const defaultOpenRouterModel = "google/gemini-2.0-flash-001"

// OpenRouterGenerator generates text through OpenRouter.
type OpenRouterGenerator struct {
	client *openrouter.Client
	model  string
}

// NewOpenRouter creates an OpenRouterGenerator. OpenRouter model ids carry a
// vendor prefix, so a bare name such as the gemini default is replaced.
func NewOpenRouter(apiKey, model, baseURL string) *OpenRouterGenerator {
	if model == "" || isHostedModel(model) {
		model = defaultOpenRouterModel
	}
	return &OpenRouterGenerator{client: openrouter.NewClient(apiKey, baseURL), model: model}
}

func (g *OpenRouterGenerator) GenerateText(ctx context.Context, prompt string) (string, error) {
	return g.client.Complete(ctx, g.model, []openrouter.Message{{Role: "user", Content: prompt}})
}

// Model returns the OpenRouter model id used for generation.
func (g *OpenRouterGenerator) Model() string {
	return g.model
}

// HasModel reports whether the key is offered the configured model.
func (g *OpenRouterGenerator) HasModel(ctx context.Context) (bool, error) {
	models, err := g.client.ListModels(ctx)
	if err != nil {
		return false, err
	}
	for _, m := range models {
		if m.ID == g.model {
			return true, nil
		}
	}
	return false, nil
}
