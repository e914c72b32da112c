package engine

import (
	"context"
	"fmt"
	"io"

	"github.com/kalambet/folio/internal/ollama"
)

// LocalBackend is a generator whose models live on the local machine and
// may need pulling before first use.
type LocalBackend interface {
	IsRunning(ctx context.Context) bool
	HasModel(ctx context.Context, name string) bool
	PullModel(ctx context.Context, name string, onProgress func(ollama.PullProgress)) error
}

// EnsureReady checks that the local backend is reachable and that model is
// installed, pulling it with progress written to w when it is not.
func EnsureReady(ctx context.Context, b LocalBackend, model string, w io.Writer) error {
	if !b.IsRunning(ctx) {
		return fmt.Errorf("ollama is not running; start it with `ollama serve`")
	}
	if b.HasModel(ctx, model) {
		fmt.Fprintf(w, "model %s: ready\n", model)
		return nil
	}

	fmt.Fprintf(w, "model %s: pulling...\n", model)
	err := b.PullModel(ctx, model, func(p ollama.PullProgress) {
		if p.Total > 0 {
			fmt.Fprintf(w, "  %s %.0f%%\n", p.Status, float64(p.Completed)/float64(p.Total)*100)
		} else {
			fmt.Fprintf(w, "  %s\n", p.Status)
		}
	})
	if err != nil {
		return fmt.Errorf("pulling model %s: %w", model, err)
	}
	fmt.Fprintf(w, "model %s: ready\n", model)
	return nil
}
