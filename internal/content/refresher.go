package content

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/kalambet/folio/internal/record"
)

// Warmer re-reads one record type into the cache.
type Warmer interface {
	Refresh(ctx context.Context, recordType record.RecordType) (int, error)
}

// Refresher keeps the record cache warm so visitor requests rarely wait on
// the record store.
type Refresher struct {
	warmer   Warmer
	types    []record.RecordType
	interval time.Duration
	logger   *slog.Logger
}

// NewRefresher creates a Refresher for every record type plus the untyped
// listing. If interval is <= 0, it defaults to 5 minutes.
func NewRefresher(warmer Warmer, interval time.Duration) *Refresher {
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	types := append([]record.RecordType{""}, record.RecordTypes...)
	return &Refresher{
		warmer:   warmer,
		types:    types,
		interval: interval,
		logger:   slog.Default(),
	}
}

// Run refreshes immediately and then every interval until ctx is cancelled.
func (r *Refresher) Run(ctx context.Context) {
	for {
		if ctx.Err() != nil {
			return
		}

		if err := r.RunOnce(ctx); err != nil {
			r.logger.Warn("cache refresh incomplete", "error", err)
		}

		select {
		case <-ctx.Done():
			return
		case <-time.After(r.interval):
		}
	}
}

// RunOnce refreshes every record type. A failing type does not stop the
// others; the first error is returned after all were attempted.
func (r *Refresher) RunOnce(ctx context.Context) error {
	var firstErr error
	for _, t := range r.types {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		n, err := r.warmer.Refresh(ctx, t)
		if err != nil {
			r.logger.Warn("refreshing records", "type", typeLabel(t), "error", err)
			if firstErr == nil {
				firstErr = fmt.Errorf("refreshing %s: %w", typeLabel(t), err)
			}
			continue
		}
		r.logger.Debug("records refreshed", "type", typeLabel(t), "count", n)
	}
	return firstErr
}
