// Package content reads the subject's portfolio records from the record
// store, optionally through a local cache.
package content

import (
	"cmp"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/kalambet/folio/internal/config"
	"github.com/kalambet/folio/internal/notion"
	"github.com/kalambet/folio/internal/record"
	"github.com/kalambet/folio/internal/storage"
)

// Querier is the read side of the record store.
type Querier interface {
	QueryAll(ctx context.Context, databaseID string, req notion.QueryRequest) ([]notion.Page, error)
}

// Cache persists decoded query results between calls.
type Cache interface {
	GetCacheEntry(ctx context.Context, key string) (storage.CacheEntry, error)
	PutCacheEntry(ctx context.Context, e storage.CacheEntry) error
	DeleteCacheEntry(ctx context.Context, key string) error
	ClearCache(ctx context.Context) (int64, error)
}

// Client lists portfolio records.
type Client struct {
	store      Querier
	databaseID string
	cache      Cache
	ttl        time.Duration
	now        func() time.Time
	group      singleflight.Group
	logger     *slog.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithCache serves results younger than ttl from cache without a store call.
func WithCache(c Cache, ttl time.Duration) Option {
	return func(cl *Client) {
		cl.cache = c
		cl.ttl = ttl
	}
}

// WithClock overrides time.Now (for testing).
func WithClock(now func() time.Time) Option {
	return func(cl *Client) { cl.now = now }
}

// New creates a Client for the portfolio database. A missing store or
// database id is a configuration error.
func New(store Querier, databaseID string, opts ...Option) (*Client, error) {
	if store == nil {
		return nil, config.Missing("notion.api_key")
	}
	if databaseID == "" {
		return nil, config.Missing("notion.portfolio_db")
	}
	c := &Client{
		store:      store,
		databaseID: databaseID,
		now:        time.Now,
		logger:     slog.Default(),
	}
	for _, o := range opts {
		o(c)
	}
	return c, nil
}

// ListRecords returns the Active records, of one type when recordType is
// non-empty, ordered by Display Order ascending with unordered records last.
// Any store failure is returned as an error wrapping notion.ErrUnavailable;
// a partial list is never returned.
func (c *Client) ListRecords(ctx context.Context, recordType record.RecordType) ([]record.PortfolioRecord, error) {
	key := cacheKey(recordType)

	if recs, ok := c.fromCache(ctx, key); ok {
		return recs, nil
	}

	v, err, _ := c.group.Do(key, func() (any, error) {
		recs, err := c.fetch(ctx, recordType)
		if err != nil {
			return nil, err
		}
		c.toCache(ctx, key, recs)
		return recs, nil
	})
	if err != nil {
		return nil, err
	}
	return slices.Clone(v.([]record.PortfolioRecord)), nil
}

// Refresh re-reads one record type from the store and replaces its cache
// entry regardless of age.
func (c *Client) Refresh(ctx context.Context, recordType record.RecordType) (int, error) {
	recs, err := c.fetch(ctx, recordType)
	if err != nil {
		return 0, err
	}
	c.toCache(ctx, cacheKey(recordType), recs)
	return len(recs), nil
}

// Invalidate drops the cached lists for the given types, or every cached
// list when none are given. The combined list holds every type, so it goes
// too. The next read of an invalidated list goes to the store.
func Invalidate(ctx context.Context, c Cache, types ...record.RecordType) error {
	if len(types) == 0 {
		_, err := c.ClearCache(ctx)
		return err
	}
	keys := []string{cacheKey("")}
	for _, t := range types {
		keys = append(keys, cacheKey(t))
	}
	for _, k := range keys {
		if err := c.DeleteCacheEntry(ctx, k); err != nil {
			return fmt.Errorf("dropping %s: %w", k, err)
		}
	}
	return nil
}

func (c *Client) fetch(ctx context.Context, recordType record.RecordType) ([]record.PortfolioRecord, error) {
	filter := notion.SelectEquals(record.PropStatus, string(record.StatusActive))
	if recordType != "" {
		filter = notion.And(notion.SelectEquals(record.PropType, string(recordType)), filter)
	}
	req := notion.QueryRequest{
		Filter: &filter,
		Sorts:  []notion.Sort{{Property: record.PropDisplayOrder, Direction: notion.Ascending}},
	}

	pages, err := c.store.QueryAll(ctx, c.databaseID, req)
	if err != nil {
		return nil, fmt.Errorf("listing %s records: %w", typeLabel(recordType), err)
	}

	recs := make([]record.PortfolioRecord, 0, len(pages))
	for _, p := range pages {
		recs = append(recs, record.PortfolioFromPage(p))
	}
	return activeOrdered(recs, recordType), nil
}

// activeOrdered re-applies the query's filter and ordering locally so the
// result holds even when the store ignores them.
func activeOrdered(recs []record.PortfolioRecord, recordType record.RecordType) []record.PortfolioRecord {
	out := make([]record.PortfolioRecord, 0, len(recs))
	for _, r := range recs {
		if r.Status != record.StatusActive {
			continue
		}
		if recordType != "" && r.Type != recordType {
			continue
		}
		out = append(out, r)
	}
	slices.SortStableFunc(out, func(a, b record.PortfolioRecord) int {
		switch {
		case a.DisplayOrder == nil && b.DisplayOrder == nil:
			return 0
		case a.DisplayOrder == nil:
			return 1
		case b.DisplayOrder == nil:
			return -1
		default:
			return cmp.Compare(*a.DisplayOrder, *b.DisplayOrder)
		}
	})
	return out
}

func (c *Client) fromCache(ctx context.Context, key string) ([]record.PortfolioRecord, bool) {
	if c.cache == nil || c.ttl <= 0 {
		return nil, false
	}
	e, err := c.cache.GetCacheEntry(ctx, key)
	if err != nil {
		if !errors.Is(err, storage.ErrNotFound) {
			c.logger.Warn("reading record cache", "key", key, "error", err)
		}
		return nil, false
	}
	if !e.Fresh(c.now(), c.ttl) {
		return nil, false
	}
	var recs []record.PortfolioRecord
	if err := json.Unmarshal([]byte(e.PayloadJSON), &recs); err != nil {
		c.logger.Warn("decoding cached records", "key", key, "error", err)
		return nil, false
	}
	if recs == nil {
		recs = []record.PortfolioRecord{}
	}
	return recs, true
}

func (c *Client) toCache(ctx context.Context, key string, recs []record.PortfolioRecord) {
	if c.cache == nil || c.ttl <= 0 {
		return
	}
	payload, err := json.Marshal(recs)
	if err != nil {
		c.logger.Warn("encoding records for cache", "key", key, "error", err)
		return
	}
	e := storage.CacheEntry{
		Key:         key,
		PayloadJSON: string(payload),
		RecordCount: len(recs),
		FetchedAt:   c.now(),
	}
	if err := c.cache.PutCacheEntry(ctx, e); err != nil {
		c.logger.Warn("writing record cache", "key", key, "error", err)
	}
}

func cacheKey(t record.RecordType) string {
	return "records:" + typeLabel(t)
}

func typeLabel(t record.RecordType) string {
	if t == "" {
		return "all"
	}
	return string(t)
}
