// Package recorder persists visitor conversations to the conversations
// database and reads the most recent ones back.
package recorder

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/kalambet/folio/internal/analysis"
	"github.com/kalambet/folio/internal/config"
	"github.com/kalambet/folio/internal/notion"
	"github.com/kalambet/folio/internal/record"
)

const (
	DefaultLimit = 10
	maxLimit     = 100
)

// PageCreator is the write side of the record store.
type PageCreator interface {
	CreatePage(ctx context.Context, databaseID string, props notion.Properties) (*notion.Page, error)
}

// Querier reads one page of query results.
type Querier interface {
	Query(ctx context.Context, databaseID string, req notion.QueryRequest) (*notion.QueryResponse, error)
}

// Analyzer annotates a transcript. It never fails.
type Analyzer interface {
	Analyze(ctx context.Context, turns []record.Turn) record.Annotation
}

// Visitor is the identity a conversation is saved under.
type Visitor struct {
	Name  string `json:"name"`
	Email string `json:"email"`
	Phone string `json:"phone,omitempty"`
}

// Validate checks that name and a well-formed email are present.
func (v Visitor) Validate() error {
	if err := record.Required("name", v.Name); err != nil {
		return err
	}
	if err := record.Required("email", v.Email); err != nil {
		return err
	}
	return record.ValidateEmail(strings.TrimSpace(v.Email))
}

// Recorder saves and lists visitor records.
type Recorder struct {
	creator    PageCreator
	querier    Querier
	databaseID string
	analyzer   Analyzer
	now        func() time.Time
	logger     *slog.Logger
}

// Option configures a Recorder.
type Option func(*Recorder)

// WithClock overrides time.Now (for testing).
func WithClock(now func() time.Time) Option {
	return func(r *Recorder) { r.now = now }
}

func WithLogger(l *slog.Logger) Option {
	return func(r *Recorder) { r.logger = l }
}

// New creates a Recorder. A nil analyzer annotates without a model.
func New(creator PageCreator, querier Querier, databaseID string, analyzer Analyzer, opts ...Option) (*Recorder, error) {
	if creator == nil || querier == nil {
		return nil, config.Missing("notion.api_key")
	}
	if databaseID == "" {
		return nil, config.Missing("notion.conversations_db")
	}
	if analyzer == nil {
		analyzer = analysis.New(nil)
	}
	r := &Recorder{
		creator:    creator,
		querier:    querier,
		databaseID: databaseID,
		analyzer:   analyzer,
		now:        time.Now,
		logger:     slog.Default(),
	}
	for _, o := range opts {
		o(r)
	}
	return r, nil
}

// SaveConversation analyzes turns and writes one visitor record. It returns
// a *record.ValidationError, before any network call, when the visitor
// identity is incomplete. A failed write is logged and reported as an empty
// id with a nil error. Once the identity is valid the save runs to
// completion even if ctx is cancelled.
func (r *Recorder) SaveConversation(ctx context.Context, v Visitor, turns []record.Turn) (string, error) {
	if err := v.Validate(); err != nil {
		return "", err
	}
	ctx = context.WithoutCancel(ctx)

	ann := r.analyzer.Analyze(ctx, turns)
	rec := record.VisitorRecord{
		Name:             strings.TrimSpace(v.Name),
		Email:            strings.TrimSpace(v.Email),
		Phone:            strings.TrimSpace(v.Phone),
		Timestamp:        r.now(),
		Transcript:       RenderTranscript(turns),
		Annotation:       ann,
		FollowUpRequired: ann.FollowUpRequired(),
		Status:           record.StatusNew,
	}

	page, err := r.creator.CreatePage(ctx, r.databaseID, record.VisitorProperties(rec))
	if err != nil {
		attrs := []any{"error", err, "name", rec.Name}
		var apiErr *notion.APIError
		if errors.As(err, &apiErr) {
			attrs = append(attrs, "status", apiErr.Status, "body", apiErr.Body)
		}
		r.logger.Error("saving conversation", attrs...)
		return "", nil
	}

	r.logger.Info("conversation saved", "id", page.ID, "sentiment", ann.Sentiment, "follow_up", rec.FollowUpRequired)
	return page.ID, nil
}

// RecentConversations returns up to limit visitor records, newest first.
// limit is clamped to 1..100. Failures are logged and yield an empty list.
func (r *Recorder) RecentConversations(ctx context.Context, limit int) []record.VisitorRecord {
	limit = max(1, min(limit, maxLimit))

	resp, err := r.querier.Query(ctx, r.databaseID, notion.QueryRequest{
		Sorts:    []notion.Sort{{Property: record.PropDate, Direction: notion.Descending}},
		PageSize: limit,
	})
	if err != nil {
		r.logger.Warn("listing recent conversations", "error", err)
		return []record.VisitorRecord{}
	}

	out := make([]record.VisitorRecord, 0, len(resp.Results))
	for _, p := range resp.Results {
		if len(out) == limit {
			break
		}
		out = append(out, record.VisitorFromPage(p))
	}
	return out
}

// RenderTranscript writes one "[ROLE]: content" block per turn, blank line
// between.
func RenderTranscript(turns []record.Turn) string {
	var b strings.Builder
	for _, t := range turns {
		role := t.Role
		if role == "" {
			role = record.RoleVisitor
		}
		fmt.Fprintf(&b, "[%s]: %s\n\n", strings.ToUpper(string(role)), t.Content)
	}
	return b.String()
}
