package api

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/kalambet/folio/internal/content"
	"github.com/kalambet/folio/internal/github"
	"github.com/kalambet/folio/internal/persona"
	"github.com/kalambet/folio/internal/record"
	"github.com/kalambet/folio/internal/recorder"
	"github.com/kalambet/folio/internal/session"
)

// --- fakes ---

type fakePortfolio struct {
	info    content.Info
	summary string
	err     error
}

func (f *fakePortfolio) PortfolioInfo(context.Context) (content.Info, error) {
	return f.info, f.err
}

func (f *fakePortfolio) BuildKnowledgeSummary(context.Context) (string, error) {
	return f.summary, f.err
}

type fakeRepos struct {
	repos    []github.Repository
	err      error
	gotTopic string
	gotLimit int
}

func (f *fakeRepos) Search(_ context.Context, topic string, limit int) ([]github.Repository, error) {
	f.gotTopic, f.gotLimit = topic, limit
	return f.repos, f.err
}

type savedCall struct {
	visitor recorder.Visitor
	turns   []record.Turn
}

// fakeRecorder validates like the real recorder and returns id, or "" when
// fail is set.
type fakeRecorder struct {
	mu     sync.Mutex
	id     string
	fail   bool
	saves  []savedCall
	recent []record.VisitorRecord
	limit  int
}

func (f *fakeRecorder) SaveConversation(_ context.Context, v recorder.Visitor, turns []record.Turn) (string, error) {
	if err := v.Validate(); err != nil {
		return "", err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.saves = append(f.saves, savedCall{visitor: v, turns: turns})
	if f.fail {
		return "", nil
	}
	return f.id, nil
}

func (f *fakeRecorder) RecentConversations(_ context.Context, limit int) []record.VisitorRecord {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.limit = limit
	return f.recent
}

func (f *fakeRecorder) calls() []savedCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]savedCall{}, f.saves...)
}

var errStoreDown = errors.New("store down")

// --- helpers ---

func newTestDeps(t *testing.T) (Deps, *fakeRecorder) {
	t.Helper()
	rec := &fakeRecorder{id: "page-1"}
	return Deps{
		Portfolio: &fakePortfolio{
			info:    content.Info{Bio: "Builds things.", Skills: "Go, SQL"},
			summary: "PROFILE:\nBuilds things.",
		},
		Recorder: rec,
		Sessions: session.NewRegistry(),
		Persona:  persona.Persona{Name: "Ada Lovelace", Headline: "engineer"},
	}, rec
}

func toolText(t *testing.T, result *mcp.CallToolResult) string {
	t.Helper()
	if len(result.Content) == 0 {
		t.Fatal("no content in result")
	}
	tc, ok := result.Content[0].(mcp.TextContent)
	if !ok {
		t.Fatalf("expected TextContent, got %T", result.Content[0])
	}
	return tc.Text
}

func makeCallToolRequest(name string, args map[string]interface{}) mcp.CallToolRequest {
	return mcp.CallToolRequest{
		Params: mcp.CallToolParams{
			Name:      name,
			Arguments: args,
		},
	}
}

func makeReadResourceRequest(uri string) mcp.ReadResourceRequest {
	return mcp.ReadResourceRequest{
		Params: mcp.ReadResourceParams{
			URI: uri,
		},
	}
}
