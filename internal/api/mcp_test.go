package api

import (
	"context"
	"encoding/json"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kalambet/folio/internal/github"
	"github.com/kalambet/folio/internal/record"
	"github.com/kalambet/folio/internal/recorder"
)

func callTool(t *testing.T, h server.ToolHandlerFunc, name string, args map[string]interface{}) *mcp.CallToolResult {
	t.Helper()
	result, err := h(context.Background(), makeCallToolRequest(name, args))
	require.NoError(t, err)
	return result
}

func TestMCPTool_PortfolioInfo(t *testing.T) {
	d, _ := newTestDeps(t)
	result := callTool(t, mcpPortfolioInfo(d), "get_portfolio_info", nil)
	require.False(t, result.IsError)

	text := toolText(t, result)
	assert.Contains(t, text, "Portfolio Information:")
	assert.Contains(t, text, "BIO:\nBuilds things.")
}

func TestMCPTool_PortfolioInfo_StoreDown(t *testing.T) {
	d, _ := newTestDeps(t)
	d.Portfolio = &fakePortfolio{err: errStoreDown}
	result := callTool(t, mcpPortfolioInfo(d), "get_portfolio_info", nil)
	require.True(t, result.IsError)
	assert.Equal(t, "Failed to retrieve portfolio: store down", toolText(t, result))
}

func TestMCPTool_SearchProjects(t *testing.T) {
	d, _ := newTestDeps(t)
	repos := &fakeRepos{repos: []github.Repository{{
		Name: "tiny-db", Description: "A toy database", URL: "https://github.com/ada/tiny-db", Language: "Go",
	}}}
	d.Repos = repos

	result := callTool(t, mcpSearchProjects(d), "search_github_projects", map[string]interface{}{
		"topic": "database",
		"limit": 2,
	})
	require.False(t, result.IsError, toolText(t, result))
	assert.Equal(t, 2, repos.gotLimit)
	assert.Contains(t, toolText(t, result), "tiny-db")

	result = callTool(t, mcpSearchProjects(d), "search_github_projects", map[string]interface{}{})
	assert.True(t, result.IsError)
}

func TestMCPTool_SearchProjects_NotConfigured(t *testing.T) {
	d, _ := newTestDeps(t)
	result := callTool(t, mcpSearchProjects(d), "search_github_projects", map[string]interface{}{"topic": "go"})
	assert.True(t, result.IsError)
}

func TestMCPTool_CollectContact(t *testing.T) {
	d, rec := newTestDeps(t)
	result := callTool(t, mcpCollectContact(d), "collect_contact_info", map[string]interface{}{
		"name":  "Sarah",
		"email": "sarah@x.com",
		"phone": "+1 555",
	})
	require.False(t, result.IsError)
	assert.Equal(t, "Got it, Sarah! I've saved your contact info (sarah@x.com). Great to connect with you!", toolText(t, result))

	calls := rec.calls()
	require.Len(t, calls, 1)
	assert.Equal(t, "+1 555", calls[0].visitor.Phone)

	result = callTool(t, mcpCollectContact(d), "collect_contact_info", map[string]interface{}{
		"name":  "Sarah",
		"email": "not-an-email",
	})
	assert.True(t, result.IsError)
	assert.Len(t, rec.calls(), 1)
}

func TestMCPTool_TrackAndSave(t *testing.T) {
	d, rec := newTestDeps(t)
	sess := newAgentSession()

	result := callTool(t, mcpSaveContact(d, sess), "save_contact", nil)
	require.True(t, result.IsError)
	assert.Equal(t, "I need the visitor's name. Please track their name first using track_name.", toolText(t, result))

	result = callTool(t, mcpTrackName(sess), "track_name", map[string]interface{}{"name": " Sarah "})
	require.False(t, result.IsError)
	assert.Equal(t, "Got it Sarah, nice to meet you!", toolText(t, result))

	result = callTool(t, mcpTrackEmail(sess), "track_email", map[string]interface{}{"email": "sarah"})
	assert.True(t, result.IsError)

	result = callTool(t, mcpTrackEmail(sess), "track_email", map[string]interface{}{"email": "sarah@x.com"})
	require.False(t, result.IsError)
	assert.Equal(t, "Got it! I've saved your email.", toolText(t, result))

	result = callTool(t, mcpTrackPhone(sess), "track_phone", map[string]interface{}{"phone": "+1 555"})
	assert.Equal(t, "Great, I've got your phone number!", toolText(t, result))

	result = callTool(t, mcpRecordTurn(sess), "record_turn", map[string]interface{}{"role": "user", "content": "Are you hiring?"})
	require.False(t, result.IsError)
	result = callTool(t, mcpRecordTurn(sess), "record_turn", map[string]interface{}{"role": "narrator", "content": "x"})
	assert.True(t, result.IsError)

	result = callTool(t, mcpSaveContact(d, sess), "save_contact", nil)
	require.False(t, result.IsError)
	assert.Equal(t, "Perfect! I've saved your contact info. Great to connect with you, Sarah!", toolText(t, result))

	// A second save and the end of the session reuse the first write.
	callTool(t, mcpSaveContact(d, sess), "save_contact", nil)
	result = callTool(t, mcpEndSession(d, sess), "end_session", nil)
	assert.Equal(t, "Session ended. The conversation is saved.", toolText(t, result))

	calls := rec.calls()
	require.Len(t, calls, 1)
	assert.Equal(t, recorder.Visitor{Name: "Sarah", Email: "sarah@x.com", Phone: "+1 555"}, calls[0].visitor)
	assert.Equal(t, []record.Turn{{Role: record.RoleVisitor, Content: "Are you hiring?"}}, calls[0].turns)

	// end_session started a fresh conversation.
	assert.Empty(t, sess.get().State().Name)
}

func TestMCPTool_EndSession_Anonymous(t *testing.T) {
	d, rec := newTestDeps(t)
	result := callTool(t, mcpEndSession(d, newAgentSession()), "end_session", nil)
	assert.Equal(t, "Session ended.", toolText(t, result))
	assert.Empty(t, rec.calls())
}

func TestMCPTool_AnalyzeAndSave(t *testing.T) {
	d, rec := newTestDeps(t)
	result := callTool(t, mcpAnalyzeAndSave(d), "analyze_and_save", map[string]interface{}{
		"name":  "Sarah",
		"email": "sarah@x.com",
		"turns": `[{"role":"user","content":"Tell me about your Go work"},{"role":"assistant","content":"Sure!"}]`,
	})
	require.False(t, result.IsError, toolText(t, result))
	assert.Equal(t, "Conversation saved (page-1).", toolText(t, result))
	require.Len(t, rec.calls(), 1)
	assert.Len(t, rec.calls()[0].turns, 2)

	rec.fail = true
	result = callTool(t, mcpAnalyzeAndSave(d), "analyze_and_save", map[string]interface{}{
		"name":  "Sarah",
		"email": "sarah@x.com",
		"turns": `[]`,
	})
	require.False(t, result.IsError)
	assert.Equal(t, "The conversation could not be saved right now.", toolText(t, result))

	result = callTool(t, mcpAnalyzeAndSave(d), "analyze_and_save", map[string]interface{}{
		"name":  "Sarah",
		"email": "sarah@x.com",
		"turns": `not json`,
	})
	assert.True(t, result.IsError)
}

func TestMCPResource_Persona(t *testing.T) {
	d, _ := newTestDeps(t)
	contents, err := mcpResourcePersona(d)(context.Background(), makeReadResourceRequest("persona://instructions"))
	require.NoError(t, err)
	require.Len(t, contents, 1)

	tc, ok := contents[0].(mcp.TextResourceContents)
	require.True(t, ok)
	assert.Equal(t, "persona://instructions", tc.URI)
	assert.Contains(t, tc.Text, "You ARE Ada Lovelace")
}

func TestMCPResource_RecentVisitors(t *testing.T) {
	d, rec := newTestDeps(t)
	rec.recent = []record.VisitorRecord{{
		Name:      "Sarah",
		Email:     "sarah@x.com",
		Timestamp: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
		Annotation: record.Annotation{
			Summary:       "Asked about Go.",
			Sentiment:     record.SentimentPositive,
			InterestLevel: record.InterestHigh,
		},
		FollowUpRequired: true,
	}}

	contents, err := mcpResourceRecent(d)(context.Background(), makeReadResourceRequest("visitors://recent"))
	require.NoError(t, err)
	require.Len(t, contents, 1)
	tc, ok := contents[0].(mcp.TextResourceContents)
	require.True(t, ok)
	assert.Equal(t, "application/json", tc.MIMEType)
	assert.Equal(t, recentVisitors, rec.limit)

	var got []map[string]any
	require.NoError(t, json.Unmarshal([]byte(tc.Text), &got))
	require.Len(t, got, 1)
	assert.Equal(t, "2026-03-01T12:00:00Z", got[0]["date"])
	assert.Equal(t, "Asked about Go.", got[0]["summary"])
	assert.Equal(t, true, got[0]["follow_up_required"])
}

func TestNewMCPServer_Registers(t *testing.T) {
	d, _ := newTestDeps(t)
	s, end := NewMCPServer(d, "test")
	assert.NotNil(t, s)
	assert.NotNil(t, end)
}

func TestNewMCPServer_EndSavesTrackedVisitor(t *testing.T) {
	d, rec := newTestDeps(t)
	s, end := NewMCPServer(d, "test")

	stdin := strings.NewReader(strings.Join([]string{
		`{"jsonrpc":"2.0","id":1,"method":"initialize","params":{"protocolVersion":"2025-03-26","capabilities":{},"clientInfo":{"name":"voice","version":"1"}}}`,
		`{"jsonrpc":"2.0","id":2,"method":"tools/call","params":{"name":"track_name","arguments":{"name":"Sarah"}}}`,
		`{"jsonrpc":"2.0","id":3,"method":"tools/call","params":{"name":"track_email","arguments":{"email":"sarah@x.com"}}}`,
	}, "\n") + "\n")

	// Listen returns at EOF, the way a voice client hanging up looks.
	require.NoError(t, server.NewStdioServer(s).Listen(context.Background(), stdin, io.Discard))
	assert.Empty(t, rec.calls())

	end(context.Background())
	calls := rec.calls()
	require.Len(t, calls, 1)
	assert.Equal(t, "Sarah", calls[0].visitor.Name)
	assert.Equal(t, "sarah@x.com", calls[0].visitor.Email)

	// Ending again has nothing left to save.
	end(context.Background())
	assert.Len(t, rec.calls(), 1)
}

func TestAgentSession_EndIdleConversationSkipsSave(t *testing.T) {
	d, rec := newTestDeps(t)
	sess := newAgentSession()
	assert.Empty(t, sess.end(context.Background(), d.Recorder))
	assert.Empty(t, rec.calls())
}
