package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/kalambet/folio/internal/github"
	"github.com/kalambet/folio/internal/record"
	"github.com/kalambet/folio/internal/recorder"
	"github.com/kalambet/folio/internal/session"
)

// recentVisitors is how many conversations the visitors://recent resource lists.
const recentVisitors = 10

// agentSession is the one conversation a stdio agent is having.
type agentSession struct {
	mu  sync.Mutex
	cur *session.Session
}

func newAgentSession() *agentSession {
	return &agentSession{cur: session.New(uuid.NewString())}
}

func (a *agentSession) get() *session.Session {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.cur
}

// rotate starts a fresh session and returns the one it replaced.
func (a *agentSession) rotate() *session.Session {
	a.mu.Lock()
	defer a.mu.Unlock()
	old := a.cur
	a.cur = session.New(uuid.NewString())
	return old
}

// end closes the current conversation with its best-effort save. A session
// nobody spoke in is dropped without a save attempt.
func (a *agentSession) end(ctx context.Context, saver session.Saver) string {
	old := a.rotate()
	st := old.State()
	if st.Name == "" && st.Email == "" && len(st.Turns) == 0 {
		return ""
	}
	return old.Close(ctx, saver)
}

// NewMCPServer creates an MCP server with the agent's tools and resources
// registered. The persona becomes the server instructions. The returned func
// ends the agent's open conversation and must be called when the transport
// stops, so a tracked visitor who was never saved still gets written.
func NewMCPServer(d Deps, version string) (*server.MCPServer, func(context.Context)) {
	s := server.NewMCPServer(
		"folio",
		version,
		server.WithToolCapabilities(true),
		server.WithResourceCapabilities(false, true),
		server.WithInstructions(d.Persona.Render()),
		server.WithRecovery(),
	)
	sess := newAgentSession()

	// Tools
	s.AddTool(
		mcp.NewTool("get_portfolio_info",
			mcp.WithDescription("Get the portfolio overview: bio, skills, experience, education and contact links."),
		),
		mcpPortfolioInfo(d),
	)

	s.AddTool(
		mcp.NewTool("search_github_projects",
			mcp.WithDescription("Search the portfolio owner's public repositories by topic, language or keyword."),
			mcp.WithString("topic", mcp.Description("Topic to search for"), mcp.Required()),
			mcp.WithNumber("limit", mcp.Description("Maximum number of repositories (default 10)")),
		),
		mcpSearchProjects(d),
	)

	s.AddTool(
		mcp.NewTool("collect_contact_info",
			mcp.WithDescription("Save a visitor's name, email and optional phone in one step."),
			mcp.WithString("name", mcp.Description("Visitor's name"), mcp.Required()),
			mcp.WithString("email", mcp.Description("Visitor's email address"), mcp.Required()),
			mcp.WithString("phone", mcp.Description("Visitor's phone number")),
		),
		mcpCollectContact(d),
	)

	s.AddTool(
		mcp.NewTool("track_name",
			mcp.WithDescription("Remember the visitor's name as soon as they share it."),
			mcp.WithString("name", mcp.Description("Visitor's name"), mcp.Required()),
		),
		mcpTrackName(sess),
	)

	s.AddTool(
		mcp.NewTool("track_email",
			mcp.WithDescription("Remember the visitor's email as soon as they share it."),
			mcp.WithString("email", mcp.Description("Visitor's email address"), mcp.Required()),
		),
		mcpTrackEmail(sess),
	)

	s.AddTool(
		mcp.NewTool("track_phone",
			mcp.WithDescription("Remember the visitor's phone number."),
			mcp.WithString("phone", mcp.Description("Visitor's phone number"), mcp.Required()),
		),
		mcpTrackPhone(sess),
	)

	s.AddTool(
		mcp.NewTool("record_turn",
			mcp.WithDescription("Append one message to the current conversation transcript."),
			mcp.WithString("role", mcp.Description("user or assistant"), mcp.Required()),
			mcp.WithString("content", mcp.Description("Message text"), mcp.Required()),
		),
		mcpRecordTurn(sess),
	)

	s.AddTool(
		mcp.NewTool("save_contact",
			mcp.WithDescription("Save the tracked visitor and the conversation so far. Call once name and email are known."),
		),
		mcpSaveContact(d, sess),
	)

	s.AddTool(
		mcp.NewTool("end_session",
			mcp.WithDescription("End the current conversation, saving it if the visitor's contact was not saved yet."),
		),
		mcpEndSession(d, sess),
	)

	s.AddTool(
		mcp.NewTool("analyze_and_save",
			mcp.WithDescription("Analyze a full conversation and save it with the visitor's details."),
			mcp.WithString("name", mcp.Description("Visitor's name"), mcp.Required()),
			mcp.WithString("email", mcp.Description("Visitor's email address"), mcp.Required()),
			mcp.WithString("phone", mcp.Description("Visitor's phone number")),
			mcp.WithString("turns", mcp.Description("JSON array of {role, content} message objects"), mcp.Required()),
		),
		mcpAnalyzeAndSave(d),
	)

	// Resources
	s.AddResource(
		mcp.NewResource(
			"persona://instructions",
			"Persona instructions",
			mcp.WithResourceDescription("How the agent speaks as the portfolio owner"),
			mcp.WithMIMEType("text/plain"),
		),
		mcpResourcePersona(d),
	)

	s.AddResource(
		mcp.NewResource(
			"visitors://recent",
			"Recent visitors",
			mcp.WithResourceDescription("Last 10 saved conversations (summaries only)"),
			mcp.WithMIMEType("application/json"),
		),
		mcpResourceRecent(d),
	)

	return s, func(ctx context.Context) { sess.end(ctx, d.Recorder) }
}

func mcpPortfolioInfo(d Deps) server.ToolHandlerFunc {
	return func(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		info, err := d.Portfolio.PortfolioInfo(ctx)
		if err != nil {
			d.logger().Error("loading portfolio", "error", err)
			return mcpError(fmt.Sprintf("Failed to retrieve portfolio: %v", err)), nil
		}
		return mcpText(info.String()), nil
	}
}

func mcpSearchProjects(d Deps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		topic, err := req.RequireString("topic")
		if err != nil {
			return mcpError("topic is required"), nil
		}
		limit := req.GetInt("limit", github.DefaultLimit)

		repos, err := searchProjects(ctx, d, topic, limit)
		if err != nil {
			if !errors.Is(err, errNoRepos) {
				d.logger().Error("searching repositories", "topic", topic, "error", err)
			}
			return mcpError(fmt.Sprintf("Failed to search projects: %v", err)), nil
		}
		return mcpText(github.FormatResults(topic, repos)), nil
	}
}

func mcpCollectContact(d Deps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		v := recorder.Visitor{
			Name:  req.GetString("name", ""),
			Email: req.GetString("email", ""),
			Phone: req.GetString("phone", ""),
		}
		res, err := collectContact(ctx, d, v)
		if err != nil {
			return mcpError(err.Error()), nil
		}
		return mcpText(res.Message), nil
	}
}

func mcpTrackName(sess *agentSession) server.ToolHandlerFunc {
	return func(_ context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		name, err := req.RequireString("name")
		if err != nil {
			return mcpError("name is required"), nil
		}
		if err := sess.get().TrackName(name); err != nil {
			return mcpError(err.Error()), nil
		}
		return mcpText(fmt.Sprintf("Got it %s, nice to meet you!", sess.get().State().Name)), nil
	}
}

func mcpTrackEmail(sess *agentSession) server.ToolHandlerFunc {
	return func(_ context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		email, err := req.RequireString("email")
		if err != nil {
			return mcpError("email is required"), nil
		}
		if err := sess.get().TrackEmail(email); err != nil {
			return mcpError(err.Error()), nil
		}
		return mcpText("Got it! I've saved your email."), nil
	}
}

func mcpTrackPhone(sess *agentSession) server.ToolHandlerFunc {
	return func(_ context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		phone, err := req.RequireString("phone")
		if err != nil {
			return mcpError("phone is required"), nil
		}
		sess.get().TrackPhone(phone)
		return mcpText("Great, I've got your phone number!"), nil
	}
}

func mcpRecordTurn(sess *agentSession) server.ToolHandlerFunc {
	return func(_ context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		role, ok := record.ParseRole(req.GetString("role", ""))
		if !ok {
			return mcpError("role must be user or assistant"), nil
		}
		content, err := req.RequireString("content")
		if err != nil {
			return mcpError("content is required"), nil
		}
		s := sess.get()
		s.AddTurn(role, content)
		return mcpText(fmt.Sprintf("recorded (%d turns)", len(s.State().Turns))), nil
	}
}

func mcpSaveContact(d Deps, sess *agentSession) server.ToolHandlerFunc {
	return func(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		s := sess.get()
		res, err := saveSession(ctx, d, s)
		if err != nil {
			return mcpError(missingIdentityMessage(err)), nil
		}
		if res.Status != StatusSuccess {
			return mcpText(res.Message), nil
		}
		return mcpText(fmt.Sprintf("Perfect! I've saved your contact info. Great to connect with you, %s!", s.State().Name)), nil
	}
}

func mcpEndSession(d Deps, sess *agentSession) server.ToolHandlerFunc {
	return func(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		if id := sess.end(ctx, d.Recorder); id != "" {
			return mcpText("Session ended. The conversation is saved."), nil
		}
		return mcpText("Session ended."), nil
	}
}

func mcpAnalyzeAndSave(d Deps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		turnsJSON, err := req.RequireString("turns")
		if err != nil {
			return mcpError("turns is required"), nil
		}
		var raw []turnRequest
		if err := json.Unmarshal([]byte(turnsJSON), &raw); err != nil {
			return mcpError(fmt.Sprintf("invalid turns JSON: %v", err)), nil
		}
		turns := make([]record.Turn, 0, len(raw))
		for _, t := range raw {
			turn, err := t.turn()
			if err != nil {
				return mcpError(err.Error()), nil
			}
			turns = append(turns, turn)
		}

		v := recorder.Visitor{
			Name:  req.GetString("name", ""),
			Email: req.GetString("email", ""),
			Phone: req.GetString("phone", ""),
		}
		id, err := d.Recorder.SaveConversation(ctx, v, turns)
		if err != nil {
			return mcpError(err.Error()), nil
		}
		if id == "" {
			return mcpText("The conversation could not be saved right now."), nil
		}
		return mcpText(fmt.Sprintf("Conversation saved (%s).", id)), nil
	}
}

func mcpResourcePersona(d Deps) server.ResourceHandlerFunc {
	return func(_ context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
		return []mcp.ResourceContents{
			mcp.TextResourceContents{
				URI:      req.Params.URI,
				MIMEType: "text/plain",
				Text:     d.Persona.Render(),
			},
		}, nil
	}
}

func mcpResourceRecent(d Deps) server.ResourceHandlerFunc {
	return func(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
		type visitorSummary struct {
			Name      string `json:"name"`
			Email     string `json:"email"`
			Date      string `json:"date"`
			Summary   string `json:"summary"`
			Sentiment string `json:"sentiment"`
			Interest  string `json:"interest_level"`
			FollowUp  bool   `json:"follow_up_required"`
		}

		recs := d.Recorder.RecentConversations(ctx, recentVisitors)
		summaries := make([]visitorSummary, len(recs))
		for i, r := range recs {
			summaries[i] = visitorSummary{
				Name:      r.Name,
				Email:     r.Email,
				Date:      r.Timestamp.Format(time.RFC3339),
				Summary:   r.Annotation.Summary,
				Sentiment: string(r.Annotation.Sentiment),
				Interest:  string(r.Annotation.InterestLevel),
				FollowUp:  r.FollowUpRequired,
			}
		}

		b, err := json.Marshal(summaries)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal visitors: %w", err)
		}

		return []mcp.ResourceContents{
			mcp.TextResourceContents{
				URI:      req.Params.URI,
				MIMEType: "application/json",
				Text:     string(b),
			},
		}, nil
	}
}

func mcpText(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.TextContent{Type: "text", Text: text},
		},
	}
}

func mcpError(msg string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.TextContent{Type: "text", Text: msg},
		},
		IsError: true,
	}
}
