// Package api exposes the portfolio agent's operations over HTTP (chi) and
// as MCP tools. Both surfaces are thin: they decode arguments, call the
// shared operations in this file, and encode the result.
package api

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/kalambet/folio/internal/content"
	"github.com/kalambet/folio/internal/github"
	"github.com/kalambet/folio/internal/persona"
	"github.com/kalambet/folio/internal/record"
	"github.com/kalambet/folio/internal/recorder"
	"github.com/kalambet/folio/internal/session"
)

// Portfolio reads the subject's records.
type Portfolio interface {
	PortfolioInfo(ctx context.Context) (content.Info, error)
	BuildKnowledgeSummary(ctx context.Context) (string, error)
}

// RepoSearcher finds the subject's repositories by topic.
type RepoSearcher interface {
	Search(ctx context.Context, topic string, limit int) ([]github.Repository, error)
}

// Recorder saves and lists visitor conversations.
type Recorder interface {
	session.Saver
	RecentConversations(ctx context.Context, limit int) []record.VisitorRecord
}

// Deps holds what both adapters need. Repos may be nil when no code-hosting
// token is configured.
type Deps struct {
	Portfolio Portfolio
	Repos     RepoSearcher
	Recorder  Recorder
	Sessions  *session.Registry
	Persona   persona.Persona
	Token     string
	Logger    *slog.Logger
}

func (d Deps) logger() *slog.Logger {
	if d.Logger != nil {
		return d.Logger
	}
	return slog.Default()
}

// ContactResult is the outcome of collecting a visitor's contact details.
type ContactResult struct {
	Status  string `json:"status"`
	Message string `json:"message"`
	ID      string `json:"id,omitempty"`
}

const (
	StatusSuccess        = "success"
	StatusPartialSuccess = "partial_success"
	StatusError          = "error"
)

var errNoRepos = errors.New("repository search is not configured")

// collectContact saves a visitor in one step. A validation failure is
// returned as an error; a failed store write is a partial success.
func collectContact(ctx context.Context, d Deps, v recorder.Visitor) (ContactResult, error) {
	s := session.New("")
	if err := s.TrackName(v.Name); err != nil {
		return ContactResult{}, err
	}
	if err := s.TrackEmail(v.Email); err != nil {
		return ContactResult{}, err
	}
	s.TrackPhone(v.Phone)
	return saveSession(ctx, d, s)
}

func saveSession(ctx context.Context, d Deps, s *session.Session) (ContactResult, error) {
	id, err := s.SaveContact(ctx, d.Recorder)
	if err != nil {
		return ContactResult{}, err
	}
	st := s.State()
	if id == "" {
		d.logger().Warn("contact info not saved", "session", st.ID, "email", st.Email)
		return ContactResult{
			Status:  StatusPartialSuccess,
			Message: fmt.Sprintf("Nice to meet you, %s! I've noted your info.", st.Name),
		}, nil
	}
	return ContactResult{
		Status:  StatusSuccess,
		Message: fmt.Sprintf("Got it, %s! I've saved your contact info (%s). Great to connect with you!", st.Name, st.Email),
		ID:      id,
	}, nil
}

func searchProjects(ctx context.Context, d Deps, topic string, limit int) ([]github.Repository, error) {
	if d.Repos == nil {
		return nil, errNoRepos
	}
	return d.Repos.Search(ctx, topic, limit)
}

// missingIdentityMessage tells the agent which tracking tool to call next.
func missingIdentityMessage(err error) string {
	var ve *record.ValidationError
	if errors.As(err, &ve) {
		switch ve.Field {
		case "name":
			return "I need the visitor's name. Please track their name first using track_name."
		case "email":
			return "I need the visitor's email. Please track their email first using track_email."
		}
	}
	return err.Error()
}
