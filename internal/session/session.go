// Package session tracks one visitor conversation at a time: who the
// visitor said they are, what was said, and whether their contact details
// were already saved.
package session

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/kalambet/folio/internal/record"
	"github.com/kalambet/folio/internal/recorder"
)

// Saver persists a conversation. *recorder.Recorder implements it.
type Saver interface {
	SaveConversation(ctx context.Context, v recorder.Visitor, turns []record.Turn) (string, error)
}

// Session is safe for concurrent use. Sessions never share state.
type Session struct {
	id      string
	created time.Time

	mu         sync.Mutex
	visitor    recorder.Visitor
	turns      []record.Turn
	saved      bool
	pageID     string
	lastActive time.Time
	now        func() time.Time
}

// State is a point-in-time copy of a session.
type State struct {
	ID         string        `json:"id"`
	Name       string        `json:"name,omitempty"`
	Email      string        `json:"email,omitempty"`
	Phone      string        `json:"phone,omitempty"`
	Turns      []record.Turn `json:"turns"`
	Saved      bool          `json:"saved"`
	PageID     string        `json:"page_id,omitempty"`
	CreatedAt  time.Time     `json:"created_at"`
	LastActive time.Time     `json:"last_active"`
}

func newSession(id string, now func() time.Time) *Session {
	t := now()
	return &Session{id: id, created: t, lastActive: t, now: now}
}

// New creates a standalone session, as used by a single stdio agent.
func New(id string) *Session {
	return newSession(id, time.Now)
}

func (s *Session) ID() string { return s.id }

// TrackName records the visitor's name.
func (s *Session) TrackName(name string) error {
	if err := record.Required("name", name); err != nil {
		return err
	}
	s.update(func() { s.visitor.Name = strings.TrimSpace(name) })
	return nil
}

// TrackEmail records the visitor's email after checking its syntax.
func (s *Session) TrackEmail(email string) error {
	email = strings.TrimSpace(email)
	if err := record.ValidateEmail(email); err != nil {
		return err
	}
	s.update(func() { s.visitor.Email = email })
	return nil
}

func (s *Session) TrackPhone(phone string) {
	s.update(func() { s.visitor.Phone = strings.TrimSpace(phone) })
}

// AddTurn appends a message to the transcript. Empty content is kept so the
// turn count matches what the visitor saw.
func (s *Session) AddTurn(role record.Role, content string) {
	s.update(func() { s.turns = append(s.turns, record.Turn{Role: role, Content: content}) })
}

func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return State{
		ID:         s.id,
		Name:       s.visitor.Name,
		Email:      s.visitor.Email,
		Phone:      s.visitor.Phone,
		Turns:      append([]record.Turn{}, s.turns...),
		Saved:      s.saved,
		PageID:     s.pageID,
		CreatedAt:  s.created,
		LastActive: s.lastActive,
	}
}

// SaveContact saves the visitor and transcript once. It returns a
// *record.ValidationError while name or email is missing, and the existing
// page id without a second write once saved. An empty id with a nil error
// means the store write failed and may be retried by calling again.
func (s *Session) SaveContact(ctx context.Context, saver Saver) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.saved {
		return s.pageID, nil
	}
	if err := s.visitor.Validate(); err != nil {
		return "", err
	}

	id, err := saver.SaveConversation(ctx, s.visitor, s.transcript())
	if err != nil {
		return "", err
	}
	s.lastActive = s.now()
	if id != "" {
		s.saved = true
		s.pageID = id
	}
	return id, nil
}

// Close is the best-effort save when a session ends. It does nothing when
// the contact was already saved or the identity is incomplete.
func (s *Session) Close(ctx context.Context, saver Saver) string {
	st := s.State()
	switch {
	case st.Saved:
		slog.Debug("session closed, contact already saved", "session", s.id)
		return st.PageID
	case st.Name == "" || st.Email == "":
		slog.Warn("session ended without visitor name or email", "session", s.id)
		return ""
	}

	id, err := s.SaveContact(ctx, saver)
	if err != nil || id == "" {
		slog.Warn("saving conversation on session end failed", "session", s.id, "error", err)
		return ""
	}
	slog.Info("conversation saved on session end", "session", s.id, "id", id)
	return id
}

// transcript returns the recorded turns, or a two-line placeholder when
// nothing was recorded. Callers hold s.mu.
func (s *Session) transcript() []record.Turn {
	if len(s.turns) > 0 {
		return append([]record.Turn{}, s.turns...)
	}
	return []record.Turn{
		{Role: record.RoleVisitor, Content: "Contact information collected"},
		{Role: record.RoleAgent, Content: fmt.Sprintf("Contact info saved for %s (%s)", s.visitor.Name, s.visitor.Email)},
	}
}

func (s *Session) update(fn func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fn()
	s.lastActive = s.now()
}

func (s *Session) idleSince() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastActive
}
