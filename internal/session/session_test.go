package session

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kalambet/folio/internal/record"
	"github.com/kalambet/folio/internal/recorder"
)

type fakeSaver struct {
	mu      sync.Mutex
	id      string
	err     error
	calls   int
	visitor recorder.Visitor
	turns   []record.Turn
}

func (f *fakeSaver) SaveConversation(_ context.Context, v recorder.Visitor, turns []record.Turn) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	f.visitor = v
	f.turns = turns
	return f.id, f.err
}

func TestTrack(t *testing.T) {
	s := New("s1")
	require.NoError(t, s.TrackName("  Sarah "))
	require.NoError(t, s.TrackEmail("sarah@x.com"))
	s.TrackPhone("+49 170 0000000")

	st := s.State()
	assert.Equal(t, "s1", st.ID)
	assert.Equal(t, "Sarah", st.Name)
	assert.Equal(t, "sarah@x.com", st.Email)
	assert.Equal(t, "+49 170 0000000", st.Phone)

	var ve *record.ValidationError
	require.True(t, errors.As(s.TrackEmail("not-an-email"), &ve))
	assert.Equal(t, "email", ve.Field)
	assert.Equal(t, "sarah@x.com", s.State().Email, "invalid email does not overwrite")
	require.ErrorIs(t, s.TrackName(""), record.ErrValidation)
}

func TestSaveContact_RequiresIdentity(t *testing.T) {
	s := New("s1")
	saver := &fakeSaver{id: "p1"}

	_, err := s.SaveContact(context.Background(), saver)
	var ve *record.ValidationError
	require.True(t, errors.As(err, &ve))
	assert.Equal(t, "name", ve.Field)

	require.NoError(t, s.TrackName("Sarah"))
	_, err = s.SaveContact(context.Background(), saver)
	require.True(t, errors.As(err, &ve))
	assert.Equal(t, "email", ve.Field)
	assert.Zero(t, saver.calls)
}

func TestSaveContact_PlaceholderTranscript(t *testing.T) {
	s := New("s1")
	require.NoError(t, s.TrackName("Sarah"))
	require.NoError(t, s.TrackEmail("sarah@x.com"))
	saver := &fakeSaver{id: "p1"}

	id, err := s.SaveContact(context.Background(), saver)
	require.NoError(t, err)
	assert.Equal(t, "p1", id)
	assert.Equal(t, []record.Turn{
		{Role: record.RoleVisitor, Content: "Contact information collected"},
		{Role: record.RoleAgent, Content: "Contact info saved for Sarah (sarah@x.com)"},
	}, saver.turns)
	assert.True(t, s.State().Saved)
}

func TestSaveContact_RecordedTranscript(t *testing.T) {
	s := New("s1")
	s.AddTurn(record.RoleVisitor, "Do you know Go?")
	s.AddTurn(record.RoleAgent, "Yes, for years.")
	require.NoError(t, s.TrackName("Sarah"))
	require.NoError(t, s.TrackEmail("sarah@x.com"))
	saver := &fakeSaver{id: "p1"}

	_, err := s.SaveContact(context.Background(), saver)
	require.NoError(t, err)
	require.Len(t, saver.turns, 2)
	assert.Equal(t, "Do you know Go?", saver.turns[0].Content)
}

func TestSaveContact_OnlyOnce(t *testing.T) {
	s := New("s1")
	require.NoError(t, s.TrackName("Sarah"))
	require.NoError(t, s.TrackEmail("sarah@x.com"))
	saver := &fakeSaver{id: "p1"}

	var wg sync.WaitGroup
	for range 10 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			id, err := s.SaveContact(context.Background(), saver)
			assert.NoError(t, err)
			assert.Equal(t, "p1", id)
		}()
	}
	wg.Wait()
	assert.Equal(t, 1, saver.calls)

	assert.Equal(t, "p1", s.Close(context.Background(), saver))
	assert.Equal(t, 1, saver.calls, "close after save does not write again")
}

func TestSaveContact_FailedWriteCanRetry(t *testing.T) {
	s := New("s1")
	require.NoError(t, s.TrackName("Sarah"))
	require.NoError(t, s.TrackEmail("sarah@x.com"))
	saver := &fakeSaver{}

	id, err := s.SaveContact(context.Background(), saver)
	require.NoError(t, err)
	assert.Empty(t, id)
	assert.False(t, s.State().Saved)

	saver.id = "p2"
	id, err = s.SaveContact(context.Background(), saver)
	require.NoError(t, err)
	assert.Equal(t, "p2", id)
	assert.Equal(t, 2, saver.calls)
}

func TestClose(t *testing.T) {
	saver := &fakeSaver{id: "p1"}

	anonymous := New("anon")
	assert.Empty(t, anonymous.Close(context.Background(), saver))
	assert.Zero(t, saver.calls)

	s := New("s1")
	require.NoError(t, s.TrackName("Sarah"))
	require.NoError(t, s.TrackEmail("sarah@x.com"))
	assert.Equal(t, "p1", s.Close(context.Background(), saver))
	assert.Equal(t, 1, saver.calls)
	assert.Equal(t, "sarah@x.com", saver.visitor.Email)
}

func TestRegistry(t *testing.T) {
	r := NewRegistry()
	a := r.Create()
	b := r.Create()
	assert.NotEqual(t, a.ID(), b.ID())
	assert.Equal(t, 2, r.Len())

	got, ok := r.Get(a.ID())
	require.True(t, ok)
	assert.Same(t, a, got)

	require.NoError(t, a.TrackName("Sarah"))
	_, ok = r.Get(b.ID())
	require.True(t, ok)
	assert.Empty(t, b.State().Name, "sessions do not share state")

	saver := &fakeSaver{id: "p1"}
	_, ok = r.End(context.Background(), a.ID(), saver)
	assert.True(t, ok)
	_, ok = r.Get(a.ID())
	assert.False(t, ok)
	_, ok = r.End(context.Background(), "missing", saver)
	assert.False(t, ok)
	assert.Zero(t, saver.calls, "incomplete identity is not saved")
}

func TestRegistry_EndIdle(t *testing.T) {
	now := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	r := NewRegistry()
	r.now = func() time.Time { return now }

	old := r.Create()
	require.NoError(t, old.TrackName("Sarah"))
	require.NoError(t, old.TrackEmail("sarah@x.com"))

	now = now.Add(time.Hour)
	fresh := r.Create()

	saver := &fakeSaver{id: "p1"}
	n := r.EndIdle(context.Background(), 30*time.Minute, saver)
	assert.Equal(t, 1, n)
	assert.Equal(t, 1, saver.calls)

	_, ok := r.Get(fresh.ID())
	assert.True(t, ok)
	_, ok = r.Get(old.ID())
	assert.False(t, ok)

	// Shutdown ends everything, even a session touched this instant.
	assert.Equal(t, 1, r.EndIdle(context.Background(), 0, saver))
	assert.Zero(t, r.Len())
}

func TestAddTurn_KeepsEmptyContent(t *testing.T) {
	saver := &fakeSaver{id: "p1"}
	s := New("s1")
	s.AddTurn(record.RoleVisitor, "Hello?")
	s.AddTurn(record.RoleAgent, "")
	s.AddTurn(record.RoleVisitor, "  ")
	require.Len(t, s.State().Turns, 3)

	require.NoError(t, s.TrackName("Sarah"))
	require.NoError(t, s.TrackEmail("sarah@x.com"))
	_, err := s.SaveContact(context.Background(), saver)
	require.NoError(t, err)
	assert.Equal(t, []record.Turn{
		{Role: record.RoleVisitor, Content: "Hello?"},
		{Role: record.RoleAgent, Content: ""},
		{Role: record.RoleVisitor, Content: "  "},
	}, saver.turns)
}
