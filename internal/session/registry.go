package session

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Registry maps session ids to live sessions for the network adapters.
type Registry struct {
	mu       sync.RWMutex
	sessions map[string]*Session
	now      func() time.Time
}

func NewRegistry() *Registry {
	return &Registry{sessions: make(map[string]*Session), now: time.Now}
}

// Create starts a session under a fresh random id.
func (r *Registry) Create() *Session {
	s := newSession(uuid.NewString(), r.now)
	r.mu.Lock()
	r.sessions[s.id] = s
	r.mu.Unlock()
	return s
}

func (r *Registry) Get(id string) (*Session, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.sessions[id]
	return s, ok
}

func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

// End removes the session and runs its best-effort save. It reports false
// when no session has that id.
func (r *Registry) End(ctx context.Context, id string, saver Saver) (string, bool) {
	r.mu.Lock()
	s, ok := r.sessions[id]
	delete(r.sessions, id)
	r.mu.Unlock()
	if !ok {
		return "", false
	}
	return s.Close(ctx, saver), true
}

// EndIdle ends every session untouched for at least idle and returns how
// many were ended. An idle of zero ends them all.
func (r *Registry) EndIdle(ctx context.Context, idle time.Duration, saver Saver) int {
	cutoff := r.now().Add(-idle)

	r.mu.Lock()
	var stale []*Session
	for id, s := range r.sessions {
		if !s.idleSince().After(cutoff) {
			stale = append(stale, s)
			delete(r.sessions, id)
		}
	}
	r.mu.Unlock()

	for _, s := range stale {
		s.Close(ctx, saver)
	}
	return len(stale)
}
