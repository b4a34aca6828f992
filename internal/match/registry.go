package match

import (
	"sort"
	"sync"

	apperrors "github.com/pefman/tower-duel/internal/platform/errors"
)

// Registry owns the live sessions, indexed by id and by human username.
type Registry struct {
	mu       sync.RWMutex
	sessions map[string]*Session
	byPlayer map[string]string
}

func NewRegistry() *Registry {
	return &Registry{
		sessions: make(map[string]*Session),
		byPlayer: make(map[string]string),
	}
}

// Add registers s and its human participants.
func (r *Registry) Add(s *Session) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sessions[s.ID()] = s
	for _, p := range s.Participants() {
		if !p.Bot {
			r.byPlayer[p.Username] = s.ID()
		}
	}
}

// Remove drops a session. Removing an unknown id is a no-op.
func (r *Registry) Remove(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[id]
	if !ok {
		return
	}
	delete(r.sessions, id)
	for _, p := range s.Participants() {
		if r.byPlayer[p.Username] == id {
			delete(r.byPlayer, p.Username)
		}
	}
}

// Get returns a live session or SessionNotFound.
func (r *Registry) Get(id string) (*Session, error) {
	r.mu.RLock()
	s, ok := r.sessions[id]
	r.mu.RUnlock()
	if !ok || s.Concluded() {
		return nil, apperrors.New(apperrors.CodeSessionNotFound, "session not found")
	}
	return s, nil
}

// ForPlayer returns the live session a human is playing in.
func (r *Registry) ForPlayer(username string) (*Session, bool) {
	r.mu.RLock()
	id, ok := r.byPlayer[username]
	s := r.sessions[id]
	r.mu.RUnlock()
	if !ok || s == nil || s.Concluded() {
		return nil, false
	}
	return s, true
}

// List returns live sessions ordered by id.
func (r *Registry) List() []*Session {
	r.mu.RLock()
	out := make([]*Session, 0, len(r.sessions))
	for _, s := range r.sessions {
		out = append(out, s)
	}
	r.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].ID() < out[j].ID() })
	return out
}

// Len returns the number of registered sessions.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}
