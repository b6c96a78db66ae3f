package attempt

import (
	"errors"
	"sync"

	"github.com/google/uuid"
)

var ErrSessionNotFound = errors.New("attempt session not found")

// Registry keeps the live attempts of a server process under opaque
// session handles.
type Registry struct {
	mu       sync.RWMutex
	sessions map[string]*Attempt
}

func NewRegistry() *Registry {
	return &Registry{sessions: make(map[string]*Attempt)}
}

// Add stores a and returns its handle.
func (r *Registry) Add(a *Attempt) string {
	id := uuid.NewString()
	r.mu.Lock()
	r.sessions[id] = a
	r.mu.Unlock()
	return id
}

// Get returns the attempt only to the student who owns it.
func (r *Registry) Get(id, ownerID string) (*Attempt, error) {
	r.mu.RLock()
	a, ok := r.sessions[id]
	r.mu.RUnlock()
	if !ok || a.student.ID != ownerID {
		return nil, ErrSessionNotFound
	}
	return a, nil
}

// Remove closes the attempt and forgets it.
func (r *Registry) Remove(id string) {
	r.mu.Lock()
	a, ok := r.sessions[id]
	delete(r.sessions, id)
	r.mu.Unlock()
	if ok {
		a.Close()
	}
}

// Forget drops a finished attempt without closing it.
func (r *Registry) Forget(id string) {
	r.mu.Lock()
	delete(r.sessions, id)
	r.mu.Unlock()
}

// AbandonAllFor closes every attempt owned by studentID. It is called on
// sign-out and returns how many were dropped.
func (r *Registry) AbandonAllFor(studentID string) int {
	r.mu.Lock()
	var drop []*Attempt
	for id, a := range r.sessions {
		if a.student.ID == studentID {
			drop = append(drop, a)
			delete(r.sessions, id)
		}
	}
	r.mu.Unlock()
	for _, a := range drop {
		a.Close()
	}
	return len(drop)
}

// CloseAll abandons every live attempt, for shutdown.
func (r *Registry) CloseAll() {
	r.mu.Lock()
	live := r.sessions
	r.sessions = make(map[string]*Attempt)
	r.mu.Unlock()
	for _, a := range live {
		a.Close()
	}
}

func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}
