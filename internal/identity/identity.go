// internal/identity/identity.go
package identity

import (
	"context"
	"sync"
)

// Identity is the authenticated caller.
type Identity struct {
	ID    string   `json:"id"`
	Email string   `json:"email"`
	Roles []string `json:"roles,omitempty"`
}

func (i *Identity) HasRole(role string) bool {
	if i == nil {
		return false
	}
	for _, r := range i.Roles {
		if r == role {
			return true
		}
	}
	return false
}

// Provider resolves a bearer token to an Identity.
type Provider interface {
	Authenticate(ctx context.Context, token string) (*Identity, error)
}

// Session holds the current identity of one connection and fans out
// auth-state changes to its listeners.
type Session struct {
	mu        sync.RWMutex
	current   *Identity
	listeners map[int]func(*Identity)
	nextID    int
}

func NewSession(initial *Identity) *Session {
	return &Session{
		current:   clone(initial),
		listeners: make(map[int]func(*Identity)),
	}
}

// CurrentUser returns a copy of the current identity, or nil when signed out.
func (s *Session) CurrentUser() *Identity {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return clone(s.current)
}

// SetUser replaces the identity. Listeners run only when the user id changes.
func (s *Session) SetUser(user *Identity) {
	s.mu.Lock()
	if sameUser(s.current, user) {
		s.current = clone(user)
		s.mu.Unlock()
		return
	}
	s.current = clone(user)
	fns := make([]func(*Identity), 0, len(s.listeners))
	for _, fn := range s.listeners {
		fns = append(fns, fn)
	}
	s.mu.Unlock()

	for _, fn := range fns {
		fn(clone(user))
	}
}

// OnChange registers fn and returns a function that removes it.
func (s *Session) OnChange(fn func(*Identity)) func() {
	s.mu.Lock()
	id := s.nextID
	s.nextID++
	s.listeners[id] = fn
	s.mu.Unlock()

	return func() {
		s.mu.Lock()
		delete(s.listeners, id)
		s.mu.Unlock()
	}
}

func sameUser(a, b *Identity) bool {
	if a == nil || b == nil {
		return a == b
	}
	return a.ID == b.ID
}

func clone(u *Identity) *Identity {
	if u == nil {
		return nil
	}
	c := *u
	if u.Roles != nil {
		c.Roles = append([]string(nil), u.Roles...)
	}
	return &c
}
