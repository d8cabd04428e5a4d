// Package identity supplies the current authenticated user id, or none.
// Authentication itself is an external concern; this package only carries
// the resulting identity and signals when it changes.
package identity

import (
	"context"
	"sync"
)

// Provider yields the current identity. The second return is false when no
// identity is present (signed out).
type Provider interface {
	Current(ctx context.Context) (string, bool)
}

// Static is a session-scoped provider holding one identity that may change
// asynchronously (e.g. on sign-out). Watchers run synchronously on change.
type Static struct {
	mu       sync.RWMutex
	id       string
	watchers []func(previous, current string)
}

// NewStatic creates a provider with the given identity; empty means none.
func NewStatic(id string) *Static {
	return &Static{id: id}
}

func (s *Static) Current(_ context.Context) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.id, s.id != ""
}

// Set replaces the identity and notifies watchers if it changed.
func (s *Static) Set(id string) {
	s.mu.Lock()
	previous := s.id
	if previous == id {
		s.mu.Unlock()
		return
	}
	s.id = id
	watchers := make([]func(string, string), len(s.watchers))
	copy(watchers, s.watchers)
	s.mu.Unlock()

	for _, fn := range watchers {
		fn(previous, id)
	}
}

// OnChange registers a watcher invoked whenever the identity changes.
func (s *Static) OnChange(fn func(previous, current string)) {
	s.mu.Lock()
	s.watchers = append(s.watchers, fn)
	s.mu.Unlock()
}
