package session

import (
	"context"
	"sync"

	"rehla/internal/auth"
	"rehla/pkg/platform/sentinel"
)

// InMemory holds a session for the lifetime of the process.
type InMemory struct {
	mu      sync.RWMutex
	session *auth.Session
}

func NewInMemory() *InMemory {
	return &InMemory{}
}

func (s *InMemory) Load(_ context.Context) (*auth.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.session == nil {
		return nil, sentinel.ErrNotFound
	}
	cp := *s.session
	return &cp, nil
}

func (s *InMemory) Save(_ context.Context, session *auth.Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *session
	s.session = &cp
	return nil
}

func (s *InMemory) Clear(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.session = nil
	return nil
}
