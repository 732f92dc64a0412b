package store

import (
	"context"
	"slices"
	"strings"
	"sync"

	"rehla/internal/advisory"
)

// DefaultCapacity bounds the in-memory store.
const DefaultCapacity = 1000

// InMemory keeps the most recent advisories, oldest evicted first.
type InMemory struct {
	mu       sync.RWMutex
	events   []advisory.Event
	capacity int
}

func NewInMemory(capacity int) *InMemory {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &InMemory{capacity: capacity}
}

func (s *InMemory) Append(_ context.Context, event advisory.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, event)
	if over := len(s.events) - s.capacity; over > 0 {
		s.events = slices.Delete(s.events, 0, over)
	}
	return nil
}

// List returns matching events, newest first.
func (s *InMemory) List(_ context.Context, filter advisory.Filter) ([]advisory.Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	limit := filter.EffectiveLimit()
	out := make([]advisory.Event, 0, min(limit, len(s.events)))
	for i := len(s.events) - 1; i >= 0 && len(out) < limit; i-- {
		if matchesHost(filter.Hosts, s.events[i].Host) {
			out = append(out, s.events[i])
		}
	}
	return out, nil
}

func matchesHost(hosts []string, host string) bool {
	if len(hosts) == 0 {
		return true
	}
	for _, h := range hosts {
		if strings.EqualFold(h, host) {
			return true
		}
	}
	return false
}
