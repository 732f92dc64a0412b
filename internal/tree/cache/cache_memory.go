package cache

import (
	"context"
	"sync"
	"time"

	"rehla/internal/tree/models"
	"rehla/pkg/platform/sentinel"
)

type entry struct {
	tree      models.Tree
	expiresAt time.Time
}

// InMemory caches tree profiles for a fixed TTL.
type InMemory struct {
	mu      sync.RWMutex
	entries map[string]entry
	ttl     time.Duration
	clock   func() time.Time
}

// Option configures an InMemory cache.
type Option func(*InMemory)

func WithClock(clock func() time.Time) Option {
	return func(c *InMemory) {
		if clock != nil {
			c.clock = clock
		}
	}
}

func NewInMemory(ttl time.Duration, opts ...Option) *InMemory {
	c := &InMemory{
		entries: make(map[string]entry),
		ttl:     ttl,
		clock:   time.Now,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(c)
		}
	}
	return c
}

// Get returns sentinel.ErrNotFound on a miss or an expired entry.
func (c *InMemory) Get(_ context.Context, serial string) (*models.Tree, error) {
	c.mu.RLock()
	e, ok := c.entries[serial]
	c.mu.RUnlock()
	if !ok || !c.clock().Before(e.expiresAt) {
		return nil, sentinel.ErrNotFound
	}
	tree := e.tree
	return &tree, nil
}

func (c *InMemory) Set(_ context.Context, serial string, tree *models.Tree) error {
	if c.ttl <= 0 {
		return nil
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[serial] = entry{tree: *tree, expiresAt: c.clock().Add(c.ttl)}
	return nil
}

func (c *InMemory) Delete(_ context.Context, serial string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, serial)
	return nil
}

// Sweep drops expired entries and returns how many were removed.
func (c *InMemory) Sweep() int {
	now := c.clock()
	c.mu.Lock()
	defer c.mu.Unlock()
	removed := 0
	for k, e := range c.entries {
		if !now.Before(e.expiresAt) {
			delete(c.entries, k)
			removed++
		}
	}
	return removed
}

// Run sweeps every interval until ctx is done.
func (c *InMemory) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.Sweep()
		}
	}
}
