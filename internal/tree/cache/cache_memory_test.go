package cache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"rehla/internal/tree/models"
	"rehla/pkg/platform/sentinel"
)

type InMemorySuite struct {
	suite.Suite
	now   time.Time
	cache *InMemory
	ctx   context.Context
}

func TestInMemorySuite(t *testing.T) {
	suite.Run(t, new(InMemorySuite))
}

func (s *InMemorySuite) SetupTest() {
	s.now = time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	s.cache = NewInMemory(time.Minute, WithClock(func() time.Time { return s.now }))
	s.ctx = context.Background()
}

func (s *InMemorySuite) TestMiss() {
	_, err := s.cache.Get(s.ctx, "ABC123")
	s.ErrorIs(err, sentinel.ErrNotFound)
}

func (s *InMemorySuite) TestHitUntilTTL() {
	s.Require().NoError(s.cache.Set(s.ctx, "ABC123", &models.Tree{SerialNumber: "ABC123", Species: "Ghaf"}))

	got, err := s.cache.Get(s.ctx, "ABC123")
	s.Require().NoError(err)
	s.Equal("Ghaf", got.Species)

	s.now = s.now.Add(time.Minute)
	_, err = s.cache.Get(s.ctx, "ABC123")
	s.ErrorIs(err, sentinel.ErrNotFound)
	s.Equal(1, s.cache.Sweep())
	s.Equal(0, s.cache.Sweep())
}

func (s *InMemorySuite) TestReturnedTreeIsACopy() {
	s.Require().NoError(s.cache.Set(s.ctx, "A", &models.Tree{Species: "Ghaf"}))
	got, err := s.cache.Get(s.ctx, "A")
	s.Require().NoError(err)
	got.Species = "changed"

	again, err := s.cache.Get(s.ctx, "A")
	s.Require().NoError(err)
	s.Equal("Ghaf", again.Species)
}

func (s *InMemorySuite) TestDelete() {
	s.Require().NoError(s.cache.Set(s.ctx, "A", &models.Tree{}))
	s.Require().NoError(s.cache.Delete(s.ctx, "A"))
	_, err := s.cache.Get(s.ctx, "A")
	s.ErrorIs(err, sentinel.ErrNotFound)
}

func (s *InMemorySuite) TestZeroTTLDisablesCaching() {
	c := NewInMemory(0)
	s.Require().NoError(c.Set(s.ctx, "A", &models.Tree{}))
	_, err := c.Get(s.ctx, "A")
	s.ErrorIs(err, sentinel.ErrNotFound)
}
