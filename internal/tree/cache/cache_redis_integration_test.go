//go:build integration

package cache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"rehla/internal/tree/models"
	"rehla/pkg/platform/sentinel"
	"rehla/pkg/testutil/containers"
)

type RedisSuite struct {
	suite.Suite
	redis *containers.RedisContainer
	cache *Redis
}

func TestRedisSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(RedisSuite))
}

func (s *RedisSuite) SetupSuite() {
	s.redis = containers.NewRedisContainer(s.T())
	s.cache = NewRedis(s.redis.Client, time.Minute)
}

func (s *RedisSuite) TearDownSuite() {
	s.redis.Close(context.Background())
}

func (s *RedisSuite) TestRoundTripAndEvict() {
	ctx := context.Background()
	lat, lon := 24.4, 54.6
	tree := &models.Tree{
		ID:           5,
		SerialNumber: "ABC123",
		Latitude:     &lat,
		Longitude:    &lon,
		Photos:       []models.Photo{{ID: 1, URL: "http://cms/uploads/a.jpg"}},
	}
	s.Require().NoError(s.cache.Set(ctx, "ABC123", tree))

	got, err := s.cache.Get(ctx, "ABC123")
	s.Require().NoError(err)
	s.Equal(tree, got)

	ttl, err := s.redis.Client.TTL(ctx, "rehla:tree:ABC123").Result()
	s.Require().NoError(err)
	s.Positive(ttl)

	s.Require().NoError(s.cache.Delete(ctx, "ABC123"))
	_, err = s.cache.Get(ctx, "ABC123")
	s.ErrorIs(err, sentinel.ErrNotFound)
}
