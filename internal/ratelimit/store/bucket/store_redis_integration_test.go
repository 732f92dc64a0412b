//go:build integration

package bucket

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"rehla/pkg/testutil/containers"
)

type RedisSuite struct {
	suite.Suite
	redis *containers.RedisContainer
	store *Redis
}

func TestRedisSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(RedisSuite))
}

func (s *RedisSuite) SetupSuite() {
	s.redis = containers.NewRedisContainer(s.T())
	s.store = NewRedis(s.redis.Client)
}

func (s *RedisSuite) TearDownSuite() {
	s.redis.Close(context.Background())
}

func (s *RedisSuite) SetupTest() {
	s.Require().NoError(s.redis.FlushAll(context.Background()))
}

func (s *RedisSuite) TestAllowUpToLimit() {
	ctx := context.Background()
	for i := range 3 {
		result, err := s.store.Allow(ctx, "ip:read:10.0.0.1", 3, time.Minute)
		s.Require().NoError(err)
		s.True(result.Allowed)
		s.Equal(3, result.Limit)
		s.Equal(2-i, result.Remaining)
	}

	result, err := s.store.Allow(ctx, "ip:read:10.0.0.1", 3, time.Minute)
	s.Require().NoError(err)
	s.False(result.Allowed)
	s.Zero(result.Remaining)
	s.Positive(result.RetryAfter)

	ttl, err := s.redis.Client.PTTL(ctx, "rehla:ratelimit:ip:read:10.0.0.1").Result()
	s.Require().NoError(err)
	s.Positive(ttl)
}

func (s *RedisSuite) TestWindowExpires() {
	ctx := context.Background()
	_, err := s.store.Allow(ctx, "ip:auth:10.0.0.2", 1, 200*time.Millisecond)
	s.Require().NoError(err)

	s.Eventually(func() bool {
		result, err := s.store.Allow(ctx, "ip:auth:10.0.0.2", 1, 200*time.Millisecond)
		return err == nil && result.Allowed
	}, 2*time.Second, 50*time.Millisecond)
}

func (s *RedisSuite) TestReset() {
	ctx := context.Background()
	_, err := s.store.Allow(ctx, "ip:write:10.0.0.3", 1, time.Minute)
	s.Require().NoError(err)
	s.Require().NoError(s.store.Reset(ctx, "ip:write:10.0.0.3"))

	result, err := s.store.Allow(ctx, "ip:write:10.0.0.3", 1, time.Minute)
	s.Require().NoError(err)
	s.True(result.Allowed)
}
