package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"rehla/internal/auth"
	"rehla/pkg/platform/sentinel"
)

const sessionKeyPrefix = "rehla:session:"

// RedisStore keeps one session per profile, expiring with the token.
type RedisStore struct {
	client redis.Cmdable
	key    string
	clock  func() time.Time
}

// RedisOption configures a RedisStore.
type RedisOption func(*RedisStore)

func WithRedisClock(clock func() time.Time) RedisOption {
	return func(s *RedisStore) {
		if clock != nil {
			s.clock = clock
		}
	}
}

func NewRedis(client redis.Cmdable, profile string, opts ...RedisOption) *RedisStore {
	if profile == "" {
		profile = "default"
	}
	s := &RedisStore{
		client: client,
		key:    sessionKeyPrefix + profile,
		clock:  time.Now,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	return s
}

func (s *RedisStore) Load(ctx context.Context) (*auth.Session, error) {
	raw, err := s.client.Get(ctx, s.key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, sentinel.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load session: %w", err)
	}
	var session auth.Session
	if err := json.Unmarshal(raw, &session); err != nil {
		return nil, fmt.Errorf("decode session: %w", err)
	}
	return &session, nil
}

// Save stores session with a TTL matching the token's remaining lifetime.
// An already expired session is not stored.
func (s *RedisStore) Save(ctx context.Context, session *auth.Session) error {
	now := s.clock()
	if session.Expired(now) {
		return s.Clear(ctx)
	}
	raw, err := json.Marshal(session)
	if err != nil {
		return fmt.Errorf("encode session: %w", err)
	}
	if err := s.client.Set(ctx, s.key, raw, session.TTL(now)).Err(); err != nil {
		return fmt.Errorf("save session: %w", err)
	}
	return nil
}

func (s *RedisStore) Clear(ctx context.Context) error {
	if err := s.client.Del(ctx, s.key).Err(); err != nil {
		return fmt.Errorf("clear session: %w", err)
	}
	return nil
}
