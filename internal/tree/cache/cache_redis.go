package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"rehla/internal/tree/models"
	"rehla/pkg/platform/sentinel"
)

const treeKeyPrefix = "rehla:tree:"

// Redis caches tree profiles shared across server instances.
type Redis struct {
	client redis.Cmdable
	ttl    time.Duration
}

func NewRedis(client redis.Cmdable, ttl time.Duration) *Redis {
	return &Redis{client: client, ttl: ttl}
}

func (c *Redis) Get(ctx context.Context, serial string) (*models.Tree, error) {
	raw, err := c.client.Get(ctx, treeKeyPrefix+serial).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, sentinel.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get cached tree: %w", err)
	}
	var tree models.Tree
	if err := json.Unmarshal(raw, &tree); err != nil {
		return nil, fmt.Errorf("decode cached tree: %w", err)
	}
	return &tree, nil
}

func (c *Redis) Set(ctx context.Context, serial string, tree *models.Tree) error {
	if c.ttl <= 0 {
		return nil
	}
	raw, err := json.Marshal(tree)
	if err != nil {
		return fmt.Errorf("encode tree: %w", err)
	}
	if err := c.client.Set(ctx, treeKeyPrefix+serial, raw, c.ttl).Err(); err != nil {
		return fmt.Errorf("cache tree: %w", err)
	}
	return nil
}

func (c *Redis) Delete(ctx context.Context, serial string) error {
	if err := c.client.Del(ctx, treeKeyPrefix+serial).Err(); err != nil {
		return fmt.Errorf("evict tree: %w", err)
	}
	return nil
}
