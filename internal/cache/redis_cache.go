package cache

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	redis "github.com/redis/go-redis/v9"

	"matjar/backoffice/internal/domain"
)

const keyPrefix = "backoffice:action:"

type RedisActionCache struct {
	client *redis.Client
}

func NewRedisActionCache(addr string, password string, db int) *RedisActionCache {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	return &RedisActionCache{client: client}
}

func (c *RedisActionCache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

func (c *RedisActionCache) Close() error {
	return c.client.Close()
}

func (c *RedisActionCache) Get(ctx context.Context, actionID string) (*domain.ActionResult, bool, error) {
	val, err := c.client.Get(ctx, keyPrefix+actionID).Result()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}

	var result domain.ActionResult
	if err := json.Unmarshal([]byte(val), &result); err != nil {
		return nil, false, err
	}
	return &result, true, nil
}

func (c *RedisActionCache) Set(ctx context.Context, actionID string, value *domain.ActionResult, ttl time.Duration) error {
	if value == nil {
		return nil
	}
	payload, err := json.Marshal(value)
	if err != nil {
		return err
	}
	if ttl < 0 {
		ttl = 0
	}
	return c.client.Set(ctx, keyPrefix+actionID, payload, ttl).Err()
}
