package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/hetulpatel/reportqa/internal/document"
)

// TextCache stores extracted document text keyed by extractor and content hash.
type TextCache interface {
	document.TextCache
	Ping(ctx context.Context) error
	Close() error
}

type redisTextCache struct {
	client *redis.Client
	ttl    time.Duration
	prefix string
}

// NewRedisTextCache builds a cache with the given addr/password/db.
func NewRedisTextCache(addr, password string, db int, ttl time.Duration, prefix string) (TextCache, error) {
	if addr == "" {
		return nil, fmt.Errorf("redis addr is required")
	}
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	return newRedisTextCache(client, ttl, prefix), nil
}

func newRedisTextCache(client *redis.Client, ttl time.Duration, prefix string) *redisTextCache {
	if ttl <= 0 {
		ttl = 240 * time.Hour // 10 days
	}
	if prefix == "" {
		prefix = "doctext"
	}
	return &redisTextCache{
		client: client,
		ttl:    ttl,
		prefix: prefix,
	}
}

// Ping checks connectivity so callers can fall back to uncached loading.
func (c *redisTextCache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

func (c *redisTextCache) key(k string) string {
	return fmt.Sprintf("%s:%s", c.prefix, k)
}

func (c *redisTextCache) Get(ctx context.Context, key string) (*document.CachedText, bool, error) {
	if c == nil || c.client == nil {
		return nil, false, nil
	}
	data, err := c.client.Get(ctx, c.key(key)).Bytes()
	if err == redis.Nil {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	var out document.CachedText
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, false, err
	}
	return &out, true, nil
}

func (c *redisTextCache) Set(ctx context.Context, key string, value document.CachedText) error {
	if c == nil || c.client == nil {
		return nil
	}
	data, err := json.Marshal(value)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, c.key(key), data, c.ttl).Err()
}

func (c *redisTextCache) Close() error {
	if c == nil || c.client == nil {
		return nil
	}
	return c.client.Close()
}
