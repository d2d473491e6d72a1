// Package cache keeps a Redis copy of the immutable part of links so the
// redirect path can skip the Store lookup.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/axellelanca/shortlinks/internal/config"
)

// Entry is what gets cached for a code. Only fields that never change after
// creation are stored; counters always come from the Store.
type Entry struct {
	LinkID string `json:"link_id"`
	URL    string `json:"url"`
}

// RedisCache implements a cache-aside lookup keyed by short code.
type RedisCache struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

// NewRedisClient connects to Redis and checks the connection.
func NewRedisClient(ctx context.Context, cfg config.CacheConfig) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to reach redis at %s: %w", cfg.RedisAddr, err)
	}
	return client, nil
}

// New wraps an existing client.
func New(client *redis.Client, prefix string, ttl time.Duration) *RedisCache {
	return &RedisCache{client: client, prefix: prefix, ttl: ttl}
}

func (c *RedisCache) key(code string) string {
	return c.prefix + code
}

// Get returns the cached entry and whether it was present.
func (c *RedisCache) Get(ctx context.Context, code string) (*Entry, bool, error) {
	data, err := c.client.Get(ctx, c.key(code)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("cache get error: %w", err)
	}

	var entry Entry
	if err := json.Unmarshal(data, &entry); err != nil {
		return nil, false, fmt.Errorf("cache decode error: %w", err)
	}
	return &entry, true, nil
}

// Set stores the entry for code with the configured TTL.
func (c *RedisCache) Set(ctx context.Context, code string, entry Entry) error {
	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("cache encode error: %w", err)
	}
	if err := c.client.Set(ctx, c.key(code), data, c.ttl).Err(); err != nil {
		return fmt.Errorf("cache set error: %w", err)
	}
	return nil
}

// Delete removes the entry for code. Missing keys are not an error.
func (c *RedisCache) Delete(ctx context.Context, code string) error {
	if err := c.client.Del(ctx, c.key(code)).Err(); err != nil {
		return fmt.Errorf("cache delete error: %w", err)
	}
	return nil
}

// Close closes the underlying client.
func (c *RedisCache) Close() error {
	return c.client.Close()
}
