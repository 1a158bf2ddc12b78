// Package cache provides a Redis-backed cache for built exports.
// Rebuilding an export walks the full regatta tree and re-serializes it;
// result pages hit the download link repeatedly during an event, so the
// built payload is kept until the regatta changes again.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// ErrMiss reports that no cached export exists for the key.
var ErrMiss = errors.New("cache: miss")

// Export is the cached payload.
type Export struct {
	Text     string    `json:"text"`
	Filename string    `json:"filename"`
	MimeType string    `json:"mime_type"`
	BuiltAt  time.Time `json:"built_at"`
}

// RedisCache stores built exports keyed by regatta id and option set.
type RedisCache struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

// New creates a Redis-backed export cache.
func New(redisURL string, ttl time.Duration) (*RedisCache, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}

	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("connect to redis: %w", err)
	}

	return NewWithClient(client, ttl), nil
}

// NewWithClient creates a cache from an existing Redis client.
func NewWithClient(client *redis.Client, ttl time.Duration) *RedisCache {
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &RedisCache{client: client, prefix: "export:", ttl: ttl}
}

func (c *RedisCache) key(regattaID, variant string) string {
	return c.prefix + regattaID + ":" + variant
}

// Put stores a built export for one regatta/option combination.
func (c *RedisCache) Put(ctx context.Context, regattaID, variant string, export Export) error {
	payload, err := json.Marshal(export)
	if err != nil {
		return fmt.Errorf("marshal export: %w", err)
	}
	if err := c.client.Set(ctx, c.key(regattaID, variant), payload, c.ttl).Err(); err != nil {
		return fmt.Errorf("cache export: %w", err)
	}
	return nil
}

// Get retrieves a cached export, returning ErrMiss when absent.
func (c *RedisCache) Get(ctx context.Context, regattaID, variant string) (Export, error) {
	payload, err := c.client.Get(ctx, c.key(regattaID, variant)).Result()
	if err == redis.Nil {
		return Export{}, ErrMiss
	}
	if err != nil {
		return Export{}, fmt.Errorf("lookup export: %w", err)
	}
	var export Export
	if err := json.Unmarshal([]byte(payload), &export); err != nil {
		return Export{}, fmt.Errorf("unmarshal export: %w", err)
	}
	return export, nil
}

// Invalidate drops every cached variant for a regatta. Called after any
// write that changes what an export would contain.
func (c *RedisCache) Invalidate(ctx context.Context, regattaID string) error {
	iter := c.client.Scan(ctx, 0, c.prefix+regattaID+":*", 0).Iterator()
	var keys []string
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return fmt.Errorf("scan export keys: %w", err)
	}
	if len(keys) == 0 {
		return nil
	}
	if err := c.client.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("invalidate exports: %w", err)
	}
	return nil
}

// Close closes the Redis connection
func (c *RedisCache) Close() error {
	return c.client.Close()
}

// Ping checks if Redis is reachable
func (c *RedisCache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}
