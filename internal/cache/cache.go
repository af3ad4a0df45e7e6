package cache

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

// Cache is the Redis-backed store for rate-limit counters and processed-webhook markers.
// Implementations must be safe for concurrent use.
type Cache interface {
	Ping(ctx context.Context) error
	MarkWebhookProcessed(ctx context.Context, paymentID string, ttl time.Duration) error
	IsWebhookProcessed(ctx context.Context, paymentID string) (bool, error)
	IncrWithExpiry(ctx context.Context, key string, expiry time.Duration) (int64, error)
}

// RedisCache implements the Cache interface using go-redis/v9.
type RedisCache struct {
	client *redis.Client
}

// NewRedisCache creates a new RedisCache from a Redis URL.
func NewRedisCache(redisURL string) (*RedisCache, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, err
	}
	return &RedisCache{client: redis.NewClient(opts)}, nil
}

// Close releases the underlying connection pool.
func (c *RedisCache) Close() error {
	return c.client.Close()
}

func (c *RedisCache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

func (c *RedisCache) MarkWebhookProcessed(ctx context.Context, paymentID string, ttl time.Duration) error {
	return c.client.Set(ctx, WebhookProcessedKey(paymentID), "1", ttl).Err()
}

func (c *RedisCache) IsWebhookProcessed(ctx context.Context, paymentID string) (bool, error) {
	n, err := c.client.Exists(ctx, WebhookProcessedKey(paymentID)).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (c *RedisCache) IncrWithExpiry(ctx context.Context, key string, expiry time.Duration) (int64, error) {
	pipe := c.client.TxPipeline()
	incr := pipe.Incr(ctx, key)
	pipe.ExpireNX(ctx, key, expiry)
	if _, err := pipe.Exec(ctx); err != nil {
		return 0, err
	}
	return incr.Val(), nil
}

var _ Cache = (*RedisCache)(nil)
