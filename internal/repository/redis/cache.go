package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// ErrCacheMiss is returned when a key is not found in cache
var ErrCacheMiss = fmt.Errorf("cache miss")

// Cache provides Redis caching functionality
type Cache struct {
	client *redis.Client
}

// NewCache creates a new Redis cache client
func NewCache(client *redis.Client) *Cache {
	return &Cache{client: client}
}

// Set sets a value in the cache with TTL
func (c *Cache) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("marshal value: %w", err)
	}

	return c.client.Set(ctx, key, data, ttl).Err()
}

// Get gets a value from the cache
func (c *Cache) Get(ctx context.Context, key string, dest interface{}) error {
	data, err := c.client.Get(ctx, key).Bytes()
	if err != nil {
		if err == redis.Nil {
			return ErrCacheMiss
		}
		return fmt.Errorf("get value: %w", err)
	}

	if err := json.Unmarshal(data, dest); err != nil {
		return fmt.Errorf("unmarshal value: %w", err)
	}

	return nil
}

// SetNX sets a value only if the key does not exist yet. Used to
// short-circuit duplicate webhook deliveries before they hit the database.
func (c *Cache) SetNX(ctx context.Context, key string, value interface{}, ttl time.Duration) (bool, error) {
	data, err := json.Marshal(value)
	if err != nil {
		return false, fmt.Errorf("marshal value: %w", err)
	}

	return c.client.SetNX(ctx, key, data, ttl).Result()
}

// IncrementWithTTL increments a counter and refreshes its TTL
func (c *Cache) IncrementWithTTL(ctx context.Context, key string, ttl time.Duration) (int64, error) {
	pipe := c.client.Pipeline()
	incr := pipe.Incr(ctx, key)
	pipe.Expire(ctx, key, ttl)

	if _, err := pipe.Exec(ctx); err != nil {
		return 0, fmt.Errorf("increment with TTL: %w", err)
	}

	return incr.Val(), nil
}

// Ping checks if Redis is available
func (c *Cache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

// Key prefixes for different data types
const (
	KeyPrefixWebhookEvent = "webhook_event:"
	KeyPrefixCredential   = "gateway_credential:"
	KeyPrefixRateLimit    = "ratelimit:"
)

// WebhookEventKey builds the dedupe key for one provider event delivery
func WebhookEventKey(gw, eventID string) string {
	return fmt.Sprintf("%s%s:%s", KeyPrefixWebhookEvent, gw, eventID)
}

// CredentialKey builds the cache key for a gateway's active credential
func CredentialKey(gw string) string {
	return KeyPrefixCredential + gw
}

// RateLimitKey builds a rate limit key for an IP and endpoint
func RateLimitKey(ip, endpoint string) string {
	return fmt.Sprintf("%s%s:%s", KeyPrefixRateLimit, endpoint, ip)
}
