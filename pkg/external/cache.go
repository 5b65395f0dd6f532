// Package external contains clients for outbound dependencies: the
// report structuring service and the Redis cache in front of it.
package external

import (
	"context"
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/lab-report-analyzer/internal/domain"
)

// CacheClient wraps a Redis client with caching for structuring-service
// responses. Reports are re-analyzed often while their text never
// changes, so a text-keyed cache short-circuits most repeat calls.
type CacheClient struct {
	redis      *redis.Client
	defaultTTL time.Duration
}

// NewCacheClient creates a cache client and verifies connectivity.
func NewCacheClient(config domain.CacheConfig) (*CacheClient, error) {
	opts, err := redis.ParseURL(config.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}

	opts.PoolSize = config.PoolSize
	opts.PoolTimeout = config.PoolTimeout
	opts.MaxRetries = config.MaxRetries

	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return &CacheClient{
		redis:      client,
		defaultTTL: config.DefaultTTL,
	}, nil
}

// CachedStructuredTests is the cache envelope for one structuring
// response.
type CachedStructuredTests struct {
	Tests     []domain.ExternalTest `json:"tests"`
	CachedAt  time.Time             `json:"cached_at"`
	ExpiresAt time.Time             `json:"expires_at"`
}

// GetStructuredTests retrieves cached structuring results for the given
// report text.
func (c *CacheClient) GetStructuredTests(ctx context.Context, text string) ([]domain.ExternalTest, bool, error) {
	key := structuredTestsKey(text)

	val, err := c.redis.Get(ctx, key).Result()
	if err == redis.Nil {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to get structured tests cache: %w", err)
	}

	var cached CachedStructuredTests
	if err := json.Unmarshal([]byte(val), &cached); err != nil {
		// Corrupted entry, drop it.
		c.redis.Del(ctx, key)
		return nil, false, nil
	}

	if time.Now().After(cached.ExpiresAt) {
		c.redis.Del(ctx, key)
		return nil, false, nil
	}

	return cached.Tests, true, nil
}

// SetStructuredTests caches structuring results for the given report
// text. A zero ttl uses the configured default.
func (c *CacheClient) SetStructuredTests(ctx context.Context, text string, tests []domain.ExternalTest, ttl time.Duration) error {
	if ttl == 0 {
		ttl = c.defaultTTL
	}

	cached := CachedStructuredTests{
		Tests:     tests,
		CachedAt:  time.Now(),
		ExpiresAt: time.Now().Add(ttl),
	}

	jsonData, err := json.Marshal(cached)
	if err != nil {
		return fmt.Errorf("failed to marshal structured tests cache data: %w", err)
	}

	return c.redis.Set(ctx, structuredTestsKey(text), jsonData, ttl).Err()
}

// Invalidate removes the cached entry for the given report text.
func (c *CacheClient) Invalidate(ctx context.Context, text string) error {
	return c.redis.Del(ctx, structuredTestsKey(text)).Err()
}

// Close closes the Redis connection.
func (c *CacheClient) Close() error {
	return c.redis.Close()
}

func structuredTestsKey(text string) string {
	sum := sha256.Sum256([]byte(text))
	return fmt.Sprintf("structurer:text:%x", sum)
}
