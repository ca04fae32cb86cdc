package cache

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/identura/authcore/internal/config"
	"github.com/identura/authcore/internal/observability"
)

// redisConnectTimeout bounds the startup connectivity check.
const redisConnectTimeout = 5 * time.Second

// redisCache implements a Redis-backed cache.
type redisCache struct {
	logger    observability.Logger
	client    *redis.Client
	keyPrefix string

	hits   int64
	misses int64
}

func newRedisCache(cfg *config.CacheConfig, logger observability.Logger) (*redisCache, error) {
	if cfg.Redis == nil || cfg.Redis.URL == "" {
		return nil, fmt.Errorf("%w: redis url is required", ErrInvalidConfig)
	}

	opts, err := redis.ParseURL(cfg.Redis.URL)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	if cfg.Redis.PoolSize > 0 {
		opts.PoolSize = cfg.Redis.PoolSize
	}

	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), redisConnectTimeout)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis connection failed: %w", err)
	}

	logger.Info("redis cache initialized",
		observability.String("addr", opts.Addr),
		observability.String("keyPrefix", cfg.Redis.KeyPrefix),
	)

	return &redisCache{
		logger:    logger,
		client:    client,
		keyPrefix: cfg.Redis.KeyPrefix,
	}, nil
}

// Get retrieves a value from the cache.
func (c *redisCache) Get(ctx context.Context, key string) ([]byte, error) {
	start := time.Now()
	defer observeOperation("redis", "get", start)

	value, err := c.client.Get(ctx, c.keyPrefix+key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			atomic.AddInt64(&c.misses, 1)
			metrics().missesTotal.WithLabelValues("redis").Inc()
			return nil, ErrCacheMiss
		}
		metrics().errorsTotal.WithLabelValues("redis", "get").Inc()
		return nil, err
	}

	atomic.AddInt64(&c.hits, 1)
	metrics().hitsTotal.WithLabelValues("redis").Inc()
	return value, nil
}

// Set stores a value in the cache with the given TTL.
func (c *redisCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	start := time.Now()
	defer observeOperation("redis", "set", start)

	if err := c.client.Set(ctx, c.keyPrefix+key, value, ttl).Err(); err != nil {
		metrics().errorsTotal.WithLabelValues("redis", "set").Inc()
		return err
	}
	return nil
}

// Delete removes a value from the cache.
func (c *redisCache) Delete(ctx context.Context, key string) error {
	start := time.Now()
	defer observeOperation("redis", "delete", start)

	if err := c.client.Del(ctx, c.keyPrefix+key).Err(); err != nil {
		metrics().errorsTotal.WithLabelValues("redis", "delete").Inc()
		return err
	}
	return nil
}

// Close closes the Redis connection.
func (c *redisCache) Close() error {
	return c.client.Close()
}

// Stats returns cache statistics. Size is not tracked for Redis.
func (c *redisCache) Stats() Stats {
	return Stats{
		Hits:   atomic.LoadInt64(&c.hits),
		Misses: atomic.LoadInt64(&c.misses),
	}
}
