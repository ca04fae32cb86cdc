package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/identura/authcore/internal/config"
	"github.com/identura/authcore/internal/observability"
)

func newTestRedisCache(t *testing.T) (*redisCache, *miniredis.Miniredis) {
	t.Helper()

	mr := miniredis.RunT(t)

	c, err := newRedisCache(&config.CacheConfig{
		Enabled: true,
		Type:    config.CacheTypeRedis,
		Redis: &config.RedisCacheConfig{
			URL:       "redis://" + mr.Addr(),
			KeyPrefix: "authcore:",
		},
	}, observability.NopLogger())
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })

	return c, mr
}

func TestRedisCache_GetSet(t *testing.T) {
	t.Parallel()

	c, mr := newTestRedisCache(t)
	ctx := context.Background()

	_, err := c.Get(ctx, "missing")
	assert.ErrorIs(t, err, ErrCacheMiss)

	require.NoError(t, c.Set(ctx, "tenant:t1", []byte(`{"id":"t1"}`), time.Minute))

	got, err := c.Get(ctx, "tenant:t1")
	require.NoError(t, err)
	assert.Equal(t, []byte(`{"id":"t1"}`), got)

	// Key prefix is applied on the wire.
	assert.True(t, mr.Exists("authcore:tenant:t1"))
}

func TestRedisCache_TTLExpiry(t *testing.T) {
	t.Parallel()

	c, mr := newTestRedisCache(t)
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "k", []byte("v"), time.Minute))

	mr.FastForward(2 * time.Minute)

	_, err := c.Get(ctx, "k")
	assert.ErrorIs(t, err, ErrCacheMiss)
}

func TestRedisCache_Delete(t *testing.T) {
	t.Parallel()

	c, _ := newTestRedisCache(t)
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "k", []byte("v"), 0))
	require.NoError(t, c.Delete(ctx, "k"))

	_, err := c.Get(ctx, "k")
	assert.ErrorIs(t, err, ErrCacheMiss)

	stats := c.Stats()
	assert.Equal(t, int64(1), stats.Misses)
}

func TestNewRedisCache_BadConfig(t *testing.T) {
	t.Parallel()

	_, err := newRedisCache(&config.CacheConfig{
		Enabled: true,
		Type:    config.CacheTypeRedis,
	}, observability.NopLogger())
	assert.ErrorIs(t, err, ErrInvalidConfig)

	_, err = newRedisCache(&config.CacheConfig{
		Enabled: true,
		Type:    config.CacheTypeRedis,
		Redis:   &config.RedisCacheConfig{URL: "://bad"},
	}, observability.NopLogger())
	assert.ErrorIs(t, err, ErrInvalidConfig)
}
