package cache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/identura/authcore/internal/config"
	"github.com/identura/authcore/internal/observability"
)

func newTestMemoryCache(t *testing.T, maxEntries int) *memoryCache {
	t.Helper()

	c := newMemoryCache(&config.CacheConfig{
		Enabled:    true,
		Type:       config.CacheTypeMemory,
		MaxEntries: maxEntries,
	}, observability.NopLogger())
	t.Cleanup(func() { _ = c.Close() })
	return c
}

func TestMemoryCache_GetSet(t *testing.T) {
	t.Parallel()

	c := newTestMemoryCache(t, 10)
	ctx := context.Background()

	_, err := c.Get(ctx, "missing")
	assert.ErrorIs(t, err, ErrCacheMiss)

	require.NoError(t, c.Set(ctx, "k", []byte("v"), 0))

	got, err := c.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, []byte("v"), got)

	// The cache returns a copy, not an alias.
	got[0] = 'x'
	again, err := c.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, []byte("v"), again)
}

func TestMemoryCache_TTL(t *testing.T) {
	t.Parallel()

	c := newTestMemoryCache(t, 10)
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "k", []byte("v"), 20*time.Millisecond))

	_, err := c.Get(ctx, "k")
	require.NoError(t, err)

	time.Sleep(40 * time.Millisecond)

	_, err = c.Get(ctx, "k")
	assert.ErrorIs(t, err, ErrCacheMiss)
}

func TestMemoryCache_Eviction(t *testing.T) {
	t.Parallel()

	c := newTestMemoryCache(t, 2)
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "a", []byte("1"), 0))
	require.NoError(t, c.Set(ctx, "b", []byte("2"), 0))

	// Touch "a" so "b" becomes the LRU victim.
	_, err := c.Get(ctx, "a")
	require.NoError(t, err)

	require.NoError(t, c.Set(ctx, "c", []byte("3"), 0))

	_, err = c.Get(ctx, "b")
	assert.ErrorIs(t, err, ErrCacheMiss)

	_, err = c.Get(ctx, "a")
	assert.NoError(t, err)

	stats := c.Stats()
	assert.Equal(t, int64(2), stats.Size)
}

func TestMemoryCache_DeleteAndOverwrite(t *testing.T) {
	t.Parallel()

	c := newTestMemoryCache(t, 10)
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "k", []byte("v1"), 0))
	require.NoError(t, c.Set(ctx, "k", []byte("v2"), 0))

	got, err := c.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, []byte("v2"), got)

	require.NoError(t, c.Delete(ctx, "k"))
	_, err = c.Get(ctx, "k")
	assert.ErrorIs(t, err, ErrCacheMiss)

	// Deleting a missing key is not an error.
	assert.NoError(t, c.Delete(ctx, "k"))
}

func TestMemoryCache_RemoveExpired(t *testing.T) {
	t.Parallel()

	c := newTestMemoryCache(t, 10)
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "short", []byte("v"), time.Millisecond))
	require.NoError(t, c.Set(ctx, "long", []byte("v"), time.Hour))

	time.Sleep(10 * time.Millisecond)
	c.removeExpired()

	stats := c.Stats()
	assert.Equal(t, int64(1), stats.Size)
}

func TestDisabledCache(t *testing.T) {
	t.Parallel()

	c, err := New(&config.CacheConfig{Enabled: false}, observability.NopLogger())
	require.NoError(t, err)

	ctx := context.Background()
	_, err = c.Get(ctx, "k")
	assert.ErrorIs(t, err, ErrCacheDisabled)
	assert.ErrorIs(t, c.Set(ctx, "k", nil, 0), ErrCacheDisabled)
	assert.ErrorIs(t, c.Delete(ctx, "k"), ErrCacheDisabled)
	assert.NoError(t, c.Close())
}

func TestNew_Validation(t *testing.T) {
	t.Parallel()

	_, err := New(nil, observability.NopLogger())
	assert.ErrorIs(t, err, ErrInvalidConfig)

	_, err = New(&config.CacheConfig{Enabled: true, Type: "memcached"}, observability.NopLogger())
	assert.Error(t, err)
}
