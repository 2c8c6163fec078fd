package cache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryCache_SetGet(t *testing.T) {
	ctx := context.Background()
	c := NewMemoryCache()

	require.NoError(t, c.Set(ctx, "runner:ctx:k1:user", map[string]string{"id": "u1"}, 0))

	var got map[string]string
	require.NoError(t, c.Get(ctx, "runner:ctx:k1:user", &got))
	assert.Equal(t, "u1", got["id"])

	var missing string
	assert.ErrorIs(t, c.Get(ctx, "absent", &missing), ErrCacheMiss)
}

func TestMemoryCache_Expiry(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	c := NewMemoryCache().(*memoryCache)
	c.now = func() time.Time { return now }

	require.NoError(t, c.Set(ctx, "token", "abc", time.Minute))
	now = now.Add(2 * time.Minute)

	var token string
	assert.ErrorIs(t, c.Get(ctx, "token", &token), ErrCacheMiss)
}

func TestMemoryCache_DeletePattern(t *testing.T) {
	ctx := context.Background()
	c := NewMemoryCache()
	for _, key := range []string{"runner:ctx:a:token", "runner:ctx:a:user", "runner:ctx:b:token"} {
		require.NoError(t, c.Set(ctx, key, "v", 0))
	}

	require.NoError(t, c.DeletePattern(ctx, "runner:ctx:a:*"))

	var v string
	assert.ErrorIs(t, c.Get(ctx, "runner:ctx:a:token", &v), ErrCacheMiss)
	assert.ErrorIs(t, c.Get(ctx, "runner:ctx:a:user", &v), ErrCacheMiss)
	assert.NoError(t, c.Get(ctx, "runner:ctx:b:token", &v))
}

func TestMemoryCache_SweepsUnreadExpiredEntries(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	c := NewMemoryCache().(*memoryCache)
	c.now = func() time.Time { return now }

	require.NoError(t, c.Set(ctx, "runner:ctx:gone:token", "abc", time.Minute))
	require.NoError(t, c.Set(ctx, "runner:ctx:kept:token", "def", time.Hour))
	require.NoError(t, c.Set(ctx, "runner:ctx:kept:locale", "en", 0))

	now = now.Add(2 * time.Minute)
	require.NoError(t, c.Set(ctx, "runner:ctx:new:token", "ghi", time.Hour))

	c.mu.Lock()
	_, stale := c.entries["runner:ctx:gone:token"]
	size := len(c.entries)
	c.mu.Unlock()
	assert.False(t, stale)
	assert.Equal(t, 3, size)

	require.NoError(t, c.Set(ctx, "runner:ctx:short:token", "jkl", time.Second))
	now = now.Add(5 * time.Second)
	require.NoError(t, c.DeletePattern(ctx, "runner:ctx:none:*"))
	c.mu.Lock()
	_, stale = c.entries["runner:ctx:short:token"]
	c.mu.Unlock()
	assert.False(t, stale, "DeletePattern sweeps too")
}
