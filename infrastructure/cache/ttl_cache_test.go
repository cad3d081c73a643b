package cache

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/DansiDanutz/nervix-leaderboard/internal/ports"
)

func TestTTLCache_SetGet(t *testing.T) {
	c := NewTTLCache(8, time.Minute)
	ctx := context.Background()

	_, ok, err := c.Get(ctx, "missing")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, c.Set(ctx, "k", 42, 0))
	v, ok, err := c.Get(ctx, "k")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, 42, v)

	require.NoError(t, c.Delete(ctx, "k"))
	_, ok, _ = c.Get(ctx, "k")
	assert.False(t, ok)
	assert.NoError(t, c.Delete(ctx, "k"), "deleting a missing key is not an error")
}

func TestTTLCache_PerEntryExpiration(t *testing.T) {
	c := NewTTLCache(8, time.Minute)
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return now }
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "short", "a", 5*time.Second))
	require.NoError(t, c.Set(ctx, "capped", "b", time.Hour))

	now = now.Add(4 * time.Second)
	_, ok, _ := c.Get(ctx, "short")
	assert.True(t, ok)

	now = now.Add(2 * time.Second)
	_, ok, _ = c.Get(ctx, "short")
	assert.False(t, ok, "expired on read")

	now = now.Add(time.Minute)
	_, ok, _ = c.Get(ctx, "capped")
	assert.False(t, ok, "expirations longer than the store TTL are capped")
}

func TestTTLCache_StoreTTLExpiry(t *testing.T) {
	c := NewTTLCache(8, 20*time.Millisecond)
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "k", "v", 0))
	assert.Eventually(t, func() bool {
		_, ok, _ := c.Get(ctx, "k")
		return !ok
	}, time.Second, 5*time.Millisecond)
}

func TestTTLCache_EvictsLeastRecentlyUsed(t *testing.T) {
	c := NewTTLCache(2, time.Minute)
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "a", 1, 0))
	require.NoError(t, c.Set(ctx, "b", 2, 0))
	_, _, _ = c.Get(ctx, "a")
	require.NoError(t, c.Set(ctx, "c", 3, 0))

	_, ok, _ := c.Get(ctx, "b")
	assert.False(t, ok)
	_, ok, _ = c.Get(ctx, "a")
	assert.True(t, ok)
	assert.Equal(t, 2, c.Len())
}

func TestTTLCache_Clear(t *testing.T) {
	c := NewTTLCache(0, 0)
	ctx := context.Background()
	for i := range 10 {
		require.NoError(t, c.Set(ctx, fmt.Sprint(i), i, 0))
	}
	require.NoError(t, c.Clear(ctx))
	assert.Zero(t, c.Len())
}

func TestTTLCache_Errors(t *testing.T) {
	c := NewTTLCache(4, time.Minute)

	err := c.Set(context.Background(), "k", 1, -time.Second)
	var ce *ports.CacheError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, "set", ce.Operation)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, _, err = c.Get(ctx, "k")
	assert.ErrorIs(t, err, context.Canceled)
}

func TestTTLCache_Concurrent(t *testing.T) {
	c := NewTTLCache(64, time.Minute)
	ctx := context.Background()

	var wg sync.WaitGroup
	for g := range 8 {
		wg.Go(func() {
			for i := range 200 {
				key := fmt.Sprintf("%d-%d", g, i%16)
				_ = c.Set(ctx, key, i, 0)
				_, _, _ = c.Get(ctx, key)
			}
		})
	}
	wg.Wait()
	assert.LessOrEqual(t, c.Len(), 64)
}
