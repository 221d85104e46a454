package cache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryCache_SetGetDelete(t *testing.T) {
	ctx := context.Background()
	c := NewMemoryCache()

	v, err := c.Get(ctx, "missing")
	require.NoError(t, err)
	assert.Empty(t, v)

	require.NoError(t, c.Set(ctx, "k", "v", 0))
	v, err = c.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, "v", v)

	require.NoError(t, c.Delete(ctx, "k"))
	v, _ = c.Get(ctx, "k")
	assert.Empty(t, v)
}

func TestMemoryCache_Expiration(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	c := NewMemoryCache()
	c.now = func() time.Time { return now }

	require.NoError(t, c.Set(ctx, "k", "v", time.Minute))
	v, _ := c.Get(ctx, "k")
	assert.Equal(t, "v", v)

	now = now.Add(time.Minute)
	v, _ = c.Get(ctx, "k")
	assert.Empty(t, v)
}

var _ Cache = (*MemoryCache)(nil)
var _ Cache = (*RedisCache)(nil)
