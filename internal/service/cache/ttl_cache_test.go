package cache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTTLCacheExpiry(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	c := NewTTLCache()
	c.now = func() time.Time { return now }
	ctx := context.Background()

	require.NoError(t, c.SetBytes(ctx, "a", []byte("1"), time.Minute))
	require.NoError(t, c.SetBytes(ctx, "b", []byte("2"), 0))

	b, ok, err := c.GetBytes(ctx, "a")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, []byte("1"), b)

	now = now.Add(2 * time.Minute)
	_, ok, _ = c.GetBytes(ctx, "a")
	assert.False(t, ok)

	_, ok, _ = c.GetBytes(ctx, "b")
	assert.True(t, ok, "zero ttl never expires")
}

func TestTTLCacheSweep(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	c := NewTTLCache()
	c.now = func() time.Time { return now }
	ctx := context.Background()

	_ = c.SetBytes(ctx, "x", []byte("x"), time.Second)
	_ = c.SetBytes(ctx, "y", []byte("y"), time.Hour)
	now = now.Add(time.Minute)

	assert.Equal(t, 1, c.Sweep())
	assert.Equal(t, 1, c.Len())
}

func TestTTLCacheCopiesValue(t *testing.T) {
	c := NewTTLCache()
	ctx := context.Background()
	v := []byte("abc")
	_ = c.SetBytes(ctx, "k", v, time.Minute)
	v[0] = 'z'

	got, _, _ := c.GetBytes(ctx, "k")
	assert.Equal(t, []byte("abc"), got)
}
