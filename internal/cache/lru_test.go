package cache

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/stampcut/internal/resource"
)

func TestLRUBlockCache_Eviction(t *testing.T) {
	ctx := context.Background()
	c := NewLRUBlockCache(10, nil)

	c.Set(ctx, Key{Path: "a", Block: 0}, []byte("1234"))
	c.Set(ctx, Key{Path: "a", Block: 1}, []byte("5678"))

	// Touch block 0 so block 1 is the eviction candidate.
	_, ok := c.Get(ctx, Key{Path: "a", Block: 0})
	require.True(t, ok)

	c.Set(ctx, Key{Path: "b", Block: 0}, []byte("abcd"))
	_, ok = c.Get(ctx, Key{Path: "a", Block: 1})
	assert.False(t, ok)
	_, ok = c.Get(ctx, Key{Path: "a", Block: 0})
	assert.True(t, ok)
	assert.Equal(t, int64(8), c.Size())

	hits, misses := c.Stats()
	assert.Equal(t, int64(2), hits)
	assert.Equal(t, int64(1), misses)
}

func TestLRUBlockCache_OversizedAndReplace(t *testing.T) {
	ctx := context.Background()
	c := NewLRUBlockCache(4, nil)

	c.Set(ctx, Key{Path: "a"}, []byte("too large"))
	assert.Equal(t, 0, c.Len())

	c.Set(ctx, Key{Path: "a"}, []byte("ab"))
	c.Set(ctx, Key{Path: "a"}, []byte("abc"))
	got, ok := c.Get(ctx, Key{Path: "a"})
	require.True(t, ok)
	assert.Equal(t, "abc", string(got))
	assert.Equal(t, int64(3), c.Size())
}

func TestLRUBlockCache_InvalidatePath(t *testing.T) {
	ctx := context.Background()
	c := NewLRUBlockCache(100, nil)
	for i := range 3 {
		c.Set(ctx, Key{Path: "tile1", Block: uint64(i)}, []byte("x"))
		c.Set(ctx, Key{Path: "tile2", Block: uint64(i)}, []byte("y"))
	}

	c.Invalidate(ForPath("tile1"))
	assert.Equal(t, 3, c.Len())
	_, ok := c.Get(ctx, Key{Path: "tile2", Block: 2})
	assert.True(t, ok)
}

func TestLRUBlockCache_ChargesController(t *testing.T) {
	ctx := context.Background()
	rc := resource.NewController(resource.Config{MemoryLimitBytes: 6})
	c := NewLRUBlockCache(100, rc)

	c.Set(ctx, Key{Path: "a", Block: 0}, []byte("1234"))
	assert.Equal(t, int64(4), rc.MemoryUsage())

	// Refused by the controller, not by the cache.
	c.Set(ctx, Key{Path: "a", Block: 1}, []byte("5678"))
	assert.Equal(t, 1, c.Len())

	require.NoError(t, c.Close())
	assert.Zero(t, rc.MemoryUsage())
}
