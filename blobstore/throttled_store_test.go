package blobstore

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/stampcut/internal/resource"
)

func TestThrottledStore(t *testing.T) {
	ctx := context.Background()
	inner := NewMemoryStore()
	require.NoError(t, inner.Put(ctx, "tile", make([]byte, 4096)))

	rc := resource.NewController(resource.Config{IOLimitBytesPerSec: 1024})
	s := NewThrottledStore(inner, rc)

	b, err := s.Open(ctx, "tile")
	require.NoError(t, err)
	defer b.Close()
	assert.Equal(t, int64(4096), b.Size())

	// The first second of budget is available immediately.
	_, err = b.ReadAt(ctx, make([]byte, 1024), 0)
	require.NoError(t, err)

	short, cancel := context.WithTimeout(ctx, 50*time.Millisecond)
	defer cancel()
	_, err = b.ReadAt(short, make([]byte, 1024), 0)
	require.Error(t, err)

	require.NoError(t, s.Put(ctx, "out", []byte("x")))
	names, err := s.List(ctx, "")
	require.NoError(t, err)
	assert.Equal(t, []string{"out", "tile"}, names)
}
