package blobstore

import (
	"context"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStore(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	data := []byte("0123456789")
	require.NoError(t, s.Put(ctx, "tiles/t1.fits", data))
	data[0] = 'X'

	b, err := s.Open(ctx, "tiles/t1.fits")
	require.NoError(t, err)
	buf := make([]byte, 3)
	_, err = b.ReadAt(ctx, buf, 0)
	require.NoError(t, err)
	assert.Equal(t, "012", string(buf))

	rc, err := b.ReadRange(ctx, 8, 10)
	require.NoError(t, err)
	tail, _ := io.ReadAll(rc)
	assert.Equal(t, "89", string(tail))

	w, err := s.Create(ctx, "out/s.fits")
	require.NoError(t, err)
	_, _ = w.Write([]byte("abc"))
	require.NoError(t, w.Close())

	names, err := s.List(ctx, "")
	require.NoError(t, err)
	assert.Equal(t, []string{"out/s.fits", "tiles/t1.fits"}, names)
	assert.Equal(t, 2, s.Len())

	require.NoError(t, s.Delete(ctx, "out/s.fits"))
	_, err = s.Open(ctx, "out/s.fits")
	assert.True(t, IsNotFound(err))
}

func TestSectionReaderStopsAtSize(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	require.NoError(t, s.Put(ctx, "a", []byte("abcdef")))
	b, err := s.Open(ctx, "a")
	require.NoError(t, err)

	got, err := io.ReadAll(NewReader(ctx, b))
	require.NoError(t, err)
	assert.Equal(t, "abcdef", string(got))

	got, err = io.ReadAll(newSectionReadCloser(ctx, b, 4, 100))
	require.NoError(t, err)
	assert.Equal(t, "ef", string(got))
}
