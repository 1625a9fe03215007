package blobstore

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocalStore_PutOpenRead(t *testing.T) {
	ctx := context.Background()
	s := NewLocalStore(t.TempDir())

	require.NoError(t, s.Put(ctx, "tiles/a.fits", []byte("hello world")))

	b, err := s.Open(ctx, "tiles/a.fits")
	require.NoError(t, err)
	defer b.Close()

	assert.Equal(t, int64(11), b.Size())

	buf := make([]byte, 5)
	n, err := b.ReadAt(ctx, buf, 6)
	require.NoError(t, err)
	assert.Equal(t, 5, n)
	assert.Equal(t, "world", string(buf))

	n, err = b.ReadAt(ctx, make([]byte, 8), 6)
	assert.Equal(t, 5, n)
	assert.ErrorIs(t, err, io.EOF)

	rc, err := b.ReadRange(ctx, 0, 5)
	require.NoError(t, err)
	got, err := io.ReadAll(rc)
	require.NoError(t, err)
	assert.Equal(t, "hello", string(got))

	all, err := ReadAll(ctx, b)
	require.NoError(t, err)
	assert.Equal(t, "hello world", string(all))
}

func TestLocalStore_OpenMissing(t *testing.T) {
	s := NewLocalStore(t.TempDir())
	_, err := s.Open(context.Background(), "nope.fits")
	require.True(t, IsNotFound(err))
}

func TestLocalStore_CreateIsAtomic(t *testing.T) {
	ctx := context.Background()
	root := t.TempDir()
	s := NewLocalStore(root)

	w, err := s.Create(ctx, "out/stamp_1.fits")
	require.NoError(t, err)
	_, err = w.Write([]byte("partial"))
	require.NoError(t, err)
	require.NoError(t, w.Sync())

	_, err = os.Stat(filepath.Join(root, "out", "stamp_1.fits"))
	require.True(t, os.IsNotExist(err))

	names, err := s.List(ctx, "")
	require.NoError(t, err)
	assert.Empty(t, names)

	require.NoError(t, w.Close())
	data, err := os.ReadFile(filepath.Join(root, "out", "stamp_1.fits"))
	require.NoError(t, err)
	assert.Equal(t, "partial", string(data))
}

func TestLocalStore_ListAndDelete(t *testing.T) {
	ctx := context.Background()
	s := NewLocalStore(t.TempDir())

	for _, name := range []string{"b.fits", "a.fits", "sub/c.fits", "x.txt"} {
		require.NoError(t, s.Put(ctx, name, []byte(name)))
	}

	names, err := s.List(ctx, "")
	require.NoError(t, err)
	assert.Equal(t, []string{"a.fits", "b.fits", "sub/c.fits", "x.txt"}, names)

	names, err = s.List(ctx, "sub/")
	require.NoError(t, err)
	assert.Equal(t, []string{"sub/c.fits"}, names)

	require.NoError(t, s.Delete(ctx, "a.fits"))
	require.NoError(t, s.Delete(ctx, "a.fits"))
	names, err = s.List(ctx, "a")
	require.NoError(t, err)
	assert.Empty(t, names)
}

func TestLocalStore_ListMissingRoot(t *testing.T) {
	s := NewLocalStore(filepath.Join(t.TempDir(), "absent"))
	names, err := s.List(context.Background(), "")
	require.NoError(t, err)
	assert.Empty(t, names)
}

func TestLocalStore_Lock(t *testing.T) {
	ctx := context.Background()
	s := NewLocalStore(t.TempDir())

	unlock, err := s.Lock(ctx, ".stampcut.lock")
	require.NoError(t, err)

	other := NewLocalStore(s.Root())
	_, err = other.Lock(ctx, ".stampcut.lock")
	require.ErrorIs(t, err, ErrLocked)

	names, err := s.List(ctx, "")
	require.NoError(t, err)
	assert.Empty(t, names)

	require.NoError(t, unlock())
	unlock, err = other.Lock(ctx, ".stampcut.lock")
	require.NoError(t, err)
	require.NoError(t, unlock())
}
