package minio

import (
	"context"
	"errors"
	"io"
	"net/http"
	"os"
	"sync"
	"testing"

	"github.com/minio/minio-go/v7"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/stampcut/blobstore"
)

// fakeClient keeps objects in memory. GetObject is not supported; ranged
// reads are covered by the integration test.
type fakeClient struct {
	mu      sync.Mutex
	objects map[string][]byte
}

func newFakeClient() *fakeClient {
	return &fakeClient{objects: make(map[string][]byte)}
}

func (f *fakeClient) StatObject(_ context.Context, _, key string, _ minio.StatObjectOptions) (minio.ObjectInfo, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	data, ok := f.objects[key]
	if !ok {
		return minio.ObjectInfo{}, minio.ErrorResponse{Code: "NoSuchKey", StatusCode: http.StatusNotFound}
	}
	return minio.ObjectInfo{Key: key, Size: int64(len(data))}, nil
}

func (f *fakeClient) GetObject(context.Context, string, string, minio.GetObjectOptions) (*minio.Object, error) {
	return nil, errors.New("not supported by fake")
}

func (f *fakeClient) PutObject(_ context.Context, _, key string, r io.Reader, _ int64, _ minio.PutObjectOptions) (minio.UploadInfo, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return minio.UploadInfo{}, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.objects[key] = data
	return minio.UploadInfo{Key: key, Size: int64(len(data))}, nil
}

func (f *fakeClient) RemoveObject(_ context.Context, _, key string, _ minio.RemoveObjectOptions) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.objects, key)
	return nil
}

func (f *fakeClient) ListObjects(_ context.Context, _ string, opts minio.ListObjectsOptions) <-chan minio.ObjectInfo {
	f.mu.Lock()
	defer f.mu.Unlock()
	ch := make(chan minio.ObjectInfo, len(f.objects))
	for key, data := range f.objects {
		if len(key) >= len(opts.Prefix) && key[:len(opts.Prefix)] == opts.Prefix {
			ch <- minio.ObjectInfo{Key: key, Size: int64(len(data))}
		}
	}
	close(ch)
	return ch
}

func TestStore_WithFakeClient(t *testing.T) {
	ctx := context.Background()
	client := newFakeClient()
	store := NewStore(client, "survey", "dr3/")

	require.NoError(t, store.Put(ctx, "r/t2.fits", []byte("two")))
	require.NoError(t, store.Put(ctx, "r/t1.fits", []byte("one!")))
	assert.Contains(t, client.objects, "dr3/r/t1.fits")

	blob, err := store.Open(ctx, "r/t1.fits")
	require.NoError(t, err)
	assert.Equal(t, int64(4), blob.Size())

	_, err = store.Open(ctx, "r/none.fits")
	assert.True(t, blobstore.IsNotFound(err))

	names, err := store.List(ctx, "r/")
	require.NoError(t, err)
	assert.Equal(t, []string{"r/t1.fits", "r/t2.fits"}, names)

	w, err := store.Create(ctx, "out/ps_7.fits")
	require.NoError(t, err)
	_, err = w.Write([]byte("stamp"))
	require.NoError(t, err)
	require.NoError(t, w.Close())
	assert.Equal(t, []byte("stamp"), client.objects["dr3/out/ps_7.fits"])

	require.NoError(t, store.Delete(ctx, "r/t2.fits"))
	names, err = store.List(ctx, "")
	require.NoError(t, err)
	assert.Equal(t, []string{"out/ps_7.fits", "r/t1.fits"}, names)
}

// TestStore_Integration runs against a live MinIO named by
// STAMPCUT_MINIO_ENDPOINT and is skipped otherwise.
func TestStore_Integration(t *testing.T) {
	endpoint := os.Getenv("STAMPCUT_MINIO_ENDPOINT")
	if endpoint == "" {
		t.Skip("STAMPCUT_MINIO_ENDPOINT not set")
	}

	store, err := Dial(Config{Endpoint: endpoint, AccessKey: "minioadmin", SecretKey: "minioadmin"}, "stampcut-test", "it/")
	require.NoError(t, err)

	ctx := context.Background()
	mc := store.client.(*minio.Client)
	exists, err := mc.BucketExists(ctx, "stampcut-test")
	require.NoError(t, err)
	if !exists {
		require.NoError(t, mc.MakeBucket(ctx, "stampcut-test", minio.MakeBucketOptions{}))
	}

	data := []byte("hello minio world")
	require.NoError(t, store.Put(ctx, "t.fits", data))

	blob, err := store.Open(ctx, "t.fits")
	require.NoError(t, err)
	buf := make([]byte, 5)
	n, err := blob.ReadAt(ctx, buf, 6)
	require.NoError(t, err)
	assert.Equal(t, "minio", string(buf[:n]))

	require.NoError(t, store.Delete(ctx, "t.fits"))
}
