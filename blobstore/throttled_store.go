package blobstore

import (
	"context"
	"io"

	"github.com/hupe1980/stampcut/internal/resource"
)

// ThrottledStore limits read throughput against inner using the IO budget
// of a resource.Controller. Writes are not throttled.
type ThrottledStore struct {
	inner BlobStore
	rc    *resource.Controller
}

// NewThrottledStore wraps inner.
func NewThrottledStore(inner BlobStore, rc *resource.Controller) *ThrottledStore {
	return &ThrottledStore{inner: inner, rc: rc}
}

func (s *ThrottledStore) Open(ctx context.Context, name string) (Blob, error) {
	b, err := s.inner.Open(ctx, name)
	if err != nil {
		return nil, err
	}
	return &throttledBlob{inner: b, rc: s.rc}, nil
}

func (s *ThrottledStore) Create(ctx context.Context, name string) (WritableBlob, error) {
	return s.inner.Create(ctx, name)
}

func (s *ThrottledStore) Put(ctx context.Context, name string, data []byte) error {
	return s.inner.Put(ctx, name, data)
}

func (s *ThrottledStore) Delete(ctx context.Context, name string) error {
	return s.inner.Delete(ctx, name)
}

func (s *ThrottledStore) List(ctx context.Context, prefix string) ([]string, error) {
	return s.inner.List(ctx, prefix)
}

type throttledBlob struct {
	inner Blob
	rc    *resource.Controller
}

func (b *throttledBlob) ReadAt(ctx context.Context, p []byte, off int64) (int, error) {
	if err := b.rc.AcquireIO(ctx, len(p)); err != nil {
		return 0, err
	}
	return b.inner.ReadAt(ctx, p, off)
}

func (b *throttledBlob) ReadRange(ctx context.Context, off, length int64) (io.ReadCloser, error) {
	if err := b.rc.AcquireIO(ctx, int(length)); err != nil {
		return nil, err
	}
	return b.inner.ReadRange(ctx, off, length)
}

func (b *throttledBlob) Size() int64 { return b.inner.Size() }

func (b *throttledBlob) Close() error { return b.inner.Close() }
