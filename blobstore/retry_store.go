package blobstore

import (
	"context"
	"errors"
	"io"
	"time"

	"github.com/cenkalti/backoff/v5"
)

// RetryConfig controls RetryStore.
type RetryConfig struct {
	// MaxTries bounds the attempts per operation, including the first.
	MaxTries uint
	// InitialInterval is the first backoff delay.
	InitialInterval time.Duration
	// MaxElapsedTime bounds the total time spent on one operation.
	MaxElapsedTime time.Duration
}

// DefaultRetryConfig suits object stores under transient throttling.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxTries:        5,
		InitialInterval: 100 * time.Millisecond,
		MaxElapsedTime:  30 * time.Second,
	}
}

// RetryStore retries failed operations of a remote store with exponential
// backoff. Not-found and context errors are returned immediately.
type RetryStore struct {
	inner BlobStore
	cfg   RetryConfig
}

// NewRetryStore wraps inner.
func NewRetryStore(inner BlobStore, cfg RetryConfig) *RetryStore {
	if cfg.MaxTries == 0 {
		cfg.MaxTries = 1
	}
	return &RetryStore{inner: inner, cfg: cfg}
}

func retry[T any](ctx context.Context, cfg RetryConfig, op func() (T, error)) (T, error) {
	b := backoff.NewExponentialBackOff()
	if cfg.InitialInterval > 0 {
		b.InitialInterval = cfg.InitialInterval
	}

	opts := []backoff.RetryOption{
		backoff.WithBackOff(b),
		backoff.WithMaxTries(cfg.MaxTries),
	}
	if cfg.MaxElapsedTime > 0 {
		opts = append(opts, backoff.WithMaxElapsedTime(cfg.MaxElapsedTime))
	}

	return backoff.Retry(ctx, func() (T, error) {
		v, err := op()
		if err != nil && !retryable(err) {
			return v, backoff.Permanent(err)
		}
		return v, err
	}, opts...)
}

func retryable(err error) bool {
	switch {
	case IsNotFound(err),
		errors.Is(err, context.Canceled),
		errors.Is(err, context.DeadlineExceeded),
		errors.Is(err, io.EOF):
		return false
	}
	return true
}

func (s *RetryStore) Open(ctx context.Context, name string) (Blob, error) {
	b, err := retry(ctx, s.cfg, func() (Blob, error) { return s.inner.Open(ctx, name) })
	if err != nil {
		return nil, err
	}
	return &retryBlob{inner: b, cfg: s.cfg}, nil
}

// Create is not retried; a stream cannot be replayed.
func (s *RetryStore) Create(ctx context.Context, name string) (WritableBlob, error) {
	return s.inner.Create(ctx, name)
}

func (s *RetryStore) Put(ctx context.Context, name string, data []byte) error {
	_, err := retry(ctx, s.cfg, func() (struct{}, error) {
		return struct{}{}, s.inner.Put(ctx, name, data)
	})
	return err
}

func (s *RetryStore) Delete(ctx context.Context, name string) error {
	_, err := retry(ctx, s.cfg, func() (struct{}, error) {
		return struct{}{}, s.inner.Delete(ctx, name)
	})
	return err
}

func (s *RetryStore) List(ctx context.Context, prefix string) ([]string, error) {
	return retry(ctx, s.cfg, func() ([]string, error) { return s.inner.List(ctx, prefix) })
}

type retryBlob struct {
	inner Blob
	cfg   RetryConfig
}

func (b *retryBlob) ReadAt(ctx context.Context, p []byte, off int64) (int, error) {
	var short error
	n, err := retry(ctx, b.cfg, func() (int, error) {
		n, err := b.inner.ReadAt(ctx, p, off)
		if errors.Is(err, io.EOF) {
			short = err
			return n, nil
		}
		return n, err
	})
	if err != nil {
		return n, err
	}
	return n, short
}

func (b *retryBlob) ReadRange(ctx context.Context, off, length int64) (io.ReadCloser, error) {
	return retry(ctx, b.cfg, func() (io.ReadCloser, error) { return b.inner.ReadRange(ctx, off, length) })
}

func (b *retryBlob) Size() int64 { return b.inner.Size() }

func (b *retryBlob) Close() error { return b.inner.Close() }
