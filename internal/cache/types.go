package cache

import "context"

// Key identifies one block of one blob.
type Key struct {
	// Path is the blob name within its store.
	Path string
	// Block is the block index (byte offset / block size).
	Block uint64
}

// BlockCache is a byte-oriented cache for immutable blocks.
// Returned slices must be treated as read-only.
type BlockCache interface {
	Get(ctx context.Context, key Key) ([]byte, bool)
	// Set caches b. The caller must not modify b afterwards.
	Set(ctx context.Context, key Key, b []byte)
	// Invalidate removes every entry matching the predicate.
	Invalidate(predicate func(key Key) bool)
	Close() error
	Stats() (hits, misses int64)
}

// ForPath returns a predicate matching all blocks of path.
func ForPath(path string) func(Key) bool {
	return func(k Key) bool { return k.Path == path }
}
