// Package blobstore abstracts where survey tiles are read from and where
// stamps are written to.
//
// A BlobStore maps slash-separated names to immutable byte blobs. Tiles are
// opened as Blob and read by range, so a pixel window of a large tile costs
// one small read per row rather than a full download. Stamps are written
// whole with Put, or streamed through Create.
//
// # Built-in Implementations
//
//   - LocalStore: a directory on the local file system, read through mmap
//   - MemoryStore: an in-process map, used by tests
//   - s3.Store: Amazon S3 with range reads and multipart uploads
//   - minio.Store: MinIO and other S3-compatible services
//
// # Wrappers
//
//   - CachingStore: block cache in front of a remote store
//   - RetryStore: exponential backoff around transient failures
//   - ThrottledStore: read throughput limit from a resource.Controller
//
// Implementations must be safe for concurrent use.
package blobstore
